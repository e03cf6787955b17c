package config

import (
	"maps"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalRequiredConfig provides the database and platform settings every
// load needs.
func minimalRequiredConfig() map[string]string {
	return map[string]string{
		"VIPTIER_DB_HOST":              "localhost",
		"VIPTIER_DB_PORT":              "5432",
		"VIPTIER_DB_NAME":              "viptier_test",
		"VIPTIER_DB_USER":              "test_user",
		"VIPTIER_DB_PASSWORD":          "test_pass",
		"VIPTIER_PLATFORM_SHOP_DOMAIN": "test.myshopify.com",
	}
}

// mergeEnvVars merges additional env vars with minimal required config
func mergeEnvVars(additional map[string]string) map[string]string {
	result := minimalRequiredConfig()
	maps.Copy(result, additional)
	return result
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		want    func(t *testing.T, cfg *Config)
		wantErr bool
	}{
		{
			name:    "Should use defaults when no env vars are set",
			envVars: minimalRequiredConfig(),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "viptier", cfg.App.Name)
				assert.Equal(t, "development", cfg.App.Environment)
				assert.Equal(t, "info", cfg.App.LogLevel)
				assert.Equal(t, 30*time.Second, cfg.App.ShutdownTimeout)
				assert.Equal(t, "8080", cfg.Server.Port)
				assert.Equal(t, "2024-10", cfg.Platform.APIVersion)
				assert.Equal(t, "vip_pricing", cfg.Platform.MetafieldNamespace)
				assert.Equal(t, "rules", cfg.Platform.MetafieldKey)
				assert.Equal(t, 256, cfg.AccessLog.QueueSize)
				assert.Equal(t, IdentityKeyID, cfg.AccessLog.IdentityKey)
				assert.Equal(t, 5*time.Minute, cfg.Sweeper.Interval)
				assert.Equal(t, 10*time.Minute, cfg.Sweeper.MinAge)
			},
		},
		{
			name: "Should load custom environment variables correctly",
			envVars: mergeEnvVars(map[string]string{
				"VIPTIER_APP_NAME":               "viptier-staging",
				"VIPTIER_APP_ENV":                "staging",
				"VIPTIER_APP_LOG_FORMAT":         "json",
				"VIPTIER_SERVER_PORT":            "9090",
				"VIPTIER_PLATFORM_API_VERSION":   "2025-01",
				"VIPTIER_ACCESSLOG_IDENTITY_KEY": "display_name",
				"VIPTIER_SWEEPER_INTERVAL":       "1m",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "viptier-staging", cfg.App.Name)
				assert.Equal(t, "staging", cfg.App.Environment)
				assert.Equal(t, "json", cfg.App.LogFormat)
				assert.Equal(t, "9090", cfg.Server.Port)
				assert.Equal(t, "2025-01", cfg.Platform.APIVersion)
				assert.Equal(t, IdentityKeyDisplayName, cfg.AccessLog.IdentityKey)
				assert.Equal(t, time.Minute, cfg.Sweeper.Interval)
			},
		},
		{
			name: "Should reject an unknown environment",
			envVars: mergeEnvVars(map[string]string{
				"VIPTIER_APP_ENV": "sandbox",
			}),
			wantErr: true,
		},
		{
			name: "Should reject an unknown log level",
			envVars: mergeEnvVars(map[string]string{
				"VIPTIER_APP_LOG_LEVEL": "verbose",
			}),
			wantErr: true,
		},
		{
			name: "Should reject an invalid server port",
			envVars: mergeEnvVars(map[string]string{
				"VIPTIER_SERVER_PORT": "70000",
			}),
			wantErr: true,
		},
		{
			name: "Should reject a shop domain carrying a path",
			envVars: mergeEnvVars(map[string]string{
				"VIPTIER_PLATFORM_SHOP_DOMAIN": "test.myshopify.com/admin",
			}),
			wantErr: true,
		},
		{
			name: "Should reject an unknown access log identity key",
			envVars: mergeEnvVars(map[string]string{
				"VIPTIER_ACCESSLOG_IDENTITY_KEY": "email",
			}),
			wantErr: true,
		},
		{
			name: "Should require an access token in production",
			envVars: mergeEnvVars(map[string]string{
				"VIPTIER_APP_ENV":              "production",
				"VIPTIER_DB_SSL_MODE":          "require",
				"VIPTIER_DB_PASSWORD":          "SuperSecure123!",
				"VIPTIER_SERVER_TLS_ENABLED":   "true",
				"VIPTIER_SERVER_TLS_CERT_FILE": "/certs/cert.pem",
				"VIPTIER_SERVER_TLS_KEY_FILE":  "/certs/key.pem",
			}),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := Load()

			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			tt.want(t, cfg)
		})
	}
}

func TestAccessLogConfig_Validate(t *testing.T) {
	for _, key := range []string{IdentityKeyID, IdentityKeyDisplayName} {
		cfg := AccessLogConfig{QueueSize: 1, IdentityKey: key}
		assert.NoError(t, cfg.Validate(), "identity key %q must be accepted", key)
	}

	cfg := AccessLogConfig{QueueSize: 1, IdentityKey: "email"}
	assert.Error(t, cfg.Validate())
}
