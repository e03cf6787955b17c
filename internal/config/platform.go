package config

import (
	"fmt"
	"strings"
	"time"
)

// PlatformConfig contains the connection settings for the commerce
// platform's Admin API (segments, discounts, shop metafields, customers).
type PlatformConfig struct {
	// ShopDomain is the myshopify-style shop domain, e.g. "acme.myshopify.com".
	ShopDomain string `envconfig:"SHOP_DOMAIN"`

	// AccessToken authenticates Admin API calls. The token exchange itself
	// is handled outside this service; we only carry the resulting token.
	AccessToken string `envconfig:"ACCESS_TOKEN"`

	// APIVersion pins the Admin API version, e.g. "2024-10".
	APIVersion string `envconfig:"API_VERSION" default:"2024-10"`

	// HTTPTimeout bounds a single Admin API round trip.
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"15s"`

	// MetafieldNamespace and MetafieldKey address the rule set blob on the
	// shop entity.
	MetafieldNamespace string `envconfig:"METAFIELD_NAMESPACE" default:"vip_pricing"`
	MetafieldKey       string `envconfig:"METAFIELD_KEY" default:"rules"`
}

// Validate checks if the platform configuration is valid.
func (c *PlatformConfig) Validate(environment string) error {
	if err := validateHost(c.ShopDomain, "platform shop"); err != nil {
		return err
	}
	if strings.Contains(c.ShopDomain, "/") {
		return fmt.Errorf("platform shop domain must be a bare host, got %q", c.ShopDomain)
	}

	if environment == EnvironmentProduction && c.AccessToken == "" {
		return fmt.Errorf("platform access token is required in production environment")
	}

	if err := validateNoWhitespace(c.APIVersion, "platform API version"); err != nil {
		return err
	}
	if err := validateNoWhitespace(c.MetafieldNamespace, "metafield namespace"); err != nil {
		return err
	}
	if err := validateNoWhitespace(c.MetafieldKey, "metafield key"); err != nil {
		return err
	}

	return nil
}

// IsConfigured returns true if the platform client has enough to connect.
func (c *PlatformConfig) IsConfigured() bool {
	return c.ShopDomain != "" && c.AccessToken != ""
}
