package platform

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAdmin serves canned GraphQL responses and captures the last request.
type stubAdmin struct {
	srv *httptest.Server

	// response is the raw body served for the next call.
	response string
	status   int

	lastToken string
	lastBody  map[string]any
}

func newStubAdmin(t *testing.T) *stubAdmin {
	t.Helper()

	s := &stubAdmin{status: http.StatusOK}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.lastToken = r.Header.Get("X-Shopify-Access-Token")

		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.lastBody = body

		w.WriteHeader(s.status)
		_, _ = w.Write([]byte(s.response))
	}))
	t.Cleanup(s.srv.Close)
	return s
}

// client builds a GraphQLClient pointed at the stub.
func (s *stubAdmin) client() *GraphQLClient {
	return &GraphQLClient{
		httpClient: s.srv.Client(),
		endpoint:   s.srv.URL,
		token:      "test-token",
		logger:     slog.Default(),
	}
}

// variables digs the GraphQL variables out of the captured request.
func (s *stubAdmin) variables(t *testing.T) map[string]any {
	t.Helper()
	vars, ok := s.lastBody["variables"].(map[string]any)
	require.True(t, ok, "request must carry variables")
	return vars
}

func TestGraphQLClient_CreateSegment(t *testing.T) {
	ctx := context.Background()

	t.Run("Should decode the created segment", func(t *testing.T) {
		stub := newStubAdmin(t)
		stub.response = `{"data":{"segmentCreate":{"segment":{"id":"gid://shopify/Segment/1","name":"VIP Users"},"userErrors":[]}}}`

		seg, fieldErrs, err := stub.client().CreateSegment(ctx, "VIP Users", "customer_tags CONTAINS 'VIP'")

		require.NoError(t, err)
		assert.Empty(t, fieldErrs)
		require.NotNil(t, seg)
		assert.Equal(t, "gid://shopify/Segment/1", seg.ID)
		assert.Equal(t, "VIP Users", seg.Name)

		assert.Equal(t, "test-token", stub.lastToken)
		vars := stub.variables(t)
		assert.Equal(t, "VIP Users", vars["name"])
		assert.Equal(t, "customer_tags CONTAINS 'VIP'", vars["query"])
	})

	t.Run("Should return user errors as data, not as an error", func(t *testing.T) {
		stub := newStubAdmin(t)
		stub.response = `{"data":{"segmentCreate":{"segment":null,"userErrors":[{"field":["name"],"message":"Name already exists"}]}}}`

		seg, fieldErrs, err := stub.client().CreateSegment(ctx, "VIP Users", "q")

		require.NoError(t, err)
		assert.Nil(t, seg)
		require.Len(t, fieldErrs, 1)
		assert.Equal(t, "Name already exists", fieldErrs[0].Message)
	})

	t.Run("Should fail on a top-level graphql error", func(t *testing.T) {
		stub := newStubAdmin(t)
		stub.response = `{"errors":[{"message":"Throttled"}]}`

		_, _, err := stub.client().CreateSegment(ctx, "VIP Users", "q")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "Throttled")
	})

	t.Run("Should fail on a non-200 status", func(t *testing.T) {
		stub := newStubAdmin(t)
		stub.status = http.StatusUnauthorized
		stub.response = `{}`

		_, _, err := stub.client().CreateSegment(ctx, "VIP Users", "q")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
	})
}

func TestGraphQLClient_CreateAutomaticPercentageDiscount(t *testing.T) {
	ctx := context.Background()

	t.Run("Should send the segment-scoped percentage input", func(t *testing.T) {
		stub := newStubAdmin(t)
		stub.response = `{"data":{"discountAutomaticBasicCreate":{"automaticDiscountNode":{"id":"gid://shopify/DiscountAutomaticNode/1","automaticDiscount":{"title":"VIP Off","status":"ACTIVE"}},"userErrors":[]}}}`

		d, fieldErrs, err := stub.client().CreateAutomaticPercentageDiscount(
			ctx, "VIP Off", 0.15, "gid://shopify/Segment/1", time.Now())

		require.NoError(t, err)
		assert.Empty(t, fieldErrs)
		require.NotNil(t, d)
		assert.Equal(t, "gid://shopify/DiscountAutomaticNode/1", d.ID)
		assert.Equal(t, "ACTIVE", d.Status)

		vars := stub.variables(t)
		discount := vars["discount"].(map[string]any)
		customerGets := discount["customerGets"].(map[string]any)
		value := customerGets["value"].(map[string]any)
		assert.Equal(t, 0.15, value["percentage"], "the platform receives a fraction")

		segments := discount["context"].(map[string]any)["customerSegments"].(map[string]any)
		assert.Equal(t, []any{"gid://shopify/Segment/1"}, segments["add"])
	})
}

func TestGraphQLClient_Blob(t *testing.T) {
	ctx := context.Background()

	t.Run("Should report a missing metafield as not-ok", func(t *testing.T) {
		stub := newStubAdmin(t)
		stub.response = `{"data":{"shop":{"metafield":null}}}`

		value, ok, err := stub.client().GetBlob(ctx, "vip_pricing", "rules")

		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, value)
	})

	t.Run("Should return the stored value", func(t *testing.T) {
		stub := newStubAdmin(t)
		stub.response = `{"data":{"shop":{"metafield":{"value":"{\"version\":1,\"rules\":[]}"}}}}`

		value, ok, err := stub.client().GetBlob(ctx, "vip_pricing", "rules")

		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, `{"version":1,"rules":[]}`, value)
	})

	t.Run("Should write a json-typed metafield on the owner", func(t *testing.T) {
		stub := newStubAdmin(t)
		stub.response = `{"data":{"metafieldsSet":{"metafields":[{"id":"gid://shopify/Metafield/1"}],"userErrors":[]}}}`

		fieldErrs, err := stub.client().SetBlob(ctx, "gid://shopify/Shop/1", "vip_pricing", "rules", `{"version":1,"rules":[]}`)

		require.NoError(t, err)
		assert.Empty(t, fieldErrs)

		vars := stub.variables(t)
		fields := vars["metafields"].([]any)
		require.Len(t, fields, 1)
		field := fields[0].(map[string]any)
		assert.Equal(t, "gid://shopify/Shop/1", field["ownerId"])
		assert.Equal(t, "json", field["type"])
	})
}

func TestGraphQLClient_GetCustomer(t *testing.T) {
	ctx := context.Background()

	t.Run("Should normalize a bare id and decode the customer", func(t *testing.T) {
		stub := newStubAdmin(t)
		stub.response = `{"data":{"customer":{"id":"gid://shopify/Customer/42","displayName":"Ada Lovelace","email":"ada@example.com","tags":["VIP"],"numberOfOrders":"9"}}}`

		c, err := stub.client().GetCustomer(ctx, "42")

		require.NoError(t, err)
		require.NotNil(t, c)
		assert.Equal(t, "Ada Lovelace", c.DisplayName)
		assert.Equal(t, []string{"VIP"}, c.Tags)
		assert.Equal(t, int64(9), c.OrderCountDirect)

		vars := stub.variables(t)
		assert.Equal(t, "gid://shopify/Customer/42", vars["id"])
	})

	t.Run("Should return nil for an unknown customer", func(t *testing.T) {
		stub := newStubAdmin(t)
		stub.response = `{"data":{"customer":null}}`

		c, err := stub.client().GetCustomer(ctx, "404")

		require.NoError(t, err)
		assert.Nil(t, c)
	})
}

func TestNormalizeCustomerID(t *testing.T) {
	assert.Equal(t, "gid://shopify/Customer/42", NormalizeCustomerID("42"))
	assert.Equal(t, "gid://shopify/Customer/42", NormalizeCustomerID("gid://shopify/Customer/42"))
}

func TestParseFlexibleCount(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int64
	}{
		{"number", `9`, 9},
		{"quoted string", `"9"`, 9},
		{"null", `null`, 0},
		{"absent", ``, 0},
		{"garbage", `"many"`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseFlexibleCount(json.RawMessage(tt.raw)))
		})
	}
}
