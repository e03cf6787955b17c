package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mfigueredo/viptier/internal/config"
)

// Compile-time check to verify that GraphQLClient implements AdminClient.
var _ AdminClient = (*GraphQLClient)(nil)

// GraphQLClient implements AdminClient against the platform's Admin GraphQL
// endpoint. It owns request encoding and response decoding only; retry and
// signing policy belong to the transport and are out of scope here.
type GraphQLClient struct {
	httpClient *http.Client
	endpoint   string
	token      string
	logger     *slog.Logger
}

// NewGraphQLClient creates a client for the configured shop.
func NewGraphQLClient(cfg *config.PlatformConfig, logger *slog.Logger) *GraphQLClient {
	if cfg == nil {
		panic("platform: config cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &GraphQLClient{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		endpoint:   fmt.Sprintf("https://%s/admin/api/%s/graphql.json", cfg.ShopDomain, cfg.APIVersion),
		token:      cfg.AccessToken,
		logger:     logger,
	}
}

// graphqlRequest is the wire format of a GraphQL POST body.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphqlError is a top-level (non-field) GraphQL error.
type graphqlError struct {
	Message string `json:"message"`
}

// execute runs one GraphQL operation and decodes the "data" object into out.
// Top-level GraphQL errors are transport-level failures, not user errors.
func (c *GraphQLClient) execute(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to encode graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graphql request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read graphql response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("admin api returned non-200",
			slog.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("admin api returned status %d", resp.StatusCode)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphqlError  `json:"errors"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("failed to decode graphql response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("graphql error: %s", envelope.Errors[0].Message)
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to decode graphql data: %w", err)
		}
	}

	return nil
}

const segmentCreateMutation = `
mutation CreateSegment($name: String!, $query: String!) {
  segmentCreate(name: $name, query: $query) {
    segment {
      id
      name
    }
    userErrors {
      field
      message
    }
  }
}`

// CreateSegment creates a customer segment with the given membership query.
func (c *GraphQLClient) CreateSegment(ctx context.Context, name, query string) (*Segment, []FieldError, error) {
	var data struct {
		SegmentCreate struct {
			Segment *struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"segment"`
			UserErrors []FieldError `json:"userErrors"`
		} `json:"segmentCreate"`
	}

	err := c.execute(ctx, segmentCreateMutation, map[string]any{
		"name":  name,
		"query": query,
	}, &data)
	if err != nil {
		return nil, nil, err
	}

	if len(data.SegmentCreate.UserErrors) > 0 {
		return nil, data.SegmentCreate.UserErrors, nil
	}
	if data.SegmentCreate.Segment == nil {
		return nil, nil, fmt.Errorf("segmentCreate returned neither segment nor errors")
	}

	return &Segment{
		ID:   data.SegmentCreate.Segment.ID,
		Name: data.SegmentCreate.Segment.Name,
	}, nil, nil
}

const segmentDeleteMutation = `
mutation DeleteSegment($id: ID!) {
  segmentDelete(id: $id) {
    deletedSegmentId
    userErrors {
      field
      message
    }
  }
}`

// DeleteSegment deletes a segment by id.
func (c *GraphQLClient) DeleteSegment(ctx context.Context, segmentID string) ([]FieldError, error) {
	var data struct {
		SegmentDelete struct {
			UserErrors []FieldError `json:"userErrors"`
		} `json:"segmentDelete"`
	}

	err := c.execute(ctx, segmentDeleteMutation, map[string]any{"id": segmentID}, &data)
	if err != nil {
		return nil, err
	}
	return data.SegmentDelete.UserErrors, nil
}

const discountCreateMutation = `
mutation CreateNativeDiscount($discount: DiscountAutomaticBasicInput!) {
  discountAutomaticBasicCreate(automaticBasicDiscount: $discount) {
    automaticDiscountNode {
      id
      automaticDiscount {
        ... on DiscountAutomaticBasic {
          title
          status
        }
      }
    }
    userErrors {
      field
      message
    }
  }
}`

// CreateAutomaticPercentageDiscount creates a basic percentage-off automatic
// discount scoped to the segment, applying to all items, starting at startsAt.
func (c *GraphQLClient) CreateAutomaticPercentageDiscount(ctx context.Context, title string, percentage float64, segmentID string, startsAt time.Time) (*Discount, []FieldError, error) {
	var data struct {
		DiscountAutomaticBasicCreate struct {
			AutomaticDiscountNode *struct {
				ID                string `json:"id"`
				AutomaticDiscount struct {
					Title  string `json:"title"`
					Status string `json:"status"`
				} `json:"automaticDiscount"`
			} `json:"automaticDiscountNode"`
			UserErrors []FieldError `json:"userErrors"`
		} `json:"discountAutomaticBasicCreate"`
	}

	discount := map[string]any{
		"title":    title,
		"startsAt": startsAt.UTC().Format(time.RFC3339),
		"context": map[string]any{
			"customerSegments": map[string]any{
				"add": []string{segmentID},
			},
		},
		"customerGets": map[string]any{
			"value": map[string]any{
				"percentage": percentage,
			},
			"items": map[string]any{
				"all": true,
			},
		},
	}

	err := c.execute(ctx, discountCreateMutation, map[string]any{"discount": discount}, &data)
	if err != nil {
		return nil, nil, err
	}

	if len(data.DiscountAutomaticBasicCreate.UserErrors) > 0 {
		return nil, data.DiscountAutomaticBasicCreate.UserErrors, nil
	}
	node := data.DiscountAutomaticBasicCreate.AutomaticDiscountNode
	if node == nil {
		return nil, nil, fmt.Errorf("discountAutomaticBasicCreate returned neither node nor errors")
	}

	return &Discount{
		ID:     node.ID,
		Title:  node.AutomaticDiscount.Title,
		Status: node.AutomaticDiscount.Status,
	}, nil, nil
}

const discountDeleteMutation = `
mutation DeleteAutomaticDiscount($id: ID!) {
  discountAutomaticDelete(id: $id) {
    deletedAutomaticDiscountId
    userErrors {
      field
      message
    }
  }
}`

// DeleteAutomaticDiscount deletes an automatic discount node by id.
func (c *GraphQLClient) DeleteAutomaticDiscount(ctx context.Context, discountID string) ([]FieldError, error) {
	var data struct {
		DiscountAutomaticDelete struct {
			UserErrors []FieldError `json:"userErrors"`
		} `json:"discountAutomaticDelete"`
	}

	err := c.execute(ctx, discountDeleteMutation, map[string]any{"id": discountID}, &data)
	if err != nil {
		return nil, err
	}
	return data.DiscountAutomaticDelete.UserErrors, nil
}

const shopIDQuery = `
query ShopID {
  shop {
    id
  }
}`

// ShopID returns the shop entity's id, the owner of the rule set metafield.
func (c *GraphQLClient) ShopID(ctx context.Context) (string, error) {
	var data struct {
		Shop struct {
			ID string `json:"id"`
		} `json:"shop"`
	}

	if err := c.execute(ctx, shopIDQuery, nil, &data); err != nil {
		return "", err
	}
	if data.Shop.ID == "" {
		return "", fmt.Errorf("shop query returned empty id")
	}
	return data.Shop.ID, nil
}

const metafieldQuery = `
query ShopMetafield($namespace: String!, $key: String!) {
  shop {
    metafield(namespace: $namespace, key: $key) {
      value
    }
  }
}`

// GetBlob reads the namespaced metafield blob from the shop entity.
func (c *GraphQLClient) GetBlob(ctx context.Context, namespace, key string) (string, bool, error) {
	var data struct {
		Shop struct {
			Metafield *struct {
				Value string `json:"value"`
			} `json:"metafield"`
		} `json:"shop"`
	}

	err := c.execute(ctx, metafieldQuery, map[string]any{
		"namespace": namespace,
		"key":       key,
	}, &data)
	if err != nil {
		return "", false, err
	}

	if data.Shop.Metafield == nil {
		return "", false, nil
	}
	return data.Shop.Metafield.Value, true, nil
}

const metafieldsSetMutation = `
mutation SetShopMetafield($metafields: [MetafieldsSetInput!]!) {
  metafieldsSet(metafields: $metafields) {
    metafields {
      id
    }
    userErrors {
      field
      message
    }
  }
}`

// SetBlob writes the full metafield blob on the owner entity as a json-typed
// metafield.
func (c *GraphQLClient) SetBlob(ctx context.Context, ownerID, namespace, key, jsonValue string) ([]FieldError, error) {
	var data struct {
		MetafieldsSet struct {
			UserErrors []FieldError `json:"userErrors"`
		} `json:"metafieldsSet"`
	}

	err := c.execute(ctx, metafieldsSetMutation, map[string]any{
		"metafields": []map[string]any{{
			"ownerId":   ownerID,
			"namespace": namespace,
			"key":       key,
			"type":      "json",
			"value":     jsonValue,
		}},
	}, &data)
	if err != nil {
		return nil, err
	}
	return data.MetafieldsSet.UserErrors, nil
}

// The order count moved between schema versions: older versions expose
// ordersCount, newer ones numberOfOrders. We request both and tolerate
// either being absent or differently typed.
const customerQuery = `
query GetCustomer($id: ID!) {
  customer(id: $id) {
    id
    displayName
    email
    tags
    numberOfOrders
    ordersCount
  }
}`

// GetCustomer looks up a customer by gid. Returns nil when not found.
func (c *GraphQLClient) GetCustomer(ctx context.Context, customerID string) (*Customer, error) {
	var data struct {
		Customer *struct {
			ID             string          `json:"id"`
			DisplayName    string          `json:"displayName"`
			Email          string          `json:"email"`
			Tags           []string        `json:"tags"`
			NumberOfOrders json.RawMessage `json:"numberOfOrders"`
			OrdersCount    json.RawMessage `json:"ordersCount"`
		} `json:"customer"`
	}

	err := c.execute(ctx, customerQuery, map[string]any{"id": NormalizeCustomerID(customerID)}, &data)
	if err != nil {
		return nil, err
	}
	if data.Customer == nil {
		return nil, nil
	}

	return &Customer{
		ID:                      data.Customer.ID,
		DisplayName:             data.Customer.DisplayName,
		Email:                   data.Customer.Email,
		Tags:                    data.Customer.Tags,
		OrderCountDirect:        parseFlexibleCount(data.Customer.NumberOfOrders),
		OrderCountViaConnection: parseFlexibleCount(data.Customer.OrdersCount),
	}, nil
}

// NormalizeCustomerID expands a bare numeric id into the platform's gid form.
// Already-qualified ids pass through unchanged.
func NormalizeCustomerID(id string) string {
	if strings.HasPrefix(id, "gid://") {
		return id
	}
	return "gid://shopify/Customer/" + id
}

// parseFlexibleCount tolerates both representations the platform has used
// for order counts across API versions: a JSON number and a quoted string.
func parseFlexibleCount(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}

	var asNumber int64
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return asNumber
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if n, err := strconv.ParseInt(asString, 10, 64); err == nil {
			return n
		}
	}

	return 0
}
