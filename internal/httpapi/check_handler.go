package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/render"

	"github.com/mfigueredo/viptier/internal/accesslog"
	"github.com/mfigueredo/viptier/internal/classifier"
	"github.com/mfigueredo/viptier/internal/config"
	"github.com/mfigueredo/viptier/internal/logger"
	"github.com/mfigueredo/viptier/internal/observability"
	"github.com/mfigueredo/viptier/internal/rulestore"
)

// handleCheck processes the GET /proxy/check request, the storefront hot
// path.
//
// Responsibilities:
// 1. Resolves the shop (query parameter, falling back to the configured
//    domain) and the visitor's customer id.
// 2. Looks up the live customer view on the platform.
// 3. Loads the active rule set read-through the cache tiers.
// 4. Classifies the customer's tags against the rules.
// 5. Queues an access log entry for granted accesses (fire-and-forget).
//
// Every degenerate input (no customer id, unknown customer) is a 200 with
// isVip=false; only platform or store failures produce a 500, and those stay
// generic so nothing internal leaks to the storefront.
func (a *API) handleCheck(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	shop := strings.TrimSpace(r.URL.Query().Get("shop"))
	if shop == "" {
		shop = a.deps.Shop
	}

	customerID := strings.TrimSpace(r.URL.Query().Get("customerId"))
	if customerID == "" {
		render.Status(r, http.StatusOK)
		render.JSON(w, r, CheckResponse{
			IsVIP:       false,
			Tags:        []string{},
			OrdersCount: "0",
			Message:     "No customer ID provided",
		})
		return
	}

	customer, err := a.deps.Customers.GetCustomer(r.Context(), customerID)
	if err != nil {
		log.Error("customer lookup failed",
			slog.String("customer_id", customerID),
			slog.String("error", err.Error()),
		)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, CheckResponse{
			IsVIP:       false,
			Tags:        []string{},
			OrdersCount: "0",
			Message:     "Server Error",
		})
		return
	}
	if customer == nil {
		render.Status(r, http.StatusOK)
		render.JSON(w, r, CheckResponse{
			IsVIP:       false,
			Tags:        []string{},
			OrdersCount: "0",
		})
		return
	}

	rules, err := a.loadRules(r)
	if err != nil {
		log.Error("failed to load rule set", slog.String("error", err.Error()))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, CheckResponse{
			IsVIP:       false,
			Tags:        []string{},
			OrdersCount: "0",
			Message:     "Server Error",
		})
		return
	}

	res := classifier.Classify(customer.Tags, rules)
	observability.ClassificationTotal.WithLabelValues(strconv.FormatBool(res.IsVIP)).Inc()

	ordersCount := accesslog.OrdersCount(customer.OrderCountDirect, customer.OrderCountViaConnection, 0, true)

	logStatus := "not vip"
	if res.IsVIP {
		logStatus = a.recordAccess(shop, customer.ID, customer.DisplayName, res.MatchedTags, ordersCount)
	}

	matched := res.MatchedTags
	if matched == nil {
		matched = []string{}
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, CheckResponse{
		IsVIP:        res.IsVIP,
		Tags:         matched,
		CustomerName: customer.DisplayName,
		OrdersCount:  strconv.FormatInt(ordersCount, 10),
		Debug: &CheckDebug{
			Shop:      shop,
			LogStatus: logStatus,
		},
	})
}

// loadRules serves the active rule set read-through the cache tiers,
// falling back to the rule store on a miss (or when no cache is wired).
func (a *API) loadRules(r *http.Request) ([]rulestore.Rule, error) {
	ownerID := a.deps.OwnerID

	if a.deps.RulesCache != nil {
		if rules, ok := a.deps.RulesCache.Get(r.Context(), ownerID); ok {
			return rules, nil
		}
		observability.RuleCacheMisses.Inc()
	}

	rules, err := a.deps.Rules.ListRules(r.Context(), ownerID)
	if err != nil {
		return nil, err
	}

	if a.deps.RulesCache != nil {
		a.deps.RulesCache.Set(r.Context(), ownerID, rules)
	}

	return rules, nil
}

// recordAccess queues the access log entry for a granted access and returns
// the sink's status for the debug payload. A missing shop skips logging; an
// entry cannot be attributed without one.
func (a *API) recordAccess(shop, customerID, displayName string, matchedTags []string, ordersCount int64) string {
	if shop == "" {
		return "skipped: missing shop"
	}

	key := customerID
	if a.deps.IdentityKey == config.IdentityKeyDisplayName && displayName != "" {
		key = displayName
	}

	outcome := a.deps.Sink.Record(accesslog.Entry{
		Shop:        shop,
		CustomerKey: key,
		TagSnapshot: strings.Join(matchedTags, ", "),
		OrdersCount: ordersCount,
	})

	if outcome.Reason != "" {
		return outcome.Status + ": " + outcome.Reason
	}
	return outcome.Status
}
