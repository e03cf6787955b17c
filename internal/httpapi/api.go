// Package httpapi implements the HTTP surface of viptier: the admin rules
// API, the storefront proxy check endpoint, and the login analytics
// endpoint. It handles routing, request decoding, validation, and response
// formatting.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mfigueredo/viptier/internal/accesslog"
	"github.com/mfigueredo/viptier/internal/cache"
	"github.com/mfigueredo/viptier/internal/platform"
	"github.com/mfigueredo/viptier/internal/provision"
	"github.com/mfigueredo/viptier/internal/rulestore"
)

// RuleService is the read side of the rule store.
type RuleService interface {
	ListRules(ctx context.Context, ownerID string) ([]rulestore.Rule, error)
}

// ProvisionService orchestrates rule creation and deletion.
type ProvisionService interface {
	CreateRule(ctx context.Context, ownerID, tag, title string, percentPercent float64) (*rulestore.Rule, error)
	DeleteRule(ctx context.Context, ownerID, discountRef, segmentRef string) (provision.DeleteOutcome, error)
}

// CustomerLookup resolves a live customer view for classification.
type CustomerLookup interface {
	GetCustomer(ctx context.Context, customerID string) (*platform.Customer, error)
}

// AccessRecorder is the asynchronous access log sink.
type AccessRecorder interface {
	Record(e accesslog.Entry) accesslog.Outcome
}

// LogReader serves persisted access log entries for reporting.
type LogReader interface {
	ListByShop(ctx context.Context, shop string, limit int) ([]accesslog.Entry, error)
}

// Probe is a readiness check against one dependency.
type Probe func(ctx context.Context) error

// Deps aggregates the API's collaborators.
type Deps struct {
	Rules       RuleService
	Provisioner ProvisionService
	Customers   CustomerLookup
	Sink        AccessRecorder
	Logs        LogReader

	// RulesCache fronts Rules on the check path. Optional.
	RulesCache *cache.RulesCache

	// OwnerID is the shop entity id owning the rule set blob.
	OwnerID string

	// Shop is the configured shop domain, the fallback when a proxy
	// request carries no shop parameter.
	Shop string

	// IdentityKey selects the customer identity dimension recorded in the
	// access log (config.IdentityKeyID or config.IdentityKeyDisplayName).
	IdentityKey string

	// ReadyProbes are named dependency checks behind /health/ready.
	ReadyProbes map[string]Probe
}

// API holds dependencies and the router.
type API struct {
	Router *chi.Mux
	deps   Deps
}

// NewAPI creates the API and configures its routes.
// Panics when a required dependency is missing (fail fast at startup).
func NewAPI(deps Deps) *API {
	if deps.Rules == nil {
		panic("httpapi: rule service cannot be nil")
	}
	if deps.Provisioner == nil {
		panic("httpapi: provision service cannot be nil")
	}
	if deps.Customers == nil {
		panic("httpapi: customer lookup cannot be nil")
	}
	if deps.Sink == nil {
		panic("httpapi: access recorder cannot be nil")
	}
	if deps.Logs == nil {
		panic("httpapi: log reader cannot be nil")
	}

	a := &API{
		Router: chi.NewRouter(),
		deps:   deps,
	}

	a.configureRoutes()
	return a
}

// configureRoutes registers the global middleware stack and endpoints.
func (a *API) configureRoutes() {
	// RequestID: unique id per request, essential for tracing.
	a.Router.Use(middleware.RequestID)
	// RealIP: correct client IP behind a proxy/LB.
	a.Router.Use(middleware.RealIP)
	// RequestLogger: structured request log + metrics + scoped logger.
	a.Router.Use(RequestLogger)
	// Recoverer: 500 instead of a crashed process on panics.
	a.Router.Use(middleware.Recoverer)

	a.Router.Get("/health/live", a.handleLiveness)
	a.Router.Get("/health/ready", a.handleReadiness)
	a.Router.Handle("/metrics", promhttp.Handler())

	// Storefront-facing proxy endpoint. Response shape follows the
	// storefront script's contract (camelCase).
	a.Router.Get("/proxy/check", a.handleCheck)

	a.Router.Route("/api/v1", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Route("/rules", func(r chi.Router) {
			r.Post("/", a.handleCreateRule)
			r.Get("/", a.handleListRules)
			r.Delete("/", a.handleDeleteRule)
		})

		r.Get("/analytics/logins", a.handleLoginAnalytics)
	})
}

// handleLiveness reports that the process serves HTTP.
func (a *API) handleLiveness(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// handleReadiness runs every configured dependency probe.
func (a *API) handleReadiness(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := make(map[string]string, len(a.deps.ReadyProbes))

	for name, probe := range a.deps.ReadyProbes {
		if err := probe(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	render.Status(r, status)
	render.JSON(w, r, map[string]any{
		"status": http.StatusText(status),
		"checks": checks,
	})
}
