package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/mfigueredo/viptier/internal/logger"
	"github.com/mfigueredo/viptier/internal/provision"
	"github.com/mfigueredo/viptier/internal/rulestore"
)

// handleCreateRule processes the POST /api/v1/rules request.
//
// Responsibilities:
// 1. Decodes the JSON payload into the CreateRuleRequest DTO.
// 2. Sanitizes and Validates the input using the DTO's business logic.
// 3. Runs the provisioning saga (segment, discount, rule store append).
// 4. Maps saga errors to status codes: platform rejections become 422 with
//    the platform's message verbatim, input problems 400, the rest 500.
// 5. Returns the recorded rule with a 201 Created status.
func (a *API) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req CreateRuleRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("invalid json payload", slog.String("error", err.Error()))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INVALID_JSON",
			Message: "Invalid JSON payload: " + err.Error(),
		})
		return
	}

	req.Sanitize()

	if errResp := req.Validate(); errResp != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResp)
		return
	}

	rule, err := a.deps.Provisioner.CreateRule(r.Context(), a.deps.OwnerID, req.Tag, req.EffectiveTitle(), req.Percentage)
	if err != nil {
		var vErr *provision.ValidationError
		if errors.As(err, &vErr) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, ErrorResponse{
				Code:    "ERR_INVALID_INPUT",
				Message: vErr.Msg,
			})
			return
		}

		// The platform rejected one of the saga steps. Its message is the
		// actionable part ("Name already exists" and friends), so it is
		// passed through verbatim.
		var rErr *provision.RemoteError
		if errors.As(err, &rErr) {
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, ErrorResponse{
				Code:    "ERR_PLATFORM_REJECTED",
				Message: rErr.Message,
			})
			return
		}

		log.Error("failed to provision rule", slog.String("tag", req.Tag), slog.String("error", err.Error()))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INTERNAL",
			Message: "Failed to provision rule",
		})
		return
	}

	log.Info("rule created successfully",
		slog.String("tag", rule.Tag),
		slog.String("discount_id", rule.DiscountRef),
	)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, rule)
}

// handleListRules processes the GET /api/v1/rules request, returning the
// current rule set from the store (not the cache, so the admin always sees
// committed state).
func (a *API) handleListRules(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	rules, err := a.deps.Rules.ListRules(r.Context(), a.deps.OwnerID)
	if err != nil {
		var cErr *rulestore.CorruptStateError
		if errors.As(err, &cErr) {
			log.Error("rule set blob is corrupt", slog.String("error", err.Error()))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, ErrorResponse{
				Code:    "ERR_CORRUPT_STATE",
				Message: "Stored rule set is not valid JSON and needs operator attention",
			})
			return
		}

		log.Error("failed to list rules", slog.String("error", err.Error()))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INTERNAL",
			Message: "Failed to list rules",
		})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]any{"rules": rules})
}

// handleDeleteRule processes the DELETE /api/v1/rules request.
//
// Remote deletions are best-effort; the response reports each step so the
// operator can reconcile leftovers. Only a rule store failure is an error.
func (a *API) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req DeleteRuleRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("invalid json payload", slog.String("error", err.Error()))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INVALID_JSON",
			Message: "Invalid JSON payload: " + err.Error(),
		})
		return
	}

	req.Sanitize()

	if errResp := req.Validate(); errResp != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResp)
		return
	}

	outcome, err := a.deps.Provisioner.DeleteRule(r.Context(), a.deps.OwnerID, req.DiscountID, req.SegmentID)
	if err != nil {
		log.Error("failed to delete rule",
			slog.String("discount_id", req.DiscountID),
			slog.String("error", err.Error()),
		)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INTERNAL",
			Message: "Failed to remove rule from store",
		})
		return
	}

	log.Info("rule deleted",
		slog.String("discount_id", req.DiscountID),
		slog.Bool("discount_ok", outcome.Discount.OK),
		slog.Bool("segment_ok", outcome.Segment.OK),
	)
	render.Status(r, http.StatusOK)
	render.JSON(w, r, outcome)
}
