// Package handler exposes administrative code management over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"askgate/internal/code"
	"askgate/internal/credential"
	"askgate/internal/platform/config"
	"askgate/internal/platform/middleware"
	dErrors "askgate/pkg/domain-errors"
	"askgate/pkg/platform/httputil"
	"askgate/pkg/requestcontext"
)

// Service defines the code operations the handler depends on.
type Service interface {
	Issue(ctx context.Context, in code.IssueInput) (code.Code, error)
	IssueBulk(ctx context.Context, inputs []code.IssueInput) (code.BulkIssueResult, error)
	Find(ctx context.Context, id string) (code.Code, error)
	List(ctx context.Context, filter code.ListFilter) ([]code.Code, error)
	Disable(ctx context.Context, id string) (code.Code, error)
	Stats(ctx context.Context) (code.Stats, error)
}

// Handler wires code endpoints to the code service.
type Handler struct {
	service  Service
	defaults config.Defaults
	logger   *slog.Logger
}

// New constructs a code handler with its dependencies. Policy defaults (grant
// role/tier for omitted fields, the batch ceiling) come from config so there
// is one place to change them.
func New(service Service, defaults config.Defaults, logger *slog.Logger) *Handler {
	return &Handler{service: service, defaults: defaults, logger: logger}
}

// Register mounts code endpoints on the router. Callers are expected to wrap
// the router in operator authentication.
func (h *Handler) Register(r chi.Router) {
	r.Post("/codes", h.HandleIssue)
	r.Post("/codes/bulk", h.HandleBulkIssue)
	r.Get("/codes", h.HandleList)
	r.Get("/codes/stats", h.HandleStats)
	r.Get("/codes/{id}", h.HandleGet)
	r.Post("/codes/{id}/disable", h.HandleDisable)
}

// HandleIssue handles POST /admin/codes requests.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[IssueRequest](w, r, h.logger)
	if !ok {
		return
	}

	c, err := h.service.Issue(ctx, req.ToInput(middleware.GetOperatorID(ctx), h.defaults))
	if err != nil {
		h.logger.ErrorContext(ctx, "code issuance failed",
			"request_id", requestcontext.RequestID(ctx),
			"role", req.Role,
			"tier", req.Tier,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, FromCode(c))
}

// HandleBulkIssue handles POST /admin/codes/bulk requests.
func (h *Handler) HandleBulkIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[BulkIssueRequest](w, r, h.logger)
	if !ok {
		return
	}
	if len(req.Codes) > h.defaults.BatchCeiling {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeInvalidInput,
			"at most %d codes per request", h.defaults.BatchCeiling))
		return
	}

	operatorID := middleware.GetOperatorID(ctx)
	inputs := make([]code.IssueInput, 0, len(req.Codes))
	indexOf := make([]int, 0, len(req.Codes))
	var rowErrors []credential.BulkError
	for i := range req.Codes {
		if err := req.Codes[i].Validate(); err != nil {
			rowErrors = append(rowErrors, credential.BulkError{Index: i, Message: dErrors.MessageOf(err)})
			continue
		}
		inputs = append(inputs, req.Codes[i].ToInput(operatorID, h.defaults))
		indexOf = append(indexOf, i)
	}

	result := code.BulkIssueResult{Errors: rowErrors}
	if len(inputs) > 0 {
		issued, err := h.service.IssueBulk(ctx, inputs)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		result.Created = issued.Created
		for _, bulkErr := range issued.Errors {
			bulkErr.Index = indexOf[bulkErr.Index]
			result.Errors = append(result.Errors, bulkErr)
		}
	}

	status := http.StatusCreated
	if len(result.Created) == 0 {
		status = http.StatusUnprocessableEntity
	}
	httputil.WriteJSON(w, status, FromBulkResult(result))
}

// HandleList handles GET /admin/codes requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter := code.ListFilter{
		CreatedBy: r.URL.Query().Get("created_by"),
	}
	if status := r.URL.Query().Get("status"); status != "" {
		parsed := code.Status(status)
		if !parsed.IsValid() {
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeInvalidInput, "unknown status %q", status))
			return
		}
		filter.Status = parsed
	}

	codes, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := ListResponse{Codes: []CodeResponse{}}
	for _, c := range codes {
		resp.Codes = append(resp.Codes, FromCode(c))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleGet handles GET /admin/codes/{id} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Find(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCode(c))
}

// HandleDisable handles POST /admin/codes/{id}/disable requests.
func (h *Handler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Disable(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCode(c))
}

// HandleStats handles GET /admin/codes/stats requests.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}
