// Package handler exposes administrative credential management over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"askgate/internal/credential"
	"askgate/internal/platform/config"
	"askgate/internal/platform/middleware"
	dErrors "askgate/pkg/domain-errors"
	"askgate/pkg/platform/httputil"
	"askgate/pkg/requestcontext"
)

// Service defines the credential operations the handler depends on.
type Service interface {
	Create(ctx context.Context, in credential.CreateInput) (credential.Credential, error)
	CreateBulk(ctx context.Context, inputs []credential.CreateInput) (credential.BulkResult, error)
	Find(ctx context.Context, id string) (credential.Credential, error)
	FindByEmail(ctx context.Context, email string) (credential.Credential, error)
	FindByEmployeeID(ctx context.Context, employeeID string) (credential.Credential, error)
	Update(ctx context.Context, id string, patch credential.UpdateInput) (credential.Credential, error)
	SoftDelete(ctx context.Context, id string) error
	Stats(ctx context.Context) (credential.Stats, error)
}

// Handler wires credential endpoints to the credential service.
type Handler struct {
	service  Service
	defaults config.Defaults
	logger   *slog.Logger
}

// New constructs a credential handler with its dependencies. Policy defaults
// (the batch ceiling) come from config so there is one place to change them.
func New(service Service, defaults config.Defaults, logger *slog.Logger) *Handler {
	return &Handler{service: service, defaults: defaults, logger: logger}
}

// Register mounts credential endpoints on the router. Callers are expected to
// wrap the router in operator authentication.
func (h *Handler) Register(r chi.Router) {
	r.Post("/credentials", h.HandleCreate)
	r.Post("/credentials/bulk", h.HandleBulkCreate)
	r.Get("/credentials/stats", h.HandleStats)
	r.Get("/credentials/{id}", h.HandleGet)
	r.Get("/credentials", h.HandleLookup)
	r.Patch("/credentials/{id}", h.HandleUpdate)
	r.Delete("/credentials/{id}", h.HandleDelete)
}

// HandleCreate handles POST /admin/credentials requests.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger)
	if !ok {
		return
	}

	cred, err := h.service.Create(ctx, req.ToInput(middleware.GetOperatorID(ctx)))
	if err != nil {
		h.logger.ErrorContext(ctx, "credential create failed",
			"request_id", requestcontext.RequestID(ctx),
			"employee_id", req.EmployeeID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, FromCredential(cred))
}

// HandleBulkCreate handles POST /admin/credentials/bulk requests.
func (h *Handler) HandleBulkCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[BulkCreateRequest](w, r, h.logger)
	if !ok {
		return
	}
	if len(req.Credentials) > h.defaults.BatchCeiling {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeInvalidInput,
			"at most %d credentials per request", h.defaults.BatchCeiling))
		return
	}

	// Row validation failures become per-row errors, not a rejected batch.
	operatorID := middleware.GetOperatorID(ctx)
	inputs := make([]credential.CreateInput, 0, len(req.Credentials))
	indexOf := make([]int, 0, len(req.Credentials))
	var rowErrors []credential.BulkError
	for i := range req.Credentials {
		if err := req.Credentials[i].Validate(); err != nil {
			rowErrors = append(rowErrors, credential.BulkError{Index: i, Message: dErrors.MessageOf(err)})
			continue
		}
		inputs = append(inputs, req.Credentials[i].ToInput(operatorID))
		indexOf = append(indexOf, i)
	}

	result := credential.BulkResult{Errors: rowErrors}
	if len(inputs) > 0 {
		created, err := h.service.CreateBulk(ctx, inputs)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		result.Created = created.Created
		for _, bulkErr := range created.Errors {
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

// HandleGet handles GET /admin/credentials/{id} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	cred, err := h.service.Find(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCredential(cred))
}

// HandleLookup handles GET /admin/credentials?email= / ?employee_id= requests.
func (h *Handler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		cred credential.Credential
		err  error
	)
	switch {
	case r.URL.Query().Get("email") != "":
		cred, err = h.service.FindByEmail(ctx, r.URL.Query().Get("email"))
	case r.URL.Query().Get("employee_id") != "":
		cred, err = h.service.FindByEmployeeID(ctx, r.URL.Query().Get("employee_id"))
	default:
		err = dErrors.New(dErrors.CodeInvalidInput, "email or employee_id query parameter is required")
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCredential(cred))
}

// HandleUpdate handles PATCH /admin/credentials/{id} requests.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[UpdateRequest](w, r, h.logger)
	if !ok {
		return
	}

	cred, err := h.service.Update(ctx, chi.URLParam(r, "id"), req.ToInput())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCredential(cred))
}

// HandleDelete handles DELETE /admin/credentials/{id} requests. The record is
// retired, not removed.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.SoftDelete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleStats handles GET /admin/credentials/stats requests.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}
