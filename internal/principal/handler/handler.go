// Package handler exposes administrative principal management over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"askgate/internal/access"
	"askgate/internal/audit"
	"askgate/internal/platform/middleware"
	"askgate/internal/principal"
	"askgate/internal/query"
	dErrors "askgate/pkg/domain-errors"
	"askgate/pkg/platform/httputil"
)

const defaultHistoryLimit = 20

// Service defines the principal operations the handler depends on.
type Service interface {
	Find(ctx context.Context, externalID string) (principal.Profile, error)
	Update(ctx context.Context, externalID string, patch principal.UpdateInput) (principal.Profile, error)
	RepairNamespace(ctx context.Context, externalID, namespace, operatorID string) (principal.Profile, error)
	Namespaces(p principal.Profile) []string
	Stats(ctx context.Context) (principal.Stats, error)
}

// AuditReader lists the audit trail recorded for an external identity.
type AuditReader interface {
	List(ctx context.Context, externalID string) ([]audit.Event, error)
}

// HistoryReader lists a principal's recent queries, newest first.
type HistoryReader interface {
	History(ctx context.Context, principalID string, limit int) ([]query.Record, error)
}

// Handler wires principal endpoints to the principal service and the two read
// surfaces hanging off a principal: its audit trail and its query history.
type Handler struct {
	service Service
	audits  AuditReader
	history HistoryReader
	logger  *slog.Logger
}

// New constructs a principal handler with its dependencies.
func New(service Service, audits AuditReader, history HistoryReader, logger *slog.Logger) *Handler {
	return &Handler{service: service, audits: audits, history: history, logger: logger}
}

// Register mounts principal endpoints on the router. Callers are expected to
// wrap the router in operator authentication.
func (h *Handler) Register(r chi.Router) {
	r.Get("/principals/stats", h.HandleStats)
	r.Get("/principals/{externalID}", h.HandleGet)
	r.Patch("/principals/{externalID}", h.HandleUpdate)
	r.Post("/principals/{externalID}/namespace", h.HandleRepairNamespace)
	r.Get("/principals/{externalID}/audit", h.HandleAudit)
	r.Get("/principals/{externalID}/queries", h.HandleQueries)
}

// ProfileResponse is the HTTP shape of a principal profile.
type ProfileResponse struct {
	ID             string    `json:"id"`
	ExternalID     string    `json:"external_id"`
	DisplayName    string    `json:"display_name,omitempty"`
	Role           string    `json:"role"`
	Tier           string    `json:"tier"`
	Department     string    `json:"department,omitempty"`
	Namespace      string    `json:"namespace,omitempty"`
	Namespaces     []string  `json:"namespaces"`
	CredentialID   string    `json:"credential_id,omitempty"`
	MaxLevel       string    `json:"max_level"`
	FirstContactAt time.Time `json:"first_contact_at"`
	LastContactAt  time.Time `json:"last_contact_at"`
}

func (h *Handler) profileResponse(p principal.Profile) ProfileResponse {
	return ProfileResponse{
		ID:             p.ID,
		ExternalID:     p.ExternalID,
		DisplayName:    p.DisplayName,
		Role:           p.Role.String(),
		Tier:           p.Tier.String(),
		Department:     p.Department,
		Namespace:      p.Namespace,
		Namespaces:     h.service.Namespaces(p),
		CredentialID:   p.CredentialID,
		MaxLevel:       access.MaxLevel(p.AccessProfile()).String(),
		FirstContactAt: p.FirstContactAt,
		LastContactAt:  p.LastContactAt,
	}
}

// HandleGet handles GET /admin/principals/{externalID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Find(r.Context(), chi.URLParam(r, "externalID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.profileResponse(p))
}

// UpdateRequest is the HTTP request body for PATCH /admin/principals/{externalID}.
type UpdateRequest struct {
	DisplayName *string `json:"display_name"`
	Role        *string `json:"role"`
	Tier        *string `json:"tier"`
	Department  *string `json:"department"`

	parsed principal.UpdateInput
}

// Validate parses role and tier names.
func (r *UpdateRequest) Validate() error {
	r.parsed = principal.UpdateInput{
		DisplayName: r.DisplayName,
		Department:  r.Department,
	}
	if r.Role != nil {
		role, err := access.ParseRole(strings.TrimSpace(*r.Role))
		if err != nil {
			return dErrors.Newf(dErrors.CodeInvalidInput, "unknown role %q", *r.Role)
		}
		r.parsed.Role = &role
	}
	if r.Tier != nil {
		tier, err := access.ParseTier(strings.TrimSpace(*r.Tier))
		if err != nil {
			return dErrors.Newf(dErrors.CodeInvalidInput, "unknown tier %q", *r.Tier)
		}
		r.parsed.Tier = &tier
	}
	return nil
}

// HandleUpdate handles PATCH /admin/principals/{externalID} requests.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[UpdateRequest](w, r, h.logger)
	if !ok {
		return
	}

	p, err := h.service.Update(ctx, chi.URLParam(r, "externalID"), req.parsed)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.profileResponse(p))
}

// RepairNamespaceRequest is the HTTP request body for
// POST /admin/principals/{externalID}/namespace.
type RepairNamespaceRequest struct {
	Namespace string `json:"namespace"`
}

// Validate requires a namespace.
func (r *RepairNamespaceRequest) Validate() error {
	r.Namespace = strings.TrimSpace(r.Namespace)
	if r.Namespace == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "namespace is required")
	}
	return nil
}

// HandleRepairNamespace handles POST /admin/principals/{externalID}/namespace.
func (h *Handler) HandleRepairNamespace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[RepairNamespaceRequest](w, r, h.logger)
	if !ok {
		return
	}

	p, err := h.service.RepairNamespace(ctx, chi.URLParam(r, "externalID"),
		req.Namespace, middleware.GetOperatorID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.profileResponse(p))
}

// EventResponse is the HTTP shape of an audit event.
type EventResponse struct {
	ID          string            `json:"id"`
	Kind        string            `json:"kind"`
	PrincipalID string            `json:"principal_id,omitempty"`
	Result      string            `json:"result,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	Detail      map[string]string `json:"detail,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// AuditResponse wraps an identity's audit trail.
type AuditResponse struct {
	Events []EventResponse `json:"events"`
}

// HandleAudit handles GET /admin/principals/{externalID}/audit requests. The
// trail is keyed by external identity, so it covers pre-verification attempts
// too.
func (h *Handler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	events, err := h.audits.List(r.Context(), chi.URLParam(r, "externalID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := AuditResponse{Events: []EventResponse{}}
	for _, e := range events {
		resp.Events = append(resp.Events, EventResponse{
			ID:          e.ID,
			Kind:        string(e.Kind),
			PrincipalID: e.PrincipalID,
			Result:      e.Result,
			Reason:      e.Reason,
			Detail:      e.Detail,
			Timestamp:   e.Timestamp,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// QueryRecordResponse is the HTTP shape of a logged query.
type QueryRecordResponse struct {
	ID         string    `json:"id"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer,omitempty"`
	Status     string    `json:"status"`
	Namespaces []string  `json:"namespaces,omitempty"`
	LatencyMS  int64     `json:"latency_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// QueriesResponse wraps a principal's query history.
type QueriesResponse struct {
	Queries []QueryRecordResponse `json:"queries"`
}

// HandleQueries handles GET /admin/principals/{externalID}/queries requests.
func (h *Handler) HandleQueries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeInvalidInput, "invalid limit %q", raw))
			return
		}
		limit = parsed
	}

	// The log is keyed by principal id; resolve the external identity first.
	p, err := h.service.Find(ctx, chi.URLParam(r, "externalID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	records, err := h.history.History(ctx, p.ID, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := QueriesResponse{Queries: []QueryRecordResponse{}}
	for _, rec := range records {
		resp.Queries = append(resp.Queries, QueryRecordResponse{
			ID:         rec.ID,
			Question:   rec.Question,
			Answer:     rec.Answer,
			Status:     rec.Status,
			Namespaces: rec.Namespaces,
			LatencyMS:  rec.LatencyMS,
			CreatedAt:  rec.CreatedAt,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleStats handles GET /admin/principals/stats requests.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}
