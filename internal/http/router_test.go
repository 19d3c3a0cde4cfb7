package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"

	"askgate/internal/access"
	"askgate/internal/platform/middleware"
	"askgate/pkg/testutil"
)

type stubRegistrar struct {
	path string
}

func (s stubRegistrar) Register(r chi.Router) {
	r.Get(s.path, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

type stubValidator struct {
	claims *middleware.OperatorClaims
}

func (s stubValidator) ValidateToken(token string) (*middleware.OperatorClaims, error) {
	if s.claims == nil {
		return nil, errors.New("invalid token")
	}
	return s.claims, nil
}

func newTestRouter(validator middleware.TokenValidator, health func() error) http.Handler {
	return NewRouter(Deps{
		Webhook:    stubRegistrar{path: "/webhook/chat"},
		Admin:      []Registrar{stubRegistrar{path: "/codes"}},
		TokenCheck: validator,
		Logger:     slog.Default(),
		Health:     health,
	})
}

func TestRouter(t *testing.T) {
	t.Run("healthz reports ok", func(t *testing.T) {
		r := newTestRouter(stubValidator{}, nil)
		rr := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodGet, "/healthz", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)
	})

	t.Run("healthz reports degraded when a dependency fails", func(t *testing.T) {
		r := newTestRouter(stubValidator{}, func() error { return errors.New("db down") })
		rr := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodGet, "/healthz", nil))
		testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
	})

	t.Run("metrics endpoint is exposed", func(t *testing.T) {
		r := newTestRouter(stubValidator{}, nil)
		rr := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodGet, "/metrics", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)
	})

	t.Run("webhook is reachable without credentials", func(t *testing.T) {
		r := newTestRouter(stubValidator{}, nil)
		rr := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodGet, "/webhook/chat", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)
	})

	t.Run("admin surface rejects a missing token", func(t *testing.T) {
		r := newTestRouter(stubValidator{}, nil)
		rr := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodGet, "/admin/codes", nil))
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	t.Run("admin surface rejects a non-admin operator", func(t *testing.T) {
		r := newTestRouter(stubValidator{claims: &middleware.OperatorClaims{
			OperatorID: "op-1",
			Role:       access.RoleManager,
		}}, nil)
		req := testutil.NewJSONRequest(t, http.MethodGet, "/admin/codes", nil)
		req.Header.Set("Authorization", "Bearer token")
		rr := testutil.DoRequest(r, req)
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})

	t.Run("admin surface admits an admin operator", func(t *testing.T) {
		r := newTestRouter(stubValidator{claims: &middleware.OperatorClaims{
			OperatorID: "op-1",
			Role:       access.RoleAdmin,
		}}, nil)
		req := testutil.NewJSONRequest(t, http.MethodGet, "/admin/codes", nil)
		req.Header.Set("Authorization", "Bearer token")
		rr := testutil.DoRequest(r, req)
		testutil.AssertStatus(t, rr, http.StatusOK)
	})
}
