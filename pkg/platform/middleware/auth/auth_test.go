package auth

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	id "onboarding/pkg/domain"
	"onboarding/pkg/requestcontext"
)

type stubValidator struct {
	claims *JWTClaims
	err    error
}

func (s stubValidator) ValidateToken(string) (*JWTClaims, error) {
	return s.claims, s.err
}

func newTestRouter(v JWTValidator) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	r.With(RequireAuth(v, logger), RequireSubjectMatch("customerID", logger)).
		Get("/customers/{customerID}", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(requestcontext.CustomerID(r.Context()).String()))
		})
	return r
}

func TestRequireAuth(t *testing.T) {
	owner := id.NewCustomerID()
	other := id.NewCustomerID()

	tests := []struct {
		name      string
		header    string
		validator JWTValidator
		path      string
		want      int
	}{
		{"missing header", "", stubValidator{}, "/customers/" + owner.String(), http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", stubValidator{}, "/customers/" + owner.String(), http.StatusUnauthorized},
		{"invalid token", "Bearer bad", stubValidator{err: errors.New("bad")}, "/customers/" + owner.String(), http.StatusUnauthorized},
		{"subject mismatch", "Bearer ok", stubValidator{claims: &JWTClaims{CustomerID: other}}, "/customers/" + owner.String(), http.StatusForbidden},
		{"subject match", "Bearer ok", stubValidator{claims: &JWTClaims{CustomerID: owner}}, "/customers/" + owner.String(), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			newTestRouter(tt.validator).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, owner.String(), rec.Body.String())
			}
		})
	}
}
