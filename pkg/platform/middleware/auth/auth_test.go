package auth

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"kycgate/pkg/requestcontext"
)

type stubValidator struct {
	claims *JWTClaims
	err    error
	got    string
}

func (s *stubValidator) ValidateToken(token string) (*JWTClaims, error) {
	s.got = token
	return s.claims, s.err
}

func TestRequireAuth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var adminID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		adminID = requestcontext.AdminID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("missing header", func(t *testing.T) {
		v := &stubValidator{}
		w := httptest.NewRecorder()
		RequireAuth(v, logger)(next).ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), `"error":"unauthorized"`)
		assert.Empty(t, v.got)
	})

	t.Run("rejected token", func(t *testing.T) {
		v := &stubValidator{err: errors.New("bad signature")}
		r := httptest.NewRequest(http.MethodPatch, "/", nil)
		r.Header.Set("Authorization", "Bearer nope")
		w := httptest.NewRecorder()
		RequireAuth(v, logger)(next).ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "nope", v.got)
	})

	t.Run("valid token sets admin id", func(t *testing.T) {
		v := &stubValidator{claims: &JWTClaims{Subject: "admin1", Role: "admin"}}
		r := httptest.NewRequest(http.MethodPatch, "/", nil)
		r.Header.Set("Authorization", "Bearer good")
		w := httptest.NewRecorder()
		RequireAuth(v, logger)(next).ServeHTTP(w, r)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "admin1", adminID)
	})
}
