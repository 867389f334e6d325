package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeVerifier struct {
	tokens map[string]*Principal
}

func (f *fakeVerifier) Verify(ctx context.Context, raw string) (*Principal, error) {
	if p, ok := f.tokens[raw]; ok {
		return p, nil
	}
	return nil, errors.New("bad token")
}

func principalEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFromContext(r.Context())
		if p == nil {
			w.Write([]byte("anonymous"))
			return
		}
		w.Write([]byte(p.Email))
	})
}

func TestMiddleware_Handler(t *testing.T) {
	verifier := &fakeVerifier{tokens: map[string]*Principal{
		"good": {Subject: "1", Email: "alice@example.com"},
	}}

	tests := []struct {
		name       string
		optional   bool
		header     string
		wantStatus int
		wantBody   string
	}{
		{name: "valid token", header: "Bearer good", wantStatus: http.StatusOK, wantBody: "alice@example.com"},
		{name: "lowercase scheme", header: "bearer good", wantStatus: http.StatusOK, wantBody: "alice@example.com"},
		{name: "missing header", wantStatus: http.StatusUnauthorized},
		{name: "missing header optional", optional: true, wantStatus: http.StatusOK, wantBody: "anonymous"},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewMiddleware(verifier, tt.optional).Handler(principalEcho())
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestRequirePrincipal(t *testing.T) {
	handler := RequirePrincipal(principalEcho())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithPrincipal(req.Context(), &Principal{Email: "a@b.c"}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPrincipalFromContext_Empty(t *testing.T) {
	assert.Nil(t, PrincipalFromContext(context.Background()))
	var p *Principal
	assert.Equal(t, "", p.NormalizedEmail())
}

func TestMiddleware_NoVerifier(t *testing.T) {
	handler := NewMiddleware(nil, true).Handler(principalEcho())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "anonymous", rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
