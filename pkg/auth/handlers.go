package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/sims/pkg/httputil"
)

const stateCookie = "sims_oidc_state"

// LoginFlow is the authorization-code flow used by the login handlers
type LoginFlow interface {
	AuthCodeURL(state string) (string, error)
	Exchange(ctx context.Context, code string) (string, *Principal, error)
}

// Handlers serves the browser login flow
type Handlers struct {
	flow LoginFlow
}

// NewHandlers creates login handlers
func NewHandlers(flow LoginFlow) *Handlers {
	return &Handlers{flow: flow}
}

// RegisterRoutes registers login routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/login", h.login).Methods("GET")
	router.HandleFunc("/auth/callback", h.callback).Methods("GET")
}

// login handles GET /auth/login
func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	stateBytes := make([]byte, 32)
	if _, err := rand.Read(stateBytes); err != nil {
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to generate state")
		return
	}
	state := base64.URLEncoding.EncodeToString(stateBytes)

	authURL, err := h.flow.AuthCodeURL(state)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int((10 * time.Minute).Seconds()),
	})
	http.Redirect(w, r, authURL, http.StatusFound)
}

// callback handles GET /auth/callback
func (h *Handlers) callback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		httputil.WriteBadRequest(w, "invalid state parameter")
		return
	}

	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	rawIDToken, principal, err := h.flow.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		httputil.WriteUnauthorized(w, err.Error())
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"idToken":   rawIDToken,
		"principal": principal,
	})
}
