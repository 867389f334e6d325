package rbac

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/sims/pkg/httputil"
	"github.com/platinummonkey/sims/pkg/query"
)

// Invalidator drops memoized access records
type Invalidator interface {
	Invalidate(email string)
	InvalidateAll()
}

// Handlers serves the access endpoints. Routes expect AccessMiddleware to
// have run.
type Handlers struct {
	invalidator Invalidator
}

// NewHandlers creates access handlers
func NewHandlers(invalidator Invalidator) *Handlers {
	return &Handlers{invalidator: invalidator}
}

// RegisterRoutes registers access routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/access/me", h.Me).Methods("GET")
	router.HandleFunc("/api/v1/access/check", h.Check).Methods("GET")
	router.Handle("/api/v1/access/invalidate",
		RequirePermission(PermPerformApprovalIncidentClosure)(http.HandlerFunc(h.Invalidate))).Methods("POST")
}

// MeResponse describes the caller's resolved access
type MeResponse struct {
	Access                *UserAccess   `json:"access"`
	AccessibleHierarchies []string      `json:"accessibleHierarchies"`
	Granted               []Permission  `json:"granted"`
	Filter                *query.Filter `json:"filter,omitempty"`
}

// Me handles GET /api/v1/access/me
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	access := AccessFromContext(r.Context())
	if access == nil {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	resp := MeResponse{
		Access:                access,
		AccessibleHierarchies: access.AccessibleHierarchies(),
		Granted:               access.Permissions.Granted(),
	}
	if f := BuildHierarchyFilter(access); !f.IsEmpty() && !f.IsNone() {
		resp.Filter = &f
	}
	httputil.WriteSuccess(w, resp)
}

// Check handles GET /api/v1/access/check?permission=&hierarchy=
func (h *Handlers) Check(w http.ResponseWriter, r *http.Request) {
	access := AccessFromContext(r.Context())
	if access == nil {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	resp := map[string]interface{}{}
	if name := r.URL.Query().Get("permission"); name != "" {
		resp["permission"] = name
		resp["hasPermission"] = HasPermissionNamed(access, name)
	}
	if target, ok := r.URL.Query()["hierarchy"]; ok && len(target) > 0 {
		resp["hierarchy"] = target[0]
		resp["hasAccess"] = CheckHierarchyString(access, target[0])
	}
	if len(resp) == 0 {
		httputil.WriteBadRequest(w, "permission or hierarchy is required")
		return
	}
	httputil.WriteSuccess(w, resp)
}

// Invalidate handles POST /api/v1/access/invalidate?email=
func (h *Handlers) Invalidate(w http.ResponseWriter, r *http.Request) {
	if email := r.URL.Query().Get("email"); email != "" {
		h.invalidator.Invalidate(email)
	} else {
		h.invalidator.InvalidateAll()
	}
	httputil.WriteNoContent(w)
}
