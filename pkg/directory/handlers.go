package directory

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/sims/pkg/httputil"
	"github.com/platinummonkey/sims/pkg/observability"
	"github.com/platinummonkey/sims/pkg/rbac"
)

// Handlers serves the directory endpoints. Routes expect the rbac access
// middleware to have run.
type Handlers struct {
	dir *Directory
}

// NewHandlers creates directory handlers
func NewHandlers(dir *Directory) *Handlers {
	return &Handlers{dir: dir}
}

// RegisterRoutes registers directory routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/directory/users", h.ListUsers).Methods("GET")
	router.Handle("/api/v1/directory/invalidate",
		rbac.RequirePermission(rbac.PermPerformApprovalIncidentClosure)(http.HandlerFunc(h.Invalidate))).Methods("POST")
}

// ListUsers handles GET /api/v1/directory/users?role=&plant=&prefix=&permission=
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := Query{
		Role:       r.URL.Query().Get("role"),
		Plant:      r.URL.Query().Get("plant"),
		Prefix:     r.URL.Query().Get("prefix"),
		Permission: rbac.Permission(r.URL.Query().Get("permission")),
	}
	if q.Permission != "" && !q.Permission.Valid() {
		httputil.WriteFailure(w, http.StatusBadRequest, "unknown permission: "+string(q.Permission))
		return
	}

	entries, err := h.dir.Find(r.Context(), q)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("Failed to list directory users")
		httputil.WriteFailure(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"users": entries,
		"count": len(entries),
	})
}

// Invalidate handles POST /api/v1/directory/invalidate
func (h *Handlers) Invalidate(w http.ResponseWriter, r *http.Request) {
	if err := h.dir.Invalidate(r.Context()); err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("Failed to invalidate directory cache")
		httputil.WriteFailure(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteNoContent(w)
}
