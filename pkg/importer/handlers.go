package importer

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/sims/pkg/httputil"
	"github.com/platinummonkey/sims/pkg/observability"
	"github.com/platinummonkey/sims/pkg/rbac"
)

// Service is what the import endpoints drive
type Service interface {
	Stage(ctx context.Context, sheetType string) (*Summary, error)
	Copy(ctx context.Context, sheetType string, opts CopyOptions) (*Summary, error)
	Run(ctx context.Context, sheetType string, opts CopyOptions) (*RunResult, error)
}

// Handlers serves the import endpoints
type Handlers struct {
	svc Service
}

// NewHandlers creates import handlers
func NewHandlers(svc Service) *Handlers {
	return &Handlers{svc: svc}
}

// RegisterRoutes registers the import routes behind the approval permission
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	gate := rbac.RequirePermission(rbac.PermPerformApprovalIncidentClosure)
	router.Handle("/api/v1/import/{sheetType}/stage", gate(http.HandlerFunc(h.Stage))).Methods("GET", "POST")
	router.Handle("/api/v1/import/{sheetType}/copy", gate(http.HandlerFunc(h.Copy))).Methods("GET", "POST")
	router.Handle("/api/v1/import/{sheetType}/run", gate(http.HandlerFunc(h.Run))).Methods("GET", "POST")
}

// Stage handles /api/v1/import/{sheetType}/stage
func (h *Handlers) Stage(w http.ResponseWriter, r *http.Request) {
	sheetType := mux.Vars(r)["sheetType"]
	summary, err := h.svc.Stage(r.Context(), sheetType)
	if err != nil {
		writeImportError(w, r, sheetType, err)
		return
	}
	httputil.WriteSuccess(w, summary)
}

// Copy handles /api/v1/import/{sheetType}/copy?skipDuplicates=
func (h *Handlers) Copy(w http.ResponseWriter, r *http.Request) {
	sheetType := mux.Vars(r)["sheetType"]
	opts, ok := copyOptions(w, r)
	if !ok {
		return
	}
	summary, err := h.svc.Copy(r.Context(), sheetType, opts)
	if err != nil {
		writeImportError(w, r, sheetType, err)
		return
	}
	httputil.WriteSuccess(w, summary)
}

// Run handles /api/v1/import/{sheetType}/run?skipDuplicates=
func (h *Handlers) Run(w http.ResponseWriter, r *http.Request) {
	sheetType := mux.Vars(r)["sheetType"]
	opts, ok := copyOptions(w, r)
	if !ok {
		return
	}
	result, err := h.svc.Run(r.Context(), sheetType, opts)
	if err != nil {
		writeImportError(w, r, sheetType, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

func copyOptions(w http.ResponseWriter, r *http.Request) (CopyOptions, bool) {
	skip, err := httputil.QueryBool(r, "skipDuplicates", false)
	if err != nil {
		httputil.WriteFailure(w, http.StatusBadRequest, err.Error())
		return CopyOptions{}, false
	}
	return CopyOptions{SkipDuplicates: skip}, true
}

func writeImportError(w http.ResponseWriter, r *http.Request, sheetType string, err error) {
	if errors.Is(err, ErrUnknownSheetType) {
		httputil.WriteFailure(w, http.StatusNotFound, err.Error())
		return
	}
	observability.FromContext(r.Context()).
		WithError(err).
		WithField("sheet_type", sheetType).
		Error("Import failed")
	httputil.WriteFailure(w, http.StatusInternalServerError, err.Error())
}
