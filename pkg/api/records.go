package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/sims/pkg/auth"
	"github.com/platinummonkey/sims/pkg/httputil"
	"github.com/platinummonkey/sims/pkg/observability"
	"github.com/platinummonkey/sims/pkg/query"
	"github.com/platinummonkey/sims/pkg/rbac"
	"github.com/platinummonkey/sims/pkg/records"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// RecordHandlers serves submissions scoped to the caller's hierarchy
type RecordHandlers struct {
	store records.Store
}

// NewRecordHandlers creates record handlers
func NewRecordHandlers(store records.Store) *RecordHandlers {
	return &RecordHandlers{store: store}
}

// RegisterRoutes registers record routes. They expect the access middleware
// to have run.
func (h *RecordHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/records", h.listRecords).Methods("GET")
	router.HandleFunc("/api/v1/records", h.createRecord).Methods("POST")
	router.HandleFunc("/api/v1/records/{id}", h.getRecord).Methods("GET")
	router.HandleFunc("/api/v1/records/{id}", h.deleteRecord).Methods("DELETE")
	router.HandleFunc("/api/v1/records/{id}/status", h.updateStatus).Methods("PUT")
	router.HandleFunc("/api/v1/records/{id}/approve", h.approveRecord).Methods("POST")
	router.HandleFunc("/api/v1/records/{id}/reject", h.rejectRecord).Methods("POST")
}

// ListResponse is a page of records visible to the caller
type ListResponse struct {
	Records []*records.Submission `json:"records"`
	Total   int64                 `json:"total"`
	Limit   int                   `json:"limit"`
	Offset  int                   `json:"offset"`
}

// listRecords handles GET /api/v1/records?status=a,b&recordType=&limit=&offset=
func (h *RecordHandlers) listRecords(w http.ResponseWriter, r *http.Request) {
	access := rbac.AccessFromContext(r.Context())
	if !rbac.HasPermission(access, rbac.PermViewOpenClosedReports) {
		httputil.WriteForbidden(w, "Insufficient permissions")
		return
	}

	limit, err := httputil.QueryInt(r, "limit", defaultPageSize)
	if err != nil || limit <= 0 || limit > maxPageSize {
		httputil.WriteFailure(w, http.StatusBadRequest, "limit must be between 1 and 500")
		return
	}
	offset, err := httputil.QueryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		httputil.WriteFailure(w, http.StatusBadRequest, "offset must not be negative")
		return
	}

	business, err := businessFilter(r)
	if err != nil {
		httputil.WriteFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	filter := rbac.ScopedFilter(access, business)

	items, err := h.store.List(r.Context(), filter, records.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		h.internalError(w, r, err, "Failed to list records")
		return
	}
	total, err := h.store.Count(r.Context(), filter)
	if err != nil {
		h.internalError(w, r, err, "Failed to count records")
		return
	}

	httputil.WriteSuccess(w, ListResponse{
		Records: rbac.ApplyDataLevelSecurity(items, access),
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	})
}

// businessFilter reads the status list and record type query parameters
func businessFilter(r *http.Request) (query.Filter, error) {
	var parts []query.Filter

	if raw := r.URL.Query().Get("status"); raw != "" {
		var statuses []string
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if !records.ValidStatus(s) {
				return query.Filter{}, errors.New("unknown status: " + s)
			}
			statuses = append(statuses, s)
		}
		parts = append(parts, query.In(records.FieldStatus, statuses...))
	}
	if rt := r.URL.Query().Get("recordType"); rt != "" {
		if !records.ValidRecordType(records.RecordType(rt)) {
			return query.Filter{}, errors.New("unknown record type: " + rt)
		}
		parts = append(parts, query.Eq(records.FieldRecordType, rt))
	}
	return query.And(parts...), nil
}

// createRecord handles POST /api/v1/records
func (h *RecordHandlers) createRecord(w http.ResponseWriter, r *http.Request) {
	access := rbac.AccessFromContext(r.Context())

	var sub records.Submission
	if !httputil.ParseJSONOrError(w, r, &sub) {
		return
	}
	if !records.ValidRecordType(sub.RecordType) {
		httputil.WriteBadRequest(w, "unknown record type")
		return
	}
	if sub.Status == "" {
		sub.Status = records.StatusDraft
	}
	if sub.Status != records.StatusDraft && sub.Status != records.StatusOpen {
		httputil.WriteBadRequest(w, "new records start as Draft or Open")
		return
	}
	if !rbac.HasPermission(access, rbac.PermTakeFirstReportActions) ||
		!rbac.CheckHierarchyString(access, sub.HierarchyString) {
		httputil.WriteForbidden(w, "Insufficient permissions")
		return
	}

	sub.ID = ""
	sub.AttachmentKeys = nil
	sub.Source = "api"
	if p := auth.PrincipalFromContext(r.Context()); p != nil {
		sub.CreatedBy = p.NormalizedEmail()
	}

	if err := h.store.Create(r.Context(), &sub); err != nil {
		if errors.Is(err, records.ErrAlreadyExists) {
			httputil.WriteConflict(w, err.Error())
			return
		}
		h.internalError(w, r, err, "Failed to create record")
		return
	}
	_ = httputil.WriteJSON(w, http.StatusCreated, sub)
}

// getRecord handles GET /api/v1/records/{id}
func (h *RecordHandlers) getRecord(w http.ResponseWriter, r *http.Request) {
	sub, access, ok := h.load(w, r)
	if !ok {
		return
	}
	if !rbac.CanViewRecord(sub, access) {
		httputil.WriteForbidden(w, "Insufficient permissions")
		return
	}
	httputil.WriteSuccess(w, sub)
}

// StatusRequest is the body of a status update
type StatusRequest struct {
	Status string `json:"status"`
}

// updateStatus handles PUT /api/v1/records/{id}/status. Completed is only
// reachable through approve.
func (h *RecordHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !records.ValidStatus(req.Status) {
		httputil.WriteBadRequest(w, "unknown status")
		return
	}
	if req.Status == records.StatusCompleted {
		httputil.WriteBadRequest(w, "use approve to complete a record")
		return
	}

	sub, access, ok := h.load(w, r)
	if !ok {
		return
	}
	if !rbac.CanEditRecord(sub, access) {
		httputil.WriteForbidden(w, "Insufficient permissions")
		return
	}
	h.setStatus(w, r, sub, req.Status)
}

// approveRecord handles POST /api/v1/records/{id}/approve
func (h *RecordHandlers) approveRecord(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, records.StatusCompleted)
}

// rejectRecord handles POST /api/v1/records/{id}/reject
func (h *RecordHandlers) rejectRecord(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, records.StatusRejected)
}

func (h *RecordHandlers) review(w http.ResponseWriter, r *http.Request, status string) {
	sub, access, ok := h.load(w, r)
	if !ok {
		return
	}
	if !rbac.CanApproveRecord(sub, access) {
		httputil.WriteForbidden(w, "Insufficient permissions")
		return
	}
	h.setStatus(w, r, sub, status)
}

// deleteRecord handles DELETE /api/v1/records/{id}
func (h *RecordHandlers) deleteRecord(w http.ResponseWriter, r *http.Request) {
	sub, access, ok := h.load(w, r)
	if !ok {
		return
	}
	if !rbac.CanDeleteRecord(sub, access) {
		httputil.WriteForbidden(w, "Insufficient permissions")
		return
	}
	if err := h.store.Delete(r.Context(), sub.ID); err != nil {
		if errors.Is(err, records.ErrNotFound) {
			httputil.WriteNotFound(w, "record not found")
			return
		}
		h.internalError(w, r, err, "Failed to delete record")
		return
	}
	httputil.WriteNoContent(w)
}

func (h *RecordHandlers) setStatus(w http.ResponseWriter, r *http.Request, sub *records.Submission, status string) {
	if err := h.store.UpdateStatus(r.Context(), sub.ID, status); err != nil {
		if errors.Is(err, records.ErrNotFound) {
			httputil.WriteNotFound(w, "record not found")
			return
		}
		h.internalError(w, r, err, "Failed to update record status")
		return
	}
	sub.Status = status
	httputil.WriteSuccess(w, sub)
}

// load fetches the {id} record and the caller's access. It writes the
// response and returns false when either is missing.
func (h *RecordHandlers) load(w http.ResponseWriter, r *http.Request) (*records.Submission, *rbac.UserAccess, bool) {
	access := rbac.AccessFromContext(r.Context())
	if access == nil {
		httputil.WriteUnauthorized(w, "Authentication required")
		return nil, nil, false
	}

	id := mux.Vars(r)["id"]
	sub, err := h.store.Get(r.Context(), id)
	if errors.Is(err, records.ErrNotFound) {
		httputil.WriteNotFound(w, "record not found")
		return nil, nil, false
	}
	if err != nil {
		h.internalError(w, r, err, "Failed to load record")
		return nil, nil, false
	}
	return sub, access, true
}

func (h *RecordHandlers) internalError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	observability.FromContext(r.Context()).WithError(err).Error(msg)
	httputil.WriteInternalError(w, errors.New(strings.ToLower(msg)))
}
