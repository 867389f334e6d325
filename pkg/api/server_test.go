package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/sims/pkg/auth"
	"github.com/platinummonkey/sims/pkg/hierarchy"
	"github.com/platinummonkey/sims/pkg/observability"
	"github.com/platinummonkey/sims/pkg/rbac"
	"github.com/platinummonkey/sims/pkg/records"
)

const (
	plantX   = "ITW>Automotive>Fasteners>North>PlantX"
	plantY   = "ITW>Automotive>Fasteners>North>PlantY"
	plantZ   = "ITW>Construction>Tools>South>PlantZ"
	division = "ITW>Automotive>Fasteners>North"
)

// tokenVerifier treats the bearer token as the email
type tokenVerifier struct{}

func (tokenVerifier) Verify(ctx context.Context, rawToken string) (*auth.Principal, error) {
	if rawToken == "expired" {
		return nil, errors.New("token expired")
	}
	return &auth.Principal{Subject: rawToken, Email: rawToken}, nil
}

type testEnv struct {
	server  *Server
	records *records.PostgresStore
}

func setupServer(t *testing.T) *testEnv {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`PRAGMA case_sensitive_like = true`)
	require.NoError(t, err)
	return newTestEnv(t, db)
}

// newTestEnv creates the tables on db, seeds roles and records, and builds
// the server over them
func newTestEnv(t *testing.T, db *sql.DB) *testEnv {
	t.Helper()
	for _, stmt := range append(rbac.Schema(rbac.Tables{}), records.Schema(records.DefaultTable)) {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	ctx := context.Background()
	roles := rbac.NewPostgresStore(db, rbac.Tables{})
	assignments := []*rbac.RoleAssignment{
		{Email: "plant@example.com", Name: "Pat", RoleTitle: "Plant Supervisor", Level: hierarchy.LevelPlant, HierarchyString: plantX, Active: true},
		{Email: "division@example.com", Name: "Dana", RoleTitle: "Division Manager", Level: hierarchy.LevelDivision, HierarchyString: division, Active: true},
		{Email: "admin@example.com", Name: "Ari", RoleTitle: "Enterprise Admin", Level: hierarchy.LevelEnterprise, HierarchyString: "ITW", Active: true},
		{Email: "reporter@example.com", Name: "Rae", RoleTitle: "Reporter", Level: hierarchy.LevelPlant, HierarchyString: plantX, Active: true},
	}
	for _, a := range assignments {
		require.NoError(t, roles.SaveAssignment(ctx, a))
	}
	perms := map[string]map[string]interface{}{
		"Plant Supervisor": {"canViewOpenClosedReports": true, "canTakeFirstReportActions": true},
		"Division Manager": {"canViewOpenClosedReports": true, "canTakeFirstReportActions": "true", "canPerformApprovalIncidentClosure": true},
		"Enterprise Admin": {"canViewOpenClosedReports": true, "canTakeFirstReportActions": true, "canPerformApprovalIncidentClosure": true},
		"Reporter":         {"canReportInjury": true},
	}
	for title, p := range perms {
		require.NoError(t, roles.SaveRolePermissions(ctx, title, p))
	}

	store := records.NewPostgresStore(db, "")
	for _, sub := range []*records.Submission{
		{ID: "injury_1", RecordType: records.TypeInjury, Status: records.StatusOpen, HierarchyString: plantX},
		{ID: "injury_2", RecordType: records.TypeInjury, Status: records.StatusPendingReview, HierarchyString: plantY},
		{ID: "injury_3", RecordType: records.TypeInjury, Status: records.StatusDraft, HierarchyString: plantZ},
		{ID: "observation_4", RecordType: records.TypeObservation, Status: records.StatusPendingReview, HierarchyString: plantX},
	} {
		require.NoError(t, store.Upsert(ctx, sub))
	}

	server := NewServer(Deps{
		Records:  store,
		Resolver: rbac.NewResolver(roles, rbac.ResolverConfig{}),
		Verifier: tokenVerifier{},
		Logger:   observability.NewLogger(observability.ErrorLevel, io.Discard),
		Metrics:  observability.NewMetrics(prometheus.NewRegistry()),
	})
	return &testEnv{server: server, records: store}
}

func (e *testEnv) do(t *testing.T, method, target, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	r := httptest.NewRequest(method, target, reader)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.server.ServeHTTP(w, r)
	return w
}

func listIDs(t *testing.T, w *httptest.ResponseRecorder) ([]string, int64) {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	ids := make([]string, len(resp.Records))
	for i, rec := range resp.Records {
		ids[i] = rec.ID
	}
	return ids, resp.Total
}

func TestServer_Authentication(t *testing.T) {
	env := setupServer(t)

	w := env.do(t, http.MethodGet, "/api/v1/records", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/records", "expired", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/records", "stranger@example.com", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/access/me", "division@example.com", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(observability.RequestIDHeader))

	w = env.do(t, http.MethodGet, "/auth/login", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_ListRecordsScopedByHierarchy(t *testing.T) {
	env := setupServer(t)

	ids, total := listIDs(t, env.do(t, http.MethodGet, "/api/v1/records", "plant@example.com", nil))
	assert.ElementsMatch(t, []string{"injury_1", "observation_4"}, ids)
	assert.Equal(t, int64(2), total)

	ids, total = listIDs(t, env.do(t, http.MethodGet, "/api/v1/records", "division@example.com", nil))
	assert.ElementsMatch(t, []string{"injury_1", "injury_2", "observation_4"}, ids)
	assert.Equal(t, int64(3), total)

	ids, _ = listIDs(t, env.do(t, http.MethodGet, "/api/v1/records", "admin@example.com", nil))
	assert.Len(t, ids, 4)

	ids, total = listIDs(t, env.do(t, http.MethodGet, "/api/v1/records?status=Pending%20Review", "division@example.com", nil))
	assert.ElementsMatch(t, []string{"injury_2", "observation_4"}, ids)
	assert.Equal(t, int64(2), total)

	ids, _ = listIDs(t, env.do(t, http.MethodGet, "/api/v1/records?recordType=Observation%20Report", "admin@example.com", nil))
	assert.Equal(t, []string{"observation_4"}, ids)

	ids, total = listIDs(t, env.do(t, http.MethodGet, "/api/v1/records?limit=1", "admin@example.com", nil))
	assert.Len(t, ids, 1)
	assert.Equal(t, int64(4), total)
}

func TestServer_ListRecordsRejects(t *testing.T) {
	env := setupServer(t)

	w := env.do(t, http.MethodGet, "/api/v1/records", "reporter@example.com", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/records?status=Archived", "admin@example.com", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"unknown status: Archived"}`, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/v1/records?limit=0", "admin@example.com", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_GetRecord(t *testing.T) {
	env := setupServer(t)

	w := env.do(t, http.MethodGet, "/api/v1/records/injury_1", "plant@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sub records.Submission
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sub))
	assert.Equal(t, plantX, sub.HierarchyString)

	w = env.do(t, http.MethodGet, "/api/v1/records/injury_3", "plant@example.com", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/records/injury_1", "reporter@example.com", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/records/missing", "admin@example.com", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_ApproveAndReject(t *testing.T) {
	env := setupServer(t)
	ctx := context.Background()

	w := env.do(t, http.MethodPost, "/api/v1/records/injury_1/approve", "division@example.com", nil)
	assert.Equal(t, http.StatusForbidden, w.Code, "open records are not awaiting review")

	w = env.do(t, http.MethodPost, "/api/v1/records/injury_2/approve", "plant@example.com", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/records/injury_2/approve", "division@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got, err := env.records.Get(ctx, "injury_2")
	require.NoError(t, err)
	assert.Equal(t, records.StatusCompleted, got.Status)

	w = env.do(t, http.MethodPost, "/api/v1/records/observation_4/reject", "division@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got, err = env.records.Get(ctx, "observation_4")
	require.NoError(t, err)
	assert.Equal(t, records.StatusRejected, got.Status)
}

func TestServer_UpdateStatus(t *testing.T) {
	env := setupServer(t)
	ctx := context.Background()
	require.NoError(t, env.records.UpdateStatus(ctx, "observation_4", records.StatusRejected))

	w := env.do(t, http.MethodPut, "/api/v1/records/injury_1/status", "plant@example.com", StatusRequest{Status: records.StatusInProgress})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPut, "/api/v1/records/observation_4/status", "plant@example.com", StatusRequest{Status: records.StatusInProgress})
	assert.Equal(t, http.StatusForbidden, w.Code, "reopening a rejected record needs the approval flag")

	w = env.do(t, http.MethodPut, "/api/v1/records/observation_4/status", "division@example.com", StatusRequest{Status: records.StatusInProgress})
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPut, "/api/v1/records/injury_1/status", "plant@example.com", StatusRequest{Status: records.StatusCompleted})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, "/api/v1/records/injury_1/status", "plant@example.com", StatusRequest{Status: "Archived"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_DeleteRecord(t *testing.T) {
	env := setupServer(t)

	w := env.do(t, http.MethodDelete, "/api/v1/records/injury_3", "division@example.com", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodDelete, "/api/v1/records/injury_1", "admin@example.com", nil)
	assert.Equal(t, http.StatusForbidden, w.Code, "only drafts are deletable")

	w = env.do(t, http.MethodDelete, "/api/v1/records/injury_3", "admin@example.com", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/records/injury_3", "admin@example.com", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_CreateRecord(t *testing.T) {
	env := setupServer(t)

	body := map[string]interface{}{
		"recordType":      records.TypeInjury,
		"hierarchyString": plantX,
		"title":           "Forklift near miss",
	}
	w := env.do(t, http.MethodPost, "/api/v1/records", "plant@example.com", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sub records.Submission
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sub))
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, records.StatusDraft, sub.Status)
	assert.Equal(t, "plant@example.com", sub.CreatedBy)

	body["hierarchyString"] = plantY
	w = env.do(t, http.MethodPost, "/api/v1/records", "plant@example.com", body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	body["recordType"] = "Audit"
	w = env.do(t, http.MethodPost, "/api/v1/records", "admin@example.com", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/records", strings.NewReader("{"))
	r.Header.Set("Authorization", "Bearer admin@example.com")
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNewHealthRouter(t *testing.T) {
	registry := prometheus.NewRegistry()
	observability.NewMetrics(registry)
	router := NewHealthRouter(observability.NewHealthChecker("test"), registry)

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
