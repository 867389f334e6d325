package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	var dest struct {
		Reason string `json:"reason"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"duplicate"}`))
	require.NoError(t, ParseJSON(r, &dest))
	assert.Equal(t, "duplicate", dest.Reason)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	err := ParseJSON(r, &dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestParseJSONOrError(t *testing.T) {
	var dest map[string]interface{}
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))

	assert.False(t, ParseJSONOrError(w, r, &dest))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPathString(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/records/abc", nil)
	r = mux.SetURLVars(r, map[string]string{"id": "abc"})

	id, err := PathString(r, "id")
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	_, err = PathString(r, "missing")
	assert.EqualError(t, err, "missing path parameter: missing")
}

func TestQueryParams(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=25&skip=true&bad=x&status=Open", nil)

	limit, err := QueryInt(r, "limit", 10)
	require.NoError(t, err)
	assert.Equal(t, 25, limit)

	limit, err = QueryInt(r, "offset", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, limit)

	_, err = QueryInt(r, "bad", 0)
	assert.Error(t, err)

	skip, err := QueryBool(r, "skip", false)
	require.NoError(t, err)
	assert.True(t, skip)

	skip, err = QueryBool(r, "absent", true)
	require.NoError(t, err)
	assert.True(t, skip)

	_, err = QueryBool(r, "bad", false)
	assert.Error(t, err)

	assert.Equal(t, "Open", QueryString(r, "status", "Draft"))
	assert.Equal(t, "Draft", QueryString(r, "missing", "Draft"))
}
