package httputil

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	r := httptest.NewRequest("POST", "/v1/events", strings.NewReader(`{"name":"page_view"}`))

	var dest struct {
		Name string `json:"name"`
	}
	require.NoError(t, ParseJSON(r, &dest))
	assert.Equal(t, "page_view", dest.Name)
}

func TestParseJSONInvalid(t *testing.T) {
	r := httptest.NewRequest("POST", "/v1/events", strings.NewReader(`{broken`))

	var dest map[string]interface{}
	err := ParseJSON(r, &dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestParseJSONOrError(t *testing.T) {
	r := httptest.NewRequest("POST", "/v1/events", strings.NewReader(`{broken`))
	w := httptest.NewRecorder()

	var dest map[string]interface{}
	ok := ParseJSONOrError(w, r, &dest)
	assert.False(t, ok)
	assert.Equal(t, 400, w.Code)
}

func TestParseQueryInt(t *testing.T) {
	r := httptest.NewRequest("GET", "/v1/events/stats?limit=25", nil)

	val, err := ParseQueryInt(r, "limit", 100)
	require.NoError(t, err)
	assert.Equal(t, 25, val)

	val, err = ParseQueryInt(r, "missing", 100)
	require.NoError(t, err)
	assert.Equal(t, 100, val)

	r = httptest.NewRequest("GET", "/v1/events/stats?limit=abc", nil)
	_, err = ParseQueryInt(r, "limit", 100)
	assert.Error(t, err)
}

func TestRequireNonEmpty(t *testing.T) {
	w := httptest.NewRecorder()
	assert.True(t, RequireNonEmpty(w, "page_view", "name"))

	w = httptest.NewRecorder()
	assert.False(t, RequireNonEmpty(w, "", "name"))
	assert.Equal(t, 400, w.Code)
	assert.Contains(t, w.Body.String(), "name is required")
}
