package httputil

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	err := WriteJSON(w, 200, map[string]string{"status": "ok"})
	require.NoError(t, err)

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, 500, errors.New("store unavailable"))

	assert.Equal(t, 500, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "store unavailable", body["error"])
}

func TestWriteValidationError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteValidationError(w, "name is required")

	assert.Equal(t, 400, w.Code)
	assert.Contains(t, w.Body.String(), "name is required")
}

func TestWriteAccepted(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteAccepted(w, map[string]string{"status": "accepted"}))
	assert.Equal(t, 202, w.Code)
}
