package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, http.StatusCreated, "created", map[string]int{"id": 4})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "created", body["message"])
	assert.Equal(t, map[string]any{"id": float64(4)}, body["data"])
	assert.NotContains(t, body, "error")
}

func TestWriteErrorAndValidation(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusNotFound, "Event not found", "not_found")

	var body APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "not_found", body.Error)

	resp := ValidationErrorResponse(map[string]string{"email": "email must be a valid email address"})
	assert.Equal(t, "validation_error", resp.Error)
	assert.Equal(t, map[string]string{"email": "email must be a valid email address"}, resp.Details)
}
