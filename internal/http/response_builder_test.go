package http

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONResponseBuilder(t *testing.T) {
	rr := httptest.NewRecorder()
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/goals/g1").
		Data(map[string]string{"id": "g1"}).
		Send(rr)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "/api/goals/g1", rr.Header().Get("Location"))
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "g1", body["id"])
}

func TestJSONResponseBuilderEncodeFailure(t *testing.T) {
	rr := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusOK).Data(math.Inf(1)).Send(rr)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, http.StatusUnprocessableEntity, "validation failed", map[string]string{"title": "required"})

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "validation failed", body.Error)
	assert.Equal(t, "required", body.Fields["title"])
}
