package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, h gin.HandlerFunc) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	h(c)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestCreated(t *testing.T) {
	w, body := run(t, func(c *gin.Context) { Created(c, gin.H{"id": "b-1"}) })
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "b-1", body["data"].(map[string]interface{})["id"])
	assert.NotContains(t, body, "error")
}

func TestList(t *testing.T) {
	w, body := run(t, func(c *gin.Context) { List(c, []string{"a", "b"}, 2) })
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["meta"].(map[string]interface{})["count"])
}

func TestFieldErrors(t *testing.T) {
	w, body := run(t, func(c *gin.Context) {
		FieldErrors(c, http.StatusBadRequest, "VALIDATION_ERROR", "Bad Request", map[string]string{"startDate": "Start date is required"})
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	e := body["error"].(map[string]interface{})
	assert.Equal(t, "VALIDATION_ERROR", e["code"])
	assert.Equal(t, "Start date is required", e["errors"].(map[string]interface{})["startDate"])
	assert.NotContains(t, e, "conflicts")
}

func TestConflict(t *testing.T) {
	w, body := run(t, func(c *gin.Context) {
		Conflict(c, "conflict", map[string]string{"startDate": "x", "endDate": "y"}, []string{"b-9"})
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	e := body["error"].(map[string]interface{})
	assert.Equal(t, "BOOKING_CONFLICT", e["code"])
	assert.Len(t, e["conflicts"], 1)
}

func TestMessage(t *testing.T) {
	_, body := run(t, func(c *gin.Context) { Message(c, http.StatusOK, "Successfully deleted") })
	assert.Equal(t, map[string]interface{}{"message": "Successfully deleted"}, body)
}

func TestInternalError_HidesDetails(t *testing.T) {
	w, body := run(t, InternalError)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, body["error"], "details")
}
