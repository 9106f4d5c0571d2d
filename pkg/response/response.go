package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorData  `json:"error,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

type ErrorData struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Details   string            `json:"details,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
	Conflicts interface{}       `json:"conflicts,omitempty"`
}

// ListMeta describes a collection payload
type ListMeta struct {
	Count int `json:"count"`
}

// Err builds an error envelope without writing it
func Err(code, message string) Response {
	return Response{Error: &ErrorData{Code: code, Message: message}}
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    data,
	})
}

// List writes a 200 with a count in meta
func List(c *gin.Context, items interface{}, count int) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    items,
		Meta:    ListMeta{Count: count},
	})
}

// Message writes a bare {"message": ...} body
func Message(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"message": message})
}

func Error(c *gin.Context, status int, code, message string, details string) {
	c.JSON(status, Response{
		Success: false,
		Error: &ErrorData{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// FieldErrors writes an error carrying per-field messages
func FieldErrors(c *gin.Context, status int, code, message string, fields map[string]string) {
	c.JSON(status, Response{
		Success: false,
		Error: &ErrorData{
			Code:    code,
			Message: message,
			Errors:  fields,
		},
	})
}

// Conflict writes a 409 listing the bookings that collide with the request
func Conflict(c *gin.Context, message string, fields map[string]string, conflicts interface{}) {
	c.JSON(http.StatusConflict, Response{
		Success: false,
		Error: &ErrorData{
			Code:      "BOOKING_CONFLICT",
			Message:   message,
			Errors:    fields,
			Conflicts: conflicts,
		},
	})
}

func InternalError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal Server Error", "")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, "BAD_REQUEST", message, "")
}

func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, "NOT_FOUND", message, "")
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, "UNAUTHORIZED", message, "")
}

func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, "FORBIDDEN", message, "")
}

func TooManyRequests(c *gin.Context, message string) {
	Error(c, http.StatusTooManyRequests, "RATE_LIMITED", message, "")
}
