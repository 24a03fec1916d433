package response

import (
	"net/http"

	"sandgate/pkg/errors"
	"sandgate/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response represents a standard API response
type Response struct {
	Code      errors.ErrorCode `json:"code"`                 // Error code
	Message   string           `json:"message"`              // Error message
	Data      interface{}      `json:"data,omitempty"`       // Response data (omit if nil)
	Details   interface{}      `json:"details,omitempty"`    // Additional details (omit if nil)
	RequestID string           `json:"request_id,omitempty"` // Request id
}

// Success sends a successful response with data
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:      errors.Success,
		Message:   "Success",
		Data:      data,
		RequestID: getRequestID(c),
	})
}

// Error sends an error response
// It automatically extracts error code and message from the error
func Error(c *gin.Context, err error) {
	customErr := errors.GetError(err)

	logger.Error(c.Request.Context(), "request error",
		zap.Int("code", int(customErr.Code)),
		zap.String("message", customErr.Error()),
		zap.Any("details", customErr.Details),
	)

	c.JSON(customErr.Code.HTTPStatus(), Response{
		Code:      customErr.Code,
		Message:   customErr.Error(),
		Details:   customErr.Details,
		RequestID: getRequestID(c),
	})
}

// ErrorWithDetails sends an error response with explicit details
func ErrorWithDetails(c *gin.Context, err error, details interface{}) {
	customErr := errors.GetError(err)

	logger.Warn(c.Request.Context(), "request error",
		zap.Int("code", int(customErr.Code)),
		zap.String("message", customErr.Error()),
		zap.Any("details", details),
	)

	c.JSON(customErr.Code.HTTPStatus(), Response{
		Code:      customErr.Code,
		Message:   customErr.Error(),
		Details:   details,
		RequestID: getRequestID(c),
	})
}

// getRequestID extracts the request id set by the request id middleware
func getRequestID(c *gin.Context) string {
	if id, exists := c.Get("request_id"); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}
