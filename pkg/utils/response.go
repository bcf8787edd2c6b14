package utils

import (
	"github.com/gin-gonic/gin"
)

// APIResponse represents a standard API response structure
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   interface{} `json:"error,omitempty"`
}

// SuccessResponse sends a successful response
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse sends an error response. data is attached when the caller
// still has a partial result to show, such as the report of a failed run.
func ErrorResponse(c *gin.Context, statusCode int, message string, err error, data ...interface{}) {
	response := APIResponse{
		Success: false,
		Message: message,
	}

	if err != nil {
		response.Error = err.Error()
	}
	if len(data) > 0 {
		response.Data = data[0]
	}

	c.JSON(statusCode, response)
}
