package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "focusflow/backend/internal/errors"
	"focusflow/backend/internal/logger"
	"focusflow/backend/internal/service"
)

func writeError(c *gin.Context, apiErr *apperrors.APIError) {
	if apiErr == nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "internal_error",
				"message": "internal server error",
			},
		})
		return
	}

	errorBody := gin.H{
		"code":    apiErr.Code,
		"message": apiErr.Message,
	}
	if apiErr.Details != nil {
		errorBody["details"] = apiErr.Details
	}

	c.JSON(apiErr.Status, gin.H{
		"error": errorBody,
	})
}

// writeFailure maps an error from the session or service layer onto the API
// error envelope.
func writeFailure(c *gin.Context, message string, err error) {
	if errors.Is(err, service.ErrWriteConflict) {
		writeError(c, apperrors.Conflict("write_conflict", "stats changed concurrently, retry the request", nil))
		return
	}
	logger.HTTP().Error(message, "path", c.FullPath(), "error", err)
	writeError(c, apperrors.Internal(message))
}

func writeInvalidJSON(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": gin.H{"code": "invalid_json", "message": "invalid request body"},
	})
}

func errStoreUnavailable() *apperrors.APIError {
	return apperrors.Unavailable("store_unavailable", "no durable store is attached")
}
