package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/media-archiver/internal/models"
)

// handleArchiveError maps the archive error taxonomy onto HTTP statuses:
// policy and input problems are client errors, missing records are 404,
// provider failures are server errors the caller may retry.
func handleArchiveError(c *gin.Context, err error) {
	var denied *models.PolicyDeniedError
	if errors.As(err, &denied) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "policy denied",
			"reasons": denied.Reasons,
		})
		return
	}

	var uploadErr *models.UploadError
	if errors.As(err, &uploadErr) {
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "upload failed",
			"mode":  uploadErr.Mode,
		})
		return
	}

	switch {
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrAttachmentNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "record not found",
		})
	case errors.Is(err, models.ErrUncompressible):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": err.Error(),
		})
	case errors.Is(err, models.ErrArchiverDisabled), errors.Is(err, models.ErrNoCredentials):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "archive operation failed",
		})
	}
}
