package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jonesrussell/media-archiver/internal/models"
)

const (
	defaultSearchLimit = 50
	maxSearchLimit     = 200
)

// archiveFile accepts a multipart upload plus JSON metadata and runs the
// archive pipeline.
// POST /api/v1/archive
func (r *Router) archiveFile(c *gin.Context) {
	ctx := c.Request.Context()

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "multipart field 'file' is required",
		})
		return
	}

	var meta models.FileMeta
	if raw := c.PostForm("meta"); raw != "" {
		if jsonErr := json.Unmarshal([]byte(raw), &meta); jsonErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid metadata payload",
				"details": jsonErr.Error(),
			})
			return
		}
	}
	if meta.Filename == "" {
		meta.Filename = filepath.Base(file.Filename)
	}

	// Stage the upload under a unique name; the pipeline owns its deletion.
	staged := filepath.Join(r.cfg.Archiver.StagingDir, uuid.New().String()+filepath.Ext(meta.Filename))
	if saveErr := c.SaveUploadedFile(file, staged); saveErr != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to stage uploaded file",
		})
		return
	}

	record, err := r.service.ArchiveFile(ctx, staged, meta)
	if err != nil {
		// The pipeline removes staged files on success only.
		_ = os.Remove(staged)
		handleArchiveError(c, err)
		return
	}

	status := http.StatusCreated
	if record.CacheHit {
		status = http.StatusOK
	}
	c.JSON(status, record)
}

// rehydrate resolves a content hash to a fresh download URL.
// GET /api/v1/archive/:hash
func (r *Router) rehydrate(c *gin.Context) {
	result, err := r.service.Rehydrate(c.Request.Context(), c.Param("hash"))
	if err != nil {
		handleArchiveError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// getRecord returns the full manifest record for a content hash.
// GET /api/v1/archive/:hash/record
func (r *Router) getRecord(c *gin.Context) {
	record, err := r.service.Lookup(c.Request.Context(), c.Param("hash"))
	if err != nil {
		handleArchiveError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// searchTag returns partial records whose tags match the substring.
// GET /api/v1/archive/search?tag=...&limit=...&offset=...
func (r *Router) searchTag(c *gin.Context) {
	tag := c.Query("tag")
	if tag == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "query parameter 'tag' is required",
		})
		return
	}

	limit := parseIntQuery(c, "limit", defaultSearchLimit)
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	offset := parseIntQuery(c, "offset", 0)

	results, err := r.service.SearchTag(c.Request.Context(), tag, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to search records",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"count":   len(results),
	})
}

// updateTags replaces the tag list on an existing record.
// PUT /api/v1/archive/:hash/tags
func (r *Router) updateTags(c *gin.Context) {
	var req struct {
		Tags []string `json:"tags"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return
	}

	if err := r.service.UpdateTags(c.Request.Context(), c.Param("hash"), req.Tags); err != nil {
		handleArchiveError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Tags updated successfully",
	})
}

// parseIntQuery reads a non-negative integer query parameter, falling back
// to def on absence or garbage.
func parseIntQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return def
	}
	return value
}
