package importer

import (
	"errors"
	"net/http"

	"github.com/draftdeck/draftdeck/internal/importjob"
	"github.com/draftdeck/draftdeck/pkg/middleware"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes wires the import trigger and the polling status endpoint.
func RegisterRoutes(r gin.IRouter, svc *Service) {
	r.POST("/api/import", func(c *gin.Context) {
		var req struct {
			Items   []Item  `json:"items"`
			Options Options `json:"options"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		owner := middleware.Subject(c)
		if owner == "" {
			owner = c.GetHeader("X-User-ID")
		}
		jobID, err := svc.Start(c.Request.Context(), owner, req.Items, req.Options)
		if err != nil {
			if errors.Is(err, ErrValidation) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start import"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"jobId": jobID})
	})

	r.GET("/api/import/:jobId", func(c *gin.Context) {
		j, err := svc.Status(c.Request.Context(), c.Param("jobId"))
		if err != nil {
			if errors.Is(err, importjob.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load job"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"id":             j.ID,
			"status":         j.Status,
			"progress":       j.Progress(),
			"totalItems":     j.TotalItems,
			"processedItems": j.ProcessedItems,
			"importedItems":  j.ImportedItems,
			"failedItems":    j.FailedItems,
			"errors":         j.Errors,
		})
	})
}
