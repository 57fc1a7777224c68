package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ──────────────────────────────────────────────────────────────────────────────
// Ground-Truth Label Endpoints
//
// Labels feed the trainer. Analysts submit confirmed fraud (1) or confirmed
// benign (0) wallets; the trainer reads them back through LoadLabels.
// ──────────────────────────────────────────────────────────────────────────────

type labelEntry struct {
	Address string `json:"address"`
	Label   *int   `json:"label"`
}

// handleSaveLabels upserts a batch of labels.
// POST /api/v1/labels { "source": "analyst", "labels": [{"address": "0x..", "label": 1}] }
func (h *APIHandler) handleSaveLabels(c *gin.Context) {
	if h.labels == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}

	var req struct {
		Source string       `json:"source"`
		Labels []labelEntry `json:"labels"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Labels) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. Expected: {source?, labels: [{address, label}]}"})
		return
	}
	if req.Source == "" {
		req.Source = "api"
	}

	// Validate everything before writing anything.
	for i, l := range req.Labels {
		if strings.TrimSpace(l.Address) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "address is required", "index": i})
			return
		}
		if l.Label == nil || (*l.Label != 0 && *l.Label != 1) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "label must be 0 or 1", "index": i})
			return
		}
	}

	saved := 0
	for _, l := range req.Labels {
		if err := h.labels.SaveLabel(c.Request.Context(), l.Address, *l.Label, req.Source); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Failed to save label",
				"details": err.Error(),
				"saved":   saved,
			})
			return
		}
		saved++
	}

	c.JSON(http.StatusOK, gin.H{"saved": saved, "source": req.Source})
}

// handleListLabels returns every stored label.
func (h *APIHandler) handleListLabels(c *gin.Context) {
	if h.labels == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}
	labels, err := h.labels.LoadLabels(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load labels", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":       labels,
		"totalCount": len(labels),
	})
}
