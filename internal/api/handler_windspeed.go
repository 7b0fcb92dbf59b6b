package api

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"wind-speed-service/internal/model"
)

// PostWindSpeed handles POST /api/wind-speed.
func (h *Handler) PostWindSpeed(c *gin.Context) {
	var req model.LookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("Rejected wind-speed request %s: %v", c.GetString("request_id"), err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Address is required",
		})
		return
	}

	res := h.lookups.Lookup(c.Request.Context(), strings.TrimSpace(req.Address))
	if !res.Success {
		c.JSON(http.StatusInternalServerError, res)
		return
	}
	c.JSON(http.StatusOK, res)
}
