package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"paperchat/src/core/rag"
)

// CheckHealth godoc
// @Summary Check system health status
// @Tags system
// @Produce json
// @Success 200 {object} rag.HealthStatus
// @Failure 503 {object} rag.HealthStatus
// @Router /healthz [get]
func (h *Handler) CheckHealth(c *gin.Context) {
	status := h.system.CheckHealth(c.Request.Context())

	code := http.StatusOK
	if status.Status != rag.StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	sendJSON(c, code, status)
}
