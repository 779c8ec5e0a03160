// Package http exposes the worker's operational endpoints: system health
// and job status lookups.
package http

import (
	"github.com/gin-gonic/gin"

	"paperchat/src/core/rag"
	"paperchat/src/infrastructure/job"
)

type Handler struct {
	system *rag.SystemService
	jobs   job.Repository
}

func NewHandler(system *rag.SystemService, jobs job.Repository) *Handler {
	return &Handler{
		system: system,
		jobs:   jobs,
	}
}

// RegisterRoutes registers all worker API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", h.CheckHealth)
	r.GET("/jobs/:id", h.GetJob)
}

// Common error response structure
type ErrorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func sendError(c *gin.Context, status int, code string, err error) {
	c.JSON(status, ErrorResponse{
		Code:    code,
		Message: err.Error(),
	})
}

func sendJSON(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}
