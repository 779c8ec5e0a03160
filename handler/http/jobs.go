package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GetJob godoc
// @Summary Get the status of a queued ingestion job
// @Tags jobs
// @Produce json
// @Param id path int true "Job ID"
// @Success 200 {object} job.Job
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /jobs/{id} [get]
func (h *Handler) GetJob(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		sendError(c, http.StatusBadRequest, "INVALID_ID", fmt.Errorf("job id must be numeric"))
		return
	}

	j, err := h.jobs.Get(c.Request.Context(), id)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err)
		return
	}
	if j == nil {
		sendError(c, http.StatusNotFound, "NOT_FOUND", fmt.Errorf("job %d not found", id))
		return
	}
	sendJSON(c, http.StatusOK, j)
}
