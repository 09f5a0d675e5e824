package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gotrs-io/eventclone/internal/service"
)

type jobAccepted struct {
	JobID string `json:"job_id"`
}

type cancelResult struct {
	JobID   string `json:"job_id"`
	Outcome string `json:"outcome"`
}

// submitClone handles POST /api/v1/clone
func (r *Router) submitClone(c *gin.Context) {
	var req service.CloneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	jobID, err := r.clones.Submit(c.Request.Context(), req)
	if err != nil {
		r.sendServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, APIResponse{Success: true, Data: jobAccepted{JobID: jobID}})
}

// submitImport handles POST /api/v1/import
func (r *Router) submitImport(c *gin.Context) {
	var req service.ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	jobID, err := r.clones.SubmitImport(c.Request.Context(), req)
	if err != nil {
		r.sendServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, APIResponse{Success: true, Data: jobAccepted{JobID: jobID}})
}

// getCloneStatus handles GET /api/v1/clone/:id
func (r *Router) getCloneStatus(c *gin.Context) {
	status, err := r.clones.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		r.sendServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: status})
}

// cancelClone handles DELETE /api/v1/clone/:id
func (r *Router) cancelClone(c *gin.Context) {
	jobID := c.Param("id")
	outcome, err := r.clones.Cancel(c.Request.Context(), jobID)
	if err != nil {
		r.sendServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: cancelResult{JobID: jobID, Outcome: string(outcome)}})
}
