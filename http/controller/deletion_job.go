package controller

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tnqbao/gau-account-service/entity"
	"github.com/tnqbao/gau-account-service/http/controller/dto"
	"github.com/tnqbao/gau-account-service/utils"
	"github.com/tnqbao/gau-account-service/workflow"
)

func (ctrl *Controller) RequestDeletion(c *gin.Context) {
	ctx := c.Request.Context()

	actorID, err := utils.GetUserIDFromContext(c)
	if err != nil {
		utils.JSON401(c, "Unauthorized: "+err.Error())
		return
	}

	var req dto.RequestDeletionDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Deletion] Failed to bind JSON: %v", err)
		utils.JSON400(c, "Invalid request payload")
		return
	}

	accountID := actorID
	if req.AccountID != "" {
		accountID, err = uuid.Parse(req.AccountID)
		if err != nil {
			utils.JSON400(c, "Invalid account_id format")
			return
		}
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Deletion] Actor %s requesting deletion of account %s", actorID, accountID)

	job, err := ctrl.Machine.RequestDeletion(ctx, accountID, actorID, entity.DataHandling(req.DataHandling))
	if err != nil {
		ctrl.respondWorkflowError(c, err)
		return
	}

	utils.JSON200(c, gin.H{
		"message": "Deletion job created",
		"job":     job,
	})
}

func (ctrl *Controller) GenerateSnapshot(c *gin.Context) {
	ctx := c.Request.Context()

	jobID, ok := ctrl.jobIDParam(c)
	if !ok {
		return
	}

	job, err := ctrl.Machine.GenerateSnapshot(ctx, jobID)
	if err != nil {
		ctrl.respondWorkflowError(c, err)
		return
	}

	utils.JSON200(c, gin.H{
		"message": "Snapshot ready",
		"job":     job,
	})
}

func (ctrl *Controller) DownloadSnapshot(c *gin.Context) {
	ctx := c.Request.Context()

	jobID, ok := ctrl.jobIDParam(c)
	if !ok {
		return
	}

	job, err := ctrl.Machine.RecordDownload(ctx, jobID)
	if err != nil {
		ctrl.respondWorkflowError(c, err)
		return
	}

	url, err := ctrl.Machine.PresignSnapshotDownload(ctx, job)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Deletion] Failed to presign snapshot for job %s: %v", job.ID, err)
		utils.JSON500(c, "Failed to issue download link")
		return
	}

	utils.JSON200(c, gin.H{
		"download_url": url,
		"job":          job,
	})
}

func (ctrl *Controller) AcknowledgeSnapshot(c *gin.Context) {
	ctx := c.Request.Context()

	jobID, ok := ctrl.jobIDParam(c)
	if !ok {
		return
	}

	var req dto.AcknowledgeSnapshotDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSON400(c, "Invalid request payload")
		return
	}

	job, err := ctrl.Machine.AcknowledgeSnapshot(ctx, jobID, req.Consent)
	if err != nil {
		ctrl.respondWorkflowError(c, err)
		return
	}

	utils.JSON200(c, gin.H{
		"message": "Snapshot acknowledgment recorded",
		"job":     job,
	})
}

func (ctrl *Controller) ConfirmDeletion(c *gin.Context) {
	ctx := c.Request.Context()

	actorID, err := utils.GetUserIDFromContext(c)
	if err != nil {
		utils.JSON401(c, "Unauthorized: "+err.Error())
		return
	}

	jobID, ok := ctrl.jobIDParam(c)
	if !ok {
		return
	}

	var req dto.ConfirmDeletionDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSON400(c, "Invalid request payload")
		return
	}

	job, err := ctrl.Machine.ConfirmDeletion(ctx, jobID, actorID, req.Password)
	if err != nil {
		ctrl.respondWorkflowError(c, err)
		return
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Deletion] Job %s confirmed, cleanup running in background", job.ID)
	utils.JSON200(c, gin.H{
		"message": "Deletion confirmed, cleanup is running",
		"job":     job,
	})
}

// GetDeletionStatus is the polling endpoint. Read-only, safe at any frequency.
func (ctrl *Controller) GetDeletionStatus(c *gin.Context) {
	ctx := c.Request.Context()

	jobID, ok := ctrl.jobIDParam(c)
	if !ok {
		return
	}

	job, err := ctrl.Machine.GetStatus(ctx, jobID)
	if err != nil {
		ctrl.respondWorkflowError(c, err)
		return
	}

	utils.JSON200(c, gin.H{"job": job})
}

// ListDeletionJobs aggregates all jobs for the operator view.
func (ctrl *Controller) ListDeletionJobs(c *gin.Context) {
	ctx := c.Request.Context()

	jobs, err := ctrl.Machine.ListJobs(ctx)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Deletion] Failed to list jobs: %v", err)
		utils.JSON500(c, "Failed to list deletion jobs")
		return
	}

	utils.JSON200(c, gin.H{"jobs": jobs})
}

func (ctrl *Controller) jobIDParam(c *gin.Context) (uuid.UUID, bool) {
	jobID, err := uuid.Parse(c.Param("job_id"))
	if err != nil {
		utils.JSON400(c, "Invalid job_id format")
		return uuid.Nil, false
	}
	return jobID, true
}

func (ctrl *Controller) respondWorkflowError(c *gin.Context, err error) {
	ctx := c.Request.Context()

	var precondition *workflow.PreconditionError
	var snapshotErr *workflow.SnapshotError
	var cleanupErr *workflow.CleanupError

	switch {
	case errors.Is(err, workflow.ErrJobNotFound):
		utils.JSON404(c, "Deletion job not found")
	case errors.Is(err, workflow.ErrPermissionDenied):
		utils.JSON403(c, "You are not allowed to delete this account")
	case errors.Is(err, workflow.ErrAuthenticationFailed):
		utils.JSON401(c, "Password verification failed")
	case errors.As(err, &precondition):
		utils.JSON412(c, "Deletion preconditions not met", precondition.Gates)
	case errors.Is(err, workflow.ErrConflict):
		utils.JSON409(c, "Deletion job is in a conflicting state, re-fetch its status")
	case errors.As(err, &snapshotErr), errors.As(err, &cleanupErr):
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Deletion] Workflow failure: %v", err)
		utils.JSON500(c, err.Error())
	default:
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Deletion] Unexpected error: %v", err)
		utils.JSON500(c, "Internal server error")
	}
}
