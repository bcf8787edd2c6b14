package handlers

import (
	"context"
	"errors"
	"net/http"

	"fleet-sync/internal/reconcile"
	"fleet-sync/internal/services"
	"fleet-sync/internal/status"
	"fleet-sync/pkg/utils"

	"github.com/gin-gonic/gin"
)

type SyncService interface {
	Trigger(ctx context.Context) (*reconcile.Report, error)
	Latest(ctx context.Context) (*reconcile.Report, error)
}

type SyncHandler struct {
	syncService SyncService
}

func NewSyncHandler(syncService SyncService) *SyncHandler {
	return &SyncHandler{syncService: syncService}
}

// GetStatus returns the report of the last run.
func (h *SyncHandler) GetStatus(c *gin.Context) {
	report, err := h.syncService.Latest(c.Request.Context())
	if err != nil {
		if errors.Is(err, status.ErrNoReport) {
			utils.ErrorResponse(c, http.StatusNotFound, "No sync has run yet", err)
			return
		}
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to load sync status", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Last sync report", report)
}

// RunSync triggers a run and blocks until it finishes. The run is detached
// from the request so a client disconnect does not abort it half way.
func (h *SyncHandler) RunSync(c *gin.Context) {
	report, err := h.syncService.Trigger(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		if errors.Is(err, services.ErrSyncInProgress) {
			utils.ErrorResponse(c, http.StatusConflict, "Sync already running", err)
			return
		}
		utils.ErrorResponse(c, http.StatusInternalServerError, "Sync failed", err, report)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Sync completed", report)
}
