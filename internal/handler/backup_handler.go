package handler

import (
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/drivehq/selection-api/internal/service"
	"github.com/drivehq/selection-api/pkg/response"
)

// BackupHandler exposes snapshot listing and downloads.
type BackupHandler struct {
	backups   *service.BackupService
	apiPrefix string
}

// NewBackupHandler constructs BackupHandler.
func NewBackupHandler(backups *service.BackupService, apiPrefix string) *BackupHandler {
	return &BackupHandler{backups: backups, apiPrefix: apiPrefix}
}

// List godoc
// @Summary List backup snapshots with signed download URLs
// @Tags Backups
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /backups [get]
func (h *BackupHandler) List(c *gin.Context) {
	snapshots, err := h.backups.List(h.apiPrefix)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshots, nil)
}

// Download godoc
// @Summary Download a backup snapshot via signed token
// @Tags Backups
// @Produce application/json
// @Param token path string true "Signed download token"
// @Success 200 {string} string "snapshot contents"
// @Router /backups/download/{token} [get]
func (h *BackupHandler) Download(c *gin.Context) {
	file, err := h.backups.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	c.Header("Content-Disposition", "attachment; filename="+filepath.Base(file.Name()))
	c.Header("Content-Type", "application/json")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, file)
}
