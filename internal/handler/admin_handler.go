package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/drivehq/selection-api/internal/service"
	appErrors "github.com/drivehq/selection-api/pkg/errors"
	"github.com/drivehq/selection-api/pkg/response"
)

// AdminHandler exposes operator account management.
type AdminHandler struct {
	auth *service.AuthService
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(auth *service.AuthService) *AdminHandler {
	return &AdminHandler{auth: auth}
}

// Create godoc
// @Summary Create an admin account
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body service.CreateAdminRequest true "Admin payload"
// @Success 201 {object} response.Envelope
// @Router /admin/create [post]
func (h *AdminHandler) Create(c *gin.Context) {
	var req service.CreateAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	admin, err := h.auth.CreateAdmin(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"ok": true, "username": admin.Username})
}

// ChangePassword godoc
// @Summary Change an admin's password
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body service.ChangePasswordRequest true "Password payload"
// @Success 200 {object} response.Envelope
// @Router /admin/change-password [post]
func (h *AdminHandler) ChangePassword(c *gin.Context) {
	var req service.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.auth.ChangePassword(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"ok": true}, nil)
}
