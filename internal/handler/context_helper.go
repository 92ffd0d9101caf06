package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/drivehq/selection-api/internal/middleware"
	"github.com/drivehq/selection-api/internal/models"
	"github.com/drivehq/selection-api/internal/service"
)

// principalFrom extracts the acting principal from the authenticated request.
// The username may be empty when no claims are present; mutations then carry
// an unknown principal rather than failing.
func principalFrom(c *gin.Context) service.Principal {
	p := service.Principal{IP: c.ClientIP()}
	if raw, ok := c.Get(middleware.ContextUserKey); ok {
		if claims, ok := raw.(*models.JWTClaims); ok {
			p.Name = claims.Username
		}
	}
	return p
}
