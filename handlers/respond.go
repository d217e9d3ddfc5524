package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LovationAdmin/expense-api/services"
)

// Surface selects the status mapping for an endpoint family.
type Surface int

const (
	// SurfaceAuth answers every classified failure with 400.
	SurfaceAuth Surface = iota
	// SurfaceLedger separates token, input and downstream failures.
	SurfaceLedger
)

// RespondError writes the single {error[, details]} envelope for err.
func RespondError(c *gin.Context, surface Surface, err error) {
	_ = c.Error(err)

	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if surface == SurfaceAuth {
		c.JSON(http.StatusBadRequest, gin.H{"error": svcErr.Message})
		return
	}

	switch svcErr.Kind {
	case services.KindValidation:
		c.JSON(http.StatusBadRequest, gin.H{"error": svcErr.Message})
	case services.KindAuthentication:
		c.JSON(http.StatusUnauthorized, gin.H{"error": svcErr.Message})
	case services.KindConflict:
		c.JSON(http.StatusConflict, gin.H{"error": svcErr.Message})
	case services.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": svcErr.Message})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"details": svcErr.Message,
		})
	}
}

// LedgerErrors adapts RespondError for middleware.RequireUser.
func LedgerErrors(c *gin.Context, err error) {
	RespondError(c, SurfaceLedger, err)
}

// MethodNotAllowed answers methods an endpoint does not support.
func MethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
}

// Preflight answers OPTIONS with 200 and an empty body.
func Preflight(c *gin.Context) {
	c.Status(http.StatusOK)
}
