package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/plantgate/internal/common"
	"github.com/dmitrijs2005/plantgate/internal/cryptox"
	"github.com/dmitrijs2005/plantgate/internal/logging"
	"github.com/dmitrijs2005/plantgate/internal/server/access"
	"github.com/gin-gonic/gin"
)

func deniedStatus(r access.Reason) (int, string) {
	switch r {
	case access.TokenExpired:
		return http.StatusUnauthorized, "token expired"
	case access.SubjectMismatch:
		return http.StatusForbidden, "token does not match plant"
	case access.IdentityNotFound:
		return http.StatusNotFound, "plant not found"
	case access.OriginNotWhitelisted:
		return http.StatusForbidden, "origin not whitelisted"
	default:
		return http.StatusUnauthorized, "invalid token"
	}
}

// writeError maps service errors to responses. Decryption failures are
// always reported as an opaque "decryption failed".
func writeError(c *gin.Context, log logging.Logger, err error) {
	ctx := c.Request.Context()

	if reason, ok := access.ReasonOf(err); ok {
		status, msg := deniedStatus(reason)
		if reason == access.OriginNotWhitelisted {
			log.Warn(ctx, "request denied", "reason", reason.String(), "ip", c.ClientIP(), "path", c.Request.URL.Path)
		} else {
			log.Info(ctx, "request denied", "reason", reason.String(), "ip", c.ClientIP(), "path", c.Request.URL.Path)
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}

	switch {
	case errors.Is(err, cryptox.ErrDecryption):
		kind := cryptox.KindOf(err)
		if kind == cryptox.AuthenticationFailed {
			log.Warn(ctx, "decryption failed", "kind", kind.String(), "ip", c.ClientIP())
		} else {
			log.Info(ctx, "decryption failed", "kind", kind.String(), "ip", c.ClientIP())
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "decryption failed"})
	case errors.Is(err, common.ErrorUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, common.ErrorValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrorAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "plant already exists"})
	case errors.Is(err, common.ErrorNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "plant not found"})
	default:
		log.Error(ctx, "request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
