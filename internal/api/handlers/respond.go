package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/services"
)

// respondError maps the service error taxonomy to HTTP statuses.
// ValidationError keeps its field map so the UI can attach messages to
// individual inputs.
func respondError(c *gin.Context, err error) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errores": verr.Fields})
		return
	}

	var terr *services.InvalidTransitionError
	if errors.As(err, &terr) {
		c.JSON(http.StatusConflict, gin.H{
			"error": terr.Error(),
			"desde": terr.Desde,
			"hacia": terr.Hacia,
		})
		return
	}

	var perr *services.PermissionError
	if errors.As(err, &perr) {
		c.JSON(http.StatusForbidden, gin.H{"error": perr.Error()})
		return
	}

	var derr *services.DuplicateSignatureError
	if errors.As(err, &derr) {
		c.JSON(http.StatusConflict, gin.H{"error": "ya ha firmado este documento previamente"})
		return
	}

	var nerr *services.NotFoundError
	if errors.As(err, &nerr) {
		c.JSON(http.StatusNotFound, gin.H{"error": nerr.Error()})
		return
	}

	var ierr *services.IntegrityError
	if errors.As(err, &ierr) {
		c.JSON(http.StatusConflict, gin.H{"error": ierr.Error()})
		return
	}

	var cerr *services.ConflictError
	if errors.As(err, &cerr) {
		c.JSON(http.StatusConflict, gin.H{
			"error":        "el documento fue modificado por otro usuario",
			"lock_version": cerr.Esperada,
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "error interno"})
}
