package controller

import (
	"errors"
	"net/http"

	"github.com/IsaacPaez/drivingschool-sub001/internal/repository"
	"github.com/IsaacPaez/drivingschool-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

// respondError mapea la taxonomía de errores de negocio a códigos HTTP.
// Los conflictos nombran los slots exactos; los errores internos se
// reportan genéricos, sin filtrar estado interno.
func respondError(c *gin.Context, err error) {
	var conflict *service.SlotConflictError
	switch {
	case errors.As(err, &conflict):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "algunos slots no están disponibles",
			"slots": conflict.Slots,
		})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "no encontrado"})
	case errors.Is(err, service.ErrSlotUnavailable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrClassFull):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrSlotInCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidCode):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error interno"})
	}
}
