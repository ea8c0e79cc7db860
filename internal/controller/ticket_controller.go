package controller

import (
	"net/http"

	"github.com/IsaacPaez/drivingschool-sub001/internal/dto"
	"github.com/IsaacPaez/drivingschool-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

type TicketController struct {
	Service *service.TicketService
}

func NewTicketController(s *service.TicketService) *TicketController {
	return &TicketController{Service: s}
}

// GET /classes/:classId — público
func (ctl *TicketController) GetClass(c *gin.Context) {
	class, err := ctl.Service.GetClass(c.Request.Context(), c.Param("classId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, class)
}

// POST /classes/:classId/request — requiere token
func (ctl *TicketController) RequestSeat(c *gin.Context) {
	req, err := ctl.Service.RequestSeat(
		c.Request.Context(),
		c.Param("classId"),
		c.GetString("userID"),
		c.GetString("userName"),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

// POST /classes/:classId/confirm
func (ctl *TicketController) ConfirmSeat(c *gin.Context) {
	var req dto.ConfirmSeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := ctl.Service.ConfirmSeat(c.Request.Context(), c.Param("classId"), req.RequestID, req.PaymentID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "asiento confirmado"})
}

// POST /classes/:classId/release
func (ctl *TicketController) ReleaseSeat(c *gin.Context) {
	var req struct {
		RequestID string `json:"requestId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := ctl.Service.ReleaseSeat(c.Request.Context(), c.Param("classId"), req.RequestID, c.GetString("userID")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "asiento liberado"})
}
