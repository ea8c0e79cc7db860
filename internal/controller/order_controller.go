package controller

import (
	"net/http"
	"slices"

	"github.com/IsaacPaez/drivingschool-sub001/internal/dto"
	"github.com/IsaacPaez/drivingschool-sub001/internal/model"
	"github.com/IsaacPaez/drivingschool-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

type OrderController struct {
	Service *service.OrderService
}

func NewOrderController(s *service.OrderService) *OrderController {
	return &OrderController{Service: s}
}

// POST /orders/create — requiere token
func (ctl *OrderController) CreateOrder(c *gin.Context) {
	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	refs := make([]model.SlotRef, 0, len(req.Appointments))
	for _, a := range req.Appointments {
		activity := model.ActivityType(a.ActivityType)
		if !activity.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "activityType inválido"})
			return
		}
		key, err := model.ParseSlotKey(a.Slot)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		refs = append(refs, model.SlotRef{
			InstructorID: a.InstructorID,
			ActivityType: activity,
			Date:         key.Date,
			Start:        key.Start,
			End:          key.End,
		})
	}

	order, err := ctl.Service.CreateOrder(c.Request.Context(), c.GetString("userID"), req.OrderType, refs, req.Total)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// POST /orders/update-status — lo invoca la pasarela de pagos al volver
// del redirect. Idempotente: repetir el mismo estado terminal no cambia
// nada.
func (ctl *OrderController) UpdateStatus(c *gin.Context) {
	var req dto.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := ctl.Service.UpdateStatus(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GET /orders/mine
func (ctl *OrderController) GetMyOrders(c *gin.Context) {
	orders, err := ctl.Service.GetByUser(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// GET /orders/:orderId — dueño o admin
func (ctl *OrderController) GetOrder(c *gin.Context) {
	order, err := ctl.Service.GetByID(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		respondError(c, err)
		return
	}

	isAdmin := slices.Contains(c.GetStringSlice("userPermissions"), "admin")
	if !isAdmin && order.UserID != c.GetString("userID") {
		c.JSON(http.StatusForbidden, gin.H{"error": "no puede ver órdenes de otro usuario"})
		return
	}

	c.JSON(http.StatusOK, order)
}
