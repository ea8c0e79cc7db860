package controller

import (
	"net/http"
	"time"

	"github.com/IsaacPaez/drivingschool-sub001/internal/dto"
	"github.com/IsaacPaez/drivingschool-sub001/internal/model"
	"github.com/IsaacPaez/drivingschool-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

type ReservationController struct {
	Service *service.ReservationService
}

func NewReservationController(s *service.ReservationService) *ReservationController {
	return &ReservationController{Service: s}
}

// POST /reserve-pending — requiere token
func (ctl *ReservationController) ReservePending(c *gin.Context) {
	var req dto.ReservePendingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	activity := model.ActivityType(req.ActivityType)
	if !activity.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "activityType inválido"})
		return
	}
	key, err := model.ParseSlotKey(req.Slot)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	slot, err := ctl.Service.ReservePending(
		c.Request.Context(),
		c.GetString("userID"),
		c.GetString("userName"),
		req.InstructorID,
		activity,
		key,
		req.PaymentMethod,
	)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, slot)
}

// POST /cart/add-lesson
func (ctl *ReservationController) AddLesson(c *gin.Context) {
	var req dto.AddLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := ctl.Service.AddLessonToCart(
		c.Request.Context(),
		c.GetString("userID"),
		c.GetString("userName"),
		req,
	)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, entry)
}

// POST /cart/add-test
func (ctl *ReservationController) AddTest(c *gin.Context) {
	var req dto.AddTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := ctl.Service.AddTestToCart(
		c.Request.Context(),
		c.GetString("userID"),
		c.GetString("userName"),
		req,
	)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, entry)
}

// POST /cart/remove
func (ctl *ReservationController) RemoveCartItem(c *gin.Context) {
	var req dto.RemoveCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := ctl.Service.RemoveFromCart(c.Request.Context(), c.GetString("userID"), req.ItemID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GET /cart
func (ctl *ReservationController) GetCart(c *gin.Context) {
	cart, err := ctl.Service.GetCart(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// POST /booking/cancel
func (ctl *ReservationController) CancelBooking(c *gin.Context) {
	var req dto.CancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	activity := model.ActivityType(req.ActivityType)
	if !activity.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "activityType inválido"})
		return
	}
	key, err := model.ParseSlotKey(req.Slot)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := ctl.Service.CancelBooking(c.Request.Context(), c.GetString("userID"), req.InstructorID, activity, key); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "reserva cancelada"})
}

// GET /instructors/:instructorId/schedule — público
func (ctl *ReservationController) GetSchedule(c *gin.Context) {
	instructorID := c.Param("instructorId")
	schedule, err := ctl.Service.Schedule(c.Request.Context(), instructorID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ScheduleResponse{InstructorID: instructorID, Schedule: schedule})
}

// GET /admin/holds/stale?olderThan=30m — admin only
func (ctl *ReservationController) GetStaleHolds(c *gin.Context) {
	olderThan := 30 * time.Minute
	if raw := c.Query("olderThan"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "olderThan inválido"})
			return
		}
		olderThan = d
	}

	holds, err := ctl.Service.StaleHolds(c.Request.Context(), olderThan)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, holds)
}

// POST /admin/classes/cancel — admin only
func (ctl *ReservationController) CancelClass(c *gin.Context) {
	var req struct {
		InstructorID string `json:"instructorId" binding:"required"`
		ActivityType string `json:"activityType" binding:"required"`
		SlotID       string `json:"slotId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	activity := model.ActivityType(req.ActivityType)
	if !activity.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "activityType inválido"})
		return
	}

	if err := ctl.Service.CancelClass(c.Request.Context(), req.InstructorID, activity, req.SlotID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "clase cancelada"})
}
