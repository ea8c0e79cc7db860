// dto.go
package dto

import (
	"time"

	"github.com/IsaacPaez/drivingschool-sub001/internal/model"
)

// ReservePendingRequest reserva directa de un slot (available → pending).
type ReservePendingRequest struct {
	InstructorID  string `json:"instructorId" binding:"required"`
	ActivityType  string `json:"activityType" binding:"required"`
	Slot          string `json:"slot" binding:"required"` // YYYY-MM-DD-HH:MM-HH:MM
	PaymentMethod string `json:"paymentMethod"`
}

// AddLessonRequest agrega una o varias clases prácticas al carrito.
// Un paquete multi-clase manda todas sus claves de slot juntas.
type AddLessonRequest struct {
	InstructorID    string   `json:"instructorId" binding:"required"`
	Slots           []string `json:"slots" binding:"required,min=1"`
	PickupLocation  string   `json:"pickupLocation"`
	DropoffLocation string   `json:"dropoffLocation"`
	SelectedPackage string   `json:"selectedPackage"`
	Price           float64  `json:"price"`
}

// AddTestRequest agrega un examen de manejo al carrito.
type AddTestRequest struct {
	InstructorID string  `json:"instructorId" binding:"required"`
	Slot         string  `json:"slot" binding:"required"`
	Amount       float64 `json:"amount" binding:"required"`
}

type RemoveCartItemRequest struct {
	ItemID string `json:"itemId" binding:"required"`
}

// RemoveCartItemResponse reporta los slots que no se liberaron porque el
// pago ya los había confirmado.
type RemoveCartItemResponse struct {
	Removed     bool     `json:"removed"`
	BookedSlots []string `json:"bookedSlots,omitempty"`
}

type CreateOrderRequest struct {
	OrderType    string           `json:"orderType" binding:"required"`
	Appointments []AppointmentRef `json:"appointments" binding:"required,min=1"`
	Total        float64          `json:"total" binding:"required"`
}

type AppointmentRef struct {
	InstructorID string `json:"instructorId" binding:"required"`
	ActivityType string `json:"activityType" binding:"required"`
	Slot         string `json:"slot" binding:"required"`
}

type UpdateOrderStatusRequest struct {
	OrderID       string `json:"orderId" binding:"required"`
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus" binding:"required"`
	PaymentID     string `json:"paymentId"`
}

// ReconcileResult reporta el resultado por slot de una confirmación de
// pago: cuántos pasaron a booked, cuántos ya lo estaban y cuáles fallaron.
type ReconcileResult struct {
	OrderID      string   `json:"orderId"`
	Modified     int      `json:"modified"`
	AlreadyFinal int      `json:"alreadyFinal"`
	Failed       []string `json:"failed,omitempty"`
}

type CancelBookingRequest struct {
	InstructorID string `json:"instructorId" binding:"required"`
	ActivityType string `json:"activityType" binding:"required"`
	Slot         string `json:"slot" binding:"required"`
}

type ConfirmSeatRequest struct {
	RequestID string `json:"requestId" binding:"required"`
	PaymentID string `json:"paymentId" binding:"required"`
}

type SendCodeRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type CheckCodeRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required"`
}

// ScheduleResponse es la instantánea completa que ven los clientes
// (la misma forma que emite el canal en vivo).
type ScheduleResponse struct {
	InstructorID string       `json:"instructorId"`
	Schedule     []model.Slot `json:"schedule"`
}

// StaleHold es un hold pendiente cuya reserva superó el umbral dado
// (la limpieza es manual; ver DESIGN.md).
type StaleHold struct {
	InstructorID string    `json:"instructorId"`
	SlotID       string    `json:"slotId"`
	ActivityType string    `json:"activityType"`
	StudentID    string    `json:"studentId"`
	ReservedAt   time.Time `json:"reservedAt"`
}
