// models.go
package model

import "time"

type ActivityType string

const (
	ActivityLesson ActivityType = "lesson"
	ActivityTest   ActivityType = "test"
)

func (a ActivityType) Valid() bool {
	return a == ActivityLesson || a == ActivityTest
}

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotPending   SlotStatus = "pending"
	SlotBooked    SlotStatus = "booked"
	SlotCancelled SlotStatus = "cancelled"
)

// LessonDetails solo existe en slots de clase práctica.
type LessonDetails struct {
	PickupLocation  string `bson:"pickup_location" json:"pickupLocation"`
	DropoffLocation string `bson:"dropoff_location" json:"dropoffLocation"`
	SelectedPackage string `bson:"selected_package" json:"selectedPackage"`
}

// TestDetails solo existe en slots de examen.
type TestDetails struct {
	Amount float64 `bson:"amount" json:"amount"`
}

// Slot es la entidad central: un intervalo reservable de un instructor.
// La identidad canónica es SlotID (inmutable, asignada al generar el horario);
// la tripleta fecha/inicio/fin es solo un filtro de búsqueda.
type Slot struct {
	SlotID       string       `bson:"slot_id" json:"slotId"`
	Date         string       `bson:"date" json:"date"`   // YYYY-MM-DD
	Start        string       `bson:"start" json:"start"` // HH:MM
	End          string       `bson:"end" json:"end"`     // HH:MM
	ActivityType ActivityType `bson:"activity_type" json:"activityType"`
	Status       SlotStatus   `bson:"status" json:"status"`

	// Campos de propiedad: solo presentes cuando status != available.
	StudentID     string `bson:"student_id,omitempty" json:"studentId,omitempty"`
	StudentName   string `bson:"student_name,omitempty" json:"studentName,omitempty"`
	PaymentMethod string `bson:"payment_method,omitempty" json:"paymentMethod,omitempty"`
	PaymentID     string `bson:"payment_id,omitempty" json:"paymentId,omitempty"`
	OrderID       string `bson:"order_id,omitempty" json:"orderId,omitempty"`
	OrderNumber   string `bson:"order_number,omitempty" json:"orderNumber,omitempty"`

	ReservedAt  *time.Time `bson:"reserved_at,omitempty" json:"reservedAt,omitempty"`
	ConfirmedAt *time.Time `bson:"confirmed_at,omitempty" json:"confirmedAt,omitempty"`

	// Variante por tipo de actividad (solo una puede estar presente).
	Lesson *LessonDetails `bson:"lesson,omitempty" json:"lesson,omitempty"`
	Test   *TestDetails   `bson:"test,omitempty" json:"test,omitempty"`
}

// Instructor es la unidad de bloqueo: toda mutación de slots se aplica
// sobre un solo documento de instructor.
type Instructor struct {
	ID          string    `bson:"_id" json:"instructorId"`
	Name        string    `bson:"name" json:"name"`
	LessonSlots []Slot    `bson:"lesson_slots" json:"lessonSlots"`
	TestSlots   []Slot    `bson:"test_slots" json:"testSlots"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updatedAt"`
}

// SlotRef referencia un slot desde carritos y órdenes.
type SlotRef struct {
	InstructorID string       `bson:"instructor_id" json:"instructorId"`
	SlotID       string       `bson:"slot_id" json:"slotId"`
	ActivityType ActivityType `bson:"activity_type" json:"activityType"`
	Date         string       `bson:"date" json:"date"`
	Start        string       `bson:"start" json:"start"`
	End          string       `bson:"end" json:"end"`
}

// Key devuelve la clave de selección del slot (para mensajes de conflicto).
func (r SlotRef) Key() string {
	return r.Date + "-" + r.Start + "-" + r.End
}

// CartEntry agrupa los slots reclamados en una sola operación de carrito
// (una clase suelta, o todas las clases de un paquete).
type CartEntry struct {
	EntryID        string    `bson:"entry_id" json:"entryId"`
	Slots          []SlotRef `bson:"slots" json:"slots"`
	Price          float64   `bson:"price" json:"price"`
	InstructorName string    `bson:"instructor_name" json:"instructorName"`
	PackageName    string    `bson:"package_name,omitempty" json:"packageName,omitempty"`
	AddedAt        time.Time `bson:"added_at" json:"addedAt"`
}

// Cart es el documento de carrito de un usuario (un doc por usuario).
type Cart struct {
	UserID    string      `bson:"_id" json:"userId"`
	Entries   []CartEntry `bson:"entries" json:"entries"`
	UpdatedAt time.Time   `bson:"updated_at" json:"updatedAt"`
}

// Estados de cumplimiento de la orden.
const (
	OrderEstadoPendiente  = "pendiente"
	OrderEstadoProcesando = "procesando"
	OrderEstadoCompletada = "completada"
	OrderEstadoCancelada  = "cancelada"
)

// Estados de pago de la orden (independientes del estado de cumplimiento).
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
)

type Order struct {
	OrderID       string    `bson:"_id" json:"orderId"`
	OrderNumber   string    `bson:"order_number" json:"orderNumber"`
	UserID        string    `bson:"user_id" json:"userId"`
	OrderType     string    `bson:"order_type" json:"orderType"`
	Appointments  []SlotRef `bson:"appointments" json:"appointments"`
	Total         float64   `bson:"total" json:"total"`
	Estado        string    `bson:"estado" json:"estado"`
	PaymentStatus string    `bson:"payment_status" json:"paymentStatus"`
	PaymentID     string    `bson:"payment_id,omitempty" json:"paymentId,omitempty"`
	CreatedAt     time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `bson:"updated_at" json:"updatedAt"`
}

// SeatRequest ocupa un asiento de forma provisional en una clase grupal.
type SeatRequest struct {
	RequestID   string    `bson:"request_id" json:"requestId"`
	StudentID   string    `bson:"student_id" json:"studentId"`
	StudentName string    `bson:"student_name" json:"studentName"`
	RequestedAt time.Time `bson:"requested_at" json:"requestedAt"`
}

// RosterEntry es un asiento confirmado (pagado) de una clase grupal.
// Conserva el RequestID de origen para detectar confirmaciones repetidas.
type RosterEntry struct {
	RequestID   string    `bson:"request_id" json:"requestId"`
	StudentID   string    `bson:"student_id" json:"studentId"`
	StudentName string    `bson:"student_name" json:"studentName"`
	PaymentID   string    `bson:"payment_id" json:"paymentId"`
	EnrolledAt  time.Time `bson:"enrolled_at" json:"enrolledAt"`
}

// TicketClass es una clase grupal con cupo: la capacidad se controla
// comparando enrolled + pending contra Capacity antes de aceptar.
type TicketClass struct {
	ID        string        `bson:"_id" json:"classId"`
	Name      string        `bson:"name" json:"name"`
	Date      string        `bson:"date" json:"date"`
	Start     string        `bson:"start" json:"start"`
	End       string        `bson:"end" json:"end"`
	Capacity  int           `bson:"capacity" json:"capacity"`
	Price     float64       `bson:"price" json:"price"`
	Pending   []SeatRequest `bson:"pending" json:"pending"`
	Enrolled  []RosterEntry `bson:"enrolled" json:"enrolled"`
	Cancelled bool          `bson:"cancelled" json:"cancelled"`
	UpdatedAt time.Time     `bson:"updated_at" json:"updatedAt"`
}

// SeatsLeft devuelve los asientos que quedan contando también los
// pedidos provisionales.
func (t *TicketClass) SeatsLeft() int {
	return t.Capacity - len(t.Enrolled) - len(t.Pending)
}
