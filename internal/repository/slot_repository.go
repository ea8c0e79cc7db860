package repository

import (
	"context"
	"errors"
	"time"

	"github.com/IsaacPaez/drivingschool-sub001/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound = errors.New("documento no encontrado")

	// ErrWrongState: el slot existe pero no está en el estado que la
	// transición exige (el guard condicional no matcheó).
	ErrWrongState = errors.New("el slot no está en el estado requerido")
)

// Hold son los datos de propiedad que se escriben al reclamar un slot.
type Hold struct {
	StudentID     string
	StudentName   string
	PaymentMethod string
	Lesson        *model.LessonDetails
	Test          *model.TestDetails
}

// MongoSlotRepository guarda los horarios: un documento por instructor con
// los arrays lesson_slots y test_slots embebidos. Toda transición es un
// UpdateOne condicional sobre (slot_id, status actual): si dos requests
// compiten por el mismo slot, solo una matchea el filtro.
type MongoSlotRepository struct {
	col *mongo.Collection
}

func NewMongoSlotRepository(db *mongo.Database) *MongoSlotRepository {
	return &MongoSlotRepository{col: db.Collection("instructors")}
}

// arrayField mapea el tipo de actividad a su array dentro del documento.
func arrayField(activity model.ActivityType) string {
	if activity == model.ActivityTest {
		return "test_slots"
	}
	return "lesson_slots"
}

func (m *MongoSlotRepository) FindInstructor(ctx context.Context, instructorID string) (*model.Instructor, error) {
	var res model.Instructor
	err := m.col.FindOne(ctx, bson.M{"_id": instructorID}).Decode(&res)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	return &res, err
}

// FindSlot busca por identidad canónica.
func (m *MongoSlotRepository) FindSlot(ctx context.Context, instructorID string, activity model.ActivityType, slotID string) (*model.Slot, error) {
	inst, err := m.FindInstructor(ctx, instructorID)
	if err != nil {
		return nil, err
	}
	for _, s := range slotsOf(inst, activity) {
		if s.SlotID == slotID {
			return &s, nil
		}
	}
	return nil, ErrNotFound
}

// FindSlotByTime resuelve la tripleta (fecha, inicio, fin) al slot canónico.
// Es el único punto de entrada para los lookups legados por fecha/hora.
func (m *MongoSlotRepository) FindSlotByTime(ctx context.Context, instructorID string, activity model.ActivityType, key model.SlotKey) (*model.Slot, error) {
	inst, err := m.FindInstructor(ctx, instructorID)
	if err != nil {
		return nil, err
	}
	for _, s := range slotsOf(inst, activity) {
		if s.Date == key.Date && s.Start == key.Start && s.End == key.End {
			return &s, nil
		}
	}
	return nil, ErrNotFound
}

func slotsOf(inst *model.Instructor, activity model.ActivityType) []model.Slot {
	if activity == model.ActivityTest {
		return inst.TestSlots
	}
	return inst.LessonSlots
}

// ClaimSlot hace la transición available → pending. El filtro exige el
// estado actual además de la identidad: es la única defensa contra dos
// usuarios reclamando el mismo slot a la vez.
func (m *MongoSlotRepository) ClaimSlot(ctx context.Context, instructorID string, activity model.ActivityType, slotID string, hold Hold) error {
	field := arrayField(activity)
	now := time.Now().UTC()

	filter := bson.M{
		"_id": instructorID,
		field: bson.M{"$elemMatch": bson.M{
			"slot_id": slotID,
			"status":  model.SlotAvailable,
		}},
	}

	set := bson.M{
		field + ".$.status":       model.SlotPending,
		field + ".$.student_id":   hold.StudentID,
		field + ".$.student_name": hold.StudentName,
		field + ".$.reserved_at":  now,
		"updated_at":              now,
	}
	if hold.PaymentMethod != "" {
		set[field+".$.payment_method"] = hold.PaymentMethod
	}
	if hold.Lesson != nil {
		set[field+".$.lesson"] = hold.Lesson
	}
	if hold.Test != nil {
		set[field+".$.test"] = hold.Test
	}

	res, err := m.col.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return m.classify(ctx, instructorID, activity, slotID)
	}
	return nil
}

// unsetOwnership limpia todos los campos de alumno y pago para que no
// queden datos viejos en una futura reserva.
func unsetOwnership(field string) bson.M {
	return bson.M{
		field + ".$.student_id":     "",
		field + ".$.student_name":   "",
		field + ".$.payment_method": "",
		field + ".$.payment_id":     "",
		field + ".$.order_id":       "",
		field + ".$.order_number":   "",
		field + ".$.reserved_at":    "",
		field + ".$.confirmed_at":   "",
		field + ".$.lesson":         "",
		field + ".$.test":           "",
	}
}

// ReleaseSlot hace pending → available. Solo el alumno dueño puede liberar.
func (m *MongoSlotRepository) ReleaseSlot(ctx context.Context, instructorID string, activity model.ActivityType, slotID, studentID string) error {
	return m.freeSlot(ctx, instructorID, activity, slotID, studentID, model.SlotPending)
}

// CancelBookedSlot hace booked → available (cancelación del alumno).
func (m *MongoSlotRepository) CancelBookedSlot(ctx context.Context, instructorID string, activity model.ActivityType, slotID, studentID string) error {
	return m.freeSlot(ctx, instructorID, activity, slotID, studentID, model.SlotBooked)
}

func (m *MongoSlotRepository) freeSlot(ctx context.Context, instructorID string, activity model.ActivityType, slotID, studentID string, from model.SlotStatus) error {
	field := arrayField(activity)

	filter := bson.M{
		"_id": instructorID,
		field: bson.M{"$elemMatch": bson.M{
			"slot_id":    slotID,
			"status":     from,
			"student_id": studentID,
		}},
	}

	update := bson.M{
		"$set": bson.M{
			field + ".$.status": model.SlotAvailable,
			"updated_at":        time.Now().UTC(),
		},
		"$unset": unsetOwnership(field),
	}

	res, err := m.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return m.classify(ctx, instructorID, activity, slotID)
	}
	return nil
}

// ConfirmSlot hace pending → booked al confirmarse el pago. El guard exige
// también el dueño: un callback tardío de una orden cuyo slot fue liberado
// y reclamado por otro alumno no debe pisar el hold nuevo. Devuelve false
// sin error si el slot ya estaba booked por la misma orden: los callbacks
// de pago llegan repetidos y la confirmación debe ser idempotente.
func (m *MongoSlotRepository) ConfirmSlot(ctx context.Context, instructorID string, activity model.ActivityType, slotID, studentID, orderID, paymentID string) (bool, error) {
	field := arrayField(activity)
	now := time.Now().UTC()

	filter := bson.M{
		"_id": instructorID,
		field: bson.M{"$elemMatch": bson.M{
			"slot_id":    slotID,
			"status":     model.SlotPending,
			"student_id": studentID,
		}},
	}

	update := bson.M{"$set": bson.M{
		field + ".$.status":       model.SlotBooked,
		field + ".$.payment_id":   paymentID,
		field + ".$.order_id":     orderID,
		field + ".$.confirmed_at": now,
		"updated_at":              now,
	}}

	res, err := m.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	if res.MatchedCount > 0 {
		return true, nil
	}

	slot, err := m.FindSlot(ctx, instructorID, activity, slotID)
	if err != nil {
		return false, err
	}
	if slot.Status == model.SlotBooked && slot.OrderID == orderID {
		// Ya confirmado por un callback anterior: no-op.
		return false, nil
	}
	return false, ErrWrongState
}

// CancelClass marca un slot como cancelled (la clase se dio de baja).
// Es la única transición que produce el estado terminal.
func (m *MongoSlotRepository) CancelClass(ctx context.Context, instructorID string, activity model.ActivityType, slotID string) error {
	field := arrayField(activity)

	filter := bson.M{
		"_id": instructorID,
		field: bson.M{"$elemMatch": bson.M{
			"slot_id": slotID,
			"status":  bson.M{"$in": []model.SlotStatus{model.SlotPending, model.SlotBooked}},
		}},
	}

	update := bson.M{"$set": bson.M{
		field + ".$.status": model.SlotCancelled,
		"updated_at":        time.Now().UTC(),
	}}

	res, err := m.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return m.classify(ctx, instructorID, activity, slotID)
	}
	return nil
}

// SetOrderRef vincula un slot pendiente con su orden.
func (m *MongoSlotRepository) SetOrderRef(ctx context.Context, instructorID string, activity model.ActivityType, slotID, orderID, orderNumber string) error {
	field := arrayField(activity)

	filter := bson.M{
		"_id": instructorID,
		field: bson.M{"$elemMatch": bson.M{
			"slot_id": slotID,
			"status":  model.SlotPending,
		}},
	}

	update := bson.M{"$set": bson.M{
		field + ".$.order_id":     orderID,
		field + ".$.order_number": orderNumber,
	}}

	res, err := m.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return m.classify(ctx, instructorID, activity, slotID)
	}
	return nil
}

// Snapshot devuelve la lista completa de slots del instructor (clases +
// exámenes juntos), la forma que consume el canal en vivo.
func (m *MongoSlotRepository) Snapshot(ctx context.Context, instructorID string) ([]model.Slot, error) {
	inst, err := m.FindInstructor(ctx, instructorID)
	if err != nil {
		return nil, err
	}
	out := make([]model.Slot, 0, len(inst.LessonSlots)+len(inst.TestSlots))
	out = append(out, inst.LessonSlots...)
	out = append(out, inst.TestSlots...)
	return out, nil
}

// FindStaleHolds lista los holds pendientes reservados antes del corte.
// No hay reaper automático: la limpieza es una acción del operador.
func (m *MongoSlotRepository) FindStaleHolds(ctx context.Context, cutoff time.Time) ([]model.Slot, []string, error) {
	filter := bson.M{"$or": []bson.M{
		{"lesson_slots": bson.M{"$elemMatch": bson.M{"status": model.SlotPending, "reserved_at": bson.M{"$lt": cutoff}}}},
		{"test_slots": bson.M{"$elemMatch": bson.M{"status": model.SlotPending, "reserved_at": bson.M{"$lt": cutoff}}}},
	}}

	cur, err := m.col.Find(ctx, filter)
	if err != nil {
		return nil, nil, err
	}
	defer cur.Close(ctx)

	var slots []model.Slot
	var owners []string
	for cur.Next(ctx) {
		var inst model.Instructor
		if err := cur.Decode(&inst); err != nil {
			return nil, nil, err
		}
		all := append(append([]model.Slot{}, inst.LessonSlots...), inst.TestSlots...)
		for _, s := range all {
			if s.Status == model.SlotPending && s.ReservedAt != nil && s.ReservedAt.Before(cutoff) {
				slots = append(slots, s)
				owners = append(owners, inst.ID)
			}
		}
	}
	return slots, owners, cur.Err()
}

// classify distingue "no existe" de "existe pero en otro estado" cuando un
// guard condicional no matcheó.
func (m *MongoSlotRepository) classify(ctx context.Context, instructorID string, activity model.ActivityType, slotID string) error {
	if _, err := m.FindSlot(ctx, instructorID, activity, slotID); err != nil {
		return err
	}
	return ErrWrongState
}
