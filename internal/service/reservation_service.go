package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/IsaacPaez/drivingschool-sub001/internal/dto"
	"github.com/IsaacPaez/drivingschool-sub001/internal/model"
	"github.com/IsaacPaez/drivingschool-sub001/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Interfaz que debe implementar el repositorio de horarios.
type SlotRepository interface {
	FindInstructor(ctx context.Context, instructorID string) (*model.Instructor, error)
	FindSlot(ctx context.Context, instructorID string, activity model.ActivityType, slotID string) (*model.Slot, error)
	FindSlotByTime(ctx context.Context, instructorID string, activity model.ActivityType, key model.SlotKey) (*model.Slot, error)
	ClaimSlot(ctx context.Context, instructorID string, activity model.ActivityType, slotID string, hold repository.Hold) error
	ReleaseSlot(ctx context.Context, instructorID string, activity model.ActivityType, slotID, studentID string) error
	CancelBookedSlot(ctx context.Context, instructorID string, activity model.ActivityType, slotID, studentID string) error
	ConfirmSlot(ctx context.Context, instructorID string, activity model.ActivityType, slotID, studentID, orderID, paymentID string) (bool, error)
	CancelClass(ctx context.Context, instructorID string, activity model.ActivityType, slotID string) error
	SetOrderRef(ctx context.Context, instructorID string, activity model.ActivityType, slotID, orderID, orderNumber string) error
	Snapshot(ctx context.Context, instructorID string) ([]model.Slot, error)
	FindStaleHolds(ctx context.Context, cutoff time.Time) ([]model.Slot, []string, error)
}

type CartRepository interface {
	FindByUser(ctx context.Context, userID string) (*model.Cart, error)
	AppendEntry(ctx context.Context, userID string, entry model.CartEntry) error
	RemoveEntry(ctx context.Context, userID, entryID string) error
}

// Notifier avisa al canal en vivo que el horario de un instructor cambió.
type Notifier interface {
	SlotsChanged(instructorID string)
}

// Errores de negocio exportados (los usa el controller).
var (
	ErrSlotUnavailable = errors.New("el slot no está disponible")
	ErrUnauthorized    = errors.New("el slot pertenece a otro alumno")
	ErrSlotInCart      = errors.New("el slot ya está en el carrito")
	ErrClassFull       = errors.New("la clase no tiene cupo")
	ErrInvalidCode     = errors.New("código inválido o vencido")
)

// SlotConflictError nombra los slots que no se pudieron reclamar, para que
// la UI pueda resaltar exactamente cuáles fallaron.
type SlotConflictError struct {
	Slots []string
}

func (e *SlotConflictError) Error() string {
	return "slots en conflicto: " + strings.Join(e.Slots, ", ")
}

type ReservationService struct {
	slots    SlotRepository
	carts    CartRepository
	notifier Notifier
	logger   *zap.Logger
}

func NewReservationService(slots SlotRepository, carts CartRepository, notifier Notifier, logger *zap.Logger) *ReservationService {
	return &ReservationService{
		slots:    slots,
		carts:    carts,
		notifier: notifier,
		logger:   logger,
	}
}

// resolve convierte la clave fecha/hora en el slot canónico. Toda
// operación posterior usa el SlotID inmutable.
func (s *ReservationService) resolve(ctx context.Context, instructorID string, activity model.ActivityType, key model.SlotKey) (*model.Slot, error) {
	return s.slots.FindSlotByTime(ctx, instructorID, activity, key)
}

// ReservePending reclama un slot directo (available → pending).
func (s *ReservationService) ReservePending(ctx context.Context, studentID, studentName, instructorID string, activity model.ActivityType, key model.SlotKey, paymentMethod string) (*model.Slot, error) {
	slot, err := s.resolve(ctx, instructorID, activity, key)
	if err != nil {
		return nil, err
	}

	hold := repository.Hold{
		StudentID:     studentID,
		StudentName:   studentName,
		PaymentMethod: paymentMethod,
	}
	if err := s.slots.ClaimSlot(ctx, instructorID, activity, slot.SlotID, hold); err != nil {
		if errors.Is(err, repository.ErrWrongState) {
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}

	s.logger.Info("Slot reservado",
		zap.String("instructor_id", instructorID),
		zap.String("slot_id", slot.SlotID),
		zap.String("student_id", studentID),
	)
	s.notifier.SlotsChanged(instructorID)

	return s.slots.FindSlot(ctx, instructorID, activity, slot.SlotID)
}

// AddLessonToCart reclama todas las clases del pedido y recién entonces
// agrega la entrada al carrito. Si cualquier slot falla, los reclamos
// previos se revierten: nunca quedan holds parciales de un paquete.
func (s *ReservationService) AddLessonToCart(ctx context.Context, userID, userName string, req dto.AddLessonRequest) (*model.CartEntry, error) {
	keys := make([]model.SlotKey, 0, len(req.Slots))
	for _, raw := range req.Slots {
		k, err := model.ParseSlotKey(raw)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}

	refs := make([]model.SlotRef, 0, len(keys))
	for _, k := range keys {
		slot, err := s.resolve(ctx, req.InstructorID, model.ActivityLesson, k)
		if err != nil {
			return nil, err
		}
		refs = append(refs, model.SlotRef{
			InstructorID: req.InstructorID,
			SlotID:       slot.SlotID,
			ActivityType: model.ActivityLesson,
			Date:         slot.Date,
			Start:        slot.Start,
			End:          slot.End,
		})
	}

	if err := s.checkNotInCart(ctx, userID, refs); err != nil {
		return nil, err
	}

	hold := repository.Hold{
		StudentID:   userID,
		StudentName: userName,
		Lesson: &model.LessonDetails{
			PickupLocation:  req.PickupLocation,
			DropoffLocation: req.DropoffLocation,
			SelectedPackage: req.SelectedPackage,
		},
	}
	if err := s.claimAll(ctx, refs, hold); err != nil {
		return nil, err
	}

	inst, err := s.slots.FindInstructor(ctx, req.InstructorID)
	if err != nil {
		return nil, err
	}

	entry := model.CartEntry{
		EntryID:        uuid.NewString(),
		Slots:          refs,
		Price:          req.Price,
		InstructorName: inst.Name,
		PackageName:    req.SelectedPackage,
		AddedAt:        time.Now().UTC(),
	}
	if err := s.carts.AppendEntry(ctx, userID, entry); err != nil {
		// El carrito no se pudo escribir: soltamos los holds.
		s.rollback(ctx, refs, userID)
		return nil, err
	}

	s.logger.Info("Clases agregadas al carrito",
		zap.String("user_id", userID),
		zap.String("entry_id", entry.EntryID),
		zap.Int("slots", len(refs)),
	)
	s.notifier.SlotsChanged(req.InstructorID)

	return &entry, nil
}

// AddTestToCart reclama un slot de examen y lo agrega al carrito.
func (s *ReservationService) AddTestToCart(ctx context.Context, userID, userName string, req dto.AddTestRequest) (*model.CartEntry, error) {
	key, err := model.ParseSlotKey(req.Slot)
	if err != nil {
		return nil, err
	}
	slot, err := s.resolve(ctx, req.InstructorID, model.ActivityTest, key)
	if err != nil {
		return nil, err
	}

	refs := []model.SlotRef{{
		InstructorID: req.InstructorID,
		SlotID:       slot.SlotID,
		ActivityType: model.ActivityTest,
		Date:         slot.Date,
		Start:        slot.Start,
		End:          slot.End,
	}}
	if err := s.checkNotInCart(ctx, userID, refs); err != nil {
		return nil, err
	}

	hold := repository.Hold{
		StudentID:   userID,
		StudentName: userName,
		Test:        &model.TestDetails{Amount: req.Amount},
	}
	if err := s.claimAll(ctx, refs, hold); err != nil {
		return nil, err
	}

	inst, err := s.slots.FindInstructor(ctx, req.InstructorID)
	if err != nil {
		return nil, err
	}

	entry := model.CartEntry{
		EntryID:        uuid.NewString(),
		Slots:          refs,
		Price:          req.Amount,
		InstructorName: inst.Name,
		AddedAt:        time.Now().UTC(),
	}
	if err := s.carts.AppendEntry(ctx, userID, entry); err != nil {
		s.rollback(ctx, refs, userID)
		return nil, err
	}

	s.notifier.SlotsChanged(req.InstructorID)
	return &entry, nil
}

// checkNotInCart evita entradas duplicadas: un slot no puede aparecer dos
// veces en el carrito del mismo usuario.
func (s *ReservationService) checkNotInCart(ctx context.Context, userID string, refs []model.SlotRef) error {
	cart, err := s.carts.FindByUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, e := range cart.Entries {
		for _, have := range e.Slots {
			for _, want := range refs {
				if have.InstructorID == want.InstructorID && have.SlotID == want.SlotID {
					return ErrSlotInCart
				}
			}
		}
	}
	return nil
}

// claimAll intenta reclamar todos los slots. Se intentan todos aunque
// alguno falle, para reportar la lista completa de conflictos; si hubo al
// menos un fallo, los reclamos exitosos se revierten.
func (s *ReservationService) claimAll(ctx context.Context, refs []model.SlotRef, hold repository.Hold) error {
	var claimed []model.SlotRef
	var failed []string

	for _, ref := range refs {
		err := s.slots.ClaimSlot(ctx, ref.InstructorID, ref.ActivityType, ref.SlotID, hold)
		if err != nil {
			failed = append(failed, ref.Key())
			continue
		}
		claimed = append(claimed, ref)
	}

	if len(failed) > 0 {
		s.rollback(ctx, claimed, hold.StudentID)
		return &SlotConflictError{Slots: failed}
	}
	return nil
}

func (s *ReservationService) rollback(ctx context.Context, refs []model.SlotRef, studentID string) {
	for _, ref := range refs {
		if err := s.slots.ReleaseSlot(ctx, ref.InstructorID, ref.ActivityType, ref.SlotID, studentID); err != nil {
			s.logger.Warn("No se pudo revertir el reclamo",
				zap.String("slot_id", ref.SlotID),
				zap.Error(err),
			)
		}
	}
}

// RemoveFromCart libera los slots de la entrada y la borra del carrito.
// Un slot que ya pasó a booked (el pago ganó la carrera) se deja intacto y
// se reporta.
func (s *ReservationService) RemoveFromCart(ctx context.Context, userID, entryID string) (*dto.RemoveCartItemResponse, error) {
	cart, err := s.carts.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var entry *model.CartEntry
	for i := range cart.Entries {
		if cart.Entries[i].EntryID == entryID {
			entry = &cart.Entries[i]
			break
		}
	}
	if entry == nil {
		return nil, repository.ErrNotFound
	}

	// Primero sale la entrada del carrito: si esta escritura falla, los
	// holds quedan intactos y el request se puede reintentar. Un hold que
	// no se pudiera liberar después aparece en el listado de holds viejos.
	if err := s.carts.RemoveEntry(ctx, userID, entryID); err != nil {
		return nil, err
	}

	resp := &dto.RemoveCartItemResponse{Removed: true}
	touched := make(map[string]struct{})

	for _, ref := range entry.Slots {
		err := s.slots.ReleaseSlot(ctx, ref.InstructorID, ref.ActivityType, ref.SlotID, userID)
		if err == nil {
			touched[ref.InstructorID] = struct{}{}
			continue
		}
		if errors.Is(err, repository.ErrWrongState) {
			slot, ferr := s.slots.FindSlot(ctx, ref.InstructorID, ref.ActivityType, ref.SlotID)
			if ferr == nil && slot.Status == model.SlotBooked {
				resp.BookedSlots = append(resp.BookedSlots, ref.Key())
				continue
			}
		}
		s.logger.Warn("No se pudo liberar el slot al quitar del carrito",
			zap.String("slot_id", ref.SlotID),
			zap.Error(err),
		)
	}

	for instructorID := range touched {
		s.notifier.SlotsChanged(instructorID)
	}
	return resp, nil
}

func (s *ReservationService) GetCart(ctx context.Context, userID string) (*model.Cart, error) {
	return s.carts.FindByUser(ctx, userID)
}

// CancelBooking revierte una reserva del alumno: pending → available o
// booked → available, con chequeo de propiedad.
func (s *ReservationService) CancelBooking(ctx context.Context, studentID, instructorID string, activity model.ActivityType, key model.SlotKey) error {
	slot, err := s.resolve(ctx, instructorID, activity, key)
	if err != nil {
		return err
	}
	if slot.Status == model.SlotAvailable || slot.Status == model.SlotCancelled {
		return ErrSlotUnavailable
	}
	if slot.StudentID != studentID {
		return ErrUnauthorized
	}

	switch slot.Status {
	case model.SlotPending:
		err = s.slots.ReleaseSlot(ctx, instructorID, activity, slot.SlotID, studentID)
	case model.SlotBooked:
		err = s.slots.CancelBookedSlot(ctx, instructorID, activity, slot.SlotID, studentID)
	}
	if err != nil {
		if errors.Is(err, repository.ErrWrongState) {
			return ErrSlotUnavailable
		}
		return err
	}

	s.logger.Info("Reserva cancelada",
		zap.String("instructor_id", instructorID),
		zap.String("slot_id", slot.SlotID),
		zap.String("student_id", studentID),
	)
	s.notifier.SlotsChanged(instructorID)
	return nil
}

// CancelClass da de baja la clase en sí (admin): el slot queda cancelled.
func (s *ReservationService) CancelClass(ctx context.Context, instructorID string, activity model.ActivityType, slotID string) error {
	err := s.slots.CancelClass(ctx, instructorID, activity, slotID)
	if err != nil {
		if errors.Is(err, repository.ErrWrongState) {
			return ErrSlotUnavailable
		}
		return err
	}
	s.notifier.SlotsChanged(instructorID)
	return nil
}

func (s *ReservationService) Schedule(ctx context.Context, instructorID string) ([]model.Slot, error) {
	return s.slots.Snapshot(ctx, instructorID)
}

// StaleHolds lista los holds pendientes más viejos que olderThan. No hay
// limpieza automática: esto alimenta la revisión manual del operador.
func (s *ReservationService) StaleHolds(ctx context.Context, olderThan time.Duration) ([]dto.StaleHold, error) {
	slots, owners, err := s.slots.FindStaleHolds(ctx, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return nil, err
	}
	out := make([]dto.StaleHold, 0, len(slots))
	for i, sl := range slots {
		h := dto.StaleHold{
			InstructorID: owners[i],
			SlotID:       sl.SlotID,
			ActivityType: string(sl.ActivityType),
			StudentID:    sl.StudentID,
		}
		if sl.ReservedAt != nil {
			h.ReservedAt = *sl.ReservedAt
		}
		out = append(out, h)
	}
	return out, nil
}
