package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IsaacPaez/drivingschool-sub001/internal/dto"
	"github.com/IsaacPaez/drivingschool-sub001/internal/model"

	"go.uber.org/zap"
)

func testInstructor() *model.Instructor {
	return &model.Instructor{
		ID:   "I1",
		Name: "Carlos Pérez",
		LessonSlots: []model.Slot{
			{SlotID: "L1", Date: "2025-09-25", Start: "14:30", End: "16:30", ActivityType: model.ActivityLesson, Status: model.SlotAvailable},
			{SlotID: "L2", Date: "2025-09-26", Start: "10:00", End: "12:00", ActivityType: model.ActivityLesson, Status: model.SlotAvailable},
		},
		TestSlots: []model.Slot{
			{SlotID: "T1", Date: "2025-09-27", Start: "09:00", End: "10:00", ActivityType: model.ActivityTest, Status: model.SlotAvailable},
		},
	}
}

func newTestReservation(t *testing.T) (*ReservationService, *memSlotRepo, *memCartRepo, *fakeNotifier) {
	t.Helper()
	slots := newMemSlotRepo(testInstructor())
	carts := newMemCartRepo()
	notifier := &fakeNotifier{}
	svc := NewReservationService(slots, carts, notifier, zap.NewNop())
	return svc, slots, carts, notifier
}

func mustKey(t *testing.T, raw string) model.SlotKey {
	t.Helper()
	k, err := model.ParseSlotKey(raw)
	if err != nil {
		t.Fatalf("ParseSlotKey(%q): %v", raw, err)
	}
	return k
}

func TestReservePendingClaimsSlot(t *testing.T) {
	svc, slots, _, notifier := newTestReservation(t)
	ctx := context.Background()

	slot, err := svc.ReservePending(ctx, "U1", "Ana", "I1", model.ActivityLesson, mustKey(t, "2025-09-25-14:30-16:30"), "card")
	if err != nil {
		t.Fatalf("ReservePending: %v", err)
	}
	if slot.Status != model.SlotPending {
		t.Fatalf("expected pending, got %s", slot.Status)
	}
	if slot.StudentID != "U1" {
		t.Fatalf("expected owner U1, got %q", slot.StudentID)
	}
	if slot.ReservedAt == nil {
		t.Fatal("expected reservedAt to be stamped")
	}
	if notifier.count("I1") != 1 {
		t.Fatalf("expected 1 notification for I1, got %d", notifier.count("I1"))
	}

	// El perdedor de la carrera recibe un conflicto definitivo.
	_, err = svc.ReservePending(ctx, "U2", "Beto", "I1", model.ActivityLesson, mustKey(t, "2025-09-25-14:30-16:30"), "card")
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}

	// El slot no cambió de dueño.
	got, _ := slots.FindSlot(ctx, "I1", model.ActivityLesson, "L1")
	if got.StudentID != "U1" {
		t.Fatalf("claim was overwritten: owner %q", got.StudentID)
	}
}

func TestDuplicateSubmitSameStudentRejected(t *testing.T) {
	svc, _, _, _ := newTestReservation(t)
	ctx := context.Background()

	key := mustKey(t, "2025-09-25-14:30-16:30")
	if _, err := svc.ReservePending(ctx, "U1", "Ana", "I1", model.ActivityLesson, key, ""); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	// Doble submit del mismo alumno: se rechaza, no se mergea.
	if _, err := svc.ReservePending(ctx, "U1", "Ana", "I1", model.ActivityLesson, key, ""); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable on duplicate submit, got %v", err)
	}
}

func TestClaimReleaseReclaimByOtherUser(t *testing.T) {
	svc, _, _, _ := newTestReservation(t)
	ctx := context.Background()
	key := mustKey(t, "2025-09-25-14:30-16:30")

	if _, err := svc.ReservePending(ctx, "U1", "Ana", "I1", model.ActivityLesson, key, ""); err != nil {
		t.Fatalf("claim U1: %v", err)
	}
	if err := svc.CancelBooking(ctx, "U1", "I1", model.ActivityLesson, key); err != nil {
		t.Fatalf("release U1: %v", err)
	}
	slot, err := svc.ReservePending(ctx, "U2", "Beto", "I1", model.ActivityLesson, key, "")
	if err != nil {
		t.Fatalf("claim U2 after release: %v", err)
	}
	if slot.StudentID != "U2" || slot.StudentName != "Beto" {
		t.Fatalf("stale ownership data: %+v", slot)
	}
}

func TestAddLessonRollsBackOnPartialConflict(t *testing.T) {
	svc, slots, _, _ := newTestReservation(t)
	ctx := context.Background()

	// Otro alumno ya tiene L2.
	if _, err := svc.ReservePending(ctx, "U9", "Otro", "I1", model.ActivityLesson, mustKey(t, "2025-09-26-10:00-12:00"), ""); err != nil {
		t.Fatalf("setup claim: %v", err)
	}

	_, err := svc.AddLessonToCart(ctx, "U1", "Ana", dto.AddLessonRequest{
		InstructorID:    "I1",
		Slots:           []string{"2025-09-25-14:30-16:30", "2025-09-26-10:00-12:00"},
		SelectedPackage: "pack-10",
		Price:           350,
	})

	var conflict *SlotConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected SlotConflictError, got %v", err)
	}
	if len(conflict.Slots) != 1 || conflict.Slots[0] != "2025-09-26-10:00-12:00" {
		t.Fatalf("conflict should name the failing slot, got %v", conflict.Slots)
	}

	// El reclamo de L1 se revirtió: no quedan holds parciales.
	got, _ := slots.FindSlot(ctx, "I1", model.ActivityLesson, "L1")
	if got.Status != model.SlotAvailable || got.StudentID != "" {
		t.Fatalf("partial hold leaked: %+v", got)
	}
}

func TestAddLessonAppendsEntryWithDetails(t *testing.T) {
	svc, slots, carts, _ := newTestReservation(t)
	ctx := context.Background()

	entry, err := svc.AddLessonToCart(ctx, "U1", "Ana", dto.AddLessonRequest{
		InstructorID:    "I1",
		Slots:           []string{"2025-09-25-14:30-16:30"},
		PickupLocation:  "Av. Mitre 100",
		DropoffLocation: "Plaza Central",
		SelectedPackage: "pack-1",
		Price:           50,
	})
	if err != nil {
		t.Fatalf("AddLessonToCart: %v", err)
	}
	if entry.EntryID == "" || len(entry.Slots) != 1 {
		t.Fatalf("malformed entry: %+v", entry)
	}
	if entry.Slots[0].SlotID != "L1" {
		t.Fatalf("expected canonical slot id L1, got %s", entry.Slots[0].SlotID)
	}

	slot, _ := slots.FindSlot(ctx, "I1", model.ActivityLesson, "L1")
	if slot.Lesson == nil || slot.Lesson.PickupLocation != "Av. Mitre 100" {
		t.Fatalf("lesson details not stored: %+v", slot)
	}
	if slot.Test != nil {
		t.Fatal("test variant must not appear on a lesson slot")
	}

	cart, _ := carts.FindByUser(ctx, "U1")
	if len(cart.Entries) != 1 {
		t.Fatalf("expected 1 cart entry, got %d", len(cart.Entries))
	}
}

func TestCartDuplicateSlotGuard(t *testing.T) {
	svc, _, _, _ := newTestReservation(t)
	ctx := context.Background()

	req := dto.AddLessonRequest{
		InstructorID: "I1",
		Slots:        []string{"2025-09-25-14:30-16:30"},
		Price:        50,
	}
	if _, err := svc.AddLessonToCart(ctx, "U1", "Ana", req); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := svc.AddLessonToCart(ctx, "U1", "Ana", req); !errors.Is(err, ErrSlotInCart) {
		t.Fatalf("expected ErrSlotInCart, got %v", err)
	}
}

func TestRemoveFromCartReleasesSlots(t *testing.T) {
	svc, slots, carts, _ := newTestReservation(t)
	ctx := context.Background()

	entry, err := svc.AddLessonToCart(ctx, "U1", "Ana", dto.AddLessonRequest{
		InstructorID: "I1",
		Slots:        []string{"2025-09-25-14:30-16:30"},
		Price:        50,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	resp, err := svc.RemoveFromCart(ctx, "U1", entry.EntryID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !resp.Removed || len(resp.BookedSlots) != 0 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	slot, _ := slots.FindSlot(ctx, "I1", model.ActivityLesson, "L1")
	if slot.Status != model.SlotAvailable || slot.StudentID != "" || slot.Lesson != nil {
		t.Fatalf("slot not fully cleared: %+v", slot)
	}
	cart, _ := carts.FindByUser(ctx, "U1")
	if len(cart.Entries) != 0 {
		t.Fatalf("entry not removed: %+v", cart.Entries)
	}
}

func TestRemoveFromCartLeavesBookedSlot(t *testing.T) {
	svc, slots, _, _ := newTestReservation(t)
	ctx := context.Background()

	entry, err := svc.AddLessonToCart(ctx, "U1", "Ana", dto.AddLessonRequest{
		InstructorID: "I1",
		Slots:        []string{"2025-09-25-14:30-16:30"},
		Price:        50,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	// El pago ganó la carrera: el slot ya quedó booked.
	if _, err := slots.ConfirmSlot(ctx, "I1", model.ActivityLesson, "L1", "U1", "O1", "pay-1"); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	resp, err := svc.RemoveFromCart(ctx, "U1", entry.EntryID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(resp.BookedSlots) != 1 {
		t.Fatalf("expected the booked slot to be reported, got %+v", resp)
	}

	slot, _ := slots.FindSlot(ctx, "I1", model.ActivityLesson, "L1")
	if slot.Status != model.SlotBooked {
		t.Fatalf("booked slot was force-reverted: %s", slot.Status)
	}
}

func TestAddTestToCartStoresTestDetails(t *testing.T) {
	svc, slots, carts, _ := newTestReservation(t)
	ctx := context.Background()

	entry, err := svc.AddTestToCart(ctx, "U1", "Ana", dto.AddTestRequest{
		InstructorID: "I1",
		Slot:         "2025-09-27-09:00-10:00",
		Amount:       120,
	})
	if err != nil {
		t.Fatalf("AddTestToCart: %v", err)
	}
	if len(entry.Slots) != 1 || entry.Slots[0].SlotID != "T1" {
		t.Fatalf("malformed entry: %+v", entry)
	}
	if entry.Slots[0].ActivityType != model.ActivityTest {
		t.Fatalf("expected test activity, got %s", entry.Slots[0].ActivityType)
	}
	if entry.Price != 120 {
		t.Fatalf("expected price 120, got %v", entry.Price)
	}

	slot, _ := slots.FindSlot(ctx, "I1", model.ActivityTest, "T1")
	if slot.Status != model.SlotPending || slot.StudentID != "U1" {
		t.Fatalf("test slot not claimed: %+v", slot)
	}
	if slot.Test == nil || slot.Test.Amount != 120 {
		t.Fatalf("test details not stored: %+v", slot)
	}
	if slot.Lesson != nil {
		t.Fatal("lesson variant must not appear on a test slot")
	}

	cart, _ := carts.FindByUser(ctx, "U1")
	if len(cart.Entries) != 1 {
		t.Fatalf("expected 1 cart entry, got %d", len(cart.Entries))
	}
}

func TestCancelClassMarksSlotCancelled(t *testing.T) {
	svc, slots, _, notifier := newTestReservation(t)
	ctx := context.Background()

	if _, err := svc.ReservePending(ctx, "U1", "Ana", "I1", model.ActivityLesson, mustKey(t, "2025-09-25-14:30-16:30"), ""); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := svc.CancelClass(ctx, "I1", model.ActivityLesson, "L1"); err != nil {
		t.Fatalf("CancelClass: %v", err)
	}

	slot, _ := slots.FindSlot(ctx, "I1", model.ActivityLesson, "L1")
	if slot.Status != model.SlotCancelled {
		t.Fatalf("expected cancelled, got %s", slot.Status)
	}
	if notifier.count("I1") != 2 {
		t.Fatalf("expected claim + cancel notifications, got %d", notifier.count("I1"))
	}

	// El estado es terminal: nadie puede volver a reclamar el slot.
	if _, err := svc.ReservePending(ctx, "U2", "Beto", "I1", model.ActivityLesson, mustKey(t, "2025-09-25-14:30-16:30"), ""); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable on a cancelled slot, got %v", err)
	}
}

func TestCancelClassOnBookedSlot(t *testing.T) {
	svc, slots, _, _ := newTestReservation(t)
	ctx := context.Background()

	if _, err := svc.ReservePending(ctx, "U1", "Ana", "I1", model.ActivityLesson, mustKey(t, "2025-09-25-14:30-16:30"), ""); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := slots.ConfirmSlot(ctx, "I1", model.ActivityLesson, "L1", "U1", "O1", "pay-1"); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if err := svc.CancelClass(ctx, "I1", model.ActivityLesson, "L1"); err != nil {
		t.Fatalf("CancelClass on booked: %v", err)
	}
	slot, _ := slots.FindSlot(ctx, "I1", model.ActivityLesson, "L1")
	if slot.Status != model.SlotCancelled {
		t.Fatalf("expected cancelled, got %s", slot.Status)
	}
}

func TestCancelClassRejectsAvailableSlot(t *testing.T) {
	svc, _, _, _ := newTestReservation(t)

	if err := svc.CancelClass(context.Background(), "I1", model.ActivityLesson, "L1"); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
}

// failingCartRepo simula un conflicto de escritura al borrar la entrada.
type failingCartRepo struct {
	*memCartRepo
	fail bool
}

func (f *failingCartRepo) RemoveEntry(ctx context.Context, userID, entryID string) error {
	if f.fail {
		return errors.New("write conflict")
	}
	return f.memCartRepo.RemoveEntry(ctx, userID, entryID)
}

func TestRemoveFromCartKeepsHoldsWhenRemovalFails(t *testing.T) {
	slots := newMemSlotRepo(testInstructor())
	carts := &failingCartRepo{memCartRepo: newMemCartRepo()}
	svc := NewReservationService(slots, carts, &fakeNotifier{}, zap.NewNop())
	ctx := context.Background()

	entry, err := svc.AddLessonToCart(ctx, "U1", "Ana", dto.AddLessonRequest{
		InstructorID: "I1",
		Slots:        []string{"2025-09-25-14:30-16:30"},
		Price:        50,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	// La escritura del carrito falla: los holds no se tocan y la entrada
	// sigue ahí, así el request se puede reintentar.
	carts.fail = true
	if _, err := svc.RemoveFromCart(ctx, "U1", entry.EntryID); err == nil {
		t.Fatal("expected error when cart write fails")
	}
	slot, _ := slots.FindSlot(ctx, "I1", model.ActivityLesson, "L1")
	if slot.Status != model.SlotPending || slot.StudentID != "U1" {
		t.Fatalf("holds must survive a failed removal: %+v", slot)
	}
	cart, _ := carts.FindByUser(ctx, "U1")
	if len(cart.Entries) != 1 {
		t.Fatalf("entry must survive a failed removal: %+v", cart.Entries)
	}

	// El reintento completa la operación.
	carts.fail = false
	resp, err := svc.RemoveFromCart(ctx, "U1", entry.EntryID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !resp.Removed {
		t.Fatalf("unexpected response: %+v", resp)
	}
	slot, _ = slots.FindSlot(ctx, "I1", model.ActivityLesson, "L1")
	if slot.Status != model.SlotAvailable {
		t.Fatalf("slot not released on retry: %+v", slot)
	}
}

func TestCancelBookingOwnershipCheck(t *testing.T) {
	svc, _, _, _ := newTestReservation(t)
	ctx := context.Background()
	key := mustKey(t, "2025-09-25-14:30-16:30")

	if _, err := svc.ReservePending(ctx, "U1", "Ana", "I1", model.ActivityLesson, key, ""); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := svc.CancelBooking(ctx, "U2", "I1", model.ActivityLesson, key); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestStaleHoldsListing(t *testing.T) {
	svc, _, _, _ := newTestReservation(t)
	ctx := context.Background()

	if _, err := svc.ReservePending(ctx, "U1", "Ana", "I1", model.ActivityLesson, mustKey(t, "2025-09-25-14:30-16:30"), ""); err != nil {
		t.Fatalf("claim: %v", err)
	}

	// Con corte en el futuro (olderThan negativo) el hold recién creado
	// ya cuenta como viejo.
	holds, err := svc.StaleHolds(ctx, -time.Hour)
	if err != nil {
		t.Fatalf("StaleHolds: %v", err)
	}
	if len(holds) != 1 || holds[0].SlotID != "L1" || holds[0].StudentID != "U1" {
		t.Fatalf("unexpected stale holds: %+v", holds)
	}
}
