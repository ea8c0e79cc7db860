package service

import (
	"context"
	"sync"
	"time"

	"github.com/IsaacPaez/drivingschool-sub001/internal/model"
	"github.com/IsaacPaez/drivingschool-sub001/internal/repository"
)

// Repositorios en memoria con la misma semántica de guards que los de
// Mongo: cada transición chequea identidad Y estado actual.

type memSlotRepo struct {
	mu          sync.Mutex
	instructors map[string]*model.Instructor
}

func newMemSlotRepo(instructors ...*model.Instructor) *memSlotRepo {
	m := &memSlotRepo{instructors: make(map[string]*model.Instructor)}
	for _, i := range instructors {
		m.instructors[i.ID] = i
	}
	return m
}

func (m *memSlotRepo) slotsOf(inst *model.Instructor, activity model.ActivityType) []model.Slot {
	if activity == model.ActivityTest {
		return inst.TestSlots
	}
	return inst.LessonSlots
}

func (m *memSlotRepo) find(instructorID string, activity model.ActivityType, slotID string) (*model.Instructor, *model.Slot, error) {
	inst, ok := m.instructors[instructorID]
	if !ok {
		return nil, nil, repository.ErrNotFound
	}
	slots := inst.LessonSlots
	if activity == model.ActivityTest {
		slots = inst.TestSlots
	}
	for i := range slots {
		if slots[i].SlotID == slotID {
			return inst, &slots[i], nil
		}
	}
	return nil, nil, repository.ErrNotFound
}

func (m *memSlotRepo) FindInstructor(ctx context.Context, instructorID string) (*model.Instructor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instructors[instructorID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *inst
	return &cp, nil
}

func (m *memSlotRepo) FindSlot(ctx context.Context, instructorID string, activity model.ActivityType, slotID string) (*model.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, slot, err := m.find(instructorID, activity, slotID)
	if err != nil {
		return nil, err
	}
	cp := *slot
	return &cp, nil
}

func (m *memSlotRepo) FindSlotByTime(ctx context.Context, instructorID string, activity model.ActivityType, key model.SlotKey) (*model.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instructors[instructorID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	for _, s := range m.slotsOf(inst, activity) {
		if s.Date == key.Date && s.Start == key.Start && s.End == key.End {
			cp := s
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memSlotRepo) ClaimSlot(ctx context.Context, instructorID string, activity model.ActivityType, slotID string, hold repository.Hold) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, slot, err := m.find(instructorID, activity, slotID)
	if err != nil {
		return err
	}
	if slot.Status != model.SlotAvailable {
		return repository.ErrWrongState
	}
	now := time.Now().UTC()
	slot.Status = model.SlotPending
	slot.StudentID = hold.StudentID
	slot.StudentName = hold.StudentName
	slot.PaymentMethod = hold.PaymentMethod
	slot.ReservedAt = &now
	slot.Lesson = hold.Lesson
	slot.Test = hold.Test
	return nil
}

func (m *memSlotRepo) ReleaseSlot(ctx context.Context, instructorID string, activity model.ActivityType, slotID, studentID string) error {
	return m.free(instructorID, activity, slotID, studentID, model.SlotPending)
}

func (m *memSlotRepo) CancelBookedSlot(ctx context.Context, instructorID string, activity model.ActivityType, slotID, studentID string) error {
	return m.free(instructorID, activity, slotID, studentID, model.SlotBooked)
}

func (m *memSlotRepo) free(instructorID string, activity model.ActivityType, slotID, studentID string, from model.SlotStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, slot, err := m.find(instructorID, activity, slotID)
	if err != nil {
		return err
	}
	if slot.Status != from || slot.StudentID != studentID {
		return repository.ErrWrongState
	}
	slot.Status = model.SlotAvailable
	slot.StudentID = ""
	slot.StudentName = ""
	slot.PaymentMethod = ""
	slot.PaymentID = ""
	slot.OrderID = ""
	slot.OrderNumber = ""
	slot.ReservedAt = nil
	slot.ConfirmedAt = nil
	slot.Lesson = nil
	slot.Test = nil
	return nil
}

func (m *memSlotRepo) ConfirmSlot(ctx context.Context, instructorID string, activity model.ActivityType, slotID, studentID, orderID, paymentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, slot, err := m.find(instructorID, activity, slotID)
	if err != nil {
		return false, err
	}
	if slot.Status == model.SlotBooked && slot.OrderID == orderID {
		return false, nil
	}
	if slot.Status != model.SlotPending || slot.StudentID != studentID {
		return false, repository.ErrWrongState
	}
	now := time.Now().UTC()
	slot.Status = model.SlotBooked
	slot.OrderID = orderID
	slot.PaymentID = paymentID
	slot.ConfirmedAt = &now
	return true, nil
}

func (m *memSlotRepo) CancelClass(ctx context.Context, instructorID string, activity model.ActivityType, slotID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, slot, err := m.find(instructorID, activity, slotID)
	if err != nil {
		return err
	}
	if slot.Status != model.SlotPending && slot.Status != model.SlotBooked {
		return repository.ErrWrongState
	}
	slot.Status = model.SlotCancelled
	return nil
}

func (m *memSlotRepo) SetOrderRef(ctx context.Context, instructorID string, activity model.ActivityType, slotID, orderID, orderNumber string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, slot, err := m.find(instructorID, activity, slotID)
	if err != nil {
		return err
	}
	if slot.Status != model.SlotPending {
		return repository.ErrWrongState
	}
	slot.OrderID = orderID
	slot.OrderNumber = orderNumber
	return nil
}

func (m *memSlotRepo) Snapshot(ctx context.Context, instructorID string) ([]model.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instructors[instructorID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := make([]model.Slot, 0, len(inst.LessonSlots)+len(inst.TestSlots))
	out = append(out, inst.LessonSlots...)
	out = append(out, inst.TestSlots...)
	return out, nil
}

func (m *memSlotRepo) FindStaleHolds(ctx context.Context, cutoff time.Time) ([]model.Slot, []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var slots []model.Slot
	var owners []string
	for _, inst := range m.instructors {
		all := append(append([]model.Slot{}, inst.LessonSlots...), inst.TestSlots...)
		for _, s := range all {
			if s.Status == model.SlotPending && s.ReservedAt != nil && s.ReservedAt.Before(cutoff) {
				slots = append(slots, s)
				owners = append(owners, inst.ID)
			}
		}
	}
	return slots, owners, nil
}

type memCartRepo struct {
	mu    sync.Mutex
	carts map[string]*model.Cart
}

func newMemCartRepo() *memCartRepo {
	return &memCartRepo{carts: make(map[string]*model.Cart)}
}

func (m *memCartRepo) FindByUser(ctx context.Context, userID string) (*model.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.carts[userID]; ok {
		cp := *c
		return &cp, nil
	}
	return &model.Cart{UserID: userID}, nil
}

func (m *memCartRepo) AppendEntry(ctx context.Context, userID string, entry model.CartEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		c = &model.Cart{UserID: userID}
		m.carts[userID] = c
	}
	c.Entries = append(c.Entries, entry)
	return nil
}

func (m *memCartRepo) RemoveEntry(ctx context.Context, userID, entryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		return repository.ErrNotFound
	}
	for i, e := range c.Entries {
		if e.EntryID == entryID {
			c.Entries = append(c.Entries[:i], c.Entries[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

type memOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*model.Order
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[string]*model.Order)}
}

func (m *memOrderRepo) Create(ctx context.Context, o *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.orders[o.OrderID] = &cp
	return nil
}

func (m *memOrderRepo) FindByID(ctx context.Context, orderID string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrderRepo) FindByUser(ctx context.Context, userID string) ([]*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memOrderRepo) SetStatus(ctx context.Context, orderID, estado, paymentStatus, paymentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return repository.ErrNotFound
	}
	o.Estado = estado
	o.PaymentStatus = paymentStatus
	if paymentID != "" {
		o.PaymentID = paymentID
	}
	return nil
}

type memTicketRepo struct {
	mu      sync.Mutex
	classes map[string]*model.TicketClass
}

func newMemTicketRepo(classes ...*model.TicketClass) *memTicketRepo {
	m := &memTicketRepo{classes: make(map[string]*model.TicketClass)}
	for _, c := range classes {
		m.classes[c.ID] = c
	}
	return m
}

func (m *memTicketRepo) FindByID(ctx context.Context, classID string) (*model.TicketClass, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.classes[classID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memTicketRepo) AddRequest(ctx context.Context, classID string, req model.SeatRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.classes[classID]
	if !ok {
		return repository.ErrNotFound
	}
	if c.Cancelled || c.SeatsLeft() <= 0 {
		return repository.ErrWrongState
	}
	for _, p := range c.Pending {
		if p.StudentID == req.StudentID {
			return repository.ErrWrongState
		}
	}
	for _, e := range c.Enrolled {
		if e.StudentID == req.StudentID {
			return repository.ErrWrongState
		}
	}
	c.Pending = append(c.Pending, req)
	return nil
}

func (m *memTicketRepo) ConfirmRequest(ctx context.Context, classID, requestID string, entry model.RosterEntry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.classes[classID]
	if !ok {
		return false, repository.ErrNotFound
	}
	for i, p := range c.Pending {
		if p.RequestID == requestID {
			c.Pending = append(c.Pending[:i], c.Pending[i+1:]...)
			c.Enrolled = append(c.Enrolled, entry)
			return true, nil
		}
	}
	for _, e := range c.Enrolled {
		if e.RequestID == requestID {
			return false, nil
		}
	}
	return false, repository.ErrWrongState
}

func (m *memTicketRepo) ReleaseRequest(ctx context.Context, classID, requestID, studentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.classes[classID]
	if !ok {
		return repository.ErrNotFound
	}
	for i, p := range c.Pending {
		if p.RequestID == requestID {
			if p.StudentID != studentID {
				return repository.ErrWrongState
			}
			c.Pending = append(c.Pending[:i], c.Pending[i+1:]...)
			return nil
		}
	}
	return repository.ErrWrongState
}

// fakeNotifier registra qué instructores recibieron aviso de cambio.
type fakeNotifier struct {
	mu  sync.Mutex
	ids []string
}

func (f *fakeNotifier) SlotsChanged(instructorID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, instructorID)
}

func (f *fakeNotifier) count(instructorID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, id := range f.ids {
		if id == instructorID {
			n++
		}
	}
	return n
}

type fakePublisher struct {
	mu     sync.Mutex
	orders []string
}

func (f *fakePublisher) PublishBookingConfirmed(ctx context.Context, order *model.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, order.OrderID)
	return nil
}
