// Package realtime publica el horario de cada instructor a los clientes
// que lo están mirando. Cada push lleva la instantánea completa (no
// diffs): los conteos de slots por instructor son chicos y el cliente no
// tiene que aplicar deltas.
package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/IsaacPaez/drivingschool-sub001/internal/model"

	"go.uber.org/zap"
)

const (
	EventInitial = "initial"
	EventUpdate  = "update"
	EventError   = "error"
)

type Event struct {
	Type     string       `json:"type"`
	Schedule []model.Slot `json:"schedule,omitempty"`
}

// SnapshotFunc recalcula la instantánea actual de un instructor.
type SnapshotFunc func(ctx context.Context, instructorID string) ([]model.Slot, error)

// Subscriber es una conexión abierta mirando a un instructor.
type Subscriber struct {
	instructorID string
	ch           chan Event
}

// Events es el canal del que lee la conexión (SSE).
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// room agrupa los suscriptores de un instructor y corre su loop de
// publicación. Tanto la notificación de cambios como el re-poll periódico
// pasan por el mismo loop: el throttling tiene un único punto de choque.
type room struct {
	instructorID string
	notify       chan struct{}
	done         chan struct{}
	subs         map[*Subscriber]struct{}
}

type Hub struct {
	mu       sync.Mutex
	rooms    map[string]*room
	snapshot SnapshotFunc
	throttle time.Duration
	poll     time.Duration
	logger   *zap.Logger
}

func NewHub(snapshot SnapshotFunc, throttle, poll time.Duration, logger *zap.Logger) *Hub {
	return &Hub{
		rooms:    make(map[string]*room),
		snapshot: snapshot,
		throttle: throttle,
		poll:     poll,
		logger:   logger,
	}
}

// Subscribe registra una conexión nueva y le manda la instantánea inicial.
func (h *Hub) Subscribe(ctx context.Context, instructorID string) (*Subscriber, error) {
	schedule, err := h.snapshot(ctx, instructorID)
	if err != nil {
		return nil, err
	}

	sub := &Subscriber{
		instructorID: instructorID,
		ch:           make(chan Event, 8),
	}
	sub.ch <- Event{Type: EventInitial, Schedule: schedule}

	h.mu.Lock()
	r, ok := h.rooms[instructorID]
	if !ok {
		r = &room{
			instructorID: instructorID,
			notify:       make(chan struct{}, 1),
			done:         make(chan struct{}),
			subs:         make(map[*Subscriber]struct{}),
		}
		h.rooms[instructorID] = r
		go h.run(r)
	}
	r.subs[sub] = struct{}{}
	h.mu.Unlock()

	return sub, nil
}

// Unsubscribe da de baja la conexión; el último viewer apaga el loop del
// instructor para no dejar timers colgados.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(sub)
}

func (h *Hub) dropLocked(sub *Subscriber) {
	r, ok := h.rooms[sub.instructorID]
	if !ok {
		return
	}
	if _, ok := r.subs[sub]; !ok {
		return
	}
	delete(r.subs, sub)
	// Cerrar el canal corta el loop de la conexión que quedó colgada.
	close(sub.ch)
	if len(r.subs) == 0 {
		close(r.done)
		delete(h.rooms, sub.instructorID)
	}
}

// SlotsChanged avisa que el horario del instructor mutó. No bloquea: si ya
// hay un aviso encolado, con uno alcanza.
func (h *Hub) SlotsChanged(instructorID string) {
	h.mu.Lock()
	r, ok := h.rooms[instructorID]
	h.mu.Unlock()
	if !ok {
		return
	}
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// run coalesce los avisos: como mucho un push por intervalo de throttle, y
// si llegaron avisos durante la ventana se garantiza un push final al
// cerrarse. El ticker de re-poll reenvía la instantánea aunque no haya
// avisos, para que los clientes se recuperen de eventos perdidos; pasa por
// el mismo gate que los avisos, así un re-poll dentro de la ventana no
// duplica el push.
func (h *Hub) run(r *room) {
	poll := time.NewTicker(h.poll)
	defer poll.Stop()

	var cooldown <-chan time.Time
	dirty := false

	push := func() {
		if cooldown == nil {
			h.broadcast(r)
			cooldown = time.After(h.throttle)
		} else {
			dirty = true
		}
	}

	for {
		select {
		case <-r.done:
			return
		case <-r.notify:
			push()
		case <-cooldown:
			cooldown = nil
			if dirty {
				dirty = false
				h.broadcast(r)
				cooldown = time.After(h.throttle)
			}
		case <-poll.C:
			push()
		}
	}
}

func (h *Hub) broadcast(r *room) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ev := Event{Type: EventUpdate}
	schedule, err := h.snapshot(ctx, r.instructorID)
	if err != nil {
		h.logger.Warn("No se pudo recalcular la instantánea",
			zap.String("instructor_id", r.instructorID),
			zap.Error(err),
		)
		ev = Event{Type: EventError}
	} else {
		ev.Schedule = schedule
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range r.subs {
		select {
		case sub.ch <- ev:
		default:
			// Canal lleno: el cliente no drena, lo damos de baja.
			h.dropLocked(sub)
		}
	}
}
