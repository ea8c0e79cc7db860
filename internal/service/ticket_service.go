package service

import (
	"context"
	"errors"
	"time"

	"github.com/IsaacPaez/drivingschool-sub001/internal/model"
	"github.com/IsaacPaez/drivingschool-sub001/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TicketRepository interface {
	FindByID(ctx context.Context, classID string) (*model.TicketClass, error)
	AddRequest(ctx context.Context, classID string, req model.SeatRequest) error
	ConfirmRequest(ctx context.Context, classID, requestID string, entry model.RosterEntry) (bool, error)
	ReleaseRequest(ctx context.Context, classID, requestID, studentID string) error
}

// TicketService maneja las clases grupales con cupo. Mismo patrón de dos
// fases que los slots 1:1, pero contra un roster: el pedido pendiente
// ocupa un asiento y la confirmación lo vuelve definitivo.
type TicketService struct {
	tickets TicketRepository
	logger  *zap.Logger
}

func NewTicketService(tickets TicketRepository, logger *zap.Logger) *TicketService {
	return &TicketService{tickets: tickets, logger: logger}
}

// RequestSeat ocupa un asiento provisional si enrolled + pending < cupo.
func (s *TicketService) RequestSeat(ctx context.Context, classID, studentID, studentName string) (*model.SeatRequest, error) {
	req := model.SeatRequest{
		RequestID:   uuid.NewString(),
		StudentID:   studentID,
		StudentName: studentName,
		RequestedAt: time.Now().UTC(),
	}

	if err := s.tickets.AddRequest(ctx, classID, req); err != nil {
		if errors.Is(err, repository.ErrWrongState) {
			return nil, ErrClassFull
		}
		return nil, err
	}

	s.logger.Info("Asiento pedido",
		zap.String("class_id", classID),
		zap.String("student_id", studentID),
		zap.String("request_id", req.RequestID),
	)
	return &req, nil
}

// ConfirmSeat mueve el pedido al roster al confirmarse el pago.
// Idempotente: confirmar dos veces el mismo pedido no cambia nada.
func (s *TicketService) ConfirmSeat(ctx context.Context, classID, requestID, paymentID string) error {
	class, err := s.tickets.FindByID(ctx, classID)
	if err != nil {
		return err
	}

	var pending *model.SeatRequest
	for i := range class.Pending {
		if class.Pending[i].RequestID == requestID {
			pending = &class.Pending[i]
			break
		}
	}
	if pending == nil {
		for _, e := range class.Enrolled {
			if e.RequestID == requestID {
				// Ya confirmado por un callback anterior.
				return nil
			}
		}
		return repository.ErrNotFound
	}

	entry := model.RosterEntry{
		RequestID:   requestID,
		StudentID:   pending.StudentID,
		StudentName: pending.StudentName,
		PaymentID:   paymentID,
		EnrolledAt:  time.Now().UTC(),
	}
	if _, err := s.tickets.ConfirmRequest(ctx, classID, requestID, entry); err != nil {
		if errors.Is(err, repository.ErrWrongState) {
			return ErrSlotUnavailable
		}
		return err
	}

	s.logger.Info("Asiento confirmado",
		zap.String("class_id", classID),
		zap.String("request_id", requestID),
		zap.String("payment_id", paymentID),
	)
	return nil
}

// ReleaseSeat suelta un pedido provisional (solo el alumno dueño).
func (s *TicketService) ReleaseSeat(ctx context.Context, classID, requestID, studentID string) error {
	err := s.tickets.ReleaseRequest(ctx, classID, requestID, studentID)
	if err != nil {
		if errors.Is(err, repository.ErrWrongState) {
			return ErrUnauthorized
		}
		return err
	}
	return nil
}

func (s *TicketService) GetClass(ctx context.Context, classID string) (*model.TicketClass, error) {
	return s.tickets.FindByID(ctx, classID)
}
