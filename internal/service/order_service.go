package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IsaacPaez/drivingschool-sub001/internal/dto"
	"github.com/IsaacPaez/drivingschool-sub001/internal/model"
	"github.com/IsaacPaez/drivingschool-sub001/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type OrderRepository interface {
	Create(ctx context.Context, o *model.Order) error
	FindByID(ctx context.Context, orderID string) (*model.Order, error)
	FindByUser(ctx context.Context, userID string) ([]*model.Order, error)
	SetStatus(ctx context.Context, orderID, estado, paymentStatus, paymentID string) error
}

// EventPublisher avisa a los colaboradores externos (notificador de email)
// que una reserva quedó confirmada.
type EventPublisher interface {
	PublishBookingConfirmed(ctx context.Context, order *model.Order) error
}

type OrderService struct {
	orders    OrderRepository
	slots     SlotRepository
	publisher EventPublisher
	notifier  Notifier
	logger    *zap.Logger
}

func NewOrderService(orders OrderRepository, slots SlotRepository, publisher EventPublisher, notifier Notifier, logger *zap.Logger) *OrderService {
	return &OrderService{
		orders:    orders,
		slots:     slots,
		publisher: publisher,
		notifier:  notifier,
		logger:    logger,
	}
}

// CreateOrder congela la selección del usuario en una orden inmutable.
// Los slots referenciados quedan en pending hasta que el pago confirme.
func (s *OrderService) CreateOrder(ctx context.Context, userID, orderType string, appointments []model.SlotRef, total float64) (*model.Order, error) {
	refs := make([]model.SlotRef, 0, len(appointments))
	for _, a := range appointments {
		slot, err := s.resolveAppointment(ctx, a)
		if err != nil {
			return nil, err
		}
		if slot.Status != model.SlotPending {
			return nil, &SlotConflictError{Slots: []string{a.Key()}}
		}
		if slot.StudentID != userID {
			return nil, ErrUnauthorized
		}
		a.SlotID = slot.SlotID
		refs = append(refs, a)
	}

	order := &model.Order{
		OrderID:       uuid.NewString(),
		OrderNumber:   newOrderNumber(),
		UserID:        userID,
		OrderType:     orderType,
		Appointments:  refs,
		Total:         total,
		Estado:        model.OrderEstadoPendiente,
		PaymentStatus: model.PaymentPending,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	for _, ref := range refs {
		if err := s.slots.SetOrderRef(ctx, ref.InstructorID, ref.ActivityType, ref.SlotID, order.OrderID, order.OrderNumber); err != nil {
			s.logger.Warn("No se pudo vincular el slot con la orden",
				zap.String("order_id", order.OrderID),
				zap.String("slot_id", ref.SlotID),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("Orden creada",
		zap.String("order_id", order.OrderID),
		zap.String("order_number", order.OrderNumber),
		zap.String("user_id", userID),
		zap.Float64("total", total),
	)
	s.notifyAll(refs)

	return order, nil
}

func (s *OrderService) resolveAppointment(ctx context.Context, a model.SlotRef) (*model.Slot, error) {
	if a.SlotID != "" {
		return s.slots.FindSlot(ctx, a.InstructorID, a.ActivityType, a.SlotID)
	}
	key := model.SlotKey{Date: a.Date, Start: a.Start, End: a.End}
	return s.slots.FindSlotByTime(ctx, a.InstructorID, a.ActivityType, key)
}

func newOrderNumber() string {
	return fmt.Sprintf("ORD-%s-%s",
		time.Now().UTC().Format("20060102"),
		strings.ToUpper(uuid.NewString()[:8]),
	)
}

// ConfirmPayment es la reconciliación: pasa cada slot de la orden de
// pending a booked. Cada slot se intenta por separado y el resultado es
// por ítem: un slot que falla no tumba el resto de la orden. Repetir la
// confirmación con el mismo orderId no cambia nada (los callbacks de la
// pasarela llegan duplicados).
func (s *OrderService) ConfirmPayment(ctx context.Context, orderID, paymentID string) (*dto.ReconcileResult, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	result := &dto.ReconcileResult{OrderID: orderID}

	if order.PaymentStatus == model.PaymentCompleted {
		// Callback repetido: no-op.
		result.AlreadyFinal = len(order.Appointments)
		return result, nil
	}

	for _, ref := range order.Appointments {
		modified, err := s.slots.ConfirmSlot(ctx, ref.InstructorID, ref.ActivityType, ref.SlotID, order.UserID, order.OrderID, paymentID)
		switch {
		case err != nil:
			result.Failed = append(result.Failed, ref.Key())
			s.logger.Warn("No se pudo confirmar el slot",
				zap.String("order_id", orderID),
				zap.String("slot_id", ref.SlotID),
				zap.Error(err),
			)
		case modified:
			result.Modified++
		default:
			result.AlreadyFinal++
		}
	}

	if err := s.orders.SetStatus(ctx, orderID, model.OrderEstadoCompletada, model.PaymentCompleted, paymentID); err != nil {
		return nil, err
	}

	s.logger.Info("Pago confirmado",
		zap.String("order_id", orderID),
		zap.String("payment_id", paymentID),
		zap.Int("modified", result.Modified),
		zap.Int("already_final", result.AlreadyFinal),
	)

	order.PaymentStatus = model.PaymentCompleted
	order.Estado = model.OrderEstadoCompletada
	order.PaymentID = paymentID
	if err := s.publisher.PublishBookingConfirmed(ctx, order); err != nil {
		// El notificador de email es mejor-esfuerzo; la reserva ya quedó.
		s.logger.Warn("No se pudo publicar booking_confirmed",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
	}
	s.notifyAll(order.Appointments)

	return result, nil
}

// FailPayment libera los slots pendientes de la orden y la marca fallida.
func (s *OrderService) FailPayment(ctx context.Context, orderID string) error {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.PaymentStatus == model.PaymentFailed {
		return nil
	}

	for _, ref := range order.Appointments {
		err := s.slots.ReleaseSlot(ctx, ref.InstructorID, ref.ActivityType, ref.SlotID, order.UserID)
		if err != nil && !errors.Is(err, repository.ErrWrongState) {
			s.logger.Warn("No se pudo liberar el slot de la orden fallida",
				zap.String("order_id", orderID),
				zap.String("slot_id", ref.SlotID),
				zap.Error(err),
			)
		}
	}

	if err := s.orders.SetStatus(ctx, orderID, model.OrderEstadoCancelada, model.PaymentFailed, ""); err != nil {
		return err
	}

	s.logger.Info("Pago fallido, orden cancelada", zap.String("order_id", orderID))
	s.notifyAll(order.Appointments)
	return nil
}

// UpdateStatus es el punto de entrada que usa la pasarela de pagos (vía
// HTTP o Rabbit) para empujar la reconciliación.
func (s *OrderService) UpdateStatus(ctx context.Context, req dto.UpdateOrderStatusRequest) (*dto.ReconcileResult, error) {
	switch req.PaymentStatus {
	case model.PaymentCompleted:
		return s.ConfirmPayment(ctx, req.OrderID, req.PaymentID)
	case model.PaymentFailed:
		if err := s.FailPayment(ctx, req.OrderID); err != nil {
			return nil, err
		}
		return &dto.ReconcileResult{OrderID: req.OrderID}, nil
	default:
		// Estado intermedio (redirect en curso): la orden queda
		// recuperable reintentando el flujo de pago.
		estado := req.Status
		if estado == "" {
			estado = model.OrderEstadoProcesando
		}
		if err := s.orders.SetStatus(ctx, req.OrderID, estado, req.PaymentStatus, req.PaymentID); err != nil {
			return nil, err
		}
		return &dto.ReconcileResult{OrderID: req.OrderID}, nil
	}
}

func (s *OrderService) GetByID(ctx context.Context, orderID string) (*model.Order, error) {
	return s.orders.FindByID(ctx, orderID)
}

func (s *OrderService) GetByUser(ctx context.Context, userID string) ([]*model.Order, error) {
	return s.orders.FindByUser(ctx, userID)
}

func (s *OrderService) notifyAll(refs []model.SlotRef) {
	seen := make(map[string]struct{})
	for _, ref := range refs {
		if _, ok := seen[ref.InstructorID]; ok {
			continue
		}
		seen[ref.InstructorID] = struct{}{}
		s.notifier.SlotsChanged(ref.InstructorID)
	}
}
