package rabbit

import (
	"context"
	"encoding/json"

	"github.com/IsaacPaez/drivingschool-sub001/internal/dto"
	"github.com/IsaacPaez/drivingschool-sub001/internal/model"
	"github.com/IsaacPaez/drivingschool-sub001/internal/service"

	"go.uber.org/zap"
)

type PaymentConsumer struct {
	Service *service.OrderService
	logger  *zap.Logger
}

func NewPaymentConsumer(s *service.OrderService, logger *zap.Logger) *PaymentConsumer {
	return &PaymentConsumer{Service: s, logger: logger}
}

// PaymentEventMessage es lo que publica la pasarela al resolverse un pago.
// Status: approved | rejected.
type PaymentEventMessage struct {
	CorrelationID string `json:"correlation_id"`
	Message       struct {
		OrderID   string `json:"orderId"`
		PaymentID string `json:"paymentId"`
		Status    string `json:"status"`
	} `json:"message"`
}

// Handle empuja la reconciliación por el mismo servicio que usa la API;
// la idempotencia de ConfirmPayment absorbe las entregas repetidas.
func (c *PaymentConsumer) Handle(msg []byte) error {
	c.logger.Info("[Rabbit] Evento de pago recibido")

	var event PaymentEventMessage
	if err := json.Unmarshal(msg, &event); err != nil {
		c.logger.Error("Error parseando mensaje", zap.Error(err))
		return err
	}

	paymentStatus := model.PaymentFailed
	if event.Message.Status == "approved" {
		paymentStatus = model.PaymentCompleted
	}

	_, err := c.Service.UpdateStatus(context.Background(), dto.UpdateOrderStatusRequest{
		OrderID:       event.Message.OrderID,
		PaymentStatus: paymentStatus,
		PaymentID:     event.Message.PaymentID,
	})
	if err != nil {
		c.logger.Error("Error reconciliando la orden",
			zap.String("order_id", event.Message.OrderID),
			zap.Error(err),
		)
		return err
	}

	c.logger.Info("Orden reconciliada", zap.String("order_id", event.Message.OrderID))
	return nil
}
