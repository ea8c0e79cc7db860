// setup.go
package rabbit

import (
	"github.com/IsaacPaez/drivingschool-sub001/internal/service"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// SetupConsumers suscribe el consumidor de eventos de pago. La pasarela
// publica en un exchange fanout; cada micro tiene su cola propia.
func SetupConsumers(ch *amqp091.Channel, svc *service.OrderService, logger *zap.Logger) {
	consumer := NewPaymentConsumer(svc, logger)

	// 1. Declarar la queue
	q, err := ch.QueueDeclare(
		"drivingschool_payment_events", // cola exclusiva de este micro
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		logger.Error("Error declarando queue", zap.Error(err))
		return
	}

	// 2. Bindear al exchange fanout
	err = ch.ExchangeDeclare("payment_events", "fanout", true, false, false, false, nil)
	if err != nil {
		logger.Error("Error declarando exchange", zap.Error(err))
		return
	}
	err = ch.QueueBind(
		q.Name,
		"", // fanout ignora routing key
		"payment_events",
		false,
		nil,
	)
	if err != nil {
		logger.Error("Error binding exchange", zap.Error(err))
		return
	}

	// 3. Consumir
	msgs, err := ch.Consume(
		q.Name,
		"",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		logger.Error("Error al consumir queue", zap.Error(err))
		return
	}

	go func() {
		for m := range msgs {
			consumer.Handle(m.Body)
		}
	}()

	logger.Info("Suscrito a exchange payment_events (fanout)")
}
