package rabbit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IsaacPaez/drivingschool-sub001/internal/model"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// Publisher emite booking_confirmed para el notificador de email (fuera
// de este núcleo).
type Publisher struct {
	ch *amqp091.Channel
}

func NewPublisher(ch *amqp091.Channel) (*Publisher, error) {
	if err := ch.ExchangeDeclare("booking_confirmed", "fanout", true, false, false, false, nil); err != nil {
		return nil, err
	}
	return &Publisher{ch: ch}, nil
}

type bookingConfirmedEvent struct {
	EventID     string          `json:"event_id"`
	OrderID     string          `json:"orderId"`
	OrderNumber string          `json:"orderNumber"`
	UserID      string          `json:"userId"`
	Total       float64         `json:"total"`
	Slots       []model.SlotRef `json:"slots"`
	Timestamp   time.Time       `json:"timestamp"`
}

func (p *Publisher) PublishBookingConfirmed(ctx context.Context, order *model.Order) error {
	event := bookingConfirmedEvent{
		EventID:     uuid.NewString(),
		OrderID:     order.OrderID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Total:       order.Total,
		Slots:       order.Appointments,
		Timestamp:   time.Now().UTC(),
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.ch.PublishWithContext(ctx,
		"booking_confirmed",
		"",
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp091.Persistent,
			MessageId:    event.EventID,
			Timestamp:    event.Timestamp,
		},
	)
}
