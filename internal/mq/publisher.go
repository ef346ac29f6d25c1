package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeExecutionStart  MessageType = "execution.start"
	MessageTypeExecutionResume MessageType = "execution.resume"
	MessageTypeInboundMessage  MessageType = "message.inbound"
)

// Message — конверт сообщения в очереди.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// ExecutionStartPayload — запрос на запуск flow для контакта.
type ExecutionStartPayload struct {
	FlowID       uuid.UUID      `json:"flow_id"`
	ContactID    uuid.UUID      `json:"contact_id"`
	InitialState map[string]any `json:"initial_state,omitempty"`
}

// ExecutionResumePayload — запрос на возобновление ожидающего execution.
type ExecutionResumePayload struct {
	ExecutionID uuid.UUID `json:"execution_id"`
	TaskID      string    `json:"task_id,omitempty"`
}

// InboundMessagePayload — входящее сообщение от контакта.
type InboundMessagePayload struct {
	BotID       uuid.UUID `json:"bot_id"`
	Phone       string    `json:"phone"`
	Message     string    `json:"message"`
	MessageType string    `json:"message_type,omitempty"`
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение в exchange с указанным routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishExecutionStart публикует запрос на запуск flow.
// Потребитель: Engine.
func (p *Publisher) PublishExecutionStart(ctx context.Context, flowID, contactID uuid.UUID, initialState map[string]any) error {
	msg := &Message{
		ID:   uuid.New().String(),
		Type: MessageTypeExecutionStart,
		Payload: ExecutionStartPayload{
			FlowID:       flowID,
			ContactID:    contactID,
			InitialState: initialState,
		},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeExecutions, RoutingKeyStart, msg)
}

// PublishExecutionResume публикует запрос на возобновление execution.
// Потребитель: Engine.
func (p *Publisher) PublishExecutionResume(ctx context.Context, executionID uuid.UUID, taskID string) error {
	msg := &Message{
		ID:   uuid.New().String(),
		Type: MessageTypeExecutionResume,
		Payload: ExecutionResumePayload{
			ExecutionID: executionID,
			TaskID:      taskID,
		},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeExecutions, RoutingKeyResume, msg)
}

// PublishInboundMessage публикует входящее сообщение от контакта.
// Потребитель: Engine (router).
func (p *Publisher) PublishInboundMessage(ctx context.Context, payload InboundMessagePayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeInboundMessage,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeMessages, RoutingKeyInbound, msg)
}
