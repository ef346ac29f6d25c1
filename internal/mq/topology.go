package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeExecutions Exchange = "botflow.executions"
	ExchangeMessages   Exchange = "botflow.messages"
	ExchangeDLQ        Exchange = "botflow.dlq"
)

// Queues — имена очередей.
const (
	QueueExecutionStart  Queue = "executions.start"
	QueueExecutionResume Queue = "executions.resume"
	QueueInboundMessages Queue = "messages.inbound"
	QueueDLQExecutions   Queue = "dlq.executions"
)

// Routing keys.
const (
	RoutingKeyStart         RoutingKey = "start"
	RoutingKeyResume        RoutingKey = "resume"
	RoutingKeyInbound       RoutingKey = "inbound"
	RoutingKeyDLQExecutions RoutingKey = "executions"
)

func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeExecutions, "direct"},
		{ExchangeMessages, "direct"},
		{ExchangeDLQ, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQExecutions),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// Все рабочие очереди с DLQ: потерять запуск или входящее
		// сообщение нельзя.
		{QueueExecutionStart, dlqArgs},
		{QueueExecutionResume, dlqArgs},
		{QueueInboundMessages, dlqArgs},

		// Сама DLQ очередь.
		{QueueDLQExecutions, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueExecutionStart, RoutingKeyStart, ExchangeExecutions},
		{QueueExecutionResume, RoutingKeyResume, ExchangeExecutions},
		{QueueInboundMessages, RoutingKeyInbound, ExchangeMessages},
		{QueueDLQExecutions, RoutingKeyDLQExecutions, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}
