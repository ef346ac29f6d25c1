// Botflow Engine — выполняет flows для контактов.
//
// Engine:
//   - Получает запуски и resume executions из RabbitMQ
//   - Выполняет узлы flow (send_message, wait, condition,
//     webhook_action, set_attribute)
//   - Маршрутизирует входящие сообщения: активный диалог либо
//     keyword-триггеры
//   - Опрашивает Redis на предмет due resume-задач
//
// Engines масштабируются горизонтально.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/botflow/internal/delayqueue"
	"github.com/shaiso/botflow/internal/engine"
	"github.com/shaiso/botflow/internal/gateway"
	"github.com/shaiso/botflow/internal/mq"
	"github.com/shaiso/botflow/internal/repo"
	"github.com/shaiso/botflow/internal/router"
	"github.com/shaiso/botflow/internal/telemetry"
)

var msgConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "botflow_engine_messages_consumed_total",
	Help: "Messages consumed by botflow_engine per queue",
}, []string{"queue"})

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting botflow-engine")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// Создаём репозитории
	flowRepo := repo.NewFlowRepo(pool)
	executionRepo := repo.NewExecutionRepo(pool)
	contactRepo := repo.NewContactRepo(pool)
	triggerRepo := repo.NewTriggerRepo(pool)

	// Redis: отложенные resume-задачи wait-узлов
	redisClient, err := delayqueue.NewClient(ctx)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	queue := delayqueue.NewQueue(redisClient, logger)

	// RabbitMQ: engine без брокера не получает работу
	mqConn, err := mq.NewConnection(mq.URL(), logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Warn("failed to setup topology", "error", err)
	}
	publisher := mq.NewPublisher(mqConn, logger)

	// Создаём engine
	eng := engine.New(engine.Config{
		Flows:      flowRepo,
		Executions: executionRepo,
		Contacts:   contactRepo,
		Messenger:  gateway.NewClientFromEnv(logger),
		Scheduler:  queue,
		Logger:     logger,
	})

	// Маршрутизатор входящих сообщений
	rt := router.New(router.Config{
		Runner:     eng,
		Contacts:   contactRepo,
		Executions: executionRepo,
		Triggers:   triggerRepo,
		Logger:     logger,
	})

	// Consumers
	consumers := []*mq.Consumer{
		mq.NewConsumer(mqConn, logger, mq.ConsumerConfig{
			Queue:    mq.QueueExecutionStart,
			Handler:  handleExecutionStart(eng, logger),
			Prefetch: 10,
		}),
		mq.NewConsumer(mqConn, logger, mq.ConsumerConfig{
			Queue:    mq.QueueExecutionResume,
			Handler:  handleExecutionResume(eng, logger),
			Prefetch: 10,
		}),
		mq.NewConsumer(mqConn, logger, mq.ConsumerConfig{
			Queue:    mq.QueueInboundMessages,
			Handler:  handleInboundMessage(rt, logger),
			Prefetch: 10,
		}),
	}

	for _, c := range consumers {
		go func(c *mq.Consumer) {
			if err := c.Start(ctx); err != nil && ctx.Err() == nil {
				logger.Error("consumer stopped", "error", err)
				cancel()
			}
		}(c)
	}

	// Poller: due resume-задачи -> executions.resume
	poller := delayqueue.NewPoller(delayqueue.PollerConfig{
		Queue:     queue,
		Publisher: publisher,
		Logger:    logger,
	})
	go func() {
		if err := poller.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("poller stopped", "error", err)
			cancel()
		}
	}()

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8082"
	if v := os.Getenv("ENGINE_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	for _, c := range consumers {
		c.Stop()
	}
	logger.Info("botflow-engine stopped")
}

// handleExecutionStart запускает flow для контакта.
//
// Непарсящийся payload и неактивный flow не ретраятся: сообщение
// подтверждается и отбрасывается, повтор даст тот же результат.
func handleExecutionStart(eng *engine.Engine, logger *slog.Logger) mq.Handler {
	return func(ctx context.Context, msg *mq.Delivery) error {
		msgConsumed.WithLabelValues(string(mq.QueueExecutionStart)).Inc()

		payload, err := mq.ParsePayload[mq.ExecutionStartPayload](&msg.Message)
		if err != nil {
			logger.Error("malformed execution.start payload",
				"message_id", msg.Message.ID, "error", err)
			return nil
		}

		_, err = eng.StartFlow(ctx, payload.FlowID, payload.ContactID, payload.InitialState)
		if errors.Is(err, engine.ErrFlowInactive) || errors.Is(err, repo.ErrNotFound) {
			logger.Warn("dropping execution start",
				"flow_id", payload.FlowID, "contact_id", payload.ContactID, "error", err)
			return nil
		}
		return err
	}
}

// handleExecutionResume возобновляет execution после wait-паузы.
func handleExecutionResume(eng *engine.Engine, logger *slog.Logger) mq.Handler {
	return func(ctx context.Context, msg *mq.Delivery) error {
		msgConsumed.WithLabelValues(string(mq.QueueExecutionResume)).Inc()

		payload, err := mq.ParsePayload[mq.ExecutionResumePayload](&msg.Message)
		if err != nil {
			logger.Error("malformed execution.resume payload",
				"message_id", msg.Message.ID, "error", err)
			return nil
		}

		_, err = eng.Resume(ctx, payload.ExecutionID)
		if errors.Is(err, repo.ErrNotFound) {
			logger.Warn("dropping resume for unknown execution",
				"execution_id", payload.ExecutionID)
			return nil
		}
		return err
	}
}

// handleInboundMessage маршрутизирует входящее сообщение контакта.
func handleInboundMessage(rt *router.Router, logger *slog.Logger) mq.Handler {
	return func(ctx context.Context, msg *mq.Delivery) error {
		msgConsumed.WithLabelValues(string(mq.QueueInboundMessages)).Inc()

		payload, err := mq.ParsePayload[mq.InboundMessagePayload](&msg.Message)
		if err != nil {
			logger.Error("malformed message.inbound payload",
				"message_id", msg.Message.ID, "error", err)
			return nil
		}

		_, err = rt.HandleInbound(ctx, payload.BotID, payload.Phone, payload.Message, payload.MessageType)
		return err
	}
}
