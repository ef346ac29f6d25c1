package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shaiso/botflow/internal/api"
	"github.com/shaiso/botflow/internal/delayqueue"
	"github.com/shaiso/botflow/internal/mq"
	"github.com/shaiso/botflow/internal/repo"
	"github.com/shaiso/botflow/internal/telemetry"
	"github.com/shaiso/botflow/internal/trigger"
)

var (
	startTime = time.Now()
	reqTotal  = promauto.NewCounter(prometheus.CounterOpts{
		Name: "botflow_api_http_requests_total",
		Help: "Total HTTP requests handled by botflow_api",
	})
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting botflow-api")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Подключаемся к базе данных
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	// Создаём репозитории
	flowRepo := repo.NewFlowRepo(pool)
	executionRepo := repo.NewExecutionRepo(pool)
	contactRepo := repo.NewContactRepo(pool)
	triggerRepo := repo.NewTriggerRepo(pool)

	// RabbitMQ: запуски executions и входящие сообщения уходят в очереди,
	// без брокера API не принимает эти операции.
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

	// Redis: отмена отложенных resume-задач при cancel execution
	redisClient, err := delayqueue.NewClient(ctx)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	tasks := delayqueue.NewQueue(redisClient, logger)

	// Диспетчер прикладных событий (POST /api/v1/events)
	dispatcher := trigger.NewDispatcher(trigger.DispatcherConfig{
		Store:     triggerRepo,
		Contacts:  contactRepo,
		Publisher: publisher,
		Logger:    logger,
	})

	// Создаём API handler
	handler := api.NewHandler(api.Config{
		FlowRepo:      flowRepo,
		ExecutionRepo: executionRepo,
		ContactRepo:   contactRepo,
		TriggerRepo:   triggerRepo,
		Publisher:     publisher,
		Dispatcher:    dispatcher,
		Tasks:         tasks,
		Logger:        logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		reqTotal.Inc()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	// Создаём HTTP сервер с возможностью graceful shutdown
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Запускаем сервер в горутине
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
