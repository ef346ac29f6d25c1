// Botflow Scheduler — обрабатывает due schedule-триггеры.
//
// В кластере работает ровно один активный scheduler: лидерство
// удерживается через PostgreSQL advisory lock, остальные экземпляры
// пропускают тики, пока лидер жив.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/botflow/internal/mq"
	"github.com/shaiso/botflow/internal/repo"
	"github.com/shaiso/botflow/internal/telemetry"
	"github.com/shaiso/botflow/internal/trigger"
)

const schedLockKey int64 = 424242

var tickTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "botflow_scheduler_ticks_total",
	Help: "Scheduler ticks executed as leader",
})

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting botflow-scheduler")

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

	triggerRepo := repo.NewTriggerRepo(pool)
	contactRepo := repo.NewContactRepo(pool)
	executionRepo := repo.NewExecutionRepo(pool)

	// RabbitMQ: запуски flow уходят в executions.start
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

	sched := trigger.NewScheduler(trigger.SchedulerConfig{
		Store:     triggerRepo,
		Contacts:  contactRepo,
		Publisher: publisher,
		Sweeper:   executionRepo,
		Logger:    logger,
	})

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// scheduler loop
	go func() {
		tk := time.NewTicker(1 * time.Second)
		defer tk.Stop()

		var hasLock bool
		defer func() {
			if hasLock {
				_, _ = pool.Exec(context.Background(), "select pg_advisory_unlock($1)", schedLockKey)
			}
		}()

		for {
			select {
			case <-tk.C:
				// пытаемся стать лидером (или подтвердить лидерство)
				if !hasLock {
					var ok bool
					if err := pool.QueryRow(ctx, "select pg_try_advisory_lock($1)", schedLockKey).Scan(&ok); err != nil {
						logger.Error("advisory lock failed", "error", err)
						continue
					}
					if ok {
						logger.Info("became scheduler leader")
					}
					hasLock = ok
				}

				if !hasLock {
					// не лидер — пропускаем тик
					continue
				}

				tickTotal.Inc()
				if err := sched.Tick(ctx); err != nil {
					logger.Error("tick failed", "error", err)
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	// serve
	port := ":8081"
	if v := os.Getenv("SCHED_PORT"); v != "" {
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
	logger.Info("botflow-scheduler stopped")
}
