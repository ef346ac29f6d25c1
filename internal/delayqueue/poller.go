package delayqueue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// defaultPollInterval — период опроса очереди.
const defaultPollInterval = time.Second

// ResumePublisher публикует запросы на возобновление execution.
type ResumePublisher interface {
	PublishExecutionResume(ctx context.Context, executionID uuid.UUID, taskID string) error
}

// Poller забирает созревшие задачи и публикует execution.resume.
type Poller struct {
	queue     *Queue
	publisher ResumePublisher
	logger    *slog.Logger
	interval  time.Duration
}

// PollerConfig — конфигурация Poller.
type PollerConfig struct {
	Queue     *Queue
	Publisher ResumePublisher
	Logger    *slog.Logger

	// Interval — период опроса. По умолчанию 1 секунда.
	Interval time.Duration
}

// NewPoller создаёт новый Poller.
func NewPoller(cfg PollerConfig) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	return &Poller{
		queue:     cfg.Queue,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		interval:  interval,
	}
}

// Run запускает цикл опроса. Блокирует до отмены контекста.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick обрабатывает одну порцию созревших задач.
func (p *Poller) tick(ctx context.Context) {
	tasks, err := p.queue.PopDue(ctx, time.Now())
	if err != nil {
		p.logger.Error("pop due tasks failed", "error", err)
		return
	}

	for _, task := range tasks {
		err := p.publisher.PublishExecutionResume(ctx, task.ExecutionID, task.ID)
		if err != nil {
			p.logger.Error("publish resume failed",
				"task_id", task.ID,
				"execution_id", task.ExecutionID,
				"error", err,
			)
			// Возвращаем задачу в очередь, чтобы не потерять
			// возобновление из-за временной недоступности брокера.
			p.requeue(ctx, task)
			continue
		}

		p.logger.Debug("resume task dispatched",
			"task_id", task.ID,
			"execution_id", task.ExecutionID,
		)
	}
}

// requeue кладёт задачу обратно с текущим временем.
func (p *Poller) requeue(ctx context.Context, task Task) {
	member, err := json.Marshal(task)
	if err != nil {
		p.logger.Error("marshal task for requeue failed", "task_id", task.ID, "error", err)
		return
	}

	err = p.queue.client.ZAdd(ctx, p.queue.key, redis.Z{
		Score:  float64(time.Now().UnixMilli()),
		Member: member,
	}).Err()
	if err != nil {
		p.logger.Error("requeue task failed", "task_id", task.ID, "error", err)
	}
}
