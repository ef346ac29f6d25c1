package delayqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// defaultKey — имя sorted set с отложенными задачами.
const defaultKey = "botflow:resume_tasks"

// Task — отложенная задача возобновления execution.
type Task struct {
	ID            string    `json:"id"`
	ExecutionID   uuid.UUID `json:"execution_id"`
	NextNodeIndex int       `json:"next_node_index"`
}

// Queue — очередь отложенных задач на Redis ZSET.
type Queue struct {
	client *redis.Client
	key    string
	logger *slog.Logger
}

// NewQueue создаёт Queue поверх готового Redis клиента.
func NewQueue(client *redis.Client, logger *slog.Logger) *Queue {
	return &Queue{
		client: client,
		key:    defaultKey,
		logger: logger,
	}
}

// NewClient создаёт Redis клиент по адресу из окружения.
func NewClient(ctx context.Context) (*redis.Client, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// ScheduleResume ставит задачу возобновления execution через delay и
// возвращает её id.
func (q *Queue) ScheduleResume(ctx context.Context, executionID uuid.UUID, nextNodeIndex int, delay time.Duration) (string, error) {
	task := Task{
		ID:            uuid.New().String(),
		ExecutionID:   executionID,
		NextNodeIndex: nextNodeIndex,
	}

	member, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("marshal task: %w", err)
	}

	dueAt := time.Now().Add(delay).UnixMilli()
	err = q.client.ZAdd(ctx, q.key, redis.Z{
		Score:  float64(dueAt),
		Member: member,
	}).Err()
	if err != nil {
		return "", fmt.Errorf("zadd task: %w", err)
	}

	q.logger.Debug("scheduled resume task",
		"task_id", task.ID,
		"execution_id", executionID,
		"delay", delay,
	)

	return task.ID, nil
}

// CancelTask снимает запланированную задачу по id.
// Если задача уже выполнена или не существует — no-op.
func (q *Queue) CancelTask(ctx context.Context, taskID string) error {
	// Member — JSON, по id напрямую ZREM не сделать.
	// Задач в полёте немного, линейный проход допустим.
	members, err := q.client.ZRange(ctx, q.key, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("zrange tasks: %w", err)
	}

	for _, member := range members {
		var task Task
		if err := json.Unmarshal([]byte(member), &task); err != nil {
			continue
		}
		if task.ID != taskID {
			continue
		}

		if err := q.client.ZRem(ctx, q.key, member).Err(); err != nil {
			return fmt.Errorf("zrem task: %w", err)
		}

		q.logger.Debug("cancelled resume task", "task_id", taskID)
		return nil
	}

	return nil
}

// PopDue атомарно забирает задачи со сроком <= now.
func (q *Queue) PopDue(ctx context.Context, now time.Time) ([]Task, error) {
	max := strconv.FormatInt(now.UnixMilli(), 10)

	pipe := q.client.Pipeline()
	rangeCmd := pipe.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min: "0",
		Max: max,
	})
	pipe.ZRemRangeByScore(ctx, q.key, "0", max)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("pop due tasks: %w", err)
	}

	members, err := rangeCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("read due tasks: %w", err)
	}

	tasks := make([]Task, 0, len(members))
	for _, member := range members {
		var task Task
		if err := json.Unmarshal([]byte(member), &task); err != nil {
			q.logger.Error("malformed task dropped", "member", member, "error", err)
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}
