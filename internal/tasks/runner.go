package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/newsletter-basket/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/newsletter-basket/internal/lib/sl"
	"github.com/magabrotheeeer/newsletter-basket/internal/metrics"
	"github.com/magabrotheeeer/newsletter-basket/internal/models"
)

// Policy задаёт границы повторного выполнения задачи.
// MaxAttempts считает повторы после первого запуска: по умолчанию
// 6 повторов с задержкой 5 минут, то есть около получаса на задачу.
type Policy struct {
	MaxAttempts int
	RetryDelay  time.Duration
}

// DefaultPolicy возвращает политику повторов по умолчанию.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 6, RetryDelay: 5 * time.Minute}
}

// Envelope — сериализуемое описание одного запуска задачи.
type Envelope struct {
	TaskID  string          `json:"task_id"`
	Name    string          `json:"name"`
	Args    json.RawMessage `json:"args"`
	Attempt int             `json:"attempt"`
}

// Handler выполняет задачу с JSON-аргументами.
type Handler func(ctx context.Context, args json.RawMessage) error

// Publisher публикует конверт задачи с ключом маршрутизации.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// FailedTaskStore сохраняет и читает записи об окончательных отказах.
type FailedTaskStore interface {
	CreateFailedTask(ctx context.Context, task models.FailedTask) (int, error)
	GetFailedTask(ctx context.Context, id int) (*models.FailedTask, error)
	DeleteFailedTask(ctx context.Context, id int) (int, error)
}

// Runner выполняет задачи по имени под политикой повторов.
// Временный сбой возвращает конверт в очередь отложенного повтора;
// фатальный сбой или исчерпание попыток фиксируется в failed_tasks.
type Runner struct {
	handlers map[string]Handler
	failed   FailedTaskStore
	pub      Publisher
	policy   Policy
	log      *slog.Logger
}

// NewRunner создаёт диспетчер задач.
func NewRunner(failed FailedTaskStore, pub Publisher, policy Policy, log *slog.Logger) *Runner {
	return &Runner{
		handlers: make(map[string]Handler),
		failed:   failed,
		pub:      pub,
		policy:   policy,
		log:      log,
	}
}

// Register регистрирует обработчик задачи под именем.
func (r *Runner) Register(name string, h Handler) {
	r.handlers[name] = h
}

// Enqueue публикует новую задачу в рабочую очередь и возвращает её id.
func (r *Runner) Enqueue(name string, args any) (string, error) {
	const op = "tasks.Enqueue"
	raw, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	env := Envelope{
		TaskID:  uuid.NewString(),
		Name:    name,
		Args:    raw,
		Attempt: 1,
	}
	if err := r.pub.Publish(rabbitmq.WorkKey, env); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return env.TaskID, nil
}

// Run выполняет один конверт. Ошибка возвращается только при сбое самой
// инфраструктуры (не удалось записать отказ или переотправить конверт) —
// в этом случае сообщение вернётся в очередь брокером.
func (r *Runner) Run(ctx context.Context, env Envelope) error {
	const op = "tasks.Run"
	log := r.log.With(
		slog.String("op", op),
		slog.String("task", env.Name),
		slog.String("task_id", env.TaskID),
		slog.Int("attempt", env.Attempt),
	)

	handler, ok := r.handlers[env.Name]
	if !ok {
		log.Error("unknown task name")
		return r.recordFailure(ctx, env, fmt.Errorf("unknown task: %s", env.Name))
	}

	err := handler(ctx, env.Args)
	if err == nil {
		metrics.TaskRuns.WithLabelValues(env.Name, metrics.ResultSuccess).Inc()
		log.Info("task succeeded")
		return nil
	}

	if IsTerminal(err) {
		log.Error("task failed permanently", sl.Err(err))
		return r.recordFailure(ctx, env, err)
	}

	// Первый запуск идёт с Attempt=1 и в лимит повторов не входит.
	if env.Attempt > r.policy.MaxAttempts {
		log.Error("task exhausted retries", sl.Err(err))
		return r.recordFailure(ctx, env, err)
	}

	metrics.TaskRuns.WithLabelValues(env.Name, metrics.ResultRetry).Inc()
	log.Warn("task retrying", sl.Err(err))
	env.Attempt++
	if pubErr := r.pub.Publish(rabbitmq.RetryKey, env); pubErr != nil {
		return fmt.Errorf("%s: %w", op, pubErr)
	}
	return nil
}

// HandleDelivery разбирает тело сообщения очереди и выполняет конверт.
// Используется как обработчик потребителя рабочей очереди.
func (r *Runner) HandleDelivery(ctx context.Context) func([]byte) error {
	return func(body []byte) error {
		var env Envelope
		if err := json.Unmarshal(body, &env); err != nil {
			// Нечитаемый конверт нет смысла возвращать в очередь.
			r.log.Error("failed to unmarshal task envelope", sl.Err(err))
			return nil
		}
		return r.Run(ctx, env)
	}
}

// Replay повторно выполняет записанный отказ; запись удаляется
// только после успешного выполнения.
func (r *Runner) Replay(ctx context.Context, id int) error {
	const op = "tasks.Replay"
	record, err := r.failed.GetFailedTask(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if record == nil {
		return fmt.Errorf("%s: failed task %d not found", op, id)
	}

	handler, ok := r.handlers[record.Name]
	if !ok {
		return fmt.Errorf("%s: unknown task: %s", op, record.Name)
	}
	if err := handler(ctx, record.Args); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := r.failed.DeleteFailedTask(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	r.log.Info("failed task replayed", slog.Int("id", id), slog.String("task", record.Name))
	return nil
}

func (r *Runner) recordFailure(ctx context.Context, env Envelope, cause error) error {
	const op = "tasks.recordFailure"
	metrics.TaskRuns.WithLabelValues(env.Name, metrics.ResultFailure).Inc()
	_, err := r.failed.CreateFailedTask(ctx, models.FailedTask{
		When:   time.Now().UTC(),
		TaskID: env.TaskID,
		Name:   env.Name,
		Args:   env.Args,
		Exc:    cause.Error(),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
