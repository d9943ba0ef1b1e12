package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// TypeExpireHolds is the asynq task that flips lapsed holds to EXPIRED.
const TypeExpireHolds = "reservation:expire_holds"

// ExpireHoldsPayload bounds how many holds one run may expire.
type ExpireHoldsPayload struct {
	Limit int `json:"limit"`
}

// NewExpireHoldsTask builds the sweeper task.
func NewExpireHoldsTask(limit int) (*asynq.Task, error) {
	payload, err := json.Marshal(ExpireHoldsPayload{Limit: limit})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeExpireHolds, payload), nil
}

// Expirer is implemented by the reservation service.
type Expirer interface {
	ExpireLapsed(ctx context.Context, limit int) (int, error)
}

// NewExpireHoldsHandler returns the asynq handler for TypeExpireHolds.  A
// malformed payload is not retried.
func NewExpireHoldsHandler(exp Expirer, log *slog.Logger) asynq.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	return func(ctx context.Context, t *asynq.Task) error {
		var p ExpireHoldsPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("decode %s payload: %v: %w", TypeExpireHolds, err, asynq.SkipRetry)
		}
		n, err := exp.ExpireLapsed(ctx, p.Limit)
		if err != nil {
			return fmt.Errorf("expire lapsed holds: %w", err)
		}
		log.DebugContext(ctx, "sweeper run finished", "expired", n, "limit", p.Limit)
		return nil
	}
}

// SweeperOptions configures the periodic hold sweeper.
type SweeperOptions struct {
	Cron    string        // e.g. "*/1 * * * *"
	Batch   int           // holds expired per run
	Timeout time.Duration // per-run deadline
}

// Sweeper owns the asynq scheduler that enqueues TypeExpireHolds and the
// worker server that runs it.
type Sweeper struct {
	scheduler *asynq.Scheduler
	server    *asynq.Server
}

// StartSweeper registers the expire-holds task on opts.Cron and starts both
// the scheduler and a single-worker server.  Call Shutdown to stop them.
func StartSweeper(redisOpt asynq.RedisClientOpt, opts SweeperOptions, exp Expirer, log *slog.Logger) (*Sweeper, error) {
	task, err := NewExpireHoldsTask(opts.Batch)
	if err != nil {
		return nil, err
	}

	scheduler := asynq.NewScheduler(redisOpt, nil)
	if _, err := scheduler.Register(opts.Cron, task, asynq.Timeout(opts.Timeout), asynq.MaxRetry(1)); err != nil {
		return nil, fmt.Errorf("register sweeper: %w", err)
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 1,
		Queues:      map[string]int{"default": 1},
	})
	mux := asynq.NewServeMux()
	mux.Handle(TypeExpireHolds, NewExpireHoldsHandler(exp, log))

	if err := scheduler.Start(); err != nil {
		return nil, fmt.Errorf("start scheduler: %w", err)
	}
	if err := srv.Start(mux); err != nil {
		scheduler.Shutdown()
		return nil, fmt.Errorf("start sweeper worker: %w", err)
	}
	return &Sweeper{scheduler: scheduler, server: srv}, nil
}

// Shutdown stops the scheduler first so no new runs are enqueued.
func (s *Sweeper) Shutdown() {
	s.scheduler.Shutdown()
	s.server.Shutdown()
}
