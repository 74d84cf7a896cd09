package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/crew/internal/digest"
	"github.com/nidhogg/crew/internal/provider"
	"github.com/nidhogg/crew/internal/roster"
	"go.uber.org/zap"
)

const (
	DefaultWorkers = 5
	DefaultTimeout = 120 * time.Second
)

// DispatchConfig bounds one dispatch call.
type DispatchConfig struct {
	Workers int
	Timeout time.Duration
}

// Dispatcher runs one invocation per agent over a bounded goroutine pool.
// Every agent yields exactly one Result; a failing or slow agent never
// affects its siblings.
type Dispatcher struct {
	invoker provider.Invoker
	cfg     DispatchConfig
	observe func(Result)
	now     func() time.Time
	logger  *zap.Logger
}

// NewDispatcher creates a dispatcher. cfg is validated per call.
func NewDispatcher(invoker provider.Invoker, cfg DispatchConfig, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		invoker: invoker,
		cfg:     cfg,
		now:     time.Now,
		logger:  logger,
	}
}

// OnResult registers fn to see every Result as it completes. fn is called
// from worker goroutines and must be safe for concurrent use. Set it before
// the first dispatch.
func (d *Dispatcher) OnResult(fn func(Result)) {
	d.observe = fn
}

// Config returns the pool bounds.
func (d *Dispatcher) Config() DispatchConfig { return d.cfg }

func (d *Dispatcher) validate(prompt string) error {
	if prompt == "" {
		return fmt.Errorf("%w: missing prompt", ErrInvalidInput)
	}
	if d.cfg.Workers < 1 {
		return fmt.Errorf("%w: worker limit must be at least 1, got %d", ErrInvalidInput, d.cfg.Workers)
	}
	if d.cfg.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidInput, d.cfg.Timeout)
	}
	return nil
}

// Stream starts one task per agent and returns their results in arrival
// order. The channel is closed once every task is terminal.
func (d *Dispatcher) Stream(ctx context.Context, prompt string, agents []roster.AgentSpec) (<-chan Result, error) {
	if err := d.validate(prompt); err != nil {
		return nil, err
	}

	results := make(chan Result, len(agents))
	pool := make(chan struct{}, d.cfg.Workers) // semaphore-based pool, one per round
	var wg sync.WaitGroup

	for _, spec := range agents {
		task := &Task{
			ID:        uuid.New().String(),
			Agent:     spec.Name,
			Model:     spec.Model,
			Prompt:    prompt,
			CreatedAt: d.now(),
		}

		wg.Add(1)
		go func(task *Task) {
			defer wg.Done()
			select {
			case pool <- struct{}{}: // acquire slot
			case <-ctx.Done():
				results <- d.emit(d.failure(task, StatusError, "canceled before start: "+ctx.Err().Error()))
				return
			}
			defer func() { <-pool }() // release slot

			results <- d.emit(d.execute(ctx, task))
		}(task)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results, nil
}

// Dispatch is Stream followed by a full join.
func (d *Dispatcher) Dispatch(ctx context.Context, prompt string, agents []roster.AgentSpec) ([]Result, error) {
	ch, err := d.Stream(ctx, prompt, agents)
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(agents))
	for r := range ch {
		out = append(out, r)
	}
	return out, nil
}

type outcome struct {
	output string
	err    error
}

// execute runs a single task under its own deadline. The clock starts once
// the task holds a worker slot.
func (d *Dispatcher) execute(ctx context.Context, task *Task) Result {
	task.StartedAt = d.now()
	taskCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	d.logger.Info("executing task",
		zap.String("task", task.ID),
		zap.String("agent", task.Agent),
		zap.String("model", task.Model))

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("invoker panic: %v", r)}
			}
		}()
		out, err := d.invoker.Invoke(taskCtx, task.Model, task.Prompt)
		done <- outcome{output: out, err: err}
	}()

	select {
	case o := <-done:
		return d.finish(ctx, taskCtx, task, o)
	case <-taskCtx.Done():
		select {
		case o := <-done:
			return d.finish(ctx, taskCtx, task, o)
		default:
		}
		return d.interrupted(ctx, task)
	}
}

func (d *Dispatcher) finish(ctx, taskCtx context.Context, task *Task, o outcome) Result {
	if o.err == nil {
		sum := digest.String(o.output)
		now := d.now()
		return Result{
			Agent:           task.Agent,
			Model:           task.Model,
			Output:          o.output,
			DigestPrimary:   sum.Primary,
			DigestSecondary: sum.Secondary,
			Status:          StatusSuccess,
			ObservedAt:      now,
			Duration:        now.Sub(task.StartedAt),
			DurationMS:      now.Sub(task.StartedAt).Milliseconds(),
		}
	}
	if taskCtx.Err() != nil && (errors.Is(o.err, context.DeadlineExceeded) || errors.Is(o.err, context.Canceled)) {
		return d.interrupted(ctx, task)
	}
	d.logger.Warn("task failed",
		zap.String("task", task.ID),
		zap.String("agent", task.Agent),
		zap.Error(o.err))
	return d.failure(task, StatusError, o.err.Error())
}

// interrupted classifies a task whose context ended: its own deadline is a
// timeout, a cancelled parent is an error.
func (d *Dispatcher) interrupted(ctx context.Context, task *Task) Result {
	if err := ctx.Err(); err != nil {
		return d.failure(task, StatusError, "canceled: "+err.Error())
	}
	d.logger.Warn("task timed out",
		zap.String("task", task.ID),
		zap.String("agent", task.Agent),
		zap.Duration("timeout", d.cfg.Timeout))
	return d.failure(task, StatusTimeout, (&TimeoutError{Agent: task.Agent, Timeout: d.cfg.Timeout}).Error())
}

func (d *Dispatcher) failure(task *Task, status Status, detail string) Result {
	now := d.now()
	r := Result{
		Agent:      task.Agent,
		Model:      task.Model,
		Status:     status,
		Error:      detail,
		ObservedAt: now,
	}
	if !task.StartedAt.IsZero() {
		r.Duration = now.Sub(task.StartedAt)
		r.DurationMS = r.Duration.Milliseconds()
	}
	return r
}

func (d *Dispatcher) emit(r Result) Result {
	if d.observe != nil {
		d.observe(r)
	}
	return r
}
