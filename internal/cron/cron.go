// Package cron runs rounds on a schedule.
package cron

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Schedule runs Prompt whenever Expr fires.
type Schedule struct {
	Name   string
	Expr   string
	Prompt string
}

// RunFunc executes one round for prompt.
type RunFunc func(ctx context.Context, prompt string) error

// Entry describes a registered schedule.
type Entry struct {
	Name string    `json:"name"`
	Expr string    `json:"cron"`
	Next time.Time `json:"next"`
}

// Service owns the cron loop. A schedule whose previous round is still
// running skips its tick.
type Service struct {
	c      *cron.Cron
	ids    map[string]cron.EntryID
	specs  map[string]Schedule
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Parse validates a five-field cron expression (or @descriptor).
func Parse(expr string) (cron.Schedule, error) {
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return sched, nil
}

// NewService registers every schedule. Any invalid expression or duplicate
// name fails the whole set.
func NewService(schedules []Schedule, run RunFunc, logger *zap.Logger) (*Service, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		ids:    make(map[string]cron.EntryID, len(schedules)),
		specs:  make(map[string]Schedule, len(schedules)),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
	s.c = cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.Recover(zapLogger{logger.Sugar()}), cron.SkipIfStillRunning(zapLogger{logger.Sugar()})),
	)

	for _, sc := range schedules {
		if sc.Name == "" || sc.Prompt == "" {
			cancel()
			return nil, fmt.Errorf("schedule %q needs a name and a prompt", sc.Name)
		}
		if _, dup := s.ids[sc.Name]; dup {
			cancel()
			return nil, fmt.Errorf("duplicate schedule name %q", sc.Name)
		}
		sched, err := Parse(sc.Expr)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("schedule %q: %w", sc.Name, err)
		}
		sc := sc
		id := s.c.Schedule(sched, cron.FuncJob(func() {
			s.fire(sc, run)
		}))
		s.ids[sc.Name] = id
		s.specs[sc.Name] = sc
	}
	return s, nil
}

func (s *Service) fire(sc Schedule, run RunFunc) {
	s.logger.Info("scheduled round firing", zap.String("schedule", sc.Name))
	if err := run(s.ctx, sc.Prompt); err != nil {
		s.logger.Warn("scheduled round failed", zap.String("schedule", sc.Name), zap.Error(err))
	}
}

// Start begins firing schedules in the background.
func (s *Service) Start() {
	s.c.Start()
	s.logger.Info("cron started", zap.Int("schedules", len(s.ids)))
}

// Stop halts the loop, cancels running rounds and waits for them to return
// or for ctx to end.
func (s *Service) Stop(ctx context.Context) error {
	done := s.c.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Entries lists schedules sorted by name.
func (s *Service) Entries() []Entry {
	out := make([]Entry, 0, len(s.ids))
	for name, id := range s.ids {
		e := s.c.Entry(id)
		next := e.Next
		if next.IsZero() && e.Schedule != nil {
			next = e.Schedule.Next(time.Now())
		}
		out = append(out, Entry{Name: name, Expr: s.specs[name].Expr, Next: next})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// zapLogger adapts zap to cron.Logger.
type zapLogger struct{ s *zap.SugaredLogger }

func (l zapLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l zapLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
