package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/crew/internal/artifact"
	"github.com/nidhogg/crew/internal/cache"
	"github.com/nidhogg/crew/internal/digest"
	"github.com/nidhogg/crew/internal/gateway"
	"github.com/nidhogg/crew/internal/roster"
	"go.uber.org/zap"
)

// Publisher receives round events.
type Publisher interface {
	Publish(ctx context.Context, ev gateway.Event) error
}

// RoundStore persists finished reports.
type RoundStore interface {
	SaveRound(ctx context.Context, r *Report) error
}

// Recorder observes round and agent outcomes.
type Recorder interface {
	RoundStarted()
	ObserveRound(status string, d time.Duration)
	ObserveResult(agent, status string, d time.Duration)
}

// StewardConfig wires a Steward. Cache, Rounds, Events and Metrics are
// optional.
type StewardConfig struct {
	Roster       *roster.Registry
	Dispatcher   *Dispatcher
	Assembler    *artifact.Assembler
	ArtifactPath string
	Cache        cache.Cache
	Rounds       RoundStore
	Events       Publisher
	Metrics      Recorder
}

// Steward runs rounds: one prompt across the whole roster, merged into a
// single artifact.
type Steward struct {
	roster    atomic.Pointer[roster.Registry]
	dispatch  *Dispatcher
	assembler *artifact.Assembler
	path      string
	cache     cache.Cache
	rounds    RoundStore
	events    Publisher
	metrics   Recorder
	last      atomic.Pointer[Report]
	persistMu sync.Mutex
	now       func() time.Time
	logger    *zap.Logger
}

// NewSteward validates cfg and creates a Steward.
func NewSteward(cfg StewardConfig, logger *zap.Logger) (*Steward, error) {
	if cfg.Roster == nil {
		return nil, fmt.Errorf("%w: steward needs a roster", roster.ErrConfiguration)
	}
	if cfg.Dispatcher == nil || cfg.Assembler == nil {
		return nil, errors.New("steward needs a dispatcher and an assembler")
	}
	if cfg.ArtifactPath == "" {
		return nil, errors.New("steward needs an artifact path")
	}
	s := &Steward{
		dispatch:  cfg.Dispatcher,
		assembler: cfg.Assembler,
		path:      cfg.ArtifactPath,
		cache:     cfg.Cache,
		rounds:    cfg.Rounds,
		events:    cfg.Events,
		metrics:   cfg.Metrics,
		now:       time.Now,
		logger:    logger,
	}
	s.roster.Store(cfg.Roster)
	return s, nil
}

// SetRoster replaces the roster used by subsequent rounds. Rounds already in
// flight keep the snapshot they started with.
func (s *Steward) SetRoster(r *roster.Registry) {
	if r == nil {
		return
	}
	s.roster.Store(r)
	s.logger.Info("roster replaced", zap.Int("agents", r.Len()))
}

// Roster returns the current roster.
func (s *Steward) Roster() *roster.Registry { return s.roster.Load() }

// ArtifactPath returns where merged documents are written.
func (s *Steward) ArtifactPath() string { return s.path }

// Last returns the most recent report, or nil before the first round.
func (s *Steward) Last() *Report { return s.last.Load() }

// MissingPromptReport is the report for a round rejected before dispatch.
func MissingPromptReport(at time.Time) *Report {
	return &Report{
		Status:    ReportError,
		Agents:    []Result{},
		Error:     "missing prompt",
		StartedAt: at,
	}
}

// Run executes one round. The returned report is always non-nil. The error
// is ErrInvalidInput when the prompt is rejected and ErrAssembly when the
// artifact could not be written; partial agent failures are not errors.
func (s *Steward) Run(ctx context.Context, prompt string) (*Report, error) {
	started := s.now()
	if prompt == "" {
		return MissingPromptReport(started), fmt.Errorf("%w: missing prompt", ErrInvalidInput)
	}
	report := &Report{
		RoundID:   uuid.New().String(),
		Prompt:    prompt,
		Agents:    []Result{},
		StartedAt: started,
	}

	agents := s.roster.Load().Agents()
	log := s.logger.With(zap.String("round", report.RoundID))
	log.Info("round started", zap.Int("agents", len(agents)))
	if s.metrics != nil {
		s.metrics.RoundStarted()
	}
	s.publish(ctx, gateway.Event{
		Type:    gateway.EventRoundStarted,
		RoundID: report.RoundID,
		Message: fmt.Sprintf("dispatching %d agents", len(agents)),
		Data:    map[string]any{"agents": len(agents)},
	})

	ch, err := s.dispatch.Stream(ctx, prompt, agents)
	if err != nil {
		report.Status = ReportError
		report.Error = err.Error()
		s.finish(ctx, report, started)
		return report, err
	}
	for r := range ch {
		report.Agents = append(report.Agents, r)
		if s.metrics != nil {
			s.metrics.ObserveResult(r.Agent, string(r.Status), r.Duration)
		}
		s.publish(ctx, gateway.Event{
			Type:    gateway.EventAgentCompleted,
			RoundID: report.RoundID,
			Agent:   r.Agent,
			Status:  string(r.Status),
			Message: agentMessage(r),
			Data:    map[string]any{"model": r.Model, "duration_ms": r.DurationMS, "digest_primary": r.DigestPrimary},
		})
	}
	report.Summary = Summarize(report.Agents)

	ordered, _ := Aggregate(report.Agents)
	doc, err := s.assembler.Assemble(sections(ordered))
	if err == nil {
		err = s.persist(doc)
	}
	if err != nil {
		log.Error("artifact assembly failed", zap.String("path", s.path), zap.Error(err))
		report.Status = ReportError
		report.Error = err.Error()
		s.finish(ctx, report, started)
		return report, fmt.Errorf("%w: %v", ErrAssembly, err)
	}

	path := s.path
	report.Status = ReportOK
	report.ArtifactPath = &path

	if s.cache != nil {
		tag := digest.Compute(doc).Primary
		if err := s.cache.Put(ctx, prompt, doc, tag); err != nil {
			log.Warn("cache put failed", zap.Error(err))
		}
	}

	s.finish(ctx, report, started)
	log.Info("round completed",
		zap.Int("succeeded", report.Summary.Succeeded),
		zap.Int("failed", report.Summary.Failed),
		zap.Int64("duration_ms", report.DurationMS))
	return report, nil
}

// persist serializes writers so the artifact always matches one round.
func (s *Steward) persist(doc []byte) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	return artifact.Persist(doc, s.path)
}

func (s *Steward) finish(ctx context.Context, report *Report, started time.Time) {
	elapsed := s.now().Sub(started)
	report.DurationMS = elapsed.Milliseconds()
	s.last.Store(report)

	if s.metrics != nil {
		s.metrics.ObserveRound(string(report.Status), elapsed)
	}
	if s.rounds != nil {
		if err := s.rounds.SaveRound(ctx, report); err != nil {
			s.logger.Warn("save round failed", zap.String("round", report.RoundID), zap.Error(err))
		}
	}

	data := map[string]any{
		"total":     report.Summary.Total,
		"succeeded": report.Summary.Succeeded,
		"failed":    report.Summary.Failed,
		"timed_out": report.Summary.TimedOut,
	}
	if report.ArtifactPath != nil {
		data["html_output"] = *report.ArtifactPath
	}
	msg := fmt.Sprintf("%d/%d agents succeeded", report.Summary.Succeeded, report.Summary.Total)
	if report.Error != "" {
		msg += ": " + report.Error
	}
	s.publish(ctx, gateway.Event{
		Type:    gateway.EventRoundCompleted,
		RoundID: report.RoundID,
		Status:  string(report.Status),
		Message: msg,
		Data:    data,
	})
}

func (s *Steward) publish(ctx context.Context, ev gateway.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Debug("event publish failed", zap.String("type", string(ev.Type)), zap.Error(err))
	}
}

func agentMessage(r Result) string {
	if r.Succeeded() {
		return fmt.Sprintf("%s finished in %dms", r.Agent, r.DurationMS)
	}
	return fmt.Sprintf("%s %s: %s", r.Agent, r.Status, r.Error)
}

func sections(ordered []Result) []artifact.Section {
	out := make([]artifact.Section, len(ordered))
	for i, r := range ordered {
		out[i] = artifact.Section{
			Agent:  r.Agent,
			Model:  r.Model,
			Output: r.Output,
			Digest: r.DigestPrimary,
		}
	}
	return out
}
