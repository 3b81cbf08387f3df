// Package orchestrator owns the cycle: Idle → Ingesting → Enriching →
// Publishing → Idle, on a timer or on demand. Cycles never overlap; the
// store is checkpointed after every stage so a crash loses at most the
// stage in flight.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/khalidmab/jobpress/internal/model"
	"github.com/khalidmab/jobpress/internal/pipeline"
	"github.com/khalidmab/jobpress/internal/store"
)

// Phase is where the orchestrator currently is in the cycle.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseIngesting  Phase = "ingesting"
	PhaseEnriching  Phase = "enriching"
	PhasePublishing Phase = "publishing"
)

// ErrCycleInProgress is returned when a cycle is requested while another
// one is still running.
var ErrCycleInProgress = errors.New("a cycle is already in progress")

// Orchestrator drives the pipeline stages and the persistence checkpoints.
type Orchestrator struct {
	pipe     *pipeline.Pipeline
	store    *store.Store
	interval time.Duration
	logger   *slog.Logger

	cycleMu sync.Mutex // held for the duration of one cycle

	phaseMu sync.Mutex
	phase   Phase
}

// New creates an orchestrator running one cycle per interval.
func New(pipe *pipeline.Pipeline, st *store.Store, interval time.Duration, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		pipe:     pipe,
		store:    st,
		interval: interval,
		logger:   logger,
		phase:    PhaseIdle,
	}
}

// Phase returns the current cycle phase.
func (o *Orchestrator) Phase() Phase {
	o.phaseMu.Lock()
	defer o.phaseMu.Unlock()
	return o.phase
}

func (o *Orchestrator) setPhase(p Phase) {
	o.phaseMu.Lock()
	o.phase = p
	o.phaseMu.Unlock()
}

// Run starts the continuous loop: one immediate cycle, then one per
// interval. It returns nil when ctx is cancelled (graceful shutdown).
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("starting orchestrator", "interval", o.interval.String())

	if _, err := o.RunCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
		if isCorruption(err) {
			return err
		}
		o.logger.Error("cycle failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("shutting down orchestrator")
			return nil
		case <-time.After(o.interval):
			if _, err := o.RunCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
				if isCorruption(err) {
					return err
				}
				o.logger.Error("cycle failed", "error", err)
			}
		}
	}
}

// RunCycle runs one full cycle. A stage error is logged and the cycle
// moves on to the next stage; records already ingested should still get
// their chance to advance. Only corruption or a failed checkpoint aborts.
func (o *Orchestrator) RunCycle(ctx context.Context) (pipeline.CycleCounts, error) {
	if !o.cycleMu.TryLock() {
		return pipeline.CycleCounts{}, ErrCycleInProgress
	}
	defer o.cycleMu.Unlock()
	defer o.setPhase(PhaseIdle)

	started := time.Now()
	cc := pipeline.NewCycleContext(started)
	o.logger.Info("cycle started")

	stages := []struct {
		phase Phase
		run   func(context.Context, *pipeline.CycleContext) error
	}{
		{PhaseIngesting, o.pipe.Ingest},
		{PhaseEnriching, o.pipe.Enrich},
		{PhasePublishing, o.pipe.Publish},
	}

	for _, st := range stages {
		if ctx.Err() != nil {
			return cc.Counts(), ctx.Err()
		}
		o.setPhase(st.phase)

		if err := st.run(ctx, cc); err != nil {
			if isCorruption(err) || ctx.Err() != nil {
				return cc.Counts(), err
			}
			o.logger.Error("stage failed, continuing cycle", "phase", st.phase, "error", err)
		}

		if err := o.store.Persist(); err != nil {
			return cc.Counts(), err
		}
	}

	counts := cc.Counts()
	o.logger.Info("cycle finished",
		"duration", time.Since(started).String(),
		"new", counts.New,
		"retried", counts.Retried,
		"duplicate", counts.Duplicate,
		"enriched", counts.Enriched,
		"published", counts.Published,
		"failed", counts.IngestFailed+counts.EnrichFailed+counts.ValidationFailed+counts.PublishFailed,
	)
	return counts, nil
}

// RunIngestOnly runs just the ingestion stage and checkpoints. Used by the
// scrape command for inspecting a source without touching the AI or the
// publisher.
func (o *Orchestrator) RunIngestOnly(ctx context.Context) (pipeline.CycleCounts, error) {
	if !o.cycleMu.TryLock() {
		return pipeline.CycleCounts{}, ErrCycleInProgress
	}
	defer o.cycleMu.Unlock()
	defer o.setPhase(PhaseIdle)

	cc := pipeline.NewCycleContext(time.Now())
	o.setPhase(PhaseIngesting)
	if err := o.pipe.Ingest(ctx, cc); err != nil {
		return cc.Counts(), err
	}
	if err := o.store.Persist(); err != nil {
		return cc.Counts(), err
	}
	return cc.Counts(), nil
}

func isCorruption(err error) bool {
	var ce *model.CorruptionError
	return errors.As(err, &ce)
}
