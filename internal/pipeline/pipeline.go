// Package pipeline implements the three record-processing stages. Each
// stage reads only records in its expected state, performs external calls
// outside the store lock, and writes state transitions through the stage
// gate. The store remains the single source of truth; a CycleContext is
// the only state shared across stages and it dies with the cycle.
package pipeline

import (
	"log/slog"
	"sync"
	"time"

	"github.com/khalidmab/jobpress/internal/gate"
	"github.com/khalidmab/jobpress/internal/model"
	"github.com/khalidmab/jobpress/internal/retry"
	"github.com/khalidmab/jobpress/internal/store"
)

// Options carries the externally supplied knobs for stage behavior.
// Nothing in the stages hardcodes these.
type Options struct {
	FanOut            int64 // max outstanding external calls within a stage
	RetryPolicy       retry.Policy
	RecordRetryBudget int // failed-record retries before terminal failure
	PublishBatchLimit int
	AITimeout         time.Duration
	GeoTimeout        time.Duration
	PublishTimeout    time.Duration
}

// Pipeline wires the store and the four external collaborators.
type Pipeline struct {
	store     *store.Store
	scraper   model.Scraper
	extractor model.Extractor
	geocoder  model.Geocoder
	publisher model.Publisher
	history   model.TransitionLog
	opts      Options
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a pipeline with all its dependencies.
func New(
	st *store.Store,
	scraper model.Scraper,
	extractor model.Extractor,
	geocoder model.Geocoder,
	publisher model.Publisher,
	history model.TransitionLog,
	opts Options,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		store:     st,
		scraper:   scraper,
		extractor: extractor,
		geocoder:  geocoder,
		publisher: publisher,
		history:   history,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// CycleCounts summarizes what one cycle did, per stage.
type CycleCounts struct {
	New          int
	Retried      int // previously failed records re-ingested this cycle
	Duplicate    int
	IngestFailed int

	Enriched     int
	EnrichFailed int

	Validated        int
	ValidationFailed int

	Published     int
	PublishFailed int
}

// CycleContext is passed into each stage call and discarded when the cycle
// ends. Counts may be bumped from fan-out goroutines.
type CycleContext struct {
	StartedAt time.Time

	mu     sync.Mutex
	counts CycleCounts
}

// NewCycleContext starts an empty context for one cycle.
func NewCycleContext(startedAt time.Time) *CycleContext {
	return &CycleContext{StartedAt: startedAt}
}

// Counts returns a copy of the accumulated counters.
func (c *CycleContext) Counts() CycleCounts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts
}

func (c *CycleContext) bump(fn func(*CycleCounts)) {
	c.mu.Lock()
	fn(&c.counts)
	c.mu.Unlock()
}

// advance moves a record to the target stage under the store lock, gated,
// applying mutate to set the stage-owned fields. The transition is logged
// to history on success.
func (p *Pipeline) advance(identity string, to model.Stage, mutate func(*model.JobRecord)) error {
	var from model.Stage
	err := p.store.Update(identity, func(rec *model.JobRecord) error {
		if err := gate.Eligible(*rec, to); err != nil {
			return err
		}
		from = rec.Stage
		rec.Stage = to
		if mutate != nil {
			mutate(rec)
		}
		return nil
	})
	if err != nil {
		return err
	}
	p.appendHistory(model.Transition{Identity: identity, From: from, To: to, At: p.now()})
	return nil
}

// fail records a per-record failure: the record moves to Failed carrying
// kind and the stage whose work failed, and the failure is logged with
// identity, stage, and cause. Never propagates.
func (p *Pipeline) fail(identity string, kind model.FailureKind, at model.Stage, cause error) {
	now := p.now()
	var from model.Stage
	err := p.store.Update(identity, func(rec *model.JobRecord) error {
		from = rec.Stage
		rec.MarkFailed(kind, at, cause, now)
		return nil
	})
	if err != nil {
		p.logger.Error("recording failure", "identity", identity, "error", err)
		return
	}
	p.logger.Warn("record failed",
		"identity", identity,
		"stage", at,
		"kind", kind,
		"error", cause,
	)
	p.appendHistory(model.Transition{
		Identity: identity,
		From:     from,
		To:       model.StageFailed,
		Kind:     kind,
		Message:  cause.Error(),
		At:       now,
	})
}

func (p *Pipeline) appendHistory(t model.Transition) {
	if err := p.history.Append(t); err != nil {
		p.logger.Warn("appending history", "identity", t.Identity, "error", err)
	}
}

// retryCandidate reports whether a failed record may re-enter stage at and
// still has budget left.
func (p *Pipeline) retryCandidate(rec model.JobRecord, at model.Stage) bool {
	failedAt, ok := rec.FailedAt()
	return ok && failedAt == at && !rec.RetriesExhausted(p.opts.RecordRetryBudget)
}
