package pipeline

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/khalidmab/jobpress/internal/gate"
	"github.com/khalidmab/jobpress/internal/model"
	"github.com/khalidmab/jobpress/internal/publisher"
	"github.com/khalidmab/jobpress/internal/retry"
)

// Publish first promotes enriched records through validation, then pushes
// validated records to the platform, at most PublishBatchLimit per cycle.
// A record that fails stays Failed with its cause; everything it had
// accumulated (structured fields, location) is left untouched.
func (p *Pipeline) Publish(ctx context.Context, cc *CycleContext) error {
	p.validate(ctx, cc)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var candidates []model.JobRecord
	for rec := range p.store.Find(func(r model.JobRecord) bool {
		return r.Stage == model.StageValidated || p.retryCandidate(r, model.StagePublished)
	}) {
		candidates = append(candidates, rec)
	}
	sortStable(candidates)

	if limit := p.opts.PublishBatchLimit; limit > 0 && len(candidates) > limit {
		p.logger.Info("publish batch capped", "eligible", len(candidates), "limit", limit)
		candidates = candidates[:limit]
	}
	if len(candidates) == 0 {
		p.logger.Info("publishing: nothing to do")
		return nil
	}
	p.logger.Info("publishing started", "records", len(candidates))

	sem := semaphore.NewWeighted(p.opts.FanOut)
	var wg sync.WaitGroup
	for _, rec := range candidates {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(rec model.JobRecord) {
			defer wg.Done()
			defer sem.Release(1)
			p.publishOne(ctx, cc, rec)
		}(rec)
	}
	wg.Wait()

	counts := cc.Counts()
	p.logger.Info("publishing finished",
		"published", counts.Published,
		"failed", counts.PublishFailed,
	)
	return ctx.Err()
}

// validate promotes Enriched records (and validation retries) to Validated.
// It is pure bookkeeping over stored fields, so it runs sequentially.
func (p *Pipeline) validate(ctx context.Context, cc *CycleContext) {
	var candidates []model.JobRecord
	for rec := range p.store.Find(func(r model.JobRecord) bool {
		return r.Stage == model.StageEnriched || p.retryCandidate(r, model.StageValidated)
	}) {
		candidates = append(candidates, rec)
	}
	sortStable(candidates)

	for _, rec := range candidates {
		if ctx.Err() != nil {
			return
		}
		err := p.advance(rec.Identity, model.StageValidated, nil)
		switch {
		case err == nil:
			cc.bump(func(c *CycleCounts) { c.Validated++ })
		case errors.Is(err, gate.ErrIllegalTransition):
			p.logger.Warn("validation skipped", "identity", rec.Identity, "error", err)
		default:
			// Field-level problems: the record is complete enough to judge
			// and the judgment is no.
			p.fail(rec.Identity, model.FailureValidation, model.StageValidated, err)
			cc.bump(func(c *CycleCounts) { c.ValidationFailed++ })
		}
	}
}

func (p *Pipeline) publishOne(ctx context.Context, cc *CycleContext, rec model.JobRecord) {
	payload, err := publisher.RenderPayload(rec)
	if err != nil {
		p.fail(rec.Identity, model.FailurePublication, model.StagePublished, err)
		cc.bump(func(c *CycleCounts) { c.PublishFailed++ })
		return
	}

	result, err := retry.Do(ctx, p.opts.RetryPolicy, p.logger, "publish",
		func(ctx context.Context) (*model.PublishResult, error) {
			callCtx, cancel := context.WithTimeout(ctx, p.opts.PublishTimeout)
			defer cancel()
			return p.publisher.Publish(callCtx, payload)
		})
	if err != nil {
		p.fail(rec.Identity, model.FailurePublication, model.StagePublished, err)
		cc.bump(func(c *CycleCounts) { c.PublishFailed++ })
		return
	}

	now := p.now()
	err = p.advance(rec.Identity, model.StagePublished, func(r *model.JobRecord) {
		r.Publish = result
		if r.PublishedAt == nil {
			r.PublishedAt = &now
		}
	})
	if err != nil {
		p.logger.Warn("publish result not applied", "identity", rec.Identity, "error", err)
		return
	}
	cc.bump(func(c *CycleCounts) { c.Published++ })
	p.logger.Info("record published",
		"identity", rec.Identity,
		"post_id", result.PostID,
		"permalink", result.Permalink,
	)
}
