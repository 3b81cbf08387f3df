package pipeline

import (
	"context"
	"sort"

	"github.com/khalidmab/jobpress/internal/model"
)

// Ingest discovers candidate posting URLs, skips identities the store
// already tracks, and fetches raw fields for the rest. A failed candidate
// list is a stage error; a failed detail fetch only fails that record.
func (p *Pipeline) Ingest(ctx context.Context, cc *CycleContext) error {
	urls, err := p.scraper.CandidateURLs(ctx)
	if err != nil {
		return err
	}
	p.logger.Info("ingestion started", "candidates", len(urls))

	seen := make(map[string]bool, len(urls))
	for _, url := range urls {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		identity := model.IdentityFor(url)
		seen[identity] = true

		if existing, ok := p.store.Get(identity); ok {
			if p.retryCandidate(existing, model.StageScraped) {
				p.ingestOne(ctx, cc, identity, url)
			} else {
				cc.bump(func(c *CycleCounts) { c.Duplicate++ })
			}
			continue
		}

		raw, err := p.scraper.JobDetails(ctx, url)
		now := p.now()
		rec := model.JobRecord{
			Identity:  identity,
			SourceURL: url,
			Stage:     model.StageScraped,
			ScrapedAt: now,
		}
		if err != nil {
			rec.MarkFailed(model.FailureIngestion, model.StageScraped, err, now)
			p.store.Upsert(rec)
			p.logger.Warn("record failed",
				"identity", identity,
				"stage", model.StageScraped,
				"kind", model.FailureIngestion,
				"error", err,
			)
			p.appendHistory(model.Transition{
				Identity: identity,
				To:       model.StageFailed,
				Kind:     model.FailureIngestion,
				Message:  err.Error(),
				At:       now,
			})
			cc.bump(func(c *CycleCounts) { c.IngestFailed++ })
			continue
		}

		rec.Raw = raw
		p.store.Upsert(rec)
		p.appendHistory(model.Transition{Identity: identity, To: model.StageScraped, At: now})
		cc.bump(func(c *CycleCounts) { c.New++ })
		p.logger.Info("record ingested", "identity", identity, "url", url)
	}

	// Failed ingestions whose URL dropped off the candidate pages still get
	// their retries: the detail page usually outlives the listing.
	for rec := range p.store.Find(func(r model.JobRecord) bool {
		return !seen[r.Identity] && p.retryCandidate(r, model.StageScraped)
	}) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.ingestOne(ctx, cc, rec.Identity, rec.SourceURL)
	}

	counts := cc.Counts()
	p.logger.Info("ingestion finished",
		"new", counts.New,
		"retried", counts.Retried,
		"duplicate", counts.Duplicate,
		"failed", counts.IngestFailed,
	)
	return nil
}

// ingestOne re-fetches details for a record that failed ingestion before.
func (p *Pipeline) ingestOne(ctx context.Context, cc *CycleContext, identity, url string) {
	raw, err := p.scraper.JobDetails(ctx, url)
	if err != nil {
		p.fail(identity, model.FailureIngestion, model.StageScraped, err)
		cc.bump(func(c *CycleCounts) { c.IngestFailed++ })
		return
	}

	now := p.now()
	err = p.advance(identity, model.StageScraped, func(rec *model.JobRecord) {
		rec.Raw = raw
		if rec.ScrapedAt.IsZero() {
			rec.ScrapedAt = now
		}
	})
	if err != nil {
		p.logger.Warn("ingest retry not applied", "identity", identity, "error", err)
		return
	}
	cc.bump(func(c *CycleCounts) { c.Retried++ })
	p.logger.Info("record ingested on retry", "identity", identity, "url", url)
}

// sortStable orders records oldest-first so batch limits and logs are
// deterministic regardless of map iteration order.
func sortStable(recs []model.JobRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].ScrapedAt.Equal(recs[j].ScrapedAt) {
			return recs[i].ScrapedAt.Before(recs[j].ScrapedAt)
		}
		return recs[i].Identity < recs[j].Identity
	})
}
