package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/khalidmab/jobpress/internal/model"
	"github.com/khalidmab/jobpress/internal/retry"
)

// Enrich runs AI extraction (and best-effort geocoding) over every record
// that is Scraped, or Failed at enrichment with retry budget left. Records
// are processed concurrently up to the fan-out limit; each record succeeds
// or fails on its own.
func (p *Pipeline) Enrich(ctx context.Context, cc *CycleContext) error {
	var candidates []model.JobRecord
	for rec := range p.store.Find(func(r model.JobRecord) bool {
		return r.Stage == model.StageScraped || p.retryCandidate(r, model.StageEnriched)
	}) {
		candidates = append(candidates, rec)
	}
	sortStable(candidates)

	if len(candidates) == 0 {
		p.logger.Info("enrichment: nothing to do")
		return nil
	}
	p.logger.Info("enrichment started", "records", len(candidates))

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
			p.enrichOne(ctx, cc, rec)
		}(rec)
	}
	wg.Wait()

	counts := cc.Counts()
	p.logger.Info("enrichment finished",
		"enriched", counts.Enriched,
		"failed", counts.EnrichFailed,
	)
	return ctx.Err()
}

func (p *Pipeline) enrichOne(ctx context.Context, cc *CycleContext, rec model.JobRecord) {
	structured, err := retry.Do(ctx, p.opts.RetryPolicy, p.logger, "ai extraction",
		func(ctx context.Context) (*model.StructuredFields, error) {
			callCtx, cancel := context.WithTimeout(ctx, p.opts.AITimeout)
			defer cancel()
			return p.extractor.Extract(callCtx, rec)
		})
	if err != nil {
		p.fail(rec.Identity, model.FailureExtraction, model.StageEnriched, err)
		cc.bump(func(c *CycleCounts) { c.EnrichFailed++ })
		return
	}

	// Geocoding never blocks enrichment: a miss becomes a warning on the
	// record and the pipeline moves on.
	var geo *model.GeoLocation
	var geoWarning string
	if loc := strings.TrimSpace(rec.Raw.Location); loc != "" {
		geoCtx, cancel := context.WithTimeout(ctx, p.opts.GeoTimeout)
		geo, err = p.geocoder.Normalize(geoCtx, loc)
		cancel()
		if err != nil {
			geoWarning = fmt.Sprintf("geocoding %q: %v", loc, err)
			p.logger.Warn("geocoding failed", "identity", rec.Identity, "location", loc, "error", err)
		}
	}

	now := p.now()
	err = p.advance(rec.Identity, model.StageEnriched, func(r *model.JobRecord) {
		r.Structured = structured
		if geo != nil {
			r.Location = geo
		}
		if geoWarning != "" {
			r.AddWarning(geoWarning)
		}
		if r.EnrichedAt == nil {
			r.EnrichedAt = &now
		}
	})
	if err != nil {
		p.logger.Warn("enrichment not applied", "identity", rec.Identity, "error", err)
		return
	}
	cc.bump(func(c *CycleCounts) { c.Enriched++ })
	p.logger.Info("record enriched",
		"identity", rec.Identity,
		"title", structured.Title,
		"organization", structured.Organization,
	)
}
