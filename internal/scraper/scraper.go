// Package scraper implements the Scraper collaborator against a
// WordPress-style job listings site: paginated index pages linking to one
// detail page per posting.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/khalidmab/jobpress/internal/config"
	"github.com/khalidmab/jobpress/internal/model"
)

// SiteScraper scrapes candidate URLs and per-posting raw fields. All
// requests to the source site go through one rate limiter.
type SiteScraper struct {
	cfg        config.ScraperConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// New creates a scraper for the configured site.
func New(cfg config.ScraperConfig, httpClient *http.Client, logger *slog.Logger) *SiteScraper {
	return &SiteScraper{
		cfg:        cfg,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		logger:     logger,
	}
}

// CandidateURLs walks the paginated listing index and returns every
// posting URL found. A failed page is logged and skipped; only a failure
// on the first page (which also carries the page count) is fatal.
func (s *SiteScraper) CandidateURLs(ctx context.Context) ([]string, error) {
	doc, err := s.fetch(ctx, s.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("fetching listing index: %w", err)
	}

	pages := s.totalPages(doc)
	if pages > s.cfg.MaxPages {
		pages = s.cfg.MaxPages
	}
	s.logger.Debug("scraping listing pages", "pages", pages)

	seen := make(map[string]struct{})
	s.collectURLs(doc, seen)

	for page := 2; page <= pages; page++ {
		pageURL := fmt.Sprintf("%spage/%d/", s.cfg.BaseURL, page)
		doc, err := s.fetch(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("skipping listing page", "page", page, "error", err)
			continue
		}
		s.collectURLs(doc, seen)
	}

	urls := make([]string, 0, len(seen))
	for u := range seen {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls, nil
}

// JobDetails fetches one posting page and parses it into raw fields.
func (s *SiteScraper) JobDetails(ctx context.Context, url string) (model.RawFields, error) {
	doc, err := s.fetch(ctx, url)
	if err != nil {
		return model.RawFields{}, fmt.Errorf("fetching posting: %w", err)
	}

	raw := model.RawFields{
		Description: strings.TrimSpace(doc.Find(s.cfg.Selectors.Description).Text()),
	}
	if raw.Description == "" {
		return model.RawFields{}, fmt.Errorf("no description found at %s", url)
	}

	// The details block is a <ul> of "<span>Label:</span> value" items.
	doc.Find(s.cfg.Selectors.Details).Find("li").Each(func(_ int, li *goquery.Selection) {
		label := li.Find("span").First()
		if label.Length() == 0 {
			return
		}
		key := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(label.Text()), ":"))
		value := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(li.Text()), strings.TrimSpace(label.Text())))
		assignField(&raw, key, value, li)
	})

	return raw, nil
}

// assignField maps a labeled detail item onto the raw field it belongs to.
func assignField(raw *model.RawFields, key, value string, li *goquery.Selection) {
	switch key {
	case "job location", "location":
		raw.Location = value
	case "salary":
		raw.Salary = value
	case "experience":
		raw.Experience = value
	case "job type", "type":
		raw.JobType = value
	case "industry":
		raw.Industry = value
	case "contact no", "contact":
		raw.ContactNo = value
	case "email":
		// Prefer the mailto target over rendered (often obfuscated) text.
		if href, ok := li.Find("a").First().Attr("href"); ok {
			raw.Email = strings.TrimPrefix(href, "mailto:")
		} else {
			raw.Email = value
		}
	case "listed":
		raw.Listed = value
	case "expires":
		raw.Expires = value
	}
}

// collectURLs gathers posting hrefs from one listing page.
func (s *SiteScraper) collectURLs(doc *goquery.Document, seen map[string]struct{}) {
	doc.Find(s.cfg.Selectors.URLs).Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok && href != "" {
			seen[href] = struct{}{}
		}
	})
}

// totalPages reads the page count from the pagination element, defaulting
// to a single page when the element is missing or unparseable.
func (s *SiteScraper) totalPages(doc *goquery.Document) int {
	text := strings.TrimSpace(doc.Find(s.cfg.Selectors.Pages).Text())
	if text == "" {
		return 1
	}
	fields := strings.Fields(text)
	n, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// fetch performs one rate-limited GET and parses the body as HTML.
func (s *SiteScraper) fetch(ctx context.Context, url string) (*goquery.Document, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if s.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", s.cfg.UserAgent)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: retryAfter(resp),
			Err:        fmt.Errorf("get %s", url),
		}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return doc, nil
}

// retryAfter parses a Retry-After header given in seconds.
func retryAfter(resp *http.Response) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
