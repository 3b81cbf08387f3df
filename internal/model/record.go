package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Stage is a point in a record's lifecycle. Records only move forward
// (Scraped → Enriched → Validated → Published), except into Failed.
type Stage string

const (
	StageScraped   Stage = "scraped"
	StageEnriched  Stage = "enriched"
	StageValidated Stage = "validated"
	StagePublished Stage = "published"
	StageFailed    Stage = "failed"
)

// rank orders the forward stages. Failed sits outside the ordering.
func (s Stage) rank() int {
	switch s {
	case StageScraped:
		return 0
	case StageEnriched:
		return 1
	case StageValidated:
		return 2
	case StagePublished:
		return 3
	}
	return -1
}

// AtLeast reports whether s is at or past other on the forward path.
// Failed is never "at least" anything.
func (s Stage) AtLeast(other Stage) bool {
	return s.rank() >= 0 && other.rank() >= 0 && s.rank() >= other.rank()
}

// Terminal reports whether no further forward transition exists.
func (s Stage) Terminal() bool {
	return s == StagePublished
}

// RawFields holds everything captured at scrape time. Immutable once set.
type RawFields struct {
	Description string `json:"description"`
	Location    string `json:"location,omitempty"`
	Salary      string `json:"salary,omitempty"`
	Experience  string `json:"experience,omitempty"`
	JobType     string `json:"job_type,omitempty"`
	Industry    string `json:"industry,omitempty"`
	ContactNo   string `json:"contact_no,omitempty"`
	Email       string `json:"email,omitempty"`
	Listed      string `json:"listed,omitempty"`
	Expires     string `json:"expires,omitempty"`
}

// StructuredFields is what the AI extractor produced. Present on a record
// if and only if its stage is Enriched or later.
type StructuredFields struct {
	Title          string   `json:"title"`
	Organization   string   `json:"organization"`
	OrgShortName   string   `json:"org_short_name,omitempty"`
	Summary        string   `json:"summary,omitempty"`
	Categories     []string `json:"categories,omitempty"`
	Requirements   []string `json:"requirements,omitempty"`
	Skills         []string `json:"skills,omitempty"`
	EmploymentType string   `json:"employment_type,omitempty"`
	City           string   `json:"city,omitempty"`
	Country        string   `json:"country,omitempty"`

	// Salary and dates either parse or are explicitly marked unknown;
	// validation rejects the in-between.
	SalaryMin      int    `json:"salary_min,omitempty"`
	SalaryMax      int    `json:"salary_max,omitempty"`
	SalaryCurrency string `json:"salary_currency,omitempty"`
	SalaryPeriod   string `json:"salary_period,omitempty"`
	SalaryUnknown  bool   `json:"salary_unknown,omitempty"`
	PostedDate     string `json:"posted_date,omitempty"`
	Deadline       string `json:"deadline,omitempty"`
	DatesUnknown   bool   `json:"dates_unknown,omitempty"`
}

// GeoLocation is the geocoder's normalized output. Always optional:
// a record publishes fine without one.
type GeoLocation struct {
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`
	CanonicalName string  `json:"canonical_name"`
}

// PublishResult identifies the post created on the target platform.
type PublishResult struct {
	PostID    string `json:"post_id"`
	Permalink string `json:"permalink,omitempty"`
	Via       string `json:"via,omitempty"`
}

// FailureInfo is the last failure recorded for a record. It is kept even
// after the record eventually succeeds, for audit.
type FailureInfo struct {
	Kind     FailureKind `json:"kind"`
	Stage    Stage       `json:"stage"`
	Message  string      `json:"message"`
	Attempts int         `json:"attempts"`
	LastAt   time.Time   `json:"last_at"`
}

// JobRecord is one tracked posting and all state it has accumulated.
type JobRecord struct {
	Identity  string `json:"identity"`
	SourceURL string `json:"source_url"`
	Stage     Stage  `json:"stage"`

	Raw        RawFields         `json:"raw"`
	Structured *StructuredFields `json:"structured,omitempty"`
	Location   *GeoLocation      `json:"location_normalized,omitempty"`
	Publish    *PublishResult    `json:"publish_result,omitempty"`
	Failure    *FailureInfo      `json:"error_info,omitempty"`
	Warnings   []string          `json:"warnings,omitempty"`

	ScrapedAt   time.Time  `json:"scraped_at"`
	EnrichedAt  *time.Time `json:"enriched_at,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// Identity derives the stable store key for a source URL. The same posting
// URL always maps to the same key, across runs and restarts.
func IdentityFor(rawURL string) string {
	u := strings.TrimSpace(rawURL)
	u = strings.TrimSuffix(u, "/")
	u = strings.ToLower(u)
	sum := sha256.Sum256([]byte(u))
	return hex.EncodeToString(sum[:8])
}

// MarkFailed records a failure and moves the record into Failed. Attempts
// accumulate while the failure stays at the same stage with the same kind;
// a failure elsewhere starts counting from one again.
func (r *JobRecord) MarkFailed(kind FailureKind, at Stage, err error, now time.Time) {
	attempts := 1
	if r.Failure != nil && r.Failure.Kind == kind && r.Failure.Stage == at {
		attempts = r.Failure.Attempts + 1
	}
	r.Failure = &FailureInfo{
		Kind:     kind,
		Stage:    at,
		Message:  err.Error(),
		Attempts: attempts,
		LastAt:   now,
	}
	r.Stage = StageFailed
}

// FailedAt returns the stage a failed record should re-enter on retry.
func (r *JobRecord) FailedAt() (Stage, bool) {
	if r.Stage != StageFailed || r.Failure == nil {
		return "", false
	}
	return r.Failure.Stage, true
}

// RetriesExhausted reports whether a failed record has used up its retry
// budget and is terminally failed.
func (r *JobRecord) RetriesExhausted(budget int) bool {
	return r.Stage == StageFailed && r.Failure != nil && r.Failure.Attempts >= budget
}

// AddWarning attaches a non-fatal note (e.g. geocoding miss) to the record.
func (r *JobRecord) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}
