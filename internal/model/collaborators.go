package model

import (
	"context"
	"time"
)

// Scraper discovers candidate posting URLs and fetches raw fields for one
// posting. Both calls may fail per-URL; callers log and move on.
type Scraper interface {
	CandidateURLs(ctx context.Context) ([]string, error)
	JobDetails(ctx context.Context, url string) (RawFields, error)
}

// Extractor turns raw scraped text into structured fields.
type Extractor interface {
	Extract(ctx context.Context, rec JobRecord) (*StructuredFields, error)
}

// Geocoder resolves a free-form location string to coordinates and a
// canonical place name. Failure is always non-fatal to the caller.
type Geocoder interface {
	Normalize(ctx context.Context, location string) (*GeoLocation, error)
}

// PostPayload is the publish-ready form of a record, built purely from
// already-stored fields.
type PostPayload struct {
	Identity string
	Title    string
	Labels   []string
	HTML     string
}

// Publisher pushes a finished payload to the target platform.
type Publisher interface {
	Publish(ctx context.Context, payload PostPayload) (*PublishResult, error)
}

// Transition is one stage change (or failure) of one record, as kept in
// the history log.
type Transition struct {
	Identity string
	From     Stage
	To       Stage
	Kind     FailureKind // empty unless To is Failed
	Message  string
	At       time.Time
}

// TransitionLog records stage transitions for audit. Append is called from
// fan-out goroutines, so implementations must be safe for concurrent use.
type TransitionLog interface {
	Append(t Transition) error
}
