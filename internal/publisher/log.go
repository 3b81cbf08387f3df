package publisher

import (
	"context"
	"log/slog"

	"github.com/khalidmab/jobpress/internal/model"
)

// LogPublisher writes payloads to the log instead of a real platform.
// Used as the default backend and in diagnostics, so a full cycle can run
// without blog credentials.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher returns a LogPublisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the payload and reports success with a synthetic post id.
func (p *LogPublisher) Publish(_ context.Context, payload model.PostPayload) (*model.PublishResult, error) {
	p.logger.Info("publish (log backend)",
		"identity", payload.Identity,
		"title", payload.Title,
		"labels", payload.Labels,
		"content_bytes", len(payload.HTML),
	)
	return &model.PublishResult{
		PostID: "log-" + payload.Identity,
		Via:    "log",
	}, nil
}
