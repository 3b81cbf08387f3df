// Package gate decides which lifecycle stage a record may enter next.
// It is pure: no I/O, no clock, no store access.
package gate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/khalidmab/jobpress/internal/model"
)

// ErrIllegalTransition is returned for any transition request outside the
// forward path Scraped → Enriched → Validated → Published (or a retry of
// the exact stage a failed record failed at).
var ErrIllegalTransition = errors.New("illegal stage transition")

// FieldError is one field-level validation problem. Validation reports a
// list of these rather than failing on the first.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Eligible reports whether rec may enter target next. A nil return means
// the transition is allowed; otherwise the error wraps ErrIllegalTransition
// or carries the blocking field errors.
func Eligible(rec model.JobRecord, target model.Stage) error {
	if !retryOK(rec, target) && !forwardOK(rec.Stage, target) {
		return fmt.Errorf("%w: %s → %s (identity %s)", ErrIllegalTransition, rec.Stage, target, rec.Identity)
	}

	switch target {
	case model.StageScraped:
		// Only reachable as a retry of failed ingestion.
		return nil
	case model.StageEnriched:
		if strings.TrimSpace(rec.Raw.Description) == "" {
			return fmt.Errorf("%w: raw description empty (identity %s)", ErrIllegalTransition, rec.Identity)
		}
		return nil
	case model.StageValidated:
		if rec.Structured == nil {
			return fmt.Errorf("%w: no structured fields (identity %s)", ErrIllegalTransition, rec.Identity)
		}
		if errs := Check(*rec.Structured); len(errs) > 0 {
			return fmt.Errorf("structured fields invalid (identity %s): %s", rec.Identity, joinFieldErrors(errs))
		}
		return nil
	case model.StagePublished:
		if rec.Structured == nil {
			return fmt.Errorf("%w: no structured fields (identity %s)", ErrIllegalTransition, rec.Identity)
		}
		// No unresolved validation error may remain.
		if errs := Check(*rec.Structured); len(errs) > 0 {
			return fmt.Errorf("unresolved validation errors (identity %s): %s", rec.Identity, joinFieldErrors(errs))
		}
		return nil
	}

	return fmt.Errorf("%w: unknown target stage %q", ErrIllegalTransition, target)
}

// forwardOK allows exactly the next stage on the forward path.
func forwardOK(from, target model.Stage) bool {
	switch target {
	case model.StageEnriched:
		return from == model.StageScraped
	case model.StageValidated:
		return from == model.StageEnriched
	case model.StagePublished:
		return from == model.StageValidated
	}
	return false
}

// retryOK allows a failed record back into the stage whose work failed,
// never further back.
func retryOK(rec model.JobRecord, target model.Stage) bool {
	at, ok := rec.FailedAt()
	return ok && at == target
}

// Check runs field-level validation over structured fields. Required keys
// must be present; salary and dates must either carry parsed values or be
// explicitly marked unknown. Either date (posted or deadline) satisfies
// the date rule.
func Check(s model.StructuredFields) []FieldError {
	var errs []FieldError

	if strings.TrimSpace(s.Title) == "" {
		errs = append(errs, FieldError{Field: "title", Reason: "required"})
	}
	if strings.TrimSpace(s.Organization) == "" {
		errs = append(errs, FieldError{Field: "organization", Reason: "required"})
	}

	if !s.SalaryUnknown {
		if s.SalaryMin <= 0 && s.SalaryMax <= 0 {
			errs = append(errs, FieldError{Field: "salary", Reason: "no parsed value and not marked unknown"})
		} else if s.SalaryMax > 0 && s.SalaryMin > s.SalaryMax {
			errs = append(errs, FieldError{Field: "salary", Reason: "min exceeds max"})
		}
	}

	if !s.DatesUnknown && strings.TrimSpace(s.PostedDate) == "" && strings.TrimSpace(s.Deadline) == "" {
		errs = append(errs, FieldError{Field: "dates", Reason: "no parsed value and not marked unknown"})
	}

	return errs
}

func joinFieldErrors(errs []FieldError) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}
