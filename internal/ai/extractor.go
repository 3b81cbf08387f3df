package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/khalidmab/jobpress/internal/model"
)

// LLMExtractor implements model.Extractor using an LLM provider.
type LLMExtractor struct {
	provider LLMProvider
	logger   *slog.Logger
}

// NewLLMExtractor creates an extractor that turns raw posting text into
// structured fields.
func NewLLMExtractor(provider LLMProvider, logger *slog.Logger) *LLMExtractor {
	return &LLMExtractor{
		provider: provider,
		logger:   logger,
	}
}

// Extract renders the extraction prompt for rec, sends it to the provider,
// and parses the structured result. It never mutates rec.
func (e *LLMExtractor) Extract(ctx context.Context, rec model.JobRecord) (*model.StructuredFields, error) {
	var promptBuf bytes.Buffer
	if err := extractionTemplate.Execute(&promptBuf, struct {
		URL string
		Raw model.RawFields
	}{URL: rec.SourceURL, Raw: rec.Raw}); err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	raw, err := e.provider.Complete(ctx, promptBuf.String())
	if err != nil {
		return nil, fmt.Errorf("llm complete: %w", err)
	}

	structured, err := parseExtraction(raw)
	if err != nil {
		return nil, fmt.Errorf("parse extraction: %w", err)
	}
	return structured, nil
}

// rawExtraction is the JSON shape the prompt asks the model for. Pointers
// distinguish "absent" from zero so unknowns can be flagged explicitly.
type rawExtraction struct {
	Title          string   `json:"jobTitle"`
	Organization   string   `json:"orgName"`
	OrgShortName   string   `json:"shortName"`
	Summary        string   `json:"jobSummary"`
	Categories     []string `json:"categories"`
	Requirements   []string `json:"requirements"`
	Skills         []string `json:"skills"`
	EmploymentType string   `json:"employmentType"`
	City           string   `json:"jobCity"`
	Country        string   `json:"jobCountry"`
	MinSalary      *int     `json:"minSalary"`
	MaxSalary      *int     `json:"maxSalary"`
	Currency       string   `json:"currency"`
	SalaryPeriod   string   `json:"salaryPeriod"`
	PostedDate     string   `json:"postedDate"`
	Deadline       string   `json:"deadline"`
}

// parseExtraction deserializes the LLM response. Providers that honor the
// JSON mime type return bare JSON, but some proxies still wrap it in a
// markdown fence, so strip one if present before parsing.
func parseExtraction(raw string) (*model.StructuredFields, error) {
	cleaned := stripFence(raw)

	var re rawExtraction
	if err := json.Unmarshal([]byte(cleaned), &re); err != nil {
		return nil, fmt.Errorf("unmarshal extraction JSON: %w", err)
	}

	s := &model.StructuredFields{
		Title:          strings.TrimSpace(re.Title),
		Organization:   strings.TrimSpace(re.Organization),
		OrgShortName:   strings.TrimSpace(re.OrgShortName),
		Summary:        re.Summary,
		Categories:     re.Categories,
		Requirements:   re.Requirements,
		Skills:         re.Skills,
		EmploymentType: re.EmploymentType,
		City:           re.City,
		Country:        re.Country,
		SalaryCurrency: re.Currency,
		SalaryPeriod:   re.SalaryPeriod,
		PostedDate:     strings.TrimSpace(re.PostedDate),
		Deadline:       strings.TrimSpace(re.Deadline),
	}

	// Two categories at most; the prompt asks but models drift.
	if len(s.Categories) > 2 {
		s.Categories = s.Categories[:2]
	}

	if re.MinSalary != nil {
		s.SalaryMin = *re.MinSalary
	}
	if re.MaxSalary != nil {
		s.SalaryMax = *re.MaxSalary
	}
	if re.MinSalary == nil && re.MaxSalary == nil {
		s.SalaryUnknown = true
	}
	if s.PostedDate == "" && s.Deadline == "" {
		s.DatesUnknown = true
	}

	return s, nil
}

// stripFence removes a surrounding ```json ... ``` fence if present.
func stripFence(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	}
	return strings.TrimSpace(cleaned)
}
