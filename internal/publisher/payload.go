package publisher

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"

	"github.com/khalidmab/jobpress/internal/model"
)

//go:embed templates/post.html.tmpl
var postTemplateRaw string

// postTemplate renders the blog post body. Parsed once at package init.
var postTemplate = template.Must(template.New("post").Parse(postTemplateRaw))

// postData is the view passed to the post template.
type postData struct {
	Title        string
	Organization string
	Summary      string
	Description  string
	Requirements []string
	Skills       []string
	Location     string
	Salary       string
	JobType      string
	ContactNo    string
	Email        string
	SourceURL    string
}

// RenderPayload builds the publish-ready payload for a record, purely from
// already-stored fields. The record must carry structured fields.
func RenderPayload(rec model.JobRecord) (model.PostPayload, error) {
	if rec.Structured == nil {
		return model.PostPayload{}, fmt.Errorf("record %s has no structured fields", rec.Identity)
	}
	s := rec.Structured

	location := rec.Raw.Location
	if rec.Location != nil && rec.Location.CanonicalName != "" {
		location = rec.Location.CanonicalName
	}

	salary := rec.Raw.Salary
	if !s.SalaryUnknown && s.SalaryMax > 0 {
		salary = fmt.Sprintf("%s %d-%d per %s", s.SalaryCurrency, s.SalaryMin, s.SalaryMax, s.SalaryPeriod)
	}

	data := postData{
		Title:        s.Title,
		Organization: s.Organization,
		Summary:      s.Summary,
		Description:  rec.Raw.Description,
		Requirements: s.Requirements,
		Skills:       s.Skills,
		Location:     location,
		Salary:       salary,
		JobType:      s.EmploymentType,
		ContactNo:    rec.Raw.ContactNo,
		Email:        rec.Raw.Email,
		SourceURL:    rec.SourceURL,
	}

	var buf bytes.Buffer
	if err := postTemplate.Execute(&buf, data); err != nil {
		return model.PostPayload{}, fmt.Errorf("render post template: %w", err)
	}

	labels := append([]string{}, s.Categories...)
	if s.City != "" {
		labels = append(labels, s.City)
	}

	return model.PostPayload{
		Identity: rec.Identity,
		Title:    fmt.Sprintf("%s at %s", s.Title, s.Organization),
		Labels:   labels,
		HTML:     buf.String(),
	}, nil
}
