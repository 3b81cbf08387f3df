package publisher

import (
	"strings"
	"testing"

	"github.com/khalidmab/jobpress/internal/model"
)

func enrichedRecord() model.JobRecord {
	return model.JobRecord{
		Identity:  "abc123",
		SourceURL: "https://example.com/jobs/driver/",
		Stage:     model.StageValidated,
		Raw: model.RawFields{
			Description: "Deliver parcels across Dubai.",
			Location:    "dubai",
			Salary:      "AED 3000-4000",
			ContactNo:   "050-1234567",
			Email:       "hr@alnoor.example",
		},
		Structured: &model.StructuredFields{
			Title:          "Delivery Driver",
			Organization:   "Al Noor Logistics",
			Summary:        "Parcel delivery role.",
			Categories:     []string{"Logistics", "Driving"},
			Requirements:   []string{"Valid UAE license"},
			Skills:         []string{"driving"},
			EmploymentType: "Full Time",
			City:           "Dubai",
			SalaryMin:      3000,
			SalaryMax:      4000,
			SalaryCurrency: "AED",
			SalaryPeriod:   "month",
			PostedDate:     "2026-08-01",
		},
	}
}

func TestRenderPayload(t *testing.T) {
	rec := enrichedRecord()
	payload, err := RenderPayload(rec)
	if err != nil {
		t.Fatalf("RenderPayload: %v", err)
	}

	if payload.Identity != "abc123" {
		t.Errorf("identity = %q", payload.Identity)
	}
	if payload.Title != "Delivery Driver at Al Noor Logistics" {
		t.Errorf("title = %q", payload.Title)
	}
	wantLabels := []string{"Logistics", "Driving", "Dubai"}
	if len(payload.Labels) != len(wantLabels) {
		t.Fatalf("labels = %v, want %v", payload.Labels, wantLabels)
	}
	for i, l := range wantLabels {
		if payload.Labels[i] != l {
			t.Errorf("labels[%d] = %q, want %q", i, payload.Labels[i], l)
		}
	}

	for _, want := range []string{
		"Deliver parcels across Dubai.",
		"Valid UAE license",
		"AED 3000-4000 per month",
		"hr@alnoor.example",
		rec.SourceURL,
	} {
		if !strings.Contains(payload.HTML, want) {
			t.Errorf("rendered HTML missing %q", want)
		}
	}
}

func TestRenderPayloadPrefersCanonicalLocation(t *testing.T) {
	rec := enrichedRecord()
	rec.Location = &model.GeoLocation{Lat: 25.2, Lon: 55.27, CanonicalName: "Dubai, United Arab Emirates"}

	payload, err := RenderPayload(rec)
	if err != nil {
		t.Fatalf("RenderPayload: %v", err)
	}
	if !strings.Contains(payload.HTML, "Dubai, United Arab Emirates") {
		t.Error("canonical location not used")
	}
}

func TestRenderPayloadFallsBackToRawSalary(t *testing.T) {
	rec := enrichedRecord()
	rec.Structured.SalaryUnknown = true
	rec.Structured.SalaryMin = 0
	rec.Structured.SalaryMax = 0

	payload, err := RenderPayload(rec)
	if err != nil {
		t.Fatalf("RenderPayload: %v", err)
	}
	if !strings.Contains(payload.HTML, "AED 3000-4000") {
		t.Error("raw salary not used when structured salary is unknown")
	}
}

func TestRenderPayloadRequiresStructured(t *testing.T) {
	rec := enrichedRecord()
	rec.Structured = nil
	if _, err := RenderPayload(rec); err == nil {
		t.Fatal("expected error for record without structured fields")
	}
}

func TestRenderPayloadEscapesHTML(t *testing.T) {
	rec := enrichedRecord()
	rec.Raw.Description = `<script>alert("x")</script> legit text`

	payload, err := RenderPayload(rec)
	if err != nil {
		t.Fatalf("RenderPayload: %v", err)
	}
	if strings.Contains(payload.HTML, "<script>") {
		t.Error("scraped HTML not escaped in post body")
	}
}
