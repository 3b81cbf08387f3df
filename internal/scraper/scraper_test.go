package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/khalidmab/jobpress/internal/config"
	"github.com/khalidmab/jobpress/internal/model"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func testConfig(baseURL string) config.ScraperConfig {
	return config.ScraperConfig{
		BaseURL:       baseURL,
		MaxPages:      5,
		UserAgent:     "jobpress-test/1.0",
		RatePerSecond: 1000, // tests should not sleep
		Selectors: config.SelectorConfig{
			Pages:       "div.pages",
			URLs:        "h2.job-title a",
			Description: "div.job-description",
			Details:     "ul.job-details",
		},
	}
}

func listingPage(links ...string) string {
	page := `<html><body><div class="pages">Page 1 of 2</div>`
	for _, link := range links {
		page += fmt.Sprintf(`<h2 class="job-title"><a href="%s">job</a></h2>`, link)
	}
	return page + `</body></html>`
}

const detailPage = `<html><body>
<div class="job-description">Deliver parcels across Dubai. Valid UAE license required.</div>
<ul class="job-details">
  <li><span>Job Location:</span> Dubai</li>
  <li><span>Salary:</span> AED 3000-4000</li>
  <li><span>Experience:</span> 2 years</li>
  <li><span>Job Type:</span> Full Time</li>
  <li><span>Industry:</span> Logistics</li>
  <li><span>Contact No:</span> 050-1234567</li>
  <li><span>Email:</span> <a href="mailto:hr@alnoor.example">hr [at] alnoor</a></li>
  <li><span>Listed:</span> August 1, 2026</li>
  <li><span>Expires:</span> September 1, 2026</li>
</ul>
</body></html>`

func TestCandidateURLsWalksPagination(t *testing.T) {
	var mux http.ServeMux
	srv := httptest.NewServer(&mux)
	defer srv.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, listingPage(srv.URL+"/jobs/driver/", srv.URL+"/jobs/nurse/"))
	})
	mux.HandleFunc("/page/2/", func(w http.ResponseWriter, r *http.Request) {
		// One new URL, one repeated from page 1.
		io.WriteString(w, listingPage(srv.URL+"/jobs/cook/", srv.URL+"/jobs/driver/"))
	})

	s := New(testConfig(srv.URL+"/"), srv.Client(), testLogger)
	urls, err := s.CandidateURLs(context.Background())
	if err != nil {
		t.Fatalf("CandidateURLs: %v", err)
	}

	if len(urls) != 3 {
		t.Fatalf("urls = %v, want 3 deduplicated entries", urls)
	}
	// Sorted, so the result is deterministic across runs.
	for i := 1; i < len(urls); i++ {
		if urls[i-1] >= urls[i] {
			t.Errorf("urls not sorted: %v", urls)
		}
	}
}

func TestCandidateURLsCapsPages(t *testing.T) {
	var pagesFetched int
	var mux http.ServeMux
	srv := httptest.NewServer(&mux)
	defer srv.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body><div class="pages">Page 1 of 99</div></body></html>`)
	})
	mux.HandleFunc("/page/", func(w http.ResponseWriter, r *http.Request) {
		pagesFetched++
		io.WriteString(w, listingPage())
	})

	cfg := testConfig(srv.URL + "/")
	cfg.MaxPages = 3
	s := New(cfg, srv.Client(), testLogger)
	if _, err := s.CandidateURLs(context.Background()); err != nil {
		t.Fatalf("CandidateURLs: %v", err)
	}
	if pagesFetched != 2 { // pages 2 and 3
		t.Errorf("fetched %d extra pages, want 2", pagesFetched)
	}
}

func TestCandidateURLsSkipsFailedPages(t *testing.T) {
	var mux http.ServeMux
	srv := httptest.NewServer(&mux)
	defer srv.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, listingPage(srv.URL+"/jobs/driver/"))
	})
	mux.HandleFunc("/page/2/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	s := New(testConfig(srv.URL+"/"), srv.Client(), testLogger)
	urls, err := s.CandidateURLs(context.Background())
	if err != nil {
		t.Fatalf("a failed later page should not be fatal: %v", err)
	}
	if len(urls) != 1 {
		t.Errorf("urls = %v, want the page-1 result", urls)
	}
}

func TestCandidateURLsFirstPageFailureIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := New(testConfig(srv.URL+"/"), srv.Client(), testLogger)
	_, err := s.CandidateURLs(context.Background())
	if err == nil {
		t.Fatal("expected error when the index page fails")
	}

	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("err = %v, want HTTPError 503", err)
	}
}

func TestJobDetailsParsesLabeledFields(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		io.WriteString(w, detailPage)
	}))
	defer srv.Close()

	s := New(testConfig(srv.URL+"/"), srv.Client(), testLogger)
	raw, err := s.JobDetails(context.Background(), srv.URL+"/jobs/driver/")
	if err != nil {
		t.Fatalf("JobDetails: %v", err)
	}

	if raw.Description == "" {
		t.Fatal("description empty")
	}
	if raw.Location != "Dubai" {
		t.Errorf("location = %q", raw.Location)
	}
	if raw.Salary != "AED 3000-4000" {
		t.Errorf("salary = %q", raw.Salary)
	}
	if raw.Experience != "2 years" {
		t.Errorf("experience = %q", raw.Experience)
	}
	if raw.JobType != "Full Time" {
		t.Errorf("job type = %q", raw.JobType)
	}
	if raw.Industry != "Logistics" {
		t.Errorf("industry = %q", raw.Industry)
	}
	if raw.ContactNo != "050-1234567" {
		t.Errorf("contact = %q", raw.ContactNo)
	}
	// The mailto href wins over the obfuscated link text.
	if raw.Email != "hr@alnoor.example" {
		t.Errorf("email = %q", raw.Email)
	}
	if raw.Listed != "August 1, 2026" || raw.Expires != "September 1, 2026" {
		t.Errorf("listed/expires = %q / %q", raw.Listed, raw.Expires)
	}
	if gotUA != "jobpress-test/1.0" {
		t.Errorf("user agent = %q", gotUA)
	}
}

func TestJobDetailsRequiresDescription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body><p>nothing here</p></body></html>`)
	}))
	defer srv.Close()

	s := New(testConfig(srv.URL+"/"), srv.Client(), testLogger)
	if _, err := s.JobDetails(context.Background(), srv.URL+"/jobs/gone/"); err == nil {
		t.Fatal("expected error for a page without a description")
	}
}

func TestTotalPagesDefaultsToOne(t *testing.T) {
	var mux http.ServeMux
	srv := httptest.NewServer(&mux)
	defer srv.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, listingPage(srv.URL+"/jobs/only/"))
	})

	cfg := testConfig(srv.URL + "/")
	cfg.Selectors.Pages = "div.missing"
	s := New(cfg, srv.Client(), testLogger)

	urls, err := s.CandidateURLs(context.Background())
	if err != nil {
		t.Fatalf("CandidateURLs: %v", err)
	}
	if len(urls) != 1 {
		t.Errorf("urls = %v", urls)
	}
}
