package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/khalidmab/jobpress/internal/model"
)

func TestBloggerPublish(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody postRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":  "post-42",
			"url": "https://blog.example.com/2026/08/driver.html",
		})
	}))
	defer srv.Close()

	p := NewBloggerPublisher(srv.URL, "blog-1", "secret", srv.Client())
	result, err := p.Publish(context.Background(), model.PostPayload{
		Identity: "abc123",
		Title:    "Delivery Driver at Al Noor Logistics",
		Labels:   []string{"Logistics"},
		HTML:     "<p>body</p>",
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if result.PostID != "post-42" {
		t.Errorf("post id = %q", result.PostID)
	}
	if result.Permalink != "https://blog.example.com/2026/08/driver.html" {
		t.Errorf("permalink = %q", result.Permalink)
	}
	if result.Via != "blogger" {
		t.Errorf("via = %q", result.Via)
	}

	if gotPath != "/blogs/blog-1/posts" {
		t.Errorf("path = %s", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotBody.Title == "" || gotBody.Content == "" {
		t.Error("post body not carried in request")
	}
}

func TestBloggerPublishSurfacesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewBloggerPublisher(srv.URL, "blog-1", "secret", srv.Client())
	_, err := p.Publish(context.Background(), model.PostPayload{Title: "t", HTML: "b"})

	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("err = %v, want HTTPError 502", err)
	}
}

func TestBloggerPublishRejectsMissingPostID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "x"})
	}))
	defer srv.Close()

	p := NewBloggerPublisher(srv.URL, "blog-1", "secret", srv.Client())
	if _, err := p.Publish(context.Background(), model.PostPayload{Title: "t", HTML: "b"}); err == nil {
		t.Fatal("expected error for response without post id")
	}
}
