package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/khalidmab/jobpress/internal/model"
)

func TestGeminiProviderComplete(t *testing.T) {
	var gotPath, gotKey string
	var gotReq generateRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]string{{"text": `{"jobTitle":"X"}`}}}},
			},
		})
	}))
	defer srv.Close()

	p := NewGeminiProvider(srv.URL, "test-key", "gemini-test", srv.Client())
	got, err := p.Complete(context.Background(), "extract this")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != `{"jobTitle":"X"}` {
		t.Errorf("text = %q", got)
	}

	if gotPath != "/models/gemini-test:generateContent" {
		t.Errorf("path = %s", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("api key header = %q", gotKey)
	}
	if gotReq.GenerationConfig.ResponseMIMEType != "application/json" {
		t.Errorf("responseMimeType = %q", gotReq.GenerationConfig.ResponseMIMEType)
	}
	if len(gotReq.Contents) != 1 || gotReq.Contents[0].Parts[0].Text != "extract this" {
		t.Error("prompt not carried in request body")
	}
}

func TestGeminiProviderSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewGeminiProvider(srv.URL, "k", "m", srv.Client())
	_, err := p.Complete(context.Background(), "prompt")

	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("err = %v, want HTTPError", err)
	}
	if httpErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d", httpErr.StatusCode)
	}
	if httpErr.RetryAfter != 7*time.Second {
		t.Errorf("retry after = %v, want 7s", httpErr.RetryAfter)
	}
}

func TestGeminiProviderNoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	}))
	defer srv.Close()

	p := NewGeminiProvider(srv.URL, "k", "m", srv.Client())
	if _, err := p.Complete(context.Background(), "prompt"); err == nil {
		t.Fatal("expected error for empty candidates")
	}
}

func TestGeminiProviderAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 400, "message": "bad model", "status": "INVALID_ARGUMENT"},
		})
	}))
	defer srv.Close()

	p := NewGeminiProvider(srv.URL, "k", "m", srv.Client())
	if _, err := p.Complete(context.Background(), "prompt"); err == nil {
		t.Fatal("expected error for in-body API error")
	}
}
