package geo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/khalidmab/jobpress/internal/model"
)

func TestNormalize(t *testing.T) {
	var gotQuery, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(`[{"lat": "25.2048", "lon": "55.2708", "display_name": "Dubai, United Arab Emirates"}]`))
	}))
	defer srv.Close()

	g := NewNominatimGeocoder(srv.URL, "jobpress-test/1.0", srv.Client())
	loc, err := g.Normalize(context.Background(), "Dubai")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if loc.Lat != 25.2048 || loc.Lon != 55.2708 {
		t.Errorf("coords = %v, %v", loc.Lat, loc.Lon)
	}
	if loc.CanonicalName != "Dubai, United Arab Emirates" {
		t.Errorf("canonical name = %q", loc.CanonicalName)
	}
	if gotQuery != "Dubai" {
		t.Errorf("query = %q", gotQuery)
	}
	if gotUA != "jobpress-test/1.0" {
		t.Errorf("user agent = %q", gotUA)
	}
}

func TestNormalizeNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	g := NewNominatimGeocoder(srv.URL, "ua", srv.Client())
	if _, err := g.Normalize(context.Background(), "Nowhereistan"); err == nil {
		t.Fatal("expected error for no match")
	}
}

func TestNormalizeEmptyLocation(t *testing.T) {
	g := NewNominatimGeocoder("http://unused", "ua", http.DefaultClient)
	if _, err := g.Normalize(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty location")
	}
}

func TestNormalizeSurfacesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g := NewNominatimGeocoder(srv.URL, "ua", srv.Client())
	_, err := g.Normalize(context.Background(), "Dubai")

	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("err = %v, want HTTPError", err)
	}
	if httpErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d", httpErr.StatusCode)
	}
}

func TestNormalizeBadCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"lat": "north", "lon": "55.1", "display_name": "X"}]`))
	}))
	defer srv.Close()

	g := NewNominatimGeocoder(srv.URL, "ua", srv.Client())
	if _, err := g.Normalize(context.Background(), "Dubai"); err == nil {
		t.Fatal("expected error for unparseable latitude")
	}
}
