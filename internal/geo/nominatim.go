// Package geo implements the geocoding collaborator against a
// Nominatim-compatible search endpoint.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/khalidmab/jobpress/internal/model"
)

// NominatimGeocoder resolves free-form location strings via the search API.
type NominatimGeocoder struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewNominatimGeocoder creates a geocoder targeting baseURL. The user agent
// is required by the public Nominatim usage policy.
func NewNominatimGeocoder(baseURL, userAgent string, httpClient *http.Client) *NominatimGeocoder {
	return &NominatimGeocoder{
		baseURL:    baseURL,
		userAgent:  userAgent,
		httpClient: httpClient,
	}
}

// searchResult mirrors the fields of a Nominatim search hit we consume.
type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Normalize looks up location and returns coordinates plus the canonical
// place name of the best match. No match is an error; callers treat any
// geocoding error as non-fatal.
func (g *NominatimGeocoder) Normalize(ctx context.Context, location string) (*model.GeoLocation, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("empty location")
	}

	q := url.Values{}
	q.Set("q", location)
	q.Set("format", "json")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create geocode request: %w", err)
	}
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read geocode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &model.HTTPError{StatusCode: resp.StatusCode, Err: fmt.Errorf("geocoder returned %s", string(body))}
	}

	var results []searchResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("parse geocode response: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no geocoding match for %q", location)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("parse lat %q: %w", results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("parse lon %q: %w", results[0].Lon, err)
	}

	return &model.GeoLocation{
		Lat:           lat,
		Lon:           lon,
		CanonicalName: results[0].DisplayName,
	}, nil
}
