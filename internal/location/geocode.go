package location

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/GenAmed/pointage/internal/model"
)

// Geocoder resolves coordinates to a human-readable address. Reverse
// geocoding is strictly best-effort: it runs after the entry is persisted
// and its failure never rolls anything back.
type Geocoder interface {
	Reverse(ctx context.Context, c model.Coordinates) (string, error)
}

// NominatimGeocoder talks to a Nominatim-compatible reverse endpoint.
type NominatimGeocoder struct {
	BaseURL string
	Client  *http.Client
}

// NewNominatimGeocoder creates a geocoder against baseURL
// (e.g. "https://nominatim.openstreetmap.org").
func NewNominatimGeocoder(baseURL string) *NominatimGeocoder {
	return &NominatimGeocoder{BaseURL: baseURL, Client: &http.Client{Timeout: 10 * time.Second}}
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
}

func (g *NominatimGeocoder) Reverse(ctx context.Context, c model.Coordinates) (string, error) {
	if c.Degraded() {
		return "", fmt.Errorf("refusing to geocode a degraded fix")
	}
	endpoint := fmt.Sprintf("%s/reverse?format=jsonv2&lat=%s&lon=%s",
		g.BaseURL,
		url.QueryEscape(fmt.Sprintf("%f", c.Latitude)),
		url.QueryEscape(fmt.Sprintf("%f", c.Longitude)),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("creating reverse geocode request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("reverse geocode request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reverse geocode returned %d", resp.StatusCode)
	}

	var rr reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return "", fmt.Errorf("decoding reverse geocode response: %w", err)
	}
	if rr.DisplayName == "" {
		return "", fmt.Errorf("reverse geocode returned no address")
	}
	return rr.DisplayName, nil
}
