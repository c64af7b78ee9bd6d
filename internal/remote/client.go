// Package remote talks to the hosted workforce backend: a Supabase-style
// REST layer keyed by each entry's locally generated ID carried as an
// external reference. Any non-success response is reported to the caller,
// which leaves the affected entry pending.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/GenAmed/pointage/internal/model"
)

const entriesPath = "/rest/v1/time_entries"

// Client is an authenticated client for the remote time-entry store.
type Client struct {
	baseURL    string
	apiKey     string
	deviceID   string
	httpClient *http.Client
}

// NewClient creates a client for the backend at baseURL. httpClient should
// come from AuthenticatedHTTPClient so requests carry a bearer token;
// deviceID is attached to every write for multi-device audit trails.
func NewClient(baseURL, apiKey, deviceID string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, apiKey: apiKey, deviceID: deviceID, httpClient: httpClient}
}

// HealthURL returns the backend's reachability probe endpoint.
func (c *Client) HealthURL() string {
	return c.baseURL + "/auth/v1/health"
}

// wireEntry is the REST representation of a TimeEntry. The local ID travels
// as external_id; the remote row key is the backend's own business.
type wireEntry struct {
	ExternalID       string             `json:"external_id"`
	UserID           string             `json:"user_id"`
	WorksiteID       string             `json:"worksite_id"`
	Date             string             `json:"date"`
	StartTime        string             `json:"start_time"`
	EndTime          *string            `json:"end_time,omitempty"`
	StartCoordinates model.Coordinates  `json:"start_coordinates"`
	EndCoordinates   *model.Coordinates `json:"end_coordinates,omitempty"`
	Breaks           []model.Break      `json:"breaks"`
	Comment          *string            `json:"comment,omitempty"`
	DeviceID         string             `json:"device_id,omitempty"`
}

func (c *Client) toWire(e model.TimeEntry) wireEntry {
	breaks := e.Breaks
	if breaks == nil {
		breaks = []model.Break{}
	}
	return wireEntry{
		ExternalID:       e.ID,
		UserID:           e.UserID,
		WorksiteID:       e.WorksiteID,
		Date:             e.Date,
		StartTime:        e.StartTime,
		EndTime:          e.EndTime,
		StartCoordinates: e.StartCoordinates,
		EndCoordinates:   e.EndCoordinates,
		Breaks:           breaks,
		Comment:          e.Comment,
		DeviceID:         c.deviceID,
	}
}

// Push writes the entry to the remote store: a create when no record with
// the entry's external reference exists yet, an update otherwise. A nil
// return means the round-trip was confirmed.
func (c *Client) Push(ctx context.Context, entry model.TimeEntry) error {
	exists, err := c.exists(ctx, entry.ID)
	if err != nil {
		return err
	}
	if exists {
		return c.update(ctx, entry)
	}
	return c.create(ctx, entry)
}

// exists checks whether the remote already holds a record for externalID.
func (c *Client) exists(ctx context.Context, externalID string) (bool, error) {
	endpoint := fmt.Sprintf("%s%s?external_id=eq.%s&select=external_id",
		c.baseURL, entriesPath, url.QueryEscape(externalID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("creating lookup request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("remote lookup failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("reading lookup response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("remote lookup returned %d: %s", resp.StatusCode, string(body))
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return false, fmt.Errorf("decoding lookup response: %w", err)
	}
	return len(rows) > 0, nil
}

func (c *Client) create(ctx context.Context, entry model.TimeEntry) error {
	payload, err := json.Marshal(c.toWire(entry))
	if err != nil {
		return fmt.Errorf("encoding entry %s: %w", entry.ID, err)
	}
	endpoint := c.baseURL + entriesPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	return c.doWrite(req, entry.ID)
}

func (c *Client) update(ctx context.Context, entry model.TimeEntry) error {
	payload, err := json.Marshal(c.toWire(entry))
	if err != nil {
		return fmt.Errorf("encoding entry %s: %w", entry.ID, err)
	}
	endpoint := fmt.Sprintf("%s%s?external_id=eq.%s",
		c.baseURL, entriesPath, url.QueryEscape(entry.ID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating update request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	return c.doWrite(req, entry.ID)
}

func (c *Client) doWrite(req *http.Request, entryID string) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("remote write of %s failed: %w", entryID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("remote write of %s returned %d: %s", entryID, resp.StatusCode, string(body))
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if c.deviceID != "" {
		req.Header.Set("X-Device-ID", c.deviceID)
	}
}
