// Package location wraps the positioning capability available to the
// device. A fix is always best-effort: callers substitute a degraded zero
// fix when offline and abort the punch when online but fixless.
package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/GenAmed/pointage/internal/model"
)

// Reason classifies why a fix could not be produced.
type Reason string

const (
	PermissionDenied    Reason = "permission_denied"
	PositionUnavailable Reason = "position_unavailable"
	Timeout             Reason = "timeout"
)

// Error is a typed positioning failure.
type Error struct {
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("location %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("location %s", e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// ReasonOf extracts the failure reason from err, or PositionUnavailable if
// err is not a location Error.
func ReasonOf(err error) Reason {
	var le *Error
	if errors.As(err, &le) {
		return le.Reason
	}
	return PositionUnavailable
}

// Provider produces a coordinate fix or fails with a typed reason.
type Provider interface {
	Fix(ctx context.Context) (model.Coordinates, error)
}

// Degraded returns the zero fix recorded when geolocation is unavailable
// offline.
func Degraded() model.Coordinates {
	return model.Coordinates{}
}

// DefaultTimeout bounds the wait for a fix.
const DefaultTimeout = 10 * time.Second

// HTTPProvider asks a positioning endpoint (a GPS bridge or the site's
// device agent) for the current fix.
type HTTPProvider struct {
	Endpoint string
	Client   *http.Client
	Timeout  time.Duration
}

// NewHTTPProvider creates a provider for the given endpoint URL.
func NewHTTPProvider(endpoint string) *HTTPProvider {
	return &HTTPProvider{
		Endpoint: endpoint,
		Client:   http.DefaultClient,
		Timeout:  DefaultTimeout,
	}
}

type fixResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

func (p *HTTPProvider) Fix(ctx context.Context) (model.Coordinates, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.Endpoint, nil)
	if err != nil {
		return model.Coordinates{}, &Error{Reason: PositionUnavailable, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return model.Coordinates{}, &Error{Reason: Timeout, Err: err}
		}
		return model.Coordinates{}, &Error{Reason: PositionUnavailable, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return model.Coordinates{}, &Error{Reason: PermissionDenied,
			Err: fmt.Errorf("positioning endpoint returned %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return model.Coordinates{}, &Error{Reason: PositionUnavailable,
			Err: fmt.Errorf("positioning endpoint returned %d: %s", resp.StatusCode, string(body))}
	}

	var fr fixResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return model.Coordinates{}, &Error{Reason: PositionUnavailable,
			Err: fmt.Errorf("decoding fix: %w", err)}
	}
	return model.Coordinates{Latitude: fr.Latitude, Longitude: fr.Longitude, Accuracy: fr.Accuracy}, nil
}

// StaticProvider always returns the same coordinates. Fixed terminals at a
// worksite entrance are configured with the site's position.
type StaticProvider struct {
	Coordinates model.Coordinates
}

func (p *StaticProvider) Fix(ctx context.Context) (model.Coordinates, error) {
	return p.Coordinates, nil
}
