package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/astghikaramyan/resource-service/internal/breaker"
	"github.com/astghikaramyan/resource-service/internal/retry"
	"github.com/astghikaramyan/resource-service/internal/traceid"
)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client resolves storage locations through the remote directory service.
// The outbound call is guarded by a shared circuit breaker and a retry
// policy; every failure path degrades to the static fallback pair, since
// directory unavailability must never block uploads or downloads.
type Client struct {
	httpClient  httpDoer
	baseUrl     string
	circuit     *breaker.Breaker
	retryPolicy retry.Policy
	fallback    []StorageLocation
}

func NewClient(httpClient httpDoer, baseUrl string, circuit *breaker.Breaker, fallback []StorageLocation) *Client {
	return &Client{
		httpClient: httpClient,
		baseUrl:    baseUrl,
		circuit:    circuit,
		retryPolicy: retry.Policy{
			MaxAttempts: 2,
			Delay:       2 * time.Second,
			RetryableIf: func(err error) bool {
				return !errors.Is(err, breaker.ErrCallNotPermitted)
			},
		},
		fallback: fallback,
	}
}

func (c *Client) ResolveLocations(ctx context.Context) []StorageLocation {
	if c.baseUrl == "" {
		slog.Error("Storage directory service URL is not configured")
		return c.fallback
	}
	var locations []StorageLocation
	err := c.retryPolicy.Do(ctx, func() error {
		return c.circuit.Do(func() error {
			fetched, err := c.fetchLocations(ctx)
			if err != nil {
				return err
			}
			locations = fetched
			return nil
		})
	})
	if errors.Is(err, breaker.ErrCallNotPermitted) {
		slog.Warn("Circuit breaker is open, returning fallback storage locations")
		return c.fallback
	}
	if err != nil {
		slog.Error(fmt.Sprint("Error while calling storage directory service, returning fallback: ", err))
		return c.fallback
	}
	if len(locations) == 0 {
		slog.Warn("Storage directory service returned no locations, returning fallback")
		return c.fallback
	}
	return locations
}

func (c *Client) fetchLocations(ctx context.Context) ([]StorageLocation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseUrl+"/storages", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if traceId := traceid.FromContext(ctx); traceId != "" {
		req.Header.Set(traceid.Header, traceId)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("storage directory service responded with status %d", resp.StatusCode)
	}
	var locations []StorageLocation
	err = json.NewDecoder(resp.Body).Decode(&locations)
	if err != nil {
		return nil, err
	}
	return locations, nil
}
