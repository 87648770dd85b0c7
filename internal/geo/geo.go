// Package geo resolves client IPs to a coarse location.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Location is the resolved geo triple. Empty fields mean unknown.
type Location struct {
	Country string
	Region  string
	City    string
}

type Resolver interface {
	Lookup(ctx context.Context, ip string) (Location, error)
}

// Noop resolves every address to an unknown location.
type Noop struct{}

func (Noop) Lookup(context.Context, string) (Location, error) {
	return Location{}, nil
}

// IPAPI queries an ip-api.com compatible JSON endpoint.
type IPAPI struct {
	endpoint string
	client   *http.Client
}

// NewIPAPI returns a client for endpoint (e.g. "http://ip-api.com/json/").
// Every lookup is bounded by timeout.
func NewIPAPI(endpoint string, timeout time.Duration) *IPAPI {
	return &IPAPI{
		endpoint: strings.TrimRight(endpoint, "/") + "/",
		client:   &http.Client{Timeout: timeout},
	}
}

type ipAPIResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	Country    string `json:"country"`
	RegionName string `json:"regionName"`
	City       string `json:"city"`
}

func (c *IPAPI) Lookup(ctx context.Context, ip string) (Location, error) {
	if ip == "" {
		return Location{}, errors.New("empty ip")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+url.PathEscape(ip), nil)
	if err != nil {
		return Location{}, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("geo lookup %s: %w", ip, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("geo lookup %s: status %d", ip, resp.StatusCode)
	}
	var body ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Location{}, fmt.Errorf("geo lookup %s: decode: %w", ip, err)
	}
	// ip-api answers 200 with status "fail" for private and reserved ranges.
	if body.Status != "" && body.Status != "success" {
		return Location{}, fmt.Errorf("geo lookup %s: %s", ip, body.Message)
	}
	return Location{Country: body.Country, Region: body.RegionName, City: body.City}, nil
}
