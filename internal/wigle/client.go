// Package wigle queries the WiGLE network search API for the approximate
// location of an SSID.
package wigle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/yourorg/ssidmap/pkg/types"
)

const DefaultBaseURL = "https://api.wigle.net/api/v2/network/search"

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// Result is a usable lookup answer.
type Result struct {
	Lat     float64
	Lon     float64
	Address string
}

// LookupError is a classified lookup failure.
type LookupError struct {
	Kind       types.FailureKind
	StatusCode int
	Err        error
}

func (e *LookupError) Error() string {
	reason := types.FailureReason{Kind: e.Kind, StatusCode: e.StatusCode}.String()
	if e.Err != nil {
		return "wigle: " + reason + ": " + e.Err.Error()
	}
	return "wigle: " + reason
}

func (e *LookupError) Unwrap() error { return e.Err }

// Reason returns the cacheable failure reason.
func (e *LookupError) Reason() types.FailureReason {
	return types.FailureReason{Kind: e.Kind, StatusCode: e.StatusCode}
}

// Client is a WiGLE API client authenticated with an API name and token.
type Client struct {
	BaseURL        string
	APIName        string
	APIToken       string
	ResultsPerPage int
	HTTPClient     *http.Client
	Logger         *slog.Logger
}

type searchResponse struct {
	Success     bool   `json:"success"`
	ResultCount int    `json:"resultCount"`
	Message     string `json:"message"`
	Results     []struct {
		Trilat  *float64 `json:"trilat"`
		Trilong *float64 `json:"trilong"`
		Road    string   `json:"road"`
	} `json:"results"`
}

// Lookup issues one search for ssid. Every failure is returned as a
// *LookupError; a timeout or transport error is FailureNetwork.
func (c *Client) Lookup(ctx context.Context, ssid string) (Result, error) {
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	perPage := c.ResultsPerPage
	if perPage <= 0 {
		perPage = 1
	}
	u, err := url.Parse(base)
	if err != nil {
		return Result{}, &LookupError{Kind: types.FailureNetwork, Err: err}
	}
	q := u.Query()
	q.Set("ssid", ssid)
	q.Set("resultsPerPage", strconv.Itoa(perPage))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Result{}, &LookupError{Kind: types.FailureNetwork, Err: err}
	}
	req.SetBasicAuth(c.APIName, c.APIToken)
	req.Header.Set("Accept", "application/json")
	if c.Logger != nil {
		c.Logger.Debug("wigle request", "ssid", ssid, "url", base)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{}, &LookupError{Kind: types.FailureNetwork, Err: err}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	_ = resp.Body.Close()
	if err != nil {
		return Result{}, &LookupError{Kind: types.FailureNetwork, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, &LookupError{Kind: types.FailureHTTP, StatusCode: resp.StatusCode}
	}

	var out searchResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return Result{}, &LookupError{Kind: types.FailureMalformed, Err: err}
	}
	if !out.Success || out.ResultCount == 0 || len(out.Results) == 0 {
		var cause error
		if out.Message != "" {
			cause = errors.New(out.Message)
		}
		return Result{}, &LookupError{Kind: types.FailureNoResult, Err: cause}
	}
	first := out.Results[0]
	if first.Trilat == nil || first.Trilong == nil {
		return Result{}, &LookupError{Kind: types.FailureNoResult, Err: errors.New("result has no coordinates")}
	}
	address := first.Road
	if address == "" {
		address = "Unknown"
	}
	if c.Logger != nil {
		c.Logger.Debug("wigle response", "ssid", ssid, "lat", *first.Trilat, "lon", *first.Trilong)
	}
	return Result{Lat: *first.Trilat, Lon: *first.Trilong, Address: address}, nil
}

// AsLookupError classifies err, treating anything unrecognised as a
// network error.
func AsLookupError(err error) *LookupError {
	var le *LookupError
	if errors.As(err, &le) {
		return le
	}
	return &LookupError{Kind: types.FailureNetwork, Err: fmt.Errorf("lookup: %w", err)}
}
