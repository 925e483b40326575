package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FailureKind classifies a lookup that did not yield usable coordinates.
type FailureKind string

const (
	FailureNetwork   FailureKind = "network_error"
	FailureHTTP      FailureKind = "http_error"
	FailureMalformed FailureKind = "malformed_response"
	FailureNoResult  FailureKind = "no_result"
)

// FailureReason is a failure kind plus the HTTP status for http_error.
type FailureReason struct {
	Kind       FailureKind
	StatusCode int
}

func (r FailureReason) String() string {
	if r.Kind == FailureHTTP && r.StatusCode != 0 {
		return fmt.Sprintf("%s(%d)", r.Kind, r.StatusCode)
	}
	return string(r.Kind)
}

// ParseFailureReason parses the textual form written by String.
func ParseFailureReason(s string) (FailureReason, error) {
	s = strings.TrimSpace(s)
	switch FailureKind(s) {
	case FailureNetwork, FailureMalformed, FailureNoResult, FailureHTTP:
		return FailureReason{Kind: FailureKind(s)}, nil
	}
	if rest, ok := strings.CutPrefix(s, string(FailureHTTP)+"("); ok {
		code, err := strconv.Atoi(strings.TrimSuffix(rest, ")"))
		if err != nil || !strings.HasSuffix(rest, ")") {
			return FailureReason{}, fmt.Errorf("invalid failure reason %q", s)
		}
		return FailureReason{Kind: FailureHTTP, StatusCode: code}, nil
	}
	return FailureReason{}, fmt.Errorf("unknown failure reason %q", s)
}

// Location is one resolved network.
type Location struct {
	SSID    string  `json:"ssid"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Address string  `json:"address,omitempty"`
}

// Record is the cached outcome for one SSID: either a resolved location or a
// memoized failure. Build it with Resolved or Failed.
type Record struct {
	failed   bool
	location Location
	reason   FailureReason
}

// Resolved builds a success record.
func Resolved(loc Location) Record {
	return Record{location: loc}
}

// Failed builds a negative record.
func Failed(ssid string, reason FailureReason) Record {
	return Record{failed: true, location: Location{SSID: ssid}, reason: reason}
}

func (r Record) IsFailed() bool        { return r.failed }
func (r Record) Location() Location    { return r.location }
func (r Record) Reason() FailureReason { return r.reason }
func (r Record) SSID() string          { return r.location.SSID }

// WithSSID returns a copy keyed to ssid. Failure records are persisted
// without a name, so stores call this with the map key after decoding.
func (r Record) WithSSID(ssid string) Record {
	r.location.SSID = ssid
	return r
}

type wireRecord struct {
	Failed  bool     `json:"failed,omitempty"`
	Reason  string   `json:"reason,omitempty"`
	SSID    string   `json:"ssid,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
	Address string   `json:"address,omitempty"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	if r.failed {
		return json.Marshal(wireRecord{Failed: true, Reason: r.reason.String()})
	}
	lat, lon := r.location.Lat, r.location.Lon
	return json.Marshal(wireRecord{SSID: r.location.SSID, Lat: &lat, Lon: &lon, Address: r.location.Address})
}

// ErrInvalidRecord is returned when a persisted record has neither shape.
var ErrInvalidRecord = errors.New("record is neither resolved nor failed")

func (r *Record) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Failed {
		reason, err := ParseFailureReason(w.Reason)
		if err != nil {
			return err
		}
		*r = Failed(w.SSID, reason)
		return nil
	}
	if w.Lat == nil || w.Lon == nil {
		return ErrInvalidRecord
	}
	*r = Resolved(Location{SSID: w.SSID, Lat: *w.Lat, Lon: *w.Lon, Address: w.Address})
	return nil
}

// ValidCoordinates reports whether lat/lon is a plausible fix. (0,0) is
// treated as a provider placeholder and rejected.
func ValidCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return errors.New("non-numeric coordinates")
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("invalid latitude: %v", lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("invalid longitude: %v", lon)
	}
	if lat == 0 && lon == 0 {
		return errors.New("suspicious coordinates (0,0)")
	}
	return nil
}
