package types

import "time"

// FilterReason classifies a rejected SSID candidate.
type FilterReason string

const (
	ReasonEmpty             FilterReason = "empty"
	ReasonInvalidLength     FilterReason = "invalid_length"
	ReasonPlaceholderZeros  FilterReason = "placeholder_zeros"
	ReasonWildcard          FilterReason = "wildcard"
	ReasonHexPattern        FilterReason = "hex_pattern"
	ReasonNoAlphanumeric    FilterReason = "no_alphanumeric"
	ReasonInvalidCharacters FilterReason = "invalid_characters"
	ReasonCommonPlaceholder FilterReason = "common_placeholder"
)

// QuerySource says where a resolver outcome came from.
type QuerySource string

const (
	SourceCache       QuerySource = "cache"
	SourceCacheFailed QuerySource = "cache_failed"
	SourceMock        QuerySource = "mock"
	SourceLive        QuerySource = "live"
)

// QueryOutcome is reported once per name processed by the resolver.
type QueryOutcome struct {
	SSID     string         `json:"ssid"`
	Source   QuerySource    `json:"source"`
	Success  bool           `json:"success"`
	Location *Location      `json:"location,omitempty"`
	Reason   *FailureReason `json:"-"`
	Error    string         `json:"error,omitempty"`
	Time     time.Time      `json:"timestamp"`
}

// Artifact types recorded in session logs.
const (
	ArtifactSummary    = "summary"
	ArtifactIndividual = "individual"
	ArtifactCSV        = "csv"
)

// Artifact references a file produced during a session.
type Artifact struct {
	Path      string    `json:"path"`
	Type      string    `json:"type"`
	SSID      string    `json:"ssid,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// FailedLookup is one failed entry in a session log.
type FailedLookup struct {
	SSID      string    `json:"ssid"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionLog is the persisted per-run record.
type SessionLog struct {
	SessionID           string               `json:"session_id"`
	StartTime           time.Time            `json:"start_time"`
	EndTime             *time.Time           `json:"end_time"`
	TotalLinesRead      int                  `json:"total_lines_read"`
	TotalSSIDsExtracted int                  `json:"total_ssids_extracted"`
	ValidSSIDs          []string             `json:"valid_ssids"`
	FilteredSSIDs       map[FilterReason]int `json:"filtered_ssids"`
	APIQueries          []QueryOutcome       `json:"api_queries"`
	SuccessfulLocations []Location           `json:"successful_locations"`
	FailedLookups       []FailedLookup       `json:"failed_lookups"`
	MapsGenerated       []Artifact           `json:"maps_generated"`
}
