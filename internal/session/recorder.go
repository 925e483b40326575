// Package session aggregates per-run statistics and persists them as a
// processing log. It makes no decisions; every other component feeds it.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/ssidmap/internal/extract"
	"github.com/yourorg/ssidmap/pkg/types"
)

// LogPrefix and LogSuffix frame a session id in a processing log file name.
const (
	LogPrefix = "processing_log_"
	LogSuffix = ".json"
)

var nowFn = time.Now

// Recorder accumulates one run's statistics. It is safe for concurrent use.
type Recorder struct {
	logger *slog.Logger

	mu    sync.Mutex
	log   types.SessionLog
	saved string
}

// NewRecorder starts a session. The id is the local start time followed by
// eight hex characters of a random UUID.
func NewRecorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	start := nowFn()
	id := start.Format("20060102_150405") + "_" + uuid.NewString()[:8]
	return &Recorder{
		logger: logger,
		log: types.SessionLog{
			SessionID:           id,
			StartTime:           start,
			ValidSSIDs:          []string{},
			FilteredSSIDs:       map[types.FilterReason]int{},
			APIQueries:          []types.QueryOutcome{},
			SuccessfulLocations: []types.Location{},
			FailedLookups:       []types.FailedLookup{},
			MapsGenerated:       []types.Artifact{},
		},
	}
}

// ID returns the session id.
func (r *Recorder) ID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.log.SessionID
}

// RecordExtraction stores the extractor's counts and reason tally.
func (r *Recorder) RecordExtraction(res extract.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.TotalLinesRead = res.Lines
	r.log.TotalSSIDsExtracted = res.Matched
	r.log.ValidSSIDs = append([]string(nil), res.Valid...)
	r.log.FilteredSSIDs = make(map[types.FilterReason]int, len(res.Rejected))
	for k, v := range res.Rejected {
		r.log.FilteredSSIDs[k] = v
	}
	r.logger.Info("logged extraction", "valid", len(res.Valid), "rejected", res.RejectedTotal())
}

// Observe records one resolver outcome. It matches resolver.Observer.
func (r *Recorder) Observe(o types.QueryOutcome) {
	if o.Time.IsZero() {
		o.Time = nowFn().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.APIQueries = append(r.log.APIQueries, o)
	switch {
	case o.Success && o.Location != nil:
		r.log.SuccessfulLocations = append(r.log.SuccessfulLocations, *o.Location)
	case o.Source == types.SourceMock:
		// not attempted, neither success nor failure
	default:
		r.log.FailedLookups = append(r.log.FailedLookups, types.FailedLookup{SSID: o.SSID, Error: o.Error, Timestamp: o.Time})
	}
}

// RecordArtifact references a file produced by this run.
func (r *Recorder) RecordArtifact(path, kind, ssid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.MapsGenerated = append(r.log.MapsGenerated, types.Artifact{
		Path:      path,
		Type:      kind,
		SSID:      ssid,
		Timestamp: nowFn().UTC(),
	})
	r.logger.Info("logged artifact", "type", kind, "path", path)
}

// Snapshot returns a copy of the accumulated log.
func (r *Recorder) Snapshot() types.SessionLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyLog(r.log)
}

// Save sets the end time and writes processing_log_<id>.json under dir.
// The log is written once; later calls return the first path.
func (r *Recorder) Save(dir string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saved != "" {
		return r.saved, nil
	}
	if dir == "" {
		return "", errors.New("log dir is empty")
	}
	end := nowFn()
	r.log.EndTime = &end

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create log dir: %w", err)
	}
	data, err := json.MarshalIndent(r.log, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode session log: %w", err)
	}
	path := filepath.Join(dir, LogPrefix+r.log.SessionID+LogSuffix)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write session log: %w", err)
	}
	r.saved = path
	r.logger.Info("session log saved", "path", path)
	return path, nil
}

// ReadLog decodes a processing log written by Save.
func ReadLog(path string) (types.SessionLog, error) {
	var l types.SessionLog
	data, err := os.ReadFile(path)
	if err != nil {
		return l, err
	}
	if err := json.Unmarshal(data, &l); err != nil {
		return l, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return l, nil
}

func copyLog(in types.SessionLog) types.SessionLog {
	out := in
	out.ValidSSIDs = append([]string(nil), in.ValidSSIDs...)
	out.FilteredSSIDs = make(map[types.FilterReason]int, len(in.FilteredSSIDs))
	for k, v := range in.FilteredSSIDs {
		out.FilteredSSIDs[k] = v
	}
	out.APIQueries = append([]types.QueryOutcome(nil), in.APIQueries...)
	out.SuccessfulLocations = append([]types.Location(nil), in.SuccessfulLocations...)
	out.FailedLookups = append([]types.FailedLookup(nil), in.FailedLookups...)
	out.MapsGenerated = append([]types.Artifact(nil), in.MapsGenerated...)
	if in.EndTime != nil {
		end := *in.EndTime
		out.EndTime = &end
	}
	return out
}
