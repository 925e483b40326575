// Package browse lists and inspects what previous runs left in the data
// directory: rendered maps, session logs and the lookup cache.
package browse

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/yourorg/ssidmap/internal/cache"
	"github.com/yourorg/ssidmap/internal/config"
	"github.com/yourorg/ssidmap/internal/session"
	"github.com/yourorg/ssidmap/pkg/types"
)

var (
	ErrNoEntries  = errors.New("nothing found")
	ErrIndexRange = errors.New("index out of range")
)

var nowFn = time.Now

// FileEntry is one file on disk.
type FileEntry struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Modified time.Time `json:"modified"`
	Size     int64     `json:"size"`
}

// LogEntry is a session log file with its headline counts. Err is set when
// the file could not be decoded.
type LogEntry struct {
	FileEntry
	SessionID  string `json:"session_id"`
	Successful int    `json:"successful"`
	Total      int    `json:"total"`
	Err        string `json:"error,omitempty"`
}

// Overview combines the listings into one view.
type Overview struct {
	Maps   []FileEntry      `json:"maps"`
	Logs   []LogEntry       `json:"logs"`
	Cache  cache.Stats      `json:"cache"`
	Latest *session.Summary `json:"latest_session,omitempty"`
}

// Browser reads the data directory. It never takes the cache writer lock.
type Browser struct {
	dataDir string
	mapsDir string
	logsDir string
	cache   config.CacheConfig
	logger  *slog.Logger
}

func New(cfg *config.Config, logger *slog.Logger) (*Browser, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Browser{
		dataDir: cfg.Data.Dir,
		mapsDir: cfg.Data.MapsDir,
		logsDir: cfg.Data.LogsDir,
		cache:   cfg.Cache,
		logger:  logger,
	}, nil
}

// MapsDir is the directory Maps lists.
func (b *Browser) MapsDir() string { return b.mapsDir }

// Maps lists rendered maps, newest first.
func (b *Browser) Maps() ([]FileEntry, error) {
	return listFiles(b.mapsDir, "*.html")
}

// Logs lists session logs, newest first.
func (b *Browser) Logs() ([]LogEntry, error) {
	files, err := listFiles(b.logsDir, "*.json")
	if err != nil {
		return nil, err
	}
	out := make([]LogEntry, 0, len(files))
	for _, f := range files {
		e := LogEntry{FileEntry: f}
		l, err := session.ReadLog(f.Path)
		if err != nil {
			e.Err = err.Error()
			b.logger.Debug("unreadable session log", "path", f.Path, "err", err)
		} else {
			e.SessionID = l.SessionID
			e.Successful = len(l.SuccessfulLocations)
			e.Total = len(l.APIQueries)
		}
		out = append(out, e)
	}
	return out, nil
}

// Map returns the index-th map (1-based, newest first).
func (b *Browser) Map(index int) (FileEntry, error) {
	maps, err := b.Maps()
	if err != nil {
		return FileEntry{}, err
	}
	if err := checkIndex(index, len(maps)); err != nil {
		return FileEntry{}, err
	}
	return maps[index-1], nil
}

// Log decodes the index-th session log (1-based, newest first).
func (b *Browser) Log(index int) (LogEntry, types.SessionLog, error) {
	logs, err := b.Logs()
	if err != nil {
		return LogEntry{}, types.SessionLog{}, err
	}
	if err := checkIndex(index, len(logs)); err != nil {
		return LogEntry{}, types.SessionLog{}, err
	}
	e := logs[index-1]
	l, err := session.ReadLog(e.Path)
	return e, l, err
}

// LogByID finds the session log written for id.
func (b *Browser) LogByID(id string) (types.SessionLog, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return types.SessionLog{}, fmt.Errorf("invalid session id %q", id)
	}
	path := filepath.Join(b.logsDir, session.LogPrefix+id+session.LogSuffix)
	l, err := session.ReadLog(path)
	if errors.Is(err, os.ErrNotExist) {
		return l, fmt.Errorf("session %s: %w", id, ErrNoEntries)
	}
	return l, err
}

// LatestSummaryMap returns the most recent all-locations or summary map
// in the maps directory or the data directory.
func (b *Browser) LatestSummaryMap() (FileEntry, error) {
	var candidates []FileEntry
	seen := map[string]bool{}
	for _, dir := range []string{b.mapsDir, b.dataDir} {
		for _, pattern := range []string{"*all_locations*.html", "*Summary*.html"} {
			files, err := listFiles(dir, pattern)
			if err != nil {
				return FileEntry{}, err
			}
			for _, f := range files {
				if !seen[f.Path] {
					seen[f.Path] = true
					candidates = append(candidates, f)
				}
			}
		}
	}
	if len(candidates) == 0 {
		return FileEntry{}, fmt.Errorf("summary map: %w", ErrNoEntries)
	}
	sortNewest(candidates)
	return candidates[0], nil
}

// Cache returns a snapshot of the lookup cache and its totals. An
// unreadable cache is reported but yields whatever could be read.
func (b *Browser) Cache() (cache.Stats, map[string]types.Record, error) {
	recs, err := cache.Peek(b.cache)
	if err != nil && !errors.Is(err, cache.ErrCorrupt) {
		return cache.Stats{}, nil, err
	}
	if recs == nil {
		recs = map[string]types.Record{}
	}
	return cache.Summarize(recs), recs, err
}

// Cleanup removes maps and session logs last modified more than days ago
// and returns the removed paths.
func (b *Browser) Cleanup(days int) ([]string, error) {
	if days < 0 {
		return nil, fmt.Errorf("days must be non-negative, got %d", days)
	}
	cutoff := nowFn().Add(-time.Duration(days) * 24 * time.Hour)
	var removed []string
	for _, set := range []struct{ dir, pattern string }{{b.mapsDir, "*.html"}, {b.logsDir, "*.json"}} {
		files, err := listFiles(set.dir, set.pattern)
		if err != nil {
			return removed, err
		}
		for _, f := range files {
			if !f.Modified.Before(cutoff) {
				continue
			}
			if err := os.Remove(f.Path); err != nil {
				return removed, fmt.Errorf("remove %s: %w", f.Name, err)
			}
			b.logger.Info("removed old file", "path", f.Path)
			removed = append(removed, f.Path)
		}
	}
	return removed, nil
}

// Overview gathers maps, logs, cache totals and the newest session summary.
func (b *Browser) Overview() (Overview, error) {
	var ov Overview
	var err error
	if ov.Maps, err = b.Maps(); err != nil {
		return ov, err
	}
	if ov.Logs, err = b.Logs(); err != nil {
		return ov, err
	}
	stats, _, err := b.Cache()
	if err != nil && !errors.Is(err, cache.ErrCorrupt) {
		return ov, err
	}
	ov.Cache = stats
	for _, e := range ov.Logs {
		if e.Err != "" {
			continue
		}
		if l, err := session.ReadLog(e.Path); err == nil {
			s := session.Summarize(l)
			ov.Latest = &s
			break
		}
	}
	return ov, nil
}

func listFiles(dir, pattern string) ([]FileEntry, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, err
	}
	out := make([]FileEntry, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		out = append(out, FileEntry{Name: info.Name(), Path: m, Modified: info.ModTime(), Size: info.Size()})
	}
	sortNewest(out)
	return out, nil
}

func sortNewest(files []FileEntry) {
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Modified.Equal(files[j].Modified) {
			return files[i].Name > files[j].Name
		}
		return files[i].Modified.After(files[j].Modified)
	})
}

func checkIndex(index, n int) error {
	if n == 0 {
		return ErrNoEntries
	}
	if index < 1 || index > n {
		return fmt.Errorf("%w: choose 1-%d", ErrIndexRange, n)
	}
	return nil
}
