// Package cache persists lookup outcomes keyed by SSID. Every mutation is
// written through to durable storage before it returns.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/yourorg/ssidmap/internal/config"
	"github.com/yourorg/ssidmap/pkg/types"
)

// ErrCorrupt is returned by Load when persisted state cannot be decoded.
var ErrCorrupt = errors.New("cache corrupt")

// Store is the lookup cache. A name maps to at most one record.
type Store interface {
	Load() (map[string]types.Record, error)
	Get(ssid string) (types.Record, bool)
	Put(ssid string, rec types.Record) error
	Delete(ssid string) error
	Records() map[string]types.Record
	Close() error
}

// Open returns the store selected by cfg.Backend. A corrupt cache is logged
// and replaced by an empty one.
func Open(cfg config.CacheConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "json":
		return OpenFile(cfg.Path, logger)
	case "sqlite":
		return OpenSQLite(cfg.Path, logger)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// Peek reads a snapshot of the cache without taking the writer lock, so it
// can run alongside a resolving process. A missing cache is empty.
func Peek(cfg config.CacheConfig) (map[string]types.Record, error) {
	switch cfg.Backend {
	case "", "json":
		return readFile(cfg.Path)
	case "sqlite":
		if _, err := os.Stat(cfg.Path); errors.Is(err, os.ErrNotExist) {
			return map[string]types.Record{}, nil
		}
		db, err := sql.Open("sqlite", cfg.Path)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		return (&SQLiteStore{db: db}).Load()
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// Stats summarises a cache snapshot.
type Stats struct {
	Total    int                       `json:"total"`
	Resolved int                       `json:"resolved"`
	Failed   int                       `json:"failed"`
	ByKind   map[types.FailureKind]int `json:"failures_by_kind"`
}

// Summarize counts resolved and failed entries in records.
func Summarize(records map[string]types.Record) Stats {
	st := Stats{Total: len(records), ByKind: map[types.FailureKind]int{}}
	for _, r := range records {
		if r.IsFailed() {
			st.Failed++
			st.ByKind[r.Reason().Kind]++
			continue
		}
		st.Resolved++
	}
	return st
}

// SortedNames returns the keys of records in ascending order.
func SortedNames(records map[string]types.Record) []string {
	names := make([]string, 0, len(records))
	for n := range records {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func cloneRecords(in map[string]types.Record) map[string]types.Record {
	out := make(map[string]types.Record, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
