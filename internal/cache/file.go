package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/yourorg/ssidmap/pkg/types"
)

// FileStore keeps the cache as one JSON object on disk, rewritten in full on
// every mutation. An advisory lock on "<path>.lock" keeps a second process
// from writing the same file.
type FileStore struct {
	path   string
	lock   *flock.Flock
	logger *slog.Logger

	mu      sync.Mutex
	records map[string]types.Record
}

// OpenFile locks and loads the cache at path. A missing file is an empty
// cache; a corrupt one is moved aside to "<path>.corrupt-<time>" and the
// cache starts empty.
func OpenFile(path string, logger *slog.Logger) (*FileStore, error) {
	logger = loggerOrDefault(logger)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring cache lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("cache %s is in use by another process", path)
	}

	s := &FileStore{path: path, lock: lock, logger: logger}
	records, err := s.Load()
	if err != nil {
		if !errors.Is(err, ErrCorrupt) {
			_ = lock.Unlock()
			return nil, err
		}
		backup, rerr := moveAside(path)
		if rerr != nil {
			_ = lock.Unlock()
			return nil, fmt.Errorf("preserving corrupt cache: %w", rerr)
		}
		logger.Warn("cache unreadable, starting empty", "path", path, "backup", backup, "err", err)
		records = map[string]types.Record{}
	}
	s.records = records
	logger.Debug("cache loaded", "path", path, "entries", len(records))
	return s, nil
}

func moveAside(path string) (string, error) {
	backup := path + ".corrupt-" + time.Now().UTC().Format("20060102T150405.000000000Z")
	if err := os.Rename(path, backup); err != nil {
		return "", err
	}
	return backup, nil
}

// Load reads the persisted cache from disk.
func (s *FileStore) Load() (map[string]types.Record, error) {
	return readFile(s.path)
}

func readFile(path string) (map[string]types.Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]types.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache: %w", err)
	}
	var raw map[string]types.Record
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	out := make(map[string]types.Record, len(raw))
	for name, rec := range raw {
		out[name] = rec.WithSSID(name)
	}
	return out, nil
}

func (s *FileStore) Get(ssid string) (types.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[ssid]
	return rec, ok
}

// Put records rec and persists the whole cache. On a persist error the
// record is still kept in memory for the rest of the run.
func (s *FileStore) Put(ssid string, rec types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[ssid] = rec.WithSSID(ssid)
	return s.persistLocked()
}

func (s *FileStore) Delete(ssid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[ssid]; !ok {
		return nil
	}
	delete(s.records, ssid)
	return s.persistLocked()
}

func (s *FileStore) Records() map[string]types.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRecords(s.records)
}

func (s *FileStore) Close() error {
	return s.lock.Unlock()
}

func (s *FileStore) persistLocked() error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("persist cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("persist cache: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("persist cache: %w", err)
	}
	return nil
}
