package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yourorg/ssidmap/pkg/types"
)

// SQLiteStore keeps the cache in a single lookup_cache table. Each Put is an
// upsert committed before it returns.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger

	mu      sync.Mutex
	records map[string]types.Record
}

func OpenSQLite(dsn string, logger *slog.Logger) (*SQLiteStore, error) {
	logger = loggerOrDefault(logger)
	if dir := filepath.Dir(dsn); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db, logger: logger}
	if err := s.Init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	records, err := s.Load()
	if err != nil {
		if !errors.Is(err, ErrCorrupt) {
			_ = db.Close()
			return nil, err
		}
		logger.Warn("cache has unreadable rows, skipping them", "path", dsn, "err", err)
	}
	s.records = records
	return s, nil
}

func (s *SQLiteStore) Init() error {
	if _, err := s.db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return err
	}
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS lookup_cache (
		ssid TEXT PRIMARY KEY,
		failed INTEGER NOT NULL DEFAULT 0,
		reason TEXT NOT NULL DEFAULT '',
		lat REAL,
		lon REAL,
		address TEXT NOT NULL DEFAULT '',
		updated_at DATETIME NOT NULL
	);`)
	return err
}

// Load reads every row. Rows that cannot be decoded are skipped and reported
// through an ErrCorrupt error alongside the readable records.
func (s *SQLiteStore) Load() (map[string]types.Record, error) {
	rows, err := s.db.Query(`SELECT ssid,failed,reason,lat,lon,address FROM lookup_cache`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]types.Record)
	var bad []string
	for rows.Next() {
		var (
			ssid, reason, address string
			failed                bool
			lat, lon              sql.NullFloat64
		)
		if err := rows.Scan(&ssid, &failed, &reason, &lat, &lon, &address); err != nil {
			return nil, err
		}
		if failed {
			fr, err := types.ParseFailureReason(reason)
			if err != nil {
				bad = append(bad, ssid)
				continue
			}
			out[ssid] = types.Failed(ssid, fr)
			continue
		}
		if !lat.Valid || !lon.Valid {
			bad = append(bad, ssid)
			continue
		}
		out[ssid] = types.Resolved(types.Location{SSID: ssid, Lat: lat.Float64, Lon: lon.Float64, Address: address})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(bad) > 0 {
		return out, fmt.Errorf("%w: %d unreadable rows %v", ErrCorrupt, len(bad), bad)
	}
	return out, nil
}

func (s *SQLiteStore) Get(ssid string) (types.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[ssid]
	return rec, ok
}

func (s *SQLiteStore) Put(ssid string, rec types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec = rec.WithSSID(ssid)
	s.records[ssid] = rec

	var lat, lon sql.NullFloat64
	reason := ""
	if rec.IsFailed() {
		reason = rec.Reason().String()
	} else {
		loc := rec.Location()
		lat = sql.NullFloat64{Float64: loc.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: loc.Lon, Valid: true}
	}
	_, err := s.db.Exec(`INSERT INTO lookup_cache(ssid,failed,reason,lat,lon,address,updated_at)
	VALUES(?,?,?,?,?,?,?)
	ON CONFLICT(ssid) DO UPDATE SET failed=excluded.failed,reason=excluded.reason,lat=excluded.lat,lon=excluded.lon,address=excluded.address,updated_at=excluded.updated_at`,
		ssid, rec.IsFailed(), reason, lat, lon, rec.Location().Address, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ssid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, ssid)
	if _, err := s.db.Exec(`DELETE FROM lookup_cache WHERE ssid=?`, ssid); err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Records() map[string]types.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRecords(s.records)
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return errors.New("store is nil")
	}
	return s.db.Close()
}
