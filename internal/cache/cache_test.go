package cache

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yourorg/ssidmap/internal/config"
	"github.com/yourorg/ssidmap/pkg/types"
)

func openBoth(t *testing.T) map[string]func(path string) (Store, error) {
	t.Helper()
	return map[string]func(path string) (Store, error){
		"json":   func(p string) (Store, error) { return OpenFile(p, nil) },
		"sqlite": func(p string) (Store, error) { return OpenSQLite(p, nil) },
	}
}

func TestRoundTripPersistLoad(t *testing.T) {
	for name, open := range openBoth(t) {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cache."+name)
			s, err := open(path)
			if err != nil {
				t.Fatal(err)
			}
			if err := s.Put("Bar", types.Resolved(types.Location{Lat: 52.0, Lon: -1.0})); err != nil {
				t.Fatal(err)
			}
			if err := s.Put("Foo", types.Failed("Foo", types.FailureReason{Kind: types.FailureHTTP, StatusCode: 500})); err != nil {
				t.Fatal(err)
			}
			if err := s.Close(); err != nil {
				t.Fatal(err)
			}

			s2, err := open(path)
			if err != nil {
				t.Fatal(err)
			}
			defer s2.Close()
			bar, ok := s2.Get("Bar")
			if !ok || bar.IsFailed() {
				t.Fatalf("expected resolved Bar after reload")
			}
			if loc := bar.Location(); loc.Lat != 52.0 || loc.Lon != -1.0 || loc.SSID != "Bar" {
				t.Fatalf("location changed across persist/load: %+v", loc)
			}
			foo, ok := s2.Get("Foo")
			if !ok || !foo.IsFailed() || foo.Reason().StatusCode != 500 {
				t.Fatalf("expected failed Foo after reload, got %+v", foo.Reason())
			}
			if foo.SSID() != "Foo" {
				t.Fatalf("failed record lost its key: %q", foo.SSID())
			}
		})
	}
}

func TestDeleteIsWriteThrough(t *testing.T) {
	for name, open := range openBoth(t) {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cache."+name)
			s, err := open(path)
			if err != nil {
				t.Fatal(err)
			}
			_ = s.Put("Foo", types.Failed("Foo", types.FailureReason{Kind: types.FailureNoResult}))
			if err := s.Delete("Foo"); err != nil {
				t.Fatal(err)
			}
			if _, ok := s.Get("Foo"); ok {
				t.Fatalf("expected Foo deleted in memory")
			}
			loaded, err := s.Load()
			if err != nil {
				t.Fatal(err)
			}
			if _, ok := loaded["Foo"]; ok {
				t.Fatalf("expected Foo deleted on disk")
			}
			_ = s.Close()
		})
	}
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	s, err := OpenFile(filepath.Join(t.TempDir(), "nested", "wigle_cache.json"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if n := len(s.Records()); n != 0 {
		t.Fatalf("expected empty cache, got %d", n)
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wigle_cache.json")
	original := []byte(`{"Cafe":{"ssid":"Cafe","lat":1,"lon":2},"Bad":{"ssid":"Bad"}}`)
	if err := os.WriteFile(path, original, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := readFile(path); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	s, err := OpenFile(path, nil)
	if err != nil {
		t.Fatalf("corrupt cache must not be fatal: %v", err)
	}
	defer s.Close()
	if len(s.Records()) != 0 {
		t.Fatalf("expected empty in-memory cache")
	}

	backups, err := filepath.Glob(path + ".corrupt-*")
	if err != nil || len(backups) != 1 {
		t.Fatalf("expected one backup of the corrupt cache, got %v %v", backups, err)
	}
	kept, err := os.ReadFile(backups[0])
	if err != nil {
		t.Fatal(err)
	}
	if string(kept) != string(original) {
		t.Fatalf("backup does not hold the original bytes: %s", kept)
	}

	if err := s.Put("Library", types.Resolved(types.Location{Lat: 3, Lon: 4})); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(); err != nil {
		t.Fatalf("expected fresh cache file, got %v", err)
	}
	kept, err = os.ReadFile(backups[0])
	if err != nil || string(kept) != string(original) {
		t.Fatalf("backup changed after persist: %s %v", kept, err)
	}
}

func TestFileStoreWireFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wigle_cache.json")
	s, err := OpenFile(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	_ = s.Put("Foo", types.Failed("Foo", types.FailureReason{Kind: types.FailureNoResult}))
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"failed": true`) || !strings.Contains(string(data), `"reason": "no_result"`) {
		t.Fatalf("unexpected wire format %s", data)
	}
}

func TestFileStoreLockedBySecondOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wigle_cache.json")
	s, err := OpenFile(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := OpenFile(path, nil); err == nil {
		t.Fatalf("expected second open to fail while locked")
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	s2, err := OpenFile(path, nil)
	if err != nil {
		t.Fatalf("expected open after close: %v", err)
	}
	_ = s2.Close()
}

func TestSQLiteSkipsUnreadableRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wigle_cache.db")
	s, err := OpenSQLite(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	_ = s.Put("Good", types.Resolved(types.Location{Lat: 10, Lon: 20}))
	_ = s.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO lookup_cache(ssid,failed,reason,updated_at) VALUES('Bad',1,'bogus',CURRENT_TIMESTAMP)`); err != nil {
		t.Fatal(err)
	}
	_ = db.Close()

	s2, err := OpenSQLite(path, nil)
	if err != nil {
		t.Fatalf("unreadable rows must not be fatal: %v", err)
	}
	defer s2.Close()
	if _, ok := s2.Get("Good"); !ok {
		t.Fatalf("expected readable row kept")
	}
	if _, ok := s2.Get("Bad"); ok {
		t.Fatalf("expected unreadable row skipped")
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(config.CacheConfig{Backend: "sqlite", Path: filepath.Join(dir, "c.db")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*SQLiteStore); !ok {
		t.Fatalf("expected sqlite store, got %T", s)
	}
	_ = s.Close()
	if _, err := Open(config.CacheConfig{Backend: "redis"}, nil); err == nil {
		t.Fatalf("expected unknown backend error")
	}
}

func TestSummarize(t *testing.T) {
	recs := map[string]types.Record{
		"a": types.Resolved(types.Location{Lat: 1, Lon: 1}),
		"b": types.Failed("b", types.FailureReason{Kind: types.FailureNoResult}),
		"c": types.Failed("c", types.FailureReason{Kind: types.FailureHTTP, StatusCode: 429}),
		"d": types.Failed("d", types.FailureReason{Kind: types.FailureNoResult}),
	}
	st := Summarize(recs)
	if st.Total != 4 || st.Resolved != 1 || st.Failed != 3 || st.ByKind[types.FailureNoResult] != 2 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if names := SortedNames(recs); names[0] != "a" || names[3] != "d" {
		t.Fatalf("unexpected order %v", names)
	}
}

func TestPeekIgnoresWriterLock(t *testing.T) {
	for name, open := range openBoth(t) {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cache."+name)
			s, err := open(path)
			if err != nil {
				t.Fatal(err)
			}
			defer s.Close()
			_ = s.Put("Cafe", types.Resolved(types.Location{Lat: 1, Lon: 2}))

			recs, err := Peek(config.CacheConfig{Backend: name, Path: path})
			if err != nil {
				t.Fatal(err)
			}
			if rec, ok := recs["Cafe"]; !ok || rec.Location().Lon != 2 {
				t.Fatalf("expected Cafe in snapshot, got %v", recs)
			}
		})
	}
	recs, err := Peek(config.CacheConfig{Backend: "sqlite", Path: filepath.Join(t.TempDir(), "none.db")})
	if err != nil || len(recs) != 0 {
		t.Fatalf("expected empty snapshot for missing db, got %v %v", recs, err)
	}
}
