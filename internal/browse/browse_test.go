package browse

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yourorg/ssidmap/internal/cache"
	"github.com/yourorg/ssidmap/internal/config"
	"github.com/yourorg/ssidmap/internal/extract"
	"github.com/yourorg/ssidmap/internal/session"
	"github.com/yourorg/ssidmap/pkg/types"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{Data: config.DataConfig{Dir: t.TempDir()}}
	cfg.SetDefaults()
	return cfg
}

func writeFile(t *testing.T, path string, age time.Duration) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("<html></html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	mt := time.Now().Add(-age)
	if err := os.Chtimes(path, mt, mt); err != nil {
		t.Fatal(err)
	}
}

func saveSession(t *testing.T, dir string, success bool) string {
	t.Helper()
	r := session.NewRecorder(nil)
	r.RecordExtraction(extract.Extract([]string{`SSID="Cafe"`}))
	if success {
		loc := types.Location{SSID: "Cafe", Lat: 52, Lon: -1}
		r.Observe(types.QueryOutcome{SSID: "Cafe", Source: types.SourceLive, Success: true, Location: &loc})
	} else {
		r.Observe(types.QueryOutcome{SSID: "Cafe", Source: types.SourceLive, Error: "no_result"})
	}
	path, err := r.Save(dir)
	if err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMapsNewestFirst(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.Data.MapsDir, "old.html"), 2*time.Hour)
	writeFile(t, filepath.Join(cfg.Data.MapsDir, "new.html"), time.Minute)
	writeFile(t, filepath.Join(cfg.Data.MapsDir, "notes.txt"), 0)
	b, _ := New(cfg, nil)

	maps, err := b.Maps()
	if err != nil {
		t.Fatal(err)
	}
	if len(maps) != 2 || maps[0].Name != "new.html" || maps[1].Name != "old.html" {
		t.Fatalf("unexpected listing %+v", maps)
	}
	m, err := b.Map(2)
	if err != nil || m.Name != "old.html" {
		t.Fatalf("expected old.html at index 2, got %+v %v", m, err)
	}
	if _, err := b.Map(3); !errors.Is(err, ErrIndexRange) {
		t.Fatalf("expected ErrIndexRange, got %v", err)
	}
}

func TestMissingDirsAreEmpty(t *testing.T) {
	b, _ := New(testConfig(t), nil)
	maps, err := b.Maps()
	if err != nil || len(maps) != 0 {
		t.Fatalf("expected empty maps, got %v %v", maps, err)
	}
	if _, _, err := b.Log(1); !errors.Is(err, ErrNoEntries) {
		t.Fatalf("expected ErrNoEntries, got %v", err)
	}
	if _, err := b.LatestSummaryMap(); !errors.Is(err, ErrNoEntries) {
		t.Fatalf("expected ErrNoEntries, got %v", err)
	}
}

func TestLogsAndLogByID(t *testing.T) {
	cfg := testConfig(t)
	path := saveSession(t, cfg.Data.LogsDir, true)
	writeFile(t, filepath.Join(cfg.Data.LogsDir, "broken.json"), time.Hour)
	b, _ := New(cfg, nil)

	logs, err := b.Logs()
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 logs, got %d", len(logs))
	}
	if logs[0].Path != path || logs[0].Successful != 1 || logs[0].Total != 1 {
		t.Fatalf("unexpected newest log %+v", logs[0])
	}
	if logs[1].Err == "" {
		t.Fatalf("expected decode error for broken log")
	}

	e, l, err := b.Log(1)
	if err != nil || e.SessionID != l.SessionID {
		t.Fatalf("unexpected log %+v %v", e, err)
	}
	byID, err := b.LogByID(l.SessionID)
	if err != nil || byID.SessionID != l.SessionID {
		t.Fatalf("LogByID failed: %v", err)
	}
	if _, err := b.LogByID("../etc"); err == nil {
		t.Fatalf("expected invalid id error")
	}
	if _, err := b.LogByID("20000101_000000_deadbeef"); !errors.Is(err, ErrNoEntries) {
		t.Fatalf("expected ErrNoEntries, got %v", err)
	}
}

func TestLatestSummaryMap(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.Data.MapsDir, "WiFiGeoMap_all_locations.html"), time.Hour)
	writeFile(t, filepath.Join(cfg.Data.Dir, "Summary_2024.html"), time.Minute)
	writeFile(t, filepath.Join(cfg.Data.MapsDir, "Cafe.html"), 0)
	b, _ := New(cfg, nil)
	m, err := b.LatestSummaryMap()
	if err != nil {
		t.Fatal(err)
	}
	if m.Name != "Summary_2024.html" {
		t.Fatalf("expected newest summary map, got %s", m.Name)
	}
}

func TestCleanup(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.Data.MapsDir, "old.html"), 10*24*time.Hour)
	writeFile(t, filepath.Join(cfg.Data.MapsDir, "fresh.html"), time.Hour)
	writeFile(t, filepath.Join(cfg.Data.LogsDir, "processing_log_old.json"), 8*24*time.Hour)
	b, _ := New(cfg, nil)

	removed, err := b.Cleanup(7)
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 2 {
		t.Fatalf("expected 2 removals, got %v", removed)
	}
	if _, err := os.Stat(filepath.Join(cfg.Data.MapsDir, "fresh.html")); err != nil {
		t.Fatalf("fresh map removed: %v", err)
	}
	if _, err := b.Cleanup(-1); err == nil {
		t.Fatalf("expected error for negative days")
	}
}

func TestCacheAndOverview(t *testing.T) {
	cfg := testConfig(t)
	s, err := cache.Open(cfg.Cache, nil)
	if err != nil {
		t.Fatal(err)
	}
	_ = s.Put("Cafe", types.Resolved(types.Location{Lat: 52, Lon: -1, Address: "High St"}))
	_ = s.Put("Gone", types.Failed("Gone", types.FailureReason{Kind: types.FailureNoResult}))
	defer s.Close()
	saveSession(t, cfg.Data.LogsDir, false)
	writeFile(t, filepath.Join(cfg.Data.MapsDir, "WiFiGeoMap_all_locations.html"), 0)

	b, _ := New(cfg, nil)
	stats, recs, err := b.Cache()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 2 || stats.Failed != 1 || len(recs) != 2 {
		t.Fatalf("unexpected cache stats %+v", stats)
	}

	ov, err := b.Overview()
	if err != nil {
		t.Fatal(err)
	}
	if len(ov.Maps) != 1 || len(ov.Logs) != 1 || ov.Latest == nil || ov.Latest.Queries.Failed != 1 {
		t.Fatalf("unexpected overview %+v", ov)
	}

	var buf bytes.Buffer
	if err := RenderOverview(&buf, ov); err != nil {
		t.Fatal(err)
	}
	if err := RenderCache(&buf, stats, recs); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"WiFiGeoMap_all_locations.html", "Resolved: 1", "no_result", "High St", "0/1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("render missing %q:\n%s", want, out)
		}
	}
}

func TestRenderLogTruncates(t *testing.T) {
	l := types.SessionLog{SessionID: "s1", StartTime: time.Now()}
	for i := 0; i < 7; i++ {
		l.SuccessfulLocations = append(l.SuccessfulLocations, types.Location{SSID: "n" + string(rune('a'+i)), Lat: 1, Lon: 1})
	}
	var buf bytes.Buffer
	if err := RenderLog(&buf, LogEntry{FileEntry: FileEntry{Name: "x.json"}}, l); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "and 2 more") || !strings.Contains(out, "unfinished") {
		t.Fatalf("unexpected render:\n%s", out)
	}
}
