package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yourorg/ssidmap/internal/browse"
	"github.com/yourorg/ssidmap/internal/cache"
	"github.com/yourorg/ssidmap/internal/config"
	"github.com/yourorg/ssidmap/internal/session"
	"github.com/yourorg/ssidmap/pkg/types"
)

func newTestServer(t *testing.T) (*Server, *config.Config) {
	t.Helper()

	cfg := &config.Config{Data: config.DataConfig{Dir: t.TempDir()}}
	cfg.SetDefaults()
	if err := os.MkdirAll(cfg.Data.MapsDir, 0o755); err != nil {
		t.Fatalf("mkdir maps: %v", err)
	}

	b, err := browse.New(cfg, nil)
	if err != nil {
		t.Fatalf("new browser: %v", err)
	}
	srv, err := New(b, nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv, cfg
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServerEmptyListings(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := get(t, srv, "/api/logs")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var logs []browse.LogEntry
	if err := json.NewDecoder(rec.Body).Decode(&logs); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(logs) != 0 {
		t.Fatalf("expected empty logs, got %d", len(logs))
	}

	rec = get(t, srv, "/")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "No maps found.") {
		t.Fatalf("unexpected index: %d %s", rec.Code, rec.Body.String())
	}
}

func TestServerSessionLog(t *testing.T) {
	srv, cfg := newTestServer(t)
	r := session.NewRecorder(nil)
	loc := types.Location{SSID: "Cafe", Lat: 52, Lon: -1}
	r.Observe(types.QueryOutcome{SSID: "Cafe", Source: types.SourceLive, Success: true, Location: &loc})
	if _, err := r.Save(cfg.Data.LogsDir); err != nil {
		t.Fatal(err)
	}

	rec := get(t, srv, "/api/logs/"+r.ID())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var l types.SessionLog
	if err := json.NewDecoder(rec.Body).Decode(&l); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if l.SessionID != r.ID() || len(l.SuccessfulLocations) != 1 {
		t.Fatalf("unexpected log %+v", l)
	}

	if rec := get(t, srv, "/api/logs/20000101_000000_00000000"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := get(t, srv, "/"); !strings.Contains(rec.Body.String(), r.ID()) {
		t.Fatalf("index does not list session")
	}
}

func TestServerCacheAndMaps(t *testing.T) {
	srv, cfg := newTestServer(t)
	s, err := cache.Open(cfg.Cache, nil)
	if err != nil {
		t.Fatal(err)
	}
	_ = s.Put("Cafe", types.Resolved(types.Location{Lat: 52, Lon: -1}))
	_ = s.Put("Gone", types.Failed("Gone", types.FailureReason{Kind: types.FailureHTTP, StatusCode: 404}))
	defer s.Close()
	mapPath := filepath.Join(cfg.Data.MapsDir, "WiFiGeoMap_all_locations.html")
	if err := os.WriteFile(mapPath, []byte("<html>map</html>"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := get(t, srv, "/api/cache")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Stats   cache.Stats `json:"stats"`
		Entries []struct {
			SSID   string   `json:"ssid"`
			Failed bool     `json:"failed"`
			Reason string   `json:"reason"`
			Lat    *float64 `json:"lat"`
		} `json:"entries"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Stats.Total != 2 || len(resp.Entries) != 2 {
		t.Fatalf("unexpected cache response %+v", resp)
	}
	if resp.Entries[0].SSID != "Cafe" || resp.Entries[0].Lat == nil || *resp.Entries[0].Lat != 52 {
		t.Fatalf("unexpected first entry %+v", resp.Entries[0])
	}
	if !resp.Entries[1].Failed || resp.Entries[1].Reason != "http_error(404)" {
		t.Fatalf("unexpected second entry %+v", resp.Entries[1])
	}

	rec = get(t, srv, "/maps/WiFiGeoMap_all_locations.html")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "map") {
		t.Fatalf("map not served: %d", rec.Code)
	}

	rec = get(t, srv, "/api/maps")
	var maps []browse.FileEntry
	if err := json.NewDecoder(rec.Body).Decode(&maps); err != nil {
		t.Fatal(err)
	}
	if len(maps) != 1 || maps[0].Name != "WiFiGeoMap_all_locations.html" {
		t.Fatalf("unexpected maps %+v", maps)
	}
}

func TestServerRejectsWrites(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/cache", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestNewRequiresBrowser(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Fatalf("expected error")
	}
}
