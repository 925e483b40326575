package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yourorg/ssidmap/internal/browse"
	"github.com/yourorg/ssidmap/internal/cache"
)

var (
	//go:embed ui.html
	uiHTML string

	uiTemplate = template.Must(template.New("ui").Parse(uiHTML))
)

// Server exposes the browser's read-only views over HTTP.
type Server struct {
	browser *browse.Browser
	logger  *slog.Logger
	router  chi.Router
}

// New constructs a new Server with routes registered.
func New(b *browse.Browser, logger *slog.Logger) (*Server, error) {
	if b == nil {
		return nil, errors.New("browser is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{browser: b, logger: logger, router: chi.NewRouter()}
	srv.registerRoutes()
	return srv, nil
}

// Handler returns the http handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	hs := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- hs.ListenAndServe() }()
	s.logger.Info("serving", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return hs.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/", s.handleIndex)
	r.Handle("/maps/*", http.StripPrefix("/maps/", http.FileServer(http.Dir(s.browser.MapsDir()))))

	r.Route("/api", func(r chi.Router) {
		r.Get("/overview", s.handleOverview)
		r.Get("/maps", s.handleMaps)
		r.Get("/logs", s.handleLogs)
		r.Get("/logs/{id}", s.handleLog)
		r.Get("/cache", s.handleCache)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ov, err := s.browser.Overview()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_ = uiTemplate.Execute(w, ov)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := s.browser.Overview()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (s *Server) handleMaps(w http.ResponseWriter, r *http.Request) {
	maps, err := s.browser.Maps()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, maps)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.browser.Logs()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	l, err := s.browser.LogByID(chi.URLParam(r, "id"))
	if errors.Is(err, browse.ErrNoEntries) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	stats, recs, err := s.browser.Cache()
	if err != nil && !errors.Is(err, cache.ErrCorrupt) {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	resp := struct {
		Stats   cache.Stats  `json:"stats"`
		Entries []cacheEntry `json:"entries"`
		Warning string       `json:"warning,omitempty"`
	}{Stats: stats, Entries: make([]cacheEntry, 0, len(recs))}
	if err != nil {
		resp.Warning = err.Error()
	}
	for _, name := range cache.SortedNames(recs) {
		rec := recs[name]
		e := cacheEntry{SSID: name, Failed: rec.IsFailed()}
		if rec.IsFailed() {
			e.Reason = rec.Reason().String()
		} else {
			loc := rec.Location()
			e.Lat, e.Lon, e.Address = &loc.Lat, &loc.Lon, loc.Address
		}
		resp.Entries = append(resp.Entries, e)
	}
	writeJSON(w, http.StatusOK, resp)
}

type cacheEntry struct {
	SSID    string   `json:"ssid"`
	Failed  bool     `json:"failed"`
	Reason  string   `json:"reason,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
	Address string   `json:"address,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
