package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yourorg/ssidmap/internal/cache"
	"github.com/yourorg/ssidmap/internal/capture"
	"github.com/yourorg/ssidmap/internal/export"
	"github.com/yourorg/ssidmap/internal/extract"
	"github.com/yourorg/ssidmap/internal/resolver"
	"github.com/yourorg/ssidmap/internal/session"
	"github.com/yourorg/ssidmap/internal/wigle"
	"github.com/yourorg/ssidmap/pkg/types"
)

const defaultCaptureName = "wifi-ssid-captures.txt"

func newRunCmd(a *app) *cobra.Command {
	var capturePath string
	var mock bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Extract SSIDs from a capture, resolve them and render the map",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(); err != nil {
				return err
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			if capturePath == "" {
				capturePath = filepath.Join(a.cfg.Data.Dir, defaultCaptureName)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return a.runPipeline(ctx, capturePath, mock, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&capturePath, "capture", "", "capture file (default <data.dir>/"+defaultCaptureName+")")
	cmd.Flags().BoolVar(&mock, "mock", false, "skip live lookups even if credentials are set")
	return cmd
}

func (a *app) runPipeline(ctx context.Context, capturePath string, forceMock bool, out io.Writer) error {
	lines, err := capture.ReadLines(capturePath)
	if err != nil {
		return err
	}
	a.logger.Info("loaded capture", "path", capturePath, "lines", len(lines))

	rec := session.NewRecorder(a.logger)
	res := extract.Extract(lines)
	res.LogSummary(a.logger)
	rec.RecordExtraction(res)

	var runErr error
	if len(res.Valid) == 0 {
		a.logger.Warn("no valid SSIDs found")
	} else {
		runErr = a.resolveAndExport(ctx, res.Valid, forceMock, rec)
	}

	if _, err := rec.Save(a.cfg.Data.LogsDir); err != nil {
		a.logger.Error("saving session log failed", "err", err)
	}
	if err := rec.Summary().Render(out); err != nil {
		return err
	}
	return runErr
}

func (a *app) resolveAndExport(ctx context.Context, names []string, forceMock bool, rec *session.Recorder) error {
	store, err := cache.Open(a.cfg.Cache, a.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	var lookup resolver.Lookuper
	name, token, ok := a.cfg.Credentials(a.logger)
	mock := forceMock || !ok
	if !mock {
		lookup = &wigle.Client{
			BaseURL:        a.cfg.Lookup.BaseURL,
			APIName:        name,
			APIToken:       token,
			ResultsPerPage: a.cfg.Lookup.ResultsPerPage,
			HTTPClient:     &http.Client{Timeout: a.cfg.Lookup.Timeout},
			Logger:         a.logger,
		}
	}
	r, err := resolver.New(store, lookup, resolver.Options{
		Mock:     mock,
		Delay:    a.cfg.Lookup.Delay,
		Logger:   a.logger,
		Observer: rec.Observe,
	})
	if err != nil {
		return err
	}

	locs, resolveErr := r.ResolveAll(ctx, names)
	if resolveErr != nil {
		a.logger.Warn("resolution stopped early", "err", resolveErr, "resolved", len(locs))
	}
	if len(locs) == 0 {
		a.logger.Info("no locations resolved, skipping export")
		return resolveErr
	}

	exported := locs
	if a.cfg.Output.Anonymise {
		exported = export.Anonymise(locs)
	}
	if err := export.WriteCSV(a.cfg.Output.CSV, exported); err != nil {
		a.logger.Error("csv export failed", "path", a.cfg.Output.CSV, "err", err)
	} else {
		rec.RecordArtifact(a.cfg.Output.CSV, types.ArtifactCSV, "")
	}
	title := fmt.Sprintf("WiFi locations (%d)", len(exported))
	if err := export.RenderMap(a.cfg.Output.Map, title, exported); err != nil {
		a.logger.Error("map render failed", "path", a.cfg.Output.Map, "err", err)
	} else {
		rec.RecordArtifact(a.cfg.Output.Map, types.ArtifactSummary, "")
	}
	return resolveErr
}

func newExtractCmd(a *app) *cobra.Command {
	var capturePath string
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Print the valid SSIDs in a capture without resolving them",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(); err != nil {
				return err
			}
			if capturePath == "" {
				capturePath = filepath.Join(a.cfg.Data.Dir, defaultCaptureName)
			}
			lines, err := capture.ReadLines(capturePath)
			if err != nil {
				return err
			}
			res := extract.Extract(lines)
			res.LogSummary(a.logger)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, strings.Join(res.Valid, "\n"))
			fmt.Fprintf(out, "\n%d lines, %d candidates, %d valid, %d rejected\n", res.Lines, res.Matched, len(res.Valid), res.RejectedTotal())
			return nil
		},
	}
	cmd.Flags().StringVar(&capturePath, "capture", "", "capture file (default <data.dir>/"+defaultCaptureName+")")
	return cmd
}
