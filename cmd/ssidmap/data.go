package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/yourorg/ssidmap/internal/browse"
	"github.com/yourorg/ssidmap/internal/cache"
)

func (a *app) browser() (*browse.Browser, error) {
	if err := a.load(); err != nil {
		return nil, err
	}
	return browse.New(a.cfg, a.logger)
}

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "cache", Short: "Inspect or edit the lookup cache"}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cache totals and entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.browser()
			if err != nil {
				return err
			}
			stats, recs, err := b.Cache()
			if errors.Is(err, cache.ErrCorrupt) {
				a.logger.Warn("cache partly unreadable", "err", err)
			} else if err != nil {
				return err
			}
			return browse.RenderCache(cmd.OutOrStdout(), stats, recs)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "forget SSID...",
		Short: "Remove entries so the next run queries them again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(); err != nil {
				return err
			}
			store, err := cache.Open(a.cfg.Cache, a.logger)
			if err != nil {
				return err
			}
			defer store.Close()
			for _, name := range args {
				if _, ok := store.Get(name); !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "not cached", name)
					continue
				}
				if err := store.Delete(name); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "forgot", name)
			}
			return nil
		},
	})
	return cmd
}

func newLogsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logs",
		Short: "List session logs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.browser()
			if err != nil {
				return err
			}
			logs, err := b.Logs()
			if err != nil {
				return err
			}
			return browse.RenderLogs(cmd.OutOrStdout(), logs)
		},
	}
}

func newMapsCmd(a *app) *cobra.Command {
	var latest bool
	cmd := &cobra.Command{
		Use:   "maps [INDEX]",
		Short: "List rendered maps, or print the path of one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.browser()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if latest {
				m, err := b.LatestSummaryMap()
				if err != nil {
					return err
				}
				fmt.Fprintln(out, m.Path)
				return nil
			}
			if len(args) == 1 {
				idx, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid index %q", args[0])
				}
				m, err := b.Map(idx)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, m.Path)
				return nil
			}
			maps, err := b.Maps()
			if err != nil {
				return err
			}
			return browse.RenderMaps(out, maps)
		},
	}
	cmd.Flags().BoolVar(&latest, "latest", false, "print the newest summary map")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show [INDEX|SESSION_ID]",
		Short: "Show a session log (default: newest)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.browser()
			if err != nil {
				return err
			}
			idx := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					l, err := b.LogByID(args[0])
					if err != nil {
						return err
					}
					return browse.RenderLog(cmd.OutOrStdout(), browse.LogEntry{SessionID: l.SessionID}, l)
				}
				idx = n
			}
			e, l, err := b.Log(idx)
			if err != nil {
				return err
			}
			return browse.RenderLog(cmd.OutOrStdout(), e, l)
		},
	}
}

func newCleanupCmd(a *app) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove maps and session logs older than --days",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.browser()
			if err != nil {
				return err
			}
			removed, err := b.Cleanup(days)
			for _, p := range removed {
				fmt.Fprintln(cmd.OutOrStdout(), "removed", p)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleaned up %d files older than %d days\n", len(removed), days)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "age threshold in days")
	return cmd
}

func newOverviewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "overview",
		Short: "Show maps, logs and cache totals together",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.browser()
			if err != nil {
				return err
			}
			ov, err := b.Overview()
			if err != nil {
				return err
			}
			return browse.RenderOverview(cmd.OutOrStdout(), ov)
		},
	}
}
