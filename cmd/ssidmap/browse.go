package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/yourorg/ssidmap/internal/browse"
	"github.com/yourorg/ssidmap/internal/cache"
)

const (
	menuMaps     = "maps"
	menuLogs     = "logs"
	menuCache    = "cache"
	menuMap      = "map"
	menuLatest   = "latest"
	menuLog      = "log"
	menuCleanup  = "cleanup"
	menuOverview = "overview"
	menuExit     = "exit"
)

func newBrowseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Interactive menu over maps, logs and the cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.browser()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for {
				choice := menuExit
				form := huh.NewForm(huh.NewGroup(
					huh.NewSelect[string]().
						Title("WiFi geolocation data manager").
						Options(
							huh.NewOption("List maps", menuMaps),
							huh.NewOption("List logs", menuLogs),
							huh.NewOption("Show cache stats", menuCache),
							huh.NewOption("Map path by index", menuMap),
							huh.NewOption("Latest summary map", menuLatest),
							huh.NewOption("View log by index", menuLog),
							huh.NewOption("Cleanup old files", menuCleanup),
							huh.NewOption("Quick overview", menuOverview),
							huh.NewOption("Exit", menuExit),
						).
						Value(&choice),
				))
				if err := form.Run(); err != nil {
					if errors.Is(err, huh.ErrUserAborted) {
						return nil
					}
					return err
				}
				if choice == menuExit {
					return nil
				}
				if err := runMenuChoice(b, choice, out); err != nil {
					fmt.Fprintln(out, "error:", err)
				}
			}
		},
	}
}

func runMenuChoice(b *browse.Browser, choice string, out io.Writer) error {
	switch choice {
	case menuMaps:
		maps, err := b.Maps()
		if err != nil {
			return err
		}
		return browse.RenderMaps(out, maps)
	case menuLogs:
		logs, err := b.Logs()
		if err != nil {
			return err
		}
		return browse.RenderLogs(out, logs)
	case menuCache:
		stats, recs, err := b.Cache()
		if err != nil && !errors.Is(err, cache.ErrCorrupt) {
			return err
		}
		return browse.RenderCache(out, stats, recs)
	case menuMap:
		idx, err := askNumber("Map index", "1")
		if err != nil {
			return err
		}
		m, err := b.Map(idx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, m.Path)
	case menuLatest:
		m, err := b.LatestSummaryMap()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, m.Path)
	case menuLog:
		idx, err := askNumber("Log index", "1")
		if err != nil {
			return err
		}
		e, l, err := b.Log(idx)
		if err != nil {
			return err
		}
		return browse.RenderLog(out, e, l)
	case menuCleanup:
		days, err := askNumber("Remove files older than how many days?", "7")
		if err != nil {
			return err
		}
		removed, err := b.Cleanup(days)
		fmt.Fprintf(out, "cleaned up %d files older than %d days\n", len(removed), days)
		return err
	case menuOverview:
		ov, err := b.Overview()
		if err != nil {
			return err
		}
		return browse.RenderOverview(out, ov)
	}
	return nil
}

func askNumber(title, def string) (int, error) {
	value := def
	err := huh.NewInput().
		Title(title).
		Value(&value).
		Validate(func(s string) error {
			if _, err := strconv.Atoi(s); err != nil {
				return errors.New("enter a whole number")
			}
			return nil
		}).
		Run()
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(value)
}
