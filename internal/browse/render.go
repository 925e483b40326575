package browse

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/yourorg/ssidmap/internal/cache"
	"github.com/yourorg/ssidmap/internal/session"
	"github.com/yourorg/ssidmap/pkg/types"
)

const timeLayout = "2006-01-02 15:04:05"

// maxListedLocations caps the successful locations shown by RenderLog.
const maxListedLocations = 5

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	rowStyle     = lipgloss.NewStyle().Padding(0, 1)
	warnStyle    = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("11"))
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Headers(headers...).
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return rowStyle
		})
}

func writeSection(w io.Writer, title string, body string) error {
	_, err := fmt.Fprintf(w, "%s\n%s\n", headingStyle.Render(title), body)
	return err
}

// RenderMaps prints the map listing.
func RenderMaps(w io.Writer, maps []FileEntry) error {
	title := fmt.Sprintf("Generated maps (%d total)", len(maps))
	if len(maps) == 0 {
		return writeSection(w, title, "No maps found.")
	}
	t := newTable("#", "Name", "Modified", "Size")
	for i, m := range maps {
		t.Row(strconv.Itoa(i+1), m.Name, m.Modified.Format(timeLayout), fmt.Sprintf("%.1f KB", float64(m.Size)/1024))
	}
	return writeSection(w, title, t.String())
}

// RenderLogs prints the session log listing.
func RenderLogs(w io.Writer, logs []LogEntry) error {
	title := fmt.Sprintf("Session logs (%d total)", len(logs))
	if len(logs) == 0 {
		return writeSection(w, title, "No logs found.")
	}
	t := newTable("#", "File", "Session", "Success")
	for i, l := range logs {
		if l.Err != "" {
			t.Row(strconv.Itoa(i+1), l.Name, "unreadable", l.Err)
			continue
		}
		t.Row(strconv.Itoa(i+1), l.Name, l.SessionID, fmt.Sprintf("%d/%d", l.Successful, l.Total))
	}
	return writeSection(w, title, t.String())
}

// RenderCache prints cache totals and every entry in name order.
func RenderCache(w io.Writer, stats cache.Stats, records map[string]types.Record) error {
	title := fmt.Sprintf("Cache (%d entries, %d resolved, %d failed)", stats.Total, stats.Resolved, stats.Failed)
	if stats.Total == 0 {
		return writeSection(w, title, "Cache is empty.")
	}
	t := newTable("SSID", "Status", "Location")
	for _, name := range cache.SortedNames(records) {
		rec := records[name]
		if rec.IsFailed() {
			t.Row(name, warnStyle.Render("failed"), rec.Reason().String())
			continue
		}
		loc := rec.Location()
		t.Row(name, "resolved", formatLatLon(loc))
	}
	return writeSection(w, title, t.String())
}

// RenderLog prints one session log in detail.
func RenderLog(w io.Writer, e LogEntry, l types.SessionLog) error {
	s := session.Summarize(l)
	var b strings.Builder
	end := "unfinished"
	if l.EndTime != nil {
		end = l.EndTime.Format(timeLayout)
	}
	fmt.Fprintf(&b, "Start: %s\nEnd:   %s\n", l.StartTime.Format(timeLayout), end)
	b.WriteString("\n")
	if err := writeSection(w, "Session log: "+e.Name, b.String()); err != nil {
		return err
	}
	if err := s.Render(w); err != nil {
		return err
	}

	if len(l.SuccessfulLocations) == 0 {
		return nil
	}
	t := newTable("SSID", "Location")
	for i, loc := range l.SuccessfulLocations {
		if i == maxListedLocations {
			break
		}
		t.Row(loc.SSID, formatLatLon(loc))
	}
	body := t.String()
	if extra := len(l.SuccessfulLocations) - maxListedLocations; extra > 0 {
		body += fmt.Sprintf("\n... and %d more", extra)
	}
	return writeSection(w, "Successful locations", body)
}

// RenderOverview prints maps, logs and cache totals together.
func RenderOverview(w io.Writer, ov Overview) error {
	if err := RenderMaps(w, ov.Maps); err != nil {
		return err
	}
	if err := RenderLogs(w, ov.Logs); err != nil {
		return err
	}
	body := fmt.Sprintf("Total: %d\nResolved: %d\nFailed: %d", ov.Cache.Total, ov.Cache.Resolved, ov.Cache.Failed)
	for _, kind := range []types.FailureKind{types.FailureNetwork, types.FailureHTTP, types.FailureMalformed, types.FailureNoResult} {
		if n := ov.Cache.ByKind[kind]; n > 0 {
			body += fmt.Sprintf("\n  %s: %d", kind, n)
		}
	}
	if err := writeSection(w, "Cache", body); err != nil {
		return err
	}
	if ov.Latest != nil {
		return ov.Latest.Render(w)
	}
	return nil
}

func formatLatLon(loc types.Location) string {
	s := fmt.Sprintf("(%s, %s)", strconv.FormatFloat(loc.Lat, 'f', -1, 64), strconv.FormatFloat(loc.Lon, 'f', -1, 64))
	if loc.Address != "" {
		s += " " + loc.Address
	}
	return s
}
