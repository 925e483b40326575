package session

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/yourorg/ssidmap/pkg/types"
)

// Summary is the human view of a session log.
type Summary struct {
	SessionID      string                     `json:"session_id"`
	TotalExtracted int                        `json:"total_extracted"`
	Valid          int                        `json:"valid_after_filtering"`
	FilterReasons  map[types.FilterReason]int `json:"filter_reasons"`
	Queries        QueryTotals                `json:"api_queries"`
	Maps           ArtifactTotals             `json:"maps"`
}

type QueryTotals struct {
	Total       int    `json:"total"`
	Successful  int    `json:"successful"`
	Failed      int    `json:"failed"`
	Mocked      int    `json:"mocked"`
	SuccessRate string `json:"success_rate"`
}

type ArtifactTotals struct {
	Total      int `json:"total_generated"`
	Individual int `json:"individual_maps"`
	Summary    int `json:"summary_maps"`
	CSV        int `json:"csv_exports"`
}

// Summary returns the current totals.
func (r *Recorder) Summary() Summary {
	return Summarize(r.Snapshot())
}

// Summarize derives a Summary from a persisted or in-flight log.
func Summarize(l types.SessionLog) Summary {
	s := Summary{
		SessionID:      l.SessionID,
		TotalExtracted: l.TotalSSIDsExtracted,
		Valid:          len(l.ValidSSIDs),
		FilterReasons:  l.FilteredSSIDs,
	}
	for _, q := range l.APIQueries {
		if q.Source == types.SourceMock {
			s.Queries.Mocked++
		}
	}
	s.Queries.Total = len(l.APIQueries)
	s.Queries.Successful = len(l.SuccessfulLocations)
	s.Queries.Failed = len(l.FailedLookups)
	s.Queries.SuccessRate = SuccessRate(s.Queries.Successful, s.Queries.Total)

	for _, a := range l.MapsGenerated {
		switch a.Type {
		case types.ArtifactIndividual:
			s.Maps.Individual++
		case types.ArtifactSummary:
			s.Maps.Summary++
		case types.ArtifactCSV:
			s.Maps.CSV++
		}
	}
	s.Maps.Total = s.Maps.Individual + s.Maps.Summary
	return s
}

// SuccessRate formats successful/total as a one-decimal percentage, or "0%"
// when nothing was queried.
func SuccessRate(successful, total int) string {
	if total <= 0 {
		return "0%"
	}
	return strconv.FormatFloat(float64(successful)/float64(total)*100, 'f', 1, 64) + "%"
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	keyStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle  = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Render writes the summary box to w.
func (s Summary) Render(w io.Writer) error {
	rows := [][]string{
		{"Session ID", s.SessionID},
		{"SSIDs extracted", strconv.Itoa(s.TotalExtracted)},
		{"Valid after filtering", strconv.Itoa(s.Valid)},
	}
	for _, reason := range sortedReasons(s.FilterReasons) {
		rows = append(rows, []string{"  filtered: " + string(reason), strconv.Itoa(s.FilterReasons[reason])})
	}
	rows = append(rows,
		[]string{"Total queries", strconv.Itoa(s.Queries.Total)},
		[]string{"Successful", strconv.Itoa(s.Queries.Successful)},
		[]string{"Failed", strconv.Itoa(s.Queries.Failed)},
	)
	if s.Queries.Mocked > 0 {
		rows = append(rows, []string{"Skipped (mock mode)", strconv.Itoa(s.Queries.Mocked)})
	}
	rows = append(rows,
		[]string{"Success rate", s.Queries.SuccessRate},
		[]string{"Maps generated", fmt.Sprintf("%d (summary %d, individual %d)", s.Maps.Total, s.Maps.Summary, s.Maps.Individual)},
	)

	t := table.New().
		Headers("Metric", "Value").
		Rows(rows...).
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow || col == 0 {
				return keyStyle
			}
			return cellStyle
		})

	var b strings.Builder
	b.WriteString(titleStyle.Render("WiFi geolocation processing summary"))
	b.WriteString("\n")
	b.WriteString(t.String())
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func sortedReasons(m map[types.FilterReason]int) []types.FilterReason {
	out := make([]types.FilterReason, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
