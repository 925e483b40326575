// Package extract pulls SSID candidates out of capture lines and filters
// out placeholders, hardware addresses and other noise.
package extract

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/yourorg/ssidmap/pkg/types"
)

const maxSSIDLength = 32

var (
	quotedSSID = regexp.MustCompile(`SSID="([^"]*)"`)
	bareSSID   = regexp.MustCompile(`SSID=([^\s,]+)`)
	hexOnly    = regexp.MustCompile(`^[0-9a-fA-F]{12,}$`)
)

// PlaceholderPrefixes are default-device names that never identify a
// particular network.
var PlaceholderPrefixes = []string{"test", "default", "linksys", "netgear", "dlink", "admin", "setup"}

// Result is the outcome of one extraction pass.
type Result struct {
	Lines    int
	Matched  int
	Valid    []string
	Rejected map[types.FilterReason]int
}

// RejectedTotal is the number of candidates that failed validation.
func (r Result) RejectedTotal() int {
	n := 0
	for _, c := range r.Rejected {
		n += c
	}
	return n
}

// Extract scans lines for an SSID marker and returns the unique valid names,
// sorted, with a tally of rejection reasons. Lines without a marker are
// skipped and not counted as rejected.
func Extract(lines []string) Result {
	res := Result{Lines: len(lines), Rejected: map[types.FilterReason]int{}}
	seen := make(map[string]struct{})
	for _, line := range lines {
		candidate, ok := Candidate(line)
		if !ok {
			continue
		}
		res.Matched++
		if reason, valid := Validate(candidate); !valid {
			res.Rejected[reason]++
			continue
		}
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}
		res.Valid = append(res.Valid, candidate)
	}
	sort.Strings(res.Valid)
	return res
}

// Candidate returns the trimmed SSID text on line, trying the quoted form
// first and then the bare form terminated by whitespace or a comma.
func Candidate(line string) (string, bool) {
	m := quotedSSID.FindStringSubmatch(line)
	if m == nil {
		m = bareSSID.FindStringSubmatch(line)
	}
	if m == nil {
		return "", false
	}
	s := strings.TrimSpace(m[1])
	s = strings.Trim(s, `"`)
	return strings.TrimSpace(s), true
}

// Validate applies the filter rules in order; the first match wins.
func Validate(ssid string) (types.FilterReason, bool) {
	if ssid == "" {
		return types.ReasonEmpty, false
	}
	if n := utf8.RuneCountInString(ssid); n < 1 || n > maxSSIDLength {
		return types.ReasonInvalidLength, false
	}
	if strings.HasPrefix(ssid, "0000") || ssid == strings.Repeat("0", 18) {
		return types.ReasonPlaceholderZeros, false
	}
	lower := strings.ToLower(ssid)
	if strings.HasPrefix(lower, "wildcard") {
		return types.ReasonWildcard, false
	}
	if hexOnly.MatchString(ssid) {
		return types.ReasonHexPattern, false
	}
	if !hasASCIIAlnum(ssid) {
		return types.ReasonNoAlphanumeric, false
	}
	for _, r := range ssid {
		if r < 32 || r > 126 {
			return types.ReasonInvalidCharacters, false
		}
	}
	for _, p := range PlaceholderPrefixes {
		if strings.HasPrefix(lower, p) {
			return types.ReasonCommonPlaceholder, false
		}
	}
	return "", true
}

func hasASCIIAlnum(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			return true
		}
	}
	return false
}

// LogSummary writes the extraction totals to logger.
func (r Result) LogSummary(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("extracted ssids", "lines", r.Lines, "matched", r.Matched, "unique", len(r.Valid), "filtered", r.RejectedTotal())
	reasons := make([]string, 0, len(r.Rejected))
	for reason := range r.Rejected {
		reasons = append(reasons, string(reason))
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		logger.Debug("filtered ssids", "reason", reason, "count", r.Rejected[types.FilterReason(reason)])
	}
}
