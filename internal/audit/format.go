package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTimeline renders a ReplayResult as a text timeline.
func FormatTimeline(result *ReplayResult) string {
	if len(result.Entries) == 0 {
		return "No entries found.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Audit | %s – %s UTC\n",
		reformat(result.Summary.FirstTimestamp, "2006-01-02 15:04:05"),
		reformat(result.Summary.LastTimestamp, "15:04:05"))
	b.WriteString(separator + "\n")

	for _, e := range result.Entries {
		outcome := strings.ToUpper(e.Decision)
		if e.Code != "" {
			outcome += " " + e.Code
		}
		tab := "-"
		if e.TabID != 0 {
			tab = fmt.Sprintf("#%d", e.TabID)
		}
		tag := ""
		if e.Degraded {
			tag = "  [degraded]"
		}
		fmt.Fprintf(&b, "%-10s %-14s %-5s %-26s %-30s%s\n",
			reformat(e.Timestamp, "15:04:05"), e.Event, tab, outcome, truncate(e.Domain, 30), tag)
	}

	b.WriteString(separator + "\n")
	b.WriteString(formatSummary(result.Summary))
	return b.String()
}

// FormatJSON renders a ReplayResult as indented JSON.
func FormatJSON(result *ReplayResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal replay result: %w", err)
	}
	return string(data), nil
}

func reformat(ts, layout string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format(layout)
}

func formatSummary(s ReplaySummary) string {
	counts := []struct {
		n     int
		label string
	}{
		{s.Generated, "generated"},
		{s.Filled, "filled"},
		{s.Denied, "denied"},
		{s.Mismatched, "context mismatch"},
		{s.Expired, "expired"},
		{s.Decoys, "decoy"},
		{s.Degraded, "degraded"},
	}
	parts := []string{}
	for _, c := range counts {
		if c.n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", c.n, c.label))
		}
	}
	if len(parts) == 0 {
		parts = append(parts, "no outcomes")
	}
	return fmt.Sprintf("Summary: %d entries | %s\n", s.Total, strings.Join(parts, ", "))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
