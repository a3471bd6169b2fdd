package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/smdnano/internal/model"
)

// ReplayFilter selects entries. Empty fields match everything.
type ReplayFilter struct {
	Domain string
	Event  string
	TabID  int
	From   time.Time
	To     time.Time
}

func (f ReplayFilter) match(e Entry) bool {
	if f.Domain != "" && e.Domain != f.Domain {
		return false
	}
	if f.Event != "" && e.Event != f.Event {
		return false
	}
	if f.TabID != 0 && e.TabID != f.TabID {
		return false
	}
	if f.From.IsZero() && f.To.IsZero() {
		return true
	}
	ts, err := time.Parse(TimestampFormat, e.Timestamp)
	if err != nil {
		return false
	}
	if !f.From.IsZero() && ts.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && ts.After(f.To) {
		return false
	}
	return true
}

// ReplaySummary counts outcomes across the selected entries.
type ReplaySummary struct {
	Total          int    `json:"total"`
	Generated      int    `json:"generated"`
	Filled         int    `json:"filled"`
	Denied         int    `json:"denied"`
	Mismatched     int    `json:"mismatched"`
	Expired        int    `json:"expired"`
	Decoys         int    `json:"decoys"`
	Degraded       int    `json:"degraded"`
	FirstTimestamp string `json:"first_timestamp"`
	LastTimestamp  string `json:"last_timestamp"`
}

// ReplayResult holds the selected entries and their summary.
type ReplayResult struct {
	Entries []Entry       `json:"entries"`
	Summary ReplaySummary `json:"summary"`
}

// Replay reads the log at path and returns entries matching filter.
// Malformed lines are skipped; use Verify to detect them.
func Replay(path string, filter ReplayFilter) (*ReplayResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	result := &ReplayResult{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		if !filter.match(e) {
			continue
		}
		result.Entries = append(result.Entries, e)
		result.Summary.add(e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	return result, nil
}

func (s *ReplaySummary) add(e Entry) {
	s.Total++
	switch {
	case e.Decision == DecisionOK && e.Event == EventGenerate:
		s.Generated++
	case e.Decision == DecisionOK && e.Event == EventFill:
		s.Filled++
	}
	switch e.Code {
	case string(model.CodeAccessDenied):
		s.Denied++
	case string(model.CodeContextMismatch):
		s.Mismatched++
	case string(model.CodeExpired):
		s.Expired++
	}
	if e.Event == EventGenerate && e.Decision == DecisionOK && e.Trust == string(model.Untrusted) {
		s.Decoys++
	}
	if e.Degraded {
		s.Degraded++
	}
	if s.FirstTimestamp == "" {
		s.FirstTimestamp = e.Timestamp
	}
	s.LastTimestamp = e.Timestamp
}
