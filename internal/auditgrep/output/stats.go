package output

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/vaibhaw-/auditgrep/internal/auditgrep/auditlog"
	"github.com/vaibhaw-/auditgrep/internal/auditgrep/filter"
)

// Stats tracks statistics about one grep run for the --summary output and
// the run log.
//
// In raw mode only RecordsRead and Matched are tracked: raw results carry no
// decoded fields to break down.
type Stats struct {
	RecordsRead    int            // Records read from the log, matched or not
	Matched        int            // Records that passed all filters
	ByName         map[string]int // Matches by NAME (event type)
	ByStatus       map[string]int // Matches by STATUS
	ByUser         map[string]int // Matches by USER
	FirstTimestamp *time.Time     // Earliest matched TIMESTAMP
	LastTimestamp  *time.Time     // Latest matched TIMESTAMP
	Digest         string         // Head of the result digest chain, if computed
}

// NewStats creates a Stats with initialized maps.
func NewStats() *Stats {
	return &Stats{
		ByName:   make(map[string]int),
		ByStatus: make(map[string]int),
		ByUser:   make(map[string]int),
	}
}

// IncrementMatched counts a matching result and updates the breakdowns.
func (s *Stats) IncrementMatched(r filter.Result) {
	s.Matched++
	if r.Record == nil {
		return
	}
	rec := r.Record

	if name := rec[auditlog.FieldName]; name != "" {
		s.ByName[name]++
	}
	if status, ok := rec[auditlog.FieldStatus]; ok {
		s.ByStatus[status]++
	}
	if user, ok := rec[auditlog.FieldUser]; ok && user != "" {
		s.ByUser[user]++
	}

	if ts, err := filter.ParseRecordTime(rec[auditlog.FieldTimestamp]); err == nil {
		if s.FirstTimestamp == nil || ts.Before(*s.FirstTimestamp) {
			s.FirstTimestamp = &ts
		}
		if s.LastTimestamp == nil || ts.After(*s.LastTimestamp) {
			s.LastTimestamp = &ts
		}
	}
}

// PrintSummary prints a human-readable summary. Breakdowns are sorted by
// count (descending) then by key.
func (s *Stats) PrintSummary(w io.Writer) {
	fmt.Fprintf(w, "Summary:\n")
	fmt.Fprintf(w, "  Records read: %d\n", s.RecordsRead)

	if s.FirstTimestamp != nil && s.LastTimestamp != nil {
		fmt.Fprintf(w, "  Time range: %s to %s\n",
			s.FirstTimestamp.Format(time.RFC3339),
			s.LastTimestamp.Format(time.RFC3339))
	}

	fmt.Fprintf(w, "  Matched: %d\n", s.Matched)
	if s.Digest != "" {
		fmt.Fprintf(w, "  Digest: %s\n", s.Digest)
	}
	fmt.Fprintf(w, "\n")

	if len(s.ByName) > 0 {
		fmt.Fprintf(w, "  By event type:\n")
		s.printSortedMap(w, s.ByName, "    ")
		fmt.Fprintf(w, "\n")
	}

	if len(s.ByStatus) > 0 {
		fmt.Fprintf(w, "  By status:\n")
		s.printSortedMap(w, s.ByStatus, "    ")
		fmt.Fprintf(w, "\n")
	}

	if len(s.ByUser) > 0 {
		fmt.Fprintf(w, "  By user:\n")
		s.printSortedMap(w, s.ByUser, "    ")
		fmt.Fprintf(w, "\n")
	}
}

func (s *Stats) printSortedMap(w io.Writer, m map[string]int, indent string) {
	type kv struct {
		key   string
		value int
	}

	pairs := make([]kv, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, kv{k, v})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].value == pairs[j].value {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].value > pairs[j].value
	})

	for _, pair := range pairs {
		fmt.Fprintf(w, "%s%s: %d\n", indent, pair.key, pair.value)
	}
}

// GetSummaryMap returns the statistics as a map for the run log.
func (s *Stats) GetSummaryMap() map[string]interface{} {
	summary := map[string]interface{}{
		"records_read": s.RecordsRead,
		"matched":      s.Matched,
		"by_name":      s.ByName,
		"by_status":    s.ByStatus,
		"by_user":      s.ByUser,
	}
	if s.Digest != "" {
		summary["digest"] = s.Digest
	}

	if s.FirstTimestamp != nil && s.LastTimestamp != nil {
		summary["time_range"] = map[string]string{
			"start": s.FirstTimestamp.Format(time.RFC3339),
			"end":   s.LastTimestamp.Format(time.RFC3339),
		}
	}

	return summary
}
