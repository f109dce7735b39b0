package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaibhaw-/auditgrep/internal/auditgrep/auditlog"
	"github.com/vaibhaw-/auditgrep/internal/auditgrep/filter"
)

func TestStats_IncrementMatched(t *testing.T) {
	s := NewStats()
	s.RecordsRead = 10
	s.IncrementMatched(filter.Result{Record: auditlog.Record{"NAME": "Query", "STATUS": "0", "USER": "root", "TIMESTAMP": "2014-01-02T10:00:00"}})
	s.IncrementMatched(filter.Result{Record: auditlog.Record{"NAME": "Query", "STATUS": "1046", "USER": "root", "TIMESTAMP": "2014-01-01T10:00:00 UTC"}})
	s.IncrementMatched(filter.Result{Record: auditlog.Record{"NAME": "Connect", "STATUS": "0", "TIMESTAMP": "garbage"}})

	assert.Equal(t, 3, s.Matched)
	assert.Equal(t, map[string]int{"Query": 2, "Connect": 1}, s.ByName)
	assert.Equal(t, map[string]int{"0": 2, "1046": 1}, s.ByStatus)
	assert.Equal(t, map[string]int{"root": 2}, s.ByUser)
	require.NotNil(t, s.FirstTimestamp)
	require.NotNil(t, s.LastTimestamp)
	assert.Equal(t, time.Date(2014, 1, 1, 10, 0, 0, 0, time.UTC), *s.FirstTimestamp)
	assert.Equal(t, time.Date(2014, 1, 2, 10, 0, 0, 0, time.UTC), *s.LastTimestamp)
}

func TestStats_RawResultsOnlyCount(t *testing.T) {
	s := NewStats()
	s.IncrementMatched(filter.Result{Raw: `<AUDIT_RECORD NAME="Quit"/>`})
	assert.Equal(t, 1, s.Matched)
	assert.Empty(t, s.ByName)
	assert.Nil(t, s.FirstTimestamp)
}

func TestStats_PrintSummary(t *testing.T) {
	s := NewStats()
	s.RecordsRead = 5
	s.Digest = "abc"
	s.IncrementMatched(filter.Result{Record: auditlog.Record{"NAME": "Quit", "STATUS": "0", "TIMESTAMP": "2014-01-01T00:00:00"}})
	s.IncrementMatched(filter.Result{Record: auditlog.Record{"NAME": "Query", "STATUS": "0", "TIMESTAMP": "2014-01-01T00:00:01"}})
	s.IncrementMatched(filter.Result{Record: auditlog.Record{"NAME": "Query", "STATUS": "0", "TIMESTAMP": "2014-01-01T00:00:02"}})

	var buf bytes.Buffer
	s.PrintSummary(&buf)
	out := buf.String()

	assert.Contains(t, out, "Records read: 5")
	assert.Contains(t, out, "Matched: 3")
	assert.Contains(t, out, "Digest: abc")
	assert.Contains(t, out, "Time range: 2014-01-01T00:00:00Z to 2014-01-01T00:00:02Z")
	assert.Contains(t, out, "  By event type:\n    Query: 2\n    Quit: 1\n")
	assert.Contains(t, out, "  By status:\n    0: 3\n")
	assert.NotContains(t, out, "By user")
}

func TestStats_GetSummaryMap(t *testing.T) {
	s := NewStats()
	s.RecordsRead = 2
	s.IncrementMatched(filter.Result{Record: auditlog.Record{"NAME": "Quit", "TIMESTAMP": "2014-01-01T00:00:00"}})

	m := s.GetSummaryMap()
	assert.Equal(t, 2, m["records_read"])
	assert.Equal(t, 1, m["matched"])
	assert.NotContains(t, m, "digest")
	assert.Equal(t, map[string]string{"start": "2014-01-01T00:00:00Z", "end": "2014-01-01T00:00:00Z"}, m["time_range"])
}
