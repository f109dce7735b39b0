package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// EventTypes lists the audit record NAME values known to MySQL Enterprise
// Audit.
var EventTypes = []string{
	"Audit", "Binlog Dump", "Change user", "Close stmt", "Connect Out",
	"Connect", "Create DB", "Daemon", "Debug", "Delayed insert", "Drop DB",
	"Execute", "Fetch", "Field List", "Init DB", "Kill", "Long Data",
	"NoAudit", "Ping", "Prepare", "Processlist", "Query", "Quit", "Refresh",
	"Register Slave", "Reset stmt", "Set option", "Shutdown", "Sleep",
	"Statistics", "Table Dump", "Time",
}

// datetimeLayout is the layout of audit TIMESTAMP values, without the " UTC"
// suffix newer servers append.
const datetimeLayout = "2006-01-02T15:04:05"

var datetimeLayouts = []string{
	datetimeLayout,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDatetime parses a datetime bound. The audit log's own layout
// (yyyy-mm-ddThh:mm:ss) and plain dates are tried first; anything else goes
// through dateparse. Values without a zone are taken as UTC.
func ParseDatetime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty datetime")
	}
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid datetime %q: %w", s, err)
	}
	return t.UTC(), nil
}

// ParseRecordTime parses a record TIMESTAMP such as "2013-09-16T09:16:46" or
// "2014-01-01T00:00:05 UTC".
func ParseRecordTime(ts string) (time.Time, error) {
	if len(ts) >= len(datetimeLayout) {
		if t, err := time.Parse(datetimeLayout, ts[:len(datetimeLayout)]); err == nil {
			return t, nil
		}
	}
	t, err := dateparse.ParseIn(ts, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// ParseStatus parses a comma separated list of status codes and inclusive
// ranges, e.g. "1045-1047,1226".
func ParseStatus(s string) ([]StatusRange, error) {
	var ranges []StatusRange
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		low, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("invalid status value %q", part)
		}
		high := low
		if isRange {
			high, err = strconv.Atoi(strings.TrimSpace(hi))
			if err != nil {
				return nil, fmt.Errorf("invalid status value %q", part)
			}
		}
		if low > high {
			return nil, fmt.Errorf("invalid status range %q: lower bound above upper bound", part)
		}
		ranges = append(ranges, StatusRange{Low: low, High: high})
	}
	if len(ranges) == 0 {
		return nil, fmt.Errorf("no status values in %q", s)
	}
	return ranges, nil
}

// ValidateEventTypes checks each type against EventTypes, case-insensitively.
func ValidateEventTypes(types []string) error {
	return validateMembers("event type", types, EventTypes)
}

// ValidateQueryTypes checks each type against QueryTypes, case-insensitively.
func ValidateQueryTypes(types []string) error {
	return validateMembers("query type", types, QueryTypes)
}

func validateMembers(kind string, values, allowed []string) error {
	for _, v := range values {
		if !matchesAny(v, allowed) {
			return fmt.Errorf("unsupported %s %q (supported: %s)", kind, v, strings.Join(allowed, ", "))
		}
	}
	return nil
}

// matchesAny checks if any candidate equals target, case-insensitively.
func matchesAny(target string, candidates []string) bool {
	for _, candidate := range candidates {
		if strings.EqualFold(target, candidate) {
			return true
		}
	}
	return false
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.ToLower(strings.TrimSpace(v)))
	}
	return out
}

// compilePattern compiles the search pattern. SQL LIKE patterns must match a
// whole value, case-insensitively; regular expressions only need to match at
// the start of a value.
func compilePattern(pattern string, useRegexp bool) (*regexp.Regexp, error) {
	expr := likeToRegexp(pattern)
	if useRegexp {
		expr = `^(?:` + pattern + `)`
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, &InvalidPatternError{Pattern: pattern, Err: err}
	}
	return re, nil
}

// likeToRegexp converts an SQL LIKE pattern: % matches any run of characters,
// _ a single character and a backslash escapes the next character.
func likeToRegexp(like string) string {
	var b strings.Builder
	b.WriteString(`(?is)^`)
	escaped := false
	for _, r := range like {
		switch {
		case escaped:
			b.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
		case r == '\\':
			escaped = true
		case r == '%':
			b.WriteString(`.*`)
		case r == '_':
			b.WriteString(`.`)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	if escaped {
		b.WriteString(`\\`)
	}
	b.WriteString(`$`)
	return b.String()
}
