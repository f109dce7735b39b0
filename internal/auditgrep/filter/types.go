package filter

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/vaibhaw-/auditgrep/internal/auditgrep/auditlog"
)

// OutputMode selects what the engine collects for each matching record.
type OutputMode int

const (
	// Structured collects the decoded record.
	Structured OutputMode = iota
	// Raw collects the record's original source text.
	Raw
)

// StatusRange is an inclusive range of STATUS values. A single status code is
// represented with Low == High.
type StatusRange struct {
	Low  int
	High int
}

// Contains reports whether v lies within the range.
func (r StatusRange) Contains(v int) bool {
	return v >= r.Low && v <= r.High
}

func (r StatusRange) String() string {
	if r.Low == r.High {
		return fmt.Sprintf("%d", r.Low)
	}
	return fmt.Sprintf("%d-%d", r.Low, r.High)
}

// Options contains the filter criteria for one run. A zero value field
// disables the corresponding predicate; all enabled predicates must pass.
type Options struct {
	Users      []string      // USER or PRIV_USER of the Connect record, correlated by CONNECTION_ID
	EventTypes []string      // NAME values, case-insensitive
	Status     []StatusRange // STATUS codes or inclusive ranges
	Start      *time.Time    // TIMESTAMP lower bound, inclusive
	End        *time.Time    // TIMESTAMP upper bound, inclusive
	QueryTypes []string      // SQL statement keywords matched against SQLTEXT
	Pattern    string        // SQL LIKE pattern, or a regexp when UseRegexp is set
	UseRegexp  bool
	Expr       string // boolean expression over record fields
	OutputMode OutputMode
}

// Result is one matching record. Exactly one of Record or Raw is set,
// depending on the OutputMode.
type Result struct {
	Record auditlog.Record
	Raw    string
}

// RecordSource is the sequence of audit log entries the engine consumes.
// *auditlog.Reader implements it.
type RecordSource interface {
	Records(ctx context.Context) iter.Seq2[auditlog.Entry, error]
}

// State is the cross-record state carried through one filter pass.
type State struct {
	Trace ConnectionTrace
	// AuditStart is the most recently seen "Audit" record, if any.
	AuditStart auditlog.Record
}

// Predicate decides whether a record passes one filter criterion. It may
// read the carried state and, for user correlation, fill in missing fields.
type Predicate func(rec auditlog.Record, st *State) bool

// ErrAlreadyRun is returned when an Engine is run a second time.
var ErrAlreadyRun = errors.New("filter engine already ran")

// InvalidPatternError reports a search pattern that does not compile.
type InvalidPatternError struct {
	Pattern string
	Err     error
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid search pattern %q: %v", e.Pattern, e.Err)
}

func (e *InvalidPatternError) Unwrap() error { return e.Err }

// InvalidExpressionError reports a filter expression that does not compile.
type InvalidExpressionError struct {
	Expr string
	Err  error
}

func (e *InvalidExpressionError) Error() string {
	return fmt.Sprintf("invalid filter expression %q: %v", e.Expr, e.Err)
}

func (e *InvalidExpressionError) Unwrap() error { return e.Err }
