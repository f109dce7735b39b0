package filter

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/vaibhaw-/auditgrep/internal/auditgrep/auditlog"
)

// FilterByUsers matches records whose CONNECTION_ID belongs to a connection
// traced for one of the users of interest.
//
// Only Connect records carry the user identity, so a matching record gets
// USER and PRIV_USER copied from the traced connection, and SERVER_ID from
// the last Audit record when one has been seen.
//
// Records without CONNECTION_ID never match.
func FilterByUsers() Predicate {
	return func(rec auditlog.Record, st *State) bool {
		id, ok := rec.Get(auditlog.FieldConnectionID)
		if !ok {
			return false
		}
		conn, ok := st.Trace.Lookup(id)
		if !ok {
			return false
		}
		if conn.User != "" {
			rec[auditlog.FieldUser] = conn.User
		}
		if conn.PrivUser != "" {
			rec[auditlog.FieldPrivUser] = conn.PrivUser
		}
		if st.AuditStart != nil {
			if sid, ok := st.AuditStart.Get(auditlog.FieldServerID); ok {
				rec[auditlog.FieldServerID] = sid
			}
		}
		return true
	}
}

// FilterByEventType matches records whose NAME is one of types.
//
// Examples:
// - FilterByEventType(["query"]) matches NAME="Query"
// - FilterByEventType(["connect", "quit"]) matches session open and close
//
// The filter is case-insensitive.
func FilterByEventType(types []string) Predicate {
	set := make(map[string]struct{}, len(types))
	for _, t := range lowerAll(types) {
		set[t] = struct{}{}
	}
	return func(rec auditlog.Record, _ *State) bool {
		_, ok := set[strings.ToLower(rec[auditlog.FieldName])]
		return ok
	}
}

// FilterByStatus matches records whose STATUS is in one of ranges.
// A missing or non-numeric STATUS is a non-match.
func FilterByStatus(ranges []StatusRange) Predicate {
	return func(rec auditlog.Record, _ *State) bool {
		s, ok := rec.Get(auditlog.FieldStatus)
		if !ok {
			return false
		}
		v, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return false
		}
		for _, r := range ranges {
			if r.Contains(v) {
				return true
			}
		}
		return false
	}
}

// FilterByDatetime matches records whose TIMESTAMP lies within [start, end].
// A nil bound leaves that side open. Unparsable timestamps never match.
func FilterByDatetime(start, end *time.Time) Predicate {
	return func(rec auditlog.Record, _ *State) bool {
		ts, err := ParseRecordTime(rec[auditlog.FieldTimestamp])
		if err != nil {
			return false
		}
		if start != nil && ts.Before(*start) {
			return false
		}
		if end != nil && ts.After(*end) {
			return false
		}
		return true
	}
}

// FilterByQueryType matches records whose SQLTEXT contains a statement of
// one of types, see matchesQueryType.
func FilterByQueryType(types []string) Predicate {
	lowered := lowerAll(types)
	return func(rec auditlog.Record, _ *State) bool {
		sql, ok := rec.Get(auditlog.FieldSQLText)
		if !ok {
			return false
		}
		return matchesQueryType(sql, lowered)
	}
}

// FilterByPattern matches records with at least one field value matched by re.
func FilterByPattern(re *regexp.Regexp) Predicate {
	return func(rec auditlog.Record, _ *State) bool {
		for _, v := range rec {
			if re.MatchString(v) {
				return true
			}
		}
		return false
	}
}

// compileExpr compiles a boolean expression over record fields, e.g.
// `NAME == "Query" && STATUS != "0"`. Fields absent from a record are nil.
func compileExpr(src string) (*vm.Program, error) {
	program, err := expr.Compile(src, expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, &InvalidExpressionError{Expr: src, Err: err}
	}
	return program, nil
}

// FilterByExpr matches records for which program evaluates to true. Runtime
// errors count as a non-match.
func FilterByExpr(program *vm.Program) Predicate {
	return func(rec auditlog.Record, _ *State) bool {
		env := make(map[string]any, len(rec))
		for k, v := range rec {
			env[k] = v
		}
		out, err := expr.Run(program, env)
		if err != nil {
			return false
		}
		b, ok := out.(bool)
		return ok && b
	}
}
