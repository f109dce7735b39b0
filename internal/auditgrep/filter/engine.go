package filter

import (
	"context"
	"strings"

	"github.com/vaibhaw-/auditgrep/internal/auditgrep/auditlog"
	"github.com/vaibhaw-/auditgrep/internal/auditgrep/logger"
)

const (
	auditStartEvent = "audit"
	connectEvent    = "connect"
)

type namedPredicate struct {
	name string
	fn   Predicate
}

// Engine applies Options to the entries of one audit log in a single pass.
// It is not reusable: create a new Engine, over a new reader, per run.
type Engine struct {
	src        RecordSource
	opts       Options
	users      map[string]struct{}
	predicates []namedPredicate

	state   State
	results []Result
	read    int
	matched int
	ran     bool
}

// New builds an Engine. The search pattern and expression are compiled here,
// before any record is read.
func New(src RecordSource, opts Options) (*Engine, error) {
	e := &Engine{src: src, opts: opts}

	if len(opts.Users) > 0 {
		e.users = make(map[string]struct{}, len(opts.Users))
		for _, u := range opts.Users {
			e.users[u] = struct{}{}
		}
		e.predicates = append(e.predicates, namedPredicate{"users", FilterByUsers()})
	}
	if len(opts.EventTypes) > 0 {
		e.predicates = append(e.predicates, namedPredicate{"event_type", FilterByEventType(opts.EventTypes)})
	}
	if len(opts.Status) > 0 {
		e.predicates = append(e.predicates, namedPredicate{"status", FilterByStatus(opts.Status)})
	}
	if opts.Start != nil || opts.End != nil {
		e.predicates = append(e.predicates, namedPredicate{"datetime", FilterByDatetime(opts.Start, opts.End)})
	}
	if len(opts.QueryTypes) > 0 {
		e.predicates = append(e.predicates, namedPredicate{"query_type", FilterByQueryType(opts.QueryTypes)})
	}
	if opts.Pattern != "" {
		re, err := compilePattern(opts.Pattern, opts.UseRegexp)
		if err != nil {
			return nil, err
		}
		e.predicates = append(e.predicates, namedPredicate{"pattern", FilterByPattern(re)})
	}
	if opts.Expr != "" {
		program, err := compileExpr(opts.Expr)
		if err != nil {
			return nil, err
		}
		e.predicates = append(e.predicates, namedPredicate{"expr", FilterByExpr(program)})
	}
	return e, nil
}

// Each streams matching results to fn in file order. It stops at the first
// read error or the first error returned by fn.
func (e *Engine) Each(ctx context.Context, fn func(Result) error) error {
	if e.ran {
		return ErrAlreadyRun
	}
	e.ran = true
	log := logger.L()

	for entry, err := range e.src.Records(ctx) {
		if err != nil {
			return err
		}
		e.read++
		rec := entry.Record

		name := strings.ToLower(rec[auditlog.FieldName])
		if name == auditStartEvent {
			e.state.AuditStart = rec
		}
		// Tracking runs before any predicate: later records of the session
		// are only recognisable through this Connect record.
		if e.users != nil && name == connectEvent {
			e.track(rec)
		}

		if failed := e.firstFailing(rec); failed != "" {
			log.Debugw("record rejected", "name", rec[auditlog.FieldName],
				"timestamp", rec[auditlog.FieldTimestamp], "predicate", failed)
			continue
		}
		e.matched++

		res := Result{Record: rec}
		if e.opts.OutputMode == Raw {
			res = Result{Raw: entry.Raw}
		}
		if err := fn(res); err != nil {
			return err
		}
	}
	return nil
}

// Run consumes the whole log and accumulates the results.
func (e *Engine) Run(ctx context.Context) error {
	return e.Each(ctx, func(r Result) error {
		e.results = append(e.results, r)
		return nil
	})
}

// Results returns a copy of the accumulated matches, or nil if nothing
// matched.
func (e *Engine) Results() []Result {
	if len(e.results) == 0 {
		return nil
	}
	out := make([]Result, len(e.results))
	copy(out, e.results)
	return out
}

// Trace returns the connections traced so far.
func (e *Engine) Trace() []Connection {
	return e.state.Trace.All()
}

// Read returns the number of records read.
func (e *Engine) Read() int {
	return e.read
}

// Matched returns the number of records that passed every predicate.
func (e *Engine) Matched() int {
	return e.matched
}

func (e *Engine) track(rec auditlog.Record) {
	user := rec[auditlog.FieldUser]
	priv := rec[auditlog.FieldPrivUser]
	_, userOK := e.users[user]
	_, privOK := e.users[priv]
	if !userOK && !privOK {
		return
	}
	id, ok := rec.Get(auditlog.FieldConnectionID)
	if !ok {
		return
	}
	e.state.Trace.Add(Connection{User: user, PrivUser: priv, ConnectionID: id})
	logger.L().Debugw("traced connection", "user", user, "priv_user", priv, "connection_id", id)
}

// firstFailing returns the name of the first predicate rec fails, or "".
func (e *Engine) firstFailing(rec auditlog.Record) string {
	for _, p := range e.predicates {
		if !p.fn(rec, &e.state) {
			return p.name
		}
	}
	return ""
}
