// Package auditgen writes synthetic MySQL Enterprise Audit logs: interleaved
// sessions of a few users issuing a configurable mix of statements. The
// output is deterministic for a given seed.
package auditgen

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/vaibhaw-/auditgrep/internal/auditgrep/logger"
)

const timestampLayout = "2006-01-02T15:04:05"

// maxOpenSessions bounds how many sessions are interleaved at once.
const maxOpenSessions = 4

// Summary describes a generated log.
type Summary struct {
	Records  int
	Sessions int
	Failed   int            // sessions whose Connect failed
	ByName   map[string]int // records per NAME
	Users    []string       // the database users sessions were drawn from
}

type field struct {
	name, value string
}

type session struct {
	id      int
	user    string
	host    string
	ip      string
	db      string
	queries int
}

type generator struct {
	cfg     Config
	faker   *gofakeit.Faker
	w       *bufio.Writer
	ts      time.Time
	startTS string
	nextRec int
	summary Summary
}

// Generate writes a complete audit log to w. A zero seed picks a random one.
func Generate(w io.Writer, cfg Config) (Summary, error) {
	if err := cfg.normalize(); err != nil {
		return Summary{}, err
	}
	start, _ := time.Parse(timestampLayout, cfg.Start)

	g := &generator{
		cfg:     cfg,
		faker:   gofakeit.New(cfg.Seed),
		w:       bufio.NewWriter(w),
		ts:      start,
		startTS: cfg.Start,
		summary: Summary{ByName: make(map[string]int)},
	}
	for i := 0; i < cfg.DbUsers; i++ {
		g.summary.Users = append(g.summary.Users, fmt.Sprintf("%s%d", g.faker.Username(), i))
	}

	log := logger.L()
	log.Infow("auditgen: start", "schema", cfg.Schema, "sessions", cfg.Sessions, "db_users", cfg.DbUsers, "seed", cfg.Seed)

	g.header()
	g.record("Audit",
		field{"SERVER_ID", fmt.Sprint(cfg.ServerID)},
		field{"VERSION", "1"},
		field{"STARTUP_OPTIONS", "/usr/sbin/mysqld --port=3306"},
		field{"OS_VERSION", "x86_64-Linux"},
		field{"MYSQL_VERSION", "5.7.4-m14-log"},
	)

	var open []*session
	opened := 0
	for opened < cfg.Sessions || len(open) > 0 {
		if opened < cfg.Sessions && (len(open) == 0 || (len(open) < maxOpenSessions && g.faker.Bool())) {
			opened++
			if s := g.connect(opened); s != nil {
				open = append(open, s)
			}
			continue
		}

		i := g.faker.Number(0, len(open)-1)
		s := open[i]
		if s.queries == 0 {
			g.quit(s)
			open = append(open[:i], open[i+1:]...)
			continue
		}
		g.query(s)
		s.queries--
	}

	g.record("NoAudit", field{"SERVER_ID", fmt.Sprint(cfg.ServerID)})
	g.footer()

	if err := g.w.Flush(); err != nil {
		return g.summary, fmt.Errorf("write audit log: %w", err)
	}
	log.Infow("auditgen: done", "records", g.summary.Records, "sessions", g.summary.Sessions, "failed", g.summary.Failed)
	return g.summary, nil
}

func (g *generator) connect(n int) *session {
	s := &session{
		id:      1000 + n,
		user:    g.faker.RandomString(g.summary.Users),
		host:    g.faker.RandomString(hosts),
		ip:      g.faker.IPv4Address(),
		db:      g.faker.RandomString([]string{"healthcare", "pharmacy", "payments"}),
		queries: g.faker.Number(g.cfg.QueriesPerSession.Min, g.cfg.QueriesPerSession.Max),
	}
	g.summary.Sessions++

	status := 0
	if g.failed() {
		status = g.faker.RandomInt([]int{1044, 1045})
	}
	g.record("Connect",
		field{"CONNECTION_ID", fmt.Sprint(s.id)},
		field{"STATUS", fmt.Sprint(status)},
		field{"STATUS_CODE", statusCode(status)},
		field{"USER", s.user},
		field{"OS_LOGIN", ""},
		field{"PROXY_USER", ""},
		field{"PRIV_USER", s.user},
		field{"HOST", s.host},
		field{"IP", s.ip},
		field{"DB", s.db},
	)
	if status != 0 {
		g.summary.Failed++
		return nil
	}
	return s
}

func (g *generator) query(s *session) {
	class, sql := g.statement(s)
	status := 0
	if g.failed() {
		status = g.faker.RandomInt(failureStatuses)
	}
	fields := []field{
		{"CONNECTION_ID", fmt.Sprint(s.id)},
		{"STATUS", fmt.Sprint(status)},
		{"STATUS_CODE", statusCode(status)},
	}
	// Legacy Query records do not repeat the session's user.
	if g.cfg.Schema == SchemaNew {
		fields = append(fields,
			field{"USER", s.user + "[" + s.user + "] @ " + s.host + " [" + s.ip + "]"},
			field{"OS_LOGIN", ""},
			field{"HOST", s.host},
			field{"IP", s.ip},
			field{"COMMAND_CLASS", class},
		)
	}
	fields = append(fields, field{"SQLTEXT", sql})
	g.record("Query", fields...)
}

func (g *generator) quit(s *session) {
	g.record("Quit",
		field{"CONNECTION_ID", fmt.Sprint(s.id)},
		field{"STATUS", "0"},
		field{"STATUS_CODE", "0"},
	)
}

// statement returns the command class and text of a random statement.
func (g *generator) statement(s *session) (string, string) {
	m := g.cfg.Mix
	comment := ""
	if g.faker.Number(0, 9) == 0 {
		comment = fmt.Sprintf("/* app=%s conn=%d */ ", s.host, s.id)
	}
	table := g.faker.RandomString(tables)
	id := g.faker.Number(1, 100000)

	p := g.faker.Float64()
	switch {
	case p < m.Select:
		if g.cfg.Schema == SchemaNew && g.faker.Number(0, 4) == 0 {
			// Long statements are wrapped over several lines in the log.
			return "select", comment + "SELECT *\nFROM " + table + "\nWHERE id = " + fmt.Sprint(id)
		}
		return "select", fmt.Sprintf("%sSELECT * FROM %s WHERE id = %d", comment, table, id)
	case p < m.Select+m.Update:
		return "update", fmt.Sprintf("%sUPDATE %s SET updated_at = NOW() WHERE id = %d", comment, table, id)
	case p < m.Select+m.Update+m.Insert:
		return "insert", fmt.Sprintf("%sINSERT INTO healthcare_encounter (patient_id, diagnosis) VALUES (%d, '%s')",
			comment, id, sqlEscape(g.faker.RandomString(diagnoses)))
	case p < m.Select+m.Update+m.Insert+m.Delete:
		return "delete", fmt.Sprintf("%sDELETE FROM pharmacy_order WHERE drug = '%s' AND id < %d",
			comment, sqlEscape(g.faker.RandomString(drugNames)), id)
	case p < m.Select+m.Update+m.Insert+m.Delete+m.Set:
		return "set_option", fmt.Sprintf("SET @batch = %d", id)
	default:
		return "commit", "COMMIT"
	}
}

func (g *generator) failed() bool {
	return g.cfg.FailureRate > 0 && g.faker.Float64() < g.cfg.FailureRate
}

// record writes one AUDIT_RECORD. Empty optional values are kept, as the
// server writes them.
func (g *generator) record(name string, fields ...field) {
	g.nextRec++
	ts := g.ts.Format(timestampLayout)
	g.ts = g.ts.Add(time.Duration(g.faker.Number(0, 2)) * time.Second)
	g.summary.Records++
	g.summary.ByName[name]++

	if g.cfg.Schema == SchemaLegacy {
		fmt.Fprintf(g.w, `<AUDIT_RECORD TIMESTAMP="%s" NAME="%s"`, ts, name)
		for _, f := range fields {
			if f.name == "STATUS_CODE" {
				continue
			}
			fmt.Fprintf(g.w, ` %s="%s"`, f.name, escape(f.value))
		}
		g.w.WriteString("/>\n")
		return
	}

	g.w.WriteString(" <AUDIT_RECORD>\n")
	fmt.Fprintf(g.w, "  <TIMESTAMP>%s UTC</TIMESTAMP>\n", ts)
	fmt.Fprintf(g.w, "  <RECORD_ID>%d_%s</RECORD_ID>\n", g.nextRec, g.startTS)
	fmt.Fprintf(g.w, "  <NAME>%s</NAME>\n", name)
	for _, f := range fields {
		fmt.Fprintf(g.w, "  <%s>%s</%s>\n", f.name, escape(f.value), f.name)
	}
	g.w.WriteString(" </AUDIT_RECORD>\n")
}

func (g *generator) header() {
	g.w.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<AUDIT>\n")
}

func (g *generator) footer() {
	g.w.WriteString("</AUDIT>\n")
}

func statusCode(status int) string {
	if status == 0 {
		return "0"
	}
	return "1"
}

var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func escape(s string) string {
	return xmlEscaper.Replace(s)
}

// sqlEscape escapes single quotes for inline SQL literals.
func sqlEscape(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
