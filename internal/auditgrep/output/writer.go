package output

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/vaibhaw-/auditgrep/internal/auditgrep/auditlog"
	"github.com/vaibhaw-/auditgrep/internal/auditgrep/filter"
)

// Format is an output format name as given on the command line.
type Format string

const (
	FormatGrid     Format = "GRID"
	FormatCSV      Format = "CSV"
	FormatTab      Format = "TAB"
	FormatVertical Format = "VERTICAL"
	FormatRaw      Format = "RAW"
	FormatJSON     Format = "JSON"
	FormatYAML     Format = "YAML"
)

var formats = []Format{FormatGrid, FormatCSV, FormatTab, FormatVertical, FormatRaw, FormatJSON, FormatYAML}

// ErrRawResult is returned when a structured format receives a raw result.
var ErrRawResult = errors.New("raw result given to a structured output format")

// ParseFormat resolves a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	for _, f := range formats {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	return "", fmt.Errorf("unsupported output format %q (supported: %s)", s, strings.Join(names, ", "))
}

// Streaming reports whether results are written as they arrive. Tabular
// formats need every result first to size and name their columns.
func (f Format) Streaming() bool {
	switch f {
	case FormatRaw, FormatJSON, FormatVertical:
		return true
	}
	return false
}

// Writer renders filter results.
type Writer interface {
	Write(r filter.Result) error
	// Flush writes anything buffered. It must be called once, at the end.
	Flush() error
}

// NewWriter returns a Writer rendering to w in format f.
func NewWriter(w io.Writer, f Format) Writer {
	switch f {
	case FormatRaw:
		return &rawWriter{w: w}
	case FormatJSON:
		return &jsonWriter{w: w}
	case FormatVertical:
		return &verticalWriter{w: w}
	default:
		return &bufferedWriter{w: w, format: f}
	}
}

type rawWriter struct {
	w io.Writer
}

func (rw *rawWriter) Write(r filter.Result) error {
	text := r.Raw
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	_, err := io.WriteString(rw.w, text)
	return err
}

func (rw *rawWriter) Flush() error { return nil }

type jsonWriter struct {
	w io.Writer
}

func (jw *jsonWriter) Write(r filter.Result) error {
	if r.Record == nil {
		return ErrRawResult
	}
	return WriteRecordNDJSON(jw.w, r.Record)
}

func (jw *jsonWriter) Flush() error { return nil }

// WriteRecordNDJSON writes a record as a single JSON line.
func WriteRecordNDJSON(w io.Writer, rec auditlog.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record to JSON: %w", err)
	}
	if _, err := fmt.Fprintln(w, string(data)); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

type verticalWriter struct {
	w   io.Writer
	row int
}

func (vw *verticalWriter) Write(r filter.Result) error {
	if r.Record == nil {
		return ErrRawResult
	}
	vw.row++
	keys := r.Record.Keys()
	width := 0
	for _, k := range keys {
		if n := utf8.RuneCountInString(k); n > width {
			width = n
		}
	}
	if _, err := fmt.Fprintf(vw.w, "%s %d. row %s\n", stars, vw.row, stars); err != nil {
		return err
	}
	for _, k := range keys {
		if _, err := fmt.Fprintf(vw.w, "%*s: %s\n", width, k, r.Record[k]); err != nil {
			return err
		}
	}
	return nil
}

func (vw *verticalWriter) Flush() error {
	_, err := fmt.Fprintf(vw.w, "%d %s.\n", vw.row, plural(vw.row, "row", "rows"))
	return err
}

const stars = "***************************"

type bufferedWriter struct {
	w       io.Writer
	format  Format
	records []auditlog.Record
}

func (bw *bufferedWriter) Write(r filter.Result) error {
	if r.Record == nil {
		return ErrRawResult
	}
	bw.records = append(bw.records, r.Record)
	return nil
}

func (bw *bufferedWriter) Flush() error {
	switch bw.format {
	case FormatCSV:
		return writeDelimited(bw.w, bw.records, ',')
	case FormatTab:
		return writeDelimited(bw.w, bw.records, '\t')
	case FormatYAML:
		return writeYAML(bw.w, bw.records)
	default:
		return writeGrid(bw.w, bw.records)
	}
}

// Columns returns the union of fields present in records, in
// auditlog.FieldOrder with unknown fields last.
func Columns(records []auditlog.Record) []string {
	present := make(map[string]struct{})
	for _, r := range records {
		for k := range r {
			present[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(present))
	for _, f := range auditlog.FieldOrder {
		if _, ok := present[f]; ok {
			cols = append(cols, f)
			delete(present, f)
		}
	}
	extra := make([]string, 0, len(present))
	for k := range present {
		extra = append(extra, k)
	}
	sort.Strings(extra)
	return append(cols, extra...)
}

func writeDelimited(w io.Writer, records []auditlog.Record, sep rune) error {
	if len(records) == 0 {
		return nil
	}
	cols := Columns(records)
	cw := csv.NewWriter(w)
	cw.Comma = sep
	if err := cw.Write(cols); err != nil {
		return err
	}
	row := make([]string, len(cols))
	for _, r := range records {
		for i, c := range cols {
			row[i] = r[c]
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeGrid(w io.Writer, records []auditlog.Record) error {
	if len(records) == 0 {
		return nil
	}
	cols := Columns(records)
	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = utf8.RuneCountInString(c)
		for _, r := range records {
			if n := utf8.RuneCountInString(r[c]); n > widths[i] {
				widths[i] = n
			}
		}
	}

	var b strings.Builder
	sep := gridSeparator(widths)
	b.WriteString(sep)
	writeGridRow(&b, cols, widths)
	b.WriteString(sep)
	row := make([]string, len(cols))
	for _, r := range records {
		for i, c := range cols {
			row[i] = r[c]
		}
		writeGridRow(&b, row, widths)
	}
	b.WriteString(sep)
	fmt.Fprintf(&b, "%d %s.\n", len(records), plural(len(records), "row", "rows"))

	_, err := io.WriteString(w, b.String())
	return err
}

func gridSeparator(widths []int) string {
	var b strings.Builder
	b.WriteByte('+')
	for _, w := range widths {
		b.WriteString(strings.Repeat("-", w+2))
		b.WriteByte('+')
	}
	b.WriteByte('\n')
	return b.String()
}

func writeGridRow(b *strings.Builder, cells []string, widths []int) {
	b.WriteByte('|')
	for i, c := range cells {
		b.WriteByte(' ')
		b.WriteString(c)
		b.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(c)+1))
		b.WriteByte('|')
	}
	b.WriteByte('\n')
}

// writeYAML writes records as a YAML sequence, keeping field order.
func writeYAML(w io.Writer, records []auditlog.Record) error {
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, r := range records {
		m := &yaml.Node{Kind: yaml.MappingNode}
		for _, k := range r.Keys() {
			m.Content = append(m.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: r[k]},
			)
		}
		seq.Content = append(seq.Content, m)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(seq); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
