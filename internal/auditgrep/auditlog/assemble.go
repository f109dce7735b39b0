package auditlog

import "strings"

type schema int

const (
	schemaNone   schema = iota // prolog, wrapper tags or garbage
	schemaLegacy               // <AUDIT_RECORD NAME="..." ... />
	schemaNew                  // <AUDIT_RECORD> with child elements
)

const (
	recordOpenNew   = "<AUDIT_RECORD>"
	recordOpenOld   = "<AUDIT_RECORD"
	recordCloseNew  = "</AUDIT_RECORD>"
	recordCloseOld  = "/>"
	wrapperOpenTag  = "<AUDIT>"
	wrapperCloseTag = "</AUDIT>"
)

// fragment is one complete top-level piece of the log.
type fragment struct {
	text   string
	schema schema
}

// assembler accumulates lines until a complete top-level fragment is available.
type assembler struct {
	buf    strings.Builder
	schema schema
	open   bool
}

// feed consumes one line and reports a fragment once one is complete.
func (a *assembler) feed(line string) (fragment, bool) {
	t := strings.TrimSpace(line)

	if !a.open {
		switch {
		case t == "":
			return fragment{}, false
		case strings.HasPrefix(t, recordOpenNew):
			a.schema = schemaNew
			if strings.HasSuffix(t, recordCloseNew) {
				a.buf.WriteString(line)
				return a.flush(), true
			}
			a.open = true
			a.buf.WriteString(line)
			a.buf.WriteByte('\n')
			return fragment{}, false
		case strings.HasPrefix(t, recordOpenOld):
			a.schema = schemaLegacy
			a.buf.WriteString(t)
			if strings.HasSuffix(t, recordCloseOld) {
				return a.flush(), true
			}
			a.open = true
			a.buf.WriteByte('\n')
			return fragment{}, false
		default:
			a.schema = schemaNone
			a.buf.WriteString(t)
			return a.flush(), true
		}
	}

	if a.schema == schemaNew {
		if strings.HasSuffix(t, recordCloseNew) {
			a.buf.WriteString(line)
			return a.flush(), true
		}
		a.buf.WriteString(line)
		// Tag lines keep their break. Anything else is SQL text split over
		// several lines and is rejoined into one logical string.
		if strings.HasPrefix(t, "<") && strings.HasSuffix(t, ">") {
			a.buf.WriteByte('\n')
		}
		return fragment{}, false
	}

	a.buf.WriteString(line)
	if strings.HasSuffix(t, recordCloseOld) {
		return a.flush(), true
	}
	a.buf.WriteByte('\n')
	return fragment{}, false
}

// pending reports whether a record was opened but never closed.
func (a *assembler) pending() bool {
	return a.open
}

func (a *assembler) text() string {
	return a.buf.String()
}

func (a *assembler) flush() fragment {
	f := fragment{text: a.buf.String(), schema: a.schema}
	a.buf.Reset()
	a.open = false
	a.schema = schemaNone
	return f
}

// isWrapperLine reports top-level lines that are not records but are expected
// in a well-formed audit log.
func isWrapperLine(text string) bool {
	t := strings.TrimSpace(text)
	switch {
	case t == wrapperOpenTag, t == wrapperCloseTag:
		return true
	case strings.HasPrefix(t, "<?xml") && strings.HasSuffix(t, "?>"):
		return true
	}
	return false
}
