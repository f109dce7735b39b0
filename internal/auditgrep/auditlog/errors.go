package auditlog

import "fmt"

// FileAccessError reports an audit log that cannot be opened.
type FileAccessError struct {
	Path string
	Err  error
}

func (e *FileAccessError) Error() string {
	return fmt.Sprintf("cannot access audit log file %q: %v", e.Path, e.Err)
}

func (e *FileAccessError) Unwrap() error { return e.Err }

// ParseError reports a fragment of the audit log that is neither an
// AUDIT_RECORD element nor one of the tolerated wrapper lines. It aborts the
// whole read.
type ParseError struct {
	Path     string
	Fragment string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed XML, cannot parse log file %q: invalid element %q", e.Path, e.Fragment)
}

func (e *ParseError) Unwrap() error { return e.Err }
