package auditlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/vaibhaw-/auditgrep/internal/auditgrep/logger"
)

var (
	// ErrNotOpen is returned when records are requested before Open.
	ErrNotOpen = errors.New("audit log reader is not open")
	// ErrAlreadyOpen is returned by a second Open; readers are single-use.
	ErrAlreadyOpen = errors.New("audit log reader already opened")

	errUnterminated = errors.New("record not terminated before end of log")
)

// Option configures a Reader.
type Option func(*Reader)

// WithFollow keeps reading as the audit log grows, until the context passed
// to Records is cancelled.
func WithFollow(follow bool) Option {
	return func(r *Reader) { r.follow = follow }
}

// WithPolling makes follow mode poll the file instead of using inotify.
func WithPolling(poll bool) Option {
	return func(r *Reader) { r.poll = poll }
}

// Reader presents an audit log as a lazy sequence of entries.
type Reader struct {
	path   string
	follow bool
	poll   bool
	src    lineSource
	opened bool
}

func NewReader(path string, opts ...Option) *Reader {
	r := &Reader{path: path}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Path returns the audit log path.
func (r *Reader) Path() string {
	return r.path
}

// Open opens the audit log for reading.
func (r *Reader) Open(ctx context.Context) error {
	if r.opened {
		return ErrAlreadyOpen
	}
	log := logger.L()

	fi, err := os.Stat(r.path)
	if err != nil {
		return &FileAccessError{Path: r.path, Err: err}
	}
	if fi.IsDir() {
		return &FileAccessError{Path: r.path, Err: errors.New("is a directory")}
	}

	if r.follow {
		src, err := newTailSource(r.path, r.poll)
		if err != nil {
			return &FileAccessError{Path: r.path, Err: err}
		}
		r.src = src
	} else {
		f, err := os.Open(r.path)
		if err != nil {
			return &FileAccessError{Path: r.path, Err: err}
		}
		r.src = newFileSource(f)
	}
	r.opened = true

	log.Debugw("opened audit log", "path", r.path, "size", fi.Size(), "follow", r.follow)
	return nil
}

// Records returns the entries of the log in file order. Iteration stops at
// the first error, which is yielded with an empty Entry.
func (r *Reader) Records(ctx context.Context) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		if r.src == nil {
			yield(Entry{}, ErrNotOpen)
			return
		}
		log := logger.L()

		var asm assembler
		lines := 0
		for {
			line, err := r.src.next(ctx)
			if err != nil {
				if errors.Is(err, io.EOF) {
					if asm.pending() && ctx.Err() == nil {
						yield(Entry{}, &ParseError{Path: r.path, Fragment: asm.text(), Err: errUnterminated})
					}
					return
				}
				yield(Entry{}, fmt.Errorf("read audit log %q: %w", r.path, err))
				return
			}
			lines++

			frag, ok := asm.feed(line)
			if !ok {
				continue
			}

			rec, err := decodeFragment(frag)
			if err != nil {
				if isWrapperLine(frag.text) {
					log.Debugw("skipping wrapper line", "line", lines, "text", frag.text)
					continue
				}
				log.Errorw("malformed audit log fragment", "path", r.path, "line", lines, "err", err.Error())
				yield(Entry{}, &ParseError{Path: r.path, Fragment: frag.text, Err: err})
				return
			}

			if !yield(Entry{Record: rec, Raw: frag.text}, nil) {
				return
			}
		}
	}
}

// Close releases the underlying file. It is safe to call more than once.
func (r *Reader) Close() error {
	if r.src == nil {
		return nil
	}
	err := r.src.close()
	r.src = nil
	return err
}
