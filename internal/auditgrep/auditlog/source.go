package auditlog

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/nxadm/tail"
)

// lineSource yields audit log lines without their terminators.
type lineSource interface {
	// next returns the next line or io.EOF once the source is exhausted.
	next(ctx context.Context) (string, error)
	close() error
}

type fileSource struct {
	f *os.File
	r *bufio.Reader
}

func newFileSource(f *os.File) *fileSource {
	return &fileSource{f: f, r: bufio.NewReaderSize(f, 64*1024)}
}

func (s *fileSource) next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	// ReadString keeps arbitrarily long SQLTEXT lines intact, unlike Scanner.
	line, err := s.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return trimEOL(line), nil
		}
		return "", err
	}
	return trimEOL(line), nil
}

func (s *fileSource) close() error {
	return s.f.Close()
}

// tailSource follows a growing audit log. It never reports io.EOF on its own;
// iteration ends when the context is cancelled or the tail is stopped.
type tailSource struct {
	t *tail.Tail
}

func newTailSource(path string, poll bool) (*tailSource, error) {
	t, err := tail.TailFile(path, tail.Config{
		Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekStart},
		Follow:    true,
		ReOpen:    true,
		MustExist: true,
		Poll:      poll,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return nil, err
	}
	return &tailSource{t: t}, nil
}

func (s *tailSource) next(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", io.EOF
	case line, ok := <-s.t.Lines:
		if !ok {
			if err := s.t.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		if line.Err != nil {
			return "", line.Err
		}
		return trimEOL(line.Text), nil
	}
}

func (s *tailSource) close() error {
	err := s.t.Stop()
	s.t.Cleanup()
	return err
}

func trimEOL(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}
