package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/vaibhaw-/auditgrep/internal/auditgrep/auditlog"
	"github.com/vaibhaw-/auditgrep/internal/auditgrep/digest"
	"github.com/vaibhaw-/auditgrep/internal/auditgrep/filter"
	"github.com/vaibhaw-/auditgrep/internal/auditgrep/logger"
	"github.com/vaibhaw-/auditgrep/internal/auditgrep/output"
	"github.com/vaibhaw-/auditgrep/internal/auditgrep/server"
)

const progressEvery = 1000

var (
	// ErrNoAuditLog is returned when neither a log path nor a server is given.
	ErrNoAuditLog = errors.New("no audit log given: pass a log file or --server")
	// ErrFollowNeedsStreaming is returned for --follow with a format that
	// buffers results until the end of the log.
	ErrFollowNeedsStreaming = errors.New("follow mode needs a streaming output format (RAW, JSON or VERTICAL)")

	errLimitReached = errors.New("result limit reached")
)

// GrepOptions configures one grep run.
type GrepOptions struct {
	LogPath       string        // audit log file; resolved from Server when empty
	Server        string        // user[:password]@host[:port][:socket]
	ServerTimeout time.Duration // connect timeout for Server
	Follow        bool          // keep reading as the log grows
	Poll          bool          // poll instead of inotify in follow mode
	Filter        filter.Options
	Format        output.Format
	Limit         int    // stop after this many matches; 0 means no limit
	Summary       bool   // print run statistics to the error writer
	RunLog        string // NDJSON file run summaries are appended to
}

// RunSummary is appended to the run log after each grep run.
type RunSummary struct {
	RunID       string                 `json:"run_id"`
	Timestamp   string                 `json:"timestamp"`
	Input       string                 `json:"input"`
	Format      string                 `json:"format"`
	RecordsRead int                    `json:"records_read"`
	Matched     int                    `json:"matched"`
	Digest      string                 `json:"digest"`
	Stats       map[string]interface{} `json:"stats,omitempty"`
	DurationMS  int64                  `json:"duration_ms"`
	Status      string                 `json:"status"`
	Error       string                 `json:"error,omitempty"`
}

// resolveServerLog asks a running server for its audit log path.
var resolveServerLog = func(ctx context.Context, conn string, timeout time.Duration) (string, error) {
	cfg, err := server.ParseConnection(conn)
	if err != nil {
		return "", err
	}
	db, err := server.Connect(ctx, cfg, timeout)
	if err != nil {
		return "", err
	}
	defer db.Close()
	return server.ResolveAuditLogPath(ctx, db)
}

// RunGrep reads one audit log, filters it and writes the matching records to
// out in the requested format. The summary, when requested, goes to errOut.
// The returned Stats are valid even when an error is returned.
func RunGrep(ctx context.Context, opts GrepOptions, out, errOut io.Writer) (*output.Stats, error) {
	log := logger.L()
	start := time.Now()
	stats := output.NewStats()

	if opts.Format == "" {
		opts.Format = output.FormatGrid
	}
	if opts.Format == output.FormatRaw {
		opts.Filter.OutputMode = filter.Raw
	} else if opts.Filter.OutputMode == filter.Raw {
		opts.Format = output.FormatRaw
	}
	if opts.Follow && !opts.Format.Streaming() {
		return stats, ErrFollowNeedsStreaming
	}

	path, err := resolveLogPath(ctx, opts)
	if err != nil {
		return stats, err
	}
	opts.LogPath = path

	log.Infow("starting grep run",
		"input", path,
		"format", opts.Format,
		"follow", opts.Follow,
		"users", opts.Filter.Users,
		"event_types", opts.Filter.EventTypes,
		"query_types", opts.Filter.QueryTypes,
		"pattern", opts.Filter.Pattern)

	chain := digest.NewChain()
	err = grep(ctx, opts, out, stats, chain)
	stats.Digest = chain.Head()

	if opts.Summary {
		stats.PrintSummary(errOut)
	}
	if opts.RunLog != "" {
		summary := newRunSummary(opts, stats, time.Since(start), err)
		if werr := appendRunLog(opts.RunLog, summary); werr != nil {
			log.Errorw("failed to write run log", "path", opts.RunLog, "err", werr.Error())
		} else {
			log.Debugw("wrote run summary", "path", opts.RunLog, "run_id", summary.RunID)
		}
	}

	if err != nil {
		return stats, err
	}

	duration := time.Since(start)
	log.Infow("completed grep run",
		"duration", duration,
		"records_read", stats.RecordsRead,
		"matched", stats.Matched,
		"records_per_second", float64(stats.RecordsRead)/duration.Seconds())
	return stats, nil
}

func grep(ctx context.Context, opts GrepOptions, out io.Writer, stats *output.Stats, chain *digest.Chain) error {
	var readerOpts []auditlog.Option
	if opts.Follow {
		readerOpts = append(readerOpts, auditlog.WithFollow(true), auditlog.WithPolling(opts.Poll))
	}
	reader := auditlog.NewReader(opts.LogPath, readerOpts...)
	if err := reader.Open(ctx); err != nil {
		return err
	}
	defer reader.Close()

	src := &progressSource{src: reader}
	engine, err := filter.New(src, opts.Filter)
	if err != nil {
		return err
	}

	w := output.NewWriter(out, opts.Format)
	err = engine.Each(ctx, func(r filter.Result) error {
		stats.IncrementMatched(r)
		if _, err := chain.Add(r); err != nil {
			return err
		}
		if err := w.Write(r); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
		if opts.Limit > 0 && stats.Matched >= opts.Limit {
			return errLimitReached
		}
		return nil
	})
	stats.RecordsRead = engine.Read()
	if err != nil && !errors.Is(err, errLimitReached) {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

func resolveLogPath(ctx context.Context, opts GrepOptions) (string, error) {
	if opts.LogPath != "" {
		return opts.LogPath, nil
	}
	if opts.Server == "" {
		return "", ErrNoAuditLog
	}
	path, err := resolveServerLog(ctx, opts.Server, opts.ServerTimeout)
	if err != nil {
		return "", fmt.Errorf("resolve audit log from server: %w", err)
	}
	logger.L().Infow("using server audit log", "path", path)
	return path, nil
}

// progressSource logs progress while the engine consumes the reader.
type progressSource struct {
	src filter.RecordSource
}

func (p *progressSource) Records(ctx context.Context) iter.Seq2[auditlog.Entry, error] {
	return func(yield func(auditlog.Entry, error) bool) {
		n := 0
		for entry, err := range p.src.Records(ctx) {
			if err == nil {
				n++
				if n%progressEvery == 0 {
					logger.L().Infow("processing progress", "records_read", n)
				}
			}
			if !yield(entry, err) {
				return
			}
		}
	}
}

func newRunSummary(opts GrepOptions, stats *output.Stats, d time.Duration, err error) RunSummary {
	s := RunSummary{
		RunID:       uuid.NewString(),
		Timestamp:   time.Now().UTC().Format(time.RFC3339Nano),
		Input:       opts.LogPath,
		Format:      string(opts.Format),
		RecordsRead: stats.RecordsRead,
		Matched:     stats.Matched,
		Digest:      stats.Digest,
		Stats:       stats.GetSummaryMap(),
		DurationMS:  d.Milliseconds(),
		Status:      "ok",
	}
	if err != nil {
		s.Status = "error"
		s.Error = err.Error()
	}
	return s
}

func appendRunLog(path string, summary RunSummary) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	return enc.Encode(summary)
}

// RunFileStats writes name, path, size and modification time of each audit
// log to out in the given format.
func RunFileStats(paths []string, format output.Format, out io.Writer) error {
	if format == output.FormatRaw {
		return fmt.Errorf("file stats cannot be printed in %s format", format)
	}
	w := output.NewWriter(out, format)
	for _, p := range paths {
		fs, err := auditlog.Stat(p)
		if err != nil {
			return err
		}
		rec := auditlog.Record{
			"File":          fs.File,
			"Path":          fs.Path,
			"Size":          fmt.Sprintf("%d", fs.Size),
			"Last Modified": fs.Modified.UTC().Format(time.RFC3339),
		}
		if err := w.Write(filter.Result{Record: rec}); err != nil {
			return err
		}
	}
	return w.Flush()
}
