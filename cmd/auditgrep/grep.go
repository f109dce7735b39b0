package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vaibhaw-/auditgrep/internal/auditgrep/config"
	"github.com/vaibhaw-/auditgrep/internal/auditgrep/filter"
	"github.com/vaibhaw-/auditgrep/internal/auditgrep/output"
	"github.com/vaibhaw-/auditgrep/internal/auditgrep/runner"
)

const defaultServerTimeout = 10 * time.Second

var grepCmd = &cobra.Command{
	Use:   "grep [AUDIT_LOG_FILE]",
	Short: "Search an audit log and print matching records",
	Long: "Search a MySQL Enterprise Audit log. All given criteria must match.\n" +
		"The log is read from AUDIT_LOG_FILE, or located through --server.",
	Example: "  auditgrep grep --users=root,app --query-type=delete,drop /var/lib/mysql/audit.log\n" +
		"  auditgrep grep --status=1045-1047 --format=vertical audit.log\n" +
		"  auditgrep grep --pattern='%FROM orders%' --start-date=2014-01-01 audit.log\n" +
		"  auditgrep grep --where='NAME == \"Query\" && DB == \"shop\"' --format=json audit.log",
	Args: cobra.MaximumNArgs(1),
	RunE: runGrep,
}

var (
	flagUsers      []string
	flagEventTypes []string
	flagStatus     string
	flagStartDate  string
	flagEndDate    string
	flagQueryTypes []string
	flagPattern    string
	flagRegexp     bool
	flagWhere      string
	flagFormat     string
	flagRaw        bool
	flagFollow     bool
	flagPoll       bool
	flagServer     string
	flagLimit      int
	flagSummary    bool
	flagRunLog     string
	flagOutput     string
)

func init() {
	f := grepCmd.Flags()
	f.StringSliceVarP(&flagUsers, "users", "u", nil, "users whose sessions to show (USER or PRIV_USER of the Connect record)")
	f.StringSliceVarP(&flagEventTypes, "event-type", "e", nil, "event types (NAME), e.g. Connect,Query,Quit")
	f.StringVar(&flagStatus, "status", "", "status codes or ranges, e.g. 1045-1047,1226")
	f.StringVarP(&flagStartDate, "start-date", "s", "", "earliest TIMESTAMP, yyyy-mm-ddThh:mm:ss")
	f.StringVarP(&flagEndDate, "end-date", "d", "", "latest TIMESTAMP, yyyy-mm-ddThh:mm:ss")
	f.StringSliceVarP(&flagQueryTypes, "query-type", "q", nil, "SQL statement types, e.g. select,update,drop")
	f.StringVarP(&flagPattern, "pattern", "p", "", "SQL LIKE pattern (or regular expression with --regexp) matched against every field")
	f.BoolVarP(&flagRegexp, "regexp", "G", false, "treat --pattern as a regular expression")
	f.StringVar(&flagWhere, "where", "", "boolean expression over record fields, e.g. 'STATUS != \"0\"'")
	f.StringVarP(&flagFormat, "format", "f", "", "output format: GRID, CSV, TAB, VERTICAL, RAW, JSON, YAML (default from config)")
	f.BoolVar(&flagRaw, "raw", false, "print the original record text (same as --format=raw)")
	f.BoolVar(&flagFollow, "follow", false, "keep reading as the log grows (needs RAW, JSON or VERTICAL)")
	f.BoolVar(&flagPoll, "poll", false, "poll the file instead of using inotify with --follow")
	f.StringVar(&flagServer, "server", "", "locate the audit log of a server: user[:password]@host[:port][:socket]")
	f.IntVar(&flagLimit, "limit", 0, "stop after this many matches (0 = no limit)")
	f.BoolVar(&flagSummary, "summary", false, "print run statistics to stderr")
	f.StringVar(&flagRunLog, "run-log", "", "append a JSON run summary to this file")
	f.StringVarP(&flagOutput, "output", "o", "", "output file (default stdout)")
}

func runGrep(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	opts, err := buildGrepOptions(args, cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if flagOutput != "" {
		f, err := os.Create(flagOutput)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	_, err = runner.RunGrep(ctx, opts, out, cmd.ErrOrStderr())
	return err
}

// buildGrepOptions validates the flags and merges them over the config.
func buildGrepOptions(args []string, cfg *config.Config) (runner.GrepOptions, error) {
	opts := runner.GrepOptions{
		Follow:  flagFollow,
		Poll:    flagPoll || cfg.Follow.Poll,
		Limit:   flagLimit,
		Summary: flagSummary || cfg.Output.Summary,
		RunLog:  cfg.Output.RunLog,
		Server:  cfg.Server.Connection,
	}
	if len(args) == 1 {
		opts.LogPath = args[0]
	}
	if flagServer != "" {
		opts.Server = flagServer
	}
	if opts.LogPath != "" && flagServer != "" {
		return opts, fmt.Errorf("give either an audit log file or --server, not both")
	}
	if opts.LogPath == "" && opts.Server == "" {
		return opts, fmt.Errorf("an audit log file or --server is required")
	}
	if flagRunLog != "" {
		opts.RunLog = flagRunLog
	}
	if flagLimit < 0 {
		return opts, fmt.Errorf("--limit must not be negative")
	}

	opts.ServerTimeout = defaultServerTimeout
	if cfg.Server.Timeout != "" {
		timeout, err := time.ParseDuration(cfg.Server.Timeout)
		if err != nil {
			return opts, fmt.Errorf("invalid server.timeout %q: %w", cfg.Server.Timeout, err)
		}
		opts.ServerTimeout = timeout
	}

	formatName := cfg.Output.Format
	if formatName == "" {
		formatName = string(output.FormatGrid)
	}
	if flagFormat != "" {
		formatName = flagFormat
	}
	if flagRaw {
		if flagFormat != "" && !strings.EqualFold(flagFormat, string(output.FormatRaw)) {
			return opts, fmt.Errorf("--raw cannot be combined with --format=%s", flagFormat)
		}
		formatName = string(output.FormatRaw)
	}
	format, err := output.ParseFormat(formatName)
	if err != nil {
		return opts, err
	}
	opts.Format = format

	fo, err := buildFilterOptions()
	if err != nil {
		return opts, err
	}
	opts.Filter = fo
	return opts, nil
}

func buildFilterOptions() (filter.Options, error) {
	opts := filter.Options{
		Users:      flagUsers,
		EventTypes: flagEventTypes,
		QueryTypes: flagQueryTypes,
		Pattern:    flagPattern,
		UseRegexp:  flagRegexp,
		Expr:       flagWhere,
	}
	if flagRegexp && flagPattern == "" {
		return opts, fmt.Errorf("--regexp requires --pattern")
	}
	if err := filter.ValidateEventTypes(flagEventTypes); err != nil {
		return opts, err
	}
	if err := filter.ValidateQueryTypes(flagQueryTypes); err != nil {
		return opts, err
	}

	if flagStatus != "" {
		status, err := filter.ParseStatus(flagStatus)
		if err != nil {
			return opts, err
		}
		opts.Status = status
	}
	if flagStartDate != "" {
		t, err := filter.ParseDatetime(flagStartDate)
		if err != nil {
			return opts, fmt.Errorf("--start-date: %w", err)
		}
		opts.Start = &t
	}
	if flagEndDate != "" {
		t, err := filter.ParseDatetime(flagEndDate)
		if err != nil {
			return opts, fmt.Errorf("--end-date: %w", err)
		}
		opts.End = &t
	}
	if opts.Start != nil && opts.End != nil && opts.Start.After(*opts.End) {
		return opts, fmt.Errorf("--start-date %s is after --end-date %s", flagStartDate, flagEndDate)
	}
	return opts, nil
}
