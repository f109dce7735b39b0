package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaibhaw-/auditgrep/internal/auditgrep/config"
	"github.com/vaibhaw-/auditgrep/internal/auditgrep/filter"
	"github.com/vaibhaw-/auditgrep/internal/auditgrep/output"
)

// setGrepFlags resets the grep flags to their defaults, then applies values.
func setGrepFlags(t *testing.T, values map[string]string) {
	t.Helper()
	flagUsers, flagEventTypes, flagQueryTypes = nil, nil, nil
	flagStatus, flagStartDate, flagEndDate, flagPattern, flagWhere = "", "", "", "", ""
	flagFormat, flagServer, flagRunLog, flagOutput = "", "", "", ""
	flagRegexp, flagRaw, flagFollow, flagPoll, flagSummary = false, false, false, false, false
	flagLimit = 0
	for k, v := range values {
		require.NoError(t, grepCmd.Flags().Set(k, v), k)
	}
}

func TestBuildGrepOptions(t *testing.T) {
	setGrepFlags(t, map[string]string{
		"users":      "root,app",
		"event-type": "query,Connect",
		"status":     "0,1045-1047",
		"start-date": "2014-01-01",
		"end-date":   "2014-01-02T12:00:00",
		"query-type": "select,DROP",
		"pattern":    "%orders%",
		"format":     "json",
		"limit":      "10",
	})
	cfg := &config.Config{Output: config.OutputCfg{Format: "GRID", RunLog: "runs.ndjson"}, Server: config.ServerCfg{Timeout: "3s"}}

	opts, err := buildGrepOptions([]string{"audit.log"}, cfg)
	require.NoError(t, err)

	assert.Equal(t, "audit.log", opts.LogPath)
	assert.Equal(t, output.FormatJSON, opts.Format)
	assert.Equal(t, 10, opts.Limit)
	assert.Equal(t, "runs.ndjson", opts.RunLog)
	assert.Equal(t, 3*time.Second, opts.ServerTimeout)
	assert.Equal(t, []string{"root", "app"}, opts.Filter.Users)
	assert.Equal(t, []string{"query", "Connect"}, opts.Filter.EventTypes)
	assert.Equal(t, []filter.StatusRange{{Low: 0, High: 0}, {Low: 1045, High: 1047}}, opts.Filter.Status)
	require.NotNil(t, opts.Filter.Start)
	require.NotNil(t, opts.Filter.End)
	assert.Equal(t, time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC), *opts.Filter.Start)
	assert.Equal(t, time.Date(2014, 1, 2, 12, 0, 0, 0, time.UTC), *opts.Filter.End)
	assert.Equal(t, "%orders%", opts.Filter.Pattern)
}

func TestBuildGrepOptions_ConfigDefaults(t *testing.T) {
	setGrepFlags(t, nil)
	cfg := &config.Config{
		Output: config.OutputCfg{Format: "vertical", Summary: true},
		Follow: config.FollowCfg{Poll: true},
		Server: config.ServerCfg{Connection: "root@localhost"},
	}

	opts, err := buildGrepOptions(nil, cfg)
	require.NoError(t, err)
	assert.Equal(t, output.FormatVertical, opts.Format)
	assert.True(t, opts.Summary)
	assert.True(t, opts.Poll)
	assert.Equal(t, "root@localhost", opts.Server)
	assert.Equal(t, defaultServerTimeout, opts.ServerTimeout)
}

func TestBuildGrepOptions_Raw(t *testing.T) {
	setGrepFlags(t, map[string]string{"raw": "true"})
	opts, err := buildGrepOptions([]string{"audit.log"}, &config.Config{})
	require.NoError(t, err)
	assert.Equal(t, output.FormatRaw, opts.Format)

	setGrepFlags(t, map[string]string{"raw": "true", "format": "csv"})
	_, err = buildGrepOptions([]string{"audit.log"}, &config.Config{})
	assert.Error(t, err)
}

func TestBuildGrepOptions_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		flags map[string]string
		args  []string
	}{
		{"no input", nil, nil},
		{"file and server", map[string]string{"server": "root@localhost"}, []string{"audit.log"}},
		{"unknown event type", map[string]string{"event-type": "Select"}, []string{"audit.log"}},
		{"unknown query type", map[string]string{"query-type": "merge"}, []string{"audit.log"}},
		{"bad status", map[string]string{"status": "10-x"}, []string{"audit.log"}},
		{"reversed status range", map[string]string{"status": "20-10"}, []string{"audit.log"}},
		{"bad start date", map[string]string{"start-date": "not a date"}, []string{"audit.log"}},
		{"start after end", map[string]string{"start-date": "2014-01-02", "end-date": "2014-01-01"}, []string{"audit.log"}},
		{"regexp without pattern", map[string]string{"regexp": "true"}, []string{"audit.log"}},
		{"unknown format", map[string]string{"format": "xml"}, []string{"audit.log"}},
		{"negative limit", map[string]string{"limit": "-1"}, []string{"audit.log"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setGrepFlags(t, tt.flags)
			_, err := buildGrepOptions(tt.args, &config.Config{})
			assert.Error(t, err)
		})
	}
}
