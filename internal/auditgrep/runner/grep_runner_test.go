package runner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaibhaw-/auditgrep/internal/auditgrep/auditlog"
	"github.com/vaibhaw-/auditgrep/internal/auditgrep/filter"
	"github.com/vaibhaw-/auditgrep/internal/auditgrep/output"
)

// generateLog writes a new-schema audit log with the given number of
// sessions, each a Connect, some queries and a Quit. It returns the path and
// the user of each session.
func generateLog(t *testing.T, seed uint64, sessions int) (string, []string) {
	t.Helper()
	faker := gofakeit.New(seed)

	var b strings.Builder
	ts := time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC)
	recordID := 0
	record := func(fields ...string) {
		recordID++
		b.WriteString(" <AUDIT_RECORD>\n")
		fmt.Fprintf(&b, "  <TIMESTAMP>%s UTC</TIMESTAMP>\n", ts.Format("2006-01-02T15:04:05"))
		fmt.Fprintf(&b, "  <RECORD_ID>%d_2014-01-01T00:00:00</RECORD_ID>\n", recordID)
		for i := 0; i+1 < len(fields); i += 2 {
			fmt.Fprintf(&b, "  <%s>%s</%s>\n", fields[i], fields[i+1], fields[i])
		}
		b.WriteString(" </AUDIT_RECORD>\n")
		ts = ts.Add(time.Second)
	}

	b.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<AUDIT>\n")
	record("NAME", "Audit", "SERVER_ID", "3", "VERSION", "1")

	tables := []string{"orders", "patients", "drugs"}
	var users []string
	for i := 0; i < sessions; i++ {
		user := faker.Username()
		users = append(users, user)
		id := fmt.Sprintf("%d", 200+i)
		record("NAME", "Connect", "CONNECTION_ID", id, "STATUS", "0", "USER", user, "PRIV_USER", user, "HOST", "localhost")
		for q := 0; q < faker.Number(1, 3); q++ {
			record("NAME", "Query", "CONNECTION_ID", id,
				"STATUS", fmt.Sprintf("%d", faker.RandomInt([]int{0, 0, 1146})),
				"COMMAND_CLASS", "select",
				"SQLTEXT", "SELECT * FROM "+faker.RandomString(tables))
		}
		record("NAME", "Quit", "CONNECTION_ID", id, "STATUS", "0")
	}
	b.WriteString("</AUDIT>\n")

	path := filepath.Join(t.TempDir(), "audit.log")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path, users
}

func decodeNDJSON(t *testing.T, out *bytes.Buffer) []map[string]string {
	t.Helper()
	var recs []map[string]string
	dec := json.NewDecoder(out)
	for dec.More() {
		var r map[string]string
		require.NoError(t, dec.Decode(&r))
		recs = append(recs, r)
	}
	return recs
}

func TestRunGrep_JSON(t *testing.T) {
	path, users := generateLog(t, 11, 6)

	var out, errOut bytes.Buffer
	stats, err := RunGrep(context.Background(), GrepOptions{
		LogPath: path,
		Format:  output.FormatJSON,
		Filter:  filter.Options{Users: []string{users[2]}, EventTypes: []string{"quit"}},
	}, &out, &errOut)
	require.NoError(t, err)

	recs := decodeNDJSON(t, &out)
	require.Len(t, recs, 1)
	assert.Equal(t, "Quit", recs[0]["NAME"])
	assert.Equal(t, users[2], recs[0]["USER"])
	assert.Equal(t, "3", recs[0]["SERVER_ID"])
	assert.Equal(t, 1, stats.Matched)
	assert.Greater(t, stats.RecordsRead, 6*3)
	assert.Empty(t, errOut.String(), "no summary unless requested")
}

func TestRunGrep_Summary(t *testing.T) {
	path, _ := generateLog(t, 5, 4)

	var out, errOut bytes.Buffer
	stats, err := RunGrep(context.Background(), GrepOptions{
		LogPath: path,
		Format:  output.FormatCSV,
		Filter:  filter.Options{EventTypes: []string{"connect"}},
		Summary: true,
	}, &out, &errOut)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Matched)
	assert.Equal(t, map[string]int{"Connect": 4}, stats.ByName)
	assert.Len(t, stats.Digest, 64)
	assert.Contains(t, errOut.String(), "Matched: 4")
	assert.Contains(t, errOut.String(), "Digest: "+stats.Digest)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "NAME,TIMESTAMP,RECORD_ID,CONNECTION_ID,USER,PRIV_USER,HOST"), lines[0])
}

func TestRunGrep_DigestIsStable(t *testing.T) {
	path, users := generateLog(t, 99, 8)
	opts := GrepOptions{
		LogPath: path,
		Format:  output.FormatJSON,
		Filter:  filter.Options{Users: users[:3], Status: []filter.StatusRange{{Low: 0, High: 0}}},
	}

	first, err := RunGrep(context.Background(), opts, &bytes.Buffer{}, &bytes.Buffer{})
	require.NoError(t, err)
	second, err := RunGrep(context.Background(), opts, &bytes.Buffer{}, &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, first.Digest, second.Digest)
	assert.Equal(t, first.Matched, second.Matched)
}

func TestRunGrep_RawFormat(t *testing.T) {
	path, _ := generateLog(t, 3, 2)

	var out bytes.Buffer
	stats, err := RunGrep(context.Background(), GrepOptions{
		LogPath: path,
		Format:  output.FormatRaw,
		Filter:  filter.Options{EventTypes: []string{"audit"}},
	}, &out, &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Matched)
	assert.True(t, strings.HasPrefix(out.String(), " <AUDIT_RECORD>\n  <TIMESTAMP>2014-01-01T00:00:00 UTC</TIMESTAMP>\n"), out.String())
	assert.Contains(t, out.String(), "<NAME>Audit</NAME>\n")
	assert.True(t, strings.HasSuffix(out.String(), "</AUDIT_RECORD>\n"))
}

func TestRunGrep_RawModeImpliesRawFormat(t *testing.T) {
	path, _ := generateLog(t, 3, 2)

	var out bytes.Buffer
	_, err := RunGrep(context.Background(), GrepOptions{
		LogPath: path,
		Format:  output.FormatGrid,
		Filter:  filter.Options{EventTypes: []string{"audit"}, OutputMode: filter.Raw},
	}, &out, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "<NAME>Audit</NAME>")
}

func TestRunGrep_Limit(t *testing.T) {
	path, _ := generateLog(t, 21, 10)

	var out bytes.Buffer
	stats, err := RunGrep(context.Background(), GrepOptions{
		LogPath: path,
		Format:  output.FormatJSON,
		Filter:  filter.Options{EventTypes: []string{"query"}},
		Limit:   3,
	}, &out, &bytes.Buffer{})
	require.NoError(t, err)

	assert.Len(t, decodeNDJSON(t, &out), 3)
	assert.Equal(t, 3, stats.Matched)
}

func TestRunGrep_RunLog(t *testing.T) {
	path, _ := generateLog(t, 8, 3)
	runLog := filepath.Join(t.TempDir(), "runs.ndjson")

	for i := 0; i < 2; i++ {
		_, err := RunGrep(context.Background(), GrepOptions{
			LogPath: path,
			Format:  output.FormatJSON,
			RunLog:  runLog,
		}, &bytes.Buffer{}, &bytes.Buffer{})
		require.NoError(t, err)
	}

	f, err := os.Open(runLog)
	require.NoError(t, err)
	defer f.Close()

	var summaries []RunSummary
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var s RunSummary
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &s))
		summaries = append(summaries, s)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, summaries, 2)

	for _, s := range summaries {
		_, err := uuid.Parse(s.RunID)
		assert.NoError(t, err)
		assert.Equal(t, "ok", s.Status)
		assert.Equal(t, path, s.Input)
		assert.Equal(t, s.RecordsRead, s.Matched)
	}
	assert.NotEqual(t, summaries[0].RunID, summaries[1].RunID)
	assert.Equal(t, summaries[0].Digest, summaries[1].Digest)
}

func TestRunGrep_RunLogRecordsErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.log")
	require.NoError(t, os.WriteFile(path, []byte("<AUDIT_RECORD NAME=\"Quit\"\n"), 0o644))
	runLog := filepath.Join(t.TempDir(), "runs.ndjson")

	_, err := RunGrep(context.Background(), GrepOptions{LogPath: path, Format: output.FormatJSON, RunLog: runLog}, &bytes.Buffer{}, &bytes.Buffer{})
	var perr *auditlog.ParseError
	require.ErrorAs(t, err, &perr)

	data, rerr := os.ReadFile(runLog)
	require.NoError(t, rerr)
	var s RunSummary
	require.NoError(t, json.Unmarshal(data, &s))
	assert.Equal(t, "error", s.Status)
	assert.NotEmpty(t, s.Error)
}

func TestRunGrep_Errors(t *testing.T) {
	path, _ := generateLog(t, 1, 1)

	t.Run("missing file", func(t *testing.T) {
		_, err := RunGrep(context.Background(), GrepOptions{LogPath: filepath.Join(t.TempDir(), "nope.log")}, &bytes.Buffer{}, &bytes.Buffer{})
		var ferr *auditlog.FileAccessError
		assert.ErrorAs(t, err, &ferr)
	})

	t.Run("no input", func(t *testing.T) {
		_, err := RunGrep(context.Background(), GrepOptions{}, &bytes.Buffer{}, &bytes.Buffer{})
		assert.ErrorIs(t, err, ErrNoAuditLog)
	})

	t.Run("follow needs streaming format", func(t *testing.T) {
		_, err := RunGrep(context.Background(), GrepOptions{LogPath: path, Follow: true, Format: output.FormatGrid}, &bytes.Buffer{}, &bytes.Buffer{})
		assert.ErrorIs(t, err, ErrFollowNeedsStreaming)
	})

	t.Run("invalid pattern", func(t *testing.T) {
		_, err := RunGrep(context.Background(), GrepOptions{
			LogPath: path,
			Filter:  filter.Options{Pattern: "(", UseRegexp: true},
		}, &bytes.Buffer{}, &bytes.Buffer{})
		var perr *filter.InvalidPatternError
		assert.ErrorAs(t, err, &perr)
	})

	t.Run("bad server connection", func(t *testing.T) {
		_, err := RunGrep(context.Background(), GrepOptions{Server: "not-a-connection"}, &bytes.Buffer{}, &bytes.Buffer{})
		assert.Error(t, err)
	})
}

func TestRunGrep_ServerResolution(t *testing.T) {
	path, _ := generateLog(t, 4, 2)

	orig := resolveServerLog
	t.Cleanup(func() { resolveServerLog = orig })

	var gotConn string
	resolveServerLog = func(ctx context.Context, conn string, timeout time.Duration) (string, error) {
		gotConn = conn
		return path, nil
	}

	var out bytes.Buffer
	stats, err := RunGrep(context.Background(), GrepOptions{
		Server: "root:pw@localhost:3306",
		Format: output.FormatJSON,
		Filter: filter.Options{EventTypes: []string{"audit"}},
	}, &out, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "root:pw@localhost:3306", gotConn)
	assert.Equal(t, 1, stats.Matched)

	resolveServerLog = func(ctx context.Context, conn string, timeout time.Duration) (string, error) {
		return "", errors.New("audit log plugin is not enabled on the server")
	}
	_, err = RunGrep(context.Background(), GrepOptions{Server: "root@localhost"}, &bytes.Buffer{}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "resolve audit log from server")
}

func TestRunGrep_Follow(t *testing.T) {
	path, _ := generateLog(t, 2, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var out bytes.Buffer
	var stats *output.Stats
	var err error
	go func() {
		defer close(done)
		stats, err = RunGrep(ctx, GrepOptions{
			LogPath: path,
			Follow:  true,
			Poll:    true,
			Format:  output.FormatJSON,
			Filter:  filter.Options{EventTypes: []string{"audit"}},
		}, &out, &bytes.Buffer{})
	}()

	time.Sleep(500 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("follow run did not stop after cancel")
	}
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Matched)
}

func TestRunFileStats(t *testing.T) {
	path, _ := generateLog(t, 6, 1)

	var out bytes.Buffer
	require.NoError(t, RunFileStats([]string{path}, output.FormatCSV, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "File,Last Modified,Path,Size", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "audit.log,"), lines[1])

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(lines[1], fmt.Sprintf(",%d", fi.Size())), lines[1])

	err = RunFileStats([]string{filepath.Join(t.TempDir(), "missing.log")}, output.FormatCSV, &bytes.Buffer{})
	var ferr *auditlog.FileAccessError
	assert.ErrorAs(t, err, &ferr)

	assert.Error(t, RunFileStats([]string{path}, output.FormatRaw, &bytes.Buffer{}))
}
