// Package server locates the audit log of a running MySQL server.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/vaibhaw-/auditgrep/internal/auditgrep/logger"
)

const defaultPort = 3306

// errUnknownSystemVariable is the server error for SELECT @@name when no
// such variable exists, which is the case when the audit plugin is absent.
const errUnknownSystemVariable = 1193

// ErrAuditLogDisabled is returned when the server has no audit log plugin
// loaded or the audit log file is not set.
var ErrAuditLogDisabled = errors.New("audit log plugin is not enabled on the server")

// ParseConnection parses a connection string of the form
// user[:password]@host[:port][:socket] into a driver config. IPv6 hosts must
// be bracketed. When a socket is given the connection uses it instead of TCP.
func ParseConnection(conn string) (*mysql.Config, error) {
	at := strings.LastIndex(conn, "@")
	if at <= 0 {
		return nil, fmt.Errorf("invalid connection %q: expected user[:password]@host[:port][:socket]", conn)
	}
	cred, location := conn[:at], conn[at+1:]

	cfg := mysql.NewConfig()
	cfg.User, cfg.Passwd, _ = strings.Cut(cred, ":")
	if cfg.User == "" {
		return nil, fmt.Errorf("invalid connection %q: empty user", conn)
	}

	host, rest, err := splitHost(location)
	if err != nil {
		return nil, fmt.Errorf("invalid connection %q: %w", conn, err)
	}
	if host == "" {
		return nil, fmt.Errorf("invalid connection %q: empty host", conn)
	}

	port := defaultPort
	portStr, socket, _ := strings.Cut(rest, ":")
	if portStr != "" {
		port, err = strconv.Atoi(portStr)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid connection %q: bad port %q", conn, portStr)
		}
	}

	if socket != "" {
		cfg.Net = "unix"
		cfg.Addr = socket
	} else {
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	}
	return cfg, nil
}

// splitHost separates the host from the ":port:socket" tail.
func splitHost(location string) (host, rest string, err error) {
	if strings.HasPrefix(location, "[") {
		end := strings.Index(location, "]")
		if end < 0 {
			return "", "", fmt.Errorf("unterminated IPv6 host")
		}
		host = location[1:end]
		rest = location[end+1:]
		if rest != "" && !strings.HasPrefix(rest, ":") {
			return "", "", fmt.Errorf("unexpected %q after host", rest)
		}
		return host, strings.TrimPrefix(rest, ":"), nil
	}
	host, rest, _ = strings.Cut(location, ":")
	return host, rest, nil
}

// Connect opens a connection pool for cfg and checks it within timeout.
func Connect(ctx context.Context, cfg *mysql.Config, timeout time.Duration) (*sql.DB, error) {
	cfg.Timeout = timeout
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to %s: %w", cfg.Addr, err)
	}
	return db, nil
}

// ResolveAuditLogPath asks the server for its data directory and audit log
// file and returns the path of the log.
func ResolveAuditLogPath(ctx context.Context, db *sql.DB) (string, error) {
	var datadir string
	var logFile sql.NullString
	err := db.QueryRowContext(ctx, "SELECT @@datadir, @@audit_log_file").Scan(&datadir, &logFile)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == errUnknownSystemVariable {
			return "", ErrAuditLogDisabled
		}
		return "", fmt.Errorf("query audit log location: %w", err)
	}
	if !logFile.Valid || logFile.String == "" {
		return "", ErrAuditLogDisabled
	}

	path := JoinAuditLogPath(datadir, logFile.String)
	logger.L().Debugw("server: resolved audit log", "datadir", datadir, "audit_log_file", logFile.String, "path", path)
	return path, nil
}

// JoinAuditLogPath resolves the audit_log_file value against datadir. An
// absolute file is returned unchanged.
func JoinAuditLogPath(datadir, file string) string {
	if filepath.IsAbs(file) {
		return filepath.Clean(file)
	}
	return filepath.Join(datadir, file)
}
