// Package postgres opens sessions to a Postgres server with pgx.
package postgres

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vietdv277/rdsctl/internal/lifecycle"
)

// Options holds the fixed connection parameters of a Dialer.
type Options struct {
	Host           string
	Port           int
	User           string
	Password       string
	ConnectTimeout time.Duration
}

// Dialer opens pgx sessions. It implements lifecycle.Dialer.
type Dialer struct {
	opts Options
}

var (
	_ lifecycle.Dialer  = (*Dialer)(nil)
	_ lifecycle.Session = (*Session)(nil)
)

// NewDialer creates a Dialer for opts.
func NewDialer(opts Options) *Dialer {
	return &Dialer{opts: opts}
}

// Dial connects to database.
func (d *Dialer) Dial(ctx context.Context, database string) (lifecycle.Session, error) {
	cfg, err := d.connConfig(database)
	if err != nil {
		return nil, err
	}

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s at %s:%d: %w", database, d.opts.Host, d.opts.Port, err)
	}

	return &Session{conn: conn}, nil
}

func (d *Dialer) connConfig(database string) (*pgx.ConnConfig, error) {
	// The host must be part of the parsed string so pgx derives the TLS
	// configs and fallbacks for it from sslmode (PGSSLMODE, default prefer).
	// Other PG* environment defaults still apply.
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s",
		dsnValue(d.opts.Host), d.opts.Port, dsnValue(database), dsnValue(d.opts.User))

	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to build connection config: %w", err)
	}

	cfg.Password = d.opts.Password
	if d.opts.ConnectTimeout > 0 {
		cfg.ConnectTimeout = d.opts.ConnectTimeout
	}

	return cfg, nil
}

// dsnValue quotes v for a key=value connection string
func dsnValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// Session is an open connection to one database.
type Session struct {
	conn *pgx.Conn
}

// Exec runs a statement and returns the number of rows affected.
func (s *Session) Exec(ctx context.Context, sql string) (int64, error) {
	tag, err := s.conn.Exec(ctx, sql)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CopyFrom streams r into a COPY ... FROM STDIN statement.
func (s *Session) CopyFrom(ctx context.Context, r io.Reader, sql string) (int64, error) {
	tag, err := s.conn.PgConn().CopyFrom(ctx, r, sql)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Ping checks the connection is alive.
func (s *Session) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// ServerVersion returns the server_version setting.
func (s *Session) ServerVersion(ctx context.Context) (string, error) {
	var version string
	if err := s.conn.QueryRow(ctx, "SHOW server_version").Scan(&version); err != nil {
		return "", err
	}
	return version, nil
}

// Close closes the connection.
func (s *Session) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}
