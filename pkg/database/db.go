package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// ErrNotConfigured is returned by Connect when DATABASE_URL is empty.
var ErrNotConfigured = errors.New("database not configured")

type Config struct {
	DSN            string
	MaxConns       int
	Timeout        time.Duration
	TimeZone       string
	ClientEncoding string
	// EnsureSchema creates missing tables on startup.
	EnsureSchema bool
}

// ConfigFromEnv reads DB config from environment variables. An empty
// DATABASE_URL leaves the store unconfigured; the API still serves seed
// users and empty collections in that case.
func ConfigFromEnv() Config {
	maxConns := 5
	if v, err := strconv.Atoi(os.Getenv("DATABASE_MAX_CONNS")); err == nil && v > 0 {
		maxConns = v
	}
	timeout := 5 * time.Second
	if d, err := time.ParseDuration(os.Getenv("DATABASE_TIMEOUT")); err == nil && d > 0 {
		timeout = d
	}
	ensure := true
	if b, err := strconv.ParseBool(os.Getenv("DATABASE_ENSURE_SCHEMA")); err == nil {
		ensure = b
	}
	return Config{
		DSN:            strings.TrimSpace(os.Getenv("DATABASE_URL")),
		MaxConns:       maxConns,
		Timeout:        timeout,
		TimeZone:       os.Getenv("DATABASE_TIMEZONE"),
		ClientEncoding: os.Getenv("DATABASE_CLIENT_ENCODING"),
		EnsureSchema:   ensure,
	}
}

func (c Config) Configured() bool { return c.DSN != "" }

// Connect opens a *sql.DB and verifies connectivity with a ping.
// Time zone and client encoding travel as startup parameters so every
// pooled connection gets them.
func Connect(ctx context.Context, cfg Config) (*sql.DB, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}
	dsn, err := withParams(cfg.DSN, map[string]string{
		"timezone":        cfg.TimeZone,
		"client_encoding": cfg.ClientEncoding,
	})
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// withParams adds the non-empty params to either a URL or a key=value DSN.
func withParams(dsn string, params map[string]string) (string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", err
		}
		q := u.Query()
		for k, v := range params {
			if v != "" {
				q.Set(k, v)
			}
		}
		u.RawQuery = q.Encode()
		return u.String(), nil
	}
	var b strings.Builder
	b.WriteString(dsn)
	for _, k := range []string{"timezone", "client_encoding"} {
		if v := params[k]; v != "" {
			b.WriteString(" " + k + "=" + quoteValue(v))
		}
	}
	return b.String(), nil
}

// quoteValue quotes a value for a key=value connection string.
func quoteValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}
