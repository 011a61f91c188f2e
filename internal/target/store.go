// Package target reads and writes the Maybe ledger database. It hides the
// two table-naming generations of the Maybe schema behind Schema.
package target

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/jask/finbridge/internal/config"
	"github.com/jask/finbridge/internal/database/repository"
	"github.com/jask/finbridge/internal/secrets"
)

// StoreError wraps any failed query against the target store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("target %s: %v", e.Op, e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// Store is a schema-aware adapter over one target database handle. The schema
// generation is resolved once per Store; open a fresh Store per sync pass.
type Store struct {
	db      *sql.DB
	dialect Dialect

	mu     sync.Mutex
	schema *Schema
}

// New wraps an open handle. The caller keeps ownership of db unless Close is
// called on the Store.
func New(db *sql.DB, d Dialect) *Store {
	return &Store{db: db, dialect: d}
}

// NewWithSchema skips schema detection.
func NewWithSchema(db *sql.DB, d Dialect, schema Schema) *Store {
	return &Store{db: db, dialect: d, schema: &schema}
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the underlying handle.
func (s *Store) Close() error { return s.db.Close() }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return storeErr("ping", s.db.PingContext(ctx))
}

// Schema returns the memoized schema generation, detecting it on first use.
func (s *Store) Schema(ctx context.Context) (Schema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schema != nil {
		return *s.schema, nil
	}
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&raw)
	if err != nil {
		return Schema{}, storeErr("schema version", err)
	}
	version, err := parseVersion(raw)
	if err != nil {
		return Schema{}, storeErr("schema version", err)
	}
	schema := ResolveSchema(version)
	s.schema = &schema
	return schema, nil
}

func (s *Store) rebind(q string) string { return s.dialect.Rebind(q) }

// ConnParams are the Maybe postgres connection parameters.
type ConnParams struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
}

// DSN renders a pgx connection URL.
func (p ConnParams) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   net.JoinHostPort(p.Host, p.Port),
		Path:   "/" + p.Name,
	}
	if p.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {p.SSLMode}}.Encode()
	}
	return u.String()
}

// ParamsFromSettings resolves connection parameters from runtime settings,
// the configuration file and the secrets store.
func ParamsFromSettings(ctx context.Context, r config.Resolver, cfg config.TargetConfig) (ConnParams, error) {
	p := ConnParams{SSLMode: cfg.SSLMode}
	fields := []struct {
		key, configured string
		dst             *string
	}{
		{repository.SettingMaybeHost, cfg.Host, &p.Host},
		{repository.SettingMaybePort, cfg.Port, &p.Port},
		{repository.SettingMaybeDB, cfg.Name, &p.Name},
		{repository.SettingMaybeUser, cfg.User, &p.User},
	}
	for _, f := range fields {
		v, err := r.Value(ctx, f.key, f.configured)
		if err != nil {
			return ConnParams{}, err
		}
		if v == "" {
			return ConnParams{}, &config.ConfigError{Key: f.key}
		}
		*f.dst = v
	}
	pass, err := r.Secret(ctx, repository.SettingMaybePassword, cfg.Password, secrets.ProviderMaybe)
	if err != nil {
		return ConnParams{}, err
	}
	if pass == "" {
		return ConnParams{}, &config.ConfigError{Key: repository.SettingMaybePassword}
	}
	p.Password = pass
	return p, nil
}

// Open connects to the Maybe postgres database and verifies the connection.
func Open(ctx context.Context, p ConnParams) (*Store, error) {
	db, err := sql.Open("pgx", p.DSN())
	if err != nil {
		return nil, storeErr("open", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, storeErr("connect", err)
	}
	return New(db, Postgres), nil
}

// OpenFromSettings resolves parameters and opens the store.
func OpenFromSettings(ctx context.Context, r config.Resolver, cfg config.TargetConfig) (*Store, error) {
	p, err := ParamsFromSettings(ctx, r, cfg)
	if err != nil {
		return nil, err
	}
	return Open(ctx, p)
}
