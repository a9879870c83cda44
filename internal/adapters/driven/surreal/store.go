// Package surreal provides a graph store adapter over SurrealDB, using the
// official Go SDK.
package surreal

import (
	"context"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"

	"github.com/custodia-labs/mnemo/internal/core/ports/driven"
	"github.com/custodia-labs/mnemo/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.GraphStore = (*Store)(nil)

// Default configuration values.
const (
	DefaultURL       = "ws://localhost:8000/rpc"
	DefaultUser      = "root"
	DefaultPass      = "root"
	DefaultNamespace = "mnemo"
	DefaultDatabase  = "mnemo"
)

var log = logger.Named("surreal")

// Config holds configuration for the SurrealDB store.
type Config struct {
	URL       string
	User      string
	Pass      string
	Namespace string
	Database  string
}

func (c Config) withDefaults() Config {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.User == "" {
		c.User = DefaultUser
	}
	if c.Pass == "" {
		c.Pass = DefaultPass
	}
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	return c
}

// statementResult is the outcome of one statement in a batch.
type statementResult struct {
	Status string
	Result any
}

// runner executes SurrealQL and returns one result per statement.
type runner interface {
	run(ctx context.Context, sql string) ([]statementResult, error)
	close() error
}

// Store sends SurrealQL batches to a SurrealDB server.
type Store struct {
	conn runner
	cfg  Config
}

// Open connects, signs in and selects the namespace and database.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	cfg = cfg.withDefaults()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	db, err := surrealdb.New(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("surreal: connect %s: %w", cfg.URL, err)
	}
	token, err := db.SignIn(&surrealdb.Auth{Username: cfg.User, Password: cfg.Pass})
	if err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("surreal: sign in: %w", err)
	}
	if err := db.Authenticate(token); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("surreal: authenticate: %w", err)
	}
	if err := db.Use(cfg.Namespace, cfg.Database); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("surreal: use %s/%s: %w", cfg.Namespace, cfg.Database, err)
	}

	log.Debug("connected to %s (%s/%s)", cfg.URL, cfg.Namespace, cfg.Database)
	return &Store{conn: &sdkRunner{db: db}, cfg: cfg}, nil
}

// Close closes the connection.
func (s *Store) Close() error {
	return s.conn.close()
}

// Execute runs statements in one request. Any failed statement fails the
// call.
func (s *Store) Execute(ctx context.Context, statements string) error {
	_, err := s.send(ctx, statements)
	return err
}

// Query runs sql and returns the rows of its last statement.
func (s *Store) Query(ctx context.Context, sql string) ([]map[string]any, error) {
	results, err := s.send(ctx, sql)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return rows(results[len(results)-1].Result)
}

func (s *Store) send(ctx context.Context, sql string) ([]statementResult, error) {
	results, err := s.conn.run(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("surreal: %w", err)
	}
	for i, r := range results {
		if !strings.EqualFold(r.Status, "OK") {
			return nil, fmt.Errorf("surreal: statement %d: %s: %v", i, r.Status, r.Result)
		}
	}
	return results, nil
}

// rows converts a statement result into row maps. Records may decode with
// string or interface keys depending on the wire encoding.
func rows(result any) ([]map[string]any, error) {
	switch v := result.(type) {
	case nil:
		return nil, nil
	case []map[string]any:
		return v, nil
	case []any:
		out := make([]map[string]any, 0, len(v))
		for i, item := range v {
			row, ok := toRow(item)
			if !ok {
				return nil, fmt.Errorf("surreal query: row %d is %T, not a record", i, item)
			}
			out = append(out, row)
		}
		return out, nil
	}
	if row, ok := toRow(result); ok {
		return []map[string]any{row}, nil
	}
	return nil, fmt.Errorf("surreal query: unexpected result %T", result)
}

func toRow(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}

// sdkRunner runs statements through the SurrealDB SDK.
type sdkRunner struct {
	db *surrealdb.DB
}

func (r *sdkRunner) run(ctx context.Context, sql string) ([]statementResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := surrealdb.Query[any](r.db, sql, map[string]interface{}{})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	out := make([]statementResult, len(*res))
	for i, qr := range *res {
		out[i] = statementResult{Status: qr.Status, Result: qr.Result}
	}
	return out, nil
}

func (r *sdkRunner) close() error {
	return r.db.Close()
}
