package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/ordinal/internal/ir"
	"github.com/roach88/ordinal/internal/position"
	"github.com/roach88/ordinal/internal/querysql"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on collections.seq for registration-order listing
const currentSchemaVersion = 1

// Store provides durable storage for positioned collections.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db       *sql.DB
	logger   *slog.Logger
	tracer   trace.Tracer
	ids      IDGenerator
	registry *position.Registry
	controls *position.Controls
	listener position.Listener
	compiler *querysql.SQLCompiler

	mu    sync.RWMutex
	specs map[string]ir.CollectionSpec
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards all output.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithTracerProvider enables OpenTelemetry spans for store operations.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Store) {
		if tp != nil {
			s.tracer = tp.Tracer(TracerName)
		}
	}
}

// WithIDGenerator sets the generator for records created without an ID.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Store) {
		s.ids = g
	}
}

// WithListener replaces the position Coordinator as the lifecycle listener.
func WithListener(l position.Listener) Option {
	return func(s *Store) {
		s.listener = l
	}
}

// WithControls sets the lock/force controls used when an operation's
// context carries none.
func WithControls(c *position.Controls) Option {
	return func(s *Store) {
		s.controls = c
	}
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically, then loads the
// collection catalog.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	// Open database (creates file if doesn't exist)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection works
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	// Every operation of one call shares this connection through its tx.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{
		db:       db,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		ids:      UUIDv7Generator{},
		registry: position.NewRegistry(),
		compiler: querysql.NewSQLCompiler(),
		specs:    make(map[string]ir.CollectionSpec),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.controls == nil {
		s.controls = position.NewControls()
	}
	if s.listener == nil {
		s.listener = position.NewCoordinator(s.registry,
			position.WithLogger(s.logger),
			position.WithDefaultControls(s.controls))
	}

	if err := s.loadCatalog(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
// Should be called when the store is no longer needed.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - writes that bypass Collection skip position maintenance.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Controls returns the store's default lock/force controls.
// A context carrying its own controls (position.WithControls) overrides them.
func (s *Store) Controls() *position.Controls {
	return s.controls
}

// controlsFor returns the controls in effect for ctx.
func (s *Store) controlsFor(ctx context.Context) *position.Controls {
	if c := position.ControlsFrom(ctx); c != nil {
		return c
	}
	return s.controls
}

// Collections returns the registered collection definitions sorted by name.
func (s *Store) Collections() []ir.CollectionSpec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	specs := make([]ir.CollectionSpec, 0, len(s.specs))
	for _, spec := range s.specs {
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Collection returns a handle for a registered collection.
func (s *Store) Collection(name string) (*Collection, error) {
	spec, ok := s.spec(name)
	if !ok {
		return nil, fmt.Errorf("collection %q: %w", name, ErrUnknownCollection)
	}
	return &Collection{s: s, spec: spec}, nil
}

func (s *Store) spec(name string) (ir.CollectionSpec, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	spec, ok := s.specs[name]
	return spec, ok
}

func (s *Store) addSpec(spec ir.CollectionSpec) {
	s.mu.Lock()
	s.specs[spec.Name] = spec
	s.mu.Unlock()
	s.registry.Register(position.NewSpecPolicy(spec))
}

// loadCatalog registers every collection recorded in the catalog.
func (s *Store) loadCatalog(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, spec
		FROM collections
		ORDER BY seq ASC, name COLLATE BINARY ASC
	`)
	if err != nil {
		return fmt.Errorf("query collections: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, data string
		if err := rows.Scan(&name, &data); err != nil {
			return fmt.Errorf("scan collection: %w", err)
		}
		var spec ir.CollectionSpec
		if err := json.Unmarshal([]byte(data), &spec); err != nil {
			return fmt.Errorf("unmarshal collection %q: %w", name, err)
		}
		s.addSpec(spec)
	}
	return rows.Err()
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the registration-order index on the catalog.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_collections_seq ON collections(seq)`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

type txKey struct{ s *Store }

// querier is the subset of *sql.DB and *sql.Tx the store reads and writes through.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn returns the transaction carried by ctx, or the database.
func (s *Store) conn(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{s}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

// WithTx runs fn inside one SQL transaction. Store operations called with
// the context passed to fn join that transaction; if fn returns an error or
// panics, everything it did is rolled back. Nested calls join the outer
// transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{s}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error("rollback failed", "error", rbErr)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{s}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}
