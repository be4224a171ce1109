// Package postgres stores validation records in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/drewdunne/prwatch/internal/fault"
	"github.com/drewdunne/prwatch/internal/store"
	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsTable = "prwatch_schema_migrations"

var _ store.Store = (*Store)(nil)

// Store is a store.Store backed by the pr_validations table.
type Store struct {
	db *sql.DB
}

// Open connects to dsn and applies pending migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return New(db), nil
}

// New wraps an already migrated database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	driver, err := migratepg.WithInstance(db, &migratepg.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("opening embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	version, dirty, _ := m.Version()
	clog.FromContext(ctx).With("version", version).With("dirty", dirty).Info("Schema migrations applied")
	return nil
}

// Insert writes rec in a single statement.
func (s *Store) Insert(ctx context.Context, rec *store.ValidationRecord) (string, error) {
	if err := store.Check(rec); err != nil {
		return "", err
	}

	findings, err := json.Marshal(rec.Findings)
	if err != nil {
		return "", store.Persistence(fmt.Errorf("encoding findings: %w", err))
	}
	stats, err := json.Marshal(rec.DiffStats)
	if err != nil {
		return "", store.Persistence(fmt.Errorf("encoding diff stats: %w", err))
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO pr_validations (pr_number, repository_id, jira_ticket_id, confidence_score, findings, pr_diff, diff_stats)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, rec.PRNumber, rec.RepositoryID, rec.TicketID, rec.ConfidenceScore, findings, rec.Diff, stats).
		Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return "", classify(err)
	}
	return rec.ID, nil
}

// List returns matching records, newest first.
func (s *Store) List(ctx context.Context, filter store.Filter) ([]store.ValidationRecord, error) {
	var (
		where []string
		args  []any
	)
	if filter.RepositoryID != "" {
		args = append(args, filter.RepositoryID)
		where = append(where, fmt.Sprintf("repository_id = $%d", len(args)))
	}
	if filter.PRNumber != 0 {
		args = append(args, filter.PRNumber)
		where = append(where, fmt.Sprintf("pr_number = $%d", len(args)))
	}
	if filter.TicketID != "" {
		args = append(args, filter.TicketID)
		where = append(where, fmt.Sprintf("jira_ticket_id = $%d", len(args)))
	}

	query := selectColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	result := []store.ValidationRecord{}
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return result, nil
}

// Get returns the record with the given id.
func (s *Store) Get(ctx context.Context, id string) (*store.ValidationRecord, error) {
	rec, err := scan(s.db.QueryRowContext(ctx, selectColumns+" WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "invalid_text_representation" {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

const selectColumns = `SELECT id, pr_number, repository_id, jira_ticket_id, confidence_score, findings, pr_diff, diff_stats, created_at FROM pr_validations`

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*store.ValidationRecord, error) {
	var (
		rec             store.ValidationRecord
		findings, stats []byte
	)
	err := row.Scan(&rec.ID, &rec.PRNumber, &rec.RepositoryID, &rec.TicketID, &rec.ConfidenceScore,
		&findings, &rec.Diff, &stats, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, classify(err)
	}
	if err := json.Unmarshal(findings, &rec.Findings); err != nil {
		return nil, store.Persistence(fmt.Errorf("decoding findings: %w", err))
	}
	if err := json.Unmarshal(stats, &rec.DiffStats); err != nil {
		return nil, store.Persistence(fmt.Errorf("decoding diff stats: %w", err))
	}
	return &rec, nil
}

// classify tags database errors as persistence failures, keeping the
// Postgres condition name when there is one.
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &fault.Error{Kind: fault.ErrPersistence, Service: "postgres", Message: pqErr.Code.Name(), Err: err}
	}
	return store.Persistence(err)
}
