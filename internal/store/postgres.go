package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/tuition-cli/internal/db"
	"github.com/sells-group/tuition-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS records (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	project      TEXT NOT NULL DEFAULT '',
	school       TEXT NOT NULL,
	program      TEXT NOT NULL,
	version      INTEGER NOT NULL,
	status       TEXT NOT NULL,
	verification TEXT,
	confidence   TEXT,
	facts        JSONB NOT NULL,
	citations    JSONB,
	verdict      JSONB,
	attempts     INTEGER NOT NULL DEFAULT 0,
	variant_used TEXT NOT NULL DEFAULT '',
	names_tried  JSONB,
	audit_note   TEXT NOT NULL DEFAULT '',
	duration_ms  BIGINT NOT NULL DEFAULT 0,
	token_usage  JSONB,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(project, school, program, version)
);

CREATE INDEX IF NOT EXISTS idx_records_key ON records(project, school, program);
CREATE INDEX IF NOT EXISTS idx_records_status ON records(status);
CREATE INDEX IF NOT EXISTS idx_records_created_at ON records(created_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveRecord(ctx context.Context, rec *model.ExtractionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	cols, err := marshalRecord(rec)
	if err != nil {
		return err
	}

	// The subselect assigns the next version atomically; the unique
	// constraint catches a concurrent writer racing for the same version.
	err = s.pool.QueryRow(ctx,
		`INSERT INTO records (id, project, school, program, version, status, verification, confidence,
		                      facts, citations, verdict, attempts, variant_used, names_tried, audit_note,
		                      duration_ms, token_usage, created_at)
		 VALUES ($1, $2, $3, $4,
		         (SELECT COALESCE(MAX(version), 0) + 1 FROM records WHERE project = $2 AND school = $3 AND program = $4),
		         $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 RETURNING version`,
		rec.ID, rec.Project, rec.School, rec.Program,
		cols.status, cols.verification, cols.confidence,
		cols.facts, cols.citations, cols.verdict,
		rec.Attempts, rec.VariantUsed, cols.namesTried, rec.AuditNote,
		rec.DurationMS, cols.usage, rec.CreatedAt,
	).Scan(&rec.Version)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert record %s/%s", rec.School, rec.Program)
	}
	return nil
}

const pgRecordColumns = `id, project, school, program, version, status, verification, confidence,
	facts, citations, verdict, attempts, variant_used, names_tried, audit_note,
	duration_ms, token_usage, created_at`

func (s *PostgresStore) GetRecord(ctx context.Context, id string) (*model.ExtractionRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgRecordColumns+` FROM records WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("record not found: %s", id)
	}
	return rec, err
}

func (s *PostgresStore) GetLatest(ctx context.Context, project, school, program string) (*model.ExtractionRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgRecordColumns+` FROM records
		 WHERE project = $1 AND school = $2 AND program = $3
		 ORDER BY version DESC LIMIT 1`,
		project, school, program)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (s *PostgresStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.ExtractionRecord, error) {
	query := `SELECT ` + pgRecordColumns + ` FROM records WHERE 1=1`
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Project != "" {
		query += ` AND project = ` + arg(filter.Project)
	}
	if filter.School != "" {
		query += ` AND school = ` + arg(filter.School)
	}
	if filter.Program != "" {
		query += ` AND program = ` + arg(filter.Program)
	}
	if filter.Status != "" {
		query += ` AND status = ` + arg(string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit)

	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	return collectPgRecords(rows)
}

func (s *PostgresStore) ListVersions(ctx context.Context, project, school, program string) ([]model.ExtractionRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgRecordColumns+` FROM records
		 WHERE project = $1 AND school = $2 AND program = $3
		 ORDER BY version DESC`,
		project, school, program)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list versions")
	}
	defer rows.Close()

	return collectPgRecords(rows)
}

func collectPgRecords(rows pgx.Rows) ([]model.ExtractionRecord, error) {
	var records []model.ExtractionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: iterate records")
}
