package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/tuition-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS records (
	id           TEXT PRIMARY KEY,
	project      TEXT NOT NULL DEFAULT '',
	school       TEXT NOT NULL,
	program      TEXT NOT NULL,
	version      INTEGER NOT NULL,
	status       TEXT NOT NULL,
	verification TEXT,
	confidence   TEXT,
	facts        TEXT NOT NULL,
	citations    TEXT,
	verdict      TEXT,
	attempts     INTEGER NOT NULL DEFAULT 0,
	variant_used TEXT NOT NULL DEFAULT '',
	names_tried  TEXT,
	audit_note   TEXT NOT NULL DEFAULT '',
	duration_ms  INTEGER NOT NULL DEFAULT 0,
	token_usage  TEXT,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE(project, school, program, version)
);

CREATE INDEX IF NOT EXISTS idx_records_key ON records(project, school, program);
CREATE INDEX IF NOT EXISTS idx_records_status ON records(status);
CREATE INDEX IF NOT EXISTS idx_records_created_at ON records(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const recordColumns = `id, project, school, program, version, status, verification, confidence,
	facts, citations, verdict, attempts, variant_used, names_tried, audit_note,
	duration_ms, token_usage, created_at`

func (s *SQLiteStore) SaveRecord(ctx context.Context, rec *model.ExtractionRecord) error {
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save")
	}
	defer tx.Rollback() //nolint:errcheck

	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM records WHERE project = ? AND school = ? AND program = ?`,
		rec.Project, rec.School, rec.Program,
	).Scan(&rec.Version)
	if err != nil {
		return eris.Wrap(err, "sqlite: next version")
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO records (`+recordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Project, rec.School, rec.Program, rec.Version,
		cols.status, cols.verification, cols.confidence,
		cols.facts, cols.citations, cols.verdict,
		rec.Attempts, rec.VariantUsed, cols.namesTried, rec.AuditNote,
		rec.DurationMS, cols.usage, rec.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert record %s/%s", rec.School, rec.Program)
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save")
}

func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*model.ExtractionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("record not found: %s", id)
	}
	return rec, err
}

func (s *SQLiteStore) GetLatest(ctx context.Context, project, school, program string) (*model.ExtractionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records
		 WHERE project = ? AND school = ? AND program = ?
		 ORDER BY version DESC LIMIT 1`,
		project, school, program)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

func (s *SQLiteStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.ExtractionRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE 1=1`
	var args []any

	if filter.Project != "" {
		query += ` AND project = ?`
		args = append(args, filter.Project)
	}
	if filter.School != "" {
		query += ` AND school = ?`
		args = append(args, filter.School)
	}
	if filter.Program != "" {
		query += ` AND program = ?`
		args = append(args, filter.Program)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close()

	return collectRecords(rows)
}

func (s *SQLiteStore) ListVersions(ctx context.Context, project, school, program string) ([]model.ExtractionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records
		 WHERE project = ? AND school = ? AND program = ?
		 ORDER BY version DESC`,
		project, school, program)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list versions")
	}
	defer rows.Close()

	return collectRecords(rows)
}

func collectRecords(rows *sql.Rows) ([]model.ExtractionRecord, error) {
	var records []model.ExtractionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: iterate records")
}

// recordColumnsData holds the JSON-encoded and derived column values for
// one record.
type recordColumnsData struct {
	status       string
	verification *string
	confidence   *string
	facts        string
	citations    *string
	verdict      *string
	namesTried   *string
	usage        *string
}

func marshalRecord(rec *model.ExtractionRecord) (*recordColumnsData, error) {
	factsJSON, err := json.Marshal(rec.Facts)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal facts")
	}
	cols := &recordColumnsData{
		status: string(rec.Facts.Status),
		facts:  string(factsJSON),
	}

	if rec.Verdict != nil {
		verdictJSON, err := json.Marshal(rec.Verdict)
		if err != nil {
			return nil, eris.Wrap(err, "store: marshal verdict")
		}
		v := string(verdictJSON)
		cols.verdict = &v
		vs := string(rec.Verdict.Status)
		cols.verification = &vs
		conf := string(rec.Verdict.Confidence)
		cols.confidence = &conf
	}
	if len(rec.Citations) > 0 {
		citationsJSON, err := json.Marshal(rec.Citations)
		if err != nil {
			return nil, eris.Wrap(err, "store: marshal citations")
		}
		c := string(citationsJSON)
		cols.citations = &c
	}
	if len(rec.NamesTried) > 0 {
		namesJSON, err := json.Marshal(rec.NamesTried)
		if err != nil {
			return nil, eris.Wrap(err, "store: marshal names tried")
		}
		n := string(namesJSON)
		cols.namesTried = &n
	}
	usageJSON, err := json.Marshal(rec.Usage)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal usage")
	}
	u := string(usageJSON)
	cols.usage = &u

	return cols, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*model.ExtractionRecord, error) {
	var rec model.ExtractionRecord
	var status string
	var verification, confidence, factsJSON *string
	var citationsJSON, verdictJSON, namesJSON, usageJSON *string

	err := row.Scan(
		&rec.ID, &rec.Project, &rec.School, &rec.Program, &rec.Version,
		&status, &verification, &confidence,
		&factsJSON, &citationsJSON, &verdictJSON,
		&rec.Attempts, &rec.VariantUsed, &namesJSON, &rec.AuditNote,
		&rec.DurationMS, &usageJSON, &rec.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan record")
	}

	if factsJSON != nil {
		if err := json.Unmarshal([]byte(*factsJSON), &rec.Facts); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal facts")
		}
	}
	if citationsJSON != nil {
		if err := json.Unmarshal([]byte(*citationsJSON), &rec.Citations); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal citations")
		}
	}
	if verdictJSON != nil {
		if err := json.Unmarshal([]byte(*verdictJSON), &rec.Verdict); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal verdict")
		}
	}
	if namesJSON != nil {
		if err := json.Unmarshal([]byte(*namesJSON), &rec.NamesTried); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal names tried")
		}
	}
	if usageJSON != nil {
		if err := json.Unmarshal([]byte(*usageJSON), &rec.Usage); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal usage")
		}
	}
	return &rec, nil
}
