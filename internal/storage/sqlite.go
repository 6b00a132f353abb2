package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adverant/nexus/rentroll-worker/internal/rentroll"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS processing_jobs (
	id                 TEXT PRIMARY KEY,
	status             TEXT NOT NULL,
	filename           TEXT NOT NULL DEFAULT 'unknown',
	mime_type          TEXT NOT NULL DEFAULT 'application/octet-stream',
	extraction_mode    TEXT NOT NULL DEFAULT '',
	condition          TEXT NOT NULL DEFAULT '',
	record_count       INTEGER NOT NULL DEFAULT 0,
	skipped_lines      INTEGER NOT NULL DEFAULT 0,
	skipped_pages      INTEGER NOT NULL DEFAULT 0,
	processing_time_ms INTEGER NOT NULL DEFAULT 0,
	error_code         TEXT NOT NULL DEFAULT '',
	error_message      TEXT NOT NULL DEFAULT '',
	metadata           TEXT NOT NULL DEFAULT '{}',
	created_at         DATETIME NOT NULL,
	updated_at         DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS rent_roll_records (
	id                    TEXT PRIMARY KEY,
	job_id                TEXT NOT NULL REFERENCES processing_jobs(id) ON DELETE CASCADE,
	position              INTEGER NOT NULL,
	ctl_number            TEXT NOT NULL,
	site_number           TEXT NOT NULL,
	unit_type             TEXT NOT NULL,
	status                TEXT NOT NULL,
	resident              TEXT NOT NULL,
	move_in_date          TEXT NOT NULL,
	lease_expiration_date TEXT NOT NULL,
	base_rent             TEXT NOT NULL,
	pet_fee               TEXT NOT NULL,
	mtm_premium           TEXT NOT NULL,
	st_premium            TEXT NOT NULL,
	vacancy               TEXT NOT NULL,
	total_charges         TEXT NOT NULL,
	defaulted_fields      INTEGER NOT NULL DEFAULT 0,
	unparsed_fields       INTEGER NOT NULL DEFAULT 0,
	page                  INTEGER NOT NULL,
	line                  INTEGER NOT NULL,
	UNIQUE (job_id, position)
);
`

// SQLiteStore implements Store on a local SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

// NewSQLiteStore opens dbPath (":memory:" for a private in-memory database)
// and creates the tables.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("dbPath is required")
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection keeps an in-memory database alive and serializes writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath, now: time.Now}, nil
}

// UpdateJobStatus upserts the job row.
func (s *SQLiteStore) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	if err := validateUpdate(update); err != nil {
		return err
	}

	metadataJSON := "{}"
	if update.Metadata != nil {
		data, err := json.Marshal(update.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadataJSON = string(data)
	}

	now := s.now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO processing_jobs (
			id, status, filename, mime_type, extraction_mode, condition,
			record_count, skipped_lines, skipped_pages, processing_time_ms,
			error_code, error_message, metadata, created_at, updated_at
		) VALUES (
			?1, ?2, COALESCE(NULLIF(?3, ''), 'unknown'), COALESCE(NULLIF(?4, ''), 'application/octet-stream'),
			?5, ?6, ?7, ?8, ?9, ?10, ?11, ?12, ?13, ?14, ?14
		)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			filename = CASE WHEN ?3 = '' THEN processing_jobs.filename ELSE excluded.filename END,
			mime_type = CASE WHEN ?4 = '' THEN processing_jobs.mime_type ELSE excluded.mime_type END,
			extraction_mode = CASE WHEN ?5 = '' THEN processing_jobs.extraction_mode ELSE ?5 END,
			condition = CASE WHEN ?6 = '' THEN processing_jobs.condition ELSE ?6 END,
			record_count = CASE WHEN ?7 = 0 THEN processing_jobs.record_count ELSE ?7 END,
			skipped_lines = CASE WHEN ?8 = 0 THEN processing_jobs.skipped_lines ELSE ?8 END,
			skipped_pages = CASE WHEN ?9 = 0 THEN processing_jobs.skipped_pages ELSE ?9 END,
			processing_time_ms = CASE WHEN ?10 = 0 THEN processing_jobs.processing_time_ms ELSE ?10 END,
			error_code = ?11,
			error_message = ?12,
			metadata = json_patch(processing_jobs.metadata, ?13),
			updated_at = ?14
	`,
		update.JobID, update.Status, update.Filename, update.MimeType,
		update.ExtractionMode, update.Condition,
		update.RecordCount, update.SkippedLines, update.SkippedPages, update.ProcessingTimeMs,
		update.ErrorCode, update.ErrorMessage, metadataJSON, now,
	)
	if err != nil {
		return fmt.Errorf("failed to update job status (job=%s, status=%s): %w",
			update.JobID, update.Status, err)
	}
	return nil
}

// SaveRecords replaces the job's records in one transaction.
func (s *SQLiteStore) SaveRecords(ctx context.Context, jobID string, records []rentroll.Record) error {
	if jobID == "" {
		return fmt.Errorf("job ID is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rent_roll_records WHERE job_id = ?`, jobID); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(recordColumns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO rent_roll_records (%s) VALUES (%s)`,
		strings.Join(recordColumns, ", "), placeholders,
	))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, toRow(uuid.New().String(), i, r).args(jobID)...); err != nil {
			return fmt.Errorf("failed to insert record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit records: %w", err)
	}
	return nil
}

// GetRecords returns a job's records in encounter order.
func (s *SQLiteStore) GetRecords(ctx context.Context, jobID string) ([]rentroll.Record, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectRecordColumns+`
		FROM rent_roll_records
		WHERE job_id = ?
		ORDER BY position
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []rentroll.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetJobByID retrieves a job by ID.
func (s *SQLiteStore) GetJobByID(ctx context.Context, jobID string) (*Job, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	var (
		job          Job
		metadataJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			id, status, filename, mime_type, extraction_mode, condition,
			record_count, skipped_lines, skipped_pages, processing_time_ms,
			error_code, error_message, metadata, created_at, updated_at
		FROM processing_jobs
		WHERE id = ?
	`, jobID).Scan(
		&job.ID, &job.Status, &job.Filename, &job.MimeType, &job.ExtractionMode, &job.Condition,
		&job.RecordCount, &job.SkippedLines, &job.SkippedPages, &job.ProcessingTimeMs,
		&job.ErrorCode, &job.ErrorMessage, &metadataJSON, &job.CreatedAt, &job.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	if err := json.Unmarshal([]byte(metadataJSON), &job.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return &job, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
