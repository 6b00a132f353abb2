/**
 * PostgreSQL Store for the Rent-Roll Worker
 *
 * Handles job persistence and record storage in the rentroll schema.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/adverant/nexus/rentroll-worker/internal/rentroll"
)

const postgresSchema = `
CREATE SCHEMA IF NOT EXISTS rentroll;

CREATE TABLE IF NOT EXISTS rentroll.processing_jobs (
	id                 UUID PRIMARY KEY,
	status             TEXT NOT NULL,
	filename           TEXT NOT NULL DEFAULT 'unknown',
	mime_type          TEXT NOT NULL DEFAULT 'application/octet-stream',
	extraction_mode    TEXT,
	condition          TEXT,
	record_count       INTEGER NOT NULL DEFAULT 0,
	skipped_lines      INTEGER NOT NULL DEFAULT 0,
	skipped_pages      INTEGER NOT NULL DEFAULT 0,
	processing_time_ms BIGINT,
	error_code         TEXT,
	error_message      TEXT,
	metadata           JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS rentroll.rent_roll_records (
	id                    UUID PRIMARY KEY,
	job_id                UUID NOT NULL REFERENCES rentroll.processing_jobs(id) ON DELETE CASCADE,
	position              INTEGER NOT NULL,
	ctl_number            TEXT NOT NULL,
	site_number           TEXT NOT NULL,
	unit_type             TEXT NOT NULL,
	status                TEXT NOT NULL,
	resident              TEXT NOT NULL,
	move_in_date          TEXT NOT NULL,
	lease_expiration_date TEXT NOT NULL,
	base_rent             NUMERIC(14,2) NOT NULL,
	pet_fee               NUMERIC(14,2) NOT NULL,
	mtm_premium           NUMERIC(14,2) NOT NULL,
	st_premium            NUMERIC(14,2) NOT NULL,
	vacancy               NUMERIC(14,2) NOT NULL,
	total_charges         NUMERIC(14,2) NOT NULL,
	defaulted_fields      INTEGER NOT NULL DEFAULT 0,
	unparsed_fields       INTEGER NOT NULL DEFAULT 0,
	page                  INTEGER NOT NULL,
	line                  INTEGER NOT NULL,
	UNIQUE (job_id, position)
);
`

// PostgresStore handles database operations
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects and ensures the rentroll schema exists
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// UpdateJobStatus upserts the job row, creating it on the first update
func (p *PostgresStore) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	if err := validateUpdate(update); err != nil {
		return err
	}

	metadataJSON, err := json.Marshal(update.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO rentroll.processing_jobs (
			id, status, filename, mime_type, extraction_mode, condition,
			record_count, skipped_lines, skipped_pages, processing_time_ms,
			error_code, error_message, metadata, created_at, updated_at
		) VALUES (
			$1::uuid, $2,
			COALESCE(NULLIF($3, ''), 'unknown'), COALESCE(NULLIF($4, ''), 'application/octet-stream'),
			NULLIF($5, ''), NULLIF($6, ''),
			$7, $8, $9, NULLIF($10, 0),
			NULLIF($11, ''), NULLIF($12, ''),
			COALESCE(NULLIF($13, 'null')::jsonb, '{}'::jsonb),
			NOW(), NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			filename = CASE WHEN $3 = '' THEN rentroll.processing_jobs.filename ELSE EXCLUDED.filename END,
			mime_type = CASE WHEN $4 = '' THEN rentroll.processing_jobs.mime_type ELSE EXCLUDED.mime_type END,
			extraction_mode = COALESCE(EXCLUDED.extraction_mode, rentroll.processing_jobs.extraction_mode),
			condition = COALESCE(EXCLUDED.condition, rentroll.processing_jobs.condition),
			record_count = COALESCE(NULLIF(EXCLUDED.record_count, 0), rentroll.processing_jobs.record_count),
			skipped_lines = COALESCE(NULLIF(EXCLUDED.skipped_lines, 0), rentroll.processing_jobs.skipped_lines),
			skipped_pages = COALESCE(NULLIF(EXCLUDED.skipped_pages, 0), rentroll.processing_jobs.skipped_pages),
			processing_time_ms = COALESCE(EXCLUDED.processing_time_ms, rentroll.processing_jobs.processing_time_ms),
			error_code = EXCLUDED.error_code,
			error_message = EXCLUDED.error_message,
			metadata = rentroll.processing_jobs.metadata || EXCLUDED.metadata,
			updated_at = NOW()
		RETURNING id
	`

	var returnedID string
	err = p.db.QueryRowContext(
		ctx,
		query,
		update.JobID,            // $1
		update.Status,           // $2
		update.Filename,         // $3
		update.MimeType,         // $4
		update.ExtractionMode,   // $5
		update.Condition,        // $6
		update.RecordCount,      // $7
		update.SkippedLines,     // $8
		update.SkippedPages,     // $9
		update.ProcessingTimeMs, // $10
		update.ErrorCode,        // $11
		update.ErrorMessage,     // $12
		string(metadataJSON),    // $13
	).Scan(&returnedID)

	if err != nil {
		return fmt.Errorf("failed to update job status (job=%s, status=%s): %w",
			update.JobID, update.Status, err)
	}

	return nil
}

// SaveRecords replaces the job's records, preserving encounter order
func (p *PostgresStore) SaveRecords(ctx context.Context, jobID string, records []rentroll.Record) error {
	if jobID == "" {
		return fmt.Errorf("job ID is required")
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rentroll.rent_roll_records WHERE job_id = $1::uuid`, jobID); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyInSchema("rentroll", "rent_roll_records", recordColumns...))
	if err != nil {
		return fmt.Errorf("failed to prepare copy: %w", err)
	}

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, toRow(uuid.New().String(), i, r).args(jobID)...); err != nil {
			stmt.Close()
			return fmt.Errorf("failed to copy record %d: %w", i, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("failed to flush records: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("failed to close copy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit records: %w", err)
	}
	return nil
}

// GetRecords returns a job's records in encounter order
func (p *PostgresStore) GetRecords(ctx context.Context, jobID string) ([]rentroll.Record, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT `+selectRecordColumns+`
		FROM rentroll.rent_roll_records
		WHERE job_id = $1::uuid
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

// GetJobByID retrieves a job by ID
func (p *PostgresStore) GetJobByID(ctx context.Context, jobID string) (*Job, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	query := `
		SELECT
			id, status, filename, mime_type, extraction_mode, condition,
			record_count, skipped_lines, skipped_pages, processing_time_ms,
			error_code, error_message, metadata, created_at, updated_at
		FROM rentroll.processing_jobs
		WHERE id = $1::uuid
	`

	var (
		job                     Job
		mode, condition         sql.NullString
		processingTimeMs        sql.NullInt64
		errorCode, errorMessage sql.NullString
		metadataJSON            []byte
	)

	err := p.db.QueryRowContext(ctx, query, jobID).Scan(
		&job.ID, &job.Status, &job.Filename, &job.MimeType, &mode, &condition,
		&job.RecordCount, &job.SkippedLines, &job.SkippedPages, &processingTimeMs,
		&errorCode, &errorMessage, &metadataJSON, &job.CreatedAt, &job.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	job.ExtractionMode = mode.String
	job.Condition = condition.String
	job.ProcessingTimeMs = processingTimeMs.Int64
	job.ErrorCode = errorCode.String
	job.ErrorMessage = errorMessage.String

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &job.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &job, nil
}

// Close closes the database connection
func (p *PostgresStore) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// GetStats returns connection pool statistics
func (p *PostgresStore) GetStats() sql.DBStats {
	return p.db.Stats()
}
