/**
 * Storage for the Rent-Roll Worker
 *
 * Persists job status and extracted records. PostgreSQL backs the queue
 * worker; SQLite backs single-machine and CLI runs.
 */

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/adverant/nexus/rentroll-worker/internal/rentroll"
)

// Job statuses
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Store persists jobs and their records
type Store interface {
	UpdateJobStatus(ctx context.Context, update *JobUpdate) error
	SaveRecords(ctx context.Context, jobID string, records []rentroll.Record) error
	GetRecords(ctx context.Context, jobID string) ([]rentroll.Record, error)
	GetJobByID(ctx context.Context, jobID string) (*Job, error)
	Close() error
}

// JobUpdate represents a job status update. Zero-valued counters and empty
// strings leave the stored value unchanged.
type JobUpdate struct {
	JobID            string
	Status           string
	Filename         string
	MimeType         string
	ExtractionMode   string
	Condition        string
	RecordCount      int
	SkippedLines     int
	SkippedPages     int
	ProcessingTimeMs int64
	ErrorCode        string
	ErrorMessage     string
	Metadata         map[string]interface{}
}

// Job is the stored state of one job
type Job struct {
	ID               string                 `json:"id"`
	Status           string                 `json:"status"`
	Filename         string                 `json:"filename"`
	MimeType         string                 `json:"mimeType"`
	ExtractionMode   string                 `json:"extractionMode,omitempty"`
	Condition        string                 `json:"condition,omitempty"`
	RecordCount      int                    `json:"recordCount"`
	SkippedLines     int                    `json:"skippedLines"`
	SkippedPages     int                    `json:"skippedPages"`
	ProcessingTimeMs int64                  `json:"processingTimeMs,omitempty"`
	ErrorCode        string                 `json:"errorCode,omitempty"`
	ErrorMessage     string                 `json:"errorMessage,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt        time.Time              `json:"createdAt"`
	UpdatedAt        time.Time              `json:"updatedAt"`
}

// Config selects and configures a store
type Config struct {
	Driver      string // "postgres" or "sqlite"
	DatabaseURL string
	SQLitePath  string
}

// NewStore opens the configured store
func NewStore(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgresStore(ctx, cfg.DatabaseURL)
	case "sqlite":
		return NewSQLiteStore(ctx, cfg.SQLitePath)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

func validateUpdate(update *JobUpdate) error {
	if update == nil {
		return fmt.Errorf("update is required")
	}
	if update.JobID == "" {
		return fmt.Errorf("job ID is required")
	}
	if update.Status == "" {
		return fmt.Errorf("status is required")
	}
	return nil
}

// recordRow is the column form of a record shared by both stores
type recordRow struct {
	id       string
	position int
	values   []string
	amounts  []string
	flags    [2]int64
	page     int
	line     int
}

func toRow(id string, position int, r rentroll.Record) recordRow {
	return recordRow{
		id:       id,
		position: position,
		values: []string{
			r.CtlNumber, r.SiteNumber, r.Type, r.Status, r.Resident, r.MoveInDate, r.LeaseExpirationDate,
		},
		amounts: []string{
			r.BaseRent.Decimal().StringFixed(2),
			r.PetFee.Decimal().StringFixed(2),
			r.MTMPremium.Decimal().StringFixed(2),
			r.STPremium.Decimal().StringFixed(2),
			r.Vacancy.Decimal().StringFixed(2),
			r.TotalCharges.Decimal().StringFixed(2),
		},
		flags: [2]int64{int64(r.Defaulted), int64(r.Unparsed)},
		page:  r.Page,
		line:  r.Line,
	}
}

// args returns the row's insert arguments, matching recordColumns
func (row recordRow) args(jobID string) []interface{} {
	args := []interface{}{row.id, jobID, row.position}
	for _, v := range row.values {
		args = append(args, v)
	}
	for _, a := range row.amounts {
		args = append(args, a)
	}
	return append(args, row.flags[0], row.flags[1], row.page, row.line)
}

var recordColumns = []string{
	"id", "job_id", "position",
	"ctl_number", "site_number", "unit_type", "status", "resident", "move_in_date", "lease_expiration_date",
	"base_rent", "pet_fee", "mtm_premium", "st_premium", "vacancy", "total_charges",
	"defaulted_fields", "unparsed_fields", "page", "line",
}

// selectRecordColumns omits id, job_id and position
const selectRecordColumns = `ctl_number, site_number, unit_type, status, resident, move_in_date, lease_expiration_date,
	base_rent, pet_fee, mtm_premium, st_premium, vacancy, total_charges,
	defaulted_fields, unparsed_fields, page, line`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (rentroll.Record, error) {
	var (
		r        rentroll.Record
		amounts  [6]string
		defaults int64
		unparsed int64
	)
	err := s.Scan(
		&r.CtlNumber, &r.SiteNumber, &r.Type, &r.Status, &r.Resident, &r.MoveInDate, &r.LeaseExpirationDate,
		&amounts[0], &amounts[1], &amounts[2], &amounts[3], &amounts[4], &amounts[5],
		&defaults, &unparsed, &r.Page, &r.Line,
	)
	if err != nil {
		return r, err
	}

	money := []*rentroll.Money{&r.BaseRent, &r.PetFee, &r.MTMPremium, &r.STPremium, &r.Vacancy, &r.TotalCharges}
	for i, m := range money {
		parsed, ok := rentroll.NormalizeMoney(amounts[i])
		if !ok {
			return r, fmt.Errorf("stored amount %q is not numeric", amounts[i])
		}
		*m = parsed
	}
	r.Defaulted = rentroll.FieldSet(defaults)
	r.Unparsed = rentroll.FieldSet(unparsed)
	return r, nil
}
