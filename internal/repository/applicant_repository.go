package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/drivehq/selection-api/internal/models"
)

// ErrStaleRecord is returned when an optimistic update finds the record
// version changed between read and write.
var ErrStaleRecord = errors.New("record version changed")

const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation. The compound (unique_code, stage) index makes this the
// authoritative serialization point for code collisions.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode
}

const applicantColumns = `id, name, unique_code, contact_number, gender, college, branch, year, email,
        stage, round, scores, notes, audit_log, version, created_at, updated_at`

// ApplicantRepository manages persistence for applicant records.
type ApplicantRepository struct {
	db *sqlx.DB
}

// NewApplicantRepository constructs an ApplicantRepository.
func NewApplicantRepository(db *sqlx.DB) *ApplicantRepository {
	return &ApplicantRepository{db: db}
}

// Search returns applicants matching the filter, newest created first. A
// non-positive Limit returns every match (used by export).
func (r *ApplicantRepository) Search(ctx context.Context, filter models.ApplicantFilter) ([]models.Applicant, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.Stage != "" {
		conditions = append(conditions, fmt.Sprintf("stage = $%d", len(args)+1))
		args = append(args, filter.Stage)
	}
	if filter.Query != "" {
		needle := "%" + strings.ToLower(filter.Query) + "%"
		idx := len(args) + 1
		conditions = append(conditions, fmt.Sprintf(
			"(LOWER(name) LIKE $%d OR LOWER(unique_code) LIKE $%d OR LOWER(contact_number) LIKE $%d OR LOWER(college) LIKE $%d OR LOWER(branch) LIKE $%d OR LOWER(email) LIKE $%d)",
			idx, idx, idx, idx, idx, idx))
		args = append(args, needle)
	}

	query := fmt.Sprintf("SELECT %s FROM applicants WHERE %s ORDER BY created_at DESC",
		applicantColumns, strings.Join(conditions, " AND "))
	if filter.Limit > 0 {
		query = fmt.Sprintf("%s LIMIT %d", query, filter.Limit)
	}

	var applicants []models.Applicant
	if err := r.db.SelectContext(ctx, &applicants, query, args...); err != nil {
		return nil, fmt.Errorf("search applicants: %w", err)
	}
	return applicants, nil
}

// FindByID fetches an applicant by ID.
func (r *ApplicantRepository) FindByID(ctx context.Context, id string) (*models.Applicant, error) {
	query := fmt.Sprintf("SELECT %s FROM applicants WHERE id = $1", applicantColumns)
	var applicant models.Applicant
	if err := r.db.GetContext(ctx, &applicant, query, id); err != nil {
		return nil, err
	}
	return &applicant, nil
}

// ExistsByCodeInStage checks whether another applicant already holds the
// unique code inside the given stage. The check exists for friendly error
// messages; the compound unique index remains authoritative.
func (r *ApplicantRepository) ExistsByCodeInStage(ctx context.Context, code, stage, excludeID string) (bool, error) {
	query := "SELECT 1 FROM applicants WHERE unique_code = $1 AND stage = $2"
	args := []interface{}{code, stage}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check unique code: %w", err)
	}
	return true, nil
}

// Create inserts a new applicant together with its initial audit trail in a
// single statement.
func (r *ApplicantRepository) Create(ctx context.Context, applicant *models.Applicant) error {
	if applicant.ID == "" {
		applicant.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if applicant.CreatedAt.IsZero() {
		applicant.CreatedAt = now
	}
	applicant.UpdatedAt = now
	applicant.Version = 1
	const query = `INSERT INTO applicants (id, name, unique_code, contact_number, gender, college, branch, year, email, stage, round, scores, notes, audit_log, version, created_at, updated_at)
        VALUES (:id, :name, :unique_code, :contact_number, :gender, :college, :branch, :year, :email, :stage, :round, :scores, :notes, :audit_log, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, applicant); err != nil {
		return fmt.Errorf("create applicant: %w", err)
	}
	return nil
}

// Update persists a modified applicant guarded by its version: the write
// only lands when no concurrent mutation committed since the record was
// read, otherwise ErrStaleRecord is returned and the caller retries from a
// fresh read. The embedded trail travels in the same statement, so record
// mutation and audit append commit atomically.
func (r *ApplicantRepository) Update(ctx context.Context, applicant *models.Applicant) error {
	applicant.UpdatedAt = time.Now().UTC()
	const query = `UPDATE applicants SET name = :name, unique_code = :unique_code, contact_number = :contact_number,
        gender = :gender, college = :college, branch = :branch, year = :year, email = :email,
        stage = :stage, round = :round, scores = :scores, notes = :notes, audit_log = :audit_log,
        version = version + 1, updated_at = :updated_at
        WHERE id = :id AND version = :version`
	res, err := r.db.NamedExecContext(ctx, query, applicant)
	if err != nil {
		return fmt.Errorf("update applicant: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update applicant: %w", err)
	}
	if affected == 0 {
		return ErrStaleRecord
	}
	applicant.Version++
	return nil
}

// Delete removes an applicant and its embedded trail. Returns sql.ErrNoRows
// when the record does not exist.
func (r *ApplicantRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM applicants WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete applicant: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete applicant: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
