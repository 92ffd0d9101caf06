package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivehq/selection-api/internal/models"
)

func newApplicantMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func applicantRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "unique_code", "contact_number", "gender", "college", "branch", "year", "email",
		"stage", "round", "scores", "notes", "audit_log", "version", "created_at", "updated_at",
	}).AddRow(
		"id-1", "Asha", "C1", "5550001", "Female", "NIT", "CSE", 3, "asha@example.com",
		"Physical", 1, []byte(`{"Physical":80,"GD":0,"Interview":0}`), "strong",
		[]byte(`[{"action":"CREATED","performedBy":"admin","timestamp":"2026-03-01T10:00:00Z"}]`),
		1, time.Now(), time.Now(),
	)
}

func TestApplicantRepositorySearch(t *testing.T) {
	db, mock, cleanup := newApplicantMock(t)
	defer cleanup()
	repo := NewApplicantRepository(db)

	mock.ExpectQuery("(?s)SELECT (.+) FROM applicants WHERE 1=1 AND stage = \\$1 AND \\(LOWER\\(name\\) LIKE \\$2 (.+)\\) ORDER BY created_at DESC LIMIT 500").
		WithArgs("Physical", "%asha%").
		WillReturnRows(applicantRows())

	applicants, err := repo.Search(context.Background(), models.ApplicantFilter{Query: "Asha", Stage: "Physical", Limit: 500})
	require.NoError(t, err)
	require.Len(t, applicants, 1)
	assert.Equal(t, "C1", applicants[0].UniqueCode)
	assert.Equal(t, 80, applicants[0].Scores.Physical)
	require.Len(t, applicants[0].AuditLog, 1)
	assert.Equal(t, models.AuditActionCreated, applicants[0].AuditLog[0].Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicantRepositorySearchUnlimited(t *testing.T) {
	db, mock, cleanup := newApplicantMock(t)
	defer cleanup()
	repo := NewApplicantRepository(db)

	mock.ExpectQuery("(?s)SELECT (.+) FROM applicants WHERE 1=1 ORDER BY created_at DESC$").
		WillReturnRows(applicantRows())

	applicants, err := repo.Search(context.Background(), models.ApplicantFilter{})
	require.NoError(t, err)
	assert.Len(t, applicants, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicantRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newApplicantMock(t)
	defer cleanup()
	repo := NewApplicantRepository(db)

	mock.ExpectQuery("(?s)SELECT (.+) FROM applicants WHERE id = \\$1").
		WithArgs("id-1").
		WillReturnRows(applicantRows())

	applicant, err := repo.FindByID(context.Background(), "id-1")
	require.NoError(t, err)
	assert.Equal(t, "Asha", applicant.Name)
	assert.Equal(t, 1, applicant.Version)

	mock.ExpectQuery("(?s)SELECT (.+) FROM applicants WHERE id = \\$1").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.FindByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicantRepositoryExistsByCodeInStage(t *testing.T) {
	db, mock, cleanup := newApplicantMock(t)
	defer cleanup()
	repo := NewApplicantRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM applicants WHERE unique_code = $1 AND stage = $2 LIMIT 1")).
		WithArgs("C1", "Physical").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsByCodeInStage(context.Background(), "C1", "Physical", "")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM applicants WHERE unique_code = $1 AND stage = $2 AND id <> $3 LIMIT 1")).
		WithArgs("C1", "Physical", "id-1").
		WillReturnError(sql.ErrNoRows)

	exists, err = repo.ExistsByCodeInStage(context.Background(), "C1", "Physical", "id-1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicantRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newApplicantMock(t)
	defer cleanup()
	repo := NewApplicantRepository(db)

	mock.ExpectExec("INSERT INTO applicants").
		WillReturnResult(sqlmock.NewResult(0, 1))

	applicant := &models.Applicant{Name: "Asha", UniqueCode: "C1", Stage: "Physical"}
	require.NoError(t, repo.Create(context.Background(), applicant))
	assert.NotEmpty(t, applicant.ID, "id assigned on insert")
	assert.Equal(t, 1, applicant.Version)
	assert.False(t, applicant.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicantRepositoryCreateUniqueViolation(t *testing.T) {
	db, mock, cleanup := newApplicantMock(t)
	defer cleanup()
	repo := NewApplicantRepository(db)

	mock.ExpectExec("INSERT INTO applicants").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "applicants_unique_code_stage"})

	err := repo.Create(context.Background(), &models.Applicant{Name: "Asha", UniqueCode: "C1", Stage: "Physical"})
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicantRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newApplicantMock(t)
	defer cleanup()
	repo := NewApplicantRepository(db)

	mock.ExpectExec("(?s)UPDATE applicants SET (.+) WHERE id = (.+) AND version = (.+)").
		WillReturnResult(sqlmock.NewResult(0, 1))

	applicant := &models.Applicant{ID: "id-1", Name: "Asha", UniqueCode: "C1", Stage: "Physical", Version: 3}
	require.NoError(t, repo.Update(context.Background(), applicant))
	assert.Equal(t, 4, applicant.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicantRepositoryUpdateStale(t *testing.T) {
	db, mock, cleanup := newApplicantMock(t)
	defer cleanup()
	repo := NewApplicantRepository(db)

	mock.ExpectExec("UPDATE applicants SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	applicant := &models.Applicant{ID: "id-1", Name: "Asha", UniqueCode: "C1", Stage: "Physical", Version: 3}
	err := repo.Update(context.Background(), applicant)
	assert.True(t, errors.Is(err, ErrStaleRecord))
	assert.Equal(t, 3, applicant.Version, "version untouched on stale write")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicantRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newApplicantMock(t)
	defer cleanup()
	repo := NewApplicantRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM applicants WHERE id = $1")).
		WithArgs("id-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "id-1"))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM applicants WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}
