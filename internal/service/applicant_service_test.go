package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/drivehq/selection-api/internal/catalog"
	"github.com/drivehq/selection-api/internal/models"
	"github.com/drivehq/selection-api/internal/repository"
	appErrors "github.com/drivehq/selection-api/pkg/errors"
)

type mockApplicantRepo struct {
	applicants map[string]models.Applicant
	seq        int
	createErr  error
	updateErr  error
	staleTimes int
	searchErr  error
}

func newMockApplicantRepo() *mockApplicantRepo {
	return &mockApplicantRepo{applicants: make(map[string]models.Applicant)}
}

func (m *mockApplicantRepo) Search(ctx context.Context, filter models.ApplicantFilter) ([]models.Applicant, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	out := make([]models.Applicant, 0, len(m.applicants))
	for _, a := range m.applicants {
		if filter.Stage != "" && a.Stage != filter.Stage {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *mockApplicantRepo) FindByID(ctx context.Context, id string) (*models.Applicant, error) {
	if a, ok := m.applicants[id]; ok {
		copied := a
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockApplicantRepo) ExistsByCodeInStage(ctx context.Context, code, stage, excludeID string) (bool, error) {
	for id, a := range m.applicants {
		if a.UniqueCode == code && a.Stage == stage && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockApplicantRepo) Create(ctx context.Context, applicant *models.Applicant) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.seq++
	if applicant.ID == "" {
		applicant.ID = fmt.Sprintf("id-%d", m.seq)
	}
	now := time.Now().UTC()
	if applicant.CreatedAt.IsZero() {
		applicant.CreatedAt = now.Add(time.Duration(m.seq) * time.Millisecond)
	}
	applicant.UpdatedAt = now
	applicant.Version = 1
	m.applicants[applicant.ID] = *applicant
	return nil
}

func (m *mockApplicantRepo) Update(ctx context.Context, applicant *models.Applicant) error {
	if m.staleTimes > 0 {
		m.staleTimes--
		return repository.ErrStaleRecord
	}
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.applicants[applicant.ID]; !ok {
		return repository.ErrStaleRecord
	}
	applicant.Version++
	m.applicants[applicant.ID] = *applicant
	return nil
}

func (m *mockApplicantRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.applicants[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.applicants, id)
	return nil
}

type mockSink struct {
	entries []models.SystemAuditLog
}

func (m *mockSink) Record(entry models.SystemAuditLog) {
	m.entries = append(m.entries, entry)
}

func newTestService(repo *mockApplicantRepo, sink *mockSink) *ApplicantService {
	return NewApplicantService(repo, catalog.Default(), sink, nil, nil, validator.New(), zap.NewNop())
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func TestCreateDefaultsToFirstStage(t *testing.T) {
	repo := newMockApplicantRepo()
	sink := &mockSink{}
	svc := newTestService(repo, sink)

	applicant, err := svc.Create(context.Background(), CreateApplicantRequest{
		Name:       "Asha",
		UniqueCode: "C1",
	}, Principal{Name: "admin"})
	require.NoError(t, err)

	assert.Equal(t, "Physical", applicant.Stage)
	assert.Equal(t, 0, applicant.Round)
	require.Len(t, applicant.AuditLog, 1)
	assert.Equal(t, models.AuditActionCreated, applicant.AuditLog[0].Action)
	assert.Equal(t, "admin", applicant.AuditLog[0].PerformedBy)
	assert.Equal(t, "Physical", applicant.AuditLog[0].Meta["listName"])

	require.Len(t, sink.entries, 1)
	assert.Equal(t, models.SystemAuditCreateApplicant, sink.entries[0].Action)
	assert.Equal(t, applicant.ID, sink.entries[0].EntityID)
}

func TestCreateWithExplicitStageAndScores(t *testing.T) {
	repo := newMockApplicantRepo()
	svc := newTestService(repo, &mockSink{})

	applicant, err := svc.Create(context.Background(), CreateApplicantRequest{
		Name:       "Bina",
		UniqueCode: "C2",
		Stage:      "GD",
		Scores:     &ScoreUpdate{Physical: intPtr(75)},
	}, Principal{Name: "admin"})
	require.NoError(t, err)
	assert.Equal(t, "GD", applicant.Stage)
	assert.Equal(t, 75, applicant.Scores.Physical)
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(newMockApplicantRepo(), &mockSink{})

	_, err := svc.Create(context.Background(), CreateApplicantRequest{Name: "A", UniqueCode: "C1"}, Principal{})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))

	_, err = svc.Create(context.Background(), CreateApplicantRequest{Name: "Asha", UniqueCode: "C1", Scores: &ScoreUpdate{Physical: intPtr(101)}}, Principal{})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))

	_, err = svc.Create(context.Background(), CreateApplicantRequest{Name: "Asha", UniqueCode: "C1", Stage: "Nowhere"}, Principal{})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestCreateDuplicateCodeInStage(t *testing.T) {
	repo := newMockApplicantRepo()
	svc := newTestService(repo, &mockSink{})

	_, err := svc.Create(context.Background(), CreateApplicantRequest{Name: "Asha", UniqueCode: "C1"}, Principal{})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateApplicantRequest{Name: "Chaya", UniqueCode: "C1"}, Principal{})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict))
}

func TestCreateRaceLosesToStoreConstraint(t *testing.T) {
	// Both writers pass the existence check; the compound index decides.
	repo := newMockApplicantRepo()
	repo.createErr = &pq.Error{Code: "23505"}
	svc := newTestService(repo, &mockSink{})

	_, err := svc.Create(context.Background(), CreateApplicantRequest{Name: "Asha", UniqueCode: "C1"}, Principal{})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict))
}

func TestUpdatePartialLeavesOtherFieldsUntouched(t *testing.T) {
	repo := newMockApplicantRepo()
	sink := &mockSink{}
	svc := newTestService(repo, sink)

	created, err := svc.Create(context.Background(), CreateApplicantRequest{
		Name:       "Asha",
		UniqueCode: "C1",
		College:    "NIT",
		Scores:     &ScoreUpdate{Physical: intPtr(80)},
	}, Principal{Name: "admin"})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), created.ID, UpdateApplicantRequest{Notes: strPtr("fit")}, Principal{Name: "admin"})
	require.NoError(t, err)

	assert.Equal(t, "fit", updated.Notes)
	assert.Equal(t, created.Name, updated.Name)
	assert.Equal(t, created.UniqueCode, updated.UniqueCode)
	assert.Equal(t, created.College, updated.College)
	assert.Equal(t, created.Scores, updated.Scores)
	assert.Equal(t, created.Stage, updated.Stage)

	require.Len(t, updated.AuditLog, 2)
	entry := updated.AuditLog[1]
	assert.Equal(t, models.AuditActionUpdated, entry.Action)
	assert.Equal(t, []string{"notes"}, entry.Meta["updatedFields"])
}

func TestUpdateMergesScoresByCategory(t *testing.T) {
	repo := newMockApplicantRepo()
	svc := newTestService(repo, &mockSink{})

	created, err := svc.Create(context.Background(), CreateApplicantRequest{
		Name:       "Asha",
		UniqueCode: "C1",
		Scores:     &ScoreUpdate{Physical: intPtr(80), GD: intPtr(60)},
	}, Principal{})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), created.ID, UpdateApplicantRequest{
		Scores: &ScoreUpdate{GD: intPtr(70)},
	}, Principal{})
	require.NoError(t, err)

	assert.Equal(t, 80, updated.Scores.Physical, "unsupplied category kept")
	assert.Equal(t, 70, updated.Scores.GD)
	assert.Equal(t, 0, updated.Scores.Interview)
}

func TestUpdateCodeCollisionInCurrentStage(t *testing.T) {
	repo := newMockApplicantRepo()
	svc := newTestService(repo, &mockSink{})

	_, err := svc.Create(context.Background(), CreateApplicantRequest{Name: "Asha", UniqueCode: "C1"}, Principal{})
	require.NoError(t, err)
	other, err := svc.Create(context.Background(), CreateApplicantRequest{Name: "Bina", UniqueCode: "C2"}, Principal{})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), other.ID, UpdateApplicantRequest{UniqueCode: strPtr("C1")}, Principal{})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict))
}

func TestUpdateNotFound(t *testing.T) {
	svc := newTestService(newMockApplicantRepo(), &mockSink{})

	_, err := svc.Update(context.Background(), "missing", UpdateApplicantRequest{Notes: strPtr("x")}, Principal{})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestUpdateRetriesOnStaleRecord(t *testing.T) {
	repo := newMockApplicantRepo()
	svc := newTestService(repo, &mockSink{})

	created, err := svc.Create(context.Background(), CreateApplicantRequest{Name: "Asha", UniqueCode: "C1"}, Principal{})
	require.NoError(t, err)

	repo.staleTimes = 2
	updated, err := svc.Update(context.Background(), created.ID, UpdateApplicantRequest{Notes: strPtr("retry")}, Principal{})
	require.NoError(t, err)
	assert.Equal(t, "retry", updated.Notes)
	require.Len(t, updated.AuditLog, 2, "one UPDATED entry despite retries")
}

func TestUpdateGivesUpAfterContention(t *testing.T) {
	repo := newMockApplicantRepo()
	svc := newTestService(repo, &mockSink{})

	created, err := svc.Create(context.Background(), CreateApplicantRequest{Name: "Asha", UniqueCode: "C1"}, Principal{})
	require.NoError(t, err)

	repo.staleTimes = maxUpdateAttempts
	_, err = svc.Update(context.Background(), created.ID, UpdateApplicantRequest{Notes: strPtr("x")}, Principal{})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrStoreUnavailable))
}

func TestPromoteWalksStagesForward(t *testing.T) {
	repo := newMockApplicantRepo()
	sink := &mockSink{}
	svc := newTestService(repo, sink)

	created, err := svc.Create(context.Background(), CreateApplicantRequest{
		Name:       "Asha",
		UniqueCode: "C1",
		Scores:     &ScoreUpdate{Physical: intPtr(88)},
	}, Principal{Name: "admin"})
	require.NoError(t, err)

	expected := []string{"GD", "Interview", "Final Merit"}
	for _, want := range expected {
		promoted, err := svc.Promote(context.Background(), created.ID, Principal{Name: "admin"})
		require.NoError(t, err)
		assert.Equal(t, want, promoted.Stage)
		assert.Equal(t, 0, promoted.Round)
		assert.Equal(t, 88, promoted.Scores.Physical, "scores survive promotion")
	}

	// Terminal stage: no further promotion, state untouched.
	_, err = svc.Promote(context.Background(), created.ID, Principal{Name: "admin"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidTransition))
	final := repo.applicants[created.ID]
	assert.Equal(t, "Final Merit", final.Stage)

	// PROMOTED entries form a strictly increasing stage walk.
	stages := []string{}
	for _, entry := range final.AuditLog {
		if entry.Action == models.AuditActionPromoted {
			stages = append(stages, entry.Meta["to"].(string))
		}
	}
	assert.Equal(t, expected, stages)
}

func TestPromoteMirrorsTransition(t *testing.T) {
	repo := newMockApplicantRepo()
	sink := &mockSink{}
	svc := newTestService(repo, sink)

	created, err := svc.Create(context.Background(), CreateApplicantRequest{Name: "Asha", UniqueCode: "C1"}, Principal{})
	require.NoError(t, err)

	_, err = svc.Promote(context.Background(), created.ID, Principal{Name: "admin"})
	require.NoError(t, err)

	require.Len(t, sink.entries, 2)
	promote := sink.entries[1]
	assert.Equal(t, models.SystemAuditPromoteApplicant, promote.Action)
	assert.Equal(t, "Physical", promote.Meta["from"])
	assert.Equal(t, "GD", promote.Meta["to"])
}

func TestCodeFreedAfterPromotion(t *testing.T) {
	// Scenario: Asha holds C1 in Physical, is promoted to GD; C1 becomes
	// free in Physical but occupied in GD.
	repo := newMockApplicantRepo()
	svc := newTestService(repo, &mockSink{})

	asha, err := svc.Create(context.Background(), CreateApplicantRequest{Name: "Asha", UniqueCode: "C1"}, Principal{})
	require.NoError(t, err)
	promoted, err := svc.Promote(context.Background(), asha.ID, Principal{})
	require.NoError(t, err)
	require.Equal(t, "GD", promoted.Stage)
	require.Equal(t, 0, promoted.Round)

	_, err = svc.Create(context.Background(), CreateApplicantRequest{Name: "Bina", UniqueCode: "C1", Stage: "Physical"}, Principal{})
	require.NoError(t, err, "code freed in Physical after promotion")

	_, err = svc.Create(context.Background(), CreateApplicantRequest{Name: "Chaya", UniqueCode: "C1", Stage: "GD"}, Principal{})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict))
}

func TestDeleteEmitsTerminalMirrorEntry(t *testing.T) {
	repo := newMockApplicantRepo()
	sink := &mockSink{}
	svc := newTestService(repo, sink)

	created, err := svc.Create(context.Background(), CreateApplicantRequest{Name: "Asha", UniqueCode: "C1"}, Principal{Name: "admin"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), created.ID, Principal{Name: "admin"}))
	assert.Empty(t, repo.applicants)

	require.Len(t, sink.entries, 2)
	terminal := sink.entries[1]
	assert.Equal(t, models.SystemAuditDeleteApplicant, terminal.Action)
	assert.Equal(t, "C1", terminal.Meta["uniqueCode"])

	err = svc.Delete(context.Background(), created.ID, Principal{})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestSearchFiltersAndCaps(t *testing.T) {
	repo := newMockApplicantRepo()
	svc := newTestService(repo, &mockSink{})

	for i := 0; i < 3; i++ {
		_, err := svc.Create(context.Background(), CreateApplicantRequest{
			Name:       fmt.Sprintf("Applicant %d", i),
			UniqueCode: fmt.Sprintf("C%d", i),
		}, Principal{})
		require.NoError(t, err)
	}

	results, err := svc.Search(context.Background(), models.ApplicantFilter{Stage: "Physical"})
	require.NoError(t, err)
	assert.Len(t, results, 3)
	for i := 1; i < len(results); i++ {
		assert.False(t, results[i].CreatedAt.After(results[i-1].CreatedAt), "newest first")
	}

	results, err = svc.Search(context.Background(), models.ApplicantFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)

	_, err = svc.Search(context.Background(), models.ApplicantFilter{Stage: "Nowhere"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestGetAuditOldestFirst(t *testing.T) {
	repo := newMockApplicantRepo()
	svc := newTestService(repo, &mockSink{})

	created, err := svc.Create(context.Background(), CreateApplicantRequest{Name: "Asha", UniqueCode: "C1"}, Principal{})
	require.NoError(t, err)
	_, err = svc.Update(context.Background(), created.ID, UpdateApplicantRequest{Notes: strPtr("x")}, Principal{})
	require.NoError(t, err)
	_, err = svc.Promote(context.Background(), created.ID, Principal{})
	require.NoError(t, err)

	trail, err := svc.GetAudit(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, trail, 3)
	assert.Equal(t, models.AuditActionCreated, trail[0].Action)
	assert.Equal(t, models.AuditActionUpdated, trail[1].Action)
	assert.Equal(t, models.AuditActionPromoted, trail[2].Action)

	_, err = svc.GetAudit(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestStoreTimeoutSurfacesAsUnavailable(t *testing.T) {
	repo := newMockApplicantRepo()
	repo.searchErr = context.DeadlineExceeded
	svc := newTestService(repo, &mockSink{})

	_, err := svc.Search(context.Background(), models.ApplicantFilter{})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrStoreUnavailable))
}

func TestAlternateCatalogInjection(t *testing.T) {
	repo := newMockApplicantRepo()
	stages := catalog.New([]catalog.Stage{{Name: "Screening"}, {Name: "Offer"}})
	svc := NewApplicantService(repo, stages, &mockSink{}, nil, nil, validator.New(), zap.NewNop())

	created, err := svc.Create(context.Background(), CreateApplicantRequest{Name: "Asha", UniqueCode: "C1"}, Principal{})
	require.NoError(t, err)
	assert.Equal(t, "Screening", created.Stage)

	promoted, err := svc.Promote(context.Background(), created.ID, Principal{})
	require.NoError(t, err)
	assert.Equal(t, "Offer", promoted.Stage)

	_, err = svc.Promote(context.Background(), created.ID, Principal{})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidTransition))
}
