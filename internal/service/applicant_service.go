package service

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/drivehq/selection-api/internal/catalog"
	"github.com/drivehq/selection-api/internal/models"
	"github.com/drivehq/selection-api/internal/repository"
	appErrors "github.com/drivehq/selection-api/pkg/errors"
)

type applicantRepository interface {
	Search(ctx context.Context, filter models.ApplicantFilter) ([]models.Applicant, error)
	FindByID(ctx context.Context, id string) (*models.Applicant, error)
	ExistsByCodeInStage(ctx context.Context, code, stage, excludeID string) (bool, error)
	Create(ctx context.Context, applicant *models.Applicant) error
	Update(ctx context.Context, applicant *models.Applicant) error
	Delete(ctx context.Context, id string) error
}

type systemAuditSink interface {
	Record(entry models.SystemAuditLog)
}

// Retries for optimistic updates racing another writer on the same record.
const maxUpdateAttempts = 3

// searchLimit caps search result sets.
const searchLimit = 500

// ScoreUpdate carries partial score changes. Nil categories are untouched;
// present ones must sit inside 0-100.
type ScoreUpdate struct {
	Physical  *int `json:"Physical" validate:"omitempty,min=0,max=100"`
	GD        *int `json:"GD" validate:"omitempty,min=0,max=100"`
	Interview *int `json:"Interview" validate:"omitempty,min=0,max=100"`
}

func (u *ScoreUpdate) apply(scores *models.ScoreSet) {
	if u == nil {
		return
	}
	if u.Physical != nil {
		scores.Physical = *u.Physical
	}
	if u.GD != nil {
		scores.GD = *u.GD
	}
	if u.Interview != nil {
		scores.Interview = *u.Interview
	}
}

// CreateApplicantRequest holds the payload for registering an applicant.
// Field names mirror the legacy wire contract (listName, marks).
type CreateApplicantRequest struct {
	Name          string       `json:"name" validate:"required,min=2"`
	UniqueCode    string       `json:"uniqueCode" validate:"required,min=2"`
	ContactNumber string       `json:"contactNumber" validate:"omitempty,min=5"`
	Gender        string       `json:"gender" validate:"omitempty,oneof=Male Female Other"`
	College       string       `json:"college"`
	Branch        string       `json:"branch"`
	Year          int          `json:"year" validate:"omitempty,min=1,max=10"`
	Email         string       `json:"email" validate:"omitempty,email"`
	Stage         string       `json:"listName"`
	Notes         string       `json:"notes"`
	Scores        *ScoreUpdate `json:"marks"`
}

// UpdateApplicantRequest holds a partial update. Nil fields are untouched.
type UpdateApplicantRequest struct {
	Name          *string      `json:"name" validate:"omitempty,min=2"`
	UniqueCode    *string      `json:"uniqueCode" validate:"omitempty,min=2"`
	ContactNumber *string      `json:"contactNumber" validate:"omitempty,min=5"`
	Gender        *string      `json:"gender" validate:"omitempty,oneof=Male Female Other"`
	College       *string      `json:"college"`
	Branch        *string      `json:"branch"`
	Year          *int         `json:"year" validate:"omitempty,min=1,max=10"`
	Email         *string      `json:"email" validate:"omitempty,email"`
	Notes         *string      `json:"notes"`
	Scores        *ScoreUpdate `json:"marks"`
}

// ApplicantService is the lifecycle engine: every applicant mutation flows
// through here, against the stage catalog and the record store.
type ApplicantService struct {
	repo      applicantRepository
	stages    *catalog.Catalog
	sink      systemAuditSink
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewApplicantService constructs the lifecycle engine. The catalog is
// injected so tests can run alternate pipelines.
func NewApplicantService(repo applicantRepository, stages *catalog.Catalog, sink systemAuditSink, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ApplicantService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if stages == nil {
		stages = catalog.Default()
	}
	return &ApplicantService{repo: repo, stages: stages, sink: sink, cache: cache, metrics: metrics, validator: validate, logger: logger}
}

// ListStages returns the stage catalog.
func (s *ApplicantService) ListStages() []catalog.Stage {
	return s.stages.Stages()
}

// Create registers a new applicant in the requested (or first) stage with an
// initial CREATED audit entry.
func (s *ApplicantService) Create(ctx context.Context, req CreateApplicantRequest, principal Principal) (applicant *models.Applicant, err error) {
	defer func() { s.metrics.ObserveLifecycleOp("create", err) }()

	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid applicant payload")
	}

	stage := req.Stage
	if stage == "" {
		stage = s.stages.First()
	} else if !s.stages.Contains(stage) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown listName")
	}

	exists, err := s.repo.ExistsByCodeInStage(ctx, req.UniqueCode, stage, "")
	if err != nil {
		return nil, s.storeError(err, "failed to validate unique code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "unique code already exists in this list")
	}

	scores := models.ScoreSet{}
	req.Scores.apply(&scores)

	now := time.Now().UTC()
	applicant = &models.Applicant{
		Name:          req.Name,
		UniqueCode:    req.UniqueCode,
		ContactNumber: req.ContactNumber,
		Gender:        req.Gender,
		College:       req.College,
		Branch:        req.Branch,
		Year:          req.Year,
		Email:         req.Email,
		Stage:         stage,
		Round:         0,
		Scores:        scores,
		Notes:         req.Notes,
		AuditLog: models.AuditTrail{{
			Action:      models.AuditActionCreated,
			PerformedBy: principal.Name,
			Timestamp:   now,
			Meta:        map[string]interface{}{"name": req.Name, "uniqueCode": req.UniqueCode, "listName": stage},
		}},
	}

	if err = s.repo.Create(ctx, applicant); err != nil {
		// The compound index catches the race two concurrent creates can
		// both win against the existence check above.
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "unique code already exists in this list")
		}
		return nil, s.storeError(err, "failed to create applicant")
	}

	s.mirror(principal, models.SystemAuditCreateApplicant, applicant.ID,
		map[string]interface{}{"name": applicant.Name, "uniqueCode": applicant.UniqueCode, "listName": applicant.Stage})
	s.invalidate()
	return applicant, nil
}

// Update applies a partial update; unsupplied fields keep their value and
// score changes merge category by category.
func (s *ApplicantService) Update(ctx context.Context, id string, req UpdateApplicantRequest, principal Principal) (applicant *models.Applicant, err error) {
	defer func() { s.metrics.ObserveLifecycleOp("update", err) }()

	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid applicant payload")
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		applicant, err = s.loadApplicant(ctx, id)
		if err != nil {
			return nil, err
		}

		// A changed code must not collide with another resident of the
		// record's current stage.
		if req.UniqueCode != nil && *req.UniqueCode != applicant.UniqueCode {
			exists, checkErr := s.repo.ExistsByCodeInStage(ctx, *req.UniqueCode, applicant.Stage, id)
			if checkErr != nil {
				return nil, s.storeError(checkErr, "failed to validate unique code")
			}
			if exists {
				return nil, appErrors.Clone(appErrors.ErrConflict, "unique code already exists in this list")
			}
		}

		changed := applyPartial(applicant, req)
		req.Scores.apply(&applicant.Scores)
		if req.Scores != nil {
			changed = append(changed, "marks")
		}

		applicant.AuditLog = append(applicant.AuditLog, models.AuditEntry{
			Action:      models.AuditActionUpdated,
			PerformedBy: principal.Name,
			Timestamp:   time.Now().UTC(),
			Meta: map[string]interface{}{
				"name":          applicant.Name,
				"uniqueCode":    applicant.UniqueCode,
				"listName":      applicant.Stage,
				"updatedFields": changed,
			},
		})

		err = s.repo.Update(ctx, applicant)
		if errors.Is(err, repository.ErrStaleRecord) {
			continue
		}
		if err != nil {
			if repository.IsUniqueViolation(err) {
				return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "unique code already exists in this list")
			}
			return nil, s.storeError(err, "failed to update applicant")
		}

		s.mirror(principal, models.SystemAuditUpdateApplicant, applicant.ID,
			map[string]interface{}{"name": applicant.Name, "uniqueCode": applicant.UniqueCode, "listName": applicant.Stage})
		s.invalidate()
		return applicant, nil
	}
	return nil, appErrors.Wrap(repository.ErrStaleRecord, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "applicant update contention, retry")
}

// Promote moves the applicant one stage forward and resets its round.
// Scores are untouched; history from the prior stage stays visible.
func (s *ApplicantService) Promote(ctx context.Context, id string, principal Principal) (applicant *models.Applicant, err error) {
	defer func() { s.metrics.ObserveLifecycleOp("promote", err) }()

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		applicant, err = s.loadApplicant(ctx, id)
		if err != nil {
			return nil, err
		}

		next, ok := s.stages.Next(applicant.Stage)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "cannot promote further")
		}

		from := applicant.Stage
		applicant.Stage = next
		applicant.Round = 0
		applicant.AuditLog = append(applicant.AuditLog, models.AuditEntry{
			Action:      models.AuditActionPromoted,
			PerformedBy: principal.Name,
			Timestamp:   time.Now().UTC(),
			Meta:        map[string]interface{}{"from": from, "to": next},
		})

		err = s.repo.Update(ctx, applicant)
		if errors.Is(err, repository.ErrStaleRecord) {
			continue
		}
		if err != nil {
			if repository.IsUniqueViolation(err) {
				return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "unique code already exists in the next list")
			}
			return nil, s.storeError(err, "failed to promote applicant")
		}

		s.mirror(principal, models.SystemAuditPromoteApplicant, applicant.ID,
			map[string]interface{}{"from": from, "to": next})
		s.invalidate()
		return applicant, nil
	}
	return nil, appErrors.Wrap(repository.ErrStaleRecord, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "applicant promote contention, retry")
}

// Delete removes the applicant and its embedded history entirely, leaving
// one terminal entry in the system audit log.
func (s *ApplicantService) Delete(ctx context.Context, id string, principal Principal) (err error) {
	defer func() { s.metrics.ObserveLifecycleOp("delete", err) }()

	applicant, err := s.loadApplicant(ctx, id)
	if err != nil {
		return err
	}

	if err = s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "applicant not found")
		}
		return s.storeError(err, "failed to delete applicant")
	}

	s.mirror(principal, models.SystemAuditDeleteApplicant, applicant.ID,
		map[string]interface{}{"name": applicant.Name, "uniqueCode": applicant.UniqueCode, "listName": applicant.Stage})
	s.invalidate()
	return nil
}

// Search returns applicants matching the filter, newest first, capped at
// 500. Read-only: no audit entry is written.
func (s *ApplicantService) Search(ctx context.Context, filter models.ApplicantFilter) ([]models.Applicant, error) {
	if filter.Limit <= 0 || filter.Limit > searchLimit {
		filter.Limit = searchLimit
	}
	if filter.Stage != "" && !s.stages.Contains(filter.Stage) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown listName")
	}

	if cached, ok := s.cache.GetSearch(ctx, filter); ok {
		return cached, nil
	}

	applicants, err := s.repo.Search(ctx, filter)
	if err != nil {
		return nil, s.storeError(err, "failed to search applicants")
	}
	if applicants == nil {
		applicants = []models.Applicant{}
	}

	s.cache.SetSearch(ctx, filter, applicants)
	return applicants, nil
}

// GetAudit returns the embedded audit trail oldest first.
func (s *ApplicantService) GetAudit(ctx context.Context, id string) (models.AuditTrail, error) {
	applicant, err := s.loadApplicant(ctx, id)
	if err != nil {
		return nil, err
	}
	if applicant.AuditLog == nil {
		return models.AuditTrail{}, nil
	}
	return applicant.AuditLog, nil
}

func (s *ApplicantService) loadApplicant(ctx context.Context, id string) (*models.Applicant, error) {
	applicant, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "applicant not found")
		}
		return nil, s.storeError(err, "failed to load applicant")
	}
	return applicant, nil
}

func (s *ApplicantService) mirror(principal Principal, action, entityID string, meta map[string]interface{}) {
	if s.sink == nil {
		return
	}
	s.sink.Record(models.SystemAuditLog{
		Action:      action,
		Entity:      models.EntityApplicant,
		EntityID:    entityID,
		PerformedBy: principal.Name,
		IP:          principal.IP,
		Meta:        meta,
	})
}

func (s *ApplicantService) invalidate() {
	if s.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.cache.Invalidate(ctx)
}

// storeError distinguishes transient store faults from internal failures.
func (s *ApplicantService) storeError(err error, message string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, driver.ErrBadConn) {
		return appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "record store unavailable")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

// applyPartial copies supplied fields onto the applicant and returns the
// names of the fields that were supplied.
func applyPartial(applicant *models.Applicant, req UpdateApplicantRequest) []string {
	changed := make([]string, 0, 9)
	if req.Name != nil {
		applicant.Name = *req.Name
		changed = append(changed, "name")
	}
	if req.UniqueCode != nil {
		applicant.UniqueCode = *req.UniqueCode
		changed = append(changed, "uniqueCode")
	}
	if req.ContactNumber != nil {
		applicant.ContactNumber = *req.ContactNumber
		changed = append(changed, "contactNumber")
	}
	if req.Gender != nil {
		applicant.Gender = *req.Gender
		changed = append(changed, "gender")
	}
	if req.College != nil {
		applicant.College = *req.College
		changed = append(changed, "college")
	}
	if req.Branch != nil {
		applicant.Branch = *req.Branch
		changed = append(changed, "branch")
	}
	if req.Year != nil {
		applicant.Year = *req.Year
		changed = append(changed, "year")
	}
	if req.Email != nil {
		applicant.Email = *req.Email
		changed = append(changed, "email")
	}
	if req.Notes != nil {
		applicant.Notes = *req.Notes
		changed = append(changed, "notes")
	}
	return changed
}

// Principal identifies who performed a mutation. Supplied by the auth
// layer; the engine never validates credentials itself.
type Principal struct {
	Name string
	IP   string
}
