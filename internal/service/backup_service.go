package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/drivehq/selection-api/internal/models"
	appErrors "github.com/drivehq/selection-api/pkg/errors"
	"github.com/drivehq/selection-api/pkg/storage"
)

type backupStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	List() ([]storage.FileInfo, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// BackupServiceConfig tunes snapshot cadence and retention.
type BackupServiceConfig struct {
	Interval  time.Duration
	Retention time.Duration
}

// BackupSnapshot describes one listed snapshot with its download token.
type BackupSnapshot struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// BackupService periodically snapshots all applicants to local storage.
// Failures are logged and the next tick tries again; the lifecycle engine
// never depends on it.
type BackupService struct {
	repo    applicantRepository
	storage backupStorage
	signer  *storage.SignedURLSigner
	cfg     BackupServiceConfig
	logger  *zap.Logger
}

// NewBackupService constructs a BackupService.
func NewBackupService(repo applicantRepository, store backupStorage, signer *storage.SignedURLSigner, cfg BackupServiceConfig, logger *zap.Logger) *BackupService {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 7 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackupService{repo: repo, storage: store, signer: signer, cfg: cfg, logger: logger}
}

// Run snapshots on the configured interval until ctx is cancelled.
func (s *BackupService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if name, err := s.Snapshot(ctx); err != nil {
				s.logger.Error("backup snapshot failed", zap.Error(err))
			} else {
				s.logger.Info("backup snapshot written", zap.String("file", name))
			}
			if deleted, err := s.storage.CleanupOlderThan(s.cfg.Retention); err != nil {
				s.logger.Warn("backup cleanup failed", zap.Error(err))
			} else if len(deleted) > 0 {
				s.logger.Info("stale backups removed", zap.Strings("files", deleted))
			}
		}
	}
}

// Snapshot dumps every applicant as a JSON array to a timestamped file.
func (s *BackupService) Snapshot(ctx context.Context) (string, error) {
	applicants, err := s.repo.Search(ctx, models.ApplicantFilter{})
	if err != nil {
		return "", fmt.Errorf("load applicants for backup: %w", err)
	}
	if applicants == nil {
		applicants = []models.Applicant{}
	}
	payload, err := json.MarshalIndent(applicants, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal backup: %w", err)
	}
	name := fmt.Sprintf("backup_%d.json", time.Now().Unix())
	if _, err := s.storage.Save(name, payload); err != nil {
		return "", err
	}
	return name, nil
}

// List returns stored snapshots with signed download URLs, newest first.
func (s *BackupService) List(apiPrefix string) ([]BackupSnapshot, error) {
	files, err := s.storage.List()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list backups")
	}
	snapshots := make([]BackupSnapshot, 0, len(files))
	for _, f := range files {
		token, expiresAt, err := s.signer.Generate(f.Name)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign backup url")
		}
		snapshots = append(snapshots, BackupSnapshot{
			Name:      f.Name,
			Size:      f.Size,
			CreatedAt: f.ModifiedAt,
			URL:       fmt.Sprintf("%s/backups/download/%s", apiPrefix, token),
			ExpiresAt: expiresAt,
		})
	}
	return snapshots, nil
}

// Open validates a download token and returns the snapshot file handle.
func (s *BackupService) Open(token string) (*os.File, error) {
	relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "backup not found")
	}
	return file, nil
}
