package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/drivehq/selection-api/internal/models"
	"github.com/drivehq/selection-api/pkg/jobs"
)

type auditLogRepository interface {
	Create(ctx context.Context, entry *models.SystemAuditLog) error
}

// AuditSinkConfig sizes the background writer.
type AuditSinkConfig struct {
	Workers    int
	BufferSize int
}

// AuditSink mirrors lifecycle mutations into the system-wide audit log.
// Writes are fire-and-forget: Record never blocks and never fails the
// caller; a full buffer or a failed insert is logged and dropped. Consumers
// of the mirror must tolerate delayed visibility.
type AuditSink struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewAuditSink constructs the sink over an in-memory job queue.
func NewAuditSink(repo auditLogRepository, cfg AuditSinkConfig, logger *zap.Logger) *AuditSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	sink := &AuditSink{logger: logger}
	handler := func(ctx context.Context, job jobs.Job) error {
		entry, ok := job.Payload.(*models.SystemAuditLog)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", job.Payload)
		}
		return repo.Create(ctx, entry)
	}
	sink.queue = jobs.NewQueue("audit-sink", handler, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		Logger:     logger,
	})
	return sink
}

// Start launches the background writers.
func (s *AuditSink) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *AuditSink) Stop() {
	s.queue.Stop()
}

// Record enqueues one system audit entry without blocking the caller.
func (s *AuditSink) Record(entry models.SystemAuditLog) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	job := jobs.Job{ID: entry.ID, Type: entry.Action, Payload: &entry}
	if err := s.queue.TryEnqueue(job); err != nil {
		s.logger.Warn("dropping system audit entry",
			zap.String("action", entry.Action),
			zap.String("entity_id", entry.EntityID),
			zap.Error(err))
	}
}
