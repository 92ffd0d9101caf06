package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/drivehq/selection-api/internal/models"
)

type capturingAuditRepo struct {
	mu      sync.Mutex
	entries []models.SystemAuditLog
	block   chan struct{}
}

func (r *capturingAuditRepo) Create(ctx context.Context, entry *models.SystemAuditLog) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *capturingAuditRepo) snapshot() []models.SystemAuditLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.SystemAuditLog, len(r.entries))
	copy(out, r.entries)
	return out
}

func TestAuditSinkDeliversEntries(t *testing.T) {
	repo := &capturingAuditRepo{}
	sink := NewAuditSink(repo, AuditSinkConfig{Workers: 1, BufferSize: 8}, zap.NewNop())
	sink.Start(context.Background())
	defer sink.Stop()

	sink.Record(models.SystemAuditLog{
		Action:      models.SystemAuditCreateApplicant,
		Entity:      models.EntityApplicant,
		EntityID:    "id-1",
		PerformedBy: "admin",
	})

	require.Eventually(t, func() bool {
		return len(repo.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	entry := repo.snapshot()[0]
	assert.Equal(t, models.SystemAuditCreateApplicant, entry.Action)
	assert.Equal(t, "id-1", entry.EntityID)
	assert.NotEmpty(t, entry.ID, "entries get an id when the caller omits one")
}

func TestAuditSinkNeverBlocksCaller(t *testing.T) {
	// A stalled store must not stall Record: once the buffer fills the
	// sink drops entries instead of waiting.
	repo := &capturingAuditRepo{block: make(chan struct{})}
	sink := NewAuditSink(repo, AuditSinkConfig{Workers: 1, BufferSize: 1}, zap.NewNop())
	sink.Start(context.Background())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			sink.Record(models.SystemAuditLog{Action: models.SystemAuditUpdateApplicant, EntityID: "id-1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked on a full buffer")
	}

	close(repo.block)
	sink.Stop()
}

func TestAuditSinkRecordBeforeStart(t *testing.T) {
	repo := &capturingAuditRepo{}
	sink := NewAuditSink(repo, AuditSinkConfig{}, zap.NewNop())

	// Dropped, not panicked.
	sink.Record(models.SystemAuditLog{Action: models.SystemAuditExport})
	assert.Empty(t, repo.snapshot())
}
