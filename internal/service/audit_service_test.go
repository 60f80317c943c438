package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forma-lms/gradebook-api/internal/models"
	"github.com/forma-lms/gradebook-api/internal/repository"
)

type fakeAuditLogRepo struct {
	entries []models.AuditLog
}

func (f *fakeAuditLogRepo) Create(ctx context.Context, entry *models.AuditLog) error {
	entry.ID = uint(len(f.entries) + 1)
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAuditLogRepo) List(ctx context.Context, filter repository.AuditLogFilter) ([]models.AuditLog, int64, error) {
	return f.entries, int64(len(f.entries)), nil
}

func TestAuditServiceRecord(t *testing.T) {
	repo := &fakeAuditLogRepo{}
	svc := NewAuditService(repo, testLogger())

	entityID := uint(5)
	err := svc.Record(context.Background(), AuditEntry{
		ActorID:    1,
		ActorRole:  "trainer",
		Action:     "grade.published",
		EntityType: "grade",
		EntityID:   &entityID,
		Metadata:   map[string]interface{}{"user_id": 9},
	})
	require.NoError(t, err)
	require.Len(t, repo.entries, 1)
	require.Equal(t, "grade.published", repo.entries[0].Action)
}

func TestAuditServiceRecordRequiresAction(t *testing.T) {
	repo := &fakeAuditLogRepo{}
	svc := NewAuditService(repo, testLogger())

	err := svc.Record(context.Background(), AuditEntry{ActorID: 1, Action: "  "})
	require.Error(t, err)
	require.Empty(t, repo.entries)
}

func TestActorIsTrainer(t *testing.T) {
	require.True(t, Actor{ID: 1, Role: "trainer"}.IsTrainer())
	require.False(t, Actor{ID: 2, Role: "learner"}.IsTrainer())
}
