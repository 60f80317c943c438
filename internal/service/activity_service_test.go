package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/forma-lms/gradebook-api/internal/dto"
	"github.com/forma-lms/gradebook-api/internal/models"
	"github.com/forma-lms/gradebook-api/internal/repository"
)

type fakeActivityRepo struct {
	activities      map[uint]models.Activity
	nextID          uint
	submissionCount int64
	updateCalls     int
}

func newFakeActivityRepo() *fakeActivityRepo {
	return &fakeActivityRepo{activities: map[uint]models.Activity{}, nextID: 1}
}

func (f *fakeActivityRepo) List(ctx context.Context, filter repository.ActivityFilter) ([]models.Activity, error) {
	var matched []models.Activity
	for _, activity := range f.activities {
		if filter.SessionID != nil && activity.SessionID != *filter.SessionID {
			continue
		}
		if filter.Status != nil && activity.Status != *filter.Status {
			continue
		}
		if filter.Type != nil && activity.Type != *filter.Type {
			continue
		}
		matched = append(matched, activity)
	}
	return matched, nil
}

func (f *fakeActivityRepo) GetByID(ctx context.Context, id uint) (models.Activity, error) {
	activity, ok := f.activities[id]
	if !ok {
		return models.Activity{}, gorm.ErrRecordNotFound
	}
	return activity, nil
}

func (f *fakeActivityRepo) Create(ctx context.Context, activity *models.Activity) error {
	activity.ID = f.nextID
	f.nextID++
	f.activities[activity.ID] = *activity
	return nil
}

func (f *fakeActivityRepo) Update(ctx context.Context, activity *models.Activity) error {
	f.updateCalls++
	f.activities[activity.ID] = *activity
	return nil
}

func (f *fakeActivityRepo) Delete(ctx context.Context, id uint) error {
	delete(f.activities, id)
	return nil
}

func (f *fakeActivityRepo) CountSubmissions(ctx context.Context, activityID uint) (int64, error) {
	return f.submissionCount, nil
}

func TestActivityServiceCreateDefaults(t *testing.T) {
	repo := newFakeActivityRepo()
	validate := validator.New(validator.WithRequiredStructEnabled())
	notifier := &fakeNotifier{}
	svc := NewActivityService(repo, validate, notifier, testLogger())

	created, err := svc.Create(context.Background(), dto.ActivityCreateRequest{
		SessionID:    3,
		Title:        "Pointers quiz",
		Type:         models.ActivityTypeQuiz,
		MaxPoints:    40,
		PassingScore: 20,
	}, Actor{ID: 1, Role: "trainer"})
	require.NoError(t, err)

	require.Equal(t, models.ActivityStatusDraft, created.Status)
	require.Equal(t, 1.0, created.Weight)
	require.Len(t, notifier.changes, 1)
	require.Equal(t, dto.ChangeTableActivities, notifier.changes[0].Table)
	require.Equal(t, dto.ChangeEventInsert, notifier.changes[0].Event)
}

func TestActivityServiceCreateRejectsPassingAboveMax(t *testing.T) {
	repo := newFakeActivityRepo()
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewActivityService(repo, validate, nil, testLogger())

	_, err := svc.Create(context.Background(), dto.ActivityCreateRequest{
		SessionID:    3,
		Title:        "Pointers quiz",
		Type:         models.ActivityTypeQuiz,
		MaxPoints:    40,
		PassingScore: 41,
	}, Actor{ID: 1, Role: "trainer"})
	require.ErrorIs(t, err, ErrPassingScoreOutOfRange)
	require.Empty(t, repo.activities)
}

func TestActivityServicePublishIsOneWay(t *testing.T) {
	repo := newFakeActivityRepo()
	repo.activities[5] = models.Activity{ID: 5, SessionID: 3, Status: models.ActivityStatusDraft, MaxPoints: 40}
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewActivityService(repo, validate, nil, testLogger())

	first, err := svc.Publish(context.Background(), 5, Actor{ID: 1, Role: "trainer"})
	require.NoError(t, err)
	require.Equal(t, models.ActivityStatusPublished, first.Status)
	require.Equal(t, 1, repo.updateCalls)

	second, err := svc.Publish(context.Background(), 5, Actor{ID: 1, Role: "trainer"})
	require.NoError(t, err)
	require.Equal(t, models.ActivityStatusPublished, second.Status)
	require.Equal(t, 1, repo.updateCalls)
}

func TestActivityServiceDeleteWithSubmissionsProceeds(t *testing.T) {
	repo := newFakeActivityRepo()
	repo.activities[5] = models.Activity{ID: 5, SessionID: 3, Status: models.ActivityStatusPublished}
	repo.submissionCount = 4
	validate := validator.New(validator.WithRequiredStructEnabled())
	notifier := &fakeNotifier{}
	svc := NewActivityService(repo, validate, notifier, testLogger())

	require.NoError(t, svc.Delete(context.Background(), 5, Actor{ID: 1, Role: "trainer"}))
	require.Empty(t, repo.activities)
	require.Len(t, notifier.changes, 1)
	require.Equal(t, dto.ChangeEventDelete, notifier.changes[0].Event)
}

func TestActivityServiceGetNotFound(t *testing.T) {
	repo := newFakeActivityRepo()
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewActivityService(repo, validate, nil, testLogger())

	_, err := svc.Get(context.Background(), 99)
	require.ErrorIs(t, err, ErrActivityNotFound)
}
