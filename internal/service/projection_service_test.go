package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/forma-lms/gradebook-api/internal/models"
)

func projectionFixture() (*fakeActivityRepo, *fakeSubmissionRepo, *fakeGradeRepo, *fakeSummaryRepo) {
	activities := newFakeActivityRepo()
	activities.activities[1] = models.Activity{ID: 1, SessionID: 3, Title: "Quiz", MaxPoints: 40, Status: models.ActivityStatusPublished}
	activities.activities[2] = models.Activity{ID: 2, SessionID: 3, Title: "Hidden draft", MaxPoints: 40, Status: models.ActivityStatusDraft}

	submissions := newFakeSubmissionRepo()
	submissions.submissions[1] = models.Submission{ID: 1, ActivityID: 1, UserID: 9, SessionID: 3, Status: models.SubmissionStatusGraded}
	submissions.submissions[2] = models.Submission{ID: 2, ActivityID: 1, UserID: 10, SessionID: 3, Status: models.SubmissionStatusSubmitted}

	grades := newFakeGradeRepo()
	publishedAt := time.Now()
	grades.grades[1] = models.Grade{ID: 1, SubmissionID: 1, ActivityID: 1, SessionID: 3, UserID: 9, Score: 30, MaxScore: 40, IsPublished: true, PublishedAt: &publishedAt}
	grades.grades[2] = models.Grade{ID: 2, SubmissionID: 2, ActivityID: 1, SessionID: 3, UserID: 10, Score: 20, MaxScore: 40}
	grades.nextID = 3

	summaries := newFakeSummaryRepo()
	average := 15.0
	summaries.summaries[summaries.key(3, 9)] = models.GradebookSummary{SessionID: 3, UserID: 9, WeightedAverage: &average, OverallStatus: models.OverallStatusPassing, IsPassing: true}

	return activities, submissions, grades, summaries
}

func TestProjectionServiceTrainerRoster(t *testing.T) {
	activities, submissions, grades, summaries := projectionFixture()
	svc := NewProjectionService(activities, submissions, grades, summaries, nil, time.Minute, testLogger())

	roster, err := svc.TrainerRoster(context.Background(), 3)
	require.NoError(t, err)

	// Trainers see drafts and unpublished grades alike.
	require.Len(t, roster.Activities, 2)
	require.Len(t, roster.SubmissionsByActivity[1], 2)
	require.Len(t, roster.GradesBySubmission, 2)
	require.Contains(t, roster.SummariesByUser, uint(9))
}

func TestProjectionServiceLearnerViewFilters(t *testing.T) {
	activities, submissions, grades, summaries := projectionFixture()
	svc := NewProjectionService(activities, submissions, grades, summaries, nil, time.Minute, testLogger())

	view, err := svc.LearnerView(context.Background(), 3, 10)
	require.NoError(t, err)

	// Draft activities stay hidden from learners.
	require.Len(t, view.Activities, 1)
	require.Equal(t, "Quiz", view.Activities[0].Title)

	// Only the learner's own submissions appear.
	require.Len(t, view.Submissions, 1)
	require.Equal(t, uint(10), view.Submissions[0].UserID)

	// User 10's grade exists but is unpublished, so it stays invisible.
	require.Empty(t, view.Grades)
	require.Nil(t, view.Summary)
}

func TestProjectionServiceLearnerViewPublishedGrade(t *testing.T) {
	activities, submissions, grades, summaries := projectionFixture()
	svc := NewProjectionService(activities, submissions, grades, summaries, nil, time.Minute, testLogger())

	view, err := svc.LearnerView(context.Background(), 3, 9)
	require.NoError(t, err)

	require.Len(t, view.Grades, 1)
	require.Contains(t, view.Grades, uint(1))
	require.NotNil(t, view.Summary)
	require.True(t, view.Summary.IsPassing)
	require.False(t, view.CacheHit)
}

func TestProjectionServiceLearnerViewCaching(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	activities, submissions, grades, summaries := projectionFixture()
	svc := NewProjectionService(activities, submissions, grades, summaries, redisClient, time.Minute, testLogger())

	first, err := svc.LearnerView(context.Background(), 3, 9)
	require.NoError(t, err)
	require.False(t, first.CacheHit)

	second, err := svc.LearnerView(context.Background(), 3, 9)
	require.NoError(t, err)
	require.True(t, second.CacheHit)
	require.Equal(t, first.SessionID, second.SessionID)
	require.Equal(t, first.Grades, second.Grades)

	// Invalidation forces the next read to rebuild.
	require.NoError(t, redisClient.Del(context.Background(), learnerViewCacheKey(3, 9)).Err())

	third, err := svc.LearnerView(context.Background(), 3, 9)
	require.NoError(t, err)
	require.False(t, third.CacheHit)
}
