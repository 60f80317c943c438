package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/forma-lms/gradebook-api/internal/models"
)

type fakeSummaryRepo struct {
	summaries map[uint]models.GradebookSummary
}

func newFakeSummaryRepo() *fakeSummaryRepo {
	return &fakeSummaryRepo{summaries: map[uint]models.GradebookSummary{}}
}

func (f *fakeSummaryRepo) key(sessionID, userID uint) uint {
	return sessionID*1000 + userID
}

func (f *fakeSummaryRepo) GetBySessionAndUser(ctx context.Context, sessionID, userID uint) (models.GradebookSummary, error) {
	summary, ok := f.summaries[f.key(sessionID, userID)]
	if !ok {
		return models.GradebookSummary{}, gorm.ErrRecordNotFound
	}
	return summary, nil
}

func (f *fakeSummaryRepo) ListBySession(ctx context.Context, sessionID uint) ([]models.GradebookSummary, error) {
	var matched []models.GradebookSummary
	for _, summary := range f.summaries {
		if summary.SessionID == sessionID {
			matched = append(matched, summary)
		}
	}
	return matched, nil
}

func (f *fakeSummaryRepo) Upsert(ctx context.Context, summary *models.GradebookSummary) error {
	f.summaries[f.key(summary.SessionID, summary.UserID)] = *summary
	return nil
}

type gradebookFixture struct {
	activities  *fakeActivityRepo
	evaluations *fakeEvaluationRepo
	grades      *fakeGradeRepo
	attempts    *fakeAttemptRepo
	summaries   *fakeSummaryRepo
}

func newGradebookFixture() gradebookFixture {
	return gradebookFixture{
		activities:  newFakeActivityRepo(),
		evaluations: &fakeEvaluationRepo{},
		grades:      newFakeGradeRepo(),
		attempts:    &fakeAttemptRepo{},
		summaries:   newFakeSummaryRepo(),
	}
}

func (f gradebookFixture) service() GradebookService {
	validate := validator.New(validator.WithRequiredStructEnabled())
	return NewGradebookService(f.activities, f.evaluations, f.grades, f.attempts, f.summaries, nil, validate, testLogger())
}

func (f gradebookFixture) addActivity(id uint, weight float64) {
	f.activities.activities[id] = models.Activity{
		ID:        id,
		SessionID: 3,
		MaxPoints: 40,
		Weight:    weight,
		Status:    models.ActivityStatusPublished,
	}
}

func (f gradebookFixture) addGrade(activityID uint, points float64) {
	id := f.grades.nextID
	f.grades.nextID++
	f.grades.grades[id] = models.Grade{
		ID:           id,
		SubmissionID: id,
		ActivityID:   activityID,
		SessionID:    3,
		UserID:       9,
		Score:        points,
		MaxScore:     40,
	}
}

func TestGradebookRecomputeWeightedAverage(t *testing.T) {
	fixture := newGradebookFixture()
	fixture.addActivity(1, 1)
	fixture.addActivity(2, 1)
	fixture.addGrade(1, 30) // 15.00 on the 0-20 scale
	fixture.addGrade(2, 26) // 13.00

	summary, err := fixture.service().Recompute(context.Background(), 3, 9)
	require.NoError(t, err)

	require.NotNil(t, summary.WeightedAverage)
	require.Equal(t, 14.0, *summary.WeightedAverage)
	require.Equal(t, 2, summary.CompletedActivities)
	require.Equal(t, 0, summary.PendingActivities)
	require.Equal(t, models.OverallStatusPassing, summary.OverallStatus)
	require.True(t, summary.IsPassing)
	require.Equal(t, 56.0, summary.TotalPointsEarned)
}

func TestGradebookRecomputeSkipsUngraded(t *testing.T) {
	fixture := newGradebookFixture()
	fixture.addActivity(1, 1)
	fixture.addActivity(2, 1)
	fixture.addActivity(3, 1)
	fixture.addGrade(1, 32) // 16.00

	summary, err := fixture.service().Recompute(context.Background(), 3, 9)
	require.NoError(t, err)

	// Ungraded items are skipped, never counted as zero.
	require.NotNil(t, summary.WeightedAverage)
	require.Equal(t, 16.0, *summary.WeightedAverage)
	require.Equal(t, 1, summary.CompletedActivities)
	require.Equal(t, 2, summary.PendingActivities)
	require.Equal(t, models.OverallStatusInProgress, summary.OverallStatus)
}

func TestGradebookRecomputeNoGrades(t *testing.T) {
	fixture := newGradebookFixture()
	fixture.addActivity(1, 1)

	summary, err := fixture.service().Recompute(context.Background(), 3, 9)
	require.NoError(t, err)

	require.Nil(t, summary.WeightedAverage)
	require.Equal(t, models.OverallStatusNotStarted, summary.OverallStatus)
	require.False(t, summary.IsPassing)
}

func TestGradebookRecomputeHonorsConfigWeights(t *testing.T) {
	fixture := newGradebookFixture()
	fixture.addActivity(1, 1)
	fixture.addActivity(2, 1)
	fixture.addGrade(1, 40) // 20.00
	fixture.addGrade(2, 20) // 10.00
	fixture.evaluations.hasConfig = true
	fixture.evaluations.config = models.EvaluationConfig{
		SessionID:    3,
		PassingScore: 10,
		Items:        datatypes.JSON(`[{"item_id":1,"kind":"activity","weight":3},{"item_id":2,"kind":"activity","weight":1}]`),
	}

	summary, err := fixture.service().Recompute(context.Background(), 3, 9)
	require.NoError(t, err)

	// (20*3 + 10*1) / 4 = 17.50
	require.NotNil(t, summary.WeightedAverage)
	require.Equal(t, 17.5, *summary.WeightedAverage)
}

func TestGradebookRecomputeExplicitZeroWeight(t *testing.T) {
	fixture := newGradebookFixture()
	fixture.addActivity(1, 1)
	fixture.addActivity(2, 1)
	fixture.addGrade(1, 40) // 20.00
	fixture.addGrade(2, 8)  // 4.00, weighted out
	fixture.evaluations.hasConfig = true
	fixture.evaluations.config = models.EvaluationConfig{
		SessionID:    3,
		PassingScore: 10,
		Items:        datatypes.JSON(`[{"item_id":1,"kind":"activity","weight":1},{"item_id":2,"kind":"activity","weight":0}]`),
	}

	summary, err := fixture.service().Recompute(context.Background(), 3, 9)
	require.NoError(t, err)

	require.NotNil(t, summary.WeightedAverage)
	require.Equal(t, 20.0, *summary.WeightedAverage)
	require.Equal(t, 2, summary.CompletedActivities)
}

func TestGradebookRecomputeUsesBestAttempt(t *testing.T) {
	fixture := newGradebookFixture()
	fixture.evaluations.evaluation = quizEvaluation()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	fixture.attempts.attempts = []models.EvaluationAttempt{
		{ID: 1, EvaluationID: 7, UserID: 9, Percentage: 40, Score: 2, AttemptNumber: 1, StartedAt: base},
		{ID: 2, EvaluationID: 7, UserID: 9, Percentage: 80, Score: 4, AttemptNumber: 2, StartedAt: base.Add(time.Hour)},
		{ID: 3, EvaluationID: 7, UserID: 9, Percentage: 60, Score: 3, AttemptNumber: 3, StartedAt: base.Add(2 * time.Hour)},
	}
	fixture.evaluations.hasConfig = true
	fixture.evaluations.config = models.EvaluationConfig{
		SessionID:    3,
		PassingScore: 10,
		Items:        datatypes.JSON(`[{"item_id":7,"kind":"evaluation"}]`),
	}

	summary, err := fixture.service().Recompute(context.Background(), 3, 9)
	require.NoError(t, err)

	// 80% -> 16.00 on the 0-20 scale, regardless of later weaker attempts.
	require.NotNil(t, summary.WeightedAverage)
	require.Equal(t, 16.0, *summary.WeightedAverage)
}

func TestGradebookRecomputeSkipsDanglingItems(t *testing.T) {
	fixture := newGradebookFixture()
	fixture.addActivity(1, 1)
	fixture.addGrade(1, 30) // 15.00
	fixture.evaluations.hasConfig = true
	fixture.evaluations.config = models.EvaluationConfig{
		SessionID:    3,
		PassingScore: 10,
		Items:        datatypes.JSON(`[{"item_id":1,"kind":"activity"},{"item_id":99,"kind":"activity"}]`),
	}

	summary, err := fixture.service().Recompute(context.Background(), 3, 9)
	require.NoError(t, err)

	require.NotNil(t, summary.WeightedAverage)
	require.Equal(t, 15.0, *summary.WeightedAverage)
	require.Equal(t, 1, summary.CompletedActivities)
}

func TestGradebookRecomputeIsRepeatable(t *testing.T) {
	fixture := newGradebookFixture()
	fixture.addActivity(1, 1)
	fixture.addGrade(1, 30)
	svc := fixture.service()

	first, err := svc.Recompute(context.Background(), 3, 9)
	require.NoError(t, err)

	second, err := svc.Recompute(context.Background(), 3, 9)
	require.NoError(t, err)

	require.Equal(t, first.WeightedAverage, second.WeightedAverage)
	require.Equal(t, first.OverallStatus, second.OverallStatus)
	require.Len(t, fixture.summaries.summaries, 1)
}

func TestGradebookGetSummaryFallsBackToRecompute(t *testing.T) {
	fixture := newGradebookFixture()
	fixture.addActivity(1, 1)
	fixture.addGrade(1, 30)

	summary, err := fixture.service().GetSummary(context.Background(), 3, 9)
	require.NoError(t, err)
	require.NotNil(t, summary.WeightedAverage)
	require.Len(t, fixture.summaries.summaries, 1)
}
