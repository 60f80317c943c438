package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/forma-lms/gradebook-api/internal/dto"
	"github.com/forma-lms/gradebook-api/internal/models"
)

type fakeEvaluationRepo struct {
	evaluation models.Evaluation
	config     models.EvaluationConfig
	hasConfig  bool
}

func (f *fakeEvaluationRepo) ListBySession(ctx context.Context, sessionID uint) ([]models.Evaluation, error) {
	if f.evaluation.ID == 0 || f.evaluation.SessionID != sessionID {
		return nil, nil
	}
	return []models.Evaluation{f.evaluation}, nil
}

func (f *fakeEvaluationRepo) GetByID(ctx context.Context, id uint) (models.Evaluation, error) {
	if f.evaluation.ID != id {
		return models.Evaluation{}, gorm.ErrRecordNotFound
	}
	return f.evaluation, nil
}

func (f *fakeEvaluationRepo) Create(ctx context.Context, evaluation *models.Evaluation) error {
	f.evaluation = *evaluation
	return nil
}

func (f *fakeEvaluationRepo) GetConfigBySession(ctx context.Context, sessionID uint) (models.EvaluationConfig, error) {
	if !f.hasConfig {
		return models.EvaluationConfig{}, gorm.ErrRecordNotFound
	}
	return f.config, nil
}

func (f *fakeEvaluationRepo) UpsertConfig(ctx context.Context, config *models.EvaluationConfig) error {
	f.config = *config
	f.hasConfig = true
	return nil
}

type fakeAttemptRepo struct {
	attempts []models.EvaluationAttempt
}

func (f *fakeAttemptRepo) ListByEvaluationAndUser(ctx context.Context, evaluationID, userID uint) ([]models.EvaluationAttempt, error) {
	var matched []models.EvaluationAttempt
	for _, attempt := range f.attempts {
		if attempt.EvaluationID == evaluationID && attempt.UserID == userID {
			matched = append(matched, attempt)
		}
	}
	return matched, nil
}

func (f *fakeAttemptRepo) CountByEvaluationAndUser(ctx context.Context, evaluationID, userID uint) (int64, error) {
	attempts, _ := f.ListByEvaluationAndUser(ctx, evaluationID, userID)
	return int64(len(attempts)), nil
}

func (f *fakeAttemptRepo) Create(ctx context.Context, attempt *models.EvaluationAttempt) error {
	attempt.ID = uint(len(f.attempts) + 1)
	f.attempts = append(f.attempts, *attempt)
	return nil
}

func quizEvaluation() models.Evaluation {
	return models.Evaluation{
		ID:           7,
		SessionID:    3,
		Title:        "Module check",
		PassingScore: 50,
		MaxAttempts:  3,
		Questions: []models.EvaluationQuestion{
			{ID: 1, Type: models.QuestionTypeMultipleChoice, CorrectAnswer: "b", Points: 2},
			{ID: 2, Type: models.QuestionTypeTrueFalse, CorrectAnswer: "true", Points: 1},
			{ID: 3, Type: models.QuestionTypeOpenText, Points: 2},
		},
	}
}

func TestAttemptServiceAutoScoring(t *testing.T) {
	evaluations := &fakeEvaluationRepo{evaluation: quizEvaluation()}
	attempts := &fakeAttemptRepo{}
	recomputer := &fakeRecomputer{}
	notifier := &fakeNotifier{}
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewAttemptService(evaluations, attempts, recomputer, validate, notifier, testLogger())

	result, err := svc.SubmitAttempt(context.Background(), 7, dto.AttemptSubmitRequest{
		Answers: map[string]string{"1": " B ", "2": "true", "3": "long open answer"},
	}, Actor{ID: 9, Role: "learner"})
	require.NoError(t, err)

	require.Equal(t, 3.0, result.Score)
	require.Equal(t, 5.0, result.TotalPoints)
	require.Equal(t, 60.0, result.Percentage)
	require.True(t, result.IsPassed)
	require.Equal(t, 1, result.AttemptNumber)

	require.Len(t, recomputer.calls, 1)
	require.Equal(t, uint(3), recomputer.calls[0].sessionID)
	require.Len(t, notifier.changes, 1)
	require.Equal(t, dto.ChangeTableGrades, notifier.changes[0].Table)
}

func TestAttemptServiceOpenQuestionsCountTowardTotal(t *testing.T) {
	evaluations := &fakeEvaluationRepo{evaluation: quizEvaluation()}
	attempts := &fakeAttemptRepo{}
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewAttemptService(evaluations, attempts, &fakeRecomputer{}, validate, nil, testLogger())

	result, err := svc.SubmitAttempt(context.Background(), 7, dto.AttemptSubmitRequest{
		Answers: map[string]string{"1": "b", "2": "false"},
	}, Actor{ID: 9, Role: "learner"})
	require.NoError(t, err)

	require.Equal(t, 2.0, result.Score)
	require.Equal(t, 5.0, result.TotalPoints)
	require.Equal(t, 40.0, result.Percentage)
	require.False(t, result.IsPassed)
}

func TestAttemptServicePassBoundary(t *testing.T) {
	evaluation := models.Evaluation{
		ID:           7,
		SessionID:    3,
		PassingScore: 50,
		MaxAttempts:  3,
		Questions: []models.EvaluationQuestion{
			{ID: 1, Type: models.QuestionTypeTrueFalse, CorrectAnswer: "true", Points: 1},
			{ID: 2, Type: models.QuestionTypeTrueFalse, CorrectAnswer: "true", Points: 1},
		},
	}
	evaluations := &fakeEvaluationRepo{evaluation: evaluation}
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewAttemptService(evaluations, &fakeAttemptRepo{}, &fakeRecomputer{}, validate, nil, testLogger())

	result, err := svc.SubmitAttempt(context.Background(), 7, dto.AttemptSubmitRequest{
		Answers: map[string]string{"1": "true", "2": "false"},
	}, Actor{ID: 9, Role: "learner"})
	require.NoError(t, err)

	require.Equal(t, 50.0, result.Percentage)
	require.True(t, result.IsPassed)
}

func TestAttemptServiceMaxAttemptsReached(t *testing.T) {
	evaluations := &fakeEvaluationRepo{evaluation: quizEvaluation()}
	attempts := &fakeAttemptRepo{}
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewAttemptService(evaluations, attempts, &fakeRecomputer{}, validate, nil, testLogger())

	payload := dto.AttemptSubmitRequest{Answers: map[string]string{"1": "b"}}
	actor := Actor{ID: 9, Role: "learner"}

	for i := 0; i < 3; i++ {
		result, err := svc.SubmitAttempt(context.Background(), 7, payload, actor)
		require.NoError(t, err)
		require.Equal(t, i+1, result.AttemptNumber)
	}

	_, err := svc.SubmitAttempt(context.Background(), 7, payload, actor)
	require.ErrorIs(t, err, ErrMaxAttemptsReached)
	require.Len(t, attempts.attempts, 3)
}

func TestAttemptServiceBestAttemptTieBreak(t *testing.T) {
	early := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	late := early.Add(2 * time.Hour)
	attempts := &fakeAttemptRepo{attempts: []models.EvaluationAttempt{
		{ID: 1, EvaluationID: 7, UserID: 9, Percentage: 80, AttemptNumber: 1, StartedAt: early},
		{ID: 2, EvaluationID: 7, UserID: 9, Percentage: 80, AttemptNumber: 2, StartedAt: late},
		{ID: 3, EvaluationID: 7, UserID: 9, Percentage: 60, AttemptNumber: 3, StartedAt: late.Add(time.Hour)},
	}}
	evaluations := &fakeEvaluationRepo{evaluation: quizEvaluation()}
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewAttemptService(evaluations, attempts, &fakeRecomputer{}, validate, nil, testLogger())

	best, err := svc.BestAttempt(context.Background(), 7, 9)
	require.NoError(t, err)
	require.Equal(t, uint(1), best.ID)
	require.Equal(t, 80.0, best.Percentage)
}

func TestAttemptServiceEvaluationNotFound(t *testing.T) {
	evaluations := &fakeEvaluationRepo{evaluation: quizEvaluation()}
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewAttemptService(evaluations, &fakeAttemptRepo{}, &fakeRecomputer{}, validate, nil, testLogger())

	_, err := svc.SubmitAttempt(context.Background(), 99, dto.AttemptSubmitRequest{Answers: map[string]string{"1": "b"}}, Actor{ID: 9})
	require.ErrorIs(t, err, ErrEvaluationNotFound)
}
