package service

import (
	"context"

	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/evaluation"
	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/models"
)

// SubmissionStore is implemented by repository.SubmissionRepo and
// memory.SubmissionRepo. Finders return (nil, nil) for absent records.
type SubmissionStore interface {
	Create(ctx context.Context, sub *models.FormSubmission) error
	List(ctx context.Context, fields []string) ([]models.FormSubmission, error)
	FindByProjectID(ctx context.Context, projectID string) (*models.FormSubmission, error)
	FindByProjectIDs(ctx context.Context, ids []string) (map[string]*models.FormSubmission, error)
	Count(ctx context.Context) (int64, error)
}

// EvaluationStore is implemented by repository.EvaluationRepo and
// memory.EvaluationRepo.
type EvaluationStore interface {
	FindByProjectID(ctx context.Context, projectID string) (*models.ProjectEvaluation, error)
	Save(ctx context.Context, res evaluation.Result) (*models.ProjectEvaluation, error)
	List(ctx context.Context) ([]models.ProjectEvaluation, error)
	CountByStatus(ctx context.Context) (map[models.Status]int64, error)
}
