package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/apperr"
	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/evaluation"
	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/metrics"
	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/models"
)

const (
	msgSubmissionNotFound = "Form submission not found"
	msgEvaluationNotFound = "Evaluation not found"
)

// Stats summarizes both collections for the dashboard.
type Stats struct {
	SubmissionCount int64                   `json:"submissionCount"`
	EvaluationCount int64                   `json:"evaluationCount"`
	StatusCounts    map[models.Status]int64 `json:"statusCounts"`
}

type EvaluationService struct {
	subs    SubmissionStore
	evals   EvaluationStore
	locks   *keyedMutex
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewEvaluationService(subs SubmissionStore, evals EvaluationStore, m *metrics.Metrics) *EvaluationService {
	return &EvaluationService{
		subs:    subs,
		evals:   evals,
		locks:   newKeyedMutex(),
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Upsert merges p into the project's evaluation, creating it on first write.
// Upserts for the same project run one at a time.
func (s *EvaluationService) Upsert(ctx context.Context, projectID string, p evaluation.Patch) (*models.EvaluationView, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, apperr.Validation("projectId is required")
	}

	unlock := s.locks.Lock(projectID)
	defer unlock()

	sub, err := s.subs.FindByProjectID(ctx, projectID)
	if err != nil {
		return nil, apperr.Persistence("Failed to load form submission", err)
	}
	if sub == nil {
		return nil, apperr.NotFound(msgSubmissionNotFound)
	}

	current, err := s.evals.FindByProjectID(ctx, projectID)
	if err != nil {
		return nil, apperr.Persistence("Failed to load evaluation", err)
	}

	res := evaluation.Reconcile(current, projectID, p, s.now())
	saved, err := s.evals.Save(ctx, res)
	if err != nil {
		return nil, apperr.Persistence("Failed to save evaluation", err)
	}

	s.metrics.RecordEvaluationWrite(res.Created)
	if res.Created {
		log.Printf("Evaluation created: projectId=%s status=%q", projectID, saved.ProjectStatus)
	} else {
		log.Printf("Evaluation updated: projectId=%s status=%q", projectID, saved.ProjectStatus)
	}
	return &models.EvaluationView{ProjectEvaluation: *saved, ProjectDetails: sub.Details()}, nil
}

// Get returns the evaluation of a project. Both the submission and the
// evaluation must exist.
func (s *EvaluationService) Get(ctx context.Context, projectID string) (*models.EvaluationView, error) {
	sub, err := s.subs.FindByProjectID(ctx, projectID)
	if err != nil {
		return nil, apperr.Persistence("Failed to load form submission", err)
	}
	if sub == nil {
		return nil, apperr.NotFound(msgSubmissionNotFound)
	}

	ev, err := s.evals.FindByProjectID(ctx, projectID)
	if err != nil {
		return nil, apperr.Persistence("Failed to load evaluation", err)
	}
	if ev == nil {
		return nil, apperr.NotFound(msgEvaluationNotFound)
	}
	return &models.EvaluationView{ProjectEvaluation: *ev, ProjectDetails: sub.Details()}, nil
}

// ListAll returns every evaluation, most recently updated first. Evaluations
// whose submission is gone carry nil ProjectDetails.
func (s *EvaluationService) ListAll(ctx context.Context) ([]models.EvaluationView, error) {
	evs, err := s.evals.List(ctx)
	if err != nil {
		return nil, apperr.Persistence("Failed to load evaluations", err)
	}

	ids := make([]string, 0, len(evs))
	for _, ev := range evs {
		ids = append(ids, ev.ProjectID)
	}
	subs, err := s.subs.FindByProjectIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Persistence("Failed to load form submissions", err)
	}

	out := make([]models.EvaluationView, 0, len(evs))
	for _, ev := range evs {
		view := models.EvaluationView{ProjectEvaluation: ev}
		if sub, ok := subs[ev.ProjectID]; ok {
			view.ProjectDetails = sub.Details()
		}
		out = append(out, view)
	}
	return out, nil
}

// Stats counts submissions and evaluations per status.
func (s *EvaluationService) Stats(ctx context.Context) (*Stats, error) {
	subCount, err := s.subs.Count(ctx)
	if err != nil {
		return nil, apperr.Persistence("Failed to count form submissions", err)
	}
	byStatus, err := s.evals.CountByStatus(ctx)
	if err != nil {
		return nil, apperr.Persistence("Failed to count evaluations", err)
	}

	stats := &Stats{SubmissionCount: subCount, StatusCounts: map[models.Status]int64{}}
	for _, st := range models.Statuses {
		stats.StatusCounts[st] = 0
	}
	for st, n := range byStatus {
		stats.StatusCounts[st] = n
		stats.EvaluationCount += n
	}
	return stats, nil
}
