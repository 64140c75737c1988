// Package memory keeps submissions and evaluations in process memory. It
// mirrors the MongoDB repositories and backs DB_DRIVER=memory and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/evaluation"
	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/models"
	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/repository"
)

type SubmissionRepo struct {
	mu   sync.RWMutex
	subs []models.FormSubmission
}

func NewSubmissionRepo() *SubmissionRepo {
	return &SubmissionRepo{}
}

func (r *SubmissionRepo) Create(_ context.Context, sub *models.FormSubmission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subs {
		if s.ProjectID == sub.ProjectID {
			return fmt.Errorf("insert submission: %w", repository.ErrDuplicate)
		}
	}
	if sub.ID.IsZero() {
		sub.ID = primitive.NewObjectID()
	}
	r.subs = append(r.subs, *sub)
	return nil
}

// List ignores fields; callers project the result themselves.
func (r *SubmissionRepo) List(_ context.Context, _ []string) ([]models.FormSubmission, error) {
	r.mu.RLock()
	out := append([]models.FormSubmission{}, r.subs...)
	r.mu.RUnlock()

	// Reverse insertion order breaks createdAt ties newest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *SubmissionRepo) FindByProjectID(_ context.Context, projectID string) (*models.FormSubmission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.subs {
		if s.ProjectID == projectID {
			c := s
			return &c, nil
		}
	}
	return nil, nil
}

func (r *SubmissionRepo) FindByProjectIDs(_ context.Context, ids []string) (map[string]*models.FormSubmission, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*models.FormSubmission, len(ids))
	for _, s := range r.subs {
		if want[s.ProjectID] {
			c := s
			out[s.ProjectID] = &c
		}
	}
	return out, nil
}

func (r *SubmissionRepo) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.subs)), nil
}

// Delete removes a submission. It exists so tests can simulate dangling
// evaluations; the API never deletes submissions.
func (r *SubmissionRepo) Delete(projectID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.subs {
		if s.ProjectID == projectID {
			r.subs = append(r.subs[:i], r.subs[i+1:]...)
			return
		}
	}
}

type EvaluationRepo struct {
	mu  sync.RWMutex
	evs map[string]models.ProjectEvaluation
}

func NewEvaluationRepo() *EvaluationRepo {
	return &EvaluationRepo{evs: map[string]models.ProjectEvaluation{}}
}

func (r *EvaluationRepo) FindByProjectID(_ context.Context, projectID string) (*models.ProjectEvaluation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ev, ok := r.evs[projectID]
	if !ok {
		return nil, nil
	}
	c := ev.Clone()
	return &c, nil
}

// Save applies res with the same operator semantics as the MongoDB store:
// wholesale fields replace, appended notes are pushed onto whatever is
// stored, and createdAt is kept from the first insert.
func (r *EvaluationRepo) Save(_ context.Context, res evaluation.Result) (*models.ProjectEvaluation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	in := res.Evaluation
	stored, exists := r.evs[in.ProjectID]
	if !exists {
		stored = models.ProjectEvaluation{
			ID:        primitive.NewObjectID(),
			ProjectID: in.ProjectID,
			CreatedAt: in.CreatedAt,
		}
	} else {
		stored = stored.Clone()
	}
	stored.Normalize()

	stored.ProjectStatus = in.ProjectStatus
	stored.AdditionalDocuments = append([]models.AdditionalDocument{}, in.AdditionalDocuments...)
	stored.EvaluationChecklist = append([]models.ChecklistItem{}, in.EvaluationChecklist...)
	stored.LastUpdated = in.LastUpdated
	stored.UpdatedAt = in.UpdatedAt
	for _, round := range models.Rounds {
		stored.RoundNotes.Append(round, res.Appended[round]...)
	}

	r.evs[in.ProjectID] = stored
	c := stored.Clone()
	return &c, nil
}

func (r *EvaluationRepo) List(_ context.Context) ([]models.ProjectEvaluation, error) {
	r.mu.RLock()
	out := make([]models.ProjectEvaluation, 0, len(r.evs))
	for _, ev := range r.evs {
		out = append(out, ev.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].LastUpdated.Equal(out[j].LastUpdated) {
			return out[i].ProjectID < out[j].ProjectID
		}
		return out[i].LastUpdated.After(out[j].LastUpdated)
	})
	return out, nil
}

func (r *EvaluationRepo) CountByStatus(_ context.Context) (map[models.Status]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := map[models.Status]int64{}
	for _, ev := range r.evs {
		out[ev.ProjectStatus]++
	}
	return out, nil
}
