package evaluation

import (
	"time"

	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/models"
)

// Result is the outcome of merging a patch into an evaluation.
type Result struct {
	// Evaluation is the complete merged record.
	Evaluation models.ProjectEvaluation
	// Appended holds only the notes added by this merge, per round, so a
	// store can push them atomically instead of rewriting the logs.
	Appended map[models.Round][]models.Note
	// Created is true when no evaluation existed before the merge.
	Created bool
}

// Reconcile merges p into current, which may be nil when the project has no
// evaluation yet. current is not modified.
func Reconcile(current *models.ProjectEvaluation, projectID string, p Patch, now time.Time) Result {
	var ev models.ProjectEvaluation
	created := current == nil
	if created {
		ev = models.ProjectEvaluation{
			ProjectID:     projectID,
			ProjectStatus: models.DefaultStatus,
			CreatedAt:     now,
		}
	} else {
		ev = current.Clone()
	}
	ev.Normalize()

	if p.ProjectStatus != nil {
		ev.ProjectStatus = *p.ProjectStatus
	}
	if p.AdditionalDocuments != nil {
		ev.AdditionalDocuments = append([]models.AdditionalDocument{}, (*p.AdditionalDocuments)...)
	}
	if p.EvaluationChecklist != nil {
		ev.EvaluationChecklist = append([]models.ChecklistItem{}, (*p.EvaluationChecklist)...)
	}

	appended := AppendNotes(&ev.RoundNotes, p.RoundNotes, now)

	if p.HasChecklist {
		ev.EvaluationChecklist = MergeChecklist(ev.EvaluationChecklist, p.Checklist)
	}

	ev.LastUpdated = now
	ev.UpdatedAt = now

	return Result{Evaluation: ev, Appended: appended, Created: created}
}

// AppendNotes appends the submitted notes to their round logs, stamping
// notes without a timestamp with now. It returns the notes that were added.
func AppendNotes(notes *models.RoundNotes, in map[models.Round][]NoteInput, now time.Time) map[models.Round][]models.Note {
	added := map[models.Round][]models.Note{}
	for _, round := range models.Rounds {
		inputs := in[round]
		if len(inputs) == 0 {
			continue
		}
		batch := make([]models.Note, 0, len(inputs))
		for _, n := range inputs {
			ts := now
			if n.Timestamp != nil {
				ts = *n.Timestamp
			}
			batch = append(batch, models.Note{Text: n.Text, Timestamp: ts})
		}
		notes.Append(round, batch...)
		added[round] = batch
	}
	return added
}

// MergeChecklist applies changes, in order, to base keyed by item id.
// Existing items keep their position, new items are appended and removed
// items disappear. base is not modified.
func MergeChecklist(base []models.ChecklistItem, changes []ChecklistChange) []models.ChecklistItem {
	order := make([]string, 0, len(base)+len(changes))
	items := make(map[string]models.ChecklistItem, len(base)+len(changes))

	for _, it := range base {
		if _, ok := items[it.ID]; !ok {
			order = append(order, it.ID)
		}
		items[it.ID] = it
	}

	for _, c := range changes {
		it, exists := items[c.ID]
		switch {
		case c.Remove:
			if exists {
				delete(items, c.ID)
				order = removeID(order, c.ID)
			}
		case exists:
			if c.Checked != nil {
				it.Checked = *c.Checked
			}
			if c.Name != nil {
				it.Name = *c.Name
			}
			items[c.ID] = it
		default:
			it = models.ChecklistItem{ID: c.ID}
			if c.Name != nil {
				it.Name = *c.Name
			}
			if c.Checked != nil {
				it.Checked = *c.Checked
			}
			items[c.ID] = it
			order = append(order, c.ID)
		}
	}

	out := make([]models.ChecklistItem, 0, len(order))
	for _, id := range order {
		out = append(out, items[id])
	}
	return out
}

func removeID(order []string, id string) []string {
	for i, v := range order {
		if v == id {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}
