// Package evaluation merges partial updates into project evaluations:
// wholesale field overwrites, append-only round notes and id-keyed checklist
// reconciliation.
package evaluation

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/apperr"
	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/models"
)

// NoteInput is a round note as sent by a client. A nil Timestamp is stamped
// with the merge time.
type NoteInput struct {
	Text      string
	Timestamp *time.Time
}

// ChecklistChange describes one incremental checklist edit. Nil Name and
// Checked mean "leave unchanged".
type ChecklistChange struct {
	ID      string
	Name    *string
	Checked *bool
	Remove  bool
}

// Patch is a parsed partial update. Nil pointer fields were absent from the
// request.
type Patch struct {
	ProjectStatus       *models.Status
	AdditionalDocuments *[]models.AdditionalDocument
	EvaluationChecklist *[]models.ChecklistItem
	RoundNotes          map[models.Round][]NoteInput
	Checklist           []ChecklistChange
	HasChecklist        bool
}

// Empty reports whether the patch changes nothing but lastUpdated.
func (p Patch) Empty() bool {
	return p.ProjectStatus == nil && p.AdditionalDocuments == nil &&
		p.EvaluationChecklist == nil && len(p.RoundNotes) == 0 && !p.HasChecklist
}

// ParsePatch decodes a JSON partial update. "status" is accepted as an alias
// of "projectStatus" and takes precedence when both are present, unless it
// is null. Server-managed and unknown keys are ignored.
func ParsePatch(body []byte) (Patch, error) {
	var p Patch
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return p, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return p, apperr.Validation("request body must be a JSON object")
	}

	if v, ok := raw["status"]; ok && !isNull(v) {
		raw["projectStatus"] = v
	}

	if v, ok := raw["projectStatus"]; ok && !isNull(v) {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return p, apperr.Validation("projectStatus must be a string")
		}
		status := models.Status(s)
		if !status.Valid() {
			return p, apperr.Validationf("`%s` is not a valid projectStatus", s)
		}
		p.ProjectStatus = &status
	}

	if v, ok := raw["additionalDocuments"]; ok && !isNull(v) {
		var docs []models.AdditionalDocument
		if err := json.Unmarshal(v, &docs); err != nil {
			return p, apperr.Validation("additionalDocuments must be an array of documents")
		}
		for i, d := range docs {
			if d.Type == "" {
				return p, apperr.Validationf("additionalDocuments.%d.type is required", i)
			}
			if !d.Type.Valid() {
				return p, apperr.Validationf("`%s` is not a valid additionalDocuments.%d.type", d.Type, i)
			}
		}
		if docs == nil {
			docs = []models.AdditionalDocument{}
		}
		p.AdditionalDocuments = &docs
	}

	if v, ok := raw["evaluationChecklist"]; ok && !isNull(v) {
		var items []models.ChecklistItem
		if err := json.Unmarshal(v, &items); err != nil {
			return p, apperr.Validation("evaluationChecklist must be an array of checklist items")
		}
		if items == nil {
			items = []models.ChecklistItem{}
		}
		p.EvaluationChecklist = &items
	}

	if v, ok := raw["roundNotes"]; ok {
		notes, err := parseRoundNotes(v)
		if err != nil {
			return p, err
		}
		p.RoundNotes = notes
	}

	if v, ok := raw["checklist"]; ok && isArray(v) {
		changes, err := parseChecklist(v)
		if err != nil {
			return p, err
		}
		p.Checklist = changes
		p.HasChecklist = true
	}

	return p, nil
}

func parseRoundNotes(v json.RawMessage) (map[models.Round][]NoteInput, error) {
	var rounds map[string]json.RawMessage
	if err := json.Unmarshal(v, &rounds); err != nil {
		// Not an object: nothing to append.
		return nil, nil
	}
	out := map[models.Round][]NoteInput{}
	for _, round := range models.Rounds {
		entry, ok := rounds[string(round)]
		if !ok || !isArray(entry) {
			continue
		}
		var notes []struct {
			Text      *string         `json:"text"`
			Timestamp json.RawMessage `json:"timestamp"`
		}
		if err := json.Unmarshal(entry, &notes); err != nil {
			return nil, apperr.Validationf("roundNotes.%s must be an array of notes", round)
		}
		for i, n := range notes {
			if n.Text == nil || strings.TrimSpace(*n.Text) == "" {
				return nil, apperr.Validationf("roundNotes.%s.%d.text is required", round, i)
			}
			in := NoteInput{Text: *n.Text}
			if len(n.Timestamp) > 0 && !isNull(n.Timestamp) {
				var ts time.Time
				if err := json.Unmarshal(n.Timestamp, &ts); err != nil {
					return nil, apperr.Validationf("roundNotes.%s.%d.timestamp is not a valid date", round, i)
				}
				in.Timestamp = &ts
			}
			out[round] = append(out[round], in)
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func parseChecklist(v json.RawMessage) ([]ChecklistChange, error) {
	var entries []map[string]json.RawMessage
	if err := json.Unmarshal(v, &entries); err != nil {
		return nil, apperr.Validation("checklist must be an array of change objects")
	}
	changes := make([]ChecklistChange, 0, len(entries))
	for i, e := range entries {
		var c ChecklistChange
		if err := json.Unmarshal(e["id"], &c.ID); err != nil || c.ID == "" {
			return nil, apperr.Validationf("checklist.%d.id is required", i)
		}
		var name string
		if json.Unmarshal(e["name"], &name) == nil && isString(e["name"]) {
			c.Name = &name
		}
		var checked bool
		if json.Unmarshal(e["checked"], &checked) == nil && isBool(e["checked"]) {
			c.Checked = &checked
		}
		var remove bool
		if json.Unmarshal(e["remove"], &remove) == nil && isBool(e["remove"]) {
			c.Remove = remove
		}
		changes = append(changes, c)
	}
	return changes, nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

func firstByte(v json.RawMessage) byte {
	v = bytes.TrimSpace(v)
	if len(v) == 0 {
		return 0
	}
	return v[0]
}

func isArray(v json.RawMessage) bool  { return firstByte(v) == '[' }
func isString(v json.RawMessage) bool { return firstByte(v) == '"' }
func isBool(v json.RawMessage) bool {
	b := firstByte(v)
	return b == 't' || b == 'f'
}
