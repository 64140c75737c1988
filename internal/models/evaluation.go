package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Status is the position of a project in the selection pipeline.
type Status string

const (
	StatusNew           Status = "New"
	StatusRound1Cleared Status = "Round 1 Cleared"
	StatusRound2Cleared Status = "Round 2 Cleared"
	StatusSelected      Status = "Selected"
	StatusRejected      Status = "Rejected"
	StatusOnHold        Status = "On Hold"
)

// DefaultStatus is assigned to evaluations created without an explicit status.
const DefaultStatus = StatusOnHold

// Statuses lists every valid status.
var Statuses = []Status{
	StatusNew, StatusRound1Cleared, StatusRound2Cleared,
	StatusSelected, StatusRejected, StatusOnHold,
}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Round names one of the append-only note logs.
type Round string

const (
	RoundFirst   Round = "firstRound"
	RoundSecond  Round = "secondRound"
	RoundThird   Round = "thirdRound"
	RoundGeneral Round = "generalNotes"
)

// Rounds lists the note logs in document order.
var Rounds = []Round{RoundFirst, RoundSecond, RoundThird, RoundGeneral}

func (r Round) Valid() bool {
	switch r {
	case RoundFirst, RoundSecond, RoundThird, RoundGeneral:
		return true
	}
	return false
}

// Note is a single reviewer entry. Notes are never edited or removed.
type Note struct {
	Text      string    `bson:"text" json:"text"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// RoundNotes holds one log per review round.
type RoundNotes struct {
	FirstRound   []Note `bson:"firstRound" json:"firstRound"`
	SecondRound  []Note `bson:"secondRound" json:"secondRound"`
	ThirdRound   []Note `bson:"thirdRound" json:"thirdRound"`
	GeneralNotes []Note `bson:"generalNotes" json:"generalNotes"`
}

func (n *RoundNotes) log(r Round) *[]Note {
	switch r {
	case RoundFirst:
		return &n.FirstRound
	case RoundSecond:
		return &n.SecondRound
	case RoundThird:
		return &n.ThirdRound
	case RoundGeneral:
		return &n.GeneralNotes
	}
	return nil
}

// Get returns the notes recorded for r.
func (n *RoundNotes) Get(r Round) []Note {
	if l := n.log(r); l != nil {
		return *l
	}
	return nil
}

// Append adds notes to the end of r's log. Unknown rounds are ignored.
func (n *RoundNotes) Append(r Round, notes ...Note) {
	l := n.log(r)
	if l == nil {
		return
	}
	*l = append(*l, notes...)
}

// Normalize replaces nil logs with empty ones so they encode as [].
func (n *RoundNotes) Normalize() {
	for _, r := range Rounds {
		if l := n.log(r); *l == nil {
			*l = []Note{}
		}
	}
}

// Clone returns a deep copy.
func (n RoundNotes) Clone() RoundNotes {
	var c RoundNotes
	for _, r := range Rounds {
		src := n.Get(r)
		c.Append(r, append([]Note(nil), src...)...)
	}
	c.Normalize()
	return c
}

// DocumentType classifies supplementary material.
type DocumentType string

const (
	DocumentTypeDocument      DocumentType = "Document"
	DocumentTypePitchMaterial DocumentType = "Pitch Material"
)

func (t DocumentType) Valid() bool {
	return t == DocumentTypeDocument || t == DocumentTypePitchMaterial
}

// AdditionalDocument is material attached after the initial submission.
type AdditionalDocument struct {
	Name string       `bson:"name" json:"name"`
	URL  string       `bson:"url" json:"url"`
	Type DocumentType `bson:"type" json:"type"`
}

// ChecklistItem is one entry of the evaluation checklist, identified by ID.
type ChecklistItem struct {
	ID      string `bson:"id" json:"id"`
	Name    string `bson:"name" json:"name"`
	Checked bool   `bson:"checked" json:"checked"`
}

// ProjectEvaluation is the review record of a project. There is at most one
// per project id.
type ProjectEvaluation struct {
	ID                  primitive.ObjectID   `bson:"_id,omitempty" json:"_id"`
	ProjectID           string               `bson:"projectId" json:"projectId"`
	ProjectStatus       Status               `bson:"projectStatus" json:"projectStatus"`
	RoundNotes          RoundNotes           `bson:"roundNotes" json:"roundNotes"`
	AdditionalDocuments []AdditionalDocument `bson:"additionalDocuments" json:"additionalDocuments"`
	EvaluationChecklist []ChecklistItem      `bson:"evaluationChecklist" json:"evaluationChecklist"`
	LastUpdated         time.Time            `bson:"lastUpdated" json:"lastUpdated"`
	CreatedAt           time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt           time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// Normalize fills nil slices so the record always encodes complete arrays.
func (e *ProjectEvaluation) Normalize() {
	e.RoundNotes.Normalize()
	if e.AdditionalDocuments == nil {
		e.AdditionalDocuments = []AdditionalDocument{}
	}
	if e.EvaluationChecklist == nil {
		e.EvaluationChecklist = []ChecklistItem{}
	}
}

// Clone returns a deep copy.
func (e ProjectEvaluation) Clone() ProjectEvaluation {
	c := e
	c.RoundNotes = e.RoundNotes.Clone()
	c.AdditionalDocuments = append([]AdditionalDocument{}, e.AdditionalDocuments...)
	c.EvaluationChecklist = append([]ChecklistItem{}, e.EvaluationChecklist...)
	return c
}

// ProjectDetails is the submission summary attached to evaluation responses.
// It is computed on read and never stored.
type ProjectDetails struct {
	ID           primitive.ObjectID `json:"_id"`
	ProjectID    string             `json:"projectId"`
	StartupName  string             `json:"startupName"`
	FullName     string             `json:"fullName"`
	EmailAddress string             `json:"emailAddress"`
}

// EvaluationView is an evaluation as returned by the API.
type EvaluationView struct {
	ProjectEvaluation
	ProjectDetails *ProjectDetails `json:"projectDetails"`
}
