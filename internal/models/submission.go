package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FormSubmission is one startup application. It is written once and never
// updated through the API.
type FormSubmission struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	ProjectID string             `bson:"projectId" json:"projectId"`

	Role               string   `bson:"role,omitempty" json:"role,omitempty"`
	FullName           string   `bson:"fullName,omitempty" json:"fullName,omitempty"`
	PhoneNumber        string   `bson:"phoneNumber,omitempty" json:"phoneNumber,omitempty"`
	EmailAddress       string   `bson:"emailAddress,omitempty" json:"emailAddress,omitempty"`
	Country            string   `bson:"country,omitempty" json:"country,omitempty"`
	City               string   `bson:"city,omitempty" json:"city,omitempty"`
	StartupName        string   `bson:"startupName,omitempty" json:"startupName,omitempty"`
	WebsiteURL         string   `bson:"websiteURL,omitempty" json:"websiteURL,omitempty"`
	CurrentState       string   `bson:"currentState,omitempty" json:"currentState,omitempty"`
	LookingFor         string   `bson:"lookingFor,omitempty" json:"lookingFor,omitempty"`
	CompanyLinkedIn    string   `bson:"companyLinkedIn,omitempty" json:"companyLinkedIn,omitempty"`
	FoundersLinkedIn   string   `bson:"foundersLinkedIn,omitempty" json:"foundersLinkedIn,omitempty"`
	Industry           string   `bson:"industry,omitempty" json:"industry,omitempty"`
	ProblemSolved      string   `bson:"problemSolved,omitempty" json:"problemSolved,omitempty"`
	StartupDescription string   `bson:"startupDescription,omitempty" json:"startupDescription,omitempty"`
	TargetMarket       string   `bson:"targetMarket,omitempty" json:"targetMarket,omitempty"`
	NumberOfCustomers  *float64 `bson:"numberOfCustomers,omitempty" json:"numberOfCustomers,omitempty"`
	RevenueCurrency    string   `bson:"revenueCurrency,omitempty" json:"revenueCurrency,omitempty"`
	RevenueAmount      *float64 `bson:"revenueAmount,omitempty" json:"revenueAmount,omitempty"`
	RaisedFunding      bool     `bson:"raisedFunding" json:"raisedFunding"`
	FundingCurrency    string   `bson:"fundingCurrency,omitempty" json:"fundingCurrency,omitempty"`
	FundingAmount      *float64 `bson:"fundingAmount,omitempty" json:"fundingAmount,omitempty"`
	HeardFrom          string   `bson:"heardFrom,omitempty" json:"heardFrom,omitempty"`
	AdditionalInfo     string   `bson:"additionalInfo,omitempty" json:"additionalInfo,omitempty"`
	PitchDeck          string   `bson:"pitchDeck,omitempty" json:"pitchDeck,omitempty"`

	PDFFileURL string     `bson:"pdfFileUrl,omitempty" json:"pdfFileUrl,omitempty"`
	UploadLog  *UploadLog `bson:"uploadLog,omitempty" json:"uploadLog,omitempty"`

	SubmissionDate time.Time `bson:"submissionDate" json:"submissionDate"`
	CreatedAt      time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time `bson:"updatedAt" json:"updatedAt"`
}

// SubmissionFields lists every field name a caller may project on, in
// document order.
var SubmissionFields = []string{
	"projectId", "role", "fullName", "phoneNumber", "emailAddress", "country",
	"city", "startupName", "websiteURL", "currentState", "lookingFor",
	"companyLinkedIn", "foundersLinkedIn", "industry", "problemSolved",
	"startupDescription", "targetMarket", "numberOfCustomers", "revenueCurrency",
	"revenueAmount", "raisedFunding", "fundingCurrency", "fundingAmount",
	"heardFrom", "additionalInfo", "pitchDeck", "pdfFileUrl", "uploadLog",
	"submissionDate", "createdAt", "updatedAt",
}

var submissionFieldSet = func() map[string]bool {
	m := make(map[string]bool, len(SubmissionFields))
	for _, f := range SubmissionFields {
		m[f] = true
	}
	return m
}()

// ParseFieldList splits a comma-separated projection such as
// "startupName, emailAddress" and drops names that are not submission fields.
// An empty result means "all fields".
func ParseFieldList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var fields []string
	seen := map[string]bool{}
	for _, f := range strings.Split(raw, ",") {
		f = strings.TrimSpace(f)
		if !submissionFieldSet[f] || seen[f] {
			continue
		}
		seen[f] = true
		fields = append(fields, f)
	}
	return fields
}

// Project renders the submission with only _id and the requested fields.
// A nil field list renders everything.
func (s *FormSubmission) Project(fields []string) (map[string]any, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode submission %s: %w", s.ProjectID, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode submission %s: %w", s.ProjectID, err)
	}
	if len(fields) == 0 {
		return doc, nil
	}
	out := map[string]any{"_id": doc["_id"]}
	for _, f := range fields {
		if v, ok := doc[f]; ok {
			out[f] = v
		}
	}
	return out, nil
}

// Details is the summary copied into evaluation responses.
func (s *FormSubmission) Details() *ProjectDetails {
	return &ProjectDetails{
		ID:           s.ID,
		ProjectID:    s.ProjectID,
		StartupName:  s.StartupName,
		FullName:     s.FullName,
		EmailAddress: s.EmailAddress,
	}
}
