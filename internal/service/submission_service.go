package service

import (
	"context"
	"log"
	"math"
	"mime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/apperr"
	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/config"
	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/metrics"
	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/models"
	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/repository"
	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/storage"
)

// UploadFile is a document attached to a submission.
type UploadFile struct {
	Name        string
	ContentType string
	Data        []byte
}

type SubmissionOptions struct {
	KeyPrefix     string
	MaxBytes      int64
	Timeout       time.Duration
	FailurePolicy string
}

// SubmissionOptionsFrom picks the submission settings out of cfg.
func SubmissionOptionsFrom(cfg *config.Config) SubmissionOptions {
	return SubmissionOptions{
		KeyPrefix:     cfg.Storage.KeyPrefix,
		MaxBytes:      cfg.Upload.MaxBytes,
		Timeout:       cfg.Upload.Timeout,
		FailurePolicy: cfg.Upload.FailurePolicy,
	}
}

type SubmissionService struct {
	subs    SubmissionStore
	store   storage.ObjectStore
	opts    SubmissionOptions
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewSubmissionService(subs SubmissionStore, store storage.ObjectStore, opts SubmissionOptions, m *metrics.Metrics) *SubmissionService {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = models.MaxUploadBytes
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.FailurePolicy == "" {
		opts.FailurePolicy = config.UploadPolicyFail
	}
	return &SubmissionService{
		subs:    subs,
		store:   store,
		opts:    opts,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create validates and stores an application. When file is non-nil it is
// uploaded first; what happens on upload failure depends on the configured
// failure policy.
func (s *SubmissionService) Create(ctx context.Context, fields map[string]string, file *UploadFile) (*models.FormSubmission, error) {
	received := s.now()

	sub, err := buildSubmission(fields)
	if err != nil {
		return nil, err
	}
	sub.SubmissionDate = received

	if file != nil {
		if err := s.validateFile(file); err != nil {
			s.metrics.RecordUpload(metrics.UploadRejected, int64(len(file.Data)))
			return nil, err
		}
	}

	if sub.ProjectID != "" {
		existing, err := s.subs.FindByProjectID(ctx, sub.ProjectID)
		if err != nil {
			return nil, apperr.Persistence("Failed to check project id", err)
		}
		if existing != nil {
			return nil, apperr.Validationf("projectId %q already exists", sub.ProjectID)
		}
	} else {
		sub.ProjectID = uuid.NewString()
	}

	var storedKey string
	if file != nil {
		if storedKey, err = s.upload(ctx, sub, file); err != nil {
			return nil, err
		}
	}

	now := s.now()
	sub.CreatedAt = now
	sub.UpdatedAt = now
	if err := s.subs.Create(ctx, sub); err != nil {
		if storedKey != "" {
			s.discard(storedKey)
		}
		if repository.IsDuplicate(err) {
			return nil, apperr.Validationf("projectId %q already exists", sub.ProjectID)
		}
		return nil, apperr.Persistence("Failed to save form submission", err)
	}

	log.Printf("Form submission saved: projectId=%s startup=%q file=%t", sub.ProjectID, sub.StartupName, sub.PDFFileURL != "")
	return sub, nil
}

func (s *SubmissionService) validateFile(file *UploadFile) error {
	ct := file.ContentType
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mt
	}
	if !models.AllowedUploadType(ct) {
		return apperr.Validation("Only PDF and PowerPoint files are allowed")
	}
	if int64(len(file.Data)) > s.opts.MaxBytes {
		return apperr.Validationf("File size exceeds %dMB limit", s.opts.MaxBytes>>20)
	}
	file.ContentType = ct
	return nil
}

// upload stores file and records the attempt on sub. It returns the key of
// the stored object, or "" when nothing was stored.
func (s *SubmissionService) upload(ctx context.Context, sub *models.FormSubmission, file *UploadFile) (string, error) {
	size := int64(len(file.Data))
	entry := &models.UploadLog{
		FileName:  file.Name,
		FileSize:  size,
		FileType:  file.ContentType,
		StartTime: s.now(),
	}
	key := storage.ObjectKey(s.opts.KeyPrefix, file.Name)
	log.Printf("Upload started: %s (%d bytes, %s) -> %s", file.Name, size, file.ContentType, key)

	uctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	url, err := s.store.Put(uctx, key, file.Data, file.ContentType)
	cancel()
	entry.Finish(s.now(), url, err)

	if err != nil {
		s.metrics.RecordUpload(metrics.UploadFailure, size)
		log.Printf("Warning: upload of %s failed after %dms: %v", file.Name, entry.Duration, err)
		if s.opts.FailurePolicy != config.UploadPolicyRecord {
			return "", apperr.Upload("Failed to upload file", err)
		}
		sub.UploadLog = entry
		return "", nil
	}

	s.metrics.RecordUpload(metrics.UploadSuccess, size)
	log.Printf("Upload finished: %s in %dms -> %s", file.Name, entry.Duration, url)
	sub.PDFFileURL = url
	sub.UploadLog = entry
	return key, nil
}

// discard removes an object whose submission could not be saved. It runs
// on its own context so a cancelled request still cleans up.
func (s *SubmissionService) discard(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.Timeout)
	defer cancel()
	if err := s.store.Delete(ctx, key); err != nil {
		log.Printf("Warning: orphaned object %s left in storage: %v", key, err)
		return
	}
	log.Printf("Removed object %s after failed save", key)
}

// List returns submissions newest first, projected on fields when given.
func (s *SubmissionService) List(ctx context.Context, fields []string) ([]map[string]any, error) {
	subs, err := s.subs.List(ctx, fields)
	if err != nil {
		return nil, apperr.Persistence("Failed to load form submissions", err)
	}
	out := make([]map[string]any, 0, len(subs))
	for i := range subs {
		doc, err := subs[i].Project(fields)
		if err != nil {
			return nil, apperr.Persistence("Failed to render form submissions", err)
		}
		out = append(out, doc)
	}
	return out, nil
}

func (s *SubmissionService) Count(ctx context.Context) (int64, error) {
	n, err := s.subs.Count(ctx)
	if err != nil {
		return 0, apperr.Persistence("Failed to count form submissions", err)
	}
	return n, nil
}

// buildSubmission maps raw form values onto a submission. Numbers must parse;
// raisedFunding is true only for "true".
func buildSubmission(fields map[string]string) (*models.FormSubmission, error) {
	get := func(k string) string { return strings.TrimSpace(fields[k]) }

	sub := &models.FormSubmission{
		ProjectID:          get("projectId"),
		Role:               get("role"),
		FullName:           get("fullName"),
		PhoneNumber:        get("phoneNumber"),
		EmailAddress:       get("emailAddress"),
		Country:            get("country"),
		City:               get("city"),
		StartupName:        get("startupName"),
		WebsiteURL:         get("websiteURL"),
		CurrentState:       get("currentState"),
		LookingFor:         get("lookingFor"),
		CompanyLinkedIn:    get("companyLinkedIn"),
		FoundersLinkedIn:   get("foundersLinkedIn"),
		Industry:           get("industry"),
		ProblemSolved:      get("problemSolved"),
		StartupDescription: get("startupDescription"),
		TargetMarket:       get("targetMarket"),
		RevenueCurrency:    get("revenueCurrency"),
		RaisedFunding:      get("raisedFunding") == "true",
		FundingCurrency:    get("fundingCurrency"),
		HeardFrom:          get("heardFrom"),
		AdditionalInfo:     get("additionalInfo"),
		PitchDeck:          get("pitchDeck"),
	}

	numbers := []struct {
		name string
		dst  **float64
	}{
		{"numberOfCustomers", &sub.NumberOfCustomers},
		{"revenueAmount", &sub.RevenueAmount},
		{"fundingAmount", &sub.FundingAmount},
	}
	for _, n := range numbers {
		raw := get(n.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, apperr.Validationf("%s must be a number", n.name)
		}
		*n.dst = &v
	}
	return sub, nil
}
