package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/apperr"
	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/config"
	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/evaluation"
	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/metrics"
	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/models"
	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/repository/memory"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, key, data, contentType)
	return args.String(0), args.Error(1)
}

func (m *mockStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

// failingSubs rejects every write.
type failingSubs struct {
	*memory.SubmissionRepo
}

func (failingSubs) Create(context.Context, *models.FormSubmission) error {
	return errors.New("connection reset")
}

// stepClock returns t0, t0+1s, t0+2s, ...
func stepClock(t0 time.Time) func() time.Time {
	var mu sync.Mutex
	n := 0
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		n++
		return t0.Add(time.Duration(n-1) * time.Second)
	}
}

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func newSubmissionService(store *mockStore, policy string) (*SubmissionService, *memory.SubmissionRepo) {
	repo := memory.NewSubmissionRepo()
	svc := NewSubmissionService(repo, store, SubmissionOptions{
		KeyPrefix:     "pdfs",
		MaxBytes:      models.MaxUploadBytes,
		Timeout:       time.Second,
		FailurePolicy: policy,
	}, metrics.New("test"))
	svc.now = stepClock(t0)
	return svc, repo
}

func TestCreateWithoutFile(t *testing.T) {
	store := &mockStore{}
	svc, repo := newSubmissionService(store, config.UploadPolicyFail)

	sub, err := svc.Create(context.Background(), map[string]string{
		"startupName":       "Acme",
		"fullName":          "Ada",
		"numberOfCustomers": "12",
		"revenueAmount":     "",
		"raisedFunding":     "true",
	}, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, sub.ProjectID)
	assert.Empty(t, sub.PDFFileURL)
	assert.Nil(t, sub.UploadLog)
	assert.True(t, sub.RaisedFunding)
	require.NotNil(t, sub.NumberOfCustomers)
	assert.Equal(t, 12.0, *sub.NumberOfCustomers)
	assert.Nil(t, sub.RevenueAmount)
	assert.Equal(t, t0, sub.SubmissionDate)

	n, _ := repo.Count(context.Background())
	assert.Equal(t, int64(1), n)
	store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateRaisedFundingOnlyForTrue(t *testing.T) {
	svc, _ := newSubmissionService(&mockStore{}, config.UploadPolicyFail)
	sub, err := svc.Create(context.Background(), map[string]string{"raisedFunding": "yes"}, nil)
	require.NoError(t, err)
	assert.False(t, sub.RaisedFunding)
}

func TestCreateRejectsBadNumber(t *testing.T) {
	svc, repo := newSubmissionService(&mockStore{}, config.UploadPolicyFail)
	for _, fields := range []map[string]string{
		{"fundingAmount": "lots"},
		{"numberOfCustomers": "NaN"},
		{"revenueAmount": "Inf"},
		{"fundingAmount": "-Inf"},
		{"revenueAmount": "1e400"},
	} {
		_, err := svc.Create(context.Background(), fields, nil)
		assert.ErrorIs(t, err, apperr.ErrValidation, fields)
	}
	n, _ := repo.Count(context.Background())
	assert.Zero(t, n)
}

func TestCreateRemovesObjectWhenSaveFails(t *testing.T) {
	store := &mockStore{}
	var stored string
	store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { stored = args.String(1) }).
		Return("https://cdn/pdfs/x-deck.pdf", nil).Once()
	store.On("Delete", mock.Anything, mock.Anything).Return(nil).Once()

	svc := NewSubmissionService(failingSubs{memory.NewSubmissionRepo()}, store, SubmissionOptions{
		KeyPrefix: "pdfs",
		Timeout:   time.Second,
	}, nil)

	_, err := svc.Create(context.Background(), map[string]string{}, &UploadFile{
		Name: "deck.pdf", ContentType: models.MimePDF, Data: []byte("%PDF"),
	})
	assert.ErrorIs(t, err, apperr.ErrPersistence)
	store.AssertCalled(t, "Delete", mock.Anything, stored)
}

func TestCreateUploadsFile(t *testing.T) {
	store := &mockStore{}
	store.On("Put", mock.Anything, mock.MatchedBy(func(key string) bool {
		return len(key) > len("pdfs/") && key[:5] == "pdfs/"
	}), []byte("%PDF"), models.MimePDF).Return("https://cdn/pdfs/x-deck.pdf", nil).Once()
	svc, _ := newSubmissionService(store, config.UploadPolicyFail)

	sub, err := svc.Create(context.Background(), map[string]string{"projectId": "p-1"}, &UploadFile{
		Name:        "deck.pdf",
		ContentType: "application/pdf",
		Data:        []byte("%PDF"),
	})
	require.NoError(t, err)

	assert.Equal(t, "p-1", sub.ProjectID)
	assert.Equal(t, "https://cdn/pdfs/x-deck.pdf", sub.PDFFileURL)
	require.NotNil(t, sub.UploadLog)
	assert.True(t, sub.UploadLog.Success)
	assert.Equal(t, sub.PDFFileURL, sub.UploadLog.FileURL)
	assert.Equal(t, "deck.pdf", sub.UploadLog.FileName)
	assert.Equal(t, int64(4), sub.UploadLog.FileSize)
	assert.Equal(t, models.MimePDF, sub.UploadLog.FileType)
	assert.Equal(t, int64(1000), sub.UploadLog.Duration)
	store.AssertExpectations(t)
}

func TestCreateRejectsFileBeforeWriting(t *testing.T) {
	tests := []struct {
		name string
		file *UploadFile
	}{
		{"wrong type", &UploadFile{Name: "a.png", ContentType: "image/png", Data: []byte("x")}},
		{"too large", &UploadFile{Name: "a.pdf", ContentType: models.MimePDF, Data: make([]byte, models.MaxUploadBytes+1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{}
			svc, repo := newSubmissionService(store, config.UploadPolicyRecord)

			_, err := svc.Create(context.Background(), map[string]string{"startupName": "Acme"}, tt.file)
			assert.ErrorIs(t, err, apperr.ErrValidation)

			n, _ := repo.Count(context.Background())
			assert.Zero(t, n)
			store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestCreateUploadFailureFailPolicy(t *testing.T) {
	store := &mockStore{}
	store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("access denied")).Once()
	svc, repo := newSubmissionService(store, config.UploadPolicyFail)

	_, err := svc.Create(context.Background(), map[string]string{}, &UploadFile{
		Name: "deck.pptx", ContentType: models.MimePPTX, Data: []byte("pk"),
	})
	assert.ErrorIs(t, err, apperr.ErrUpload)
	assert.Equal(t, 500, apperr.HTTPStatus(err))

	n, _ := repo.Count(context.Background())
	assert.Zero(t, n)
}

func TestCreateUploadFailureRecordPolicy(t *testing.T) {
	store := &mockStore{}
	store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("access denied")).Once()
	svc, repo := newSubmissionService(store, config.UploadPolicyRecord)

	sub, err := svc.Create(context.Background(), map[string]string{}, &UploadFile{
		Name: "deck.ppt", ContentType: models.MimePPT, Data: []byte("d0"),
	})
	require.NoError(t, err)

	assert.Empty(t, sub.PDFFileURL)
	require.NotNil(t, sub.UploadLog)
	assert.False(t, sub.UploadLog.Success)
	assert.Equal(t, "access denied", sub.UploadLog.Error)
	assert.Empty(t, sub.UploadLog.FileURL)

	n, _ := repo.Count(context.Background())
	assert.Equal(t, int64(1), n)
}

func TestCreateDuplicateProjectID(t *testing.T) {
	svc, _ := newSubmissionService(&mockStore{}, config.UploadPolicyFail)
	_, err := svc.Create(context.Background(), map[string]string{"projectId": "dup"}, nil)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), map[string]string{"projectId": "dup"}, nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestListProjectsFields(t *testing.T) {
	svc, _ := newSubmissionService(&mockStore{}, config.UploadPolicyFail)
	ctx := context.Background()
	_, err := svc.Create(ctx, map[string]string{"projectId": "old", "startupName": "Old", "city": "Oslo"}, nil)
	require.NoError(t, err)
	_, err = svc.Create(ctx, map[string]string{"projectId": "new", "startupName": "New", "city": "Rome"}, nil)
	require.NoError(t, err)

	docs, err := svc.List(ctx, []string{"startupName"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "New", docs[0]["startupName"])
	assert.Contains(t, docs[0], "_id")
	assert.NotContains(t, docs[0], "city")

	all, err := svc.List(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "Rome", all[0]["city"])
}

type evalFixture struct {
	svc   *EvaluationService
	subs  *memory.SubmissionRepo
	evals *memory.EvaluationRepo
}

func newEvalFixture(t *testing.T, projects ...string) evalFixture {
	t.Helper()
	subs := memory.NewSubmissionRepo()
	evals := memory.NewEvaluationRepo()
	for _, p := range projects {
		require.NoError(t, subs.Create(context.Background(), &models.FormSubmission{
			ProjectID:    p,
			StartupName:  "Startup " + p,
			FullName:     "Founder " + p,
			EmailAddress: p + "@example.com",
		}))
	}
	svc := NewEvaluationService(subs, evals, metrics.New("test"))
	svc.now = stepClock(t0)
	return evalFixture{svc: svc, subs: subs, evals: evals}
}

func patch(t *testing.T, body string) evaluation.Patch {
	t.Helper()
	p, err := evaluation.ParsePatch([]byte(body))
	require.NoError(t, err)
	return p
}

func TestUpsertChecklistScenario(t *testing.T) {
	f := newEvalFixture(t, "p1")
	ctx := context.Background()

	view, err := f.svc.Upsert(ctx, "p1", patch(t, `{"checklist":[{"id":"a","name":"Pitch quality","checked":false}]}`))
	require.NoError(t, err)
	assert.Equal(t, models.DefaultStatus, view.ProjectStatus)
	assert.Equal(t, []models.ChecklistItem{{ID: "a", Name: "Pitch quality"}}, view.EvaluationChecklist)
	require.NotNil(t, view.ProjectDetails)
	assert.Equal(t, "Startup p1", view.ProjectDetails.StartupName)

	view, err = f.svc.Upsert(ctx, "p1", patch(t, `{"checklist":[{"id":"a","checked":true},{"id":"b","name":"Team","checked":false}]}`))
	require.NoError(t, err)
	assert.Equal(t, []models.ChecklistItem{
		{ID: "a", Name: "Pitch quality", Checked: true},
		{ID: "b", Name: "Team"},
	}, view.EvaluationChecklist)

	view, err = f.svc.Upsert(ctx, "p1", patch(t, `{"checklist":[{"id":"a","remove":true}]}`))
	require.NoError(t, err)
	assert.Equal(t, []models.ChecklistItem{{ID: "b", Name: "Team"}}, view.EvaluationChecklist)
}

func TestUpsertAppendsNotes(t *testing.T) {
	f := newEvalFixture(t, "p1")
	ctx := context.Background()
	body := `{"roundNotes":{"firstRound":[{"text":"Strong team"}]}}`

	_, err := f.svc.Upsert(ctx, "p1", patch(t, body))
	require.NoError(t, err)
	view, err := f.svc.Upsert(ctx, "p1", patch(t, body))
	require.NoError(t, err)

	notes := view.RoundNotes.FirstRound
	require.Len(t, notes, 2)
	assert.Equal(t, "Strong team", notes[0].Text)
	assert.Equal(t, "Strong team", notes[1].Text)
	assert.NotEqual(t, notes[0].Timestamp, notes[1].Timestamp)
	assert.Empty(t, view.RoundNotes.SecondRound)
}

func TestUpsertKeepsAbsentFields(t *testing.T) {
	f := newEvalFixture(t, "p1")
	ctx := context.Background()

	_, err := f.svc.Upsert(ctx, "p1", patch(t, `{"status":"Selected","additionalDocuments":[{"name":"Deck","url":"https://x/deck","type":"Pitch Material"}]}`))
	require.NoError(t, err)

	view, err := f.svc.Upsert(ctx, "p1", patch(t, `{"roundNotes":{"generalNotes":[{"text":"call scheduled"}]}}`))
	require.NoError(t, err)
	assert.Equal(t, models.StatusSelected, view.ProjectStatus)
	require.Len(t, view.AdditionalDocuments, 1)
	assert.Equal(t, "Deck", view.AdditionalDocuments[0].Name)
	assert.Len(t, view.RoundNotes.GeneralNotes, 1)
	assert.True(t, view.LastUpdated.After(view.CreatedAt))
}

func TestUpsertMissingSubmission(t *testing.T) {
	f := newEvalFixture(t)
	_, err := f.svc.Upsert(context.Background(), "ghost", patch(t, `{"status":"New"}`))
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	evs, _ := f.evals.List(context.Background())
	assert.Empty(t, evs)
}

func TestConcurrentUpsertsKeepDisjointChecklistChanges(t *testing.T) {
	f := newEvalFixture(t, "p1")
	ctx := context.Background()
	_, err := f.svc.Upsert(ctx, "p1", patch(t, `{}`))
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			p := evaluation.Patch{HasChecklist: true, Checklist: []evaluation.ChecklistChange{{ID: id}}}
			_, err := f.svc.Upsert(ctx, "p1", p)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	view, err := f.svc.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, view.EvaluationChecklist, n)
	assert.Zero(t, f.svc.locks.size())
}

func TestGet(t *testing.T) {
	f := newEvalFixture(t, "p1", "p2")
	ctx := context.Background()

	_, err := f.svc.Get(ctx, "nobody")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.Get(ctx, "p2")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.Upsert(ctx, "p1", patch(t, `{"projectStatus":"Round 1 Cleared"}`))
	require.NoError(t, err)
	view, err := f.svc.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRound1Cleared, view.ProjectStatus)
	assert.Equal(t, "p1@example.com", view.ProjectDetails.EmailAddress)
}

func TestListAllWithDanglingSubmission(t *testing.T) {
	f := newEvalFixture(t, "p1", "p2")
	ctx := context.Background()
	_, err := f.svc.Upsert(ctx, "p1", patch(t, `{}`))
	require.NoError(t, err)
	_, err = f.svc.Upsert(ctx, "p2", patch(t, `{}`))
	require.NoError(t, err)
	f.subs.Delete("p1")

	views, err := f.svc.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "p2", views[0].ProjectID)
	assert.NotNil(t, views[0].ProjectDetails)
	assert.Equal(t, "p1", views[1].ProjectID)
	assert.Nil(t, views[1].ProjectDetails)
}

func TestStats(t *testing.T) {
	f := newEvalFixture(t, "p1", "p2", "p3")
	ctx := context.Background()
	_, err := f.svc.Upsert(ctx, "p1", patch(t, `{"status":"Rejected"}`))
	require.NoError(t, err)
	_, err = f.svc.Upsert(ctx, "p2", patch(t, `{}`))
	require.NoError(t, err)

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.SubmissionCount)
	assert.Equal(t, int64(2), stats.EvaluationCount)
	assert.Equal(t, int64(1), stats.StatusCounts[models.StatusRejected])
	assert.Equal(t, int64(1), stats.StatusCounts[models.StatusOnHold])
	assert.Equal(t, int64(0), stats.StatusCounts[models.StatusSelected])
}

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock("a")

	acquired := make(chan struct{})
	go func() {
		unlock := k.Lock("a")
		close(acquired)
		unlock()
	}()

	unlockB := k.Lock("b")
	unlockB()

	select {
	case <-acquired:
		t.Fatal("second lock on the same key acquired while held")
	case <-time.After(50 * time.Millisecond):
	}

	unlockA()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock never released")
	}
}
