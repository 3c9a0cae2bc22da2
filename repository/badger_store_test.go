package repository

import (
	"context"
	"sync"
	"testing"

	"casebrief-backend/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := OpenBadger("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createCase(t *testing.T, s *BadgerStore) *models.CaseRecord {
	t.Helper()
	c, err := s.CreateCase(context.Background(), models.CaseFields{
		Title:        "Marbury v. Madison",
		DecisionDate: "1803",
		Citation:     "5 U.S. 137",
		Jurisdiction: "US Supreme Court",
	})
	require.NoError(t, err)
	return c
}

func sampleSummary(rule string) models.BriefSummary {
	return models.NewBriefSummary(map[string]string{
		"ruleOfLaw": rule,
		"facts":     "Marbury was not delivered his commission.",
		"issue":     "Can the Court issue the writ?",
		"holding":   "No.",
		"reasoning": "Section 13 is unconstitutional.",
	})
}

func TestBadgerStore_CreateAndGet(t *testing.T) {
	s := newTestStore(t)
	c := createCase(t, s)

	got, err := s.GetCase(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Marbury v. Madison", got.Title)
	assert.Nil(t, got.BriefSummary)
	assert.Nil(t, got.DetailedSummary)
}

func TestBadgerStore_GetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetCase(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBadgerStore_PatchSummaryIsSlotScoped(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	c := createCase(t, s)

	detailed, err := s.PatchSummary(ctx, c.ID, models.SlotDetailed, sampleSummary("long"))
	require.NoError(t, err)
	require.NoError(t, s.PatchVerified(ctx, c.ID, models.SlotDetailed, detailed.Revision, true))

	brief, err := s.PatchSummary(ctx, c.ID, models.SlotBrief, sampleSummary("short").WithVerified(true))
	require.NoError(t, err)
	assert.False(t, brief.Verified, "summary writes always reset verified")
	assert.NotEmpty(t, brief.Revision)

	got, err := s.GetCase(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.BriefSummary)
	require.NotNil(t, got.DetailedSummary)
	assert.Equal(t, "short", got.BriefSummary.RuleOfLaw)
	assert.False(t, got.BriefSummary.Verified)
	assert.Equal(t, "long", got.DetailedSummary.RuleOfLaw)
	assert.True(t, got.DetailedSummary.Verified)
	assert.Equal(t, "Marbury v. Madison", got.Title)
}

func TestBadgerStore_PatchVerifiedRevisionGuard(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	c := createCase(t, s)

	first, err := s.PatchSummary(ctx, c.ID, models.SlotBrief, sampleSummary("A"))
	require.NoError(t, err)
	second, err := s.PatchSummary(ctx, c.ID, models.SlotBrief, sampleSummary("B"))
	require.NoError(t, err)
	assert.NotEqual(t, first.Revision, second.Revision)

	err = s.PatchVerified(ctx, c.ID, models.SlotBrief, first.Revision, true)
	assert.ErrorIs(t, err, ErrStaleRevision)

	require.NoError(t, s.PatchVerified(ctx, c.ID, models.SlotBrief, second.Revision, true))
	got, err := s.GetCase(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "B", got.BriefSummary.RuleOfLaw)
	assert.True(t, got.BriefSummary.Verified)
	assert.Equal(t, second.Revision, got.BriefSummary.Revision)
}

func TestBadgerStore_PatchVerifiedMissing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	c := createCase(t, s)

	err := s.PatchVerified(ctx, c.ID, models.SlotBrief, "rev", true)
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.PatchVerified(ctx, uuid.New(), models.SlotBrief, "rev", true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBadgerStore_PatchMetadataField(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	c := createCase(t, s)
	_, err := s.PatchSummary(ctx, c.ID, models.SlotBrief, sampleSummary("A"))
	require.NoError(t, err)

	require.NoError(t, s.PatchMetadataField(ctx, c.ID, models.FieldCitation, "5 U.S. (1 Cranch) 137"))

	got, err := s.GetCase(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "5 U.S. (1 Cranch) 137", got.Citation)
	assert.Equal(t, "A", got.BriefSummary.RuleOfLaw)

	assert.Error(t, s.PatchMetadataField(ctx, c.ID, models.MetadataField("briefSummary"), "x"))
	assert.ErrorIs(t, s.PatchMetadataField(ctx, uuid.New(), models.FieldTitle, "x"), ErrNotFound)
}

func TestBadgerStore_ConcurrentPatchesKeepBothSlots(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	c := createCase(t, s)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.PatchSummary(ctx, c.ID, models.SlotBrief, sampleSummary("short"))
		}()
		go func() {
			defer wg.Done()
			_ = s.PatchMetadataField(ctx, c.ID, models.FieldJurisdiction, "federal")
		}()
	}
	wg.Wait()

	got, err := s.GetCase(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.BriefSummary)
	assert.Equal(t, "short", got.BriefSummary.RuleOfLaw)
	assert.Equal(t, "federal", got.Jurisdiction)
}

func TestBadgerStore_ListUnverified(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	pending := createCase(t, s)
	done := createCase(t, s)
	createCase(t, s)

	_, err := s.PatchSummary(ctx, pending.ID, models.SlotBrief, sampleSummary("A"))
	require.NoError(t, err)
	stored, err := s.PatchSummary(ctx, done.ID, models.SlotBrief, sampleSummary("B"))
	require.NoError(t, err)
	require.NoError(t, s.PatchVerified(ctx, done.ID, models.SlotBrief, stored.Revision, true))

	cases, err := s.ListUnverified(ctx, models.SlotBrief, 10)
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, pending.ID, cases[0].ID)

	cases, err = s.ListUnverified(ctx, models.SlotDetailed, 10)
	require.NoError(t, err)
	assert.Empty(t, cases)
}

func TestBadgerStore_ListCasesPaging(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for i := 0; i < 5; i++ {
		createCase(t, s)
	}

	all, err := s.ListCases(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	pageTwo, err := s.ListCases(ctx, 2, 4)
	require.NoError(t, err)
	assert.Len(t, pageTwo, 1)

	empty, err := s.ListCases(ctx, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestBadgerStore_JobLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	c := createCase(t, s)

	job := &models.ResolutionJob{
		CaseID: c.ID,
		Slot:   models.SlotBrief,
		Intent: models.IntentReuseIfPresent,
		Status: models.JobStatusPending,
	}
	require.NoError(t, s.CreateJob(ctx, job))
	require.NotEqual(t, uuid.Nil, job.ID)

	steps := models.ResolutionSteps{{Name: "generate", Status: "in_progress"}}
	require.NoError(t, s.UpdateJobProgress(ctx, job.ID, "generate", steps, 1))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusInProgress, got.Status)
	require.NotNil(t, got.CurrentStep)
	assert.Equal(t, "generate", *got.CurrentStep)

	sum := sampleSummary("A")
	require.NoError(t, s.CompleteJob(ctx, job.ID, "verified", &sum, 1))
	got, err = s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, "verified", got.Outcome)
	require.NotNil(t, got.Summary)
	assert.Equal(t, "A", got.Summary.RuleOfLaw)
	assert.NotNil(t, got.CompletedAt)

	assert.ErrorIs(t, s.FailJob(ctx, uuid.New(), "hard_error", "boom", 0), ErrNotFound)
}

func TestBadgerStore_Favorites(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := createCase(t, s)
	b := createCase(t, s)

	require.NoError(t, s.AddFavorite(ctx, "user:1", a.ID))
	require.NoError(t, s.AddFavorite(ctx, "user:1", a.ID))
	require.NoError(t, s.AddFavorite(ctx, "user:1", b.ID))
	require.NoError(t, s.AddFavorite(ctx, "user:2", b.ID))
	assert.ErrorIs(t, s.AddFavorite(ctx, "user:1", uuid.New()), ErrNotFound)

	favs, err := s.ListFavorites(ctx, "user:1")
	require.NoError(t, err)
	assert.Len(t, favs, 2)

	require.NoError(t, s.RemoveFavorite(ctx, "user:1", a.ID))
	require.NoError(t, s.RemoveFavorite(ctx, "user:1", a.ID))
	favs, err = s.ListFavorites(ctx, "user:1")
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, b.ID, favs[0].CaseID)
}

func TestBadgerStore_Files(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	c := createCase(t, s)

	f := &models.File{CaseID: c.ID, Filename: "opinion.txt", MimeType: "text/plain", Size: 12, StoragePath: "cases/x/opinion.txt"}
	require.NoError(t, s.CreateFile(ctx, f))

	got, err := s.GetFile(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "opinion.txt", got.Filename)

	files, err := s.ListFilesByCase(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, files, 1)

	orphan := &models.File{CaseID: uuid.New(), Filename: "x"}
	assert.ErrorIs(t, s.CreateFile(ctx, orphan), ErrNotFound)
	_, err = s.GetFile(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBadgerStore_CancelledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.GetCase(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
