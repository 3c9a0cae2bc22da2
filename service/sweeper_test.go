package service

import (
	"context"
	"testing"

	"casebrief-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeper_ResolvesOnlyUnverified(t *testing.T) {
	client := &scriptedLLM{generate: gen(briefJSON("fresh")), verify: gen(verdictTrue)}
	f := newFixture(t, client)
	ctx := context.Background()

	f.seed(t, models.SlotBrief, "draft", false)
	verifiedCase, err := f.store.CreateCase(ctx, models.CaseFields{Title: "Plessy v. Ferguson"})
	require.NoError(t, err)
	rev, err := f.store.PatchSummary(ctx, verifiedCase.ID, models.SlotBrief, models.NewBriefSummary(map[string]string{"ruleOfLaw": "ok"}))
	require.NoError(t, err)
	require.NoError(t, f.store.PatchVerified(ctx, verifiedCase.ID, models.SlotBrief, rev.Revision, true))
	_, err = f.store.CreateCase(ctx, models.CaseFields{Title: "Empty"})
	require.NoError(t, err)

	sw := NewSweeper(SweepWithCaseStore(f.store), SweepWithBriefService(f.svc))
	report, err := sw.Sweep(ctx, models.SlotBrief, 0)
	require.NoError(t, err)

	assert.Equal(t, SweepReport{Scanned: 1, Verified: 1}, report)
	stored := f.stored(t, models.SlotBrief)
	assert.Equal(t, "fresh", stored.RuleOfLaw)
	assert.True(t, stored.Verified)

	g, _ := client.calls()
	assert.Equal(t, 1, g)
}

func TestSweeper_CountsExhausted(t *testing.T) {
	client := &scriptedLLM{generate: gen(briefJSON("x")), verify: gen(verdictFalse)}
	f := newFixture(t, client)
	f.seed(t, models.SlotDetailed, "draft", false)

	sw := NewSweeper(SweepWithCaseStore(f.store), SweepWithBriefService(f.svc), SweepWithBatch(5))
	report, err := sw.Sweep(context.Background(), models.SlotDetailed, 0)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Scanned: 1, Exhausted: 1}, report)
}

func TestSweeper_RejectsUnknownSlot(t *testing.T) {
	f := newFixture(t, &scriptedLLM{})
	sw := NewSweeper(SweepWithCaseStore(f.store), SweepWithBriefService(f.svc))

	_, err := sw.Sweep(context.Background(), models.Slot("summary"), 1)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSweeper_ScheduleValidatesSpec(t *testing.T) {
	f := newFixture(t, &scriptedLLM{})
	sw := NewSweeper(SweepWithCaseStore(f.store), SweepWithBriefService(f.svc))

	_, err := sw.Schedule(context.Background(), "not a cron spec")
	assert.ErrorIs(t, err, ErrInvalidInput)

	c, err := sw.Schedule(context.Background(), "0 0 3 * * *")
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)
	<-c.Stop().Done()
}
