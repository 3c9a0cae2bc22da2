package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"casebrief-backend/models"
	"casebrief-backend/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolve(t *testing.T, f *fixture, slot models.Slot, intent models.Intent, obs Observer) *ResolveResult {
	t.Helper()
	res, _ := f.svc.Resolve(context.Background(), ResolveRequest{
		CaseID:   f.caseC.ID,
		Slot:     slot,
		Intent:   intent,
		Observer: obs,
	})
	require.NotNil(t, res)
	return res
}

func TestResolve_ReuseVerifiedMakesNoCalls(t *testing.T) {
	client := &scriptedLLM{generate: gen(briefJSON("new")), verify: gen(verdictTrue)}
	f := newFixture(t, client)
	seeded := f.seed(t, models.SlotBrief, "X", true)

	res := resolve(t, f, models.SlotBrief, models.IntentReuseIfPresent, nil)

	assert.Equal(t, StateVerified, res.State)
	assert.Equal(t, 0, res.Attempts)
	require.NotNil(t, res.Summary)
	assert.Equal(t, seeded.Revision, res.Summary.Revision)
	assert.True(t, res.Summary.SameContent(seeded))
	g, v := client.calls()
	assert.Zero(t, g)
	assert.Zero(t, v)
	assert.Empty(t, f.rec.writes())
}

func TestResolve_FirstTimeSuccess(t *testing.T) {
	client := &scriptedLLM{generate: gen(briefJSON("A")), verify: gen(verdictTrue)}
	f := newFixture(t, client)

	res := resolve(t, f, models.SlotBrief, models.IntentReuseIfPresent, nil)

	require.NoError(t, res.Err)
	assert.Equal(t, StateVerified, res.State)
	assert.Equal(t, 1, res.Attempts)
	assert.True(t, res.Summary.Verified)

	stored := f.stored(t, models.SlotBrief)
	require.NotNil(t, stored)
	assert.Equal(t, "A", stored.RuleOfLaw)
	assert.True(t, stored.Verified)
	assert.Nil(t, f.stored(t, models.SlotDetailed))
}

func TestResolve_OneRetryThenSuccess(t *testing.T) {
	client := &scriptedLLM{
		generate: gen(briefJSON("A"), briefJSON("B")),
		verify:   gen(verdictFalse, verdictTrue),
	}
	f := newFixture(t, client)

	res := resolve(t, f, models.SlotBrief, models.IntentReuseIfPresent, nil)

	assert.Equal(t, StateVerified, res.State)
	assert.Equal(t, 2, res.Attempts)
	stored := f.stored(t, models.SlotBrief)
	assert.Equal(t, "B", stored.RuleOfLaw)
	assert.True(t, stored.Verified)
}

func TestResolve_ExhaustionAfterMaxAttempts(t *testing.T) {
	client := &scriptedLLM{
		generate: gen(briefJSON("A"), briefJSON("B"), briefJSON("C")),
		verify:   gen(verdictFalse),
	}
	f := newFixture(t, client)

	res := resolve(t, f, models.SlotBrief, models.IntentReuseIfPresent, nil)

	assert.Equal(t, StateExhausted, res.State)
	assert.NoError(t, res.Err)
	assert.Equal(t, 2, res.Attempts)
	g, v := client.calls()
	assert.Equal(t, 2, g)
	assert.Equal(t, 2, v)

	stored := f.stored(t, models.SlotBrief)
	assert.Equal(t, "B", stored.RuleOfLaw)
	assert.False(t, stored.Verified)
	require.NotNil(t, res.Verdict)
	assert.False(t, res.Verdict.Verified)
}

func TestResolve_MaxAttemptsIsConfigurable(t *testing.T) {
	client := &scriptedLLM{generate: gen(briefJSON("A")), verify: gen(verdictFalse)}
	f := newFixture(t, client, BriefWithMaxAttempts(3))

	res := resolve(t, f, models.SlotDetailed, models.IntentForceRegenerate, nil)

	assert.Equal(t, StateExhausted, res.State)
	g, _ := client.calls()
	assert.Equal(t, 3, g)
}

func TestResolve_WriteOrdering(t *testing.T) {
	client := &scriptedLLM{
		generate: gen(briefJSON("A"), briefJSON("B")),
		verify:   gen(verdictFalse, verdictTrue),
	}
	f := newFixture(t, client)

	resolve(t, f, models.SlotBrief, models.IntentReuseIfPresent, nil)

	writes := f.rec.writes()
	require.Len(t, writes, 3)
	assert.True(t, strings.HasPrefix(writes[0], "summary:A:"))
	assert.True(t, strings.HasSuffix(writes[0], "verified=false"))
	assert.True(t, strings.HasPrefix(writes[1], "summary:B:"))
	assert.True(t, strings.HasSuffix(writes[1], "verified=false"))

	revB := strings.Split(writes[1], ":")[2]
	assert.Equal(t, "verified:"+revB+":true", writes[2])
}

func TestResolve_FailClosedOnUnparseableVerdict(t *testing.T) {
	client := &scriptedLLM{
		generate: gen(briefJSON("A")),
		verify:   gen("Looks right to me!", `{"verified": "yes"}`),
	}
	f := newFixture(t, client)

	res := resolve(t, f, models.SlotBrief, models.IntentReuseIfPresent, nil)

	assert.Equal(t, StateExhausted, res.State)
	assert.False(t, f.stored(t, models.SlotBrief).Verified)
	for _, w := range f.rec.writes() {
		assert.NotContains(t, w, "verified:")
	}
}

func TestResolve_MissingDissentDefaultsToEmpty(t *testing.T) {
	client := &scriptedLLM{
		generate: gen(`Sure! {"ruleOfLaw":"R","facts":"F","issue":"I","holding":"H","reasoning":"Re"}`),
		verify:   gen(verdictTrue),
	}
	f := newFixture(t, client)

	res := resolve(t, f, models.SlotBrief, models.IntentReuseIfPresent, nil)

	require.NoError(t, res.Err)
	assert.Equal(t, "", res.Summary.Dissent)
	assert.Equal(t, "R", res.Summary.RuleOfLaw)
}

func TestResolve_FirstGenerationFailureIsHardError(t *testing.T) {
	client := &scriptedLLM{
		generate: []reply{{err: errors.New("upstream 503")}},
		verify:   gen(verdictTrue),
	}
	f := newFixture(t, client)
	seeded := f.seed(t, models.SlotBrief, "old", false)

	res, err := f.svc.Resolve(context.Background(), ResolveRequest{
		CaseID: f.caseC.ID, Slot: models.SlotBrief, Intent: models.IntentReuseIfPresent,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerationFailure)
	assert.Equal(t, StateHardError, res.State)
	g, v := client.calls()
	assert.Equal(t, 1, g)
	assert.Zero(t, v)
	assert.Equal(t, seeded.Revision, f.stored(t, models.SlotBrief).Revision)
	require.NotNil(t, res.Summary)
	assert.False(t, res.Summary.Verified)
}

func TestResolve_UnparseableFirstGenerationIsHardError(t *testing.T) {
	client := &scriptedLLM{generate: gen("I'd rather not."), verify: gen(verdictTrue)}
	f := newFixture(t, client)

	res := resolve(t, f, models.SlotBrief, models.IntentReuseIfPresent, nil)

	assert.Equal(t, StateHardError, res.State)
	assert.ErrorIs(t, res.Err, ErrGenerationFailure)
	assert.ErrorIs(t, res.Err, ErrUnparseableOutput)
	assert.Nil(t, f.stored(t, models.SlotBrief))
}

func TestResolve_RegenerationFailureConsumesAttempt(t *testing.T) {
	client := &scriptedLLM{
		generate: []reply{{text: briefJSON("A")}, {err: errors.New("timeout")}},
		verify:   gen(verdictFalse),
	}
	f := newFixture(t, client)

	res := resolve(t, f, models.SlotBrief, models.IntentReuseIfPresent, nil)

	assert.Equal(t, StateExhausted, res.State)
	assert.Equal(t, 2, res.Attempts)
	stored := f.stored(t, models.SlotBrief)
	assert.Equal(t, "A", stored.RuleOfLaw)
	assert.False(t, stored.Verified)
	assert.Equal(t, "A", res.Summary.RuleOfLaw)
}

func TestResolve_ForceRegenerateIgnoresVerified(t *testing.T) {
	client := &scriptedLLM{generate: gen(briefJSON("fresh")), verify: gen(verdictTrue)}
	f := newFixture(t, client)
	f.seed(t, models.SlotBrief, "old", true)

	res := resolve(t, f, models.SlotBrief, models.IntentForceRegenerate, nil)

	assert.Equal(t, StateVerified, res.State)
	assert.Equal(t, "fresh", f.stored(t, models.SlotBrief).RuleOfLaw)
}

func TestResolve_EmitsStoredDraftBeforeGenerating(t *testing.T) {
	client := &scriptedLLM{generate: gen(briefJSON("new")), verify: gen(verdictTrue)}
	f := newFixture(t, client)
	f.seed(t, models.SlotBrief, "stale", false)

	var events []Event
	var genCallsAtFirstDraft = -1
	res := resolve(t, f, models.SlotBrief, models.IntentReuseIfPresent, func(e Event) {
		if e.Kind == EventDraft && genCallsAtFirstDraft < 0 {
			genCallsAtFirstDraft, _ = client.calls()
		}
		events = append(events, e)
	})

	assert.Equal(t, StateVerified, res.State)
	assert.Equal(t, 0, genCallsAtFirstDraft)

	require.NotEmpty(t, events)
	var firstDraft *Event
	for i := range events {
		if events[i].Kind == EventDraft {
			firstDraft = &events[i]
			break
		}
	}
	require.NotNil(t, firstDraft)
	assert.Equal(t, "stale", firstDraft.Summary.RuleOfLaw)
	assert.False(t, firstDraft.Summary.Verified)

	last := events[len(events)-1]
	assert.Equal(t, EventFinal, last.Kind)
	assert.Equal(t, StateVerified, last.State)
	assert.True(t, last.Summary.Verified)
}

func TestResolve_StateSequence(t *testing.T) {
	client := &scriptedLLM{generate: gen(briefJSON("A")), verify: gen(verdictTrue)}
	f := newFixture(t, client)

	var states []State
	resolve(t, f, models.SlotBrief, models.IntentReuseIfPresent, func(e Event) {
		if e.Kind == EventState {
			states = append(states, e.State)
		}
	})

	assert.Equal(t, []State{StateIdle, StateLoading, StateAwaitingVerification, StateVerified}, states)
}

func TestResolve_UnknownCase(t *testing.T) {
	client := &scriptedLLM{generate: gen(briefJSON("A")), verify: gen(verdictTrue)}
	f := newFixture(t, client)

	res, err := f.svc.Resolve(context.Background(), ResolveRequest{
		CaseID: uuid.New(), Slot: models.SlotBrief, Intent: models.IntentReuseIfPresent,
	})

	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, StateHardError, res.State)
	g, _ := client.calls()
	assert.Zero(t, g)
}

func TestResolve_InvalidInput(t *testing.T) {
	client := &scriptedLLM{}
	f := newFixture(t, client)

	_, err := f.svc.Resolve(context.Background(), ResolveRequest{
		CaseID: f.caseC.ID, Slot: models.Slot("medium"), Intent: models.IntentReuseIfPresent,
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Resolve(context.Background(), ResolveRequest{
		CaseID: f.caseC.ID, Slot: models.SlotBrief, Intent: models.Intent("maybe"),
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestResolve_CancelledBeforeGeneration(t *testing.T) {
	client := &scriptedLLM{generate: gen(briefJSON("A")), verify: gen(verdictTrue)}
	f := newFixture(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := f.svc.Resolve(ctx, ResolveRequest{
		CaseID: f.caseC.ID, Slot: models.SlotBrief, Intent: models.IntentReuseIfPresent,
	})

	assert.Error(t, err)
	assert.Equal(t, StateHardError, res.State)
	assert.Empty(t, f.rec.writes())
}

func TestResolve_CancelDuringVerificationKeepsCommittedDraft(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &scriptedLLM{generate: gen(briefJSON("A")), verify: gen(verdictTrue)}
	client.onCall = func(purpose string) {
		if purpose == "verify" {
			cancel()
		}
	}
	f := newFixture(t, client)

	res, err := f.svc.Resolve(ctx, ResolveRequest{
		CaseID: f.caseC.ID, Slot: models.SlotBrief, Intent: models.IntentReuseIfPresent,
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateHardError, res.State)
	stored := f.stored(t, models.SlotBrief)
	require.NotNil(t, stored)
	assert.Equal(t, "A", stored.RuleOfLaw)
	assert.False(t, stored.Verified)
}

func TestResolve_SerializesSameCaseSlot(t *testing.T) {
	client := &scriptedLLM{generate: gen(briefJSON("A")), verify: gen(verdictTrue)}
	f := newFixture(t, client)

	var wg sync.WaitGroup
	results := make([]*ResolveResult, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = f.svc.Resolve(context.Background(), ResolveRequest{
				CaseID: f.caseC.ID, Slot: models.SlotBrief, Intent: models.IntentReuseIfPresent,
			})
		}(i)
	}
	wg.Wait()

	g, v := client.calls()
	assert.Equal(t, 1, g)
	assert.Equal(t, 1, v)
	for _, r := range results {
		assert.Equal(t, StateVerified, r.State)
		assert.Equal(t, "A", r.Summary.RuleOfLaw)
	}
}

func TestResolve_SlotsAreIndependent(t *testing.T) {
	client := &scriptedLLM{generate: gen(briefJSON("long")), verify: gen(verdictTrue)}
	f := newFixture(t, client)
	brief := f.seed(t, models.SlotBrief, "short", true)

	res := resolve(t, f, models.SlotDetailed, models.IntentReuseIfPresent, nil)

	assert.Equal(t, StateVerified, res.State)
	assert.Equal(t, brief.Revision, f.stored(t, models.SlotBrief).Revision)
	assert.True(t, f.stored(t, models.SlotBrief).Verified)
	assert.Equal(t, "long", f.stored(t, models.SlotDetailed).RuleOfLaw)
}

func TestResolve_AppliesCorrectionsWhenEnabled(t *testing.T) {
	client := &scriptedLLM{
		generate: gen(briefJSON("A")),
		verify:   gen(`{"verified": true, "corrections": {"citation": "347 U.S. 483 (1954)", "title": "Brown v. Board of Education"}}`),
	}
	f := newFixture(t, client, BriefWithCorrections(true))

	resolve(t, f, models.SlotBrief, models.IntentReuseIfPresent, nil)

	c, err := f.store.GetCase(context.Background(), f.caseC.ID)
	require.NoError(t, err)
	assert.Equal(t, "347 U.S. 483 (1954)", c.Citation)
	assert.Equal(t, "1954", c.DecisionDate)
}

func TestResolve_IgnoresCorrectionsByDefault(t *testing.T) {
	client := &scriptedLLM{
		generate: gen(briefJSON("A")),
		verify:   gen(`{"verified": true, "corrections": {"citation": "wrong"}}`),
	}
	f := newFixture(t, client)

	res := resolve(t, f, models.SlotBrief, models.IntentReuseIfPresent, nil)

	require.NotNil(t, res.Verdict.Corrections)
	c, err := f.store.GetCase(context.Background(), f.caseC.ID)
	require.NoError(t, err)
	assert.Equal(t, "347 U.S. 483", c.Citation)
}

func TestGenerate_Standalone(t *testing.T) {
	client := &scriptedLLM{generate: gen(briefJSON("A"))}
	f := newFixture(t, client)

	_, err := f.svc.Generate(context.Background(), GenerateRequest{Title: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	s, err := f.svc.Generate(context.Background(), GenerateRequest{Title: "Roe v. Wade", Detailed: true})
	require.NoError(t, err)
	assert.Equal(t, "A", s.RuleOfLaw)
	assert.False(t, s.Verified)
	assert.Empty(t, f.rec.writes())
	assert.Equal(t, DefaultCompletionSettings().DetailedMaxTokens, client.params[0].MaxTokens)
}

func TestGenerate_PersistsWithDocID(t *testing.T) {
	client := &scriptedLLM{generate: gen(briefJSON("A"))}
	f := newFixture(t, client)
	f.seed(t, models.SlotBrief, "old", true)

	s, err := f.svc.Generate(context.Background(), GenerateRequest{
		Title: "Brown v. Board of Education", DocID: f.caseC.ID.String(),
	})
	require.NoError(t, err)
	assert.False(t, s.Verified)

	stored := f.stored(t, models.SlotBrief)
	assert.Equal(t, "A", stored.RuleOfLaw)
	assert.False(t, stored.Verified)

	_, err = f.svc.Generate(context.Background(), GenerateRequest{Title: "x", DocID: "not-a-uuid"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.Generate(context.Background(), GenerateRequest{Title: "x", DocID: uuid.NewString()})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestVerify_Standalone(t *testing.T) {
	client := &scriptedLLM{verify: gen("no idea", verdictTrue)}
	f := newFixture(t, client)
	summary := models.NewBriefSummary(map[string]string{"holding": "Separate is inherently unequal."})

	verdict, err := f.svc.Verify(context.Background(), VerifyRequest{Summary: summary, CaseTitle: "Brown"})
	assert.ErrorIs(t, err, ErrVerificationFailure)
	assert.ErrorIs(t, err, ErrUnparseableOutput)
	assert.False(t, verdict.Verified)
	assert.NotEmpty(t, verdict.Explanation)

	verdict, err = f.svc.Verify(context.Background(), VerifyRequest{Summary: summary, CaseTitle: "Brown"})
	require.NoError(t, err)
	assert.True(t, verdict.Verified)

	_, err = f.svc.Verify(context.Background(), VerifyRequest{Summary: summary})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, f.rec.writes())
}

func TestResolve_ArrayVerdictFailsClosed(t *testing.T) {
	client := &scriptedLLM{
		generate: gen(briefJSON("A"), briefJSON("B")),
		verify:   gen(`[{"verified": true}]`),
	}
	f := newFixture(t, client)

	res := resolve(t, f, models.SlotBrief, models.IntentReuseIfPresent, nil)

	assert.Equal(t, StateExhausted, res.State)
	require.NotNil(t, res.Verdict)
	assert.False(t, res.Verdict.Verified)
	stored := f.stored(t, models.SlotBrief)
	require.NotNil(t, stored)
	assert.False(t, stored.Verified)
	for _, w := range f.rec.writes() {
		assert.NotContains(t, w, "verified:")
	}
}

func TestBriefVerifier_RejectsNonObjectVerdicts(t *testing.T) {
	for _, raw := range []string{`[{"verified": true}]`, `true`, `"verified"`} {
		client := &scriptedLLM{verify: gen(raw)}
		v := NewBriefVerifier(client, DefaultCompletionSettings())

		verdict, err := v.Verify(context.Background(),
			models.NewBriefSummary(map[string]string{"holding": "h"}),
			models.CaseMeta{Title: "Brown v. Board of Education"})

		assert.ErrorIs(t, err, ErrVerificationFailure, raw)
		assert.ErrorIs(t, err, ErrUnparseableOutput, raw)
		assert.False(t, verdict.Verified, raw)
	}
}

func TestResolve_ForceRegenerateDoesNotDraftVerifiedSummary(t *testing.T) {
	client := &scriptedLLM{generate: gen(briefJSON("fresh")), verify: gen(verdictTrue)}
	f := newFixture(t, client)
	f.seed(t, models.SlotBrief, "old", true)

	var drafts []Event
	res := resolve(t, f, models.SlotBrief, models.IntentForceRegenerate, func(e Event) {
		if e.Kind == EventDraft {
			drafts = append(drafts, e)
		}
	})

	assert.Equal(t, StateVerified, res.State)
	require.Len(t, drafts, 1)
	assert.Equal(t, "fresh", drafts[0].Summary.RuleOfLaw)
	for _, d := range drafts {
		assert.False(t, d.Summary.Verified)
	}
}
