package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"casebrief-backend/llm"
	"casebrief-backend/models"
	"casebrief-backend/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type reply struct {
	text string
	err  error
}

// scriptedLLM answers generation and verification prompts from separate
// scripts. The last reply of a script repeats once the script runs out.
type scriptedLLM struct {
	mu          sync.Mutex
	generate    []reply
	verify      []reply
	genCalls    int
	verifyCalls int
	params      []llm.Params
	onCall      func(purpose string)
}

func (s *scriptedLLM) Complete(ctx context.Context, prompt string, params llm.Params) (string, error) {
	s.mu.Lock()
	purpose := "generate"
	script := s.generate
	idx := s.genCalls
	if strings.Contains(prompt, `"verified"`) {
		purpose = "verify"
		script = s.verify
		idx = s.verifyCalls
		s.verifyCalls++
	} else {
		s.genCalls++
	}
	s.params = append(s.params, params)
	hook := s.onCall
	s.mu.Unlock()

	if hook != nil {
		hook(purpose)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(script) == 0 {
		return "", fmt.Errorf("no scripted %s reply", purpose)
	}
	if idx >= len(script) {
		idx = len(script) - 1
	}
	return script[idx].text, script[idx].err
}

func (s *scriptedLLM) calls() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.genCalls, s.verifyCalls
}

func briefJSON(rule string) string {
	return fmt.Sprintf(`{"ruleOfLaw":%q,"facts":"f","issue":"i","holding":"h","reasoning":"r","dissent":"d"}`, rule)
}

const (
	verdictTrue  = `{"verified": true, "explanation": "Accurate."}`
	verdictFalse = `{"verified": false, "explanation": "Describes a different case."}`
)

func gen(texts ...string) []reply {
	out := make([]reply, len(texts))
	for i, t := range texts {
		out[i] = reply{text: t}
	}
	return out
}

// recordingStore logs every write the orchestrator makes
type recordingStore struct {
	repository.CaseStore
	mu  sync.Mutex
	ops []string
}

func (r *recordingStore) PatchSummary(ctx context.Context, id uuid.UUID, slot models.Slot, s models.BriefSummary) (models.BriefSummary, error) {
	stored, err := r.CaseStore.PatchSummary(ctx, id, slot, s)
	if err == nil {
		r.log(fmt.Sprintf("summary:%s:%s:verified=%t", stored.RuleOfLaw, stored.Revision, stored.Verified))
	}
	return stored, err
}

func (r *recordingStore) PatchVerified(ctx context.Context, id uuid.UUID, slot models.Slot, rev string, v bool) error {
	err := r.CaseStore.PatchVerified(ctx, id, slot, rev, v)
	if err == nil {
		r.log(fmt.Sprintf("verified:%s:%t", rev, v))
	}
	return err
}

func (r *recordingStore) log(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

func (r *recordingStore) writes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

type fixture struct {
	store *repository.BadgerStore
	rec   *recordingStore
	llm   *scriptedLLM
	svc   *BriefService
	caseC *models.CaseRecord
}

func newFixture(t *testing.T, client *scriptedLLM, opts ...BriefServiceOption) *fixture {
	t.Helper()
	f := newClientFixture(t, client, 5*time.Second, opts...)
	f.llm = client
	return f
}

// newClientFixture wires any completion client with the given per-call timeout
func newClientFixture(t *testing.T, client llm.CompletionClient, timeout time.Duration, opts ...BriefServiceOption) *fixture {
	t.Helper()
	store, err := repository.OpenBadger("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	c, err := store.CreateCase(context.Background(), models.CaseFields{
		Title:        "Brown v. Board of Education",
		DecisionDate: "1954",
		Citation:     "347 U.S. 483",
		Jurisdiction: "US Supreme Court",
	})
	require.NoError(t, err)

	rec := &recordingStore{CaseStore: store}
	settings := DefaultCompletionSettings()
	settings.Timeout = timeout

	base := []BriefServiceOption{
		BriefWithCaseStore(rec),
		BriefWithGenerator(NewBriefGenerator(client, settings)),
		BriefWithVerifier(NewBriefVerifier(client, settings)),
	}
	svc := NewBriefService(append(base, opts...)...)
	return &fixture{store: store, rec: rec, svc: svc, caseC: c}
}

func (f *fixture) stored(t *testing.T, slot models.Slot) *models.BriefSummary {
	t.Helper()
	c, err := f.store.GetCase(context.Background(), f.caseC.ID)
	require.NoError(t, err)
	return c.Summary(slot)
}

func (f *fixture) seed(t *testing.T, slot models.Slot, rule string, verified bool) models.BriefSummary {
	t.Helper()
	ctx := context.Background()
	stored, err := f.store.PatchSummary(ctx, f.caseC.ID, slot, models.NewBriefSummary(map[string]string{"ruleOfLaw": rule}))
	require.NoError(t, err)
	if verified {
		require.NoError(t, f.store.PatchVerified(ctx, f.caseC.ID, slot, stored.Revision, true))
		stored = stored.WithVerified(true)
	}
	return stored
}
