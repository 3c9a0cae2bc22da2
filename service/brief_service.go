package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"casebrief-backend/models"
	"casebrief-backend/observability"
	"casebrief-backend/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// State is a brief orchestrator state
type State string

const (
	StateIdle                 State = "idle"
	StateLoading              State = "loading"
	StateAwaitingVerification State = "awaiting_verification"
	StateVerified             State = "verified"
	StateExhausted            State = "exhausted"
	StateHardError            State = "hard_error"
)

// Terminal reports whether no further transitions follow s
func (s State) Terminal() bool {
	return s == StateVerified || s == StateExhausted || s == StateHardError
}

// EventKind classifies orchestrator events
type EventKind string

const (
	// EventDraft carries an unverified summary that may be displayed now
	EventDraft EventKind = "draft"
	EventState EventKind = "state"
	EventFinal EventKind = "final"
)

// Event is emitted to an Observer as a resolution progresses
type Event struct {
	Kind    EventKind
	State   State
	Attempt int
	Summary *models.BriefSummary
	Err     error
}

// Observer receives events synchronously, in order, on the resolving goroutine
type Observer func(Event)

// BriefService drives generate -> persist -> verify -> regenerate for case slots
type BriefService struct {
	cases            repository.CaseStore
	generator        *BriefGenerator
	verifier         *BriefVerifier
	locks            *keyedLock
	maxAttempts      int
	writeTimeout     time.Duration
	applyCorrections bool
}

// BriefServiceOption is a functional option for BriefService
type BriefServiceOption func(*BriefService)

// BriefWithCaseStore sets the persistence gateway
func BriefWithCaseStore(store repository.CaseStore) BriefServiceOption {
	return func(s *BriefService) {
		s.cases = store
	}
}

// BriefWithGenerator sets the brief generator
func BriefWithGenerator(g *BriefGenerator) BriefServiceOption {
	return func(s *BriefService) {
		s.generator = g
	}
}

// BriefWithVerifier sets the brief verifier
func BriefWithVerifier(v *BriefVerifier) BriefServiceOption {
	return func(s *BriefService) {
		s.verifier = v
	}
}

// BriefWithMaxAttempts sets the generation budget per resolution
func BriefWithMaxAttempts(n int) BriefServiceOption {
	return func(s *BriefService) {
		s.maxAttempts = n
	}
}

// BriefWithWriteTimeout bounds each gateway write
func BriefWithWriteTimeout(d time.Duration) BriefServiceOption {
	return func(s *BriefService) {
		s.writeTimeout = d
	}
}

// BriefWithCorrections makes verified resolutions apply the verifier's metadata corrections
func BriefWithCorrections(apply bool) BriefServiceOption {
	return func(s *BriefService) {
		s.applyCorrections = apply
	}
}

// NewBriefService creates a new brief service
func NewBriefService(opts ...BriefServiceOption) *BriefService {
	s := &BriefService{
		locks:        newKeyedLock(),
		maxAttempts:  2,
		writeTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *BriefService) ready() error {
	if s.cases == nil {
		return errors.New("case store not set")
	}
	if s.generator == nil {
		return errors.New("brief generator not set")
	}
	if s.verifier == nil {
		return errors.New("brief verifier not set")
	}
	if s.maxAttempts < 1 {
		return fmt.Errorf("%w: maxAttempts must be at least 1", ErrInvalidInput)
	}
	return nil
}

// ResolveRequest asks for a verified summary in one case slot
type ResolveRequest struct {
	CaseID   uuid.UUID
	Slot     models.Slot
	Intent   models.Intent
	Observer Observer
}

// ResolveResult is the terminal outcome of a resolution
type ResolveResult struct {
	State State
	// Summary is the verified summary, the last unverified one, or for a hard
	// error the best-effort value already stored, if any.
	Summary  *models.BriefSummary
	Attempts int
	Verdict  *models.VerificationVerdict
	Err      error
}

// resolveRun is the per-invocation retry session
type resolveRun struct {
	req     ResolveRequest
	attempt int
	max     int
	verdict *models.VerificationVerdict
	latest  *models.BriefSummary
}

func (r *resolveRun) emit(e Event) {
	if r.req.Observer != nil {
		r.req.Observer(e)
	}
}

func (r *resolveRun) transition(state State) {
	r.emit(Event{Kind: EventState, State: state, Attempt: r.attempt})
}

func (r *resolveRun) finish(state State, err error) *ResolveResult {
	res := &ResolveResult{
		State:    state,
		Summary:  r.latest,
		Attempts: r.attempt,
		Verdict:  r.verdict,
		Err:      err,
	}
	r.transition(state)
	r.emit(Event{Kind: EventFinal, State: state, Attempt: r.attempt, Summary: r.latest, Err: err})
	return res
}

// Resolve runs the orchestrator for one (case, slot). Runs for the same key
// are serialized; a second caller waits and then sees the first caller's result
// in the store. The returned error is non-nil exactly when the state is HardError.
func (s *BriefService) Resolve(ctx context.Context, req ResolveRequest) (*ResolveResult, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "BriefService.Resolve")
	defer span.End()
	span.SetAttributes(
		attribute.String("case_id", req.CaseID.String()),
		attribute.String("slot", string(req.Slot)),
		attribute.String("intent", string(req.Intent)),
	)

	run := &resolveRun{req: req, max: s.maxAttempts}
	run.transition(StateIdle)

	res := s.resolve(ctx, run)

	observability.RecordResolve(string(req.Slot), string(res.State), res.Attempts, time.Since(start))
	slog.Info("Brief resolution finished",
		"case_id", req.CaseID, "slot", req.Slot, "state", res.State, "attempts", res.Attempts)
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, string(res.State))
	}
	return res, res.Err
}

func (s *BriefService) resolve(ctx context.Context, run *resolveRun) *ResolveResult {
	req := run.req
	if err := s.ready(); err != nil {
		return run.finish(StateHardError, err)
	}
	if _, err := models.ParseSlot(string(req.Slot)); err != nil {
		return run.finish(StateHardError, fmt.Errorf("%w: %w", ErrInvalidInput, err))
	}
	if req.Intent != models.IntentReuseIfPresent && req.Intent != models.IntentForceRegenerate {
		return run.finish(StateHardError, fmt.Errorf("%w: unknown intent %q", ErrInvalidInput, req.Intent))
	}

	unlock, err := s.locks.Lock(ctx, lockKey(req.CaseID, req.Slot))
	if err != nil {
		return run.finish(StateHardError, err)
	}
	defer unlock()

	run.transition(StateLoading)

	rec, err := s.cases.GetCase(ctx, req.CaseID)
	if err != nil {
		return run.finish(StateHardError, err)
	}

	if stored := rec.Summary(req.Slot); stored != nil {
		if stored.Verified && req.Intent == models.IntentReuseIfPresent {
			run.latest = stored
			return run.finish(StateVerified, nil)
		}
		run.latest = stored
		if !stored.Verified {
			run.emit(Event{Kind: EventDraft, State: StateLoading, Summary: stored})
		}
	}

	meta := rec.Meta()
	for {
		if err := ctx.Err(); err != nil {
			return run.finish(StateHardError, err)
		}

		summary, err := s.generator.Generate(ctx, meta, req.Slot)
		run.attempt++
		if err != nil {
			if ctx.Err() != nil {
				return run.finish(StateHardError, ctx.Err())
			}
			if run.attempt == 1 {
				return run.finish(StateHardError, err)
			}
			slog.Warn("Regeneration failed", "case_id", req.CaseID, "slot", req.Slot, "attempt", run.attempt, "error", err)
			if run.attempt >= run.max {
				return run.finish(StateExhausted, nil)
			}
			continue
		}

		stored, err := s.patchSummary(ctx, req.CaseID, req.Slot, summary)
		if err != nil {
			return run.finish(StateHardError, err)
		}
		run.latest = &stored
		run.verdict = nil
		run.emit(Event{Kind: EventDraft, State: StateAwaitingVerification, Attempt: run.attempt, Summary: &stored})
		run.transition(StateAwaitingVerification)

		if err := ctx.Err(); err != nil {
			return run.finish(StateHardError, err)
		}

		verdict, err := s.verifier.Verify(ctx, stored, meta)
		if err != nil && ctx.Err() != nil {
			return run.finish(StateHardError, ctx.Err())
		}
		run.verdict = &verdict

		if err == nil && verdict.Verified {
			if err := s.patchVerified(ctx, req.CaseID, req.Slot, stored.Revision); err != nil {
				return run.finish(StateHardError, err)
			}
			verified := stored.WithVerified(true)
			run.latest = &verified
			s.maybeApplyCorrections(ctx, req.CaseID, meta, verdict.Corrections)
			return run.finish(StateVerified, nil)
		}

		if err != nil {
			slog.Warn("Verification failed", "case_id", req.CaseID, "slot", req.Slot, "attempt", run.attempt, "error", err)
		}
		if run.attempt >= run.max {
			return run.finish(StateExhausted, nil)
		}
		run.transition(StateLoading)
	}
}

func lockKey(caseID uuid.UUID, slot models.Slot) string {
	return caseID.String() + "/" + string(slot)
}

// writeContext detaches a write from caller cancellation so a started write
// always completes or times out on its own
func (s *BriefService) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
}

func (s *BriefService) patchSummary(ctx context.Context, id uuid.UUID, slot models.Slot, summary models.BriefSummary) (models.BriefSummary, error) {
	wctx, cancel := s.writeContext(ctx)
	defer cancel()
	return s.cases.PatchSummary(wctx, id, slot, summary)
}

func (s *BriefService) patchVerified(ctx context.Context, id uuid.UUID, slot models.Slot, revision string) error {
	wctx, cancel := s.writeContext(ctx)
	defer cancel()
	return s.cases.PatchVerified(wctx, id, slot, revision, true)
}

// maybeApplyCorrections patches metadata the verifier flagged. Failures are logged only.
func (s *BriefService) maybeApplyCorrections(ctx context.Context, id uuid.UUID, meta models.CaseMeta, c *models.Corrections) {
	if !s.applyCorrections || c == nil || c.Empty() {
		return
	}

	patches := []struct {
		field   models.MetadataField
		value   string
		current string
	}{
		{models.FieldTitle, c.Title, meta.Title},
		{models.FieldCitation, c.Citation, meta.Citation},
		{models.FieldDecisionDate, c.Date, meta.DecisionDate},
	}

	for _, p := range patches {
		if p.value == "" || p.value == p.current {
			continue
		}
		wctx, cancel := s.writeContext(ctx)
		err := s.cases.PatchMetadataField(wctx, id, p.field, p.value)
		cancel()
		if err != nil {
			slog.Warn("Failed to apply metadata correction", "case_id", id, "field", p.field, "error", err)
			continue
		}
		slog.Info("Applied metadata correction", "case_id", id, "field", p.field)
	}
}

// GenerateRequest is the standalone generate contract. When DocID is set the
// result is also stored, unverified, in the matching slot.
type GenerateRequest struct {
	Title    string
	Date     string
	Citation string
	Detailed bool
	DocID    string
}

// Generate produces one unverified summary without running verification
func (s *BriefService) Generate(ctx context.Context, req GenerateRequest) (models.BriefSummary, error) {
	if s.generator == nil {
		return models.BriefSummary{}, errors.New("brief generator not set")
	}
	if strings.TrimSpace(req.Title) == "" {
		return models.BriefSummary{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}

	slot := models.SlotBrief
	if req.Detailed {
		slot = models.SlotDetailed
	}
	meta := models.CaseMeta{Title: req.Title, DecisionDate: req.Date, Citation: req.Citation}

	if req.DocID == "" {
		return s.generator.Generate(ctx, meta, slot)
	}

	caseID, err := uuid.Parse(req.DocID)
	if err != nil {
		return models.BriefSummary{}, fmt.Errorf("%w: docId: %w", ErrInvalidInput, err)
	}
	if s.cases == nil {
		return models.BriefSummary{}, errors.New("case store not set")
	}

	unlock, err := s.locks.Lock(ctx, lockKey(caseID, slot))
	if err != nil {
		return models.BriefSummary{}, err
	}
	defer unlock()

	rec, err := s.cases.GetCase(ctx, caseID)
	if err != nil {
		return models.BriefSummary{}, err
	}
	if rec.Jurisdiction != "" {
		meta.Jurisdiction = rec.Jurisdiction
	}

	summary, err := s.generator.Generate(ctx, meta, slot)
	if err != nil {
		return models.BriefSummary{}, err
	}
	return s.patchSummary(ctx, caseID, slot, summary)
}

// VerifyRequest is the standalone verify contract
type VerifyRequest struct {
	Summary      models.BriefSummary
	CaseTitle    string
	DecisionDate string
	Citation     string
	Jurisdiction string
}

// Verify judges a caller-supplied summary. Nothing is persisted.
func (s *BriefService) Verify(ctx context.Context, req VerifyRequest) (models.VerificationVerdict, error) {
	if s.verifier == nil {
		return unverified("verifier not configured"), errors.New("brief verifier not set")
	}
	if strings.TrimSpace(req.CaseTitle) == "" {
		return unverified("case title is required"), fmt.Errorf("%w: caseTitle is required", ErrInvalidInput)
	}
	return s.verifier.Verify(ctx, req.Summary, models.CaseMeta{
		Title:        req.CaseTitle,
		DecisionDate: req.DecisionDate,
		Citation:     req.Citation,
		Jurisdiction: req.Jurisdiction,
	})
}
