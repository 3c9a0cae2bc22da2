package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"casebrief-backend/models"
	"casebrief-backend/repository"

	rcron "github.com/robfig/cron/v3"
)

// Sweeper re-resolves stored summaries that never reached verified
type Sweeper struct {
	cases  repository.CaseStore
	briefs *BriefService
	batch  int

	mu      sync.Mutex
	running bool
}

// SweeperOption is a functional option for Sweeper
type SweeperOption func(*Sweeper)

// SweepWithCaseStore sets the case gateway
func SweepWithCaseStore(store repository.CaseStore) SweeperOption {
	return func(s *Sweeper) {
		s.cases = store
	}
}

// SweepWithBriefService sets the orchestrator
func SweepWithBriefService(briefs *BriefService) SweeperOption {
	return func(s *Sweeper) {
		s.briefs = briefs
	}
}

// SweepWithBatch caps how many cases one sweep touches per slot
func SweepWithBatch(n int) SweeperOption {
	return func(s *Sweeper) {
		s.batch = n
	}
}

// NewSweeper creates a new sweeper
func NewSweeper(opts ...SweeperOption) *Sweeper {
	s := &Sweeper{batch: 20}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SweepReport counts outcomes of one sweep
type SweepReport struct {
	Scanned   int
	Verified  int
	Exhausted int
	Failed    int
}

// Sweep resolves up to batch cases whose slot holds an unverified summary.
// A non-positive batch uses the configured default.
func (s *Sweeper) Sweep(ctx context.Context, slot models.Slot, batch int) (SweepReport, error) {
	var report SweepReport
	if s.cases == nil || s.briefs == nil {
		return report, errors.New("sweeper not configured")
	}
	if _, err := models.ParseSlot(string(slot)); err != nil {
		return report, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if batch <= 0 {
		batch = s.batch
	}

	cases, err := s.cases.ListUnverified(ctx, slot, batch)
	if err != nil {
		return report, err
	}

	for _, c := range cases {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Scanned++

		res, err := s.briefs.Resolve(ctx, ResolveRequest{
			CaseID: c.ID,
			Slot:   slot,
			Intent: models.IntentReuseIfPresent,
		})
		switch res.State {
		case StateVerified:
			report.Verified++
		case StateExhausted:
			report.Exhausted++
		default:
			report.Failed++
			slog.Warn("Sweep could not resolve case", "case_id", c.ID, "slot", slot, "error", err)
		}
	}

	slog.Info("Sweep finished", "slot", slot, "scanned", report.Scanned,
		"verified", report.Verified, "exhausted", report.Exhausted, "failed", report.Failed)
	return report, nil
}

// SweepAll sweeps both slots. Overlapping runs are skipped.
func (s *Sweeper) SweepAll(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		slog.Info("Sweep already running, skipping")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	for _, slot := range []models.Slot{models.SlotBrief, models.SlotDetailed} {
		if _, err := s.Sweep(ctx, slot, 0); err != nil {
			slog.Error("Sweep failed", "slot", slot, "error", err)
		}
	}
}

// Schedule registers SweepAll on a cron spec with a seconds field. The
// returned cron is started; stop it on shutdown.
func (s *Sweeper) Schedule(ctx context.Context, spec string) (*rcron.Cron, error) {
	c := rcron.New(rcron.WithSeconds())
	if _, err := c.AddFunc(spec, func() { s.SweepAll(ctx) }); err != nil {
		return nil, fmt.Errorf("%w: sweep schedule %q: %w", ErrInvalidInput, spec, err)
	}
	c.Start()
	return c, nil
}
