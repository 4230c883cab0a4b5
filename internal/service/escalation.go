package service

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/timmy/grievo/internal/domain"
	"github.com/timmy/grievo/internal/logger"
)

const (
	DefaultEscalationSchedule  = "0 * * * *"
	DefaultEscalationThreshold = 48 * time.Hour
)

// Locker provides a best-effort cross-process mutex.
type Locker interface {
	// TryLock acquires key for ttl. ok is false when another holder has it.
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// ComplaintEscalator escalates a single complaint, dating the change at.
type ComplaintEscalator interface {
	Escalate(ctx context.Context, id string, at time.Time) (bool, error)
}

// StaleComplaintFinder lists complaints waiting past a cutoff.
type StaleComplaintFinder interface {
	ListStaleIDs(ctx context.Context, statuses []domain.Status, cutoff time.Time) ([]string, error)
}

// EscalationConfig configures the sweep.
type EscalationConfig struct {
	Schedule  string
	Threshold time.Duration
	LockKey   string
	LockTTL   time.Duration
}

// SweepResult summarizes one sweep run.
type SweepResult struct {
	SweepID    string `json:"sweepId"`
	Candidates int    `json:"candidates"`
	Escalated  int    `json:"escalated"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	LockHeld   bool   `json:"lockHeld,omitempty"`
}

// EscalationScheduler periodically escalates complaints left pending past the threshold.
// Runs carry no state between them; overlapping runs are allowed.
type EscalationScheduler struct {
	finder    StaleComplaintFinder
	escalator ComplaintEscalator
	locker    Locker
	cfg       EscalationConfig
	now       func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// NewEscalationScheduler creates a scheduler. locker may be nil for single-instance
// deployments; now may be nil to use time.Now.
func NewEscalationScheduler(finder StaleComplaintFinder, escalator ComplaintEscalator, locker Locker, cfg EscalationConfig, now func() time.Time) *EscalationScheduler {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultEscalationSchedule
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultEscalationThreshold
	}
	if cfg.LockKey == "" {
		cfg.LockKey = "grievo:escalation-sweep"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &EscalationScheduler{
		finder:    finder,
		escalator: escalator,
		locker:    locker,
		cfg:       cfg,
		now:       now,
	}
}

// Start registers the sweep on its schedule and begins running it in the background.
func (s *EscalationScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return fmt.Errorf("escalation scheduler already started")
	}

	c := cron.New()
	ctx = logger.SetComponent(ctx, "escalation")
	if _, err := c.AddFunc(s.cfg.Schedule, func() { s.runScheduled(ctx) }); err != nil {
		return fmt.Errorf("invalid escalation schedule %q: %w", s.cfg.Schedule, err)
	}
	c.Start()
	s.cron = c

	logger.CtxInfo(ctx, "Escalation sweep scheduled (%s, threshold %s)", s.cfg.Schedule, s.cfg.Threshold)
	return nil
}

// Stop unschedules the sweep and waits for in-flight runs until ctx is done.
func (s *EscalationScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *EscalationScheduler) runScheduled(ctx context.Context) {
	if _, err := s.Sweep(ctx, s.now()); err != nil {
		logger.FromContext(ctx).WithError(err).Error("Escalation sweep aborted")
	}
}

// Sweep escalates every complaint in Submitted or InProgress created before
// now minus the threshold. Each complaint is written on its own, so one failure
// does not stop the rest. Panics are recovered into the returned error.
func (s *EscalationScheduler) Sweep(ctx context.Context, now time.Time) (result *SweepResult, err error) {
	result = &SweepResult{SweepID: uuid.New().String()}
	ctx = logger.SetSweepID(ctx, result.SweepID)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("escalation sweep panicked: %v", r)
			logger.FromContext(ctx).WithField("stack", string(debug.Stack())).Error(err.Error())
		}
	}()

	if s.locker != nil {
		release, ok, lockErr := s.locker.TryLock(ctx, s.cfg.LockKey, s.cfg.LockTTL)
		if lockErr != nil {
			return result, fmt.Errorf("failed to acquire sweep lock: %w", lockErr)
		}
		if !ok {
			result.LockHeld = true
			logger.CtxInfo(ctx, "Escalation sweep skipped, lock held by another instance")
			return result, nil
		}
		defer release()
	}

	cutoff := now.UTC().Add(-s.cfg.Threshold)
	ids, err := s.finder.ListStaleIDs(ctx, domain.PendingStatuses, cutoff)
	if err != nil {
		return result, fmt.Errorf("failed to list stale complaints: %w", err)
	}
	result.Candidates = len(ids)

	for _, id := range ids {
		applied, itemErr := s.escalateOne(ctx, id, now)
		switch {
		case itemErr != nil:
			result.Failed++
			logger.FromContext(logger.SetComplaintID(ctx, id)).WithError(itemErr).Warn("Failed to escalate complaint")
		case applied:
			result.Escalated++
		default:
			result.Skipped++
		}
	}

	entry := logger.With(logger.Fields{
		"candidates": result.Candidates,
		"failed":     result.Failed,
	}).WithCount(result.Escalated).WithDuration(start)
	if result.Escalated > 0 || result.Failed > 0 {
		entry.Info(ctx, "Escalation sweep finished")
	} else {
		entry.Debug(ctx, "Escalation sweep finished")
	}
	return result, nil
}

func (s *EscalationScheduler) escalateOne(ctx context.Context, id string, at time.Time) (applied bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic escalating complaint: %v", r)
		}
	}()
	return s.escalator.Escalate(ctx, id, at)
}
