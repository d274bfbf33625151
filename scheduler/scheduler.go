// Package scheduler runs the daily claim sweep: once the local hour in the
// configured zone has passed the threshold, it invokes the claim tool for
// every opted-in user who has not yet been attempted today, records the
// outcome durably, and notifies the user best-effort.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	globalconfig "maimaibot/config"
	"maimaibot/localtime"
	"maimaibot/mcp"
	"maimaibot/storage"
)

// Invoker is the dispatch facade surface the scheduler calls through.
type Invoker interface {
	Invoke(ctx context.Context, userID, tool string, args map[string]any) (*mcp.Result, error)
}

// UserStore is the credential store surface the sweep needs.
type UserStore interface {
	Get(userID string) (*storage.UserCredential, error)
	All() (map[string]*storage.UserCredential, error)
	Upsert(userID string, patch storage.CredentialPatch) error
}

// Notifier delivers a chat message to a user. Failures are logged and never
// abort the sweep; dropping a notification is an accepted outcome.
type Notifier interface {
	Send(ctx context.Context, userID, text string) error
}

type Config struct {
	ClaimTool     string
	ThresholdHour int
	Timezone      string
	SweepSpec     string // cron spec, e.g. "@every 15m"
}

type Scheduler struct {
	cfg      Config
	invoker  Invoker
	store    UserStore
	notifier Notifier
	clock    localtime.Provider

	cron *cron.Cron

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func New(cfg Config, invoker Invoker, store UserStore, notifier Notifier, clock localtime.Provider) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		invoker:  invoker,
		store:    store,
		notifier: notifier,
		clock:    clock,
		inFlight: make(map[string]struct{}),
	}
}

// Start launches the recurring sweep and runs one sweep immediately, so a
// process that was down at the threshold hour catches up on boot.
func (s *Scheduler) Start() error {
	s.cron = cron.New()

	_, err := s.cron.AddFunc(s.cfg.SweepSpec, func() {
		if err := s.RunSweep(context.Background()); err != nil {
			log.Printf("claim sweep failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep spec %q: %w", s.cfg.SweepSpec, err)
	}

	s.cron.Start()

	go func() {
		if err := s.RunSweep(context.Background()); err != nil {
			log.Printf("startup claim sweep failed: %v", err)
		}
	}()

	return nil
}

// Stop halts the recurring trigger. Sweeps already in flight run to
// completion.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// RunSweep performs one evaluation pass over all stored users. It is safe
// to call concurrently with itself: the in-flight set guarantees at most
// one claim invocation per user at a time, and the per-user date check
// keeps a user at one attempt per local calendar day.
func (s *Scheduler) RunSweep(ctx context.Context) error {
	runID := uuid.NewString()[:8]

	today, err := s.clock.Date(s.cfg.Timezone)
	if err != nil {
		return fmt.Errorf("sweep %s: %w", runID, err)
	}
	hour, err := s.clock.Hour(s.cfg.Timezone)
	if err != nil {
		return fmt.Errorf("sweep %s: %w", runID, err)
	}

	if hour < s.cfg.ThresholdHour {
		switch {
		case globalconfig.DebugLog != nil:
			globalconfig.DebugLog.Printf("[Sweep %s] Local hour %d below threshold %d, skipping",
				runID, hour, s.cfg.ThresholdHour)
		}
		return nil
	}

	users, err := s.store.All()
	if err != nil {
		return fmt.Errorf("sweep %s: failed to list users: %w", runID, err)
	}

	var wg sync.WaitGroup
	for userID, cred := range users {
		if !cred.AutoClaim || cred.Token == "" || cred.LastClaimDate == today {
			continue
		}
		if !s.tryAcquire(userID) {
			continue
		}

		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			defer s.release(userID)
			s.claimFor(ctx, runID, userID, today)
		}(userID)
	}
	wg.Wait()

	return nil
}

// tryAcquire atomically checks and inserts the user into the in-flight set.
func (s *Scheduler) tryAcquire(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inFlight[userID]; busy {
		return false
	}
	s.inFlight[userID] = struct{}{}
	return true
}

func (s *Scheduler) release(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, userID)
}

// claimFor invokes the claim tool for one user and records the outcome.
// The date is recorded even on failure: a remote side that is structurally
// rejecting the claim (already claimed elsewhere, inventory gone) must not
// be hammered every tick, and the failure retries naturally tomorrow.
func (s *Scheduler) claimFor(ctx context.Context, runID, userID, today string) {
	// Re-read under the in-flight guard: another sweep may have completed
	// this user between our snapshot and now.
	cred, err := s.store.Get(userID)
	if err != nil || cred == nil || !cred.AutoClaim || cred.Token == "" || cred.LastClaimDate == today {
		return
	}

	switch {
	case globalconfig.DebugLog != nil:
		globalconfig.DebugLog.Printf("[Sweep %s] Claiming for user %s", runID, userID)
	}

	result, callErr := s.invoker.Invoke(ctx, userID, s.cfg.ClaimTool, map[string]any{})

	stamp, stampErr := s.clock.DateTime(s.cfg.Timezone)
	if stampErr != nil {
		stamp = today
	}

	outcome := "success"
	if callErr != nil {
		outcome = callErr.Error()
	}

	patch := storage.CredentialPatch{
		LastClaimDate:   &today,
		LastClaimAt:     &stamp,
		LastClaimResult: &outcome,
	}
	if err := s.store.Upsert(userID, patch); err != nil {
		log.Printf("sweep %s: failed to record outcome for user %s: %v", runID, userID, err)
	}

	s.notify(ctx, userID, result, callErr)
}

func (s *Scheduler) notify(ctx context.Context, userID string, result *mcp.Result, callErr error) {
	var text string
	switch {
	case callErr != nil:
		text = fmt.Sprintf("Daily claim failed: %v", callErr)
	case result != nil && result.Kind == mcp.KindText && result.Text != "":
		text = fmt.Sprintf("Daily claim succeeded: %s", result.Text)
	default:
		text = "Daily claim succeeded."
	}

	if err := s.notifier.Send(ctx, userID, text); err != nil {
		// Notification is a best-effort side channel; the outcome record
		// above is the source of truth.
		log.Printf("failed to notify user %s: %v", userID, err)
	}
}
