package agent

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// SchedulerConfig controls the proactive push and session sweep cadence.
type SchedulerConfig struct {
	Proactive     bool
	Interval      time.Duration
	Cooldown      time.Duration
	SessionTTL    time.Duration
	SweepInterval time.Duration
}

// Scheduler periodically pushes proactive suggestions to idle sessions and
// expires sessions that have not been seen for SessionTTL.
type Scheduler struct {
	cron      *cron.Cron
	registry  *SessionRegistry
	publisher Publisher
	cfg       SchedulerConfig
	logger    *slog.Logger
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(registry *SessionRegistry, publisher Publisher, cfg SchedulerConfig, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Minute
	}
	return &Scheduler{
		cron:      cron.New(),
		registry:  registry,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// Start registers the cron entries and starts the scheduler.
func (s *Scheduler) Start() error {
	if s.cfg.Proactive {
		if _, err := s.cron.AddFunc("@every "+s.cfg.Interval.String(), func() { s.RunProactive() }); err != nil {
			return fmt.Errorf("schedule proactive job: %w", err)
		}
	}
	if s.cfg.SessionTTL > 0 {
		if _, err := s.cron.AddFunc("@every "+s.cfg.SweepInterval.String(), s.Sweep); err != nil {
			return fmt.Errorf("schedule session sweep: %w", err)
		}
	}
	s.cron.Start()

	s.logger.Info("scheduler started",
		"proactive", s.cfg.Proactive,
		"interval", s.cfg.Interval,
		"cooldown", s.cfg.Cooldown,
		"session_ttl", s.cfg.SessionTTL,
		"cron_entries", len(s.cron.Entries()),
	)
	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Second):
		s.logger.Warn("scheduler stop timed out")
	}
	s.logger.Info("scheduler stopped")
}

// RunProactive walks live sessions and pushes a suggestion to each one that
// qualifies. It returns the number of pushes.
func (s *Scheduler) RunProactive() int {
	pushed := 0
	for _, ref := range s.registry.ProactiveCandidates(s.cfg.Cooldown) {
		resp := ref.Session.GenerateProactiveSuggestions()
		if resp == nil {
			continue
		}
		msg := proactiveMessage(ref.Session, *resp)
		s.registry.MarkProactive(ref.UserID, ref.SessionID, msg.Timestamp)
		if s.publisher != nil {
			s.publisher.Publish(&Push{
				UserID:    ref.UserID,
				SessionID: ref.SessionID,
				Reply:     newChatResponse(*resp, msg),
			})
		}
		pushed++
	}
	if pushed > 0 {
		s.logger.Info("proactive suggestions pushed", "count", pushed)
	}
	return pushed
}

// Sweep expires idle sessions.
func (s *Scheduler) Sweep() {
	s.registry.Sweep(s.cfg.SessionTTL)
}
