package automation

import (
	"context"
	"sync"
	"time"

	models "homehub/database/models_pkg"
	"homehub/logger"
)

// triggerWindow is how far (in minutes of day) the clock may be from a time
// trigger for it to fire.
const triggerWindow = 1

// Runner executes an automation by id. *Executor satisfies it.
type Runner interface {
	Execute(ctx context.Context, automationID uint, triggerData map[string]interface{}) (bool, error)
}

// RunnableLister lists enabled and active automations. *Store satisfies it.
type RunnableLister interface {
	ListRunnable(ctx context.Context, triggerType string) ([]models.Automation, error)
}

// Scheduler polls time-triggered automations and fires those due now
type Scheduler struct {
	automations RunnableLister
	runner      Runner
	interval    time.Duration
	now         func() time.Time
	log         *logger.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	// sweepMu serializes sweeps; lastFired maps automation id to the
	// trigger occurrence it last fired for
	sweepMu   sync.Mutex
	lastFired map[uint]time.Time
}

// NewScheduler creates a new scheduler. now must return wall-clock time in
// the hub's timezone.
func NewScheduler(lister RunnableLister, runner Runner, interval time.Duration, now func() time.Time, log *logger.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		automations: lister,
		runner:      runner,
		interval:    interval,
		now:         now,
		log:         logger.OrNop(log),
		lastFired:   make(map[uint]time.Time),
	}
}

// Start launches the polling loop. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(loopCtx, s.done)
}

// Stop cancels the loop and waits for it to exit. An execution already in
// progress finishes first.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
}

// Running reports the scheduler state
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	s.log.Info("⏰ Automation scheduler started", "interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("⏰ Automation scheduler stopped")
			return
		case <-ticker.C:
			// in-flight executions use a context that outlives Stop
			s.CheckAndTrigger(context.WithoutCancel(ctx), s.now())
		}
	}
}

// CheckAndTrigger fires every runnable time automation due at now and
// returns how many were invoked. An automation fires at most once per
// trigger occurrence even though consecutive sweeps all fall inside its
// window. Failures are logged per automation and never stop the sweep.
func (s *Scheduler) CheckAndTrigger(ctx context.Context, now time.Time) int {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	list, err := s.automations.ListRunnable(ctx, models.TriggerTime)
	if err != nil {
		s.log.Error("⚠️  Failed to load time automations", "error", err)
		return 0
	}

	current := now.Hour()*60 + now.Minute()
	today := models.Weekday(now)
	fired := 0
	for _, a := range list {
		trigger, err := a.Trigger()
		if err != nil {
			s.log.Warn("⚠️  Skipping automation with invalid trigger", "automation_id", a.ID, "error", err)
			continue
		}
		tt, ok := trigger.(models.TimeTrigger)
		if !ok {
			continue
		}
		at, err := tt.MinuteOfDay()
		if err != nil {
			continue
		}
		if minutesApart(current, at) > triggerWindow || !tt.Matches(today) {
			continue
		}
		due := occurrence(now, current, at)
		if last, ok := s.lastFired[a.ID]; ok && last.Equal(due) {
			continue
		}
		s.lastFired[a.ID] = due

		s.log.Info("⏰ Triggering automation", "automation_id", a.ID, "name", a.Name)
		fired++
		if _, err := s.runner.Execute(ctx, a.ID, map[string]interface{}{
			"triggered_at": now.Format(time.RFC3339),
			"trigger_type": models.TriggerTime,
		}); err != nil {
			s.log.Error("⚠️  Scheduled execution failed", "automation_id", a.ID, "error", err)
		}
	}
	s.forgetBefore(now.Add(-2 * triggerWindow * time.Minute))
	return fired
}

// forgetBefore drops fired occurrences too old to fall inside any window
func (s *Scheduler) forgetBefore(cutoff time.Time) {
	for id, due := range s.lastFired {
		if due.Before(cutoff) {
			delete(s.lastFired, id)
		}
	}
}

// occurrence is the instant of the trigger at minute-of-day `at` closest to
// now, which may fall on the previous or next day around midnight.
func occurrence(now time.Time, current, at int) time.Time {
	y, m, d := now.Date()
	due := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).Add(time.Duration(at) * time.Minute)
	switch {
	case current-at > 720:
		due = due.AddDate(0, 0, 1)
	case at-current > 720:
		due = due.AddDate(0, 0, -1)
	}
	return due
}

// minutesApart is the distance between two minutes-of-day, wrapping at midnight
func minutesApart(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if d > 720 {
		d = 1440 - d
	}
	return d
}
