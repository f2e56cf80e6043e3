package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Vasu1712/coachlink-backend/internal/metrics"
	"github.com/Vasu1712/coachlink-backend/internal/models"
	"github.com/Vasu1712/coachlink-backend/internal/storage"
	"github.com/charmbracelet/log"
)

const (
	dailyCheckinTitle = "Daily check-in"
	dailyCheckinBody  = "Take a minute to log how today is going."
)

// RunLock keeps scheduler runs from overlapping. TryLock reports whether the
// lock was taken; a held lock is not an error.
type RunLock interface {
	TryLock(ctx context.Context, ttl time.Duration) (unlock func(), acquired bool, err error)
}

// LocalLock is a RunLock for a single process.
type LocalLock struct {
	mu sync.Mutex
}

func (l *LocalLock) TryLock(context.Context, time.Duration) (func(), bool, error) {
	if !l.mu.TryLock() {
		return nil, false, nil
	}
	return l.mu.Unlock, true, nil
}

// Report summarizes one scheduler run.
type Report struct {
	Users    int
	Created  int
	Skipped  int
	Errors   int
	Deferred int  // users not reached before the run deadline
	Locked   bool // another run held the lock; nothing was evaluated
}

// SchedulerOptions tunes a Scheduler. Zero values select the defaults.
type SchedulerOptions struct {
	Interval    time.Duration
	RunTimeout  time.Duration
	UserTimeout time.Duration
	Lock        RunLock
}

// Scheduler writes at most one daily check-in reminder per user and local
// date into the outbox. Runs are idempotent and may repeat freely.
type Scheduler struct {
	store  storage.NotificationStore
	opts   SchedulerOptions
	now    func() time.Time
	logger *log.Logger
}

func NewScheduler(store storage.NotificationStore, opts SchedulerOptions, logger *log.Logger) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 2 * time.Minute
	}
	if opts.UserTimeout <= 0 {
		opts.UserTimeout = 5 * time.Second
	}
	if opts.Lock == nil {
		opts.Lock = &LocalLock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.With("component", "scheduler")
	// One stuck user must not consume the whole run budget.
	if opts.UserTimeout >= opts.RunTimeout {
		clamped := opts.RunTimeout / 2
		logger.Warn("User timeout not below run timeout; clamping",
			"user_timeout", opts.UserTimeout, "run_timeout", opts.RunTimeout, "clamped", clamped)
		opts.UserTimeout = clamped
	}
	return &Scheduler{
		store:  store,
		opts:   opts,
		now:    time.Now,
		logger: logger,
	}
}

// SetClock replaces the time source.
func (s *Scheduler) SetClock(now func() time.Time) { s.now = now }

// Start runs the scheduler immediately and then on every interval until ctx
// is cancelled. Runs never overlap.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	s.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Run(ctx)
		}
	}
}

// Run evaluates every push-enabled user once. It never fails: per-user
// errors are logged and counted in the report.
func (s *Scheduler) Run(ctx context.Context) Report {
	var report Report
	started := time.Now()

	unlock, acquired, err := s.opts.Lock.TryLock(ctx, s.opts.RunTimeout+time.Minute)
	if err != nil {
		s.logger.Error("Scheduler: lock failed", "err", err)
		metrics.SchedulerRuns.WithLabelValues("error").Inc()
		report.Errors++
		return report
	}
	if !acquired {
		s.logger.Info("Scheduler: another run in progress")
		metrics.SchedulerRuns.WithLabelValues("locked").Inc()
		report.Locked = true
		return report
	}
	defer unlock()

	runCtx, cancel := context.WithTimeout(ctx, s.opts.RunTimeout)
	defer cancel()

	prefs, err := s.store.ListUsersWithPushEnabled(runCtx)
	if err != nil {
		s.logger.Error("Scheduler: list users failed", "err", err)
		metrics.SchedulerRuns.WithLabelValues("error").Inc()
		report.Errors++
		return report
	}
	report.Users = len(prefs)

	now := s.now()
	for i, pref := range prefs {
		if runCtx.Err() != nil {
			report.Deferred = len(prefs) - i
			s.logger.Warn("Scheduler: run deadline reached", "deferred", report.Deferred)
			break
		}
		created, err := s.processUser(runCtx, pref, now)
		switch {
		case err != nil:
			report.Errors++
			metrics.SchedulerUserErrors.Inc()
			s.logger.Error("Scheduler: user failed", "userID", pref.UserID, "err", err)
		case created:
			report.Created++
			metrics.NotificationsCreated.WithLabelValues(string(models.NotificationDailyCheckin)).Inc()
		default:
			report.Skipped++
		}
	}

	metrics.SchedulerRuns.WithLabelValues("completed").Inc()
	s.logger.Info("Scheduler: run completed",
		"users", report.Users,
		"created", report.Created,
		"errors", report.Errors,
		"deferred", report.Deferred,
		"duration", time.Since(started),
	)
	return report
}

// processUser creates the user's reminder for their local today when it is
// due, no check-in exists, and no reminder was created yet.
func (s *Scheduler) processUser(ctx context.Context, pref models.NotificationPreference, now time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.UserTimeout)
	defer cancel()

	if pref.DailyCheckinTime == "" {
		return false, nil
	}
	hour, minute, err := parseClock(pref.DailyCheckinTime)
	if err != nil {
		return false, err
	}

	local := now.In(location(pref.Timezone))
	date := local.Format(dateLayout)
	due := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, local.Location())
	if local.Before(due) {
		return false, nil
	}

	checkin, err := s.store.FindTodayCheckin(ctx, pref.UserID, date)
	if err != nil {
		return false, fmt.Errorf("find checkin: %w", err)
	}
	if checkin != nil {
		return false, nil
	}

	existing, err := s.store.FindExistingOutbox(ctx, pref.UserID, models.NotificationDailyCheckin, date)
	if err != nil {
		return false, fmt.Errorf("find existing outbox: %w", err)
	}
	if existing != nil {
		return false, nil
	}

	created, err := s.store.InsertOutbox(ctx, &models.OutboxNotification{
		UserID:    pref.UserID,
		Type:      models.NotificationDailyCheckin,
		Title:     dailyCheckinTitle,
		Body:      dailyCheckinBody,
		DedupeKey: date,
		SendAfter: now.UTC().Truncate(time.Microsecond),
	})
	if err != nil {
		return false, fmt.Errorf("insert outbox: %w", err)
	}
	if created {
		s.logger.Debug("Scheduler: reminder queued", "userID", pref.UserID, "date", date)
	}
	return created, nil
}

var errBadClock = errors.New("daily check-in time must be HH:MM")

func parseClock(v string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", errBadClock, v)
	}
	return t.Hour(), t.Minute(), nil
}
