package service

import (
	"context"
	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"paperstack/internal/backup"
	"paperstack/internal/types"
	"paperstack/logger"
	"sort"
	"sync"
	"time"
)

const (
	triggerBackup    = "backup"
	triggerCleanup   = "cleanup"
	triggerReconcile = "reconcile"
)

type (
	SchedulerOptions struct {
		CleanupTime       string
		ReconcileInterval time.Duration
	}

	// Trigger describes one registered scheduler entry.
	Trigger struct {
		Name    string    `json:"name"`
		NextRun time.Time `json:"next_run"`
	}

	// Scheduler owns the time based triggers. The backup trigger follows the
	// stored settings; cleanup and reconciliation run on fixed schedules. Only
	// one Scheduler should run against a database.
	Scheduler struct {
		settings SettingsService
		backups  BackupService
		cleaner  RetentionCleaner
		opts     SchedulerOptions

		cron gocron.Scheduler

		lock      sync.Mutex
		ctx       context.Context
		backupJob gocron.Job
		started   bool
	}
)

func NewScheduler(settings SettingsService, backups BackupService, cleaner RetentionCleaner, opts SchedulerOptions) (*Scheduler, error) {
	if opts.CleanupTime == "" {
		opts.CleanupTime = "03:00"
	}
	if opts.ReconcileInterval <= 0 {
		opts.ReconcileInterval = 5 * time.Minute
	}

	cron, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLimitConcurrentJobs(10, gocron.LimitModeWait),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create scheduler")
	}

	return &Scheduler{
		settings: settings,
		backups:  backups,
		cleaner:  cleaner,
		opts:     opts,
		cron:     cron,
		ctx:      context.Background(),
	}, nil
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.started {
		return nil
	}
	s.ctx = ctx

	cleanupExpr, err := backup.CronExpression(types.FrequencyDaily, s.opts.CleanupTime)
	if err != nil {
		return errors.Wrap(err, "invalid cleanup time")
	}

	_, err = s.cron.NewJob(
		gocron.CronJob(cleanupExpr, false),
		gocron.NewTask(func() { s.runCleanup() }),
		gocron.WithName(triggerCleanup),
		gocron.WithTags(triggerCleanup),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return errors.Wrap(err, "failed to register cleanup trigger")
	}

	_, err = s.cron.NewJob(
		gocron.DurationJob(s.opts.ReconcileInterval),
		gocron.NewTask(func() { s.runReconcile() }),
		gocron.WithName(triggerReconcile),
		gocron.WithTags(triggerReconcile),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return errors.Wrap(err, "failed to register reconcile trigger")
	}

	if err := s.reschedule(ctx); err != nil {
		return err
	}

	s.cron.Start()
	s.started = true
	logger.Info("scheduler started",
		zap.String("cleanup", cleanupExpr),
		zap.Duration("reconcile_interval", s.opts.ReconcileInterval))
	return nil
}

// Stop waits for running triggers to return.
func (s *Scheduler) Stop() {
	s.lock.Lock()
	if !s.started {
		s.lock.Unlock()
		return
	}
	s.started = false
	s.lock.Unlock()

	if err := s.cron.Shutdown(); err != nil {
		logger.Warn("scheduler shutdown", zap.Error(err))
	}
}

// Reschedule replaces the backup trigger with one derived from the current
// settings.
func (s *Scheduler) Reschedule(ctx context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.reschedule(ctx)
}

// UpdateSettings writes the patch and reschedules while holding the scheduler
// lock, so two writers cannot leave triggers for different policies behind.
func (s *Scheduler) UpdateSettings(ctx context.Context, patch types.BackupSettingsPatch) (*types.BackupSettings, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	settings, err := s.settings.Update(ctx, patch)
	if err != nil {
		return nil, err
	}
	return settings, s.reschedule(ctx)
}

func (s *Scheduler) ResetSettings(ctx context.Context) (*types.BackupSettings, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	settings, err := s.settings.Reset(ctx)
	if err != nil {
		return nil, err
	}
	return settings, s.reschedule(ctx)
}

func (s *Scheduler) reschedule(ctx context.Context) error {
	if s.backupJob != nil {
		if err := s.cron.RemoveJob(s.backupJob.ID()); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
			return errors.Wrap(err, "failed to remove backup trigger")
		}
		s.backupJob = nil
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return err
	}

	expression, err := backup.CronExpression(settings.Frequency, settings.BackupTime)
	if err != nil {
		return errors.Wrap(err, "invalid backup schedule")
	}
	if expression == "" {
		logger.Info("manual backups only, no backup trigger registered")
		return nil
	}

	job, err := s.cron.NewJob(
		gocron.CronJob(expression, false),
		gocron.NewTask(func() { s.runBackup() }),
		gocron.WithName(triggerBackup),
		gocron.WithTags(triggerBackup, string(settings.Frequency)),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return errors.Wrap(err, "failed to register backup trigger")
	}
	s.backupJob = job

	logger.Info("backup trigger registered",
		zap.String("frequency", string(settings.Frequency)),
		zap.String("cron", expression))
	return nil
}

// NextBackup reports when the backup trigger fires next. ok is false when
// backups are manual.
func (s *Scheduler) NextBackup() (next time.Time, ok bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.backupJob == nil {
		return time.Time{}, false
	}

	next, err := s.backupJob.NextRun()
	if err != nil || next.IsZero() {
		return time.Time{}, false
	}
	return next.UTC(), true
}

func (s *Scheduler) Triggers() []Trigger {
	jobs := s.cron.Jobs()
	triggers := make([]Trigger, 0, len(jobs))
	for _, job := range jobs {
		next, _ := job.NextRun()
		triggers = append(triggers, Trigger{Name: job.Name(), NextRun: next.UTC()})
	}

	sort.Slice(triggers, func(i, j int) bool {
		return triggers[i].Name < triggers[j].Name
	})
	return triggers
}

func (s *Scheduler) taskContext() context.Context {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.ctx
}

// runBackup is the scheduled trigger. It is skipped while an earlier scheduled
// job is still pending or running.
func (s *Scheduler) runBackup() {
	ctx := s.taskContext()
	if _, err := s.backups.ReconcileStale(ctx); err != nil {
		logger.Warn("reconcile before scheduled backup failed", zap.Error(err))
	}

	active, err := s.backups.HasActive(ctx, types.SystemPrincipal)
	if err != nil {
		logger.Error("failed to check active backups", zap.Error(err))
		return
	}
	if active {
		logger.Warn("previous scheduled backup still active, skipping trigger")
		return
	}

	job, err := s.backups.Create(ctx, types.BackupTypeFull, types.SystemPrincipal)
	if err != nil {
		logger.Error("scheduled backup failed to start", zap.Error(err))
		return
	}
	logger.Info("scheduled backup created", zap.String("job", job.ID.String()))
}

func (s *Scheduler) runCleanup() {
	deleted, err := s.cleaner.Run(s.taskContext())
	if err != nil {
		logger.Error("retention cleanup failed", zap.Error(err))
		return
	}
	logger.Debug("retention cleanup trigger done", zap.Int("deleted", deleted))
}

func (s *Scheduler) runReconcile() {
	count, err := s.backups.ReconcileStale(s.taskContext())
	if err != nil {
		logger.Error("reconcile failed", zap.Error(err))
		return
	}
	if count > 0 {
		logger.Warn("stale backups failed", zap.Int("count", count))
	}
}
