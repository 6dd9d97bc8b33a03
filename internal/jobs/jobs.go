// Package jobs runs periodic maintenance: expired sessions and stale rate
// limiter windows are purged on a fixed interval, and database backups are
// taken when object storage is configured.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

const backupTimeout = 10 * time.Minute

type SessionPurger interface {
	DeleteExpired() (int64, error)
}

type LimiterCleaner interface {
	Cleanup() int
}

type Backupper interface {
	Run(ctx context.Context) (string, error)
	Prune(ctx context.Context) (int, error)
}

type Options struct {
	Sessions        SessionPurger
	Limiter         LimiterCleaner
	CleanupInterval time.Duration

	// Backups is optional. When nil no backup job is registered.
	Backups        Backupper
	BackupInterval time.Duration
}

type Scheduler struct {
	scheduler gocron.Scheduler
	sessions  SessionPurger
	limiter   LimiterCleaner
	backups   Backupper
	logger    *slog.Logger
}

type job struct {
	name     string
	interval time.Duration
	fn       func()
}

// New registers the maintenance jobs. Each runs once at Start and then on
// its interval.
func New(opts Options, logger *slog.Logger) (*Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	s := &Scheduler{
		scheduler: scheduler,
		sessions:  opts.Sessions,
		limiter:   opts.Limiter,
		backups:   opts.Backups,
		logger:    logger,
	}

	jobs := []job{
		{"session-cleanup", opts.CleanupInterval, s.purgeSessions},
		{"rate-limit-cleanup", opts.CleanupInterval, s.cleanLimiter},
	}
	if opts.Backups != nil {
		jobs = append(jobs, job{"database-backup", opts.BackupInterval, s.runBackup})
	}

	for _, j := range jobs {
		_, err := scheduler.NewJob(
			gocron.DurationJob(j.interval),
			gocron.NewTask(j.fn),
			gocron.WithName(j.name),
			gocron.WithStartAt(gocron.WithStartImmediately()),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			scheduler.Shutdown()
			return nil, fmt.Errorf("register %s job: %w", j.name, err)
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.logger.Info("starting maintenance jobs", "jobs", len(s.scheduler.Jobs()))
	s.scheduler.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}

func (s *Scheduler) purgeSessions() {
	n, err := s.sessions.DeleteExpired()
	if err != nil {
		s.logger.Error("session cleanup", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("expired sessions removed", "count", n)
	}
}

func (s *Scheduler) cleanLimiter() {
	if n := s.limiter.Cleanup(); n > 0 {
		s.logger.Debug("rate limit windows removed", "count", n)
	}
}

// runBackup uploads a snapshot, then prunes old ones. A failed upload skips
// pruning so the last good backups are never removed.
func (s *Scheduler) runBackup() {
	ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()

	if _, err := s.backups.Run(ctx); err != nil {
		s.logger.Error("database backup", "error", err)
		return
	}
	n, err := s.backups.Prune(ctx)
	if err != nil {
		s.logger.Error("backup pruning", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("old backups removed", "count", n)
	}
}
