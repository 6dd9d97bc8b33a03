package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type fakeSessions struct {
	calls chan struct{}
	err   error
}

func (f *fakeSessions) DeleteExpired() (int64, error) {
	f.calls <- struct{}{}
	return 3, f.err
}

type fakeLimiter struct {
	calls chan struct{}
}

func (f *fakeLimiter) Cleanup() int {
	f.calls <- struct{}{}
	return 1
}

type fakeBackups struct {
	runs   chan struct{}
	prunes int
	runErr error
}

func (f *fakeBackups) Run(context.Context) (string, error) {
	f.runs <- struct{}{}
	return "flatmate-20260301T040000Z.db.enc", f.runErr
}

func (f *fakeBackups) Prune(context.Context) (int, error) {
	f.prunes++
	return 2, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, name string, ch chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Errorf("%s job did not run on start", name)
	}
}

func TestJobsRunOnStart(t *testing.T) {
	sessions := &fakeSessions{calls: make(chan struct{}, 10)}
	limiter := &fakeLimiter{calls: make(chan struct{}, 10)}
	backups := &fakeBackups{runs: make(chan struct{}, 10)}

	s, err := New(Options{
		Sessions:        sessions,
		Limiter:         limiter,
		CleanupInterval: time.Hour,
		Backups:         backups,
		BackupInterval:  24 * time.Hour,
	}, discardLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if n := len(s.scheduler.Jobs()); n != 3 {
		t.Errorf("registered %d jobs, want 3", n)
	}
	s.Start()
	defer s.Stop()

	waitFor(t, "sessions", sessions.calls)
	waitFor(t, "limiter", limiter.calls)
	waitFor(t, "backup", backups.runs)
}

func TestBackupJobIsOptional(t *testing.T) {
	s, err := New(Options{
		Sessions:        &fakeSessions{calls: make(chan struct{}, 10)},
		Limiter:         &fakeLimiter{calls: make(chan struct{}, 10)},
		CleanupInterval: time.Hour,
	}, discardLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer s.Stop()

	if n := len(s.scheduler.Jobs()); n != 2 {
		t.Errorf("registered %d jobs, want 2", n)
	}
}

func TestRunBackupPrunesAfterUpload(t *testing.T) {
	backups := &fakeBackups{runs: make(chan struct{}, 1)}
	s := &Scheduler{backups: backups, logger: discardLogger()}

	s.runBackup()

	if backups.prunes != 1 {
		t.Errorf("prunes = %d, want 1", backups.prunes)
	}
}

func TestRunBackupSkipsPruneOnFailure(t *testing.T) {
	backups := &fakeBackups{runs: make(chan struct{}, 1), runErr: errors.New("bucket not found")}
	s := &Scheduler{backups: backups, logger: discardLogger()}

	s.runBackup()

	if backups.prunes != 0 {
		t.Errorf("prunes = %d, want 0", backups.prunes)
	}
}

func TestPurgeSessionsLogsErrors(t *testing.T) {
	sessions := &fakeSessions{calls: make(chan struct{}, 1), err: errors.New("database is locked")}
	s := &Scheduler{sessions: sessions, logger: discardLogger()}

	// Should not panic
	s.purgeSessions()

	if len(sessions.calls) != 1 {
		t.Error("expected one DeleteExpired call")
	}
}
