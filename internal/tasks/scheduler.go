package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackify/internal/models"
	"github.com/desertthunder/trackify/internal/shared"
)

// job is one running recurring-sync loop.
type job struct {
	handle string
	stop   chan struct{}
}

// Scheduler runs recurring reconciliation for tracked playlists.
//
// Each enabled record gets its own ticker goroutine identified by a fresh
// handle. The handle is persisted on the record; a firing job reloads the
// record and compares handles before doing any work, so a job whose schedule
// was disabled or replaced after the fire was queued becomes a no-op.
type Scheduler struct {
	engine    *Engine
	playlists TrackedPlaylistStore
	users     UserStore
	auth      TokenRefresher
	interval  time.Duration
	logger    *log.Logger

	mu   sync.Mutex
	jobs map[int64]*job
	wg   sync.WaitGroup
}

// NewScheduler creates a scheduler firing each job every interval.
func NewScheduler(
	engine *Engine,
	playlists TrackedPlaylistStore,
	users UserStore,
	auth TokenRefresher,
	interval time.Duration,
	logger *log.Logger,
) *Scheduler {
	return &Scheduler{
		engine:    engine,
		playlists: playlists,
		users:     users,
		auth:      auth,
		interval:  interval,
		logger:    logger,
		jobs:      make(map[int64]*job),
	}
}

// EnableAutoSync switches recurring sync on for a tracking record and returns
// the new job handle. Re-enabling an already scheduled record replaces its
// job, which strands any fire queued under the old handle.
func (s *Scheduler) EnableAutoSync(id int64) (string, error) {
	tp, err := s.playlists.Get(id)
	if err != nil {
		return "", err
	}

	handle := shared.GenerateID()
	if err := s.playlists.SetAutoSync(id, true, handle); err != nil {
		return "", err
	}

	s.mu.Lock()
	if existing, ok := s.jobs[id]; ok {
		close(existing.stop)
	}
	s.jobs[id] = s.startJob(id, handle)
	s.mu.Unlock()

	s.logger.Info("auto-sync enabled", "playlist", tp.Name, "job", handle)
	return handle, nil
}

// DisableAutoSync switches recurring sync off and clears the job handle.
// Disabling a record with no running job still clears the persisted flag.
func (s *Scheduler) DisableAutoSync(id int64) error {
	s.mu.Lock()
	if existing, ok := s.jobs[id]; ok {
		close(existing.stop)
		delete(s.jobs, id)
	}
	s.mu.Unlock()

	if err := s.playlists.SetAutoSync(id, false, ""); err != nil {
		return err
	}

	s.logger.Info("auto-sync disabled", "playlist_id", id)
	return nil
}

// TriggerManualSync runs one reconciliation pass for a record right now,
// outside its schedule, and returns the pass report.
func (s *Scheduler) TriggerManualSync(ctx context.Context, id int64) (*models.SyncReport, error) {
	tp, err := s.playlists.Get(id)
	if err != nil {
		return nil, err
	}

	token, err := s.accessToken(ctx, tp.UserID)
	if err != nil {
		return nil, err
	}

	return s.engine.Reconcile(ctx, token, tp)
}

// Restore rebuilds jobs for every record persisted with auto-sync enabled.
// Called once at process start; handles do not survive restarts, so each
// restored record gets a fresh one.
func (s *Scheduler) Restore() error {
	records, err := s.playlists.ListAutoSyncEnabled()
	if err != nil {
		return fmt.Errorf("failed to list scheduled playlists: %w", err)
	}

	for _, tp := range records {
		handle := shared.GenerateID()
		if err := s.playlists.SetAutoSync(tp.ID, true, handle); err != nil {
			s.logger.Error("failed to restore sync job", "playlist", tp.Name, "error", err)
			continue
		}

		s.mu.Lock()
		s.jobs[tp.ID] = s.startJob(tp.ID, handle)
		s.mu.Unlock()

		s.logger.Info("restored sync job", "playlist", tp.Name, "job", handle)
	}

	return nil
}

// Stop halts every job and waits for in-flight passes to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for id, j := range s.jobs {
		close(j.stop)
		delete(s.jobs, id)
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Scheduler) startJob(id int64, handle string) *job {
	j := &job{handle: handle, stop: make(chan struct{})}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-j.stop:
				return
			case <-ticker.C:
				s.runScheduled(id, handle)
			}
		}
	}()

	return j
}

// runScheduled is one scheduled fire. Failures are logged, never fatal: the
// job stays alive and tries again next interval.
func (s *Scheduler) runScheduled(id int64, handle string) {
	tp, err := s.playlists.Get(id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("scheduled playlist is gone, dropping job", "playlist_id", id)
			s.dropJob(id, handle)
			return
		}
		s.logger.Error("failed to load scheduled playlist", "playlist_id", id, "error", err)
		return
	}

	// Stale fire: the schedule was disabled or replaced after this fire
	// was queued.
	if !tp.AutoSyncEnabled || tp.JobID != handle {
		s.logger.Debug("ignoring stale sync fire", "playlist", tp.Name, "job", handle)
		return
	}

	ctx := context.Background()
	token, err := s.accessToken(ctx, tp.UserID)
	if err != nil {
		s.logger.Error("failed to refresh access for sync", "playlist", tp.Name, "error", err)
		return
	}

	if _, err := s.engine.Reconcile(ctx, token, tp); err != nil {
		s.logger.Error("scheduled sync failed", "playlist", tp.Name, "error", err)
	}
}

// accessToken turns the owner's stored refresh token into a fresh access
// token, persisting the rotated refresh token when the platform issues one.
func (s *Scheduler) accessToken(ctx context.Context, userID string) (string, error) {
	user, err := s.users.Get(userID)
	if err != nil {
		return "", err
	}

	pair, err := s.auth.Refresh(ctx, user.RefreshToken)
	if err != nil {
		return "", err
	}

	if pair.RefreshToken != "" && pair.RefreshToken != user.RefreshToken {
		if err := s.users.SetRefreshToken(userID, pair.RefreshToken); err != nil {
			s.logger.Warn("failed to persist rotated refresh token", "user", userID, "error", err)
		}
	}

	return pair.AccessToken, nil
}

func (s *Scheduler) dropJob(id int64, handle string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j, ok := s.jobs[id]; ok && j.handle == handle {
		close(j.stop)
		delete(s.jobs, id)
	}
}
