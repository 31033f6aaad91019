package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/trackify/internal/shared"
)

func newScheduler(h *harness, refresher TokenRefresher, interval time.Duration) *Scheduler {
	if refresher == nil {
		refresher = &stubRefresher{access: "fresh-access"}
	}
	return NewScheduler(h.engine, h.playlists, h.users, refresher, interval, h.logger)
}

func TestScheduler(t *testing.T) {
	ctx := context.Background()

	t.Run("TriggerManualSync", func(t *testing.T) {
		t.Run("Runs A Pass With A Refreshed Token", func(t *testing.T) {
			h := newHarness(t)
			h.seedUser(t, "u1")
			h.api.SetTracks("src", "spotify:track:a", "spotify:track:b")
			h.api.SetTracks("copy", "spotify:track:a")
			tp := h.seedPair(t, "u1", "src", "copy", "spotify:track:a")

			s := newScheduler(h, nil, time.Hour)
			defer s.Stop()

			report, err := s.TriggerManualSync(ctx, tp.ID)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(report.Added) != 1 {
				t.Errorf("expected one addition, got %+v", report)
			}
		})

		t.Run("Persists A Rotated Refresh Token", func(t *testing.T) {
			h := newHarness(t)
			h.seedUser(t, "u1")
			h.api.SetTracks("src", "spotify:track:a")
			h.api.SetTracks("copy", "spotify:track:a")
			tp := h.seedPair(t, "u1", "src", "copy", "spotify:track:a")

			s := newScheduler(h, &stubRefresher{access: "fresh", rotated: "rotated-refresh"}, time.Hour)
			defer s.Stop()

			if _, err := s.TriggerManualSync(ctx, tp.ID); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			user, err := h.users.Get("u1")
			if err != nil {
				t.Fatalf("failed to load user: %v", err)
			}
			if user.RefreshToken != "rotated-refresh" {
				t.Errorf("expected rotated token persisted, got %q", user.RefreshToken)
			}
		})

		t.Run("Expired Credentials Surface AuthExpired", func(t *testing.T) {
			h := newHarness(t)
			h.seedUser(t, "u1")
			tp := h.seedPair(t, "u1", "src", "copy")

			s := newScheduler(h, &stubRefresher{err: shared.ErrAuthExpired}, time.Hour)
			defer s.Stop()

			if _, err := s.TriggerManualSync(ctx, tp.ID); !errors.Is(err, shared.ErrAuthExpired) {
				t.Errorf("expected ErrAuthExpired, got %v", err)
			}
		})

		t.Run("Unknown Record", func(t *testing.T) {
			h := newHarness(t)
			s := newScheduler(h, nil, time.Hour)
			defer s.Stop()

			if _, err := s.TriggerManualSync(ctx, 404); !errors.Is(err, shared.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	})

	t.Run("EnableAutoSync", func(t *testing.T) {
		t.Run("Persists Flag And Handle And Fires", func(t *testing.T) {
			h := newHarness(t)
			h.seedUser(t, "u1")
			h.api.SetTracks("src", "spotify:track:a", "spotify:track:b")
			h.api.SetTracks("copy", "spotify:track:a")
			tp := h.seedPair(t, "u1", "src", "copy", "spotify:track:a")

			s := newScheduler(h, nil, 15*time.Millisecond)
			defer s.Stop()

			handle, err := s.EnableAutoSync(tp.ID)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if handle == "" {
				t.Fatal("expected a job handle")
			}

			fresh, err := h.playlists.Get(tp.ID)
			if err != nil {
				t.Fatalf("failed to reload record: %v", err)
			}
			if !fresh.AutoSyncEnabled || fresh.JobID != handle {
				t.Errorf("expected enabled record with handle %s, got %+v", handle, fresh)
			}

			waitFor(t, 2*time.Second, func() bool {
				fresh, err := h.playlists.Get(tp.ID)
				return err == nil && fresh.LastSynced != nil
			}, "scheduled pass never ran")
		})

		t.Run("Unknown Record", func(t *testing.T) {
			h := newHarness(t)
			s := newScheduler(h, nil, time.Hour)
			defer s.Stop()

			if _, err := s.EnableAutoSync(404); !errors.Is(err, shared.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	})

	t.Run("DisableAutoSync Stops The Job", func(t *testing.T) {
		h := newHarness(t)
		h.seedUser(t, "u1")
		h.api.SetTracks("src", "spotify:track:a")
		h.api.SetTracks("copy", "spotify:track:a")
		tp := h.seedPair(t, "u1", "src", "copy", "spotify:track:a")

		s := newScheduler(h, nil, 15*time.Millisecond)
		defer s.Stop()

		if _, err := s.EnableAutoSync(tp.ID); err != nil {
			t.Fatalf("failed to enable: %v", err)
		}
		if err := s.DisableAutoSync(tp.ID); err != nil {
			t.Fatalf("failed to disable: %v", err)
		}

		fresh, err := h.playlists.Get(tp.ID)
		if err != nil {
			t.Fatalf("failed to reload record: %v", err)
		}
		if fresh.AutoSyncEnabled || fresh.JobID != "" {
			t.Errorf("expected cleared schedule, got %+v", fresh)
		}

		// No pass should land after the schedule is gone.
		fresh, _ = h.playlists.Get(tp.ID)
		before := fresh.LastSynced
		time.Sleep(60 * time.Millisecond)
		fresh, _ = h.playlists.Get(tp.ID)
		if (before == nil) != (fresh.LastSynced == nil) {
			t.Error("pass ran after disable")
		}
	})

	t.Run("Stale Fire Is Ignored", func(t *testing.T) {
		h := newHarness(t)
		h.seedUser(t, "u1")
		h.api.SetTracks("src", "spotify:track:a", "spotify:track:b")
		h.api.SetTracks("copy", "spotify:track:a")
		tp := h.seedPair(t, "u1", "src", "copy", "spotify:track:a")

		s := newScheduler(h, nil, 15*time.Millisecond)
		defer s.Stop()

		if _, err := s.EnableAutoSync(tp.ID); err != nil {
			t.Fatalf("failed to enable: %v", err)
		}
		// Replace the persisted handle out from under the running job.
		if err := h.playlists.SetAutoSync(tp.ID, true, "someone-else"); err != nil {
			t.Fatalf("failed to rotate handle: %v", err)
		}

		time.Sleep(80 * time.Millisecond)

		fresh, err := h.playlists.Get(tp.ID)
		if err != nil {
			t.Fatalf("failed to reload record: %v", err)
		}
		if fresh.LastSynced != nil {
			t.Error("stale job must not run a pass")
		}
	})

	t.Run("Restore", func(t *testing.T) {
		t.Run("Rebuilds Jobs With Fresh Handles", func(t *testing.T) {
			h := newHarness(t)
			h.seedUser(t, "u1")
			h.api.SetTracks("src", "spotify:track:a", "spotify:track:b")
			h.api.SetTracks("copy", "spotify:track:a")
			tp := h.seedPair(t, "u1", "src", "copy", "spotify:track:a")
			if err := h.playlists.SetAutoSync(tp.ID, true, "stale-handle-from-last-run"); err != nil {
				t.Fatalf("failed to persist schedule: %v", err)
			}

			s := newScheduler(h, nil, 15*time.Millisecond)
			defer s.Stop()

			if err := s.Restore(); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			fresh, err := h.playlists.Get(tp.ID)
			if err != nil {
				t.Fatalf("failed to reload record: %v", err)
			}
			if fresh.JobID == "stale-handle-from-last-run" || fresh.JobID == "" {
				t.Errorf("expected a fresh handle, got %q", fresh.JobID)
			}

			waitFor(t, 2*time.Second, func() bool {
				fresh, err := h.playlists.Get(tp.ID)
				return err == nil && fresh.LastSynced != nil
			}, "restored job never ran")
		})

		t.Run("Skips Disabled Records", func(t *testing.T) {
			h := newHarness(t)
			h.seedUser(t, "u1")
			tp := h.seedPair(t, "u1", "src", "copy")

			s := newScheduler(h, nil, 15*time.Millisecond)
			defer s.Stop()

			if err := s.Restore(); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			fresh, err := h.playlists.Get(tp.ID)
			if err != nil {
				t.Fatalf("failed to reload record: %v", err)
			}
			if fresh.AutoSyncEnabled || fresh.JobID != "" {
				t.Errorf("disabled record should stay unscheduled, got %+v", fresh)
			}
		})
	})
}
