package tasks

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/trackify/internal/shared"
)

func TestTrackSetResolver(t *testing.T) {
	ctx := context.Background()

	t.Run("Follows Pagination And Skips Null Tracks", func(t *testing.T) {
		h := newHarness(t)
		h.api.PageSize = 100

		var uris []string
		for i := 0; i < 199; i++ {
			uris = append(uris, fmt.Sprintf("spotify:track:%03d", i))
		}
		// Null items on the first and last page.
		uris[10] = ""
		uris = append(uris, "", "spotify:track:199")
		h.api.SetTracks("src", uris...)

		set, err := NewTrackSetResolver(h.api).Resolve(ctx, "tok", "src")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(set) != 199 {
			t.Errorf("expected 199 resolved URIs, got %d", len(set))
		}
		if !set["spotify:track:199"] || set[""] {
			t.Error("expected last-page track present and no empty URI")
		}
	})

	t.Run("Page Failure Fails Resolution", func(t *testing.T) {
		h := newHarness(t)
		h.api.SetTracks("src", "spotify:track:a")
		h.api.Err["GetPlaylistTracksPage"] = shared.ErrUpstreamAPI

		if _, err := NewTrackSetResolver(h.api).Resolve(ctx, "tok", "src"); !errors.Is(err, shared.ErrUpstreamAPI) {
			t.Errorf("expected ErrUpstreamAPI, got %v", err)
		}
	})
}

func TestEngineReconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("Source Additions Are Appended", func(t *testing.T) {
		h := newHarness(t)
		h.seedUser(t, "u1")
		h.api.SetTracks("src", "spotify:track:a", "spotify:track:b", "spotify:track:c")
		h.api.SetTracks("copy", "spotify:track:a", "spotify:track:b")
		tp := h.seedPair(t, "u1", "src", "copy", "spotify:track:a", "spotify:track:b")

		report, err := h.engine.Reconcile(ctx, "tok", tp)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !reflect.DeepEqual(report.Added, []string{"spotify:track:c"}) {
			t.Errorf("expected c added, got %v", report.Added)
		}
		if len(report.NewlyExcluded) != 0 {
			t.Errorf("expected no exclusions, got %v", report.NewlyExcluded)
		}
		if got := h.api.Tracks("copy"); len(got) != 3 {
			t.Errorf("expected 3 tracks on copy, got %v", got)
		}

		fresh, err := h.playlists.Get(tp.ID)
		if err != nil {
			t.Fatalf("failed to reload record: %v", err)
		}
		if fresh.LastSynced == nil {
			t.Error("expected last synced to be set")
		}
	})

	t.Run("Removals Become Exclusions Before Additions", func(t *testing.T) {
		h := newHarness(t)
		h.seedUser(t, "u1")
		// User removed b and c from their copy by hand.
		h.api.SetTracks("src", "spotify:track:a", "spotify:track:b", "spotify:track:c")
		h.api.SetTracks("copy", "spotify:track:a")
		tp := h.seedPair(t, "u1", "src", "copy",
			"spotify:track:a", "spotify:track:b", "spotify:track:c")

		report, err := h.engine.Reconcile(ctx, "tok", tp)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		want := []string{"spotify:track:b", "spotify:track:c"}
		if !reflect.DeepEqual(report.NewlyExcluded, want) {
			t.Errorf("expected %v excluded, got %v", want, report.NewlyExcluded)
		}
		if len(report.Added) != 0 {
			t.Errorf("removed tracks must not be re-added, got %v", report.Added)
		}
		if got := h.api.Tracks("copy"); !reflect.DeepEqual(got, []string{"spotify:track:a"}) {
			t.Errorf("copy should be untouched, got %v", got)
		}

		excluded, err := h.dislikes.ListURIs(tp.ID)
		if err != nil {
			t.Fatalf("failed to list dislikes: %v", err)
		}
		if !reflect.DeepEqual(excluded, want) {
			t.Errorf("expected %v persisted, got %v", want, excluded)
		}
	})

	t.Run("Recorded Dislike Stays Excluded While New Tracks Land", func(t *testing.T) {
		h := newHarness(t)
		h.seedUser(t, "u1")
		// b was disliked through the app, then the source gained c.
		h.api.SetTracks("src", "spotify:track:a", "spotify:track:b", "spotify:track:c")
		h.api.SetTracks("copy", "spotify:track:a")
		tp := h.seedPair(t, "u1", "src", "copy", "spotify:track:a", "spotify:track:b")
		if err := h.dislikes.Insert(tp.ID, "spotify:track:b"); err != nil {
			t.Fatalf("failed to seed dislike: %v", err)
		}

		report, err := h.engine.Reconcile(ctx, "tok", tp)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !reflect.DeepEqual(report.Added, []string{"spotify:track:c"}) {
			t.Errorf("expected c added, got %v", report.Added)
		}
		if len(report.NewlyExcluded) != 0 {
			t.Errorf("b is already recorded, got %v", report.NewlyExcluded)
		}
		if got := h.api.Tracks("copy"); !reflect.DeepEqual(got, []string{"spotify:track:a", "spotify:track:c"}) {
			t.Errorf("unexpected copy contents: %v", got)
		}
	})

	t.Run("Reconcile Is Idempotent", func(t *testing.T) {
		h := newHarness(t)
		h.seedUser(t, "u1")
		h.api.SetTracks("src", "spotify:track:a", "spotify:track:b", "spotify:track:c")
		h.api.SetTracks("copy", "spotify:track:a")
		tp := h.seedPair(t, "u1", "src", "copy", "spotify:track:a", "spotify:track:b")

		if _, err := h.engine.Reconcile(ctx, "tok", tp); err != nil {
			t.Fatalf("first pass failed: %v", err)
		}
		report, err := h.engine.Reconcile(ctx, "tok", tp)
		if err != nil {
			t.Fatalf("second pass failed: %v", err)
		}
		if len(report.Added) != 0 || len(report.NewlyExcluded) != 0 {
			t.Errorf("second pass should be a no-op, got %+v", report)
		}

		excluded, err := h.dislikes.ListURIs(tp.ID)
		if err != nil {
			t.Fatalf("failed to list dislikes: %v", err)
		}
		if !reflect.DeepEqual(excluded, []string{"spotify:track:b"}) {
			t.Errorf("expected single exclusion row, got %v", excluded)
		}
	})

	t.Run("Large Playlists Are Chunked", func(t *testing.T) {
		h := newHarness(t)
		h.seedUser(t, "u1")
		h.engine = NewEngine(h.api, h.playlists, h.dislikes, h.history, 2, h.logger)

		h.api.SetTracks("src",
			"spotify:track:a", "spotify:track:b", "spotify:track:c",
			"spotify:track:d", "spotify:track:e")
		h.api.SetTracks("copy")
		tp := h.seedPair(t, "u1", "src", "copy")

		report, err := h.engine.Reconcile(ctx, "tok", tp)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(report.Added) != 5 {
			t.Errorf("expected 5 added, got %d", len(report.Added))
		}
		if len(h.api.AddCalls) != 3 {
			t.Errorf("expected 3 add requests for chunk size 2, got %d", len(h.api.AddCalls))
		}
	})

	t.Run("Exclusions Survive A Failed Addition", func(t *testing.T) {
		h := newHarness(t)
		h.seedUser(t, "u1")
		h.api.SetTracks("src", "spotify:track:a", "spotify:track:b")
		h.api.SetTracks("copy")
		tp := h.seedPair(t, "u1", "src", "copy", "spotify:track:b")
		h.api.Err["AddTracks"] = shared.ErrUpstreamAPI

		if _, err := h.engine.Reconcile(ctx, "tok", tp); !errors.Is(err, shared.ErrUpstreamAPI) {
			t.Fatalf("expected ErrUpstreamAPI, got %v", err)
		}

		excluded, err := h.dislikes.ListURIs(tp.ID)
		if err != nil {
			t.Fatalf("failed to list dislikes: %v", err)
		}
		if !reflect.DeepEqual(excluded, []string{"spotify:track:b"}) {
			t.Errorf("exclusion should be committed despite the failure, got %v", excluded)
		}

		fresh, err := h.playlists.Get(tp.ID)
		if err != nil {
			t.Fatalf("failed to reload record: %v", err)
		}
		if fresh.LastSynced != nil {
			t.Error("last synced must not move on a failed pass")
		}
	})

	t.Run("Source Failure Aborts The Pass", func(t *testing.T) {
		h := newHarness(t)
		h.seedUser(t, "u1")
		h.api.SetTracks("copy", "spotify:track:a")
		tp := h.seedPair(t, "u1", "missing-src", "copy", "spotify:track:a")

		if _, err := h.engine.Reconcile(ctx, "tok", tp); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Passes For One Record Are Serialized", func(t *testing.T) {
		h := newHarness(t)
		h.seedUser(t, "u1")
		h.api.SetTracks("src", "spotify:track:a")
		h.api.SetTracks("copy", "spotify:track:a")
		tp := h.seedPair(t, "u1", "src", "copy", "spotify:track:a")
		h.api.Delay = 2 * time.Millisecond

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := h.engine.Reconcile(ctx, "tok", tp); err != nil {
					t.Errorf("pass failed: %v", err)
				}
			}()
		}
		wg.Wait()

		if got := h.api.MaxInFlight(); got != 1 {
			t.Errorf("expected serialized passes, saw %d concurrent calls", got)
		}
	})

	t.Run("Distinct Records Run Concurrently", func(t *testing.T) {
		h := newHarness(t)
		h.seedUser(t, "u1")
		h.api.SetTracks("src1", "spotify:track:a")
		h.api.SetTracks("copy1", "spotify:track:a")
		h.api.SetTracks("src2", "spotify:track:b")
		h.api.SetTracks("copy2", "spotify:track:b")
		tp1 := h.seedPair(t, "u1", "src1", "copy1", "spotify:track:a")
		tp2 := h.seedPair(t, "u1", "src2", "copy2", "spotify:track:b")
		h.api.Delay = 5 * time.Millisecond

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.engine.Reconcile(ctx, "tok", tp1)
		}()
		go func() {
			defer wg.Done()
			h.engine.Reconcile(ctx, "tok", tp2)
		}()
		wg.Wait()

		if got := h.api.MaxInFlight(); got < 2 {
			t.Errorf("expected overlapping passes for distinct records, saw %d", got)
		}
	})
}
