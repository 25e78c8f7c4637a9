package userdata

import (
	"context"
	"testing"
	"time"
)

func ref(id string) ContentRef {
	return ContentRef{ID: id, Title: "title-" + id, MediaType: "movie"}
}

// flush waits for background persists so assertions see settled state.
func flush(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
}

// TestWatchlist tests watchlist mutations and their idempotence.
func TestWatchlist(t *testing.T) {
	ctx := context.Background()
	store := NewStore(ScopeGuest, NewMemoryAdapter())
	store.Bind("g1")

	t.Run("AddIsIdempotent", func(t *testing.T) {
		store.AddToWatchlist(ctx, ref("42"))
		store.AddToWatchlist(ctx, ref("42"))

		rec := store.Snapshot()
		if len(rec.Watchlist) != 1 {
			t.Fatalf("watchlist has %d entries, want 1", len(rec.Watchlist))
		}
		if rec.Watchlist[0].ID != "42" {
			t.Errorf("watchlist[0] = %q, want %q", rec.Watchlist[0].ID, "42")
		}
	})

	t.Run("PreservesInsertionOrder", func(t *testing.T) {
		store.AddToWatchlist(ctx, ref("7"))
		store.AddToWatchlist(ctx, ref("9"))

		rec := store.Snapshot()
		ids := []string{}
		for _, r := range rec.Watchlist {
			ids = append(ids, r.ID)
		}
		want := []string{"42", "7", "9"}
		for i := range want {
			if ids[i] != want[i] {
				t.Fatalf("watchlist order = %v, want %v", ids, want)
			}
		}
	})

	t.Run("RemoveAbsentIsNoOp", func(t *testing.T) {
		before := store.Snapshot()
		store.RemoveFromWatchlist(ctx, "does-not-exist")
		after := store.Snapshot()
		if len(after.Watchlist) != len(before.Watchlist) {
			t.Errorf("watchlist changed after removing absent id")
		}
	})

	t.Run("Remove", func(t *testing.T) {
		store.RemoveFromWatchlist(ctx, "7")
		rec := store.Snapshot()
		if containsRef(rec.Watchlist, "7") {
			t.Error("watchlist still contains removed id")
		}
		if len(rec.Watchlist) != 2 {
			t.Errorf("watchlist has %d entries, want 2", len(rec.Watchlist))
		}
	})

	flush(t, store)
}

// TestLikedHiddenExclusion tests that a title is never simultaneously
// liked and hidden.
func TestLikedHiddenExclusion(t *testing.T) {
	ctx := context.Background()
	store := NewStore(ScopeAccount, NewMemoryAdapter())
	store.Bind("user-a")

	t.Run("LikeThenHide", func(t *testing.T) {
		store.AddLiked(ctx, ref("7"))
		store.AddHidden(ctx, ref("7"))

		rec := store.Snapshot()
		if containsRef(rec.Liked, "7") {
			t.Error("liked still contains id after hiding it")
		}
		if !containsRef(rec.Hidden, "7") {
			t.Error("hidden does not contain id")
		}
	})

	t.Run("HideThenLike", func(t *testing.T) {
		store.AddHidden(ctx, ref("8"))
		store.AddLiked(ctx, ref("8"))

		rec := store.Snapshot()
		if containsRef(rec.Hidden, "8") {
			t.Error("hidden still contains id after liking it")
		}
		if !containsRef(rec.Liked, "8") {
			t.Error("liked does not contain id")
		}
	})

	t.Run("NeverInBoth", func(t *testing.T) {
		// Interleave both directions on one id.
		for i := 0; i < 5; i++ {
			store.AddLiked(ctx, ref("13"))
			store.AddHidden(ctx, ref("13"))
			store.AddLiked(ctx, ref("13"))
		}

		rec := store.Snapshot()
		if containsRef(rec.Liked, "13") && containsRef(rec.Hidden, "13") {
			t.Fatal("id present in both liked and hidden")
		}
		if !containsRef(rec.Liked, "13") {
			t.Error("last operation was a like but id is not liked")
		}
	})

	t.Run("RemoveLiked", func(t *testing.T) {
		store.RemoveLiked(ctx, "8")
		rec := store.Snapshot()
		if containsRef(rec.Liked, "8") {
			t.Error("liked still contains removed id")
		}
	})

	flush(t, store)
}

// TestCustomLists tests list creation and mutation.
func TestCustomLists(t *testing.T) {
	ctx := context.Background()
	store := NewStore(ScopeAccount, NewMemoryAdapter())
	store.Bind("user-a")

	listID := store.CreateList(ctx, "Halloween", "🎃", "#ff7a00")
	if listID == "" {
		t.Fatal("CreateList returned empty id")
	}

	t.Run("Create", func(t *testing.T) {
		rec := store.Snapshot()
		if len(rec.Lists) != 1 {
			t.Fatalf("record has %d lists, want 1", len(rec.Lists))
		}
		l := rec.Lists[0]
		if l.ID != listID || l.Name != "Halloween" || l.Emoji != "🎃" {
			t.Errorf("list = %+v", l)
		}
	})

	t.Run("AddAndRemoveItems", func(t *testing.T) {
		store.AddToList(ctx, listID, ref("31"))
		store.AddToList(ctx, listID, ref("31")) // duplicate, no-op
		store.AddToList(ctx, listID, ref("66"))
		store.RemoveFromList(ctx, listID, "31")

		rec := store.Snapshot()
		items := rec.Lists[0].Items
		if len(items) != 1 || items[0].ID != "66" {
			t.Errorf("list items = %+v, want single item 66", items)
		}
	})

	t.Run("UnknownListIsNoOp", func(t *testing.T) {
		before := store.Snapshot()
		store.AddToList(ctx, "nope", ref("1"))
		store.RemoveFromList(ctx, "nope", "1")
		store.UpdateList(ctx, "nope", ListPatch{Name: strPtr("x")})
		store.DeleteList(ctx, "nope")

		after := store.Snapshot()
		if len(after.Lists) != len(before.Lists) {
			t.Error("lists changed after operations on unknown id")
		}
	})

	t.Run("UpdateList", func(t *testing.T) {
		store.UpdateList(ctx, listID, ListPatch{Name: strPtr("Spooky")})
		rec := store.Snapshot()
		if rec.Lists[0].Name != "Spooky" {
			t.Errorf("list name = %q, want %q", rec.Lists[0].Name, "Spooky")
		}
		if rec.Lists[0].Emoji != "🎃" {
			t.Error("unpatched field changed")
		}
	})

	t.Run("DeleteList", func(t *testing.T) {
		store.DeleteList(ctx, listID)
		rec := store.Snapshot()
		if len(rec.Lists) != 0 {
			t.Errorf("record has %d lists after delete, want 0", len(rec.Lists))
		}
	})

	flush(t, store)
}

// TestPreferences tests preference patching and the guest child-safety rule.
func TestPreferences(t *testing.T) {
	ctx := context.Background()

	t.Run("AccountPatch", func(t *testing.T) {
		store := NewStore(ScopeAccount, NewMemoryAdapter())
		store.Bind("user-a")

		store.UpdatePreferences(ctx, PreferencesPatch{
			DefaultVolume: intPtr(40),
			ChildSafety:   boolPtr(true),
		})

		prefs := store.Snapshot().Preferences
		if prefs.DefaultVolume != 40 {
			t.Errorf("volume = %d, want 40", prefs.DefaultVolume)
		}
		if !prefs.ChildSafety {
			t.Error("child safety not enabled on account store")
		}
		if !prefs.AutoMute {
			t.Error("unpatched field changed")
		}
		flush(t, store)
	})

	t.Run("GuestChildSafetyImmutable", func(t *testing.T) {
		store := NewStore(ScopeGuest, NewMemoryAdapter())
		store.Bind("g1")

		store.UpdatePreferences(ctx, PreferencesPatch{ChildSafety: boolPtr(true)})

		if store.Snapshot().Preferences.ChildSafety {
			t.Error("guest store accepted child safety change")
		}
		flush(t, store)
	})
}

// TestLoadDataGuard tests that a load for a different identity is rejected.
func TestLoadDataGuard(t *testing.T) {
	ctx := context.Background()
	store := NewStore(ScopeAccount, NewMemoryAdapter())
	store.Bind("A")
	store.AddToWatchlist(ctx, ref("42"))
	flush(t, store)

	foreign := NewRecord("B")
	foreign.Watchlist = []ContentRef{ref("99")}

	err := store.LoadData(foreign)
	if err == nil {
		t.Fatal("LoadData accepted record for foreign identity")
	}
	if _, ok := err.(IdentityMismatchError); !ok {
		t.Fatalf("error = %T, want IdentityMismatchError", err)
	}

	rec := store.Snapshot()
	if rec.IdentityID != "A" {
		t.Errorf("store rebound to %q", rec.IdentityID)
	}
	if !containsRef(rec.Watchlist, "42") || containsRef(rec.Watchlist, "99") {
		t.Error("store state changed by rejected load")
	}
}

// TestClearAllData tests that clearing wipes state and persisted data but
// preserves the identity binding.
func TestClearAllData(t *testing.T) {
	ctx := context.Background()
	adapter := NewMemoryAdapter()
	store := NewStore(ScopeGuest, adapter)
	store.Bind("g1")

	store.AddToWatchlist(ctx, ref("42"))
	store.AddLiked(ctx, ref("7"))
	store.AddHidden(ctx, ref("8"))
	store.CreateList(ctx, "Faves", "", "")
	flush(t, store)

	store.ClearAllData(ctx)
	flush(t, store)

	rec := store.Snapshot()
	if rec.IdentityID != "g1" {
		t.Errorf("identity = %q, want g1", rec.IdentityID)
	}
	if len(rec.Watchlist) != 0 || len(rec.Liked) != 0 || len(rec.Hidden) != 0 || len(rec.Lists) != 0 {
		t.Errorf("record not empty after clear: %+v", rec)
	}

	persisted, err := adapter.Load(ctx, "g1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if persisted != nil {
		t.Error("persisted copy still exists after ClearAllData")
	}
}

// TestSync tests populating the store from its adapter.
func TestSync(t *testing.T) {
	ctx := context.Background()

	t.Run("PopulatesFromAdapter", func(t *testing.T) {
		adapter := NewMemoryAdapter()
		seed := NewRecord("user-a")
		seed.Watchlist = []ContentRef{ref("101")}
		if err := adapter.Save(ctx, "user-a", seed); err != nil {
			t.Fatalf("seed save failed: %v", err)
		}

		store := NewStore(ScopeAccount, adapter)
		store.Bind("user-a")
		if err := store.Sync(ctx, "user-a"); err != nil {
			t.Fatalf("Sync failed: %v", err)
		}

		rec := store.Snapshot()
		if !containsRef(rec.Watchlist, "101") {
			t.Error("sync did not populate watchlist")
		}
		if rec.SyncStatus != StatusSynced {
			t.Errorf("status = %q, want synced", rec.SyncStatus)
		}
	})

	t.Run("MissingRecordIsFreshStart", func(t *testing.T) {
		store := NewStore(ScopeAccount, NewMemoryAdapter())
		store.Bind("new-user")
		if err := store.Sync(ctx, "new-user"); err != nil {
			t.Fatalf("Sync failed for identity with no history: %v", err)
		}
		if store.Snapshot().SyncStatus != StatusSynced {
			t.Error("fresh identity not marked synced")
		}
	})

	t.Run("RejectsMismatchedIdentity", func(t *testing.T) {
		store := NewStore(ScopeAccount, NewMemoryAdapter())
		store.Bind("A")
		err := store.Sync(ctx, "B")
		if _, ok := err.(IdentityMismatchError); !ok {
			t.Fatalf("error = %v, want IdentityMismatchError", err)
		}
	})
}

// TestSubscribe tests snapshot fan-out on record changes.
func TestSubscribe(t *testing.T) {
	ctx := context.Background()
	store := NewStore(ScopeGuest, NewMemoryAdapter())
	store.Bind("g1")
	flush(t, store)

	var got []*Record
	unsub := store.Subscribe(func(rec *Record) {
		got = append(got, rec)
	})

	store.AddToWatchlist(ctx, ref("42"))
	flush(t, store)

	if len(got) == 0 {
		t.Fatal("no notifications delivered")
	}
	last := got[len(got)-1]
	if !containsRef(last.Watchlist, "42") {
		t.Error("notification snapshot missing mutation")
	}

	// Snapshots are copies: mutating one must not affect the store.
	last.Watchlist[0].ID = "tampered"
	if store.Snapshot().Watchlist[0].ID != "42" {
		t.Error("subscriber snapshot aliases store state")
	}

	unsub()
	n := len(got)
	store.AddToWatchlist(ctx, ref("43"))
	flush(t, store)
	if len(got) != n {
		t.Error("notification delivered after unsubscribe")
	}
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }
func boolPtr(b bool) *bool    { return &b }
