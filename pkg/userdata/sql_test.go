package userdata

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func openSQLiteAdapter(t *testing.T, opts ...SQLAdapterOption) *SQLAdapter {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	opts = append([]SQLAdapterOption{WithSQLDialect(DialectSQLite)}, opts...)
	adapter := NewSQLAdapter(db, opts...)
	if err := adapter.CreateTable(context.Background()); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return adapter
}

// TestSQLAdapter tests the adapter contract against an in-memory SQLite
// database.
func TestSQLAdapter(t *testing.T) {
	adapter := openSQLiteAdapter(t)
	ctx := context.Background()

	rec := NewRecord("u1")
	rec.Watchlist = []ContentRef{ref("42")}
	rec.Preferences.DefaultVolume = 70

	t.Run("LoadAbsent", func(t *testing.T) {
		loaded, err := adapter.Load(ctx, "u1")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if loaded != nil {
			t.Error("Load returned record before any Save")
		}
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		if err := adapter.Save(ctx, "u1", rec); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		loaded, err := adapter.Load(ctx, "u1")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if loaded == nil {
			t.Fatal("Load returned nil record")
		}
		if !containsRef(loaded.Watchlist, "42") {
			t.Error("loaded record missing watchlist entry")
		}
		if loaded.Preferences.DefaultVolume != 70 {
			t.Errorf("DefaultVolume = %d, want 70", loaded.Preferences.DefaultVolume)
		}
	})

	t.Run("SaveIsUpsert", func(t *testing.T) {
		rec.Watchlist = append(rec.Watchlist, ref("43"))
		if err := adapter.Save(ctx, "u1", rec); err != nil {
			t.Fatalf("second Save failed: %v", err)
		}
		loaded, _ := adapter.Load(ctx, "u1")
		if len(loaded.Watchlist) != 2 {
			t.Errorf("watchlist length = %d, want 2", len(loaded.Watchlist))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := adapter.Delete(ctx, "u1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		loaded, err := adapter.Load(ctx, "u1")
		if err != nil || loaded != nil {
			t.Error("record still present after Delete")
		}
	})

	t.Run("DeleteAbsentIsNoOp", func(t *testing.T) {
		if err := adapter.Delete(ctx, "nobody"); err != nil {
			t.Errorf("Delete of absent identity returned error: %v", err)
		}
	})
}

// TestSQLAdapterIdentitiesAreIsolated verifies records do not bleed across
// identities.
func TestSQLAdapterIdentitiesAreIsolated(t *testing.T) {
	adapter := openSQLiteAdapter(t)
	ctx := context.Background()

	a := NewRecord("user-a")
	a.Liked = []ContentRef{ref("1")}
	b := NewRecord("user-b")
	b.Liked = []ContentRef{ref("2")}

	if err := adapter.Save(ctx, "user-a", a); err != nil {
		t.Fatalf("Save user-a: %v", err)
	}
	if err := adapter.Save(ctx, "user-b", b); err != nil {
		t.Fatalf("Save user-b: %v", err)
	}

	loaded, err := adapter.Load(ctx, "user-a")
	if err != nil {
		t.Fatalf("Load user-a: %v", err)
	}
	if len(loaded.Liked) != 1 || loaded.Liked[0].ID != "1" {
		t.Errorf("user-a liked = %+v, want single entry 1", loaded.Liked)
	}
}

// TestSQLAdapterCustomTableName verifies the table name option.
func TestSQLAdapterCustomTableName(t *testing.T) {
	adapter := openSQLiteAdapter(t, WithSQLTableName("custom_userdata"))
	ctx := context.Background()

	if err := adapter.Save(ctx, "u1", NewRecord("u1")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := adapter.Load(ctx, "u1")
	if err != nil || loaded == nil {
		t.Fatalf("Load failed: %v, record %v", err, loaded)
	}
}

// TestSQLAdapterClosed tests operations after Close.
func TestSQLAdapterClosed(t *testing.T) {
	adapter := openSQLiteAdapter(t)
	ctx := context.Background()

	if err := adapter.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := adapter.Load(ctx, "u1"); err == nil {
		t.Error("Load after Close did not fail")
	}
	if err := adapter.Save(ctx, "u1", NewRecord("u1")); err == nil {
		t.Error("Save after Close did not fail")
	}
	if err := adapter.Delete(ctx, "u1"); err == nil {
		t.Error("Delete after Close did not fail")
	}
}
