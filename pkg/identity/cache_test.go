package identity

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

// TestCacheRoundTrip tests remembering and forgetting the marker.
func TestCacheRoundTrip(t *testing.T) {
	cache := NewCache(NewMemoryStorage())

	if got := cache.OptimisticID(); got != "" {
		t.Errorf("OptimisticID on empty cache = %q", got)
	}

	if err := cache.Remember(&Identity{ID: "user-a", Email: "a@example.com"}); err != nil {
		t.Fatalf("Remember failed: %v", err)
	}
	if got := cache.OptimisticID(); got != "user-a" {
		t.Errorf("OptimisticID = %q, want user-a", got)
	}

	if err := cache.Forget(); err != nil {
		t.Fatalf("Forget failed: %v", err)
	}
	if got := cache.OptimisticID(); got != "" {
		t.Errorf("OptimisticID after Forget = %q", got)
	}
}

// TestCacheCorruptMarker tests that an unreadable marker means no guess.
func TestCacheCorruptMarker(t *testing.T) {
	storage := NewMemoryStorage()
	if err := storage.Write(markerKey, []byte("not json")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	cache := NewCache(storage)
	if got := cache.OptimisticID(); got != "" {
		t.Errorf("OptimisticID from corrupt marker = %q, want empty", got)
	}
}

// TestAnonymousID tests stability and explicit reset of the device id.
func TestAnonymousID(t *testing.T) {
	storage := NewMemoryStorage()

	first, err := AnonymousID(storage)
	if err != nil {
		t.Fatalf("AnonymousID failed: %v", err)
	}
	if !strings.HasPrefix(first, "guest-") {
		t.Errorf("anonymous id = %q, want guest- prefix", first)
	}

	second, err := AnonymousID(storage)
	if err != nil {
		t.Fatalf("AnonymousID failed: %v", err)
	}
	if second != first {
		t.Errorf("anonymous id changed across calls: %q then %q", first, second)
	}

	if err := ClearAnonymousID(storage); err != nil {
		t.Fatalf("ClearAnonymousID failed: %v", err)
	}
	third, err := AnonymousID(storage)
	if err != nil {
		t.Fatalf("AnonymousID failed: %v", err)
	}
	if third == first {
		t.Error("anonymous id not regenerated after clear")
	}
}

// TestFileStorage tests the file-backed marker storage.
func TestFileStorage(t *testing.T) {
	dir := t.TempDir()
	storage, err := NewFileStorage(filepath.Join(dir, "state"))
	if err != nil {
		t.Fatalf("NewFileStorage failed: %v", err)
	}

	if data, err := storage.Read("missing"); err != nil || data != nil {
		t.Errorf("Read of absent key = (%v, %v), want (nil, nil)", data, err)
	}

	if err := storage.Write("k", []byte("v")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	data, err := storage.Read("k")
	if err != nil || string(data) != "v" {
		t.Errorf("Read = (%q, %v), want v", data, err)
	}

	if err := storage.Remove("k"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := storage.Remove("k"); err != nil {
		t.Errorf("Remove of absent key returned error: %v", err)
	}
}

// TestClassify tests the provider error message mapping.
func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"InvalidCredentials", &ProviderError{Code: "invalid_credentials"}, "Incorrect email or password."},
		{"InvalidGrant", &ProviderError{Code: "invalid_grant"}, "Incorrect email or password."},
		{"UnknownCode", &ProviderError{Code: "weird_new_code"}, defaultProviderMessage},
		{"NotAProviderError", errors.New("boom"), defaultProviderMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify = %q, want %q", got, tt.want)
			}
		})
	}
}
