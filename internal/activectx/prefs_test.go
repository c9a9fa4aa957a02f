package activectx

import (
	"context"
	"testing"
)

func TestPrefKey_NamespacedPerUser(t *testing.T) {
	if got := PrefKey("u1"); got != "pref:active_group:u1" {
		t.Errorf("PrefKey(u1) = %q, want pref:active_group:u1", got)
	}
	if PrefKey("u1") == PrefKey("u2") {
		t.Error("keys for different users must differ")
	}
}

func TestMemoryPreferenceStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryPreferenceStore()

	if _, ok := store.Preferred(ctx); ok {
		t.Error("fresh store should report no preference")
	}

	store.SetPreferred(ctx, "g1")
	got, ok := store.Preferred(ctx)
	if !ok || got != "g1" {
		t.Errorf("Preferred = %q (ok=%v), want g1", got, ok)
	}

	// Last write wins.
	store.SetPreferred(ctx, "g2")
	got, ok = store.Preferred(ctx)
	if !ok || got != "g2" {
		t.Errorf("Preferred = %q (ok=%v), want g2", got, ok)
	}
}
