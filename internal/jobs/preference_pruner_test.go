package jobs

import (
	"context"
	"testing"
	"time"
)

type fakeGroupChecker struct {
	existing map[string]bool
	err      error
}

func (f *fakeGroupChecker) Exists(_ context.Context, groupID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.existing[groupID], nil
}

func TestNewPreferencePruner_DefaultInterval(t *testing.T) {
	p := NewPreferencePruner(nil, &fakeGroupChecker{}, 0)
	if p.interval != 24*time.Hour {
		t.Errorf("interval = %v, want 24h default", p.interval)
	}

	p = NewPreferencePruner(nil, &fakeGroupChecker{}, 6)
	if p.interval != 6*time.Hour {
		t.Errorf("interval = %v, want 6h", p.interval)
	}
}

func TestPreferencePruner_StartWithoutRedisReturns(t *testing.T) {
	p := NewPreferencePruner(nil, &fakeGroupChecker{}, 1)

	done := make(chan struct{})
	go func() {
		p.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
		// Start returned immediately: redis not configured
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return without redis configured")
	}
}

func TestPreferencePruner_StopUnblocksLoop(t *testing.T) {
	// Without redis, Start returns before entering the loop, so Stop must not
	// panic even when the loop never ran.
	p := NewPreferencePruner(nil, &fakeGroupChecker{}, 1)
	p.Stop()
}
