package safego

import (
	"testing"
	"time"
)

func TestGo_RunsTask(t *testing.T) {
	done := make(chan struct{})
	Go(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("background task never ran")
	}
}

func TestGo_PanicIsContained(t *testing.T) {
	// The panic must neither crash the test binary nor affect tasks launched
	// afterwards.
	first := make(chan struct{})
	Go(func() {
		defer close(first)
		panic("intentional panic")
	})

	select {
	case <-first:
	case <-time.After(2 * time.Second):
		t.Fatal("panicking task never finished")
	}

	second := make(chan struct{})
	Go(func() { close(second) })

	select {
	case <-second:
	case <-time.After(2 * time.Second):
		t.Fatal("task launched after a panic never ran")
	}
}
