package config

import (
	"testing"
	"time"
)

func TestDefaultTuning(t *testing.T) {
	c := Default()
	if c.PrefetchBlockLimit != 150*time.Millisecond {
		t.Fatalf("PrefetchBlockLimit = %v, want 150ms", c.PrefetchBlockLimit)
	}
	if c.MaxTransitionWait != 30*time.Second {
		t.Fatalf("MaxTransitionWait = %v, want 30s", c.MaxTransitionWait)
	}
	if c.NLookahead != 2 {
		t.Fatalf("NLookahead = %d, want 2", c.NLookahead)
	}
	if c.ImageWorkers != 2 {
		t.Fatalf("ImageWorkers = %d, want 2", c.ImageWorkers)
	}
}
