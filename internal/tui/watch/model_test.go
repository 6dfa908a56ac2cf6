package watch

import (
	"math"
	"testing"

	"github.com/outpost-sim/depot/internal/registry"
)

func TestFmtSeconds(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0s"},
		{0.5, "500ms"},
		{1, "1s"},
		{90.7, "1m30s"},
		{-3, "0s"},
		{math.Inf(1), "inf"},
	}
	for _, tt := range tests {
		if got := fmtSeconds(tt.in); got != tt.want {
			t.Errorf("fmtSeconds(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFmtExpiry(t *testing.T) {
	now := 1000.0

	forever := registry.Entry{Created: 0, Holding: registry.Infinite()}
	if got := fmtExpiry(forever, now); got != "never" {
		t.Errorf("infinite holding = %q, want never", got)
	}

	expired := registry.Entry{Created: 0, Holding: 10}
	if got := fmtExpiry(expired, now); got != "expired" {
		t.Errorf("past holding = %q, want expired", got)
	}

	pending := registry.Entry{Created: now - 10, Holding: 40}
	if got := fmtExpiry(pending, now); got != "30s" {
		t.Errorf("remaining holding = %q, want 30s", got)
	}
}
