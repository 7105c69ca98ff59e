package tracker

import (
	"testing"

	"passbot/internal/storage"
)

func pctPtr(n int) *int { return &n }

func TestEqualPercent(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		a, b *int
		want bool
	}{
		{name: "both nil", a: nil, b: nil, want: true},
		{name: "nil vs value", a: nil, b: pctPtr(0), want: false},
		{name: "value vs nil", a: pctPtr(100), b: nil, want: false},
		{name: "equal values", a: pctPtr(30), b: pctPtr(30), want: true},
		{name: "different values", a: pctPtr(30), b: pctPtr(45), want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := EqualPercent(tt.a, tt.b); got != tt.want {
				t.Fatalf("EqualPercent = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShouldNotify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		mode string
		prev *int
		next *int
		want bool
	}{
		{name: "on_change same value", mode: storage.ModeOnChange, prev: pctPtr(30), next: pctPtr(30), want: false},
		{name: "on_change changed value", mode: storage.ModeOnChange, prev: pctPtr(30), next: pctPtr(45), want: true},
		{name: "on_change first value", mode: storage.ModeOnChange, prev: nil, next: pctPtr(5), want: true},
		{name: "on_change still no value", mode: storage.ModeOnChange, prev: nil, next: nil, want: false},
		{name: "on_change value lost", mode: storage.ModeOnChange, prev: pctPtr(60), next: nil, want: true},
		{name: "daily same value", mode: storage.ModeDaily, prev: pctPtr(30), next: pctPtr(30), want: true},
		{name: "daily no value", mode: storage.ModeDaily, prev: nil, next: nil, want: true},
		{name: "unknown mode treated as on_change", mode: "bogus", prev: pctPtr(10), next: pctPtr(10), want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldNotify(tt.mode, tt.prev, tt.next); got != tt.want {
				t.Fatalf("ShouldNotify(%s, %v, %v) = %v, want %v", tt.mode, tt.prev, tt.next, got, tt.want)
			}
		})
	}
}
