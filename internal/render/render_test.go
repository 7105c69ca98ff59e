package render

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"passbot/internal/status"
	"passbot/pkg/logx"
)

func pp(n int) *int { return &n }

func TestCaption(t *testing.T) {
	t.Parallel()
	snap := &status.Snapshot{
		ID:            "2000123456",
		ReceptionDate: "2026-01-15",
		Display:       status.DisplayStatus{Name: "In progress"},
		Internal:      status.InternalStatus{Name: "Printing", Percent: pp(70)},
	}

	got := Caption(snap, "spouse passport")
	want := strings.Join([]string{
		"Application: 2000123456 — spouse passport",
		"Submitted: 2026-01-15",
		"Status: In progress",
		"Processing stage: Printing (70%)",
	}, "\n")
	if got != want {
		t.Fatalf("Caption =\n%s\nwant\n%s", got, want)
	}
}

func TestCaptionMinimalSnapshot(t *testing.T) {
	t.Parallel()
	snap := &status.Snapshot{
		ID:      "2000123456",
		Display: status.DisplayStatus{Name: "Unknown"},
	}

	got := Caption(snap, "")
	if strings.Contains(got, "Submitted") || strings.Contains(got, "Processing stage") {
		t.Fatalf("optional lines should be omitted:\n%s", got)
	}
	if !strings.HasPrefix(got, "Application: 2000123456\n") {
		t.Fatalf("unexpected header:\n%s", got)
	}
}

func TestNearestStep(t *testing.T) {
	t.Parallel()
	tests := []struct{ in, want int }{
		{0, 0},
		{3, 5},
		{12, 10},
		{45, 30}, // 45 is equidistant to 30 and 60; first match wins
		{55, 60},
		{97, 100},
		{100, 100},
	}
	for _, tt := range tests {
		if got := nearestStep(tt.in); got != tt.want {
			t.Fatalf("nearestStep(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestProgressImagePrefersIconFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	icon := []byte("fake-png-bytes")
	if err := os.WriteFile(filepath.Join(dir, "progress_70.png"), icon, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	r := New(dir, logx.Nop())
	snap := &status.Snapshot{ID: "2000123456", Internal: status.InternalStatus{Percent: pp(72)}}

	got := r.ProgressImage(snap)
	if !bytes.Equal(got, icon) {
		t.Fatal("expected the pre-sliced icon bytes")
	}
}

func TestProgressImageFallbackIsValidPNG(t *testing.T) {
	t.Parallel()
	r := New("", logx.Nop())

	for _, percent := range []*int{nil, pp(0), pp(50), pp(100)} {
		snap := &status.Snapshot{ID: "2000123456", Internal: status.InternalStatus{Percent: percent}}
		b := r.ProgressImage(snap)
		img, err := png.Decode(bytes.NewReader(b))
		if err != nil {
			t.Fatalf("fallback is not a decodable png: %v", err)
		}
		if img.Bounds().Dx() == 0 {
			t.Fatal("fallback image is empty")
		}
	}
}
