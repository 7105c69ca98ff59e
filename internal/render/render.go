// Package render produces the user-facing presentation of a status
// snapshot: the caption text and the progress image attached to it.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"passbot/internal/status"
	"passbot/pkg/logx"
)

// progressSteps are the pre-sliced icon granularities shipped in the icons
// dir (progress_0.png ... progress_100.png).
var progressSteps = []int{0, 5, 10, 20, 30, 60, 70, 80, 90, 100}

type Renderer struct {
	iconsDir string
	log      logx.Logger
}

func New(iconsDir string, log logx.Logger) *Renderer {
	return &Renderer{iconsDir: iconsDir, log: log}
}

// Caption formats the notification text for one snapshot.
func Caption(snap *status.Snapshot, label string) string {
	header := "Application: " + snap.ID
	if label != "" {
		header += " — " + label
	}
	lines := []string{header}

	if snap.ReceptionDate != "" {
		lines = append(lines, "Submitted: "+snap.ReceptionDate)
	}
	lines = append(lines, "Status: "+snap.Display.Name)
	if snap.Internal.Name != "" {
		extra := "Processing stage: " + snap.Internal.Name
		if snap.Internal.Percent != nil {
			extra += fmt.Sprintf(" (%d%%)", *snap.Internal.Percent)
		}
		lines = append(lines, extra)
	}
	return strings.Join(lines, "\n")
}

// Unavailable is the one failure message family for fetch errors, shared by
// manual and scheduled checks.
func Unavailable(id string) string {
	return "Couldn't get the status for application " + id + ". " +
		"Check the number or try again later."
}

// ProgressImage returns PNG bytes visualizing the snapshot's percent: the
// nearest pre-sliced icon when available, otherwise a drawn fallback card.
func (r *Renderer) ProgressImage(snap *status.Snapshot) []byte {
	percent := snap.Internal.Percent

	if percent != nil && r.iconsDir != "" {
		name := fmt.Sprintf("progress_%d.png", nearestStep(*percent))
		path := filepath.Join(r.iconsDir, name)
		if b, err := os.ReadFile(path); err == nil {
			return b
		}
		r.log.Warn("progress icon missing; drawing fallback",
			logx.String("path", path), logx.String("id", snap.ID))
	}

	return drawFallback(percent)
}

func nearestStep(percent int) int {
	best := progressSteps[0]
	for _, step := range progressSteps[1:] {
		if abs(step-percent) < abs(best-percent) {
			best = step
		}
	}
	return best
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// drawFallback renders a simple card: dark background, a progress bar and
// the percent (or "?" when unknown).
func drawFallback(percent *int) []byte {
	const (
		w, h = 300, 300
		barW = 220
		barH = 18
	)

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{60, 60, 60, 255}), image.Point{}, draw.Src)

	barBG := color.RGBA{90, 90, 90, 255}
	barFG := color.RGBA{80, 180, 90, 255}

	barRect := image.Rect((w-barW)/2, h/2+20, (w+barW)/2, h/2+20+barH)
	draw.Draw(img, barRect, image.NewUniform(barBG), image.Point{}, draw.Src)
	if percent != nil {
		fill := barRect
		fill.Max.X = fill.Min.X + barW**percent/100
		draw.Draw(img, fill, image.NewUniform(barFG), image.Point{}, draw.Src)
	}

	text := "?"
	if percent != nil {
		text = fmt.Sprintf("%d%%", *percent)
	}
	drawCentered(img, text, w/2, h/2-10, color.White)
	drawCentered(img, "Completed", w/2, h/2+10, color.RGBA{200, 200, 200, 255})

	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func drawCentered(img draw.Image, text string, cx, cy int, col color.Color) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
	}
	width := d.MeasureString(text)
	d.Dot = fixed.Point26_6{
		X: fixed.I(cx) - width/2,
		Y: fixed.I(cy) + fixed.I(face.Height)/2,
	}
	d.DrawString(text)
}
