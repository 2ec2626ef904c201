// Package icon draws the app icon: an orange disc with a white metronome
// silhouette. It is generated at runtime so no binary assets are needed.
package icon

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
)

var (
	background = color.RGBA{R: 0xE8, G: 0x7A, B: 0x1E, A: 0xFF}
	foreground = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
)

// Draw renders the icon at size×size pixels.
func Draw(size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	s := float64(size)
	c := s / 2
	r := s/2 - 0.5

	// Metronome body: a trapezoid from 25% to 80% height.
	top, bottom := 0.22*s, 0.80*s
	topHalf, bottomHalf := 0.08*s, 0.24*s

	// Pendulum: a thick line from the base pivot tilted to the right.
	pivotX, pivotY := c, 0.72*s
	tipX, tipY := c+0.20*s, 0.20*s
	width := math.Max(1, 0.035*s)

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			px, py := float64(x)+0.5, float64(y)+0.5
			if math.Hypot(px-c, py-c) > r {
				continue
			}
			col := background
			if py >= top && py <= bottom {
				t := (py - top) / (bottom - top)
				half := topHalf + t*(bottomHalf-topHalf)
				if math.Abs(px-c) <= half {
					col = foreground
				}
			}
			if segmentDistance(px, py, pivotX, pivotY, tipX, tipY) <= width {
				if col == foreground {
					col = background
				} else {
					col = foreground
				}
			}
			img.SetRGBA(x, y, col)
		}
	}
	return img
}

// PNG returns the icon encoded as PNG.
func PNG(size int) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, Draw(size)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func segmentDistance(px, py, ax, ay, bx, by float64) float64 {
	dx, dy := bx-ax, by-ay
	t := ((px-ax)*dx + (py-ay)*dy) / (dx*dx + dy*dy)
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(px-(ax+t*dx), py-(ay+t*dy))
}
