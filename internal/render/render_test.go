package render

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturkwiek/SDD/internal/detection"
	"github.com/arturkwiek/SDD/internal/threat"
)

func blank(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img
}

func TestDraw(t *testing.T) {
	r, err := New(false)
	require.NoError(t, err)

	src := blank(200, 150)
	out := r.Draw(src, []Box{{
		Detection: detection.Detection{Class: "drone", Confidence: 0.91, BBox: detection.BBox{40, 60, 120, 110}},
	}})

	assert.Equal(t, src.Bounds(), out.Bounds())
	// Left edge of the box is green
	assert.Equal(t, ColorDefault, out.RGBAAt(40, 85))
	// Box interior is untouched
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, out.RGBAAt(80, 90))
	// Source frame is not modified
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, src.RGBAAt(40, 85))
}

func TestDraw_ColorByThreat(t *testing.T) {
	r, err := New(true)
	require.NoError(t, err)

	out := r.Draw(blank(200, 150), []Box{
		{Detection: detection.Detection{Class: "drone", Confidence: 0.9, BBox: detection.BBox{10, 40, 60, 90}}, Level: threat.LevelHigh},
		{Detection: detection.Detection{Class: "car", Confidence: 0.5, BBox: detection.BBox{100, 40, 150, 90}}, Level: threat.LevelMedium},
	})

	assert.Equal(t, ColorHigh, out.RGBAAt(10, 65))
	assert.Equal(t, ColorMedium, out.RGBAAt(100, 65))
}

func TestDraw_NoBoxes(t *testing.T) {
	r, err := New(false)
	require.NoError(t, err)

	src := blank(10, 10)
	out := r.Draw(src, nil)
	assert.Equal(t, src.Pix, out.Pix)
}
