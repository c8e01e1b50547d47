// Package render draws detection overlays onto frames.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/arturkwiek/SDD/internal/detection"
	"github.com/arturkwiek/SDD/internal/threat"
)

// Box colours
var (
	ColorDefault = color.RGBA{0, 255, 0, 255}
	ColorLow     = color.RGBA{0, 200, 0, 255}
	ColorMedium  = color.RGBA{255, 165, 0, 255}
	ColorHigh    = color.RGBA{230, 0, 0, 255}
)

const (
	lineWidth = 2.0
	fontSize  = 14.0
)

var (
	fontOnce sync.Once
	fontTTF  *truetype.Font
	fontErr  error
)

func loadFont() (*truetype.Font, error) {
	fontOnce.Do(func() {
		fontTTF, fontErr = truetype.Parse(goregular.TTF)
	})
	return fontTTF, fontErr
}

// Box is one overlay item
type Box struct {
	Detection detection.Detection
	Level     threat.Level // Empty when threat colouring is off
}

// Renderer draws boxes and labels
type Renderer struct {
	face          font.Face
	colorByThreat bool
}

// New creates a renderer. colorByThreat picks box colours from the threat level.
func New(colorByThreat bool) (*Renderer, error) {
	f, err := loadFont()
	if err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}
	return &Renderer{
		face:          truetype.NewFace(f, &truetype.Options{Size: fontSize}),
		colorByThreat: colorByThreat,
	}, nil
}

// Draw returns a copy of img with every box and its "<label> <score>" caption
func (r *Renderer) Draw(img image.Image, boxes []Box) *image.RGBA {
	dc := gg.NewContextForRGBA(toRGBA(img))
	dc.SetFontFace(r.face)
	dc.SetLineWidth(lineWidth)

	for _, b := range boxes {
		d := b.Detection
		c := r.colorFor(b.Level)

		dc.SetColor(c)
		dc.DrawRectangle(d.BBox.XMin(), d.BBox.YMin(), d.BBox.Width(), d.BBox.Height())
		dc.Stroke()

		caption := fmt.Sprintf("%s %.2f", d.Class, d.Confidence)
		tw, th := dc.MeasureString(caption)
		x := d.BBox.XMin()
		y := d.BBox.YMin() - 4
		if y-th < 0 {
			y = d.BBox.YMin() + th + 4
		}

		dc.SetColor(color.RGBA{0, 0, 0, 160})
		dc.DrawRectangle(x, y-th-2, tw+4, th+4)
		dc.Fill()
		dc.SetColor(c)
		dc.DrawString(caption, x+2, y)
	}

	return dc.Image().(*image.RGBA)
}

func (r *Renderer) colorFor(level threat.Level) color.RGBA {
	if !r.colorByThreat {
		return ColorDefault
	}
	switch level {
	case threat.LevelHigh:
		return ColorHigh
	case threat.LevelMedium:
		return ColorMedium
	case threat.LevelLow:
		return ColorLow
	}
	return ColorDefault
}

// toRGBA copies img into a fresh RGBA so the source frame is left untouched
func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
