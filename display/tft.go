//go:build tinygo

package display

import (
	"image/color"

	"tinygo.org/x/drivers/st7789"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

const (
	lineHeight = 12
	marginX    = 2
)

var (
	textColor = color.RGBA{R: 0xD3, G: 0xD3, B: 0xD3, A: 0xFF}
	darkText  = color.RGBA{A: 0xFF}

	backgrounds = [...]color.RGBA{
		Normal:   {R: 0x7B, G: 0x7D, B: 0x7B, A: 0xFF},
		Progress: {A: 0xFF},
		OK:       {G: 0xFF, A: 0xFF},
		Alert:    {R: 0xFF, A: 0xFF},
	}
)

// TFT draws screens on an ST7789 panel.
type TFT struct {
	dev *st7789.Device
}

// NewTFT wraps an already configured panel.
func NewTFT(dev *st7789.Device) *TFT {
	return &TFT{dev: dev}
}

func (t *TFT) Show(s Screen) {
	bg := backgrounds[Normal]
	if int(s.Tone) < len(backgrounds) {
		bg = backgrounds[s.Tone]
	}
	fg := textColor
	if s.Tone == OK {
		fg = darkText
	}
	t.dev.FillScreen(bg)

	y := int16(lineHeight)
	_, height := t.dev.Size()
	for _, line := range s.Lines {
		if y > height {
			break
		}
		tinyfont.WriteLine(t.dev, &proggy.TinySZ8pt7b, marginX, y, line, fg)
		y += lineHeight
	}
}
