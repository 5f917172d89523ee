package avplay

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
)

// Subtitle is a renderable subtitle event: *BitmapSubtitle, *TextSubtitle or
// *StyledSubtitle.
type Subtitle interface {
	// PlainText returns the text content without styling, "" for bitmaps.
	PlainText() string
}

// BitmapSubtitle is an indexed image placed at (X, Y) on the video frame.
type BitmapSubtitle struct {
	X, Y  int
	Image *image.Paletted
}

func (s *BitmapSubtitle) PlainText() string { return "" }

// Bounds returns the image rectangle translated to its on-frame origin.
func (s *BitmapSubtitle) Bounds() image.Rectangle {
	return s.Image.Bounds().Add(image.Pt(s.X, s.Y))
}

// TextSubtitle is unstyled UTF-8 text.
type TextSubtitle struct {
	Text string
}

func (s *TextSubtitle) PlainText() string { return s.Text }

// SubtitleRenderer turns decoded regions into subtitles. Dialogue parsers are
// compiled lazily per stream index from the decoder header.
type SubtitleRenderer struct {
	parsers map[int]*DialogueParser
}

// NewSubtitleRenderer returns a renderer with no compiled parsers.
func NewSubtitleRenderer() *SubtitleRenderer {
	return &SubtitleRenderer{parsers: make(map[int]*DialogueParser)}
}

// Parser returns the compiled dialogue parser for a stream index.
func (r *SubtitleRenderer) Parser(index int) (*DialogueParser, bool) {
	p, ok := r.parsers[index]
	return p, ok
}

// Reset drops every compiled parser.
func (r *SubtitleRenderer) Reset() { clear(r.parsers) }

// Render converts one region. It returns nil for empty regions. header is
// consulted only the first time a dialogue region is seen for index.
func (r *SubtitleRenderer) Render(index int, region *SubtitleRegion, header func() string) (Subtitle, error) {
	switch region.Type {
	case RegionEmpty:
		return nil, nil
	case RegionBitmap:
		return renderBitmap(region), nil
	case RegionText:
		return &TextSubtitle{Text: strings.ToValidUTF8(region.Text, "\ufffd")}, nil
	case RegionDialogue:
		p, ok := r.parsers[index]
		if !ok {
			h := header()
			if strings.TrimSpace(h) == "" {
				return nil, fmt.Errorf("%w: stream #%d has no dialogue header", ErrMalformedDialect, index)
			}
			var err error
			if p, err = CompileDialogue(h); err != nil {
				if !errors.Is(err, ErrMalformedDialect) {
					return nil, err
				}
				// Unusable header: events still render with the default style.
				p = newDialogueParser()
			}
			r.parsers[index] = p
		}
		return p.Parse(region.Text), nil
	default:
		return nil, nil
	}
}

func renderBitmap(region *SubtitleRegion) *BitmapSubtitle {
	w, h := region.Width, region.Height
	img := &image.Paletted{
		Pix:    make([]byte, w*h),
		Stride: w,
		Rect:   image.Rect(0, 0, w, h),
	}
	maxIndex := -1
	for y := 0; y < h; y++ {
		off := y * region.Stride
		if off >= len(region.Pix) {
			break
		}
		row := region.Pix[off:min(off+w, len(region.Pix))]
		copy(img.Pix[y*w:], row)
		for _, v := range row {
			maxIndex = max(maxIndex, int(v))
		}
	}

	n := max(len(region.Palette), maxIndex+1)
	img.Palette = make(color.Palette, n)
	for i := range img.Palette {
		if i >= len(region.Palette) {
			img.Palette[i] = color.NRGBA{}
			continue
		}
		c := region.Palette[i]
		img.Palette[i] = color.NRGBA{
			R: uint8(c >> 16),
			G: uint8(c >> 8),
			B: uint8(c),
			A: uint8(c >> 24),
		}
	}
	return &BitmapSubtitle{X: region.X, Y: region.Y, Image: img}
}
