package avplay

import "fmt"

// ScaleMode defines how scaling should handle aspect ratio mismatches.
type ScaleMode int

const (
	// ScaleModeFit scales to fit within target dimensions, preserving aspect ratio (letterboxed).
	ScaleModeFit ScaleMode = iota
	// ScaleModeFill scales to fill target dimensions, preserving aspect ratio (may crop).
	ScaleModeFill
	// ScaleModeStretch scales to exactly match target dimensions (may distort).
	ScaleModeStretch
)

func (m ScaleMode) String() string {
	switch m {
	case ScaleModeFit:
		return "fit"
	case ScaleModeFill:
		return "fill"
	case ScaleModeStretch:
		return "stretch"
	default:
		return "unknown"
	}
}

// ParseScaleMode parses "fit", "fill" or "stretch".
func ParseScaleMode(s string) (ScaleMode, error) {
	switch s {
	case "fit", "":
		return ScaleModeFit, nil
	case "fill":
		return ScaleModeFill, nil
	case "stretch":
		return ScaleModeStretch, nil
	}
	return ScaleModeFit, fmt.Errorf("%w: unknown scale mode %q", ErrArgument, s)
}

// RasterScaler scales RGB24 rasters to a fixed output size.
type RasterScaler struct {
	dstWidth, dstHeight int
	mode                ScaleMode

	// Pre-allocated output raster
	out *Raster
}

// NewRasterScaler creates a scaler producing dstWidth x dstHeight rasters.
func NewRasterScaler(dstWidth, dstHeight int, mode ScaleMode) (*RasterScaler, error) {
	if dstWidth <= 0 || dstHeight <= 0 {
		return nil, argErrorf("invalid scale target %dx%d", dstWidth, dstHeight)
	}
	return &RasterScaler{
		dstWidth:  dstWidth,
		dstHeight: dstHeight,
		mode:      mode,
		out:       NewRaster(dstWidth, dstHeight),
	}, nil
}

// Size returns the output dimensions.
func (s *RasterScaler) Size() (int, int) { return s.dstWidth, s.dstHeight }

// Scale returns src scaled to the target size. The returned raster is owned by
// the scaler and reused by the next call. src is returned as-is when it already
// has the target size.
func (s *RasterScaler) Scale(src *Raster) *Raster {
	if src.Width == s.dstWidth && src.Height == s.dstHeight {
		return src
	}
	if src.Width <= 0 || src.Height <= 0 {
		return src
	}

	// Calculate source region and destination rectangle based on scale mode
	srcX, srcY, srcW, srcH := s.calculateSourceRegion(src.Width, src.Height)
	dstX, dstY, dstW, dstH := 0, 0, s.dstWidth, s.dstHeight
	if s.mode == ScaleModeFit {
		dstW, dstH = CalculateScaledSize(src.Width, src.Height, s.dstWidth, s.dstHeight, ScaleModeFit)
		dstW, dstH = min(dstW, s.dstWidth), min(dstH, s.dstHeight)
		dstX, dstY = (s.dstWidth-dstW)/2, (s.dstHeight-dstH)/2
		clear(s.out.Pix)
	}

	scaleRGB(src.Pix, src.Stride, srcX, srcY, srcW, srcH,
		s.out.Pix[dstY*s.out.Stride+dstX*3:], s.out.Stride, dstW, dstH)
	return s.out
}

// calculateSourceRegion determines what region of the source to use based on scale mode.
func (s *RasterScaler) calculateSourceRegion(srcW, srcH int) (x, y, w, h int) {
	if s.mode != ScaleModeFill {
		return 0, 0, srcW, srcH
	}

	// Crop source to match target aspect ratio
	srcAspect := float64(srcW) / float64(srcH)
	dstAspect := float64(s.dstWidth) / float64(s.dstHeight)
	if srcAspect > dstAspect {
		newW := max(int(float64(srcH)*dstAspect), 1)
		return (srcW - newW) / 2, 0, newW, srcH
	} else if srcAspect < dstAspect {
		newH := max(int(float64(srcW)/dstAspect), 1)
		return 0, (srcH - newH) / 2, srcW, newH
	}
	return 0, 0, srcW, srcH
}

// scaleRGB scales a three-channel region using bilinear interpolation in 16.16
// fixed point.
func scaleRGB(src []byte, srcStride, srcX, srcY, srcW, srcH int,
	dst []byte, dstStride, dstW, dstH int) {

	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return
	}

	xRatio := (srcW << 16) / dstW
	yRatio := (srcH << 16) / dstH

	for y := 0; y < dstH; y++ {
		srcYFP := y * yRatio
		y0 := srcYFP>>16 + srcY
		y1 := y0 + 1
		if y1 >= srcY+srcH {
			y1 = y0
		}
		yWeight := srcYFP & 0xFFFF
		row0 := src[y0*srcStride:]
		row1 := src[y1*srcStride:]
		out := dst[y*dstStride:]

		for x := 0; x < dstW; x++ {
			srcXFP := x * xRatio
			x0 := srcXFP>>16 + srcX
			x1 := x0 + 1
			if x1 >= srcX+srcW {
				x1 = x0
			}
			xWeight := srcXFP & 0xFFFF

			for c := 0; c < 3; c++ {
				p00 := int(row0[x0*3+c])
				p10 := int(row0[x1*3+c])
				p01 := int(row1[x0*3+c])
				p11 := int(row1[x1*3+c])

				top := (p00*(0x10000-xWeight) + p10*xWeight) >> 16
				bottom := (p01*(0x10000-xWeight) + p11*xWeight) >> 16
				out[x*3+c] = byte((top*(0x10000-yWeight) + bottom*yWeight) >> 16)
			}
		}
	}
}

// CalculateScaledSize returns the output dimensions when scaling with a given mode.
// This is useful for determining letterbox dimensions in ScaleModeFit.
func CalculateScaledSize(srcW, srcH, maxW, maxH int, mode ScaleMode) (w, h int) {
	if mode != ScaleModeFit || srcW <= 0 || srcH <= 0 {
		return maxW, maxH
	}
	srcAspect := float64(srcW) / float64(srcH)
	dstAspect := float64(maxW) / float64(maxH)
	if srcAspect > dstAspect {
		// Source is wider, fit to width
		w = maxW
		h = int(float64(maxW) / srcAspect)
	} else {
		// Source is taller, fit to height
		h = maxH
		w = int(float64(maxH) * srcAspect)
	}
	return max(w, 1), max(h, 1)
}
