package avplay

// FrameConverter converts decoded pictures from their native pixel layout to
// RGB24 rasters. Conversion uses BT.601 fixed-point coefficients; J420 is
// treated as full range, every other YUV layout as limited range.
type FrameConverter struct {
	format PixelFormat
	width  int
	height int

	// Per-format plane geometry, re-derived on reconfigure.
	chromaShiftX int
	chromaShiftY int
	fullRange    bool
}

// NewFrameConverter returns a converter for pictures of the given layout and
// size.
func NewFrameConverter(format PixelFormat, width, height int) (*FrameConverter, error) {
	c := &FrameConverter{}
	if err := c.reconfigure(format, width, height); err != nil {
		return nil, err
	}
	return c, nil
}

// Format returns the current source layout.
func (c *FrameConverter) Format() PixelFormat { return c.format }

// Size returns the current source dimensions.
func (c *FrameConverter) Size() (int, int) { return c.width, c.height }

func (c *FrameConverter) reconfigure(format PixelFormat, width, height int) error {
	if width <= 0 || height <= 0 {
		return argErrorf("invalid picture size %dx%d", width, height)
	}
	c.chromaShiftX, c.chromaShiftY, c.fullRange = 0, 0, false
	switch format {
	case PixelFormatI420, PixelFormatNV12:
		c.chromaShiftX, c.chromaShiftY = 1, 1
	case PixelFormatJ420:
		c.chromaShiftX, c.chromaShiftY, c.fullRange = 1, 1, true
	case PixelFormatYUV422P:
		c.chromaShiftX = 1
	case PixelFormatYUV444P, PixelFormatRGB24, PixelFormatBGR24,
		PixelFormatRGBA32, PixelFormatBGRA32, PixelFormatGray8:
	default:
		return argErrorf("unsupported pixel format %s", format)
	}
	c.format, c.width, c.height = format, width, height
	return nil
}

// Convert writes pic into dst, resizing dst when the picture dimensions differ.
// A change of layout or dimensions re-derives the converter state.
func (c *FrameConverter) Convert(pic *Picture, dst *Raster) error {
	if pic.Format != c.format || pic.Width != c.width || pic.Height != c.height {
		if err := c.reconfigure(pic.Format, pic.Width, pic.Height); err != nil {
			return err
		}
	}
	if err := c.checkPlanes(pic); err != nil {
		return err
	}
	dst.Resize(c.width, c.height)

	switch c.format {
	case PixelFormatRGB24:
		for y := 0; y < c.height; y++ {
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+c.width*3], pic.Data[0][y*pic.Stride[0]:])
		}
	case PixelFormatBGR24:
		c.convertPacked(pic, dst, 3, 2, 1, 0)
	case PixelFormatRGBA32:
		c.convertPacked(pic, dst, 4, 0, 1, 2)
	case PixelFormatBGRA32:
		c.convertPacked(pic, dst, 4, 2, 1, 0)
	case PixelFormatGray8:
		for y := 0; y < c.height; y++ {
			src := pic.Data[0][y*pic.Stride[0]:]
			row := dst.Pix[y*dst.Stride:]
			for x := 0; x < c.width; x++ {
				v := src[x]
				row[x*3], row[x*3+1], row[x*3+2] = v, v, v
			}
		}
	case PixelFormatNV12:
		c.convertSemiPlanar(pic, dst)
	default:
		c.convertPlanar(pic, dst)
	}
	return nil
}

func (c *FrameConverter) convertPacked(pic *Picture, dst *Raster, bpp, ri, gi, bi int) {
	for y := 0; y < c.height; y++ {
		src := pic.Data[0][y*pic.Stride[0]:]
		row := dst.Pix[y*dst.Stride:]
		for x := 0; x < c.width; x++ {
			p := src[x*bpp:]
			row[x*3], row[x*3+1], row[x*3+2] = p[ri], p[gi], p[bi]
		}
	}
}

func (c *FrameConverter) convertPlanar(pic *Picture, dst *Raster) {
	yp, up, vp := pic.Data[0], pic.Data[1], pic.Data[2]
	ys, us, vs := pic.Stride[0], pic.Stride[1], pic.Stride[2]
	for y := 0; y < c.height; y++ {
		yRow := yp[y*ys:]
		cy := y >> c.chromaShiftY
		uRow, vRow := up[cy*us:], vp[cy*vs:]
		row := dst.Pix[y*dst.Stride:]
		for x := 0; x < c.width; x++ {
			cx := x >> c.chromaShiftX
			row[x*3], row[x*3+1], row[x*3+2] = yuvToRGB(yRow[x], uRow[cx], vRow[cx], c.fullRange)
		}
	}
}

func (c *FrameConverter) convertSemiPlanar(pic *Picture, dst *Raster) {
	yp, uv := pic.Data[0], pic.Data[1]
	ys, uvs := pic.Stride[0], pic.Stride[1]
	for y := 0; y < c.height; y++ {
		yRow := yp[y*ys:]
		uvRow := uv[(y>>1)*uvs:]
		row := dst.Pix[y*dst.Stride:]
		for x := 0; x < c.width; x++ {
			cx := (x >> 1) * 2
			row[x*3], row[x*3+1], row[x*3+2] = yuvToRGB(yRow[x], uvRow[cx], uvRow[cx+1], false)
		}
	}
}

// checkPlanes verifies every plane covers the rows the conversion reads.
func (c *FrameConverter) checkPlanes(pic *Picture) error {
	n := c.format.PlaneCount()
	if len(pic.Data) < n || len(pic.Stride) < n {
		return argErrorf("%s picture has %d planes, want %d", c.format, len(pic.Data), n)
	}
	for i := 0; i < n; i++ {
		w, h := c.planeSize(i)
		if pic.Stride[i] < w {
			return argErrorf("%s plane %d stride %d below row size %d", c.format, i, pic.Stride[i], w)
		}
		if need := (h-1)*pic.Stride[i] + w; len(pic.Data[i]) < need {
			return argErrorf("%s plane %d has %d bytes, want %d", c.format, i, len(pic.Data[i]), need)
		}
	}
	return nil
}

// planeSize returns the row size in bytes and the row count of plane i.
func (c *FrameConverter) planeSize(i int) (int, int) {
	cw := (c.width + (1 << c.chromaShiftX) - 1) >> c.chromaShiftX
	ch := (c.height + (1 << c.chromaShiftY) - 1) >> c.chromaShiftY
	switch c.format {
	case PixelFormatRGB24, PixelFormatBGR24:
		return c.width * 3, c.height
	case PixelFormatRGBA32, PixelFormatBGRA32:
		return c.width * 4, c.height
	case PixelFormatNV12:
		if i == 1 {
			return cw * 2, ch
		}
	}
	if i == 0 {
		return c.width, c.height
	}
	return cw, ch
}

// yuvToRGB converts one BT.601 sample.
func yuvToRGB(y, u, v uint8, fullRange bool) (uint8, uint8, uint8) {
	d := int32(u) - 128
	e := int32(v) - 128
	if fullRange {
		c := int32(y) << 8
		return clampByte((c + 359*e + 128) >> 8),
			clampByte((c - 88*d - 183*e + 128) >> 8),
			clampByte((c + 454*d + 128) >> 8)
	}
	c := 298 * (int32(y) - 16)
	return clampByte((c + 409*e + 128) >> 8),
		clampByte((c - 100*d - 208*e + 128) >> 8),
		clampByte((c + 516*d + 128) >> 8)
}

func clampByte(v int32) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
