// Core frame and sample types used across the avplay package.
package avplay

import (
	"image"
	"image/color"
)

// PixelFormat represents native video pixel layouts.
type PixelFormat int

const (
	PixelFormatUnknown PixelFormat = iota - 1
	PixelFormatI420                // YUV 4:2:0 planar, limited range
	PixelFormatNV12                // YUV 4:2:0 semi-planar (Y + interleaved UV)
	PixelFormatRGB24               // Packed RGB, 3 bytes per pixel
	PixelFormatRGBA32              // Packed RGBA, 4 bytes per pixel
	PixelFormatBGRA32              // Packed BGRA, 4 bytes per pixel
	PixelFormatBGR24               // Packed BGR, 3 bytes per pixel
	PixelFormatYUV422P             // YUV 4:2:2 planar
	PixelFormatYUV444P             // YUV 4:4:4 planar
	PixelFormatJ420                // YUV 4:2:0 planar, full range
	PixelFormatGray8               // Luma only
)

func (p PixelFormat) String() string {
	switch p {
	case PixelFormatI420:
		return "I420"
	case PixelFormatNV12:
		return "NV12"
	case PixelFormatRGB24:
		return "RGB24"
	case PixelFormatRGBA32:
		return "RGBA32"
	case PixelFormatBGRA32:
		return "BGRA32"
	case PixelFormatBGR24:
		return "BGR24"
	case PixelFormatYUV422P:
		return "YUV422P"
	case PixelFormatYUV444P:
		return "YUV444P"
	case PixelFormatJ420:
		return "J420"
	case PixelFormatGray8:
		return "GRAY8"
	default:
		return "Unknown"
	}
}

// PlaneCount returns the number of planes for this pixel format.
func (p PixelFormat) PlaneCount() int {
	switch p {
	case PixelFormatI420, PixelFormatJ420, PixelFormatYUV422P, PixelFormatYUV444P:
		return 3
	case PixelFormatNV12:
		return 2
	case PixelFormatRGB24, PixelFormatBGR24, PixelFormatRGBA32, PixelFormatBGRA32, PixelFormatGray8:
		return 1
	default:
		return 0
	}
}

// SampleFormat represents native audio sample formats.
type SampleFormat int

const (
	SampleFormatUnknown SampleFormat = iota - 1
	SampleFormatU8                   // Unsigned 8-bit
	SampleFormatS16                  // Signed 16-bit
	SampleFormatS32                  // Signed 32-bit
	SampleFormatF32                  // 32-bit float
	SampleFormatF64                  // 64-bit float
	SampleFormatU8P                  // Planar variants
	SampleFormatS16P
	SampleFormatS32P
	SampleFormatF32P
	SampleFormatF64P
)

func (s SampleFormat) String() string {
	switch s {
	case SampleFormatU8:
		return "U8"
	case SampleFormatS16:
		return "S16"
	case SampleFormatS32:
		return "S32"
	case SampleFormatF32:
		return "F32"
	case SampleFormatF64:
		return "F64"
	case SampleFormatU8P:
		return "U8P"
	case SampleFormatS16P:
		return "S16P"
	case SampleFormatS32P:
		return "S32P"
	case SampleFormatF32P:
		return "F32P"
	case SampleFormatF64P:
		return "F64P"
	default:
		return "Unknown"
	}
}

// Planar reports whether each channel lives in its own plane.
func (s SampleFormat) Planar() bool {
	return s >= SampleFormatU8P && s <= SampleFormatF64P
}

// Packed returns the interleaved counterpart of a planar format.
func (s SampleFormat) Packed() SampleFormat {
	if s.Planar() {
		return s - (SampleFormatU8P - SampleFormatU8)
	}
	return s
}

// BytesPerSample returns the number of bytes per sample for this format.
func (s SampleFormat) BytesPerSample() int {
	switch s.Packed() {
	case SampleFormatU8:
		return 1
	case SampleFormatS16:
		return 2
	case SampleFormatS32, SampleFormatF32:
		return 4
	case SampleFormatF64:
		return 8
	default:
		return 0
	}
}

// Rational is a stream time base.
type Rational struct {
	Num int64
	Den int64
}

// Valid reports whether the rational can be used as a time base.
func (r Rational) Valid() bool { return r.Num > 0 && r.Den > 0 }

// TicksToMillis converts a tick count into milliseconds with integer truncation:
// ticks * num * 1000 / den.
func (r Rational) TicksToMillis(ticks int64) int64 {
	if r.Den == 0 {
		return 0
	}
	return ticks * r.Num * 1000 / r.Den
}

// MillisToTicks is the inverse of TicksToMillis.
func (r Rational) MillisToTicks(ms int64) int64 {
	if r.Num == 0 {
		return 0
	}
	return ms * r.Den / (r.Num * 1000)
}

// Picture is a decoded video frame in its native layout. Plane data may point
// to native memory and is only valid until the next decode call.
type Picture struct {
	Data   [][]byte    // Plane data (1-3 planes depending on format)
	Stride []int       // Stride for each plane in bytes
	Width  int         // Frame width in pixels
	Height int         // Frame height in pixels
	Format PixelFormat // Native pixel layout
}

// SampleFrame is a decoded audio frame in its native layout. Plane data may
// point to native memory and is only valid until the next decode call.
type SampleFrame struct {
	Data       [][]byte // One plane when packed, one per channel when planar
	Format     SampleFormat
	SampleRate int
	Channels   int
	Samples    int // Samples per channel
}

// Raster is a presentation image: three-byte interleaved RGB.
// It implements image.Image.
type Raster struct {
	Pix    []byte
	Stride int
	Width  int
	Height int
}

// NewRaster allocates a raster of the given size.
func NewRaster(width, height int) *Raster {
	return &Raster{
		Pix:    make([]byte, width*height*3),
		Stride: width * 3,
		Width:  width,
		Height: height,
	}
}

// Resize reallocates the raster when dimensions change. The backing buffer is
// reused when large enough.
func (r *Raster) Resize(width, height int) {
	if r.Width == width && r.Height == height && len(r.Pix) >= width*height*3 {
		return
	}
	size := width * height * 3
	if cap(r.Pix) >= size {
		r.Pix = r.Pix[:size]
	} else {
		r.Pix = make([]byte, size)
	}
	r.Width, r.Height, r.Stride = width, height, width*3
}

// Clone creates a deep copy of the raster.
// Use this when you need to keep a delivered frame beyond its callback.
func (r *Raster) Clone() *Raster {
	clone := &Raster{
		Pix:    make([]byte, len(r.Pix)),
		Stride: r.Stride,
		Width:  r.Width,
		Height: r.Height,
	}
	copy(clone.Pix, r.Pix)
	return clone
}

// ColorModel implements image.Image.
func (r *Raster) ColorModel() color.Model { return color.RGBAModel }

// Bounds implements image.Image.
func (r *Raster) Bounds() image.Rectangle { return image.Rect(0, 0, r.Width, r.Height) }

// At implements image.Image.
func (r *Raster) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= r.Width || y >= r.Height {
		return color.RGBA{}
	}
	i := y*r.Stride + x*3
	return color.RGBA{R: r.Pix[i], G: r.Pix[i+1], B: r.Pix[i+2], A: 0xff}
}

// RGBAt returns the three components of the pixel at (x, y).
func (r *Raster) RGBAt(x, y int) (uint8, uint8, uint8) {
	i := y*r.Stride + x*3
	return r.Pix[i], r.Pix[i+1], r.Pix[i+2]
}

// I420Size returns the total buffer size needed for an I420 frame.
func I420Size(width, height int) int {
	ySize := width * height
	uvSize := ((width + 1) / 2) * ((height + 1) / 2)
	return ySize + uvSize*2
}

// FrameType indicates whether a packet holds a keyframe.
type FrameType int

const (
	FrameTypeUnknown FrameType = iota
	FrameTypeKey               // Can be decoded independently
	FrameTypeDelta             // Requires previous frames
)

func (f FrameType) String() string {
	switch f {
	case FrameTypeKey:
		return "Key"
	case FrameTypeDelta:
		return "Delta"
	default:
		return "Unknown"
	}
}

// Packet is a chunk of compressed data belonging to exactly one stream.
// Data is owned by the demuxer and valid until the next ReadPacket call.
type Packet struct {
	StreamIndex int
	Data        []byte
	PTS         int64 // stream time base ticks
	DTS         int64
	Duration    int64 // stream time base ticks
	FrameType   FrameType
}

// Clone creates a deep copy of the packet.
func (p *Packet) Clone() *Packet {
	clone := *p
	if p.Data != nil {
		clone.Data = make([]byte, len(p.Data))
		copy(clone.Data, p.Data)
	}
	return &clone
}
