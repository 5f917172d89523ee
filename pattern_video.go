package avplay

import (
	"encoding/binary"
	"math"
)

// averrorInvalidData mirrors AVERROR_INVALIDDATA so pattern failures look like
// native ones.
const averrorInvalidData = -1094995529

// patternVideoDecoder renders I420 test pictures.
type patternVideoDecoder struct {
	cfg     PatternConfig
	info    StreamInfo
	checker int

	// Reused frame buffer
	frameData []byte
	pic       Picture
}

func newPatternVideoDecoder(cfg PatternConfig, info StreamInfo) *patternVideoDecoder {
	return &patternVideoDecoder{cfg: cfg, info: info, checker: 32}
}

func (d *patternVideoDecoder) CodecName() string     { return d.info.CodecName }
func (d *patternVideoDecoder) LongCodecName() string { return d.info.LongCodecName }

func (d *patternVideoDecoder) DecodeVideo(pkt *Packet) (*Picture, error) {
	if len(pkt.Data) < 8 {
		return nil, &NativeError{Op: "pattern video decode", Code: averrorInvalidData, Msg: "short packet"}
	}
	frame := binary.LittleEndian.Uint32(pkt.Data)
	w := int(binary.LittleEndian.Uint16(pkt.Data[4:]))
	h := int(binary.LittleEndian.Uint16(pkt.Data[6:]))
	if w < 2 || h < 2 {
		return nil, &NativeError{Op: "pattern video decode", Code: averrorInvalidData, Msg: "invalid size"}
	}

	d.allocate(w, h)
	yPlane, uPlane, vPlane := d.pic.Data[0], d.pic.Data[1], d.pic.Data[2]
	switch d.cfg.Video {
	case PatternGradient:
		generateGradient(yPlane, uPlane, vPlane, w, h)
	case PatternCheckerboard:
		generateCheckerboard(yPlane, uPlane, vPlane, w, h, d.checker)
	case PatternMovingBox:
		generateMovingBox(yPlane, uPlane, vPlane, w, h, uint64(frame))
	case PatternNoise:
		generateNoise(yPlane, uPlane, vPlane, uint64(frame)+1)
	default:
		generateColorBars(yPlane, uPlane, vPlane, w, h)
	}
	return &d.pic, nil
}

// allocate sizes the I420 buffer for w x h, reusing capacity.
func (d *patternVideoDecoder) allocate(w, h int) {
	if d.pic.Width == w && d.pic.Height == h {
		return
	}
	cw, ch := (w+1)/2, (h+1)/2
	ySize, uvSize := w*h, cw*ch
	if cap(d.frameData) < ySize+2*uvSize {
		d.frameData = make([]byte, ySize+2*uvSize)
	}
	d.frameData = d.frameData[:ySize+2*uvSize]
	d.pic = Picture{
		Data: [][]byte{
			d.frameData[:ySize],
			d.frameData[ySize : ySize+uvSize],
			d.frameData[ySize+uvSize:],
		},
		Stride: []int{w, cw, cw},
		Width:  w,
		Height: h,
		Format: PixelFormatI420,
	}
}

func (d *patternVideoDecoder) DecodeAudio([]byte, *Packet) (int, *SampleFrame, error) {
	return 0, nil, &NativeError{Op: "pattern decode", Code: -22, Msg: "not an audio decoder"}
}

func (d *patternVideoDecoder) DecodeSubtitle(*Packet) (*SubtitleFrame, error) {
	return nil, &NativeError{Op: "pattern decode", Code: -22, Msg: "not a subtitle decoder"}
}

func (d *patternVideoDecoder) SubtitleHeader() string { return "" }
func (d *patternVideoDecoder) Flush()                 {}
func (d *patternVideoDecoder) Close() error           { return nil }

// SMPTE color bars (simplified 8-bar pattern)
var colorBarsRGB = [8][3]uint8{
	{192, 192, 192}, // White (75%)
	{192, 192, 0},   // Yellow
	{0, 192, 192},   // Cyan
	{0, 192, 0},     // Green
	{192, 0, 192},   // Magenta
	{192, 0, 0},     // Red
	{0, 0, 192},     // Blue
	{16, 16, 16},    // Black
}

func generateColorBars(yPlane, uPlane, vPlane []byte, w, h int) {
	var bars [8][3]uint8
	for i, rgb := range colorBarsRGB {
		bars[i][0], bars[i][1], bars[i][2] = rgbToYUV(rgb[0], rgb[1], rgb[2])
	}
	barWidth := max(w/8, 1)
	cw := (w + 1) / 2

	for x := 0; x < w; x++ {
		yPlane[x] = bars[min(x/barWidth, 7)][0]
	}
	for y := 1; y < h; y++ {
		copy(yPlane[y*w:(y+1)*w], yPlane[:w])
	}
	for x := 0; x < cw; x++ {
		bar := bars[min(2*x/barWidth, 7)]
		uPlane[x], vPlane[x] = bar[1], bar[2]
	}
	for y := 1; y < (h+1)/2; y++ {
		copy(uPlane[y*cw:(y+1)*cw], uPlane[:cw])
		copy(vPlane[y*cw:(y+1)*cw], vPlane[:cw])
	}
}

func generateGradient(yPlane, uPlane, vPlane []byte, w, h int) {
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			// Horizontal gradient from black to white
			yPlane[y*w+x] = uint8((x * 255) / w)
		}
	}
	fillNeutralChroma(uPlane, vPlane)
}

func generateCheckerboard(yPlane, uPlane, vPlane []byte, w, h, size int) {
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if ((x/size)+(y/size))%2 == 0 {
				yPlane[y*w+x] = 235
			} else {
				yPlane[y*w+x] = 16
			}
		}
	}
	fillNeutralChroma(uPlane, vPlane)
}

// generateNoise fills luma with xorshift64 noise seeded by the frame number.
func generateNoise(yPlane, uPlane, vPlane []byte, seed uint64) {
	state := seed * 0x9E3779B97F4A7C15
	for i := range yPlane {
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		yPlane[i] = uint8(state)
	}
	fillNeutralChroma(uPlane, vPlane)
}

func generateMovingBox(yPlane, uPlane, vPlane []byte, w, h int, frameNum uint64) {
	for i := range yPlane {
		yPlane[i] = 16
	}
	fillNeutralChroma(uPlane, vPlane)

	// Box moves in a circle
	boxSize := max(min(w, h)/4, 2)
	radius := float64(min(w, h)) / 4
	angle := float64(frameNum) * 0.05
	boxX := w/2 + int(radius*math.Cos(angle)) - boxSize/2
	boxY := h/2 + int(radius*math.Sin(angle)) - boxSize/2

	for y := max(boxY, 0); y < boxY+boxSize && y < h; y++ {
		for x := max(boxX, 0); x < boxX+boxSize && x < w; x++ {
			yPlane[y*w+x] = 235
		}
	}
}

func fillNeutralChroma(uPlane, vPlane []byte) {
	for i := range uPlane {
		uPlane[i] = 128
		vPlane[i] = 128
	}
}

// rgbToYUV converts RGB to limited range YUV (BT.601).
func rgbToYUV(r, g, b uint8) (y, u, v uint8) {
	yf := 16.0 + 65.481*float64(r)/255.0 + 128.553*float64(g)/255.0 + 24.966*float64(b)/255.0
	uf := 128.0 - 37.797*float64(r)/255.0 - 74.203*float64(g)/255.0 + 112.0*float64(b)/255.0
	vf := 128.0 + 112.0*float64(r)/255.0 - 93.786*float64(g)/255.0 - 18.214*float64(b)/255.0

	y = uint8(math.Round(clamp(yf, 16, 235)))
	u = uint8(math.Round(clamp(uf, 16, 240)))
	v = uint8(math.Round(clamp(vf, 16, 240)))
	return
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
