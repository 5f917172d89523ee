package avplay

import (
	"image/color"
	"testing"
)

func TestPixelFormat_String(t *testing.T) {
	tests := []struct {
		format PixelFormat
		want   string
	}{
		{PixelFormatI420, "I420"},
		{PixelFormatNV12, "NV12"},
		{PixelFormatRGB24, "RGB24"},
		{PixelFormatRGBA32, "RGBA32"},
		{PixelFormatBGRA32, "BGRA32"},
		{PixelFormatJ420, "J420"},
		{PixelFormatGray8, "GRAY8"},
		{PixelFormat(99), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.format.String(); got != tt.want {
				t.Errorf("PixelFormat.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPixelFormat_PlaneCount(t *testing.T) {
	tests := []struct {
		format PixelFormat
		want   int
	}{
		{PixelFormatI420, 3},
		{PixelFormatYUV422P, 3},
		{PixelFormatNV12, 2},
		{PixelFormatRGB24, 1},
		{PixelFormatGray8, 1},
		{PixelFormatUnknown, 0},
	}

	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			if got := tt.format.PlaneCount(); got != tt.want {
				t.Errorf("PixelFormat.PlaneCount() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSampleFormat_Layout(t *testing.T) {
	tests := []struct {
		format SampleFormat
		bytes  int
		planar bool
		packed SampleFormat
	}{
		{SampleFormatU8, 1, false, SampleFormatU8},
		{SampleFormatS16, 2, false, SampleFormatS16},
		{SampleFormatF32, 4, false, SampleFormatF32},
		{SampleFormatF64, 8, false, SampleFormatF64},
		{SampleFormatS16P, 2, true, SampleFormatS16},
		{SampleFormatF32P, 4, true, SampleFormatF32},
		{SampleFormatF64P, 8, true, SampleFormatF64},
		{SampleFormat(99), 0, false, SampleFormat(99)},
	}

	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			if got := tt.format.BytesPerSample(); got != tt.bytes {
				t.Errorf("BytesPerSample() = %v, want %v", got, tt.bytes)
			}
			if got := tt.format.Planar(); got != tt.planar {
				t.Errorf("Planar() = %v, want %v", got, tt.planar)
			}
			if got := tt.format.Packed(); got != tt.packed {
				t.Errorf("Packed() = %v, want %v", got, tt.packed)
			}
		})
	}
}

func TestRational_Conversions(t *testing.T) {
	tests := []struct {
		name  string
		tb    Rational
		ticks int64
		ms    int64
	}{
		{"millis", Rational{1, 1000}, 1500, 1500},
		{"mpegts", Rational{1, 90000}, 90000, 1000},
		{"audio", Rational{1, 48000}, 1024, 21},
		{"frames", Rational{1001, 30000}, 30, 1001},
		{"negative", Rational{1, 1000}, -40, -40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tb.TicksToMillis(tt.ticks); got != tt.ms {
				t.Errorf("TicksToMillis(%d) = %d, want %d", tt.ticks, got, tt.ms)
			}
		})
	}

	if got := (Rational{1, 90000}).MillisToTicks(1000); got != 90000 {
		t.Errorf("MillisToTicks = %d, want 90000", got)
	}
	if got := (Rational{}).TicksToMillis(10); got != 0 {
		t.Errorf("zero time base TicksToMillis = %d, want 0", got)
	}
	if (Rational{0, 1}).Valid() || !(Rational{1, 25}).Valid() {
		t.Error("Valid() mismatch")
	}
}

func TestI420Size(t *testing.T) {
	tests := []struct {
		width, height int
		want          int
	}{
		{1920, 1080, 1920*1080 + 2*(960*540)},
		{1280, 720, 1280*720 + 2*(640*360)},
		{640, 480, 640*480 + 2*(320*240)},
		{3, 3, 9 + 2*4},
	}

	for _, tt := range tests {
		if got := I420Size(tt.width, tt.height); got != tt.want {
			t.Errorf("I420Size(%d, %d) = %d, want %d", tt.width, tt.height, got, tt.want)
		}
	}
}

func TestRaster_Resize(t *testing.T) {
	r := NewRaster(4, 4)
	if len(r.Pix) != 48 || r.Stride != 12 {
		t.Fatalf("NewRaster: len %d stride %d", len(r.Pix), r.Stride)
	}
	backing := &r.Pix[0]

	r.Resize(2, 2)
	if r.Width != 2 || r.Height != 2 || r.Stride != 6 || len(r.Pix) != 12 {
		t.Errorf("Resize(2, 2) = %dx%d stride %d len %d", r.Width, r.Height, r.Stride, len(r.Pix))
	}
	if &r.Pix[0] != backing {
		t.Error("shrinking should reuse the buffer")
	}

	r.Resize(8, 8)
	if len(r.Pix) != 8*8*3 {
		t.Errorf("Resize(8, 8) len = %d", len(r.Pix))
	}
}

func TestRaster_CloneAndAt(t *testing.T) {
	r := NewRaster(2, 1)
	copy(r.Pix, []byte{10, 20, 30, 40, 50, 60})

	c := r.Clone()
	r.Pix[0] = 0
	if c.Pix[0] != 10 {
		t.Error("Clone shares pixel memory")
	}

	if got := c.At(1, 0); got != (color.RGBA{40, 50, 60, 255}) {
		t.Errorf("At(1, 0) = %v", got)
	}
	if got := c.At(5, 5); got != (color.RGBA{}) {
		t.Errorf("At out of bounds = %v", got)
	}
	if r, g, b := c.RGBAt(0, 0); r != 10 || g != 20 || b != 30 {
		t.Errorf("RGBAt(0, 0) = %d %d %d", r, g, b)
	}
}

func TestPacket_Clone(t *testing.T) {
	p := &Packet{StreamIndex: 2, Data: []byte{1, 2, 3}, PTS: 10, Duration: 5, FrameType: FrameTypeKey}
	c := p.Clone()
	p.Data[0] = 9
	if c.Data[0] != 1 || c.PTS != 10 || c.StreamIndex != 2 || c.FrameType != FrameTypeKey {
		t.Errorf("Clone = %+v", c)
	}
}
