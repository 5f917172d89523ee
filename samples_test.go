package avplay

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func s16At(b []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(b[i*2:]))
}

func TestSampleConverter_PassThrough(t *testing.T) {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint16(data[0:], uint16(1000))
	binary.LittleEndian.PutUint16(data[2:], uint16(0xFC18)) // -1000
	frame := &SampleFrame{Data: [][]byte{data}, Format: SampleFormatS16, Channels: 2, Samples: 2}

	out, err := NewSampleConverter(2, 2).Convert(frame)
	if err != nil {
		t.Fatal(err)
	}
	if &out[0] != &data[0] {
		t.Error("S16 input should not be copied")
	}
	if s16At(out, 0) != 1000 || s16At(out, 1) != -1000 {
		t.Errorf("samples = %d %d", s16At(out, 0), s16At(out, 1))
	}
}

func TestSampleConverter_Formats(t *testing.T) {
	tests := []struct {
		name   string
		format SampleFormat
		put    func(b []byte, v float64)
		in     []float64
		want   []int16
	}{
		{
			name:   "f32",
			format: SampleFormatF32,
			put:    func(b []byte, v float64) { binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v))) },
			in:     []float64{0, 0.5, -1, 2},
			want:   []int16{0, 16384, -32768, 32767},
		},
		{
			name:   "f64",
			format: SampleFormatF64,
			put:    func(b []byte, v float64) { binary.LittleEndian.PutUint64(b, math.Float64bits(v)) },
			in:     []float64{0.25, -0.25},
			want:   []int16{8192, -8192},
		},
		{
			name:   "s32",
			format: SampleFormatS32,
			put:    func(b []byte, v float64) { binary.LittleEndian.PutUint32(b, uint32(int32(v))) },
			in:     []float64{65536 * 100, -65536 * 100},
			want:   []int16{100, -100},
		},
		{
			name:   "u8",
			format: SampleFormatU8,
			put:    func(b []byte, v float64) { b[0] = uint8(v) },
			in:     []float64{128, 0, 255},
			want:   []int16{0, -32768, 127 << 8},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bps := tt.format.BytesPerSample()
			data := make([]byte, len(tt.in)*bps)
			for i, v := range tt.in {
				tt.put(data[i*bps:], v)
			}
			frame := &SampleFrame{Data: [][]byte{data}, Format: tt.format, Channels: 1, Samples: len(tt.in)}
			out, err := NewSampleConverter(1, 0).Convert(frame)
			if err != nil {
				t.Fatal(err)
			}
			if len(out) != len(tt.want)*2 {
				t.Fatalf("len(out) = %d, want %d", len(out), len(tt.want)*2)
			}
			for i, want := range tt.want {
				if got := s16At(out, i); got != want {
					t.Errorf("sample %d = %d, want %d", i, got, want)
				}
			}
		})
	}
}

func TestSampleConverter_PlanarInterleaves(t *testing.T) {
	left := make([]byte, 6)
	right := make([]byte, 6)
	for i := 0; i < 3; i++ {
		binary.LittleEndian.PutUint16(left[i*2:], uint16(i+1))
		binary.LittleEndian.PutUint16(right[i*2:], uint16(100+i))
	}
	frame := &SampleFrame{Data: [][]byte{left, right}, Format: SampleFormatS16P, Channels: 2, Samples: 3}

	out, err := NewSampleConverter(2, 3).Convert(frame)
	if err != nil {
		t.Fatal(err)
	}
	want := []int16{1, 100, 2, 101, 3, 102}
	for i, w := range want {
		if got := s16At(out, i); got != w {
			t.Errorf("sample %d = %d, want %d", i, got, w)
		}
	}
}

func TestSampleConverter_ReusesBuffer(t *testing.T) {
	conv := NewSampleConverter(1, 4)
	frame := &SampleFrame{Data: [][]byte{make([]byte, 16)}, Format: SampleFormatF32, Channels: 1, Samples: 4}
	a, _ := conv.Convert(frame)
	b, _ := conv.Convert(frame)
	if &a[0] != &b[0] {
		t.Error("output buffer reallocated for same-sized frame")
	}
}

func TestSampleConverter_Errors(t *testing.T) {
	conv := NewSampleConverter(2, 16)
	tests := []struct {
		name  string
		frame *SampleFrame
	}{
		{"no channels", &SampleFrame{Format: SampleFormatS16, Samples: 1}},
		{"unknown format", &SampleFrame{Format: SampleFormatUnknown, Channels: 1, Samples: 1, Data: [][]byte{{0, 0}}}},
		{"short s16", &SampleFrame{Format: SampleFormatS16, Channels: 2, Samples: 4, Data: [][]byte{make([]byte, 4)}}},
		{"missing plane", &SampleFrame{Format: SampleFormatF32P, Channels: 2, Samples: 1, Data: [][]byte{make([]byte, 4)}}},
		{"short plane", &SampleFrame{Format: SampleFormatF32P, Channels: 2, Samples: 2, Data: [][]byte{make([]byte, 8), make([]byte, 4)}}},
	}
	for _, tt := range tests {
		if _, err := conv.Convert(tt.frame); !errors.Is(err, ErrArgument) {
			t.Errorf("%s: err = %v, want ErrArgument", tt.name, err)
		}
	}
}
