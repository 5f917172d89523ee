package avplay

import (
	"encoding/binary"
	"math"
)

// SampleConverter converts decoded audio into signed 16-bit little-endian
// interleaved PCM. The output buffer is reused between calls.
type SampleConverter struct {
	out []byte
}

// NewSampleConverter returns a converter with an output buffer sized for the
// given frame size hint.
func NewSampleConverter(channels, samplesHint int) *SampleConverter {
	return &SampleConverter{out: make([]byte, 0, channels*samplesHint*2)}
}

// NeedsConversion reports whether frames in format f must be converted.
func NeedsConversion(f SampleFormat) bool { return f != SampleFormatS16 }

// Convert returns frame as S16 interleaved. When the frame already has that
// layout its first plane is returned without copying.
func (c *SampleConverter) Convert(frame *SampleFrame) ([]byte, error) {
	if frame.Channels <= 0 || frame.Samples < 0 {
		return nil, argErrorf("audio frame with %d channels and %d samples", frame.Channels, frame.Samples)
	}
	bps := frame.Format.BytesPerSample()
	if bps == 0 {
		return nil, argErrorf("unsupported sample format %s", frame.Format)
	}

	total := frame.Samples * frame.Channels
	if !NeedsConversion(frame.Format) {
		if len(frame.Data) == 0 || len(frame.Data[0]) < total*2 {
			return nil, argErrorf("audio plane too short")
		}
		return frame.Data[0][:total*2], nil
	}

	planar := frame.Format.Planar()
	if planar && len(frame.Data) < frame.Channels {
		return nil, argErrorf("planar audio frame has %d planes for %d channels", len(frame.Data), frame.Channels)
	}
	if !planar && len(frame.Data) == 0 {
		return nil, argErrorf("audio frame has no data")
	}
	for i, plane := range frame.Data {
		need := total * bps
		if planar {
			need = frame.Samples * bps
		}
		if (planar && i < frame.Channels || i == 0) && len(plane) < need {
			return nil, argErrorf("audio plane %d too short", i)
		}
	}

	if cap(c.out) < total*2 {
		c.out = make([]byte, total*2)
	}
	c.out = c.out[:total*2]

	packed := frame.Format.Packed()
	for s := 0; s < frame.Samples; s++ {
		for ch := 0; ch < frame.Channels; ch++ {
			var src []byte
			if planar {
				src = frame.Data[ch][s*bps:]
			} else {
				src = frame.Data[0][(s*frame.Channels+ch)*bps:]
			}
			v := toS16(packed, src)
			binary.LittleEndian.PutUint16(c.out[(s*frame.Channels+ch)*2:], uint16(v))
		}
	}
	return c.out, nil
}

func toS16(f SampleFormat, b []byte) int16 {
	switch f {
	case SampleFormatU8:
		return int16(int(b[0])-128) << 8
	case SampleFormatS16:
		return int16(binary.LittleEndian.Uint16(b))
	case SampleFormatS32:
		return int16(int32(binary.LittleEndian.Uint32(b)) >> 16)
	case SampleFormatF32:
		return floatToS16(float64(math.Float32frombits(binary.LittleEndian.Uint32(b))))
	case SampleFormatF64:
		return floatToS16(math.Float64frombits(binary.LittleEndian.Uint64(b)))
	default:
		return 0
	}
}

func floatToS16(v float64) int16 {
	v *= 32768
	switch {
	case v >= math.MaxInt16:
		return math.MaxInt16
	case v <= math.MinInt16:
		return math.MinInt16
	case math.IsNaN(v):
		return 0
	}
	return int16(math.Round(v))
}
