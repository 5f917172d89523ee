package avplay

import (
	"encoding/binary"
	"math"
)

// patternAudioDecoder synthesizes a tone. Each packet holds 8-byte chunks of
// (sample offset, sample count); one chunk decodes into one frame and a zero
// count decodes into nothing.
type patternAudioDecoder struct {
	cfg  PatternConfig
	info StreamInfo

	planes [][]byte
	frame  SampleFrame
}

func newPatternAudioDecoder(cfg PatternConfig, info StreamInfo) *patternAudioDecoder {
	return &patternAudioDecoder{cfg: cfg, info: info}
}

func (d *patternAudioDecoder) CodecName() string     { return d.info.CodecName }
func (d *patternAudioDecoder) LongCodecName() string { return d.info.LongCodecName }

func (d *patternAudioDecoder) DecodeAudio(data []byte, _ *Packet) (int, *SampleFrame, error) {
	if len(data) < 8 {
		return 0, nil, &NativeError{Op: "pattern audio decode", Code: averrorInvalidData, Msg: "truncated chunk"}
	}
	offset := int64(binary.LittleEndian.Uint32(data))
	n := int(binary.LittleEndian.Uint32(data[4:]))
	if n == 0 {
		return 8, nil, nil
	}
	d.synthesize(offset, n)
	return 8, &d.frame, nil
}

func (d *patternAudioDecoder) synthesize(offset int64, n int) {
	ch := d.cfg.Channels
	f := d.cfg.SampleFormat
	bps := f.BytesPerSample()

	planeCount, planeSize := 1, n*ch*bps
	if f.Planar() {
		planeCount, planeSize = ch, n*bps
	}
	if len(d.planes) != planeCount {
		d.planes = make([][]byte, planeCount)
	}
	for i := range d.planes {
		if cap(d.planes[i]) < planeSize {
			d.planes[i] = make([]byte, planeSize)
		}
		d.planes[i] = d.planes[i][:planeSize]
	}

	step := 2 * math.Pi * d.cfg.Frequency / float64(d.cfg.SampleRate)
	for s := 0; s < n; s++ {
		v := d.sample(float64(offset+int64(s)) * step)
		for c := 0; c < ch; c++ {
			if f.Planar() {
				putSample(f.Packed(), d.planes[c][s*bps:], v)
			} else {
				putSample(f, d.planes[0][(s*ch+c)*bps:], v)
			}
		}
	}

	d.frame = SampleFrame{
		Data:       d.planes,
		Format:     f,
		SampleRate: d.cfg.SampleRate,
		Channels:   ch,
		Samples:    n,
	}
}

// sample returns the waveform value in [-1, 1] at phase.
func (d *patternAudioDecoder) sample(phase float64) float64 {
	switch d.cfg.Wave {
	case WaveSquare:
		if math.Sin(phase) >= 0 {
			return d.cfg.Amplitude
		}
		return -d.cfg.Amplitude
	case WaveSilence:
		return 0
	default:
		return d.cfg.Amplitude * math.Sin(phase)
	}
}

func putSample(f SampleFormat, dst []byte, v float64) {
	switch f {
	case SampleFormatU8:
		dst[0] = uint8(int(math.Round(v*127)) + 128)
	case SampleFormatS16:
		binary.LittleEndian.PutUint16(dst, uint16(int16(math.Round(v*32767))))
	case SampleFormatS32:
		binary.LittleEndian.PutUint32(dst, uint32(int32(math.Round(v*2147483647))))
	case SampleFormatF32:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(float32(v)))
	case SampleFormatF64:
		binary.LittleEndian.PutUint64(dst, math.Float64bits(v))
	}
}

func (d *patternAudioDecoder) DecodeVideo(*Packet) (*Picture, error) {
	return nil, &NativeError{Op: "pattern decode", Code: -22, Msg: "not a video decoder"}
}

func (d *patternAudioDecoder) DecodeSubtitle(*Packet) (*SubtitleFrame, error) {
	return nil, &NativeError{Op: "pattern decode", Code: -22, Msg: "not a subtitle decoder"}
}

func (d *patternAudioDecoder) SubtitleHeader() string { return "" }
func (d *patternAudioDecoder) Flush()                 {}
func (d *patternAudioDecoder) Close() error           { return nil }
