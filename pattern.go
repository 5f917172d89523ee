package avplay

import (
	"encoding/binary"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// PatternConfig describes a synthetic source. Sources are written as
// "pattern:[video]?key=value&...", for example
//
//	pattern:colorbars?duration=10s&width=640&height=360&fps=30&rate=48000&channels=2
//
// Recognized keys: duration, width, height, fps, video (pattern name or
// "none"), rate, channels, format (u8, s16, s32, f32, f64 and the planar
// s16p, s32p, fltp, dblp), wave (sine, square, silence, none), freq, apf
// (audio frames per packet), samples (samples per frame), gaps (insert a
// zero-frame audio packet after every n packets), subs (comma list of ass,
// text, bitmap), noheader (omit the dialogue header) and resize (time after
// which the video switches to half size).
type PatternConfig struct {
	Duration time.Duration

	Video    PatternType // PatternNone disables the video stream
	Width    int
	Height   int
	FPS      int
	ResizeAt time.Duration // 0 keeps a constant size

	Wave          AudioWave // WaveNone disables the audio stream
	SampleRate    int
	Channels      int
	SampleFormat  SampleFormat
	Frequency     float64
	Amplitude     float64
	FrameSamples  int
	FramesPerPkt  int
	ZeroPacketGap int

	Subtitles      []SubtitleDialect
	OmitDialHeader bool
}

// DefaultPatternConfig returns a 10 second 640x360 colorbars source with a
// 48 kHz stereo tone.
func DefaultPatternConfig() PatternConfig {
	return PatternConfig{
		Duration:     10 * time.Second,
		Video:        PatternColorBars,
		Width:        640,
		Height:       360,
		FPS:          30,
		Wave:         WaveSine,
		SampleRate:   48000,
		Channels:     2,
		SampleFormat: SampleFormatS16,
		Frequency:    440,
		Amplitude:    0.5,
		FrameSamples: 1024,
		FramesPerPkt: 1,
	}
}

// PatternType selects the synthetic video picture.
type PatternType int

const (
	PatternNone         PatternType = iota - 1
	PatternColorBars                // SMPTE color bars
	PatternGradient                 // Horizontal gradient
	PatternCheckerboard             // Checkerboard pattern
	PatternMovingBox                // Moving box (animated)
	PatternNoise                    // Random noise (animated)
)

var patternNames = map[string]PatternType{
	"none":         PatternNone,
	"colorbars":    PatternColorBars,
	"gradient":     PatternGradient,
	"checkerboard": PatternCheckerboard,
	"movingbox":    PatternMovingBox,
	"noise":        PatternNoise,
}

func (p PatternType) String() string {
	for name, v := range patternNames {
		if v == p {
			return name
		}
	}
	return "unknown"
}

// AudioWave selects the synthetic audio waveform.
type AudioWave int

const (
	WaveNone AudioWave = iota - 1
	WaveSine
	WaveSquare
	WaveSilence
)

var waveNames = map[string]AudioWave{
	"none":    WaveNone,
	"sine":    WaveSine,
	"square":  WaveSquare,
	"silence": WaveSilence,
}

var sampleFormatNames = map[string]SampleFormat{
	"u8":   SampleFormatU8,
	"s16":  SampleFormatS16,
	"s32":  SampleFormatS32,
	"f32":  SampleFormatF32,
	"flt":  SampleFormatF32,
	"f64":  SampleFormatF64,
	"dbl":  SampleFormatF64,
	"u8p":  SampleFormatU8P,
	"s16p": SampleFormatS16P,
	"s32p": SampleFormatS32P,
	"fltp": SampleFormatF32P,
	"f32p": SampleFormatF32P,
	"dblp": SampleFormatF64P,
	"f64p": SampleFormatF64P,
}

var dialectNames = map[string]SubtitleDialect{
	"ass":      DialectDialogue,
	"ssa":      DialectDialogue,
	"dialogue": DialectDialogue,
	"text":     DialectText,
	"srt":      DialectText,
	"bitmap":   DialectBitmap,
	"dvd":      DialectBitmap,
}

// ParsePatternSource parses a "pattern:" locator.
func ParsePatternSource(source string) (PatternConfig, error) {
	cfg := DefaultPatternConfig()
	u, err := url.Parse(source)
	if err != nil {
		return cfg, fmt.Errorf("%w: %w", ErrSourceOpen, err)
	}
	if !strings.EqualFold(u.Scheme, patternScheme) {
		return cfg, fmt.Errorf("%w: not a pattern source: %s", ErrSourceOpen, source)
	}
	if name := strings.Trim(u.Opaque, "/"); name != "" {
		p, ok := patternNames[strings.ToLower(name)]
		if !ok {
			return cfg, fmt.Errorf("%w: unknown pattern %q", ErrSourceOpen, name)
		}
		cfg.Video = p
	}

	q := u.Query()
	var errs []string
	intParam := func(key string, dst *int) {
		if v := q.Get(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				errs = append(errs, fmt.Sprintf("%s=%q", key, v))
				return
			}
			*dst = n
		}
	}
	durParam := func(key string, dst *time.Duration) {
		if v := q.Get(key); v != "" {
			d, err := parsePatternDuration(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s=%q", key, v))
				return
			}
			*dst = d
		}
	}

	durParam("duration", &cfg.Duration)
	durParam("resize", &cfg.ResizeAt)
	intParam("width", &cfg.Width)
	intParam("height", &cfg.Height)
	intParam("fps", &cfg.FPS)
	intParam("rate", &cfg.SampleRate)
	intParam("channels", &cfg.Channels)
	intParam("apf", &cfg.FramesPerPkt)
	intParam("samples", &cfg.FrameSamples)
	intParam("gaps", &cfg.ZeroPacketGap)

	if v := q.Get("video"); v != "" {
		p, ok := patternNames[strings.ToLower(v)]
		if !ok {
			errs = append(errs, fmt.Sprintf("video=%q", v))
		}
		cfg.Video = p
	}
	if v := q.Get("wave"); v != "" {
		w, ok := waveNames[strings.ToLower(v)]
		if !ok {
			errs = append(errs, fmt.Sprintf("wave=%q", v))
		}
		cfg.Wave = w
	}
	if v := q.Get("format"); v != "" {
		f, ok := sampleFormatNames[strings.ToLower(v)]
		if !ok {
			errs = append(errs, fmt.Sprintf("format=%q", v))
		}
		cfg.SampleFormat = f
	}
	if v := q.Get("freq"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			errs = append(errs, fmt.Sprintf("freq=%q", v))
		}
		cfg.Frequency = f
	}
	if v := q.Get("subs"); v != "" {
		for _, name := range strings.Split(v, ",") {
			d, ok := dialectNames[strings.ToLower(strings.TrimSpace(name))]
			if !ok {
				errs = append(errs, fmt.Sprintf("subs=%q", name))
				continue
			}
			cfg.Subtitles = append(cfg.Subtitles, d)
		}
	}
	if v := q.Get("noheader"); v != "" {
		cfg.OmitDialHeader, _ = strconv.ParseBool(v)
	}

	if len(errs) > 0 {
		return cfg, fmt.Errorf("%w: invalid pattern parameters %s", ErrSourceOpen, strings.Join(errs, ", "))
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// parsePatternDuration accepts Go durations or plain milliseconds.
func parsePatternDuration(v string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}

func (c *PatternConfig) validate() error {
	switch {
	case c.Duration <= 0:
		return fmt.Errorf("%w: pattern duration must be positive", ErrSourceFormat)
	case c.Video != PatternNone && (c.Width < 2 || c.Height < 2 || c.FPS <= 0):
		return fmt.Errorf("%w: invalid video geometry %dx%d@%d", ErrSourceFormat, c.Width, c.Height, c.FPS)
	case c.Wave != WaveNone && (c.SampleRate <= 0 || c.Channels <= 0 || c.FrameSamples <= 0 || c.FramesPerPkt <= 0):
		return fmt.Errorf("%w: invalid audio layout %d Hz %d channels", ErrSourceFormat, c.SampleRate, c.Channels)
	case c.Video == PatternNone && c.Wave == WaveNone && len(c.Subtitles) == 0:
		return fmt.Errorf("%w: pattern source without streams", ErrSourceFormat)
	}
	return nil
}

const patternScheme = "pattern"

// subtitle events start every patternSubPeriod and last patternSubLength.
const (
	patternSubPeriod = 2000
	patternSubOffset = 500
	patternSubLength = 1500
)

// PatternBackend generates synthetic containers for "pattern:" sources.
type PatternBackend struct{}

func (PatternBackend) Provider() Provider { return ProviderPattern }

func (PatternBackend) OpenDemuxer(source string) (Demuxer, error) {
	cfg, err := ParsePatternSource(source)
	if err != nil {
		return nil, err
	}
	return NewPatternDemuxer(cfg), nil
}

func init() {
	RegisterBackend(patternScheme, PatternBackend{})
}

type patternKind int

const (
	patVideo patternKind = iota
	patAudio
	patSubtitle
)

type patternTrack struct {
	info    StreamInfo
	kind    patternKind
	dialect SubtitleDialect
	cursor  int64 // next frame, packet or event number
	offset  int64 // audio: next sample offset
}

// PatternDemuxer is the demuxer of a synthetic source.
type PatternDemuxer struct {
	cfg      PatternConfig
	tracks   []*patternTrack
	durMs    int64
	buf      []byte
	closed   bool
	audioPkt int64 // audio packets emitted, for zero-frame gaps
}

// NewPatternDemuxer builds the stream layout for cfg: video first, then
// audio, then one stream per subtitle dialect.
func NewPatternDemuxer(cfg PatternConfig) *PatternDemuxer {
	d := &PatternDemuxer{cfg: cfg, durMs: cfg.Duration.Milliseconds()}
	if cfg.Video != PatternNone {
		d.tracks = append(d.tracks, &patternTrack{kind: patVideo, info: StreamInfo{
			Kind:          KindVideo,
			CodecName:     "pattern_video",
			LongCodecName: "synthetic " + cfg.Video.String() + " video",
			TimeBase:      Rational{1, 1000},
			Duration:      d.durMs,
			Width:         cfg.Width,
			Height:        cfg.Height,
			PixelFormat:   PixelFormatI420,
		}})
	}
	if cfg.Wave != WaveNone {
		d.tracks = append(d.tracks, &patternTrack{kind: patAudio, info: StreamInfo{
			Kind:          KindAudio,
			CodecName:     "pattern_audio",
			LongCodecName: "synthetic tone audio",
			TimeBase:      Rational{1, int64(cfg.SampleRate)},
			Duration:      d.totalSamples(),
			SampleRate:    cfg.SampleRate,
			Channels:      cfg.Channels,
			ChannelLayout: 1<<uint(cfg.Channels) - 1,
			SampleFormat:  cfg.SampleFormat,
		}})
	}
	for _, dialect := range cfg.Subtitles {
		codec, long := "dvd_subtitle", "synthetic bitmap subtitle"
		switch dialect {
		case DialectDialogue:
			codec, long = "ass", "synthetic ASS subtitle"
		case DialectText:
			codec, long = "subrip", "synthetic text subtitle"
		}
		d.tracks = append(d.tracks, &patternTrack{kind: patSubtitle, dialect: dialect, info: StreamInfo{
			Kind:          KindSubtitle,
			CodecName:     codec,
			LongCodecName: long,
			TimeBase:      Rational{1, 1000},
			Duration:      d.durMs,
			Language:      "und",
			Dialect:       dialect,
		}})
	}
	for i, t := range d.tracks {
		t.info.Index = i
	}
	return d
}

func (d *PatternDemuxer) totalSamples() int64 {
	return d.durMs * int64(d.cfg.SampleRate) / 1000
}

// videoFrames returns the number of frames covering the duration.
func (d *PatternDemuxer) videoFrames() int64 {
	fps := int64(d.cfg.FPS)
	return (d.durMs*fps + 999) / 1000
}

// videoPTS returns the presentation time of frame i in milliseconds.
func (d *PatternDemuxer) videoPTS(i int64) int64 {
	return min(i*1000/int64(d.cfg.FPS), d.durMs)
}

func (d *PatternDemuxer) Streams() []StreamInfo {
	out := make([]StreamInfo, len(d.tracks))
	for i, t := range d.tracks {
		out[i] = t.info
	}
	return out
}

func (d *PatternDemuxer) DurationMicros() int64 { return d.durMs * 1000 }

// nextTime returns the time of the next packet of t in milliseconds, or -1 at
// the end of the track.
func (d *PatternDemuxer) nextTime(t *patternTrack) int64 {
	switch t.kind {
	case patVideo:
		if t.cursor >= d.videoFrames() {
			return -1
		}
		return d.videoPTS(t.cursor)
	case patAudio:
		if t.offset >= d.totalSamples() {
			return -1
		}
		return t.offset * 1000 / int64(d.cfg.SampleRate)
	default:
		start := t.cursor*patternSubPeriod + patternSubOffset
		if start >= d.durMs {
			return -1
		}
		return start
	}
}

func (d *PatternDemuxer) ReadPacket(pkt *Packet) error {
	if d.closed {
		return io.EOF
	}
	var (
		next *patternTrack
		at   int64 = -1
	)
	for _, t := range d.tracks {
		ts := d.nextTime(t)
		if ts < 0 {
			continue
		}
		if next == nil || ts < at {
			next, at = t, ts
		}
	}
	if next == nil {
		return io.EOF
	}

	*pkt = Packet{StreamIndex: next.info.Index, FrameType: FrameTypeKey}
	switch next.kind {
	case patVideo:
		d.videoPacket(next, pkt)
	case patAudio:
		d.audioPacket(next, pkt)
	default:
		d.subtitlePacket(next, pkt)
	}
	return nil
}

func (d *PatternDemuxer) videoPacket(t *patternTrack, pkt *Packet) {
	i := t.cursor
	t.cursor++
	w, h := d.cfg.Width, d.cfg.Height
	if d.cfg.ResizeAt > 0 && d.videoPTS(i) >= d.cfg.ResizeAt.Milliseconds() {
		w, h = max(w/2&^1, 2), max(h/2&^1, 2)
	}
	d.buf = binary.LittleEndian.AppendUint32(d.buf[:0], uint32(i))
	d.buf = binary.LittleEndian.AppendUint16(d.buf, uint16(w))
	d.buf = binary.LittleEndian.AppendUint16(d.buf, uint16(h))

	pkt.Data = d.buf
	pkt.PTS = d.videoPTS(i)
	pkt.DTS = pkt.PTS
	pkt.Duration = d.videoPTS(i+1) - pkt.PTS
}

// audioPacket emits FramesPerPkt chunks of (sample offset, sample count).
func (d *PatternDemuxer) audioPacket(t *patternTrack, pkt *Packet) {
	pkt.PTS = t.offset
	pkt.DTS = t.offset
	d.buf = d.buf[:0]
	d.audioPkt++

	if gap := int64(d.cfg.ZeroPacketGap); gap > 0 && d.audioPkt%(gap+1) == 0 {
		d.buf = binary.LittleEndian.AppendUint32(d.buf, uint32(t.offset))
		d.buf = binary.LittleEndian.AppendUint32(d.buf, 0)
		pkt.Data = d.buf
		return
	}

	total := d.totalSamples()
	start := t.offset
	for f := 0; f < d.cfg.FramesPerPkt && t.offset < total; f++ {
		n := min(int64(d.cfg.FrameSamples), total-t.offset)
		d.buf = binary.LittleEndian.AppendUint32(d.buf, uint32(t.offset))
		d.buf = binary.LittleEndian.AppendUint32(d.buf, uint32(n))
		t.offset += n
	}
	pkt.Data = d.buf
	pkt.Duration = t.offset - start
	t.cursor++
}

func (d *PatternDemuxer) subtitlePacket(t *patternTrack, pkt *Packet) {
	k := t.cursor
	t.cursor++
	d.buf = binary.LittleEndian.AppendUint32(d.buf[:0], uint32(k))
	pkt.Data = d.buf
	pkt.PTS = k*patternSubPeriod + patternSubOffset
	pkt.DTS = pkt.PTS
	pkt.Duration = patternSubLength
}

func (d *PatternDemuxer) OpenDecoder(index int) (Decoder, error) {
	if index < 0 || index >= len(d.tracks) {
		return nil, fmt.Errorf("%w: no stream #%d", ErrUnsupportedCodec, index)
	}
	t := d.tracks[index]
	switch t.kind {
	case patVideo:
		return newPatternVideoDecoder(d.cfg, t.info), nil
	case patAudio:
		return newPatternAudioDecoder(d.cfg, t.info), nil
	default:
		return newPatternSubtitleDecoder(d.cfg, t.info, t.dialect), nil
	}
}

// Seek positions every track at the last packet starting at or before micros.
func (d *PatternDemuxer) Seek(micros int64) error {
	if micros < 0 {
		return &NativeError{Op: "pattern seek", Code: -22, Msg: "negative timestamp"}
	}
	ms := micros / 1000
	for _, t := range d.tracks {
		switch t.kind {
		case patVideo:
			t.cursor = ms * int64(d.cfg.FPS) / 1000
			for t.cursor > 0 && d.videoPTS(t.cursor) > ms {
				t.cursor--
			}
		case patAudio:
			per := int64(d.cfg.FrameSamples * d.cfg.FramesPerPkt)
			pkt := ms * int64(d.cfg.SampleRate) / 1000 / per
			t.cursor = pkt
			t.offset = min(pkt*per, d.totalSamples())
		default:
			// First event still on screen at ms.
			t.cursor = 0
			if firstEnd := int64(patternSubOffset + patternSubLength); ms >= firstEnd {
				t.cursor = (ms-firstEnd)/patternSubPeriod + 1
			}
		}
	}
	return nil
}

func (d *PatternDemuxer) Close() error {
	d.closed = true
	return nil
}
