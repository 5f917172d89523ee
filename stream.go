package avplay

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Stream is one elementary stream of a Container.
type Stream interface {
	Index() int
	Kind() MediaKind
	CodecName() string
	LongCodecName() string
	TimeBase() Rational
	Language() string

	// Duration returns the stream duration in milliseconds, 0 when unknown.
	Duration() int64

	// Container returns the owning container.
	Container() *Container

	// Info returns the descriptor reported by the demuxer.
	Info() StreamInfo

	base() *baseStream
}

type baseStream struct {
	info      StreamInfo
	container *Container

	mu     sync.Mutex
	handle *StreamHandle
}

func (s *baseStream) Index() int            { return s.info.Index }
func (s *baseStream) CodecName() string     { return s.info.CodecName }
func (s *baseStream) LongCodecName() string { return s.info.LongCodecName }
func (s *baseStream) TimeBase() Rational    { return s.info.TimeBase }
func (s *baseStream) Language() string      { return s.info.Language }
func (s *baseStream) Container() *Container { return s.container }
func (s *baseStream) Info() StreamInfo      { return s.info }
func (s *baseStream) base() *baseStream     { return s }

func (s *baseStream) Duration() int64 {
	if s.info.Duration <= 0 || !s.info.TimeBase.Valid() {
		return 0
	}
	return s.info.TimeBase.TicksToMillis(s.info.Duration)
}

// VideoStream is a video elementary stream.
type VideoStream struct{ baseStream }

func (s *VideoStream) Kind() MediaKind { return KindVideo }

// Width returns the coded width in pixels.
func (s *VideoStream) Width() int { return s.info.Width }

// Height returns the coded height in pixels.
func (s *VideoStream) Height() int { return s.info.Height }

// PixelFormat returns the native pixel layout of decoded pictures.
func (s *VideoStream) PixelFormat() PixelFormat { return s.info.PixelFormat }

func (s *VideoStream) String() string {
	return fmt.Sprintf("#%d video %s %dx%d %s", s.Index(), s.CodecName(), s.Width(), s.Height(), s.PixelFormat())
}

// AudioStream is an audio elementary stream.
type AudioStream struct{ baseStream }

func (s *AudioStream) Kind() MediaKind { return KindAudio }

func (s *AudioStream) SampleRate() int            { return s.info.SampleRate }
func (s *AudioStream) Channels() int              { return s.info.Channels }
func (s *AudioStream) ChannelLayout() uint64      { return s.info.ChannelLayout }
func (s *AudioStream) SampleFormat() SampleFormat { return s.info.SampleFormat }

func (s *AudioStream) String() string {
	return fmt.Sprintf("#%d audio %s %d Hz %dch %s", s.Index(), s.CodecName(), s.SampleRate(), s.Channels(), s.SampleFormat())
}

// SubtitleDialect is the encoding of a subtitle stream.
type SubtitleDialect int

const (
	DialectUnknown  SubtitleDialect = iota
	DialectBitmap                   // DVD, PGS, DVB
	DialectText                     // SubRip, WebVTT, mov_text
	DialectDialogue                 // ASS/SSA
)

func (d SubtitleDialect) String() string {
	switch d {
	case DialectBitmap:
		return "bitmap"
	case DialectText:
		return "text"
	case DialectDialogue:
		return "dialogue"
	default:
		return "unknown"
	}
}

// SubtitleStream is a subtitle elementary stream.
type SubtitleStream struct{ baseStream }

func (s *SubtitleStream) Kind() MediaKind { return KindSubtitle }

// Dialect returns the subtitle encoding.
func (s *SubtitleStream) Dialect() SubtitleDialect { return s.info.Dialect }

func (s *SubtitleStream) String() string {
	return fmt.Sprintf("#%d subtitle %s %s", s.Index(), s.CodecName(), s.Dialect())
}

// StreamHandle binds a stream to a native decode context.
type StreamHandle struct {
	stream Stream
	dec    Decoder
	closed atomic.Bool
}

// OpenStreamHandle returns the decode binding of s, opening it on first use.
// The handle is cached on the stream and closed with its container.
func OpenStreamHandle(s Stream) (*StreamHandle, error) {
	if s == nil {
		return nil, configErrorf("nil stream")
	}
	b := s.base()
	c := b.container
	if c == nil || c.Closed() {
		return nil, configErrorf("stream #%d: container is closed", b.info.Index)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handle != nil && !b.handle.closed.Load() {
		return b.handle, nil
	}

	dec, err := c.demux.OpenDecoder(b.info.Index)
	if err != nil {
		return nil, fmt.Errorf("stream #%d (%s): %w", b.info.Index, b.info.CodecName, err)
	}
	b.handle = &StreamHandle{stream: s, dec: dec}
	return b.handle, nil
}

// Index returns the index of the bound stream.
func (h *StreamHandle) Index() int { return h.stream.Index() }

// CodecName returns the short name of the bound decoder.
func (h *StreamHandle) CodecName() string {
	if name := h.dec.CodecName(); name != "" {
		return name
	}
	return h.stream.CodecName()
}

// LongCodecName returns the descriptive name of the bound decoder.
func (h *StreamHandle) LongCodecName() string {
	if name := h.dec.LongCodecName(); name != "" {
		return name
	}
	return h.stream.LongCodecName()
}

// Stream returns the bound stream.
func (h *StreamHandle) Stream() Stream { return h.stream }

// Closed reports whether Close has been called.
func (h *StreamHandle) Closed() bool { return h.closed.Load() }

// Close releases the decode context. Safe to call multiple times.
func (h *StreamHandle) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	return h.dec.Close()
}

func (h *StreamHandle) decoder() Decoder { return h.dec }
