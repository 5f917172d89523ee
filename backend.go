package avplay

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// StreamInfo describes one elementary stream as reported by a demuxer.
type StreamInfo struct {
	Index         int
	Kind          MediaKind
	CodecName     string
	LongCodecName string
	TimeBase      Rational
	Duration      int64 // time base ticks, negative when unknown
	Language      string

	// Video
	Width       int
	Height      int
	PixelFormat PixelFormat

	// Audio
	SampleRate    int
	Channels      int
	ChannelLayout uint64
	SampleFormat  SampleFormat

	// Subtitle
	Dialect SubtitleDialect
}

// RegionType classifies one decoded subtitle region.
type RegionType int

const (
	RegionEmpty    RegionType = iota // Nothing to draw
	RegionBitmap                     // Indexed image with palette
	RegionText                       // Plain UTF-8 text
	RegionDialogue                   // Styled dialogue event line
)

func (t RegionType) String() string {
	switch t {
	case RegionEmpty:
		return "empty"
	case RegionBitmap:
		return "bitmap"
	case RegionText:
		return "text"
	case RegionDialogue:
		return "dialogue"
	default:
		return "unknown"
	}
}

// SubtitleRegion is one decoded subtitle rectangle.
type SubtitleRegion struct {
	Type    RegionType
	X, Y    int
	Width   int
	Height  int
	Pix     []byte   // palette indices, Stride bytes per row
	Stride  int      //
	Palette []uint32 // 0xAARRGGBB
	Text    string   // text or raw dialogue line
}

// SubtitleFrame is a decoded subtitle event. Start and End are expressed in
// stream time base ticks.
type SubtitleFrame struct {
	Start   int64
	End     int64
	Regions []SubtitleRegion
}

// Decoder is the per-stream decode context of a native provider.
type Decoder interface {
	CodecName() string
	LongCodecName() string

	// DecodeVideo decodes one packet. It returns a nil picture when the
	// decoder needs more input.
	DecodeVideo(pkt *Packet) (*Picture, error)

	// DecodeAudio decodes from data, which is the unconsumed tail of pkt.Data.
	// It returns the number of bytes consumed and a frame, which is nil when
	// the consumed bytes produced no output.
	DecodeAudio(data []byte, pkt *Packet) (int, *SampleFrame, error)

	// DecodeSubtitle decodes one packet. It returns nil when no event completed.
	DecodeSubtitle(pkt *Packet) (*SubtitleFrame, error)

	// SubtitleHeader returns the dialogue script header carried by the decode
	// context, or "" when there is none.
	SubtitleHeader() string

	// Flush drops buffered decoder state.
	Flush()

	Close() error
}

// Demuxer is an opened native container.
type Demuxer interface {
	Streams() []StreamInfo

	// DurationMicros returns the container duration, negative when unknown.
	DurationMicros() int64

	// ReadPacket fills pkt with the next packet, or returns io.EOF.
	ReadPacket(pkt *Packet) error

	// OpenDecoder binds a decoder to the stream at index. It returns an error
	// matching ErrUnsupportedCodec when no decoder exists.
	OpenDecoder(index int) (Decoder, error)

	// Seek repositions the read cursor at the nearest container timestamp.
	Seek(micros int64) error

	Close() error
}

// Backend opens sources for one native provider.
type Backend interface {
	Provider() Provider
	OpenDemuxer(source string) (Demuxer, error)
}

// backendRegistry maps source schemes to backends.
type backendRegistry struct {
	backends map[string]Backend
	fallback Backend
	mu       sync.RWMutex
}

var globalBackendRegistry = &backendRegistry{
	backends: make(map[string]Backend),
}

// RegisterBackend registers a backend for a source scheme such as "pattern".
// An empty scheme sets the fallback used for every unregistered scheme.
func RegisterBackend(scheme string, b Backend) {
	globalBackendRegistry.mu.Lock()
	defer globalBackendRegistry.mu.Unlock()
	if scheme == "" {
		globalBackendRegistry.fallback = b
		return
	}
	globalBackendRegistry.backends[strings.ToLower(scheme)] = b
}

// LookupBackend returns the backend handling scheme.
func LookupBackend(scheme string) (Backend, error) {
	globalBackendRegistry.mu.RLock()
	b, ok := globalBackendRegistry.backends[strings.ToLower(scheme)]
	if !ok {
		b = globalBackendRegistry.fallback
	}
	globalBackendRegistry.mu.RUnlock()

	if b == nil {
		return nil, fmt.Errorf("%w: no backend for scheme %q", ErrProviderUnavailable, scheme)
	}
	return b, nil
}

// RegisteredSchemes returns the explicitly registered schemes, sorted.
func RegisteredSchemes() []string {
	globalBackendRegistry.mu.RLock()
	defer globalBackendRegistry.mu.RUnlock()

	schemes := make([]string, 0, len(globalBackendRegistry.backends))
	for s := range globalBackendRegistry.backends {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}
