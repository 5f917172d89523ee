package avplay

import (
	"encoding/binary"
	"hash/crc32"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// scriptBackend serves a scripted demuxer.
type scriptBackend struct{ demux *scriptDemuxer }

func (b scriptBackend) Provider() Provider { return ProviderCustom }

func (b scriptBackend) OpenDemuxer(string) (Demuxer, error) { return b.demux, nil }

type scriptDemuxer struct {
	mu       sync.Mutex
	streams  []StreamInfo
	packets  []Packet
	pos      int
	duration int64 // micros
	readErr  error // returned once packets are exhausted instead of io.EOF
	seekErr  error
	seeks    []int64
	decoders map[int]*scriptDecoder
	closed   bool
}

func (d *scriptDemuxer) Streams() []StreamInfo { return d.streams }
func (d *scriptDemuxer) DurationMicros() int64 { return d.duration }

func (d *scriptDemuxer) ReadPacket(pkt *Packet) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pos >= len(d.packets) {
		if d.readErr != nil {
			return d.readErr
		}
		return io.EOF
	}
	*pkt = d.packets[d.pos]
	d.pos++
	return nil
}

func (d *scriptDemuxer) OpenDecoder(index int) (Decoder, error) {
	dec, ok := d.decoders[index]
	if !ok {
		return nil, ErrUnsupportedCodec
	}
	return dec, nil
}

func (d *scriptDemuxer) Seek(micros int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seeks = append(d.seeks, micros)
	if d.seekErr != nil {
		return d.seekErr
	}
	d.pos = 0
	return nil
}

func (d *scriptDemuxer) Close() error {
	d.closed = true
	return nil
}

// scriptDecoder decodes packets whose payload carries the picture size
// (video), 4-byte S16 stereo samples (audio) or the region text (subtitle).
type scriptDecoder struct {
	kind    MediaKind
	format  PixelFormat
	header  string
	region  RegionType
	err     error
	chunk   int // audio bytes consumed per call, 0 means all, negative none
	flushes int
	closed  bool
}

func (d *scriptDecoder) CodecName() string     { return "script_" + d.kind.String() }
func (d *scriptDecoder) LongCodecName() string { return "scripted " + d.kind.String() }

func (d *scriptDecoder) DecodeVideo(pkt *Packet) (*Picture, error) {
	if d.err != nil {
		return nil, d.err
	}
	if len(pkt.Data) == 0 {
		return nil, nil
	}
	w := int(binary.LittleEndian.Uint16(pkt.Data))
	h := int(binary.LittleEndian.Uint16(pkt.Data[2:]))
	return solidI420(w, h, 235, 128, 128), nil
}

func (d *scriptDecoder) DecodeAudio(data []byte, _ *Packet) (int, *SampleFrame, error) {
	if d.err != nil {
		return 0, nil, d.err
	}
	if d.chunk < 0 {
		return 0, nil, nil
	}
	n := len(data)
	if d.chunk > 0 {
		n = min(d.chunk, len(data))
	}
	return n, &SampleFrame{
		Data:       [][]byte{data[:n]},
		Format:     SampleFormatS16,
		SampleRate: 48000,
		Channels:   2,
		Samples:    n / 4,
	}, nil
}

func (d *scriptDecoder) DecodeSubtitle(pkt *Packet) (*SubtitleFrame, error) {
	if d.err != nil {
		return nil, d.err
	}
	return &SubtitleFrame{
		Start:   pkt.PTS,
		End:     pkt.PTS + pkt.Duration,
		Regions: []SubtitleRegion{{Type: d.region, Text: string(pkt.Data)}},
	}, nil
}

func (d *scriptDecoder) SubtitleHeader() string { return d.header }
func (d *scriptDecoder) Flush()                 { d.flushes++ }
func (d *scriptDecoder) Close() error           { d.closed = true; return nil }

func videoPayload(w, h int) []byte {
	b := binary.LittleEndian.AppendUint16(nil, uint16(w))
	return binary.LittleEndian.AppendUint16(b, uint16(h))
}

func openScript(t *testing.T, d *scriptDemuxer) *Container {
	t.Helper()
	c, err := Open("script://test", WithBackend(scriptBackend{demux: d}), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func openPattern(t *testing.T, source string) *Container {
	t.Helper()
	c, err := Open(source, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Open(%q): %v", source, err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// recorder collects everything an engine delivers.
type recorder struct {
	mu        sync.Mutex
	events    []string
	sizes     [][2]int
	durations []int64
	audio     int
	chunks    int
	subs      []Subtitle
	times     [][2]int64
	sums      []uint32
	onFrame   func(n int)

	// Deliveries seen when each End fired
	videoEnds, audioEnds     int
	framesAtEnd, chunksAtEnd int
}

func (r *recorder) log(ev string) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) video() VideoFuncs {
	return VideoFuncs{
		OnStart: func() { r.log("video start") },
		OnFrame: func(f *Raster, d int64) {
			r.mu.Lock()
			r.sizes = append(r.sizes, [2]int{f.Width, f.Height})
			r.durations = append(r.durations, d)
			r.sums = append(r.sums, crc32.ChecksumIEEE(f.Pix))
			n := len(r.sizes)
			cb := r.onFrame
			r.mu.Unlock()
			if cb != nil {
				cb(n)
			}
		},
		OnEnd: func() {
			r.mu.Lock()
			r.videoEnds++
			r.framesAtEnd = len(r.sizes)
			r.mu.Unlock()
			r.log("video end")
		},
	}
}

func (r *recorder) audioHandler() AudioFuncs {
	return AudioFuncs{
		OnStart: func() { r.log("audio start") },
		OnSamples: func(b []byte) {
			r.mu.Lock()
			r.audio += len(b)
			r.chunks++
			r.mu.Unlock()
		},
		OnEnd: func() {
			r.mu.Lock()
			r.audioEnds++
			r.chunksAtEnd = r.chunks
			r.mu.Unlock()
			r.log("audio end")
		},
	}
}

func (r *recorder) subtitle() SubtitleFuncs {
	return SubtitleFuncs{
		OnStart: func() { r.log("subtitle start") },
		OnSubtitle: func(s Subtitle, start, end int64) {
			r.mu.Lock()
			r.subs = append(r.subs, s)
			r.times = append(r.times, [2]int64{start, end})
			r.mu.Unlock()
		},
		OnEnd: func() { r.log("subtitle end") },
	}
}

func (r *recorder) frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sizes)
}
