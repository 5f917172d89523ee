package avplay

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

func videoAudioScript() *scriptDemuxer {
	return &scriptDemuxer{
		duration: 10_000_000,
		streams: []StreamInfo{
			{Index: 0, Kind: KindVideo, CodecName: "v", TimeBase: Rational{1, 90000}, Width: 64, Height: 48, PixelFormat: PixelFormatI420},
			{Index: 1, Kind: KindAudio, CodecName: "a", TimeBase: Rational{1, 48000}, SampleRate: 48000, Channels: 2, SampleFormat: SampleFormatS16},
		},
		decoders: map[int]*scriptDecoder{
			0: {kind: KindVideo},
			1: {kind: KindAudio},
		},
	}
}

func buildEngine(t *testing.T, c *Container, rec *recorder, opts ...func(*Builder)) *Engine {
	t.Helper()
	b := NewBuilder(c).Logger(quietLogger()).
		Video(rec.video()).
		Audio(rec.audioHandler()).
		Subtitle(rec.subtitle())
	for _, o := range opts {
		o(b)
	}
	e, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestBuilder_RequiresHandler(t *testing.T) {
	c := openScript(t, videoAudioScript())
	if _, err := NewBuilder(c).Build(); !errors.Is(err, ErrConfiguration) {
		t.Errorf("Build without handlers err = %v", err)
	}
	if _, err := NewBuilder(nil).Audio(AudioFuncs{}).Build(); !errors.Is(err, ErrConfiguration) {
		t.Errorf("Build without container err = %v", err)
	}
	if _, err := NewBuilder(c).Audio(AudioFuncs{}).Scale(0, -1, ScaleModeFit).Build(); !errors.Is(err, ErrArgument) {
		t.Errorf("Build with bad scale err = %v", err)
	}
	c.Close()
	if _, err := NewBuilder(c).Audio(AudioFuncs{}).Build(); !errors.Is(err, ErrConfiguration) {
		t.Errorf("Build on closed container err = %v", err)
	}
}

func TestEngine_RejectsForeignStreams(t *testing.T) {
	c1 := openScript(t, videoAudioScript())
	c2 := openScript(t, videoAudioScript())
	e := buildEngine(t, c1, &recorder{})

	if _, err := e.SetVideoStream(c2.VideoStreams()[0]); !errors.Is(err, ErrConfiguration) {
		t.Errorf("foreign video err = %v", err)
	}
	if _, err := e.SetAudioStream(c2.AudioStreams()[0]); !errors.Is(err, ErrConfiguration) {
		t.Errorf("foreign audio err = %v", err)
	}
	if e.VideoStream() != nil || e.AudioStream() != nil {
		t.Error("failed selection changed state")
	}
}

func TestEngine_SelectionReturnsPrevious(t *testing.T) {
	c := openScript(t, videoAudioScript())
	e := buildEngine(t, c, &recorder{})
	v := c.VideoStreams()[0]

	prev, err := e.SetVideoStream(v)
	if err != nil || prev.IsPresent() {
		t.Fatalf("first selection = %v, %v", prev, err)
	}
	prev, err = e.SetVideoStream(nil)
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := prev.Get(); !ok || got != v {
		t.Errorf("previous = %v, %v", got, ok)
	}
	if e.VideoStream() != nil {
		t.Error("nil did not clear the selection")
	}
}

func TestEngine_UnsupportedCodec(t *testing.T) {
	d := videoAudioScript()
	delete(d.decoders, 1)
	c := openScript(t, d)
	e := buildEngine(t, c, &recorder{})

	if _, err := e.SetAudioStream(c.AudioStreams()[0]); !errors.Is(err, ErrUnsupportedCodec) {
		t.Errorf("err = %v, want ErrUnsupportedCodec", err)
	}
	// Other streams stay usable
	if _, err := e.SetVideoStream(c.VideoStreams()[0]); err != nil {
		t.Errorf("video selection: %v", err)
	}
}

func TestEngine_DispatchAndDurations(t *testing.T) {
	d := videoAudioScript()
	d.packets = []Packet{
		{StreamIndex: 0, Data: videoPayload(64, 48), PTS: 0, Duration: 3003},
		{StreamIndex: 1, Data: make([]byte, 4096), PTS: 0, Duration: 1024},
		{StreamIndex: 0, Data: videoPayload(64, 48), PTS: 3003, Duration: 3003},
		{StreamIndex: 5, Data: []byte{1}}, // not selected
		{StreamIndex: 0, Data: videoPayload(32, 24), PTS: 6006, Duration: 3003},
	}
	c := openScript(t, d)
	rec := &recorder{}
	e := buildEngine(t, c, rec)
	mustSelect(t, e, c)

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := rec.durations; len(got) != 3 || got[0] != 33 || got[1] != 33 {
		t.Errorf("durations = %v", got)
	}
	if e.Position() != 99 {
		t.Errorf("Position() = %d, want 99", e.Position())
	}
	if rec.sizes[2] != [2]int{32, 24} {
		t.Errorf("resolution change not delivered: %v", rec.sizes)
	}
	if rec.audio != 4096 {
		t.Errorf("audio bytes = %d", rec.audio)
	}

	s := e.Stats()
	if s.Packets != 5 || s.VideoFrames != 3 || s.AudioFrames != 1 || s.AudioBytes != 4096 {
		t.Errorf("stats = %+v", s)
	}
	if e.State() != StateStopped {
		t.Errorf("State() = %v", e.State())
	}
}

func mustSelect(t *testing.T, e *Engine, c *Container) {
	t.Helper()
	if vs := c.VideoStreams(); len(vs) > 0 {
		if _, err := e.SetVideoStream(vs[0]); err != nil {
			t.Fatal(err)
		}
	}
	if as := c.AudioStreams(); len(as) > 0 {
		if _, err := e.SetAudioStream(as[0]); err != nil {
			t.Fatal(err)
		}
	}
	if ss := c.SubtitleStreams(); len(ss) > 0 {
		if _, err := e.SetSubtitleStream(ss[0]); err != nil {
			t.Fatal(err)
		}
	}
}

func TestEngine_AudioPartialConsumption(t *testing.T) {
	d := videoAudioScript()
	d.decoders[1].chunk = 4096
	d.packets = []Packet{{StreamIndex: 1, Data: make([]byte, 4096*3+400)}}
	c := openScript(t, d)
	rec := &recorder{}
	e := buildEngine(t, c, rec)
	mustSelect(t, e, c)

	if err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if rec.chunks != 4 || rec.audio != 4096*3+400 {
		t.Errorf("chunks = %d bytes = %d", rec.chunks, rec.audio)
	}
}

func TestEngine_AudioNoProgress(t *testing.T) {
	d := videoAudioScript()
	d.packets = []Packet{{StreamIndex: 1, Data: []byte{}}, {StreamIndex: 1, Data: make([]byte, 8)}}
	d.decoders[1].chunk = -1
	c := openScript(t, d)
	e := buildEngine(t, c, &recorder{})
	mustSelect(t, e, c)

	// An empty packet is skipped; a decoder that consumes nothing fails
	err := e.Run(context.Background())
	var de *DecodeError
	if !errors.As(err, &de) || de.Kind != KindAudio || de.Index != 1 {
		t.Errorf("err = %v", err)
	}
}

func TestEngine_DecodeErrorCarriesCode(t *testing.T) {
	d := videoAudioScript()
	d.decoders[0].err = &NativeError{Op: "decode", Code: -1094995529, Msg: "Invalid data"}
	d.packets = []Packet{{StreamIndex: 0, Data: videoPayload(4, 4)}}
	c := openScript(t, d)
	rec := &recorder{}
	e := buildEngine(t, c, rec)
	mustSelect(t, e, c)

	err := e.Run(context.Background())
	if !errors.Is(err, ErrStreamDecode) {
		t.Fatalf("err = %v, want ErrStreamDecode", err)
	}
	var de *DecodeError
	if !errors.As(err, &de) || de.Code != -1094995529 || de.Kind != KindVideo || de.Index != 0 {
		t.Errorf("decode error = %+v", de)
	}
	var ne *NativeError
	if !errors.As(err, &ne) {
		t.Error("native error not wrapped")
	}
	// Handlers are still ended
	if len(rec.events) != 6 {
		t.Errorf("events = %v", rec.events)
	}
}

func TestEngine_ReadError(t *testing.T) {
	d := videoAudioScript()
	d.readErr = errors.New("i/o timeout")
	c := openScript(t, d)
	e := buildEngine(t, c, &recorder{})

	err := e.Run(context.Background())
	var de *DecodeError
	if !errors.As(err, &de) || de.Kind != KindUnknown || de.Index != -1 {
		t.Errorf("err = %v", err)
	}
}

func TestEngine_LifecycleOrder(t *testing.T) {
	d := videoAudioScript()
	c := openScript(t, d)
	rec := &recorder{}
	e := buildEngine(t, c, rec, func(b *Builder) {
		b.Listener(ListenerFuncs{
			Started: func() { rec.log("started") },
			Ended:   func(err error) { rec.log("ended") },
		})
	})

	if err := e.Wait(); !errors.Is(err, ErrConfiguration) {
		t.Errorf("Wait before start err = %v", err)
	}
	if err := e.SetPlaying(true); !errors.Is(err, ErrConfiguration) {
		t.Errorf("SetPlaying before start err = %v", err)
	}
	if err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := []string{"audio start", "video start", "subtitle start", "started", "video end", "audio end", "subtitle end", "ended"}
	if len(rec.events) != len(want) {
		t.Fatalf("events = %v", rec.events)
	}
	for i := range want {
		if rec.events[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, rec.events[i], want[i])
		}
	}

	if err := e.Run(context.Background()); !errors.Is(err, ErrConfiguration) {
		t.Errorf("second Run err = %v", err)
	}
	if err := e.Seek(0); !errors.Is(err, ErrConfiguration) {
		t.Errorf("Seek after stop err = %v", err)
	}
}

func TestEngine_PauseResume(t *testing.T) {
	const source = "pattern:noise?duration=1s&width=32&height=32&fps=10&wave=none"

	ref := &recorder{}
	refEngine := buildEngine(t, openPattern(t, source), ref)
	mustSelect(t, refEngine, refEngine.Container())
	if err := refEngine.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	c := openPattern(t, source)
	rec := &recorder{}
	paused := make(chan struct{})
	var e *Engine
	rec.onFrame = func(n int) {
		if n == 3 {
			if err := e.SetPlaying(false); err != nil {
				t.Error(err)
			}
			close(paused)
		}
	}
	e = buildEngine(t, c, rec)
	mustSelect(t, e, c)

	if err := e.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	<-paused
	time.Sleep(50 * time.Millisecond)
	if e.IsPlaying() {
		t.Error("IsPlaying() while paused")
	}
	if got := rec.frames(); got != 3 {
		t.Errorf("frames while paused = %d, want 3", got)
	}

	if err := e.SetPlaying(true); err != nil {
		t.Fatal(err)
	}
	if err := e.Wait(); err != nil {
		t.Fatal(err)
	}
	if got := rec.frames(); got != 10 {
		t.Errorf("frames = %d, want 10", got)
	}
	// Same pictures in the same order as an uninterrupted run
	if !slices.Equal(rec.sums, ref.sums) || !slices.Equal(rec.durations, ref.durations) {
		t.Errorf("paused run frames = %x, want %x", rec.sums, ref.sums)
	}
	if e.Position() != refEngine.Position() {
		t.Errorf("Position() = %d, want %d", e.Position(), refEngine.Position())
	}
}

func TestEngine_CloseWhilePaused(t *testing.T) {
	c := openPattern(t, "pattern:colorbars?duration=5s&width=16&height=16")
	rec := &recorder{}
	var e *Engine
	rec.onFrame = func(n int) {
		if n == 1 {
			e.SetPlaying(false)
		}
	}
	e = buildEngine(t, c, rec)
	mustSelect(t, e, c)

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()
	for rec.frames() == 0 {
		time.Sleep(time.Millisecond)
	}

	e.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run after Close = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not stop a paused loop")
	}
	if rec.frames() != 1 {
		t.Errorf("frames = %d", rec.frames())
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

func TestEngine_ContextCancel(t *testing.T) {
	c := openPattern(t, "pattern:colorbars?duration=5s&width=16&height=16")
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	rec.onFrame = func(n int) {
		if n == 2 {
			cancel()
		}
	}
	e := buildEngine(t, c, rec)
	mustSelect(t, e, c)

	if err := e.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
}

func TestEngine_SeekBounds(t *testing.T) {
	c := openPattern(t, "pattern:colorbars?duration=2s&width=16&height=16")
	var sought []int64
	e := buildEngine(t, c, &recorder{}, func(b *Builder) {
		b.Listener(ListenerFuncs{Seeked: func(ms int64) { sought = append(sought, ms) }})
	})

	if err := e.Seek(700); err != nil {
		t.Fatal(err)
	}
	for _, ms := range []int64{-1, 2001} {
		if err := e.Seek(ms); !errors.Is(err, ErrArgument) {
			t.Errorf("Seek(%d) err = %v", ms, err)
		}
		// Rejected seeks leave position and pending target alone
		if e.Position() != 700 || e.pendingSeek.Load() != 700 {
			t.Errorf("after Seek(%d): position %d pending %d", ms, e.Position(), e.pendingSeek.Load())
		}
	}
	if e.State() != StateUnstarted || !slices.Equal(sought, []int64{700}) {
		t.Errorf("state %v, seek notifications %v", e.State(), sought)
	}
	for _, ms := range []int64{0, 2000} {
		if err := e.Seek(ms); err != nil {
			t.Errorf("Seek(%d) err = %v", ms, err)
		}
	}
	e.Close()
	if err := e.Seek(0); !errors.Is(err, ErrConfiguration) {
		t.Errorf("Seek on closed engine err = %v", err)
	}
}

func TestEngine_SeekFlushesDecoders(t *testing.T) {
	d := videoAudioScript()
	d.packets = []Packet{
		{StreamIndex: 0, Data: videoPayload(8, 8), Duration: 9000},
		{StreamIndex: 1, Data: make([]byte, 64), Duration: 16},
	}
	c := openScript(t, d)
	rec := &recorder{}
	var sought []int64
	e := buildEngine(t, c, rec, func(b *Builder) {
		b.Listener(ListenerFuncs{Seeked: func(ms int64) { sought = append(sought, ms) }})
	})
	mustSelect(t, e, c)

	if err := e.Seek(1500); err != nil {
		t.Fatal(err)
	}
	if e.Position() != 1500 {
		t.Errorf("Position() after Seek = %d", e.Position())
	}
	if err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(d.seeks) != 1 || d.seeks[0] != 1_500_000 {
		t.Errorf("demuxer seeks = %v", d.seeks)
	}
	if d.decoders[0].flushes != 1 || d.decoders[1].flushes != 1 {
		t.Errorf("flushes = %d/%d", d.decoders[0].flushes, d.decoders[1].flushes)
	}
	if e.Position() != 1600 {
		t.Errorf("Position() = %d, want 1600", e.Position())
	}
	if len(sought) != 1 || sought[0] != 1500 || e.Stats().Seeks != 1 {
		t.Errorf("seek notifications = %v stats = %+v", sought, e.Stats())
	}
}

func TestEngine_SeekFailure(t *testing.T) {
	d := videoAudioScript()
	d.seekErr = &NativeError{Op: "seek", Code: -1}
	d.packets = []Packet{{StreamIndex: 0, Data: videoPayload(8, 8), Duration: 9000}}
	c := openScript(t, d)
	var failed []int64
	e := buildEngine(t, c, &recorder{}, func(b *Builder) {
		b.Listener(ListenerFuncs{SeekFailed: func(ms int64, err error) { failed = append(failed, ms) }})
	})
	mustSelect(t, e, c)

	if err := e.Seek(500); err != nil {
		t.Fatal(err)
	}
	if e.Position() != 500 {
		t.Errorf("Position() after Seek = %d", e.Position())
	}
	// A failed seek does not end playback
	if err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 || failed[0] != 500 || e.Stats().SeekFailures != 1 {
		t.Errorf("failed = %v stats = %+v", failed, e.Stats())
	}
	if d.decoders[0].flushes != 0 {
		t.Error("decoders flushed after failed seek")
	}
	// The read cursor never moved, so only the played frame counts
	if e.Position() != 100 {
		t.Errorf("Position() = %d, want 100", e.Position())
	}
}

func TestEngine_MalformedDialect(t *testing.T) {
	c := openPattern(t, "pattern:none?duration=3s&wave=none&subs=ass&noheader=1")
	e := buildEngine(t, c, &recorder{})
	mustSelect(t, e, c)

	if err := e.Run(context.Background()); !errors.Is(err, ErrMalformedDialect) {
		t.Errorf("Run = %v, want ErrMalformedDialect", err)
	}
}

func TestEngine_SubtitleDialects(t *testing.T) {
	tests := []struct {
		subs string
		want func(Subtitle) bool
	}{
		{"ass", func(s Subtitle) bool { st, ok := s.(*StyledSubtitle); return ok && st.PlainText() == "Event 0\nsecond line" }},
		{"text", func(s Subtitle) bool { ts, ok := s.(*TextSubtitle); return ok && ts.Text == "Subtitle 0" }},
		{"bitmap", func(s Subtitle) bool { bm, ok := s.(*BitmapSubtitle); return ok && bm.Image.Bounds().Dx() == 96 }},
	}
	for _, tt := range tests {
		t.Run(tt.subs, func(t *testing.T) {
			c := openPattern(t, "pattern:none?duration=5s&wave=none&subs="+tt.subs)
			rec := &recorder{}
			e := buildEngine(t, c, rec)
			mustSelect(t, e, c)

			if err := e.Run(context.Background()); err != nil {
				t.Fatal(err)
			}
			// Events at 500, 2500 and 4500 ms
			if len(rec.subs) != 3 {
				t.Fatalf("events = %d, want 3", len(rec.subs))
			}
			if !tt.want(rec.subs[0]) {
				t.Errorf("first event = %#v", rec.subs[0])
			}
			if rec.times[1] != [2]int64{2500, 4000} {
				t.Errorf("second event interval = %v", rec.times[1])
			}
		})
	}
}

func TestEngine_FiltersAndScale(t *testing.T) {
	c := openPattern(t, "pattern:checkerboard?duration=100ms&width=64&height=64&wave=none")
	var first *Raster
	e, err := NewBuilder(c).Logger(quietLogger()).
		Filters(FilterNegate, FilterGrayscale).
		Scale(32, 16, ScaleModeStretch).
		Video(VideoFuncs{OnFrame: func(r *Raster, _ int64) {
			if first == nil {
				first = r.Clone()
			}
		}}).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	mustSelect(t, e, c)
	if err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if first == nil || first.Width != 32 || first.Height != 16 {
		t.Fatalf("scaled raster = %+v", first)
	}
	// Luma 235 converts to white, negated to black
	if r, g, b := first.RGBAt(0, 0); r != 0 || g != 0 || b != 0 {
		t.Errorf("corner = %d %d %d", r, g, b)
	}
}

func TestEngine_PatternEndToEnd(t *testing.T) {
	c := openPattern(t, "pattern:colorbars?duration=10s&width=640&height=360&fps=30&rate=48000&channels=2&subs=ass")
	rec := &recorder{}
	e := buildEngine(t, c, rec)
	mustSelect(t, e, c)

	if c.Length() != 10000 {
		t.Errorf("Length() = %d", c.Length())
	}
	if err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := rec.frames(); got != 300 {
		t.Errorf("frames = %d, want 300", got)
	}
	for _, s := range rec.sizes {
		if s != [2]int{640, 360} {
			t.Fatalf("frame size %v", s)
		}
	}
	if pos := e.Position(); pos < 10000-34 || pos > 10000 {
		t.Errorf("Position() = %d, want within one frame of 10000", pos)
	}
	if rec.audio != 10*48000*2*2 {
		t.Errorf("audio bytes = %d, want %d", rec.audio, 10*48000*2*2)
	}
	if len(rec.subs) != 5 {
		t.Errorf("subtitle events = %d, want 5", len(rec.subs))
	}
	if rec.videoEnds != 1 || rec.audioEnds != 1 {
		t.Errorf("end callbacks video %d audio %d, want 1 each", rec.videoEnds, rec.audioEnds)
	}
	// Nothing delivered after End
	if rec.framesAtEnd != rec.frames() || rec.chunksAtEnd != rec.chunks {
		t.Errorf("at End: %d frames %d chunks, total %d frames %d chunks",
			rec.framesAtEnd, rec.chunksAtEnd, rec.frames(), rec.chunks)
	}
}

func TestEngine_PatternPlanarAndGaps(t *testing.T) {
	c := openPattern(t, "pattern:none?duration=1s&format=fltp&channels=3&apf=3&gaps=2")
	rec := &recorder{}
	e := buildEngine(t, c, rec)
	mustSelect(t, e, c)

	if err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if rec.audio != 48000*3*2 {
		t.Errorf("audio bytes = %d, want %d", rec.audio, 48000*3*2)
	}
	// 47 frames of 1024 samples; the zero-sample packets deliver nothing
	if rec.chunks != 47 {
		t.Errorf("chunks = %d, want 47", rec.chunks)
	}
}

func TestEngine_PatternResize(t *testing.T) {
	c := openPattern(t, "pattern:movingbox?duration=1s&width=64&height=48&fps=10&resize=500ms&wave=none")
	rec := &recorder{}
	e := buildEngine(t, c, rec)
	mustSelect(t, e, c)

	if err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if rec.sizes[0] != [2]int{64, 48} || rec.sizes[9] != [2]int{32, 24} {
		t.Errorf("sizes = %v", rec.sizes)
	}
}

func TestEngine_CloseLeavesContainerOpen(t *testing.T) {
	c := openPattern(t, "pattern:colorbars?duration=1s&width=16&height=16")
	e := buildEngine(t, c, &recorder{})
	mustSelect(t, e, c)
	e.Close()

	if c.Closed() {
		t.Error("engine Close closed the container")
	}
	if err := e.Run(context.Background()); !errors.Is(err, ErrConfiguration) {
		t.Errorf("Run after Close = %v", err)
	}
	if _, err := e.SetVideoStream(c.VideoStreams()[0]); !errors.Is(err, ErrConfiguration) {
		t.Errorf("SetVideoStream after Close = %v", err)
	}
}
