package avplay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/samber/mo"
	"github.com/sirupsen/logrus"
)

// EngineState represents the lifecycle state of a playback engine.
type EngineState int32

const (
	StateUnstarted EngineState = iota // Built, loop not started
	StateRunning                      // Loop active, possibly paused
	StateStopped                      // Loop finished; terminal
)

func (s EngineState) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// EngineStats provides playback statistics.
type EngineStats struct {
	Packets        uint64
	VideoFrames    uint64
	LateFrames     uint64 // delivered with a negative duration
	AudioFrames    uint64
	AudioBytes     uint64
	SubtitleEvents uint64
	Seeks          uint64
	SeekFailures   uint64
}

// Builder configures a playback engine bound to one container.
type Builder struct {
	container *Container
	audio     AudioHandler
	video     VideoHandler
	subtitle  SubtitleHandler
	filters   []Filter
	listeners []Listener
	log       logrus.FieldLogger

	scaleW, scaleH int
	scaleMode      ScaleMode
}

// NewBuilder starts configuring an engine for c.
func NewBuilder(c *Container) *Builder {
	return &Builder{container: c, log: logrus.StandardLogger()}
}

// Audio sets the audio handler.
func (b *Builder) Audio(h AudioHandler) *Builder { b.audio = h; return b }

// Video sets the video handler.
func (b *Builder) Video(h VideoHandler) *Builder { b.video = h; return b }

// Subtitle sets the subtitle handler.
func (b *Builder) Subtitle(h SubtitleHandler) *Builder { b.subtitle = h; return b }

// Filters appends raster filters, applied in order after conversion.
func (b *Builder) Filters(f ...Filter) *Builder { b.filters = append(b.filters, f...); return b }

// Scale delivers rasters scaled to width x height.
func (b *Builder) Scale(width, height int, mode ScaleMode) *Builder {
	b.scaleW, b.scaleH, b.scaleMode = width, height, mode
	return b
}

// Listener registers a lifecycle listener.
func (b *Builder) Listener(l Listener) *Builder { b.listeners = append(b.listeners, l); return b }

// Logger sets the engine logger.
func (b *Builder) Logger(l logrus.FieldLogger) *Builder { b.log = l; return b }

// Build validates the configuration and creates the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.container == nil {
		return nil, configErrorf("no container")
	}
	if b.container.Closed() {
		return nil, configErrorf("container is closed")
	}
	if b.audio == nil && b.video == nil && b.subtitle == nil {
		return nil, configErrorf("no media handlers specified")
	}

	e := &Engine{
		container: b.container,
		audio:     b.audio,
		video:     b.video,
		subtitle:  b.subtitle,
		filters:   append([]Filter(nil), b.filters...),
		listeners: append([]Listener(nil), b.listeners...),
		log:       b.log.WithField("component", "engine"),
		gate:      newGate(),
		renderer:  NewSubtitleRenderer(),
		done:      make(chan struct{}),
	}
	if e.audio == nil {
		e.audio = noAudio{}
	}
	if e.video == nil {
		e.video = noVideo{}
	}
	if e.subtitle == nil {
		e.subtitle = noSubtitle{}
	}
	if b.scaleW != 0 || b.scaleH != 0 {
		s, err := NewRasterScaler(b.scaleW, b.scaleH, b.scaleMode)
		if err != nil {
			return nil, err
		}
		e.scaler = s
	}
	e.pendingSeek.Store(-1)
	return e, nil
}

// selection is the set of active streams and their per-stream resources.
// The loop takes a copy at every packet boundary.
type selection struct {
	video  *VideoStream
	vdec   Decoder
	raster *Raster
	conv   *FrameConverter

	audio *AudioStream
	adec  Decoder
	sconv *SampleConverter

	sub  *SubtitleStream
	sdec Decoder
}

// Engine drives the demux, decode, convert and dispatch loop for one
// container. Build it with NewBuilder.
type Engine struct {
	container *Container
	audio     AudioHandler
	video     VideoHandler
	subtitle  SubtitleHandler
	filters   []Filter
	scaler    *RasterScaler // loop only
	renderer  *SubtitleRenderer
	log       logrus.FieldLogger

	mu        sync.Mutex
	sel       selection
	listeners []Listener
	cancel    context.CancelFunc

	gate        *gate
	state       atomic.Int32
	position    atomic.Int64
	pendingSeek atomic.Int64
	seekOrigin  int64 // position before the pending seek, guarded by mu
	closed      atomic.Bool

	done chan struct{}
	err  error

	stats   EngineStats
	statsMu sync.Mutex
}

// Container returns the bound container.
func (e *Engine) Container() *Container { return e.container }

func optionOf[T comparable](v T) mo.Option[T] {
	var zero T
	if v == zero {
		return mo.None[T]()
	}
	return mo.Some(v)
}

func (e *Engine) checkStream(s Stream) (*StreamHandle, error) {
	if e.closed.Load() {
		return nil, configErrorf("engine is closed")
	}
	if s.Container() != e.container {
		return nil, configErrorf("stream #%d is not from the bound container", s.Index())
	}
	if e.container.Closed() {
		return nil, configErrorf("container is closed")
	}
	return OpenStreamHandle(s)
}

// SetVideoStream selects the video stream and reallocates the raster buffer
// for its dimensions. nil clears the selection. It returns the previously
// selected stream.
func (e *Engine) SetVideoStream(s *VideoStream) (mo.Option[*VideoStream], error) {
	var (
		dec    Decoder
		raster *Raster
		conv   = &FrameConverter{}
	)
	if s != nil {
		h, err := e.checkStream(s)
		if err != nil {
			return mo.None[*VideoStream](), err
		}
		dec = h.decoder()
		raster = NewRaster(max(s.Width(), 0), max(s.Height(), 0))
		// Unknown layouts are resolved from the first decoded picture.
		_ = conv.reconfigure(s.PixelFormat(), s.Width(), s.Height())
	}

	e.mu.Lock()
	prev := e.sel.video
	e.sel.video, e.sel.vdec, e.sel.raster, e.sel.conv = s, dec, raster, conv
	e.mu.Unlock()

	e.log.WithField("stream", streamLabel(s)).Debug("video stream selected")
	return optionOf(prev), nil
}

// SetAudioStream selects the audio stream. nil clears the selection. It
// returns the previously selected stream.
func (e *Engine) SetAudioStream(s *AudioStream) (mo.Option[*AudioStream], error) {
	var (
		dec   Decoder
		sconv *SampleConverter
	)
	if s != nil {
		h, err := e.checkStream(s)
		if err != nil {
			return mo.None[*AudioStream](), err
		}
		dec = h.decoder()
		sconv = NewSampleConverter(max(s.Channels(), 1), 1024)
	}

	e.mu.Lock()
	prev := e.sel.audio
	e.sel.audio, e.sel.adec, e.sel.sconv = s, dec, sconv
	e.mu.Unlock()

	e.log.WithField("stream", streamLabel(s)).Debug("audio stream selected")
	return optionOf(prev), nil
}

// SetSubtitleStream selects the subtitle stream. nil clears the selection. It
// returns the previously selected stream.
func (e *Engine) SetSubtitleStream(s *SubtitleStream) (mo.Option[*SubtitleStream], error) {
	var dec Decoder
	if s != nil {
		h, err := e.checkStream(s)
		if err != nil {
			return mo.None[*SubtitleStream](), err
		}
		dec = h.decoder()
	}

	e.mu.Lock()
	prev := e.sel.sub
	e.sel.sub, e.sel.sdec = s, dec
	e.mu.Unlock()

	e.log.WithField("stream", streamLabel(s)).Debug("subtitle stream selected")
	return optionOf(prev), nil
}

func streamLabel[T Stream](s T) string {
	var zero T
	if any(s) == any(zero) {
		return "none"
	}
	return fmt.Sprint(s)
}

// VideoStream returns the selected video stream, or nil.
func (e *Engine) VideoStream() *VideoStream {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sel.video
}

// AudioStream returns the selected audio stream, or nil.
func (e *Engine) AudioStream() *AudioStream {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sel.audio
}

// SubtitleStream returns the selected subtitle stream, or nil.
func (e *Engine) SubtitleStream() *SubtitleStream {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sel.sub
}

// AddListener registers a lifecycle listener.
func (e *Engine) AddListener(l Listener) {
	e.mu.Lock()
	e.listeners = append(e.listeners, l)
	e.mu.Unlock()
}

func (e *Engine) eachListener(fn func(Listener)) {
	e.mu.Lock()
	ls := append([]Listener(nil), e.listeners...)
	e.mu.Unlock()
	for _, l := range ls {
		fn(l)
	}
}

// Run executes the playback loop on the calling goroutine and returns when the
// source is exhausted, a decode fails, ctx is cancelled or the engine is
// closed. An engine runs at most once.
func (e *Engine) Run(ctx context.Context) error {
	ctx, err := e.begin(ctx)
	if err != nil {
		return err
	}
	err = e.loop(ctx)
	e.finish(err)
	return err
}

// Start runs the playback loop on a new goroutine. Use Wait to collect the
// result.
func (e *Engine) Start(ctx context.Context) error {
	ctx, err := e.begin(ctx)
	if err != nil {
		return err
	}
	go func() {
		e.finish(e.loop(ctx))
	}()
	return nil
}

// Wait blocks until the loop has finished and returns its error.
func (e *Engine) Wait() error {
	if e.State() == StateUnstarted {
		return configErrorf("engine not started")
	}
	<-e.done
	return e.err
}

// Done is closed once the loop has finished.
func (e *Engine) Done() <-chan struct{} { return e.done }

func (e *Engine) begin(ctx context.Context) (context.Context, error) {
	if e.closed.Load() {
		return nil, configErrorf("engine is closed")
	}
	if !e.state.CompareAndSwap(int32(StateUnstarted), int32(StateRunning)) {
		return nil, configErrorf("engine already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()
	return ctx, nil
}

func (e *Engine) finish(err error) {
	e.video.End()
	e.audio.End()
	e.subtitle.End()

	e.err = err
	e.state.Store(int32(StateStopped))

	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	e.mu.Unlock()

	log := e.log.WithField("position", e.Position())
	if err != nil {
		log.WithError(err).Warn("playback stopped")
	} else {
		log.Debug("playback finished")
	}
	e.eachListener(func(l Listener) { l.OnEnd(err) })
	close(e.done)
}

func (e *Engine) loop(ctx context.Context) error {
	e.audio.Start()
	e.video.Start()
	e.subtitle.Start()
	e.eachListener(func(l Listener) { l.OnStart() })

	pkt := &Packet{}
	for {
		if err := e.gate.wait(ctx); err != nil {
			if e.closed.Load() {
				return nil
			}
			return err
		}
		e.mu.Lock()
		sel := e.sel
		e.mu.Unlock()

		e.applySeek(&sel)

		if err := e.container.readPacket(pkt); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return &DecodeError{Kind: KindUnknown, Index: -1, Code: nativeCode(err), Err: err}
		}
		e.statsMu.Lock()
		e.stats.Packets++
		e.statsMu.Unlock()

		var err error
		switch idx := pkt.StreamIndex; {
		case sel.audio != nil && idx == sel.audio.Index():
			err = e.decodeAudio(&sel, pkt)
		case sel.video != nil && idx == sel.video.Index():
			err = e.decodeVideo(&sel, pkt)
		case sel.sub != nil && idx == sel.sub.Index():
			err = e.decodeSubtitle(&sel, pkt)
		}
		if err != nil {
			return err
		}
	}
}

func (e *Engine) decodeAudio(sel *selection, pkt *Packet) error {
	idx := sel.audio.Index()
	for consumed := 0; consumed < len(pkt.Data); {
		n, frame, err := sel.adec.DecodeAudio(pkt.Data[consumed:], pkt)
		if err != nil {
			return &DecodeError{Kind: KindAudio, Index: idx, Code: nativeCode(err), Err: err}
		}
		if n < 0 || n > len(pkt.Data)-consumed {
			return &DecodeError{Kind: KindAudio, Index: idx,
				Err: fmt.Errorf("decoder consumed %d of %d remaining bytes", n, len(pkt.Data)-consumed)}
		}
		if n == 0 && frame == nil {
			return &DecodeError{Kind: KindAudio, Index: idx,
				Err: fmt.Errorf("decoder made no progress at byte %d of %d", consumed, len(pkt.Data))}
		}
		consumed += n
		if frame == nil {
			continue
		}

		samples, err := sel.sconv.Convert(frame)
		if err != nil {
			return &DecodeError{Kind: KindAudio, Index: idx, Err: err}
		}
		e.statsMu.Lock()
		e.stats.AudioFrames++
		e.stats.AudioBytes += uint64(len(samples))
		e.statsMu.Unlock()
		e.audio.HandleSamples(samples)
	}
	return nil
}

func (e *Engine) decodeVideo(sel *selection, pkt *Packet) error {
	idx := sel.video.Index()
	pic, err := sel.vdec.DecodeVideo(pkt)
	if err != nil {
		return &DecodeError{Kind: KindVideo, Index: idx, Code: nativeCode(err), Err: err}
	}
	if pic == nil {
		return nil
	}
	if err := sel.conv.Convert(pic, sel.raster); err != nil {
		return &DecodeError{Kind: KindVideo, Index: idx, Err: err}
	}
	for _, f := range e.filters {
		f.Apply(sel.raster)
	}
	out := sel.raster
	if e.scaler != nil {
		out = e.scaler.Scale(out)
	}

	durationMs := sel.video.TimeBase().TicksToMillis(pkt.Duration)
	e.position.Add(durationMs)

	e.statsMu.Lock()
	e.stats.VideoFrames++
	if durationMs < 0 {
		e.stats.LateFrames++
	}
	e.statsMu.Unlock()

	e.video.HandleFrame(out, durationMs)
	return nil
}

func (e *Engine) decodeSubtitle(sel *selection, pkt *Packet) error {
	idx := sel.sub.Index()
	frame, err := sel.sdec.DecodeSubtitle(pkt)
	if err != nil {
		return &DecodeError{Kind: KindSubtitle, Index: idx, Code: nativeCode(err), Err: err}
	}
	if frame == nil {
		return nil
	}

	tb := sel.sub.TimeBase()
	start, end := tb.TicksToMillis(frame.Start), tb.TicksToMillis(frame.End)
	for i := range frame.Regions {
		sub, err := e.renderer.Render(idx, &frame.Regions[i], sel.sdec.SubtitleHeader)
		if err != nil {
			return err
		}
		if sub == nil {
			continue
		}
		e.statsMu.Lock()
		e.stats.SubtitleEvents++
		e.statsMu.Unlock()
		e.subtitle.HandleSubtitle(sub, start, end)
	}
	return nil
}

// applySeek performs a pending seek at a packet boundary and flushes every
// active decoder.
func (e *Engine) applySeek(sel *selection) {
	e.mu.Lock()
	ms := e.pendingSeek.Swap(-1)
	origin := e.seekOrigin
	e.mu.Unlock()
	if ms < 0 {
		return
	}
	log := e.log.WithField("target", ms)

	if err := e.container.seek(ms * 1000); err != nil {
		// The read cursor did not move; keep whatever was played since Seek.
		e.position.Add(origin - ms)
		e.statsMu.Lock()
		e.stats.SeekFailures++
		e.statsMu.Unlock()
		log.WithError(err).Warn("seek failed")
		e.eachListener(func(l Listener) { l.OnSeekFailed(ms, err) })
		return
	}
	for _, dec := range []Decoder{sel.vdec, sel.adec, sel.sdec} {
		if dec != nil {
			dec.Flush()
		}
	}
	e.position.Store(ms)

	e.statsMu.Lock()
	e.stats.Seeks++
	e.statsMu.Unlock()
	log.Debug("seek applied")
}

// SetPlaying pauses or resumes a running engine. Pausing takes effect at the
// next packet boundary.
func (e *Engine) SetPlaying(playing bool) error {
	if st := e.State(); st != StateRunning {
		return configErrorf("cannot change playing state of %s engine", st)
	}
	e.gate.set(!playing)
	e.log.WithField("playing", playing).Debug("playing state changed")
	return nil
}

// IsPlaying reports whether the loop is running and not paused.
func (e *Engine) IsPlaying() bool {
	return e.State() == StateRunning && !e.gate.paused.Load()
}

// Seek moves playback to ms. The position is reset immediately; the demuxer
// seek and decoder flush happen at the next packet boundary. A failed native
// seek restores the previous position and is reported to listeners through
// OnSeekFailed.
func (e *Engine) Seek(ms int64) error {
	if e.State() == StateStopped || e.closed.Load() {
		return configErrorf("cannot seek a stopped engine")
	}
	if length := e.container.Length(); ms < 0 || ms > length {
		return argErrorf("seek position %d outside [0, %d]", ms, length)
	}
	e.mu.Lock()
	if e.pendingSeek.Load() < 0 {
		e.seekOrigin = e.position.Load()
	}
	e.pendingSeek.Store(ms)
	e.position.Store(ms)
	e.mu.Unlock()
	e.eachListener(func(l Listener) { l.OnSeek(ms) })
	return nil
}

// Position returns the playback position in milliseconds.
func (e *Engine) Position() int64 { return e.position.Load() }

// State returns the lifecycle state.
func (e *Engine) State() EngineState { return EngineState(e.state.Load()) }

// Stats returns playback statistics.
func (e *Engine) Stats() EngineStats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.stats
}

// Close releases the engine's buffers and conversion state and stops a
// running loop at its next packet boundary. It does not close the container
// or stream handles. Safe to call multiple times.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.mu.Lock()
	cancel := e.cancel
	e.sel.raster, e.sel.conv, e.sel.sconv = nil, nil, nil
	e.sel.vdec, e.sel.adec, e.sel.sdec = nil, nil, nil
	e.sel.video, e.sel.audio, e.sel.sub = nil, nil, nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.log.Debug("engine closed")
	return nil
}
