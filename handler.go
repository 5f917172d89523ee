package avplay

// AudioHandler receives decoded audio. Samples are signed 16-bit little-endian,
// channel-interleaved. The slice is only valid for the duration of the call.
type AudioHandler interface {
	Start()
	HandleSamples(samples []byte)
	End()
}

// VideoHandler receives decoded video as RGB24 rasters. The raster is reused by
// the engine and is only valid for the duration of the call; use Clone to keep
// it. A negative duration marks a frame that is late relative to the timeline.
type VideoHandler interface {
	Start()
	HandleFrame(frame *Raster, durationMs int64)
	End()
}

// SubtitleHandler receives subtitle events with their display interval in
// milliseconds.
type SubtitleHandler interface {
	Start()
	HandleSubtitle(sub Subtitle, startMs, endMs int64)
	End()
}

// AudioFuncs adapts functions to AudioHandler. Nil fields are skipped.
type AudioFuncs struct {
	OnStart   func()
	OnSamples func(samples []byte)
	OnEnd     func()
}

func (f AudioFuncs) Start() {
	if f.OnStart != nil {
		f.OnStart()
	}
}

func (f AudioFuncs) HandleSamples(samples []byte) {
	if f.OnSamples != nil {
		f.OnSamples(samples)
	}
}

func (f AudioFuncs) End() {
	if f.OnEnd != nil {
		f.OnEnd()
	}
}

// VideoFuncs adapts functions to VideoHandler. Nil fields are skipped.
type VideoFuncs struct {
	OnStart func()
	OnFrame func(frame *Raster, durationMs int64)
	OnEnd   func()
}

func (f VideoFuncs) Start() {
	if f.OnStart != nil {
		f.OnStart()
	}
}

func (f VideoFuncs) HandleFrame(frame *Raster, durationMs int64) {
	if f.OnFrame != nil {
		f.OnFrame(frame, durationMs)
	}
}

func (f VideoFuncs) End() {
	if f.OnEnd != nil {
		f.OnEnd()
	}
}

// SubtitleFuncs adapts functions to SubtitleHandler. Nil fields are skipped.
type SubtitleFuncs struct {
	OnStart    func()
	OnSubtitle func(sub Subtitle, startMs, endMs int64)
	OnEnd      func()
}

func (f SubtitleFuncs) Start() {
	if f.OnStart != nil {
		f.OnStart()
	}
}

func (f SubtitleFuncs) HandleSubtitle(sub Subtitle, startMs, endMs int64) {
	if f.OnSubtitle != nil {
		f.OnSubtitle(sub, startMs, endMs)
	}
}

func (f SubtitleFuncs) End() {
	if f.OnEnd != nil {
		f.OnEnd()
	}
}

// Listener observes engine lifecycle events. Methods are called on the loop
// goroutine, except OnSeek which runs on the caller of Seek.
type Listener interface {
	OnStart()
	OnEnd(err error)
	OnSeek(ms int64)
	OnSeekFailed(ms int64, err error)
}

// ListenerFuncs adapts functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Started    func()
	Ended      func(err error)
	Seeked     func(ms int64)
	SeekFailed func(ms int64, err error)
}

func (f ListenerFuncs) OnStart() {
	if f.Started != nil {
		f.Started()
	}
}

func (f ListenerFuncs) OnEnd(err error) {
	if f.Ended != nil {
		f.Ended(err)
	}
}

func (f ListenerFuncs) OnSeek(ms int64) {
	if f.Seeked != nil {
		f.Seeked(ms)
	}
}

func (f ListenerFuncs) OnSeekFailed(ms int64, err error) {
	if f.SeekFailed != nil {
		f.SeekFailed(ms, err)
	}
}

type noAudio struct{}

func (noAudio) Start()               {}
func (noAudio) HandleSamples([]byte) {}
func (noAudio) End()                 {}

type noVideo struct{}

func (noVideo) Start()                     {}
func (noVideo) HandleFrame(*Raster, int64) {}
func (noVideo) End()                       {}

type noSubtitle struct{}

func (noSubtitle) Start()                                {}
func (noSubtitle) HandleSubtitle(Subtitle, int64, int64) {}
func (noSubtitle) End()                                  {}
