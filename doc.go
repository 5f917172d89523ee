// Package avplay opens media containers through native decode providers and
// plays them: packets are demultiplexed, decoded, converted to presentation
// formats and dispatched to caller-supplied handlers.
//
// Key pieces include:
//   - Container and its typed VideoStream/AudioStream/SubtitleStream values
//   - Engine, built with NewBuilder, which owns the run loop
//   - FrameConverter, SampleConverter and RasterScaler for presentation formats
//   - SubtitleRenderer and DialogueParser for bitmap, text and ASS/SSA events
//   - A synthetic "pattern:" source for tests and demos
//
// # Architecture
//
//	Video:    Demuxer -> Decoder -> FrameConverter -> Filters -> RasterScaler -> VideoHandler
//	Audio:    Demuxer -> Decoder -> SampleConverter -> AudioHandler
//	Subtitle: Demuxer -> Decoder -> SubtitleRenderer -> SubtitleHandler
//
// Handlers run on the loop goroutine. Pause, resume and seek take effect at
// the next packet boundary.
//
// # Native Libraries
//
// File and network sources are opened through libavplay_ffmpeg, built from
// clib/ into build/ and loaded with purego, so CGO_ENABLED=0 works. Set
// AVPLAY_FFMPEG_LIB_PATH to the directory containing the library. Without it
// only registered schemes such as "pattern:" can be opened.
//
// # Build Tags
//
//   - noffmpeg: never load the FFmpeg provider
package avplay
