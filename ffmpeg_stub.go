//go:build !(darwin || linux) || noffmpeg

package avplay

import "fmt"

func init() {
	RegisterBackend("", ffmpegBackend{})
}

func loadFFmpeg() error {
	return fmt.Errorf("%w: ffmpeg provider not built for this platform", ErrProviderUnavailable)
}

// FFmpegVersion returns "" when the FFmpeg provider is not built.
func FFmpegVersion() string { return "" }

type ffmpegBackend struct{}

func (ffmpegBackend) Provider() Provider { return ProviderFFmpeg }

func (ffmpegBackend) OpenDemuxer(string) (Demuxer, error) {
	return nil, loadFFmpeg()
}
