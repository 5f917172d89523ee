package sink

import (
	"context"
	"fmt"
	"image/png"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/thesyncim/avplay"
)

// PacerStats counts delivered and dropped frames.
type PacerStats struct {
	Frames    int64
	Dropped   int64
	Snapshots int64
}

// LossRate returns the fraction of frames dropped for being late.
func (s PacerStats) LossRate() float64 {
	if s.Frames == 0 {
		return 0
	}
	return float64(s.Dropped) / float64(s.Frames)
}

// VideoPacer presents frames at their duration. Late frames (negative
// duration) are dropped and counted. Every Nth frame can be written to PNG.
type VideoPacer struct {
	ctx      context.Context
	realtime bool
	sleep    func(ctx context.Context, d time.Duration)

	fs            afero.Fs
	snapshotDir   string
	snapshotEvery int64

	log logrus.FieldLogger

	mu    sync.Mutex
	stats PacerStats
}

// PacerConfig configures a VideoPacer.
type PacerConfig struct {
	Realtime      bool
	Fs            afero.Fs
	SnapshotDir   string
	SnapshotEvery int
}

// NewVideoPacer creates a pacer whose sleeps end early when ctx is done.
func NewVideoPacer(ctx context.Context, cfg PacerConfig, log logrus.FieldLogger) *VideoPacer {
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	return &VideoPacer{
		ctx:           ctx,
		realtime:      cfg.Realtime,
		sleep:         sleepContext,
		fs:            cfg.Fs,
		snapshotDir:   cfg.SnapshotDir,
		snapshotEvery: int64(cfg.SnapshotEvery),
		log:           log.WithField("component", "video"),
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (v *VideoPacer) Start() {
	if v.snapshotDir != "" && v.snapshotEvery > 0 {
		if err := v.fs.MkdirAll(v.snapshotDir, 0o755); err != nil {
			v.log.WithError(err).Warn("cannot create snapshot directory")
			v.snapshotEvery = 0
		}
	}
}

func (v *VideoPacer) HandleFrame(frame *avplay.Raster, durationMs int64) {
	v.mu.Lock()
	v.stats.Frames++
	n := v.stats.Frames
	if durationMs < 0 {
		v.stats.Dropped++
		v.mu.Unlock()
		return
	}
	v.mu.Unlock()

	if v.snapshotEvery > 0 && (n-1)%v.snapshotEvery == 0 {
		if err := v.snapshot(frame, n); err != nil {
			v.log.WithError(err).Warn("snapshot failed")
		} else {
			v.mu.Lock()
			v.stats.Snapshots++
			v.mu.Unlock()
		}
	}

	if v.realtime && durationMs > 0 {
		v.sleep(v.ctx, time.Duration(durationMs)*time.Millisecond)
	}
}

func (v *VideoPacer) snapshot(frame *avplay.Raster, n int64) error {
	path := filepath.Join(v.snapshotDir, fmt.Sprintf("frame-%06d.png", n))
	f, err := v.fs.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, frame); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (v *VideoPacer) End() {
	s := v.Stats()
	v.log.WithFields(logrus.Fields{
		"frames":    s.Frames,
		"dropped":   s.Dropped,
		"loss_rate": fmt.Sprintf("%.2f%%", s.LossRate()*100),
	}).Info("video finished")
}

// Stats returns a snapshot of the counters.
func (v *VideoPacer) Stats() PacerStats {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stats
}
