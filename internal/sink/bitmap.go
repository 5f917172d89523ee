package sink

import (
	"fmt"
	"image/png"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/thesyncim/avplay"
)

// BitmapDumper writes bitmap subtitles to PNG files named after their start
// time.
type BitmapDumper struct {
	fs  afero.Fs
	dir string

	mu    sync.Mutex
	count int
	ready bool
}

// NewBitmapDumper writes into dir on fs.
func NewBitmapDumper(fs afero.Fs, dir string) *BitmapDumper {
	return &BitmapDumper{fs: fs, dir: dir}
}

// Dump encodes sub and returns the written path.
func (d *BitmapDumper) Dump(sub *avplay.BitmapSubtitle, startMs int64) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.ready {
		if err := d.fs.MkdirAll(d.dir, 0o755); err != nil {
			return "", err
		}
		d.ready = true
	}

	d.count++
	path := filepath.Join(d.dir, fmt.Sprintf("sub-%09d-%04d.png", startMs, d.count))
	f, err := d.fs.Create(path)
	if err != nil {
		return "", err
	}
	if err := png.Encode(f, sub.Image); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

// Count returns the number of files written.
func (d *BitmapDumper) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}
