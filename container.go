package avplay

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Container is an opened media source and its streams.
type Container struct {
	source   string
	scheme   string
	backend  Backend
	demux    Demuxer
	streams  []Stream
	byIndex  map[int]Stream
	duration int64 // microseconds, negative when unknown
	log      logrus.FieldLogger

	readMu sync.Mutex
	closed atomic.Bool
}

// OpenOption configures Open.
type OpenOption func(*openConfig)

type openConfig struct {
	backend Backend
	fs      afero.Fs
	log     logrus.FieldLogger
}

// WithBackend forces a backend instead of picking one by source scheme.
func WithBackend(b Backend) OpenOption {
	return func(c *openConfig) { c.backend = b }
}

// WithFs sets the filesystem used to check local sources.
func WithFs(fs afero.Fs) OpenOption {
	return func(c *openConfig) { c.fs = fs }
}

// WithLogger sets the logger of the container.
func WithLogger(l logrus.FieldLogger) OpenOption {
	return func(c *openConfig) { c.log = l }
}

// Open opens a media source. The locator is URL-decoded first; a local path or
// file: URL is checked through the configured filesystem.
func Open(source string, opts ...OpenOption) (*Container, error) {
	cfg := openConfig{
		fs:  afero.NewOsFs(),
		log: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if decoded, err := url.QueryUnescape(source); err == nil {
		source = decoded
	}
	if source == "" {
		return nil, fmt.Errorf("%w: empty source", ErrSourceOpen)
	}
	scheme := sourceScheme(source)
	log := cfg.log.WithField("component", "container").WithField("source", source)

	if scheme == "" || scheme == "file" {
		path := strings.TrimPrefix(source, "file://")
		path = strings.TrimPrefix(path, "file:")
		if _, err := cfg.fs.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrSourceOpen, source, err)
		}
	}

	backend := cfg.backend
	if backend == nil {
		var err error
		if backend, err = LookupBackend(scheme); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrSourceOpen, source, err)
		}
	}

	demux, err := backend.OpenDemuxer(source)
	if err != nil {
		if errors.Is(err, ErrSourceOpen) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceOpen, source, err)
	}

	c := &Container{
		source:   source,
		scheme:   scheme,
		backend:  backend,
		demux:    demux,
		byIndex:  make(map[int]Stream),
		duration: demux.DurationMicros(),
		log:      log,
	}
	if err := c.buildStreams(demux.Streams()); err != nil {
		demux.Close()
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"provider": backend.Provider(),
		"streams":  len(c.streams),
		"length":   c.Length(),
	}).Debug("container opened")
	return c, nil
}

func (c *Container) buildStreams(infos []StreamInfo) error {
	if len(infos) == 0 {
		return fmt.Errorf("%w: %s: no streams", ErrSourceFormat, c.source)
	}
	for _, info := range infos {
		if _, dup := c.byIndex[info.Index]; dup {
			return fmt.Errorf("%w: duplicate stream index %d", ErrSourceFormat, info.Index)
		}
		base := baseStream{info: info, container: c}
		var s Stream
		switch info.Kind {
		case KindVideo:
			s = &VideoStream{baseStream: base}
		case KindAudio:
			s = &AudioStream{baseStream: base}
		case KindSubtitle:
			s = &SubtitleStream{baseStream: base}
		default:
			c.log.WithField("index", info.Index).Debug("skipping stream of unknown kind")
			continue
		}
		c.streams = append(c.streams, s)
		c.byIndex[info.Index] = s
	}
	slices.SortFunc(c.streams, func(a, b Stream) int { return a.Index() - b.Index() })
	return nil
}

// sourceScheme returns the lower-cased URL scheme of source, or "" for a plain
// path. Single-letter schemes are treated as drive letters.
func sourceScheme(source string) string {
	i := strings.IndexByte(source, ':')
	if i < 2 {
		return ""
	}
	for j, r := range source[:i] {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if isAlpha {
			continue
		}
		if j > 0 && ((r >= '0' && r <= '9') || r == '+' || r == '-' || r == '.') {
			continue
		}
		return ""
	}
	return strings.ToLower(source[:i])
}

// Streams returns the streams of the given kind ordered by index.
func (c *Container) Streams(kind MediaKind) []Stream {
	return lo.Filter(c.streams, func(s Stream, _ int) bool { return s.Kind() == kind })
}

// VideoStreams returns the video streams ordered by index.
func (c *Container) VideoStreams() []*VideoStream {
	return typedStreams[*VideoStream](c.streams)
}

// AudioStreams returns the audio streams ordered by index.
func (c *Container) AudioStreams() []*AudioStream {
	return typedStreams[*AudioStream](c.streams)
}

// SubtitleStreams returns the subtitle streams ordered by index.
func (c *Container) SubtitleStreams() []*SubtitleStream {
	return typedStreams[*SubtitleStream](c.streams)
}

func typedStreams[T Stream](streams []Stream) []T {
	out := make([]T, 0, len(streams))
	for _, s := range streams {
		if t, ok := s.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

// AllStreams returns every stream ordered by index.
func (c *Container) AllStreams() []Stream {
	return append([]Stream(nil), c.streams...)
}

// Stream returns the stream with the given index.
func (c *Container) Stream(index int) (Stream, bool) {
	s, ok := c.byIndex[index]
	return s, ok
}

// Length returns the duration in milliseconds, 0 when undetermined.
func (c *Container) Length() int64 {
	if c.duration <= 0 {
		return 0
	}
	return c.duration / 1000
}

// Source returns the decoded source locator.
func (c *Container) Source() string { return c.source }

// Provider returns the provider of the backend that opened the source.
func (c *Container) Provider() Provider { return c.backend.Provider() }

// Closed reports whether Close has been called.
func (c *Container) Closed() bool { return c.closed.Load() }

// Close closes cached stream handles and releases the demux context.
// Safe to call multiple times.
func (c *Container) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	for _, s := range c.streams {
		b := s.base()
		b.mu.Lock()
		if b.handle != nil {
			errs = append(errs, b.handle.Close())
		}
		b.mu.Unlock()
	}

	c.readMu.Lock()
	errs = append(errs, c.demux.Close())
	c.readMu.Unlock()

	c.log.Debug("container closed")
	return errors.Join(errs...)
}

// readPacket advances the read cursor.
func (c *Container) readPacket(pkt *Packet) error {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	if c.closed.Load() {
		return io.EOF
	}
	return c.demux.ReadPacket(pkt)
}

func (c *Container) seek(micros int64) error {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	if c.closed.Load() {
		return configErrorf("container is closed")
	}
	return c.demux.Seek(micros)
}
