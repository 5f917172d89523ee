// Package sink holds the presentation handlers used by the avplay shell.
package sink

import (
	"bufio"
	"io"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// PCMWriter writes delivered S16LE samples to w.
type PCMWriter struct {
	w     io.Writer
	bw    *bufio.Writer
	log   logrus.FieldLogger
	bytes atomic.Int64
	err   error
}

// NewPCMWriter returns a writer that buffers samples into w. When w is an
// io.Closer it is closed on End.
func NewPCMWriter(w io.Writer, log logrus.FieldLogger) *PCMWriter {
	return &PCMWriter{
		w:   w,
		bw:  bufio.NewWriterSize(w, 64*1024),
		log: log.WithField("component", "pcm"),
	}
}

func (p *PCMWriter) Start() {}

// HandleSamples copies samples out; the engine reuses the slice.
func (p *PCMWriter) HandleSamples(samples []byte) {
	if p.err != nil {
		return
	}
	n, err := p.bw.Write(samples)
	p.bytes.Add(int64(n))
	if err != nil {
		p.err = err
		p.log.WithError(err).Error("pcm write failed, dropping further samples")
	}
}

func (p *PCMWriter) End() {
	if err := p.bw.Flush(); err != nil && p.err == nil {
		p.err = err
	}
	if c, ok := p.w.(io.Closer); ok {
		if err := c.Close(); err != nil && p.err == nil {
			p.err = err
		}
	}
	p.log.WithField("bytes", p.bytes.Load()).Debug("pcm output finished")
}

// Bytes returns the number of bytes written.
func (p *PCMWriter) Bytes() int64 { return p.bytes.Load() }

// Err returns the first write error.
func (p *PCMWriter) Err() error { return p.err }
