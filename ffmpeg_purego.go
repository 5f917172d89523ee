//go:build (darwin || linux) && !noffmpeg

// FFmpeg provider via libavplay_ffmpeg using purego.

package avplay

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

var (
	ffmpegOnce    sync.Once
	ffmpegHandle  uintptr
	ffmpegInitErr error
)

// libavplay_ffmpeg function pointers
var (
	avpOpen            func(url string, errOut uintptr) uint64
	avpDurationUs      func(demuxer uint64) int64
	avpStreamCount     func(demuxer uint64) int32
	avpStreamInfo      func(demuxer uint64, index int32, out uintptr) int32
	avpDemuxerRead     func(demuxer uint64, out uintptr) int32
	avpDemuxerSeek     func(demuxer uint64, us int64) int32
	avpClose           func(demuxer uint64)
	avpDecoderOpen     func(demuxer uint64, index int32, errOut uintptr) uint64
	avpDecodeVideo     func(decoder uint64, data uintptr, size int32, pts, dts, duration int64, out uintptr) int32
	avpSendPacket      func(decoder uint64, data uintptr, size int32, pts, dts, duration int64) int32
	avpReceiveAudio    func(decoder uint64, out uintptr) int32
	avpDecodeSubtitle  func(decoder uint64, data uintptr, size int32, pts, duration int64, out uintptr) int32
	avpSubtitleRect    func(decoder uint64, index int32, out uintptr) int32
	avpSubtitleHeader  func(decoder uint64) uintptr
	avpDecoderLongName func(decoder uint64) uintptr
	avpDecoderFlush    func(decoder uint64)
	avpDecoderClose    func(decoder uint64)
	avpVersion         func() uintptr
	avpStrerror        func(code int32) uintptr
)

// Constants from avplay_ffmpeg.h
const (
	avpEOF              = 1
	avpErrorNoDecoder   = -1
	avpErrorNoStream    = -2
	avpStreamVideo      = 0
	avpStreamAudio      = 1
	avpStreamSubtitle   = 2
	avpPacketKey        = 1
	avpRectBitmap       = 1
	avpRectText         = 2
	avpRectDialogue     = 3
	avpMaxSubtitleRects = 64
)

// The result structs below are heap-allocated and passed by pointer; purego
// output parameters on the goroutine stack are unsafe on arm64.

// avpStreamInfoResult mirrors avp_stream_info.
type avpStreamInfoResult struct {
	Index         int32
	Kind          int32
	TimeBaseNum   int32
	TimeBaseDen   int32
	Width         int32
	Height        int32
	PixelFormat   int32
	SampleRate    int32
	Channels      int32
	SampleFormat  int32
	Dialect       int32
	_             int32
	Duration      int64
	ChannelLayout uint64
	CodecName     [64]byte
	LongCodecName [256]byte
	Language      [16]byte
}

// avpPacketResult mirrors avp_packet. Data stays owned by the demuxer until
// the next read.
type avpPacketResult struct {
	Data        uintptr
	Size        int32
	StreamIndex int32
	PTS         int64
	DTS         int64
	Duration    int64
	Flags       int32
	_           int32
}

// avpPictureResult mirrors avp_picture.
type avpPictureResult struct {
	Data     [4]uintptr
	Linesize [4]int32
	Width    int32
	Height   int32
	Format   int32
	_        int32
}

// avpAudioResult mirrors avp_audio.
type avpAudioResult struct {
	Data       [8]uintptr
	Linesize   int32
	Samples    int32
	SampleRate int32
	Channels   int32
	Format     int32
	_          int32
}

// avpSubtitleResult mirrors avp_subtitle.
type avpSubtitleResult struct {
	Start    int64
	End      int64
	NumRects int32
	_        int32
}

// avpRectResult mirrors avp_rect.
type avpRectResult struct {
	Type     int32
	X        int32
	Y        int32
	Width    int32
	Height   int32
	Linesize int32
	NbColors int32
	_        int32
	Pix      uintptr
	Palette  uintptr
	Text     uintptr
}

func init() {
	RegisterBackend("", ffmpegBackend{})
}

func loadFFmpeg() error {
	ffmpegOnce.Do(func() {
		ffmpegInitErr = loadFFmpegLib()
		if ffmpegInitErr == nil {
			setProviderAvailable(ProviderFFmpeg)
		}
	})
	return ffmpegInitErr
}

func loadFFmpegLib() error {
	paths := getFFmpegLibPaths()

	var lastErr error
	for _, path := range paths {
		handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil {
			ffmpegHandle = handle
			if err := loadFFmpegSymbols(); err != nil {
				purego.Dlclose(handle)
				lastErr = err
				continue
			}
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("%w: failed to load libavplay_ffmpeg: %v", ErrProviderUnavailable, lastErr)
	}
	return fmt.Errorf("%w: libavplay_ffmpeg not found in any standard location", ErrProviderUnavailable)
}

func getFFmpegLibPaths() []string {
	var paths []string

	libName := "libavplay_ffmpeg.so"
	if runtime.GOOS == "darwin" {
		libName = "libavplay_ffmpeg.dylib"
	}

	// Environment variable overrides (highest priority)
	if envPath := os.Getenv("AVPLAY_FFMPEG_LIB_PATH"); envPath != "" {
		paths = append(paths, envPath)
	}
	if envPath := os.Getenv("AVPLAY_SDK_LIB_PATH"); envPath != "" {
		paths = append(paths, filepath.Join(envPath, libName))
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, libName),
			filepath.Join(exeDir, "..", "lib", libName),
			filepath.Join(exeDir, "..", "..", "build", libName),
		)
	}

	if wd, err := os.Getwd(); err == nil {
		for _, up := range []string{".", "..", "../..", "../../.."} {
			paths = append(paths, filepath.Join(wd, up, "build", libName))
		}
	}

	if root := findSourceRoot(); root != "" {
		paths = append(paths, filepath.Join(root, "build", libName))
	}
	if root := findModuleRoot(); root != "" {
		paths = append(paths, filepath.Join(root, "build", libName))
	}

	// System paths (lowest priority)
	switch runtime.GOOS {
	case "darwin":
		paths = append(paths,
			libName,
			"/usr/local/lib/"+libName,
			"/opt/homebrew/lib/"+libName,
		)
	case "linux":
		paths = append(paths,
			libName,
			"/usr/local/lib/"+libName,
			"/usr/lib/"+libName,
		)
	}

	return paths
}

func loadFFmpegSymbols() (err error) {
	// RegisterLibFunc panics on a missing symbol; an old shim is a load failure.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("libavplay_ffmpeg: %v", r)
		}
	}()

	purego.RegisterLibFunc(&avpOpen, ffmpegHandle, "avp_open")
	purego.RegisterLibFunc(&avpDurationUs, ffmpegHandle, "avp_demuxer_duration_us")
	purego.RegisterLibFunc(&avpStreamCount, ffmpegHandle, "avp_stream_count")
	purego.RegisterLibFunc(&avpStreamInfo, ffmpegHandle, "avp_stream_info")
	purego.RegisterLibFunc(&avpDemuxerRead, ffmpegHandle, "avp_demuxer_read")
	purego.RegisterLibFunc(&avpDemuxerSeek, ffmpegHandle, "avp_demuxer_seek")
	purego.RegisterLibFunc(&avpClose, ffmpegHandle, "avp_close")

	purego.RegisterLibFunc(&avpDecoderOpen, ffmpegHandle, "avp_decoder_open")
	purego.RegisterLibFunc(&avpDecodeVideo, ffmpegHandle, "avp_decode_video")
	purego.RegisterLibFunc(&avpSendPacket, ffmpegHandle, "avp_send_packet")
	purego.RegisterLibFunc(&avpReceiveAudio, ffmpegHandle, "avp_receive_audio")
	purego.RegisterLibFunc(&avpDecodeSubtitle, ffmpegHandle, "avp_decode_subtitle")
	purego.RegisterLibFunc(&avpSubtitleRect, ffmpegHandle, "avp_subtitle_rect")
	purego.RegisterLibFunc(&avpSubtitleHeader, ffmpegHandle, "avp_decoder_subtitle_header")
	purego.RegisterLibFunc(&avpDecoderLongName, ffmpegHandle, "avp_decoder_long_name")
	purego.RegisterLibFunc(&avpDecoderFlush, ffmpegHandle, "avp_decoder_flush")
	purego.RegisterLibFunc(&avpDecoderClose, ffmpegHandle, "avp_decoder_close")

	purego.RegisterLibFunc(&avpVersion, ffmpegHandle, "avp_version")
	purego.RegisterLibFunc(&avpStrerror, ffmpegHandle, "avp_strerror")
	return nil
}

// FFmpegVersion returns the libavformat/libavcodec version string reported by
// libavplay_ffmpeg, or "" when the library is not loaded.
func FFmpegVersion() string {
	if err := loadFFmpeg(); err != nil {
		return ""
	}
	return goStringFromPtr(avpVersion())
}

func ffmpegError(op string, code int32) error {
	msg := "unknown error"
	if ptr := avpStrerror(code); ptr != 0 {
		msg = goStringFromPtr(ptr)
	}
	return &NativeError{Op: op, Code: int(code), Msg: msg}
}

// ffmpegBackend opens every source libavformat understands: files, URLs and
// devices.
type ffmpegBackend struct{}

func (ffmpegBackend) Provider() Provider { return ProviderFFmpeg }

func (ffmpegBackend) OpenDemuxer(source string) (Demuxer, error) {
	if err := loadFFmpeg(); err != nil {
		return nil, err
	}

	code := new(int32)
	handle := avpOpen(source, uintptr(unsafe.Pointer(code)))
	if handle == 0 {
		return nil, ffmpegError("avformat_open_input", *code)
	}

	d := &ffmpegDemuxer{handle: handle, pkt: new(avpPacketResult)}
	n := int(avpStreamCount(handle))
	d.streams = make([]StreamInfo, 0, n)
	res := new(avpStreamInfoResult)
	for i := 0; i < n; i++ {
		if rc := avpStreamInfo(handle, int32(i), uintptr(unsafe.Pointer(res))); rc < 0 {
			avpClose(handle)
			return nil, ffmpegError("avformat_find_stream_info", rc)
		}
		d.streams = append(d.streams, res.toStreamInfo())
	}
	runtime.KeepAlive(code)
	return d, nil
}

func (r *avpStreamInfoResult) toStreamInfo() StreamInfo {
	info := StreamInfo{
		Index:         int(r.Index),
		Kind:          KindUnknown,
		CodecName:     cString(r.CodecName[:]),
		LongCodecName: cString(r.LongCodecName[:]),
		TimeBase:      Rational{Num: int64(r.TimeBaseNum), Den: int64(r.TimeBaseDen)},
		Duration:      r.Duration,
		Language:      cString(r.Language[:]),
	}
	switch r.Kind {
	case avpStreamVideo:
		info.Kind = KindVideo
		info.Width = int(r.Width)
		info.Height = int(r.Height)
		info.PixelFormat = PixelFormat(r.PixelFormat)
	case avpStreamAudio:
		info.Kind = KindAudio
		info.SampleRate = int(r.SampleRate)
		info.Channels = int(r.Channels)
		info.ChannelLayout = r.ChannelLayout
		info.SampleFormat = SampleFormat(r.SampleFormat)
	case avpStreamSubtitle:
		info.Kind = KindSubtitle
		info.Dialect = SubtitleDialect(r.Dialect)
	}
	return info
}

// ffmpegDemuxer wraps an AVFormatContext owned by the shim.
type ffmpegDemuxer struct {
	handle  uint64
	streams []StreamInfo
	pkt     *avpPacketResult
	mu      sync.Mutex
}

func (d *ffmpegDemuxer) Streams() []StreamInfo { return d.streams }

func (d *ffmpegDemuxer) DurationMicros() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handle == 0 {
		return -1
	}
	return avpDurationUs(d.handle)
}

func (d *ffmpegDemuxer) ReadPacket(pkt *Packet) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handle == 0 {
		return io.EOF
	}

	rc := avpDemuxerRead(d.handle, uintptr(unsafe.Pointer(d.pkt)))
	if rc == avpEOF {
		return io.EOF
	}
	if rc < 0 {
		return ffmpegError("av_read_frame", rc)
	}

	p := d.pkt
	*pkt = Packet{
		StreamIndex: int(p.StreamIndex),
		PTS:         p.PTS,
		DTS:         p.DTS,
		Duration:    p.Duration,
		FrameType:   FrameTypeDelta,
	}
	if p.Flags&avpPacketKey != 0 {
		pkt.FrameType = FrameTypeKey
	}
	if p.Data != 0 && p.Size > 0 {
		pkt.Data = unsafe.Slice((*byte)(unsafe.Pointer(p.Data)), int(p.Size))
	}
	return nil
}

func (d *ffmpegDemuxer) OpenDecoder(index int) (Decoder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handle == 0 {
		return nil, errors.New("demuxer closed")
	}
	if index < 0 || index >= len(d.streams) {
		return nil, fmt.Errorf("%w: stream #%d", ErrArgument, index)
	}

	code := new(int32)
	h := avpDecoderOpen(d.handle, int32(index), uintptr(unsafe.Pointer(code)))
	if h == 0 {
		err := ffmpegError("avcodec_open2", *code)
		if *code == avpErrorNoDecoder {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedCodec, d.streams[index].CodecName, err)
		}
		return nil, err
	}
	runtime.KeepAlive(code)

	info := d.streams[index]
	return &ffmpegDecoder{
		handle: h,
		info:   info,
		pic:    new(avpPictureResult),
		audio:  new(avpAudioResult),
		sub:    new(avpSubtitleResult),
		rect:   new(avpRectResult),
	}, nil
}

func (d *ffmpegDemuxer) Seek(micros int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handle == 0 {
		return errors.New("demuxer closed")
	}
	if rc := avpDemuxerSeek(d.handle, micros); rc < 0 {
		return ffmpegError("av_seek_frame", rc)
	}
	return nil
}

func (d *ffmpegDemuxer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handle != 0 {
		avpClose(d.handle)
		d.handle = 0
	}
	return nil
}

// ffmpegDecoder wraps an AVCodecContext. Returned pictures and sample frames
// alias the decoder's AVFrame.
type ffmpegDecoder struct {
	handle uint64
	info   StreamInfo
	sent   bool

	pic   *avpPictureResult
	audio *avpAudioResult
	sub   *avpSubtitleResult
	rect  *avpRectResult

	picture Picture
	samples SampleFrame
}

func (d *ffmpegDecoder) CodecName() string { return d.info.CodecName }

func (d *ffmpegDecoder) LongCodecName() string {
	if name := goStringFromPtr(avpDecoderLongName(d.handle)); name != "" {
		return name
	}
	return d.info.LongCodecName
}

func dataPtr(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

func (d *ffmpegDecoder) DecodeVideo(pkt *Packet) (*Picture, error) {
	rc := avpDecodeVideo(d.handle, dataPtr(pkt.Data), int32(len(pkt.Data)), pkt.PTS, pkt.DTS, pkt.Duration, uintptr(unsafe.Pointer(d.pic)))
	runtime.KeepAlive(pkt.Data)
	if rc < 0 {
		return nil, ffmpegError("avcodec_receive_frame", rc)
	}
	if rc == 0 {
		return nil, nil
	}

	p := d.pic
	format := PixelFormat(p.Format)
	planes := format.PlaneCount()
	d.picture.Data = d.picture.Data[:0]
	d.picture.Stride = d.picture.Stride[:0]
	for i := 0; i < planes; i++ {
		h := planeHeight(format, i, int(p.Height))
		size := int(p.Linesize[i]) * h
		if p.Data[i] == 0 || size <= 0 {
			break
		}
		d.picture.Data = append(d.picture.Data, unsafe.Slice((*byte)(unsafe.Pointer(p.Data[i])), size))
		d.picture.Stride = append(d.picture.Stride, int(p.Linesize[i]))
	}
	d.picture.Width = int(p.Width)
	d.picture.Height = int(p.Height)
	d.picture.Format = format
	return &d.picture, nil
}

func planeHeight(format PixelFormat, plane, height int) int {
	if plane == 0 {
		return height
	}
	switch format {
	case PixelFormatI420, PixelFormatJ420, PixelFormatNV12:
		return (height + 1) / 2
	default:
		return height
	}
}

// DecodeAudio sends the packet once, then drains one frame per call. The
// packet counts as consumed when the decoder has nothing left to return.
func (d *ffmpegDecoder) DecodeAudio(data []byte, pkt *Packet) (int, *SampleFrame, error) {
	if !d.sent {
		rc := avpSendPacket(d.handle, dataPtr(data), int32(len(data)), pkt.PTS, pkt.DTS, pkt.Duration)
		runtime.KeepAlive(data)
		if rc < 0 {
			return 0, nil, ffmpegError("avcodec_send_packet", rc)
		}
		d.sent = true
	}

	rc := avpReceiveAudio(d.handle, uintptr(unsafe.Pointer(d.audio)))
	if rc < 0 {
		d.sent = false
		return 0, nil, ffmpegError("avcodec_receive_frame", rc)
	}
	if rc == 0 {
		d.sent = false
		return len(data), nil, nil
	}

	a := d.audio
	format := SampleFormat(a.Format)
	planes := 1
	if format.Planar() {
		planes = int(a.Channels)
	}
	size := int(a.Samples) * format.BytesPerSample()
	if !format.Planar() {
		size *= int(a.Channels)
	}
	d.samples.Data = d.samples.Data[:0]
	for i := 0; i < planes && i < len(a.Data); i++ {
		if a.Data[i] == 0 {
			break
		}
		d.samples.Data = append(d.samples.Data, unsafe.Slice((*byte)(unsafe.Pointer(a.Data[i])), size))
	}
	d.samples.Format = format
	d.samples.SampleRate = int(a.SampleRate)
	d.samples.Channels = int(a.Channels)
	d.samples.Samples = int(a.Samples)
	return 0, &d.samples, nil
}

func (d *ffmpegDecoder) DecodeSubtitle(pkt *Packet) (*SubtitleFrame, error) {
	rc := avpDecodeSubtitle(d.handle, dataPtr(pkt.Data), int32(len(pkt.Data)), pkt.PTS, pkt.Duration, uintptr(unsafe.Pointer(d.sub)))
	runtime.KeepAlive(pkt.Data)
	if rc < 0 {
		return nil, ffmpegError("avcodec_decode_subtitle2", rc)
	}
	if rc == 0 {
		return nil, nil
	}

	frame := &SubtitleFrame{Start: d.sub.Start, End: d.sub.End}
	n := min(int(d.sub.NumRects), avpMaxSubtitleRects)
	frame.Regions = make([]SubtitleRegion, 0, n)
	for i := 0; i < n; i++ {
		if rc := avpSubtitleRect(d.handle, int32(i), uintptr(unsafe.Pointer(d.rect))); rc < 0 {
			return nil, ffmpegError("subtitle rect", rc)
		}
		frame.Regions = append(frame.Regions, d.rect.toRegion())
	}
	return frame, nil
}

// toRegion copies native rect memory; it is freed on the next decode.
func (r *avpRectResult) toRegion() SubtitleRegion {
	switch r.Type {
	case avpRectBitmap:
		region := SubtitleRegion{
			Type:   RegionBitmap,
			X:      int(r.X),
			Y:      int(r.Y),
			Width:  int(r.Width),
			Height: int(r.Height),
			Stride: int(r.Linesize),
		}
		if size := int(r.Linesize) * int(r.Height); r.Pix != 0 && size > 0 {
			region.Pix = append([]byte(nil), unsafe.Slice((*byte)(unsafe.Pointer(r.Pix)), size)...)
		}
		if r.Palette != 0 && r.NbColors > 0 {
			region.Palette = append([]uint32(nil), unsafe.Slice((*uint32)(unsafe.Pointer(r.Palette)), int(r.NbColors))...)
		}
		return region
	case avpRectText:
		return SubtitleRegion{Type: RegionText, Text: goStringFromPtrN(r.Text, 1<<16)}
	case avpRectDialogue:
		return SubtitleRegion{Type: RegionDialogue, Text: goStringFromPtrN(r.Text, 1<<16)}
	default:
		return SubtitleRegion{Type: RegionEmpty}
	}
}

func (d *ffmpegDecoder) SubtitleHeader() string {
	return goStringFromPtrN(avpSubtitleHeader(d.handle), 1<<20)
}

func (d *ffmpegDecoder) Flush() {
	d.sent = false
	avpDecoderFlush(d.handle)
}

func (d *ffmpegDecoder) Close() error {
	if d.handle != 0 {
		avpDecoderClose(d.handle)
		d.handle = 0
	}
	return nil
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
