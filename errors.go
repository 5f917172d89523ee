package avplay

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by this package matches at least one
// of these through errors.Is. ErrSourceFormat also matches ErrSourceOpen, and
// an Open that fails to load a native provider matches both ErrSourceOpen and
// ErrProviderUnavailable.
var (
	// ErrSourceOpen reports a container that could not be opened or parsed.
	ErrSourceOpen = errors.New("avplay: cannot open source")

	// ErrSourceFormat reports a container whose stream information could not be
	// determined. It also matches ErrSourceOpen.
	ErrSourceFormat = fmt.Errorf("%w: stream information unavailable", ErrSourceOpen)

	// ErrUnsupportedCodec reports a stream for which no decoder exists. It is fatal
	// to that stream only.
	ErrUnsupportedCodec = errors.New("avplay: unsupported codec")

	// ErrStreamDecode reports a native decode failure in the run loop.
	ErrStreamDecode = errors.New("avplay: stream decode failed")

	// ErrConfiguration reports caller-logic faults: cross-container binding,
	// missing handlers, using an engine before start or after stop.
	ErrConfiguration = errors.New("avplay: configuration error")

	// ErrArgument reports an out-of-range argument. Callers may retry.
	ErrArgument = errors.New("avplay: invalid argument")

	// ErrMalformedDialect reports a dialogue subtitle region seen without a
	// compiled header.
	ErrMalformedDialect = errors.New("avplay: malformed subtitle dialect")

	// ErrProviderUnavailable reports a native provider whose library could not
	// be loaded.
	ErrProviderUnavailable = errors.New("avplay: provider unavailable")
)

// MediaKind identifies the kind of an elementary stream.
type MediaKind int

const (
	KindUnknown MediaKind = iota - 1
	KindVideo
	KindAudio
	KindSubtitle
)

func (k MediaKind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	case KindSubtitle:
		return "subtitle"
	default:
		return "unknown"
	}
}

// DecodeError carries the native error code of a failed decode call.
type DecodeError struct {
	Kind  MediaKind
	Index int // stream index
	Code  int // native error code, 0 when not applicable
	Err   error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("avplay: error while decoding %s stream #%d", e.Kind, e.Index)
	if e.Code != 0 {
		msg += fmt.Sprintf(" (code %d)", e.Code)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrStreamDecode}
	}
	return []error{ErrStreamDecode, e.Err}
}

// NativeError is an error code reported by a native provider.
type NativeError struct {
	Op   string
	Code int
	Msg  string
}

func (e *NativeError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: native error %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s (%d)", e.Op, e.Msg, e.Code)
}

// nativeCode extracts a native error code from err, or 0.
func nativeCode(err error) int {
	var ne *NativeError
	if errors.As(err, &ne) {
		return ne.Code
	}
	return 0
}

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

func argErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrArgument, fmt.Sprintf(format, args...))
}
