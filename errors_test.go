package avplay

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorCategories(t *testing.T) {
	if !errors.Is(ErrSourceFormat, ErrSourceOpen) {
		t.Error("ErrSourceFormat does not match ErrSourceOpen")
	}
	if errors.Is(ErrSourceOpen, ErrSourceFormat) {
		t.Error("ErrSourceOpen matches ErrSourceFormat")
	}
	if err := configErrorf("x %d", 1); !errors.Is(err, ErrConfiguration) || !strings.Contains(err.Error(), "x 1") {
		t.Errorf("configErrorf = %v", err)
	}
	if err := argErrorf("y"); !errors.Is(err, ErrArgument) {
		t.Errorf("argErrorf = %v", err)
	}
}

// unloadableBackend fails like a provider whose native library is missing.
type unloadableBackend struct{}

func (unloadableBackend) Provider() Provider { return ProviderFFmpeg }

func (unloadableBackend) OpenDemuxer(string) (Demuxer, error) {
	return nil, fmt.Errorf("%w: library not found", ErrProviderUnavailable)
}

func TestOpen_ProviderUnavailableMatchesBoth(t *testing.T) {
	_, err := Open("http://host/a.ts", WithBackend(unloadableBackend{}), WithLogger(quietLogger()))
	if !errors.Is(err, ErrSourceOpen) || !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("Open err = %v, want ErrSourceOpen and ErrProviderUnavailable", err)
	}
	if errors.Is(err, ErrSourceFormat) {
		t.Errorf("Open err = %v matches ErrSourceFormat", err)
	}
}

func TestDecodeError(t *testing.T) {
	native := &NativeError{Op: "avcodec_send_packet", Code: -11, Msg: "Resource temporarily unavailable"}
	err := &DecodeError{Kind: KindAudio, Index: 2, Code: native.Code, Err: native}

	want := "avplay: error while decoding audio stream #2 (code -11): avcodec_send_packet: Resource temporarily unavailable (-11)"
	if err.Error() != want {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrStreamDecode) {
		t.Error("DecodeError does not match ErrStreamDecode")
	}
	if nativeCode(err) != -11 {
		t.Errorf("nativeCode = %d", nativeCode(err))
	}

	bare := &DecodeError{Kind: KindUnknown, Index: -1}
	if !errors.Is(bare, ErrStreamDecode) || bare.Error() != "avplay: error while decoding unknown stream #-1" {
		t.Errorf("bare = %q", bare.Error())
	}
	if got := (&NativeError{Op: "open", Code: 5}).Error(); got != "open: native error 5" {
		t.Errorf("NativeError = %q", got)
	}
}

func TestProviders(t *testing.T) {
	ps := Providers()
	if len(ps) != 3 || ps[0] != ProviderFFmpeg {
		t.Fatalf("Providers() = %v", ps)
	}
	if !ProviderPattern.Available() || !ProviderCustom.Available() {
		t.Error("built-in providers unavailable")
	}
	if ProviderFFmpeg.License().Permissive() || !ProviderPattern.License().Permissive() {
		t.Error("license mismatch")
	}
	if !ProviderFFmpeg.Features().Has(FeatureSeek | FeatureSubtitles) {
		t.Error("ffmpeg features")
	}
	if Provider(42).String() != "unknown" || Provider(42).Available() {
		t.Error("out-of-range provider")
	}
}
