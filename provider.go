package avplay

import "sync/atomic"

// Provider identifies a native decode capability implementation.
type Provider uint8

const (
	ProviderAuto    Provider = iota // Pick by source scheme
	ProviderFFmpeg                  // libavformat/libavcodec through libavplay_ffmpeg
	ProviderPattern                 // Synthetic test pattern sources
	ProviderCustom                  // Caller-supplied Backend
	providerCount
)

// License represents the software license of a provider.
type License uint8

const (
	LicenseLGPL License = iota // FFmpeg default build
	LicenseBSD                 // Permissive
)

// Permissive returns true if the license has no copyleft obligations.
func (l License) Permissive() bool { return l == LicenseBSD }

func (l License) String() string {
	switch l {
	case LicenseLGPL:
		return "LGPL"
	case LicenseBSD:
		return "BSD"
	default:
		return "unknown"
	}
}

// Features is a bitmask of provider capabilities.
type Features uint32

const (
	FeatureSeek               Features = 1 << iota // Timestamp seeking
	FeatureSubtitles                               // Subtitle decoding
	FeatureVariableResolution                      // Mid-stream dimension changes
	FeatureMultiFramePackets                       // Audio packets yielding several frames
	FeatureNetworkSources                          // URL sources handled by the provider
)

// Has returns true if all specified features are supported.
func (f Features) Has(feature Features) bool { return f&feature == feature }

type providerMeta struct {
	Name     string
	License  License
	Features Features
}

var providerInfo = [providerCount]providerMeta{
	ProviderAuto:    {"auto", LicenseBSD, 0},
	ProviderFFmpeg:  {"ffmpeg", LicenseLGPL, FeatureSeek | FeatureSubtitles | FeatureVariableResolution | FeatureMultiFramePackets | FeatureNetworkSources},
	ProviderPattern: {"pattern", LicenseBSD, FeatureSeek | FeatureSubtitles | FeatureVariableResolution | FeatureMultiFramePackets},
	ProviderCustom:  {"custom", LicenseBSD, 0},
}

// Runtime availability, set by provider implementations.
var providerAvailable [providerCount]atomic.Bool

func init() {
	setProviderAvailable(ProviderPattern)
	setProviderAvailable(ProviderCustom)
}

// String returns the provider name.
func (p Provider) String() string {
	if p >= providerCount {
		return "unknown"
	}
	return providerInfo[p].Name
}

// License returns the provider's license type.
func (p Provider) License() License {
	if p >= providerCount {
		return LicenseLGPL
	}
	return providerInfo[p].License
}

// Features returns the provider's feature bitmask.
func (p Provider) Features() Features {
	if p >= providerCount {
		return 0
	}
	return providerInfo[p].Features
}

// Available returns true if the provider is usable at runtime. For the FFmpeg
// provider this attempts to load the native library.
func (p Provider) Available() bool {
	if p >= providerCount {
		return false
	}
	if p == ProviderFFmpeg && !providerAvailable[p].Load() {
		if err := loadFFmpeg(); err == nil {
			setProviderAvailable(p)
		}
	}
	return providerAvailable[p].Load()
}

func setProviderAvailable(p Provider) {
	if p < providerCount {
		providerAvailable[p].Store(true)
	}
}

// Providers returns every known provider except ProviderAuto.
func Providers() []Provider {
	out := make([]Provider, 0, providerCount-1)
	for p := ProviderAuto + 1; p < providerCount; p++ {
		out = append(out, p)
	}
	return out
}
