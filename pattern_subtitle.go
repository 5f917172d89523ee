package avplay

import (
	"encoding/binary"
	"fmt"
)

const patternASSHeader = `[Script Info]
ScriptType: v4.00+
PlayResX: 640
PlayResY: 360
WrapStyle: 0

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Default,Arial,20,&H00FFFFFF,&H000000FF,&H00000000,&H00000000,0,0,0,0,100,100,0,0,1,1,0,2,10,10,10,1
Style: Sign,DejaVu Sans,28,&H0000FFFF,&H000000FF,&H00000000,&H80000000,-1,0,0,0,100,100,0,0,1,2,0,8,20,20,24,1

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
`

// patternSubtitleDecoder emits one event per packet in the stream dialect.
type patternSubtitleDecoder struct {
	cfg     PatternConfig
	info    StreamInfo
	dialect SubtitleDialect
}

func newPatternSubtitleDecoder(cfg PatternConfig, info StreamInfo, dialect SubtitleDialect) *patternSubtitleDecoder {
	return &patternSubtitleDecoder{cfg: cfg, info: info, dialect: dialect}
}

func (d *patternSubtitleDecoder) CodecName() string     { return d.info.CodecName }
func (d *patternSubtitleDecoder) LongCodecName() string { return d.info.LongCodecName }

func (d *patternSubtitleDecoder) SubtitleHeader() string {
	if d.dialect != DialectDialogue || d.cfg.OmitDialHeader {
		return ""
	}
	return patternASSHeader
}

func (d *patternSubtitleDecoder) DecodeSubtitle(pkt *Packet) (*SubtitleFrame, error) {
	if len(pkt.Data) < 4 {
		return nil, &NativeError{Op: "pattern subtitle decode", Code: averrorInvalidData, Msg: "short packet"}
	}
	k := int(binary.LittleEndian.Uint32(pkt.Data))
	frame := &SubtitleFrame{Start: pkt.PTS, End: pkt.PTS + pkt.Duration}

	switch d.dialect {
	case DialectDialogue:
		style := "Default"
		switch k % 3 {
		case 1:
			style = "Sign"
		case 2:
			style = "Undefined"
		}
		text := fmt.Sprintf(`{\b1}Event %d{\b0}\N{\i1\c&H0000FF&}second line`, k)
		frame.Regions = []SubtitleRegion{{
			Type: RegionDialogue,
			Text: fmt.Sprintf("%d,0,%s,,0,0,0,,%s", k, style, text),
		}}
	case DialectText:
		frame.Regions = []SubtitleRegion{{Type: RegionText, Text: fmt.Sprintf("Subtitle %d", k)}}
	default:
		frame.Regions = []SubtitleRegion{{Type: RegionEmpty}, patternBitmap(k, d.cfg.Width, d.cfg.Height)}
	}
	return frame, nil
}

// patternBitmap draws a framed bar near the bottom of the picture. Palette
// entries: transparent, white, black, translucent grey.
func patternBitmap(k, width, height int) SubtitleRegion {
	w, h := 96, 24
	pix := make([]byte, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			switch {
			case y == 0 || y == h-1 || x == 0 || x == w-1:
				pix[y*w+x] = 2
			case (x/8+k)%2 == 0:
				pix[y*w+x] = 1
			default:
				pix[y*w+x] = 3
			}
		}
	}
	return SubtitleRegion{
		Type:    RegionBitmap,
		X:       max((width-w)/2, 0),
		Y:       max(height-h-16, 0),
		Width:   w,
		Height:  h,
		Pix:     pix,
		Stride:  w,
		Palette: []uint32{0x00000000, 0xFFFFFFFF, 0xFF000000, 0x80808080},
	}
}

func (d *patternSubtitleDecoder) DecodeVideo(*Packet) (*Picture, error) {
	return nil, &NativeError{Op: "pattern decode", Code: -22, Msg: "not a video decoder"}
}

func (d *patternSubtitleDecoder) DecodeAudio([]byte, *Packet) (int, *SampleFrame, error) {
	return 0, nil, &NativeError{Op: "pattern decode", Code: -22, Msg: "not an audio decoder"}
}

func (d *patternSubtitleDecoder) Flush()       {}
func (d *patternSubtitleDecoder) Close() error { return nil }
