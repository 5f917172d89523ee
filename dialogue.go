package avplay

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/mo"
)

// Style is a named ASS/SSA style.
type Style struct {
	Name      string
	FontName  string
	FontSize  float64
	Primary   color.NRGBA
	Secondary color.NRGBA
	Outline   color.NRGBA
	Back      color.NRGBA
	Bold      bool
	Italic    bool
	Underline bool
	StrikeOut bool
	Alignment int // numpad layout, 1 = bottom left, 9 = top right
	MarginL   int
	MarginR   int
	MarginV   int
}

// DefaultStyle is applied when a line references no known style.
func DefaultStyle() Style {
	return Style{
		Name:      "Default",
		FontName:  "Arial",
		FontSize:  20,
		Primary:   color.NRGBA{0xff, 0xff, 0xff, 0xff},
		Secondary: color.NRGBA{0xff, 0x00, 0x00, 0xff},
		Outline:   color.NRGBA{0x00, 0x00, 0x00, 0xff},
		Back:      color.NRGBA{0x00, 0x00, 0x00, 0xff},
		Alignment: 2,
		MarginL:   10,
		MarginR:   10,
		MarginV:   10,
	}
}

// Span is a run of text sharing one effective style.
type Span struct {
	Text  string
	Style Style
}

// StyledSubtitle is a parsed dialogue event.
type StyledSubtitle struct {
	Layer     int
	StyleName string
	Actor     string
	Effect    string
	Start     int64 // ms, only set for full Dialogue lines
	End       int64 // ms, only set for full Dialogue lines
	Alignment int
	Position  mo.Option[image.Point]
	MarginL   int
	MarginR   int
	MarginV   int
	Spans     []Span
}

// PlainText joins the spans without styling.
func (s *StyledSubtitle) PlainText() string {
	var b strings.Builder
	for _, sp := range s.Spans {
		b.WriteString(sp.Text)
	}
	return b.String()
}

var (
	defaultStyleFormat   = []string{"name", "fontname", "fontsize", "primarycolour", "secondarycolour", "outlinecolour", "backcolour", "bold", "italic", "underline", "strikeout", "scalex", "scaley", "spacing", "angle", "borderstyle", "outline", "shadow", "alignment", "marginl", "marginr", "marginv", "encoding"}
	defaultEventFormat   = []string{"layer", "start", "end", "style", "name", "marginl", "marginr", "marginv", "effect", "text"}
	decoderEventFormat   = []string{"readorder", "layer", "style", "name", "marginl", "marginr", "marginv", "effect", "text"}
	legacyStyleAlignment = map[int]int{1: 1, 2: 2, 3: 3, 5: 7, 6: 8, 7: 9, 9: 4, 10: 5, 11: 6}
)

// DialogueParser holds the compiled style table of one ASS/SSA script header.
type DialogueParser struct {
	info        map[string]string
	styles      map[string]Style
	def         Style
	eventFormat []string
	wrapStyle   int
	playResX    int
	playResY    int
}

// newDialogueParser returns a parser with no styles beyond the default.
func newDialogueParser() *DialogueParser {
	return &DialogueParser{
		info:        make(map[string]string),
		styles:      make(map[string]Style),
		def:         DefaultStyle(),
		eventFormat: defaultEventFormat,
	}
}

// CompileDialogue parses a script header: [Script Info], [V4+ Styles] or
// [V4 Styles], and the [Events] format line.
func CompileDialogue(header string) (*DialogueParser, error) {
	p := newDialogueParser()

	var (
		section     string
		sections    int
		styleFormat = defaultStyleFormat
	)
	sc := bufio.NewScanner(strings.NewReader(header))
	for sc.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "!:") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.ToLower(line)
			sections++
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch section {
		case "[script info]":
			p.info[key] = value
		case "[v4+ styles]", "[v4 styles]":
			switch strings.ToLower(key) {
			case "format":
				styleFormat = splitFormat(value)
			case "style":
				st := parseStyle(styleFormat, value, section == "[v4 styles]")
				p.styles[st.Name] = st
			}
		case "[events]":
			if strings.EqualFold(key, "format") {
				p.eventFormat = splitFormat(value)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDialect, err)
	}
	if sections == 0 {
		return nil, fmt.Errorf("%w: header has no sections", ErrMalformedDialect)
	}

	p.wrapStyle, _ = strconv.Atoi(p.info["WrapStyle"])
	p.playResX, _ = strconv.Atoi(p.info["PlayResX"])
	p.playResY, _ = strconv.Atoi(p.info["PlayResY"])
	if st, ok := p.styles["Default"]; ok {
		p.def = st
	}
	return p, nil
}

// Info returns a [Script Info] value.
func (p *DialogueParser) Info(key string) string { return p.info[key] }

// PlayRes returns the script resolution, 0 when unset.
func (p *DialogueParser) PlayRes() (int, int) { return p.playResX, p.playResY }

// Style looks up a compiled style.
func (p *DialogueParser) Style(name string) (Style, bool) {
	st, ok := p.styles[name]
	return st, ok
}

// StyleNames returns the compiled style names, sorted.
func (p *DialogueParser) StyleNames() []string {
	names := make([]string, 0, len(p.styles))
	for n := range p.styles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Parse converts a dialogue line into styled text. It accepts full
// "Dialogue:" lines and the comma-separated event form produced by decoders.
// Malformed lines degrade to plain text in the default style.
func (p *DialogueParser) Parse(line string) *StyledSubtitle {
	line = strings.TrimRight(line, "\r\n")

	var (
		format []string
		rest   string
	)
	if key, value, ok := strings.Cut(line, ":"); ok && strings.EqualFold(strings.TrimSpace(key), "dialogue") {
		format, rest = p.eventFormat, strings.TrimSpace(value)
	} else {
		format, rest = decoderEventFormat, line
	}

	fields := strings.SplitN(rest, ",", len(format))
	if len(fields) != len(format) || !numericField(format, fields) {
		return p.plain(line)
	}

	ev := make(map[string]string, len(format))
	for i, name := range format {
		ev[name] = fields[i]
	}

	st, ok := p.styles[strings.TrimPrefix(strings.TrimSpace(ev["style"]), "*")]
	if !ok {
		st = p.def
	}
	sub := &StyledSubtitle{
		StyleName: st.Name,
		Actor:     strings.TrimSpace(ev["name"]),
		Effect:    strings.TrimSpace(ev["effect"]),
		Alignment: st.Alignment,
		MarginL:   overrideMargin(ev["marginl"], st.MarginL),
		MarginR:   overrideMargin(ev["marginr"], st.MarginR),
		MarginV:   overrideMargin(ev["marginv"], st.MarginV),
	}
	sub.Layer, _ = strconv.Atoi(strings.TrimSpace(ev["layer"]))
	if s, ok := parseTimestamp(ev["start"]); ok {
		sub.Start = s
	}
	if e, ok := parseTimestamp(ev["end"]); ok {
		sub.End = e
	}
	p.applyText(sub, st, ev["text"])
	return sub
}

func (p *DialogueParser) plain(text string) *StyledSubtitle {
	return &StyledSubtitle{
		StyleName: p.def.Name,
		Alignment: p.def.Alignment,
		MarginL:   p.def.MarginL,
		MarginR:   p.def.MarginR,
		MarginV:   p.def.MarginV,
		Spans:     []Span{{Text: text, Style: p.def}},
	}
}

// numericField checks the fields every valid event carries as integers.
func numericField(format, fields []string) bool {
	for i, name := range format {
		if name != "readorder" && name != "layer" {
			continue
		}
		v := strings.TrimSpace(fields[i])
		if v == "" {
			continue
		}
		if _, err := strconv.Atoi(v); err != nil {
			return false
		}
	}
	return true
}

// applyText walks text, splitting it into spans at override blocks.
func (p *DialogueParser) applyText(sub *StyledSubtitle, base Style, text string) {
	cur := base
	var buf strings.Builder
	alignSet, posSet := false, false

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		if n := len(sub.Spans); n > 0 && sub.Spans[n-1].Style == cur {
			sub.Spans[n-1].Text += buf.String()
		} else {
			sub.Spans = append(sub.Spans, Span{Text: buf.String(), Style: cur})
		}
		buf.Reset()
	}

	for i := 0; i < len(text); i++ {
		ch := text[i]
		switch {
		case ch == '{':
			end := strings.IndexByte(text[i:], '}')
			if end < 0 {
				buf.WriteString(text[i:])
				i = len(text)
				continue
			}
			block := text[i+1 : i+end]
			i += end
			next := cur
			for _, tag := range splitOverrides(block) {
				p.applyTag(&next, base, sub, strings.TrimSpace(tag), &alignSet, &posSet)
			}
			if next != cur {
				flush()
				cur = next
			}
		case ch == '\\' && i+1 < len(text):
			switch text[i+1] {
			case 'N':
				buf.WriteByte('\n')
			case 'n':
				if p.wrapStyle == 2 {
					buf.WriteByte('\n')
				} else {
					buf.WriteByte(' ')
				}
			case 'h':
				buf.WriteString("\u00a0")
			default:
				buf.WriteByte(ch)
				continue
			}
			i++
		default:
			buf.WriteByte(ch)
		}
	}
	flush()
}

// splitOverrides splits an override block into tags at backslashes outside
// parentheses, so \t(...) keeps its nested tags.
func splitOverrides(block string) []string {
	var (
		tags  []string
		depth int
		start = -1
	)
	for i := 0; i < len(block); i++ {
		switch block[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case '\\':
			if depth > 0 {
				continue
			}
			if start >= 0 {
				tags = append(tags, block[start:i])
			}
			start = i + 1
		}
	}
	if start >= 0 {
		tags = append(tags, block[start:])
	}
	return tags
}

// skippedTags are unsupported tags whose names start like supported ones.
var skippedTags = []string{
	"bord", "be", "blur", "shad", "xbord", "ybord", "xshad", "yshad",
	"fscx", "fscy", "fsp", "fax", "fay", "frx", "fry", "frz", "fr", "fe",
	"fade", "fad", "move", "org", "iclip", "clip", "kf", "ko", "k", "K", "q", "p",
	"2c", "4c", "2a", "4a", "t(",
}

func (p *DialogueParser) applyTag(st *Style, base Style, sub *StyledSubtitle, tag string, alignSet, posSet *bool) {
	if tag == "" {
		return
	}
	if strings.HasPrefix(tag, "pos(") {
		if *posSet {
			return
		}
		args := strings.Split(strings.TrimSuffix(tag[4:], ")"), ",")
		if len(args) != 2 {
			return
		}
		x, errX := strconv.ParseFloat(strings.TrimSpace(args[0]), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(args[1]), 64)
		if errX == nil && errY == nil {
			sub.Position = mo.Some(image.Pt(int(x), int(y)))
			*posSet = true
		}
		return
	}
	for _, skip := range skippedTags {
		if strings.HasPrefix(tag, skip) {
			return
		}
	}

	switch {
	case strings.HasPrefix(tag, "alpha"):
		if a, ok := parseAlpha(tag[5:]); ok {
			st.Primary.A, st.Secondary.A, st.Outline.A, st.Back.A = a, a, a, a
		}
	case strings.HasPrefix(tag, "an"):
		if *alignSet {
			return
		}
		if n, err := strconv.Atoi(tag[2:]); err == nil && n >= 1 && n <= 9 {
			sub.Alignment = n
			*alignSet = true
		}
	case strings.HasPrefix(tag, "1c"):
		setColor(&st.Primary, tag[2:])
	case strings.HasPrefix(tag, "3c"):
		setColor(&st.Outline, tag[2:])
	case strings.HasPrefix(tag, "1a"):
		if a, ok := parseAlpha(tag[2:]); ok {
			st.Primary.A = a
		}
	case strings.HasPrefix(tag, "3a"):
		if a, ok := parseAlpha(tag[2:]); ok {
			st.Outline.A = a
		}
	case strings.HasPrefix(tag, "fn"):
		if name := strings.TrimSpace(tag[2:]); name != "" {
			st.FontName = name
		} else {
			st.FontName = base.FontName
		}
	case strings.HasPrefix(tag, "fs"):
		if size, err := strconv.ParseFloat(tag[2:], 64); err == nil && size > 0 {
			st.FontSize = size
		} else {
			st.FontSize = base.FontSize
		}
	case strings.HasPrefix(tag, "a"):
		if *alignSet {
			return
		}
		if n, err := strconv.Atoi(tag[1:]); err == nil {
			if a, ok := legacyStyleAlignment[n]; ok {
				sub.Alignment = a
				*alignSet = true
			}
		}
	case strings.HasPrefix(tag, "b"):
		st.Bold = toggle(tag[1:], base.Bold, true)
	case strings.HasPrefix(tag, "i"):
		st.Italic = toggle(tag[1:], base.Italic, false)
	case strings.HasPrefix(tag, "u"):
		st.Underline = toggle(tag[1:], base.Underline, false)
	case strings.HasPrefix(tag, "s"):
		st.StrikeOut = toggle(tag[1:], base.StrikeOut, false)
	case strings.HasPrefix(tag, "c"):
		setColor(&st.Primary, tag[1:])
	case strings.HasPrefix(tag, "r"):
		if named, ok := p.styles[strings.TrimSpace(tag[1:])]; ok {
			*st = named
		} else {
			*st = base
		}
	}
}

// toggle parses \b, \i, \u and \s arguments. Bold also accepts font weights.
func toggle(arg string, def, weight bool) bool {
	if arg == "" {
		return def
	}
	n, err := strconv.Atoi(arg)
	if err != nil {
		return def
	}
	if weight && n > 1 {
		return n >= 700
	}
	return n == 1
}

func setColor(dst *color.NRGBA, arg string) {
	c, ok := parseColor(arg)
	if !ok {
		return
	}
	a := dst.A
	*dst = c
	dst.A = a
}

// parseColor decodes &HAABBGGRR or &HBBGGRR, hex or decimal. The ASS alpha
// channel is inverted: 00 is opaque.
func parseColor(s string) (color.NRGBA, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "&")
	var (
		v   uint64
		err error
	)
	if rest, ok := cutPrefixFold(s, "&h"); ok {
		v, err = strconv.ParseUint(rest, 16, 32)
	} else if rest, ok := cutPrefixFold(s, "h"); ok {
		v, err = strconv.ParseUint(rest, 16, 32)
	} else {
		var n int64
		n, err = strconv.ParseInt(s, 10, 64)
		v = uint64(uint32(n))
	}
	if err != nil {
		return color.NRGBA{}, false
	}
	return color.NRGBA{
		R: uint8(v),
		G: uint8(v >> 8),
		B: uint8(v >> 16),
		A: 0xff - uint8(v>>24),
	}, true
}

func parseAlpha(s string) (uint8, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "&")
	rest, ok := cutPrefixFold(s, "&h")
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseUint(rest, 16, 8)
	if err != nil {
		return 0, false
	}
	return 0xff - uint8(v), true
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return s, false
}

func splitFormat(value string) []string {
	parts := strings.Split(value, ",")
	for i, f := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(f))
	}
	return parts
}

func parseStyle(format []string, value string, legacy bool) Style {
	st := DefaultStyle()
	fields := strings.SplitN(value, ",", len(format))
	for i, f := range fields {
		if i >= len(format) {
			break
		}
		f = strings.TrimSpace(f)
		switch format[i] {
		case "name":
			st.Name = f
		case "fontname":
			st.FontName = f
		case "fontsize":
			if v, err := strconv.ParseFloat(f, 64); err == nil {
				st.FontSize = v
			}
		case "primarycolour":
			if c, ok := parseColor(f); ok {
				st.Primary = c
			}
		case "secondarycolour":
			if c, ok := parseColor(f); ok {
				st.Secondary = c
			}
		case "outlinecolour", "tertiarycolour":
			if c, ok := parseColor(f); ok {
				st.Outline = c
			}
		case "backcolour":
			if c, ok := parseColor(f); ok {
				st.Back = c
			}
		case "bold":
			st.Bold = f != "0" && f != ""
		case "italic":
			st.Italic = f != "0" && f != ""
		case "underline":
			st.Underline = f != "0" && f != ""
		case "strikeout":
			st.StrikeOut = f != "0" && f != ""
		case "alignment":
			if v, err := strconv.Atoi(f); err == nil {
				if legacy {
					v = legacyStyleAlignment[v]
				}
				if v >= 1 && v <= 9 {
					st.Alignment = v
				}
			}
		case "marginl":
			st.MarginL, _ = strconv.Atoi(f)
		case "marginr":
			st.MarginR, _ = strconv.Atoi(f)
		case "marginv":
			st.MarginV, _ = strconv.Atoi(f)
		}
	}
	return st
}

func overrideMargin(field string, def int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(field)); err == nil && v != 0 {
		return v
	}
	return def
}

// parseTimestamp reads H:MM:SS.CC into milliseconds.
func parseTimestamp(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, false
	}
	h, err1 := strconv.ParseInt(parts[0], 10, 64)
	m, err2 := strconv.ParseInt(parts[1], 10, 64)
	sec, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}
	return (h*3600+m*60)*1000 + int64(sec*1000+0.5), true
}
