package sink

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/thesyncim/avplay"
)

var (
	timeStyle   = lipgloss.NewStyle().Faint(true)
	bitmapStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("245"))
)

// SubtitlePrinter writes subtitle events to a terminal, wrapped to its width.
// Styled dialogue keeps bold, italic, underline and primary colour.
type SubtitlePrinter struct {
	w        io.Writer
	width    int
	renderer *lipgloss.Renderer
	bitmaps  *BitmapDumper
	log      logrus.FieldLogger
	events   int
}

// NewSubtitlePrinter creates a printer. A width of 0 asks the terminal and
// falls back to 80 columns. bitmaps may be nil.
func NewSubtitlePrinter(w io.Writer, width int, bitmaps *BitmapDumper, log logrus.FieldLogger) *SubtitlePrinter {
	if width <= 0 {
		width = terminalWidth()
	}
	return &SubtitlePrinter{
		w:        w,
		width:    width,
		renderer: lipgloss.NewRenderer(w),
		bitmaps:  bitmaps,
		log:      log.WithField("component", "subtitle"),
	}
}

func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

func (p *SubtitlePrinter) Start() {}

func (p *SubtitlePrinter) HandleSubtitle(sub avplay.Subtitle, startMs, endMs int64) {
	p.events++
	stamp := p.renderer.NewStyle().Inherit(timeStyle).Render(fmt.Sprintf("[%s → %s]", FormatMillis(startMs), FormatMillis(endMs)))

	var body string
	switch s := sub.(type) {
	case *avplay.StyledSubtitle:
		body = p.renderStyled(s)
	case *avplay.BitmapSubtitle:
		b := s.Bounds()
		body = p.renderer.NewStyle().Inherit(bitmapStyle).Render(fmt.Sprintf("<bitmap %dx%d at %d,%d>", b.Dx(), b.Dy(), b.Min.X, b.Min.Y))
		if p.bitmaps != nil {
			if path, err := p.bitmaps.Dump(s, startMs); err != nil {
				p.log.WithError(err).Warn("bitmap dump failed")
			} else {
				body += " " + path
			}
		}
	default:
		body = sub.PlainText()
	}

	text := wordwrap.String(body, max(p.width-lipgloss.Width(stamp)-1, 20))
	lines := strings.Split(text, "\n")
	indent := strings.Repeat(" ", lipgloss.Width(stamp)+1)
	for i, line := range lines {
		if i == 0 {
			fmt.Fprintf(p.w, "%s %s\n", stamp, line)
			continue
		}
		fmt.Fprintf(p.w, "%s%s\n", indent, line)
	}
}

func (p *SubtitlePrinter) renderStyled(s *avplay.StyledSubtitle) string {
	var b strings.Builder
	for _, span := range s.Spans {
		st := p.renderer.NewStyle().
			Bold(span.Style.Bold).
			Italic(span.Style.Italic).
			Underline(span.Style.Underline).
			Strikethrough(span.Style.StrikeOut)
		if c := span.Style.Primary; c != (color.NRGBA{0xff, 0xff, 0xff, 0xff}) && c.A > 0 {
			st = st.Foreground(lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)))
		}
		// Hard breaks survive wrapping as separate lines.
		parts := strings.Split(span.Text, "\n")
		for i, part := range parts {
			if i > 0 {
				b.WriteByte('\n')
			}
			if part != "" {
				b.WriteString(st.Render(part))
			}
		}
	}
	return b.String()
}

func (p *SubtitlePrinter) End() {
	p.log.WithField("events", p.events).Debug("subtitles finished")
}

// Events returns the number of events printed.
func (p *SubtitlePrinter) Events() int { return p.events }

// FormatMillis formats a position as [h:]mm:ss.mmm.
func FormatMillis(ms int64) string {
	sign := ""
	if ms < 0 {
		sign, ms = "-", -ms
	}
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	frac := ms % 1000
	if h > 0 {
		return fmt.Sprintf("%s%d:%02d:%02d.%03d", sign, h, m, s, frac)
	}
	return fmt.Sprintf("%s%02d:%02d.%03d", sign, m, s, frac)
}
