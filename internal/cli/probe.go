package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/thesyncim/avplay"
	"github.com/thesyncim/avplay/internal/sink"
)

func init() {
	rootCmd.AddCommand(probeCmd)
}

var probeCmd = &cobra.Command{
	Use:     "probe <source>",
	Short:   "List the streams of a source",
	Example: "  avplay probe movie.mkv\n  avplay probe 'pattern:colorbars?duration=5s&subs=ass'",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := avplay.Open(args[0], avplay.WithFs(fs), avplay.WithLogger(logrus.StandardLogger()))
		if err != nil {
			return err
		}
		defer c.Close()
		printProbe(cmd.OutOrStdout(), c)
		return nil
	},
}

func printProbe(out io.Writer, c *avplay.Container) {
	length := "unknown"
	if l := c.Length(); l > 0 {
		length = sink.FormatMillis(l)
	}
	fmt.Fprintf(out, "%s %s\n", headingStyle.Render("Source"), c.Source())
	fmt.Fprintf(out, "  %s %s\n", faintStyle.Render("provider"), c.Provider())
	fmt.Fprintf(out, "  %s   %s\n", faintStyle.Render("length"), length)
	fmt.Fprintln(out, headingStyle.Render("Streams"))
	for _, s := range c.AllStreams() {
		fmt.Fprintf(out, "  %s\n", describeStream(s))
	}
}

func describeStream(s avplay.Stream) string {
	kind := s.Kind().String()
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s %s", s.Index(), kindStyles[kind].Render(fmt.Sprintf("%-8s", kind)), s.CodecName())
	if long := s.LongCodecName(); long != "" {
		fmt.Fprintf(&b, " (%s)", long)
	}
	switch st := s.(type) {
	case *avplay.VideoStream:
		fmt.Fprintf(&b, " %dx%d %s", st.Width(), st.Height(), st.PixelFormat())
	case *avplay.AudioStream:
		fmt.Fprintf(&b, " %d Hz %d ch %s", st.SampleRate(), st.Channels(), st.SampleFormat())
	case *avplay.SubtitleStream:
		fmt.Fprintf(&b, " %s", st.Dialect())
	}
	tb := s.TimeBase()
	fmt.Fprintf(&b, " tb=%d/%d", tb.Num, tb.Den)
	if d := s.Duration(); d > 0 {
		fmt.Fprintf(&b, " %s", sink.FormatMillis(d))
	}
	if lang := s.Language(); lang != "" {
		fmt.Fprintf(&b, " [%s]", lang)
	}
	return b.String()
}
