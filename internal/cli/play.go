package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/thesyncim/avplay"
	"github.com/thesyncim/avplay/internal/config"
	"github.com/thesyncim/avplay/internal/sink"
)

func init() {
	rootCmd.AddCommand(playCmd)
	f := playCmd.Flags()

	f.Bool("realtime", true, "Pace video frames by their duration")
	lo.Must0(viper.BindPFlag(config.PlayRealtime, f.Lookup("realtime")))

	f.StringP("audio-out", "a", "", "Write S16LE PCM to this file, \"-\" for stdout")
	lo.Must0(viper.BindPFlag(config.PlayAudioOut, f.Lookup("audio-out")))

	f.Bool("video", true, "Decode the video stream")
	lo.Must0(viper.BindPFlag(config.PlayVideo, f.Lookup("video")))

	f.String("snapshot-dir", "", "Directory for PNG snapshots of video frames")
	lo.Must0(viper.BindPFlag(config.PlaySnapshotDir, f.Lookup("snapshot-dir")))

	f.Int("snapshot-every", 0, "Snapshot every Nth video frame")
	lo.Must0(viper.BindPFlag(config.PlaySnapshotEvery, f.Lookup("snapshot-every")))

	f.String("subtitles", "terminal", "Subtitle output: terminal or none")
	lo.Must0(viper.BindPFlag(config.PlaySubtitles, f.Lookup("subtitles")))
	lo.Must0(playCmd.RegisterFlagCompletionFunc("subtitles", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"terminal", "none"}, cobra.ShellCompDirectiveNoFileComp
	}))

	f.String("subtitle-dir", "", "Directory for PNG dumps of bitmap subtitles")
	lo.Must0(viper.BindPFlag(config.PlaySubtitleDir, f.Lookup("subtitle-dir")))

	f.String("scale", "", "Output size as WIDTHxHEIGHT")
	lo.Must0(viper.BindPFlag(config.PlayScale, f.Lookup("scale")))

	f.String("scale-mode", "fit", "Scale mode: fit, fill or stretch")
	lo.Must0(viper.BindPFlag(config.PlayScaleMode, f.Lookup("scale-mode")))
	lo.Must0(playCmd.RegisterFlagCompletionFunc("scale-mode", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"fit", "fill", "stretch"}, cobra.ShellCompDirectiveNoFileComp
	}))

	f.StringSlice("filter", nil, "Video filters: negate, grayscale")
	lo.Must0(viper.BindPFlag(config.PlayFilters, f.Lookup("filter")))

	f.String("video-codec", "", "Prefer the video stream matching this codec")
	lo.Must0(viper.BindPFlag(config.PlayVideoCodec, f.Lookup("video-codec")))

	f.String("audio-codec", "", "Prefer the audio stream matching this codec")
	lo.Must0(viper.BindPFlag(config.PlayAudioCodec, f.Lookup("audio-codec")))

	f.String("subtitle-codec", "", "Prefer the subtitle stream matching this codec")
	lo.Must0(viper.BindPFlag(config.PlaySubtitleCodec, f.Lookup("subtitle-codec")))

	f.String("lang", "", "Prefer audio and subtitle streams in this language")
	lo.Must0(viper.BindPFlag(config.PlayLanguage, f.Lookup("lang")))

	f.String("start", "0", "Start position, milliseconds or [h:]mm:ss")
	lo.Must0(viper.BindPFlag(config.PlayStart, f.Lookup("start")))
}

var playCmd = &cobra.Command{
	Use:   "play <source>",
	Short: "Decode a source and present its streams",
	Long: "Decode a source and present its streams.\n\n" +
		"While playing, stdin accepts: pause, play, p (toggle), seek <ms|[h:]mm:ss>, status, quit.",
	Example: "  avplay play movie.mkv --audio-out out.pcm\n" +
		"  avplay play 'pattern:movingbox?duration=5s&subs=ass' --snapshot-dir shots --snapshot-every 30",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := playOptionsFromConfig()
		if err != nil {
			return err
		}
		return play(cmd.Context(), args[0], opts, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

type playOptions struct {
	Realtime      bool
	AudioOut      string
	Video         bool
	SnapshotDir   string
	SnapshotEvery int
	Subtitles     string
	SubtitleDir   string
	Width, Height int
	ScaleMode     avplay.ScaleMode
	Filters       []avplay.Filter
	VideoCodec    string
	AudioCodec    string
	SubtitleCodec string
	Language      string
	Start         int64
}

func playOptionsFromConfig() (playOptions, error) {
	opts := playOptions{
		Realtime:      viper.GetBool(config.PlayRealtime),
		AudioOut:      viper.GetString(config.PlayAudioOut),
		Video:         viper.GetBool(config.PlayVideo),
		SnapshotDir:   viper.GetString(config.PlaySnapshotDir),
		SnapshotEvery: viper.GetInt(config.PlaySnapshotEvery),
		Subtitles:     strings.ToLower(viper.GetString(config.PlaySubtitles)),
		SubtitleDir:   viper.GetString(config.PlaySubtitleDir),
		VideoCodec:    viper.GetString(config.PlayVideoCodec),
		AudioCodec:    viper.GetString(config.PlayAudioCodec),
		SubtitleCodec: viper.GetString(config.PlaySubtitleCodec),
		Language:      viper.GetString(config.PlayLanguage),
	}

	var err error
	if opts.Width, opts.Height, err = parseSize(viper.GetString(config.PlayScale)); err != nil {
		return opts, err
	}
	if opts.ScaleMode, err = avplay.ParseScaleMode(viper.GetString(config.PlayScaleMode)); err != nil {
		return opts, err
	}
	if opts.Filters, err = avplay.ParseFilters(viper.GetStringSlice(config.PlayFilters)); err != nil {
		return opts, err
	}
	if opts.Start, err = parsePosition(viper.GetString(config.PlayStart)); err != nil {
		return opts, fmt.Errorf("%w: %v", avplay.ErrArgument, err)
	}
	switch opts.Subtitles {
	case "terminal", "none":
	default:
		return opts, fmt.Errorf("%w: subtitles must be terminal or none, got %q", avplay.ErrArgument, opts.Subtitles)
	}
	return opts, nil
}

// parseSize parses WIDTHxHEIGHT; "" means no scaling.
func parseSize(s string) (int, int, error) {
	if s == "" {
		return 0, 0, nil
	}
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if ok {
		w, errW := strconv.Atoi(ws)
		h, errH := strconv.Atoi(hs)
		if errW == nil && errH == nil && w > 0 && h > 0 {
			return w, h, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: invalid size %q, want WIDTHxHEIGHT", avplay.ErrArgument, s)
}

// nopCloser keeps PCMWriter from closing stdout.
type nopCloser struct{ io.Writer }

func play(ctx context.Context, source string, opts playOptions, stdin io.Reader, stdout, stderr io.Writer) error {
	log := logrus.StandardLogger()

	c, err := avplay.Open(source, avplay.WithFs(fs), avplay.WithLogger(log))
	if err != nil {
		return err
	}
	defer c.Close()

	var video *avplay.VideoStream
	if opts.Video {
		video = pickVideo(c.VideoStreams(), opts.VideoCodec)
	}
	audio := pickAudio(c.AudioStreams(), opts.AudioCodec, opts.Language)
	var subtitle *avplay.SubtitleStream
	if opts.Subtitles != "none" {
		subtitle = pickSubtitle(c.SubtitleStreams(), opts.SubtitleCodec, opts.Language)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	b := avplay.NewBuilder(c).Logger(log).Filters(opts.Filters...)
	if opts.Width > 0 {
		b.Scale(opts.Width, opts.Height, opts.ScaleMode)
	}

	var pacer *sink.VideoPacer
	if video != nil {
		pacer = sink.NewVideoPacer(ctx, sink.PacerConfig{
			Realtime:      opts.Realtime,
			Fs:            fs,
			SnapshotDir:   opts.SnapshotDir,
			SnapshotEvery: opts.SnapshotEvery,
		}, log)
		b.Video(pacer)
	}

	textOut := stdout
	var pcm *sink.PCMWriter
	if audio != nil && opts.AudioOut != "" {
		var w io.Writer
		if opts.AudioOut == "-" {
			w = nopCloser{stdout}
			textOut = stderr
		} else {
			f, err := fs.Create(opts.AudioOut)
			if err != nil {
				return fmt.Errorf("audio output: %w", err)
			}
			w = f
		}
		pcm = sink.NewPCMWriter(w, log)
		b.Audio(pcm)
	}

	if subtitle != nil {
		var dumper *sink.BitmapDumper
		if opts.SubtitleDir != "" {
			dumper = sink.NewBitmapDumper(fs, opts.SubtitleDir)
		}
		b.Subtitle(sink.NewSubtitlePrinter(textOut, 0, dumper, log))
	}

	b.Listener(avplay.ListenerFuncs{
		SeekFailed: func(ms int64, err error) {
			fmt.Fprintf(stderr, "seek to %s failed: %v\n", sink.FormatMillis(ms), err)
		},
	})

	engine, err := b.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	if _, err := engine.SetVideoStream(video); err != nil {
		return err
	}
	if _, err := engine.SetAudioStream(audio); err != nil {
		return err
	}
	if _, err := engine.SetSubtitleStream(subtitle); err != nil {
		return err
	}
	if opts.Start > 0 {
		if err := engine.Seek(opts.Start); err != nil {
			return err
		}
	}

	log.WithFields(logrus.Fields{
		"video":    streamName(video),
		"audio":    streamName(audio),
		"subtitle": streamName(subtitle),
	}).Info("playing")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return engine.Run(gctx)
	})

	lines := make(chan string)
	go readLines(gctx, stdin, lines)
	ctrl := &controller{engine: engine, out: stderr, log: log, quit: cancel}
	g.Go(func() error { return ctrl.run(gctx, lines) })

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	s := engine.Stats()
	fields := logrus.Fields{
		"position": sink.FormatMillis(engine.Position()),
		"packets":  s.Packets,
		"video":    s.VideoFrames,
		"audio":    s.AudioFrames,
		"events":   s.SubtitleEvents,
	}
	if pacer != nil {
		fields["loss_rate"] = fmt.Sprintf("%.2f%%", pacer.Stats().LossRate()*100)
	}
	if pcm != nil && pcm.Err() != nil && err == nil {
		err = fmt.Errorf("audio output: %w", pcm.Err())
	}
	log.WithFields(fields).Info("playback finished")
	return err
}

func streamName[T avplay.Stream](s T) string {
	if lo.IsNil(s) {
		return "none"
	}
	return fmt.Sprintf("#%d %s", s.Index(), s.CodecName())
}
