package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/thesyncim/avplay"
	"github.com/thesyncim/avplay/internal/sink"
)

type commandKind int

const (
	cmdPause commandKind = iota
	cmdPlay
	cmdToggle
	cmdSeek
	cmdStatus
	cmdQuit
)

type command struct {
	kind commandKind
	ms   int64
}

// parseCommand parses one control line: pause, play, p (toggle),
// seek <ms|[h:]mm:ss>, status, quit.
func parseCommand(line string) (command, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return command{}, fmt.Errorf("empty command")
	}
	switch fields[0] {
	case "pause":
		return command{kind: cmdPause}, nil
	case "play", "resume":
		return command{kind: cmdPlay}, nil
	case "p", "toggle":
		return command{kind: cmdToggle}, nil
	case "status", "s":
		return command{kind: cmdStatus}, nil
	case "quit", "q", "exit":
		return command{kind: cmdQuit}, nil
	case "seek":
		if len(fields) != 2 {
			return command{}, fmt.Errorf("usage: seek <ms|[h:]mm:ss>")
		}
		ms, err := parsePosition(fields[1])
		if err != nil {
			return command{}, err
		}
		return command{kind: cmdSeek, ms: ms}, nil
	default:
		return command{}, fmt.Errorf("unknown command %q", fields[0])
	}
}

// parsePosition accepts milliseconds or a [h:]mm:ss[.fff] clock.
func parsePosition(s string) (int64, error) {
	if !strings.Contains(s, ":") {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid position %q", s)
		}
		return ms, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid position %q", s)
	}
	var minutes int64
	for _, p := range parts[:len(parts)-1] {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid position %q", s)
		}
		minutes = minutes*60 + n
	}
	sec, err := strconv.ParseFloat(parts[len(parts)-1], 64)
	if err != nil || sec < 0 {
		return 0, fmt.Errorf("invalid position %q", s)
	}
	total := time.Duration(minutes)*time.Minute + time.Duration(math.Round(sec*1000))*time.Millisecond
	return total.Milliseconds(), nil
}

// controller applies stdin commands to a running engine.
type controller struct {
	engine *avplay.Engine
	out    io.Writer
	log    logrus.FieldLogger
	quit   func()
}

// readLines feeds lines from r until it fails or ctx is done. It never
// returns while r blocks, so it is not part of the errgroup.
func readLines(ctx context.Context, r io.Reader, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
}

func (c *controller) run(ctx context.Context, lines <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			cmd, err := parseCommand(line)
			if err != nil {
				fmt.Fprintln(c.out, err)
				continue
			}
			c.apply(cmd)
		}
	}
}

func (c *controller) apply(cmd command) {
	var err error
	switch cmd.kind {
	case cmdPause:
		err = c.engine.SetPlaying(false)
	case cmdPlay:
		err = c.engine.SetPlaying(true)
	case cmdToggle:
		err = c.engine.SetPlaying(!c.engine.IsPlaying())
	case cmdSeek:
		err = c.engine.Seek(cmd.ms)
	case cmdStatus:
		c.printStatus()
	case cmdQuit:
		c.quit()
	}
	if err != nil {
		c.log.WithError(err).Warn("command failed")
		fmt.Fprintln(c.out, err)
	}
}

func (c *controller) printStatus() {
	state := "playing"
	if !c.engine.IsPlaying() {
		state = "paused"
	}
	length := c.engine.Container().Length()
	s := c.engine.Stats()
	fmt.Fprintf(c.out, "%s %s / %s  packets=%d video=%d audio=%d subtitles=%d\n",
		state, sink.FormatMillis(c.engine.Position()), sink.FormatMillis(length),
		s.Packets, s.VideoFrames, s.AudioFrames, s.SubtitleEvents)
}
