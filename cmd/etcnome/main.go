package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/cbegin/etcnome-go"
	"github.com/cbegin/etcnome-go/internal/audio"
	"github.com/cbegin/etcnome-go/internal/logging"
	"github.com/cbegin/etcnome-go/internal/notation"
	"github.com/cbegin/etcnome-go/internal/track"
)

const defaultProgram = "bpm 100\n4/4 * 4"

func main() {
	app := &cli.App{
		Name:  "etcnome",
		Usage: "a programmable metronome",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML configuration file"},
			&cli.StringFlag{Name: "log-level", Usage: "debug|info|warn|error (overrides the config)"},
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "path to a program"},
			&cli.StringFlag{Name: "program", Aliases: []string{"p"}, Usage: "inline program"},
			&cli.StringFlag{Name: "select", Usage: "byte offsets start:end of the part to play"},
		},
		Commands: []*cli.Command{
			{
				Name:   "check",
				Usage:  "interpret a program and summarize it",
				Action: check,
			},
			{
				Name:  "play",
				Usage: "play a program",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "repeat", Usage: "start over when the track ends"},
					&cli.Float64Flag{Name: "speed", Value: 0, Usage: "tempo multiplier (overrides the config)"},
					&cli.BoolFlag{Name: "dry-run", Usage: "keep time without opening the audio device"},
				},
				Action: play,
			},
			{
				Name:  "export",
				Usage: "render a whole program to a file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "etcnome", Usage: "output path"},
					&cli.StringFlag{Name: "format", Value: "wav", Usage: "wav|mid"},
				},
				Action: export,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		logging.GetProjectLogger().WithError(err).Error("etcnome failed")
		os.Exit(1)
	}
}

type session struct {
	cfg   etcnome.Config
	track *track.Track
}

func load(c *cli.Context) (*session, error) {
	cfg := etcnome.DefaultConfig()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = etcnome.LoadConfig(path); err != nil {
			return nil, err
		}
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if err := logging.SetLevel(cfg.LogLevel); err != nil {
		return nil, errors.Wrap(err, "log level")
	}

	text, err := programText(c.String("file"), c.String("program"))
	if err != nil {
		return nil, err
	}
	sel, err := parseSelection(text, c.String("select"))
	if err != nil {
		return nil, err
	}
	tr, err := etcnome.Compile(text, sel)
	if err != nil {
		var syntax *notation.SyntaxError
		if errors.As(err, &syntax) {
			fmt.Fprint(os.Stderr, notation.Snippet(text, syntax.Line, syntax.Col))
		}
		return nil, err
	}
	return &session{cfg: cfg, track: tr}, nil
}

func programText(path, inline string) (string, error) {
	if strings.TrimSpace(inline) != "" {
		return inline, nil
	}
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", errors.Wrap(err, "read program")
		}
		return string(data), nil
	}
	return defaultProgram, nil
}

func parseSelection(text, arg string) (*track.Range, error) {
	if arg == "" {
		return nil, nil
	}
	from, to, ok := strings.Cut(arg, ":")
	if !ok {
		return nil, errors.Errorf("invalid --select %q (expected start:end)", arg)
	}
	start, err := strconv.Atoi(from)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid --select start %q", from)
	}
	end, err := strconv.Atoi(to)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid --select end %q", to)
	}
	if start < 0 || end < start {
		return nil, errors.Errorf("invalid --select %q", arg)
	}
	r := etcnome.SelectOffsets(text, start, end)
	return &r, nil
}

func seconds(s float64) string {
	return durafmt.Parse(time.Duration(s * float64(time.Second))).LimitFirstN(2).String()
}

func check(c *cli.Context) error {
	s, err := load(c)
	if err != nil {
		return err
	}
	whole := etcnome.Drain(s.track.WholeCursor())
	fmt.Printf("%d beats, %s\n", len(whole), seconds(etcnome.Length(whole)))
	for _, n := range s.track.Named {
		fmt.Printf("  %s %s\n", n.Name, n.Range)
	}
	if s.track.Range != nil {
		selected := etcnome.Drain(s.track.Cursor())
		fmt.Printf("selection %s: %d beats, %s\n", s.track.Range, len(selected), seconds(etcnome.Length(selected)))
	}
	return nil
}

func play(c *cli.Context) error {
	s, err := load(c)
	if err != nil {
		return err
	}
	if c.IsSet("repeat") {
		s.cfg.Repeat = c.Bool("repeat")
	}
	if speed := c.Float64("speed"); speed != 0 {
		s.cfg.Speed = speed
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	opts := s.cfg.Options()
	if c.Bool("dry-run") {
		opts = append(opts, etcnome.WithClockFactory(func(int) (audio.Clock, error) {
			return audio.NewTicker(nil), nil
		}))
	}
	pl, err := etcnome.NewPlayer(opts...)
	if err != nil {
		return err
	}
	defer pl.Close()

	pl.SetTrack(s.track)
	states := pl.Watch()
	if err := pl.Play(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()
	started := time.Now()
	for {
		select {
		case <-ctx.Done():
			fmt.Println("interrupted")
			return pl.Stop()
		case st := <-states:
			logging.GetProjectLogger().WithField("state", st).Debug("player")
			if st == etcnome.StateStopped || st == etcnome.StateEmpty {
				fmt.Printf("played %s\n", durafmt.Parse(time.Since(started)).LimitFirstN(2))
				return nil
			}
		}
	}
}

func export(c *cli.Context) error {
	s, err := load(c)
	if err != nil {
		return err
	}
	saver := etcnome.FileSaver{Path: c.String("out")}
	ex, err := etcnome.NewExporter(saver, s.cfg.Options()...)
	if err != nil {
		return err
	}
	ex.SetTrack(s.track)

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	var ext string
	switch format := strings.ToLower(c.String("format")); format {
	case "wav":
		ext = ".wav"
		err = ex.Export(ctx)
	case "mid", "midi":
		ext = ".mid"
		err = ex.ExportMIDI(ctx)
	default:
		return errors.Errorf("invalid --format %q (expected wav|mid)", format)
	}
	if err != nil {
		return err
	}
	target := saver.Target([]string{ext})
	info, err := os.Stat(target)
	if err != nil {
		return errors.Wrap(err, "stat export")
	}
	fmt.Printf("wrote %s (%s)\n", target, humanize.Bytes(uint64(info.Size())))
	return nil
}
