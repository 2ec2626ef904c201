package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Mavwarf/metronome/internal/audio"
	"github.com/Mavwarf/metronome/internal/click"
	"github.com/Mavwarf/metronome/internal/metronome"
)

const defaultRenderSeconds = 10

func renderCmd(args []string, o options) {
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "Error: expected render <out.wav>\n")
		os.Exit(1)
	}
	out := args[0]

	cfg, err := loadConfig(o)
	if err != nil {
		fatal(err)
	}
	s, err := cfg.Settings()
	if err != nil {
		fatal(err)
	}
	voice, err := click.Lookup(cfg.Voice)
	if err != nil {
		fatal(err)
	}

	d := renderDuration(o.seconds)
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		fatal(err)
	}
	f, err := os.Create(out)
	if err != nil {
		fatal(err)
	}
	err = audio.RenderWAV(f, s, d, cfg.SampleRate,
		metronome.WithVoice(voice), metronome.WithClickDuration(cfg.ClickDuration()))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(out)
		fatal(err)
	}
	fmt.Printf("Wrote %s (%s, %g BPM, %s, %s voice)\n", out, fmtDuration(d), s.BPM, s.Signature, voice.Name)
}

func renderDuration(seconds float64) time.Duration {
	if seconds <= 0 {
		seconds = defaultRenderSeconds
	}
	return time.Duration(seconds * float64(time.Second))
}
