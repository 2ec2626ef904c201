package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/Mavwarf/metronome/internal/audio"
	"github.com/Mavwarf/metronome/internal/click"
	"github.com/Mavwarf/metronome/internal/config"
	"github.com/Mavwarf/metronome/internal/control"
	"github.com/Mavwarf/metronome/internal/logging"
	"github.com/Mavwarf/metronome/internal/metronome"
	"github.com/Mavwarf/metronome/internal/realtime"
	"github.com/Mavwarf/metronome/internal/sessionlog"
)

// app bundles what every long-running command needs.
type app struct {
	cfg      config.Config
	log      *logrus.Logger
	store    sessionlog.Store
	ctrl     *control.Controller
	settings metronome.Settings
}

// newOutput picks the audio backend.
func newOutput(cfg config.Config, headless bool) metronome.Output {
	if headless {
		return audio.NewNull(cfg.SampleRate, cfg.SampleRate*cfg.BufferMS/1000)
	}
	return audio.NewDevice(cfg.SampleRate, cfg.Buffer())
}

func newApp(o options) (*app, error) {
	cfg, err := loadConfig(o)
	if err != nil {
		return nil, err
	}
	log := logging.New(cfg.LogLevel, os.Stderr)
	if cfg.Path != "" {
		log.WithField("path", cfg.Path).Debug("config loaded")
	}

	settings, err := cfg.Settings()
	if err != nil {
		return nil, err
	}
	voice, err := click.Lookup(cfg.Voice)
	if err != nil {
		return nil, err
	}

	store, err := sessionlog.Open(cfg.Storage)
	if err != nil {
		// History is a side channel; keep going without it.
		log.WithError(err).Warn("session history disabled")
		store = sessionlog.Nop{}
	}

	if cfg.Realtime {
		realtime.Boost(log)
	}

	ctrl := control.New(control.Config{
		Output:        newOutput(cfg, o.headless),
		Voice:         voice,
		ClickDuration: cfg.ClickDuration(),
		Recorder:      store,
		Log:           log,
	})
	return &app{cfg: cfg, log: log, store: store, ctrl: ctrl, settings: settings}, nil
}

func (a *app) close() {
	a.ctrl.Stop()
	if err := a.store.Close(); err != nil {
		a.log.WithError(err).Warn("closing session history")
	}
}
