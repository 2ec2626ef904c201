package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"github.com/Mavwarf/metronome/internal/audio"
	"github.com/Mavwarf/metronome/internal/click"
	"github.com/Mavwarf/metronome/internal/config"
	"github.com/Mavwarf/metronome/internal/control"
	"github.com/Mavwarf/metronome/internal/dashboard"
	"github.com/Mavwarf/metronome/internal/logging"
	"github.com/Mavwarf/metronome/internal/realtime"
	"github.com/Mavwarf/metronome/internal/sessionlog"
)

func main() {
	configPath := ""
	port := 0

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config", "-c":
			if i+1 < len(args) {
				configPath = args[i+1]
				i++
			}
		case "--port", "-p":
			if i+1 < len(args) {
				fmt.Sscanf(args[i+1], "%d", &port)
				i++
			}
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "metronome-app: %v\n", err)
		os.Exit(1)
	}
	if port > 0 {
		cfg.DashboardPort = port
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "metronome-app: %v\n", err)
		os.Exit(1)
	}
	settings, _ := cfg.Settings()
	voice, _ := click.Lookup(cfg.Voice)
	log := logging.New(cfg.LogLevel, os.Stderr)

	store, err := sessionlog.Open(cfg.Storage)
	if err != nil {
		log.WithError(err).Warn("session history disabled")
		store = sessionlog.Nop{}
	}
	defer store.Close()

	if cfg.Realtime {
		realtime.Boost(log)
	}

	ctrl := control.New(control.Config{
		Output:        audio.NewDevice(cfg.SampleRate, cfg.Buffer()),
		Voice:         voice,
		ClickDuration: cfg.ClickDuration(),
		Recorder:      store,
		Log:           log,
	})
	defer ctrl.Stop()

	app := &App{
		port:     cfg.DashboardPort,
		ctrl:     ctrl,
		defaults: settings,
		log:      log,
		ready:    make(chan struct{}),
	}

	// Start the dashboard HTTP server in the background.
	srv := dashboard.New(ctrl, store, settings, log)
	srv.ShowFn = app.ShowWindow
	go func() {
		if err := srv.Serve(context.Background(), cfg.DashboardPort, false); err != nil {
			fmt.Fprintf(os.Stderr, "metronome-app: dashboard: %v\n", err)
			os.Exit(1)
		}
	}()

	if err := waitForServer(cfg.DashboardPort, 3*time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "metronome-app: %v\n", err)
		os.Exit(1)
	}

	go runTray(app)

	// The asset server only serves a blank page in the dashboard colours;
	// startup then points the WebView at the dashboard itself.
	loader := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html><html><body style="background:#1d1f23"></body></html>`))
	})

	err = wails.Run(&options.App{
		Title:     "metronome",
		Width:     900,
		Height:    640,
		MinWidth:  640,
		MinHeight: 480,
		AssetServer: &assetserver.Options{
			Handler: loader,
		},
		BackgroundColour: &options.RGBA{R: 29, G: 31, B: 35, A: 255}, // #1d1f23
		OnStartup:        app.startup,
		OnShutdown:       app.shutdown,
		OnBeforeClose:    app.beforeClose,
		Bind:             []interface{}{app},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "metronome-app: %v\n", err)
		os.Exit(1)
	}
}

// waitForServer polls /api/status until the dashboard answers.
func waitForServer(port int, timeout time.Duration) error {
	addr := dashboard.URL(port) + "/api/status"
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(addr)
		if err == nil {
			resp.Body.Close()
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("dashboard server not ready after %s", timeout)
}
