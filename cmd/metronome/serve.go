package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Mavwarf/metronome/internal/dashboard"
	"github.com/Mavwarf/metronome/internal/mqtt"
)

func serveCmd(o options) {
	a, err := newApp(o)
	if err != nil {
		fatal(err)
	}
	err = serve(a, o.open)
	a.close()
	if err != nil {
		fatal(err)
	}
}

// serve runs the dashboard, and the MQTT bridge when configured, until
// SIGINT or SIGTERM.
func serve(a *app, open bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.cfg.MQTT.Broker != "" {
		bridge := newBridge(a)
		if err := bridge.Connect(); err != nil {
			// The dashboard still works without the broker.
			a.log.WithError(err).Warn("mqtt bridge disabled")
		} else {
			go bridge.Run(ctx)
		}
	}

	fmt.Printf("Dashboard: %s\n", dashboard.URL(a.cfg.DashboardPort))
	fmt.Println("Press Ctrl+C to stop")

	srv := dashboard.New(a.ctrl, a.store, a.settings, a.log)
	return srv.Serve(ctx, a.cfg.DashboardPort, open)
}

func newBridge(a *app) *mqtt.Bridge {
	m := a.cfg.MQTT
	return mqtt.New(mqtt.Options{
		Broker:      m.Broker,
		ClientID:    m.ClientID,
		TopicPrefix: m.TopicPrefix,
		Username:    m.Username,
		Password:    m.Password,
		Defaults:    a.settings,
	}, a.ctrl, a.log)
}
