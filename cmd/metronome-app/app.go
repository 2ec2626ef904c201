package main

import (
	"context"
	"fmt"
	"os"

	"github.com/energye/systray"
	"github.com/sirupsen/logrus"
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/Mavwarf/metronome/internal/click"
	"github.com/Mavwarf/metronome/internal/control"
	"github.com/Mavwarf/metronome/internal/dashboard"
	"github.com/Mavwarf/metronome/internal/metronome"
)

// App is bound into the WebView. Its exported methods are callable from
// JavaScript; completed beats arrive there as "tick" events.
type App struct {
	ctx      context.Context
	port     int
	ctrl     *control.Controller
	defaults metronome.Settings
	log      logrus.FieldLogger
	ready    chan struct{} // closed when Wails startup completes
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	go a.forwardTicks(ctx)
	// Navigate the WebView directly to the dashboard HTTP server.
	// This bypasses the Wails asset server so SSE streaming works natively.
	wailsRuntime.WindowExecJS(ctx, fmt.Sprintf("window.location.href = '%s';", dashboard.URL(a.port)))
	close(a.ready)
}

func (a *App) shutdown(ctx context.Context) {
	a.ctrl.Stop()
}

// forwardTicks re-emits every beat as a Wails event until the app exits.
func (a *App) forwardTicks(ctx context.Context) {
	l := a.ctrl.Subscribe()
	defer a.ctrl.Unsubscribe(l)
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-l.C:
			wailsRuntime.EventsEmit(ctx, "tick", t)
		}
	}
}

// beforeClose intercepts the window close event. Shift+close exits fully;
// normal close hides to tray.
func (a *App) beforeClose(ctx context.Context) bool {
	if isShiftHeld() {
		a.ctrl.Stop()
		systray.Quit()
		os.Exit(0)
		return false
	}
	wailsRuntime.WindowHide(a.ctx)
	return true // keep running in the tray
}

func (a *App) ShowWindow() {
	<-a.ready // wait for Wails to be initialized
	wailsRuntime.WindowShow(a.ctx)
}

// Start begins clicking. A zero bpm, an empty signature or a negative
// volume keeps the current (or configured) value; other out-of-range values
// are rejected.
func (a *App) Start(bpm float64, signature string, volume float64) error {
	return a.ctrl.StartChange(change(bpm, signature, volume), a.defaults)
}

// Update changes the running metronome at its next beat.
func (a *App) Update(bpm float64, signature string, volume float64) error {
	return a.ctrl.UpdateChange(change(bpm, signature, volume))
}

func (a *App) Stop() { a.ctrl.Stop() }

func (a *App) Status() control.Status { return a.ctrl.Status() }

// SetVoice selects the voice for the next start.
func (a *App) SetVoice(name string) error {
	v, err := click.Lookup(name)
	if err != nil {
		return err
	}
	a.ctrl.SetVoice(v)
	return nil
}

func (a *App) Voices() []string { return click.Names() }

// change builds a partial edit from bound-method arguments. JavaScript has
// no optional numbers, so a zero bpm and a negative volume mean "unchanged".
// Negative tempos pass through for validation to reject.
func change(bpm float64, signature string, volume float64) control.Change {
	var ch control.Change
	if bpm != 0 {
		ch.BPM = &bpm
	}
	ch.Signature = signature
	if volume >= 0 {
		ch.Volume = &volume
	}
	return ch
}
