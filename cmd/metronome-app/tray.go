package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"runtime"

	"github.com/energye/systray"

	"github.com/Mavwarf/metronome/internal/control"
	"github.com/Mavwarf/metronome/internal/icon"
)

// tempoStep is the BPM change of the tray's faster/slower items.
const tempoStep = 5

// runTray starts the system tray icon. Must be called in a goroutine;
// systray.Run blocks until Quit is called.
func runTray(app *App) {
	// Lock this goroutine to an OS thread so that the hidden window created
	// by systray and the GetMessage loop share the same thread.
	runtime.LockOSThread()
	systray.Run(func() { onTrayReady(app) }, func() {})
}

// pngToICO wraps raw PNG bytes in a minimal ICO container.
// Windows LoadImage(IMAGE_ICON) requires ICO format; since Vista,
// ICO supports embedded PNG data directly.
func pngToICO(png []byte) []byte {
	buf := new(bytes.Buffer)
	// ICONDIR header
	binary.Write(buf, binary.LittleEndian, uint16(0)) // reserved
	binary.Write(buf, binary.LittleEndian, uint16(1)) // type: 1 = ICO
	binary.Write(buf, binary.LittleEndian, uint16(1)) // count: 1 image

	// ICONDIRENTRY
	buf.WriteByte(0) // width (0 = 256)
	buf.WriteByte(0) // height (0 = 256)
	buf.WriteByte(0) // color count
	buf.WriteByte(0) // reserved
	binary.Write(buf, binary.LittleEndian, uint16(1))        // color planes
	binary.Write(buf, binary.LittleEndian, uint16(32))       // bits per pixel
	binary.Write(buf, binary.LittleEndian, uint32(len(png))) // image data size
	binary.Write(buf, binary.LittleEndian, uint32(6+1*16))   // offset to image data (header + 1 entry)

	// PNG data
	buf.Write(png)
	return buf.Bytes()
}

// tooltip describes the controller state for the tray icon.
func tooltip(st control.Status) string {
	if !st.Running || st.Settings == nil {
		return "metronome (stopped)"
	}
	return fmt.Sprintf("metronome: %g BPM, %s", st.Settings.BPM, st.Settings.Signature)
}

func onTrayReady(app *App) {
	png, err := icon.PNG(256)
	if err == nil {
		systray.SetIcon(pngToICO(png))
	}
	systray.SetTooltip(tooltip(app.Status()))
	systray.SetOnDClick(func(menu systray.IMenu) { app.ShowWindow() })

	mDashboard := systray.AddMenuItem("Open Dashboard", "Show the metronome window")
	mDashboard.Click(func() { app.ShowWindow() })

	systray.AddSeparator()

	mToggle := systray.AddMenuItem("Start", "Start or stop clicking")
	mFaster := systray.AddMenuItem(fmt.Sprintf("Faster (+%d BPM)", tempoStep), "Raise the tempo")
	mSlower := systray.AddMenuItem(fmt.Sprintf("Slower (-%d BPM)", tempoStep), "Lower the tempo")

	refresh := func() {
		st := app.Status()
		systray.SetTooltip(tooltip(st))
		if st.Running {
			mToggle.SetTitle("Stop")
		} else {
			mToggle.SetTitle("Start")
		}
	}
	nudge := func(delta float64) {
		cur, err := app.ctrl.Current()
		if err != nil {
			return
		}
		bpm := cur.BPM + delta
		if err := app.ctrl.UpdateChange(control.Change{BPM: &bpm}); err != nil {
			app.log.WithError(err).Debug("tray tempo change")
		}
		refresh()
	}

	mToggle.Click(func() {
		if app.ctrl.Running() {
			app.Stop()
		} else if err := app.Start(0, "", -1); err != nil {
			app.log.WithError(err).Error("starting from tray")
		}
		refresh()
	})
	mFaster.Click(func() { nudge(tempoStep) })
	mSlower.Click(func() { nudge(-tempoStep) })

	systray.AddSeparator()

	mQuit := systray.AddMenuItem("Quit", "Exit metronome-app")
	mQuit.Click(func() {
		app.ctrl.Stop()
		systray.Quit()
		os.Exit(0)
	})
}
