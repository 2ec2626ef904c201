package main

import (
	"fmt"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/Mavwarf/metronome/internal/metronome"
)

// keyAction is what a key press asks for.
type keyAction int

const (
	keyNone keyAction = iota
	keyUpdate
	keyToggle
	keyQuit
)

// commonSignatures is the cycle for the 'm' key.
var commonSignatures = []metronome.TimeSignature{
	{Top: 2, Bottom: 4}, {Top: 3, Bottom: 4}, {Top: 4, Bottom: 4},
	{Top: 5, Bottom: 4}, {Top: 6, Bottom: 8}, {Top: 7, Bottom: 8},
}

// applyKey maps a key to new settings. Tempo is clamped to 1-999 BPM and
// volume to 0-1 so a held key never produces invalid settings.
func applyKey(key byte, s metronome.Settings) (metronome.Settings, keyAction) {
	switch key {
	case '+', '=':
		s.BPM = math.Min(999, math.Floor(s.BPM)+1)
	case '-', '_':
		s.BPM = math.Max(1, math.Ceil(s.BPM)-1)
	case ']':
		s.BPM = math.Min(999, s.BPM+10)
	case '[':
		s.BPM = math.Max(1, s.BPM-10)
	case 'u':
		s.Volume = math.Min(1, math.Round((s.Volume+0.1)*10)/10)
	case 'd':
		s.Volume = math.Max(0, math.Round((s.Volume-0.1)*10)/10)
	case 'm':
		s.Signature = nextSignature(s.Signature)
	case ' ':
		return s, keyToggle
	case 'q', 'Q', 'x', 3: // q, x, or Ctrl+C
		return s, keyQuit
	default:
		return s, keyNone
	}
	return s, keyUpdate
}

func nextSignature(cur metronome.TimeSignature) metronome.TimeSignature {
	for i, sig := range commonSignatures {
		if sig == cur {
			return commonSignatures[(i+1)%len(commonSignatures)]
		}
	}
	return commonSignatures[0]
}

// beatBar draws one cell per beat with the current one lit.
func beatBar(beat, top int) string {
	var b strings.Builder
	for i := 0; i < top; i++ {
		switch {
		case i == beat && i == 0:
			b.WriteString(bold(yellow("●")))
		case i == beat:
			b.WriteString(green("●"))
		default:
			b.WriteString(dim("○"))
		}
		if i < top-1 {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func statusLine(s metronome.Settings, running bool, beat int) string {
	state := dim("stopped")
	bar := ""
	if running {
		state = green("playing")
		bar = beatBar(beat, s.Signature.Top)
	}
	return fmt.Sprintf("\r\033[K%s  %s  %s  vol %.1f  %s",
		state, bold(fmt.Sprintf("%g BPM", s.BPM)), s.Signature, s.Volume, bar)
}

func playCmd(o options) {
	a, err := newApp(o)
	if err != nil {
		fatal(err)
	}
	err = play(a)
	a.close()
	if err != nil {
		fatal(err)
	}
}

// play runs the metronome until the user quits or the process is
// signalled.
func play(a *app) error {
	if err := a.ctrl.Start(a.settings); err != nil {
		return err
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		// No keyboard: click until interrupted.
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sig)
		<-sig
		return nil
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("cannot enter raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	keys := make(chan byte, 1)
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if n > 0 {
				keys <- buf[0]
			}
			if err != nil {
				return
			}
		}
	}()

	l := a.ctrl.Subscribe()
	defer a.ctrl.Unsubscribe(l)

	// In raw mode \n doesn't include \r.
	os.Stdout.WriteString("space start/stop  +/- tempo  [/] tempo x10  u/d volume  m meter  q quit\r\n")

	s := a.settings
	running := true
	beat := -1
	for {
		os.Stdout.WriteString(statusLine(s, running, beat))
		select {
		case t := <-l.C:
			beat = t.Beat
		case key := <-keys:
			next, action := applyKey(key, s)
			switch action {
			case keyQuit:
				os.Stdout.WriteString("\r\n")
				return nil
			case keyToggle:
				if running {
					a.ctrl.Stop()
				} else if err := a.ctrl.Start(s); err != nil {
					a.log.WithError(err).Error("restarting")
					continue
				}
				running = !running
				beat = -1
			case keyUpdate:
				if err := a.ctrl.Update(next); err != nil {
					continue
				}
				s = next
			}
		}
	}
}
