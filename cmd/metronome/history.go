package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Mavwarf/metronome/internal/sessionlog"
)

// --- ANSI color helpers (disabled when NO_COLOR env var is set) ---

var noColor = os.Getenv("NO_COLOR") != ""

func ansi(code, s string) string {
	if noColor {
		return s
	}
	return code + s + "\033[0m"
}

func bold(s string) string   { return ansi("\033[1m", s) }
func dim(s string) string    { return ansi("\033[2m", s) }
func green(s string) string  { return ansi("\033[32m", s) }
func yellow(s string) string { return ansi("\033[33m", s) }

// padR pads s to width with spaces on the right.
func padR(s string, width int) string {
	if pad := width - len(s); pad > 0 {
		return s + strings.Repeat(" ", pad)
	}
	return s
}

func historyCmd(args []string, o options) {
	cfg, err := loadConfig(o)
	if err != nil {
		fatal(err)
	}
	if cfg.Storage == "none" {
		fmt.Println("Session history is disabled (storage: none).")
		return
	}
	store, err := sessionlog.Open(cfg.Storage)
	if err != nil {
		fatal(err)
	}
	err = history(store, args)
	store.Close()
	if err != nil {
		fatal(err)
	}
}

func history(store sessionlog.Store, args []string) error {
	if len(args) == 0 {
		return historyShow(store, 7)
	}
	switch args[0] {
	case "clear":
		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Println("History cleared.")
	case "clean":
		if len(args) != 2 {
			return fmt.Errorf("expected history clean <days>")
		}
		days, err := strconv.Atoi(args[1])
		if err != nil || days < 1 {
			return fmt.Errorf("days must be a positive number")
		}
		n, err := store.Clean(days)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d events older than %d days.\n", n, days)
	default:
		days, err := strconv.Atoi(args[0])
		if err != nil || days < 0 {
			return fmt.Errorf("unknown history command %q", args[0])
		}
		return historyShow(store, days)
	}
	return nil
}

func historyShow(store sessionlog.Store, days int) error {
	events, err := store.Events(days)
	if err != nil {
		return err
	}
	sessions := sessionlog.Sessions(events, time.Now())
	if len(sessions) == 0 {
		fmt.Println("No sessions recorded.")
		return nil
	}
	var out strings.Builder
	renderSessions(&out, sessions)
	fmt.Print(out.String())
	return nil
}

// renderSessions writes one line per session and a summary footer.
func renderSessions(w *strings.Builder, sessions []sessionlog.Session) {
	fmt.Fprintf(w, "%s  %s  %s\n", bold(padR("Started", 16)), bold(padR("Length", 9)), bold("Tempos"))
	for _, s := range sessions {
		length := padR(fmtDuration(s.Length), 9)
		switch {
		case s.Open:
			length = green(length)
		case s.Failed:
			length = yellow(length)
		}
		tempos := make([]string, len(s.Tempos))
		for i, bpm := range s.Tempos {
			tempos[i] = strconv.FormatFloat(bpm, 'f', -1, 64)
		}
		fmt.Fprintf(w, "%s  %s  %s\n", s.Start.Format("2006-01-02 15:04"), length, strings.Join(tempos, " → "))
	}

	sum := sessionlog.Summarize(sessions)
	fmt.Fprintf(w, "\n%s sessions, %s total, longest %s",
		bold(strconv.Itoa(sum.Sessions)), bold(fmtDuration(sum.Total)), fmtDuration(sum.Longest))
	if sum.TopBPM > 0 {
		fmt.Fprintf(w, ", usually %s BPM", strconv.FormatFloat(sum.TopBPM, 'f', -1, 64))
	}
	w.WriteString(dim(fmt.Sprintf(" (%g-%g BPM)", sum.MinBPM, sum.MaxBPM)))
	w.WriteByte('\n')
}
