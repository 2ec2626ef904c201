package sessionlog

import (
	"sort"
	"time"
)

// DayCutoff returns midnight N days ago (inclusive) in the local timezone.
// For days=1 it returns today at midnight, for days=7 it returns 6 days ago, etc.
func DayCutoff(days int) time.Time {
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return today.AddDate(0, 0, -(days - 1))
}

// Session is one start..stop run reconstructed from events.
type Session struct {
	Start   time.Time     `json:"start"`
	End     time.Time     `json:"end"`
	Open    bool          `json:"open"` // no stop recorded yet
	Updates int           `json:"updates"`
	Tempos  []float64     `json:"tempos"` // distinct BPMs in order of use
	Failed  bool          `json:"failed"`
	Length  time.Duration `json:"length"`
}

// Sessions pairs start events with the next stop or error. A start
// without an end is open and runs until now; a second start closes the
// previous session at its own timestamp.
func Sessions(events []Event, now time.Time) []Session {
	var out []Session
	var cur *Session

	closeAt := func(t time.Time) {
		cur.End = t
		cur.Length = t.Sub(cur.Start)
		out = append(out, *cur)
		cur = nil
	}
	addTempo := func(bpm float64) {
		if n := len(cur.Tempos); n == 0 || cur.Tempos[n-1] != bpm {
			cur.Tempos = append(cur.Tempos, bpm)
		}
	}

	for _, ev := range events {
		switch ev.Kind {
		case KindStart:
			if cur != nil {
				closeAt(ev.Time)
			}
			cur = &Session{Start: ev.Time}
			addTempo(ev.BPM)
		case KindUpdate:
			if cur != nil {
				cur.Updates++
				addTempo(ev.BPM)
			}
		case KindStop:
			if cur != nil {
				closeAt(ev.Time)
			}
		case KindError:
			if cur != nil {
				cur.Failed = true
				closeAt(ev.Time)
			}
		}
	}
	if cur != nil {
		cur.Open = true
		closeAt(now)
	}
	return out
}

// Summary aggregates sessions.
type Summary struct {
	Sessions int           `json:"sessions"`
	Total    time.Duration `json:"total"`
	Longest  time.Duration `json:"longest"`
	MinBPM   float64       `json:"min_bpm"`
	MaxBPM   float64       `json:"max_bpm"`
	TopBPM   float64       `json:"top_bpm"` // tempo started most often
}

// Summarize computes totals over sessions.
func Summarize(sessions []Session) Summary {
	var s Summary
	s.Sessions = len(sessions)
	starts := map[float64]int{}
	for _, sess := range sessions {
		s.Total += sess.Length
		if sess.Length > s.Longest {
			s.Longest = sess.Length
		}
		for _, bpm := range sess.Tempos {
			if s.MinBPM == 0 || bpm < s.MinBPM {
				s.MinBPM = bpm
			}
			if bpm > s.MaxBPM {
				s.MaxBPM = bpm
			}
		}
		if len(sess.Tempos) > 0 {
			starts[sess.Tempos[0]]++
		}
	}

	bpms := make([]float64, 0, len(starts))
	for bpm := range starts {
		bpms = append(bpms, bpm)
	}
	sort.Float64s(bpms)
	best := 0
	for _, bpm := range bpms {
		if starts[bpm] > best {
			best = starts[bpm]
			s.TopBPM = bpm
		}
	}
	return s
}
