package sessionlog

import (
	"testing"
	"time"
)

func at(min int) time.Time {
	return time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local).Add(time.Duration(min) * time.Minute)
}

func ev(kind Kind, min int, bpm float64) Event {
	return Event{Kind: kind, Time: at(min), BPM: bpm}
}

func TestSessions(t *testing.T) {
	events := []Event{
		ev(KindStop, 0, 100), // stray stop, ignored
		ev(KindStart, 1, 100),
		ev(KindUpdate, 3, 110),
		ev(KindUpdate, 4, 110),
		ev(KindStop, 11, 110),
		ev(KindStart, 20, 80),
		ev(KindStart, 25, 90), // restart closes the previous session
		ev(KindError, 26, 90),
		ev(KindStart, 30, 60),
	}
	got := Sessions(events, at(40))
	if len(got) != 4 {
		t.Fatalf("got %d sessions, want 4", len(got))
	}

	first := got[0]
	if first.Length != 10*time.Minute || first.Updates != 2 || first.Open || first.Failed {
		t.Errorf("first session = %+v", first)
	}
	if len(first.Tempos) != 2 || first.Tempos[0] != 100 || first.Tempos[1] != 110 {
		t.Errorf("tempos = %v", first.Tempos)
	}
	if got[1].Length != 5*time.Minute {
		t.Errorf("restarted session length = %v", got[1].Length)
	}
	if !got[2].Failed || got[2].Length != time.Minute {
		t.Errorf("failed session = %+v", got[2])
	}
	if !got[3].Open || got[3].Length != 10*time.Minute {
		t.Errorf("open session = %+v", got[3])
	}
}

func TestSummarize(t *testing.T) {
	sessions := []Session{
		{Length: 10 * time.Minute, Tempos: []float64{100, 110}},
		{Length: 5 * time.Minute, Tempos: []float64{80}},
		{Length: 20 * time.Minute, Tempos: []float64{100}},
	}
	s := Summarize(sessions)
	if s.Sessions != 3 || s.Total != 35*time.Minute || s.Longest != 20*time.Minute {
		t.Errorf("summary = %+v", s)
	}
	if s.MinBPM != 80 || s.MaxBPM != 110 || s.TopBPM != 100 {
		t.Errorf("tempo stats = %+v", s)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	if s := Summarize(nil); s != (Summary{}) {
		t.Errorf("Summarize(nil) = %+v", s)
	}
}

func TestDayCutoff(t *testing.T) {
	c := DayCutoff(1)
	now := time.Now()
	if c.Hour() != 0 || c.Minute() != 0 || c.Day() != now.Day() {
		t.Errorf("DayCutoff(1) = %v", c)
	}
	if got := DayCutoff(7); !got.Equal(c.AddDate(0, 0, -6)) {
		t.Errorf("DayCutoff(7) = %v", got)
	}
}
