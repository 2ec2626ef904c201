package sessionlog

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Mavwarf/metronome/internal/metronome"
)

// Compile-time interface checks.
var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = Nop{}
)

func tempSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessions.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func settings(bpm float64) metronome.Settings {
	return metronome.Settings{BPM: bpm, Signature: metronome.TimeSignature{Top: 3, Bottom: 4}, Volume: 0.5}
}

func TestSQLiteStoreRecordAndEvents(t *testing.T) {
	s := tempSQLiteStore(t)

	ev := NewEvent(KindStart, settings(96), "wood")
	if err := s.Record(ev); err != nil {
		t.Fatal(err)
	}
	stop := NewEvent(KindStop, settings(96), "wood")
	stop.Detail = "stopped from tray"
	if err := s.Record(stop); err != nil {
		t.Fatal(err)
	}

	events, err := s.Events(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	got := events[0]
	if got.Kind != KindStart || got.BPM != 96 || got.Signature != "3/4" || got.Volume != 0.5 || got.Voice != "wood" {
		t.Fatalf("unexpected event: %+v", got)
	}
	if !got.Time.Equal(ev.Time.Truncate(time.Nanosecond)) {
		t.Errorf("time = %v, want %v", got.Time, ev.Time)
	}
	if events[1].Kind != KindStop || events[1].Detail != "stopped from tray" {
		t.Fatalf("unexpected event: %+v", events[1])
	}
	if events[0].ID >= events[1].ID {
		t.Error("events not ordered by id")
	}
}

func TestSQLiteStoreEventsDays(t *testing.T) {
	s := tempSQLiteStore(t)

	old := NewEvent(KindStart, settings(60), "classic")
	old.Time = time.Now().AddDate(0, 0, -10)
	s.Record(old)
	s.Record(NewEvent(KindStart, settings(120), "classic"))

	events, err := s.Events(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].BPM != 120 {
		t.Fatalf("Events(1) = %+v", events)
	}
	all, _ := s.Events(0)
	if len(all) != 2 {
		t.Fatalf("Events(0) returned %d events", len(all))
	}
}

func TestSQLiteStoreCleanAndClear(t *testing.T) {
	s := tempSQLiteStore(t)

	old := NewEvent(KindStart, settings(60), "classic")
	old.Time = time.Now().AddDate(0, 0, -30)
	s.Record(old)
	s.Record(NewEvent(KindStart, settings(120), "classic"))

	n, err := s.Clean(7)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("Clean removed %d, want 1", n)
	}
	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	events, _ := s.Events(0)
	if len(events) != 0 {
		t.Fatalf("expected empty store, got %d events", len(events))
	}
}

func TestSQLiteStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "sessions.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	s.Record(NewEvent(KindStart, settings(100), "low"))
	s.Close()

	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if s.Path() != path {
		t.Errorf("Path() = %q", s.Path())
	}
	events, _ := s.Events(0)
	if len(events) != 1 || events[0].Voice != "low" {
		t.Fatalf("events after reopen: %+v", events)
	}
}

func TestOpen(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("APPDATA", t.TempDir())

	st, err := Open("none")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := st.(Nop); !ok {
		t.Errorf("Open(none) = %T", st)
	}

	st, err = Open("sqlite")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if !strings.HasSuffix(st.Path(), "sessions.db") {
		t.Errorf("path = %q", st.Path())
	}

	if _, err := Open("postgres"); err == nil {
		t.Error("expected error for unknown storage")
	}
}

func TestKindJSON(t *testing.T) {
	data, err := json.Marshal(Event{Kind: KindUpdate})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"kind":"update"`) {
		t.Errorf("json = %s", data)
	}
	if got := Kind(42).String(); got != "kind(42)" {
		t.Errorf("String() = %q", got)
	}
}
