package mqtt

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Mavwarf/metronome/internal/control"
	"github.com/Mavwarf/metronome/internal/events"
	"github.com/Mavwarf/metronome/internal/metronome"
)

type fakeController struct {
	running bool
	s       metronome.Settings
	starts  int
	stops   int
}

func (f *fakeController) StartChange(ch control.Change, defaults metronome.Settings) error {
	base := defaults
	if f.running {
		base = f.s
	}
	s, err := ch.Apply(base)
	if err != nil {
		return err
	}
	f.running, f.s = true, s
	f.starts++
	return nil
}

func (f *fakeController) Stop() {
	if f.running {
		f.stops++
	}
	f.running = false
}

func (f *fakeController) UpdateChange(ch control.Change) error {
	if !f.running {
		return control.ErrNotRunning
	}
	s, err := ch.Apply(f.s)
	if err != nil {
		return err
	}
	f.s = s
	return nil
}

func (f *fakeController) Current() (metronome.Settings, error) {
	if !f.running {
		return metronome.Settings{}, control.ErrNotRunning
	}
	return f.s, nil
}

func (f *fakeController) Subscribe() *events.Listener { return nil }
func (f *fakeController) Unsubscribe(l *events.Listener) {}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

var defaults = metronome.Settings{BPM: 120, Signature: metronome.TimeSignature{Top: 4, Bottom: 4}, Volume: 0.8}

func newTestBridge(ctrl Controller) *Bridge {
	return New(Options{TopicPrefix: "studio/metronome/", Defaults: defaults}, ctrl, quietLogger())
}

func TestTopics(t *testing.T) {
	b := newTestBridge(&fakeController{})
	if got := b.opts.tickTopic(); got != "studio/metronome/tick" {
		t.Errorf("tick topic = %q", got)
	}
	if got := b.opts.commandTopic(); got != "studio/metronome/cmd" {
		t.Errorf("command topic = %q", got)
	}
	if got := b.opts.stateTopic(); got != "studio/metronome/state" {
		t.Errorf("state topic = %q", got)
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in      string
		action  string
		wantErr bool
	}{
		{"start", "start", false},
		{" STOP\n", "stop", false},
		{`{"action":"update","bpm":90}`, "update", false},
		{`{"action":"Start","signature":"3/4"}`, "start", false},
		{`{"action":"pause"}`, "", true},
		{`{bpm`, "", true},
	}
	for _, tt := range tests {
		cmd, err := ParseCommand([]byte(tt.in))
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCommand(%q) err = %v", tt.in, err)
			continue
		}
		if cmd.Action != tt.action {
			t.Errorf("ParseCommand(%q).Action = %q, want %q", tt.in, cmd.Action, tt.action)
		}
	}
}

func TestParseCommandFields(t *testing.T) {
	cmd, err := ParseCommand([]byte(`{"action":"update","bpm":90,"signature":"6/8","volume":0}`))
	if err != nil {
		t.Fatal(err)
	}
	s, err := cmd.Apply(defaults)
	if err != nil {
		t.Fatal(err)
	}
	want := metronome.Settings{BPM: 90, Signature: metronome.TimeSignature{Top: 6, Bottom: 8}, Volume: 0}
	if s != want {
		t.Errorf("Apply = %+v, want %+v", s, want)
	}

	loud := 3.0
	if _, err := (Command{Change: control.Change{Volume: &loud}}).Apply(defaults); !errors.Is(err, metronome.ErrInvalidSettings) {
		t.Errorf("err = %v, want ErrInvalidSettings", err)
	}
}

func TestExecute(t *testing.T) {
	ctrl := &fakeController{}
	b := newTestBridge(ctrl)

	// Update while idle reports the controller's error.
	st := b.execute(Command{Action: "update"})
	if st.Running || !strings.Contains(st.Error, "not running") {
		t.Errorf("idle update state = %+v", st)
	}

	bpm := 100.0
	st = b.execute(Command{Action: "start", Change: control.Change{BPM: &bpm}})
	if !st.Running || st.Settings.BPM != 100 || st.Settings.Volume != defaults.Volume {
		t.Errorf("start state = %+v", st)
	}

	sig := "3/4"
	st = b.execute(Command{Action: "update", Change: control.Change{Signature: sig}})
	if st.Settings.Signature.Top != 3 || st.Settings.BPM != 100 {
		t.Errorf("update state = %+v", st.Settings)
	}

	bad := -5.0
	st = b.execute(Command{Action: "update", Change: control.Change{BPM: &bad}})
	if st.Error == "" || st.Settings.BPM != 100 {
		t.Errorf("invalid update state = %+v", st)
	}

	st = b.execute(Command{Action: "stop"})
	if st.Running || ctrl.stops != 1 {
		t.Errorf("stop state = %+v, stops = %d", st, ctrl.stops)
	}
}

func TestTickPayload(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	got := string(TickPayload(metronome.Tick{Beat: 2, At: at}))
	want := `{"beat":2,"at":"2026-01-02T03:04:05Z"}`
	if got != want {
		t.Errorf("payload = %s, want %s", got, want)
	}
}

func TestPublishNotConnected(t *testing.T) {
	b := newTestBridge(&fakeController{})
	if err := b.publish("x", false, nil); err == nil {
		t.Fatal("expected error without a connection")
	}
}

func TestConnectBadBroker(t *testing.T) {
	// Connecting to a non-existent broker should return a connect error.
	b := New(Options{Broker: "tcp://127.0.0.1:19999", ClientID: "test-client", TopicPrefix: "t"}, &fakeController{}, quietLogger())
	if err := b.Connect(); err == nil {
		t.Fatal("expected error for unreachable broker")
	}
}
