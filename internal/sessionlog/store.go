package sessionlog

import (
	"fmt"
	"time"

	"github.com/Mavwarf/metronome/internal/metronome"
)

// Kind classifies a recorded event.
type Kind int

const (
	KindStart Kind = iota + 1
	KindUpdate
	KindStop
	KindError
)

var kindNames = map[Kind]string{
	KindStart:  "start",
	KindUpdate: "update",
	KindStop:   "stop",
	KindError:  "error",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText makes kinds readable in JSON.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Event is one row of session history.
type Event struct {
	ID        int64     `json:"id"`
	Time      time.Time `json:"time"`
	Kind      Kind      `json:"kind"`
	BPM       float64   `json:"bpm"`
	Signature string    `json:"signature"`
	Volume    float64   `json:"volume"`
	Voice     string    `json:"voice"`
	Detail    string    `json:"detail,omitempty"`
}

// NewEvent fills an event from the settings in effect.
func NewEvent(kind Kind, s metronome.Settings, voice string) Event {
	return Event{
		Time:      time.Now(),
		Kind:      kind,
		BPM:       s.BPM,
		Signature: s.Signature.String(),
		Volume:    s.Volume,
		Voice:     voice,
	}
}

// Store abstracts session history storage.
type Store interface {
	Record(ev Event) error

	Events(days int) ([]Event, error) // 0 = all, oldest first
	Clean(days int) (int, error)      // remove events older than days
	Clear() error

	Path() string
	Close() error
}

// Nop discards everything. Used when storage is "none".
type Nop struct{}

func (Nop) Record(Event) error { return nil }
func (Nop) Events(int) ([]Event, error) { return nil, nil }
func (Nop) Clean(int) (int, error) { return 0, nil }
func (Nop) Clear() error { return nil }
func (Nop) Path() string { return "" }
func (Nop) Close() error { return nil }
