package metronome

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrInvalidSettings is wrapped by every validation failure.
var ErrInvalidSettings = errors.New("invalid metronome settings")

// TimeSignature is the number of beats per measure (Top) and the note value
// that gets one beat (Bottom).
type TimeSignature struct {
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
}

func (ts TimeSignature) String() string {
	return fmt.Sprintf("%d/%d", ts.Top, ts.Bottom)
}

// ParseSignature parses "top/bottom", e.g. "6/8".
func ParseSignature(s string) (TimeSignature, error) {
	top, bottom, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return TimeSignature{}, fmt.Errorf("%w: time signature %q must look like 4/4", ErrInvalidSettings, s)
	}
	t, err := strconv.Atoi(strings.TrimSpace(top))
	if err != nil {
		return TimeSignature{}, fmt.Errorf("%w: time signature %q: %v", ErrInvalidSettings, s, err)
	}
	b, err := strconv.Atoi(strings.TrimSpace(bottom))
	if err != nil {
		return TimeSignature{}, fmt.Errorf("%w: time signature %q: %v", ErrInvalidSettings, s, err)
	}
	ts := TimeSignature{Top: t, Bottom: b}
	if err := ts.Validate(); err != nil {
		return TimeSignature{}, err
	}
	return ts, nil
}

// Validate rejects empty measures and zero beat units.
func (ts TimeSignature) Validate() error {
	if ts.Top < 1 {
		return fmt.Errorf("%w: beats per measure must be at least 1, got %d", ErrInvalidSettings, ts.Top)
	}
	if ts.Bottom < 1 {
		return fmt.Errorf("%w: beat unit must be at least 1, got %d", ErrInvalidSettings, ts.Bottom)
	}
	return nil
}

// Tempo limits. MinInterval keeps the deadline moving forward for every
// accepted tempo and beat unit.
const (
	MinBPM      = 1
	MaxBPM      = 6000
	MinInterval = time.Millisecond
)

// Settings is the user-editable part of a running metronome.
type Settings struct {
	BPM       float64       `json:"bpm"`
	Signature TimeSignature `json:"time_signature"`
	Volume    float64       `json:"volume"` // 0.0 to 1.0
}

// Validate checks that s can be handed to the scheduler.
func (s Settings) Validate() error {
	if math.IsNaN(s.BPM) || math.IsInf(s.BPM, 0) || s.BPM <= 0 {
		return fmt.Errorf("%w: tempo must be a positive number, got %v", ErrInvalidSettings, s.BPM)
	}
	if s.BPM < MinBPM || s.BPM > MaxBPM {
		return fmt.Errorf("%w: tempo must be %d-%d BPM, got %v", ErrInvalidSettings, MinBPM, MaxBPM, s.BPM)
	}
	if err := s.Signature.Validate(); err != nil {
		return err
	}
	if iv := s.Interval(); iv < MinInterval {
		return fmt.Errorf("%w: beat interval %s at %v BPM %s is below %s", ErrInvalidSettings, iv, s.BPM, s.Signature, MinInterval)
	}
	if math.IsNaN(s.Volume) || s.Volume < 0 || s.Volume > 1 {
		return fmt.Errorf("%w: volume must be between 0 and 1, got %v", ErrInvalidSettings, s.Volume)
	}
	return nil
}

// Interval returns the time between two beats: 60/BPM seconds per quarter
// note, scaled by 4/Bottom for the signature's beat unit.
func (s Settings) Interval() time.Duration {
	ns := float64(time.Minute) / s.BPM * 4 / float64(s.Signature.Bottom)
	return time.Duration(math.Round(ns))
}

// Cell holds the settings shared between the control side and the audio
// side. Writes replace all fields at once; readers always see a consistent
// snapshot.
type Cell struct {
	mu sync.Mutex
	s  Settings
}

// NewCell validates s and returns a cell holding it.
func NewCell(s Settings) (*Cell, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &Cell{s: s}, nil
}

// Read returns a copy of the current settings.
func (c *Cell) Read() Settings {
	c.mu.Lock()
	s := c.s
	c.mu.Unlock()
	return s
}

// Write validates s and replaces the current settings. Invalid settings
// leave the cell untouched.
func (c *Cell) Write(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.s = s
	c.mu.Unlock()
	return nil
}
