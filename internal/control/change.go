package control

import "github.com/Mavwarf/metronome/internal/metronome"

// Change is a partial edit of the settings as sent by remote front ends.
// Omitted fields keep the value of the settings it is applied to.
type Change struct {
	BPM       *float64 `json:"bpm,omitempty"`
	Signature string   `json:"signature,omitempty"`
	Volume    *float64 `json:"volume,omitempty"`
}

// Apply overlays c on base and validates the result.
func (c Change) Apply(base metronome.Settings) (metronome.Settings, error) {
	s := base
	if c.BPM != nil {
		s.BPM = *c.BPM
	}
	if c.Signature != "" {
		sig, err := metronome.ParseSignature(c.Signature)
		if err != nil {
			return metronome.Settings{}, err
		}
		s.Signature = sig
	}
	if c.Volume != nil {
		s.Volume = *c.Volume
	}
	return s, s.Validate()
}

// StartChange starts the metronome with ch applied to the running settings,
// or to defaults when idle. The read and the restart happen under one lock,
// so concurrent edits never overwrite each other's fields.
func (c *Controller) StartChange(ch Change, defaults metronome.Settings) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	base := defaults
	if c.engine != nil {
		base = c.engine.Settings()
	}
	s, err := ch.Apply(base)
	if err != nil {
		return err
	}
	return c.startLocked(s)
}

// UpdateChange applies ch to the running settings. Unlike Update it fails
// with ErrNotRunning when idle, since there is nothing to apply ch to.
func (c *Controller) UpdateChange(ch Change) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.engine == nil {
		return ErrNotRunning
	}
	s, err := ch.Apply(c.engine.Settings())
	if err != nil {
		return err
	}
	return c.updateLocked(s)
}
