package metronome

import "time"

// Scheduler decides when the next beat is due. It is owned by the audio
// side; nothing else may touch it.
//
// Deadlines advance by exactly one interval per tick. They are never
// recomputed from the time a tick was observed, so jitter in when the
// audio callback runs does not accumulate into drift.
type Scheduler struct {
	cell *Cell

	next     time.Time
	interval time.Duration

	playing bool
	pos     int // samples into the current click

	beat            int
	beatsPerMeasure int
	volume          float64 // latched at the tick boundary
}

// NewScheduler reads the cell once and schedules the first beat one
// interval after start.
func NewScheduler(cell *Cell, start time.Time) *Scheduler {
	s := &Scheduler{cell: cell}
	s.load()
	s.next = start.Add(s.interval)
	return s
}

func (s *Scheduler) load() {
	cfg := s.cell.Read()
	s.interval = cfg.Interval()
	s.beatsPerMeasure = cfg.Signature.Top
	s.volume = cfg.Volume
}

// Due reports whether the next beat deadline has been reached.
func (s *Scheduler) Due(now time.Time) bool {
	return !now.Before(s.next)
}

// AdvanceIfDue starts a new click if now has reached the deadline. The
// current settings are re-read, the beat index is folded into a measure
// that may have shrunk, and the deadline moves forward by one interval.
func (s *Scheduler) AdvanceIfDue(now time.Time) bool {
	if !s.Due(now) {
		return false
	}
	s.load()
	if s.beat >= s.beatsPerMeasure {
		s.beat %= s.beatsPerMeasure
	}
	s.playing = true
	s.pos = 0
	s.next = s.next.Add(s.interval)
	return true
}

// finish ends the current click and moves to the next beat of the measure.
// It returns the beat that just completed.
func (s *Scheduler) finish() int {
	done := s.beat
	s.playing = false
	s.beat = (s.beat + 1) % s.beatsPerMeasure
	return done
}

// Next returns the upcoming deadline.
func (s *Scheduler) Next() time.Time { return s.next }

// Interval returns the interval in effect since the last tick boundary.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// Beat returns the index of the beat currently playing or next to play.
func (s *Scheduler) Beat() int { return s.beat }

// Playing reports whether a click is sounding.
func (s *Scheduler) Playing() bool { return s.playing }
