package metronome

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Mavwarf/metronome/internal/click"
)

// Tick is published once per completed click.
type Tick struct {
	Beat int       `json:"beat"`
	At   time.Time `json:"at"`
}

// Player fills audio buffers with clicks. Fill is called from the audio
// output's goroutine; everything it touches is either owned by it or
// atomic.
type Player struct {
	fillMu sync.Mutex // held for one Fill; only halt contends
	halted atomic.Bool

	sched    *Scheduler
	voice    click.Voice
	clickDur time.Duration
	clock    func() time.Time

	beat      atomic.Int64
	indicator *Indicator
	ticks     chan Tick
	dropped   atomic.Uint64
}

func newPlayer(sched *Scheduler, o options, epoch time.Time) *Player {
	return &Player{
		sched:     sched,
		voice:     o.voice,
		clickDur:  o.clickDuration,
		clock:     o.clock,
		indicator: newIndicator(epoch, o.clickDuration),
		ticks:     make(chan Tick, o.tickBuffer),
	}
}

// Fill writes one buffer of mono samples. The clock is read once per call
// and the scheduler gets exactly one chance to start a tick.
func (p *Player) Fill(buf []float32, sampleRate int) {
	p.fillMu.Lock()
	defer p.fillMu.Unlock()

	if p.halted.Load() || sampleRate <= 0 {
		clear(buf)
		return
	}

	now := p.clock()
	s := p.sched

	// A beat due while the previous click still sounds: close that click
	// out so its beat is published before the new one starts.
	if s.playing && s.Due(now) {
		p.complete(now)
	}
	if s.AdvanceIfDue(now) {
		p.indicator.start(now)
	}

	clickLen := click.Samples(p.clickDur, sampleRate)
	for i := range buf {
		if !s.playing {
			buf[i] = 0
			continue
		}
		freq := p.voice.Frequency(s.beat)
		buf[i] = float32(click.Sample(s.pos, sampleRate, freq) * s.volume)
		s.pos++
		if s.pos >= clickLen {
			p.complete(now.Add(samplesDuration(i+1, sampleRate)))
		}
	}
}

// complete publishes the finished beat: counter first, then the
// notification, which is dropped rather than blocking when nobody drains.
func (p *Player) complete(at time.Time) {
	beat := p.sched.finish()
	p.beat.Store(int64(beat))
	p.indicator.finish(at)
	select {
	case p.ticks <- Tick{Beat: beat, At: at}:
	default:
		p.dropped.Add(1)
	}
}

// halt silences the player. Once it returns no Fill is in progress and no
// further beats will be published.
func (p *Player) halt() {
	p.fillMu.Lock()
	p.halted.Store(true)
	p.fillMu.Unlock()
}

// Beat returns the most recently completed beat index.
func (p *Player) Beat() int { return int(p.beat.Load()) }

// Ticks exposes completed beats. The engine drains it; tests may too.
func (p *Player) Ticks() <-chan Tick { return p.ticks }

func samplesDuration(n, sampleRate int) time.Duration {
	return time.Duration(int64(n) * int64(time.Second) / int64(sampleRate))
}

// Indicator answers "is a click sounding, or did one end within the last
// click duration?" for UI polling. It is derived from timestamps written
// by the audio side, so no timer has to clear it.
type Indicator struct {
	epoch    time.Time
	window   time.Duration
	started  atomic.Int64 // ns since epoch, -1 = never
	finished atomic.Int64
}

func newIndicator(epoch time.Time, window time.Duration) *Indicator {
	in := &Indicator{epoch: epoch, window: window}
	in.started.Store(-1)
	in.finished.Store(-1)
	return in
}

func (in *Indicator) start(t time.Time) { in.started.Store(int64(t.Sub(in.epoch))) }
func (in *Indicator) finish(t time.Time) { in.finished.Store(int64(t.Sub(in.epoch))) }

// Active reports whether the tick indicator is lit at now.
func (in *Indicator) Active(now time.Time) bool {
	f := in.finished.Load()
	s := in.started.Load()
	if s < 0 {
		return false
	}
	if s > f {
		return true
	}
	return int64(now.Sub(in.epoch))-f < int64(in.window)
}
