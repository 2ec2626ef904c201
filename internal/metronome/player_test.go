package metronome

import (
	"sync"
	"testing"
	"time"

	"github.com/Mavwarf/metronome/internal/click"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestPlayer(t *testing.T, s Settings, clk *fakeClock) (*Player, *Cell) {
	t.Helper()
	cell, err := NewCell(s)
	if err != nil {
		t.Fatalf("NewCell: %v", err)
	}
	o := defaultOptions()
	o.clock = clk.Now
	o.tickBuffer = 1024
	now := clk.Now()
	return newPlayer(NewScheduler(cell, now), o, now), cell
}

// render runs n buffers of size frames through p, advancing the clock by
// the buffer's duration after each, and returns the concatenated output.
func render(p *Player, clk *fakeClock, n, frames, rate int) []float32 {
	out := make([]float32, 0, n*frames)
	buf := make([]float32, frames)
	for i := 0; i < n; i++ {
		p.Fill(buf, rate)
		out = append(out, buf...)
		clk.Advance(samplesDuration(frames, rate))
	}
	return out
}

func drainTicks(p *Player) []Tick {
	var ticks []Tick
	for {
		select {
		case tk := <-p.Ticks():
			ticks = append(ticks, tk)
		default:
			return ticks
		}
	}
}

func TestPlayerScenario120FourFour(t *testing.T) {
	const (
		rate   = 48000
		frames = 480 // 10 ms
	)
	clk := newFakeClock()
	p, _ := newTestPlayer(t, fourFour(120), clk)

	// 8.4 s: ticks at 0.5 s, 1.0 s, ... 8.0 s.
	out := render(p, clk, 840, frames, rate)

	ticks := drainTicks(p)
	if len(ticks) != 16 {
		t.Fatalf("got %d ticks, want 16", len(ticks))
	}
	for i, tk := range ticks {
		if tk.Beat != i%4 {
			t.Fatalf("tick %d beat = %d, want %d", i, tk.Beat, i%4)
		}
	}

	clickLen := click.Samples(click.DefaultDuration, rate)
	if clickLen != 2400 {
		t.Fatalf("click length = %d, want 2400", clickLen)
	}
	intervalSamples := rate / 2
	for k := 0; k < 16; k++ {
		start := (k + 1) * intervalSamples
		end := min(start+intervalSamples, len(out))
		// Everything after the click window up to the next tick is silent.
		last := -1
		for i := start; i < end; i++ {
			if out[i] != 0 {
				last = i
			}
		}
		if last != start+clickLen-1 {
			t.Fatalf("click %d: last non-silent sample at %d, want %d", k, last, start+clickLen-1)
		}

		// Downbeats use the accent pitch.
		freq := click.BeatFrequency
		if k%4 == 0 {
			freq = click.AccentFrequency
		}
		if want := float32(click.Sample(1, rate, freq)); out[start+1] != want {
			t.Fatalf("click %d: second sample = %v, want %v (%.0f Hz)", k, out[start+1], want, freq)
		}
	}

	for i := 0; i < intervalSamples; i++ {
		if out[i] != 0 {
			t.Fatalf("expected silence before the first deadline, got %v at %d", out[i], i)
		}
	}
}

func TestPlayerPublishesCounterBeforeTick(t *testing.T) {
	const rate = 48000
	clk := newFakeClock()
	p, _ := newTestPlayer(t, Settings{BPM: 120, Signature: TimeSignature{3, 4}, Volume: 0.5}, clk)

	buf := make([]float32, 480)
	seen := 0
	for i := 0; i < 300 && seen < 4; i++ {
		p.Fill(buf, rate)
		clk.Advance(10 * time.Millisecond)
		for _, tk := range drainTicks(p) {
			if p.Beat() != tk.Beat {
				t.Fatalf("counter = %d when tick %d delivered", p.Beat(), tk.Beat)
			}
			seen++
		}
	}
	if seen < 4 {
		t.Fatalf("saw %d ticks", seen)
	}
}

func TestPlayerUpdateAppliesAtNextTick(t *testing.T) {
	const (
		rate   = 48000
		frames = 480
	)
	clk := newFakeClock()
	p, cell := newTestPlayer(t, Settings{BPM: 120, Signature: TimeSignature{4, 4}, Volume: 1}, clk)

	// Run to the first tick, then one buffer into the click.
	render(p, clk, 51, frames, rate)
	if !p.sched.Playing() {
		t.Fatal("expected a click in progress")
	}

	if err := cell.Write(Settings{BPM: 60, Signature: TimeSignature{4, 4}, Volume: 0.25}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// Rest of the click still plays at full volume.
	pos := p.sched.pos
	buf := make([]float32, frames)
	p.Fill(buf, rate)
	clk.Advance(10 * time.Millisecond)
	if want := float32(click.Sample(pos, rate, click.AccentFrequency)); buf[0] != want {
		t.Errorf("mid-click sample = %v, want %v (old volume)", buf[0], want)
	}

	// The deadline already scheduled (old interval) still fires at 1.0 s;
	// render up to and including it.
	render(p, clk, 48, frames, rate)
	buf2 := make([]float32, frames)
	p.Fill(buf2, rate)
	if want := float32(click.Sample(1, rate, click.BeatFrequency) * 0.25); buf2[1] != want {
		t.Errorf("next click second sample = %v, want %v (new volume)", buf2[1], want)
	}
	if p.sched.Interval() != time.Second {
		t.Errorf("interval after boundary = %v, want 1s", p.sched.Interval())
	}
}

func TestPlayerShortIntervalCompletesPreviousClick(t *testing.T) {
	const rate = 48000
	clk := newFakeClock()
	// 25 ms per beat, shorter than the 50 ms click.
	p, _ := newTestPlayer(t, Settings{BPM: 2400, Signature: TimeSignature{4, 4}, Volume: 1}, clk)

	render(p, clk, 100, 480, rate)
	ticks := drainTicks(p)
	if len(ticks) < 8 {
		t.Fatalf("got %d ticks, want at least 8", len(ticks))
	}
	for i, tk := range ticks {
		if tk.Beat != i%4 {
			t.Fatalf("tick %d beat = %d, want %d", i, tk.Beat, i%4)
		}
	}
}

func TestPlayerMeasureShrinkDuringPlayback(t *testing.T) {
	const rate = 48000
	clk := newFakeClock()
	p, cell := newTestPlayer(t, Settings{BPM: 120, Signature: TimeSignature{4, 4}, Volume: 1}, clk)

	// Three beats complete: 0, 1, 2.
	render(p, clk, 160, 480, rate)
	if got := len(drainTicks(p)); got != 3 {
		t.Fatalf("got %d ticks, want 3", got)
	}
	if err := cell.Write(Settings{BPM: 120, Signature: TimeSignature{3, 4}, Volume: 1}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	render(p, clk, 200, 480, rate)
	var beats []int
	for _, tk := range drainTicks(p) {
		beats = append(beats, tk.Beat)
	}
	want := []int{0, 1, 2, 0}
	if len(beats) != len(want) {
		t.Fatalf("beats = %v, want %v", beats, want)
	}
	for i := range want {
		if beats[i] != want[i] {
			t.Fatalf("beats = %v, want %v", beats, want)
		}
	}
}

func TestPlayerDropsTicksWhenNobodyListens(t *testing.T) {
	clk := newFakeClock()
	cell, err := NewCell(Settings{BPM: 2400, Signature: TimeSignature{4, 4}, Volume: 1})
	if err != nil {
		t.Fatalf("NewCell: %v", err)
	}
	o := defaultOptions()
	o.clock = clk.Now
	o.tickBuffer = 2
	p := newPlayer(NewScheduler(cell, clk.Now()), o, clk.Now())

	render(p, clk, 200, 480, 48000)
	if p.dropped.Load() == 0 {
		t.Fatal("expected dropped notifications with a full channel")
	}
	if len(drainTicks(p)) != 2 {
		t.Fatal("expected channel to hold exactly its capacity")
	}
}

func TestPlayerHaltSilences(t *testing.T) {
	clk := newFakeClock()
	p, _ := newTestPlayer(t, fourFour(120), clk)
	render(p, clk, 51, 480, 48000) // click in progress
	p.halt()

	buf := make([]float32, 480)
	for i := range buf {
		buf[i] = 1
	}
	p.Fill(buf, 48000)
	for i, s := range buf {
		if s != 0 {
			t.Fatalf("sample %d = %v after halt", i, s)
		}
	}
	clk.Advance(time.Second)
	p.Fill(buf, 48000)
	if len(drainTicks(p)) != 0 {
		t.Fatal("halted player published a tick")
	}
}

func TestIndicator(t *testing.T) {
	clk := newFakeClock()
	p, _ := newTestPlayer(t, fourFour(120), clk)
	in := p.indicator

	if in.Active(clk.Now()) {
		t.Fatal("active before any click")
	}
	render(p, clk, 51, 480, 48000)
	if !in.Active(clk.Now()) {
		t.Fatal("inactive during a click")
	}
	render(p, clk, 4, 480, 48000) // click completes during these
	if !in.Active(clk.Now()) {
		t.Fatal("inactive right after a click")
	}
	render(p, clk, 10, 480, 48000)
	if in.Active(clk.Now()) {
		t.Fatal("still active long after the click")
	}
}

func TestNewPlayerImmediateStart(t *testing.T) {
	clk := newFakeClock()
	p, err := NewPlayer(fourFour(120), WithClock(clk.Now), WithImmediateStart())
	if err != nil {
		t.Fatalf("NewPlayer: %v", err)
	}
	out := render(p, clk, 1, 480, 48000)
	if out[1] == 0 {
		t.Fatal("expected the first buffer to carry a click")
	}

	p, err = NewPlayer(fourFour(120), WithClock(clk.Now))
	if err != nil {
		t.Fatalf("NewPlayer: %v", err)
	}
	for i, s := range render(p, clk, 1, 480, 48000) {
		if s != 0 {
			t.Fatalf("sample %d = %v before the first deadline", i, s)
		}
	}
}

func TestNewPlayerRejectsInvalidSettings(t *testing.T) {
	if _, err := NewPlayer(Settings{BPM: 0, Signature: TimeSignature{4, 4}, Volume: 1}); err == nil {
		t.Fatal("expected an error for zero BPM")
	}
}
