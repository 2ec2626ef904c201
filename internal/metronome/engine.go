package metronome

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Mavwarf/metronome/internal/click"
)

// idlePoll is how often the worker wakes up for bookkeeping while the
// audio output pulls samples on its own.
const idlePoll = 100 * time.Millisecond

// Source is what an audio output pulls samples from.
type Source interface {
	Fill(buf []float32, sampleRate int)
}

// Output opens audio streams. Device and format negotiation belong to the
// implementation; the engine only needs a stream that calls Fill.
type Output interface {
	Open(src Source) (Stream, error)
}

// Stream is an opened audio stream.
type Stream interface {
	Play()
	Close() error
}

// TickSink receives completed beats off the audio path.
type TickSink func(Tick)

type options struct {
	voice         click.Voice
	clickDuration time.Duration
	clock         func() time.Time
	sink          TickSink
	tickBuffer    int
	immediate     bool
	log           logrus.FieldLogger
}

// Option configures Start.
type Option func(*options)

// WithVoice selects the click voice.
func WithVoice(v click.Voice) Option { return func(o *options) { o.voice = v } }

// WithClickDuration overrides the default 50 ms burst length.
func WithClickDuration(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.clickDuration = d
		}
	}
}

// WithClock replaces time.Now; tests use it to drive the scheduler.
func WithClock(now func() time.Time) Option { return func(o *options) { o.clock = now } }

// WithSink sets the function that receives completed beats.
func WithSink(sink TickSink) Option { return func(o *options) { o.sink = sink } }

// WithImmediateStart sounds the first beat at start instead of one
// interval later. Offline renders use it so the file opens on a click.
func WithImmediateStart() Option { return func(o *options) { o.immediate = true } }

// WithLogger sets the logger used by the worker.
func WithLogger(l logrus.FieldLogger) Option { return func(o *options) { o.log = l } }

func defaultOptions() options {
	return options{
		voice:         click.Voices[click.DefaultVoice],
		clickDuration: click.DefaultDuration,
		clock:         time.Now,
		tickBuffer:    64,
		log:           logrus.StandardLogger(),
	}
}

// Engine is a running metronome: a worker goroutine owning an audio stream
// and a dispatcher forwarding beats to the sink.
type Engine struct {
	cell   *Cell
	player *Player
	out    Output
	sink   TickSink
	clock  func() time.Time
	log    logrus.FieldLogger

	cancel     context.CancelFunc
	done       chan struct{} // worker exited
	dispatched chan struct{} // dispatcher exited
	stopOnce   sync.Once

	errMu sync.Mutex
	err   error
}

// Start validates s, opens a stream on out and begins clicking. If the
// stream cannot be opened the error is returned and nothing is left running.
func Start(s Settings, out Output, opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	cell, err := NewCell(s)
	if err != nil {
		return nil, err
	}

	now := o.clock()
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cell:       cell,
		player:     buildPlayer(cell, o, now),
		out:        out,
		sink:       o.sink,
		clock:      o.clock,
		log:        o.log,
		cancel:     cancel,
		done:       make(chan struct{}),
		dispatched: make(chan struct{}),
	}

	ready := make(chan error, 1)
	go e.run(ctx, ready)
	if err := <-ready; err != nil {
		cancel()
		<-e.done
		return nil, err
	}
	go e.dispatch(ctx)

	e.log.WithFields(logrus.Fields{
		"bpm":       s.BPM,
		"signature": s.Signature.String(),
		"volume":    s.Volume,
		"voice":     o.voice.Name,
	}).Info("metronome started")
	return e, nil
}

// NewPlayer returns a player that is not attached to any output. The
// caller drives Fill and drains Ticks; RenderWAV is built on it.
func NewPlayer(s Settings, opts ...Option) (*Player, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	cell, err := NewCell(s)
	if err != nil {
		return nil, err
	}
	return buildPlayer(cell, o, o.clock()), nil
}

func buildPlayer(cell *Cell, o options, now time.Time) *Player {
	sched := NewScheduler(cell, now)
	if o.immediate {
		sched.next = now
	}
	return newPlayer(sched, o, now)
}

func (e *Engine) run(ctx context.Context, ready chan<- error) {
	defer close(e.done)
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("metronome worker panic: %v", r)
			e.setErr(err)
			e.log.WithField("panic", r).Error("metronome worker crashed")
			select {
			case ready <- err:
			default:
			}
		}
	}()

	// The stream belongs to this goroutine from open to close.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	stream, err := e.out.Open(e.player)
	if err != nil {
		ready <- err
		return
	}
	defer func() {
		e.player.halt()
		if err := stream.Close(); err != nil {
			e.log.WithError(err).Warn("closing audio stream")
		}
	}()

	stream.Play()
	ready <- nil

	ticker := time.NewTicker(idlePoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := e.player.dropped.Swap(0); n > 0 {
				e.log.WithField("dropped", n).Warn("tick notifications dropped")
			}
		}
	}
}

func (e *Engine) dispatch(ctx context.Context) {
	defer close(e.dispatched)
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-e.player.ticks:
			if e.sink != nil {
				e.sink(t)
			}
		}
	}
}

// Stop signals the worker, waits for it to release the stream and for the
// dispatcher to exit. Safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.cancel()
		<-e.done
		<-e.dispatched
		e.log.Info("metronome stopped")
	})
}

// Update replaces the settings. The scheduler picks them up at the next
// tick boundary.
func (e *Engine) Update(s Settings) error {
	return e.cell.Write(s)
}

// Settings returns the current settings.
func (e *Engine) Settings() Settings { return e.cell.Read() }

// Beat returns the most recently completed beat index.
func (e *Engine) Beat() int { return e.player.Beat() }

// TickActive reports whether a click is sounding or ended within the last
// click duration.
func (e *Engine) TickActive() bool { return e.player.indicator.Active(e.clock()) }

// Running reports whether the worker is still alive.
func (e *Engine) Running() bool {
	select {
	case <-e.done:
		return false
	default:
		return true
	}
}

// Err returns the error that ended the worker early, if any.
func (e *Engine) Err() error {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.err
}

func (e *Engine) setErr(err error) {
	e.errMu.Lock()
	e.err = err
	e.errMu.Unlock()
}
