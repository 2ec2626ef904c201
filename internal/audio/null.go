package audio

import (
	"sync"
	"time"

	"github.com/Mavwarf/metronome/internal/metronome"
)

// Null is an output without a device. It pulls buffers at the real-time
// cadence and discards them, so the engine behaves as if a sound card were
// attached. Used for --headless and in tests.
type Null struct {
	SampleRate int
	Frames     int // samples per pull
}

// NewNull returns a headless output pulling frames samples at a time.
func NewNull(sampleRate, frames int) *Null {
	return &Null{SampleRate: sampleRate, Frames: frames}
}

// Open returns a stream that starts pulling on Play.
func (n *Null) Open(src metronome.Source) (metronome.Stream, error) {
	frames := n.Frames
	if frames <= 0 {
		frames = n.SampleRate / 100
	}
	if n.SampleRate <= 0 || frames <= 0 {
		return nil, ErrStream
	}
	return &nullStream{
		src:    src,
		rate:   n.SampleRate,
		buf:    make([]float32, frames),
		period: time.Duration(int64(frames) * int64(time.Second) / int64(n.SampleRate)),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

type nullStream struct {
	src    metronome.Source
	rate   int
	buf    []float32
	period time.Duration

	playOnce  sync.Once
	closeOnce sync.Once
	started   bool
	quit      chan struct{}
	done      chan struct{}
}

func (s *nullStream) Play() {
	s.playOnce.Do(func() {
		s.started = true
		go s.pump()
	})
}

func (s *nullStream) pump() {
	defer close(s.done)
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()
	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
			s.src.Fill(s.buf, s.rate)
		}
	}
}

func (s *nullStream) Close() error {
	s.closeOnce.Do(func() {
		// Block further Plays, then wait for a running pump.
		s.playOnce.Do(func() {})
		close(s.quit)
		if s.started {
			<-s.done
		}
	})
	return nil
}
