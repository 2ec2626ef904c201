package audio

import (
	"fmt"
	"io"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"

	"github.com/Mavwarf/metronome/internal/metronome"
)

// sampleClock derives time from the number of samples rendered, which is
// the only clock an offline render has.
type sampleClock struct {
	start time.Time
	rate  int
	n     int64
}

func (c *sampleClock) Now() time.Time {
	return c.start.Add(time.Duration(c.n * int64(time.Second) / int64(c.rate)))
}

// clickStreamer exposes a metronome.Player as a beep.Streamer.
type clickStreamer struct {
	player *metronome.Player
	clock  *sampleClock
	buf    []float32
}

func (s *clickStreamer) Stream(samples [][2]float64) (int, bool) {
	if cap(s.buf) < len(samples) {
		s.buf = make([]float32, len(samples))
	}
	buf := s.buf[:len(samples)]
	s.player.Fill(buf, s.clock.rate)
	s.clock.n += int64(len(buf))
	for i, v := range buf {
		samples[i][0] = float64(v)
		samples[i][1] = float64(v)
	}
	return len(samples), true
}

func (s *clickStreamer) Err() error { return nil }

// RenderWAV writes d worth of clicks at sampleRate to w as 16-bit mono WAV.
// The first click sounds at the very start of the file.
func RenderWAV(w io.WriteSeeker, s metronome.Settings, d time.Duration, sampleRate int, opts ...metronome.Option) error {
	if sampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrStream, sampleRate)
	}
	if d <= 0 {
		return fmt.Errorf("render: duration must be positive, got %s", d)
	}

	clk := &sampleClock{start: time.Unix(0, 0), rate: sampleRate}
	opts = append(opts, metronome.WithClock(clk.Now), metronome.WithImmediateStart())
	player, err := metronome.NewPlayer(s, opts...)
	if err != nil {
		return err
	}

	format := beep.Format{
		SampleRate:  beep.SampleRate(sampleRate),
		NumChannels: 1,
		Precision:   2,
	}
	src := beep.Take(format.SampleRate.N(d), &clickStreamer{player: player, clock: clk})
	if err := wav.Encode(w, src, format); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}
