package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/Mavwarf/metronome/internal/metronome"
)

// Errors reported by Open. Both are fatal to starting the metronome.
var (
	ErrDeviceUnavailable = errors.New("audio device unavailable")
	ErrStream            = errors.New("audio stream rejected")
)

const bytesPerSample = 4 // mono float32

var (
	otoCtx     *oto.Context
	otoOnce    sync.Once
	otoRate    int
	otoInitErr error
)

// getContext opens the process-wide oto context on first use. oto allows a
// single context per process, so the first sample rate wins.
func getContext(sampleRate int, buffer time.Duration) (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 1,
			Format:       oto.FormatFloat32LE,
			BufferSize:   buffer,
		}
		var readyChan chan struct{}
		otoCtx, readyChan, otoInitErr = oto.NewContext(op)
		if otoInitErr == nil {
			<-readyChan
			otoRate = sampleRate
		}
	})
	if otoInitErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, otoInitErr)
	}
	if otoRate != sampleRate {
		return nil, fmt.Errorf("%w: device already open at %d Hz, requested %d Hz", ErrStream, otoRate, sampleRate)
	}
	return otoCtx, nil
}

// Device is the default audio output, backed by oto.
type Device struct {
	SampleRate int
	Buffer     time.Duration // device buffer; smaller is tighter but riskier
}

// NewDevice returns a mono float32 output at sampleRate.
func NewDevice(sampleRate int, buffer time.Duration) *Device {
	return &Device{SampleRate: sampleRate, Buffer: buffer}
}

// Open creates a player that pulls samples from src.
func (d *Device) Open(src metronome.Source) (metronome.Stream, error) {
	if d.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrStream, d.SampleRate)
	}
	ctx, err := getContext(d.SampleRate, d.Buffer)
	if err != nil {
		return nil, err
	}

	player := ctx.NewPlayer(newReader(src, d.SampleRate))
	if d.Buffer > 0 {
		player.SetBufferSize(bufferBytes(d.Buffer, d.SampleRate))
	}
	if err := ctx.Err(); err != nil {
		player.Close()
		return nil, fmt.Errorf("%w: %v", ErrStream, err)
	}
	return &otoStream{player: player}, nil
}

type otoStream struct {
	player *oto.Player
}

func (s *otoStream) Play() { s.player.Play() }

func (s *otoStream) Close() error {
	if err := s.player.Err(); err != nil {
		s.player.Close()
		return fmt.Errorf("%w: %v", ErrStream, err)
	}
	return s.player.Close()
}

func bufferBytes(d time.Duration, sampleRate int) int {
	n := int(d.Seconds()*float64(sampleRate)) * bytesPerSample
	if n < bytesPerSample {
		n = bytesPerSample
	}
	return n
}

// reader adapts a metronome.Source to the io.Reader oto pulls from. The
// sample buffer is reused between calls.
type reader struct {
	src  metronome.Source
	rate int
	buf  []float32
}

func newReader(src metronome.Source, rate int) *reader {
	return &reader{src: src, rate: rate, buf: make([]float32, 1024)}
}

func (r *reader) Read(p []byte) (int, error) {
	n := len(p) / bytesPerSample
	if n == 0 {
		return 0, nil
	}
	if cap(r.buf) < n {
		r.buf = make([]float32, n)
	}
	samples := r.buf[:n]
	r.src.Fill(samples, r.rate)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(p[i*bytesPerSample:], math.Float32bits(s))
	}
	return n * bytesPerSample, nil
}
