package audio

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gopxl/beep/wav"

	"github.com/Mavwarf/metronome/internal/metronome"
)

// onsets counts clicks: a non-zero sample preceded by at least gap zeros
// (or by the start of the file).
func onsets(samples []float64, gap int) int {
	n, zeros := 0, gap
	for _, s := range samples {
		if s == 0 {
			zeros++
			continue
		}
		if zeros >= gap {
			n++
		}
		zeros = 0
	}
	return n
}

func renderFile(t *testing.T, s metronome.Settings, d time.Duration, rate int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "click.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := RenderWAV(f, s, d, rate); err != nil {
		f.Close()
		t.Fatalf("RenderWAV: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRenderWAV(t *testing.T) {
	s := metronome.Settings{BPM: 120, Signature: metronome.TimeSignature{Top: 4, Bottom: 4}, Volume: 0.8}
	path := renderFile(t, s, 2*time.Second, 8000)

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	streamer, format, err := wav.Decode(f)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	defer streamer.Close()

	if format.SampleRate != 8000 || format.NumChannels != 1 || format.Precision != 2 {
		t.Fatalf("format = %+v", format)
	}
	if streamer.Len() != 16000 {
		t.Fatalf("length = %d samples, want 16000", streamer.Len())
	}

	var mono []float64
	buf := make([][2]float64, 512)
	for {
		n, ok := streamer.Stream(buf)
		for _, frame := range buf[:n] {
			mono = append(mono, frame[0])
		}
		if !ok {
			break
		}
	}
	if got := onsets(mono, 100); got != 4 {
		t.Errorf("found %d clicks in 2s at 120 BPM, want 4", got)
	}
	if mono[1] == 0 {
		t.Error("file does not open on a click")
	}
}

func TestRenderWAVRejects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	ok := metronome.Settings{BPM: 120, Signature: metronome.TimeSignature{Top: 4, Bottom: 4}, Volume: 1}
	if err := RenderWAV(f, ok, 0, 8000); err == nil {
		t.Error("expected error for zero duration")
	}
	if err := RenderWAV(f, ok, time.Second, 0); err == nil {
		t.Error("expected error for zero sample rate")
	}
	bad := ok
	bad.Signature.Bottom = 0
	if err := RenderWAV(f, bad, time.Second, 8000); err == nil {
		t.Error("expected error for invalid signature")
	}
}
