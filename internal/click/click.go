package click

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// DefaultDuration is the length of a single click burst.
const DefaultDuration = 50 * time.Millisecond

// Reference pitches of the classic voice.
const (
	AccentFrequency = 432.0 // first beat of a measure
	BeatFrequency   = 216.0 // every other beat
)

// DefaultVoice names the voice used when none is configured.
const DefaultVoice = "classic"

// Voice describes a click sound: one pitch for the downbeat and one for
// the remaining beats of a measure.
type Voice struct {
	Name        string
	Description string
	Accent      float64 // Hz, beat index 0
	Beat        float64 // Hz, beat index > 0
}

// Voices is the registry of available click voices.
var Voices = map[string]Voice{
	"classic": {
		Name:        "classic",
		Description: "Low sine tone burst, octave-down on off-beats",
		Accent:      AccentFrequency,
		Beat:        BeatFrequency,
	},
	"bright": {
		Name:        "bright",
		Description: "Concert A on the downbeat, A4 an octave lower on the rest",
		Accent:      880,
		Beat:        440,
	},
	"wood": {
		Name:        "wood",
		Description: "High, short-sounding tick that cuts through a mix",
		Accent:      1760,
		Beat:        880,
	},
	"low": {
		Name:        "low",
		Description: "Sub-heavy pulse for headphones",
		Accent:      216,
		Beat:        108,
	},
}

// Lookup returns the named voice. An empty name selects DefaultVoice.
func Lookup(name string) (Voice, error) {
	if name == "" {
		name = DefaultVoice
	}
	v, ok := Voices[name]
	if !ok {
		return Voice{}, fmt.Errorf("unknown click voice %q", name)
	}
	return v, nil
}

// Names returns the registered voice names in sorted order.
func Names() []string {
	names := make([]string, 0, len(Voices))
	for n := range Voices {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Frequency returns the pitch for the given zero-based beat index.
func (v Voice) Frequency(beat int) float64 {
	if beat == 0 {
		return v.Accent
	}
	return v.Beat
}

// Sample returns the amplitude of sample i of a tone burst at freq Hz.
func Sample(i, sampleRate int, freq float64) float64 {
	t := float64(i) / float64(sampleRate)
	return math.Sin(2 * math.Pi * freq * t)
}

// Samples returns the number of samples a burst of duration d occupies at
// the given sample rate, rounded to the nearest sample.
func Samples(d time.Duration, sampleRate int) int {
	return int(math.Round(d.Seconds() * float64(sampleRate)))
}

// Render produces a complete burst for the given beat at volume, mainly for
// previews and tests. The audio path uses Sample directly.
func Render(v Voice, beat int, volume float64, d time.Duration, sampleRate int) []float32 {
	n := Samples(d, sampleRate)
	out := make([]float32, n)
	freq := v.Frequency(beat)
	for i := range out {
		out[i] = float32(Sample(i, sampleRate, freq) * volume)
	}
	return out
}
