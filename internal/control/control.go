// Package control owns the one metronome an application may run at a time.
// Every front end (CLI, dashboard, desktop app, MQTT) goes through a
// Controller instead of touching engines directly.
package control

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Mavwarf/metronome/internal/click"
	"github.com/Mavwarf/metronome/internal/events"
	"github.com/Mavwarf/metronome/internal/metronome"
	"github.com/Mavwarf/metronome/internal/sessionlog"
)

// ErrNotRunning is returned by queries that need a running metronome.
var ErrNotRunning = errors.New("metronome is not running")

// Recorder receives session events. Failures are logged, never returned
// to the caller.
type Recorder interface {
	Record(ev sessionlog.Event) error
}

// Config wires a Controller.
type Config struct {
	Output        metronome.Output
	Voice         click.Voice
	ClickDuration time.Duration
	Recorder      Recorder           // optional
	Log           logrus.FieldLogger // optional
	TickBuffer    int                // per-subscriber buffer, default 16

	// EngineOptions are appended after the controller's own; tests use
	// them to inject a clock.
	EngineOptions []metronome.Option
}

// Status is a snapshot for UIs.
type Status struct {
	Running    bool                `json:"running"`
	Settings   *metronome.Settings `json:"settings,omitempty"`
	Beat       int                 `json:"beat"`
	TickActive bool                `json:"tick_active"`
	Voice      string              `json:"voice"`
	Since      *time.Time          `json:"since,omitempty"`
	Error      string              `json:"error,omitempty"`
}

// Controller starts, updates and stops the metronome. All methods are
// safe for concurrent use.
type Controller struct {
	mu      sync.Mutex
	engine  *metronome.Engine
	since   time.Time
	lastErr error

	out   metronome.Output
	voice click.Voice
	dur   time.Duration
	rec   Recorder
	log   logrus.FieldLogger
	opts  []metronome.Option
	ticks *events.Broadcaster
}

// New returns an idle controller.
func New(cfg Config) *Controller {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	voice := cfg.Voice
	if voice.Name == "" {
		voice = click.Voices[click.DefaultVoice]
	}
	dur := cfg.ClickDuration
	if dur <= 0 {
		dur = click.DefaultDuration
	}
	buf := cfg.TickBuffer
	if buf <= 0 {
		buf = 16
	}
	return &Controller{
		out:   cfg.Output,
		voice: voice,
		dur:   dur,
		rec:   cfg.Recorder,
		log:   log,
		opts:  cfg.EngineOptions,
		ticks: events.NewBroadcaster(buf),
	}
}

// Start validates s, stops any running metronome and starts a new one.
// At most one audio stream is open at any time.
func (c *Controller) Start(s metronome.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startLocked(s)
}

func (c *Controller) startLocked(s metronome.Settings) error {
	if c.engine != nil {
		c.stopLocked("restart")
	}

	opts := []metronome.Option{
		metronome.WithVoice(c.voice),
		metronome.WithClickDuration(c.dur),
		metronome.WithLogger(c.log),
		metronome.WithSink(c.ticks.Publish),
	}
	opts = append(opts, c.opts...)

	e, err := metronome.Start(s, c.out, opts...)
	if err != nil {
		c.lastErr = err
		c.record(sessionlog.KindError, s, err.Error())
		return err
	}
	c.engine = e
	c.since = time.Now()
	c.lastErr = nil
	c.record(sessionlog.KindStart, s, "")
	return nil
}

// Stop stops the running metronome. It is a no-op when idle.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.engine != nil {
		c.stopLocked("")
	}
}

func (c *Controller) stopLocked(detail string) {
	s := c.engine.Settings()
	c.engine.Stop()
	if err := c.engine.Err(); err != nil {
		c.lastErr = err
		c.record(sessionlog.KindError, s, err.Error())
	} else {
		c.record(sessionlog.KindStop, s, detail)
	}
	c.engine = nil
}

// Update validates s and hands it to the running metronome, which applies
// it at the next beat. It is a no-op when idle.
func (c *Controller) Update(s metronome.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.engine == nil {
		return nil
	}
	return c.updateLocked(s)
}

func (c *Controller) updateLocked(s metronome.Settings) error {
	if err := c.engine.Update(s); err != nil {
		return err
	}
	c.record(sessionlog.KindUpdate, s, "")
	return nil
}

// Current returns the settings of the running metronome.
func (c *Controller) Current() (metronome.Settings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.engine == nil {
		return metronome.Settings{}, ErrNotRunning
	}
	return c.engine.Settings(), nil
}

// Running reports whether a metronome is started and its worker alive.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine != nil && c.engine.Running()
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{Voice: c.voice.Name}
	if c.lastErr != nil {
		st.Error = c.lastErr.Error()
	}
	if c.engine == nil {
		return st
	}
	s := c.engine.Settings()
	since := c.since
	st.Settings = &s
	st.Since = &since
	st.Beat = c.engine.Beat()
	st.TickActive = c.engine.TickActive()
	st.Running = c.engine.Running()
	if err := c.engine.Err(); err != nil {
		st.Error = err.Error()
	}
	return st
}

// Voice returns the click voice used for new starts.
func (c *Controller) Voice() click.Voice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.voice
}

// SetVoice changes the voice. It takes effect on the next Start.
func (c *Controller) SetVoice(v click.Voice) {
	c.mu.Lock()
	c.voice = v
	c.mu.Unlock()
}

// Subscribe returns a listener receiving every completed beat. Slow
// listeners miss beats rather than delaying others.
func (c *Controller) Subscribe() *events.Listener { return c.ticks.Subscribe() }

// Unsubscribe removes l.
func (c *Controller) Unsubscribe(l *events.Listener) { c.ticks.Unsubscribe(l) }

func (c *Controller) record(kind sessionlog.Kind, s metronome.Settings, detail string) {
	if c.rec == nil {
		return
	}
	ev := sessionlog.NewEvent(kind, s, c.voice.Name)
	ev.Detail = detail
	if err := c.rec.Record(ev); err != nil {
		c.log.WithError(err).WithField("kind", kind.String()).Warn("recording session event")
	}
}
