// Package mqtt bridges a metronome to an MQTT broker: beats are published
// as they complete and start/stop/update commands are accepted on a
// control topic.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/Mavwarf/metronome/internal/control"
	"github.com/Mavwarf/metronome/internal/events"
	"github.com/Mavwarf/metronome/internal/metronome"
)

const timeout = 5 * time.Second

// Controller is the part of control.Controller the bridge drives.
type Controller interface {
	StartChange(ch control.Change, defaults metronome.Settings) error
	Stop()
	UpdateChange(ch control.Change) error
	Current() (metronome.Settings, error)
	Subscribe() *events.Listener
	Unsubscribe(l *events.Listener)
}

var _ Controller = (*control.Controller)(nil)

// Options configures a Bridge.
type Options struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	Username    string
	Password    string

	// Defaults fill fields a start command leaves out.
	Defaults metronome.Settings
}

// Topics derived from the prefix.
func (o Options) tickTopic() string    { return o.TopicPrefix + "/tick" }
func (o Options) stateTopic() string   { return o.TopicPrefix + "/state" }
func (o Options) commandTopic() string { return o.TopicPrefix + "/cmd" }

// Bridge owns one broker connection.
type Bridge struct {
	opts   Options
	ctrl   Controller
	log    logrus.FieldLogger
	client pahomqtt.Client
}

// New returns an unconnected bridge.
func New(opts Options, ctrl Controller, log logrus.FieldLogger) *Bridge {
	opts.TopicPrefix = strings.TrimRight(opts.TopicPrefix, "/")
	return &Bridge{opts: opts, ctrl: ctrl, log: log.WithField("component", "mqtt")}
}

// Connect dials the broker and subscribes to the command topic. The
// subscription is renewed on every reconnect.
func (b *Bridge) Connect() error {
	opts := pahomqtt.NewClientOptions().
		AddBroker(b.opts.Broker).
		SetClientID(b.opts.ClientID).
		SetConnectTimeout(timeout).
		SetAutoReconnect(true).
		SetOnConnectHandler(func(c pahomqtt.Client) {
			tok := c.Subscribe(b.opts.commandTopic(), 1, func(_ pahomqtt.Client, m pahomqtt.Message) {
				b.handleCommand(m.Payload())
			})
			if tok.WaitTimeout(timeout) && tok.Error() != nil {
				b.log.WithError(tok.Error()).Warn("subscribing to command topic")
			}
		})

	if b.opts.Username != "" {
		opts.SetUsername(b.opts.Username)
	}
	if b.opts.Password != "" {
		opts.SetPassword(b.opts.Password)
	}

	client := pahomqtt.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt: connect timeout")
	}
	if tok.Error() != nil {
		return fmt.Errorf("mqtt: connect: %w", tok.Error())
	}
	b.client = client
	b.log.WithField("broker", b.opts.Broker).Info("connected")
	return nil
}

// Run publishes beats until ctx is done, then disconnects.
func (b *Bridge) Run(ctx context.Context) {
	l := b.ctrl.Subscribe()
	defer b.ctrl.Unsubscribe(l)
	defer b.client.Disconnect(250)

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-l.C:
			if err := b.publish(b.opts.tickTopic(), false, TickPayload(t)); err != nil {
				b.log.WithError(err).Debug("publishing tick")
			}
		}
	}
}

func (b *Bridge) publish(topic string, retain bool, payload []byte) error {
	if b.client == nil {
		return fmt.Errorf("mqtt: not connected")
	}
	pub := b.client.Publish(topic, 0, retain, payload)
	if !pub.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt: publish timeout")
	}
	if pub.Error() != nil {
		return fmt.Errorf("mqtt: publish: %w", pub.Error())
	}
	return nil
}

// TickPayload encodes a beat for the tick topic.
func TickPayload(t metronome.Tick) []byte {
	data, _ := json.Marshal(t)
	return data
}

// State is published retained on the state topic after every command.
type State struct {
	Running  bool                `json:"running"`
	Settings *metronome.Settings `json:"settings,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// Command is a control message. Omitted fields keep their current (or
// default) values.
type Command struct {
	Action string `json:"action"` // "start" | "stop" | "update"
	control.Change
}

// ParseCommand decodes a JSON command. A bare "start" or "stop" payload is
// accepted too.
func ParseCommand(payload []byte) (Command, error) {
	text := strings.TrimSpace(string(payload))
	switch strings.ToLower(text) {
	case "start", "stop":
		return Command{Action: strings.ToLower(text)}, nil
	}
	var cmd Command
	if err := json.Unmarshal([]byte(text), &cmd); err != nil {
		return Command{}, fmt.Errorf("mqtt: bad command: %w", err)
	}
	cmd.Action = strings.ToLower(cmd.Action)
	switch cmd.Action {
	case "start", "stop", "update":
		return cmd, nil
	default:
		return Command{}, fmt.Errorf("mqtt: unknown action %q", cmd.Action)
	}
}

func (b *Bridge) handleCommand(payload []byte) {
	cmd, err := ParseCommand(payload)
	if err != nil {
		b.log.WithError(err).Warn("ignoring command")
		return
	}
	st := b.execute(cmd)
	if st.Error != "" {
		b.log.WithField("action", cmd.Action).Warn(st.Error)
	}
	data, _ := json.Marshal(st)
	if err := b.publish(b.opts.stateTopic(), true, data); err != nil {
		b.log.WithError(err).Debug("publishing state")
	}
}

// execute runs cmd against the controller and reports the resulting state.
func (b *Bridge) execute(cmd Command) State {
	var err error
	switch cmd.Action {
	case "start":
		err = b.ctrl.StartChange(cmd.Change, b.opts.Defaults)
	case "stop":
		b.ctrl.Stop()
	case "update":
		err = b.ctrl.UpdateChange(cmd.Change)
	}

	var st State
	if cur, cerr := b.ctrl.Current(); cerr == nil {
		st.Running = true
		st.Settings = &cur
	}
	if err != nil {
		st.Error = err.Error()
	}
	return st
}
