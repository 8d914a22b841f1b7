package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/muurk/gfhanger/internal/gateway"
	"github.com/muurk/gfhanger/internal/logging"
	"github.com/muurk/gfhanger/internal/mqtt"
)

// ErrStopping is reported for commands that arrive after Run began to
// shut down.
var ErrStopping = errors.New("bridge is stopping")

// Broker is the subset of the MQTT client the bridge uses.
type Broker interface {
	Publish(topic string, payload []byte, retained bool) error
	Subscribe(topic string, handler mqtt.MessageHandler) error
}

// Config holds Bridge settings.
type Config struct {
	Topics      mqtt.Topics
	Credentials gateway.Credentials

	// EventBuffer is the capacity of the status subscription.
	EventBuffer int

	// Registerer receives the bridge metrics. A private registry is used
	// when nil.
	Registerer prometheus.Registerer
}

// State is the retained JSON document published per device.
type State struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Status       string    `json:"status"`
	Position     int       `json:"position"`
	PositionName string    `json:"position_name"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Ack is published after every command.
type Ack struct {
	OK        bool   `json:"ok"`
	Operation string `json:"operation,omitempty"`
	Position  string `json:"position,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Bridge mirrors gateway devices to MQTT and executes commands received
// on the command topics.
type Bridge struct {
	gw     *gateway.Client
	broker Broker
	cfg    Config

	// The gateway tracks one pending command at a time.
	cmdMu sync.Mutex
	wg    sync.WaitGroup

	// ctxMu guards ctx and stopping. wg.Add only happens under it.
	ctxMu    sync.Mutex
	ctx      context.Context
	stopping bool

	published *prometheus.CounterVec
	commands  *prometheus.CounterVec
}

// New creates a bridge. Nothing happens until Run.
func New(gw *gateway.Client, broker Broker, cfg Config) *Bridge {
	if cfg.EventBuffer < 1 {
		cfg.EventBuffer = 64
	}
	reg := cfg.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Bridge{
		gw:     gw,
		broker: broker,
		cfg:    cfg,
		ctx:    context.Background(),
		published: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gfhanger",
			Subsystem: "bridge",
			Name:      "published_total",
			Help:      "MQTT messages published by kind and result",
		}, []string{"kind", "result"}),
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gfhanger",
			Subsystem: "bridge",
			Name:      "commands_total",
			Help:      "MQTT commands by result",
		}, []string{"result"}),
	}
}

// Run logs in, publishes every known device, subscribes to the command
// topics and forwards status events until ctx ends. It waits for running
// commands before returning.
func (b *Bridge) Run(ctx context.Context) error {
	b.ctxMu.Lock()
	b.ctx = ctx
	b.stopping = false
	b.ctxMu.Unlock()

	sub := b.gw.Subscribe(b.cfg.EventBuffer)
	defer sub.Close()

	if err := b.gw.Login(ctx, b.cfg.Credentials); err != nil {
		return err
	}

	b.PublishAll()

	if err := b.broker.Subscribe(b.cfg.Topics.AllCommands(), b.handleCommand); err != nil {
		return err
	}

	logging.Info("Bridge running",
		zap.String("prefix", b.cfg.Topics.Prefix),
		zap.Int("devices", len(b.gw.Devices())),
	)

	for {
		select {
		case <-ctx.Done():
			b.drain()
			logging.Info("Bridge stopped")
			return nil

		case ev, ok := <-sub.C:
			if !ok {
				b.drain()
				return nil
			}
			b.publishState(State{
				ID:           ev.DeviceID,
				Name:         ev.Name,
				Status:       ev.Status,
				Position:     int(ev.Position),
				PositionName: ev.Position.String(),
				UpdatedAt:    ev.Time,
			})
		}
	}
}

// drain refuses new commands and waits for the running ones.
func (b *Bridge) drain() {
	b.ctxMu.Lock()
	b.stopping = true
	b.ctxMu.Unlock()
	b.wg.Wait()
}

// PublishAll publishes the retained state of every device in the
// registry.
func (b *Bridge) PublishAll() {
	for _, d := range b.gw.Devices() {
		b.publishState(stateOf(d))
	}
}

func stateOf(d gateway.Device) State {
	return State{
		ID:           d.ID,
		Name:         d.Name,
		Status:       d.Status,
		Position:     int(d.Position),
		PositionName: d.Position.String(),
		UpdatedAt:    d.UpdatedAt,
	}
}

func (b *Bridge) publishState(s State) {
	b.publishJSON("state", b.cfg.Topics.State(s.ID), s, true)
}

func (b *Bridge) publishJSON(kind, topic string, v any, retained bool) {
	payload, err := json.Marshal(v)
	if err != nil {
		logging.Error("Failed to encode MQTT payload", zap.String("topic", topic), zap.Error(err))
		return
	}
	if err := b.broker.Publish(topic, payload, retained); err != nil {
		b.published.WithLabelValues(kind, "error").Inc()
		logging.Warn("MQTT publish failed", zap.String("topic", topic), zap.Error(err))
		return
	}
	b.published.WithLabelValues(kind, "ok").Inc()
}

// handleCommand validates a command message and runs it in the
// background so the MQTT callback returns quickly.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	id, ok := b.cfg.Topics.DeviceFromCommand(topic)
	if !ok {
		b.commands.WithLabelValues("invalid").Inc()
		return errors.New("not a command topic: " + topic)
	}

	op, err := gateway.ParseOperation(strings.TrimSpace(string(payload)))
	if err != nil {
		b.commands.WithLabelValues("invalid").Inc()
		b.publishJSON("ack", b.cfg.Topics.Ack(id), Ack{Error: err.Error()}, false)
		return err
	}

	if _, known := b.gw.Device(id); !known {
		b.commands.WithLabelValues("unknown_device").Inc()
		b.publishJSON("ack", b.cfg.Topics.Ack(id), Ack{Operation: op.String(), Error: "unknown device " + id}, false)
		return nil
	}

	b.ctxMu.Lock()
	if b.stopping {
		b.ctxMu.Unlock()
		b.commands.WithLabelValues("stopping").Inc()
		b.publishJSON("ack", b.cfg.Topics.Ack(id), Ack{Operation: op.String(), Error: ErrStopping.Error()}, false)
		return ErrStopping
	}
	ctx := b.ctx
	b.wg.Add(1)
	b.ctxMu.Unlock()

	go func() {
		defer b.wg.Done()
		b.execute(ctx, id, op)
	}()
	return nil
}

func (b *Bridge) execute(ctx context.Context, id string, op gateway.Operation) {
	b.cmdMu.Lock()
	defer b.cmdMu.Unlock()

	logging.Info("Executing MQTT command", zap.String("id", id), zap.Stringer("operation", op))

	pos, err := b.gw.RemoteControlAndWait(ctx, b.cfg.Credentials, id, op)
	ack := Ack{OK: err == nil, Operation: op.String()}
	if err != nil {
		ack.Error = err.Error()
		b.commands.WithLabelValues("error").Inc()
		logging.Warn("MQTT command failed", zap.String("id", id), zap.Stringer("operation", op), zap.Error(err))
	} else {
		ack.Position = pos.String()
		b.commands.WithLabelValues("ok").Inc()
	}
	b.publishJSON("ack", b.cfg.Topics.Ack(id), ack, false)
}
