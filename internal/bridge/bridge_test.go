package bridge

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/gfhanger/internal/gateway"
	"github.com/muurk/gfhanger/internal/mqtt"
	"github.com/muurk/gfhanger/internal/simulator"
)

type message struct {
	topic    string
	payload  []byte
	retained bool
}

type fakeBroker struct {
	mu       sync.Mutex
	messages []message
	handlers map[string]mqtt.MessageHandler
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{handlers: make(map[string]mqtt.MessageHandler)}
}

func (f *fakeBroker) Publish(topic string, payload []byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message{topic: topic, payload: payload, retained: retained})
	return nil
}

func (f *fakeBroker) Subscribe(topic string, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return nil
}

func (f *fakeBroker) handler(topic string) mqtt.MessageHandler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handlers[topic]
}

// last returns the most recent message on topic.
func (f *fakeBroker) last(topic string) (message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.messages) - 1; i >= 0; i-- {
		if f.messages[i].topic == topic {
			return f.messages[i], true
		}
	}
	return message{}, false
}

var creds = gateway.Credentials{Mobile: "138", Password: "pw", ClientID: "bridge-test"}

type harness struct {
	sim    *simulator.Server
	broker *fakeBroker
	bridge *Bridge
	topics mqtt.Topics
	id     string
	done   chan error
	cancel context.CancelFunc
}

func startBridge(t *testing.T) *harness {
	t.Helper()

	sim := simulator.New(&simulator.Config{
		Addr:        "127.0.0.1:0",
		Mobile:      creds.Mobile,
		Password:    creds.Password,
		MotionDelay: 20 * time.Millisecond,
	})
	require.NoError(t, sim.Listen())
	go func() { _ = sim.Serve() }()

	host, portStr, err := net.SplitHostPort(sim.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	gw := gateway.NewClient(&gateway.Config{
		Host:             host,
		Port:             port,
		HandshakeTimeout: 200 * time.Millisecond,
		LoginTimeout:     time.Second,
		CommandTimeout:   time.Second,
	})

	h := &harness{
		sim:    sim,
		broker: newFakeBroker(),
		topics: mqtt.NewTopics("gfhanger"),
		id:     sim.Devices()[0].ID,
		done:   make(chan error, 1),
	}
	h.bridge = New(gw, h.broker, Config{
		Topics:      h.topics,
		Credentials: creds,
		Registerer:  prometheus.NewRegistry(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.bridge.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(3 * time.Second):
		}
		_ = gw.Close()
		sctx, scancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer scancel()
		_ = sim.Shutdown(sctx)
	})

	require.Eventually(t, func() bool {
		return h.broker.handler(h.topics.AllCommands()) != nil
	}, 3*time.Second, 10*time.Millisecond)
	return h
}

func (h *harness) state(t *testing.T) State {
	t.Helper()
	msg, ok := h.broker.last(h.topics.State(h.id))
	require.True(t, ok)
	require.True(t, msg.retained)
	var s State
	require.NoError(t, json.Unmarshal(msg.payload, &s))
	return s
}

func (h *harness) waitAck(t *testing.T) Ack {
	t.Helper()
	var msg message
	require.Eventually(t, func() bool {
		var ok bool
		msg, ok = h.broker.last(h.topics.Ack(h.id))
		return ok
	}, 3*time.Second, 10*time.Millisecond)
	assert.False(t, msg.retained)
	var ack Ack
	require.NoError(t, json.Unmarshal(msg.payload, &ack))
	return ack
}

func TestBridgePublishesInitialState(t *testing.T) {
	h := startBridge(t)

	s := h.state(t)
	assert.Equal(t, h.id, s.ID)
	assert.Equal(t, "Balcony Hanger", s.Name)
	assert.Equal(t, 2, s.Position)
	assert.Equal(t, "open", s.PositionName)
}

func TestBridgeExecutesCommand(t *testing.T) {
	h := startBridge(t)

	handler := h.broker.handler(h.topics.AllCommands())
	require.NoError(t, handler(h.topics.Command(h.id), []byte(" lower\n")))

	ack := h.waitAck(t)
	assert.True(t, ack.OK)
	assert.Equal(t, "lower", ack.Operation)
	assert.Equal(t, "closed", ack.Position)
	assert.Empty(t, ack.Error)

	require.Eventually(t, func() bool {
		return h.state(t).Position == 1
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.bridge.commands.WithLabelValues("ok")))
}

func TestBridgeRejectsInvalidCommand(t *testing.T) {
	h := startBridge(t)
	handler := h.broker.handler(h.topics.AllCommands())

	err := handler(h.topics.Command(h.id), []byte("spin"))
	require.Error(t, err)

	ack := h.waitAck(t)
	assert.False(t, ack.OK)
	assert.Contains(t, ack.Error, "invalid operation")
	assert.Equal(t, 1.0, testutil.ToFloat64(h.bridge.commands.WithLabelValues("invalid")))
}

func TestBridgeUnknownDevice(t *testing.T) {
	h := startBridge(t)
	handler := h.broker.handler(h.topics.AllCommands())

	require.NoError(t, handler(h.topics.Command("missing"), []byte("stop")))

	msg, ok := h.broker.last(h.topics.Ack("missing"))
	require.True(t, ok)
	var ack Ack
	require.NoError(t, json.Unmarshal(msg.payload, &ack))
	assert.False(t, ack.OK)
	assert.Contains(t, ack.Error, "unknown device")
	assert.Empty(t, h.sim.Commands()[1:])
}

func TestBridgeStopsOnCancel(t *testing.T) {
	h := startBridge(t)
	h.cancel()

	select {
	case err := <-h.done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("bridge did not stop")
	}
}

func TestBridgeRefusesCommandsAfterStop(t *testing.T) {
	h := startBridge(t)
	handler := h.broker.handler(h.topics.AllCommands())
	h.cancel()

	select {
	case err := <-h.done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("bridge did not stop")
	}

	before := len(h.sim.Commands())
	err := handler(h.topics.Command(h.id), []byte("raise"))
	assert.ErrorIs(t, err, ErrStopping)

	ack := h.waitAck(t)
	assert.False(t, ack.OK)
	assert.Equal(t, "raise", ack.Operation)
	assert.Equal(t, ErrStopping.Error(), ack.Error)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.bridge.commands.WithLabelValues("stopping")))
	assert.Len(t, h.sim.Commands(), before)
}

func TestBridgeCommandsRacingShutdown(t *testing.T) {
	h := startBridge(t)
	handler := h.broker.handler(h.topics.AllCommands())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = handler(h.topics.Command(h.id), []byte("stop"))
			}
		}()
	}
	h.cancel()
	wg.Wait()

	select {
	case err := <-h.done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("bridge did not stop")
	}
}

func TestBridgeLoginFailure(t *testing.T) {
	gw := gateway.NewClient(&gateway.Config{Host: "127.0.0.1", Port: 1, MaxRetries: 1})
	b := New(gw, newFakeBroker(), Config{Topics: mqtt.NewTopics("x"), Credentials: creds})

	err := b.Run(context.Background())
	assert.ErrorIs(t, err, gateway.ErrConnectFailed)
}
