package simulator

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/muurk/gfhanger/internal/protocol"
)

func startSim(t *testing.T, cfg *Config) *Server {
	t.Helper()
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:0"
	}
	sim := New(cfg)
	require.NoError(t, sim.Listen())
	go func() { _ = sim.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sim.Shutdown(ctx)
	})
	return sim
}

type rawClient struct {
	t    *testing.T
	conn net.Conn
	dec  *protocol.Decoder
	buf  []byte
	seq  protocol.Sequence
}

func dialSim(t *testing.T, sim *Server) *rawClient {
	t.Helper()
	conn, err := net.Dial("tcp", sim.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &rawClient{t: t, conn: conn, dec: protocol.NewDecoder(), buf: make([]byte, 4096)}
}

func (c *rawClient) sendHex(h string) {
	b, err := protocol.DecodeHex(h)
	require.NoError(c.t, err)
	_, err = c.conn.Write(b)
	require.NoError(c.t, err)
}

func (c *rawClient) command(method string, data any, op bool) {
	h, err := protocol.EncodeCommand(c.seq.Next(), method, data, op)
	require.NoError(c.t, err)
	c.sendHex(h)
}

func (c *rawClient) next() *protocol.Frame {
	c.t.Helper()
	for {
		if f, ok := c.dec.Next(); ok {
			return f
		}
		require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
		n, err := c.conn.Read(c.buf)
		require.NoError(c.t, err)
		c.dec.Feed(c.buf[:n])
	}
}

func (c *rawClient) nextMessage() *protocol.Message {
	c.t.Helper()
	for {
		f := c.next()
		if f.Type != protocol.FramePayload {
			continue
		}
		msg, err := protocol.DecodeMessage(f)
		require.NoError(c.t, err)
		return msg
	}
}

func (c *rawClient) login(mobile, password string) {
	c.sendHex(protocol.HandshakeHex)
	require.Equal(c.t, protocol.FrameHandshake, c.next().Type)
	c.sendHex(protocol.HandshakeAckHex)
	require.Equal(c.t, protocol.FrameHeartbeat, c.next().Type)
	c.command(protocol.MethodLogin, protocol.LoginRequest{
		Mobile: mobile, Password: password, PackageName: protocol.PackageName, ClientID: "test",
	}, false)
}

func TestLoginFlow(t *testing.T) {
	sim := startSim(t, &Config{Mobile: "138", Password: "pw"})
	c := dialSim(t, sim)

	c.login("138", "pw")

	resp := c.nextMessage()
	require.True(t, resp.Feedback)

	home := c.nextMessage()
	require.Equal(t, protocol.RouteHomeInfo, home.Method)
	var info protocol.HomeInfo
	require.NoError(t, home.Decode(&info))
	require.Len(t, info.Homes, 1)
	require.Len(t, info.Homes[0].Layers[0].HomeGrids[0].Devices, 1)

	end := c.nextMessage()
	require.Equal(t, protocol.RouteLoginInfoEnd, end.Method)
	var res protocol.Result
	require.NoError(t, end.Decode(&res))
	code, ok := res.StatusCode()
	require.True(t, ok)
	require.Equal(t, 200, code)

	require.Eventually(t, func() bool { return sim.Logins() == 1 }, time.Second, 10*time.Millisecond)

	cmds := sim.Commands()
	require.Len(t, cmds, 1)
	require.Equal(t, protocol.MethodLogin, cmds[0].Method)
	require.False(t, cmds[0].Operation)
}

func TestLoginRejected(t *testing.T) {
	sim := startSim(t, &Config{Mobile: "138", Password: "pw"})
	c := dialSim(t, sim)

	c.login("138", "wrong")
	c.nextMessage() // command response

	end := c.nextMessage()
	require.Equal(t, protocol.RouteLoginInfoEnd, end.Method)
	var res protocol.Result
	require.NoError(t, end.Decode(&res))
	code, _ := res.StatusCode()
	require.Equal(t, 403, code)
	require.Zero(t, sim.Logins())
}

func TestRemoteControlMotion(t *testing.T) {
	sim := startSim(t, &Config{MotionDelay: 20 * time.Millisecond})
	c := dialSim(t, sim)
	c.login("any", "any")
	for i := 0; i < 3; i++ {
		c.nextMessage()
	}

	id := sim.Devices()[0].ID
	c.command(protocol.MethodRemoteControl, protocol.RemoteControlRequest{
		DeviceID: id,
		Props:    []protocol.PropCommand{{Name: "putDown", Method: "set"}},
	}, true)

	feedback := c.nextMessage()
	require.True(t, feedback.Feedback)

	positions := []int{}
	for len(positions) < 2 {
		msg := c.nextMessage()
		require.Equal(t, protocol.RouteDeviceStatus, msg.Method)
		var data protocol.DeviceStatusData
		require.NoError(t, msg.Decode(&data))
		pos, ok := data.Devices[0].Props.PositionValue()
		require.True(t, ok)
		positions = append(positions, pos)
	}
	require.Equal(t, []int{positionClosing, positionClosed}, positions)
	require.Equal(t, positionClosed, sim.Devices()[0].Position)

	cmds := sim.Commands()
	require.True(t, cmds[len(cmds)-1].Operation)
}

func TestRemoteControlUnknownDevice(t *testing.T) {
	sim := startSim(t, &Config{})
	c := dialSim(t, sim)

	c.command(protocol.MethodRemoteControl, protocol.RemoteControlRequest{
		DeviceID: "nope",
		Props:    []protocol.PropCommand{{Name: "stop", Method: "set"}},
	}, true)

	msg := c.nextMessage()
	require.True(t, msg.Feedback)
	var res protocol.Result
	require.NoError(t, json.Unmarshal(msg.Payload, &res))
	code, _ := res.StatusCode()
	require.Equal(t, 404, code)
}

func TestEchoDeviceStatusCarriesOrigin(t *testing.T) {
	sim := startSim(t, &Config{})
	c := dialSim(t, sim)
	require.Eventually(t, func() bool { return sim.ActiveConnections() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, sim.EchoDeviceStatus(sim.Devices()[0].ID))
	msg := c.nextMessage()
	var data protocol.DeviceStatusData
	require.NoError(t, msg.Decode(&data))
	require.True(t, data.HasOrigin())

	require.Error(t, sim.EchoDeviceStatus("missing"))
	require.Error(t, sim.SetDevicePosition("missing", 1))
}

func TestHeartbeats(t *testing.T) {
	sim := startSim(t, &Config{HeartbeatInterval: 20 * time.Millisecond})
	c := dialSim(t, sim)

	require.Equal(t, protocol.FrameHeartbeat, c.next().Type)
	require.Equal(t, protocol.FrameHeartbeat, c.next().Type)
}

func TestShutdownClosesConnections(t *testing.T) {
	sim := New(&Config{Addr: "127.0.0.1:0"})
	require.NoError(t, sim.Listen())
	served := make(chan error, 1)
	go func() { served <- sim.Serve() }()

	conn, err := net.Dial("tcp", sim.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return sim.ActiveConnections() == 1 }, time.Second, 10*time.Millisecond)
	require.Equal(t, 1, sim.AcceptedConnections())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sim.Shutdown(ctx))
	require.NoError(t, <-served)
	require.Zero(t, sim.ActiveConnections())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, err = conn.Read(make([]byte, 1))
	require.Error(t, err)
}

func TestServeWithoutListen(t *testing.T) {
	require.Error(t, New(&Config{}).Serve())
	require.Nil(t, New(&Config{}).Addr())
}
