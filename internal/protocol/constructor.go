package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
)

// Client handshake literals, sent verbatim as hex.
const (
	// HandshakeHex negotiates {"sys":{"version":"0.3.0","type":"unity-socket"},"user":{}}.
	HandshakeHex    = "0100003B7B22737973223A7B2276657273696F6E223A22302E332E30222C2274797065223A22756E6974792D736F636B6574227D2C2275736572223A7B7D7D"
	HandshakeAckHex = "02000000"
)

// Method and push route names
const (
	MethodLogin         = "connector.userEntryHandler.login"
	MethodRemoteControl = "main.userHandler.remoteControll"

	RouteHomeInfo     = "onHomeInfo"
	RouteLoginInfoEnd = "onLoginInfoEnd"
	RouteDeviceStatus = "onDeviceStatusData"
)

// Command sub-header markers
const (
	MarkerOperation byte = 0x1F
	MarkerRequest   byte = 0x20

	commandHeaderSize = 3 // seq (2) + marker (1)
)

// Sequence is a 16-bit request counter. It starts at 1 and wraps to 1,
// never yielding 0. Safe for concurrent use.
type Sequence struct {
	n atomic.Uint32
}

// Next returns the next sequence number.
func (s *Sequence) Next() uint16 {
	for {
		if v := uint16(s.n.Add(1)); v != 0 {
			return v
		}
	}
}

// MarshalCompact encodes v as JSON without insignificant whitespace or
// HTML escaping.
func MarshalCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// BuildFrame prepends the 4-byte header to body.
func BuildFrame(t FrameType, body []byte) ([]byte, error) {
	if len(body) > MaxBodySize {
		return nil, fmt.Errorf("frame body too large: %d bytes (max %d)", len(body), MaxBodySize)
	}

	frame := make([]byte, 0, HeaderSize+len(body))
	frame = binary.BigEndian.AppendUint16(frame, uint16(t))
	frame = binary.BigEndian.AppendUint16(frame, uint16(len(body)))
	frame = append(frame, body...)

	return frame, nil
}

// BuildCommand builds a client command frame:
//
//	[0-1]  0x0400      payload tag
//	[2-3]  length      body length (big-endian)
//	[4-5]  seq         request sequence (big-endian)
//	[6]    marker      0x1F operation, 0x20 otherwise
//	[7+]   method      UTF-8 method name
//	[..]   data        compact JSON
func BuildCommand(seq uint16, method string, data any, operation bool) ([]byte, error) {
	payload, err := MarshalCompact(data)
	if err != nil {
		return nil, err
	}

	marker := MarkerRequest
	if operation {
		marker = MarkerOperation
	}

	body := make([]byte, 0, commandHeaderSize+len(method)+len(payload))
	body = binary.BigEndian.AppendUint16(body, seq)
	body = append(body, marker)
	body = append(body, method...)
	body = append(body, payload...)

	return BuildFrame(FramePayload, body)
}

// EncodeCommand is BuildCommand rendered as uppercase hex, the form the
// transport accepts and logs.
func EncodeCommand(seq uint16, method string, data any, operation bool) (string, error) {
	frame, err := BuildCommand(seq, method, data, operation)
	if err != nil {
		return "", err
	}
	return EncodeHex(frame), nil
}

// EncodeHex renders bytes as uppercase hex.
func EncodeHex(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}

// DecodeHex parses a hex frame, accepting either case.
func DecodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex frame: %w", err)
	}
	return b, nil
}

// BuildPush builds a gateway push: marker, route length, route, JSON.
func BuildPush(route string, data any) ([]byte, error) {
	if len(route) > 0xFF {
		return nil, fmt.Errorf("route too long: %d bytes", len(route))
	}

	payload, err := MarshalCompact(data)
	if err != nil {
		return nil, err
	}

	body := make([]byte, 0, SubHeaderSize+len(route)+len(payload))
	body = append(body, PushMarker, byte(len(route)))
	body = append(body, route...)
	body = append(body, payload...)

	return BuildFrame(FramePayload, body)
}

// BuildResponse builds a gateway answer to the command numbered seq. It
// carries the feedback marker and no method name.
func BuildResponse(seq uint16, data any) ([]byte, error) {
	payload, err := MarshalCompact(data)
	if err != nil {
		return nil, err
	}

	body := make([]byte, 0, SubHeaderSize+len(payload))
	body = append(body, FeedbackMarker, byte(seq))
	body = append(body, payload...)

	return BuildFrame(FramePayload, body)
}

// BuildHeartbeat builds an empty heartbeat frame.
func BuildHeartbeat() []byte {
	return []byte{0x03, 0x00, 0x00, 0x00}
}

// BuildHandshake builds a handshake frame with a JSON body.
func BuildHandshake(data any) ([]byte, error) {
	payload, err := MarshalCompact(data)
	if err != nil {
		return nil, err
	}
	return BuildFrame(FrameHandshake, payload)
}
