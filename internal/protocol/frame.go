package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Frame layout constants
const (
	TagSize       = 2 // frame type tag
	HeaderSize    = 4 // tag + 2-byte big-endian body length
	SubHeaderSize = 2 // leading bytes of a payload body before the text
	MaxBodySize   = 0xFFFF
)

// Sub-header marker bytes of gateway-originated payload frames
const (
	FeedbackMarker = 0x04 // response to a command (carries a result code)
	PushMarker     = 0x06 // unsolicited push (route + JSON)
)

// FrameType is the 2-byte tag at the start of every frame.
type FrameType uint16

// Frame types
const (
	FrameHandshake    FrameType = 0x0100
	FrameHandshakeAck FrameType = 0x0200 // only ever sent by the client
	FrameHeartbeat    FrameType = 0x0300
	FramePayload      FrameType = 0x0400
)

// Inbound reports whether the tag is one the stream decoder recognizes.
// Anything else at the head of the receive buffer is treated as noise.
func (t FrameType) Inbound() bool {
	switch t {
	case FrameHandshake, FrameHeartbeat, FramePayload:
		return true
	default:
		return false
	}
}

// String returns a human-readable frame type name
func (t FrameType) String() string {
	switch t {
	case FrameHandshake:
		return "handshake"
	case FrameHandshakeAck:
		return "handshake-ack"
	case FrameHeartbeat:
		return "heartbeat"
	case FramePayload:
		return "payload"
	default:
		return fmt.Sprintf("unknown(0x%04X)", uint16(t))
	}
}

// Frame is one length-delimited unit of the wire protocol.
type Frame struct {
	Type   FrameType
	Length uint16 // declared body length
	Body   []byte // nil for heartbeats
	Raw    []byte // header + body as received
}

// Content returns the frame text: the body with the payload sub-header
// stripped for payload frames.
func (f *Frame) Content() []byte {
	if f.Type == FramePayload && len(f.Body) >= SubHeaderSize {
		return f.Body[SubHeaderSize:]
	}
	return f.Body
}

// IsFeedback reports whether the frame answers a command, i.e. carries the
// operation-feedback marker as its first body byte.
func (f *Frame) IsFeedback() bool {
	return f.Type == FramePayload && len(f.Body) > 0 && f.Body[0] == FeedbackMarker
}

// String returns a debug representation of the frame
func (f *Frame) String() string {
	return fmt.Sprintf("Frame{type=%s, len=%d, body=%d bytes}", f.Type, f.Length, len(f.Body))
}

// DecodeOne inspects the head of buf.
//
// It returns (nil, 0) when more bytes are needed, (nil, 1) when the leading
// byte is not the start of a recognized tag and was consumed as noise, and
// (frame, n) when a complete frame of n bytes was decoded. The returned
// frame does not alias buf.
func DecodeOne(buf []byte) (*Frame, int) {
	if len(buf) < TagSize {
		return nil, 0
	}

	frameType := FrameType(binary.BigEndian.Uint16(buf[:TagSize]))
	if !frameType.Inbound() {
		return nil, 1
	}

	if len(buf) < HeaderSize {
		return nil, 0
	}

	length := binary.BigEndian.Uint16(buf[TagSize:HeaderSize])
	total := HeaderSize + int(length)
	if len(buf) < total {
		return nil, 0
	}

	raw := make([]byte, total)
	copy(raw, buf[:total])

	frame := &Frame{
		Type:   frameType,
		Length: length,
		Raw:    raw,
	}
	// Heartbeat payloads carry nothing of interest.
	if frameType != FrameHeartbeat {
		frame.Body = raw[HeaderSize:]
	}

	return frame, total
}

// Decoder reassembles frames from a byte stream delivered in arbitrary
// chunks. Decoding is chunk-invariant: feeding a stream in one piece or
// split anywhere yields the same frames in the same order.
//
// A Decoder is not safe for concurrent use; the receive loop owns it.
type Decoder struct {
	buf       []byte
	discarded uint64
}

// NewDecoder creates an empty decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends received bytes to the reassembly buffer.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Next returns the next complete frame, discarding noise bytes ahead of it.
// It returns false when the buffer holds no complete frame.
func (d *Decoder) Next() (*Frame, bool) {
	for {
		frame, n := DecodeOne(d.buf)
		if n == 0 {
			return nil, false
		}

		d.buf = d.buf[n:]
		if len(d.buf) == 0 {
			d.buf = nil
		}

		if frame == nil {
			d.discarded++
			continue
		}
		return frame, true
	}
}

// Buffered returns the number of bytes waiting for more input.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Discarded returns the total number of noise bytes dropped so far.
func (d *Decoder) Discarded() uint64 {
	return d.discarded
}

// Flush empties the buffer. When the residue starts with a recognized tag
// and a full header it is returned as a truncated frame so the caller can
// make one last attempt at it.
func (d *Decoder) Flush() (*Frame, bool) {
	residue := d.buf
	d.buf = nil

	if len(residue) < HeaderSize {
		return nil, false
	}
	frameType := FrameType(binary.BigEndian.Uint16(residue[:TagSize]))
	if !frameType.Inbound() || frameType == FrameHeartbeat {
		return nil, false
	}

	raw := make([]byte, len(residue))
	copy(raw, residue)

	return &Frame{
		Type:   frameType,
		Length: binary.BigEndian.Uint16(raw[TagSize:HeaderSize]),
		Body:   raw[HeaderSize:],
		Raw:    raw,
	}, true
}

// ReadFrame reads exactly one frame from r, trusting the header for
// framing whatever the tag. The simulator uses it to read client traffic,
// which includes the outbound-only handshake ack.
func ReadFrame(r io.Reader) (*Frame, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("failed to read frame header: %w", err)
	}

	frame := &Frame{
		Type:   FrameType(binary.BigEndian.Uint16(header[:TagSize])),
		Length: binary.BigEndian.Uint16(header[TagSize:HeaderSize]),
	}

	raw := make([]byte, HeaderSize+int(frame.Length))
	copy(raw, header)
	if frame.Length > 0 {
		if _, err := io.ReadFull(r, raw[HeaderSize:]); err != nil {
			return nil, fmt.Errorf("failed to read frame body: %w", err)
		}
	}

	frame.Raw = raw
	frame.Body = raw[HeaderSize:]

	return frame, nil
}
