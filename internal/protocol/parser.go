package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// Message decoding errors
var (
	ErrNotPayload   = errors.New("not a payload frame")
	ErrEmptyContent = errors.New("empty message content")
	ErrInvalidUTF8  = errors.New("message content is not valid UTF-8")
	ErrNoJSONStart  = errors.New("no JSON object in message content")
	ErrInvalidJSON  = errors.New("malformed JSON in message content")
	ErrShortCommand = errors.New("command body too short")
)

// Message is a decoded payload frame: a method name followed by a JSON
// document.
type Message struct {
	Method   string
	Payload  json.RawMessage
	Feedback bool // answer to a command rather than a push
}

// Decode unmarshals the JSON payload into v.
func (m *Message) Decode(v any) error {
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", m.Method, err)
	}
	return nil
}

// DecodeMessage splits a payload frame into method name and JSON.
func DecodeMessage(f *Frame) (*Message, error) {
	if f.Type != FramePayload {
		return nil, fmt.Errorf("%w: %s", ErrNotPayload, f.Type)
	}

	method, payload, err := SplitContent(f.Content())
	if err != nil {
		return nil, err
	}

	return &Message{
		Method:   method,
		Payload:  payload,
		Feedback: f.IsFeedback(),
	}, nil
}

// SplitContent separates "<method>{...}" text at the first '{' or '['.
// The method may be empty; the JSON must be well formed.
func SplitContent(content []byte) (string, json.RawMessage, error) {
	if !utf8.Valid(content) {
		return "", nil, ErrInvalidUTF8
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return "", nil, ErrEmptyContent
	}

	idx := bytes.IndexAny(content, "{[")
	if idx < 0 {
		return "", nil, fmt.Errorf("%w: %q", ErrNoJSONStart, preview(content))
	}

	doc := content[idx:]
	if !json.Valid(doc) {
		return "", nil, fmt.Errorf("%w: %q", ErrInvalidJSON, preview(doc))
	}

	payload := make(json.RawMessage, len(doc))
	copy(payload, doc)

	return string(content[:idx]), payload, nil
}

// Command is a decoded client command frame.
type Command struct {
	Seq       uint16
	Operation bool
	Method    string
	Payload   json.RawMessage
}

// ParseCommand decodes a frame produced by BuildCommand.
func ParseCommand(f *Frame) (*Command, error) {
	if f.Type != FramePayload {
		return nil, fmt.Errorf("%w: %s", ErrNotPayload, f.Type)
	}
	if len(f.Body) < commandHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortCommand, len(f.Body))
	}

	method, payload, err := SplitContent(f.Body[commandHeaderSize:])
	if err != nil {
		return nil, err
	}

	return &Command{
		Seq:       binary.BigEndian.Uint16(f.Body[:2]),
		Operation: f.Body[2] == MarkerOperation,
		Method:    method,
		Payload:   payload,
	}, nil
}

func preview(b []byte) string {
	const max = 64
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
