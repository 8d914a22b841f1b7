package protocol

import (
	"errors"
	"testing"
)

func payloadFrame(content string, marker byte) *Frame {
	body := append([]byte{marker, 0x00}, content...)
	return &Frame{Type: FramePayload, Length: uint16(len(body)), Body: body}
}

func TestDecodeMessage(t *testing.T) {
	tests := []struct {
		name       string
		frame      *Frame
		wantErr    error
		wantMethod string
		wantJSON   string
		feedback   bool
	}{
		{
			name:       "push",
			frame:      payloadFrame(`onLoginInfoEnd{"code":200}`, PushMarker),
			wantMethod: RouteLoginInfoEnd,
			wantJSON:   `{"code":200}`,
		},
		{
			name:     "feedback without method",
			frame:    payloadFrame(`{"code":500,"codetxt":"busy"}`, FeedbackMarker),
			wantJSON: `{"code":500,"codetxt":"busy"}`,
			feedback: true,
		},
		{
			name:       "array document",
			frame:      payloadFrame(`list[1,2]`, PushMarker),
			wantMethod: "list",
			wantJSON:   `[1,2]`,
		},
		{
			name:       "unicode method text",
			frame:      payloadFrame(`onHomeInfo{"name":"阳台"}`, PushMarker),
			wantMethod: RouteHomeInfo,
			wantJSON:   `{"name":"阳台"}`,
		},
		{
			name:    "heartbeat",
			frame:   &Frame{Type: FrameHeartbeat},
			wantErr: ErrNotPayload,
		},
		{
			name:    "empty",
			frame:   payloadFrame("  ", PushMarker),
			wantErr: ErrEmptyContent,
		},
		{
			name:    "body shorter than sub-header",
			frame:   &Frame{Type: FramePayload, Length: 1, Body: []byte{0x06}},
			wantErr: ErrNoJSONStart,
		},
		{
			name:    "invalid utf-8",
			frame:   payloadFrame("on\xff\xfe{}", PushMarker),
			wantErr: ErrInvalidUTF8,
		},
		{
			name:    "no json",
			frame:   payloadFrame("onHomeInfo", PushMarker),
			wantErr: ErrNoJSONStart,
		},
		{
			name:    "bad json",
			frame:   payloadFrame(`onHomeInfo{"homes":[}`, PushMarker),
			wantErr: ErrInvalidJSON,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeMessage(tt.frame)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DecodeMessage() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeMessage() unexpected error: %v", err)
			}
			if msg.Method != tt.wantMethod {
				t.Errorf("method = %q, want %q", msg.Method, tt.wantMethod)
			}
			if string(msg.Payload) != tt.wantJSON {
				t.Errorf("payload = %s, want %s", msg.Payload, tt.wantJSON)
			}
			if msg.Feedback != tt.feedback {
				t.Errorf("feedback = %v, want %v", msg.Feedback, tt.feedback)
			}
		})
	}
}

func TestMessageDecode(t *testing.T) {
	msg := &Message{
		Method:  RouteDeviceStatus,
		Payload: []byte(`{"devices":[{"e_name":"Hanger","_id":"d1","props":{"status":"ok","position":"2"}}],"origin":"query"}`),
	}

	var data DeviceStatusData
	if err := msg.Decode(&data); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !data.HasOrigin() {
		t.Error("origin not detected")
	}
	if len(data.Devices) != 1 {
		t.Fatalf("devices = %d, want 1", len(data.Devices))
	}

	pos, ok := data.Devices[0].Props.PositionValue()
	if !ok || pos != 2 {
		t.Errorf("position = %d, %v; want 2, true", pos, ok)
	}
	status, ok := data.Devices[0].Props.StatusText()
	if !ok || status != "ok" {
		t.Errorf("status = %q, %v", status, ok)
	}

	bad := &Message{Method: "x", Payload: []byte(`{"devices":"nope"}`)}
	if err := bad.Decode(&data); err == nil {
		t.Error("Decode() of mismatched type should fail")
	}
}

func TestResultStatusCode(t *testing.T) {
	tests := []struct {
		raw    string
		want   int
		wantOK bool
	}{
		{`200`, 200, true},
		{`"403"`, 403, true},
		{`null`, 0, false},
		{``, 0, false},
		{`"abc"`, 0, false},
		{`2.5`, 0, false},
	}
	for _, tt := range tests {
		got, ok := Result{Code: []byte(tt.raw)}.StatusCode()
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("StatusCode(%s) = %d, %v; want %d, %v", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestDevicePropsStatusText(t *testing.T) {
	tests := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{`"online"`, "online", true},
		{`1`, "1", true},
		{`null`, "", false},
		{``, "", false},
	}
	for _, tt := range tests {
		got, ok := DeviceProps{Status: []byte(tt.raw)}.StatusText()
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("StatusText(%s) = %q, %v; want %q, %v", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}
