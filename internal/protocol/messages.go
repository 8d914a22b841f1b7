package protocol

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// PackageName identifies the mobile app the gateway expects logins from.
const PackageName = "ypr"

// LoginRequest is the body of a MethodLogin command.
type LoginRequest struct {
	Mobile      string `json:"mobile"`
	Password    string `json:"password"`
	PackageName string `json:"packageName"`
	ClientID    string `json:"clientid"`
}

// RemoteControlRequest is the body of a MethodRemoteControl command.
type RemoteControlRequest struct {
	DeviceID string        `json:"deviceId"`
	Props    []PropCommand `json:"props"`
}

// PropCommand sets one device property.
type PropCommand struct {
	Name   string `json:"name"`
	Method string `json:"method"`
	Value  any    `json:"value"`
}

// Result is the code/text pair carried by responses, feedback and
// onLoginInfoEnd.
type Result struct {
	Code     json.RawMessage `json:"code,omitempty"`
	CodeText string          `json:"codetxt,omitempty"`
}

// StatusCode returns the numeric result code. Numeric strings are
// accepted as the gateway is not consistent about them.
func (r Result) StatusCode() (int, bool) {
	return flexInt(r.Code)
}

// HomeInfo is the onHomeInfo push: homes -> layers -> homeGrids -> devices.
type HomeInfo struct {
	Homes []Home `json:"homes"`
}

// Home is one home of the account.
type Home struct {
	Name   string  `json:"name,omitempty"`
	Layers []Layer `json:"layers"`
}

// Layer is one floor of a home.
type Layer struct {
	Name      string     `json:"name,omitempty"`
	HomeGrids []HomeGrid `json:"homeGrids"`
}

// HomeGrid is one room of a layer.
type HomeGrid struct {
	Name    string         `json:"name,omitempty"`
	Devices []DeviceRecord `json:"devices"`
}

// DeviceRecord is a device as the gateway describes it.
type DeviceRecord struct {
	Name   string          `json:"e_name"`
	ID     string          `json:"_id"`
	Props  DeviceProps     `json:"props"`
	Origin json.RawMessage `json:"origin,omitempty"`
}

// HasOrigin reports whether the record is an echo of a status query.
func (d DeviceRecord) HasOrigin() bool {
	return present(d.Origin)
}

// DeviceProps holds the device properties. Both are kept raw since their
// JSON types vary between gateway versions.
type DeviceProps struct {
	Status   json.RawMessage `json:"status,omitempty"`
	Position json.RawMessage `json:"position,omitempty"`
}

// StatusText returns the status rendered as text, and whether it was
// present at all.
func (p DeviceProps) StatusText() (string, bool) {
	if !present(p.Status) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(p.Status, &s); err == nil {
		return s, true
	}
	return string(bytes.TrimSpace(p.Status)), true
}

// PositionValue returns the numeric position, and whether it parsed.
func (p DeviceProps) PositionValue() (int, bool) {
	return flexInt(p.Position)
}

// DeviceStatusData is the onDeviceStatusData push.
type DeviceStatusData struct {
	Devices []DeviceRecord  `json:"devices"`
	Origin  json.RawMessage `json:"origin,omitempty"`
}

// HasOrigin reports whether the whole push is an echo of a status query.
func (d DeviceStatusData) HasOrigin() bool {
	return present(d.Origin)
}

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func flexInt(raw json.RawMessage) (int, bool) {
	if !present(raw) {
		return 0, false
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := strconv.Atoi(n.String()); err == nil {
			return i, true
		}
		return 0, false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return i, true
}
