package mqtt

import "strings"

// Bridge availability payloads, published retained on Topics.BridgeStatus.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Topics builds the bridge topic names under a prefix:
//
//	<prefix>/state/<id>      retained device state
//	<prefix>/command/<id>    motor commands
//	<prefix>/ack/<id>        command results
//	<prefix>/bridge/status   online/offline
type Topics struct {
	Prefix string
}

// NewTopics returns Topics for prefix, trimming surrounding slashes.
func NewTopics(prefix string) Topics {
	return Topics{Prefix: strings.Trim(prefix, "/")}
}

func (t Topics) join(parts ...string) string {
	return t.Prefix + "/" + strings.Join(parts, "/")
}

// State returns the retained state topic of a device.
func (t Topics) State(deviceID string) string {
	return t.join("state", deviceID)
}

// Command returns the command topic of a device.
func (t Topics) Command(deviceID string) string {
	return t.join("command", deviceID)
}

// AllCommands matches the command topics of every device.
func (t Topics) AllCommands() string {
	return t.join("command", "+")
}

// Ack returns the command result topic of a device.
func (t Topics) Ack(deviceID string) string {
	return t.join("ack", deviceID)
}

// BridgeStatus returns the availability topic.
func (t Topics) BridgeStatus() string {
	return t.join("bridge", "status")
}

// DeviceFromCommand extracts the device id from a command topic.
func (t Topics) DeviceFromCommand(topic string) (string, bool) {
	id, ok := strings.CutPrefix(topic, t.join("command", ""))
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
