package simulator

import "sync"

// Device is a simulated hanger.
type Device struct {
	ID       string
	Name     string
	Status   string
	Position int
}

// Travel positions reported while moving and at rest.
const (
	positionStopped = 0
	positionClosed  = 1
	positionOpen    = 2
	positionClosing = 3
	positionOpening = 4
)

// motion returns the transitional and resting positions for a command.
// Stop has no transitional phase.
func motion(command string) (moving, rest int, ok bool) {
	switch command {
	case "putDown":
		return positionClosing, positionClosed, true
	case "raiseUp":
		return positionOpening, positionOpen, true
	case "stop":
		return -1, positionStopped, true
	default:
		return 0, 0, false
	}
}

type registry struct {
	mu      sync.Mutex
	devices []Device
}

func newRegistry(devices []Device) *registry {
	r := &registry{devices: make([]Device, len(devices))}
	copy(r.devices, devices)
	return r
}

func (r *registry) list() []Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Device, len(r.devices))
	copy(out, r.devices)
	return out
}

func (r *registry) get(id string) (Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.devices {
		if d.ID == id {
			return d, true
		}
	}
	return Device{}, false
}

func (r *registry) setPosition(id string, position int) (Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.devices {
		if r.devices[i].ID == id {
			r.devices[i].Position = position
			return r.devices[i], true
		}
	}
	return Device{}, false
}

// Wire documents, built from maps so the simulator stays independent of
// the client-side decoding types.

func deviceRecord(d Device) map[string]any {
	return map[string]any{
		"e_name": d.Name,
		"_id":    d.ID,
		"props": map[string]any{
			"status":   d.Status,
			"position": d.Position,
		},
	}
}

func homeInfo(devices []Device) map[string]any {
	records := make([]any, 0, len(devices))
	for _, d := range devices {
		records = append(records, deviceRecord(d))
	}
	return map[string]any{
		"homes": []any{map[string]any{
			"name": "Home",
			"layers": []any{map[string]any{
				"name": "1F",
				"homeGrids": []any{map[string]any{
					"name":    "Balcony",
					"devices": records,
				}},
			}},
		}},
	}
}

func statusPush(d Device, echo bool) map[string]any {
	push := map[string]any{"devices": []any{deviceRecord(d)}}
	if echo {
		push["origin"] = "query"
	}
	return push
}

func result(code int, text string) map[string]any {
	return map[string]any{"code": code, "codetxt": text}
}
