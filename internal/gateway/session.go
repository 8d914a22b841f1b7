package gateway

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// State is the connection/authentication state of a Client.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateReady
	StateClosed // closed locally or by a fatal condition; reconnects lazily
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

// Position is the travel state of a hanger.
type Position int

const (
	PositionStopped Position = 0
	PositionClosed  Position = 1 // fully lowered
	PositionOpen    Position = 2 // fully raised
	PositionClosing Position = 3
	PositionOpening Position = 4
)

// Valid reports whether p is a known position code.
func (p Position) Valid() bool {
	return p >= PositionStopped && p <= PositionOpening
}

// Terminal reports whether the motor has come to rest.
func (p Position) Terminal() bool {
	return p == PositionStopped || p == PositionClosed || p == PositionOpen
}

// String returns the position name
func (p Position) String() string {
	switch p {
	case PositionStopped:
		return "stopped"
	case PositionClosed:
		return "closed"
	case PositionOpen:
		return "open"
	case PositionClosing:
		return "closing"
	case PositionOpening:
		return "opening"
	default:
		return fmt.Sprintf("Position(%d)", int(p))
	}
}

// Operation is a motor command.
type Operation int

const (
	OperationLower Operation = 1
	OperationRaise Operation = 2
	OperationStop  Operation = 3
)

// command returns the property name the gateway expects.
func (o Operation) command() (string, bool) {
	switch o {
	case OperationLower:
		return "putDown", true
	case OperationRaise:
		return "raiseUp", true
	case OperationStop:
		return "stop", true
	default:
		return "", false
	}
}

// String returns the operation name
func (o Operation) String() string {
	switch o {
	case OperationLower:
		return "lower"
	case OperationRaise:
		return "raise"
	case OperationStop:
		return "stop"
	default:
		return fmt.Sprintf("Operation(%d)", int(o))
	}
}

// ParseOperation accepts raise/lower/stop, the cover aliases open/close and
// the numeric codes 1-3.
func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lower", "down", "close", "putdown":
		return OperationLower, nil
	case "raise", "up", "open", "raiseup":
		return OperationRaise, nil
	case "stop":
		return OperationStop, nil
	}

	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		op := Operation(n)
		if _, ok := op.command(); ok {
			return op, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidOperation, s)
}

// Device is a controllable hanger known to the gateway.
type Device struct {
	ID        string
	Name      string
	Status    string
	Position  Position
	UpdatedAt time.Time
}

type lastOperation int

const (
	lastNone lastOperation = iota
	lastLogin
	lastRemoteControl
)

// session is the mutable state shared between the read loop and callers.
type session struct {
	mu sync.Mutex

	state        State
	loggedIn     bool
	everLoggedIn bool
	devices      []Device
	index        map[string]int

	last             lastOperation
	pending          *PendingOperation
	pendingSucceeded bool
	lastErr          error
}

func (s *session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// connectionLost moves to Disconnected unless the session was closed on
// purpose.
func (s *session) connectionLost() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loggedIn = false
	if s.state != StateClosed {
		s.state = StateDisconnected
	}
}

func (s *session) closed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loggedIn = false
	s.state = StateClosed
}

func (s *session) beginLogin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = lastLogin
	s.loggedIn = false
	s.lastErr = nil
}

// loginSucceeded records the login and reports whether it is the first.
func (s *session) loginSucceeded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	first := !s.everLoggedIn
	s.everLoggedIn = true
	s.loggedIn = true
	s.state = StateReady
	return first
}

func (s *session) LoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loggedIn
}

func (s *session) setLastError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
}

func (s *session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// replaceDevices rebuilds the registry from a home-info snapshot.
func (s *session) replaceDevices(devices []Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices = devices
	s.index = make(map[string]int, len(devices))
	for i, d := range devices {
		s.index[d.ID] = i
	}
}

func (s *session) Devices() []Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Device, len(s.devices))
	copy(out, s.devices)
	return out
}

func (s *session) Device(id string) (Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return Device{}, false
	}
	return s.devices[i], true
}

// updateStatus changes the status text only.
func (s *session) updateStatus(id, status string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return false
	}
	s.devices[i].Status = status
	s.devices[i].UpdatedAt = time.Now()
	return true
}

// applyStatus records a position update and returns the updated device.
func (s *session) applyStatus(id, status string, hasStatus bool, pos Position) (Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return Device{}, false
	}
	if hasStatus {
		s.devices[i].Status = status
	}
	s.devices[i].Position = pos
	s.devices[i].UpdatedAt = time.Now()
	return s.devices[i], true
}

// setPending installs op as the pending operation and returns the one it
// replaces.
func (s *session) setPending(op *PendingOperation) *PendingOperation {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.pending
	s.pending = op
	s.pendingSucceeded = false
	s.last = lastRemoteControl
	return prev
}

// clearPending removes op if it is still the pending operation.
func (s *session) clearPending(op *PendingOperation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == op {
		s.pending = nil
	}
}

// takePending removes and returns the pending operation if it targets id.
func (s *session) takePending(id string) *PendingOperation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil || s.pending.DeviceID != id {
		return nil
	}
	op := s.pending
	s.pending = nil
	return op
}

// takeAnyPending removes and returns the pending operation.
func (s *session) takeAnyPending() *PendingOperation {
	s.mu.Lock()
	defer s.mu.Unlock()
	op := s.pending
	s.pending = nil
	return op
}

// feedback records an operation result and returns what it applies to.
func (s *session) feedback(ok bool) (lastOperation, *PendingOperation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingSucceeded = ok
	return s.last, s.pending
}

func (s *session) PendingSucceeded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingSucceeded
}
