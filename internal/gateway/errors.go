package gateway

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"
)

// Sentinel errors, matchable with errors.Is through *Error.
var (
	ErrConnectFailed    = errors.New("connection to gateway failed")
	ErrNotConnected     = errors.New("not connected to gateway")
	ErrInvalidFrame     = errors.New("invalid frame")
	ErrLoginRejected    = errors.New("login rejected")
	ErrLoginTimeout     = errors.New("login timed out")
	ErrCommandRejected  = errors.New("command rejected")
	ErrCommandTimeout   = errors.New("no position feedback")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrNoDevices        = errors.New("no devices in home info")
	ErrClosed           = errors.New("client closed")
	ErrSuperseded       = errors.New("superseded by a newer command")
)

// Kind categorizes an error
type Kind int

const (
	// KindTransport is a socket-level failure (dial, write, connection lost)
	KindTransport Kind = iota
	// KindMalformed is an undecodable message from the gateway
	KindMalformed
	// KindRejected is a non-200 result code from the gateway
	KindRejected
	// KindTimeout is a missing reply
	KindTimeout
	// KindInvalid is a bad argument from the caller
	KindInvalid
)

// String returns a human-readable name for the kind
func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindMalformed:
		return "malformed"
	case KindRejected:
		return "rejected"
	case KindTimeout:
		return "timeout"
	case KindInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Error is the error type returned by Client operations
type Error struct {
	Kind Kind   // category
	Op   string // operation that failed, e.g. "login"
	Code int    // gateway result code for KindRejected, 0 otherwise
	Err  error  // underlying error, wraps one of the sentinels
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	if e.Code != 0 {
		fmt.Fprintf(&b, "code %d: ", e.Code)
	}
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else {
		b.WriteString(e.Kind.String())
	}
	return b.String()
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the operation may succeed
func (e *Error) Retryable() bool {
	return e.Kind == KindTransport || e.Kind == KindTimeout
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func rejected(op string, code int, sentinel error, text string) *Error {
	err := sentinel
	if text != "" {
		err = fmt.Errorf("%w: %s", sentinel, text)
	}
	return &Error{Kind: KindRejected, Op: op, Code: code, Err: err}
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Retryable()
	}
	return false
}

// KindOf returns the kind of a gateway error, and false for foreign errors
func KindOf(err error) (Kind, bool) {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Kind, true
	}
	return 0, false
}

// describeDialError names the common reasons a dial fails
func describeDialError(err error) string {
	if os.IsTimeout(err) {
		return "timed out"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "DNS resolution failed for " + dnsErr.Name
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case errors.Is(opErr.Err, syscall.ECONNREFUSED):
			return "connection refused"
		case errors.Is(opErr.Err, syscall.EHOSTUNREACH):
			return "host unreachable"
		case errors.Is(opErr.Err, syscall.ENETUNREACH):
			return "network unreachable"
		}
	}

	return "network error"
}

// TroubleshootingHint returns user-facing advice for an error
func TroubleshootingHint(err error) string {
	switch {
	case errors.Is(err, ErrConnectFailed), errors.Is(err, ErrNotConnected):
		return strings.Join([]string{
			"The gateway could not be reached.",
			"Troubleshooting:",
			"  • Check your internet connection",
			"  • Verify gateway.host and gateway.port in the config file",
			"  • Try again later, the gateway may be restarting",
		}, "\n")

	case errors.Is(err, ErrLoginRejected):
		return strings.Join([]string{
			"The gateway rejected the login.",
			"Troubleshooting:",
			"  • Check the mobile number and password used in the app",
			"  • Verify the client id matches your app installation",
		}, "\n")

	case errors.Is(err, ErrLoginTimeout):
		return strings.Join([]string{
			"The gateway did not confirm the login in time.",
			"Troubleshooting:",
			"  • Increase gateway.login_timeout",
			"  • Run with --log-level debug to inspect the exchange",
		}, "\n")

	case errors.Is(err, ErrNoDevices):
		return "The account has no devices. Add the hanger in the mobile app first."

	case errors.Is(err, ErrCommandTimeout):
		return strings.Join([]string{
			"The hanger did not report a final position.",
			"Troubleshooting:",
			"  • Check that the hanger is powered and online in the app",
			"  • Increase gateway.command_timeout for long travel",
		}, "\n")

	case errors.Is(err, ErrCommandRejected):
		return "The gateway refused the command. The device id may be wrong or the device offline."

	default:
		return "An unexpected error occurred. Please try again."
	}
}
