// Package session defines the device session capability used by the
// deployer (dial, authenticate, send one line) and its SSH implementation.
package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/netcfg-io/netcfg/pkg/util"
)

// DefaultPort is the SSH port used when an endpoint does not name one
const DefaultPort = 22

// Endpoint identifies a device to connect to
type Endpoint struct {
	Hostname   string
	Address    string
	Port       int
	DeviceType string
}

// HostPort returns the dial address
func (e Endpoint) HostPort() string {
	port := e.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(e.Address, strconv.Itoa(port))
}

// Credentials authenticate a session. EnableSecret is sent only in answer
// to the privilege elevation prompt.
type Credentials struct {
	Username     string
	Password     string
	EnableSecret string
}

// String never includes secrets
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Username: %q, Password: %s, EnableSecret: %s}",
		c.Username, redact(c.Password), redact(c.EnableSecret))
}

func redact(s string) string {
	if s == "" {
		return "<empty>"
	}
	return "<redacted>"
}

// Dialer opens transport connections
type Dialer interface {
	Dial(ctx context.Context, ep Endpoint) (Conn, error)
}

// Conn is an open, unauthenticated connection
type Conn interface {
	Authenticate(ctx context.Context, creds Credentials) (Session, error)
	Close() error
}

// Session is an authenticated interactive CLI session. Send writes one
// line and returns the device output up to the next prompt.
type Session interface {
	Send(ctx context.Context, line string) (string, error)
	Close() error
}

// TransportError is a connection-level failure: refused, reset, timed out.
// It is retryable.
type TransportError struct {
	Op      string
	Address string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Address, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{util.ErrTransport, e.Err}
}

// AuthError means the device refused the credentials. It is not retryable.
type AuthError struct {
	Username string
	Address  string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication as %q on %s failed: %v", e.Username, e.Address, e.Err)
}

func (e *AuthError) Unwrap() []error {
	return []error{util.ErrAuth, e.Err}
}

// IsRetryable reports whether a dial or authenticate failure may succeed on
// another attempt. Authentication rejections and cancellations never do.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, util.ErrAuth) || errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, util.ErrTransport) || errors.Is(err, context.DeadlineExceeded)
}
