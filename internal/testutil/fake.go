// Package testutil provides test helpers: a scripted fake device session
// for unit tests, and Redis helpers for integration tests.
package testutil

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/netcfg-io/netcfg/pkg/dialect"
	"github.com/netcfg-io/netcfg/pkg/session"
)

// SecretPlaceholder replaces the enable secret in recorded lines
const SecretPlaceholder = "<enable-secret>"

// FakeDevice scripts how one device answers. The zero value accepts every
// command and acknowledges saves.
type FakeDevice struct {
	Hostname string

	// DialFailures makes the first N dials fail with a transport error.
	DialFailures int
	// AuthErr, if set, is returned (wrapped in *session.AuthError) by Authenticate.
	AuthErr error
	// EnableSecret makes "enable" prompt for a password.
	EnableSecret string
	// Reject lists commands the device answers with an error.
	Reject map[string]bool
	// SaveResponse overrides the save acknowledgement.
	SaveResponse string
	// RunningConfig is returned for "show running-config".
	RunningConfig string
	// SendDelay is applied to every Send, honouring the context.
	SendDelay time.Duration
	// OnSend runs before each answer; used to cancel mid-apply.
	OnSend func(line string)

	mu       sync.Mutex
	sent     []string
	dials    int
	sessions int
	closed   int
}

func (d *FakeDevice) prompt(mode string) string {
	name := d.Hostname
	if name == "" {
		name = "Router"
	}
	return name + mode
}

// Sent returns every line received, in order. The enable secret is
// recorded as SecretPlaceholder.
func (d *FakeDevice) Sent() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.sent...)
}

// Mutating returns the received lines that could change device state
func (d *FakeDevice) Mutating(dl *dialect.Dialect) []string {
	var out []string
	for _, l := range d.Sent() {
		if l != SecretPlaceholder && !dl.IsReadOnly(l) {
			out = append(out, l)
		}
	}
	return out
}

// Dials returns how many times the device was dialled
func (d *FakeDevice) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// AllClosed reports whether every opened session was closed
func (d *FakeDevice) AllClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessions == d.closed
}

// FakeDialer implements session.Dialer over FakeDevices keyed by address.
// It tracks how many connections are open at once.
type FakeDialer struct {
	Devices map[string]*FakeDevice
	// DialDelay holds each dial, widening the window for overlap.
	DialDelay time.Duration

	mu      sync.Mutex
	open    int
	maxOpen int
}

// NewFakeDialer returns a dialer with no devices
func NewFakeDialer() *FakeDialer {
	return &FakeDialer{Devices: make(map[string]*FakeDevice)}
}

// Add registers a device at address
func (f *FakeDialer) Add(address string, d *FakeDevice) *FakeDevice {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Devices[address] = d
	return d
}

// MaxOpen returns the largest number of simultaneously open connections
func (f *FakeDialer) MaxOpen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxOpen
}

// Open returns the number of connections not yet closed
func (f *FakeDialer) Open() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *FakeDialer) Dial(ctx context.Context, ep session.Endpoint) (session.Conn, error) {
	f.mu.Lock()
	dev, ok := f.Devices[ep.Address]
	f.mu.Unlock()
	if !ok {
		return nil, &session.TransportError{Op: "dial", Address: ep.HostPort(), Err: errors.New("connection refused")}
	}

	dev.mu.Lock()
	dev.dials++
	fail := dev.dials <= dev.DialFailures
	dev.mu.Unlock()
	if fail {
		return nil, &session.TransportError{Op: "dial", Address: ep.HostPort(), Err: errors.New("connection timed out")}
	}

	f.mu.Lock()
	f.open++
	if f.open > f.maxOpen {
		f.maxOpen = f.open
	}
	f.mu.Unlock()

	if err := sleep(ctx, f.DialDelay); err != nil {
		f.release()
		return nil, &session.TransportError{Op: "dial", Address: ep.HostPort(), Err: err}
	}
	return &fakeConn{dialer: f, dev: dev}, nil
}

func (f *FakeDialer) release() {
	f.mu.Lock()
	f.open--
	f.mu.Unlock()
}

type fakeConn struct {
	dialer *FakeDialer
	dev    *FakeDevice
	once   sync.Once
}

func (c *fakeConn) Authenticate(_ context.Context, creds session.Credentials) (session.Session, error) {
	if c.dev.AuthErr != nil {
		return nil, &session.AuthError{Username: creds.Username, Address: c.dev.Hostname, Err: c.dev.AuthErr}
	}
	c.dev.mu.Lock()
	c.dev.sessions++
	c.dev.mu.Unlock()
	return &fakeSession{dev: c.dev}, nil
}

func (c *fakeConn) Close() error {
	c.once.Do(c.dialer.release)
	return nil
}

type fakeSession struct {
	dev        *FakeDevice
	mode       string // ">" user, "#" privileged, "(config)#" config
	wantSecret bool
	once       sync.Once
}

func (s *fakeSession) Send(ctx context.Context, line string) (string, error) {
	if err := sleep(ctx, s.dev.SendDelay); err != nil {
		return "", &session.TransportError{Op: "read", Address: s.dev.Hostname, Err: err}
	}

	d := s.dev
	if s.mode == "" {
		s.mode = ">"
	}

	d.mu.Lock()
	if s.wantSecret {
		d.sent = append(d.sent, SecretPlaceholder)
	} else {
		d.sent = append(d.sent, line)
	}
	d.mu.Unlock()

	if d.OnSend != nil {
		d.OnSend(line)
	}

	if s.wantSecret {
		s.wantSecret = false
		if line != d.EnableSecret {
			return "% Access denied\n" + d.prompt(">"), nil
		}
		s.mode = "#"
		return d.prompt(s.mode), nil
	}

	cmd := strings.TrimSpace(line)
	switch {
	case d.Reject[line] || d.Reject[cmd]:
		return "% Invalid input detected at '^' marker.\n" + d.prompt(s.mode), nil
	case cmd == "enable":
		if d.EnableSecret != "" {
			s.wantSecret = true
			return "Password: ", nil
		}
		s.mode = "#"
	case cmd == "configure terminal":
		s.mode = "(config)#"
		return "Enter configuration commands, one per line.  End with CNTL/Z.\n" + d.prompt(s.mode), nil
	case cmd == "end":
		s.mode = "#"
	case cmd == "show version":
		return "Cisco IOS Software, Version 15.2\n" + d.prompt(s.mode), nil
	case cmd == "show running-config":
		return "Building configuration...\n" + d.RunningConfig + "\nend\n" + d.prompt(s.mode), nil
	case cmd == "write memory":
		resp := d.SaveResponse
		if resp == "" {
			resp = "Building configuration...\n[OK]"
		}
		return resp + "\n" + d.prompt(s.mode), nil
	}
	return d.prompt(s.mode), nil
}

func (s *fakeSession) Close() error {
	s.once.Do(func() {
		s.dev.mu.Lock()
		s.dev.closed++
		s.dev.mu.Unlock()
	})
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ session.Dialer = (*FakeDialer)(nil)
