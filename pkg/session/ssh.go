package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/netcfg-io/netcfg/pkg/dialect"
	"github.com/netcfg-io/netcfg/pkg/util"
)

// SSHDialer opens interactive CLI sessions over SSH
type SSHDialer struct {
	// KnownHostsFile enables host key checking. Empty accepts any host key.
	KnownHostsFile string
}

// Dial opens the TCP connection. SSH negotiation happens in Authenticate.
func (d *SSHDialer) Dial(ctx context.Context, ep Endpoint) (Conn, error) {
	dl, ok := dialect.Lookup(ep.DeviceType)
	if !ok {
		return nil, fmt.Errorf("no dialect for device type %q", ep.DeviceType)
	}

	hostKey := ssh.InsecureIgnoreHostKey()
	if d.KnownHostsFile != "" {
		cb, err := knownhosts.New(d.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("loading known hosts: %w", err)
		}
		hostKey = cb
	}

	addr := ep.HostPort()
	var nd net.Dialer
	nc, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &TransportError{Op: "dial", Address: addr, Err: err}
	}

	util.WithDevice(ep.Hostname).Debugf("connected to %s", addr)
	return &sshConn{netConn: nc, addr: addr, prompt: dl.Prompt, hostKey: hostKey}, nil
}

type sshConn struct {
	netConn net.Conn
	addr    string
	prompt  *regexp.Regexp
	hostKey ssh.HostKeyCallback

	client *ssh.Client
}

// Authenticate runs the SSH handshake with password and keyboard-interactive
// auth, opens a PTY shell and waits for the first prompt.
func (c *sshConn) Authenticate(ctx context.Context, creds Credentials) (Session, error) {
	config := &ssh.ClientConfig{
		User: creds.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(creds.Password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = creds.Password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: c.hostKey,
	}

	if deadline, ok := ctx.Deadline(); ok {
		c.netConn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { c.netConn.SetDeadline(time.Now()) })
	defer stop()

	sc, chans, reqs, err := ssh.NewClientConn(c.netConn, c.addr, config)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &TransportError{Op: "handshake", Address: c.addr, Err: ctxErr}
		}
		if strings.Contains(err.Error(), "unable to authenticate") {
			return nil, &AuthError{Username: creds.Username, Address: c.addr, Err: err}
		}
		return nil, &TransportError{Op: "handshake", Address: c.addr, Err: err}
	}
	c.netConn.SetDeadline(time.Time{})
	c.client = ssh.NewClient(sc, chans, reqs)

	s, err := c.openShell(ctx)
	if err != nil {
		return nil, &TransportError{Op: "shell", Address: c.addr, Err: err}
	}
	return s, nil
}

func (c *sshConn) openShell(ctx context.Context) (*sshSession, error) {
	sess, err := c.client.NewSession()
	if err != nil {
		return nil, err
	}
	modes := ssh.TerminalModes{ssh.ECHO: 0, ssh.TTY_OP_ISPEED: 38400, ssh.TTY_OP_OSPEED: 38400}
	if err := sess.RequestPty("vt100", 200, 512, modes); err != nil {
		sess.Close()
		return nil, fmt.Errorf("pty: %w", err)
	}
	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		return nil, err
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		return nil, err
	}
	if err := sess.Shell(); err != nil {
		sess.Close()
		return nil, fmt.Errorf("shell: %w", err)
	}

	s := &sshSession{
		sess:   sess,
		stdin:  stdin,
		prompt: c.prompt,
		addr:   c.addr,
		chunks: make(chan []byte, 64),
		done:   make(chan struct{}),
	}
	go s.pump(stdout)

	if _, err := s.readUntilPrompt(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("waiting for prompt: %w", err)
	}
	return s, nil
}

func (c *sshConn) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return c.netConn.Close()
}

// sshSession drives an interactive shell. Output is pumped into chunks by a
// single reader goroutine; Send is not safe for concurrent use.
type sshSession struct {
	sess   *ssh.Session
	stdin  io.WriteCloser
	prompt *regexp.Regexp
	addr   string

	chunks  chan []byte
	readErr error // set before chunks is closed
	pending bytes.Buffer
	done    chan struct{}

	closeOnce sync.Once
}

func (s *sshSession) pump(r io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.chunks <- chunk:
			case <-s.done:
				close(s.chunks)
				return
			}
		}
		if err != nil {
			s.readErr = err
			close(s.chunks)
			return
		}
	}
}

// Send writes line and returns the output up to and including the next
// prompt, with the echoed command removed.
func (s *sshSession) Send(ctx context.Context, line string) (string, error) {
	if _, err := io.WriteString(s.stdin, line+"\n"); err != nil {
		return "", &TransportError{Op: "send", Address: s.addr, Err: err}
	}
	out, err := s.readUntilPrompt(ctx)
	if err != nil {
		return out, err
	}
	return stripEcho(out, line), nil
}

func (s *sshSession) readUntilPrompt(ctx context.Context) (string, error) {
	for {
		if s.prompt.MatchString(lastLine(s.pending.String())) {
			out := s.pending.String()
			s.pending.Reset()
			return out, nil
		}
		select {
		case <-ctx.Done():
			return s.pending.String(), &TransportError{Op: "read", Address: s.addr, Err: ctx.Err()}
		case chunk, ok := <-s.chunks:
			if !ok {
				err := s.readErr
				switch {
				case ctx.Err() != nil:
					err = ctx.Err()
				case err == nil || err == io.EOF:
					err = io.ErrUnexpectedEOF
				}
				return s.pending.String(), &TransportError{Op: "read", Address: s.addr, Err: err}
			}
			s.pending.Write(bytes.ReplaceAll(chunk, []byte("\r"), nil))
		}
	}
}

func (s *sshSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.stdin.Close()
		err = s.sess.Close()
		if err == io.EOF {
			err = nil
		}
	})
	return err
}

// stripEcho drops the echoed command line
func stripEcho(out, line string) string {
	cmd := strings.TrimSpace(line)
	if i := strings.IndexByte(out, '\n'); i >= 0 && cmd != "" && strings.Contains(out[:i], cmd) {
		out = out[i+1:]
	}
	return strings.TrimSpace(out)
}

func lastLine(out string) string {
	out = strings.TrimRight(out, " \t\n")
	return out[strings.LastIndexByte(out, '\n')+1:]
}
