package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/netcfg-io/netcfg/pkg/pipeline"
	"github.com/netcfg-io/netcfg/pkg/session"
)

// credentialResolver returns the resolver for a run: an interactive prompt
// when requested, the environment otherwise
func credentialResolver(prompt bool) (pipeline.CredentialResolver, error) {
	if !prompt {
		return pipeline.EnvResolver{}, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("--prompt-credentials needs a terminal on stdin")
	}
	creds, err := promptCredentials(os.Stdin, os.Stderr, func() ([]byte, error) {
		return term.ReadPassword(fd)
	})
	if err != nil {
		return nil, err
	}
	return pipeline.StaticResolver{Default: creds}, nil
}

// promptCredentials asks for a username, password and optional enable
// secret. readSecret reads one line without echo.
func promptCredentials(in io.Reader, out io.Writer, readSecret func() ([]byte, error)) (session.Credentials, error) {
	var c session.Credentials

	fmt.Fprint(out, "Username: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return c, fmt.Errorf("reading username: %w", err)
	}
	c.Username = strings.TrimSpace(line)
	if c.Username == "" {
		return c, fmt.Errorf("username is required")
	}

	fmt.Fprint(out, "Password: ")
	pw, err := readSecret()
	fmt.Fprintln(out)
	if err != nil {
		return c, fmt.Errorf("reading password: %w", err)
	}
	c.Password = string(pw)

	fmt.Fprint(out, "Enable secret (empty for none): ")
	en, err := readSecret()
	fmt.Fprintln(out)
	if err != nil {
		return c, fmt.Errorf("reading enable secret: %w", err)
	}
	c.EnableSecret = string(en)
	return c, nil
}
