// Package dialect describes vendor CLI dialects: the command syntax used by
// the compiler and the prompt, privilege, error and save conventions used by
// the deployer when talking to a device.
package dialect

import (
	"regexp"
	"sort"
	"strings"

	"github.com/netcfg-io/netcfg/pkg/intent"
)

// Syntax renders intent elements as vendor command lines
type Syntax interface {
	Hostname(name string) string
	InterfaceEnter(name string) string
	Description(text string) string
	IPv4Address(ip, mask string) string
	IPv6Address(ip string, prefixLen int) string
	AdminStatus(status string) string
	RouterEnter(protocol string, processID int) string
	Network(n intent.NetworkSpec) string
	ACLEnter(acl intent.AccessList) string
	ACLRule(aclType string, r intent.Rule) string
	BlockExit() string
}

// Dialect bundles a vendor's syntax with its session conventions
type Dialect struct {
	Name    string
	Aliases []string
	Syntax  Syntax

	// Prompt matches the end of device output for every mode; the session
	// reads until it matches.
	Prompt *regexp.Regexp
	// PasswordPrompt matches the enable secret prompt.
	PasswordPrompt *regexp.Regexp
	// PrivilegedPrompt matches the prompt once elevated.
	PrivilegedPrompt *regexp.Regexp

	EnableCommand string
	DisablePaging []string
	ConfigEnter   string
	ConfigExit    string
	SaveCommand   string
	SaveAck       *regexp.Regexp
	ProbeCommand  string
	VerifyCommand string

	// ErrorResponse matches device output that marks a command as rejected.
	ErrorResponse *regexp.Regexp
	// ReadOnlyPrefixes and ReadOnlyCommands list command prefixes and exact
	// commands that never change device state.
	ReadOnlyPrefixes []string
	ReadOnlyCommands []string

	// Unlisted are commands the running configuration never shows, such as
	// block exits and defaults. Verification skips them.
	Unlisted []string

	InterfaceName *regexp.Regexp
	// InterfaceAbbrev maps lower-case type abbreviations to full type names.
	InterfaceAbbrev map[string]string
}

// IsRejected reports whether a device response carries an error token
func (d *Dialect) IsRejected(response string) bool {
	return d.ErrorResponse.MatchString(response)
}

// IsReadOnly reports whether line is safe to send during a dry run
func (d *Dialect) IsReadOnly(line string) bool {
	l := strings.TrimSpace(line)
	for _, c := range d.ReadOnlyCommands {
		if l == c {
			return true
		}
	}
	for _, p := range d.ReadOnlyPrefixes {
		if strings.HasPrefix(l, p) {
			return true
		}
	}
	return false
}

// StripPrompt removes a trailing prompt line from a session response
func (d *Dialect) StripPrompt(response string) string {
	out := strings.TrimRight(response, " \t\r\n")
	i := strings.LastIndexByte(out, '\n')
	if d.Prompt.MatchString(out[i+1:]) {
		out = out[:i+1]
	}
	return strings.TrimSpace(out)
}

// Listed reports whether line should appear in the running configuration
// once applied
func (d *Dialect) Listed(line string) bool {
	l := strings.TrimSpace(line)
	for _, u := range d.Unlisted {
		if l == u {
			return false
		}
	}
	return l != ""
}

// IsSave reports whether line is the dialect's persist command
func (d *Dialect) IsSave(line string) bool {
	return strings.TrimSpace(line) == d.SaveCommand
}

// SaveAcknowledged reports whether the response confirms the save
func (d *Dialect) SaveAcknowledged(response string) bool {
	return d.SaveAck.MatchString(response) && !d.IsRejected(response)
}

// ValidInterfaceName reports whether name is a syntactically valid interface
func (d *Dialect) ValidInterfaceName(name string) bool {
	return d.InterfaceName.MatchString(name)
}

var registry = map[string]*Dialect{}

// Register adds a dialect under its name and aliases
func Register(d *Dialect) {
	registry[d.Name] = d
	for _, a := range d.Aliases {
		registry[a] = d
	}
}

// Lookup returns the dialect for a deviceType value (case-insensitive)
func Lookup(deviceType string) (*Dialect, bool) {
	d, ok := registry[strings.ToLower(strings.TrimSpace(deviceType))]
	return d, ok
}

// Supported returns every accepted deviceType value, sorted
func Supported() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
