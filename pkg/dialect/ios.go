package dialect

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/netcfg-io/netcfg/pkg/intent"
)

// IOS is the Cisco IOS / IOS-XE dialect
var IOS = &Dialect{
	Name:    "ios",
	Aliases: []string{"cisco_ios", "iosxe", "cisco_xe"},
	Syntax:  iosSyntax{},

	Prompt:           regexp.MustCompile(`(?m)(^[\w.\-@/:()]+[>#]\s*$|[Pp]assword:\s*$)`),
	PasswordPrompt:   regexp.MustCompile(`(?m)[Pp]assword:\s*$`),
	PrivilegedPrompt: regexp.MustCompile(`(?m)^[\w.\-@/:()]+#\s*$`),

	EnableCommand: "enable",
	DisablePaging: []string{"terminal length 0", "terminal width 0"},
	ConfigEnter:   "configure terminal",
	ConfigExit:    "end",
	SaveCommand:   "write memory",
	SaveAck:       regexp.MustCompile(`\[OK\]`),
	ProbeCommand:  "show version",
	VerifyCommand: "show running-config",

	ErrorResponse:    regexp.MustCompile(`(?m)^\s*%\s*(Invalid|Incomplete|Ambiguous|Unknown|Error|Bad)`),
	ReadOnlyPrefixes: []string{"show "},
	ReadOnlyCommands: []string{"enable", "terminal length 0", "terminal width 0"},
	Unlisted:         []string{"exit", "end", "no shutdown"},

	InterfaceName: regexp.MustCompile(`^[A-Za-z][A-Za-z\-]*\d+(/\d+)*(\.\d+)?$`),
	InterfaceAbbrev: map[string]string{
		"fa":   "FastEthernet",
		"gi":   "GigabitEthernet",
		"gig":  "GigabitEthernet",
		"te":   "TenGigabitEthernet",
		"ten":  "TenGigabitEthernet",
		"twe":  "TwentyFiveGigE",
		"fo":   "FortyGigabitEthernet",
		"hu":   "HundredGigE",
		"eth":  "Ethernet",
		"lo":   "Loopback",
		"po":   "Port-channel",
		"vl":   "Vlan",
		"tu":   "Tunnel",
		"se":   "Serial",
		"mgmt": "Management",
	},
}

func init() {
	Register(IOS)
}

type iosSyntax struct{}

func (iosSyntax) Hostname(name string) string { return "hostname " + name }

func (iosSyntax) InterfaceEnter(name string) string { return "interface " + name }

func (iosSyntax) Description(text string) string { return " description " + text }

func (iosSyntax) IPv4Address(ip, mask string) string {
	return fmt.Sprintf(" ip address %s %s", ip, mask)
}

func (iosSyntax) IPv6Address(ip string, prefixLen int) string {
	return fmt.Sprintf(" ipv6 address %s/%d", ip, prefixLen)
}

func (iosSyntax) AdminStatus(status string) string {
	if status == intent.AdminUp {
		return " no shutdown"
	}
	return " shutdown"
}

func (iosSyntax) RouterEnter(protocol string, processID int) string {
	return fmt.Sprintf("router %s %d", strings.ToLower(protocol), processID)
}

func (iosSyntax) Network(n intent.NetworkSpec) string {
	return fmt.Sprintf(" network %s %s area %s", n.Network, n.WildcardMask, n.Area)
}

func (iosSyntax) ACLEnter(acl intent.AccessList) string {
	return fmt.Sprintf("ip access-list %s %s", acl.Type, acl.Name)
}

// ACLRule renders one named-ACL entry. Standard lists match on source only.
func (iosSyntax) ACLRule(aclType string, r intent.Rule) string {
	parts := []string{r.Action}
	if aclType == intent.ACLStandard {
		parts = append(parts, iosAddress(r.Source, r.SourceWildcard))
		return " " + strings.Join(parts, " ")
	}

	dst := r.Destination
	if dst == "" {
		dst = intent.AnyAddress
	}
	parts = append(parts, r.Protocol, iosAddress(r.Source, r.SourceWildcard), iosAddress(dst, r.DestinationWildcard))
	proto := strings.ToLower(r.Protocol)
	if r.DestinationPort != "" && (proto == "tcp" || proto == "udp") {
		parts = append(parts, "eq", r.DestinationPort)
	}
	return " " + strings.Join(parts, " ")
}

func (iosSyntax) BlockExit() string { return "exit" }

// iosAddress renders an ACL address term: "any", "host A" or "A W"
func iosAddress(addr, wildcard string) string {
	if addr == intent.AnyAddress {
		return intent.AnyAddress
	}
	if wildcard == "" || wildcard == "0.0.0.0" {
		return "host " + addr
	}
	return addr + " " + wildcard
}
