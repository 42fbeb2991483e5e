// Package validate checks device intents for structural and semantic
// problems. Validation is pure: no I/O, no shared state, and every check
// runs so that one pass reports every problem in a document.
package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/netcfg-io/netcfg/pkg/dialect"
	"github.com/netcfg-io/netcfg/pkg/intent"
	"github.com/netcfg-io/netcfg/pkg/util"
)

var (
	hostnameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.\-]{0,62}$`)
	aclNameRe  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.\-]*$`)
	tokenRe    = regexp.MustCompile(`^[a-z0-9][a-z0-9\-]*$`)
)

// Protocols accepted without an UNCOMMON_PROTOCOL warning
var commonProtocols = map[string]bool{"tcp": true, "udp": true, "ip": true, "icmp": true}

// Protocols that carry a destination port
var transportProtocols = map[string]bool{"tcp": true, "udp": true}

// checker accumulates diagnostics for one document
type checker struct {
	doc     *intent.DeviceIntent
	dialect *dialect.Dialect // nil when deviceType is missing or unsupported
	diags   []intent.Diagnostic
}

func (c *checker) errorf(code intent.Code, path, format string, args ...interface{}) {
	c.diags = append(c.diags, intent.Errorf(code, path, format, args...))
}

func (c *checker) warnf(code intent.Code, path, format string, args ...interface{}) {
	c.diags = append(c.diags, intent.Warningf(code, path, format, args...))
}

// Validate returns every diagnostic for one intent, in document field order.
// Parse issues recorded by the loader come first.
func Validate(doc *intent.DeviceIntent) []intent.Diagnostic {
	c := &checker{doc: doc}
	c.diags = append(c.diags, doc.ParseIssues...)

	c.checkDevice()
	c.checkInterfaces()
	c.checkRouting()
	c.checkSecurity()

	return c.diags
}

// ValidateAll validates each intent independently. Result i belongs to
// intents[i]; no document's diagnostics depend on another's.
func ValidateAll(intents []*intent.DeviceIntent) [][]intent.Diagnostic {
	out := make([][]intent.Diagnostic, len(intents))
	for i, doc := range intents {
		out[i] = Validate(doc)
	}
	return out
}

func (c *checker) checkDevice() {
	d := c.doc

	switch {
	case d.Hostname == "":
		c.errorf(intent.CodeMissingField, "hostname", "hostname is required")
	case !hostnameRe.MatchString(d.Hostname):
		c.errorf(intent.CodeInvalidValue, "hostname",
			"hostname %q must be 1-63 letters, digits, '-', '_' or '.'", d.Hostname)
	}

	switch {
	case d.DeviceType == "":
		c.errorf(intent.CodeMissingField, "deviceType", "deviceType is required")
	default:
		if dl, ok := dialect.Lookup(d.DeviceType); ok {
			c.dialect = dl
		} else {
			c.errorf(intent.CodeUnsupportedDeviceType, "deviceType",
				"device type %q is not supported (supported: %s)", d.DeviceType, strings.Join(dialect.Supported(), ", "))
		}
	}

	switch {
	case d.ManagementAddress == "":
		c.errorf(intent.CodeMissingField, "managementAddress", "managementAddress is required")
	case !util.IsValidIP(d.ManagementAddress):
		c.errorf(intent.CodeInvalidAddress, "managementAddress",
			"invalid management address %q", d.ManagementAddress)
	}

	if strings.ContainsAny(d.CredentialsRef, " \t\r\n") {
		c.errorf(intent.CodeInvalidValue, "credentialsRef", "credentialsRef must be a single token")
	}
}

func (c *checker) checkInterfaces() {
	if len(c.doc.Interfaces) == 0 {
		c.warnf(intent.CodeNoInterfaces, "interfaces", "no interfaces configured")
		return
	}

	names := newNameIndex()
	for i := range c.doc.Interfaces {
		intf := &c.doc.Interfaces[i]
		path := fmt.Sprintf("interfaces[%d]", i)

		switch {
		case intf.Name == "":
			c.errorf(intent.CodeMissingField, path+".name", "interface name is required")
		case c.dialect != nil && !c.dialect.ValidInterfaceName(intf.Name):
			c.errorf(intent.CodeInvalidName, path+".name",
				"%q is not a valid %s interface name", intf.Name, c.dialect.Name)
		case c.dialect != nil:
			names.add(c.dialect.CanonicalInterface(intf.Name), path)
		default:
			names.add(intf.Name, path)
		}

		if strings.ContainsAny(intf.Description, "\r\n") {
			c.errorf(intent.CodeInvalidValue, path+".description", "description must be a single line")
		}

		switch intf.AdminStatus {
		case intent.AdminUp, intent.AdminDown:
		case "":
			c.errorf(intent.CodeMissingField, path+".adminStatus", "adminStatus is required (up or down)")
		default:
			c.errorf(intent.CodeInvalidValue, path+".adminStatus",
				"adminStatus must be up or down, got %q", intf.AdminStatus)
		}

		c.checkInterfaceAddress(intf, path)
	}

	names.report(c, "interface")
}

func (c *checker) checkInterfaceAddress(intf *intent.InterfaceSpec, path string) {
	switch {
	case !intf.HasAddress():
		return
	case intf.IPAddress == "":
		c.errorf(intent.CodeIncompletePair, path+".ipAddress", "subnetMask is set without ipAddress")
		return
	case intf.SubnetMask == "":
		c.errorf(intent.CodeIncompletePair, path+".subnetMask", "ipAddress is set without subnetMask")
		return
	}

	switch {
	case util.IsValidIPv4(intf.IPAddress):
		maskLen, err := util.MaskLength(intf.SubnetMask)
		if err != nil {
			c.errorf(intent.CodeInvalidAddress, path+".subnetMask", "%v", err)
			return
		}
		if !util.IsHostAddress(intf.IPAddress, maskLen) {
			c.errorf(intent.CodeInvalidAddress, path+".ipAddress",
				"%s is the network or broadcast address of /%d", intf.IPAddress, maskLen)
		}
	case util.IsValidIPv6(intf.IPAddress):
		if _, err := util.ParseIPv6PrefixLength(intf.SubnetMask); err != nil {
			c.errorf(intent.CodeInvalidAddress, path+".subnetMask", "%v", err)
		}
	default:
		c.errorf(intent.CodeInvalidAddress, path+".ipAddress", "invalid IP address %q", intf.IPAddress)
	}
}

func (c *checker) checkRouting() {
	r := c.doc.Routing
	if r == nil {
		return
	}

	switch {
	case r.Protocol == "":
		c.errorf(intent.CodeMissingField, "routing.protocol", "routing protocol is required")
	case !strings.EqualFold(r.Protocol, intent.ProtocolOSPF):
		c.errorf(intent.CodeInvalidValue, "routing.protocol", "unsupported routing protocol %q (supported: ospf)", r.Protocol)
	}

	switch {
	case r.ProcessID == 0:
		c.errorf(intent.CodeMissingField, "routing.processId", "OSPF process ID is required")
	case r.ProcessID < 0 || r.ProcessID > 65535:
		c.errorf(intent.CodeInvalidValue, "routing.processId", "process ID must be 1-65535, got %d", r.ProcessID)
	}

	if len(r.Networks) == 0 {
		c.warnf(intent.CodeNoNetworks, "routing.networks", "routing enabled but no networks configured")
	}

	for i, n := range r.Networks {
		path := fmt.Sprintf("routing.networks[%d]", i)
		netOK := c.checkIPv4Field(n.Network, path+".network", "network")
		wcOK := c.checkIPv4Field(n.WildcardMask, path+".wildcardMask", "wildcard mask")
		if netOK && wcOK {
			if err := util.NetworkMatchesWildcard(n.Network, n.WildcardMask); err != nil {
				c.errorf(intent.CodeInvalidNetworkSpec, path, "%v", err)
			}
		}

		switch {
		case n.Area == "":
			c.errorf(intent.CodeMissingField, path+".area", "area is required")
		case !validArea(n.Area):
			c.errorf(intent.CodeInvalidValue, path+".area", "area must be a 32-bit number or dotted quad, got %q", n.Area)
		}
	}
}

// checkIPv4Field reports a missing or malformed IPv4 value and returns
// whether the value is usable.
func (c *checker) checkIPv4Field(value, path, what string) bool {
	if value == "" {
		c.errorf(intent.CodeMissingField, path, "%s is required", what)
		return false
	}
	if !util.IsValidIPv4(value) {
		c.errorf(intent.CodeInvalidAddress, path, "invalid %s %q", what, value)
		return false
	}
	return true
}

func (c *checker) checkSecurity() {
	s := c.doc.Security
	if s == nil {
		return
	}

	names := newNameIndex()
	for i := range s.AccessLists {
		acl := &s.AccessLists[i]
		path := fmt.Sprintf("security.accessLists[%d]", i)

		switch {
		case acl.Name == "":
			c.errorf(intent.CodeMissingField, path+".name", "ACL name is required")
		case !aclNameRe.MatchString(acl.Name):
			c.errorf(intent.CodeInvalidName, path+".name", "ACL name %q contains invalid characters", acl.Name)
		default:
			names.add(acl.Name, path)
		}

		switch acl.Type {
		case intent.ACLStandard, intent.ACLExtended:
		case "":
			c.errorf(intent.CodeMissingField, path+".type", "ACL type is required (standard or extended)")
		default:
			c.errorf(intent.CodeInvalidValue, path+".type", "ACL type must be standard or extended, got %q", acl.Type)
		}

		if len(acl.Rules) == 0 {
			c.warnf(intent.CodeEmptyACL, path+".rules", "access list %q has no rules", acl.Name)
		}
		for j := range acl.Rules {
			c.checkRule(acl.Type, &acl.Rules[j], fmt.Sprintf("%s.rules[%d]", path, j))
		}
	}

	names.report(c, "access list")
}

func (c *checker) checkRule(aclType string, r *intent.Rule, path string) {
	switch r.Action {
	case intent.ActionPermit, intent.ActionDeny:
	case "":
		c.errorf(intent.CodeMissingField, path+".action", "rule action is required (permit or deny)")
	default:
		c.errorf(intent.CodeInvalidValue, path+".action", "rule action must be permit or deny, got %q", r.Action)
	}

	proto := strings.ToLower(r.Protocol)
	switch {
	case proto == "" && aclType == intent.ACLExtended:
		c.errorf(intent.CodeMissingField, path+".protocol", "rule protocol is required for extended lists")
	case proto != "" && !tokenRe.MatchString(proto):
		c.errorf(intent.CodeInvalidValue, path+".protocol", "invalid protocol %q", r.Protocol)
	case proto != "" && !commonProtocols[proto]:
		c.warnf(intent.CodeUncommonProtocol, path+".protocol", "uncommon protocol %q", r.Protocol)
	}

	if r.Source == "" {
		c.errorf(intent.CodeMissingField, path+".source", "rule source is required")
	} else {
		c.checkACLAddress(r.Source, r.SourceWildcard, path+".source", path+".sourceWildcard")
	}

	if aclType == intent.ACLStandard {
		if r.Destination != "" || r.DestinationWildcard != "" || r.DestinationPort != "" {
			c.warnf(intent.CodeIgnoredField, path, "standard access lists match on source only; destination fields are ignored")
		}
		return
	}

	if r.Destination != "" {
		c.checkACLAddress(r.Destination, r.DestinationWildcard, path+".destination", path+".destinationWildcard")
	}

	if r.DestinationPort != "" {
		if !transportProtocols[proto] {
			c.warnf(intent.CodePortWithoutTransport, path+".destinationPort",
				"destinationPort %s has no effect for protocol %q (only tcp/udp)", r.DestinationPort, r.Protocol)
		}
		if !validPort(r.DestinationPort) {
			c.errorf(intent.CodeInvalidValue, path+".destinationPort",
				"destinationPort must be 1-65535 or a port keyword, got %q", r.DestinationPort)
		}
	}
}

func (c *checker) checkACLAddress(addr, wildcard, addrPath, wcPath string) {
	if addr != intent.AnyAddress && !util.IsValidIPv4(addr) {
		c.errorf(intent.CodeInvalidAddress, addrPath, "ACL address must be \"any\" or an IPv4 address, got %q", addr)
	}
	if wildcard != "" && !util.IsValidIPv4(wildcard) {
		c.errorf(intent.CodeInvalidAddress, wcPath, "invalid wildcard mask %q", wildcard)
	}
}

func validArea(area string) bool {
	if util.IsValidIPv4(area) {
		return true
	}
	_, err := strconv.ParseUint(area, 10, 32)
	return err == nil
}

func validPort(port string) bool {
	if n, err := strconv.Atoi(port); err == nil {
		return n >= 1 && n <= 65535
	}
	return tokenRe.MatchString(port)
}
