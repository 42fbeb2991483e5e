// Package compiler turns a validated device intent into an ordered,
// deterministic command plan in the device's CLI dialect.
package compiler

import (
	"fmt"

	"github.com/netcfg-io/netcfg/pkg/dialect"
	"github.com/netcfg-io/netcfg/pkg/intent"
	"github.com/netcfg-io/netcfg/pkg/util"
	"github.com/netcfg-io/netcfg/pkg/validate"
)

// Compile renders an intent as a command plan. The intent must pass
// validation; an intent with error diagnostics or an unknown dialect is a
// precondition failure and no plan is produced.
//
// Command order is fixed: hostname, interfaces, routing, access lists, then
// the dialect's save command.
func Compile(doc *intent.DeviceIntent) (*CommandPlan, error) {
	if errs := intent.Errors(validate.Validate(doc)); len(errs) > 0 {
		return nil, util.NewPreconditionError("compile", doc.Name(), "intent must validate without errors",
			fmt.Sprintf("%d error(s), first: %s", len(errs), errs[0]))
	}
	d, ok := dialect.Lookup(doc.DeviceType)
	if !ok {
		return nil, util.NewPreconditionError("compile", doc.Name(), "supported device type", doc.DeviceType)
	}

	b := &builder{syntax: d.Syntax, dl: d}
	b.add(d.Syntax.Hostname(doc.Hostname))
	for _, intf := range doc.Interfaces {
		b.addInterface(intf)
	}
	if doc.Routing != nil {
		b.addRouting(doc.Routing)
	}
	if doc.Security != nil {
		for _, acl := range doc.Security.AccessLists {
			b.addAccessList(acl)
		}
	}
	b.add(d.SaveCommand)

	util.WithDevice(doc.Hostname).Debugf("compiled %d commands for %s", len(b.lines), d.Name)
	return NewPlan(doc.Hostname, d.Name, b.lines), nil
}

// builder appends rendered lines in order
type builder struct {
	syntax dialect.Syntax
	dl     *dialect.Dialect
	lines  []string
}

func (b *builder) add(lines ...string) {
	b.lines = append(b.lines, lines...)
}

func (b *builder) addInterface(intf intent.InterfaceSpec) {
	s := b.syntax
	b.add(s.InterfaceEnter(b.dl.CanonicalInterface(intf.Name)))
	if intf.Description != "" {
		b.add(s.Description(intf.Description))
	}
	if intf.HasAddress() {
		if util.IsValidIPv4(intf.IPAddress) {
			b.add(s.IPv4Address(intf.IPAddress, intf.SubnetMask))
		} else {
			// validated above, so the prefix length parses
			prefixLen, _ := util.ParseIPv6PrefixLength(intf.SubnetMask)
			b.add(s.IPv6Address(intf.IPAddress, prefixLen))
		}
	}
	b.add(s.AdminStatus(intf.AdminStatus), s.BlockExit())
}

func (b *builder) addRouting(r *intent.RoutingSpec) {
	s := b.syntax
	b.add(s.RouterEnter(r.Protocol, r.ProcessID))
	for _, n := range r.Networks {
		b.add(s.Network(n))
	}
	b.add(s.BlockExit())
}

func (b *builder) addAccessList(acl intent.AccessList) {
	s := b.syntax
	b.add(s.ACLEnter(acl))
	for _, r := range acl.Rules {
		b.add(s.ACLRule(acl.Type, r))
	}
	b.add(s.BlockExit())
}
