package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/netcfg-io/netcfg/pkg/dialect"
	"github.com/netcfg-io/netcfg/pkg/intent"
	"github.com/netcfg-io/netcfg/pkg/util"
)

func testIntent() *intent.DeviceIntent {
	return &intent.DeviceIntent{
		Hostname:          "core-r1",
		DeviceType:        "cisco_ios",
		ManagementAddress: "192.168.1.1",
		Interfaces: []intent.InterfaceSpec{
			{Name: "GigabitEthernet0/0", Description: "Uplink", IPAddress: "10.0.0.1", SubnetMask: "255.255.255.0", AdminStatus: "up"},
			{Name: "GigabitEthernet0/1", AdminStatus: "down"},
			{Name: "GigabitEthernet0/2", IPAddress: "2001:db8::1", SubnetMask: "/64", AdminStatus: "up"},
		},
		Routing: &intent.RoutingSpec{
			Protocol:  "ospf",
			ProcessID: 10,
			Networks:  []intent.NetworkSpec{{Network: "10.0.0.0", WildcardMask: "0.0.0.255", Area: "0"}},
		},
		Security: &intent.SecuritySpec{AccessLists: []intent.AccessList{{
			Name: "WEB",
			Type: "extended",
			Rules: []intent.Rule{
				{Action: "permit", Protocol: "tcp", Source: "10.0.1.0", SourceWildcard: "0.0.0.255", Destination: "any", DestinationPort: "80"},
				{Action: "permit", Protocol: "tcp", Source: "10.0.1.0", SourceWildcard: "0.0.0.255", Destination: "any", DestinationPort: "443"},
				{Action: "deny", Protocol: "ip", Source: "any", Destination: "any"},
			},
		}}},
	}
}

func TestCompile(t *testing.T) {
	plan, err := Compile(testIntent())
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}

	want := []string{
		"hostname core-r1",
		"interface GigabitEthernet0/0",
		" description Uplink",
		" ip address 10.0.0.1 255.255.255.0",
		" no shutdown",
		"exit",
		"interface GigabitEthernet0/1",
		" shutdown",
		"exit",
		"interface GigabitEthernet0/2",
		" ipv6 address 2001:db8::1/64",
		" no shutdown",
		"exit",
		"router ospf 10",
		" network 10.0.0.0 0.0.0.255 area 0",
		"exit",
		"ip access-list extended WEB",
		" permit tcp 10.0.1.0 0.0.0.255 any eq 80",
		" permit tcp 10.0.1.0 0.0.0.255 any eq 443",
		" deny ip any any",
		"exit",
		"write memory",
	}
	got := plan.Lines()
	if len(got) != len(want) {
		t.Fatalf("Compile() produced %d lines, want %d:\n%s", len(got), len(want), strings.Join(got, "\n"))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
	if plan.Hostname() != "core-r1" || plan.DeviceType() != "ios" {
		t.Errorf("plan header = %s/%s, want core-r1/ios", plan.Hostname(), plan.DeviceType())
	}
}

func TestCompileMinimal(t *testing.T) {
	doc := &intent.DeviceIntent{
		Hostname:          "edge",
		DeviceType:        "ios",
		ManagementAddress: "10.9.9.9",
	}
	plan, err := Compile(doc)
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	if got := plan.Lines(); len(got) != 2 || got[0] != "hostname edge" || got[1] != "write memory" {
		t.Errorf("Lines() = %q", got)
	}
}

func TestCompileIsDeterministic(t *testing.T) {
	a, err := Compile(testIntent())
	if err != nil {
		t.Fatal(err)
	}
	b, err := Compile(testIntent())
	if err != nil {
		t.Fatal(err)
	}
	if a.Text() != b.Text() || a.Hash() != b.Hash() {
		t.Error("compiling the same intent twice produced different plans")
	}

	changed := testIntent()
	changed.Interfaces[0].Description = "Uplink to core"
	c, err := Compile(changed)
	if err != nil {
		t.Fatal(err)
	}
	if c.Hash() == a.Hash() {
		t.Error("a changed intent must produce a different hash")
	}
}

func TestCompileRejectsInvalidIntent(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*intent.DeviceIntent)
	}{
		{"missing hostname", func(d *intent.DeviceIntent) { d.Hostname = "" }},
		{"unsupported device type", func(d *intent.DeviceIntent) { d.DeviceType = "junos" }},
		{"incomplete address", func(d *intent.DeviceIntent) { d.Interfaces[1].IPAddress = "10.0.1.1" }},
		{"parse error", func(d *intent.DeviceIntent) {
			d.ParseIssues = []intent.Diagnostic{intent.Errorf(intent.CodeParseError, "routing", "bad type")}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := testIntent()
			tt.mutate(doc)
			plan, err := Compile(doc)
			if plan != nil {
				t.Error("Compile() returned a plan for an invalid intent")
			}
			if !errors.Is(err, util.ErrPreconditionFailed) {
				t.Errorf("Compile() error = %v, want ErrPreconditionFailed", err)
			}
			var pe *util.PreconditionError
			if !errors.As(err, &pe) || pe.Operation != "compile" {
				t.Errorf("Compile() error = %#v, want *PreconditionError", err)
			}
		})
	}
}

func TestCompileWarningsDoNotBlock(t *testing.T) {
	doc := testIntent()
	doc.Security.AccessLists = append(doc.Security.AccessLists, intent.AccessList{Name: "EMPTY", Type: "standard"})
	plan, err := Compile(doc)
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	lines := plan.Lines()
	if lines[len(lines)-3] != "ip access-list standard EMPTY" || lines[len(lines)-2] != "exit" {
		t.Errorf("empty ACL not rendered before save: %q", lines[len(lines)-3:])
	}
}

func TestLinesReturnsCopy(t *testing.T) {
	plan, err := Compile(testIntent())
	if err != nil {
		t.Fatal(err)
	}
	hash := plan.Hash()
	lines := plan.Lines()
	lines[0] = "reload"
	if plan.Lines()[0] != "hostname core-r1" || plan.Hash() != hash {
		t.Error("mutating Lines() result changed the plan")
	}
}

func TestSplit(t *testing.T) {
	plan, err := Compile(testIntent())
	if err != nil {
		t.Fatal(err)
	}
	body, save := plan.Split(dialect.IOS)
	if save != "write memory" {
		t.Errorf("save = %q", save)
	}
	if len(body) != plan.Len()-1 || body[len(body)-1] != "exit" {
		t.Errorf("body has %d lines ending %q", len(body), body[len(body)-1])
	}

	bare := NewPlan("r1", "ios", []string{"hostname r1", "interface Gi0/0"})
	body, save = bare.Split(dialect.IOS)
	if save != "" || len(body) != 2 {
		t.Errorf("Split() on a plan without save = %q, %q", body, save)
	}
}

func TestParsePlan(t *testing.T) {
	plan, err := Compile(testIntent())
	if err != nil {
		t.Fatal(err)
	}
	text := plan.Text()
	if !strings.HasPrefix(text, "! hostname: core-r1\n! device-type: ios\n! plan-hash: sha256:") {
		t.Errorf("Text() header:\n%s", text)
	}

	parsed, err := ParsePlan([]byte(text))
	if err != nil {
		t.Fatalf("ParsePlan() error: %v", err)
	}
	if parsed.Hash() != plan.Hash() || parsed.Hostname() != "core-r1" {
		t.Errorf("parsed plan differs: %s %s", parsed.Hostname(), parsed.Hash())
	}
}

func TestParsePlanErrors(t *testing.T) {
	plan, err := Compile(testIntent())
	if err != nil {
		t.Fatal(err)
	}
	tampered := strings.Replace(plan.Text(), "eq 80", "eq 22", 1)

	tests := []struct {
		name string
		data string
		want string
	}{
		{"tampered", tampered, "hash mismatch"},
		{"no device type", "! hostname: r1\nhostname r1\n", "device-type"},
		{"unknown device type", "! device-type: junos\nhostname r1\n", "not supported"},
		{"no commands", "! device-type: ios\n!\n\n", "no commands"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePlan([]byte(tt.data))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("ParsePlan() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestParsePlanWithoutHash(t *testing.T) {
	p, err := ParsePlan([]byte("! device-type: ios\r\nhostname r1\r\ninterface Gi0/0\r\n no shutdown\r\nexit\r\n"))
	if err != nil {
		t.Fatalf("ParsePlan() error: %v", err)
	}
	if got := p.Lines(); len(got) != 4 || got[2] != " no shutdown" {
		t.Errorf("Lines() = %q", got)
	}
}

func TestCompileExpandsInterfaceAbbreviations(t *testing.T) {
	doc := &intent.DeviceIntent{
		Hostname:          "r1",
		DeviceType:        "ios",
		ManagementAddress: "192.0.2.1",
		Interfaces:        []intent.InterfaceSpec{{Name: "gi0/3", AdminStatus: "down"}},
	}
	plan, err := Compile(doc)
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	if got := plan.Lines()[1]; got != "interface GigabitEthernet0/3" {
		t.Errorf("interface line = %q, want %q", got, "interface GigabitEthernet0/3")
	}
}
