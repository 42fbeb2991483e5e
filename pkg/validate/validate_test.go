package validate

import (
	"strings"
	"testing"

	"github.com/netcfg-io/netcfg/pkg/intent"
)

// validIntent returns a fully valid intent that tests mutate
func validIntent() *intent.DeviceIntent {
	return &intent.DeviceIntent{
		Hostname:          "core-r1",
		DeviceType:        "ios",
		ManagementAddress: "192.168.1.1",
		CredentialsRef:    "core",
		Interfaces: []intent.InterfaceSpec{
			{Name: "GigabitEthernet0/0", Description: "Uplink", IPAddress: "10.0.0.1", SubnetMask: "255.255.255.0", AdminStatus: "up"},
			{Name: "GigabitEthernet0/1", IPAddress: "2001:db8::1", SubnetMask: "64", AdminStatus: "down"},
		},
		Routing: &intent.RoutingSpec{
			Protocol:  "ospf",
			ProcessID: 1,
			Networks:  []intent.NetworkSpec{{Network: "10.0.0.0", WildcardMask: "0.0.0.255", Area: "0"}},
		},
		Security: &intent.SecuritySpec{AccessLists: []intent.AccessList{{
			Name: "WEB",
			Type: "extended",
			Rules: []intent.Rule{
				{Action: "permit", Protocol: "tcp", Source: "10.0.1.0", SourceWildcard: "0.0.0.255", Destination: "any", DestinationPort: "80"},
				{Action: "deny", Protocol: "ip", Source: "any", Destination: "any"},
			},
		}}},
	}
}

// codes returns the codes of diagnostics at the given path
func codesAt(diags []intent.Diagnostic, path string) []intent.Code {
	var out []intent.Code
	for _, d := range diags {
		if d.Path == path {
			out = append(out, d.Code)
		}
	}
	return out
}

func countCode(diags []intent.Diagnostic, code intent.Code) int {
	n := 0
	for _, d := range diags {
		if d.Code == code {
			n++
		}
	}
	return n
}

func TestValidIntentHasNoDiagnostics(t *testing.T) {
	diags := Validate(validIntent())
	if len(diags) != 0 {
		t.Errorf("Validate(valid) = %v, want none", diags)
	}
}

func TestMissingHostname(t *testing.T) {
	doc := validIntent()
	doc.Hostname = ""

	diags := Validate(doc)
	got := codesAt(diags, "hostname")
	if len(got) != 1 || got[0] != intent.CodeMissingField {
		t.Errorf("hostname diagnostics = %v, want [MISSING_FIELD]", got)
	}
	if !intent.HasErrors(diags) {
		t.Error("missing hostname must be an error")
	}
}

func TestCollectsAllProblems(t *testing.T) {
	doc := &intent.DeviceIntent{
		ManagementAddress: "999.999.999.999",
		Interfaces: []intent.InterfaceSpec{
			{Name: "Gi0/0", IPAddress: "10.0.0.1", AdminStatus: "up"},
		},
	}

	diags := Validate(doc)
	want := map[string]intent.Code{
		"hostname":                 intent.CodeMissingField,
		"deviceType":               intent.CodeMissingField,
		"managementAddress":        intent.CodeInvalidAddress,
		"interfaces[0].subnetMask": intent.CodeIncompletePair,
	}
	for path, code := range want {
		got := codesAt(diags, path)
		if len(got) != 1 || got[0] != code {
			t.Errorf("diagnostics at %s = %v, want [%s]", path, got, code)
		}
	}
}

func TestDuplicateInterfaceNames(t *testing.T) {
	doc := validIntent()
	doc.Interfaces = append(doc.Interfaces, intent.InterfaceSpec{Name: "GigabitEthernet0/0", AdminStatus: "down"})

	diags := Validate(doc)
	if n := countCode(diags, intent.CodeDuplicateName); n != 1 {
		t.Fatalf("DUPLICATE_NAME count = %d, want exactly 1: %v", n, diags)
	}
	for _, d := range diags {
		if d.Code != intent.CodeDuplicateName {
			continue
		}
		if !strings.Contains(d.Message, "interfaces[0]") || !strings.Contains(d.Message, "interfaces[2]") {
			t.Errorf("duplicate diagnostic should reference both occurrences: %s", d.Message)
		}
		if d.Path != "interfaces[0].name" {
			t.Errorf("Path = %q, want interfaces[0].name", d.Path)
		}
	}
}

func TestDuplicateACLNames(t *testing.T) {
	doc := validIntent()
	acl := doc.Security.AccessLists[0]
	doc.Security.AccessLists = append(doc.Security.AccessLists, acl, acl)

	diags := Validate(doc)
	if n := countCode(diags, intent.CodeDuplicateName); n != 1 {
		t.Errorf("DUPLICATE_NAME count = %d, want 1 for a name used three times", n)
	}
}

func TestUnsupportedDeviceTypeSkipsDialectChecks(t *testing.T) {
	doc := validIntent()
	doc.DeviceType = "junos"
	doc.Interfaces[0].Name = "ge-0/0/0"
	doc.Hostname = ""

	diags := Validate(doc)
	if got := codesAt(diags, "deviceType"); len(got) != 1 || got[0] != intent.CodeUnsupportedDeviceType {
		t.Errorf("deviceType diagnostics = %v, want UNSUPPORTED_DEVICE_TYPE", got)
	}
	if n := countCode(diags, intent.CodeInvalidName); n != 0 {
		t.Errorf("dialect-specific name checks should be skipped, got %d INVALID_NAME", n)
	}
	if got := codesAt(diags, "hostname"); len(got) != 1 {
		t.Errorf("structural checks must still run, hostname diagnostics = %v", got)
	}
}

func TestInterfaceChecks(t *testing.T) {
	tests := []struct {
		name string
		intf intent.InterfaceSpec
		path string
		code intent.Code
	}{
		{"missing name", intent.InterfaceSpec{AdminStatus: "up"}, "interfaces[0].name", intent.CodeMissingField},
		{"bad name", intent.InterfaceSpec{Name: "Gi0/0; reload", AdminStatus: "up"}, "interfaces[0].name", intent.CodeInvalidName},
		{"missing status", intent.InterfaceSpec{Name: "Gi0/0"}, "interfaces[0].adminStatus", intent.CodeMissingField},
		{"bad status", intent.InterfaceSpec{Name: "Gi0/0", AdminStatus: "enabled"}, "interfaces[0].adminStatus", intent.CodeInvalidValue},
		{"mask without ip", intent.InterfaceSpec{Name: "Gi0/0", AdminStatus: "up", SubnetMask: "255.255.255.0"}, "interfaces[0].ipAddress", intent.CodeIncompletePair},
		{"bad ip", intent.InterfaceSpec{Name: "Gi0/0", AdminStatus: "up", IPAddress: "10.0.0.300", SubnetMask: "255.255.255.0"}, "interfaces[0].ipAddress", intent.CodeInvalidAddress},
		{"non-contiguous mask", intent.InterfaceSpec{Name: "Gi0/0", AdminStatus: "up", IPAddress: "10.0.0.1", SubnetMask: "255.0.255.0"}, "interfaces[0].subnetMask", intent.CodeInvalidAddress},
		{"network address", intent.InterfaceSpec{Name: "Gi0/0", AdminStatus: "up", IPAddress: "10.0.0.0", SubnetMask: "255.255.255.0"}, "interfaces[0].ipAddress", intent.CodeInvalidAddress},
		{"bad v6 prefix", intent.InterfaceSpec{Name: "Gi0/0", AdminStatus: "up", IPAddress: "2001:db8::1", SubnetMask: "255.255.255.0"}, "interfaces[0].subnetMask", intent.CodeInvalidAddress},
		{"multi-line description", intent.InterfaceSpec{Name: "Gi0/0", AdminStatus: "up", Description: "a\nreload"}, "interfaces[0].description", intent.CodeInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validIntent()
			doc.Interfaces = []intent.InterfaceSpec{tt.intf}
			got := codesAt(Validate(doc), tt.path)
			if len(got) != 1 || got[0] != tt.code {
				t.Errorf("diagnostics at %s = %v, want [%s]", tt.path, got, tt.code)
			}
		})
	}
}

func TestNoInterfacesWarning(t *testing.T) {
	doc := validIntent()
	doc.Interfaces = nil
	diags := Validate(doc)
	if intent.HasErrors(diags) || countCode(diags, intent.CodeNoInterfaces) != 1 {
		t.Errorf("want a single NO_INTERFACES warning, got %v", diags)
	}
}

func TestRoutingChecks(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *intent.RoutingSpec)
		path   string
		code   intent.Code
	}{
		{"host bits set", func(r *intent.RoutingSpec) { r.Networks[0].Network = "10.0.0.1" }, "routing.networks[0]", intent.CodeInvalidNetworkSpec},
		{"non-contiguous wildcard", func(r *intent.RoutingSpec) { r.Networks[0].WildcardMask = "0.255.0.255" }, "routing.networks[0]", intent.CodeInvalidNetworkSpec},
		{"bad network address", func(r *intent.RoutingSpec) { r.Networks[0].Network = "10.0.0" }, "routing.networks[0].network", intent.CodeInvalidAddress},
		{"missing wildcard", func(r *intent.RoutingSpec) { r.Networks[0].WildcardMask = "" }, "routing.networks[0].wildcardMask", intent.CodeMissingField},
		{"missing area", func(r *intent.RoutingSpec) { r.Networks[0].Area = "" }, "routing.networks[0].area", intent.CodeMissingField},
		{"bad area", func(r *intent.RoutingSpec) { r.Networks[0].Area = "backbone" }, "routing.networks[0].area", intent.CodeInvalidValue},
		{"missing process", func(r *intent.RoutingSpec) { r.ProcessID = 0 }, "routing.processId", intent.CodeMissingField},
		{"negative process", func(r *intent.RoutingSpec) { r.ProcessID = -4 }, "routing.processId", intent.CodeInvalidValue},
		{"bgp", func(r *intent.RoutingSpec) { r.Protocol = "bgp" }, "routing.protocol", intent.CodeInvalidValue},
		{"no networks", func(r *intent.RoutingSpec) { r.Networks = nil }, "routing.networks", intent.CodeNoNetworks},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validIntent()
			tt.mutate(doc.Routing)
			got := codesAt(Validate(doc), tt.path)
			if len(got) != 1 || got[0] != tt.code {
				t.Errorf("diagnostics at %s = %v, want [%s]", tt.path, got, tt.code)
			}
		})
	}
}

func TestSecurityChecks(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(acl *intent.AccessList)
		path     string
		code     intent.Code
		severity intent.Severity
	}{
		{"empty acl", func(a *intent.AccessList) { a.Rules = nil }, "security.accessLists[0].rules", intent.CodeEmptyACL, intent.SeverityWarning},
		{"port without transport", func(a *intent.AccessList) { a.Rules[0].Protocol = "icmp" }, "security.accessLists[0].rules[0].destinationPort", intent.CodePortWithoutTransport, intent.SeverityWarning},
		{"bad type", func(a *intent.AccessList) { a.Type = "named" }, "security.accessLists[0].type", intent.CodeInvalidValue, intent.SeverityError},
		{"bad action", func(a *intent.AccessList) { a.Rules[1].Action = "allow" }, "security.accessLists[0].rules[1].action", intent.CodeInvalidValue, intent.SeverityError},
		{"missing source", func(a *intent.AccessList) { a.Rules[1].Source = "" }, "security.accessLists[0].rules[1].source", intent.CodeMissingField, intent.SeverityError},
		{"bad source", func(a *intent.AccessList) { a.Rules[1].Source = "10.0.0.0/8" }, "security.accessLists[0].rules[1].source", intent.CodeInvalidAddress, intent.SeverityError},
		{"missing protocol", func(a *intent.AccessList) { a.Rules[1].Protocol = "" }, "security.accessLists[0].rules[1].protocol", intent.CodeMissingField, intent.SeverityError},
		{"uncommon protocol", func(a *intent.AccessList) { a.Rules[1].Protocol = "gre" }, "security.accessLists[0].rules[1].protocol", intent.CodeUncommonProtocol, intent.SeverityWarning},
		{"bad port", func(a *intent.AccessList) { a.Rules[0].DestinationPort = "70000" }, "security.accessLists[0].rules[0].destinationPort", intent.CodeInvalidValue, intent.SeverityError},
		{"standard with destination", func(a *intent.AccessList) { a.Type = "standard"; a.Rules = a.Rules[:1] }, "security.accessLists[0].rules[0]", intent.CodeIgnoredField, intent.SeverityWarning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validIntent()
			tt.mutate(&doc.Security.AccessLists[0])
			diags := Validate(doc)
			var found bool
			for _, d := range diags {
				if d.Path == tt.path && d.Code == tt.code {
					found = true
					if d.Severity != tt.severity {
						t.Errorf("severity = %s, want %s", d.Severity, tt.severity)
					}
				}
			}
			if !found {
				t.Errorf("no %s at %s in %v", tt.code, tt.path, diags)
			}
		})
	}
}

func TestParseIssuesAreReported(t *testing.T) {
	doc := validIntent()
	doc.ParseIssues = []intent.Diagnostic{intent.Errorf(intent.CodeParseError, "", "line 3: cannot unmarshal")}
	diags := Validate(doc)
	if len(diags) != 1 || diags[0].Code != intent.CodeParseError {
		t.Errorf("Validate() = %v, want the parse issue first", diags)
	}
}

func TestValidateIsDeterministicAndIndependent(t *testing.T) {
	bad := validIntent()
	bad.ManagementAddress = ""
	good := validIntent()

	a := ValidateAll([]*intent.DeviceIntent{bad, good})
	b := ValidateAll([]*intent.DeviceIntent{good, bad})

	if len(a[1]) != 0 || len(b[0]) != 0 {
		t.Error("a valid document must not inherit diagnostics from its neighbours")
	}
	if len(a[0]) != len(b[1]) {
		t.Fatalf("diagnostics depend on batch order: %v vs %v", a[0], b[1])
	}
	for i := range a[0] {
		if a[0][i] != b[1][i] {
			t.Errorf("diagnostic %d differs: %v vs %v", i, a[0][i], b[1][i])
		}
	}
}

func TestDuplicateHostnames(t *testing.T) {
	a, b, c := validIntent(), validIntent(), validIntent()
	c.Hostname = "edge-r2"
	a.Source, b.Source = "a.yaml", "b.yaml"

	dups := DuplicateHostnames([]*intent.DeviceIntent{a, b, c})
	if len(dups) != 2 {
		t.Fatalf("DuplicateHostnames() flagged %d intents, want 2", len(dups))
	}
	for _, i := range []int{0, 1} {
		d, ok := dups[i]
		if !ok || d.Code != intent.CodeDuplicateName || !strings.Contains(d.Message, "a.yaml, b.yaml") {
			t.Errorf("intent %d: %+v", i, d)
		}
	}
	if _, ok := dups[2]; ok {
		t.Error("unique hostname must not be flagged")
	}
}

func TestAbbreviatedInterfaceDuplicates(t *testing.T) {
	doc := validIntent()
	doc.Interfaces = append(doc.Interfaces, intent.InterfaceSpec{Name: "Gi0/1", AdminStatus: "up"})

	diags := Validate(doc)
	if n := countCode(diags, intent.CodeDuplicateName); n != 1 {
		t.Fatalf("got %d DUPLICATE_NAME, want 1: %v", n, diags)
	}
}
