// Package intent defines the declarative device-intent model and loads it
// from YAML documents.
//
// Field names are part of the cross-tool contract: they are the camelCase
// names used in intent files and in the JSON pipeline artifacts.
package intent

// Admin status values
const (
	AdminUp   = "up"
	AdminDown = "down"
)

// Access list types
const (
	ACLStandard = "standard"
	ACLExtended = "extended"
)

// Rule actions
const (
	ActionPermit = "permit"
	ActionDeny   = "deny"
)

// ProtocolOSPF is the only routing protocol currently compiled
const ProtocolOSPF = "ospf"

// AnyAddress matches every address in an ACL rule
const AnyAddress = "any"

// DeviceIntent is the declarative description of one device
type DeviceIntent struct {
	Hostname          string          `yaml:"hostname" json:"hostname"`
	DeviceType        string          `yaml:"deviceType" json:"deviceType"`
	ManagementAddress string          `yaml:"managementAddress" json:"managementAddress"`
	CredentialsRef    string          `yaml:"credentialsRef,omitempty" json:"credentialsRef,omitempty"`
	Interfaces        []InterfaceSpec `yaml:"interfaces,omitempty" json:"interfaces,omitempty"`
	Routing           *RoutingSpec    `yaml:"routing,omitempty" json:"routing,omitempty"`
	Security          *SecuritySpec   `yaml:"security,omitempty" json:"security,omitempty"`

	// Source is the file the intent was loaded from ("" when built in code).
	Source string `yaml:"-" json:"-"`

	// ParseIssues holds problems found while decoding the document. The
	// validator reports them alongside its own findings.
	ParseIssues []Diagnostic `yaml:"-" json:"-"`
}

// InterfaceSpec describes one interface
type InterfaceSpec struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	IPAddress   string `yaml:"ipAddress,omitempty" json:"ipAddress,omitempty"`
	SubnetMask  string `yaml:"subnetMask,omitempty" json:"subnetMask,omitempty"` // dotted mask (IPv4) or prefix length (IPv6)
	AdminStatus string `yaml:"adminStatus" json:"adminStatus"`
}

// HasAddress reports whether either half of the address pair is set
func (i *InterfaceSpec) HasAddress() bool {
	return i.IPAddress != "" || i.SubnetMask != ""
}

// RoutingSpec describes the routing process
type RoutingSpec struct {
	Protocol  string        `yaml:"protocol" json:"protocol"`
	ProcessID int           `yaml:"processId" json:"processId"`
	Networks  []NetworkSpec `yaml:"networks,omitempty" json:"networks,omitempty"`
}

// NetworkSpec is one routing network statement
type NetworkSpec struct {
	Network      string `yaml:"network" json:"network"`
	WildcardMask string `yaml:"wildcardMask" json:"wildcardMask"`
	Area         string `yaml:"area" json:"area"`
}

// SecuritySpec holds access lists in the order they are applied
type SecuritySpec struct {
	AccessLists []AccessList `yaml:"accessLists,omitempty" json:"accessLists,omitempty"`
}

// AccessList is an ordered, first-match rule list
type AccessList struct {
	Name  string `yaml:"name" json:"name"`
	Type  string `yaml:"type" json:"type"`
	Rules []Rule `yaml:"rules,omitempty" json:"rules,omitempty"`
}

// Rule is one ACL entry. Order within AccessList.Rules is significant.
type Rule struct {
	Action              string `yaml:"action" json:"action"`
	Protocol            string `yaml:"protocol,omitempty" json:"protocol,omitempty"`
	Source              string `yaml:"source" json:"source"`
	SourceWildcard      string `yaml:"sourceWildcard,omitempty" json:"sourceWildcard,omitempty"`
	Destination         string `yaml:"destination,omitempty" json:"destination,omitempty"`
	DestinationWildcard string `yaml:"destinationWildcard,omitempty" json:"destinationWildcard,omitempty"`
	DestinationPort     string `yaml:"destinationPort,omitempty" json:"destinationPort,omitempty"`
}

// Name returns the hostname, or the source file when the hostname is missing
func (d *DeviceIntent) Name() string {
	if d.Hostname != "" {
		return d.Hostname
	}
	if d.Source != "" {
		return d.Source
	}
	return "<unnamed>"
}
