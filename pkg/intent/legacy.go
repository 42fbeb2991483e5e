package intent

import (
	"gopkg.in/yaml.v3"
)

// legacyDefaultDeviceType mirrors the old scripts, which assumed Cisco IOS
// when device_type was omitted.
const legacyDefaultDeviceType = "cisco_ios"

// legacyDocument is the snake_case layout used by the original pipeline
// scripts: device settings nested under "device", OSPF under routing.ospf.
type legacyDocument struct {
	Device struct {
		Hostname    string `yaml:"hostname"`
		IPAddress   string `yaml:"ip_address"`
		DeviceType  string `yaml:"device_type"`
		Credentials struct {
			Username string `yaml:"username"`
			Password string `yaml:"password"`
		} `yaml:"credentials"`
		CredentialsRef string `yaml:"credentials_ref"`
	} `yaml:"device"`

	Interfaces []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		IPAddress   string `yaml:"ip_address"`
		SubnetMask  string `yaml:"subnet_mask"`
		Status      string `yaml:"status"`
	} `yaml:"interfaces"`

	Routing struct {
		OSPF *struct {
			Enabled   bool `yaml:"enabled"`
			ProcessID int  `yaml:"process_id"`
			Networks  []struct {
				Network  string `yaml:"network"`
				Wildcard string `yaml:"wildcard"`
				Area     string `yaml:"area"`
			} `yaml:"networks"`
		} `yaml:"ospf"`
	} `yaml:"routing"`

	Security struct {
		AccessLists []struct {
			Name  string `yaml:"name"`
			Type  string `yaml:"type"`
			Rules []struct {
				Action              string `yaml:"action"`
				Protocol            string `yaml:"protocol"`
				Source              string `yaml:"source"`
				SourceWildcard      string `yaml:"source_wildcard"`
				Destination         string `yaml:"destination"`
				DestinationWildcard string `yaml:"destination_wildcard"`
				DestinationPort     string `yaml:"destination_port"`
			} `yaml:"rules"`
		} `yaml:"access_lists"`
	} `yaml:"security"`
}

func parseLegacy(data []byte) *DeviceIntent {
	var legacy legacyDocument
	var issues []Diagnostic
	if err := yaml.Unmarshal(data, &legacy); err != nil {
		issues = append(issues, decodeIssues(err)...)
	}

	doc := &DeviceIntent{
		Hostname:          legacy.Device.Hostname,
		DeviceType:        legacy.Device.DeviceType,
		ManagementAddress: legacy.Device.IPAddress,
		CredentialsRef:    legacy.Device.CredentialsRef,
	}

	if doc.DeviceType == "" {
		doc.DeviceType = legacyDefaultDeviceType
		issues = append(issues, Warningf(CodeDefaultedField, "deviceType",
			"device type not specified, defaulting to %s", legacyDefaultDeviceType))
	}
	if legacy.Device.Credentials.Password != "" {
		issues = append(issues, Errorf(CodeInlineSecret, "device.credentials.password",
			"passwords must not be stored in intent documents; use credentialsRef and environment credentials"))
	}

	for _, li := range legacy.Interfaces {
		doc.Interfaces = append(doc.Interfaces, InterfaceSpec{
			Name:        li.Name,
			Description: li.Description,
			IPAddress:   li.IPAddress,
			SubnetMask:  li.SubnetMask,
			AdminStatus: li.Status,
		})
	}

	if ospf := legacy.Routing.OSPF; ospf != nil && ospf.Enabled {
		r := &RoutingSpec{Protocol: ProtocolOSPF, ProcessID: ospf.ProcessID}
		for _, n := range ospf.Networks {
			r.Networks = append(r.Networks, NetworkSpec{
				Network:      n.Network,
				WildcardMask: n.Wildcard,
				Area:         n.Area,
			})
		}
		doc.Routing = r
	}

	if len(legacy.Security.AccessLists) > 0 {
		sec := &SecuritySpec{}
		for _, la := range legacy.Security.AccessLists {
			acl := AccessList{Name: la.Name, Type: la.Type}
			for _, lr := range la.Rules {
				acl.Rules = append(acl.Rules, Rule{
					Action:              lr.Action,
					Protocol:            lr.Protocol,
					Source:              lr.Source,
					SourceWildcard:      lr.SourceWildcard,
					Destination:         lr.Destination,
					DestinationWildcard: lr.DestinationWildcard,
					DestinationPort:     lr.DestinationPort,
				})
			}
			sec.AccessLists = append(sec.AccessLists, acl)
		}
		doc.Security = sec
	}

	doc.ParseIssues = issues
	return doc
}
