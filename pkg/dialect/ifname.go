package dialect

import (
	"regexp"
	"strings"
)

var parseInterfaceRegexp = regexp.MustCompile(`^([A-Za-z][A-Za-z\-]*?)(\d+(?:/\d+)*)(?:\.(\d+))?$`)

// ParseInterfaceName splits an interface name into type, number and
// subinterface, e.g. ("Gi", "0/1", "100") for Gi0/1.100. A name that does
// not parse is returned as the type.
func ParseInterfaceName(name string) (ifType, num, subintf string) {
	m := parseInterfaceRegexp.FindStringSubmatch(strings.TrimSpace(name))
	if m == nil {
		return name, "", ""
	}
	return m[1], m[2], m[3]
}

// CanonicalInterface expands an abbreviated interface type to the full name
// the device shows in its running configuration: Gi0/1 -> GigabitEthernet0/1,
// po1 -> Port-channel1. Unknown types are returned unchanged.
func (d *Dialect) CanonicalInterface(name string) string {
	ifType, num, subintf := ParseInterfaceName(name)
	if num == "" {
		return name
	}
	full, ok := d.expandType(ifType)
	if !ok {
		return name
	}
	out := full + num
	if subintf != "" {
		out += "." + subintf
	}
	return out
}

// ShortInterface is the inverse of CanonicalInterface, using the shortest
// abbreviation the dialect knows for the type
func (d *Dialect) ShortInterface(name string) string {
	ifType, num, subintf := ParseInterfaceName(d.CanonicalInterface(name))
	if num == "" {
		return name
	}
	short := ""
	for abbr, full := range d.InterfaceAbbrev {
		if full == ifType && (short == "" || len(abbr) < len(short) || (len(abbr) == len(short) && abbr < short)) {
			short = abbr
		}
	}
	if short == "" {
		return name
	}
	out := strings.ToUpper(short[:1]) + short[1:] + num
	if subintf != "" {
		out += "." + subintf
	}
	return out
}

func (d *Dialect) expandType(ifType string) (string, bool) {
	lower := strings.ToLower(ifType)
	if full, ok := d.InterfaceAbbrev[lower]; ok {
		return full, true
	}
	// full names in any case
	for _, full := range d.InterfaceAbbrev {
		if strings.EqualFold(full, ifType) {
			return full, true
		}
	}
	return "", false
}
