package util

import (
	"fmt"
	"math/bits"
	"net"
	"strconv"
	"strings"
)

// IsValidIP checks if a string is an IPv4 or IPv6 literal (no mask, no zone)
func IsValidIP(ipStr string) bool {
	if strings.Contains(ipStr, "%") {
		return false
	}
	return net.ParseIP(ipStr) != nil
}

// IsValidIPv4 checks if a string is a valid IPv4 address
func IsValidIPv4(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	return ip != nil && ip.To4() != nil && !strings.Contains(ipStr, ":")
}

// IsValidIPv6 checks if a string is a valid IPv6 address
func IsValidIPv6(ipStr string) bool {
	return IsValidIP(ipStr) && strings.Contains(ipStr, ":")
}

// MaskLength returns the prefix length of a dotted-quad subnet mask
// (e.g. 255.255.255.0 -> 24). Non-contiguous masks are rejected.
func MaskLength(mask string) (int, error) {
	v, err := ipv4ToUint32(mask)
	if err != nil {
		return 0, fmt.Errorf("invalid subnet mask %q", mask)
	}
	ones := bits.LeadingZeros32(^v)
	if ones < 32 && v<<uint(ones) != 0 {
		return 0, fmt.Errorf("subnet mask %q is not contiguous", mask)
	}
	return ones, nil
}

// WildcardLength returns the prefix length equivalent of an inverse (wildcard)
// mask (e.g. 0.0.0.255 -> 24). Non-contiguous wildcards are rejected.
func WildcardLength(wildcard string) (int, error) {
	v, err := ipv4ToUint32(wildcard)
	if err != nil {
		return 0, fmt.Errorf("invalid wildcard mask %q", wildcard)
	}
	ones := bits.LeadingZeros32(v)
	if ones < 32 && ^v<<uint(ones) != 0 {
		return 0, fmt.Errorf("wildcard mask %q is not contiguous", wildcard)
	}
	return ones, nil
}

// NetworkMatchesWildcard reports whether network/wildcard is a CIDR-equivalent
// pair: the wildcard is contiguous and no host bits are set in network.
func NetworkMatchesWildcard(network, wildcard string) error {
	n, err := ipv4ToUint32(network)
	if err != nil {
		return fmt.Errorf("invalid network address %q", network)
	}
	if _, err := WildcardLength(wildcard); err != nil {
		return err
	}
	w, _ := ipv4ToUint32(wildcard)
	if n&w != 0 {
		return fmt.Errorf("%s has host bits set outside wildcard %s (network is %s)",
			network, wildcard, uint32ToIPv4(n&^w))
	}
	return nil
}

// ParseIPv6PrefixLength accepts "64" or "/64" and returns the length
func ParseIPv6PrefixLength(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(s, "/"))
	if err != nil || n < 0 || n > 128 {
		return 0, fmt.Errorf("invalid IPv6 prefix length %q", s)
	}
	return n, nil
}

// IsHostAddress reports whether ip is usable as an interface address inside
// a subnet of the given length, i.e. not the network or broadcast address.
// /31 and /32 are always usable.
func IsHostAddress(ip string, maskLen int) bool {
	v, err := ipv4ToUint32(ip)
	if err != nil {
		return false
	}
	if maskLen >= 31 {
		return true
	}
	hostMask := uint32(1)<<uint(32-maskLen) - 1
	host := v & hostMask
	return host != 0 && host != hostMask
}

func ipv4ToUint32(s string) (uint32, error) {
	if !IsValidIPv4(s) {
		return 0, fmt.Errorf("not an IPv4 address: %q", s)
	}
	ip := net.ParseIP(s).To4()
	return uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3]), nil
}

func uint32ToIPv4(v uint32) string {
	return net.IPv4(byte(v>>24), byte(v>>16), byte(v>>8), byte(v)).String()
}
