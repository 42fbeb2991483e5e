package util

import (
	"testing"
)

func TestIsValidIP(t *testing.T) {
	tests := []struct {
		ip     string
		want   bool
		wantV4 bool
		wantV6 bool
	}{
		{"192.168.1.1", true, true, false},
		{"0.0.0.0", true, true, false},
		{"999.999.999.999", false, false, false},
		{"192.168.1", false, false, false},
		{"2001:db8::1", true, false, true},
		{"fe80::1%eth0", false, false, false},
		{"10.0.0.1/24", false, false, false},
		{"", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			if got := IsValidIP(tt.ip); got != tt.want {
				t.Errorf("IsValidIP(%q) = %v, want %v", tt.ip, got, tt.want)
			}
			if got := IsValidIPv4(tt.ip); got != tt.wantV4 {
				t.Errorf("IsValidIPv4(%q) = %v, want %v", tt.ip, got, tt.wantV4)
			}
			if got := IsValidIPv6(tt.ip); got != tt.wantV6 {
				t.Errorf("IsValidIPv6(%q) = %v, want %v", tt.ip, got, tt.wantV6)
			}
		})
	}
}

func TestMaskLength(t *testing.T) {
	tests := []struct {
		mask    string
		want    int
		wantErr bool
	}{
		{"255.255.255.0", 24, false},
		{"255.255.255.252", 30, false},
		{"255.255.255.255", 32, false},
		{"0.0.0.0", 0, false},
		{"255.0.255.0", 0, true},
		{"255.255.255", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.mask, func(t *testing.T) {
			got, err := MaskLength(tt.mask)
			if (err != nil) != tt.wantErr {
				t.Fatalf("MaskLength(%q) error = %v, wantErr %v", tt.mask, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("MaskLength(%q) = %d, want %d", tt.mask, got, tt.want)
			}
		})
	}
}

func TestWildcardLength(t *testing.T) {
	tests := []struct {
		wildcard string
		want     int
		wantErr  bool
	}{
		{"0.0.0.255", 24, false},
		{"0.0.0.3", 30, false},
		{"0.0.0.0", 32, false},
		{"255.255.255.255", 0, false},
		{"0.0.255.0", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.wildcard, func(t *testing.T) {
			got, err := WildcardLength(tt.wildcard)
			if (err != nil) != tt.wantErr {
				t.Fatalf("WildcardLength(%q) error = %v, wantErr %v", tt.wildcard, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("WildcardLength(%q) = %d, want %d", tt.wildcard, got, tt.want)
			}
		})
	}
}

func TestNetworkMatchesWildcard(t *testing.T) {
	tests := []struct {
		name     string
		network  string
		wildcard string
		wantErr  bool
	}{
		{"aligned /24", "10.0.1.0", "0.0.0.255", false},
		{"aligned /30", "10.0.0.4", "0.0.0.3", false},
		{"host route", "10.0.0.7", "0.0.0.0", false},
		{"host bits set", "10.0.1.1", "0.0.0.255", true},
		{"non-contiguous wildcard", "10.0.0.0", "0.255.0.255", true},
		{"bad network", "10.0.0", "0.0.0.255", true},
		{"ipv6 network", "2001:db8::", "0.0.0.255", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NetworkMatchesWildcard(tt.network, tt.wildcard)
			if (err != nil) != tt.wantErr {
				t.Errorf("NetworkMatchesWildcard(%q, %q) error = %v, wantErr %v",
					tt.network, tt.wildcard, err, tt.wantErr)
			}
		})
	}
}

func TestParseIPv6PrefixLength(t *testing.T) {
	for _, s := range []string{"64", "/64", "128", "0"} {
		if _, err := ParseIPv6PrefixLength(s); err != nil {
			t.Errorf("ParseIPv6PrefixLength(%q) unexpected error: %v", s, err)
		}
	}
	for _, s := range []string{"129", "-1", "ffff::", ""} {
		if _, err := ParseIPv6PrefixLength(s); err == nil {
			t.Errorf("ParseIPv6PrefixLength(%q) should fail", s)
		}
	}
}

func TestIsHostAddress(t *testing.T) {
	tests := []struct {
		ip      string
		maskLen int
		want    bool
	}{
		{"10.0.0.1", 24, true},
		{"10.0.0.0", 24, false},
		{"10.0.0.255", 24, false},
		{"10.0.0.0", 31, true},
		{"10.0.0.3", 30, false},
		{"10.0.0.2", 30, true},
	}

	for _, tt := range tests {
		if got := IsHostAddress(tt.ip, tt.maskLen); got != tt.want {
			t.Errorf("IsHostAddress(%q, %d) = %v, want %v", tt.ip, tt.maskLen, got, tt.want)
		}
	}
}
