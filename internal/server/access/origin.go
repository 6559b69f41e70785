package access

import (
	"errors"
	"net/netip"
)

var ErrBadOrigin = errors.New("origin is not an IP address")

// NormalizeOrigin returns the canonical text form of an IPv4 or IPv6
// literal. IPv4-mapped IPv6 addresses collapse to IPv4; zoned addresses
// are rejected.
func NormalizeOrigin(s string) (string, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil || addr.Zone() != "" {
		return "", ErrBadOrigin
	}
	return addr.Unmap().String(), nil
}

func originAllowed(whitelist []string, origin string) bool {
	for _, ip := range whitelist {
		n, err := NormalizeOrigin(ip)
		if err == nil && n == origin {
			return true
		}
	}
	return false
}
