// Package models defines the server-side records persisted by plantgate.
package models

import (
	"slices"
	"strings"
	"time"
)

// Plant is a registered remote site. Email is its identity key. A plant is
// verified once at least one origin has been whitelisted for it.
type Plant struct {
	ID             string
	Name           string
	Email          string
	PasswordHash   string
	WhitelistedIPs []string
	IsVerified     bool
	CreatedAt      time.Time
}

// IsWhitelisted reports whether ip is one of the plant's trusted origins.
func (p *Plant) IsWhitelisted(ip string) bool {
	return slices.Contains(p.WhitelistedIPs, ip)
}

// NormalizeEmail trims and lower-cases an email so it can be used as a key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
