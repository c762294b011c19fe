package models

import "strings"

const keyPrefix = "kycgate:ratelimit"

// SanitizeKeySegment escapes the key delimiter so a client-controlled segment
// (an IPv6 address, for one) cannot spill into an adjacent segment.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// NewIPKey builds the bucket key for one client address within a scope.
func NewIPKey(scope, ip string) string {
	return keyPrefix + ":" + SanitizeKeySegment(scope) + ":ip:" + SanitizeKeySegment(ip)
}
