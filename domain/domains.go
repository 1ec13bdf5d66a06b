package domain

import "strings"

// NormalizeHost lowercases a host name, trims whitespace and strips a
// trailing dot. Returns "" for input that cannot name a host.
func NormalizeHost(host string) string {
	host = strings.TrimSpace(strings.ToLower(host))
	return strings.TrimSuffix(host, ".")
}

// MatchDomain reports whether a policy domain pattern covers host.
// An exact pattern matches case-insensitively. A pattern with a leading
// wildcard segment ("*.example.com") matches any strict subdomain
// ("a.example.com", "a.b.example.com") but never the bare base domain:
// blocking "example.com" itself takes an exact record. Pure function, no
// cache involvement.
func MatchDomain(pattern, host string) bool {
	pattern = NormalizeHost(pattern)
	host = NormalizeHost(host)

	if pattern == "" || host == "" {
		return false
	}

	if !strings.HasPrefix(pattern, "*.") {
		return pattern == host
	}

	base := strings.Split(pattern[2:], ".")
	segs := strings.Split(host, ".")

	// A wildcard match needs at least one extra leading segment
	if len(segs) <= len(base) {
		return false
	}

	for i := 1; i <= len(base); i++ {
		if segs[len(segs)-i] != base[len(base)-i] {
			return false
		}
	}
	return true
}
