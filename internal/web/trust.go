package web

import (
	"net/url"
	"strings"
)

// Trust score bands.
const (
	trustHigh    = 0.9
	trustNeutral = 0.5
	trustBlocked = 0.0
)

// TrustPolicy scores domains by suffix lists. Blocked domains score 0 and
// are never ingested into the knowledge base.
type TrustPolicy struct {
	TrustedSuffixes []string
	BlockedSuffixes []string
}

// DefaultTrustPolicy trusts institutional top-level domains.
func DefaultTrustPolicy() TrustPolicy {
	return TrustPolicy{
		TrustedSuffixes: []string{".gov", ".edu", ".org"},
	}
}

// Score returns the trust score for a domain.
func (p TrustPolicy) Score(domain string) float64 {
	domain = strings.ToLower(domain)
	for _, suffix := range p.BlockedSuffixes {
		if matchesSuffix(domain, suffix) {
			return trustBlocked
		}
	}
	for _, suffix := range p.TrustedSuffixes {
		if matchesSuffix(domain, suffix) {
			return trustHigh
		}
	}
	return trustNeutral
}

// Blocked reports whether the domain is on the block list.
func (p TrustPolicy) Blocked(domain string) bool {
	return p.Score(domain) == trustBlocked
}

// matchesSuffix matches either a TLD-style suffix (".org") or a full
// domain with subdomains ("example.com" matches "docs.example.com").
func matchesSuffix(domain, suffix string) bool {
	suffix = strings.ToLower(suffix)
	if strings.HasPrefix(suffix, ".") {
		return strings.HasSuffix(domain, suffix)
	}
	return domain == suffix || strings.HasSuffix(domain, "."+suffix)
}

// DomainOf extracts the hostname from a URL, empty on parse failure.
func DomainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
