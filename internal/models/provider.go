package models

import "strings"

// Provider identifies the external feed a result came from.
type Provider string

const (
	// ProviderPF is the post-race runner feed.
	ProviderPF Provider = "PF"
	// ProviderRA is the crawler-based results feed.
	ProviderRA Provider = "RA"
	// ProviderSkynet is the live-price feed. It never produces results.
	ProviderSkynet Provider = "SKYNET"
)

// NormalizeProvider upper-cases and trims a provider code.
func NormalizeProvider(s string) Provider {
	return Provider(strings.ToUpper(strings.TrimSpace(s)))
}

// ProviderRank returns the precedence of p. Higher wins.
// PF > RA > any other provider.
func ProviderRank(p Provider) int {
	switch NormalizeProvider(string(p)) {
	case ProviderPF:
		return 2
	case ProviderRA:
		return 1
	default:
		return 0
	}
}

// CompareProviders returns -1, 0 or +1 as a ranks below, equal to, or above b.
func CompareProviders(a, b Provider) int {
	ra, rb := ProviderRank(a), ProviderRank(b)
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	default:
		return 0
	}
}

// Outranks reports whether p has strictly higher precedence than other.
func (p Provider) Outranks(other Provider) bool {
	return CompareProviders(p, other) > 0
}

// MayOverwrite reports whether data from p is allowed to replace data from existing.
// Only equal or higher precedence may overwrite.
func (p Provider) MayOverwrite(existing Provider) bool {
	return CompareProviders(p, existing) >= 0
}
