package privacy

import (
	"math"
	"unicode"
)

// Category is one named class of sensitive data the filter recognises.
type Category struct {
	// ID is the stable name reported by Report, e.g. "email".
	ID string `koanf:"id" toml:"id"`

	// Pattern is the RE2 expression that locates candidates.
	Pattern string `koanf:"pattern" toml:"pattern"`

	// Marker replaces every accepted match.
	Marker string `koanf:"marker" toml:"marker"`

	// Entropy is the minimum Shannon entropy, in bits per character, a match
	// needs to count. Matches must also mix letters and digits. 0 disables.
	Entropy float64 `koanf:"entropy" toml:"entropy"`
}

// Category IDs in application order.
const (
	CategoryEmail              = "email"
	CategoryPhone              = "phone"
	CategoryCreditCard         = "credit_card"
	CategorySSN                = "ssn"
	CategoryIPAddress          = "ip_address"
	CategoryAPIKey             = "api_key"
	CategoryURLWithCredentials = "url_with_credentials"

	// CategorySecret is reported for gitleaks findings when secret scanning
	// is enabled.
	CategorySecret = "secret"
)

// DefaultCategories returns the built-in categories in their fixed order.
func DefaultCategories() []Category {
	return []Category{
		{
			ID:      CategoryEmail,
			Pattern: `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`,
			Marker:  "[EMAIL REDACTED]",
		},
		{
			ID:      CategoryPhone,
			Pattern: `(?:\+\d{1,3}[\s-]?)?(?:\(\d{3}\)|\b\d{3})[\s.-]?\d{3}[\s.-]?\d{4}\b`,
			Marker:  "[PHONE REDACTED]",
		},
		{
			ID:      CategoryCreditCard,
			Pattern: `\b(?:\d{4}[\s-]?){3}\d{4}\b`,
			Marker:  "[CREDIT CARD REDACTED]",
		},
		{
			ID:      CategorySSN,
			Pattern: `\b\d{3}-?\d{2}-?\d{4}\b`,
			Marker:  "[SSN REDACTED]",
		},
		{
			ID:      CategoryIPAddress,
			Pattern: `\b(?:\d{1,3}\.){3}\d{1,3}\b`,
			Marker:  "[IP ADDRESS REDACTED]",
		},
		{
			ID:      CategoryAPIKey,
			Pattern: `\b[A-Za-z0-9_-]{20,60}\b`,
			Marker:  "[API KEY REDACTED]",
			Entropy: 3.5,
		},
		{
			ID:      CategoryURLWithCredentials,
			Pattern: `https?://[^\s:/@]+:[^\s@/]+@\S+`,
			Marker:  "[URL WITH CREDENTIALS REDACTED]",
		},
	}
}

// secretMarker replaces gitleaks findings.
const secretMarker = "[SECRET REDACTED]"

// highEntropy reports whether s mixes letters and digits and carries at
// least min bits of Shannon entropy per character.
func highEntropy(s string, min float64) bool {
	var letters, digits bool
	counts := make(map[rune]int, len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			letters = true
		case unicode.IsDigit(r):
			digits = true
		}
		counts[r]++
	}
	if !letters || !digits {
		return false
	}
	return shannonEntropy(counts, len(s)) >= min
}

func shannonEntropy(counts map[rune]int, n int) float64 {
	if n == 0 {
		return 0
	}
	var h float64
	for _, c := range counts {
		p := float64(c) / float64(n)
		h -= p * math.Log2(p)
	}
	return h
}
