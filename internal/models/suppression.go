package models

import (
	"strings"
	"time"
)

// SuppressionEntry is a do-not-contact record. Uniqueness is enforced on the
// normalized value; no two entries may represent the same contact.
type SuppressionEntry struct {
	Value   string    `db:"value" json:"value"`
	Reason  string    `db:"reason" json:"reason"`
	AddedAt time.Time `db:"added_at" json:"addedAt"`
}

// NewSuppressionEntry normalizes the contact value and stamps the entry.
func NewSuppressionEntry(value, reason string) *SuppressionEntry {
	return &SuppressionEntry{
		Value:   NormalizeContact(value),
		Reason:  reason,
		AddedAt: time.Now().UTC(),
	}
}

// NormalizeContact canonicalizes a recipient identifier so that cosmetic
// variants of the same contact compare equal. Emails are lowercased and
// trimmed, phone numbers keep only digits and a leading plus, and anything
// else (platform handles, profile slugs) is lowercased as-is.
func NormalizeContact(value string) string {
	value = strings.TrimSpace(value)
	if strings.Contains(value, "@") {
		return strings.ToLower(value)
	}
	if looksLikePhone(value) {
		return normalizePhone(value)
	}
	return strings.ToLower(value)
}

// NormalizeRecipient canonicalizes an approval recipient using its channel:
// only phone-addressed channels get digit normalization, so a handle like
// "linkedin:someone" is never reduced to its (nonexistent) digits.
func NormalizeRecipient(channel Channel, value string) string {
	value = strings.TrimSpace(value)
	if strings.Contains(value, "@") {
		return strings.ToLower(value)
	}
	if channel.UsesPhoneNumbers() {
		return normalizePhone(value)
	}
	return strings.ToLower(value)
}

func normalizePhone(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' || r == '+' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// looksLikePhone reports whether the value is made of digits plus common
// phone punctuation. Values with any other character are handles, not
// numbers.
func looksLikePhone(value string) bool {
	hasDigit := false
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case r == '+' || r == '-' || r == '(' || r == ')' || r == '.' || r == ' ':
		default:
			return false
		}
	}
	return hasDigit
}

// Decision is the outcome of a policy check (compliance or rate limit).
// A denied decision carries a human-readable reason; it is not an error.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Allow returns a permitting decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a blocking decision with the given reason.
func Deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}
