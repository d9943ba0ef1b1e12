package service

import (
	"strings"
	"unicode/utf8"
)

// MaxLabelLength bounds a normalized seat label.
const MaxLabelLength = 32

// NormalizeLabel trims surrounding whitespace and upper-cases a seat label.
func NormalizeLabel(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// NormalizeLabels normalizes a batch and rejects empty batches, empty or
// oversized labels, and labels that collide after normalization.  Order
// is preserved.
func NormalizeLabels(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, validation("at least one seat label is required")
	}
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		label := NormalizeLabel(r)
		if label == "" {
			return nil, validation("seat label must not be empty")
		}
		if utf8.RuneCountInString(label) > MaxLabelLength {
			return nil, validation("seat label %q exceeds %d characters", label, MaxLabelLength)
		}
		if _, dup := seen[label]; dup {
			return nil, validation("duplicate seat label %q in request", label)
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out, nil
}
