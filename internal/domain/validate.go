package domain

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxQuantity bounds item quantities and aggregate totals to the range of
	// the quantity column.
	MaxQuantity = math.MaxInt32

	// MaxTokenLength is the width of the qr_code column.
	MaxTokenLength = 64

	// MaxLabelLength bounds item names, rack ids and similar free text.
	MaxLabelLength = 255
)

// CheckQuantity rejects quantities outside 0..MaxQuantity.
func CheckQuantity(q int) error {
	if q < 0 || q > MaxQuantity {
		return fmt.Errorf("%w: %d (allowed 0..%d)", ErrInvalidQuantity, q, MaxQuantity)
	}
	return nil
}

// CheckToken validates a scan token that is already trimmed.
func CheckToken(token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	if utf8.RuneCountInString(token) > MaxTokenLength {
		return fmt.Errorf("%w: token longer than %d characters", ErrValidation, MaxTokenLength)
	}
	return CheckText("token", token)
}

// CheckText rejects control characters. Audit history is rendered one event
// per line, so a newline inside a rack id or note would forge extra entries.
func CheckText(field, value string) error {
	if utf8.RuneCountInString(value) > MaxLabelLength {
		return fmt.Errorf("%w: %s longer than %d characters", ErrValidation, field, MaxLabelLength)
	}
	if strings.IndexFunc(value, unicode.IsControl) >= 0 {
		return fmt.Errorf("%w: %s contains control characters", ErrValidation, field)
	}
	return nil
}
