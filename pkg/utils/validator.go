package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	// MaxTitleLength bounds claim titles
	MaxTitleLength = 200

	// MaxReceiptLength bounds the stored receipt reference
	MaxReceiptLength = 2048
)

var controlChars = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)

// IsBlank reports whether s is empty or whitespace only
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// ValidateTitle validates a claim title
func ValidateTitle(title string) error {
	if IsBlank(title) {
		return fmt.Errorf("title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return fmt.Errorf("title exceeds %d characters", MaxTitleLength)
	}
	return nil
}

// ValidateAmount validates a reimbursement amount
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be positive: %s", amount.String())
	}
	return nil
}

// ValidateReceiptRef bounds the receipt reference. The value is opaque: an
// http(s) URL, an object-store key or a storage-relative path are all accepted.
func ValidateReceiptRef(ref string) error {
	if utf8.RuneCountInString(ref) > MaxReceiptLength {
		return fmt.Errorf("receipt reference exceeds %d characters", MaxReceiptLength)
	}
	return nil
}

// SanitizeString removes control characters (newlines and tabs are kept)
func SanitizeString(s string) string {
	return controlChars.ReplaceAllString(s, "")
}
