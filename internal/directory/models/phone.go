package models

import (
	"strings"

	dErrors "beacon/pkg/domain-errors"
)

// MaxPhoneLength bounds a normalized phone number.
const MaxPhoneLength = 32

var phoneFormatting = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "", "\t", "")

// NormalizePhone strips formatting characters. The result is the lookup key
// used by every store; no digit check is applied.
func NormalizePhone(raw string) (string, error) {
	phone := phoneFormatting.Replace(strings.TrimSpace(raw))
	if phone == "" {
		return "", dErrors.New(dErrors.CodeValidation, "phone number is required")
	}
	if len(phone) > MaxPhoneLength {
		return "", dErrors.New(dErrors.CodeValidation, "phone number is too long")
	}
	return phone, nil
}

// MaskPhone hides the middle of a number for logs.
func MaskPhone(phone string) string {
	if len(phone) <= 8 {
		return phone[:min(2, len(phone))] + "***"
	}
	return phone[:5] + "***" + phone[len(phone)-4:]
}
