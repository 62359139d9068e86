package utils

import (
	"regexp"
	"strings"
)

var phoneRegex = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
var nonPhoneChars = regexp.MustCompile(`[^\d+]`)

func IsValidPhone(phone string) bool {
	cleaned := nonPhoneChars.ReplaceAllString(phone, "")
	return phoneRegex.MatchString(cleaned)
}

// NormalizePhone strips spaces, dashes and parentheses and ensures a leading +.
func NormalizePhone(phone string) string {
	normalized := nonPhoneChars.ReplaceAllString(phone, "")

	if !strings.HasPrefix(normalized, "+") {
		normalized = "+" + normalized
	}

	return normalized
}

func MaskPhone(phone string) string {
	if len(phone) < 4 {
		return phone
	}

	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
