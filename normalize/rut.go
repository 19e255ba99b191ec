package normalize

import (
	"strings"
	"unicode"
)

// RUT normalizes a Chilean national id for comparison. Dots, dashes and
// whitespace are removed, leading zeros are dropped and the check character
// is uppercased: "12.345.678-k" and "12345678K" both become "12345678K".
func RUT(text string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(text) {
		if unicode.IsDigit(r) || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	return strings.TrimLeft(b.String(), "0")
}

// ValidRUT reports whether text carries a correct modulo-11 check character.
func ValidRUT(text string) bool {
	n := RUT(text)
	if len(n) < 2 {
		return false
	}
	body, check := n[:len(n)-1], n[len(n)-1]
	for _, r := range body {
		if r < '0' || r > '9' {
			return false
		}
	}
	return checkDigit(body) == check
}

func checkDigit(body string) byte {
	sum, factor := 0, 2
	for i := len(body) - 1; i >= 0; i-- {
		sum += int(body[i]-'0') * factor
		factor++
		if factor > 7 {
			factor = 2
		}
	}
	switch r := 11 - sum%11; r {
	case 11:
		return '0'
	case 10:
		return 'K'
	default:
		return byte('0' + r)
	}
}
