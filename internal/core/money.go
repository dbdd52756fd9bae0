package core

import (
	"fmt"
	"strconv"
	"strings"
)

const maxWholeEuros = (1<<63 - 1) / 100

// ParseDecimalToCents converts a positive decimal amount to cents.
//
// Dot and comma are both accepted as the decimal separator. Digits past the
// second decimal are rounded half-up on the third one. Signs, zero amounts and
// anything that is not plain digits return ErrInvalidAmount.
//
//	ParseDecimalToCents("12,34")  -> 1234
//	ParseDecimalToCents("12.346") -> 1235
//	ParseDecimalToCents(".5")     -> 50
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	whole, frac, _ := strings.Cut(s, ".")
	if s == "" || strings.Contains(frac, ".") || !digitsOnly(whole) || !digitsOnly(frac) {
		return 0, ErrInvalidAmount
	}
	if whole == "" {
		whole = "0"
	}

	euros, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || euros > maxWholeEuros {
		return 0, ErrInvalidAmount
	}

	var cents int64
	if len(frac) > 0 {
		cents = int64(frac[0]-'0') * 10
	}
	if len(frac) > 1 {
		cents += int64(frac[1] - '0')
	}
	if len(frac) > 2 && frac[2] >= '5' {
		cents++
	}

	total := euros*100 + cents
	if total <= 0 {
		return 0, ErrInvalidAmount
	}
	return total, nil
}

func digitsOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Euros returns the amount as a float for display only.
func (m Money) Euros() float64 {
	return float64(m.Cents) / 100.0
}

// String formats the amount as "€1.234,56", the way the list tables show it.
func (m Money) String() string {
	return FormatEuros(m.Cents)
}

// FormatEuros renders cents with a dot thousands separator and a decimal comma.
func FormatEuros(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := strconv.FormatInt(cents/100, 10)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%s€%s,%02d", sign, b.String(), cents%100)
}
