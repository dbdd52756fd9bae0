package http

import (
	"html/template"
	"strings"
	"time"

	"expensepro/internal/core"
)

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

var monthNames = [...]string{"All months", "January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December"}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"euros": core.FormatEuros,
		"money": func(m core.Money) string { return m.String() },
		"date":  func(d core.Date) string { return d.String() },
		"monthName": func(m int) string {
			if m < 0 || m >= len(monthNames) {
				return ""
			}
			return monthNames[m]
		},
		"ms": func(d time.Duration) int64 { return d.Milliseconds() },
	}
}
