package handler

import (
	"fmt"
	"html/template"
	"time"
)

// TemplateFuncs returns a FuncMap with custom template functions
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"year": func() int {
			return time.Now().Year()
		},
		"formatCents": FormatCents,
	}
}

// FormatCents renders an integer cent amount as dollars, e.g. 1299 -> "$12.99".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
