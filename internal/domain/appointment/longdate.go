package appointment

import (
	"fmt"
	"strings"
	"time"
)

var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// FormatLongDate renders a YYYY-MM-DD date the way the embassy locale spells
// it out, e.g. "10 de junio de 2024" for es-* locales and "June 10, 2024" otherwise.
func FormatLongDate(date, locale string) (string, error) {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", date, err)
	}
	lang, _, _ := strings.Cut(strings.ToLower(locale), "-")
	if lang == "es" {
		return fmt.Sprintf("%d de %s de %d", d.Day(), spanishMonths[d.Month()-1], d.Year()), nil
	}
	return d.Format("January 2, 2006"), nil
}

// LongDateOrRaw is FormatLongDate for message building, where a bad date
// should still show up verbatim rather than fail the message.
func LongDateOrRaw(date, locale string) string {
	s, err := FormatLongDate(date, locale)
	if err != nil {
		return date
	}
	return s
}
