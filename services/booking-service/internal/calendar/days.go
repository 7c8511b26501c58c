package calendar

import "time"

// Locale selects the display language for day names.
type Locale int

const (
	English Locale = iota
	Turkish
)

var dayNames = [...][7]string{
	English: {"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
	Turkish: {"Pazar", "Pazartesi", "Salı", "Çarşamba", "Perşembe", "Cuma", "Cumartesi"},
}

// DayName looks up the display name of w. Out-of-range input falls back to time.Weekday's String.
func DayName(w time.Weekday, l Locale) string {
	if l < 0 || int(l) >= len(dayNames) || w < time.Sunday || w > time.Saturday {
		return w.String()
	}
	return dayNames[l][w]
}

// ParseLocale maps "tr"/"tr-TR" to Turkish and anything else to English.
func ParseLocale(s string) Locale {
	if len(s) >= 2 && (s[:2] == "tr" || s[:2] == "TR") {
		return Turkish
	}
	return English
}
