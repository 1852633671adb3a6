package availability

import (
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// ParseDate parses a provider date ("2024-02-01", optionally with a time suffix)
// as midnight in loc.
func ParseDate(date string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	s := strings.TrimSpace(date)
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ShortDate renders "Thu, Feb 1". Unparseable dates are returned unchanged.
func ShortDate(date string, loc *time.Location) string {
	t, ok := ParseDate(date, loc)
	if !ok {
		return date
	}
	return t.Format("Mon, Jan 2")
}

// LongDate renders "Thursday, February 1". Unparseable dates are returned unchanged.
func LongDate(date string, loc *time.Location) string {
	t, ok := ParseDate(date, loc)
	if !ok {
		return date
	}
	return t.Format("Monday, January 2")
}

// CompactSummary renders only the non-zero meal periods: "Lunch: 1 Dinner: 2".
func CompactSummary(a MealAvailability) string {
	parts := make([]string, 0, len(Meals))
	for _, m := range a.Available() {
		parts = append(parts, m.String()+": "+strconv.Itoa(a[m]))
	}
	return strings.Join(parts, " ")
}

// FullSummary renders every meal period including zeros:
// "Breakfast: 0 Brunch: 0 Lunch: 1 Dinner: 2".
func FullSummary(a MealAvailability, sep string) string {
	parts := make([]string, 0, len(Meals))
	for _, m := range Meals {
		parts = append(parts, m.String()+": "+strconv.Itoa(a[m]))
	}
	return strings.Join(parts, sep)
}

// JoinEnglish joins items as "a, b and c". A single item has no conjunction.
func JoinEnglish(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}

// SpokenMeals renders the available meal periods for speech: "breakfast, brunch and dinner".
func SpokenMeals(a MealAvailability) string {
	avail := a.Available()
	names := make([]string, 0, len(avail))
	for _, m := range avail {
		names = append(names, strings.ToLower(m.String()))
	}
	return JoinEnglish(names)
}

// LogLine renders an opening for logs: "<venue> - <date> Breakfast: 0 Brunch: 0 Lunch: 1 Dinner: 2".
func LogLine(venue, date string, a MealAvailability) string {
	return venue + " - " + date + " " + FullSummary(a, " ")
}
