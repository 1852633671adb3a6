// Package availability models per-date meal availability and decides whether
// a provider response contains a bookable opening.
package availability

import "strings"

// Meal is a bookable meal period.
type Meal int

const (
	Breakfast Meal = iota
	Brunch
	Lunch
	Dinner
)

// Meals lists every meal period in display order.
var Meals = []Meal{Breakfast, Brunch, Lunch, Dinner}

func (m Meal) String() string {
	switch m {
	case Breakfast:
		return "Breakfast"
	case Brunch:
		return "Brunch"
	case Lunch:
		return "Lunch"
	case Dinner:
		return "Dinner"
	default:
		return "Unknown"
	}
}

// ParseMeal maps a provider label (case-insensitive) to a Meal.
func ParseMeal(s string) (Meal, bool) {
	for _, m := range Meals {
		if strings.EqualFold(strings.TrimSpace(s), m.String()) {
			return m, true
		}
	}
	return 0, false
}

// MealAvailability maps a meal period to its opening count.
// A missing key and a zero count both mean "no availability".
type MealAvailability map[Meal]int

func (a MealAvailability) Get(m Meal) int { return a[m] }

// Any reports whether at least one meal period is non-zero.
func (a MealAvailability) Any() bool {
	for _, m := range Meals {
		if a[m] != 0 {
			return true
		}
	}
	return false
}

// Available returns the non-zero meal periods in display order.
func (a MealAvailability) Available() []Meal {
	out := make([]Meal, 0, len(Meals))
	for _, m := range Meals {
		if a[m] != 0 {
			out = append(out, m)
		}
	}
	return out
}

// Record is one date of a provider openings response.
type Record struct {
	Date  string
	Meals MealAvailability
}

// FirstOpening returns the first record, in provider order, with any bookable
// meal period. Provider order is trusted; records are not sorted by date.
func FirstOpening(records []Record) (Record, bool) {
	for _, r := range records {
		if r.Meals.Any() {
			return r, true
		}
	}
	return Record{}, false
}
