package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"tablewatch/internal/availability"
)

// flexString accepts a JSON string or number (venue IDs come back as either).
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("venue id: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

// mealCount normalizes the untyped upstream meal value at the ingestion boundary:
// numbers and numeric strings keep their value, null/empty become 0, and any
// other non-empty string counts as one opening.
type mealCount int

func (m *mealCount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*m = 0
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*m = mealCount(countFromString(s))
		return nil
	case 't', 'f':
		var v bool
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		if v {
			*m = 1
		} else {
			*m = 0
		}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("meal count: %w", err)
	}
	*m = mealCount(int(f))
	if f != 0 && *m == 0 {
		// Fractional non-zero counts still signal availability.
		*m = 1
	}
	return nil
}

// countFromString maps a string meal count to an int. Only an exact "0" or
// "" means no openings; any other string counts as at least one.
func countFromString(s string) int {
	if s == "" || s == "0" {
		return 0
	}
	t := strings.TrimSpace(s)
	if n, err := strconv.Atoi(t); err == nil && n > 0 {
		return n
	}
	if f, err := strconv.ParseFloat(t, 64); err == nil && int(f) > 0 {
		return int(f)
	}
	return 1
}

type venueDTO struct {
	Name      string     `json:"Name"`
	ID        flexString `json:"ID"`
	DisneyURL string     `json:"DisneyUrl"`
}

type mealOpeningsDTO struct {
	Breakfast mealCount `json:"Breakfast"`
	Brunch    mealCount `json:"Brunch"`
	Lunch     mealCount `json:"Lunch"`
	Dinner    mealCount `json:"Dinner"`
}

type openingDTO struct {
	Date         string          `json:"Date"`
	MealOpenings mealOpeningsDTO `json:"MealOpenings"`
}

func (o openingDTO) record() availability.Record {
	meals := availability.MealAvailability{}
	set := func(m availability.Meal, v mealCount) {
		if v != 0 {
			meals[m] = int(v)
		}
	}
	set(availability.Breakfast, o.MealOpenings.Breakfast)
	set(availability.Brunch, o.MealOpenings.Brunch)
	set(availability.Lunch, o.MealOpenings.Lunch)
	set(availability.Dinner, o.MealOpenings.Dinner)
	return availability.Record{Date: o.Date, Meals: meals}
}
