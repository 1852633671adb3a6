package availability

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestFirstOpeningNoneWhenAllZero(t *testing.T) {
	t.Parallel()
	records := []Record{
		{Date: "2024-02-01", Meals: MealAvailability{}},
		{Date: "2024-02-02", Meals: MealAvailability{Breakfast: 0, Brunch: 0, Lunch: 0, Dinner: 0}},
		{Date: "2024-02-03", Meals: nil},
	}
	if r, ok := FirstOpening(records); ok {
		t.Fatalf("expected no opening, got %+v", r)
	}
	if _, ok := FirstOpening(nil); ok {
		t.Fatal("expected no opening for empty response")
	}
}

func TestFirstOpeningReturnsFirstInProviderOrder(t *testing.T) {
	t.Parallel()
	records := []Record{
		{Date: "2024-02-05", Meals: MealAvailability{}},
		{Date: "2024-02-04", Meals: MealAvailability{Lunch: 1}},
		{Date: "2024-02-01", Meals: MealAvailability{Dinner: 3}},
	}
	got, ok := FirstOpening(records)
	if !ok {
		t.Fatal("expected an opening")
	}
	if diff := cmp.Diff(records[1], got); diff != "" {
		t.Fatalf("FirstOpening mismatch (-want +got):\n%s", diff)
	}
}

func TestFirstOpeningEachMealQualifies(t *testing.T) {
	t.Parallel()
	for _, m := range Meals {
		m := m
		t.Run(m.String(), func(t *testing.T) {
			t.Parallel()
			rec := Record{Date: "2024-02-01", Meals: MealAvailability{m: 1}}
			if _, ok := FirstOpening([]Record{rec}); !ok {
				t.Fatalf("%s alone should be an opening", m)
			}
		})
	}
}

func TestAvailableOrder(t *testing.T) {
	t.Parallel()
	a := MealAvailability{Dinner: 2, Breakfast: 1}
	if diff := cmp.Diff([]Meal{Breakfast, Dinner}, a.Available()); diff != "" {
		t.Fatalf("Available mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMeal(t *testing.T) {
	t.Parallel()
	if m, ok := ParseMeal(" dinner "); !ok || m != Dinner {
		t.Fatalf("ParseMeal(dinner) = %v, %v", m, ok)
	}
	if _, ok := ParseMeal("Supper"); ok {
		t.Fatal("Supper is not a meal period")
	}
}

func TestFormatting(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("venue", -6*60*60)
	a := MealAvailability{Breakfast: 1, Dinner: 2}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"short date", ShortDate("2024-02-01", loc), "Thu, Feb 1"},
		{"short date with time suffix", ShortDate("2024-02-01T00:00:00", loc), "Thu, Feb 1"},
		{"short date unparseable", ShortDate("soon", loc), "soon"},
		{"long date", LongDate("2024-02-01", loc), "Thursday, February 1"},
		{"compact", CompactSummary(a), "Breakfast: 1 Dinner: 2"},
		{"compact empty", CompactSummary(MealAvailability{}), ""},
		{"full", FullSummary(a, " "), "Breakfast: 1 Brunch: 0 Lunch: 0 Dinner: 2"},
		{"spoken", SpokenMeals(MealAvailability{Breakfast: 1, Brunch: 1, Dinner: 4}), "breakfast, brunch and dinner"},
		{"spoken single", SpokenMeals(MealAvailability{Lunch: 1}), "lunch"},
		{"join two", JoinEnglish([]string{"lunch", "dinner"}), "lunch and dinner"},
		{"join none", JoinEnglish(nil), ""},
		{"log line", LogLine("Space 220", "2024-02-01", a), "Space 220 - 2024-02-01 Breakfast: 1 Brunch: 0 Lunch: 0 Dinner: 2"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}
