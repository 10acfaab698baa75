package domain

import (
	"testing"
	"time"
)

func TestNormalizeDietsMapsAndDeduplicates(t *testing.T) {
	got := NormalizeDiets([]string{"vegan", "Plant-Based", "kosher", "Vegan", "paleo"})
	want := []string{"Plant Based", "Kosher", "paleo"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestNormalizeDietsEmpty(t *testing.T) {
	if got := NormalizeDiets(nil); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
}

func TestTargetsForGoal(t *testing.T) {
	cases := []struct {
		goal string
		want GoalTargets
	}{
		{"gain muscle", GoalTargets{2600, 160, 300, 85}},
		{"  Lose Weight ", GoalTargets{1800, 140, 150, 60}},
		{"bulk up for the season", GoalTargets{2600, 160, 300, 85}},
		{"cutting for summer", GoalTargets{1800, 140, 150, 60}},
		{"maintain current weight", GoalTargets{2200, 110, 275, 73}},
		{"run a marathon", GoalTargets{2200, 100, 275, 73}},
		{"", GoalTargets{2200, 100, 275, 73}},
	}
	for _, tc := range cases {
		if got := TargetsForGoal(tc.goal); got != tc.want {
			t.Fatalf("goal %q: expected %+v, got %+v", tc.goal, tc.want, got)
		}
	}
}

func TestStatusForClampsRemainingAtZero(t *testing.T) {
	protein := 80.0
	entries := []DietEntry{
		{Item: "Burger", Calories: 1500, ProteinG: &protein},
		{Item: "Fries", Calories: 900},
	}
	status := StatusFor(entries, 1800, 140)
	if status.CaloriesTotal != 2400 || status.ProteinTotal != 80 {
		t.Fatalf("unexpected totals: %+v", status)
	}
	if status.RemainingCalories != 0 {
		t.Fatalf("expected remaining calories clamped at 0, got %v", status.RemainingCalories)
	}
	if status.RemainingProtein != 60 {
		t.Fatalf("expected 60g protein remaining, got %v", status.RemainingProtein)
	}
}

func TestAvailableFor(t *testing.T) {
	item := MenuItem{Availability: []string{"Lunch", "dinner"}}
	if !item.AvailableFor([]string{"DINNER"}) {
		t.Fatalf("expected case-insensitive meal match")
	}
	if item.AvailableFor([]string{"breakfast"}) {
		t.Fatalf("expected no match for breakfast")
	}
	if !item.AvailableFor(nil) {
		t.Fatalf("expected empty meal list to match everything")
	}
}

func TestEmbeddingText(t *testing.T) {
	plain := MenuItem{Name: "Tomato Soup"}
	if got := plain.EmbeddingText(); got != "Tomato Soup" {
		t.Fatalf("expected bare name, got %q", got)
	}
	rich := MenuItem{Name: "Tomato Soup", Ingredients: []string{"tomato", "basil"}}
	if got := rich.EmbeddingText(); got != "Tomato Soup | Ingredients: tomato, basil" {
		t.Fatalf("unexpected embedding text %q", got)
	}
}

func TestEffectiveDateDefaultsToToday(t *testing.T) {
	var req SearchRequest
	got := req.EffectiveDate()
	now := time.Now()
	if got.Year() != now.Year() || got.Month() != now.Month() || got.Day() != now.Day() {
		t.Fatalf("expected today, got %v", got)
	}
	if got.Hour() != 0 || got.Minute() != 0 {
		t.Fatalf("expected midnight truncation, got %v", got)
	}
}
