package domain

import (
	"strings"
	"time"
)

// UserProfile is a read-only snapshot of a user's dietary profile. It is
// owned by the user-management subsystem; the retrieval core receives a copy
// per request and never persists it.
type UserProfile struct {
	Diets     []string `json:"diets"`
	Allergies []string `json:"allergies"`
	Goal      string   `json:"goal,omitempty"`
}

// dietNameMapping folds user-facing synonyms onto the diet_types vocabulary
// the menu rows actually carry.
var dietNameMapping = map[string]string{
	"vegan":       "Plant Based",
	"plant based": "Plant Based",
	"plant-based": "Plant Based",
	"vegetarian":  "Vegetarian",
	"halal":       "Halal",
	"kosher":      "Kosher",
	"gluten-free": "Gluten-Free",
	"gluten free": "Gluten-Free",
}

// NormalizeDiet maps a user-facing diet name to its canonical tag. Unknown
// names pass through unchanged.
func NormalizeDiet(diet string) string {
	if canonical, ok := dietNameMapping[strings.ToLower(strings.TrimSpace(diet))]; ok {
		return canonical
	}
	return diet
}

// NormalizeDiets maps and deduplicates a list of diet names, preserving
// first-seen order.
func NormalizeDiets(diets []string) []string {
	if len(diets) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(diets))
	out := make([]string, 0, len(diets))
	for _, diet := range diets {
		canonical := NormalizeDiet(diet)
		key := strings.ToLower(canonical)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, canonical)
	}
	return out
}

// GoalTargets are daily nutrition targets derived from a free-text goal.
type GoalTargets struct {
	Calories int
	ProteinG int
	CarbsG   int
	FatG     int
}

var defaultTargets = GoalTargets{Calories: 2200, ProteinG: 100, CarbsG: 275, FatG: 73}

var goalPresets = map[string]GoalTargets{
	"lose weight": {1800, 140, 150, 60},
	"weight loss": {1800, 140, 150, 60},
	"cutting":     {1800, 160, 130, 55},
	"maintain":    {2200, 110, 275, 73},
	"maintenance": {2200, 110, 275, 73},
	"gain muscle": {2600, 160, 300, 85},
	"muscle gain": {2600, 160, 300, 85},
	"bulk":        {2800, 180, 330, 90},
}

// TargetsForGoal maps a textual goal to daily targets. Exact preset matches
// win; otherwise common keywords are checked; otherwise defaults apply.
func TargetsForGoal(goal string) GoalTargets {
	normalized := strings.ToLower(strings.TrimSpace(goal))
	if normalized == "" {
		return defaultTargets
	}
	if preset, ok := goalPresets[normalized]; ok {
		return preset
	}
	switch {
	case strings.Contains(normalized, "lose") || strings.Contains(normalized, "cut"):
		return goalPresets["lose weight"]
	case strings.Contains(normalized, "gain") || strings.Contains(normalized, "bulk"):
		return goalPresets["gain muscle"]
	case strings.Contains(normalized, "maintain"):
		return goalPresets["maintain"]
	}
	return defaultTargets
}

// DietEntry is one logged food item in a user's diet history.
type DietEntry struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Date      time.Time `json:"date"`
	Item      string    `json:"item"`
	Mealtime  string    `json:"mealtime"`
	Calories  float64   `json:"calories"`
	ProteinG  *float64  `json:"protein_g,omitempty"`
	Allergens []string  `json:"allergens"`
	DietTags  []string  `json:"diet_types"`
}

// DailyStatus summarizes today's consumption against the user's targets.
type DailyStatus struct {
	CaloriesTotal     float64 `json:"calories_total"`
	CaloriesTarget    int     `json:"calories_target"`
	ProteinTotal      float64 `json:"protein_total"`
	ProteinTarget     int     `json:"protein_target"`
	RemainingCalories float64 `json:"remaining_calories"`
	RemainingProtein  float64 `json:"remaining_protein"`
}

// StatusFor sums logged entries against goal-derived (or explicit) targets.
func StatusFor(entries []DietEntry, calTarget, proteinTarget int) DailyStatus {
	var calories, protein float64
	for _, entry := range entries {
		calories += entry.Calories
		if entry.ProteinG != nil {
			protein += *entry.ProteinG
		}
	}
	status := DailyStatus{
		CaloriesTotal:  calories,
		CaloriesTarget: calTarget,
		ProteinTotal:   protein,
		ProteinTarget:  proteinTarget,
	}
	if remaining := float64(calTarget) - calories; remaining > 0 {
		status.RemainingCalories = remaining
	}
	if remaining := float64(proteinTarget) - protein; remaining > 0 {
		status.RemainingProtein = remaining
	}
	return status
}
