package openai

import (
	"fmt"
	"strings"

	"github.com/dininghall-ai/menu-search/internal/core/domain"
	"github.com/dininghall-ai/menu-search/internal/core/ports"
)

const intentSystemPrompt = `You are a semantic router for dining-hall food search. Output a structured intent with filters.
Map vague language to concrete constraints and keep results broad so multiple portions remain viable.

Return a strict JSON object with keys:
intent_type ("factual_lookup", "semantic_search" or "hybrid"), search_query (string),
filters (object with optional keys dining_halls, meals, dietary_restrictions, allergens_to_exclude,
nutritional_constraints, sort_by, item_name), reasoning (string). No markdown, no extra keys.

Portion Scaling Logic (CRUCIAL):
- If user asks for high protein or specific grams (e.g., 25g, 30g, 40g), DO NOT set a high min_protein.
- Instead, set min_protein to a unit floor of 8-10 grams to avoid filtering out moderate items.
- Also set sort_by="protein_desc" when protein targeting is implied.
- Calories: if user says "under/less than X calories", set max_calories to X.

Intent guidance:
- factual_lookup: precise, location/mealtime/diet stated ("chicken at Worcester dinner").
- semantic_search: vibe/feelings ("comfort food", "something spicy").
- hybrid: mixed vibe + constraints ("spicy food at Worcester", "40g protein dinner").

Filters guidance:
- dining_halls: capitalize known halls (Berkshire, Worcester, Franklin, Hampshire).
- dietary_restrictions: include diets from user profile or query (Vegan, Halal, Kosher, Gluten-Free, Vegetarian, Plant Based).
- allergens_to_exclude: explicit allergy mentions.
- nutritional_constraints: use keys like min_protein, max_protein, min_calories, max_calories.
- meals: include meal words (breakfast/lunch/dinner/late night/brunch).
- item_name: set only when the user names one specific dish.

Reasoning: briefly explain why filters were chosen (e.g., "User said gym -> high protein, so set min_protein 10 and sort by protein desc").`

func buildIntentUserMessage(query string, profile *domain.UserProfile) string {
	var lines []string
	if profile != nil {
		if len(profile.Diets) > 0 {
			lines = append(lines, "User diets: "+strings.Join(profile.Diets, ", "))
		}
		if len(profile.Allergies) > 0 {
			lines = append(lines, "Allergies to exclude: "+strings.Join(profile.Allergies, ", "))
		}
		if profile.Goal != "" {
			lines = append(lines, "Goal: "+profile.Goal)
		}
	}
	contextBlock := "(no profile provided)"
	if len(lines) > 0 {
		contextBlock = strings.Join(lines, "\n")
	}
	return "Query: " + query + "\nProfile: " + contextBlock
}

const sqlSystemPrompt = `You are a SQL query generator for a university dining hall menu database.

TABLE: dining_hall_menu
COLUMNS:
- id: integer (primary key)
- item: text (food name, e.g., "Grilled Chicken Breast", "Caesar Salad")
- dining_hall: text (one of: "Berkshire", "Worcester", "Franklin", "Hampshire")
- last_updated: date
- calories: float (can be NULL)
- serving_size: text
- fat_g: float
- sat_fat_g: float
- trans_fat_g: float
- cholesterol_mg: float
- sodium_mg: float
- carbs_g: float
- fiber_g: float
- sugars_g: float
- protein_g: float
- allergens: text[] (array, e.g., ARRAY['Milk', 'Eggs', 'Wheat'])
- diet_types: text[] (array, e.g., ARRAY['Vegan', 'Vegetarian', 'Halal', 'Kosher'])
- availability_today: text[] (array, e.g., ARRAY['breakfast', 'lunch', 'dinner'])
- ingredients: text[] (array of ingredient names, e.g., ARRAY['chicken', 'olive oil', 'garlic'])

POSTGRESQL ARRAY SYNTAX:
- Check if array contains value: 'value' = ANY(column_name)
- Check if arrays overlap: column_name && ARRAY['val1', 'val2']
- Check if array contains all values: column_name @> ARRAY['val1', 'val2']

RULES:
1. Return ONLY a valid PostgreSQL SELECT query - no explanations
2. Use single quotes for strings
3. Use ILIKE for case-insensitive text matching
4. Use = ANY(column) for checking if a value is in an array
5. ALWAYS add LIMIT 25 at the end
6. NEVER use DELETE, UPDATE, DROP, INSERT, TRUNCATE, ALTER, CREATE, or GRANT
7. Only SELECT from dining_hall_menu table
8. For "best" or "highest" queries, use ORDER BY with DESC
9. For "lowest" or "least" queries, use ORDER BY with ASC
10. Handle NULL values with COALESCE when ordering by nullable columns
11. CRITICAL: ALWAYS include "last_updated = CURRENT_DATE" in the WHERE clause to ensure only today's menu items are returned. This is MANDATORY for every query.

EXAMPLES:
User: "vegan lunch options"
SQL: SELECT * FROM dining_hall_menu WHERE last_updated = CURRENT_DATE AND 'Vegan' = ANY(diet_types) AND 'lunch' = ANY(availability_today) LIMIT 25

User: "high protein foods at Worcester"
SQL: SELECT * FROM dining_hall_menu WHERE last_updated = CURRENT_DATE AND dining_hall = 'Worcester' AND protein_g IS NOT NULL ORDER BY protein_g DESC LIMIT 25

User: "something with chicken"
SQL: SELECT * FROM dining_hall_menu WHERE last_updated = CURRENT_DATE AND ('chicken' = ANY(ingredients) OR item ILIKE '%chicken%') LIMIT 25

User: "low calorie breakfast options"
SQL: SELECT * FROM dining_hall_menu WHERE last_updated = CURRENT_DATE AND 'breakfast' = ANY(availability_today) AND calories IS NOT NULL ORDER BY calories ASC LIMIT 25

User: "gluten free options without nuts"
SQL: SELECT * FROM dining_hall_menu WHERE last_updated = CURRENT_DATE AND 'Gluten-Free' = ANY(diet_types) AND NOT ('Tree Nuts' = ANY(allergens) OR 'Peanuts' = ANY(allergens)) LIMIT 25

User: "what's for dinner at Franklin"
SQL: SELECT * FROM dining_hall_menu WHERE last_updated = CURRENT_DATE AND dining_hall = 'Franklin' AND 'dinner' = ANY(availability_today) LIMIT 25`

func buildSQLUserMessage(question string, hints []string) string {
	if len(hints) == 0 {
		return question
	}
	return question + "\n\nAdditional constraints that MUST be reflected in the query:\n- " + strings.Join(hints, "\n- ")
}

const answerSystemPrompt = `You are Dining Bot, a helpful assistant for UMass Dining.
Answer the user's question using ONLY the provided menu data below.
Do not make up or invent any food items.
If the answer isn't in the provided data, say so clearly.
Be concise, friendly, and include specific details like dining hall and nutritional information when relevant.
NEVER guess allergen information - only use what is explicitly provided in the menu data.`

func buildAnswerUserMessage(question string, answerCtx ports.AnswerContext) string {
	blocks := make([]string, 0, len(answerCtx.Items))
	for _, item := range answerCtx.Items {
		blocks = append(blocks, formatFoodItem(item))
	}

	message := fmt.Sprintf(`User Question: %s

Menu Data (retrieved from today's dining halls):
%s

Instructions:
- Answer the question using ONLY the menu data provided above
- Include specific details like dining hall name and nutritional values
- If the user asks for "best" options, prioritize items with higher protein or better nutritional profiles
- Be concise and helpful
- If the user has dietary constraints mentioned in their question, make sure to respect those
- NEVER infer or guess allergen data - only repeat exactly what is provided`,
		question, strings.Join(blocks, "\n\n---\n\n"))

	if status := answerCtx.DailyStatus; status != nil {
		message = fmt.Sprintf(`[Current Daily Status]
- Eaten: %.0f kcal (Goal: %d)
- Protein: %.0fg (Goal: %dg)
- REMAINING BUDGET: %.0f kcal, %.0fg protein

%s`,
			status.CaloriesTotal, status.CaloriesTarget,
			status.ProteinTotal, status.ProteinTarget,
			status.RemainingCalories, status.RemainingProtein,
			message)
	}

	if profile := answerCtx.Profile; profile != nil {
		var sb strings.Builder
		sb.WriteString("\nUser Profile:\n")
		if len(profile.Diets) > 0 {
			sb.WriteString("- Dietary restrictions: " + strings.Join(profile.Diets, ", ") + "\n")
		}
		if len(profile.Allergies) > 0 {
			sb.WriteString("- Allergies: " + strings.Join(profile.Allergies, ", ") + "\n")
		}
		if profile.Goal != "" {
			sb.WriteString("- Health goal: " + profile.Goal + "\n")
		}
		message = sb.String() + "\n" + message
	}

	if answerCtx.History != "" {
		message = "Conversation so far (for context, do not repeat verbatim):\n" + answerCtx.History + "\n\n" + message
	}
	return message
}

// formatFoodItem renders one menu row as model context. Absent nutrition is
// spelled out as N/A so the model never treats missing data as zero.
func formatFoodItem(item domain.MenuItem) string {
	return fmt.Sprintf(`Item: %s
Dining Hall: %s
Available Today: %s
Calories: %s
Protein: %s
Carbs: %s
Fat: %s
Sugar: %s
Allergens: %s
Diet Types: %s
Ingredients: %s`,
		item.Name,
		item.DiningHall,
		joinOr(item.Availability, "Unknown"),
		formatNutrient(item.Calories, ""),
		formatNutrient(item.ProteinG, "g"),
		formatNutrient(item.CarbsG, "g"),
		formatNutrient(item.FatG, "g"),
		formatNutrient(item.SugarsG, "g"),
		joinOr(item.Allergens, "None"),
		joinOr(item.DietTags, "None"),
		joinOr(item.Ingredients, "Not listed"),
	)
}

func formatNutrient(value *float64, unit string) string {
	if value == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%s", *value, unit)
}

func joinOr(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return strings.Join(values, ", ")
}

const ingredientsSystemPrompt = `You are a culinary expert. Given a food item name, list its likely ` +
	`main ingredients as a comma-separated list. Be concise and only list ` +
	`ingredients, not preparation methods. Return ONLY the comma-separated list.`

const noResultsAnswer = "I couldn't find any menu items matching your request for today. This could mean:\n\n" +
	"1. **No matching items available** - Try broadening your search or removing some filters.\n" +
	"2. **Menus not yet updated** - Today's menus may not have been scraped yet. Please check back later.\n\n" +
	"If you believe this is an error, try refreshing the page or checking back in a few minutes."
