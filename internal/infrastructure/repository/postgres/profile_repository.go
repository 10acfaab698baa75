package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/dininghall-ai/menu-search/internal/core/domain"
)

// ProfileRepository reads the user-profile snapshot the retrieval core
// consumes: diet preferences, allergies, goal text, and diet history.
type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) GetUserProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1`, userID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrUserNotFound, "get user profile", fmt.Errorf("user %s", userID))
		}
		return nil, fmt.Errorf("select user: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT constraint_name, constraint_type
FROM dietary_constraints
WHERE user_id = $1
ORDER BY id
`, userID)
	if err != nil {
		return nil, fmt.Errorf("select dietary constraints: %w", err)
	}
	defer rows.Close()

	profile := &domain.UserProfile{}
	var rawDiets []string
	for rows.Next() {
		var name, kind string
		if err := rows.Scan(&name, &kind); err != nil {
			return nil, fmt.Errorf("scan dietary constraint: %w", err)
		}
		switch kind {
		case "allergy":
			profile.Allergies = append(profile.Allergies, name)
		case "preference":
			rawDiets = append(rawDiets, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dietary constraints: %w", err)
	}
	profile.Diets = domain.NormalizeDiets(rawDiets)

	var goal sql.NullString
	err = r.db.QueryRowContext(ctx, `
SELECT goal FROM goals WHERE user_id = $1 ORDER BY id LIMIT 1
`, userID).Scan(&goal)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("select goal: %w", err)
	}
	profile.Goal = goal.String

	return profile, nil
}

// GoalTargets prefers explicit per-user calorie/protein targets, falling
// back to the goal-text preset table.
func (r *ProfileRepository) GoalTargets(ctx context.Context, userID string) (domain.GoalTargets, error) {
	var goal sql.NullString
	var calTarget, proteinTarget sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
SELECT goal, calories_target, protein_target
FROM goals
WHERE user_id = $1
ORDER BY id
LIMIT 1
`, userID).Scan(&goal, &calTarget, &proteinTarget)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TargetsForGoal(""), nil
		}
		return domain.GoalTargets{}, fmt.Errorf("select goal targets: %w", err)
	}

	targets := domain.TargetsForGoal(goal.String)
	if calTarget.Valid && proteinTarget.Valid {
		targets.Calories = int(calTarget.Int64)
		targets.ProteinG = int(proteinTarget.Int64)
	}
	return targets, nil
}

func (r *ProfileRepository) ListDietHistory(ctx context.Context, userID string, day time.Time) ([]domain.DietEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, user_id, entry_date, item, mealtime, calories, protein_g, allergens, diet_types
FROM diet_history
WHERE user_id = $1 AND entry_date = $2
ORDER BY id
`, userID, domain.CivilDate(day))
	if err != nil {
		return nil, fmt.Errorf("select diet history: %w", err)
	}
	defer rows.Close()

	var entries []domain.DietEntry
	for rows.Next() {
		var entry domain.DietEntry
		var protein sql.NullFloat64
		err := rows.Scan(
			&entry.ID, &entry.UserID, &entry.Date, &entry.Item, &entry.Mealtime,
			&entry.Calories, &protein, pq.Array(&entry.Allergens), pq.Array(&entry.DietTags),
		)
		if err != nil {
			return nil, fmt.Errorf("scan diet entry: %w", err)
		}
		entry.ProteinG = nullableFloat(protein)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diet history: %w", err)
	}
	return entries, nil
}

func (r *ProfileRepository) AddDietHistory(ctx context.Context, entry *domain.DietEntry) error {
	if entry.Allergens == nil {
		entry.Allergens = []string{}
	}
	if entry.DietTags == nil {
		entry.DietTags = []string{}
	}
	err := r.db.QueryRowContext(ctx, `
INSERT INTO diet_history (user_id, entry_date, item, mealtime, calories, protein_g, allergens, diet_types)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id
`,
		entry.UserID, domain.CivilDate(entry.Date), entry.Item, entry.Mealtime, entry.Calories,
		entry.ProteinG, pq.Array(entry.Allergens), pq.Array(entry.DietTags),
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("insert diet entry: %w", err)
	}
	return nil
}
