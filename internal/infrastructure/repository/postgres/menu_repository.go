package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/dininghall-ai/menu-search/internal/core/domain"
	"github.com/dininghall-ai/menu-search/internal/core/ports"
)

// MenuTable is the single relation the retrieval core reads. The generated
// query sanitizer allows no other table reference.
const MenuTable = "dining_hall_menu"

const menuColumns = `id, item, dining_hall, last_updated, calories, serving_size,
fat_g, sat_fat_g, trans_fat_g, cholesterol_mg, sodium_mg, carbs_g, fiber_g,
sugars_g, protein_g, allergens, diet_types, availability_today, ingredients`

type MenuRepository struct {
	db *sql.DB
}

func NewMenuRepository(db *sql.DB) *MenuRepository {
	return &MenuRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *MenuRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS dining_hall_menu (
	id BIGSERIAL PRIMARY KEY,
	item TEXT NOT NULL,
	dining_hall TEXT NOT NULL,
	last_updated DATE NOT NULL DEFAULT CURRENT_DATE,
	calories DOUBLE PRECISION,
	serving_size TEXT,
	fat_g DOUBLE PRECISION,
	sat_fat_g DOUBLE PRECISION,
	trans_fat_g DOUBLE PRECISION,
	cholesterol_mg DOUBLE PRECISION,
	sodium_mg DOUBLE PRECISION,
	carbs_g DOUBLE PRECISION,
	fiber_g DOUBLE PRECISION,
	sugars_g DOUBLE PRECISION,
	protein_g DOUBLE PRECISION,
	allergens TEXT[],
	diet_types TEXT[],
	availability_today TEXT[],
	ingredients TEXT[],
	CONSTRAINT uix_item_dining_hall UNIQUE (item, dining_hall)
);

CREATE INDEX IF NOT EXISTS idx_menu_last_updated ON dining_hall_menu(last_updated);
CREATE INDEX IF NOT EXISTS idx_menu_dining_hall ON dining_hall_menu(dining_hall);

CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS goals (
	id BIGSERIAL PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id),
	goal TEXT NOT NULL,
	success_metric TEXT,
	progress TEXT,
	calories_target INTEGER,
	protein_target INTEGER
);

CREATE TABLE IF NOT EXISTS dietary_constraints (
	id BIGSERIAL PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id),
	constraint_name TEXT NOT NULL,
	constraint_type TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS diet_history (
	id BIGSERIAL PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id),
	entry_date DATE NOT NULL,
	item TEXT NOT NULL,
	mealtime TEXT NOT NULL,
	calories DOUBLE PRECISION NOT NULL,
	protein_g DOUBLE PRECISION,
	allergens TEXT[] NOT NULL DEFAULT '{}',
	diet_types TEXT[] NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_diet_history_user_date ON diet_history(user_id, entry_date);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// EnsureVectorSchema adds the embedding column. Kept separate from
// EnsureSchema so deployments without the pgvector extension still come up;
// the caller disables the vector path when this fails.
func (r *MenuRepository) EnsureVectorSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `ALTER TABLE dining_hall_menu ADD COLUMN IF NOT EXISTS embedding vector(1536)`); err != nil {
		return fmt.Errorf("add embedding column: %w", err)
	}
	return nil
}

func (r *MenuRepository) GetByIDs(ctx context.Context, ids []int64) ([]domain.MenuItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT `+menuColumns+`
FROM dining_hall_menu
WHERE id = ANY($1)
`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("select menu items by id: %w", err)
	}
	defer rows.Close()

	return scanMenuItems(rows)
}

func (r *MenuRepository) ListForDate(
	ctx context.Context,
	filters domain.FilterSet,
	date time.Time,
	order ports.MenuOrder,
	limit int,
) ([]domain.MenuItem, error) {
	if limit <= 0 {
		limit = 10
	}

	where, args := JoinPredicates(BuildMenuPredicates(filters, date), 1)
	query := fmt.Sprintf(`
SELECT %s
FROM dining_hall_menu
WHERE %s
ORDER BY %s
LIMIT $%d`, menuColumns, where, orderClause(order), len(args)+1)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select menu items: %w", err)
	}
	defer rows.Close()

	return scanMenuItems(rows)
}

func orderClause(order ports.MenuOrder) string {
	switch order {
	case ports.OrderProteinDesc:
		return "COALESCE(protein_g, 0) DESC"
	case ports.OrderCaloriesAsc:
		return "calories ASC NULLS LAST"
	case ports.OrderCaloriesDesc:
		return "calories DESC NULLS LAST"
	case ports.OrderNameAsc:
		return "item ASC"
	default:
		return "dining_hall ASC, item ASC"
	}
}

func (r *MenuRepository) ListMissingEmbeddings(ctx context.Context, date time.Time, limit int) ([]domain.MenuItem, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+menuColumns+`
FROM dining_hall_menu
WHERE last_updated = $1 AND embedding IS NULL
ORDER BY id
LIMIT $2
`, domain.CivilDate(date), limit)
	if err != nil {
		return nil, fmt.Errorf("select items missing embeddings: %w", err)
	}
	defer rows.Close()

	return scanMenuItems(rows)
}

func (r *MenuRepository) SaveEmbedding(ctx context.Context, id int64, ingredients []string, embedding []float32) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE dining_hall_menu
SET ingredients = $2, embedding = $3
WHERE id = $1
`, id, pq.Array(ingredients), pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("save embedding: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("menu item not found: %d", id)
	}
	return nil
}

func scanMenuItems(rows *sql.Rows) ([]domain.MenuItem, error) {
	var items []domain.MenuItem
	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate menu rows: %w", err)
	}
	return items, nil
}

func scanMenuItem(rows *sql.Rows) (domain.MenuItem, error) {
	var item domain.MenuItem
	var servingSize sql.NullString
	var calories, fatG, satFatG, transFatG, cholesterolMg, sodiumMg, carbsG, fiberG, sugarsG, proteinG sql.NullFloat64

	err := rows.Scan(
		&item.ID, &item.Name, &item.DiningHall, &item.EffectiveDate,
		&calories, &servingSize, &fatG, &satFatG, &transFatG, &cholesterolMg,
		&sodiumMg, &carbsG, &fiberG, &sugarsG, &proteinG,
		pq.Array(&item.Allergens), pq.Array(&item.DietTags),
		pq.Array(&item.Availability), pq.Array(&item.Ingredients),
	)
	if err != nil {
		return domain.MenuItem{}, fmt.Errorf("scan menu item: %w", err)
	}

	item.ServingSize = servingSize.String
	item.Calories = nullableFloat(calories)
	item.FatG = nullableFloat(fatG)
	item.SatFatG = nullableFloat(satFatG)
	item.TransFatG = nullableFloat(transFatG)
	item.CholesterolMg = nullableFloat(cholesterolMg)
	item.SodiumMg = nullableFloat(sodiumMg)
	item.CarbsG = nullableFloat(carbsG)
	item.FiberG = nullableFloat(fiberG)
	item.SugarsG = nullableFloat(sugarsG)
	item.ProteinG = nullableFloat(proteinG)
	return item, nil
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
