package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dininghall-ai/menu-search/internal/core/domain"
	"github.com/dininghall-ai/menu-search/internal/core/ports"
)

var menuColumnList = []string{
	"id", "item", "dining_hall", "last_updated", "calories", "serving_size",
	"fat_g", "sat_fat_g", "trans_fat_g", "cholesterol_mg", "sodium_mg",
	"carbs_g", "fiber_g", "sugars_g", "protein_g", "allergens", "diet_types",
	"availability_today", "ingredients",
}

func fullMenuRow(rows *sqlmock.Rows, id int64, name string) *sqlmock.Rows {
	return rows.AddRow(
		id, name, "Worcester", testDate(), 450.0, "1 bowl",
		12.0, 3.0, 0.0, 60.0, 500.0,
		30.0, 4.0, 6.0, 32.0, "{Soy}", "{Halal}",
		"{lunch,dinner}", "{chicken,rice}",
	)
}

func sparseMenuRow(rows *sqlmock.Rows, id int64, name string) *sqlmock.Rows {
	return rows.AddRow(
		id, name, "Berkshire", testDate(), nil, nil,
		nil, nil, nil, nil, nil,
		nil, nil, nil, nil, nil, nil,
		nil, nil,
	)
}

func TestGetByIDsEmptySkipsQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	repo := NewMenuRepository(db)
	items, err := repo.GetByIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if items != nil {
		t.Fatalf("expected nil items, got %v", items)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected query: %v", err)
	}
}

func TestGetByIDsScansFullAndSparseRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows(menuColumnList)
	fullMenuRow(rows, 1, "Chicken Bowl")
	sparseMenuRow(rows, 2, "Mystery Dish")
	mock.ExpectQuery(`SELECT (.+) FROM dining_hall_menu\s+WHERE id = ANY`).WillReturnRows(rows)

	repo := NewMenuRepository(db)
	items, err := repo.GetByIDs(context.Background(), []int64{1, 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	full := items[0]
	if full.Name != "Chicken Bowl" || full.DiningHall != "Worcester" {
		t.Fatalf("unexpected item: %+v", full)
	}
	if full.Calories == nil || *full.Calories != 450 {
		t.Fatalf("expected calories 450, got %v", full.Calories)
	}
	if full.ProteinG == nil || *full.ProteinG != 32 {
		t.Fatalf("expected protein 32, got %v", full.ProteinG)
	}
	if len(full.Allergens) != 1 || full.Allergens[0] != "Soy" {
		t.Fatalf("unexpected allergens: %v", full.Allergens)
	}
	if len(full.Availability) != 2 {
		t.Fatalf("unexpected availability: %v", full.Availability)
	}

	sparse := items[1]
	if sparse.Calories != nil || sparse.ProteinG != nil {
		t.Fatalf("expected nil nutrition on sparse row: %+v", sparse)
	}
	if sparse.ServingSize != "" {
		t.Fatalf("expected empty serving size, got %q", sparse.ServingSize)
	}
}

func TestListForDateOrdersByProtein(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows(menuColumnList)
	fullMenuRow(rows, 3, "Steak")
	mock.ExpectQuery(`ORDER BY COALESCE\(protein_g, 0\) DESC\s+LIMIT \$\d+`).WillReturnRows(rows)

	repo := NewMenuRepository(db)
	items, err := repo.ListForDate(context.Background(), domain.FilterSet{}, testDate(), ports.OrderProteinDesc, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].ID != 3 {
		t.Fatalf("unexpected items: %v", items)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListMissingEmbeddings(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows(menuColumnList)
	fullMenuRow(rows, 9, "Pasta")
	// The bound value is the civil date even when the caller passes a
	// wall-clock timestamp.
	mock.ExpectQuery(`WHERE last_updated = \$1 AND embedding IS NULL`).
		WithArgs("2026-08-28", 50).
		WillReturnRows(rows)

	repo := NewMenuRepository(db)
	items, err := repo.ListMissingEmbeddings(context.Background(), testDate().Add(9*time.Hour+15*time.Minute), 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].ID != 9 {
		t.Fatalf("unexpected items: %v", items)
	}
}

func TestSaveEmbeddingNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`UPDATE dining_hall_menu`).WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewMenuRepository(db)
	if err := repo.SaveEmbedding(context.Background(), 404, []string{"tofu"}, []float32{0.1, 0.2}); err == nil {
		t.Fatalf("expected not-found error for zero affected rows")
	}
}

func TestSaveEmbedding(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`UPDATE dining_hall_menu`).WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewMenuRepository(db)
	if err := repo.SaveEmbedding(context.Background(), 7, []string{"tofu", "rice"}, []float32{0.1, 0.2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOrderClause(t *testing.T) {
	cases := []struct {
		order ports.MenuOrder
		want  string
	}{
		{ports.OrderProteinDesc, "COALESCE(protein_g, 0) DESC"},
		{ports.OrderCaloriesAsc, "calories ASC NULLS LAST"},
		{ports.OrderCaloriesDesc, "calories DESC NULLS LAST"},
		{ports.OrderNameAsc, "item ASC"},
		{ports.OrderHallThenName, "dining_hall ASC, item ASC"},
	}
	for _, tc := range cases {
		if got := orderClause(tc.order); got != tc.want {
			t.Fatalf("order %v: expected %q, got %q", tc.order, tc.want, got)
		}
	}
}
