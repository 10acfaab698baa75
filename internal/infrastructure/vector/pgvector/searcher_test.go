package pgvector

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dininghall-ai/menu-search/internal/core/domain"
	"github.com/dininghall-ai/menu-search/internal/core/ports"
)

type stubEmbedder struct {
	vector []float32
	err    error
	query  string
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vector
	}
	return out, s.err
}

func (s *stubEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	s.query = text
	return s.vector, s.err
}

type stubMenus struct {
	items   []domain.MenuItem
	lastIDs []int64
}

func (s *stubMenus) GetByIDs(_ context.Context, ids []int64) ([]domain.MenuItem, error) {
	s.lastIDs = ids
	return s.items, nil
}

func (s *stubMenus) ListForDate(_ context.Context, _ domain.FilterSet, _ time.Time, _ ports.MenuOrder, _ int) ([]domain.MenuItem, error) {
	return nil, nil
}

func (s *stubMenus) ListMissingEmbeddings(_ context.Context, _ time.Time, _ int) ([]domain.MenuItem, error) {
	return nil, nil
}

func (s *stubMenus) SaveEmbedding(_ context.Context, _ int64, _ []string, _ []float32) error {
	return nil
}

func TestSearchReordersRefetchedItems(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT id, 1 - \(embedding <=> \$\d+\) AS similarity FROM dining_hall_menu`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "similarity"}).
			AddRow(int64(5), 0.91).
			AddRow(int64(2), 0.84))

	// GetByIDs returns rows in storage order, not similarity order.
	menus := &stubMenus{items: []domain.MenuItem{{ID: 2, Name: "Tofu"}, {ID: 5, Name: "Chicken"}}}
	embedder := &stubEmbedder{vector: []float32{0.1, 0.2}}
	s := NewSearcher(db, embedder, menus, nil)

	items, err := s.Search(context.Background(), domain.VectorSearchParams{
		Query:               "high protein dinner",
		SimilarityThreshold: 0.3,
		Date:                time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 || items[0].ID != 5 || items[1].ID != 2 {
		t.Fatalf("expected similarity order 5,2, got %v", items)
	}
	if embedder.query != "high protein dinner" {
		t.Fatalf("expected query embedded, got %q", embedder.query)
	}
}

func TestSearchEmptyResultSkipsRefetch(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`FROM dining_hall_menu`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "similarity"}))

	menus := &stubMenus{}
	s := NewSearcher(db, &stubEmbedder{vector: []float32{0.1}}, menus, nil)

	items, err := s.Search(context.Background(), domain.VectorSearchParams{Query: "anything"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if items != nil {
		t.Fatalf("expected nil items, got %v", items)
	}
	if menus.lastIDs != nil {
		t.Fatalf("expected no refetch for empty result")
	}
}

func TestSearchPropagatesEmbedderError(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	s := NewSearcher(db, &stubEmbedder{err: errors.New("model down")}, &stubMenus{}, nil)
	if _, err := s.Search(context.Background(), domain.VectorSearchParams{Query: "anything"}); err == nil {
		t.Fatalf("expected embedder error")
	}
}

func TestSearchPredicates(t *testing.T) {
	params := domain.VectorSearchParams{
		RequiredDiets:     []string{"vegan", "Halal"},
		ExcludedAllergens: []string{"Soy"},
		DiningHall:        "Worcester",
		Meal:              "Dinner",
		Date:              time.Date(2026, 8, 28, 13, 5, 0, 0, time.UTC),
	}
	where, args := searchPredicates(params)

	if !strings.HasPrefix(where, "embedding IS NOT NULL AND last_updated = $1") {
		t.Fatalf("expected embedding and date predicates first, got %q", where)
	}
	// Each required diet is its own AND-combined predicate.
	if strings.Count(where, "array_to_string(diet_types") != 2 {
		t.Fatalf("expected one predicate per diet, got %q", where)
	}
	if !strings.Contains(where, "LOWER(dining_hall) = $") {
		t.Fatalf("missing hall predicate: %q", where)
	}
	if !strings.Contains(where, "(allergens IS NULL OR NOT array_to_string(allergens") {
		t.Fatalf("missing allergen predicate: %q", where)
	}

	// date + 2 diets + 1 allergen + hall + meal.
	if len(args) != 6 {
		t.Fatalf("expected 6 args, got %v", args)
	}
	if args[0] != "2026-08-28" {
		t.Fatalf("expected civil date bound, got %v", args[0])
	}
	if args[1] != "%Plant Based%" {
		t.Fatalf("expected diet synonym normalized, got %v", args[1])
	}
	if args[4] != "worcester" || args[5] != "%dinner%" {
		t.Fatalf("expected lowercased hall and meal args, got %v", args)
	}
}
