package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/dininghall-ai/menu-search/internal/core/domain"
	"github.com/dininghall-ai/menu-search/internal/core/ports"
)

func TestOrderForPolicy(t *testing.T) {
	cases := []struct {
		name   string
		query  string
		sortBy string
		want   ports.MenuOrder
	}{
		{"protein hint wins", "best low calorie thing", domain.SortProteinDesc, ports.OrderProteinDesc},
		{"superlative with low calories", "best low calorie lunch", "", ports.OrderCaloriesAsc},
		{"superlative with calories", "top calorie bombs", "", ports.OrderCaloriesDesc},
		{"superlative alone", "best dessert", "", ports.OrderNameAsc},
		{"plain query", "lunch at franklin", "", ports.OrderHallThenName},
		{"highest counts as superlative", "highest calorie dinner", "", ports.OrderCaloriesDesc},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := orderFor(tc.query, tc.sortBy); got != tc.want {
				t.Fatalf("orderFor(%q, %q) = %v, want %v", tc.query, tc.sortBy, got, tc.want)
			}
		})
	}
}

func TestFallbackRetrievePassesOrderAndDefaultsLimit(t *testing.T) {
	menus := &fakeMenus{items: []domain.MenuItem{{ID: 1, Name: "Omelet"}}}
	r := NewFallbackRetriever(menus)

	filters := domain.FilterSet{SortBy: domain.SortProteinDesc}
	items, err := r.Retrieve(context.Background(), "high protein", filters, time.Now(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if menus.lastOrder != ports.OrderProteinDesc {
		t.Fatalf("expected protein order, got %v", menus.lastOrder)
	}
	if menus.lastLimit != 10 {
		t.Fatalf("expected default limit 10, got %d", menus.lastLimit)
	}
}
