package sqlgen

import (
	"strings"
	"testing"

	"github.com/dininghall-ai/menu-search/internal/core/domain"
)

func TestSanitizePassesCleanSelect(t *testing.T) {
	in := "SELECT id FROM dining_hall_menu WHERE last_updated = CURRENT_DATE ORDER BY protein_g DESC LIMIT 10"
	got, err := Sanitize(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != in {
		t.Fatalf("expected statement unchanged, got %q", got)
	}
}

func TestSanitizeStripsCodeFences(t *testing.T) {
	in := "```sql\nSELECT id FROM dining_hall_menu WHERE last_updated = CURRENT_DATE LIMIT 5\n```"
	got, err := Sanitize(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(got, "```") {
		t.Fatalf("fences not stripped: %q", got)
	}
	if !strings.HasPrefix(got, "SELECT") {
		t.Fatalf("unexpected statement %q", got)
	}
}

func TestSanitizeRejectsForbiddenKeywords(t *testing.T) {
	cases := []string{
		"DELETE FROM dining_hall_menu",
		"SELECT id FROM dining_hall_menu; DROP TABLE dining_hall_menu",
		"UPDATE dining_hall_menu SET calories = 0",
		"SELECT id FROM dining_hall_menu WHERE set = 1",
	}
	for _, in := range cases {
		if _, err := Sanitize(in); !domain.IsKind(err, domain.ErrQueryRejected) {
			t.Fatalf("expected rejection for %q, got %v", in, err)
		}
	}
}

func TestSanitizeAllowsKeywordSubstrings(t *testing.T) {
	// updated_at contains UPDATE and OFFSET contains SET; whole-word matching
	// must not reject either.
	in := "SELECT id, updated_at FROM dining_hall_menu WHERE last_updated = CURRENT_DATE LIMIT 10 OFFSET 5"
	if _, err := Sanitize(in); err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
}

func TestSanitizeRejectsNonSelect(t *testing.T) {
	_, err := Sanitize("WITH x AS (SELECT 1) SELECT * FROM dining_hall_menu")
	if !domain.IsKind(err, domain.ErrQueryRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
}

func TestSanitizeRejectsMultipleStatements(t *testing.T) {
	_, err := Sanitize("SELECT id FROM dining_hall_menu; SELECT id FROM dining_hall_menu")
	if !domain.IsKind(err, domain.ErrQueryRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
}

func TestSanitizeRejectsWrongTable(t *testing.T) {
	_, err := Sanitize("SELECT id FROM users")
	if !domain.IsKind(err, domain.ErrQueryRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
}

func TestSanitizeRejectsEmpty(t *testing.T) {
	_, err := Sanitize("```sql\n```")
	if !domain.IsKind(err, domain.ErrQueryRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
}

func TestSanitizeInjectsDateIntoExistingWhere(t *testing.T) {
	got, err := Sanitize("SELECT id FROM dining_hall_menu WHERE protein_g > 20 LIMIT 10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "SELECT id FROM dining_hall_menu WHERE last_updated = CURRENT_DATE AND protein_g > 20 LIMIT 10"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestSanitizeCreatesWhereBeforeOrderBy(t *testing.T) {
	got, err := Sanitize("SELECT id FROM dining_hall_menu ORDER BY calories ASC LIMIT 10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "SELECT id FROM dining_hall_menu WHERE last_updated = CURRENT_DATE ORDER BY calories ASC LIMIT 10"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestSanitizeAppendsWhereAndLimit(t *testing.T) {
	got, err := Sanitize("SELECT id FROM dining_hall_menu")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "SELECT id FROM dining_hall_menu WHERE last_updated = CURRENT_DATE LIMIT 25"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestSanitizeKeepsExplicitCurrentDatePredicate(t *testing.T) {
	in := "SELECT id FROM dining_hall_menu WHERE last_updated = CURRENT_DATE AND calories < 500 LIMIT 10"
	got, err := Sanitize(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Count(got, "CURRENT_DATE") != 1 {
		t.Fatalf("date predicate duplicated: %q", got)
	}
}

func TestSanitizeTrimsTrailingSemicolon(t *testing.T) {
	got, err := Sanitize("SELECT id FROM dining_hall_menu WHERE last_updated = CURRENT_DATE LIMIT 5;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(got, ";") {
		t.Fatalf("semicolon survived: %q", got)
	}
}
