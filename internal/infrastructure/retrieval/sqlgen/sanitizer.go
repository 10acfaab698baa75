package sqlgen

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dininghall-ai/menu-search/internal/core/domain"
)

// allowedTable is the only relation a generated query may reference.
const allowedTable = "dining_hall_menu"

// forbiddenKeywords must never appear as whole words in a generated query.
// Matching is case-insensitive; substrings of longer identifiers (a column
// named updated_at, say) are not hits.
var forbiddenKeywords = []string{
	"DELETE", "UPDATE", "DROP", "INSERT", "TRUNCATE", "ALTER", "CREATE",
	"GRANT", "REVOKE", "EXECUTE", "CALL", "COPY", "VACUUM", "ANALYZE",
	"CLUSTER", "COMMENT", "LOCK", "NOTIFY", "LISTEN", "UNLISTEN",
	"PREPARE", "DEALLOCATE", "SET", "RESET", "SHOW", "BEGIN", "COMMIT",
	"ROLLBACK", "SAVEPOINT", "RELEASE", "DO", "DECLARE",
}

var forbiddenPatterns = func() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(forbiddenKeywords))
	for _, keyword := range forbiddenKeywords {
		patterns = append(patterns, regexp.MustCompile(`\b`+regexp.QuoteMeta(keyword)+`\b`))
	}
	return patterns
}()

var (
	fenceOpenSQL = regexp.MustCompile(`(?i)^` + "```" + `sql\s*`)
	fenceOpen    = regexp.MustCompile(`^` + "```" + `\s*`)
	fenceClose   = regexp.MustCompile(`\s*` + "```" + `$`)
)

// Sanitize validates a model-generated statement and returns the executable
// form. It strips code fences, enforces the read-only allow-list policy,
// injects the failsafe date predicate when the model omitted it, and appends
// a row limit when missing. Rejections carry domain.ErrQueryRejected.
func Sanitize(raw string) (string, error) {
	stmt := strings.TrimSpace(raw)
	stmt = fenceOpenSQL.ReplaceAllString(stmt, "")
	stmt = fenceOpen.ReplaceAllString(stmt, "")
	stmt = fenceClose.ReplaceAllString(stmt, "")
	stmt = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(stmt), ";"))

	if stmt == "" {
		return "", reject("empty query generated")
	}

	upper := strings.ToUpper(stmt)
	for i, pattern := range forbiddenPatterns {
		if pattern.MatchString(upper) {
			return "", reject("forbidden keyword: %s", forbiddenKeywords[i])
		}
	}

	if !strings.HasPrefix(strings.TrimSpace(upper), "SELECT") {
		return "", reject("query must be a SELECT statement")
	}

	// A separator surviving the trailing-semicolon trim means a second
	// statement is smuggled mid-string.
	if strings.Contains(stmt, ";") {
		return "", reject("multiple statements not allowed")
	}

	if !strings.Contains(strings.ToLower(stmt), allowedTable) {
		return "", reject("query must reference %s", allowedTable)
	}

	stmt = injectDatePredicate(stmt)

	if !strings.Contains(strings.ToUpper(stmt), "LIMIT") {
		stmt += " LIMIT 25"
	}

	return stmt, nil
}

// injectDatePredicate guarantees the date invariant holds even when
// generation omitted it: unless the statement already references both the
// date column and a current-date literal, a same-day equality predicate is
// spliced into the WHERE clause, creating one before ORDER BY / LIMIT when
// absent.
func injectDatePredicate(stmt string) string {
	lower := strings.ToLower(stmt)
	if strings.Contains(lower, "last_updated") && strings.Contains(lower, "current_date") {
		return stmt
	}

	const predicate = "last_updated = CURRENT_DATE"
	if pos := strings.Index(lower, " where "); pos >= 0 {
		insertAt := pos + len(" where ")
		return stmt[:insertAt] + predicate + " AND " + stmt[insertAt:]
	}
	if pos := strings.Index(lower, " order by "); pos >= 0 {
		return stmt[:pos] + " WHERE " + predicate + stmt[pos:]
	}
	if pos := strings.Index(lower, " limit "); pos >= 0 {
		return stmt[:pos] + " WHERE " + predicate + stmt[pos:]
	}
	return stmt + " WHERE " + predicate
}

func reject(format string, args ...any) error {
	return domain.WrapError(domain.ErrQueryRejected, "sanitize", fmt.Errorf(format, args...))
}
