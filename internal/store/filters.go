package store

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lifelog-dev/lifelog/internal/models"
)

// Filters restricts List results. Where keys are column names matched by
// equality; tombstoned rows are excluded unless IncludeDeleted is set. This
// is the single place soft-delete filtering happens, so no per-entity query
// can forget it.
type Filters struct {
	Where          map[string]any
	IncludeDeleted bool
	OrderBy        string
}

// buildWhere renders the filter into a WHERE clause and its arguments.
// Column names come from the caller's field manifest, never from user input.
func buildWhere(f Filters) (string, []any) {
	var (
		clauses []string
		args    []any
	)

	if !f.IncludeDeleted {
		clauses = append(clauses, "deleted = 0")
	}

	// Sorted iteration keeps generated SQL stable for tests and logs.
	keys := make([]string, 0, len(f.Where))
	for k := range f.Where {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		clauses = append(clauses, fmt.Sprintf("%s = ?", k))
		args = append(args, f.Where[k])
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func orderClause(f Filters, fallback string) string {
	if f.OrderBy != "" {
		return " ORDER BY " + f.OrderBy
	}
	return " ORDER BY " + fallback
}

// nullTime converts an optional timestamp into a database value.
func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return models.FormatTime(*t)
}

// timeValue converts a required timestamp into a database value.
func timeValue(t time.Time) string {
	return models.FormatTime(t)
}

// scanTime parses an optional timestamp column.
func scanTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := models.ParseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// mustTime parses a required timestamp column; failures surface as a zero
// time rather than aborting the scan, matching how older rows with
// malformed stamps are tolerated elsewhere.
func mustTime(s string) time.Time {
	t, err := models.ParseTime(s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// boolValue stores the tombstone flag as 0/1.
func boolValue(b bool) int {
	if b {
		return 1
	}
	return 0
}
