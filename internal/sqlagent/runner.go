package sqlagent

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	errx "github.com/eurocup-agent/server/internal/core/error"
)

// Sentinel is the literal result of a query that legitimately matched no
// rows. The loop never fabricates rows; callers route this marker to the
// localized apology.
const Sentinel = "No results found"

// QueryRunner executes one read-only statement and returns its rows as text.
type QueryRunner interface {
	Query(ctx context.Context, query string) (string, error)
}

type dbRunner struct {
	db      *sql.DB
	maxRows int
}

// NewDBRunner wraps a read-only tournament database connection.
func NewDBRunner(db *sql.DB, maxRows int) QueryRunner {
	if maxRows <= 0 {
		maxRows = 50
	}
	return &dbRunner{db: db, maxRows: maxRows}
}

func (r *dbRunner) Query(ctx context.Context, query string) (string, error) {
	trimmed := strings.TrimSpace(query)
	lower := strings.ToLower(trimmed)
	if !strings.HasPrefix(lower, "select") && !strings.HasPrefix(lower, "with") {
		return "", fmt.Errorf("only read-only SELECT statements are allowed")
	}

	rows, err := r.db.QueryContext(ctx, trimmed)
	if err != nil {
		return "", errx.WrapPostgres(err)
	}
	defer rows.Close()

	return formatRows(rows, r.maxRows)
}

// formatRows renders rows as tab-separated text with a header line. Zero rows
// yield the sentinel.
func formatRows(rows *sql.Rows, maxRows int) (string, error) {
	cols, err := rows.Columns()
	if err != nil {
		return "", errx.WrapPostgres(err)
	}

	var b strings.Builder
	b.WriteString(strings.Join(cols, "\t"))

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	count := 0
	for rows.Next() {
		if count >= maxRows {
			fmt.Fprintf(&b, "\n... truncated at %d rows", maxRows)
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return "", errx.WrapPostgres(err)
		}
		fields := make([]string, len(cols))
		for i, v := range values {
			fields[i] = renderValue(v)
		}
		b.WriteString("\n" + strings.Join(fields, "\t"))
		count++
	}
	if err := rows.Err(); err != nil {
		return "", errx.WrapPostgres(err)
	}
	if count == 0 {
		return Sentinel, nil
	}
	return b.String(), nil
}

func renderValue(v any) string {
	switch vv := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(vv)
	default:
		return fmt.Sprint(vv)
	}
}
