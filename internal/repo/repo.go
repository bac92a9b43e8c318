package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// q returns tx when set, otherwise the pool.
func (r Repo) q(tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.DB
}

// where accumulates AND-ed clauses. Empty filter slices add nothing.
type where struct {
	clauses []string
	args    []any
}

func (w *where) in(col string, vals []string) {
	if len(vals) == 0 {
		return
	}
	marks := make([]string, len(vals))
	for i, v := range vals {
		marks[i] = "?"
		w.args = append(w.args, v)
	}
	w.clauses = append(w.clauses, fmt.Sprintf("%s IN (%s)", col, strings.Join(marks, ",")))
}

func (w *where) eq(col string, v any) {
	w.clauses = append(w.clauses, col+"=?")
	w.args = append(w.args, v)
}

func (w *where) boolean(col string, v *bool) {
	if v == nil {
		return
	}
	w.eq(col, *v)
}

func (w *where) text(col, v string) {
	if v == "" {
		return
	}
	w.eq(col, v)
}

// contains matches col containing v literally, escaping LIKE wildcards.
func (w *where) contains(col, v string) {
	if v == "" {
		return
	}
	w.clauses = append(w.clauses, col+` LIKE ? ESCAPE '\'`)
	w.args = append(w.args, "%"+likeEscaper.Replace(v)+"%")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Page bounds a listing. A zero Limit means no limit.
type Page struct {
	Offset int
	Limit  int
}

// clause renders the LIMIT/OFFSET suffix and appends its arguments to w.
func (p Page) clause(w *where) string {
	if p.Limit <= 0 && p.Offset <= 0 {
		return ""
	}
	limit := p.Limit
	if limit <= 0 {
		limit = -1
	}
	w.args = append(w.args, limit, max(p.Offset, 0))
	return " LIMIT ? OFFSET ?"
}

func (w *where) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// latestJoin restricts alias rows to the newest revision per logical id.
func latestJoin(onlyRecent bool, table, alias, revCol, groupCol string) string {
	if !onlyRecent {
		return ""
	}
	return fmt.Sprintf(" INNER JOIN (SELECT MAX(%[3]s) rev FROM %[1]s GROUP BY %[4]s) maxids ON maxids.rev = %[2]s.%[3]s",
		table, alias, revCol, groupCol)
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
