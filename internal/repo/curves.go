package repo

import (
	"context"
	"database/sql"
	"errors"

	"tufline/internal/domain"
	"tufline/internal/tuf"
)

// InsertTimeUtilityFunction stores a curve and its points. Points must already be validated.
func (r Repo) InsertTimeUtilityFunction(ctx context.Context, tx *sql.Tx, f domain.TimeUtilityFunction) error {
	if f.ID == "" {
		return errors.New("id required")
	}
	if len(f.Points) == 0 {
		return errors.New("points required")
	}
	q := r.q(tx)
	if _, err := q.ExecContext(ctx, `INSERT INTO time_utility_functions(id, creation_time, creator_user_id) VALUES (?,?,?)`,
		f.ID, f.CreationTime, f.CreatorUserID); err != nil {
		return err
	}
	for i, p := range f.Points {
		if _, err := q.ExecContext(ctx, `INSERT INTO time_utility_function_points(time_utility_function_id, seq, time, utility) VALUES (?,?,?,?)`,
			f.ID, i, p.Time, p.Utility); err != nil {
			return err
		}
	}
	return nil
}

// GetTimeUtilityFunction loads a curve with its points in time order.
func (r Repo) GetTimeUtilityFunction(ctx context.Context, tx *sql.Tx, id string) (domain.TimeUtilityFunction, error) {
	q := r.q(tx)
	var f domain.TimeUtilityFunction
	err := q.QueryRowContext(ctx, `SELECT id, creation_time, creator_user_id FROM time_utility_functions WHERE id=?`, id).
		Scan(&f.ID, &f.CreationTime, &f.CreatorUserID)
	if err == sql.ErrNoRows {
		return f, ErrNotFound
	}
	if err != nil {
		return f, err
	}
	rows, err := q.QueryContext(ctx, `SELECT time, utility FROM time_utility_function_points WHERE time_utility_function_id=? ORDER BY seq`, id)
	if err != nil {
		return f, err
	}
	defer rows.Close()
	for rows.Next() {
		var p tuf.Point
		if err := rows.Scan(&p.Time, &p.Utility); err != nil {
			return f, err
		}
		f.Points = append(f.Points, p)
	}
	return f, rows.Err()
}

// TimeUtilityFunctionExists reports whether id names a committed curve.
func (r Repo) TimeUtilityFunctionExists(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	var n int
	err := r.q(tx).QueryRowContext(ctx, `SELECT 1 FROM time_utility_functions WHERE id=?`, id).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}
