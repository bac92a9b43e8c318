package repo

import (
	"context"
	"database/sql"

	"tufline/internal/domain"
)

const goalIntentColumns = `gi.goal_intent_data_id, gi.goal_intent_id, gi.creation_time, gi.creator_user_id, gi.name, gi.active`

func scanGoalIntent(row interface{ Scan(...any) error }) (domain.GoalIntentData, error) {
	var d domain.GoalIntentData
	err := row.Scan(&d.RevisionID, &d.GoalIntentID, &d.CreationTime, &d.CreatorUserID, &d.Name, &d.Active)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	return d, err
}

// InsertGoalIntent registers the logical goal intent id.
func (r Repo) InsertGoalIntent(ctx context.Context, tx *sql.Tx, id string, creationTime int64, creatorUserID string) error {
	return r.insertOwner(ctx, tx, "goal_intents", id, creationTime, creatorUserID)
}

// InsertGoalIntentData appends a goal intent revision.
func (r Repo) InsertGoalIntentData(ctx context.Context, tx *sql.Tx, d domain.GoalIntentData) (domain.GoalIntentData, error) {
	res, err := r.q(tx).ExecContext(ctx, `INSERT INTO goal_intent_data(goal_intent_id, creation_time, creator_user_id, name, active) VALUES (?,?,?,?,?)`,
		d.GoalIntentID, d.CreationTime, d.CreatorUserID, d.Name, d.Active)
	if err != nil {
		return d, err
	}
	d.RevisionID, err = res.LastInsertId()
	return d, err
}

// LatestGoalIntentData returns the current revision of a goal intent.
func (r Repo) LatestGoalIntentData(ctx context.Context, tx *sql.Tx, id string) (domain.GoalIntentData, error) {
	return scanGoalIntent(r.q(tx).QueryRowContext(ctx, `SELECT `+goalIntentColumns+` FROM goal_intent_data gi WHERE gi.goal_intent_id=? ORDER BY gi.goal_intent_data_id DESC LIMIT 1`, id))
}

// ListGoalIntentData returns goal intent revisions in revision order.
func (r Repo) ListGoalIntentData(ctx context.Context, f OwnerFilter) ([]domain.GoalIntentData, error) {
	query := `SELECT ` + goalIntentColumns + ` FROM goal_intent_data gi` +
		latestJoin(f.OnlyRecent, "goal_intent_data", "gi", "goal_intent_data_id", "goal_intent_id")
	var w where
	w.in("gi.goal_intent_id", f.IDs)
	w.in("gi.creator_user_id", f.CreatorUserIDs)
	w.boolean("gi.active", f.Active)
	w.text("gi.name", f.Name)
	w.contains("gi.name", f.PartialName)
	query += w.sql() + ` ORDER BY gi.goal_intent_data_id` + f.Page.clause(&w)
	rows, err := r.DB.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.GoalIntentData
	for rows.Next() {
		d, err := scanGoalIntent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}
