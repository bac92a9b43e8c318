package repo

import (
	"context"
	"database/sql"
	"errors"

	"tufline/internal/domain"
)

// GoalFilter selects goal revisions. Empty slices do not filter.
type GoalFilter struct {
	GoalIDs        []string
	CreatorUserIDs []string
	Statuses       []string
	Scheduled      *bool
	OnlyRecent     bool
	MinCreation    *int64
	MaxCreation    *int64
	Name           string
	PartialName    string
	Page
}

// GoalEventFilter selects goal event revisions.
type GoalEventFilter struct {
	GoalIDs        []string
	CreatorUserIDs []string
	Active         *bool
	OnlyRecent     bool
	Page
}

const goalDataColumns = `gd.goal_data_id, gd.goal_id, gd.creation_time, gd.creator_user_id, gd.name, COALESCE(gd.description,''),
gd.duration_estimate, gd.time_utility_function_id, gd.scheduled, gd.start_time, gd.duration, gd.status`

func scanGoalData(row interface{ Scan(...any) error }) (domain.GoalData, error) {
	var (
		g               domain.GoalData
		start, duration sql.NullInt64
	)
	err := row.Scan(&g.RevisionID, &g.GoalID, &g.CreationTime, &g.CreatorUserID, &g.Name, &g.Description,
		&g.DurationEstimate, &g.TimeUtilityFunctionID, &g.Scheduled, &start, &duration, &g.Status)
	if err == sql.ErrNoRows {
		return g, ErrNotFound
	}
	g.StartTime = int64Ptr(start)
	g.Duration = int64Ptr(duration)
	return g, err
}

// InsertGoal registers the logical goal id.
func (r Repo) InsertGoal(ctx context.Context, tx *sql.Tx, id string, creationTime int64, creatorUserID string) error {
	if id == "" {
		return errors.New("id required")
	}
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO goals(id, creation_time, creator_user_id) VALUES (?,?,?)`, id, creationTime, creatorUserID)
	return err
}

// InsertGoalData appends a revision and returns it with its revision id set.
func (r Repo) InsertGoalData(ctx context.Context, tx *sql.Tx, g domain.GoalData) (domain.GoalData, error) {
	res, err := r.q(tx).ExecContext(ctx, `INSERT INTO goal_data(goal_id, creation_time, creator_user_id, name, description,
duration_estimate, time_utility_function_id, scheduled, start_time, duration, status) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		g.GoalID, g.CreationTime, g.CreatorUserID, g.Name, nullable(g.Description), g.DurationEstimate,
		g.TimeUtilityFunctionID, g.Scheduled, nullableInt(g.StartTime), nullableInt(g.Duration), g.Status)
	if err != nil {
		return g, err
	}
	if g.RevisionID, err = res.LastInsertId(); err != nil {
		return g, err
	}
	return g, nil
}

// LatestGoalData returns the current revision of a goal.
func (r Repo) LatestGoalData(ctx context.Context, tx *sql.Tx, goalID string) (domain.GoalData, error) {
	return scanGoalData(r.q(tx).QueryRowContext(ctx, `SELECT `+goalDataColumns+` FROM goal_data gd WHERE gd.goal_id=? ORDER BY gd.goal_data_id DESC LIMIT 1`, goalID))
}

// ListGoalData returns goal revisions ordered by revision id. With OnlyRecent the
// other filters apply to the current revision of each goal only.
func (r Repo) ListGoalData(ctx context.Context, f GoalFilter) ([]domain.GoalData, error) {
	query := `SELECT ` + goalDataColumns + ` FROM goal_data gd` +
		latestJoin(f.OnlyRecent, "goal_data", "gd", "goal_data_id", "goal_id")
	var w where
	w.in("gd.goal_id", f.GoalIDs)
	w.in("gd.creator_user_id", f.CreatorUserIDs)
	w.in("gd.status", f.Statuses)
	w.boolean("gd.scheduled", f.Scheduled)
	if f.MinCreation != nil {
		w.clauses = append(w.clauses, "gd.creation_time >= ?")
		w.args = append(w.args, *f.MinCreation)
	}
	if f.MaxCreation != nil {
		w.clauses = append(w.clauses, "gd.creation_time <= ?")
		w.args = append(w.args, *f.MaxCreation)
	}
	w.text("gd.name", f.Name)
	w.contains("gd.name", f.PartialName)
	query += w.sql() + ` ORDER BY gd.goal_data_id` + f.Page.clause(&w)
	rows, err := r.DB.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.GoalData
	for rows.Next() {
		g, err := scanGoalData(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, g)
	}
	return res, rows.Err()
}

// InsertGoalEvent appends an event revision.
func (r Repo) InsertGoalEvent(ctx context.Context, tx *sql.Tx, ev domain.GoalEvent) (domain.GoalEvent, error) {
	res, err := r.q(tx).ExecContext(ctx, `INSERT INTO goal_events(goal_id, creation_time, creator_user_id, start_time, duration, active) VALUES (?,?,?,?,?,?)`,
		ev.GoalID, ev.CreationTime, ev.CreatorUserID, ev.StartTime, ev.Duration, ev.Active)
	if err != nil {
		return ev, err
	}
	if ev.RevisionID, err = res.LastInsertId(); err != nil {
		return ev, err
	}
	return ev, nil
}

// ListGoalEvents returns event revisions; OnlyRecent keeps the newest per goal.
func (r Repo) ListGoalEvents(ctx context.Context, f GoalEventFilter) ([]domain.GoalEvent, error) {
	query := `SELECT ge.goal_event_id, ge.goal_id, ge.creation_time, ge.creator_user_id, ge.start_time, ge.duration, ge.active FROM goal_events ge` +
		latestJoin(f.OnlyRecent, "goal_events", "ge", "goal_event_id", "goal_id")
	var w where
	w.in("ge.goal_id", f.GoalIDs)
	w.in("ge.creator_user_id", f.CreatorUserIDs)
	w.boolean("ge.active", f.Active)
	query += w.sql() + ` ORDER BY ge.goal_event_id` + f.Page.clause(&w)
	rows, err := r.DB.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.GoalEvent
	for rows.Next() {
		var ev domain.GoalEvent
		if err := rows.Scan(&ev.RevisionID, &ev.GoalID, &ev.CreationTime, &ev.CreatorUserID, &ev.StartTime, &ev.Duration, &ev.Active); err != nil {
			return nil, err
		}
		res = append(res, ev)
	}
	return res, rows.Err()
}
