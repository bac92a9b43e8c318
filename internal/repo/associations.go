package repo

import (
	"context"
	"database/sql"

	"tufline/internal/domain"
)

// InsertGoalTag records a derived goal/entity association. Existing pairs are
// left untouched; inserted reports whether a new row was written.
func (r Repo) InsertGoalTag(ctx context.Context, tx *sql.Tx, tag domain.GoalTag) (inserted bool, err error) {
	res, err := r.q(tx).ExecContext(ctx, `INSERT OR IGNORE INTO goal_tags(goal_id, named_entity_id, creation_time) VALUES (?,?,?)`,
		tag.GoalID, tag.NamedEntityID, tag.CreationTime)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListGoalTags returns associations for the given goals, or all when goalIDs is empty.
func (r Repo) ListGoalTags(ctx context.Context, goalIDs []string) ([]domain.GoalTag, error) {
	var w where
	w.in("goal_id", goalIDs)
	rows, err := r.DB.QueryContext(ctx, `SELECT goal_id, named_entity_id, creation_time FROM goal_tags`+w.sql()+` ORDER BY goal_id, named_entity_id`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.GoalTag
	for rows.Next() {
		var t domain.GoalTag
		if err := rows.Scan(&t.GoalID, &t.NamedEntityID, &t.CreationTime); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// InsertGoalTemplateLink records a goal/template association.
func (r Repo) InsertGoalTemplateLink(ctx context.Context, tx *sql.Tx, link domain.GoalTemplateLink) (inserted bool, err error) {
	res, err := r.q(tx).ExecContext(ctx, `INSERT OR IGNORE INTO goal_template_links(goal_id, goal_template_id, creation_time, source) VALUES (?,?,?,?)`,
		link.GoalID, link.GoalTemplateID, link.CreationTime, link.Source)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListGoalTemplateLinks returns template links for the given goals, or all when goalIDs is empty.
func (r Repo) ListGoalTemplateLinks(ctx context.Context, goalIDs []string) ([]domain.GoalTemplateLink, error) {
	var w where
	w.in("goal_id", goalIDs)
	rows, err := r.DB.QueryContext(ctx, `SELECT goal_id, goal_template_id, creation_time, source FROM goal_template_links`+w.sql()+` ORDER BY goal_id, goal_template_id`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.GoalTemplateLink
	for rows.Next() {
		var l domain.GoalTemplateLink
		if err := rows.Scan(&l.GoalID, &l.GoalTemplateID, &l.CreationTime, &l.Source); err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, rows.Err()
}
