package repo

import (
	"context"
	"database/sql"
	"errors"

	"tufline/internal/domain"
)

// OwnerFilter selects named entity, goal template or goal intent revisions.
// Name matches exactly; PartialName matches any name containing it.
type OwnerFilter struct {
	IDs            []string
	CreatorUserIDs []string
	Active         *bool
	OnlyRecent     bool
	Name           string
	PartialName    string
	Page
}

// PatternFilter selects pattern revisions.
type PatternFilter struct {
	PatternIDs     []string
	OwnerIDs       []string
	CreatorUserIDs []string
	Active         *bool
	OnlyRecent     bool
	Page
}

// PatternTable names the table holding patterns of one owner kind.
type PatternTable string

const (
	NamedEntityPatterns  PatternTable = "named_entity_patterns"
	GoalTemplatePatterns PatternTable = "goal_template_patterns"
)

func (r Repo) insertOwner(ctx context.Context, tx *sql.Tx, table, id string, creationTime int64, creatorUserID string) error {
	if id == "" {
		return errors.New("id required")
	}
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO `+table+`(id, creation_time, creator_user_id) VALUES (?,?,?)`, id, creationTime, creatorUserID)
	return err
}

// InsertNamedEntity registers the logical named entity id.
func (r Repo) InsertNamedEntity(ctx context.Context, tx *sql.Tx, id string, creationTime int64, creatorUserID string) error {
	return r.insertOwner(ctx, tx, "named_entities", id, creationTime, creatorUserID)
}

// InsertGoalTemplate registers the logical goal template id.
func (r Repo) InsertGoalTemplate(ctx context.Context, tx *sql.Tx, id string, creationTime int64, creatorUserID string) error {
	return r.insertOwner(ctx, tx, "goal_templates", id, creationTime, creatorUserID)
}

const namedEntityColumns = `ne.named_entity_data_id, ne.named_entity_id, ne.creation_time, ne.creator_user_id, ne.name, ne.active`

func scanNamedEntity(row interface{ Scan(...any) error }) (domain.NamedEntityData, error) {
	var d domain.NamedEntityData
	err := row.Scan(&d.RevisionID, &d.NamedEntityID, &d.CreationTime, &d.CreatorUserID, &d.Name, &d.Active)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	return d, err
}

// InsertNamedEntityData appends a named entity revision.
func (r Repo) InsertNamedEntityData(ctx context.Context, tx *sql.Tx, d domain.NamedEntityData) (domain.NamedEntityData, error) {
	res, err := r.q(tx).ExecContext(ctx, `INSERT INTO named_entity_data(named_entity_id, creation_time, creator_user_id, name, active) VALUES (?,?,?,?,?)`,
		d.NamedEntityID, d.CreationTime, d.CreatorUserID, d.Name, d.Active)
	if err != nil {
		return d, err
	}
	d.RevisionID, err = res.LastInsertId()
	return d, err
}

// LatestNamedEntityData returns the current revision of a named entity.
func (r Repo) LatestNamedEntityData(ctx context.Context, tx *sql.Tx, id string) (domain.NamedEntityData, error) {
	return scanNamedEntity(r.q(tx).QueryRowContext(ctx, `SELECT `+namedEntityColumns+` FROM named_entity_data ne WHERE ne.named_entity_id=? ORDER BY ne.named_entity_data_id DESC LIMIT 1`, id))
}

// ListNamedEntityData returns named entity revisions.
func (r Repo) ListNamedEntityData(ctx context.Context, f OwnerFilter) ([]domain.NamedEntityData, error) {
	query := `SELECT ` + namedEntityColumns + ` FROM named_entity_data ne` +
		latestJoin(f.OnlyRecent, "named_entity_data", "ne", "named_entity_data_id", "named_entity_id")
	var w where
	w.in("ne.named_entity_id", f.IDs)
	w.in("ne.creator_user_id", f.CreatorUserIDs)
	w.boolean("ne.active", f.Active)
	w.text("ne.name", f.Name)
	w.contains("ne.name", f.PartialName)
	query += w.sql() + ` ORDER BY ne.named_entity_data_id` + f.Page.clause(&w)
	rows, err := r.DB.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.NamedEntityData
	for rows.Next() {
		d, err := scanNamedEntity(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

const goalTemplateColumns = `gt.goal_template_data_id, gt.goal_template_id, gt.creation_time, gt.creator_user_id, gt.name,
COALESCE(gt.description,''), gt.duration_estimate, gt.time_utility_function_id, gt.active`

func scanGoalTemplate(row interface{ Scan(...any) error }) (domain.GoalTemplateData, error) {
	var d domain.GoalTemplateData
	err := row.Scan(&d.RevisionID, &d.GoalTemplateID, &d.CreationTime, &d.CreatorUserID, &d.Name,
		&d.Description, &d.DurationEstimate, &d.TimeUtilityFunctionID, &d.Active)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	return d, err
}

// InsertGoalTemplateData appends a goal template revision.
func (r Repo) InsertGoalTemplateData(ctx context.Context, tx *sql.Tx, d domain.GoalTemplateData) (domain.GoalTemplateData, error) {
	res, err := r.q(tx).ExecContext(ctx, `INSERT INTO goal_template_data(goal_template_id, creation_time, creator_user_id, name, description,
duration_estimate, time_utility_function_id, active) VALUES (?,?,?,?,?,?,?,?)`,
		d.GoalTemplateID, d.CreationTime, d.CreatorUserID, d.Name, nullable(d.Description), d.DurationEstimate, d.TimeUtilityFunctionID, d.Active)
	if err != nil {
		return d, err
	}
	d.RevisionID, err = res.LastInsertId()
	return d, err
}

// LatestGoalTemplateData returns the current revision of a goal template.
func (r Repo) LatestGoalTemplateData(ctx context.Context, tx *sql.Tx, id string) (domain.GoalTemplateData, error) {
	return scanGoalTemplate(r.q(tx).QueryRowContext(ctx, `SELECT `+goalTemplateColumns+` FROM goal_template_data gt WHERE gt.goal_template_id=? ORDER BY gt.goal_template_data_id DESC LIMIT 1`, id))
}

// ListGoalTemplateData returns goal template revisions.
func (r Repo) ListGoalTemplateData(ctx context.Context, f OwnerFilter) ([]domain.GoalTemplateData, error) {
	query := `SELECT ` + goalTemplateColumns + ` FROM goal_template_data gt` +
		latestJoin(f.OnlyRecent, "goal_template_data", "gt", "goal_template_data_id", "goal_template_id")
	var w where
	w.in("gt.goal_template_id", f.IDs)
	w.in("gt.creator_user_id", f.CreatorUserIDs)
	w.boolean("gt.active", f.Active)
	w.text("gt.name", f.Name)
	w.contains("gt.name", f.PartialName)
	query += w.sql() + ` ORDER BY gt.goal_template_data_id` + f.Page.clause(&w)
	rows, err := r.DB.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.GoalTemplateData
	for rows.Next() {
		d, err := scanGoalTemplate(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

const patternColumns = `p.revision_id, p.pattern_id, p.owner_id, p.creation_time, p.creator_user_id, p.pattern, p.active`

func scanPattern(row interface{ Scan(...any) error }) (domain.Pattern, error) {
	var p domain.Pattern
	err := row.Scan(&p.RevisionID, &p.PatternID, &p.OwnerID, &p.CreationTime, &p.CreatorUserID, &p.Pattern, &p.Active)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

// InsertPattern appends a pattern revision to table.
func (r Repo) InsertPattern(ctx context.Context, tx *sql.Tx, table PatternTable, p domain.Pattern) (domain.Pattern, error) {
	if p.PatternID == "" || p.OwnerID == "" {
		return p, errors.New("pattern_id and owner_id required")
	}
	res, err := r.q(tx).ExecContext(ctx, `INSERT INTO `+string(table)+`(pattern_id, owner_id, creation_time, creator_user_id, pattern, active) VALUES (?,?,?,?,?,?)`,
		p.PatternID, p.OwnerID, p.CreationTime, p.CreatorUserID, p.Pattern, p.Active)
	if err != nil {
		return p, err
	}
	p.RevisionID, err = res.LastInsertId()
	return p, err
}

// LatestPattern returns the current revision of a pattern.
func (r Repo) LatestPattern(ctx context.Context, tx *sql.Tx, table PatternTable, patternID string) (domain.Pattern, error) {
	return scanPattern(r.q(tx).QueryRowContext(ctx, `SELECT `+patternColumns+` FROM `+string(table)+` p WHERE p.pattern_id=? ORDER BY p.revision_id DESC LIMIT 1`, patternID))
}

// ListPatterns returns pattern revisions from table.
func (r Repo) ListPatterns(ctx context.Context, table PatternTable, f PatternFilter) ([]domain.Pattern, error) {
	query := `SELECT ` + patternColumns + ` FROM ` + string(table) + ` p` +
		latestJoin(f.OnlyRecent, string(table), "p", "revision_id", "pattern_id")
	var w where
	w.in("p.pattern_id", f.PatternIDs)
	w.in("p.owner_id", f.OwnerIDs)
	w.in("p.creator_user_id", f.CreatorUserIDs)
	w.boolean("p.active", f.Active)
	query += w.sql() + ` ORDER BY p.revision_id` + f.Page.clause(&w)
	rows, err := r.DB.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}
