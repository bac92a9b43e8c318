package engine

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"tufline/internal/audit"
	"tufline/internal/domain"
	"tufline/internal/failure"
	"tufline/internal/repo"
)

// ownerKind describes one kind of pattern owner.
type ownerKind struct {
	name    string
	table   repo.PatternTable
	missing failure.Code
	// creator loads the owner's current revision creator.
	creator func(ctx context.Context, tx *sql.Tx, id string) (string, error)
}

func (e Engine) namedEntityKind() ownerKind {
	return ownerKind{
		name:    "named_entity",
		table:   repo.NamedEntityPatterns,
		missing: failure.NamedEntityNonexistent,
		creator: func(ctx context.Context, tx *sql.Tx, id string) (string, error) {
			d, err := e.Repo.LatestNamedEntityData(ctx, tx, id)
			return d.CreatorUserID, err
		},
	}
}

func (e Engine) goalTemplateKind() ownerKind {
	return ownerKind{
		name:    "goal_template",
		table:   repo.GoalTemplatePatterns,
		missing: failure.GoalTemplateNonexistent,
		creator: func(ctx context.Context, tx *sql.Tx, id string) (string, error) {
			d, err := e.Repo.LatestGoalTemplateData(ctx, tx, id)
			return d.CreatorUserID, err
		},
	}
}

// requireOwner fails with the kind's nonexistent code unless id belongs to userID.
func (e Engine) requireOwner(ctx context.Context, tx *sql.Tx, k ownerKind, id, userID string) error {
	creator, err := k.creator(ctx, tx, id)
	if err != nil {
		return missing(err, k.missing, "%s %s nonexistent", k.name, id)
	}
	if creator != userID {
		return failure.New(k.missing, "%s %s nonexistent", k.name, id)
	}
	return nil
}

// CreateNamedEntity stores a new active named entity.
func (e Engine) CreateNamedEntity(ctx context.Context, apiKey, name string) (d domain.NamedEntityData, err error) {
	defer func() { err = e.finish(ctx, "create_named_entity", err) }()
	p, err := e.authenticate(ctx, apiKey)
	if err != nil {
		return d, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return d, failure.New(failure.NameEmpty, "named entity name empty")
	}
	d = domain.NamedEntityData{
		NamedEntityID: uuid.NewString(),
		CreationTime:  e.nowMillis(),
		CreatorUserID: p.UserID,
		Name:          name,
		Active:        true,
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertNamedEntity(ctx, tx, d.NamedEntityID, d.CreationTime, d.CreatorUserID); err != nil {
			return err
		}
		var err error
		if d, err = e.Repo.InsertNamedEntityData(ctx, tx, d); err != nil {
			return err
		}
		return e.audit().Append(ctx, tx, "named_entity.create", "named_entity", d.NamedEntityID, p.UserID, audit.Payload{"name": d.Name})
	})
	return d, err
}

// ReviseNamedEntity renames or (de)activates a named entity. Deactivation only
// affects future resolve runs.
func (e Engine) ReviseNamedEntity(ctx context.Context, apiKey, id string, name *string, active *bool) (d domain.NamedEntityData, err error) {
	defer func() { err = e.finish(ctx, "revise_named_entity", err) }()
	p, err := e.authenticate(ctx, apiKey)
	if err != nil {
		return d, err
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := e.Repo.LatestNamedEntityData(ctx, tx, id)
		if err != nil {
			return missing(err, failure.NamedEntityNonexistent, "named entity %s nonexistent", id)
		}
		if cur.CreatorUserID != p.UserID {
			return failure.New(failure.NamedEntityNonexistent, "named entity %s nonexistent", id)
		}
		next := cur
		next.CreationTime = e.nowMillis()
		if name != nil {
			next.Name = strings.TrimSpace(*name)
		}
		if active != nil {
			next.Active = *active
		}
		if next.Name == "" {
			return failure.New(failure.NameEmpty, "named entity name empty")
		}
		if d, err = e.Repo.InsertNamedEntityData(ctx, tx, next); err != nil {
			return err
		}
		return e.audit().Append(ctx, tx, "named_entity.revise", "named_entity", id, p.UserID,
			audit.Payload{"name": d.Name, "active": d.Active})
	})
	return d, err
}

// ListNamedEntities returns named entity revisions matching f.
func (e Engine) ListNamedEntities(ctx context.Context, apiKey string, f repo.OwnerFilter) (res []domain.NamedEntityData, err error) {
	defer func() { err = e.finish(ctx, "list_named_entities", err) }()
	if _, err := e.authenticate(ctx, apiKey); err != nil {
		return nil, err
	}
	return e.Repo.ListNamedEntityData(ctx, f)
}

// TemplateCreateOptions are parameters for creating a goal template.
type TemplateCreateOptions struct {
	Name                  string
	Description           string
	DurationEstimate      int64
	TimeUtilityFunctionID string
}

// TemplateReviseOptions change a goal template. Nil fields keep their value.
type TemplateReviseOptions struct {
	Name                  *string
	Description           *string
	DurationEstimate      *int64
	TimeUtilityFunctionID *string
	Active                *bool
}

func validateTemplate(d *domain.GoalTemplateData) error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return failure.New(failure.NameEmpty, "goal template name empty")
	}
	if d.DurationEstimate <= 0 {
		return failure.New(failure.DurationNotValid, "duration estimate must be positive")
	}
	return nil
}

// CreateGoalTemplate stores a new active goal template bound to an existing curve.
func (e Engine) CreateGoalTemplate(ctx context.Context, apiKey string, opts TemplateCreateOptions) (d domain.GoalTemplateData, err error) {
	defer func() { err = e.finish(ctx, "create_goal_template", err) }()
	p, err := e.authenticate(ctx, apiKey)
	if err != nil {
		return d, err
	}
	d = domain.GoalTemplateData{
		GoalTemplateID:        uuid.NewString(),
		CreationTime:          e.nowMillis(),
		CreatorUserID:         p.UserID,
		Name:                  opts.Name,
		Description:           strings.TrimSpace(opts.Description),
		DurationEstimate:      opts.DurationEstimate,
		TimeUtilityFunctionID: opts.TimeUtilityFunctionID,
		Active:                true,
	}
	if err := validateTemplate(&d); err != nil {
		return domain.GoalTemplateData{}, err
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.requireCurve(ctx, tx, d.TimeUtilityFunctionID); err != nil {
			return err
		}
		if err := e.Repo.InsertGoalTemplate(ctx, tx, d.GoalTemplateID, d.CreationTime, d.CreatorUserID); err != nil {
			return err
		}
		var err error
		if d, err = e.Repo.InsertGoalTemplateData(ctx, tx, d); err != nil {
			return err
		}
		return e.audit().Append(ctx, tx, "goal_template.create", "goal_template", d.GoalTemplateID, p.UserID, audit.Payload{"name": d.Name})
	})
	return d, err
}

// ReviseGoalTemplate appends a superseding template revision.
func (e Engine) ReviseGoalTemplate(ctx context.Context, apiKey, id string, opts TemplateReviseOptions) (d domain.GoalTemplateData, err error) {
	defer func() { err = e.finish(ctx, "revise_goal_template", err) }()
	p, err := e.authenticate(ctx, apiKey)
	if err != nil {
		return d, err
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := e.Repo.LatestGoalTemplateData(ctx, tx, id)
		if err != nil {
			return missing(err, failure.GoalTemplateNonexistent, "goal template %s nonexistent", id)
		}
		if cur.CreatorUserID != p.UserID {
			return failure.New(failure.GoalTemplateNonexistent, "goal template %s nonexistent", id)
		}
		next := cur
		next.CreationTime = e.nowMillis()
		if opts.Name != nil {
			next.Name = *opts.Name
		}
		if opts.Description != nil {
			next.Description = strings.TrimSpace(*opts.Description)
		}
		if opts.DurationEstimate != nil {
			next.DurationEstimate = *opts.DurationEstimate
		}
		if opts.TimeUtilityFunctionID != nil {
			next.TimeUtilityFunctionID = *opts.TimeUtilityFunctionID
		}
		if opts.Active != nil {
			next.Active = *opts.Active
		}
		if err := validateTemplate(&next); err != nil {
			return err
		}
		if next.TimeUtilityFunctionID != cur.TimeUtilityFunctionID {
			if err := e.requireCurve(ctx, tx, next.TimeUtilityFunctionID); err != nil {
				return err
			}
		}
		if d, err = e.Repo.InsertGoalTemplateData(ctx, tx, next); err != nil {
			return err
		}
		return e.audit().Append(ctx, tx, "goal_template.revise", "goal_template", id, p.UserID,
			audit.Payload{"name": d.Name, "active": d.Active})
	})
	return d, err
}

// ListGoalTemplates returns goal template revisions matching f.
func (e Engine) ListGoalTemplates(ctx context.Context, apiKey string, f repo.OwnerFilter) (res []domain.GoalTemplateData, err error) {
	defer func() { err = e.finish(ctx, "list_goal_templates", err) }()
	if _, err := e.authenticate(ctx, apiKey); err != nil {
		return nil, err
	}
	return e.Repo.ListGoalTemplateData(ctx, f)
}

func (e Engine) createPattern(ctx context.Context, apiKey string, k ownerKind, ownerID, text string) (pat domain.Pattern, err error) {
	defer func() { err = e.finish(ctx, "create_"+k.name+"_pattern", err) }()
	p, err := e.authenticate(ctx, apiKey)
	if err != nil {
		return pat, err
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.requireOwner(ctx, tx, k, ownerID, p.UserID); err != nil {
			return err
		}
		var err error
		pat, err = e.Repo.InsertPattern(ctx, tx, k.table, domain.Pattern{
			PatternID:     uuid.NewString(),
			OwnerID:       ownerID,
			CreationTime:  e.nowMillis(),
			CreatorUserID: p.UserID,
			Pattern:       text,
			Active:        true,
		})
		if err != nil {
			return err
		}
		return e.audit().Append(ctx, tx, k.name+"_pattern.create", k.name, ownerID, p.UserID,
			audit.Payload{"pattern_id": pat.PatternID, "pattern": text})
	})
	return pat, err
}

func (e Engine) deactivatePattern(ctx context.Context, apiKey string, k ownerKind, patternID string) (pat domain.Pattern, err error) {
	defer func() { err = e.finish(ctx, "deactivate_"+k.name+"_pattern", err) }()
	p, err := e.authenticate(ctx, apiKey)
	if err != nil {
		return pat, err
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := e.Repo.LatestPattern(ctx, tx, k.table, patternID)
		if err != nil {
			return missing(err, failure.PatternNonexistent, "pattern %s nonexistent", patternID)
		}
		if cur.CreatorUserID != p.UserID {
			return failure.New(failure.PatternNonexistent, "pattern %s nonexistent", patternID)
		}
		if !cur.Active {
			pat = cur
			return nil
		}
		cur.CreationTime = e.nowMillis()
		cur.Active = false
		if pat, err = e.Repo.InsertPattern(ctx, tx, k.table, cur); err != nil {
			return err
		}
		return e.audit().Append(ctx, tx, k.name+"_pattern.deactivate", k.name, cur.OwnerID, p.UserID,
			audit.Payload{"pattern_id": patternID})
	})
	return pat, err
}

func (e Engine) listPatterns(ctx context.Context, apiKey string, k ownerKind, f repo.PatternFilter) (res []domain.Pattern, err error) {
	defer func() { err = e.finish(ctx, "list_"+k.name+"_patterns", err) }()
	if _, err := e.authenticate(ctx, apiKey); err != nil {
		return nil, err
	}
	return e.Repo.ListPatterns(ctx, k.table, f)
}

// CreateNamedEntityPattern adds an active pattern to a named entity.
func (e Engine) CreateNamedEntityPattern(ctx context.Context, apiKey, entityID, text string) (domain.Pattern, error) {
	return e.createPattern(ctx, apiKey, e.namedEntityKind(), entityID, text)
}

// DeactivateNamedEntityPattern stops a pattern from tagging goals in future resolve runs.
func (e Engine) DeactivateNamedEntityPattern(ctx context.Context, apiKey, patternID string) (domain.Pattern, error) {
	return e.deactivatePattern(ctx, apiKey, e.namedEntityKind(), patternID)
}

func (e Engine) ListNamedEntityPatterns(ctx context.Context, apiKey string, f repo.PatternFilter) ([]domain.Pattern, error) {
	return e.listPatterns(ctx, apiKey, e.namedEntityKind(), f)
}

// CreateGoalTemplatePattern adds an active pattern to a goal template.
func (e Engine) CreateGoalTemplatePattern(ctx context.Context, apiKey, templateID, text string) (domain.Pattern, error) {
	return e.createPattern(ctx, apiKey, e.goalTemplateKind(), templateID, text)
}

func (e Engine) DeactivateGoalTemplatePattern(ctx context.Context, apiKey, patternID string) (domain.Pattern, error) {
	return e.deactivatePattern(ctx, apiKey, e.goalTemplateKind(), patternID)
}

func (e Engine) ListGoalTemplatePatterns(ctx context.Context, apiKey string, f repo.PatternFilter) ([]domain.Pattern, error) {
	return e.listPatterns(ctx, apiKey, e.goalTemplateKind(), f)
}
