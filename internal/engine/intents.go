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

// CreateGoalIntent stores a new active goal intent.
func (e Engine) CreateGoalIntent(ctx context.Context, apiKey, name string) (d domain.GoalIntentData, err error) {
	defer func() { err = e.finish(ctx, "create_goal_intent", err) }()
	p, err := e.authenticate(ctx, apiKey)
	if err != nil {
		return d, err
	}
	if name = strings.TrimSpace(name); name == "" {
		return d, failure.New(failure.NameEmpty, "goal intent name empty")
	}
	d = domain.GoalIntentData{
		GoalIntentID:  uuid.NewString(),
		CreationTime:  e.nowMillis(),
		CreatorUserID: p.UserID,
		Name:          name,
		Active:        true,
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertGoalIntent(ctx, tx, d.GoalIntentID, d.CreationTime, d.CreatorUserID); err != nil {
			return err
		}
		var err error
		if d, err = e.Repo.InsertGoalIntentData(ctx, tx, d); err != nil {
			return err
		}
		return e.audit().Append(ctx, tx, "goal_intent.create", "goal_intent", d.GoalIntentID, p.UserID, audit.Payload{"name": d.Name})
	})
	return d, err
}

// ReviseGoalIntent appends a revision renaming or (de)activating an intent.
// Nil arguments keep the current value.
func (e Engine) ReviseGoalIntent(ctx context.Context, apiKey, id string, name *string, active *bool) (d domain.GoalIntentData, err error) {
	defer func() { err = e.finish(ctx, "revise_goal_intent", err) }()
	p, err := e.authenticate(ctx, apiKey)
	if err != nil {
		return d, err
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := e.Repo.LatestGoalIntentData(ctx, tx, id)
		if err != nil {
			return missing(err, failure.GoalIntentNonexistent, "goal intent %s nonexistent", id)
		}
		if cur.CreatorUserID != p.UserID {
			return failure.New(failure.GoalIntentNonexistent, "goal intent %s nonexistent", id)
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
			return failure.New(failure.NameEmpty, "goal intent name empty")
		}
		if d, err = e.Repo.InsertGoalIntentData(ctx, tx, next); err != nil {
			return err
		}
		return e.audit().Append(ctx, tx, "goal_intent.revise", "goal_intent", id, p.UserID,
			audit.Payload{"name": d.Name, "active": d.Active})
	})
	return d, err
}

// ListGoalIntents returns goal intent revisions matching f.
func (e Engine) ListGoalIntents(ctx context.Context, apiKey string, f repo.OwnerFilter) (res []domain.GoalIntentData, err error) {
	defer func() { err = e.finish(ctx, "list_goal_intents", err) }()
	if _, err := e.authenticate(ctx, apiKey); err != nil {
		return nil, err
	}
	return e.Repo.ListGoalIntentData(ctx, f)
}
