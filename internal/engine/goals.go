package engine

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"tufline/internal/audit"
	"tufline/internal/domain"
	"tufline/internal/failure"
	"tufline/internal/logger"
	"tufline/internal/repo"
)

// GoalCreateOptions are parameters for creating a goal. StartTime and Duration
// are only read when Scheduled is set.
type GoalCreateOptions struct {
	Name                  string
	Description           string
	DurationEstimate      int64
	TimeUtilityFunctionID string
	Scheduled             bool
	StartTime             *int64
	Duration              *int64
}

// GoalReviseOptions change a goal by appending a superseding revision. Nil
// fields keep their current value.
type GoalReviseOptions struct {
	Name                  *string
	Description           *string
	DurationEstimate      *int64
	TimeUtilityFunctionID *string
	Scheduled             *bool
	StartTime             *int64
	Duration              *int64
	Status                *string
}

func validateGoal(g *domain.GoalData) error {
	g.Name = strings.TrimSpace(g.Name)
	if g.Name == "" {
		return failure.New(failure.NameEmpty, "goal name empty")
	}
	if g.DurationEstimate <= 0 {
		return failure.New(failure.DurationNotValid, "duration estimate must be positive")
	}
	if !g.Scheduled {
		g.StartTime, g.Duration = nil, nil
		return nil
	}
	if g.StartTime == nil || g.Duration == nil || *g.Duration <= 0 {
		return failure.New(failure.ScheduleNotValid, "scheduled goal needs start_time and positive duration")
	}
	return nil
}

func (e Engine) requireCurve(ctx context.Context, tx *sql.Tx, id string) error {
	ok, err := e.Repo.TimeUtilityFunctionExists(ctx, tx, id)
	if err != nil {
		return err
	}
	if !ok {
		return failure.New(failure.TimeUtilityFunctionNonexistent, "time utility function %q nonexistent", id)
	}
	return nil
}

// CreateGoal stores a new PENDING goal bound to an existing curve, then
// resolves its tags and templates.
func (e Engine) CreateGoal(ctx context.Context, apiKey string, opts GoalCreateOptions) (g domain.GoalData, err error) {
	defer func() { err = e.finish(ctx, "create_goal", err) }()
	p, err := e.authenticate(ctx, apiKey)
	if err != nil {
		return g, err
	}
	g = domain.GoalData{
		GoalID:                uuid.NewString(),
		CreationTime:          e.nowMillis(),
		CreatorUserID:         p.UserID,
		Name:                  opts.Name,
		Description:           strings.TrimSpace(opts.Description),
		DurationEstimate:      opts.DurationEstimate,
		TimeUtilityFunctionID: opts.TimeUtilityFunctionID,
		Scheduled:             opts.Scheduled,
		StartTime:             opts.StartTime,
		Duration:              opts.Duration,
		Status:                domain.StatusPending,
	}
	if err := validateGoal(&g); err != nil {
		return domain.GoalData{}, err
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.requireCurve(ctx, tx, g.TimeUtilityFunctionID); err != nil {
			return err
		}
		if err := e.Repo.InsertGoal(ctx, tx, g.GoalID, g.CreationTime, g.CreatorUserID); err != nil {
			return err
		}
		var err error
		if g, err = e.Repo.InsertGoalData(ctx, tx, g); err != nil {
			return err
		}
		return e.audit().Append(ctx, tx, "goal.create", "goal", g.GoalID, p.UserID,
			audit.Payload{"name": g.Name, "time_utility_function_id": g.TimeUtilityFunctionID})
	})
	if err != nil {
		return domain.GoalData{}, err
	}
	e.resolveEagerly(ctx, p.UserID, g.GoalID)
	return g, nil
}

// resolveEagerly derives associations for a freshly written goal. The goal is
// already committed, so a failure here is logged and left for the next resolve run.
func (e Engine) resolveEagerly(ctx context.Context, userID, goalID string) {
	if _, err := e.resolveFor(ctx, userID, []string{goalID}); err != nil {
		e.log().Warn(ctx, "eager tag resolution failed", logger.String("goal_id", goalID), logger.Error(err))
	}
}

// ReviseGoal appends a revision superseding the caller's goal. Goals in a
// terminal status cannot be revised.
func (e Engine) ReviseGoal(ctx context.Context, apiKey, goalID string, opts GoalReviseOptions) (g domain.GoalData, err error) {
	defer func() { err = e.finish(ctx, "revise_goal", err) }()
	p, err := e.authenticate(ctx, apiKey)
	if err != nil {
		return g, err
	}
	var renamed bool
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := e.Repo.LatestGoalData(ctx, tx, goalID)
		if err != nil {
			return missing(err, failure.GoalNonexistent, "goal %s nonexistent", goalID)
		}
		if cur.CreatorUserID != p.UserID {
			return failure.New(failure.GoalNonexistent, "goal %s nonexistent", goalID)
		}
		if cur.Status != domain.StatusPending {
			return failure.New(failure.StatusNotValid, "goal %s is %s", goalID, cur.Status)
		}
		next := cur
		next.RevisionID = 0
		next.CreationTime = e.nowMillis()
		applyGoalRevision(&next, opts)
		if opts.Status != nil && !domain.ValidStatus(next.Status) {
			return failure.New(failure.StatusNotValid, "unknown status %q", next.Status)
		}
		if err := validateGoal(&next); err != nil {
			return err
		}
		if next.TimeUtilityFunctionID != cur.TimeUtilityFunctionID {
			if err := e.requireCurve(ctx, tx, next.TimeUtilityFunctionID); err != nil {
				return err
			}
		}
		renamed = next.Name != cur.Name || next.Description != cur.Description
		if g, err = e.Repo.InsertGoalData(ctx, tx, next); err != nil {
			return err
		}
		return e.audit().Append(ctx, tx, "goal.revise", "goal", goalID, p.UserID,
			audit.Payload{"status": g.Status, "revision_id": g.RevisionID})
	})
	if err != nil {
		return domain.GoalData{}, err
	}
	if renamed {
		e.resolveEagerly(ctx, p.UserID, goalID)
	}
	return g, nil
}

func applyGoalRevision(g *domain.GoalData, opts GoalReviseOptions) {
	if opts.Name != nil {
		g.Name = *opts.Name
	}
	if opts.Description != nil {
		g.Description = strings.TrimSpace(*opts.Description)
	}
	if opts.DurationEstimate != nil {
		g.DurationEstimate = *opts.DurationEstimate
	}
	if opts.TimeUtilityFunctionID != nil {
		g.TimeUtilityFunctionID = *opts.TimeUtilityFunctionID
	}
	if opts.Scheduled != nil {
		g.Scheduled = *opts.Scheduled
	}
	if opts.StartTime != nil {
		g.StartTime = opts.StartTime
	}
	if opts.Duration != nil {
		g.Duration = opts.Duration
	}
	if opts.Status != nil {
		g.Status = *opts.Status
	}
}

// ListGoals returns goal revisions matching f.
func (e Engine) ListGoals(ctx context.Context, apiKey string, f repo.GoalFilter) (res []domain.GoalData, err error) {
	defer func() { err = e.finish(ctx, "list_goals", err) }()
	if _, err := e.authenticate(ctx, apiKey); err != nil {
		return nil, err
	}
	for _, s := range f.Statuses {
		if !domain.ValidStatus(s) {
			return nil, failure.New(failure.StatusNotValid, "unknown status %q", s)
		}
	}
	return e.Repo.ListGoalData(ctx, f)
}

// ListPendingGoals lists the pending goals of creatorID.
func (e Engine) ListPendingGoals(ctx context.Context, apiKey, creatorID string, onlyRecent bool) ([]domain.GoalData, error) {
	return e.ListGoals(ctx, apiKey, repo.GoalFilter{
		CreatorUserIDs: []string{creatorID},
		Statuses:       []string{domain.StatusPending},
		OnlyRecent:     onlyRecent,
	})
}

// CreateGoalEvent records that a goal of the caller happened over [start, start+duration).
func (e Engine) CreateGoalEvent(ctx context.Context, apiKey, goalID string, start, duration int64) (ev domain.GoalEvent, err error) {
	defer func() { err = e.finish(ctx, "create_goal_event", err) }()
	p, err := e.authenticate(ctx, apiKey)
	if err != nil {
		return ev, err
	}
	if duration <= 0 {
		return ev, failure.New(failure.DurationNotValid, "event duration must be positive")
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		g, err := e.Repo.LatestGoalData(ctx, tx, goalID)
		if err != nil {
			return missing(err, failure.GoalNonexistent, "goal %s nonexistent", goalID)
		}
		if g.CreatorUserID != p.UserID {
			return failure.New(failure.GoalNonexistent, "goal %s nonexistent", goalID)
		}
		ev, err = e.Repo.InsertGoalEvent(ctx, tx, domain.GoalEvent{
			GoalID:        goalID,
			CreationTime:  e.nowMillis(),
			CreatorUserID: p.UserID,
			StartTime:     start,
			Duration:      duration,
			Active:        true,
		})
		if err != nil {
			return err
		}
		return e.audit().Append(ctx, tx, "goal_event.create", "goal", goalID, p.UserID,
			audit.Payload{"start_time": start, "duration": duration})
	})
	return ev, err
}

// ListGoalEvents returns goal event revisions matching f.
func (e Engine) ListGoalEvents(ctx context.Context, apiKey string, f repo.GoalEventFilter) (res []domain.GoalEvent, err error) {
	defer func() { err = e.finish(ctx, "list_goal_events", err) }()
	if _, err := e.authenticate(ctx, apiKey); err != nil {
		return nil, err
	}
	return e.Repo.ListGoalEvents(ctx, f)
}
