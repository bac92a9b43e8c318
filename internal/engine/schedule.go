package engine

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/google/uuid"

	"tufline/internal/audit"
	"tufline/internal/domain"
	"tufline/internal/failure"
	"tufline/internal/repo"
	"tufline/internal/tuf"
)

// InstantiateTemplate creates a goal from an active template whose curve is
// shifted by anchor milliseconds. The goal gets its own curve and an
// "instantiated" template link.
func (e Engine) InstantiateTemplate(ctx context.Context, apiKey, templateID string, anchor int64) (g domain.GoalData, err error) {
	defer func() { err = e.finish(ctx, "instantiate_template", err) }()
	p, err := e.authenticate(ctx, apiKey)
	if err != nil {
		return g, err
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		tpl, err := e.Repo.LatestGoalTemplateData(ctx, tx, templateID)
		if err != nil {
			return missing(err, failure.GoalTemplateNonexistent, "goal template %s nonexistent", templateID)
		}
		if tpl.CreatorUserID != p.UserID || !tpl.Active {
			return failure.New(failure.GoalTemplateNonexistent, "goal template %s nonexistent", templateID)
		}
		src, err := e.loadCurve(ctx, tx, tpl.TimeUtilityFunctionID)
		if err != nil {
			return err
		}
		c, err := src.Curve()
		if err != nil {
			return err
		}
		shifted, err := c.Shift(anchor)
		if err != nil {
			return failure.Wrap(failure.TimeUtilityFunctionNotValid, err, "curve shifted by %d not valid", anchor)
		}
		now := e.nowMillis()
		curve := domain.TimeUtilityFunction{
			ID:            uuid.NewString(),
			CreationTime:  now,
			CreatorUserID: p.UserID,
			Points:        shifted.Points(),
		}
		if err := e.Repo.InsertTimeUtilityFunction(ctx, tx, curve); err != nil {
			return err
		}
		g = domain.GoalData{
			GoalID:                uuid.NewString(),
			CreationTime:          now,
			CreatorUserID:         p.UserID,
			Name:                  tpl.Name,
			Description:           tpl.Description,
			DurationEstimate:      tpl.DurationEstimate,
			TimeUtilityFunctionID: curve.ID,
			Status:                domain.StatusPending,
		}
		if err := e.Repo.InsertGoal(ctx, tx, g.GoalID, now, p.UserID); err != nil {
			return err
		}
		if g, err = e.Repo.InsertGoalData(ctx, tx, g); err != nil {
			return err
		}
		link := domain.GoalTemplateLink{GoalID: g.GoalID, GoalTemplateID: templateID, CreationTime: now, Source: domain.LinkSourceInstantiated}
		if _, err := e.Repo.InsertGoalTemplateLink(ctx, tx, link); err != nil {
			return err
		}
		return e.audit().Append(ctx, tx, "goal_template.instantiate", "goal", g.GoalID, p.UserID,
			audit.Payload{"goal_template_id": templateID, "anchor": anchor, "time_utility_function_id": curve.ID})
	})
	if err != nil {
		return domain.GoalData{}, err
	}
	e.resolveEagerly(ctx, p.UserID, g.GoalID)
	return g, nil
}

// SuggestSchedule finds the best start inside [windowStart, windowEnd] for each
// of the caller's pending unscheduled goals. Goals with no defined utility in
// the window are left out. Results are ordered by utility, highest first.
func (e Engine) SuggestSchedule(ctx context.Context, apiKey string, windowStart, windowEnd int64) (res []domain.ScheduleSuggestion, err error) {
	defer func() { err = e.finish(ctx, "suggest_schedule", err) }()
	p, err := e.authenticate(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if err := checkWindow(windowStart, windowEnd); err != nil {
		return nil, err
	}
	if e.Config != nil {
		if horizon := e.Config.Schedule.Horizon.Milliseconds(); horizon > 0 && windowEnd-windowStart > horizon {
			return nil, failure.New(failure.WindowNotValid, "window longer than %s", e.Config.Schedule.Horizon.Duration)
		}
	}
	unscheduled := false
	goals, err := e.Repo.ListGoalData(ctx, repo.GoalFilter{
		CreatorUserIDs: []string{p.UserID},
		Statuses:       []string{domain.StatusPending},
		Scheduled:      &unscheduled,
		OnlyRecent:     true,
	})
	if err != nil {
		return nil, err
	}
	curves := map[string]tuf.Curve{}
	res = []domain.ScheduleSuggestion{}
	for _, g := range goals {
		c, ok := curves[g.TimeUtilityFunctionID]
		if !ok {
			f, err := e.loadCurve(ctx, nil, g.TimeUtilityFunctionID)
			if err != nil {
				return nil, err
			}
			if c, err = f.Curve(); err != nil {
				return nil, err
			}
			curves[g.TimeUtilityFunctionID] = c
		}
		start, found := c.BestStart(windowStart, windowEnd, g.DurationEstimate)
		if !found {
			continue
		}
		u, err := c.UtilityAt(start)
		if errors.Is(err, tuf.ErrOutOfDomain) {
			continue
		}
		if err != nil {
			return nil, err
		}
		res = append(res, domain.ScheduleSuggestion{GoalID: g.GoalID, Name: g.Name, StartTime: start, Utility: u})
	}
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].Utility != res[j].Utility {
			return res[i].Utility > res[j].Utility
		}
		return res[i].GoalID < res[j].GoalID
	})
	return res, nil
}

// Dashboard returns the caller's pending goals with their latest event, tags
// and templates. Associations are refreshed first.
func (e Engine) Dashboard(ctx context.Context, apiKey string) (res []domain.DashboardGoal, err error) {
	defer func() { err = e.finish(ctx, "dashboard", err) }()
	p, err := e.authenticate(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	goals, err := e.Repo.ListGoalData(ctx, repo.GoalFilter{
		CreatorUserIDs: []string{p.UserID},
		Statuses:       []string{domain.StatusPending},
		OnlyRecent:     true,
	})
	if err != nil {
		return nil, err
	}
	res = []domain.DashboardGoal{}
	if len(goals) == 0 {
		return res, nil
	}
	ids := make([]string, len(goals))
	for i, g := range goals {
		ids[i] = g.GoalID
	}
	if _, err := e.resolveFor(ctx, p.UserID, ids); err != nil {
		return nil, err
	}

	events, err := e.Repo.ListGoalEvents(ctx, repo.GoalEventFilter{GoalIDs: ids, OnlyRecent: true})
	if err != nil {
		return nil, err
	}
	eventByGoal := map[string]domain.GoalEvent{}
	for _, ev := range events {
		if ev.Active {
			eventByGoal[ev.GoalID] = ev
		}
	}

	tags, err := e.Repo.ListGoalTags(ctx, ids)
	if err != nil {
		return nil, err
	}
	entities, err := e.Repo.ListNamedEntityData(ctx, repo.OwnerFilter{CreatorUserIDs: []string{p.UserID}, OnlyRecent: true})
	if err != nil {
		return nil, err
	}
	entityByID := map[string]domain.NamedEntityData{}
	for _, d := range entities {
		entityByID[d.NamedEntityID] = d
	}
	tagsByGoal := map[string][]domain.NamedEntityData{}
	for _, t := range tags {
		if d, ok := entityByID[t.NamedEntityID]; ok {
			tagsByGoal[t.GoalID] = append(tagsByGoal[t.GoalID], d)
		}
	}

	links, err := e.Repo.ListGoalTemplateLinks(ctx, ids)
	if err != nil {
		return nil, err
	}
	templates, err := e.Repo.ListGoalTemplateData(ctx, repo.OwnerFilter{CreatorUserIDs: []string{p.UserID}, OnlyRecent: true})
	if err != nil {
		return nil, err
	}
	templateByID := map[string]domain.GoalTemplateData{}
	for _, d := range templates {
		templateByID[d.GoalTemplateID] = d
	}
	templatesByGoal := map[string][]domain.GoalTemplateData{}
	for _, l := range links {
		if d, ok := templateByID[l.GoalTemplateID]; ok {
			templatesByGoal[l.GoalID] = append(templatesByGoal[l.GoalID], d)
		}
	}

	for _, g := range goals {
		row := domain.DashboardGoal{
			Goal:      g,
			Tags:      tagsByGoal[g.GoalID],
			Templates: templatesByGoal[g.GoalID],
		}
		if ev, ok := eventByGoal[g.GoalID]; ok {
			row.Event = &ev
		}
		if row.Tags == nil {
			row.Tags = []domain.NamedEntityData{}
		}
		if row.Templates == nil {
			row.Templates = []domain.GoalTemplateData{}
		}
		res = append(res, row)
	}
	return res, nil
}
