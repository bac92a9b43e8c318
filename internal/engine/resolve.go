package engine

import (
	"context"
	"database/sql"
	"time"

	"tufline/internal/audit"
	"tufline/internal/domain"
	"tufline/internal/logger"
	"tufline/internal/pattern"
	"tufline/internal/repo"
)

// ResolveResult lists the associations a resolve run newly created.
type ResolveResult struct {
	Goals int                       `json:"goals"`
	Tags  []domain.GoalTag          `json:"tags"`
	Links []domain.GoalTemplateLink `json:"links"`
}

// ResolveAssociations matches the caller's current goals against the live
// patterns of their named entities and goal templates. An empty goalIDs
// resolves every current goal of the caller. Existing associations are never removed.
func (e Engine) ResolveAssociations(ctx context.Context, apiKey string, goalIDs []string) (res ResolveResult, err error) {
	defer func() { err = e.finish(ctx, "resolve_associations", err) }()
	p, err := e.authenticate(ctx, apiKey)
	if err != nil {
		return res, err
	}
	return e.resolveFor(ctx, p.UserID, goalIDs)
}

func (e Engine) resolveFor(ctx context.Context, userID string, goalIDs []string) (ResolveResult, error) {
	started := time.Now()
	var res ResolveResult
	goals, err := e.Repo.ListGoalData(ctx, repo.GoalFilter{
		GoalIDs:        goalIDs,
		CreatorUserIDs: []string{userID},
		OnlyRecent:     true,
	})
	if err != nil {
		return res, err
	}
	res.Goals = len(goals)
	if len(goals) == 0 {
		return res, nil
	}
	candidates := make(map[string]string, len(goals))
	for _, g := range goals {
		candidates[g.GoalID] = pattern.CandidateText(g.Name, g.Description)
	}

	entityIdx, err := e.entityIndex(ctx, userID)
	if err != nil {
		return res, err
	}
	templateIdx, err := e.templateIndex(ctx, userID)
	if err != nil {
		return res, err
	}
	e.Metrics.SetActivePatterns("named_entity", entityIdx.Len())
	e.Metrics.SetActivePatterns("goal_template", templateIdx.Len())

	tagged, err := pattern.ResolveAll(ctx, candidates, entityIdx, e.workers())
	if err != nil {
		return res, err
	}
	linked, err := pattern.ResolveAll(ctx, candidates, templateIdx, e.workers())
	if err != nil {
		return res, err
	}

	now := e.nowMillis()
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		for _, g := range goals {
			for _, entityID := range tagged[g.GoalID] {
				tag := domain.GoalTag{GoalID: g.GoalID, NamedEntityID: entityID, CreationTime: now}
				ok, err := e.Repo.InsertGoalTag(ctx, tx, tag)
				if err != nil {
					return err
				}
				if ok {
					res.Tags = append(res.Tags, tag)
				}
			}
			for _, templateID := range linked[g.GoalID] {
				link := domain.GoalTemplateLink{GoalID: g.GoalID, GoalTemplateID: templateID, CreationTime: now, Source: domain.LinkSourcePattern}
				ok, err := e.Repo.InsertGoalTemplateLink(ctx, tx, link)
				if err != nil {
					return err
				}
				if ok {
					res.Links = append(res.Links, link)
				}
			}
		}
		if len(res.Tags) == 0 && len(res.Links) == 0 {
			return nil
		}
		return e.audit().Append(ctx, tx, "associations.resolve", "goal", "", userID,
			audit.Payload{"goals": len(goals), "tags": len(res.Tags), "links": len(res.Links)})
	})
	if err != nil {
		return ResolveResult{}, err
	}
	e.Metrics.AddAssociations("named_entity", len(res.Tags))
	e.Metrics.AddAssociations("goal_template", len(res.Links))
	e.Metrics.ObserveResolve(time.Since(started))
	e.log().Debug(ctx, "associations resolved",
		logger.String("user_id", userID),
		logger.Int("goals", len(goals)),
		logger.Int("tags", len(res.Tags)),
		logger.Int("links", len(res.Links)),
	)
	return res, nil
}

func (e Engine) entityIndex(ctx context.Context, userID string) (*pattern.Index, error) {
	owners, err := e.Repo.ListNamedEntityData(ctx, repo.OwnerFilter{CreatorUserIDs: []string{userID}, OnlyRecent: true})
	if err != nil {
		return nil, err
	}
	active := make(map[string]bool, len(owners))
	for _, o := range owners {
		active[o.NamedEntityID] = o.Active
	}
	return e.patternIndex(ctx, repo.NamedEntityPatterns, userID, active)
}

func (e Engine) templateIndex(ctx context.Context, userID string) (*pattern.Index, error) {
	owners, err := e.Repo.ListGoalTemplateData(ctx, repo.OwnerFilter{CreatorUserIDs: []string{userID}, OnlyRecent: true})
	if err != nil {
		return nil, err
	}
	active := make(map[string]bool, len(owners))
	for _, o := range owners {
		active[o.GoalTemplateID] = o.Active
	}
	return e.patternIndex(ctx, repo.GoalTemplatePatterns, userID, active)
}

func (e Engine) patternIndex(ctx context.Context, table repo.PatternTable, userID string, ownerActive map[string]bool) (*pattern.Index, error) {
	pats, err := e.Repo.ListPatterns(ctx, table, repo.PatternFilter{CreatorUserIDs: []string{userID}, OnlyRecent: true})
	if err != nil {
		return nil, err
	}
	owned := make([]pattern.OwnedPattern, 0, len(pats))
	for _, p := range pats {
		owned = append(owned, pattern.OwnedPattern{
			OwnerID:     p.OwnerID,
			OwnerActive: ownerActive[p.OwnerID],
			Active:      p.Active,
			Spec:        pattern.Normalize(p.Pattern),
		})
	}
	return pattern.NewIndex(owned), nil
}

// ListGoalTags returns goal/entity associations for goalIDs, or all when empty.
func (e Engine) ListGoalTags(ctx context.Context, apiKey string, goalIDs []string) (res []domain.GoalTag, err error) {
	defer func() { err = e.finish(ctx, "list_goal_tags", err) }()
	if _, err := e.authenticate(ctx, apiKey); err != nil {
		return nil, err
	}
	return e.Repo.ListGoalTags(ctx, goalIDs)
}

// ListGoalTemplateLinks returns goal/template associations for goalIDs, or all when empty.
func (e Engine) ListGoalTemplateLinks(ctx context.Context, apiKey string, goalIDs []string) (res []domain.GoalTemplateLink, err error) {
	defer func() { err = e.finish(ctx, "list_goal_template_links", err) }()
	if _, err := e.authenticate(ctx, apiKey); err != nil {
		return nil, err
	}
	return e.Repo.ListGoalTemplateLinks(ctx, goalIDs)
}
