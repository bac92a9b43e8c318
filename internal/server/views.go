package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"tufline/internal/engine"
)

var viewErrors = []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusInternalServerError}

// view registers a POST /views/{name} route taking a filter body and returning a list.
func view[Req, Resp any](api huma.API, name, summary string, list func(ctx context.Context, req Req) ([]Resp, error)) {
	huma.Register(api, huma.Operation{
		OperationID: "view-" + name,
		Method:      http.MethodPost,
		Path:        "/views/" + name,
		Summary:     summary,
		Errors:      viewErrors,
	}, func(ctx context.Context, input *struct {
		Body Req `json:"body" required:"false"`
	}) (*struct {
		Body []Resp `json:"body"`
	}, error) {
		items, err := list(ctx, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []Resp{}
		}
		return &struct {
			Body []Resp `json:"body"`
		}{Body: items}, nil
	})
}

func registerViews(api huma.API, e engine.Engine) {
	view(api, "goal_data", "List goal revisions", func(ctx context.Context, req GoalDataViewRequest) ([]GoalResponse, error) {
		items, err := e.ListGoals(ctx, credential(ctx), req.filter())
		return mapSlice(items, goalResponse), err
	})
	view(api, "goal_event", "List goal event revisions", func(ctx context.Context, req GoalEventViewRequest) ([]GoalEventResponse, error) {
		items, err := e.ListGoalEvents(ctx, credential(ctx), req.filter())
		return mapSlice(items, goalEventResponse), err
	})
	view(api, "named_entity_data", "List named entity revisions", func(ctx context.Context, req OwnerViewRequest) ([]NamedEntityResponse, error) {
		items, err := e.ListNamedEntities(ctx, credential(ctx), req.filter())
		return mapSlice(items, namedEntityResponse), err
	})
	view(api, "named_entity_pattern", "List named entity pattern revisions", func(ctx context.Context, req PatternViewRequest) ([]PatternResponse, error) {
		items, err := e.ListNamedEntityPatterns(ctx, credential(ctx), req.filter())
		return mapSlice(items, patternResponse), err
	})
	view(api, "goal_template_data", "List goal template revisions", func(ctx context.Context, req OwnerViewRequest) ([]GoalTemplateResponse, error) {
		items, err := e.ListGoalTemplates(ctx, credential(ctx), req.filter())
		return mapSlice(items, goalTemplateResponse), err
	})
	view(api, "goal_template_pattern", "List goal template pattern revisions", func(ctx context.Context, req PatternViewRequest) ([]PatternResponse, error) {
		items, err := e.ListGoalTemplatePatterns(ctx, credential(ctx), req.filter())
		return mapSlice(items, patternResponse), err
	})
	view(api, "goal_intent_data", "List goal intent revisions", func(ctx context.Context, req OwnerViewRequest) ([]GoalIntentResponse, error) {
		items, err := e.ListGoalIntents(ctx, credential(ctx), req.filter())
		return mapSlice(items, goalIntentResponse), err
	})
	view(api, "goal_tag", "List goal tags", func(ctx context.Context, req AssociationViewRequest) ([]GoalTagResponse, error) {
		items, err := e.ListGoalTags(ctx, credential(ctx), req.GoalID)
		return mapSlice(items, goalTagResponse), err
	})
	view(api, "goal_template_link", "List goal template links", func(ctx context.Context, req AssociationViewRequest) ([]GoalTemplateLinkResponse, error) {
		items, err := e.ListGoalTemplateLinks(ctx, credential(ctx), req.GoalID)
		return mapSlice(items, goalTemplateLinkResponse), err
	})
}
