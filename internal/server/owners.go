package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"tufline/internal/engine"
)

type patternOutput struct {
	Body PatternResponse `json:"body"`
}

func registerOwners(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-named-entity",
		Method:        http.MethodPost,
		Path:          "/named_entities",
		Summary:       "Create a named entity",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateNamedEntityRequest `json:"body"`
	}) (*struct {
		Body NamedEntityResponse `json:"body"`
	}, error) {
		d, err := e.CreateNamedEntity(ctx, credential(ctx), input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body NamedEntityResponse `json:"body"`
		}{Body: namedEntityResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "revise-named-entity",
		Method:        http.MethodPost,
		Path:          "/named_entities/{id}/revisions",
		Summary:       "Rename or deactivate a named entity",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		ID   string                   `path:"id"`
		Body ReviseNamedEntityRequest `json:"body"`
	}) (*struct {
		Body NamedEntityResponse `json:"body"`
	}, error) {
		d, err := e.ReviseNamedEntity(ctx, credential(ctx), input.ID, input.Body.Name, input.Body.Active)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body NamedEntityResponse `json:"body"`
		}{Body: namedEntityResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-named-entity-pattern",
		Method:        http.MethodPost,
		Path:          "/named_entities/{id}/patterns",
		Summary:       "Add a tagging pattern to a named entity",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body CreatePatternRequest `json:"body"`
	}) (*patternOutput, error) {
		p, err := e.CreateNamedEntityPattern(ctx, credential(ctx), input.ID, input.Body.Pattern)
		if err != nil {
			return nil, handleError(err)
		}
		return &patternOutput{Body: patternResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "deactivate-named-entity-pattern",
		Method:      http.MethodPost,
		Path:        "/named_entity_patterns/{id}/deactivate",
		Summary:     "Deactivate a named entity pattern",
		Description: "Existing tags are kept; the pattern is skipped by later resolve runs.",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*patternOutput, error) {
		p, err := e.DeactivateNamedEntityPattern(ctx, credential(ctx), input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &patternOutput{Body: patternResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-goal-template",
		Method:        http.MethodPost,
		Path:          "/goal_templates",
		Summary:       "Create a goal template",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateGoalTemplateRequest `json:"body"`
	}) (*struct {
		Body GoalTemplateResponse `json:"body"`
	}, error) {
		d, err := e.CreateGoalTemplate(ctx, credential(ctx), engine.TemplateCreateOptions{
			Name:                  input.Body.Name,
			Description:           input.Body.Description,
			DurationEstimate:      input.Body.DurationEstimate,
			TimeUtilityFunctionID: input.Body.TimeUtilityFunctionID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body GoalTemplateResponse `json:"body"`
		}{Body: goalTemplateResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "revise-goal-template",
		Method:        http.MethodPost,
		Path:          "/goal_templates/{id}/revisions",
		Summary:       "Supersede a goal template",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		ID   string                    `path:"id"`
		Body ReviseGoalTemplateRequest `json:"body"`
	}) (*struct {
		Body GoalTemplateResponse `json:"body"`
	}, error) {
		d, err := e.ReviseGoalTemplate(ctx, credential(ctx), input.ID, engine.TemplateReviseOptions{
			Name:                  input.Body.Name,
			Description:           input.Body.Description,
			DurationEstimate:      input.Body.DurationEstimate,
			TimeUtilityFunctionID: input.Body.TimeUtilityFunctionID,
			Active:                input.Body.Active,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body GoalTemplateResponse `json:"body"`
		}{Body: goalTemplateResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-goal-template-pattern",
		Method:        http.MethodPost,
		Path:          "/goal_templates/{id}/patterns",
		Summary:       "Add a linking pattern to a goal template",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body CreatePatternRequest `json:"body"`
	}) (*patternOutput, error) {
		p, err := e.CreateGoalTemplatePattern(ctx, credential(ctx), input.ID, input.Body.Pattern)
		if err != nil {
			return nil, handleError(err)
		}
		return &patternOutput{Body: patternResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "deactivate-goal-template-pattern",
		Method:      http.MethodPost,
		Path:        "/goal_template_patterns/{id}/deactivate",
		Summary:     "Deactivate a goal template pattern",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*patternOutput, error) {
		p, err := e.DeactivateGoalTemplatePattern(ctx, credential(ctx), input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &patternOutput{Body: patternResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "instantiate-goal-template",
		Method:        http.MethodPost,
		Path:          "/goal_templates/{id}/instantiate",
		Summary:       "Create a goal from a template, shifting its curve",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		ID   string                     `path:"id"`
		Body InstantiateTemplateRequest `json:"body"`
	}) (*struct {
		Body GoalResponse `json:"body"`
	}, error) {
		g, err := e.InstantiateTemplate(ctx, credential(ctx), input.ID, input.Body.Anchor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body GoalResponse `json:"body"`
		}{Body: goalResponse(g)}, nil
	})
}
