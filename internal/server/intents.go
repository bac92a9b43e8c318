package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"tufline/internal/engine"
)

type goalIntentOutput struct {
	Body GoalIntentResponse `json:"body"`
}

func registerIntents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-goal-intent",
		Method:        http.MethodPost,
		Path:          "/goal_intents",
		Summary:       "Create a goal intent",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateGoalIntentRequest `json:"body"`
	}) (*goalIntentOutput, error) {
		d, err := e.CreateGoalIntent(ctx, credential(ctx), input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return &goalIntentOutput{Body: goalIntentResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "revise-goal-intent",
		Method:        http.MethodPost,
		Path:          "/goal_intents/{id}/revisions",
		Summary:       "Rename or deactivate a goal intent",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		ID   string                  `path:"id"`
		Body ReviseGoalIntentRequest `json:"body"`
	}) (*goalIntentOutput, error) {
		d, err := e.ReviseGoalIntent(ctx, credential(ctx), input.ID, input.Body.Name, input.Body.Active)
		if err != nil {
			return nil, handleError(err)
		}
		return &goalIntentOutput{Body: goalIntentResponse(d)}, nil
	})
}
