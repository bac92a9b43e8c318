package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"tufline/internal/engine"
)

func registerGoals(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-goal",
		Method:        http.MethodPost,
		Path:          "/goals",
		Summary:       "Create a goal bound to a time utility function",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateGoalRequest `json:"body"`
	}) (*struct {
		Body GoalResponse `json:"body"`
	}, error) {
		g, err := e.CreateGoal(ctx, credential(ctx), input.Body.options())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body GoalResponse `json:"body"`
		}{Body: goalResponse(g)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "revise-goal",
		Method:        http.MethodPost,
		Path:          "/goals/{goal_id}/revisions",
		Summary:       "Supersede a goal with a new revision",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		GoalID string            `path:"goal_id"`
		Body   ReviseGoalRequest `json:"body"`
	}) (*struct {
		Body GoalResponse `json:"body"`
	}, error) {
		g, err := e.ReviseGoal(ctx, credential(ctx), input.GoalID, input.Body.options())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body GoalResponse `json:"body"`
		}{Body: goalResponse(g)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-goal-event",
		Method:        http.MethodPost,
		Path:          "/goals/{goal_id}/events",
		Summary:       "Record when a goal happened",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		GoalID string                 `path:"goal_id"`
		Body   CreateGoalEventRequest `json:"body"`
	}) (*struct {
		Body GoalEventResponse `json:"body"`
	}, error) {
		ev, err := e.CreateGoalEvent(ctx, credential(ctx), input.GoalID, input.Body.StartTime, input.Body.Duration)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body GoalEventResponse `json:"body"`
		}{Body: goalEventResponse(ev)}, nil
	})
}
