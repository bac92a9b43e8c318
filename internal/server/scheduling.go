package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"tufline/internal/engine"
)

func registerScheduling(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "resolve-tags",
		Method:      http.MethodPost,
		Path:        "/tags/resolve",
		Summary:     "Derive goal tags and template links from active patterns",
		Description: "An empty goalId list resolves every current goal of the caller. Existing associations are never removed.",
		Errors:      viewErrors,
	}, func(ctx context.Context, input *struct {
		Body ResolveRequest `json:"body" required:"false"`
	}) (*struct {
		Body ResolveResponse `json:"body"`
	}, error) {
		res, err := e.ResolveAssociations(ctx, credential(ctx), input.Body.GoalIDs)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ResolveResponse `json:"body"`
		}{Body: resolveResponse(res)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "suggest-schedule",
		Method:      http.MethodPost,
		Path:        "/schedule/suggest",
		Summary:     "Best start times for unscheduled pending goals",
		Errors:      viewErrors,
	}, func(ctx context.Context, input *struct {
		Body SuggestScheduleRequest `json:"body"`
	}) (*struct {
		Body []ScheduleSuggestionResponse `json:"body"`
	}, error) {
		items, err := e.SuggestSchedule(ctx, credential(ctx), input.Body.WindowStart, input.Body.WindowEnd)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ScheduleSuggestionResponse `json:"body"`
		}{Body: mapSlice(items, scheduleSuggestionResponse)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "dashboard",
		Method:      http.MethodGet,
		Path:        "/dashboard",
		Summary:     "Pending goals with their latest event, tags and templates",
		Errors:      viewErrors,
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []DashboardGoalResponse `json:"body"`
	}, error) {
		items, err := e.Dashboard(ctx, credential(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []DashboardGoalResponse `json:"body"`
		}{Body: mapSlice(items, dashboardGoalResponse)}, nil
	})
}
