package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"tufline/internal/engine"
)

var writeErrors = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusNotFound,
	http.StatusInternalServerError,
}

func registerCurves(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-time-utility-function",
		Method:        http.MethodPost,
		Path:          "/time_utility_functions",
		Summary:       "Create a time utility function from control points",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateTimeUtilityFunctionRequest `json:"body"`
	}) (*struct {
		Body TimeUtilityFunctionResponse `json:"body"`
	}, error) {
		f, err := e.CreateUtilityFunction(ctx, credential(ctx), pointsFromRequest(input.Body.Points))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TimeUtilityFunctionResponse `json:"body"`
		}{Body: timeUtilityFunctionResponse(f)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-time-utility-function",
		Method:      http.MethodGet,
		Path:        "/time_utility_functions/{id}",
		Summary:     "Get a time utility function",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body TimeUtilityFunctionResponse `json:"body"`
	}, error) {
		f, err := e.GetUtilityFunction(ctx, credential(ctx), input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TimeUtilityFunctionResponse `json:"body"`
		}{Body: timeUtilityFunctionResponse(f)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "time-utility-function-utility",
		Method:      http.MethodGet,
		Path:        "/time_utility_functions/{id}/utility",
		Summary:     "Evaluate utility at an instant",
		Description: "Outside the curve's domain the utility is undefined, not zero.",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
		T  int64  `query:"t" required:"true" doc:"Epoch milliseconds"`
	}) (*struct {
		Body UtilityResponse `json:"body"`
	}, error) {
		v, defined, err := e.UtilityAt(ctx, credential(ctx), input.ID, input.T)
		if err != nil {
			return nil, handleError(err)
		}
		resp := UtilityResponse{T: input.T, Defined: defined}
		if defined {
			resp.Utility = &v
		}
		return &struct {
			Body UtilityResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "time-utility-function-best-start",
		Method:      http.MethodGet,
		Path:        "/time_utility_functions/{id}/best_start",
		Summary:     "Best start time inside a window",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ID          string `path:"id"`
		WindowStart int64  `query:"windowStart" required:"true"`
		WindowEnd   int64  `query:"windowEnd" required:"true"`
		Duration    int64  `query:"duration"`
	}) (*struct {
		Body BestStartResponse `json:"body"`
	}, error) {
		start, u, found, err := e.BestStart(ctx, credential(ctx), input.ID, input.WindowStart, input.WindowEnd, input.Duration)
		if err != nil {
			return nil, handleError(err)
		}
		resp := BestStartResponse{Found: found}
		if found {
			resp.StartTime, resp.Utility = &start, &u
		}
		return &struct {
			Body BestStartResponse `json:"body"`
		}{Body: resp}, nil
	})
}
