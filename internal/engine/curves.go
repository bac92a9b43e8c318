package engine

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"tufline/internal/audit"
	"tufline/internal/domain"
	"tufline/internal/failure"
	"tufline/internal/tuf"
)

// CreateUtilityFunction validates points and stores them as a new curve.
func (e Engine) CreateUtilityFunction(ctx context.Context, apiKey string, points []tuf.Point) (f domain.TimeUtilityFunction, err error) {
	defer func() { err = e.finish(ctx, "create_time_utility_function", err) }()
	p, err := e.authenticate(ctx, apiKey)
	if err != nil {
		return f, err
	}
	sorted, err := tuf.Validate(points)
	if err != nil {
		return f, failure.Wrap(failure.TimeUtilityFunctionNotValid, err, "time utility function not valid")
	}
	f = domain.TimeUtilityFunction{
		ID:            uuid.NewString(),
		CreationTime:  e.nowMillis(),
		CreatorUserID: p.UserID,
		Points:        sorted,
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertTimeUtilityFunction(ctx, tx, f); err != nil {
			return err
		}
		return e.audit().Append(ctx, tx, "time_utility_function.create", "time_utility_function", f.ID, p.UserID,
			audit.Payload{"points": len(f.Points)})
	})
	return f, err
}

// GetUtilityFunction loads a stored curve.
func (e Engine) GetUtilityFunction(ctx context.Context, apiKey, id string) (f domain.TimeUtilityFunction, err error) {
	defer func() { err = e.finish(ctx, "get_time_utility_function", err) }()
	if _, err := e.authenticate(ctx, apiKey); err != nil {
		return f, err
	}
	return e.loadCurve(ctx, nil, id)
}

func (e Engine) loadCurve(ctx context.Context, tx *sql.Tx, id string) (domain.TimeUtilityFunction, error) {
	f, err := e.Repo.GetTimeUtilityFunction(ctx, tx, id)
	if err != nil {
		return f, missing(err, failure.TimeUtilityFunctionNonexistent, "time utility function %s nonexistent", id)
	}
	return f, nil
}

// UtilityAt evaluates curve id at t. defined is false outside the curve's domain.
func (e Engine) UtilityAt(ctx context.Context, apiKey, id string, t int64) (value float64, defined bool, err error) {
	defer func() { err = e.finish(ctx, "utility_at", err) }()
	if _, err := e.authenticate(ctx, apiKey); err != nil {
		return 0, false, err
	}
	f, err := e.loadCurve(ctx, nil, id)
	if err != nil {
		return 0, false, err
	}
	c, err := f.Curve()
	if err != nil {
		return 0, false, err
	}
	v, err := c.UtilityAt(t)
	if errors.Is(err, tuf.ErrOutOfDomain) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

// BestStart finds the start in [windowStart, windowEnd-duration] maximizing the
// utility of curve id. found is false when no such start exists.
func (e Engine) BestStart(ctx context.Context, apiKey, id string, windowStart, windowEnd, duration int64) (start int64, utility float64, found bool, err error) {
	defer func() { err = e.finish(ctx, "best_start", err) }()
	if _, err := e.authenticate(ctx, apiKey); err != nil {
		return 0, 0, false, err
	}
	if err := checkWindow(windowStart, windowEnd); err != nil {
		return 0, 0, false, err
	}
	f, err := e.loadCurve(ctx, nil, id)
	if err != nil {
		return 0, 0, false, err
	}
	c, err := f.Curve()
	if err != nil {
		return 0, 0, false, err
	}
	start, found = c.BestStart(windowStart, windowEnd, duration)
	if !found {
		return 0, 0, false, nil
	}
	utility, err = c.UtilityAt(start)
	return start, utility, true, err
}

// checkWindow rejects reversed windows and bounds a JSON client cannot
// represent exactly.
func checkWindow(windowStart, windowEnd int64) error {
	if windowStart < -tuf.MaxMagnitude || windowEnd > tuf.MaxMagnitude {
		return failure.New(failure.WindowNotValid, "window bounds outside ±%d", int64(tuf.MaxMagnitude))
	}
	if windowEnd < windowStart {
		return failure.New(failure.WindowNotValid, "window end before start")
	}
	return nil
}
