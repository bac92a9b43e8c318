package repo

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"tufline/internal/db"
	"tufline/internal/domain"
	"tufline/internal/migrate"
	"tufline/internal/tuf"
)

func newRepo(t *testing.T) (Repo, context.Context) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()
	if err := migrate.Migrate(ctx, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return Repo{DB: conn}, ctx
}

func seedCurve(t *testing.T, r Repo, ctx context.Context, id string) {
	t.Helper()
	f := domain.TimeUtilityFunction{ID: id, CreationTime: 1, CreatorUserID: "u1", Points: []tuf.Point{{Time: 0, Utility: 1}, {Time: 10, Utility: 2}}}
	if err := r.InsertTimeUtilityFunction(ctx, nil, f); err != nil {
		t.Fatalf("insert curve: %v", err)
	}
}

func TestCurvesRoundTrip(t *testing.T) {
	r, ctx := newRepo(t)
	seedCurve(t, r, ctx, "c1")

	f, err := r.GetTimeUtilityFunction(ctx, nil, "c1")
	if err != nil {
		t.Fatalf("get curve: %v", err)
	}
	if len(f.Points) != 2 || f.Points[1] != (tuf.Point{Time: 10, Utility: 2}) {
		t.Fatalf("unexpected points %+v", f.Points)
	}
	if _, err := r.GetTimeUtilityFunction(ctx, nil, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	ok, err := r.TimeUtilityFunctionExists(ctx, nil, "c1")
	if err != nil || !ok {
		t.Fatalf("exists = %v %v", ok, err)
	}
}

func TestGoalRevisionsOnlyRecent(t *testing.T) {
	r, ctx := newRepo(t)
	seedCurve(t, r, ctx, "c1")
	for _, id := range []string{"g1", "g2"} {
		if err := r.InsertGoal(ctx, nil, id, 1, "u1"); err != nil {
			t.Fatalf("insert goal: %v", err)
		}
	}
	base := domain.GoalData{CreatorUserID: "u1", DurationEstimate: 5, TimeUtilityFunctionID: "c1", Status: domain.StatusPending}
	for i, rev := range []struct{ goal, name, status string }{
		{"g1", "first", domain.StatusPending},
		{"g2", "other", domain.StatusPending},
		{"g1", "second", domain.StatusCompleted},
	} {
		g := base
		g.GoalID, g.Name, g.Status, g.CreationTime = rev.goal, rev.name, rev.status, int64(i+1)
		if _, err := r.InsertGoalData(ctx, nil, g); err != nil {
			t.Fatalf("insert goal data: %v", err)
		}
	}

	all, err := r.ListGoalData(ctx, GoalFilter{})
	if err != nil || len(all) != 3 {
		t.Fatalf("all revisions = %d %v", len(all), err)
	}
	recent, err := r.ListGoalData(ctx, GoalFilter{OnlyRecent: true})
	if err != nil || len(recent) != 2 {
		t.Fatalf("recent = %+v %v", recent, err)
	}
	pending, err := r.ListGoalData(ctx, GoalFilter{OnlyRecent: true, Statuses: []string{domain.StatusPending}})
	if err != nil || len(pending) != 1 || pending[0].GoalID != "g2" {
		t.Fatalf("pending recent = %+v %v", pending, err)
	}
	latest, err := r.LatestGoalData(ctx, nil, "g1")
	if err != nil || latest.Name != "second" {
		t.Fatalf("latest = %+v %v", latest, err)
	}
	if latest.StartTime != nil || latest.Duration != nil {
		t.Fatalf("unscheduled goal should have nil times: %+v", latest)
	}
}

func TestGoalDataRejectsUnknownCurve(t *testing.T) {
	r, ctx := newRepo(t)
	if err := r.InsertGoal(ctx, nil, "g1", 1, "u1"); err != nil {
		t.Fatalf("insert goal: %v", err)
	}
	_, err := r.InsertGoalData(ctx, nil, domain.GoalData{
		GoalID: "g1", CreatorUserID: "u1", Name: "x", DurationEstimate: 1, TimeUtilityFunctionID: "nope", Status: domain.StatusPending,
	})
	if err == nil {
		t.Fatalf("expected foreign key failure")
	}
}

func TestPatternsAndAssociations(t *testing.T) {
	r, ctx := newRepo(t)
	seedCurve(t, r, ctx, "c1")
	if err := r.InsertNamedEntity(ctx, nil, "e1", 1, "u1"); err != nil {
		t.Fatalf("insert entity: %v", err)
	}
	if err := r.InsertGoal(ctx, nil, "g1", 1, "u1"); err != nil {
		t.Fatalf("insert goal: %v", err)
	}
	p := domain.Pattern{PatternID: "p1", OwnerID: "e1", CreationTime: 1, CreatorUserID: "u1", Pattern: "gym", Active: true}
	if _, err := r.InsertPattern(ctx, nil, NamedEntityPatterns, p); err != nil {
		t.Fatalf("insert pattern: %v", err)
	}
	p.Active, p.CreationTime = false, 2
	if _, err := r.InsertPattern(ctx, nil, NamedEntityPatterns, p); err != nil {
		t.Fatalf("deactivate pattern: %v", err)
	}
	latest, err := r.LatestPattern(ctx, nil, NamedEntityPatterns, "p1")
	if err != nil || latest.Active {
		t.Fatalf("latest pattern = %+v %v", latest, err)
	}
	active := true
	live, err := r.ListPatterns(ctx, NamedEntityPatterns, PatternFilter{OnlyRecent: true, Active: &active})
	if err != nil || len(live) != 0 {
		t.Fatalf("live patterns = %+v %v", live, err)
	}
	history, err := r.ListPatterns(ctx, NamedEntityPatterns, PatternFilter{OwnerIDs: []string{"e1"}})
	if err != nil || len(history) != 2 {
		t.Fatalf("history = %+v %v", history, err)
	}

	tag := domain.GoalTag{GoalID: "g1", NamedEntityID: "e1", CreationTime: 3}
	inserted, err := r.InsertGoalTag(ctx, nil, tag)
	if err != nil || !inserted {
		t.Fatalf("first tag insert = %v %v", inserted, err)
	}
	tag.CreationTime = 4
	inserted, err = r.InsertGoalTag(ctx, nil, tag)
	if err != nil || inserted {
		t.Fatalf("duplicate tag insert = %v %v", inserted, err)
	}
	tags, err := r.ListGoalTags(ctx, []string{"g1"})
	if err != nil || len(tags) != 1 || tags[0].CreationTime != 3 {
		t.Fatalf("tags = %+v %v", tags, err)
	}
}

func TestAPIKeyLatestRecordWins(t *testing.T) {
	r, ctx := newRepo(t)
	hash := HashAPIKey("secret")
	if hash == HashAPIKey("other") || hash == "secret" {
		t.Fatalf("hash should be a digest")
	}
	key := domain.APIKey{ID: "k1", CreatorUserID: "u1", KeyHash: hash, CreationTime: 10, Duration: 100, Kind: domain.APIKeyValid}
	if err := r.InsertAPIKey(ctx, nil, key); err != nil {
		t.Fatalf("insert key: %v", err)
	}
	got, err := r.LatestAPIKeyByHash(ctx, hash)
	if err != nil || !got.ValidAt(50) || got.ValidAt(110) {
		t.Fatalf("valid key = %+v %v", got, err)
	}
	key.Kind, key.CreationTime, key.Duration = domain.APIKeyCancel, 20, 0
	if err := r.InsertAPIKey(ctx, nil, key); err != nil {
		t.Fatalf("cancel key: %v", err)
	}
	got, err = r.LatestAPIKeyByID(ctx, "k1")
	if err != nil || got.Kind != domain.APIKeyCancel || got.ValidAt(50) {
		t.Fatalf("cancelled key = %+v %v", got, err)
	}
	keys, err := r.ListAPIKeys(ctx, "u1")
	if err != nil || len(keys) != 1 {
		t.Fatalf("list keys = %+v %v", keys, err)
	}
	if _, err := r.LatestAPIKeyByHash(ctx, HashAPIKey("unknown")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGoalIntentsOnlyRecentAndNameFilters(t *testing.T) {
	r, ctx := newRepo(t)
	for _, id := range []string{"i1", "i2", "i3"} {
		if err := r.InsertGoalIntent(ctx, nil, id, 1, "u1"); err != nil {
			t.Fatalf("insert intent: %v", err)
		}
	}
	for i, rev := range []struct {
		id, name string
		active   bool
	}{
		{"i1", "Get fit", true},
		{"i2", "Learn Go", true},
		{"i3", "100%_done", true},
		{"i1", "Get fit by summer", false},
	} {
		d := domain.GoalIntentData{GoalIntentID: rev.id, CreationTime: int64(i + 1), CreatorUserID: "u1", Name: rev.name, Active: rev.active}
		if _, err := r.InsertGoalIntentData(ctx, nil, d); err != nil {
			t.Fatalf("insert intent data: %v", err)
		}
	}

	all, err := r.ListGoalIntentData(ctx, OwnerFilter{})
	if err != nil || len(all) != 4 {
		t.Fatalf("all = %d %v", len(all), err)
	}
	recent, err := r.ListGoalIntentData(ctx, OwnerFilter{OnlyRecent: true})
	if err != nil || len(recent) != 3 {
		t.Fatalf("recent = %+v %v", recent, err)
	}
	exact, err := r.ListGoalIntentData(ctx, OwnerFilter{Name: "Get fit"})
	if err != nil || len(exact) != 1 || exact[0].RevisionID != all[0].RevisionID {
		t.Fatalf("exact = %+v %v", exact, err)
	}
	partial, err := r.ListGoalIntentData(ctx, OwnerFilter{OnlyRecent: true, PartialName: "fit"})
	if err != nil || len(partial) != 1 || partial[0].Name != "Get fit by summer" || partial[0].Active {
		t.Fatalf("partial = %+v %v", partial, err)
	}
	// LIKE wildcards in the filter are literal.
	literal, err := r.ListGoalIntentData(ctx, OwnerFilter{PartialName: "%_"})
	if err != nil || len(literal) != 1 || literal[0].GoalIntentID != "i3" {
		t.Fatalf("literal = %+v %v", literal, err)
	}
	latest, err := r.LatestGoalIntentData(ctx, nil, "i1")
	if err != nil || latest.Name != "Get fit by summer" {
		t.Fatalf("latest = %+v %v", latest, err)
	}
	if _, err := r.LatestGoalIntentData(ctx, nil, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestViewPaging(t *testing.T) {
	r, ctx := newRepo(t)
	for i, name := range []string{"a", "b", "c", "d", "e"} {
		id := "e" + name
		if err := r.InsertNamedEntity(ctx, nil, id, 1, "u1"); err != nil {
			t.Fatalf("insert entity: %v", err)
		}
		d := domain.NamedEntityData{NamedEntityID: id, CreationTime: int64(i), CreatorUserID: "u1", Name: name, Active: true}
		if _, err := r.InsertNamedEntityData(ctx, nil, d); err != nil {
			t.Fatalf("insert entity data: %v", err)
		}
	}
	names := func(f OwnerFilter) string {
		t.Helper()
		items, err := r.ListNamedEntityData(ctx, f)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		var out string
		for _, d := range items {
			out += d.Name
		}
		return out
	}
	cases := []struct {
		page Page
		want string
	}{
		{Page{}, "abcde"},
		{Page{Limit: 2}, "ab"},
		{Page{Offset: 1, Limit: 2}, "bc"},
		{Page{Offset: 3}, "de"},
		{Page{Offset: 10, Limit: 2}, ""},
	}
	for _, tc := range cases {
		if got := names(OwnerFilter{Page: tc.page}); got != tc.want {
			t.Errorf("page %+v: got %q, want %q", tc.page, got, tc.want)
		}
	}
	active := true
	if got := names(OwnerFilter{Active: &active, PartialName: "c", Page: Page{Limit: 5}}); got != "c" {
		t.Errorf("filtered page = %q", got)
	}
}

func TestWhereBuilder(t *testing.T) {
	var w where
	w.in("a", nil)
	if w.sql() != "" {
		t.Fatalf("empty filter should add nothing")
	}
	yes := true
	w.in("a", []string{"x", "y"})
	w.boolean("b", &yes)
	w.boolean("c", nil)
	if got := w.sql(); got != " WHERE a IN (?,?) AND b=?" {
		t.Fatalf("sql = %q", got)
	}
	if len(w.args) != 3 {
		t.Fatalf("args = %v", w.args)
	}
	if nullable("") != nil || int64Ptr(sql.NullInt64{}) != nil {
		t.Fatalf("null helpers")
	}
}
