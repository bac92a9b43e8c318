package engine_test

import (
	"context"
	"math"
	"testing"
	"time"

	"tufline/internal/config"
	"tufline/internal/db"
	"tufline/internal/domain"
	"tufline/internal/engine"
	"tufline/internal/failure"
	"tufline/internal/metrics"
	"tufline/internal/migrate"
	"tufline/internal/repo"
	"tufline/internal/tuf"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	Key    string
	clock  *time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()
	if err := migrate.Migrate(ctx, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	cfg.Auth.TokenSecret = "test-secret"
	env := &testEnv{Ctx: ctx}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	env.clock = &now
	eng := engine.New(conn, cfg, nil, metrics.New())
	eng.Now = func() time.Time { return *env.clock }
	env.Engine = eng
	env.Key = env.issueKey(t, "user-1")
	return env
}

func (env *testEnv) issueKey(t *testing.T, user string) string {
	t.Helper()
	secret, _, err := env.Engine.IssueAPIKey(env.Ctx, user, 24*time.Hour)
	if err != nil {
		t.Fatalf("issue key: %v", err)
	}
	return secret
}

func (env *testEnv) advance(d time.Duration) {
	*env.clock = env.clock.Add(d)
}

func (env *testEnv) curve(t *testing.T, points ...tuf.Point) string {
	t.Helper()
	f, err := env.Engine.CreateUtilityFunction(env.Ctx, env.Key, points)
	if err != nil {
		t.Fatalf("create curve: %v", err)
	}
	return f.ID
}

func (env *testEnv) goal(t *testing.T, name, curveID string) domain.GoalData {
	t.Helper()
	g, err := env.Engine.CreateGoal(env.Ctx, env.Key, engine.GoalCreateOptions{
		Name:                  name,
		DurationEstimate:      30,
		TimeUtilityFunctionID: curveID,
	})
	if err != nil {
		t.Fatalf("create goal %q: %v", name, err)
	}
	return g
}

func expectCode(t *testing.T, err error, code failure.Code) {
	t.Helper()
	if got := failure.CodeOf(err); got != code {
		t.Fatalf("expected %s, got %s (%v)", code, got, err)
	}
}

func TestUtilityFunctionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	id := env.curve(t,
		tuf.Point{Time: 300, Utility: 1},
		tuf.Point{Time: 100, Utility: 2},
		tuf.Point{Time: 200, Utility: 4},
	)
	f, err := env.Engine.GetUtilityFunction(env.Ctx, env.Key, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(f.Points) != 3 || f.Points[0].Time != 100 || f.Points[2].Time != 300 {
		t.Fatalf("points not stored in time order: %+v", f.Points)
	}
	v, defined, err := env.Engine.UtilityAt(env.Ctx, env.Key, id, 150)
	if err != nil || !defined || v != 3 {
		t.Fatalf("utility at 150: %v %v %v", v, defined, err)
	}
	if _, defined, err := env.Engine.UtilityAt(env.Ctx, env.Key, id, 50); err != nil || defined {
		t.Fatalf("utility at 50 should be out of domain: %v %v", defined, err)
	}
	start, u, found, err := env.Engine.BestStart(env.Ctx, env.Key, id, 0, 400, 50)
	if err != nil || !found || start != 200 || u != 4 {
		t.Fatalf("best start: %d %v %v %v", start, u, found, err)
	}

	_, err = env.Engine.CreateUtilityFunction(env.Ctx, env.Key, []tuf.Point{{Time: 100, Utility: 1}, {Time: 100, Utility: 2}})
	expectCode(t, err, failure.TimeUtilityFunctionNotValid)
	_, err = env.Engine.CreateUtilityFunction(env.Ctx, env.Key, nil)
	expectCode(t, err, failure.TimeUtilityFunctionNotValid)
	_, err = env.Engine.GetUtilityFunction(env.Ctx, env.Key, "missing")
	expectCode(t, err, failure.TimeUtilityFunctionNonexistent)
}

func TestCreateGoalValidation(t *testing.T) {
	env := newTestEnv(t)
	curveID := env.curve(t, tuf.Point{Time: 0, Utility: 1}, tuf.Point{Time: 1000, Utility: 5})

	_, err := env.Engine.CreateGoal(env.Ctx, env.Key, engine.GoalCreateOptions{Name: "  ", DurationEstimate: 10, TimeUtilityFunctionID: curveID})
	expectCode(t, err, failure.NameEmpty)
	_, err = env.Engine.CreateGoal(env.Ctx, env.Key, engine.GoalCreateOptions{Name: "x", DurationEstimate: 0, TimeUtilityFunctionID: curveID})
	expectCode(t, err, failure.DurationNotValid)
	_, err = env.Engine.CreateGoal(env.Ctx, env.Key, engine.GoalCreateOptions{Name: "x", DurationEstimate: 10, TimeUtilityFunctionID: curveID, Scheduled: true})
	expectCode(t, err, failure.ScheduleNotValid)
	_, err = env.Engine.CreateGoal(env.Ctx, env.Key, engine.GoalCreateOptions{Name: "x", DurationEstimate: 10, TimeUtilityFunctionID: "nope"})
	expectCode(t, err, failure.TimeUtilityFunctionNonexistent)

	goals, err := env.Engine.ListGoals(env.Ctx, env.Key, repo.GoalFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(goals) != 0 {
		t.Fatalf("rejected goals must not persist, found %d", len(goals))
	}

	start, dur := int64(100), int64(50)
	g, err := env.Engine.CreateGoal(env.Ctx, env.Key, engine.GoalCreateOptions{
		Name: "Deep work", DurationEstimate: 50, TimeUtilityFunctionID: curveID,
		Scheduled: true, StartTime: &start, Duration: &dur,
	})
	if err != nil {
		t.Fatalf("create scheduled goal: %v", err)
	}
	if g.Status != domain.StatusPending || !g.Scheduled || *g.StartTime != 100 {
		t.Fatalf("unexpected goal %+v", g)
	}
}

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateUtilityFunction(env.Ctx, "bogus", []tuf.Point{{Time: 1, Utility: 1}})
	expectCode(t, err, failure.APIKeyNonexistent)
	_, err = env.Engine.ListGoals(env.Ctx, "", repo.GoalFilter{})
	expectCode(t, err, failure.APIKeyNonexistent)

	token, err := env.Engine.MintToken(env.Ctx, env.Key, time.Hour)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	p, err := env.Engine.Authenticate(env.Ctx, token)
	if err != nil || p.UserID != "user-1" || p.Source != "token" {
		t.Fatalf("token auth: %+v %v", p, err)
	}
	_, err = env.Engine.MintToken(env.Ctx, token, time.Hour)
	expectCode(t, err, failure.APIKeyNonexistent)

	noSecret := env.Engine
	noSecret.Auth.TokenSecret = nil
	_, err = noSecret.MintToken(env.Ctx, env.Key, time.Hour)
	expectCode(t, err, failure.TokenRequestNotValid)
	noTTL := env.Engine
	cfg := *env.Engine.Config
	cfg.Auth.TokenTTL.Duration = 0
	noTTL.Config = &cfg
	_, err = noTTL.MintToken(env.Ctx, env.Key, 0)
	expectCode(t, err, failure.TokenRequestNotValid)

	keys, err := env.Engine.ListAPIKeys(env.Ctx, "user-1")
	if err != nil || len(keys) != 1 {
		t.Fatalf("list keys: %v %v", keys, err)
	}
	if _, err := env.Engine.RevokeAPIKey(env.Ctx, keys[0].ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	_, err = env.Engine.Authenticate(env.Ctx, env.Key)
	expectCode(t, err, failure.APIKeyNonexistent)
	_, err = env.Engine.Authenticate(env.Ctx, token)
	expectCode(t, err, failure.APIKeyNonexistent)
}

func TestExpiredKeyRejected(t *testing.T) {
	env := newTestEnv(t)
	env.advance(25 * time.Hour)
	_, err := env.Engine.ListGoals(env.Ctx, env.Key, repo.GoalFilter{})
	expectCode(t, err, failure.APIKeyNonexistent)
}

func TestTagResolutionAndDeactivation(t *testing.T) {
	env := newTestEnv(t)
	curveID := env.curve(t, tuf.Point{Time: 0, Utility: 1})

	work, err := env.Engine.CreateNamedEntity(env.Ctx, env.Key, "Work")
	if err != nil {
		t.Fatalf("entity: %v", err)
	}
	pat, err := env.Engine.CreateNamedEntityPattern(env.Ctx, env.Key, work.NamedEntityID, "REPORT")
	if err != nil {
		t.Fatalf("pattern: %v", err)
	}
	_, err = env.Engine.CreateNamedEntityPattern(env.Ctx, env.Key, "missing", "x")
	expectCode(t, err, failure.NamedEntityNonexistent)

	first := env.goal(t, "Finish quarterly report", curveID)
	other := env.goal(t, "Buy milk", curveID)
	tags, err := env.Engine.ListGoalTags(env.Ctx, env.Key, []string{first.GoalID, other.GoalID})
	if err != nil {
		t.Fatalf("tags: %v", err)
	}
	if len(tags) != 1 || tags[0].GoalID != first.GoalID || tags[0].NamedEntityID != work.NamedEntityID {
		t.Fatalf("expected one tag on the report goal, got %+v", tags)
	}

	if _, err := env.Engine.DeactivateNamedEntityPattern(env.Ctx, env.Key, pat.PatternID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	second := env.goal(t, "Draft annual report", curveID)
	res, err := env.Engine.ResolveAssociations(env.Ctx, env.Key, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Goals != 3 || len(res.Tags) != 0 {
		t.Fatalf("deactivated pattern must not tag: %+v", res)
	}
	tags, err = env.Engine.ListGoalTags(env.Ctx, env.Key, nil)
	if err != nil {
		t.Fatalf("tags: %v", err)
	}
	if len(tags) != 1 || tags[0].GoalID != first.GoalID {
		t.Fatalf("existing association must survive deactivation, got %+v", tags)
	}
	for _, tag := range tags {
		if tag.GoalID == second.GoalID {
			t.Fatalf("new goal tagged by inactive pattern")
		}
	}

	pats, err := env.Engine.ListNamedEntityPatterns(env.Ctx, env.Key, repo.PatternFilter{PatternIDs: []string{pat.PatternID}, OnlyRecent: true})
	if err != nil || len(pats) != 1 || pats[0].Active {
		t.Fatalf("recent pattern should be inactive: %+v %v", pats, err)
	}
}

func TestDeactivatedEntityStopsTagging(t *testing.T) {
	env := newTestEnv(t)
	curveID := env.curve(t, tuf.Point{Time: 0, Utility: 1})
	home, err := env.Engine.CreateNamedEntity(env.Ctx, env.Key, "Home")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateNamedEntityPattern(env.Ctx, env.Key, home.NamedEntityID, "garden"); err != nil {
		t.Fatal(err)
	}
	inactive := false
	if _, err := env.Engine.ReviseNamedEntity(env.Ctx, env.Key, home.NamedEntityID, nil, &inactive); err != nil {
		t.Fatalf("revise: %v", err)
	}
	g := env.goal(t, "Water the garden", curveID)
	tags, err := env.Engine.ListGoalTags(env.Ctx, env.Key, []string{g.GoalID})
	if err != nil || len(tags) != 0 {
		t.Fatalf("inactive entity must not tag: %+v %v", tags, err)
	}
	entities, err := env.Engine.ListNamedEntities(env.Ctx, env.Key, repo.OwnerFilter{OnlyRecent: true})
	if err != nil || len(entities) != 1 || entities[0].Active {
		t.Fatalf("expected one inactive entity: %+v %v", entities, err)
	}
	all, err := env.Engine.ListNamedEntities(env.Ctx, env.Key, repo.OwnerFilter{})
	if err != nil || len(all) != 2 {
		t.Fatalf("expected two revisions: %+v %v", all, err)
	}
}

func TestReviseGoalSupersedes(t *testing.T) {
	env := newTestEnv(t)
	curveID := env.curve(t, tuf.Point{Time: 0, Utility: 1})
	g := env.goal(t, "Plan trip", curveID)

	name := "Plan summer trip"
	if _, err := env.Engine.ReviseGoal(env.Ctx, env.Key, g.GoalID, engine.GoalReviseOptions{Name: &name}); err != nil {
		t.Fatalf("revise: %v", err)
	}
	recent, err := env.Engine.ListGoals(env.Ctx, env.Key, repo.GoalFilter{GoalIDs: []string{g.GoalID}, OnlyRecent: true})
	if err != nil || len(recent) != 1 || recent[0].Name != name {
		t.Fatalf("only recent: %+v %v", recent, err)
	}
	history, err := env.Engine.ListGoals(env.Ctx, env.Key, repo.GoalFilter{GoalIDs: []string{g.GoalID}})
	if err != nil || len(history) != 2 {
		t.Fatalf("history: %+v %v", history, err)
	}

	done := domain.StatusCompleted
	if _, err := env.Engine.ReviseGoal(env.Ctx, env.Key, g.GoalID, engine.GoalReviseOptions{Status: &done}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	pending, err := env.Engine.ListPendingGoals(env.Ctx, env.Key, "user-1", true)
	if err != nil || len(pending) != 0 {
		t.Fatalf("completed goal must leave the pending view: %+v %v", pending, err)
	}
	// Older pending revisions still match without recency filtering.
	stale, err := env.Engine.ListPendingGoals(env.Ctx, env.Key, "user-1", false)
	if err != nil || len(stale) != 2 {
		t.Fatalf("pending revisions: %+v %v", stale, err)
	}
	_, err = env.Engine.ReviseGoal(env.Ctx, env.Key, g.GoalID, engine.GoalReviseOptions{Name: &name})
	expectCode(t, err, failure.StatusNotValid)

	bogus := "LATER"
	other := env.goal(t, "Other", curveID)
	_, err = env.Engine.ReviseGoal(env.Ctx, env.Key, other.GoalID, engine.GoalReviseOptions{Status: &bogus})
	expectCode(t, err, failure.StatusNotValid)
	_, err = env.Engine.ReviseGoal(env.Ctx, env.Key, "missing", engine.GoalReviseOptions{Name: &name})
	expectCode(t, err, failure.GoalNonexistent)

	intruder := env.issueKey(t, "user-2")
	_, err = env.Engine.ReviseGoal(env.Ctx, intruder, other.GoalID, engine.GoalReviseOptions{Name: &name})
	expectCode(t, err, failure.GoalNonexistent)
}

func TestGoalEvents(t *testing.T) {
	env := newTestEnv(t)
	curveID := env.curve(t, tuf.Point{Time: 0, Utility: 1})
	g := env.goal(t, "Run", curveID)

	_, err := env.Engine.CreateGoalEvent(env.Ctx, env.Key, g.GoalID, 10, 0)
	expectCode(t, err, failure.DurationNotValid)
	_, err = env.Engine.CreateGoalEvent(env.Ctx, env.Key, "missing", 10, 5)
	expectCode(t, err, failure.GoalNonexistent)

	for _, start := range []int64{10, 20} {
		if _, err := env.Engine.CreateGoalEvent(env.Ctx, env.Key, g.GoalID, start, 5); err != nil {
			t.Fatalf("event: %v", err)
		}
	}
	recent, err := env.Engine.ListGoalEvents(env.Ctx, env.Key, repo.GoalEventFilter{GoalIDs: []string{g.GoalID}, OnlyRecent: true})
	if err != nil || len(recent) != 1 || recent[0].StartTime != 20 {
		t.Fatalf("recent events: %+v %v", recent, err)
	}
}

func TestInstantiateTemplate(t *testing.T) {
	env := newTestEnv(t)
	curveID := env.curve(t, tuf.Point{Time: 0, Utility: 1}, tuf.Point{Time: 100, Utility: 5})
	tpl, err := env.Engine.CreateGoalTemplate(env.Ctx, env.Key, engine.TemplateCreateOptions{
		Name: "Weekly review", DurationEstimate: 60, TimeUtilityFunctionID: curveID,
	})
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	_, err = env.Engine.CreateGoalTemplate(env.Ctx, env.Key, engine.TemplateCreateOptions{Name: "x", DurationEstimate: 60, TimeUtilityFunctionID: "nope"})
	expectCode(t, err, failure.TimeUtilityFunctionNonexistent)

	g, err := env.Engine.InstantiateTemplate(env.Ctx, env.Key, tpl.GoalTemplateID, 1000)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	if g.Name != "Weekly review" || g.TimeUtilityFunctionID == curveID {
		t.Fatalf("unexpected goal %+v", g)
	}
	f, err := env.Engine.GetUtilityFunction(env.Ctx, env.Key, g.TimeUtilityFunctionID)
	if err != nil {
		t.Fatal(err)
	}
	if f.Points[0].Time != 1000 || f.Points[1].Time != 1100 || f.Points[1].Utility != 5 {
		t.Fatalf("curve not shifted: %+v", f.Points)
	}
	links, err := env.Engine.ListGoalTemplateLinks(env.Ctx, env.Key, []string{g.GoalID})
	if err != nil || len(links) != 1 || links[0].Source != domain.LinkSourceInstantiated {
		t.Fatalf("links: %+v %v", links, err)
	}

	_, err = env.Engine.InstantiateTemplate(env.Ctx, env.Key, tpl.GoalTemplateID, tuf.MaxMagnitude)
	expectCode(t, err, failure.TimeUtilityFunctionNotValid)

	inactive := false
	if _, err := env.Engine.ReviseGoalTemplate(env.Ctx, env.Key, tpl.GoalTemplateID, engine.TemplateReviseOptions{Active: &inactive}); err != nil {
		t.Fatalf("deactivate template: %v", err)
	}
	_, err = env.Engine.InstantiateTemplate(env.Ctx, env.Key, tpl.GoalTemplateID, 0)
	expectCode(t, err, failure.GoalTemplateNonexistent)
}

func TestTemplatePatternsLinkGoals(t *testing.T) {
	env := newTestEnv(t)
	curveID := env.curve(t, tuf.Point{Time: 0, Utility: 1})
	tpl, err := env.Engine.CreateGoalTemplate(env.Ctx, env.Key, engine.TemplateCreateOptions{
		Name: "Exercise", DurationEstimate: 45, TimeUtilityFunctionID: curveID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateGoalTemplatePattern(env.Ctx, env.Key, tpl.GoalTemplateID, "gym"); err != nil {
		t.Fatal(err)
	}
	g := env.goal(t, "Gym session", curveID)
	links, err := env.Engine.ListGoalTemplateLinks(env.Ctx, env.Key, []string{g.GoalID})
	if err != nil || len(links) != 1 || links[0].Source != domain.LinkSourcePattern {
		t.Fatalf("links: %+v %v", links, err)
	}
	_, err = env.Engine.DeactivateGoalTemplatePattern(env.Ctx, env.Key, "missing")
	expectCode(t, err, failure.PatternNonexistent)
}

func TestSuggestSchedule(t *testing.T) {
	env := newTestEnv(t)
	rising := env.curve(t, tuf.Point{Time: 0, Utility: 0}, tuf.Point{Time: 1000, Utility: 10})
	early := env.curve(t, tuf.Point{Time: 0, Utility: 4}, tuf.Point{Time: 1000, Utility: 0})
	outside := env.curve(t, tuf.Point{Time: 5000, Utility: 9}, tuf.Point{Time: 6000, Utility: 9})

	a := env.goal(t, "rising", rising)
	b := env.goal(t, "early", early)
	env.goal(t, "outside", outside)

	_, err := env.Engine.SuggestSchedule(env.Ctx, env.Key, 500, 100)
	expectCode(t, err, failure.WindowNotValid)
	_, err = env.Engine.SuggestSchedule(env.Ctx, env.Key, 0, (400 * time.Hour).Milliseconds())
	expectCode(t, err, failure.WindowNotValid)
	_, err = env.Engine.SuggestSchedule(env.Ctx, env.Key, math.MinInt64+1, math.MaxInt64)
	expectCode(t, err, failure.WindowNotValid)
	_, _, _, err = env.Engine.BestStart(env.Ctx, env.Key, rising, math.MinInt64, math.MinInt64+5, 10)
	expectCode(t, err, failure.WindowNotValid)

	res, err := env.Engine.SuggestSchedule(env.Ctx, env.Key, 0, 1000)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected two suggestions, got %+v", res)
	}
	if res[0].GoalID != a.GoalID || res[0].StartTime != 970 || res[0].Utility != 9.7 {
		t.Fatalf("first suggestion: %+v", res[0])
	}
	if res[1].GoalID != b.GoalID || res[1].StartTime != 0 || res[1].Utility != 4 {
		t.Fatalf("second suggestion: %+v", res[1])
	}
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)
	curveID := env.curve(t, tuf.Point{Time: 0, Utility: 1})
	g := env.goal(t, "Write report", curveID)
	done := env.goal(t, "Old report", curveID)
	status := domain.StatusCancelled
	if _, err := env.Engine.ReviseGoal(env.Ctx, env.Key, done.GoalID, engine.GoalReviseOptions{Status: &status}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateGoalEvent(env.Ctx, env.Key, g.GoalID, 100, 30); err != nil {
		t.Fatal(err)
	}
	// Created after the goal; the dashboard resolves before reading tags.
	work, err := env.Engine.CreateNamedEntity(env.Ctx, env.Key, "Work")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateNamedEntityPattern(env.Ctx, env.Key, work.NamedEntityID, "report"); err != nil {
		t.Fatal(err)
	}

	rows, err := env.Engine.Dashboard(env.Ctx, env.Key)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if len(rows) != 1 || rows[0].Goal.GoalID != g.GoalID {
		t.Fatalf("expected only the pending goal: %+v", rows)
	}
	if rows[0].Event == nil || rows[0].Event.StartTime != 100 {
		t.Fatalf("missing event: %+v", rows[0].Event)
	}
	if len(rows[0].Tags) != 1 || rows[0].Tags[0].Name != "Work" {
		t.Fatalf("missing tag: %+v", rows[0].Tags)
	}
}

func TestWritesAreAudited(t *testing.T) {
	env := newTestEnv(t)
	curveID := env.curve(t, tuf.Point{Time: 0, Utility: 1})
	g := env.goal(t, "Audit me", curveID)
	events, err := env.Engine.AuditLog(env.Ctx, 10, "goal.create", "", g.GoalID)
	if err != nil || len(events) != 1 || events[0].ActorID != "user-1" {
		t.Fatalf("audit: %+v %v", events, err)
	}
	// Rejected writes leave no entry.
	_, _ = env.Engine.CreateGoal(env.Ctx, env.Key, engine.GoalCreateOptions{Name: "x", DurationEstimate: 1, TimeUtilityFunctionID: "nope"})
	events, err = env.Engine.AuditLog(env.Ctx, 0, "goal.create", "", "")
	if err != nil || len(events) != 1 {
		t.Fatalf("audit after rejection: %+v %v", events, err)
	}
}

func TestGoalIntents(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateGoalIntent(env.Ctx, env.Key, " ")
	expectCode(t, err, failure.NameEmpty)

	d, err := env.Engine.CreateGoalIntent(env.Ctx, env.Key, " Ship v1 ")
	if err != nil || d.Name != "Ship v1" || !d.Active || d.CreatorUserID != "user-1" {
		t.Fatalf("create intent: %+v %v", d, err)
	}
	other := env.issueKey(t, "user-2")
	off := false
	_, err = env.Engine.ReviseGoalIntent(env.Ctx, other, d.GoalIntentID, nil, &off)
	expectCode(t, err, failure.GoalIntentNonexistent)
	_, err = env.Engine.ReviseGoalIntent(env.Ctx, env.Key, "missing", nil, &off)
	expectCode(t, err, failure.GoalIntentNonexistent)
	empty := ""
	_, err = env.Engine.ReviseGoalIntent(env.Ctx, env.Key, d.GoalIntentID, &empty, nil)
	expectCode(t, err, failure.NameEmpty)

	env.advance(time.Second)
	rev, err := env.Engine.ReviseGoalIntent(env.Ctx, env.Key, d.GoalIntentID, nil, &off)
	if err != nil || rev.Active || rev.CreationTime <= d.CreationTime {
		t.Fatalf("revise intent: %+v %v", rev, err)
	}
	recent, err := env.Engine.ListGoalIntents(env.Ctx, env.Key, repo.OwnerFilter{OnlyRecent: true})
	if err != nil || len(recent) != 1 || recent[0].Active {
		t.Fatalf("recent intents: %+v %v", recent, err)
	}
	entries, err := env.Engine.AuditLog(env.Ctx, 10, "goal_intent.revise", "", "")
	if err != nil || len(entries) != 1 || entries[0].EntityID != d.GoalIntentID {
		t.Fatalf("audit: %+v %v", entries, err)
	}
}
