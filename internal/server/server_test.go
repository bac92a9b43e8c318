package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"tufline/internal/config"
	"tufline/internal/db"
	"tufline/internal/engine"
	"tufline/internal/metrics"
	"tufline/internal/migrate"
)

type testServer struct {
	URL    string
	Key    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	ctx := context.Background()
	if err := migrate.Migrate(ctx, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	cfg.Auth.TokenSecret = "server-test-secret"
	m := metrics.New()
	e := engine.New(conn, cfg, nil, m)
	key, _, err := e.IssueAPIKey(ctx, "user-1", time.Hour)
	if err != nil {
		t.Fatalf("issue key: %v", err)
	}
	handler, err := New(Config{Engine: e, BasePath: "/v1", Metrics: m})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Key:    key,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

// call issues an authenticated request and decodes the response into out.
func (s *testServer) call(t *testing.T, method, route string, body any, wantStatus int, out any) []byte {
	t.Helper()
	res, data := doJSON(t, s.client, method, s.URL+"/v1"+route, body, map[string]string{"X-Api-Key": s.Key})
	if res.StatusCode != wantStatus {
		t.Fatalf("%s %s: status %d, want %d: %s", method, route, res.StatusCode, wantStatus, string(data))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("decode %s: %v (%s)", route, err, string(data))
		}
	}
	return data
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func expectErrorCode(t *testing.T, data []byte, code string) {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, string(data))
	}
	if env.Error.Code != code {
		t.Fatalf("expected code %s, got %s (%s)", code, env.Error.Code, string(data))
	}
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health should be public: %d %s", res.StatusCode, string(data))
	}
	for _, headers := range []map[string]string{
		nil,
		{"X-Api-Key": "wrong"},
		{"Authorization": "Bearer not.a.token"},
		{"Authorization": "Basic abc"},
	} {
		res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/dashboard", nil, headers)
		if res.StatusCode != http.StatusUnauthorized {
			t.Fatalf("headers %v: status %d", headers, res.StatusCode)
		}
		expectErrorCode(t, data, "API_KEY_NONEXISTENT")
	}
}

func TestBearerToken(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	var tok TokenResponse
	srv.call(t, http.MethodPost, "/auth/token", map[string]any{"ttlSeconds": 600}, http.StatusOK, &tok)
	if tok.Token == "" || tok.TokenType != "Bearer" {
		t.Fatalf("unexpected token response %+v", tok)
	}
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/dashboard", nil, map[string]string{
		"Authorization": "Bearer " + tok.Token,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("bearer dashboard: %d %s", res.StatusCode, string(data))
	}
}

func TestCurveAndGoalFlow(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	var curve TimeUtilityFunctionResponse
	srv.call(t, http.MethodPost, "/time_utility_functions", map[string]any{
		"points": []map[string]int64{{"x": 300, "y": 5}, {"x": 100, "y": 5}, {"x": 200, "y": 1}},
	}, http.StatusCreated, &curve)
	if curve.TimeUtilityFunctionID == "" || curve.Points[0].X != 100 {
		t.Fatalf("unexpected curve %+v", curve)
	}

	var u UtilityResponse
	srv.call(t, http.MethodGet, "/time_utility_functions/"+curve.TimeUtilityFunctionID+"/utility?t=150", nil, http.StatusOK, &u)
	if !u.Defined || u.Utility == nil || *u.Utility != 3 {
		t.Fatalf("utility at 150: %+v", u)
	}
	srv.call(t, http.MethodGet, "/time_utility_functions/"+curve.TimeUtilityFunctionID+"/utility?t=50", nil, http.StatusOK, &u)
	if u.Defined || u.Utility != nil {
		t.Fatalf("utility at 50 should be undefined: %+v", u)
	}
	var best BestStartResponse
	srv.call(t, http.MethodGet, "/time_utility_functions/"+curve.TimeUtilityFunctionID+"/best_start?windowStart=120&windowEnd=400&duration=10", nil, http.StatusOK, &best)
	if !best.Found || *best.StartTime != 300 || *best.Utility != 5 {
		t.Fatalf("best start: %+v", best)
	}
	data := srv.call(t, http.MethodGet, "/time_utility_functions/"+curve.TimeUtilityFunctionID+"/best_start?windowStart=-9223372036854775808&windowEnd=-9223372036854775803&duration=10", nil, http.StatusBadRequest, nil)
	expectErrorCode(t, data, "SCHEDULE_WINDOW_NOT_VALID")

	data = srv.call(t, http.MethodPost, "/time_utility_functions", map[string]any{
		"points": []map[string]int64{{"x": 100, "y": 5}, {"x": 100, "y": 1}},
	}, http.StatusBadRequest, nil)
	expectErrorCode(t, data, "TIME_UTILITY_FUNCTION_NOT_VALID")

	data = srv.call(t, http.MethodPost, "/goals", map[string]any{
		"name": "", "durationEstimate": 10, "timeUtilityFunctionId": curve.TimeUtilityFunctionID,
	}, http.StatusBadRequest, nil)
	expectErrorCode(t, data, "GOAL_NAME_EMPTY")

	data = srv.call(t, http.MethodPost, "/goals", map[string]any{
		"name": "x", "durationEstimate": 10, "timeUtilityFunctionId": "missing",
	}, http.StatusNotFound, nil)
	expectErrorCode(t, data, "TIME_UTILITY_FUNCTION_NONEXISTENT")

	var goal GoalResponse
	srv.call(t, http.MethodPost, "/goals", map[string]any{
		"name": "Finish quarterly report", "durationEstimate": 10, "timeUtilityFunctionId": curve.TimeUtilityFunctionID,
	}, http.StatusCreated, &goal)
	if goal.Status != "PENDING" || goal.GoalID == "" {
		t.Fatalf("unexpected goal %+v", goal)
	}
	srv.call(t, http.MethodPost, "/goals/"+goal.GoalID+"/revisions", map[string]any{"name": "Finish annual report"}, http.StatusCreated, nil)

	var recent []GoalResponse
	srv.call(t, http.MethodPost, "/views/goal_data", map[string]any{"onlyRecent": true}, http.StatusOK, &recent)
	if len(recent) != 1 || recent[0].Name != "Finish annual report" {
		t.Fatalf("recent goals: %+v", recent)
	}
	var all []GoalResponse
	srv.call(t, http.MethodPost, "/views/goal_data", map[string]any{}, http.StatusOK, &all)
	if len(all) != 2 {
		t.Fatalf("all revisions: %+v", all)
	}

	var ev GoalEventResponse
	srv.call(t, http.MethodPost, "/goals/"+goal.GoalID+"/events", map[string]any{"startTime": 120, "duration": 30}, http.StatusCreated, &ev)
	var events []GoalEventResponse
	srv.call(t, http.MethodPost, "/views/goal_event", map[string]any{"goalId": []string{goal.GoalID}, "onlyRecent": true}, http.StatusOK, &events)
	if len(events) != 1 || events[0].StartTime != 120 {
		t.Fatalf("events: %+v", events)
	}
}

func TestTaggingFlow(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	var curve TimeUtilityFunctionResponse
	srv.call(t, http.MethodPost, "/time_utility_functions", map[string]any{
		"points": []map[string]int64{{"x": 0, "y": 1}, {"x": 1000, "y": 2}},
	}, http.StatusCreated, &curve)

	var entity NamedEntityResponse
	srv.call(t, http.MethodPost, "/named_entities", map[string]any{"name": "Work"}, http.StatusCreated, &entity)
	var pat PatternResponse
	srv.call(t, http.MethodPost, "/named_entities/"+entity.NamedEntityID+"/patterns", map[string]any{"pattern": "report"}, http.StatusCreated, &pat)

	var goal GoalResponse
	srv.call(t, http.MethodPost, "/goals", map[string]any{
		"name": "Finish quarterly report", "durationEstimate": 10, "timeUtilityFunctionId": curve.TimeUtilityFunctionID,
	}, http.StatusCreated, &goal)

	var tags []GoalTagResponse
	srv.call(t, http.MethodPost, "/views/goal_tag", map[string]any{"goalId": []string{goal.GoalID}}, http.StatusOK, &tags)
	if len(tags) != 1 || tags[0].NamedEntityID != entity.NamedEntityID {
		t.Fatalf("tags: %+v", tags)
	}

	srv.call(t, http.MethodPost, "/named_entity_patterns/"+pat.PatternID+"/deactivate", nil, http.StatusOK, &pat)
	if pat.Active {
		t.Fatalf("pattern still active")
	}
	var patterns []PatternResponse
	srv.call(t, http.MethodPost, "/views/named_entity_pattern", map[string]any{"ownerId": []string{entity.NamedEntityID}, "onlyRecent": true}, http.StatusOK, &patterns)
	if len(patterns) != 1 || patterns[0].Active {
		t.Fatalf("patterns: %+v", patterns)
	}

	var res ResolveResponse
	srv.call(t, http.MethodPost, "/tags/resolve", map[string]any{}, http.StatusOK, &res)
	if res.Goals != 1 || len(res.Tags) != 0 {
		t.Fatalf("resolve: %+v", res)
	}

	var dash []DashboardGoalResponse
	srv.call(t, http.MethodGet, "/dashboard", nil, http.StatusOK, &dash)
	if len(dash) != 1 || len(dash[0].Tags) != 1 || dash[0].Tags[0].Name != "Work" {
		t.Fatalf("dashboard should keep the existing tag: %+v", dash)
	}

	data := srv.call(t, http.MethodPost, "/named_entity_patterns/missing/deactivate", nil, http.StatusNotFound, nil)
	expectErrorCode(t, data, "PATTERN_NONEXISTENT")
}

func TestTemplateAndSchedule(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	var curve TimeUtilityFunctionResponse
	srv.call(t, http.MethodPost, "/time_utility_functions", map[string]any{
		"points": []map[string]int64{{"x": 0, "y": 0}, {"x": 100, "y": 10}},
	}, http.StatusCreated, &curve)
	var tpl GoalTemplateResponse
	srv.call(t, http.MethodPost, "/goal_templates", map[string]any{
		"name": "Stretch", "durationEstimate": 10, "timeUtilityFunctionId": curve.TimeUtilityFunctionID,
	}, http.StatusCreated, &tpl)

	var goal GoalResponse
	srv.call(t, http.MethodPost, "/goal_templates/"+tpl.GoalTemplateID+"/instantiate", map[string]any{"anchor": 1000}, http.StatusCreated, &goal)
	if goal.Name != "Stretch" || goal.TimeUtilityFunctionID == curve.TimeUtilityFunctionID {
		t.Fatalf("instantiated goal: %+v", goal)
	}
	var links []GoalTemplateLinkResponse
	srv.call(t, http.MethodPost, "/views/goal_template_link", map[string]any{"goalId": []string{goal.GoalID}}, http.StatusOK, &links)
	if len(links) != 1 || links[0].Source != "instantiated" {
		t.Fatalf("links: %+v", links)
	}

	var suggestions []ScheduleSuggestionResponse
	srv.call(t, http.MethodPost, "/schedule/suggest", map[string]any{"windowStart": 1000, "windowEnd": 1200}, http.StatusOK, &suggestions)
	if len(suggestions) != 1 || suggestions[0].StartTime != 1100 || suggestions[0].Utility != 10 {
		t.Fatalf("suggestions: %+v", suggestions)
	}
	data := srv.call(t, http.MethodPost, "/schedule/suggest", map[string]any{"windowStart": 10, "windowEnd": 5}, http.StatusBadRequest, nil)
	expectErrorCode(t, data, "SCHEDULE_WINDOW_NOT_VALID")
}

func TestGoalIntentsAndViewFilters(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	var first, second GoalIntentResponse
	srv.call(t, http.MethodPost, "/goal_intents", map[string]any{"name": "Run a marathon"}, http.StatusCreated, &first)
	srv.call(t, http.MethodPost, "/goal_intents", map[string]any{"name": "Read more"}, http.StatusCreated, &second)
	if first.GoalIntentID == "" || !first.Active {
		t.Fatalf("unexpected intent %+v", first)
	}
	data := srv.call(t, http.MethodPost, "/goal_intents", map[string]any{"name": "  "}, http.StatusBadRequest, nil)
	expectErrorCode(t, data, "GOAL_NAME_EMPTY")
	data = srv.call(t, http.MethodPost, "/goal_intents/missing/revisions", map[string]any{"active": false}, http.StatusNotFound, nil)
	expectErrorCode(t, data, "GOAL_INTENT_NONEXISTENT")

	var revised GoalIntentResponse
	srv.call(t, http.MethodPost, "/goal_intents/"+first.GoalIntentID+"/revisions", map[string]any{"active": false}, http.StatusCreated, &revised)
	if revised.Active || revised.Name != "Run a marathon" || revised.GoalIntentDataID <= first.GoalIntentDataID {
		t.Fatalf("unexpected revision %+v", revised)
	}

	var items []GoalIntentResponse
	srv.call(t, http.MethodPost, "/views/goal_intent_data", map[string]any{"onlyRecent": true}, http.StatusOK, &items)
	if len(items) != 2 {
		t.Fatalf("recent intents: %+v", items)
	}
	srv.call(t, http.MethodPost, "/views/goal_intent_data", map[string]any{}, http.StatusOK, &items)
	if len(items) != 3 {
		t.Fatalf("all intent revisions: %+v", items)
	}
	srv.call(t, http.MethodPost, "/views/goal_intent_data", map[string]any{"onlyRecent": true, "partialName": "marath"}, http.StatusOK, &items)
	if len(items) != 1 || items[0].Active {
		t.Fatalf("partial name: %+v", items)
	}
	srv.call(t, http.MethodPost, "/views/goal_intent_data", map[string]any{"name": "Read more"}, http.StatusOK, &items)
	if len(items) != 1 || items[0].GoalIntentID != second.GoalIntentID {
		t.Fatalf("exact name: %+v", items)
	}
	srv.call(t, http.MethodPost, "/views/goal_intent_data", map[string]any{"offset": 1, "limit": 1}, http.StatusOK, &items)
	if len(items) != 1 || items[0].GoalIntentID != second.GoalIntentID {
		t.Fatalf("paged: %+v", items)
	}
	srv.call(t, http.MethodPost, "/views/goal_intent_data", map[string]any{"limit": -1}, http.StatusBadRequest, nil)

	var curve TimeUtilityFunctionResponse
	srv.call(t, http.MethodPost, "/time_utility_functions", map[string]any{
		"points": []map[string]int64{{"x": 0, "y": 1}},
	}, http.StatusCreated, &curve)
	for _, name := range []string{"Write chapter one", "Write chapter two", "Edit draft"} {
		srv.call(t, http.MethodPost, "/goals", map[string]any{
			"name": name, "durationEstimate": 5, "timeUtilityFunctionId": curve.TimeUtilityFunctionID,
		}, http.StatusCreated, nil)
	}
	var goals []GoalResponse
	srv.call(t, http.MethodPost, "/views/goal_data", map[string]any{"partialName": "chapter", "limit": 1}, http.StatusOK, &goals)
	if len(goals) != 1 || goals[0].Name != "Write chapter one" {
		t.Fatalf("goal partial name page: %+v", goals)
	}
	srv.call(t, http.MethodPost, "/views/goal_data", map[string]any{"name": "Edit draft"}, http.StatusOK, &goals)
	if len(goals) != 1 {
		t.Fatalf("goal exact name: %+v", goals)
	}
}

func TestMetricsAndOpenAPI(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	srv.call(t, http.MethodGet, "/dashboard", nil, http.StatusOK, nil)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/metrics", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("metrics status %d", res.StatusCode)
	}
	for _, want := range []string{
		`tufline_operations_total{code="OK",op="dashboard"} 1`,
		`tufline_http_requests_total{method="GET",status="200"}`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("metrics missing %q", want)
		}
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/openapi.json", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("openapi status %d", res.StatusCode)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("openapi json: %v", err)
	}
	paths, _ := doc["paths"].(map[string]any)
	for _, p := range []string{"/v1/goals", "/v1/views/goal_data", "/v1/time_utility_functions/{id}/best_start"} {
		if _, ok := paths[p]; !ok {
			t.Errorf("openapi missing path %s", p)
		}
	}
}
