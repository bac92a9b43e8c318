package tuflinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Tufline HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v1",
		APIKey:   apiKey,
		Timeout:  10 * time.Second,
	}
}

type Point struct {
	X int64 `json:"x"`
	Y int64 `json:"y"`
}

type TimeUtilityFunction struct {
	ID            string  `json:"timeUtilityFunctionId"`
	CreationTime  int64   `json:"creationTime"`
	CreatorUserID string  `json:"creatorUserId"`
	Points        []Point `json:"points"`
}

type Goal struct {
	RevisionID            int64  `json:"goalDataId"`
	GoalID                string `json:"goalId"`
	CreationTime          int64  `json:"creationTime"`
	CreatorUserID         string `json:"creatorUserId"`
	Name                  string `json:"name"`
	Description           string `json:"description"`
	DurationEstimate      int64  `json:"durationEstimate"`
	TimeUtilityFunctionID string `json:"timeUtilityFunctionId"`
	Scheduled             bool   `json:"scheduled"`
	StartTime             *int64 `json:"startTime,omitempty"`
	Duration              *int64 `json:"duration,omitempty"`
	Status                string `json:"status"`
}

// NewGoal is the create payload. StartTime and Duration apply only when Scheduled.
type NewGoal struct {
	Name                  string `json:"name"`
	Description           string `json:"description,omitempty"`
	DurationEstimate      int64  `json:"durationEstimate"`
	TimeUtilityFunctionID string `json:"timeUtilityFunctionId"`
	Scheduled             bool   `json:"scheduled,omitempty"`
	StartTime             *int64 `json:"startTime,omitempty"`
	Duration              *int64 `json:"duration,omitempty"`
}

// GoalRevision changes a goal; nil fields keep their value.
type GoalRevision struct {
	Name                  *string `json:"name,omitempty"`
	Description           *string `json:"description,omitempty"`
	DurationEstimate      *int64  `json:"durationEstimate,omitempty"`
	TimeUtilityFunctionID *string `json:"timeUtilityFunctionId,omitempty"`
	Scheduled             *bool   `json:"scheduled,omitempty"`
	StartTime             *int64  `json:"startTime,omitempty"`
	Duration              *int64  `json:"duration,omitempty"`
	Status                *string `json:"status,omitempty"`
}

type GoalEvent struct {
	RevisionID    int64  `json:"goalEventId"`
	GoalID        string `json:"goalId"`
	CreationTime  int64  `json:"creationTime"`
	CreatorUserID string `json:"creatorUserId"`
	StartTime     int64  `json:"startTime"`
	Duration      int64  `json:"duration"`
	Active        bool   `json:"active"`
}

type NamedEntity struct {
	RevisionID    int64  `json:"namedEntityDataId"`
	NamedEntityID string `json:"namedEntityId"`
	CreationTime  int64  `json:"creationTime"`
	CreatorUserID string `json:"creatorUserId"`
	Name          string `json:"name"`
	Active        bool   `json:"active"`
}

type GoalIntent struct {
	RevisionID    int64  `json:"goalIntentDataId"`
	GoalIntentID  string `json:"goalIntentId"`
	CreationTime  int64  `json:"creationTime"`
	CreatorUserID string `json:"creatorUserId"`
	Name          string `json:"name"`
	Active        bool   `json:"active"`
}

type Pattern struct {
	RevisionID    int64  `json:"patternRevisionId"`
	PatternID     string `json:"patternId"`
	OwnerID       string `json:"ownerId"`
	CreationTime  int64  `json:"creationTime"`
	CreatorUserID string `json:"creatorUserId"`
	Pattern       string `json:"pattern"`
	Active        bool   `json:"active"`
}

type GoalTemplate struct {
	RevisionID            int64  `json:"goalTemplateDataId"`
	GoalTemplateID        string `json:"goalTemplateId"`
	CreationTime          int64  `json:"creationTime"`
	CreatorUserID         string `json:"creatorUserId"`
	Name                  string `json:"name"`
	Description           string `json:"description"`
	DurationEstimate      int64  `json:"durationEstimate"`
	TimeUtilityFunctionID string `json:"timeUtilityFunctionId"`
	Active                bool   `json:"active"`
}

type GoalTag struct {
	GoalID        string `json:"goalId"`
	NamedEntityID string `json:"namedEntityId"`
	CreationTime  int64  `json:"creationTime"`
}

type GoalTemplateLink struct {
	GoalID         string `json:"goalId"`
	GoalTemplateID string `json:"goalTemplateId"`
	CreationTime   int64  `json:"creationTime"`
	Source         string `json:"source"`
}

type ResolveResult struct {
	Goals int                `json:"goals"`
	Tags  []GoalTag          `json:"tags"`
	Links []GoalTemplateLink `json:"links"`
}

type ScheduleSuggestion struct {
	GoalID    string  `json:"goalId"`
	Name      string  `json:"name"`
	StartTime int64   `json:"startTime"`
	Utility   float64 `json:"utility"`
}

type DashboardGoal struct {
	Goal      Goal           `json:"goal"`
	Event     *GoalEvent     `json:"event,omitempty"`
	Tags      []NamedEntity  `json:"tags"`
	Templates []GoalTemplate `json:"templates"`
}

// GoalView filters the goal_data view. Empty slices do not filter.
type GoalView struct {
	GoalID        []string `json:"goalId,omitempty"`
	CreatorUserID []string `json:"creatorUserId,omitempty"`
	Status        []string `json:"status,omitempty"`
	Name          string   `json:"name,omitempty"`
	PartialName   string   `json:"partialName,omitempty"`
	OnlyRecent    bool     `json:"onlyRecent,omitempty"`
	Offset        int      `json:"offset,omitempty"`
	Limit         int      `json:"limit,omitempty"`
}

// NameView filters named records: entities, templates and intents.
type NameView struct {
	ID          []string `json:"id,omitempty"`
	Active      *bool    `json:"active,omitempty"`
	Name        string   `json:"name,omitempty"`
	PartialName string   `json:"partialName,omitempty"`
	OnlyRecent  bool     `json:"onlyRecent,omitempty"`
	Offset      int      `json:"offset,omitempty"`
	Limit       int      `json:"limit,omitempty"`
}

// APIError wraps non-2xx responses. Code is the error envelope code when present.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// ErrorCode returns the API error code carried by err, or "".
func ErrorCode(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// CreateTimeUtilityFunction stores a curve.
func (c *Client) CreateTimeUtilityFunction(ctx context.Context, points []Point) (TimeUtilityFunction, error) {
	var resp TimeUtilityFunction
	err := c.do(ctx, http.MethodPost, "time_utility_functions", map[string]any{"points": points}, &resp)
	return resp, err
}

// Utility evaluates a curve at t. ok is false outside the curve's domain.
func (c *Client) Utility(ctx context.Context, curveID string, t int64) (value float64, ok bool, err error) {
	var resp struct {
		Defined bool     `json:"defined"`
		Utility *float64 `json:"utility"`
	}
	endpoint := fmt.Sprintf("time_utility_functions/%s/utility?t=%d", url.PathEscape(curveID), t)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return 0, false, err
	}
	if !resp.Defined || resp.Utility == nil {
		return 0, false, nil
	}
	return *resp.Utility, true, nil
}

// BestStart finds the start time maximising utility inside the window.
func (c *Client) BestStart(ctx context.Context, curveID string, windowStart, windowEnd, duration int64) (start int64, utility float64, ok bool, err error) {
	var resp struct {
		Found     bool     `json:"found"`
		StartTime *int64   `json:"startTime"`
		Utility   *float64 `json:"utility"`
	}
	q := url.Values{}
	q.Set("windowStart", fmt.Sprint(windowStart))
	q.Set("windowEnd", fmt.Sprint(windowEnd))
	q.Set("duration", fmt.Sprint(duration))
	endpoint := fmt.Sprintf("time_utility_functions/%s/best_start?%s", url.PathEscape(curveID), q.Encode())
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return 0, 0, false, err
	}
	if !resp.Found || resp.StartTime == nil || resp.Utility == nil {
		return 0, 0, false, nil
	}
	return *resp.StartTime, *resp.Utility, true, nil
}

// CreateGoal creates a PENDING goal.
func (c *Client) CreateGoal(ctx context.Context, g NewGoal) (Goal, error) {
	var resp Goal
	err := c.do(ctx, http.MethodPost, "goals", g, &resp)
	return resp, err
}

// ReviseGoal appends a goal revision.
func (c *Client) ReviseGoal(ctx context.Context, goalID string, rev GoalRevision) (Goal, error) {
	var resp Goal
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("goals/%s/revisions", url.PathEscape(goalID)), rev, &resp)
	return resp, err
}

// LogGoalEvent records that a goal happened.
func (c *Client) LogGoalEvent(ctx context.Context, goalID string, start, duration int64) (GoalEvent, error) {
	var resp GoalEvent
	body := map[string]int64{"startTime": start, "duration": duration}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("goals/%s/events", url.PathEscape(goalID)), body, &resp)
	return resp, err
}

// Goals returns goal revisions matching the view filter.
func (c *Client) Goals(ctx context.Context, f GoalView) ([]Goal, error) {
	var resp []Goal
	err := c.do(ctx, http.MethodPost, "views/goal_data", f, &resp)
	return resp, err
}

// CreateNamedEntity creates an active named entity.
func (c *Client) CreateNamedEntity(ctx context.Context, name string) (NamedEntity, error) {
	var resp NamedEntity
	err := c.do(ctx, http.MethodPost, "named_entities", map[string]string{"name": name}, &resp)
	return resp, err
}

// CreateGoalIntent creates an active goal intent.
func (c *Client) CreateGoalIntent(ctx context.Context, name string) (GoalIntent, error) {
	var resp GoalIntent
	err := c.do(ctx, http.MethodPost, "goal_intents", map[string]string{"name": name}, &resp)
	return resp, err
}

// ReviseGoalIntent renames or (de)activates a goal intent. Nil arguments keep
// the current value.
func (c *Client) ReviseGoalIntent(ctx context.Context, intentID string, name *string, active *bool) (GoalIntent, error) {
	var resp GoalIntent
	body := struct {
		Name   *string `json:"name,omitempty"`
		Active *bool   `json:"active,omitempty"`
	}{name, active}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("goal_intents/%s/revisions", url.PathEscape(intentID)), body, &resp)
	return resp, err
}

// GoalIntents returns goal intent revisions matching the view filter.
func (c *Client) GoalIntents(ctx context.Context, f NameView) ([]GoalIntent, error) {
	var resp []GoalIntent
	err := c.do(ctx, http.MethodPost, "views/goal_intent_data", f, &resp)
	return resp, err
}

// AddNamedEntityPattern attaches a pattern to a named entity.
func (c *Client) AddNamedEntityPattern(ctx context.Context, entityID, pattern string) (Pattern, error) {
	var resp Pattern
	endpoint := fmt.Sprintf("named_entities/%s/patterns", url.PathEscape(entityID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]string{"pattern": pattern}, &resp)
	return resp, err
}

// DeactivateNamedEntityPattern stops a pattern from tagging new goals.
func (c *Client) DeactivateNamedEntityPattern(ctx context.Context, patternID string) (Pattern, error) {
	var resp Pattern
	endpoint := fmt.Sprintf("named_entity_patterns/%s/deactivate", url.PathEscape(patternID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// CreateGoalTemplate creates an active goal template.
func (c *Client) CreateGoalTemplate(ctx context.Context, name string, durationEstimate int64, curveID string) (GoalTemplate, error) {
	var resp GoalTemplate
	body := map[string]any{"name": name, "durationEstimate": durationEstimate, "timeUtilityFunctionId": curveID}
	err := c.do(ctx, http.MethodPost, "goal_templates", body, &resp)
	return resp, err
}

// AddGoalTemplatePattern attaches a pattern to a goal template.
func (c *Client) AddGoalTemplatePattern(ctx context.Context, templateID, pattern string) (Pattern, error) {
	var resp Pattern
	endpoint := fmt.Sprintf("goal_templates/%s/patterns", url.PathEscape(templateID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]string{"pattern": pattern}, &resp)
	return resp, err
}

// InstantiateTemplate creates a goal from a template with its curve shifted by anchor.
func (c *Client) InstantiateTemplate(ctx context.Context, templateID string, anchor int64) (Goal, error) {
	var resp Goal
	endpoint := fmt.Sprintf("goal_templates/%s/instantiate", url.PathEscape(templateID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]int64{"anchor": anchor}, &resp)
	return resp, err
}

// Resolve matches active patterns against goals. No ids means every goal of the caller.
func (c *Client) Resolve(ctx context.Context, goalIDs ...string) (ResolveResult, error) {
	var resp ResolveResult
	err := c.do(ctx, http.MethodPost, "tags/resolve", goalIDBody(goalIDs), &resp)
	return resp, err
}

// GoalTags lists tags of the given goals.
func (c *Client) GoalTags(ctx context.Context, goalIDs ...string) ([]GoalTag, error) {
	var resp []GoalTag
	err := c.do(ctx, http.MethodPost, "views/goal_tag", goalIDBody(goalIDs), &resp)
	return resp, err
}

// SuggestSchedule returns best start times for unscheduled pending goals.
func (c *Client) SuggestSchedule(ctx context.Context, windowStart, windowEnd int64) ([]ScheduleSuggestion, error) {
	var resp []ScheduleSuggestion
	body := map[string]int64{"windowStart": windowStart, "windowEnd": windowEnd}
	err := c.do(ctx, http.MethodPost, "schedule/suggest", body, &resp)
	return resp, err
}

// Dashboard returns pending goals with their latest event, tags and templates.
func (c *Client) Dashboard(ctx context.Context) ([]DashboardGoal, error) {
	var resp []DashboardGoal
	err := c.do(ctx, http.MethodGet, "dashboard", nil, &resp)
	return resp, err
}

// MintToken exchanges the API key for a bearer token. ttl of zero uses the server default.
func (c *Client) MintToken(ctx context.Context, ttl time.Duration) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]int64{}
	if ttl > 0 {
		body["ttlSeconds"] = int64(ttl / time.Second)
	}
	if err := c.do(ctx, http.MethodPost, "auth/token", body, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code, apiErr.Message = env.Error.Code, env.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}

func goalIDBody(goalIDs []string) map[string]any {
	body := map[string]any{}
	if len(goalIDs) > 0 {
		body["goalId"] = goalIDs
	}
	return body
}
