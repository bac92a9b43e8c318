package server

import (
	"tufline/internal/domain"
	"tufline/internal/engine"
	"tufline/internal/repo"
	"tufline/internal/tuf"
)

// Request payloads

type PointRequest struct {
	X int64 `json:"x" doc:"Epoch milliseconds"`
	Y int64 `json:"y" doc:"Utility at x"`
}

type CreateTimeUtilityFunctionRequest struct {
	Points []PointRequest `json:"points"`
}

type CreateGoalRequest struct {
	Name                  string `json:"name"`
	Description           string `json:"description,omitempty"`
	DurationEstimate      int64  `json:"durationEstimate"`
	TimeUtilityFunctionID string `json:"timeUtilityFunctionId"`
	Scheduled             bool   `json:"scheduled,omitempty"`
	StartTime             *int64 `json:"startTime,omitempty"`
	Duration              *int64 `json:"duration,omitempty"`
}

type ReviseGoalRequest struct {
	Name                  *string `json:"name,omitempty"`
	Description           *string `json:"description,omitempty"`
	DurationEstimate      *int64  `json:"durationEstimate,omitempty"`
	TimeUtilityFunctionID *string `json:"timeUtilityFunctionId,omitempty"`
	Scheduled             *bool   `json:"scheduled,omitempty"`
	StartTime             *int64  `json:"startTime,omitempty"`
	Duration              *int64  `json:"duration,omitempty"`
	Status                *string `json:"status,omitempty" enum:"PENDING,COMPLETED,CANCELLED"`
}

type CreateGoalEventRequest struct {
	StartTime int64 `json:"startTime"`
	Duration  int64 `json:"duration"`
}

type CreateNamedEntityRequest struct {
	Name string `json:"name"`
}

type ReviseNamedEntityRequest struct {
	Name   *string `json:"name,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

type CreateGoalIntentRequest struct {
	Name string `json:"name"`
}

type ReviseGoalIntentRequest struct {
	Name   *string `json:"name,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

type CreatePatternRequest struct {
	Pattern string `json:"pattern"`
}

type CreateGoalTemplateRequest struct {
	Name                  string `json:"name"`
	Description           string `json:"description,omitempty"`
	DurationEstimate      int64  `json:"durationEstimate"`
	TimeUtilityFunctionID string `json:"timeUtilityFunctionId"`
}

type ReviseGoalTemplateRequest struct {
	Name                  *string `json:"name,omitempty"`
	Description           *string `json:"description,omitempty"`
	DurationEstimate      *int64  `json:"durationEstimate,omitempty"`
	TimeUtilityFunctionID *string `json:"timeUtilityFunctionId,omitempty"`
	Active                *bool   `json:"active,omitempty"`
}

type InstantiateTemplateRequest struct {
	Anchor int64 `json:"anchor" doc:"Offset in milliseconds applied to the template curve"`
}

type ResolveRequest struct {
	GoalIDs []string `json:"goalId,omitempty"`
}

type SuggestScheduleRequest struct {
	WindowStart int64 `json:"windowStart"`
	WindowEnd   int64 `json:"windowEnd"`
}

// View filters. Empty arrays do not filter. name matches exactly, partialName
// matches any name containing it. limit 0 returns every row.

type GoalDataViewRequest struct {
	GoalID        []string `json:"goalId,omitempty"`
	CreatorUserID []string `json:"creatorUserId,omitempty"`
	Status        []string `json:"status,omitempty"`
	Scheduled     *bool    `json:"scheduled,omitempty"`
	MinCreation   *int64   `json:"minCreationTime,omitempty"`
	MaxCreation   *int64   `json:"maxCreationTime,omitempty"`
	Name          string   `json:"name,omitempty"`
	PartialName   string   `json:"partialName,omitempty"`
	OnlyRecent    bool     `json:"onlyRecent,omitempty"`
	Offset        int      `json:"offset,omitempty" minimum:"0"`
	Limit         int      `json:"limit,omitempty" minimum:"0"`
}

type GoalEventViewRequest struct {
	GoalID        []string `json:"goalId,omitempty"`
	CreatorUserID []string `json:"creatorUserId,omitempty"`
	Active        *bool    `json:"active,omitempty"`
	OnlyRecent    bool     `json:"onlyRecent,omitempty"`
	Offset        int      `json:"offset,omitempty" minimum:"0"`
	Limit         int      `json:"limit,omitempty" minimum:"0"`
}

type OwnerViewRequest struct {
	ID            []string `json:"id,omitempty"`
	CreatorUserID []string `json:"creatorUserId,omitempty"`
	Active        *bool    `json:"active,omitempty"`
	Name          string   `json:"name,omitempty"`
	PartialName   string   `json:"partialName,omitempty"`
	OnlyRecent    bool     `json:"onlyRecent,omitempty"`
	Offset        int      `json:"offset,omitempty" minimum:"0"`
	Limit         int      `json:"limit,omitempty" minimum:"0"`
}

type PatternViewRequest struct {
	PatternID     []string `json:"patternId,omitempty"`
	OwnerID       []string `json:"ownerId,omitempty"`
	CreatorUserID []string `json:"creatorUserId,omitempty"`
	Active        *bool    `json:"active,omitempty"`
	OnlyRecent    bool     `json:"onlyRecent,omitempty"`
	Offset        int      `json:"offset,omitempty" minimum:"0"`
	Limit         int      `json:"limit,omitempty" minimum:"0"`
}

type AssociationViewRequest struct {
	GoalID []string `json:"goalId,omitempty"`
}

// Response payloads

type PointResponse struct {
	X int64 `json:"x"`
	Y int64 `json:"y"`
}

type TimeUtilityFunctionResponse struct {
	TimeUtilityFunctionID string          `json:"timeUtilityFunctionId"`
	CreationTime          int64           `json:"creationTime"`
	CreatorUserID         string          `json:"creatorUserId"`
	Points                []PointResponse `json:"points"`
}

type UtilityResponse struct {
	T       int64    `json:"t"`
	Defined bool     `json:"defined"`
	Utility *float64 `json:"utility,omitempty"`
}

type BestStartResponse struct {
	Found     bool     `json:"found"`
	StartTime *int64   `json:"startTime,omitempty"`
	Utility   *float64 `json:"utility,omitempty"`
}

type GoalResponse struct {
	GoalDataID            int64  `json:"goalDataId"`
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
	Status                string `json:"status" enum:"PENDING,COMPLETED,CANCELLED"`
}

type GoalEventResponse struct {
	GoalEventID   int64  `json:"goalEventId"`
	GoalID        string `json:"goalId"`
	CreationTime  int64  `json:"creationTime"`
	CreatorUserID string `json:"creatorUserId"`
	StartTime     int64  `json:"startTime"`
	Duration      int64  `json:"duration"`
	Active        bool   `json:"active"`
}

type NamedEntityResponse struct {
	NamedEntityDataID int64  `json:"namedEntityDataId"`
	NamedEntityID     string `json:"namedEntityId"`
	CreationTime      int64  `json:"creationTime"`
	CreatorUserID     string `json:"creatorUserId"`
	Name              string `json:"name"`
	Active            bool   `json:"active"`
}

type PatternResponse struct {
	PatternRevisionID int64  `json:"patternRevisionId"`
	PatternID         string `json:"patternId"`
	OwnerID           string `json:"ownerId"`
	CreationTime      int64  `json:"creationTime"`
	CreatorUserID     string `json:"creatorUserId"`
	Pattern           string `json:"pattern"`
	Active            bool   `json:"active"`
}

type GoalTemplateResponse struct {
	GoalTemplateDataID    int64  `json:"goalTemplateDataId"`
	GoalTemplateID        string `json:"goalTemplateId"`
	CreationTime          int64  `json:"creationTime"`
	CreatorUserID         string `json:"creatorUserId"`
	Name                  string `json:"name"`
	Description           string `json:"description"`
	DurationEstimate      int64  `json:"durationEstimate"`
	TimeUtilityFunctionID string `json:"timeUtilityFunctionId"`
	Active                bool   `json:"active"`
}

type GoalTagResponse struct {
	GoalID        string `json:"goalId"`
	NamedEntityID string `json:"namedEntityId"`
	CreationTime  int64  `json:"creationTime"`
}

type GoalTemplateLinkResponse struct {
	GoalID         string `json:"goalId"`
	GoalTemplateID string `json:"goalTemplateId"`
	CreationTime   int64  `json:"creationTime"`
	Source         string `json:"source" enum:"pattern,instantiated"`
}

type ResolveResponse struct {
	Goals int                        `json:"goals"`
	Tags  []GoalTagResponse          `json:"tags"`
	Links []GoalTemplateLinkResponse `json:"links"`
}

type ScheduleSuggestionResponse struct {
	GoalID    string  `json:"goalId"`
	Name      string  `json:"name"`
	StartTime int64   `json:"startTime"`
	Utility   float64 `json:"utility"`
}

type DashboardGoalResponse struct {
	Goal      GoalResponse           `json:"goal"`
	Event     *GoalEventResponse     `json:"event,omitempty"`
	Tags      []NamedEntityResponse  `json:"tags"`
	Templates []GoalTemplateResponse `json:"templates"`
}

type GoalIntentResponse struct {
	GoalIntentDataID int64  `json:"goalIntentDataId"`
	GoalIntentID     string `json:"goalIntentId"`
	CreationTime     int64  `json:"creationTime"`
	CreatorUserID    string `json:"creatorUserId"`
	Name             string `json:"name"`
	Active           bool   `json:"active"`
}

// Mappers

func pointsFromRequest(in []PointRequest) []tuf.Point {
	out := make([]tuf.Point, len(in))
	for i, p := range in {
		out[i] = tuf.Point{Time: p.X, Utility: p.Y}
	}
	return out
}

func timeUtilityFunctionResponse(f domain.TimeUtilityFunction) TimeUtilityFunctionResponse {
	points := make([]PointResponse, len(f.Points))
	for i, p := range f.Points {
		points[i] = PointResponse{X: p.Time, Y: p.Utility}
	}
	return TimeUtilityFunctionResponse{
		TimeUtilityFunctionID: f.ID,
		CreationTime:          f.CreationTime,
		CreatorUserID:         f.CreatorUserID,
		Points:                points,
	}
}

func goalResponse(g domain.GoalData) GoalResponse {
	return GoalResponse{
		GoalDataID:            g.RevisionID,
		GoalID:                g.GoalID,
		CreationTime:          g.CreationTime,
		CreatorUserID:         g.CreatorUserID,
		Name:                  g.Name,
		Description:           g.Description,
		DurationEstimate:      g.DurationEstimate,
		TimeUtilityFunctionID: g.TimeUtilityFunctionID,
		Scheduled:             g.Scheduled,
		StartTime:             g.StartTime,
		Duration:              g.Duration,
		Status:                g.Status,
	}
}

func goalEventResponse(ev domain.GoalEvent) GoalEventResponse {
	return GoalEventResponse{
		GoalEventID:   ev.RevisionID,
		GoalID:        ev.GoalID,
		CreationTime:  ev.CreationTime,
		CreatorUserID: ev.CreatorUserID,
		StartTime:     ev.StartTime,
		Duration:      ev.Duration,
		Active:        ev.Active,
	}
}

func goalIntentResponse(d domain.GoalIntentData) GoalIntentResponse {
	return GoalIntentResponse{
		GoalIntentDataID: d.RevisionID,
		GoalIntentID:     d.GoalIntentID,
		CreationTime:     d.CreationTime,
		CreatorUserID:    d.CreatorUserID,
		Name:             d.Name,
		Active:           d.Active,
	}
}

func namedEntityResponse(d domain.NamedEntityData) NamedEntityResponse {
	return NamedEntityResponse{
		NamedEntityDataID: d.RevisionID,
		NamedEntityID:     d.NamedEntityID,
		CreationTime:      d.CreationTime,
		CreatorUserID:     d.CreatorUserID,
		Name:              d.Name,
		Active:            d.Active,
	}
}

func patternResponse(p domain.Pattern) PatternResponse {
	return PatternResponse{
		PatternRevisionID: p.RevisionID,
		PatternID:         p.PatternID,
		OwnerID:           p.OwnerID,
		CreationTime:      p.CreationTime,
		CreatorUserID:     p.CreatorUserID,
		Pattern:           p.Pattern,
		Active:            p.Active,
	}
}

func goalTemplateResponse(d domain.GoalTemplateData) GoalTemplateResponse {
	return GoalTemplateResponse{
		GoalTemplateDataID:    d.RevisionID,
		GoalTemplateID:        d.GoalTemplateID,
		CreationTime:          d.CreationTime,
		CreatorUserID:         d.CreatorUserID,
		Name:                  d.Name,
		Description:           d.Description,
		DurationEstimate:      d.DurationEstimate,
		TimeUtilityFunctionID: d.TimeUtilityFunctionID,
		Active:                d.Active,
	}
}

func goalTagResponse(t domain.GoalTag) GoalTagResponse {
	return GoalTagResponse{GoalID: t.GoalID, NamedEntityID: t.NamedEntityID, CreationTime: t.CreationTime}
}

func goalTemplateLinkResponse(l domain.GoalTemplateLink) GoalTemplateLinkResponse {
	return GoalTemplateLinkResponse{GoalID: l.GoalID, GoalTemplateID: l.GoalTemplateID, CreationTime: l.CreationTime, Source: l.Source}
}

func resolveResponse(r engine.ResolveResult) ResolveResponse {
	return ResolveResponse{
		Goals: r.Goals,
		Tags:  mapSlice(r.Tags, goalTagResponse),
		Links: mapSlice(r.Links, goalTemplateLinkResponse),
	}
}

func dashboardGoalResponse(d domain.DashboardGoal) DashboardGoalResponse {
	out := DashboardGoalResponse{
		Goal:      goalResponse(d.Goal),
		Tags:      mapSlice(d.Tags, namedEntityResponse),
		Templates: mapSlice(d.Templates, goalTemplateResponse),
	}
	if d.Event != nil {
		ev := goalEventResponse(*d.Event)
		out.Event = &ev
	}
	return out
}

func scheduleSuggestionResponse(s domain.ScheduleSuggestion) ScheduleSuggestionResponse {
	return ScheduleSuggestionResponse{GoalID: s.GoalID, Name: s.Name, StartTime: s.StartTime, Utility: s.Utility}
}

// mapSlice maps items with fn, never returning nil so arrays encode as [].
func mapSlice[T, R any](items []T, fn func(T) R) []R {
	out := make([]R, 0, len(items))
	for _, it := range items {
		out = append(out, fn(it))
	}
	return out
}

func (r GoalDataViewRequest) filter() repo.GoalFilter {
	return repo.GoalFilter{
		GoalIDs:        r.GoalID,
		CreatorUserIDs: r.CreatorUserID,
		Statuses:       r.Status,
		Scheduled:      r.Scheduled,
		OnlyRecent:     r.OnlyRecent,
		MinCreation:    r.MinCreation,
		MaxCreation:    r.MaxCreation,
		Name:           r.Name,
		PartialName:    r.PartialName,
		Page:           repo.Page{Offset: r.Offset, Limit: r.Limit},
	}
}

func (r GoalEventViewRequest) filter() repo.GoalEventFilter {
	return repo.GoalEventFilter{
		GoalIDs:        r.GoalID,
		CreatorUserIDs: r.CreatorUserID,
		Active:         r.Active,
		OnlyRecent:     r.OnlyRecent,
		Page:           repo.Page{Offset: r.Offset, Limit: r.Limit},
	}
}

func (r OwnerViewRequest) filter() repo.OwnerFilter {
	return repo.OwnerFilter{
		IDs:            r.ID,
		CreatorUserIDs: r.CreatorUserID,
		Active:         r.Active,
		OnlyRecent:     r.OnlyRecent,
		Name:           r.Name,
		PartialName:    r.PartialName,
		Page:           repo.Page{Offset: r.Offset, Limit: r.Limit},
	}
}

func (r PatternViewRequest) filter() repo.PatternFilter {
	return repo.PatternFilter{
		PatternIDs:     r.PatternID,
		OwnerIDs:       r.OwnerID,
		CreatorUserIDs: r.CreatorUserID,
		Active:         r.Active,
		OnlyRecent:     r.OnlyRecent,
		Page:           repo.Page{Offset: r.Offset, Limit: r.Limit},
	}
}

func (r CreateGoalRequest) options() engine.GoalCreateOptions {
	return engine.GoalCreateOptions{
		Name:                  r.Name,
		Description:           r.Description,
		DurationEstimate:      r.DurationEstimate,
		TimeUtilityFunctionID: r.TimeUtilityFunctionID,
		Scheduled:             r.Scheduled,
		StartTime:             r.StartTime,
		Duration:              r.Duration,
	}
}

func (r ReviseGoalRequest) options() engine.GoalReviseOptions {
	return engine.GoalReviseOptions{
		Name:                  r.Name,
		Description:           r.Description,
		DurationEstimate:      r.DurationEstimate,
		TimeUtilityFunctionID: r.TimeUtilityFunctionID,
		Scheduled:             r.Scheduled,
		StartTime:             r.StartTime,
		Duration:              r.Duration,
		Status:                r.Status,
	}
}
