package domain

import "tufline/internal/tuf"

// Goal statuses. Only PENDING matters to scheduling; the others are terminal.
const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
)

// ValidStatus reports whether s is a known goal status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Template link sources.
const (
	LinkSourcePattern      = "pattern"
	LinkSourceInstantiated = "instantiated"
)

// API key kinds. The latest record for a key decides its state.
const (
	APIKeyValid  = "VALID"
	APIKeyCancel = "CANCEL"
)

type TimeUtilityFunction struct {
	ID            string      `json:"time_utility_function_id"`
	CreationTime  int64       `json:"creation_time"`
	CreatorUserID string      `json:"creator_user_id"`
	Points        []tuf.Point `json:"points"`
}

// Curve rebuilds the evaluable curve from stored points.
func (f TimeUtilityFunction) Curve() (tuf.Curve, error) {
	return tuf.New(f.Points)
}

// GoalData is one revision of a goal. The highest RevisionID per GoalID is current.
type GoalData struct {
	RevisionID            int64  `json:"goal_data_id"`
	GoalID                string `json:"goal_id"`
	CreationTime          int64  `json:"creation_time"`
	CreatorUserID         string `json:"creator_user_id"`
	Name                  string `json:"name"`
	Description           string `json:"description,omitempty"`
	DurationEstimate      int64  `json:"duration_estimate"`
	TimeUtilityFunctionID string `json:"time_utility_function_id"`
	Scheduled             bool   `json:"scheduled"`
	StartTime             *int64 `json:"start_time,omitempty"`
	Duration              *int64 `json:"duration,omitempty"`
	Status                string `json:"status" enum:"PENDING,COMPLETED,CANCELLED"`
}

// GoalEvent records that a goal actually happened during an interval.
type GoalEvent struct {
	RevisionID    int64  `json:"goal_event_id"`
	GoalID        string `json:"goal_id"`
	CreationTime  int64  `json:"creation_time"`
	CreatorUserID string `json:"creator_user_id"`
	StartTime     int64  `json:"start_time"`
	Duration      int64  `json:"duration"`
	Active        bool   `json:"active"`
}

type NamedEntityData struct {
	RevisionID    int64  `json:"named_entity_data_id"`
	NamedEntityID string `json:"named_entity_id"`
	CreationTime  int64  `json:"creation_time"`
	CreatorUserID string `json:"creator_user_id"`
	Name          string `json:"name"`
	Active        bool   `json:"active"`
}

// GoalIntentData is one revision of a goal intent: a named, long-lived aim that
// goals are created in service of.
type GoalIntentData struct {
	RevisionID    int64  `json:"goal_intent_data_id"`
	GoalIntentID  string `json:"goal_intent_id"`
	CreationTime  int64  `json:"creation_time"`
	CreatorUserID string `json:"creator_user_id"`
	Name          string `json:"name"`
	Active        bool   `json:"active"`
}

// Pattern is one revision of a pattern owned by a named entity or goal template.
type Pattern struct {
	RevisionID    int64  `json:"pattern_revision_id"`
	PatternID     string `json:"pattern_id"`
	OwnerID       string `json:"owner_id"`
	CreationTime  int64  `json:"creation_time"`
	CreatorUserID string `json:"creator_user_id"`
	Pattern       string `json:"pattern"`
	Active        bool   `json:"active"`
}

type GoalTemplateData struct {
	RevisionID            int64  `json:"goal_template_data_id"`
	GoalTemplateID        string `json:"goal_template_id"`
	CreationTime          int64  `json:"creation_time"`
	CreatorUserID         string `json:"creator_user_id"`
	Name                  string `json:"name"`
	Description           string `json:"description,omitempty"`
	DurationEstimate      int64  `json:"duration_estimate"`
	TimeUtilityFunctionID string `json:"time_utility_function_id"`
	Active                bool   `json:"active"`
}

type GoalTag struct {
	GoalID        string `json:"goal_id"`
	NamedEntityID string `json:"named_entity_id"`
	CreationTime  int64  `json:"creation_time"`
}

type GoalTemplateLink struct {
	GoalID         string `json:"goal_id"`
	GoalTemplateID string `json:"goal_template_id"`
	CreationTime   int64  `json:"creation_time"`
	Source         string `json:"source" enum:"pattern,instantiated"`
}

type APIKey struct {
	ID            string `json:"api_key_id"`
	CreatorUserID string `json:"creator_user_id"`
	KeyHash       string `json:"key_hash"`
	CreationTime  int64  `json:"creation_time"`
	Duration      int64  `json:"duration"`
	Kind          string `json:"kind" enum:"VALID,CANCEL"`
}

// ValidAt reports whether the key authenticates at now (epoch ms).
func (k APIKey) ValidAt(now int64) bool {
	return k.Kind == APIKeyValid && k.CreationTime+k.Duration > now
}

// AuditEvent is an append-only log entry of a write.
type AuditEvent struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// ScheduleSuggestion is the best start found for an unscheduled goal.
type ScheduleSuggestion struct {
	GoalID    string  `json:"goal_id"`
	Name      string  `json:"name"`
	StartTime int64   `json:"start_time"`
	Utility   float64 `json:"utility"`
}

// DashboardGoal joins a pending goal with its read-side projections.
type DashboardGoal struct {
	Goal      GoalData           `json:"goal"`
	Event     *GoalEvent         `json:"event,omitempty"`
	Tags      []NamedEntityData  `json:"tags"`
	Templates []GoalTemplateData `json:"templates"`
}
