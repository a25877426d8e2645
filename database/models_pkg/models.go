package models

import (
	"time"

	"gorm.io/datatypes"
)

// DefaultUserID is used when callers do not identify a user.
const DefaultUserID = "default"

// Pattern types
const (
	PatternTypeTimeBased = "time_based"
)

// Suggestion statuses
const (
	SuggestionPending  = "pending"
	SuggestionAccepted = "accepted"
	SuggestionRejected = "rejected"
)

// ActionRecord is one observed device action. Rows are append-only; the
// weekday/hour/minute columns are derived from Timestamp at creation so
// pattern detection never has to re-interpret timezones.
//
// Key Fields:
//   - DayOfWeek: 0=Monday ... 6=Sunday
//   - Value: optional argument of the action (brightness, temperature, ...)
//   - Context: free-form JSON (presence, weather, source of the action)
type ActionRecord struct {
	ID         uint              `gorm:"primaryKey;autoIncrement" json:"id"`
	DeviceID   string            `gorm:"size:128;not null;index:idx_device_actions_lookup,priority:1" json:"device_id"`
	DeviceType string            `gorm:"size:64;not null" json:"device_type"`
	Action     string            `gorm:"size:64;not null" json:"action"`
	Value      *string           `gorm:"size:255" json:"value,omitempty"`
	Timestamp  time.Time         `gorm:"not null;index;index:idx_device_actions_lookup,priority:3" json:"timestamp"`
	DayOfWeek  int               `gorm:"not null" json:"day_of_week"`
	Hour       int               `gorm:"not null" json:"hour"`
	Minute     int               `gorm:"not null" json:"minute"`
	Context    datatypes.JSONMap `json:"context,omitempty"`
	UserID     string            `gorm:"size:64;not null;index:idx_device_actions_lookup,priority:2" json:"user_id"`
	CreatedAt  time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for ActionRecord
func (ActionRecord) TableName() string {
	return "device_actions"
}

// NewActionRecord stamps the calendar columns from at in its own location
// and stores the timestamp itself in UTC.
func NewActionRecord(deviceID, deviceType, action string, value *string, context map[string]interface{}, userID string, at time.Time) *ActionRecord {
	if userID == "" {
		userID = DefaultUserID
	}
	if context == nil {
		context = map[string]interface{}{}
	}
	return &ActionRecord{
		DeviceID:   deviceID,
		DeviceType: deviceType,
		Action:     action,
		Value:      value,
		Timestamp:  at.UTC(),
		DayOfWeek:  Weekday(at),
		Hour:       at.Hour(),
		Minute:     at.Minute(),
		Context:    datatypes.JSONMap(context),
		UserID:     userID,
	}
}

// Weekday maps time.Weekday (Sunday=0) onto Monday=0 ... Sunday=6.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// PatternConditions is the time signature of a time_based pattern.
type PatternConditions struct {
	Hour       int   `json:"hour"`
	Minute     int   `json:"minute"` // start of the 5-minute bucket
	DaysOfWeek []int `json:"days_of_week"`
}

// Pattern is a recurring device action detected from the action log.
// There is at most one row per (DeviceID, Action, UserID); re-detection
// updates it in place.
type Pattern struct {
	ID              uint                                  `gorm:"primaryKey;autoIncrement" json:"id"`
	PatternType     string                                `gorm:"size:32;not null" json:"pattern_type"`
	DeviceID        string                                `gorm:"size:128;not null;uniqueIndex:idx_patterns_key,priority:1" json:"device_id"`
	DeviceType      string                                `gorm:"size:64;not null" json:"device_type"`
	Action          string                                `gorm:"size:64;not null;uniqueIndex:idx_patterns_key,priority:2" json:"action"`
	Value           *string                               `gorm:"size:255" json:"value,omitempty"`
	Conditions      datatypes.JSONType[PatternConditions] `json:"conditions"`
	OccurrenceCount int                                   `gorm:"not null" json:"occurrence_count"`
	Confidence      float64                               `gorm:"not null;index" json:"confidence"`
	LastOccurrence  time.Time                             `json:"last_occurrence"`
	FirstDetected   time.Time                             `json:"first_detected"`
	IsActive        bool                                  `gorm:"not null" json:"is_active"`
	UserID          string                                `gorm:"size:64;not null;uniqueIndex:idx_patterns_key,priority:3" json:"user_id"`
	CreatedAt       time.Time                             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time                             `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for Pattern
func (Pattern) TableName() string {
	return "patterns"
}

// ActionSpec is a single device command inside an automation.
type ActionSpec struct {
	DeviceID   string  `json:"device_id"`
	DeviceType string  `json:"device_type,omitempty"`
	Action     string  `json:"action"`
	Value      *string `json:"value"`
}

// AutomationConfig is the ready-to-install automation carried by a suggestion.
type AutomationConfig struct {
	TriggerType   string         `json:"trigger_type"`
	TriggerConfig datatypes.JSON `json:"trigger_config"`
	Actions       []ActionSpec   `json:"actions"`
	Conditions    *Conditions    `json:"conditions,omitempty"`
}

// Suggestion is a proposed automation awaiting the user's answer.
// Status moves pending -> accepted or pending -> rejected, never back.
type Suggestion struct {
	ID               uint                                 `gorm:"primaryKey;autoIncrement" json:"id"`
	PatternID        uint                                 `gorm:"not null;index" json:"pattern_id"`
	SuggestionText   string                               `gorm:"type:text;not null" json:"suggestion_text"`
	AutomationName   string                               `gorm:"size:255;not null" json:"automation_name"`
	AutomationConfig datatypes.JSONType[AutomationConfig] `gorm:"not null" json:"automation_config"`
	Status           string                               `gorm:"size:16;not null;index" json:"status"`
	UserID           string                               `gorm:"size:64;not null;index" json:"user_id"`
	CreatedAt        time.Time                            `gorm:"autoCreateTime" json:"created_at"`
	RespondedAt      *time.Time                           `json:"responded_at,omitempty"`
}

// TableName specifies the table name for Suggestion
func (Suggestion) TableName() string {
	return "automation_suggestions"
}

// DeviceStateCondition requires a device to report the given state.
type DeviceStateCondition struct {
	DeviceID string `json:"device_id"`
	State    string `json:"state"`
}

// Conditions gate an automation run. The zero value means "no conditions".
type Conditions struct {
	Time         string                 `json:"time,omitempty"`   // HH:MM, satisfied from this time until midnight
	Before       string                 `json:"before,omitempty"` // HH:MM, optional upper bound
	DaysOfWeek   []int                  `json:"days_of_week,omitempty"`
	DeviceStates []DeviceStateCondition `json:"device_states,omitempty"`
}

// IsZero reports whether no condition is set.
func (c Conditions) IsZero() bool {
	return c.Time == "" && c.Before == "" && len(c.DaysOfWeek) == 0 && len(c.DeviceStates) == 0
}

// Automation is an executable trigger -> conditions -> actions rule.
// TriggerConfig holds the JSON form of the Trigger variant named by
// TriggerType; use Automation.Trigger to decode it.
type Automation struct {
	ID                 uint                           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name               string                         `gorm:"size:255;not null" json:"name"`
	Description        string                         `gorm:"type:text" json:"description"`
	TriggerType        string                         `gorm:"size:16;not null;index" json:"trigger_type"`
	TriggerConfig      datatypes.JSON                 `json:"trigger_config"`
	Actions            datatypes.JSONSlice[ActionSpec] `gorm:"not null" json:"actions"`
	Conditions         datatypes.JSONType[Conditions] `json:"conditions"`
	IsEnabled          bool                           `gorm:"not null;index" json:"is_enabled"`
	IsActive           bool                           `gorm:"not null" json:"is_active"`
	CreatedFromPattern *uint                          `gorm:"index" json:"created_from_pattern,omitempty"`
	UserID             string                         `gorm:"size:64;not null;index" json:"user_id"`
	CreatedAt          time.Time                      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time                      `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for Automation
func (Automation) TableName() string {
	return "automations"
}

// Trigger decodes TriggerConfig into its typed variant.
func (a *Automation) Trigger() (Trigger, error) {
	return ParseTrigger(a.TriggerType, a.TriggerConfig)
}

// Runnable reports whether both lifecycle flags allow execution.
func (a *Automation) Runnable() bool {
	return a.IsEnabled && a.IsActive
}

// ActionResult is the outcome of one action inside an execution.
type ActionResult struct {
	Action  ActionSpec `json:"action"`
	Success bool       `json:"success"`
	Error   string     `json:"error,omitempty"`
}

// AutomationExecution is the append-only audit row written for every
// execution attempt, manual or scheduled.
type AutomationExecution struct {
	ID              uint                              `gorm:"primaryKey;autoIncrement" json:"id"`
	AutomationID    uint                              `gorm:"not null;index" json:"automation_id"`
	RunID           string                            `gorm:"size:36;index" json:"run_id"`
	TriggerType     string                            `gorm:"size:16;not null" json:"trigger_type"`
	TriggerData     datatypes.JSONMap                 `json:"trigger_data"`
	ActionsExecuted datatypes.JSONSlice[ActionResult] `json:"actions_executed"`
	Success         bool                              `gorm:"not null" json:"success"`
	ErrorMessage    string                            `gorm:"type:text" json:"error_message,omitempty"`
	ExecutedAt      time.Time                         `gorm:"not null;index" json:"executed_at"`
}

// TableName specifies the table name for AutomationExecution
func (AutomationExecution) TableName() string {
	return "automation_executions"
}

// SceneDeviceState is the target state of one device inside a scene.
type SceneDeviceState struct {
	DeviceID    string   `json:"device_id"`
	DeviceType  string   `json:"device_type,omitempty"`
	State       string   `json:"state"` // on, off
	Brightness  *int     `json:"brightness,omitempty"`
	Color       string   `json:"color,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// Scene is a named set of device states that can be turned into an automation.
type Scene struct {
	ID           uint                                  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string                                `gorm:"size:128;not null;uniqueIndex:idx_scenes_user_name,priority:2" json:"name"`
	Description  string                                `gorm:"type:text" json:"description"`
	Icon         string                                `gorm:"size:64" json:"icon"`
	DeviceStates datatypes.JSONSlice[SceneDeviceState] `gorm:"not null" json:"device_states"`
	IsActive     bool                                  `gorm:"not null" json:"is_active"`
	UserID       string                                `gorm:"size:64;not null;uniqueIndex:idx_scenes_user_name,priority:1" json:"user_id"`
	CreatedAt    time.Time                             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time                             `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for Scene
func (Scene) TableName() string {
	return "scenes"
}

// Webhook is an outbound subscription to hub events.
type Webhook struct {
	ID                int        `gorm:"primaryKey;autoIncrement" json:"id"`
	Name              string     `gorm:"size:100;not null" json:"name"`
	URL               string     `gorm:"not null" json:"url"`
	Method            string     `gorm:"size:10;default:POST" json:"method"`
	AuthHeader        string     `gorm:"size:100" json:"auth_header"`
	AuthValue         string     `json:"auth_value"`
	EventTypes        string     `json:"event_types"` // comma separated, empty = all
	UserID            string     `gorm:"size:64;index" json:"user_id"`
	IsActive          bool       `gorm:"not null" json:"is_active"`
	RetryCount        int        `gorm:"default:3" json:"retry_count"`
	RetryDelaySeconds int        `gorm:"default:5" json:"retry_delay_seconds"`
	LastTriggeredAt   *time.Time `json:"last_triggered_at,omitempty"`
	LastError         string     `json:"last_error,omitempty"`
	TotalSent         int        `gorm:"default:0" json:"total_sent"`
	TotalFailed       int        `gorm:"default:0" json:"total_failed"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for Webhook
func (Webhook) TableName() string {
	return "webhooks"
}

// WebhookDelivery holds webhook delivery logs
type WebhookDelivery struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	WebhookID      int       `gorm:"index;not null" json:"webhook_id"`
	EventType      string    `gorm:"size:64;not null" json:"event_type"`
	TriggeredAt    time.Time `gorm:"index;not null" json:"triggered_at"`
	Status         string    `gorm:"size:16" json:"status"` // SUCCESS, FAILED
	HTTPStatusCode *int      `json:"http_status_code,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	RetryAttempt   int       `json:"retry_attempt"`
}

// TableName specifies the table name for WebhookDelivery
func (WebhookDelivery) TableName() string {
	return "webhook_deliveries"
}
