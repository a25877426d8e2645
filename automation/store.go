package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/datatypes"

	"homehub/cache"
	"homehub/database"
	"homehub/database/automations"
	models "homehub/database/models_pkg"
	"homehub/events"
	"homehub/logger"
)

// Spec is the input for creating an automation
type Spec struct {
	Name               string              `json:"name"`
	Description        string              `json:"description"`
	TriggerType        string              `json:"trigger_type"`
	TriggerConfig      json.RawMessage     `json:"trigger_config"`
	Actions            []models.ActionSpec `json:"actions"`
	Conditions         *models.Conditions  `json:"conditions,omitempty"`
	IsEnabled          *bool               `json:"is_enabled,omitempty"` // defaults to true
	CreatedFromPattern *uint               `json:"created_from_pattern,omitempty"`
	UserID             string              `json:"user_id"`
}

// Validate checks the structural rules every stored automation obeys and
// returns a *database.ValidationError on the first violation.
func (s Spec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return database.NewValidationError("name", "is required")
	}
	if _, err := models.ParseTrigger(s.TriggerType, s.TriggerConfig); err != nil {
		return database.NewValidationErrorWithValue("trigger_config", err.Error(), s.TriggerType)
	}
	if len(s.Actions) == 0 {
		return database.NewValidationError("actions", "at least one action is required")
	}
	for i, a := range s.Actions {
		if a.DeviceID == "" {
			return database.NewValidationErrorWithValue("actions", "device_id is required", i)
		}
		if a.Action == "" {
			return database.NewValidationErrorWithValue("actions", "action is required", i)
		}
	}
	if s.Conditions != nil {
		if err := validateConditions(*s.Conditions); err != nil {
			return err
		}
	}
	return nil
}

func validateConditions(c models.Conditions) error {
	if c.Time != "" {
		if _, err := models.ParseClock(c.Time); err != nil {
			return database.NewValidationErrorWithValue("conditions.time", err.Error(), c.Time)
		}
	}
	if c.Before != "" {
		if _, err := models.ParseClock(c.Before); err != nil {
			return database.NewValidationErrorWithValue("conditions.before", err.Error(), c.Before)
		}
	}
	if err := models.ValidateDays(c.DaysOfWeek); err != nil {
		return database.NewValidationError("conditions.days_of_week", err.Error())
	}
	for _, ds := range c.DeviceStates {
		if ds.DeviceID == "" || ds.State == "" {
			return database.NewValidationError("conditions.device_states", "device_id and state are required")
		}
	}
	return nil
}

// Store holds materialized automation rules
type Store struct {
	repo   *automations.Repository
	cache  *cache.AutomationCache
	events events.Publisher
	log    *logger.Logger
}

// NewStore creates a new automation store. cache and pub may be nil.
func NewStore(repo *automations.Repository, c *cache.AutomationCache, pub events.Publisher, log *logger.Logger) *Store {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Store{repo: repo, cache: c, events: pub, log: logger.OrNop(log)}
}

// Create validates spec and persists it as a new automation
func (s *Store) Create(ctx context.Context, spec Spec) (*models.Automation, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	enabled := true
	if spec.IsEnabled != nil {
		enabled = *spec.IsEnabled
	}
	userID := spec.UserID
	if userID == "" {
		userID = models.DefaultUserID
	}
	trigger := spec.TriggerConfig
	if len(trigger) == 0 {
		trigger = json.RawMessage("{}")
	}
	var conditions models.Conditions
	if spec.Conditions != nil {
		conditions = *spec.Conditions
	}

	a := &models.Automation{
		Name:               spec.Name,
		Description:        spec.Description,
		TriggerType:        spec.TriggerType,
		TriggerConfig:      datatypes.JSON(trigger),
		Actions:            datatypes.JSONSlice[models.ActionSpec](spec.Actions),
		Conditions:         datatypes.NewJSONType(conditions),
		IsEnabled:          enabled,
		IsActive:           true,
		CreatedFromPattern: spec.CreatedFromPattern,
		UserID:             userID,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		s.log.Error("⚠️  Failed to create automation", "name", spec.Name, "error", err)
		return nil, database.WrapDBError("Store.Create", err)
	}

	s.cache.InvalidateAutomations(ctx)
	s.log.Info("✅ Automation created", "automation_id", a.ID, "name", a.Name, "trigger_type", a.TriggerType)
	s.events.Publish(ctx, events.New(events.AutomationCreated, a.UserID, a))
	return a, nil
}

// Get loads an automation or returns a *database.NotFoundError
func (s *Store) Get(ctx context.Context, id uint) (*models.Automation, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, database.WrapDBError("Store.Get", err)
	}
	if a == nil {
		return nil, database.NewNotFoundErrorWithID("automation", id)
	}
	return a, nil
}

// Enable sets is_enabled. False means the automation does not exist.
func (s *Store) Enable(ctx context.Context, id uint) (bool, error) {
	return s.toggle(ctx, "Enable", id, s.repo.SetEnabled, true)
}

// Disable clears is_enabled. Automations are never hard-deleted.
func (s *Store) Disable(ctx context.Context, id uint) (bool, error) {
	return s.toggle(ctx, "Disable", id, s.repo.SetEnabled, false)
}

// Activate sets is_active
func (s *Store) Activate(ctx context.Context, id uint) (bool, error) {
	return s.toggle(ctx, "Activate", id, s.repo.SetActive, true)
}

// Deactivate clears is_active
func (s *Store) Deactivate(ctx context.Context, id uint) (bool, error) {
	return s.toggle(ctx, "Deactivate", id, s.repo.SetActive, false)
}

func (s *Store) toggle(ctx context.Context, op string, id uint, set func(context.Context, uint, bool) (bool, error), value bool) (bool, error) {
	ok, err := set(ctx, id, value)
	if err != nil {
		return false, database.WrapDBError("Store."+op, err)
	}
	if ok {
		s.cache.InvalidateAutomations(ctx)
		s.log.Info(fmt.Sprintf("🔧 Automation %s", strings.ToLower(op)+"d"), "automation_id", id)
	}
	return ok, nil
}

// List returns a user's automations, optionally of one trigger type
func (s *Store) List(ctx context.Context, userID, triggerType string) ([]models.Automation, error) {
	list, err := s.repo.List(ctx, automations.Filter{UserID: userID, TriggerType: triggerType})
	if err != nil {
		return nil, database.WrapDBError("Store.List", err)
	}
	return list, nil
}

// ListRunnable returns enabled and active automations of a trigger type
// across all users. Results are cached when Redis is available.
func (s *Store) ListRunnable(ctx context.Context, triggerType string) ([]models.Automation, error) {
	if cached, ok := s.cache.GetRunnable(ctx, triggerType); ok {
		return cached, nil
	}
	list, err := s.repo.List(ctx, automations.Filter{TriggerType: triggerType, RunnableOnly: true})
	if err != nil {
		return nil, database.WrapDBError("Store.ListRunnable", err)
	}
	s.cache.SetRunnable(ctx, triggerType, list)
	return list, nil
}

// Executions returns an automation's execution log, newest first
func (s *Store) Executions(ctx context.Context, id uint, limit int) ([]models.AutomationExecution, error) {
	list, err := s.repo.ListExecutions(ctx, id, limit)
	if err != nil {
		return nil, database.WrapDBError("Store.Executions", err)
	}
	return list, nil
}
