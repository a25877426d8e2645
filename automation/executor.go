package automation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"homehub/database"
	"homehub/database/automations"
	models "homehub/database/models_pkg"
	"homehub/database/suggestions"
	"homehub/devices"
	"homehub/events"
	"homehub/logger"
)

// Executor runs automations against a device controller and writes the
// execution log
type Executor struct {
	repo        *automations.Repository
	suggestions *suggestions.Repository
	store       *Store
	controller  devices.Controller
	events      events.Publisher
	now         func() time.Time
	log         *logger.Logger
}

// NewExecutor creates a new executor. controller may be nil, in which case
// actions are logged and reported successful.
func NewExecutor(repo *automations.Repository, suggestionsRepo *suggestions.Repository, store *Store, controller devices.Controller, pub events.Publisher, now func() time.Time, log *logger.Logger) *Executor {
	if pub == nil {
		pub = events.Nop{}
	}
	if now == nil {
		now = time.Now
	}
	return &Executor{
		repo:        repo,
		suggestions: suggestionsRepo,
		store:       store,
		controller:  controller,
		events:      pub,
		now:         now,
		log:         logger.OrNop(log),
	}
}

// Execute runs one automation. It returns false without touching any device
// when the automation is missing, disabled, inactive or its conditions do not
// hold. Every action runs even if an earlier one failed; the result is true
// only if all of them succeeded. A *database.DBError is returned when the
// automation cannot be loaded or its execution log cannot be written.
func (e *Executor) Execute(ctx context.Context, automationID uint, triggerData map[string]interface{}) (bool, error) {
	a, err := e.repo.GetByID(ctx, automationID)
	if err != nil {
		e.log.Error("⚠️  Failed to load automation", "automation_id", automationID, "error", err)
		return false, database.WrapDBError("Executor.Execute", err)
	}
	if a == nil || !a.Runnable() {
		e.log.Warn("⏭️  Automation not found or disabled", "automation_id", automationID)
		return false, nil
	}

	now := e.now()
	if ok, reason := EvaluateConditions(ctx, a.Conditions.Data(), now, e.controller); !ok {
		e.log.Debug("⏭️  Automation conditions not met", "automation_id", a.ID, "reason", reason)
		return false, nil
	}

	runID := uuid.NewString()
	results := make([]models.ActionResult, 0, len(a.Actions))
	success := true
	var failures []string
	for _, spec := range a.Actions {
		res := e.runAction(ctx, spec)
		if !res.Success {
			success = false
			if res.Error != "" {
				failures = append(failures, res.Error)
			} else {
				failures = append(failures, fmt.Sprintf("%s on %s was refused", spec.Action, spec.DeviceID))
			}
		}
		results = append(results, res)
	}

	if triggerData == nil {
		triggerData = map[string]interface{}{}
	}
	exec := &models.AutomationExecution{
		AutomationID:    a.ID,
		RunID:           runID,
		TriggerType:     a.TriggerType,
		TriggerData:     datatypes.JSONMap(triggerData),
		ActionsExecuted: datatypes.JSONSlice[models.ActionResult](results),
		Success:         success,
		ErrorMessage:    strings.Join(failures, "; "),
		ExecutedAt:      now,
	}
	if err := e.repo.SaveExecution(ctx, exec); err != nil {
		e.log.Error("⚠️  Failed to write execution log", "automation_id", a.ID, "run_id", runID, "error", err)
		return false, database.WrapDBError("Executor.Execute", err)
	}

	e.log.Info("⚡ Automation executed", "automation_id", a.ID, "name", a.Name, "run_id", runID, "success", success)
	e.events.Publish(ctx, events.New(events.AutomationExecuted, a.UserID, exec))
	return success, nil
}

// runAction performs one device command. Panics inside a backend are turned
// into a failed result so the remaining actions still run.
func (e *Executor) runAction(ctx context.Context, spec models.ActionSpec) (res models.ActionResult) {
	res.Action = spec
	defer func() {
		if r := recover(); r != nil {
			res.Success = false
			res.Error = (&database.ExecutionError{DeviceID: spec.DeviceID, Action: spec.Action, Err: fmt.Errorf("panic: %v", r)}).Error()
			e.log.Error("❌ Device action panicked", "device_id", spec.DeviceID, "action", spec.Action, "panic", r)
		}
	}()

	if spec.DeviceID == "" || spec.Action == "" {
		res.Error = "invalid action: missing device_id or action"
		return res
	}

	if e.controller == nil {
		e.log.Info("📝 No device backend, action skipped", "device_id", spec.DeviceID, "action", spec.Action)
		res.Success = true
		return res
	}

	ok, err := devices.Dispatch(ctx, e.controller, spec.DeviceID, spec.Action, spec.Value)
	if err != nil {
		res.Error = (&database.ExecutionError{DeviceID: spec.DeviceID, Action: spec.Action, Err: err}).Error()
		e.log.Warn("❌ Device action failed", "device_id", spec.DeviceID, "action", spec.Action, "error", err)
		return res
	}
	res.Success = ok
	return res
}

// CreateFromSuggestion materializes an accepted suggestion. It returns nil,
// nil unless the suggestion exists for userID with status accepted.
func (e *Executor) CreateFromSuggestion(ctx context.Context, suggestionID uint, userID string) (*models.Automation, error) {
	if userID == "" {
		userID = models.DefaultUserID
	}
	sug, err := e.suggestions.GetByID(ctx, suggestionID)
	if err != nil {
		return nil, database.WrapDBError("Executor.CreateFromSuggestion", err)
	}
	if sug == nil || sug.UserID != userID || sug.Status != models.SuggestionAccepted {
		e.log.Warn("⚠️  Suggestion not found or not accepted", "suggestion_id", suggestionID)
		return nil, nil
	}

	cfg := sug.AutomationConfig.Data()
	patternID := sug.PatternID
	return e.store.Create(ctx, Spec{
		Name:               sug.AutomationName,
		Description:        sug.SuggestionText,
		TriggerType:        cfg.TriggerType,
		TriggerConfig:      []byte(cfg.TriggerConfig),
		Actions:            cfg.Actions,
		Conditions:         cfg.Conditions,
		CreatedFromPattern: &patternID,
		UserID:             userID,
	})
}
