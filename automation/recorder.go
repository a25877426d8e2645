package automation

import (
	"context"
	"fmt"
	"time"

	"homehub/database"
	"homehub/database/actions"
	models "homehub/database/models_pkg"
	"homehub/devices"
	"homehub/events"
	"homehub/logger"
)

// RecordInput describes one observed device action
type RecordInput struct {
	DeviceID   string                 `json:"device_id"`
	DeviceType string                 `json:"device_type"`
	Action     string                 `json:"action"`
	Value      *string                `json:"value,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
	UserID     string                 `json:"user_id"`
}

// RecordResult is what one pass of the learning pipeline produced
type RecordResult struct {
	Action      *models.ActionRecord `json:"action"`
	Patterns    []models.Pattern     `json:"patterns"`
	Suggestions []models.Suggestion  `json:"suggestions"`
}

// Recorder appends actions to the log and runs detection and suggestion
// generation for the touched device
type Recorder struct {
	actions     *actions.Repository
	detector    *PatternDetector
	suggestions *SuggestionService
	controller  devices.Controller
	events      events.Publisher
	now         func() time.Time
	loc         *time.Location
	log         *logger.Logger
}

// NewRecorder creates a new recorder. Action timestamps are taken from now
// and converted to loc before the calendar columns are derived.
func NewRecorder(actionsRepo *actions.Repository, detector *PatternDetector, sugg *SuggestionService, controller devices.Controller, pub events.Publisher, now func() time.Time, loc *time.Location, log *logger.Logger) *Recorder {
	if pub == nil {
		pub = events.Nop{}
	}
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return &Recorder{
		actions:     actionsRepo,
		detector:    detector,
		suggestions: sugg,
		controller:  controller,
		events:      pub,
		now:         now,
		loc:         loc,
		log:         logger.OrNop(log),
	}
}

// Record appends an action and synchronously scans the device for patterns.
// If the action itself cannot be stored the result is nil. If detection or
// suggestion generation fails afterwards, the result still carries the
// stored action and the error is returned alongside it.
func (r *Recorder) Record(ctx context.Context, in RecordInput) (*RecordResult, error) {
	if in.DeviceID == "" {
		return nil, database.NewValidationError("device_id", "is required")
	}
	if in.Action == "" {
		return nil, database.NewValidationError("action", "is required")
	}
	if in.DeviceType == "" {
		in.DeviceType = "unknown"
	}

	rec := models.NewActionRecord(in.DeviceID, in.DeviceType, in.Action, in.Value, in.Context, in.UserID, r.now().In(r.loc))
	if err := r.actions.SaveAction(ctx, rec); err != nil {
		r.log.Error("⚠️  Failed to record action", "device_id", in.DeviceID, "error", err)
		return nil, database.WrapDBError("Recorder.Record", err)
	}
	r.log.Debug("📝 Action recorded", "device_id", rec.DeviceID, "action", rec.Action, "user_id", rec.UserID)

	result := &RecordResult{Action: rec, Patterns: []models.Pattern{}, Suggestions: []models.Suggestion{}}

	patterns, err := r.detector.Detect(ctx, rec.DeviceID, rec.UserID)
	if err != nil {
		return result, err
	}
	for i := range patterns {
		p := patterns[i]
		// switched off by the user; statistics still refresh
		if !p.IsActive {
			continue
		}
		result.Patterns = append(result.Patterns, p)
		r.events.Publish(ctx, events.New(events.PatternDetected, p.UserID, p))

		sug, err := r.suggestions.Generate(ctx, &p)
		if err != nil {
			return result, err
		}
		if sug != nil {
			result.Suggestions = append(result.Suggestions, *sug)
		}
	}
	return result, nil
}

// Perform sends a command to a device and, when the device accepts it,
// records the action for learning and announces the state change.
func (r *Recorder) Perform(ctx context.Context, deviceID, action string, value *string, userID string) (bool, *RecordResult, error) {
	if r.controller == nil {
		return false, nil, fmt.Errorf("no device backend configured")
	}

	ok, err := devices.Dispatch(ctx, r.controller, deviceID, action, value)
	if err != nil {
		return false, nil, &database.ExecutionError{DeviceID: deviceID, Action: action, Err: err}
	}
	if !ok {
		return false, nil, nil
	}

	deviceType := r.deviceType(ctx, deviceID)
	result, recErr := r.Record(ctx, RecordInput{
		DeviceID:   deviceID,
		DeviceType: deviceType,
		Action:     action,
		Value:      value,
		Context:    map[string]interface{}{"source": "api"},
		UserID:     userID,
	})

	state, _ := r.controller.GetDeviceState(ctx, deviceID)
	r.events.Publish(ctx, events.New(events.DeviceStateChange, userID, events.DeviceEvent{
		DeviceID:   deviceID,
		DeviceType: deviceType,
		Action:     action,
		Value:      value,
		State:      state.StateString(),
		Attributes: state,
	}))
	return true, result, recErr
}

func (r *Recorder) deviceType(ctx context.Context, deviceID string) string {
	list, err := r.controller.ListDevices(ctx)
	if err != nil {
		return "unknown"
	}
	for _, d := range list {
		if d.ID == deviceID {
			return d.Type
		}
	}
	return "unknown"
}

// History returns recent actions, newest first
func (r *Recorder) History(ctx context.Context, deviceID, userID string, days, limit int) ([]models.ActionRecord, error) {
	f := actions.HistoryFilter{DeviceID: deviceID, UserID: userID, Limit: limit}
	if days > 0 {
		f.Since = r.now().AddDate(0, 0, -days)
	}
	list, err := r.actions.GetHistory(ctx, f)
	if err != nil {
		return nil, database.WrapDBError("Recorder.History", err)
	}
	return list, nil
}
