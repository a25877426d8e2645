package automation

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"homehub/database"
	"homehub/database/automations"
	models "homehub/database/models_pkg"
	"homehub/devices"
	"homehub/logger"
)

// SceneService stores scenes, applies them to devices and turns them into
// automations
type SceneService struct {
	repo       *automations.Repository
	store      *Store
	controller devices.Controller
	log        *logger.Logger
}

// SceneUpdate holds the fields of a scene that may change. Nil and empty
// fields are left as they are.
type SceneUpdate struct {
	Name         *string                   `json:"name,omitempty"`
	Description  *string                   `json:"description,omitempty"`
	Icon         *string                   `json:"icon,omitempty"`
	DeviceStates []models.SceneDeviceState `json:"device_states,omitempty"`
}

// NewSceneService creates a new scene service. controller may be nil, in
// which case Activate fails.
func NewSceneService(repo *automations.Repository, store *Store, controller devices.Controller, log *logger.Logger) *SceneService {
	return &SceneService{repo: repo, store: store, controller: controller, log: logger.OrNop(log)}
}

func validateDeviceStates(states []models.SceneDeviceState) error {
	if len(states) == 0 {
		return database.NewValidationError("device_states", "at least one device state is required")
	}
	for i, ds := range states {
		if ds.DeviceID == "" {
			return database.NewValidationErrorWithValue("device_states", "device_id is required", i)
		}
	}
	return nil
}

// Create validates and stores a scene
func (s *SceneService) Create(ctx context.Context, scene *models.Scene) error {
	if strings.TrimSpace(scene.Name) == "" {
		return database.NewValidationError("name", "is required")
	}
	if err := validateDeviceStates(scene.DeviceStates); err != nil {
		return err
	}
	if scene.UserID == "" {
		scene.UserID = models.DefaultUserID
	}
	scene.IsActive = true
	if err := s.repo.CreateScene(ctx, scene); err != nil {
		return database.WrapDBError("SceneService.Create", err)
	}
	s.log.Info("🎬 Scene created", "scene_id", scene.ID, "name", scene.Name)
	return nil
}

// List returns a user's scenes
func (s *SceneService) List(ctx context.Context, userID string) ([]models.Scene, error) {
	list, err := s.repo.ListScenes(ctx, userID)
	if err != nil {
		return nil, database.WrapDBError("SceneService.List", err)
	}
	return list, nil
}

// get loads a scene owned by userID or returns a NotFoundError
func (s *SceneService) get(ctx context.Context, op string, id uint, userID string) (*models.Scene, error) {
	if userID == "" {
		userID = models.DefaultUserID
	}
	scene, err := s.repo.GetScene(ctx, id)
	if err != nil {
		return nil, database.WrapDBError(op, err)
	}
	if scene == nil || scene.UserID != userID {
		return nil, database.NewNotFoundErrorWithID("scene", id)
	}
	return scene, nil
}

// Update changes a user's scene and returns the stored result
func (s *SceneService) Update(ctx context.Context, id uint, userID string, upd SceneUpdate) (*models.Scene, error) {
	scene, err := s.get(ctx, "SceneService.Update", id, userID)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		if strings.TrimSpace(*upd.Name) == "" {
			return nil, database.NewValidationError("name", "must not be empty")
		}
		scene.Name = *upd.Name
	}
	if upd.Description != nil {
		scene.Description = *upd.Description
	}
	if upd.Icon != nil {
		scene.Icon = *upd.Icon
	}
	if upd.DeviceStates != nil {
		if err := validateDeviceStates(upd.DeviceStates); err != nil {
			return nil, err
		}
		scene.DeviceStates = upd.DeviceStates
	}
	if err := s.repo.UpdateScene(ctx, scene); err != nil {
		return nil, database.WrapDBError("SceneService.Update", err)
	}
	s.log.Info("🎬 Scene updated", "scene_id", scene.ID, "name", scene.Name)
	return scene, nil
}

// Delete removes a user's scene. Automations created from it are kept.
func (s *SceneService) Delete(ctx context.Context, id uint, userID string) error {
	if _, err := s.get(ctx, "SceneService.Delete", id, userID); err != nil {
		return err
	}
	ok, err := s.repo.DeleteScene(ctx, id)
	if err != nil {
		return database.WrapDBError("SceneService.Delete", err)
	}
	if !ok {
		return database.NewNotFoundErrorWithID("scene", id)
	}
	s.log.Info("🗑️  Scene deleted", "scene_id", id)
	return nil
}

// Activate applies every device state of a scene right away. Each action
// is attempted even after an earlier one failed; the result reports
// whether all of them succeeded.
func (s *SceneService) Activate(ctx context.Context, id uint, userID string) (bool, []models.ActionResult, error) {
	if s.controller == nil {
		return false, nil, errors.New("no device backend configured")
	}
	scene, err := s.get(ctx, "SceneService.Activate", id, userID)
	if err != nil {
		return false, nil, err
	}

	success := true
	results := make([]models.ActionResult, 0, len(scene.DeviceStates))
	for _, spec := range SceneActions(scene.DeviceStates) {
		res := models.ActionResult{Action: spec}
		ok, err := devices.Dispatch(ctx, s.controller, spec.DeviceID, spec.Action, spec.Value)
		if err != nil {
			res.Error = (&database.ExecutionError{DeviceID: spec.DeviceID, Action: spec.Action, Err: err}).Error()
			s.log.Warn("❌ Scene action failed", "scene_id", id, "device_id", spec.DeviceID, "action", spec.Action, "error", err)
		}
		res.Success = ok && err == nil
		if !res.Success {
			success = false
		}
		results = append(results, res)
	}

	s.log.Info("🎬 Scene activated", "scene_id", id, "name", scene.Name, "success", success)
	return success, results, nil
}

// SceneActions expands device states into the action list that reproduces
// them. A device that should end up on is switched on before its attributes
// are set; one that should end up off is switched off last.
func SceneActions(states []models.SceneDeviceState) []models.ActionSpec {
	var out []models.ActionSpec
	for _, ds := range states {
		base := models.ActionSpec{DeviceID: ds.DeviceID, DeviceType: ds.DeviceType}
		off := strings.EqualFold(ds.State, "off")
		if !off {
			power := base
			power.Action = devices.ActionTurnOn
			out = append(out, power)
		}
		if ds.Brightness != nil {
			a := base
			a.Action = devices.ActionSetBrightness
			v := strconv.Itoa(*ds.Brightness)
			a.Value = &v
			out = append(out, a)
		}
		if ds.Color != "" {
			a := base
			a.Action = devices.ActionSetColor
			v := ds.Color
			a.Value = &v
			out = append(out, a)
		}
		if ds.Temperature != nil {
			a := base
			a.Action = devices.ActionSetTemperature
			v := strconv.FormatFloat(*ds.Temperature, 'f', -1, 64)
			a.Value = &v
			out = append(out, a)
		}
		if off {
			power := base
			power.Action = devices.ActionTurnOff
			out = append(out, power)
		}
	}
	return out
}

// ToAutomation creates an automation reproducing the scene. A nil trigger
// creates a manual automation.
func (s *SceneService) ToAutomation(ctx context.Context, sceneID uint, trigger *models.TimeTrigger) (*models.Automation, error) {
	scene, err := s.repo.GetScene(ctx, sceneID)
	if err != nil {
		return nil, database.WrapDBError("SceneService.ToAutomation", err)
	}
	if scene == nil {
		return nil, database.NewNotFoundErrorWithID("scene", sceneID)
	}

	spec := Spec{
		Name:        "Scene: " + scene.Name,
		Description: scene.Description,
		TriggerType: models.TriggerManual,
		Actions:     SceneActions(scene.DeviceStates),
		UserID:      scene.UserID,
	}
	if trigger != nil {
		raw, err := json.Marshal(trigger)
		if err != nil {
			return nil, database.NewValidationError("trigger", err.Error())
		}
		spec.TriggerType = models.TriggerTime
		spec.TriggerConfig = raw
	}
	return s.store.Create(ctx, spec)
}
