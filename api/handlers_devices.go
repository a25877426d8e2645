package api

import (
	"errors"
	"net/http"

	"homehub/automation"
	"homehub/database"
	models "homehub/database/models_pkg"
)

type deviceActionRequest struct {
	Action string  `json:"action"`
	Value  *string `json:"value,omitempty"`
	UserID string  `json:"user_id,omitempty"`
}

type sceneAutomationRequest struct {
	Trigger *models.TimeTrigger `json:"trigger,omitempty"`
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	if s.svc.Controller == nil {
		s.respondWithError(w, http.StatusServiceUnavailable, "No device backend configured", nil)
		return
	}
	list, err := s.svc.Controller.ListDevices(r.Context())
	if err != nil {
		s.respondWithError(w, http.StatusBadGateway, "Device backend unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"devices": list})
}

// handleDeviceAction accepts the action either as query parameters
// (?action=turn_on&value=) or as a JSON body.
func (s *Server) handleDeviceAction(w http.ResponseWriter, r *http.Request) {
	if s.svc.Controller == nil {
		s.respondWithError(w, http.StatusServiceUnavailable, "No device backend configured", nil)
		return
	}
	deviceID := r.PathValue("id")

	req := deviceActionRequest{Action: r.URL.Query().Get("action"), UserID: userIDParam(r)}
	if v := r.URL.Query().Get("value"); v != "" {
		req.Value = &v
	}
	if req.Action == "" && r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			s.respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
		if req.UserID == "" {
			req.UserID = userIDParam(r)
		}
	}
	if req.Action == "" {
		s.respondWithError(w, http.StatusBadRequest, "action is required", nil)
		return
	}

	state, err := s.svc.Controller.GetDeviceState(r.Context(), deviceID)
	if err != nil {
		s.respondWithError(w, http.StatusBadGateway, "Device backend unavailable", err)
		return
	}
	if state == nil {
		s.respondWithError(w, http.StatusNotFound, "Device not found", nil)
		return
	}

	success, result, err := s.svc.Recorder.Perform(r.Context(), deviceID, req.Action, req.Value, req.UserID)
	var execErr *database.ExecutionError
	switch {
	case errors.As(err, &execErr):
		s.respondWithError(w, http.StatusBadRequest, execErr.Error(), nil)
		return
	case err != nil && !success:
		s.respondWithError(w, http.StatusInternalServerError, "internal error", err)
		return
	case err != nil && result == nil:
		// the device changed but the action log did not
		s.log.Error("⚠️  Failed to record device action", "device_id", deviceID, "action", req.Action, "error", err)
	case err != nil:
		s.log.Error("⚠️  Pattern detection failed after device action", "device_id", deviceID, "error", err)
	}

	message := "Action " + req.Action + " executed"
	if !success {
		message = "Failed to execute action"
	}
	body := map[string]interface{}{"success": success, "message": message, "recorded": result != nil}
	if result != nil {
		body["suggestions"] = result.Suggestions
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleListScenes(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Scenes.List(r.Context(), userIDParam(r))
	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"scenes": list})
}

func (s *Server) handleCreateScene(w http.ResponseWriter, r *http.Request) {
	var scene models.Scene
	if err := decodeJSON(w, r, &scene); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	scene.ID = 0
	if scene.UserID == "" {
		scene.UserID = userIDParam(r)
	}

	if err := s.svc.Scenes.Create(r.Context(), &scene); err != nil {
		s.respondWithServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success":  true,
		"message":  "Scene created",
		"scene_id": scene.ID,
	})
}

func (s *Server) handleSceneToAutomation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		s.respondWithError(w, http.StatusBadRequest, "Invalid ID", nil)
		return
	}

	var req sceneAutomationRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			s.respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	a, err := s.svc.Scenes.ToAutomation(r.Context(), id, req.Trigger)
	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success":       true,
		"message":       "Automation created from scene",
		"automation_id": a.ID,
	})
}

func (s *Server) handleUpdateScene(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		s.respondWithError(w, http.StatusBadRequest, "Invalid ID", nil)
		return
	}

	var upd automation.SceneUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	scene, err := s.svc.Scenes.Update(r.Context(), id, userIDParam(r), upd)
	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Scene updated",
		"scene":   scene,
	})
}

func (s *Server) handleDeleteScene(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		s.respondWithError(w, http.StatusBadRequest, "Invalid ID", nil)
		return
	}
	if err := s.svc.Scenes.Delete(r.Context(), id, userIDParam(r)); err != nil {
		s.respondWithServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleActivateScene(w http.ResponseWriter, r *http.Request) {
	if s.svc.Controller == nil {
		s.respondWithError(w, http.StatusServiceUnavailable, "No device backend configured", nil)
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		s.respondWithError(w, http.StatusBadRequest, "Invalid ID", nil)
		return
	}

	success, results, err := s.svc.Scenes.Activate(r.Context(), id, userIDParam(r))
	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}
	message := "Scene activated"
	if !success {
		message = "Scene partially activated"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": success,
		"message": message,
		"results": results,
	})
}
