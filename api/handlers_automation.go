package api

import (
	"context"
	"net/http"
	"strconv"

	"homehub/automation"
	"homehub/database/patterns"
	models "homehub/database/models_pkg"
)

func (s *Server) handleRecordAction(w http.ResponseWriter, r *http.Request) {
	var in automation.RecordInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := s.svc.Recorder.Record(r.Context(), in)
	if err != nil && result == nil {
		s.respondWithServiceError(w, err)
		return
	}

	// the action is stored even if detection failed afterwards
	message := "Action recorded"
	if err != nil {
		s.log.Error("⚠️  Pattern detection failed after recording", "device_id", in.DeviceID, "error", err)
		message = "Action recorded; pattern detection failed"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"message":     message,
		"action_id":   result.Action.ID,
		"patterns":    result.Patterns,
		"suggestions": result.Suggestions,
	})
}

func (s *Server) handleActionHistory(w http.ResponseWriter, r *http.Request) {
	minDays, maxDays := 1, 365
	days := getIntParam(r, "days", 7, &minDays, &maxDays)
	minLimit, maxLimit := 1, 1000
	limit := getIntParam(r, "limit", 100, &minLimit, &maxLimit)

	history, err := s.svc.Recorder.History(r.Context(), r.URL.Query().Get("device_id"), userIDParam(r), days, limit)
	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"actions": history, "count": len(history)})
}

// handleGetPatterns lists active patterns; include_inactive=true also
// returns the ones a user switched off.
func (s *Server) handleGetPatterns(w http.ResponseWriter, r *http.Request) {
	includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("include_inactive"))
	list, err := s.svc.ListPatterns(r.Context(), patterns.Filter{
		DeviceID:      r.URL.Query().Get("device_id"),
		UserID:        userIDParam(r),
		MinConfidence: getFloatParam(r, "min_confidence", 0),
		ActiveOnly:    !includeInactive,
	})
	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"patterns": list})
}

func (s *Server) handleActivatePattern(w http.ResponseWriter, r *http.Request) {
	s.setPatternActive(w, r, true)
}

func (s *Server) handleDeactivatePattern(w http.ResponseWriter, r *http.Request) {
	s.setPatternActive(w, r, false)
}

func (s *Server) setPatternActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, ok := pathID(r, "id")
	if !ok {
		s.respondWithError(w, http.StatusBadRequest, "Invalid ID", nil)
		return
	}

	changed, err := s.svc.SetPatternActive(r.Context(), id, active)
	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}
	if !changed {
		s.respondWithError(w, http.StatusNotFound, "Pattern not found", nil)
		return
	}

	message := "Pattern deactivated"
	if active {
		message = "Pattern activated"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": message})
}

func (s *Server) handleGetSuggestions(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	var (
		list []models.Suggestion
		err  error
	)
	if status == "" || status == models.SuggestionPending {
		list, err = s.svc.Suggestions.ListPending(r.Context(), userIDParam(r))
	} else {
		list, err = s.svc.Suggestions.List(r.Context(), userIDParam(r), status)
	}
	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"suggestions": list})
}

func (s *Server) handleAcceptSuggestion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		s.respondWithError(w, http.StatusBadRequest, "Invalid ID", nil)
		return
	}
	userID := userIDParam(r)

	accepted, a, err := s.svc.AcceptAndCreate(r.Context(), id, userID)
	if err != nil && !accepted {
		s.respondWithServiceError(w, err)
		return
	}
	if !accepted {
		s.respondWithServiceError(w, s.svc.Suggestions.Explain(r.Context(), id, userID))
		return
	}
	if err != nil || a == nil {
		if err != nil {
			s.log.Error("⚠️  Failed to create automation from suggestion", "suggestion_id", id, "error", err)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": false,
			"message": "Suggestion accepted but failed to create automation",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"message":       "Suggestion accepted and automation created",
		"automation_id": a.ID,
	})
}

func (s *Server) handleRejectSuggestion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		s.respondWithError(w, http.StatusBadRequest, "Invalid ID", nil)
		return
	}
	userID := userIDParam(r)

	rejected, err := s.svc.Suggestions.Reject(r.Context(), id, userID)
	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}
	if !rejected {
		s.respondWithServiceError(w, s.svc.Suggestions.Explain(r.Context(), id, userID))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Suggestion rejected"})
}

func (s *Server) handleListAutomations(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Store.List(r.Context(), userIDParam(r), r.URL.Query().Get("trigger_type"))
	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"automations": list})
}

func (s *Server) handleCreateAutomation(w http.ResponseWriter, r *http.Request) {
	var spec automation.Spec
	if err := decodeJSON(w, r, &spec); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if spec.UserID == "" {
		spec.UserID = userIDParam(r)
	}

	a, err := s.svc.Store.Create(r.Context(), spec)
	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success":       true,
		"message":       "Automation created",
		"automation_id": a.ID,
	})
}

func (s *Server) handleEnableAutomation(w http.ResponseWriter, r *http.Request) {
	s.toggleAutomation(w, r, s.svc.Store.Enable, "Automation enabled")
}

func (s *Server) handleDisableAutomation(w http.ResponseWriter, r *http.Request) {
	s.toggleAutomation(w, r, s.svc.Store.Disable, "Automation disabled")
}

func (s *Server) handleActivateAutomation(w http.ResponseWriter, r *http.Request) {
	s.toggleAutomation(w, r, s.svc.Store.Activate, "Automation activated")
}

func (s *Server) handleDeactivateAutomation(w http.ResponseWriter, r *http.Request) {
	s.toggleAutomation(w, r, s.svc.Store.Deactivate, "Automation deactivated")
}

// toggleAutomation applies one of the Store flag setters to the path id
func (s *Server) toggleAutomation(w http.ResponseWriter, r *http.Request, set func(context.Context, uint) (bool, error), message string) {
	id, ok := pathID(r, "id")
	if !ok {
		s.respondWithError(w, http.StatusBadRequest, "Invalid ID", nil)
		return
	}

	changed, err := set(r.Context(), id)
	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}
	if !changed {
		s.respondWithError(w, http.StatusNotFound, "Automation not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": message})
}

func (s *Server) handleExecuteAutomation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		s.respondWithError(w, http.StatusBadRequest, "Invalid ID", nil)
		return
	}
	if _, err := s.svc.Store.Get(r.Context(), id); err != nil {
		s.respondWithServiceError(w, err)
		return
	}

	success, err := s.svc.Executor.Execute(r.Context(), id, map[string]interface{}{
		"trigger_type": models.TriggerManual,
		"source":       "api",
	})
	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}

	message := "Automation executed"
	if !success {
		message = "Failed to execute automation"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": success, "message": message})
}

func (s *Server) handleGetExecutions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		s.respondWithError(w, http.StatusBadRequest, "Invalid ID", nil)
		return
	}
	if _, err := s.svc.Store.Get(r.Context(), id); err != nil {
		s.respondWithServiceError(w, err)
		return
	}

	minLimit, maxLimit := 1, 500
	limit := getIntParam(r, "limit", 50, &minLimit, &maxLimit)
	list, err := s.svc.Store.Executions(r.Context(), id, limit)
	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"executions": list})
}
