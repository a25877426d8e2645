package api

import (
	"net/http"
	"strconv"

	models "homehub/database/models_pkg"
)

// handleHealth returns the health status of the API
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":            "ok",
		"scheduler_running": s.svc.Scheduler.Running(),
	}
	if s.broker != nil {
		body["sse_clients"] = s.broker.ClientCount()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.broker == nil {
		s.respondWithError(w, http.StatusServiceUnavailable, "Event stream disabled", nil)
		return
	}
	s.broker.ServeHTTP(w, r)
}

// Configuration Handlers (Webhooks Only)

func (s *Server) handleGetWebhooks(w http.ResponseWriter, r *http.Request) {
	if s.webhookMq == nil {
		s.respondWithError(w, http.StatusServiceUnavailable, "Webhooks disabled", nil)
		return
	}
	webhooks, err := s.webhookMq.List(r.Context())
	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"webhooks": webhooks})
}

func (s *Server) handleCreateWebhook(w http.ResponseWriter, r *http.Request) {
	if s.webhookMq == nil {
		s.respondWithError(w, http.StatusServiceUnavailable, "Webhooks disabled", nil)
		return
	}
	var webhook models.Webhook
	if err := decodeJSON(w, r, &webhook); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if webhook.UserID == "" {
		webhook.UserID = userIDParam(r)
	}

	if err := s.webhookMq.Register(r.Context(), &webhook); err != nil {
		s.respondWithServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, webhook)
}

func (s *Server) handleDeleteWebhook(w http.ResponseWriter, r *http.Request) {
	if s.webhookMq == nil {
		s.respondWithError(w, http.StatusServiceUnavailable, "Webhooks disabled", nil)
		return
	}
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid ID", nil)
		return
	}

	deleted, err := s.webhookMq.Delete(r.Context(), id)
	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}
	if !deleted {
		s.respondWithError(w, http.StatusNotFound, "Webhook not found", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetWebhookDeliveries(w http.ResponseWriter, r *http.Request) {
	if s.webhookMq == nil {
		s.respondWithError(w, http.StatusServiceUnavailable, "Webhooks disabled", nil)
		return
	}
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid ID", nil)
		return
	}
	minLimit, maxLimit := 1, 500
	limit := getIntParam(r, "limit", 50, &minLimit, &maxLimit)

	list, err := s.webhookMq.Deliveries(r.Context(), id, limit)
	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"deliveries": list})
}
