package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"homehub/database"
	models "homehub/database/models_pkg"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 20

// getIntParam retrieves an integer query parameter with default value and optional range validation
func getIntParam(r *http.Request, key string, defaultVal int, minVal, maxVal *int) int {
	valStr := r.URL.Query().Get(key)
	if valStr == "" {
		return defaultVal
	}

	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultVal
	}

	if minVal != nil && val < *minVal {
		return defaultVal
	}
	if maxVal != nil && val > *maxVal {
		return defaultVal
	}

	return val
}

// getFloatParam retrieves a float query parameter with default value
func getFloatParam(r *http.Request, key string, defaultVal float64) float64 {
	valStr := r.URL.Query().Get(key)
	if valStr == "" {
		return defaultVal
	}

	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil {
		return defaultVal
	}

	return val
}

// userIDParam returns ?user_id=, defaulting to the single-user id
func userIDParam(r *http.Request) string {
	if u := r.URL.Query().Get("user_id"); u != "" {
		return u
	}
	return models.DefaultUserID
}

// pathID parses a positive numeric path segment
func pathID(r *http.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// respondWithError logs the error and sends a {success:false, message} body.
// Internal errors are logged but not exposed.
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, err error) {
	if err != nil {
		s.log.Warn("API Error", "code", code, "message", message, "error", err)
	} else {
		s.log.Debug("API Error", "code", code, "message", message)
	}
	writeJSON(w, code, map[string]interface{}{"success": false, "message": message})
}

// respondWithServiceError maps the database error taxonomy to a status code
func (s *Server) respondWithServiceError(w http.ResponseWriter, err error) {
	var ve *database.ValidationError
	switch {
	case errors.As(err, &ve):
		s.respondWithError(w, http.StatusBadRequest, ve.Error(), nil)
	case database.IsNotFound(err):
		s.respondWithError(w, http.StatusNotFound, err.Error(), nil)
	case database.IsConflict(err):
		s.respondWithError(w, http.StatusConflict, err.Error(), nil)
	default:
		s.respondWithError(w, http.StatusInternalServerError, "internal error", err)
	}
}
