package utils

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/gilchrisn/affinity-clustering-service/backend/models"
)

// WriteSuccessResponse writes a successful JSON response
func WriteSuccessResponse(w http.ResponseWriter, message string, data interface{}) {
	WriteSuccessResponseWithStatus(w, http.StatusOK, message, data)
}

// WriteSuccessResponseWithStatus writes a successful JSON response with a
// status other than 200.
func WriteSuccessResponseWithStatus(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	response := models.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	}

	writeJSONResponse(w, statusCode, response)
}

// WriteErrorResponse writes an error JSON response
func WriteErrorResponse(w http.ResponseWriter, statusCode int, message string, err error) {
	response := models.APIResponse{
		Success: false,
		Message: message,
	}

	if err != nil {
		response.Error = err.Error()
	}

	writeJSONResponse(w, statusCode, response)
}

// WriteValidationErrorResponse writes a validation error response
func WriteValidationErrorResponse(w http.ResponseWriter, message string, errors map[string]string) {
	response := models.APIResponse{
		Success: false,
		Message: message,
		Data:    map[string]interface{}{"validation_errors": errors},
	}

	writeJSONResponse(w, http.StatusBadRequest, response)
}

// writeJSONResponse encodes data before touching the header, so an encoding
// failure can still report a 500
func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	// Encode first so the status is not committed yet
	body, err := json.Marshal(data)
	if err != nil {
		log.Error().
			Err(err).
			Int("status_code", statusCode).
			Msg("Failed to encode JSON response")

		// Write a basic error response if JSON encoding fails
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success": false, "message": "Internal server error", "error": "JSON encoding failed"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(append(body, '\n'))
}

// ExtractPaginationParams extracts pagination parameters from request
func ExtractPaginationParams(r *http.Request) (page, limit int) {
	// Default values
	page = 1
	limit = 20

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	return page, limit
}

// PageBounds returns the [lo, hi) slice bounds of a page over total items.
func PageBounds(page, limit, total int) (lo, hi int) {
	// Pages past the end are empty
	lo = (page - 1) * limit
	if lo > total {
		lo = total
	}
	hi = lo + limit
	if hi > total {
		hi = total
	}
	return lo, hi
}

// GetClientIP extracts the real client IP from request
func GetClientIP(r *http.Request) string {
	// Check X-Forwarded-For header first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Get the first IP from the comma-separated list
		if ips := strings.Split(xff, ","); len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// Fall back to RemoteAddr
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}

	return r.RemoteAddr
}
