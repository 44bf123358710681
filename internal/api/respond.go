package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/freshmart/grocery-store/internal/services"
	"github.com/gorilla/mux"
)

// errorResponse is the body of every failed request
type errorResponse struct {
	Message string              `json:"message"`
	Error   string              `json:"error,omitempty"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("[HTTP] failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := errorResponse{Message: message}
	if err != nil {
		resp.Error = err.Error()
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			resp.Fields = verr.ByField()
		}
	}
	writeJSON(w, status, resp)
}

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	var (
		verr     *services.ValidationError
		missing  *services.MissingReferenceError
		creation *services.OrderCreationError
	)
	switch {
	case errors.As(err, &creation):
		return http.StatusInternalServerError
	case errors.Is(err, services.ErrMalformedInput),
		errors.As(err, &verr),
		errors.As(err, &missing):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// fail writes err with its mapped status. Internal errors are logged and
// their detail kept out of the body unless it is an order creation fault.
func fail(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("[HTTP] %s: %v", message, err)
		var creation *services.OrderCreationError
		if !errors.As(err, &creation) {
			err = nil
		}
	}
	writeError(w, status, message, err)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}
