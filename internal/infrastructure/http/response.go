package http

import (
	"encoding/json"
	"net/http"
)

// Response is the body shape for messages and errors.
type Response struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// JSON writes data as the whole response body.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// JSONMessage writes {"message": message}.
func JSONMessage(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Response{Message: message})
}

// JSONError writes {message, error}; error is omitted when err is nil.
func JSONError(w http.ResponseWriter, status int, message string, err error) {
	resp := Response{Message: message}
	if err != nil {
		resp.Error = err.Error()
	}
	JSON(w, status, resp)
}
