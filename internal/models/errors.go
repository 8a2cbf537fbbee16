package models

import (
	"encoding/json"
	"net/http"
)

type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}

func NewErrorResponse(code int, message string) ErrorResponse {
	return ErrorResponse{Status: "error", Message: message, Code: code}
}

func WriteError(w http.ResponseWriter, code int, message string) {
	WriteJSON(w, code, NewErrorResponse(code, message))
}

func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
