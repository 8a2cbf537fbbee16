package models

import "strings"

// AskRequest for POST /api/v1/ask
type AskRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// Normalize trims the request and falls back to the session id carried in
// the X-Session-ID header.
func (r *AskRequest) Normalize(headerSessionID string) {
	r.Query = strings.TrimSpace(r.Query)
	r.SessionID = strings.TrimSpace(r.SessionID)
	if r.SessionID == "" {
		r.SessionID = strings.TrimSpace(headerSessionID)
	}
}

// Validate returns "" when the request can be handed to the pipeline.
func (r *AskRequest) Validate() string {
	if r.Query == "" {
		return "query is required"
	}
	return ""
}

// HistoryLimit bounds the persisted history page returned by GET /history.
func HistoryLimit(n int) int {
	switch {
	case n <= 0:
		return 20
	case n > 200:
		return 200
	default:
		return n
	}
}
