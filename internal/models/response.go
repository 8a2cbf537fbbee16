package models

import (
	"github.com/cortexai/chatbi/internal/dashboard"
	"github.com/cortexai/chatbi/internal/service"
	"github.com/cortexai/chatbi/internal/session"
)

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// QueryFailure is the error body for a query the backend rejected. The SQL
// is included so the caller can see what was run.
type QueryFailure struct {
	ErrorResponse
	SQL string `json:"sql,omitempty"`
}

// HistoryResponse is returned by GET /api/v1/history
type HistoryResponse struct {
	Status    string                 `json:"status"`
	SessionID string                 `json:"session_id"`
	History   []session.HistoryEntry `json:"history"`
	Count     int                    `json:"count"`
}

// PersistedHistoryResponse is returned by GET /api/v1/history?persisted=true
type PersistedHistoryResponse struct {
	Status    string                  `json:"status"`
	SessionID string                  `json:"session_id"`
	History   []service.QueryLogEntry `json:"history"`
	Count     int                     `json:"count"`
}

// DashboardResponse is returned by GET /api/v1/dashboard
type DashboardResponse struct {
	Status    string            `json:"status"`
	SessionID string            `json:"session_id"`
	Query     string            `json:"query"`
	Dashboard dashboard.Payload `json:"dashboard"`
}

// NoDataResponse is returned by GET /api/v1/dashboard before the session has
// produced a result.
type NoDataResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// NoDataMessage marks a session without a current dashboard.
const NoDataMessage = "No data available"

// SessionResponse is returned by the /api/v1/session endpoints
type SessionResponse struct {
	Status  string       `json:"status"`
	Session session.Info `json:"session"`
}

// TablesResponse is returned by GET /api/v1/tables
type TablesResponse struct {
	Status string   `json:"status"`
	Tables []string `json:"tables"`
	Count  int      `json:"count"`
}

// TableResponse is returned by GET /api/v1/tables/{table}
type TableResponse struct {
	Status string              `json:"status"`
	Table  service.TableSchema `json:"table"`
}
