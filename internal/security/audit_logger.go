package security

import (
	"github.com/rs/zerolog/log"
)

// AuditLogger logs security-relevant events with hashed identifiers
type AuditLogger struct {
	enabled bool
}

func NewAuditLogger(enabled bool) *AuditLogger {
	return &AuditLogger{enabled: enabled}
}

// QuestionEvent describes one pass through the question pipeline.
type QuestionEvent struct {
	Question         string
	SessionID        string
	Intent           string
	SQL              string
	ValidationPassed bool
	RowCount         int
	BytesProcessed   int64
	ExecutionTimeMs  int64
	MaskedColumns    []string
	Error            string
}

// LogQuestion records a question event. Question, session and SQL text
// are never logged in clear.
func (a *AuditLogger) LogQuestion(e QuestionEvent) {
	if !a.enabled {
		return
	}
	sqlHash := ""
	if e.SQL != "" {
		sqlHash = shortHash(e.SQL)
	}

	evt := log.Info().
		Str("event", "question_audit").
		Str("question_hash", shortHash(e.Question)).
		Str("session_hash", shortHash(e.SessionID)).
		Str("intent", e.Intent).
		Str("sql_hash", sqlHash).
		Bool("validation_passed", e.ValidationPassed).
		Int("row_count", e.RowCount).
		Int64("bytes_processed", e.BytesProcessed).
		Int64("execution_time_ms", e.ExecutionTimeMs)

	if len(e.MaskedColumns) > 0 {
		evt = evt.Strs("masked_columns", e.MaskedColumns)
	}
	if e.Error != "" {
		evt = evt.Str("error", e.Error)
	}
	evt.Msg("audit")
}

// LogRejection records a question refused before any query ran.
func (a *AuditLogger) LogRejection(question, sessionID, reason string) {
	if !a.enabled {
		return
	}
	log.Warn().
		Str("event", "question_rejected").
		Str("question_hash", shortHash(question)).
		Str("session_hash", shortHash(sessionID)).
		Str("reason", reason).
		Msg("audit")
}
