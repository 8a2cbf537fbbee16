// Package pipeline answers a free-text question: it validates and interprets
// the text, derives and runs a query, and records the result in the
// caller's session together with an insight and a dashboard.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cortexai/chatbi/internal/config"
	"github.com/cortexai/chatbi/internal/dashboard"
	"github.com/cortexai/chatbi/internal/export"
	"github.com/cortexai/chatbi/internal/metrics"
	"github.com/cortexai/chatbi/internal/nlp"
	"github.com/cortexai/chatbi/internal/querygen"
	"github.com/cortexai/chatbi/internal/security"
	"github.com/cortexai/chatbi/internal/service"
	"github.com/cortexai/chatbi/internal/session"
	"github.com/rs/zerolog/log"
)

var (
	// ErrValidation marks questions refused before or instead of execution.
	ErrValidation = errors.New("validation failed")
	// ErrNoResult is returned when a session has not answered anything yet.
	ErrNoResult = errors.New("no result for session")
)

// ValidationError names the check that refused a question.
type ValidationError struct {
	Stage   string // prompt | pii | sql | cost
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s validation failed: %s", e.Stage, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Insighter produces the narrative for a result.
type Insighter interface {
	Generate(ctx context.Context, query string, result *service.ResultTable) (string, error)
}

// HistoryReader reads persisted history back.
type HistoryReader interface {
	Recent(ctx context.Context, sessionID string, limit int) ([]service.QueryLogEntry, error)
}

// bytesEstimator is implemented by backends that can price a query before running it.
type bytesEstimator interface {
	EstimateBytes(ctx context.Context, sql string, args ...any) (int64, error)
}

// Response is the answer to one question.
type Response struct {
	Query           string            `json:"query"`
	NormalizedQuery string            `json:"normalized_query"`
	Intent          nlp.Intent        `json:"intent"`
	SQL             string            `json:"sql"`
	Params          []any             `json:"params"`
	Results         []map[string]any  `json:"results"`
	Columns         []string          `json:"columns"`
	RowCount        int               `json:"row_count"`
	Insights        string            `json:"insights"`
	Dashboard       dashboard.Payload `json:"dashboard"`
	SessionID       string            `json:"session_id"`
	Keywords        []string          `json:"keywords"`
	Entities        nlp.Entities      `json:"entities"`
	BytesProcessed  int64             `json:"bytes_processed,omitempty"`
	MaskedColumns   []string          `json:"masked_columns,omitempty"`
	ExecutionTimeMs int64             `json:"execution_time_ms"`
}

// Pipeline wires interpretation, execution and session state together.
type Pipeline struct {
	executor     service.Executor
	preprocessor *nlp.Preprocessor
	classifier   *nlp.Classifier
	synthesizer  *querygen.Synthesizer
	schemas      *querygen.SchemaRegistry
	insights     Insighter
	sessions     *session.Registry
	dashboards   *dashboard.Manager
	history      session.HistoryStore

	piiDetector *security.PIIDetector
	promptVal   *security.PromptValidator
	sqlVal      *security.SQLValidator
	costTracker *security.CostTracker
	dataMasker  *security.DataMasker
	auditLogger *security.AuditLogger

	queryTimeout time.Duration
	maskData     bool
	detectPII    bool
}

// New creates a pipeline over executor. history may be nil.
func New(
	cfg *config.Config,
	executor service.Executor,
	insights Insighter,
	sessions *session.Registry,
	dashboards *dashboard.Manager,
	history session.HistoryStore,
) *Pipeline {
	synth := querygen.NewSynthesizer(querygen.Options{
		Table:        cfg.DefaultTable,
		Measure:      cfg.DefaultMeasure,
		Dimension:    cfg.DefaultDimension,
		FilterValues: cfg.FilterValues,
	}, executor.Dialect())

	return &Pipeline{
		executor:     executor,
		preprocessor: nlp.NewPreprocessor(),
		classifier:   nlp.NewClassifier(),
		synthesizer:  synth,
		schemas:      querygen.NewSchemaRegistry(executor),
		insights:     insights,
		sessions:     sessions,
		dashboards:   dashboards,
		history:      history,
		piiDetector:  security.NewPIIDetector(cfg.PIIKeywords),
		promptVal:    security.NewPromptValidator(),
		sqlVal:       security.NewSQLValidator(),
		costTracker:  security.NewCostTracker(cfg.MaxQueryBytesProcessed),
		dataMasker:   security.NewDataMasker(cfg.SensitiveColumns),
		auditLogger:  security.NewAuditLogger(cfg.EnableAuditLogging),
		queryTimeout: cfg.QueryTimeoutDuration(),
		maskData:     cfg.EnableDataMasking,
		detectPII:    cfg.EnablePIIDetection,
	}
}

// LoadSchemas fills the schema registry. It never fails; see SchemaRegistry.Load.
func (p *Pipeline) LoadSchemas(ctx context.Context) {
	p.schemas.Load(ctx)
}

// Handle answers raw for the session sessionID, creating the session when
// it does not exist. An empty sessionID gets a generated one.
func (p *Pipeline) Handle(ctx context.Context, raw, sessionID string) (*Response, error) {
	start := time.Now()

	// 1. Prompt validation
	if vr := p.promptVal.Validate(raw); !vr.Valid {
		return nil, p.reject(raw, sessionID, &ValidationError{Stage: "prompt", Message: vr.Message})
	}

	// 2. PII detection
	if p.detectPII {
		if found, kw := p.piiDetector.Detect(raw); found {
			return nil, p.reject(raw, sessionID, &ValidationError{Stage: "pii", Message: "question asks for sensitive data: " + kw})
		}
	}

	sess := p.sessions.GetOrCreate(sessionID)
	sessionID = sess.ID()
	metrics.ActiveSessions.Set(float64(p.sessions.ActiveCount()))

	// 3. Interpret
	nq := p.preprocessor.Process(raw)
	classified := p.classifier.ClassifyDetailed(raw)
	intent := classified.Intent
	query := p.synthesizer.Synthesize(intent, raw)

	log.Debug().
		Str("session_id", sessionID).
		Str("intent", string(intent)).
		Str("trigger", classified.Trigger).
		Str("sql", query.SQL).
		Int("params", len(query.Args)).
		Msg("question interpreted")

	// 4. SQL validation
	if msg := p.sqlVal.Validate(query.SQL); msg != "" {
		return nil, p.reject(raw, sessionID, &ValidationError{Stage: "sql", Message: msg})
	}

	// 5. Execute, with a pre-flight cost check where the backend supports it
	result, err := p.execute(ctx, query)
	if err != nil {
		p.fail(raw, sessionID, intent, query.SQL, start, err)
		return nil, err
	}
	queryMs := time.Since(start).Milliseconds()

	// 6. Cost check
	if ok, msg := p.costTracker.CheckLimits(result.BytesProcessed); !ok {
		err := &ValidationError{Stage: "cost", Message: msg}
		p.fail(raw, sessionID, intent, query.SQL, start, err)
		return nil, err
	}
	p.costTracker.LogQueryCost(query.SQL, result.BytesProcessed, sessionID, queryMs)

	// 7. Data masking
	var masked []string
	if p.maskData {
		masked = p.dataMasker.SensitiveColumns(result.ColumnNames())
		result = &service.ResultTable{
			Columns:        result.Columns,
			Rows:           p.dataMasker.MaskRows(result.Rows),
			BytesProcessed: result.BytesProcessed,
		}
	}

	// 8. Insight
	insightText, err := p.insights.Generate(ctx, raw, result)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("insight unavailable")
		metrics.InsightFallbacks.Inc()
	}

	// 9. Dashboard
	payload := dashboard.Build(result)
	p.dashboards.Remember(sessionID, dashboard.Snapshot{
		Query:     raw,
		Result:    result,
		Payload:   payload,
		CreatedAt: time.Now(),
	})

	// 10. History
	entry := sess.AddToHistory(raw, result, insightText)
	sess.UpdateContext("last_intent", string(intent))
	sess.UpdateContext("last_sql", query.SQL)
	if p.history != nil {
		if err := p.history.Record(ctx, service.QueryLogEntry{
			SessionID:    sessionID,
			Query:        raw,
			SQL:          query.SQL,
			Timestamp:    entry.Timestamp,
			ResultsCount: result.Len(),
		}); err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to persist query log")
		}
	}

	// 11. Audit + metrics
	elapsed := time.Since(start)
	p.auditLogger.LogQuestion(security.QuestionEvent{
		Question:         raw,
		SessionID:        sessionID,
		Intent:           string(intent),
		SQL:              query.SQL,
		ValidationPassed: true,
		RowCount:         result.Len(),
		BytesProcessed:   result.BytesProcessed,
		ExecutionTimeMs:  elapsed.Milliseconds(),
		MaskedColumns:    masked,
	})
	metrics.QuestionsTotal.WithLabelValues(string(intent)).Inc()
	metrics.PipelineDuration.WithLabelValues(string(intent)).Observe(elapsed.Seconds())

	return &Response{
		Query:           raw,
		NormalizedQuery: nq.Normalized,
		Intent:          intent,
		SQL:             query.SQL,
		Params:          query.Args,
		Results:         result.Rows,
		Columns:         result.ColumnNames(),
		RowCount:        result.Len(),
		Insights:        insightText,
		Dashboard:       payload,
		SessionID:       sessionID,
		Keywords:        nq.Keywords,
		Entities:        nq.Entities,
		BytesProcessed:  result.BytesProcessed,
		MaskedColumns:   masked,
		ExecutionTimeMs: elapsed.Milliseconds(),
	}, nil
}

func (p *Pipeline) execute(ctx context.Context, q querygen.Query) (*service.ResultTable, error) {
	if p.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.queryTimeout)
		defer cancel()
	}

	if est, ok := p.executor.(bytesEstimator); ok {
		n, err := est.EstimateBytes(ctx, q.SQL, q.Args...)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("cost estimate failed, executing anyway")
		default:
			if ok, msg := p.costTracker.CheckLimits(n); !ok {
				return nil, &ValidationError{Stage: "cost", Message: msg}
			}
		}
	}

	result, err := p.executor.Execute(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, fmt.Errorf("execute %s query: %w", q.Intent, err)
	}
	return result, nil
}

func (p *Pipeline) reject(raw, sessionID string, err *ValidationError) error {
	p.auditLogger.LogRejection(raw, sessionID, err.Error())
	metrics.PipelineFailures.WithLabelValues(err.Stage).Inc()
	return err
}

func (p *Pipeline) fail(raw, sessionID string, intent nlp.Intent, sql string, start time.Time, err error) {
	p.auditLogger.LogQuestion(security.QuestionEvent{
		Question:         raw,
		SessionID:        sessionID,
		Intent:           string(intent),
		SQL:              sql,
		ValidationPassed: !errors.Is(err, ErrValidation),
		ExecutionTimeMs:  time.Since(start).Milliseconds(),
		Error:            err.Error(),
	})
	metrics.PipelineFailures.WithLabelValues(FailureKind(err)).Inc()
}

// FailureKind names the error class of err for metrics and responses.
func FailureKind(err error) string {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return ve.Stage
	case errors.Is(err, service.ErrConnection):
		return "connection"
	case errors.Is(err, service.ErrQueryExecution):
		return "query"
	default:
		return "internal"
	}
}

// History returns the in-memory history of a live session.
func (p *Pipeline) History(sessionID string) ([]session.HistoryEntry, bool) {
	sess, ok := p.sessions.Get(sessionID)
	if !ok {
		return nil, false
	}
	return sess.History(), true
}

// PersistedHistory reads history from the query log, which outlives sessions.
func (p *Pipeline) PersistedHistory(ctx context.Context, sessionID string, limit int) ([]service.QueryLogEntry, error) {
	reader, ok := p.history.(HistoryReader)
	if !ok {
		return []service.QueryLogEntry{}, nil
	}
	return reader.Recent(ctx, sessionID, limit)
}

// Dashboard returns the last dashboard built for sessionID.
func (p *Pipeline) Dashboard(sessionID string) (dashboard.Snapshot, bool) {
	return p.dashboards.Current(sessionID)
}

// Export writes the last result of sessionID in format.
func (p *Pipeline) Export(sessionID, format string, w io.Writer) error {
	exp, err := export.NewExporter(format)
	if err != nil {
		return err
	}
	snap, ok := p.dashboards.Current(sessionID)
	if !ok {
		return ErrNoResult
	}
	if err := exp.Export(snap, w); err != nil {
		return fmt.Errorf("export %s: %w", format, err)
	}
	log.Info().Str("session_id", sessionID).Str("format", format).Int("rows", snap.Result.Len()).Msg("exported result")
	return nil
}

// Tables lists the tables known to the schema registry.
func (p *Pipeline) Tables(ctx context.Context) []string {
	p.schemas.Load(ctx)
	return p.schemas.Tables()
}

// TableInfo returns the cached schema of name.
func (p *Pipeline) TableInfo(ctx context.Context, name string) (service.TableSchema, bool) {
	p.schemas.Load(ctx)
	return p.schemas.Table(name)
}

// CreateSession starts a session with a generated id.
func (p *Pipeline) CreateSession() session.Info {
	sess := p.sessions.Create()
	metrics.ActiveSessions.Set(float64(p.sessions.ActiveCount()))
	return sess.Info(p.sessions.Timeout())
}

// SessionInfo reports on a live session.
func (p *Pipeline) SessionInfo(sessionID string) (session.Info, bool) {
	sess, ok := p.sessions.Get(sessionID)
	if !ok {
		return session.Info{}, false
	}
	return sess.Info(p.sessions.Timeout()), true
}

// DeleteSession ends a session and drops its dashboard.
func (p *Pipeline) DeleteSession(sessionID string) bool {
	ok := p.sessions.Delete(sessionID)
	p.dashboards.Forget(sessionID)
	if ok {
		metrics.ActiveSessions.Set(float64(p.sessions.ActiveCount()))
	}
	return ok
}

// Ping checks the storage backend.
func (p *Pipeline) Ping(ctx context.Context) error {
	return p.executor.TestConnection(ctx)
}
