package session

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/cortexai/chatbi/internal/nlp"
	"github.com/cortexai/chatbi/internal/service"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const summaryValueLimit = 200

// HistoryEntry is one answered question in a session.
type HistoryEntry struct {
	Timestamp     time.Time      `json:"timestamp"`
	Query         string         `json:"query"`
	ResultSummary map[string]any `json:"results_summary"`
	Insight       string         `json:"insights"`
	Intent        nlp.Intent     `json:"query_type"`
}

// Summarizer lets a result describe itself in history.
type Summarizer interface {
	Summary() (map[string]any, error)
}

// HistoryStore persists history entries beyond the in-memory window.
type HistoryStore interface {
	Record(ctx context.Context, e service.QueryLogEntry) error
}

// Info is the externally visible metadata of a session.
type Info struct {
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	HistoryCount int       `json:"history_count"`
	IsExpired    bool      `json:"is_expired"`
}

// Session holds the conversation state of one client. All methods are safe
// for concurrent use; writes to one session are serialized.
type Session struct {
	id         string
	createdAt  time.Time
	clock      clockwork.Clock
	classifier *nlp.Classifier
	maxHistory int

	mu           sync.Mutex
	lastActivity time.Time
	history      []HistoryEntry
	context      map[string]any
}

func newSession(id string, clock clockwork.Clock, maxHistory int) *Session {
	now := clock.Now()
	log.Info().Str("session_id", id).Msg("created user session")
	return &Session{
		id:           id,
		createdAt:    now,
		clock:        clock,
		classifier:   nlp.NewClassifier(),
		maxHistory:   maxHistory,
		lastActivity: now,
		history:      make([]HistoryEntry, 0),
		context:      make(map[string]any),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Touch marks the session as active now.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = s.clock.Now()
	s.mu.Unlock()
}

// AddToHistory records an answered question and keeps only the most recent
// entries, dropping the oldest first.
func (s *Session) AddToHistory(query string, result any, insight string) HistoryEntry {
	entry := HistoryEntry{
		Query:         query,
		ResultSummary: Summarize(result),
		Insight:       insight,
		Intent:        s.classifier.Classify(query),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	entry.Timestamp = now
	s.history = append(s.history, entry)
	s.lastActivity = now
	if over := len(s.history) - s.maxHistory; over > 0 {
		trimmed := make([]HistoryEntry, s.maxHistory)
		copy(trimmed, s.history[over:])
		s.history = trimmed
	}

	log.Debug().Str("session_id", s.id).Str("query", truncate(query, 50)).Msg("added to history")
	return entry
}

// History returns a copy of the entries in chronological order.
func (s *Session) History() []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]HistoryEntry, len(s.history))
	copy(out, s.history)
	return out
}

// RecentQueries returns up to limit of the latest raw questions, oldest first.
func (s *Session) RecentQueries(limit int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		return []string{}
	}
	start := max(len(s.history)-limit, 0)
	out := make([]string, 0, len(s.history)-start)
	for _, e := range s.history[start:] {
		out = append(out, e.Query)
	}
	return out
}

// CurrentResults returns the summary of the latest entry, or an empty map.
func (s *Session) CurrentResults() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) == 0 {
		return map[string]any{}
	}
	return s.history[len(s.history)-1].ResultSummary
}

func (s *Session) UpdateContext(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.context[key] = value
	s.lastActivity = s.clock.Now()
}

func (s *Session) Context(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.context[key]
	return v, ok
}

// ContextAll returns a copy of the whole context map.
func (s *Session) ContextAll() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.context))
	for k, v := range s.context {
		out[k] = v
	}
	return out
}

func (s *Session) ClearHistory() {
	s.mu.Lock()
	s.history = make([]HistoryEntry, 0)
	s.mu.Unlock()
	log.Info().Str("session_id", s.id).Msg("cleared history")
}

// IsExpired reports whether more than timeout has passed since the last
// activity. Once true it stays true until the session is touched again.
func (s *Session) IsExpired(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Since(s.lastActivity) > timeout
}

func (s *Session) Info(timeout time.Duration) Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		SessionID:    s.id,
		CreatedAt:    s.createdAt,
		LastActivity: s.lastActivity,
		HistoryCount: len(s.history),
		IsExpired:    s.clock.Since(s.lastActivity) > timeout,
	}
}

// Summarize reduces a result to a compact descriptor for history. It never
// fails; problems are reported as an "unknown" summary.
func Summarize(result any) (summary map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Msg("could not summarize results")
			summary = map[string]any{"type": "unknown", "error": fmt.Sprint(r)}
		}
	}()

	switch r := result.(type) {
	case Summarizer:
		s, err := r.Summary()
		if err != nil {
			log.Warn().Err(err).Msg("could not summarize results")
			return map[string]any{"type": "unknown", "error": err.Error()}
		}
		return s
	case *service.ResultTable:
		names := r.ColumnNames()
		if names == nil {
			names = []string{}
		}
		return map[string]any{
			"type":         "table",
			"rows":         r.Len(),
			"columns":      len(names),
			"columns_list": names,
		}
	}

	if result != nil {
		v := reflect.ValueOf(result)
		switch v.Kind() {
		case reflect.Slice, reflect.Array, reflect.Map:
			return map[string]any{"type": v.Kind().String(), "length": v.Len()}
		}
	}
	return map[string]any{
		"type":  fmt.Sprintf("%T", result),
		"value": truncate(fmt.Sprint(result), summaryValueLimit),
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
