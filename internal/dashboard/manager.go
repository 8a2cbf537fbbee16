package dashboard

import (
	"time"

	"github.com/cortexai/chatbi/internal/service"
	"github.com/jellydator/ttlcache/v3"
)

// Snapshot is the most recent dashboard built for a session together with
// the result it was built from.
type Snapshot struct {
	Query     string               `json:"query"`
	Result    *service.ResultTable `json:"-"`
	Payload   Payload              `json:"dashboard"`
	CreatedAt time.Time            `json:"created_at"`
}

// Manager keeps the last snapshot per session so the current dashboard can
// be served without recomputing it. Entries expire after ttl.
type Manager struct {
	cache *ttlcache.Cache[string, Snapshot]
}

func NewManager(ttl time.Duration) *Manager {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, Snapshot](ttl),
	)
	go cache.Start()
	return &Manager{cache: cache}
}

// Remember stores s for sessionID, replacing any earlier snapshot.
func (m *Manager) Remember(sessionID string, s Snapshot) {
	m.cache.Set(sessionID, s, ttlcache.DefaultTTL)
}

// Current returns the last snapshot for sessionID.
func (m *Manager) Current(sessionID string) (Snapshot, bool) {
	item := m.cache.Get(sessionID)
	if item == nil {
		return Snapshot{}, false
	}
	return item.Value(), true
}

func (m *Manager) Forget(sessionID string) {
	m.cache.Delete(sessionID)
}

// Close stops the expiry loop. It must be called once.
func (m *Manager) Close() {
	m.cache.Stop()
}
