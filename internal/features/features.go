package features

import (
	"sort"
	"sync"
)

// Runtime switches consulted by the router and services.
const (
	CacheEnabled           = "cache_enabled"
	EventHooksEnabled      = "event_hooks_enabled"
	JobWorkerEnabled       = "job_worker_enabled"
	ReportRateLimitEnabled = "report_rate_limit_enabled"
)

// Flag is a named on/off switch.
type Flag struct {
	Name        string `json:"name"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description"`
}

// Manager holds feature flags. Unknown flags read as disabled.
type Manager struct {
	mu    sync.RWMutex
	flags map[string]*Flag
}

func NewManager() *Manager {
	return &Manager{flags: make(map[string]*Flag)}
}

// Defaults describes the initial value of every built-in flag.
type Defaults struct {
	Cache           bool
	EventHooks      bool
	JobWorker       bool
	ReportRateLimit bool
}

// NewDefaultManager registers the built-in flags.
func NewDefaultManager(d Defaults) *Manager {
	m := NewManager()
	m.Register(CacheEnabled, d.Cache, "cache heatmap and reward catalog reads")
	m.Register(EventHooksEnabled, d.EventHooks, "publish domain events to subscribers")
	m.Register(JobWorkerEnabled, d.JobWorker, "periodically retry pending classification jobs")
	m.Register(ReportRateLimitEnabled, d.ReportRateLimit, "limit problem reports per user per day")
	return m
}

func (m *Manager) Register(name string, enabled bool, description string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.flags[name] = &Flag{Name: name, Enabled: enabled, Description: description}
}

func (m *Manager) IsEnabled(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	flag, exists := m.flags[name]
	return exists && flag.Enabled
}

// Set changes a registered flag and reports whether it exists.
func (m *Manager) Set(name string, enabled bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	flag, exists := m.flags[name]
	if exists {
		flag.Enabled = enabled
	}
	return exists
}

// All returns a snapshot sorted by name.
func (m *Manager) All() []Flag {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Flag, 0, len(m.flags))
	for _, f := range m.flags {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
