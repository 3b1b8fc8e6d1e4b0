package database

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// maxIdle is how long a pooled store may sit unused before it is reopened.
const maxIdle = 30 * time.Minute

// pooled is the process-wide store shared by serverless invocations
type pooled struct {
	store    DatabaseInterface
	config   DatabaseConfig
	opened   time.Time
	lastUsed time.Time
}

// PoolStats describes the pooled store for the debug endpoint
type PoolStats struct {
	Status   string `json:"status"`
	Backend  string `json:"backend,omitempty"`
	DataDir  string `json:"data_dir,omitempty"`
	Opened   string `json:"opened,omitempty"`
	LastUsed string `json:"last_used,omitempty"`
	Idle     string `json:"idle,omitempty"`
}

var (
	poolMu     sync.Mutex
	pool       *pooled
	poolLogger = zap.NewNop()
)

// SetLogger sets the logger used by the pool
func SetLogger(logger *zap.Logger) {
	poolMu.Lock()
	defer poolMu.Unlock()
	if logger == nil {
		logger = zap.NewNop()
	}
	poolLogger = logger
}

// GetDatabase returns the shared store, opening it on first use and reopening
// it when the configuration changed, it sat idle too long or it fails its
// health check.
func GetDatabase(config DatabaseConfig) (DatabaseInterface, error) {
	poolMu.Lock()
	defer poolMu.Unlock()

	now := time.Now()
	if pool != nil {
		reason := staleReason(pool, config, now)
		if reason == "" {
			pool.lastUsed = now
			return pool.store, nil
		}
		poolLogger.Info("Reopening database", zap.String("reason", reason))
		if err := pool.store.Close(); err != nil {
			poolLogger.Warn("Closing stale database", zap.Error(err))
		}
		pool = nil
	}

	store, err := NewDatabase(config)
	if err != nil {
		return nil, err
	}
	poolLogger.Info("Database opened", zap.String("backend", backendName(config)))
	pool = &pooled{store: store, config: config, opened: now, lastUsed: now}
	return store, nil
}

func staleReason(p *pooled, config DatabaseConfig, now time.Time) string {
	switch {
	case p.config.UseLocalDB != config.UseLocalDB,
		p.config.PostgresDSN != config.PostgresDSN,
		p.config.DataDir != config.DataDir:
		return "configuration changed"
	case now.Sub(p.lastUsed) > maxIdle:
		return "idle"
	}
	if err := p.store.HealthCheck(); err != nil {
		return "health check: " + err.Error()
	}
	return ""
}

func backendName(config DatabaseConfig) string {
	if config.UseLocalDB || config.PostgresDSN == "" {
		return "local"
	}
	return "postgres"
}

// GetConnectionStats describes the pooled store
func GetConnectionStats() PoolStats {
	poolMu.Lock()
	defer poolMu.Unlock()

	if pool == nil {
		return PoolStats{Status: "no_connection"}
	}
	stats := PoolStats{
		Status:   "connected",
		Backend:  backendName(pool.config),
		Opened:   pool.opened.Format(time.RFC3339),
		LastUsed: pool.lastUsed.Format(time.RFC3339),
		Idle:     time.Since(pool.lastUsed).Round(time.Second).String(),
	}
	if stats.Backend == "local" {
		stats.DataDir = pool.config.DataDir
	}
	return stats
}

// ResetPool closes and forgets the pooled store
func ResetPool() error {
	poolMu.Lock()
	defer poolMu.Unlock()
	if pool == nil {
		return nil
	}
	err := pool.store.Close()
	pool = nil
	if err != nil {
		return fmt.Errorf("close pooled database: %w", err)
	}
	return nil
}
