package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"videorelay/internal/model"
	"videorelay/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager owns the temp root. Every job gets its own directory under it,
// and jobs for the same item are serialized.
type Manager struct {
	cfg      *model.StorageConfig
	jobs     map[string]*Lease
	items    map[string]*itemLock
	mu       sync.Mutex
	quitChan chan struct{}
	stopOnce sync.Once
	mkdirAll func(path string, perm os.FileMode) error
}

// itemLock is a context-aware mutex shared by the jobs of one item.
type itemLock struct {
	sem  chan struct{}
	refs int
}

// Lease is the temp directory of one job. Release deletes it exactly once.
type Lease struct {
	JobID  string
	ItemID string
	Dir    string
	Path   string

	manager    *Manager
	acquiredAt time.Time
	once       sync.Once
}

// NewManager creates a new storage manager
func NewManager(cfg *model.StorageConfig) *Manager {
	return &Manager{
		cfg:      cfg,
		jobs:     make(map[string]*Lease),
		items:    make(map[string]*itemLock),
		quitChan: make(chan struct{}),
		mkdirAll: os.MkdirAll,
	}
}

// EnsureRoot creates the temp root, wiping leftovers first when configured
func (m *Manager) EnsureRoot() error {
	if m.cfg.ResetOnStart {
		if err := os.RemoveAll(m.cfg.TempRoot); err != nil {
			return fmt.Errorf("reset temp root: %w", err)
		}
	}
	if err := os.MkdirAll(m.cfg.TempRoot, 0755); err != nil {
		return fmt.Errorf("create temp root: %w", err)
	}
	logger.Logger.Info("Temp root ready", zap.String("path", m.cfg.TempRoot), zap.Bool("reset", m.cfg.ResetOnStart))
	return nil
}

// Acquire waits for any running job of the same item to finish, then
// creates a fresh job directory.
func (m *Manager) Acquire(ctx context.Context, itemID string) (*Lease, error) {
	lock := m.refItem(itemID)
	select {
	case lock.sem <- struct{}{}:
	case <-ctx.Done():
		m.unrefItem(itemID, false)
		return nil, ctx.Err()
	}

	jobID := uuid.New().String()
	dir := filepath.Join(m.cfg.TempRoot, jobID)
	lease := &Lease{
		JobID:      jobID,
		ItemID:     itemID,
		Dir:        dir,
		Path:       filepath.Join(dir, itemID+".mp4"),
		manager:    m,
		acquiredAt: time.Now(),
	}

	// registered first so the sweeper never sees the directory unowned
	m.mu.Lock()
	m.jobs[jobID] = lease
	m.mu.Unlock()

	if err := m.mkdirAll(dir, 0755); err != nil {
		m.mu.Lock()
		delete(m.jobs, jobID)
		m.mu.Unlock()
		m.unrefItem(itemID, true)
		return nil, fmt.Errorf("create job directory: %w", err)
	}

	logger.Logger.Debug("Job directory created", zap.String("job_id", jobID), zap.String("item_id", itemID), zap.String("dir", dir))
	return lease, nil
}

// Release removes the job directory and lets the next job of the item run.
// Only the first call does anything; it reports whether it was that call.
func (l *Lease) Release() bool {
	released := false
	l.once.Do(func() {
		released = true
		m := l.manager

		if err := os.RemoveAll(l.Dir); err != nil {
			logger.Logger.Error("Failed to remove job directory",
				zap.String("job_id", l.JobID),
				zap.String("dir", l.Dir),
				zap.Error(err))
		} else {
			logger.Logger.Info("Temp file cleaned up",
				zap.String("job_id", l.JobID),
				zap.String("item_id", l.ItemID),
				zap.String("path", l.Path))
		}

		m.mu.Lock()
		delete(m.jobs, l.JobID)
		m.mu.Unlock()
		m.unrefItem(l.ItemID, true)
	})
	return released
}

func (m *Manager) refItem(itemID string) *itemLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.items[itemID]
	if !ok {
		lock = &itemLock{sem: make(chan struct{}, 1)}
		m.items[itemID] = lock
	}
	lock.refs++
	return lock
}

func (m *Manager) unrefItem(itemID string, held bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.items[itemID]
	if !ok {
		return
	}
	if held {
		<-lock.sem
	}
	lock.refs--
	if lock.refs == 0 {
		delete(m.items, itemID)
	}
}

// Start starts the orphan cleanup routine
func (m *Manager) Start() {
	go m.cleanupRoutine()
}

// Stop stops the orphan cleanup routine
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.quitChan) })
}

func (m *Manager) cleanupRoutine() {
	interval := time.Duration(m.cfg.CleanupInterval) * time.Second
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Logger.Info("Storage cleanup routine started",
		zap.Int("cleanup_interval_seconds", m.cfg.CleanupInterval),
		zap.Int("orphan_ttl_seconds", m.cfg.OrphanTTL))

	for {
		select {
		case <-m.quitChan:
			logger.Logger.Info("Storage cleanup routine stopped")
			return
		case <-ticker.C:
			m.SweepOrphans(time.Now())
		}
	}
}

// SweepOrphans removes entries under the temp root that no live lease owns
// and that are older than the orphan TTL. It returns how many were removed.
func (m *Manager) SweepOrphans(now time.Time) int {
	entries, err := os.ReadDir(m.cfg.TempRoot)
	if err != nil {
		logger.Logger.Error("Failed to scan temp root", zap.String("path", m.cfg.TempRoot), zap.Error(err))
		return 0
	}

	ttl := time.Duration(m.cfg.OrphanTTL) * time.Second
	removed := 0
	errorCount := 0
	for _, entry := range entries {
		m.mu.Lock()
		_, live := m.jobs[entry.Name()]
		m.mu.Unlock()
		if live {
			continue
		}

		info, err := entry.Info()
		if err != nil || now.Sub(info.ModTime()) < ttl {
			continue
		}

		path := filepath.Join(m.cfg.TempRoot, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			logger.Logger.Error("Failed to remove orphan", zap.String("path", path), zap.Error(err))
			errorCount++
			continue
		}
		removed++
	}

	if removed > 0 || errorCount > 0 {
		logger.Logger.Info("Storage cleanup completed",
			zap.Int("deleted_count", removed),
			zap.Int("error_count", errorCount),
			zap.Int("active_jobs", m.ActiveJobs()))
	}
	return removed
}

// ActiveJobs returns the number of jobs holding a lease
func (m *Manager) ActiveJobs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

// Root returns the temp root directory
func (m *Manager) Root() string {
	return m.cfg.TempRoot
}
