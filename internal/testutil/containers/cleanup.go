//go:build integration

package containers

import (
	"fmt"
	"sync"
)

// CleanupManager runs registered cleanups in LIFO order.
type CleanupManager struct {
	mu       sync.Mutex
	cleanups []cleanupFunc
}

type cleanupFunc struct {
	name string
	fn   func() error
}

// NewCleanupManager creates an empty CleanupManager.
func NewCleanupManager() *CleanupManager {
	return &CleanupManager{}
}

// Add registers fn to run on Cleanup.
func (cm *CleanupManager) Add(name string, fn func() error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.cleanups = append(cm.cleanups, cleanupFunc{name: name, fn: fn})
}

// Cleanup runs every registered function, last added first, and returns all
// failures. The lock is released before running so a cleanup may call Add.
func (cm *CleanupManager) Cleanup() []error {
	cm.mu.Lock()
	pending := cm.cleanups
	cm.cleanups = nil
	cm.mu.Unlock()

	var errs []error
	for i := len(pending) - 1; i >= 0; i-- {
		if err := pending[i].fn(); err != nil {
			errs = append(errs, fmt.Errorf("%s cleanup failed: %w", pending[i].name, err))
		}
	}
	return errs
}
