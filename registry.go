package spotmicro

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// driverEntry is one shared ServoDriver plus its reference count,
// adapted from registry.go's ControllerEntry: the same "refcounted
// shared hardware resource keyed by port path" shape, now guarding a
// serial PWM link instead of a Feetech servo bus.
type driverEntry struct {
	driver   *ServoDriver
	refCount int64
	mu       sync.RWMutex
}

// ServoDriverRegistry lets the controller binary and the debug CLI share
// one ServoDriver per serial port rather than each opening the port
// independently and fighting over it.
type ServoDriverRegistry struct {
	mu      sync.RWMutex
	entries map[string]*driverEntry
}

func NewServoDriverRegistry() *ServoDriverRegistry {
	return &ServoDriverRegistry{entries: make(map[string]*driverEntry)}
}

// Acquire returns the shared driver for portPath, opening it if this is
// the first caller, and increments its reference count.
func (r *ServoDriverRegistry) Acquire(portPath string, baud int, logger *zap.SugaredLogger) (*ServoDriver, error) {
	r.mu.RLock()
	entry, exists := r.entries[portPath]
	r.mu.RUnlock()

	if exists {
		atomic.AddInt64(&entry.refCount, 1)
		return entry.driver, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, exists := r.entries[portPath]; exists {
		atomic.AddInt64(&entry.refCount, 1)
		return entry.driver, nil
	}

	driver, err := OpenServoDriver(portPath, baud, logger)
	if err != nil {
		return nil, err
	}
	r.entries[portPath] = &driverEntry{driver: driver, refCount: 1}
	return driver, nil
}

// Release decrements portPath's reference count, closing and evicting
// the shared driver once the last caller releases it.
func (r *ServoDriverRegistry) Release(portPath string) error {
	r.mu.RLock()
	entry, exists := r.entries[portPath]
	r.mu.RUnlock()
	if !exists {
		return nil
	}

	if atomic.AddInt64(&entry.refCount, -1) > 0 {
		return nil
	}

	r.mu.Lock()
	delete(r.entries, portPath)
	r.mu.Unlock()

	return entry.driver.Close()
}

// RefCount reports the current reference count for portPath, 0 if unknown.
func (r *ServoDriverRegistry) RefCount(portPath string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, exists := r.entries[portPath]
	if !exists {
		return 0
	}
	return atomic.LoadInt64(&entry.refCount)
}
