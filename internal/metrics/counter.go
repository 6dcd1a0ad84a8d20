package metrics

import (
	"log"
	"sync"
)

var (
	globalMu    sync.Mutex
	globalStore *Store
)

// Init opens the process-wide store at dbPath. Calling it again after a successful open is a
// no-op; a failed open may be retried.
func Init(dbPath string) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalStore != nil {
		return nil
	}
	store, err := NewStore(dbPath)
	if err != nil {
		log.Printf("metrics: failed to initialize store: %v", err)
		return err
	}
	globalStore = store
	return nil
}

func current() *Store {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalStore
}

// Recorder forwards finished scans to the global store. It satisfies slacksearch.ScanRecorder
// and silently drops records when Init has not succeeded.
type Recorder struct{}

// RecordScan implements slacksearch.ScanRecorder.
func (Recorder) RecordScan(rows int, err error) {
	store := current()
	if store == nil {
		return
	}
	if recErr := store.RecordScan(rows, err); recErr != nil {
		log.Printf("metrics: failed to record scan: %v", recErr)
	}
}

// Stats returns cumulative counts for every mode, or nil when the store is not initialized.
func Stats() map[Mode]int64 {
	store := current()
	if store == nil {
		return nil
	}

	stats, err := store.Totals()
	if err != nil {
		log.Printf("metrics: failed to get stats: %v", err)
		return nil
	}
	return stats
}

// Close closes the global store.
func Close() error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalStore == nil {
		return nil
	}
	err := globalStore.Close()
	globalStore = nil
	return err
}

// SetStoreForTesting replaces the global store. Pass nil to reset.
func SetStoreForTesting(store *Store) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalStore = store
}
