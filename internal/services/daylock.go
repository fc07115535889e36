package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"tattootrack/internal/schedule"
)

// dayLocks serializes booking writes per calendar day within the process.
type dayLocks struct {
	mu    sync.Mutex
	locks map[string]*dayLock
}

type dayLock struct {
	mu   sync.Mutex
	refs int
}

func newDayLocks() *dayLocks {
	return &dayLocks{locks: make(map[string]*dayLock)}
}

// lock acquires every key in sorted order and returns the release func.
func (d *dayLocks) lock(keys ...string) func() {
	keys = uniqueSorted(keys)

	held := make([]*dayLock, 0, len(keys))
	for _, k := range keys {
		d.mu.Lock()
		l, ok := d.locks[k]
		if !ok {
			l = &dayLock{}
			d.locks[k] = l
		}
		l.refs++
		d.mu.Unlock()

		l.mu.Lock()
		held = append(held, l)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			d.mu.Lock()
			held[i].refs--
			if held[i].refs == 0 {
				delete(d.locks, keys[i])
			}
			d.mu.Unlock()
		}
	}
}

func uniqueSorted(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// inDayTransaction runs fn in a DB transaction that holds the booking lock
// for each day. On postgres the lock is also taken as a transaction-scoped
// advisory lock so separate API instances serialize too.
func inDayTransaction(ctx context.Context, db *gorm.DB, locks *dayLocks, days []time.Time, fn func(tx *gorm.DB) error) error {
	keys := make([]string, 0, len(days))
	for _, d := range days {
		keys = append(keys, "appointments:"+schedule.DateKey(d))
	}
	keys = uniqueSorted(keys)

	release := locks.lock(keys...)
	defer release()

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			for _, k := range keys {
				if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", k).Error; err != nil {
					return err
				}
			}
		}
		return fn(tx)
	})
}
