package models

import (
	"sync"
	"time"
)

const (
	DefaultMaxPostsToAnalyze   = 50
	DefaultMinPostsForAnalysis = 5
	defaultMaxAuthors          = 100000
)

// ColdStorageInterface abstracts cold storage for stale-author eviction.
// Implemented by history.ColdStorage. Nil means no cold storage.
type ColdStorageInterface interface {
	Has(community, userID string) bool
	Evict(community, userID string, rec *AuthorPersistence)
	Restore(community, userID string) (*AuthorPersistence, error)
}

type authorEntry struct {
	mu  sync.Mutex
	rec *AuthorRecord
}

// AuthorStore holds the author records of one community. Merges for the same
// author are serialized by a per-entry mutex around the read-modify-write;
// different authors proceed in parallel under the shared read lock.
type AuthorStore struct {
	mu         sync.RWMutex
	community  string
	authors    map[string]*authorEntry
	maxAuthors int
	maxPosts   int
	authorTTL  time.Duration
	cold       ColdStorageInterface
}

func NewAuthorStore(community string, maxAuthors, maxPosts int, authorTTL time.Duration, cold ColdStorageInterface) *AuthorStore {
	if maxAuthors == 0 {
		maxAuthors = defaultMaxAuthors
	}
	if maxPosts <= 0 {
		maxPosts = DefaultMaxPostsToAnalyze
	}
	return &AuthorStore{
		community:  community,
		authors:    make(map[string]*authorEntry),
		maxAuthors: maxAuthors,
		maxPosts:   maxPosts,
		authorTTL:  authorTTL,
		cold:       cold,
	}
}

// Merge folds one observation into the store. The observation must already
// be validated; MergeObservation re-checks and rejects malformed input.
func (as *AuthorStore) Merge(obs *Observation, now time.Time) error {
	if obs == nil {
		return &ValidationError{Field: "observation", Reason: "is required"}
	}

	// Fast path: author already resident (read lock only)
	as.mu.RLock()
	entry, ok := as.authors[obs.UserID]
	as.mu.RUnlock()

	if !ok {
		var err error
		entry, err = as.admit(obs.UserID)
		if err != nil {
			return err
		}
	}

	entry.mu.Lock()
	rec, err := MergeObservation(entry.rec, obs, now, as.maxPosts)
	if err != nil {
		fresh := entry.rec == nil
		entry.mu.Unlock()
		if fresh {
			// A rejected observation must not leave a phantom author
			// occupying a maxAuthors slot.
			as.dropIfEmpty(obs.UserID, entry)
		}
		return err
	}
	entry.rec = rec
	entry.mu.Unlock()
	return nil
}

// dropIfEmpty removes an admitted entry that never received a record. Locks
// in the same order as EvictExpired: store first, then entry.
func (as *AuthorStore) dropIfEmpty(userID string, entry *authorEntry) {
	as.mu.Lock()
	defer as.mu.Unlock()

	cur, ok := as.authors[userID]
	if !ok || cur != entry {
		return
	}
	entry.mu.Lock()
	empty := entry.rec == nil
	entry.mu.Unlock()
	if empty {
		delete(as.authors, userID)
	}
}

// admit creates the entry for a previously unseen author, restoring it from
// cold storage when available and refusing new authors beyond maxAuthors.
func (as *AuthorStore) admit(userID string) (*authorEntry, error) {
	as.mu.Lock()
	defer as.mu.Unlock()

	if entry, ok := as.authors[userID]; ok {
		return entry, nil
	}

	entry := &authorEntry{}
	if as.cold != nil && as.cold.Has(as.community, userID) {
		if p, err := as.cold.Restore(as.community, userID); err == nil {
			entry.rec = FromPersistence(p)
		}
	}

	if entry.rec == nil && as.maxAuthors > 0 && len(as.authors) >= as.maxAuthors {
		return nil, &CapacityError{Community: as.community, Max: as.maxAuthors}
	}

	as.authors[userID] = entry
	return entry, nil
}

// Get returns a snapshot of one author record, pulling it back from cold
// storage if it was evicted. ok is false for authors never observed.
func (as *AuthorStore) Get(userID string) (*AuthorRecord, bool) {
	as.mu.RLock()
	entry, ok := as.authors[userID]
	as.mu.RUnlock()

	if ok {
		entry.mu.Lock()
		defer entry.mu.Unlock()
		if entry.rec == nil {
			return nil, false
		}
		return entry.rec.Clone(), true
	}

	if as.cold != nil && as.cold.Has(as.community, userID) {
		entry, err := as.admit(userID)
		if err != nil || entry.rec == nil {
			return nil, false
		}
		entry.mu.Lock()
		defer entry.mu.Unlock()
		return entry.rec.Clone(), true
	}
	return nil, false
}

func (as *AuthorStore) Len() int {
	as.mu.RLock()
	defer as.mu.RUnlock()
	return len(as.authors)
}

// UserIDs returns up to limit observed author IDs. limit <= 0 means all.
func (as *AuthorStore) UserIDs(limit int) []string {
	as.mu.RLock()
	defer as.mu.RUnlock()
	ids := make([]string, 0, len(as.authors))
	for id := range as.authors {
		ids = append(ids, id)
		if limit > 0 && len(ids) >= limit {
			break
		}
	}
	return ids
}

// GetData exports all resident records in persistence form.
func (as *AuthorStore) GetData() map[string]*AuthorPersistence {
	as.mu.RLock()
	defer as.mu.RUnlock()

	result := make(map[string]*AuthorPersistence, len(as.authors))
	for id, entry := range as.authors {
		entry.mu.Lock()
		if entry.rec != nil {
			result[id] = entry.rec.ToPersistence()
		}
		entry.mu.Unlock()
	}
	return result
}

// PutData replaces the store content from a snapshot.
func (as *AuthorStore) PutData(data map[string]*AuthorPersistence) {
	as.mu.Lock()
	defer as.mu.Unlock()

	as.authors = make(map[string]*authorEntry, len(data))
	for id, p := range data {
		if p == nil {
			continue
		}
		as.authors[id] = &authorEntry{rec: FromPersistence(p)}
	}
}

// EvictExpired moves authors idle for longer than authorTTL to cold storage.
// Returns the number of evicted authors.
func (as *AuthorStore) EvictExpired(now time.Time) int {
	if as.authorTTL <= 0 {
		return 0
	}

	as.mu.Lock()
	defer as.mu.Unlock()

	evicted := 0
	for id, entry := range as.authors {
		entry.mu.Lock()
		stale := entry.rec != nil && now.Sub(entry.rec.LastSeen) > as.authorTTL
		if stale && as.cold != nil {
			as.cold.Evict(as.community, id, entry.rec.ToPersistence())
		}
		entry.mu.Unlock()
		if stale {
			delete(as.authors, id)
			evicted++
		}
	}
	return evicted
}
