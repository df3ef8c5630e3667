package history

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"mqd/internal/history/interfaces"
	"mqd/internal/models"
	"mqd/internal/providers"
	"mqd/internal/structures"
)

// ColdEntry represents a single evicted author in cold storage.
type ColdEntry struct {
	Author    *models.AuthorPersistence `json:"author"`
	EvictedAt time.Time                 `json:"evicted_at"`
}

// ColdFile is the on-disk format for one community's cold storage.
type ColdFile struct {
	Entries map[string]*ColdEntry `json:"entries"`
}

// ColdStorage parks idle authors on disk and hands them back when they show
// up again. Implements models.ColdStorageInterface (Has, Evict, Restore);
// Flush is the only method that touches disk for writes.
type ColdStorage struct {
	mu         sync.RWMutex
	dir        string
	index      map[string]map[string]struct{}   // community -> set of author IDs
	pending    map[string]map[string]*ColdEntry // community -> entries awaiting flush
	restored   map[string]map[string]struct{}   // community -> authors to lazy-delete
	loaded     map[string]*ColdFile             // community -> cached cold file
	coldTTL    time.Duration
	compressor interfaces.CompressorInterface
	logger     providers.Logger
}

func NewColdStorage(dir string, coldTTL time.Duration, compressor interfaces.CompressorInterface, logger providers.Logger) *ColdStorage {
	return &ColdStorage{
		dir:        dir,
		index:      make(map[string]map[string]struct{}),
		pending:    make(map[string]map[string]*ColdEntry),
		restored:   make(map[string]map[string]struct{}),
		loaded:     make(map[string]*ColdFile),
		coldTTL:    coldTTL,
		compressor: compressor,
		logger:     logger,
	}
}

// Has checks whether an author is parked in cold storage (index or pending).
func (cs *ColdStorage) Has(community, userID string) bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	if ids, ok := cs.index[community]; ok {
		_, exists := ids[userID]
		return exists
	}
	return false
}

// Evict buffers an author for the next flush. No disk I/O here.
func (cs *ColdStorage) Evict(community, userID string, rec *models.AuthorPersistence) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	entry := &ColdEntry{
		Author:    rec,
		EvictedAt: time.Now(),
	}

	if cs.pending[community] == nil {
		cs.pending[community] = make(map[string]*ColdEntry)
	}
	cs.pending[community][userID] = entry

	if cs.index[community] == nil {
		cs.index[community] = make(map[string]struct{})
	}
	cs.index[community][userID] = struct{}{}
}

// Restore pulls an author back out of cold storage (pending or disk).
// Disk files are lazy-loaded; the on-disk delete happens at the next Flush.
func (cs *ColdStorage) Restore(community, userID string) (*models.AuthorPersistence, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	// 1. Pending buffer first (not yet flushed to disk)
	if entries, ok := cs.pending[community]; ok {
		if entry, ok := entries[userID]; ok {
			rec := entry.Author
			delete(entries, userID)
			if len(entries) == 0 {
				delete(cs.pending, community)
			}
			delete(cs.index[community], userID)
			return rec, nil
		}
	}

	// 2. Lazy load: read the cold file once, cache it
	coldFile := cs.getOrLoadColdFile(community)
	if coldFile == nil {
		delete(cs.index[community], userID)
		return nil, nil
	}

	entry, ok := coldFile.Entries[userID]
	if !ok {
		delete(cs.index[community], userID)
		return nil, nil
	}

	// 3. Lazy delete: the file rewrite happens in Flush()
	if cs.restored[community] == nil {
		cs.restored[community] = make(map[string]struct{})
	}
	cs.restored[community][userID] = struct{}{}
	delete(cs.index[community], userID)

	return entry.Author, nil
}

// Flush writes pending entries, applies lazy deletes, and drops entries
// older than coldTTL.
func (cs *ColdStorage) Flush() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	communities := make(map[string]struct{})
	for c := range cs.pending {
		communities[c] = struct{}{}
	}
	for c := range cs.restored {
		communities[c] = struct{}{}
	}

	for community := range communities {
		coldFile := cs.getOrLoadColdFile(community)
		if coldFile == nil {
			coldFile = &ColdFile{Entries: make(map[string]*ColdEntry)}
		}

		if restoredIDs, ok := cs.restored[community]; ok {
			for id := range restoredIDs {
				delete(coldFile.Entries, id)
			}
		}

		if entries, ok := cs.pending[community]; ok {
			for id, entry := range entries {
				coldFile.Entries[id] = entry
			}
		}

		if cs.coldTTL > 0 {
			now := time.Now()
			for id, entry := range coldFile.Entries {
				if now.Sub(entry.EvictedAt) > cs.coldTTL {
					delete(coldFile.Entries, id)
					if idx, ok := cs.index[community]; ok {
						delete(idx, id)
					}
				}
			}
		}

		if len(coldFile.Entries) > 0 {
			if err := cs.writeColdFile(community, coldFile); err != nil {
				return err
			}
			cs.loaded[community] = coldFile
		} else {
			os.Remove(cs.coldFilePath(community))
			delete(cs.loaded, community)
		}

		// Commit only after a successful write
		delete(cs.pending, community)
		delete(cs.restored, community)
	}
	return nil
}

// RestoreIndex scans the cold storage directory and rebuilds the in-memory
// index of parked author IDs. Called once at startup.
func (cs *ColdStorage) RestoreIndex() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if err := os.MkdirAll(cs.dir, 0755); err != nil {
		return err
	}

	files, err := filepath.Glob(filepath.Join(cs.dir, "*.cold.zst"))
	if err != nil {
		return err
	}

	for _, file := range files {
		community := cs.extractCommunityName(file)
		coldFile := cs.loadColdFileFromDisk(community)
		if coldFile == nil {
			continue
		}

		cs.index[community] = make(map[string]struct{}, len(coldFile.Entries))
		for id := range coldFile.Entries {
			cs.index[community][id] = struct{}{}
		}
		// Only index keys; entry data stays on disk until needed
	}
	return nil
}

func (cs *ColdStorage) Close() {
	cs.compressor.Close()
}

// getOrLoadColdFile returns the cached cold file or loads it from disk.
// Must be called under cs.mu.Lock().
func (cs *ColdStorage) getOrLoadColdFile(community string) *ColdFile {
	if cf, ok := cs.loaded[community]; ok {
		return cf
	}
	cf := cs.loadColdFileFromDisk(community)
	if cf != nil {
		cs.loaded[community] = cf
	}
	return cf
}

func (cs *ColdStorage) loadColdFileFromDisk(community string) *ColdFile {
	path := cs.coldFilePath(community)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			cs.logger.Errorf(providers.TypeApp, "Failed to read cold file %s: %s", path, err)
		}
		return nil
	}

	decompressed, err := cs.compressor.Decompress(data)
	if err != nil {
		cs.logger.Errorf(providers.TypeApp, "Failed to decompress cold file %s: %s", path, err)
		return nil
	}

	var cf ColdFile
	if err := json.Unmarshal(decompressed, &cf); err != nil {
		cs.logger.Errorf(providers.TypeApp, "Failed to parse cold file %s: %s", path, err)
		return nil
	}

	if cf.Entries == nil {
		cf.Entries = make(map[string]*ColdEntry)
	}
	return &cf
}

// writeColdFile serializes and atomically writes a cold file to disk.
func (cs *ColdStorage) writeColdFile(community string, cf *ColdFile) error {
	jsonData, err := json.Marshal(cf)
	if err != nil {
		return err
	}

	compressed, err := cs.compressor.Compress(jsonData)
	if err != nil {
		return err
	}

	path := cs.coldFilePath(community)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, compressed, 0644); err != nil {
		return err
	}

	return os.Rename(tmpFile, path)
}

func (cs *ColdStorage) coldFilePath(community string) string {
	return filepath.Join(cs.dir, community+".cold.zst")
}

// extractCommunityName turns "default.cold.zst" into "default".
func (cs *ColdStorage) extractCommunityName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, ".cold.zst")
}

// NewColdStorageProvider builds cold storage from the application config.
func NewColdStorageProvider(conf *structures.Config, compressor interfaces.CompressorInterface, logger providers.Logger) *ColdStorage {
	return NewColdStorage(conf.Analysis.ColdStorageDir, conf.Analysis.ColdTTL, compressor, logger)
}
