package services

import (
	"sync"
	"time"

	"go.uber.org/atomic"

	"mqd/internal/analysis"
	"mqd/internal/models"
	"mqd/internal/structures"
)

const DefaultCommunity = "default"

type AnalysisServiceInterface interface {
	AddObservation(obs *models.Observation)
	GetBufferSize() int
	AggregateObservations() (merged, dropped int)
	Assess(community, userID string) (analysis.Assessment, bool)
	GetAuthor(community, userID string) (*models.AuthorRecord, bool)
	GetAuthors(community string, limit int) []string
	GetAuthorsCount(community string) int
	GetCommunities() []string
	GetSnapshot() *models.StorageV2
	PutCommunityData(community string, authors map[string]*models.AuthorPersistence)
	EvictStale(now time.Time) int
}

// AnalysisService buffers incoming observations in a pair of swap buffers and
// folds the drained batch into per-community author stores on the aggregation
// interval. Scoring runs on demand over immutable record snapshots.
type AnalysisService struct {
	conf *structures.Config
	cold models.ColdStorageInterface

	bufMu   sync.Mutex
	bufOne  []*models.Observation
	bufTwo  []*models.Observation
	flipped *atomic.Bool

	storesMu sync.RWMutex
	stores   map[string]*models.AuthorStore
}

func NewAnalysisService(conf *structures.Config, cold models.ColdStorageInterface) AnalysisServiceInterface {
	return &AnalysisService{
		conf:    conf,
		cold:    cold,
		bufOne:  make([]*models.Observation, 0),
		bufTwo:  make([]*models.Observation, 0),
		flipped: atomic.NewBool(false),
		stores:  make(map[string]*models.AuthorStore),
	}
}

func (s *AnalysisService) AddObservation(obs *models.Observation) {
	if obs == nil {
		return
	}
	if obs.Community == "" {
		obs.Community = DefaultCommunity
	}
	s.bufMu.Lock()
	defer s.bufMu.Unlock()
	if s.flipped.Load() {
		s.bufTwo = append(s.bufTwo, obs)
	} else {
		s.bufOne = append(s.bufOne, obs)
	}
}

func (s *AnalysisService) GetBufferSize() int {
	s.bufMu.Lock()
	defer s.bufMu.Unlock()
	if s.flipped.Load() {
		return len(s.bufTwo)
	}
	return len(s.bufOne)
}

// drain switches the active buffer and returns the now-inactive batch.
func (s *AnalysisService) drain() []*models.Observation {
	s.bufMu.Lock()
	defer s.bufMu.Unlock()

	var batch []*models.Observation
	if s.flipped.Load() {
		batch = s.bufTwo
		s.bufTwo = make([]*models.Observation, 0)
	} else {
		batch = s.bufOne
		s.bufOne = make([]*models.Observation, 0)
	}
	s.flipped.Store(!s.flipped.Load())
	return batch
}

// AggregateObservations merges the buffered batch into the author stores.
// dropped counts observations refused by capacity or re-validation.
func (s *AnalysisService) AggregateObservations() (merged, dropped int) {
	now := time.Now()
	for _, obs := range s.drain() {
		store, err := s.getOrCreateStore(obs.Community)
		if err != nil {
			dropped++
			continue
		}
		if err := store.Merge(obs, now); err != nil {
			dropped++
			continue
		}
		merged++
	}
	return merged, dropped
}

func (s *AnalysisService) getOrCreateStore(community string) (*models.AuthorStore, error) {
	s.storesMu.RLock()
	store, ok := s.stores[community]
	s.storesMu.RUnlock()
	if ok {
		return store, nil
	}

	s.storesMu.Lock()
	defer s.storesMu.Unlock()
	if store, ok = s.stores[community]; ok {
		return store, nil
	}
	if max := s.conf.Analysis.MaxCommunities; max > 0 && len(s.stores) >= max {
		return nil, &models.CapacityError{Community: community, Max: max}
	}
	store = models.NewAuthorStore(
		community,
		s.conf.Analysis.MaxAuthors,
		s.conf.Analysis.MaxPostsToAnalyze,
		s.conf.Analysis.AuthorTTL,
		s.cold,
	)
	s.stores[community] = store
	return store, nil
}

func (s *AnalysisService) getStore(community string) (*models.AuthorStore, bool) {
	s.storesMu.RLock()
	defer s.storesMu.RUnlock()
	store, ok := s.stores[community]
	return store, ok
}

// Assess scores one author on demand. ok is false only for authors never
// observed in the community; a known author with thin history still gets the
// insufficient-data assessment.
func (s *AnalysisService) Assess(community, userID string) (analysis.Assessment, bool) {
	rec, ok := s.GetAuthor(community, userID)
	if !ok {
		return analysis.Assessment{}, false
	}
	return analysis.Assess(rec, s.conf.Analysis.MinPostsForAnalysis), true
}

func (s *AnalysisService) GetAuthor(community, userID string) (*models.AuthorRecord, bool) {
	store, ok := s.getStore(community)
	if !ok {
		return nil, false
	}
	return store.Get(userID)
}

func (s *AnalysisService) GetAuthors(community string, limit int) []string {
	store, ok := s.getStore(community)
	if !ok {
		return nil
	}
	return store.UserIDs(limit)
}

func (s *AnalysisService) GetAuthorsCount(community string) int {
	store, ok := s.getStore(community)
	if !ok {
		return 0
	}
	return store.Len()
}

func (s *AnalysisService) GetCommunities() []string {
	s.storesMu.RLock()
	defer s.storesMu.RUnlock()
	out := make([]string, 0, len(s.stores))
	for c := range s.stores {
		out = append(out, c)
	}
	return out
}

func (s *AnalysisService) GetSnapshot() *models.StorageV2 {
	s.storesMu.RLock()
	defer s.storesMu.RUnlock()

	snapshot := &models.StorageV2{
		Version:     models.StorageVersion,
		Communities: make(map[string]*models.CommunityData, len(s.stores)),
	}
	for c, store := range s.stores {
		snapshot.Communities[c] = &models.CommunityData{Authors: store.GetData()}
	}
	return snapshot
}

func (s *AnalysisService) PutCommunityData(community string, authors map[string]*models.AuthorPersistence) {
	store, err := s.getOrCreateStore(community)
	if err != nil {
		return
	}
	store.PutData(authors)
}

// EvictStale moves idle authors to cold storage across all communities.
func (s *AnalysisService) EvictStale(now time.Time) int {
	s.storesMu.RLock()
	defer s.storesMu.RUnlock()
	evicted := 0
	for _, store := range s.stores {
		evicted += store.EvictExpired(now)
	}
	return evicted
}
