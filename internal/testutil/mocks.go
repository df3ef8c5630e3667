package testutil

import (
	"sync"
	"time"

	"mqd/internal/analysis"
	"mqd/internal/models"
	"mqd/internal/providers"
)

// MockLogger implements providers.Logger and records calls.
type MockLogger struct {
	mu   sync.Mutex
	Logs []LogEntry
}

type LogEntry struct {
	Level  string
	Type   providers.TypeEnum
	Format string
	Args   []interface{}
}

func (m *MockLogger) record(level string, t providers.TypeEnum, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogEntry{Level: level, Type: t, Format: format, Args: args})
}

func (m *MockLogger) Errorf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("error", t, format, args...)
}
func (m *MockLogger) Warnf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("warn", t, format, args...)
}
func (m *MockLogger) Debugf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("debug", t, format, args...)
}
func (m *MockLogger) Infof(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("info", t, format, args...)
}
func (m *MockLogger) Fatalf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("fatal", t, format, args...)
}
func (m *MockLogger) Close() {}

// MockAnalysisService implements services.AnalysisServiceInterface.
type MockAnalysisService struct {
	mu              sync.Mutex
	ObservationCalls []*models.Observation
	AggregateCalls  int
	Assessments     map[string]analysis.Assessment // key: "community:userID"
	Authors         map[string]*models.AuthorRecord
	AuthorLists     map[string][]string
	CommunitiesList []string
	PutCalls        []PutCommunityCall
	EvictedCount    int
	BufferSize      int
	Snapshot        *models.StorageV2
}

type PutCommunityCall struct {
	Community string
	Authors   map[string]*models.AuthorPersistence
}

func (m *MockAnalysisService) AddObservation(obs *models.Observation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ObservationCalls = append(m.ObservationCalls, obs)
}

func (m *MockAnalysisService) GetBufferSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.BufferSize
}

func (m *MockAnalysisService) AggregateObservations() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AggregateCalls++
	return len(m.ObservationCalls), 0
}

func (m *MockAnalysisService) Assess(community, userID string) (analysis.Assessment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Assessments[community+":"+userID]
	return a, ok
}

func (m *MockAnalysisService) GetAuthor(community, userID string) (*models.AuthorRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.Authors[community+":"+userID]
	return rec, ok
}

func (m *MockAnalysisService) GetAuthors(community string, limit int) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.AuthorLists[community]
	if limit > 0 && limit < len(list) {
		return list[:limit]
	}
	return list
}

func (m *MockAnalysisService) GetAuthorsCount(community string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.AuthorLists[community])
}

func (m *MockAnalysisService) GetCommunities() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CommunitiesList
}

func (m *MockAnalysisService) GetSnapshot() *models.StorageV2 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Snapshot != nil {
		return m.Snapshot
	}
	return &models.StorageV2{
		Version:     models.StorageVersion,
		Communities: make(map[string]*models.CommunityData),
	}
}

func (m *MockAnalysisService) PutCommunityData(community string, authors map[string]*models.AuthorPersistence) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutCalls = append(m.PutCalls, PutCommunityCall{Community: community, Authors: authors})
}

func (m *MockAnalysisService) EvictStale(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.EvictedCount
}

// MockCache implements providers.CacheProviderInterface.
type MockCache struct {
	mu   sync.Mutex
	Data map[string][]byte
}

func NewMockCache() *MockCache {
	return &MockCache{Data: make(map[string][]byte)}
}

func (m *MockCache) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.Data[key]
	return val, ok
}

func (m *MockCache) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Data[key] = value
}

// MockCompressor implements interfaces.CompressorInterface with injectable behavior.
type MockCompressor struct {
	CompressFn   func([]byte) ([]byte, error)
	DecompressFn func([]byte) ([]byte, error)
}

func (m *MockCompressor) Compress(val []byte) ([]byte, error) {
	if m.CompressFn != nil {
		return m.CompressFn(val)
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Decompress(val []byte) ([]byte, error) {
	if m.DecompressFn != nil {
		return m.DecompressFn(val)
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Close() {}
