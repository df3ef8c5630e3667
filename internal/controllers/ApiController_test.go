package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mqd/internal/analysis"
	"mqd/internal/models"
	"mqd/internal/providers"
)

// --- local mocks (scoped to controller tests) ---

type mockLogger struct{}

func (m *mockLogger) Errorf(_ providers.TypeEnum, _ string, _ ...interface{}) {}
func (m *mockLogger) Warnf(_ providers.TypeEnum, _ string, _ ...interface{})  {}
func (m *mockLogger) Debugf(_ providers.TypeEnum, _ string, _ ...interface{}) {}
func (m *mockLogger) Infof(_ providers.TypeEnum, _ string, _ ...interface{})  {}
func (m *mockLogger) Fatalf(_ providers.TypeEnum, _ string, _ ...interface{}) {}
func (m *mockLogger) Close()                                                  {}

type mockService struct {
	addCalls        []*models.Observation
	assessments     map[string]analysis.Assessment
	authors         map[string]*models.AuthorRecord
	authorLists     map[string][]string
	communitiesList []string
}

func (m *mockService) AddObservation(obs *models.Observation) { m.addCalls = append(m.addCalls, obs) }
func (m *mockService) GetBufferSize() int                     { return len(m.addCalls) }
func (m *mockService) AggregateObservations() (int, int)      { return 0, 0 }
func (m *mockService) Assess(community, userID string) (analysis.Assessment, bool) {
	a, ok := m.assessments[community+":"+userID]
	return a, ok
}
func (m *mockService) GetAuthor(community, userID string) (*models.AuthorRecord, bool) {
	rec, ok := m.authors[community+":"+userID]
	return rec, ok
}
func (m *mockService) GetAuthors(community string, limit int) []string {
	list := m.authorLists[community]
	if limit > 0 && limit < len(list) {
		return list[:limit]
	}
	return list
}
func (m *mockService) GetAuthorsCount(community string) int { return len(m.authorLists[community]) }
func (m *mockService) GetCommunities() []string             { return m.communitiesList }
func (m *mockService) GetSnapshot() *models.StorageV2       { return nil }
func (m *mockService) PutCommunityData(_ string, _ map[string]*models.AuthorPersistence) {
}
func (m *mockService) EvictStale(_ time.Time) int { return 0 }

type mockCache struct {
	data map[string][]byte
}

func newMockCache() *mockCache                     { return &mockCache{data: make(map[string][]byte)} }
func (m *mockCache) Get(key string) ([]byte, bool) { v, ok := m.data[key]; return v, ok }
func (m *mockCache) Set(key string, value []byte)  { m.data[key] = value }

// --- helpers ---

func newTestController(svc *mockService, cache *mockCache) *ApiController {
	return NewApiController(&mockLogger{}, svc, cache)
}

// --- ReceiveObservation tests ---

func TestReceiveObservation_ValidPayload(t *testing.T) {
	svc := &mockService{}
	ac := newTestController(svc, newMockCache())

	payload := `{"community":"golang","userId":"u1","username":"alice","post":{"id":"p1","content":"hello world"}}`
	req := httptest.NewRequest(http.MethodPost, "/observe", strings.NewReader(payload))
	rr := httptest.NewRecorder()

	ac.ReceiveObservation(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	require.Len(t, svc.addCalls, 1)
	assert.Equal(t, "golang", svc.addCalls[0].Community)
	assert.Equal(t, "u1", svc.addCalls[0].UserID)
	assert.Equal(t, "alice", svc.addCalls[0].Username)
	assert.Equal(t, "p1", svc.addCalls[0].Post.ID)
}

func TestReceiveObservation_InvalidJSON(t *testing.T) {
	svc := &mockService{}
	ac := newTestController(svc, newMockCache())

	req := httptest.NewRequest(http.MethodPost, "/observe", strings.NewReader("not json"))
	rr := httptest.NewRecorder()

	ac.ReceiveObservation(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, svc.addCalls)
}

func TestReceiveObservation_EmptyBody(t *testing.T) {
	svc := &mockService{}
	ac := newTestController(svc, newMockCache())

	req := httptest.NewRequest(http.MethodPost, "/observe", strings.NewReader(""))
	rr := httptest.NewRecorder()

	ac.ReceiveObservation(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestReceiveObservation_OversizedBody(t *testing.T) {
	svc := &mockService{}
	ac := newTestController(svc, newMockCache())

	big := strings.Repeat("x", maxRequestBodySize+1)
	req := httptest.NewRequest(http.MethodPost, "/observe", strings.NewReader(big))
	rr := httptest.NewRecorder()

	ac.ReceiveObservation(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestReceiveObservation_MissingUserID(t *testing.T) {
	svc := &mockService{}
	ac := newTestController(svc, newMockCache())

	payload := `{"username":"alice","post":{"id":"p1"}}`
	req := httptest.NewRequest(http.MethodPost, "/observe", strings.NewReader(payload))
	rr := httptest.NewRecorder()

	ac.ReceiveObservation(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, svc.addCalls)
}

func TestReceiveObservation_MissingPostID(t *testing.T) {
	svc := &mockService{}
	ac := newTestController(svc, newMockCache())

	payload := `{"userId":"u1","username":"alice","post":{"content":"no id"}}`
	req := httptest.NewRequest(http.MethodPost, "/observe", strings.NewReader(payload))
	rr := httptest.NewRecorder()

	ac.ReceiveObservation(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, svc.addCalls)
}

func TestReceiveObservation_DefaultCommunity(t *testing.T) {
	svc := &mockService{}
	ac := newTestController(svc, newMockCache())

	payload := `{"userId":"u1","username":"alice","post":{"id":"p1"}}`
	req := httptest.NewRequest(http.MethodPost, "/observe", strings.NewReader(payload))
	rr := httptest.NewRecorder()

	ac.ReceiveObservation(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	require.Len(t, svc.addCalls, 1)
	assert.Equal(t, "default", svc.addCalls[0].Community)
}

// --- GetAssessment tests ---

func TestGetAssessment_ReturnsJSON(t *testing.T) {
	svc := &mockService{
		assessments: map[string]analysis.Assessment{
			"default:u1": {
				QualityScore:    72,
				ConfidenceLevel: 80,
				Category:        analysis.CategoryHigh,
				Summary:         "High-quality contributor with genuine engagement",
			},
		},
	}
	ac := newTestController(svc, newMockCache())

	req := httptest.NewRequest(http.MethodGet, "/assessment?u=u1", nil)
	rr := httptest.NewRecorder()

	ac.GetAssessment(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var result analysis.Assessment
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, 72, result.QualityScore)
	assert.Equal(t, analysis.CategoryHigh, result.Category)
}

func TestGetAssessment_UnknownAuthor(t *testing.T) {
	svc := &mockService{assessments: map[string]analysis.Assessment{}}
	ac := newTestController(svc, newMockCache())

	req := httptest.NewRequest(http.MethodGet, "/assessment?u=ghost", nil)
	rr := httptest.NewRecorder()

	ac.GetAssessment(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetAssessment_WithCommunityParam(t *testing.T) {
	svc := &mockService{
		assessments: map[string]analysis.Assessment{
			"golang:u1": {QualityScore: 50},
		},
	}
	ac := newTestController(svc, newMockCache())

	req := httptest.NewRequest(http.MethodGet, "/assessment?c=golang&u=u1", nil)
	rr := httptest.NewRecorder()

	ac.GetAssessment(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

// --- GetAuthor tests ---

func TestGetAuthor_ReturnsJSON(t *testing.T) {
	svc := &mockService{
		authors: map[string]*models.AuthorRecord{
			"default:u1": {
				UserID:   "u1",
				Username: "alice",
				Posts:    []models.Post{{ID: "p1"}, {ID: "p2"}},
				Engagement: models.EngagementTotals{
					TotalLikes: 7,
				},
			},
		},
	}
	ac := newTestController(svc, newMockCache())

	req := httptest.NewRequest(http.MethodGet, "/author?u=u1", nil)
	rr := httptest.NewRecorder()

	ac.GetAuthor(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var result map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, "alice", result["username"])
	assert.EqualValues(t, 2, result["postCount"])
	engagement, ok := result["engagement"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 7, engagement["totalLikes"])
}

func TestGetAuthor_CamelCaseKeysOnly(t *testing.T) {
	svc := &mockService{
		authors: map[string]*models.AuthorRecord{
			"default:u1": {UserID: "u1", Username: "alice", Posts: []models.Post{{ID: "p1"}}},
		},
	}
	ac := newTestController(svc, newMockCache())

	req := httptest.NewRequest(http.MethodGet, "/author?u=u1", nil)
	rr := httptest.NewRecorder()

	ac.GetAuthor(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `"userId"`)
	assert.NotContains(t, body, `"UserID"`)
	assert.NotContains(t, body, `"Posts"`)
}

func TestGetAuthor_Unknown(t *testing.T) {
	svc := &mockService{authors: map[string]*models.AuthorRecord{}}
	ac := newTestController(svc, newMockCache())

	req := httptest.NewRequest(http.MethodGet, "/author?u=ghost", nil)
	rr := httptest.NewRecorder()

	ac.GetAuthor(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// --- GetAuthors tests ---

func TestGetAuthors_ReturnsJSON(t *testing.T) {
	svc := &mockService{
		authorLists: map[string][]string{"default": {"u1", "u2", "u3"}},
	}
	ac := newTestController(svc, newMockCache())

	req := httptest.NewRequest(http.MethodGet, "/authors", nil)
	rr := httptest.NewRecorder()

	ac.GetAuthors(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var result []string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, []string{"u1", "u2", "u3"}, result)
}

func TestGetAuthors_WithLimit(t *testing.T) {
	svc := &mockService{
		authorLists: map[string][]string{"default": {"u1", "u2", "u3"}},
	}
	ac := newTestController(svc, newMockCache())

	req := httptest.NewRequest(http.MethodGet, "/authors?limit=2", nil)
	rr := httptest.NewRecorder()

	ac.GetAuthors(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var result []string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Len(t, result, 2)
}

// --- GetCommunities tests ---

func TestGetCommunities_ReturnsJSON(t *testing.T) {
	svc := &mockService{communitiesList: []string{"default", "golang"}}
	ac := newTestController(svc, newMockCache())

	req := httptest.NewRequest(http.MethodGet, "/communities", nil)
	rr := httptest.NewRecorder()

	ac.GetCommunities(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var result []string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, []string{"default", "golang"}, result)
}

// --- Cache behavior tests ---

func TestCacheHit_ServiceNotCalled(t *testing.T) {
	cache := newMockCache()
	cachedData, _ := json.Marshal(map[string]int{"qualityScore": 99})
	cache.Set("assess:default:u1", cachedData)

	svc := &mockService{assessments: map[string]analysis.Assessment{}}
	ac := newTestController(svc, cache)

	req := httptest.NewRequest(http.MethodGet, "/assessment?u=u1", nil)
	rr := httptest.NewRecorder()

	ac.GetAssessment(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, string(cachedData), rr.Body.String())
}

func TestCacheMiss_SavesResult(t *testing.T) {
	cache := newMockCache()
	svc := &mockService{
		assessments: map[string]analysis.Assessment{
			"default:u1": {QualityScore: 42},
		},
	}
	ac := newTestController(svc, cache)

	req := httptest.NewRequest(http.MethodGet, "/assessment?u=u1", nil)
	rr := httptest.NewRecorder()

	ac.GetAssessment(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	val, ok := cache.Get("assess:default:u1")
	assert.True(t, ok)
	assert.NotEmpty(t, val)
}

func TestCacheKey_Communities(t *testing.T) {
	cache := newMockCache()
	svc := &mockService{communitiesList: []string{"default"}}
	ac := newTestController(svc, cache)

	req := httptest.NewRequest(http.MethodGet, "/communities", nil)
	rr := httptest.NewRecorder()

	ac.GetCommunities(rr, req)

	_, ok := cache.Get("communities")
	assert.True(t, ok)
}

func TestCacheKey_AssessmentIncludesCommunity(t *testing.T) {
	cache := newMockCache()
	svc := &mockService{
		assessments: map[string]analysis.Assessment{
			"golang:abc": {QualityScore: 10},
		},
	}
	ac := newTestController(svc, cache)

	req := httptest.NewRequest(http.MethodGet, "/assessment?c=golang&u=abc", nil)
	rr := httptest.NewRecorder()

	ac.GetAssessment(rr, req)

	_, ok := cache.Get("assess:golang:abc")
	assert.True(t, ok)
}

func TestNotFound_NotCached(t *testing.T) {
	cache := newMockCache()
	svc := &mockService{assessments: map[string]analysis.Assessment{}}
	ac := newTestController(svc, cache)

	req := httptest.NewRequest(http.MethodGet, "/assessment?u=ghost", nil)
	rr := httptest.NewRecorder()

	ac.GetAssessment(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	_, ok := cache.Get("assess:default:ghost")
	assert.False(t, ok)
}

// --- getCommunity helper tests ---

func TestGetCommunity_Default(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	assert.Equal(t, "default", getCommunity(req))
}

func TestGetCommunity_Custom(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test?c=golang", nil)
	assert.Equal(t, "golang", getCommunity(req))
}

func TestGetCommunity_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test?c=", nil)
	assert.Equal(t, "default", getCommunity(req))
}
