package controllers

import (
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cast"

	"mqd/internal/models"
	"mqd/internal/providers"
	"mqd/internal/services"
)

const maxRequestBodySize = 1 << 20 // 1 MB

type ApiController struct {
	logger  providers.Logger
	service services.AnalysisServiceInterface
	cache   providers.CacheProviderInterface
}

func NewApiController(logger providers.Logger, service services.AnalysisServiceInterface, cache providers.CacheProviderInterface) *ApiController {
	return &ApiController{
		logger:  logger,
		service: service,
		cache:   cache,
	}
}

func getCommunity(r *http.Request) string {
	c := r.URL.Query().Get("c")
	if c == "" {
		return services.DefaultCommunity
	}
	return c
}

func (ac *ApiController) serveFromCacheOrCompute(w http.ResponseWriter, cacheKey string, compute func() (any, bool)) {
	if data, ok := ac.cache.Get(cacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	result, ok := compute()
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	gson, err := json.Marshal(result)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ac.cache.Set(cacheKey, gson)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

func (ac *ApiController) ReceiveObservation(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var payload models.Observation
	err := json.NewDecoder(r.Body).Decode(&payload)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if payload.Community == "" {
		payload.Community = services.DefaultCommunity
	}
	if err := payload.Validate(time.Now()); err != nil {
		ac.logger.Warnf(providers.TypePost, "Rejected observation: %s", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ac.service.AddObservation(&payload)
	w.WriteHeader(http.StatusCreated)
}

func (ac *ApiController) GetAssessment(w http.ResponseWriter, r *http.Request) {
	c := getCommunity(r)
	u := r.URL.Query().Get("u")
	ac.serveFromCacheOrCompute(w, "assess:"+c+":"+u, func() (any, bool) {
		assessment, ok := ac.service.Assess(c, u)
		return assessment, ok
	})
}

type authorResponse struct {
	UserID     string                  `json:"userId"`
	Username   string                  `json:"username"`
	PostCount  int                     `json:"postCount"`
	SeenPosts  int                     `json:"seenPosts"`
	Engagement models.EngagementTotals `json:"engagement"`
	FirstSeen  time.Time               `json:"firstSeen"`
	LastSeen   time.Time               `json:"lastSeen"`
}

func (ac *ApiController) GetAuthor(w http.ResponseWriter, r *http.Request) {
	c := getCommunity(r)
	u := r.URL.Query().Get("u")
	ac.serveFromCacheOrCompute(w, "author:"+c+":"+u, func() (any, bool) {
		rec, ok := ac.service.GetAuthor(c, u)
		if !ok {
			return nil, false
		}
		return authorResponse{
			UserID:     rec.UserID,
			Username:   rec.Username,
			PostCount:  len(rec.Posts),
			SeenPosts:  rec.SeenCount(),
			Engagement: rec.Engagement,
			FirstSeen:  rec.FirstSeen,
			LastSeen:   rec.LastSeen,
		}, true
	})
}

func (ac *ApiController) GetAuthors(w http.ResponseWriter, r *http.Request) {
	c := getCommunity(r)
	limit := cast.ToInt(r.URL.Query().Get("limit"))
	ac.serveFromCacheOrCompute(w, "authors:"+c+":"+cast.ToString(limit), func() (any, bool) {
		return ac.service.GetAuthors(c, limit), true
	})
}

func (ac *ApiController) GetCommunities(w http.ResponseWriter, r *http.Request) {
	ac.serveFromCacheOrCompute(w, "communities", func() (any, bool) {
		return ac.service.GetCommunities(), true
	})
}
