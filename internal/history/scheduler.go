package history

import (
	"sync"
	"time"

	"github.com/roylee0704/gron"

	"mqd/internal/history/interfaces"
	"mqd/internal/providers"
	"mqd/internal/services"
	"mqd/internal/structures"
)

type Scheduler struct {
	config      *structures.Config
	logger      providers.Logger
	service     services.AnalysisServiceInterface
	fileManager *FileManager
	coldStorage *ColdStorage
	metrics     providers.MetricsProviderInterface
	cron        *gron.Cron
	opsMu       sync.Mutex
}

func (s *Scheduler) Init() {
	s.cron = gron.New()
	saveInterval := s.config.Persistence.SaveInterval
	analysisInterval := s.config.Analysis.Interval

	s.cron.AddFunc(gron.Every(saveInterval*time.Second), func() {
		s.opsMu.Lock()
		defer s.opsMu.Unlock()

		start := time.Now()
		err := s.fileManager.SaveToFile(s.config.Persistence.FilePath)
		if err != nil {
			s.logger.Errorf(providers.TypeApp, "Error while persisting data: %s", err)
			return
		}
		s.metrics.ObservePersistenceDuration(time.Since(start))
		s.logger.Infof(providers.TypeApp, "Persisted data to file %s", s.config.Persistence.FilePath)
	})

	s.cron.AddFunc(gron.Every(analysisInterval*time.Second), func() {
		s.opsMu.Lock()
		defer s.opsMu.Unlock()

		merged, dropped := s.service.AggregateObservations()
		if dropped > 0 {
			s.logger.Warnf(providers.TypeApp, "Aggregated %d observations, dropped %d", merged, dropped)
		} else {
			s.logger.Infof(providers.TypeApp, "Aggregated %d observations", merged)
		}

		evicted := s.service.EvictStale(time.Now())
		if evicted > 0 {
			s.logger.Infof(providers.TypeApp, "Evicted %d idle authors to cold storage", evicted)
		}
		if err := s.coldStorage.Flush(); err != nil {
			s.logger.Errorf(providers.TypeApp, "Error while flushing cold storage: %s", err)
		}

		for _, community := range s.service.GetCommunities() {
			s.metrics.SetAuthorsTotal(community, s.service.GetAuthorsCount(community))
		}
	})

	s.cron.Start()
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

func (s *Scheduler) Restore() error {
	if err := s.coldStorage.RestoreIndex(); err != nil {
		return err
	}
	return s.fileManager.LoadFromFile(s.config.Persistence.FilePath)
}

func (s *Scheduler) Persist() error {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	s.logger.Infof(providers.TypeApp, "Persisting author data to file...")
	start := time.Now()
	if err := s.fileManager.SaveToFile(s.config.Persistence.FilePath); err != nil {
		s.logger.Errorf(providers.TypeApp, "Error while persisting data: %s", err)
		return err
	}
	s.metrics.ObservePersistenceDuration(time.Since(start))
	if err := s.coldStorage.Flush(); err != nil {
		s.logger.Errorf(providers.TypeApp, "Error while flushing cold storage: %s", err)
		return err
	}
	return nil
}

func NewScheduler(config *structures.Config, logger providers.Logger, service services.AnalysisServiceInterface, fileManager *FileManager, coldStorage *ColdStorage, metrics providers.MetricsProviderInterface) interfaces.SchedulerInterface {
	return &Scheduler{
		config:      config,
		logger:      logger,
		service:     service,
		fileManager: fileManager,
		coldStorage: coldStorage,
		metrics:     metrics,
	}
}
