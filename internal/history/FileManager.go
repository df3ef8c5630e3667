package history

import (
	"os"

	json "github.com/goccy/go-json"

	"mqd/internal/history/interfaces"
	"mqd/internal/models"
	"mqd/internal/providers"
	"mqd/internal/services"
)

type FileManager struct {
	service    services.AnalysisServiceInterface
	compressor interfaces.CompressorInterface
	logger     providers.Logger
}

func NewFileManager(compressor interfaces.CompressorInterface, service services.AnalysisServiceInterface, logger providers.Logger) *FileManager {
	return &FileManager{
		compressor: compressor,
		service:    service,
		logger:     logger,
	}
}

func (f *FileManager) SaveToFile(fileName string) error {
	snapshot := f.service.GetSnapshot()

	jsonData, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	data, err := f.compressor.Compress(jsonData)
	if err != nil {
		return err
	}

	tmpFile := fileName + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return err
	}

	_, err = file.Write(data)
	if err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}

	return os.Rename(tmpFile, fileName)
}

func (f *FileManager) Close() {
	f.compressor.Close()
}

func (f *FileManager) LoadFromFile(fileName string) error {
	data, err := os.ReadFile(fileName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	decompressedData, err := f.compressor.Decompress(data)
	if err != nil {
		return err
	}

	// Current format: versioned envelope with per-community author maps
	var snapshot models.StorageV2
	if err := json.Unmarshal(decompressedData, &snapshot); err == nil && snapshot.Communities != nil {
		for community, cd := range snapshot.Communities {
			if cd == nil || cd.Authors == nil {
				continue
			}
			f.service.PutCommunityData(community, cd.Authors)
		}
		return nil
	}

	// Legacy format: a bare userId -> author map, no version, no communities
	f.logger.Warnf(providers.TypeApp, "Inconsistent DB found, try to migrate from old data format")
	var legacy map[string]*models.AuthorPersistence
	if err := json.Unmarshal(decompressedData, &legacy); err != nil || len(legacy) == 0 {
		f.logger.Warnf(providers.TypeApp, "Migration failed")
		return err
	}
	f.service.PutCommunityData(services.DefaultCommunity, legacy)
	f.logger.Warnf(providers.TypeApp, "Migration from legacy format successful")

	return nil
}
