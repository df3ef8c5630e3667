package structures

import (
	"net/http"
	"time"
)

type Server struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required|uint|min:1"`
}

type Persistence struct {
	FilePath     string        `yaml:"filePath" validate:"required|unixPath"`
	SaveInterval time.Duration `yaml:"saveInterval" validate:"required|min:1"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" validate:"required|uint"`
	Dir   string `yaml:"dir" validate:"required|unixPath"`
}

type AnalysisConfig struct {
	Interval            time.Duration `yaml:"interval" validate:"required|min:1"`
	MaxPostsToAnalyze   int           `yaml:"maxPostsToAnalyze"`
	MinPostsForAnalysis int           `yaml:"minPostsForAnalysis"`
	MaxCommunities      int           `yaml:"maxCommunities"`
	MaxAuthors          int           `yaml:"maxAuthors"`
	AuthorTTL           time.Duration `yaml:"authorTTL"`
	ColdStorageDir      string        `yaml:"coldStorageDir"`
	ColdTTL             time.Duration `yaml:"coldTTL"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	AppName     string
	Debug       bool
	Path        string
	Analysis    AnalysisConfig `yaml:"analysis"`
	WebServer   Server         `yaml:"webServer"`
	Persistence Persistence    `yaml:"persistence"`
	Logger      LoggerConfig   `yaml:"logger"`
	Cache       CacheConfig    `yaml:"cache"`
	Metrics     MetricsConfig  `yaml:"metrics"`
}

type CliFlags struct {
	ConfigPath string
	DebugMode  bool
}

type Route struct {
	Url     string
	Handler http.Handler
}
