package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Pipeline   PipelineConfig
	OCR        OCRConfig
	Curriculum CurriculumConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type DatabaseConfig struct {
	Path string
}

type PipelineConfig struct {
	Workers          int
	Limit            int
	MinCharsForOCR   int
	DefaultYear      int
	MaxQuestionChars int
	CacheTTLSec      int
}

type OCRConfig struct {
	Enabled        bool
	BaseURL        string
	APIKey         string
	Model          string
	TimeoutSec     int
	RequestsPerSec float64
}

type CurriculumConfig struct {
	Path string
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

// Load reads topicast.yaml (if present), applies TOPICAST_* environment
// overrides and returns the merged configuration.
func Load() (*Config, error) {
	viper.SetConfigName("topicast")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("$HOME/.topicast")

	viper.SetEnvPrefix("TOPICAST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("database.path", "./data/topicast.db")

	viper.SetDefault("pipeline.workers", 4)
	viper.SetDefault("pipeline.limit", 0)
	viper.SetDefault("pipeline.minCharsForOCR", 50)
	viper.SetDefault("pipeline.defaultYear", 2020)
	viper.SetDefault("pipeline.maxQuestionChars", 1000)
	viper.SetDefault("pipeline.cacheTTLSec", 300)

	viper.SetDefault("ocr.enabled", false)
	viper.SetDefault("ocr.baseURL", "")
	viper.SetDefault("ocr.model", "gpt-4o-mini")
	viper.SetDefault("ocr.timeoutSec", 60)
	viper.SetDefault("ocr.requestsPerSec", 1.0)

	viper.SetDefault("curriculum.path", "")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")
	viper.SetDefault("logging.outputPath", "stdout")
}
