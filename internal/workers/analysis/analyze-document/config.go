// internal/workers/analysis/analyze-document/config.go
package analyzedocument

import (
	"fmt"
	"time"

	"baws-workers/internal/common/config"
)

type Config struct {
	Enabled        bool
	MaxJobsActive  int
	Timeout        time.Duration
	LockTTL        time.Duration
	DocumentsPath  string
	AnalysisOutput string
	AnalysisIndex  string
}

func createConfigFromAppConfig(appConfig *config.Config, custom *Config) *Config {
	if custom != nil {
		return custom
	}
	wc := config.GetWorkerConfig(appConfig, TaskType)
	return &Config{
		Enabled:        wc.Enabled,
		MaxJobsActive:  wc.MaxJobsActive,
		Timeout:        config.GetDuration(wc.Timeout),
		LockTTL:        config.GetDuration(appConfig.Database.Redis.LockTTL),
		DocumentsPath:  appConfig.Storage.DocumentsPath,
		AnalysisOutput: appConfig.Storage.AnalysisOutput,
		AnalysisIndex:  appConfig.Database.Elasticsearch.AnalysisIndex,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("lock ttl must be positive")
	}
	if c.AnalysisOutput == "" {
		return fmt.Errorf("analysis output directory is required")
	}
	return nil
}
