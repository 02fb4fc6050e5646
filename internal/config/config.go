// Package config holds toolkit settings: where result artifacts live, which
// batch queues serve which machine sizes, and where the dashboard caches
// downloads. Settings are read from a YAML file next to the user's working
// area; a missing file means defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the settings file looked up when no --settings flag is given.
const DefaultPath = "scenarios.yaml"

// Config is the top-level settings document.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Batch     BatchConfig     `yaml:"batch"`
	Dashboard DashboardConfig `yaml:"dashboard"`
}

// StorageConfig locates the result-artifact bucket.
type StorageConfig struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`   // optional, for S3-compatible stores
	PathStyle bool   `yaml:"path_style"` // required by MinIO-style endpoints
}

// BatchConfig maps machine sizes to batch job queues.
type BatchConfig struct {
	// JobQueues keys are cpu counts; each maps to the queue backed by
	// machines of that size.
	JobQueues     map[int]string `yaml:"job_queues"`
	JobDefinition string         `yaml:"job_definition"`
}

// DashboardConfig configures the artifact browser.
type DashboardConfig struct {
	CacheDir string `yaml:"cache_dir"`
}

// Default returns the settings used when no file is present.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Region: "us-east-1",
		},
		Batch: BatchConfig{
			JobQueues: map[int]string{
				2: "scenarios-2cpu",
				4: "scenarios-4cpu",
				8: "scenarios-8cpu",
			},
			JobDefinition: "scenarios-run-task",
		},
		Dashboard: DashboardConfig{
			CacheDir: ".scenarios/cache",
		},
	}
}

// Load reads settings from path, layered over defaults. A missing file is
// not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading settings %s: %w", path, err)
	}
	// Decoding into a populated map would merge file queues with default
	// ones; a file that sets queues replaces the whole set instead.
	cfg.Batch.JobQueues = nil
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing settings %s: %w", path, err)
	}
	if cfg.Batch.JobQueues == nil {
		cfg.Batch.JobQueues = Default().Batch.JobQueues
	}
	return cfg, nil
}

// QueueFor returns the job queue serving machines with the given cpu count.
func (b BatchConfig) QueueFor(cpu int) (string, error) {
	if queue, ok := b.JobQueues[cpu]; ok {
		return queue, nil
	}
	sizes := make([]int, 0, len(b.JobQueues))
	for size := range b.JobQueues {
		sizes = append(sizes, size)
	}
	sort.Ints(sizes)
	return "", fmt.Errorf("no job queue for %d cpu machines, supported sizes: %v", cpu, sizes)
}
