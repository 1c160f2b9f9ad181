package app

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Nr18/shipline/internal/cache"
)

// FileConfig is the daemon's YAML configuration file. Secrets live here
// (or in files referenced from here), never in pipeline definitions or
// webhook payloads.
type FileConfig struct {
	// Repo is the repository identity runs are attributed to, e.g.
	// "acme/marked-space".
	Repo string `yaml:"repo"`

	// PipelineDir holds the .hcl pipeline definitions.
	PipelineDir string `yaml:"pipeline_dir"`

	// WorkDir is the root under which per-instance working directories
	// are created.
	WorkDir string `yaml:"work_dir"`

	Listen    string `yaml:"listen"`
	Workers   int    `yaml:"workers"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	Secrets map[string]string `yaml:"secrets"`
	Vars    map[string]string `yaml:"vars"`

	Artifacts ArtifactConfig `yaml:"artifacts"`
	Cache     CacheConfig    `yaml:"cache"`
	Release   ReleaseConfig  `yaml:"release"`

	// ManifestPath locates the version manifest for tag synchronization.
	// Tag sync is disabled when empty.
	ManifestPath string `yaml:"manifest_path"`
}

// ArtifactConfig controls the run-scoped artifact store.
type ArtifactConfig struct {
	// Dir persists artifacts on disk; empty keeps them in memory for the
	// lifetime of the run.
	Dir string `yaml:"dir"`
	// Retention bounds how long persisted run directories are kept.
	Retention Duration `yaml:"retention"`
}

// Duration parses Go duration strings like "168h" from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// CacheConfig selects the advisory cache backend.
type CacheConfig struct {
	// Backend is "dir", "s3" or empty for no cache.
	Backend string         `yaml:"backend"`
	Dir     string         `yaml:"dir"`
	S3      cache.S3Config `yaml:"s3"`
}

// ReleaseConfig points the release composer at a forge. With an empty
// host, releases are recorded in memory only, which is what tests and
// dry runs want.
type ReleaseConfig struct {
	Host  string `yaml:"host"`
	Owner string `yaml:"owner"`
	Repo  string `yaml:"repo"`
	Token string `yaml:"token"`
}

// LoadFileConfig reads and validates the daemon configuration.
func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return &cfg, nil
}

func (c *FileConfig) validate() error {
	if c.PipelineDir == "" {
		return fmt.Errorf("pipeline_dir is required")
	}
	switch c.Cache.Backend {
	case "", "dir", "s3":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.Backend == "dir" && c.Cache.Dir == "" {
		return fmt.Errorf("cache backend \"dir\" requires cache.dir")
	}
	if c.Cache.Backend == "s3" && (c.Cache.S3.Endpoint == "" || c.Cache.S3.Bucket == "") {
		return fmt.Errorf("cache backend \"s3\" requires cache.s3.endpoint and cache.s3.bucket")
	}
	if c.Release.Host != "" && (c.Release.Owner == "" || c.Release.Repo == "") {
		return fmt.Errorf("release.host requires release.owner and release.repo")
	}
	return nil
}
