package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/trackdb/core/ingest"
	"github.com/kilianp07/trackdb/core/metrics"
	"github.com/kilianp07/trackdb/core/tsdb"
	"github.com/kilianp07/trackdb/infra/mqtt"
)

// EnvPrefix is the prefix of environment overrides. Nested keys are
// separated by a double underscore, e.g. TRACKDB_INFLUX__URL.
const EnvPrefix = "TRACKDB_"

type Config struct {
	Influx  tsdb.Config    `json:"influx"`
	MQTT    mqtt.Config    `json:"mqtt"`
	Ingest  ingest.Config  `json:"ingest"`
	HTTP    HTTPConfig     `json:"http"`
	Metrics metrics.Config `json:"metrics"`
	Logging LoggingConfig  `json:"logging"`
}

// Load reads the configuration file at path, applies environment overrides
// and defaults. An empty path loads the environment only. The influx section
// is validated when the store connects.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Influx.SetDefaults()
	cfg.Ingest.SetDefaults()
	cfg.HTTP.SetDefaults()
	cfg.Metrics.SetDefaults()
	if err := cfg.Ingest.Validate(); err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	if err := cfg.MQTT.Validate(); err != nil {
		return nil, fmt.Errorf("mqtt: %w", err)
	}
	return &cfg, nil
}
