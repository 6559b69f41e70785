package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/plantgate/internal/flagx"
	"github.com/dmitrijs2005/plantgate/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
type JsonConfig struct {
	ServerURL    string         `json:"server_url"`
	StatePath    string         `json:"state_path"`
	Timeout      timex.Duration `json:"timeout"`
	RawThreshold int64          `json:"raw_threshold"`
}

// parseJson overlays cfg with the file named by -c/-config. Keys missing
// from the file keep their current values.
func parseJson(cfg *Config) error {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return nil
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	jc := JsonConfig{
		ServerURL:    cfg.ServerURL,
		StatePath:    cfg.StatePath,
		Timeout:      timex.Duration{Duration: cfg.Timeout},
		RawThreshold: cfg.RawThreshold,
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", jsonConfigFile, err)
	}

	cfg.ServerURL = jc.ServerURL
	cfg.StatePath = jc.StatePath
	cfg.Timeout = jc.Timeout.Duration
	cfg.RawThreshold = jc.RawThreshold
	return nil
}
