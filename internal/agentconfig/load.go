package agentconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"AgentChat/internal/backend"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

// LoadFile reads a team configuration from JSON, or YAML when the file
// ends in .yaml or .yml
func LoadFile(path string) (backend.TeamConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return backend.TeamConfig{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data, filepath.Ext(path))
}

// ParseConfig decodes a team configuration. YAML goes through a generic
// document so both formats share the JSON field names.
func ParseConfig(data []byte, ext string) (backend.TeamConfig, error) {
	var cfg backend.TeamConfig

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return cfg, fmt.Errorf("failed to parse YAML config: %w", err)
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return cfg, fmt.Errorf("failed to convert YAML config: %w", err)
		}
		data = converted
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// FileSchema describes the configuration file format accepted by LoadFile.
// Task params_schema values are free-form.
func FileSchema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  true,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	data, err := json.MarshalIndent(reflector.Reflect(&backend.TeamConfig{}), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode config schema: %w", err)
	}
	return data, nil
}
