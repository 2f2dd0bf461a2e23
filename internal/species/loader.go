package species

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"tasfish/internal/logging"
)

//go:embed data/species.yaml
var defaultTable []byte

type tableFile struct {
	Species []Record `yaml:"species"`
}

// Load reads the species table from path, or the embedded table when path
// is empty.
func Load(path string, logger logging.Logger) (*Table, error) {
	data := defaultTable
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read species table: %w", err)
		}
		data = raw
	}
	return Parse(data, logger)
}

// Parse builds a table from YAML bytes.
func Parse(data []byte, logger logging.Logger) (*Table, error) {
	var file tableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse species table: %w", err)
	}
	return NewTable(file.Species, logger)
}
