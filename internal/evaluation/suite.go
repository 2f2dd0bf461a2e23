// Package evaluation runs a fixed question suite through the assistant and
// checks routing, tool parameters, citations and key facts.
package evaluation

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed cases.yaml
var defaultSuite []byte

// Expected route for a passing case.
const (
	TypeRAG  = "RAG"
	TypeTool = "Tool"
	TypeBoth = "Both"
)

// Case is a question the assistant is expected to answer.
type Case struct {
	ID                string            `yaml:"id"`
	Question          string            `yaml:"question"`
	Type              string            `yaml:"type"`
	ExpectedTool      string            `yaml:"expected_tool,omitempty"`
	ExpectedParams    map[string]string `yaml:"expected_params,omitempty"`
	ExpectedCitations []string          `yaml:"expected_citations,omitempty"`
	KeyFacts          []string          `yaml:"key_facts,omitempty"`
	Reasoning         string            `yaml:"reasoning,omitempty"`
}

// DifficultCase is a question the guide cannot fully answer. The assistant
// passes when it says so.
type DifficultCase struct {
	ID              string `yaml:"id"`
	Question        string `yaml:"question"`
	Category        string `yaml:"category"`
	ExpectedFailure string `yaml:"expected_failure"`
	Reasoning       string `yaml:"reasoning,omitempty"`
}

// Suite is a named set of cases.
type Suite struct {
	Name        string          `yaml:"name"`
	Version     string          `yaml:"version"`
	Description string          `yaml:"description,omitempty"`
	Passing     []Case          `yaml:"passing"`
	Difficult   []DifficultCase `yaml:"difficult"`
}

// DefaultSuite returns the built-in suite.
func DefaultSuite() (*Suite, error) {
	return ParseSuite(defaultSuite)
}

// LoadSuite reads a suite file. An empty path loads the built-in suite.
func LoadSuite(path string) (*Suite, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultSuite()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite %s: %w", path, err)
	}
	return ParseSuite(data)
}

// ParseSuite decodes and validates a YAML suite.
func ParseSuite(data []byte) (*Suite, error) {
	var suite Suite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("failed to parse suite: %w", err)
	}
	if err := suite.Validate(); err != nil {
		return nil, err
	}
	return &suite, nil
}

// Validate checks the suite for missing fields and duplicate ids.
func (s *Suite) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("suite name is required")
	}
	if strings.TrimSpace(s.Version) == "" {
		return fmt.Errorf("suite %s: version is required", s.Name)
	}
	if len(s.Passing)+len(s.Difficult) == 0 {
		return fmt.Errorf("suite %s: no cases", s.Name)
	}

	seen := make(map[string]bool)
	checkID := func(id, question string) error {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("suite %s: case id is required", s.Name)
		}
		if seen[id] {
			return fmt.Errorf("suite %s: duplicate case id %s", s.Name, id)
		}
		seen[id] = true
		if strings.TrimSpace(question) == "" {
			return fmt.Errorf("suite %s: case %s has no question", s.Name, id)
		}
		return nil
	}

	for _, c := range s.Passing {
		if err := checkID(c.ID, c.Question); err != nil {
			return err
		}
		switch c.Type {
		case TypeRAG:
		case TypeTool, TypeBoth:
			if c.ExpectedTool == "" {
				return fmt.Errorf("suite %s: case %s needs expected_tool for type %s", s.Name, c.ID, c.Type)
			}
		default:
			return fmt.Errorf("suite %s: case %s has unknown type %q", s.Name, c.ID, c.Type)
		}
	}
	for _, c := range s.Difficult {
		if err := checkID(c.ID, c.Question); err != nil {
			return err
		}
	}
	return nil
}
