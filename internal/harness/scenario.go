package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/jamiewannenburg/uacalcsrc-sub002/internal/closure"
)

// Scenario defines a conformance test scenario: an algebra, a
// generating set, optional run limits, and the expected closure
// outcome.
type Scenario struct {
	// Name uniquely identifies this scenario. Also used as the golden
	// file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Algebra is the path to the CUE algebra file, relative to the
	// scenario file location.
	Algebra string `yaml:"algebra"`

	// Generators are the generating tuples, one coordinate list per
	// generator. Rank-1 algebras use single-coordinate tuples.
	Generators [][]int `yaml:"generators"`

	// Limits bounds the run. Zero values mean engine defaults.
	Limits Limits `yaml:"limits,omitempty"`

	// Expect specifies the expected outcome. If nil, the run only has
	// to complete without error.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// Limits bounds a scenario run.
type Limits struct {
	// MaxElements caps the discovered set size.
	MaxElements int64 `yaml:"max_elements,omitempty"`

	// Workers is the worker count. Scenarios that assert exact pass
	// history should pin this for reproducible golden files, though
	// set contents are identical for any worker count.
	Workers int `yaml:"workers,omitempty"`
}

// ExpectClause specifies the expected closure outcome.
type ExpectClause struct {
	// Reason is the expected terminal state: fixpoint, memory-limit,
	// or cancelled.
	Reason string `yaml:"reason"`

	// Size is the expected cardinality of the discovered set.
	// Zero means unchecked.
	Size int64 `yaml:"size,omitempty"`

	// Elements are the expected discovered indices, sorted ascending.
	// If nil, only reason and size are validated.
	Elements []int64 `yaml:"elements,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the algebra path relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "generator:" vs
	// "generators:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve the algebra path before validation so the existence
	// check sees the real location.
	if scenario.Algebra != "" && !filepath.IsAbs(scenario.Algebra) && basePath != "" {
		scenario.Algebra = filepath.Join(basePath, scenario.Algebra)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Algebra == "" {
		return fmt.Errorf("algebra is required")
	}
	if _, err := os.Stat(s.Algebra); os.IsNotExist(err) {
		return fmt.Errorf("algebra file not found: %s", s.Algebra)
	}

	if s.Generators == nil {
		return fmt.Errorf("generators list is required (use [] for an empty generating set)")
	}

	if s.Limits.MaxElements < 0 {
		return fmt.Errorf("limits.max_elements must be non-negative")
	}
	if s.Limits.Workers < 0 {
		return fmt.Errorf("limits.workers must be non-negative")
	}

	if s.Expect != nil {
		switch closure.Reason(s.Expect.Reason) {
		case closure.ReasonFixpoint, closure.ReasonMemoryLimit, closure.ReasonCancelled:
		case "":
			return fmt.Errorf("expect.reason is required")
		default:
			return fmt.Errorf("expect.reason: unknown reason %q", s.Expect.Reason)
		}
		if s.Expect.Size < 0 {
			return fmt.Errorf("expect.size must be non-negative")
		}
	}

	return nil
}
