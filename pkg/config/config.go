// Package config loads the YAML configuration used to read and write graphs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sanonone/pubnet/pkg/core/types"
	"github.com/sanonone/pubnet/pkg/edge"
	"github.com/sanonone/pubnet/pkg/storage"
	"gopkg.in/yaml.v3"
)

// Config describes where a graph lives and how to load and save it.
type Config struct {
	// DataDir holds one directory per graph.
	DataDir string `yaml:"data_dir"`
	// GraphName is the graph directory under DataDir. Empty means the files
	// sit directly in DataDir.
	GraphName string `yaml:"graph_name"`

	Root           string `yaml:"root"`
	Representation string `yaml:"representation"`

	Nodes NodeSelection `yaml:"nodes"`
	Edges EdgeSelection `yaml:"edges"`

	// Format is the save format: tsv, gzip or binary.
	Format  string `yaml:"format"`
	Workers int    `yaml:"workers"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	// LogFile enables a size-rotated log file instead of stderr.
	LogFile string `yaml:"log_file"`
}

// DefaultConfig returns a configuration that loads every collection of the
// graph in ./data with the dense backend.
func DefaultConfig() Config {
	return Config{
		DataDir:        "./data",
		Root:           "Publication",
		Representation: string(edge.BackendDense), // or "compressed"
		Format:         string(storage.FormatTSV),
		Workers:        4, // parallel file loads
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// Load reads the YAML configuration file using strict parsing. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	// 1. Start from the defaults
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	// 2. Open the file
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	// 3. Decode over the defaults. Unknown keys are errors.
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("YAML syntax error in config: %w", err)
	}

	// 4. Validate
	return cfg, cfg.Validate()
}

// Validate rejects unknown representations, formats and log settings.
func (c Config) Validate() error {
	if _, err := c.Backend(); err != nil {
		return err
	}
	if _, err := c.SaveFormat(); err != nil {
		return err
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: log_level %q", types.ErrInvalidArgument, c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: log_format %q", types.ErrInvalidArgument, c.LogFormat)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", types.ErrInvalidArgument)
	}
	return nil
}

// Backend parses Representation.
func (c Config) Backend() (edge.Backend, error) {
	return edge.ParseBackend(c.Representation)
}

// SaveFormat parses Format.
func (c Config) SaveFormat() (storage.Format, error) {
	return storage.ParseFormat(c.Format)
}

// GraphDir returns the directory holding the graph files.
func (c Config) GraphDir() string {
	if c.GraphName == "" {
		return c.DataDir
	}
	return filepath.Join(c.DataDir, c.GraphName)
}

// NodeSelection is either "all" (nil) or a list of node type names.
type NodeSelection []string

func (s *NodeSelection) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		if value.Value != "all" && value.Value != "" {
			return fmt.Errorf("%w: nodes must be \"all\" or a list, got %q", types.ErrInvalidArgument, value.Value)
		}
		*s = nil
		return nil
	}
	var names []string
	if err := value.Decode(&names); err != nil {
		return err
	}
	*s = NodeSelection(names)
	if *s == nil {
		*s = NodeSelection{}
	}
	return nil
}

// EdgeSelection is either "all" (nil) or a list of node type pairs. A pair is
// written as [A, B] or as the key "A-B".
type EdgeSelection [][2]string

func (s *EdgeSelection) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		if value.Value != "all" && value.Value != "" {
			return fmt.Errorf("%w: edges must be \"all\" or a list, got %q", types.ErrInvalidArgument, value.Value)
		}
		*s = nil
		return nil
	}
	if value.Kind != yaml.SequenceNode {
		return fmt.Errorf("%w: edges must be \"all\" or a list", types.ErrInvalidArgument)
	}
	out := make(EdgeSelection, 0, len(value.Content))
	for _, item := range value.Content {
		switch item.Kind {
		case yaml.ScalarNode:
			a, b, err := edge.Parts(item.Value)
			if err != nil {
				return err
			}
			out = append(out, [2]string{a, b})
		case yaml.SequenceNode:
			var pair []string
			if err := item.Decode(&pair); err != nil {
				return err
			}
			if len(pair) != 2 {
				return fmt.Errorf("%w: edge pair %v needs two names", types.ErrInvalidArgument, pair)
			}
			out = append(out, [2]string{pair[0], pair[1]})
		default:
			return fmt.Errorf("%w: edge entry at line %d", types.ErrInvalidArgument, item.Line)
		}
	}
	*s = out
	return nil
}

// Keys returns the canonical keys of the selected edges, or nil for "all".
func (s EdgeSelection) Keys() []string {
	if s == nil {
		return nil
	}
	keys := make([]string, len(s))
	for i, p := range s {
		keys[i] = edge.Key(p[0], p[1])
	}
	return keys
}
