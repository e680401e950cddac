package level

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk hunt definition: the levels plus optional player
// facing copy and command tokens that override the engine defaults.
type File struct {
	Title    string              `yaml:"title"`
	Commands map[string][]string `yaml:"commands,omitempty"`
	Messages map[string]string   `yaml:"messages,omitempty"`
	Levels   []Level             `yaml:"levels"`
}

// LoadFile reads and strictly decodes a hunt definition. Unknown keys are
// rejected so typos in content files fail loudly.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read levels file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a hunt definition from YAML.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty levels file", ErrInvalidCatalog)
		}
		return nil, fmt.Errorf("failed to parse levels yaml: %w", err)
	}
	return &f, nil
}

// Catalog builds the validated catalog for the file's levels.
func (f *File) Catalog() (*Catalog, error) {
	return NewCatalog(f.Levels)
}
