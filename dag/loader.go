package dag

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/kbukum/pipekit/validation"
)

// documentExts lists the file extensions treated as pipeline documents.
// JSON is parsed by the YAML decoder, which accepts it as a subset.
var documentExts = []string{".yaml", ".yml", ".json"}

func isDocument(path string) bool {
	return slices.Contains(documentExts, strings.ToLower(filepath.Ext(path)))
}

// ParseDefinition decodes one pipeline document and checks its required fields.
func ParseDefinition(data []byte) (Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Definition{}, fmt.Errorf("dag: parsing document: %w", err)
	}
	if err := validation.Struct(&def); err != nil {
		return Definition{}, fmt.Errorf("dag: invalid document: %w", err)
	}
	return def, nil
}

// LoadDefinition reads and parses a pipeline document file.
func LoadDefinition(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, err
	}
	def, err := ParseDefinition(data)
	if err != nil {
		return Definition{}, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// documentPaths returns the document files directly inside dir, sorted.
func documentPaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && isDocument(e.Name()) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(paths)
	return paths, nil
}
