package importer

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Monsterkot/diplom/internal/book"
	"github.com/Monsterkot/diplom/internal/errors"
)

// Manifest is a bulk import file. YAML and JSON are both accepted; the file
// may also be a bare list of items.
type Manifest struct {
	Actor string    `yaml:"actor"`
	Items []Request `yaml:"items"`
}

// LoadManifest reads and parses a manifest file.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest parses manifest content. Sources are normalised but not
// checked; unknown sources become failed outcomes during the import.
func ParseManifest(data []byte) (Manifest, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return Manifest{}, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if len(root.Content) == 0 {
		return Manifest{}, errors.NewValidationError("manifest", "is empty")
	}

	var manifest Manifest
	switch doc := root.Content[0]; doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&manifest.Items); err != nil {
			return Manifest{}, fmt.Errorf("failed to decode manifest items: %w", err)
		}
	case yaml.MappingNode:
		if err := doc.Decode(&manifest); err != nil {
			return Manifest{}, fmt.Errorf("failed to decode manifest: %w", err)
		}
	default:
		return Manifest{}, errors.NewValidationError("manifest", "must be a list of items or a mapping with items")
	}

	if len(manifest.Items) == 0 {
		return Manifest{}, errors.NewValidationError("manifest", "has no items")
	}
	for i := range manifest.Items {
		item := &manifest.Items[i]
		item.Source = book.Source(strings.ToLower(strings.TrimSpace(string(item.Source))))
		item.ExternalID = strings.TrimSpace(item.ExternalID)
	}
	return manifest, nil
}
