package workflow

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ParsePhaseYAML decodes and normalizes a single phase definition.
func ParsePhaseYAML(data []byte) (PhaseDefinition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return PhaseDefinition{}, fmt.Errorf("workflow: definition payload is empty")
	}
	var def PhaseDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return PhaseDefinition{}, fmt.Errorf("workflow: decode definition: %w", err)
	}
	return def.Normalized()
}

// ParseCatalogYAML decodes and normalizes a catalog of phases.
func ParseCatalogYAML(data []byte) (Catalog, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Catalog{}, fmt.Errorf("workflow: catalog payload is empty")
	}
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return Catalog{}, fmt.Errorf("workflow: decode catalog: %w", err)
	}
	return catalog.Normalized()
}

// LoadCatalogReader reads catalog data from an io.Reader.
func LoadCatalogReader(r io.Reader) (Catalog, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return Catalog{}, fmt.Errorf("workflow: read catalog: %w", err)
	}
	return ParseCatalogYAML(content)
}

// LoadCatalogFile loads a catalog from an explicit file path.
func LoadCatalogFile(path string) (Catalog, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("workflow: read %s: %w", path, err)
	}
	catalog, parseErr := ParseCatalogYAML(content)
	if parseErr != nil {
		return Catalog{}, fmt.Errorf("workflow: %s: %w", path, parseErr)
	}
	return catalog, nil
}

// EncodeCatalogYAML renders a catalog back to YAML.
func EncodeCatalogYAML(c Catalog) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("workflow: encode catalog: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
