package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SaveTenant adds or replaces one tenants entry in the config file.
// This preserves comments and formatting in other sections by using yaml.Node.
func SaveTenant(configPath, contextID string, tenant TenantConfig) error {
	if contextID == "" {
		return fmt.Errorf("context id is required")
	}
	if err := ValidateTenant(contextID, tenant); err != nil {
		return err
	}

	var tenantNode yaml.Node
	if err := tenantNode.Encode(tenant); err != nil {
		return fmt.Errorf("encoding tenant: %w", err)
	}

	return updateConfig(configPath, func(root *yaml.Node) error {
		tenants := mappingValue(root, "tenants")
		if tenants == nil {
			tenants = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			setMappingValue(root, "tenants", tenants)
		}
		if tenants.Kind != yaml.MappingNode {
			return fmt.Errorf("tenants must be a mapping")
		}
		// "tenants: {}" from the default template is flow style.
		tenants.Style = 0
		setMappingValue(tenants, contextID, &tenantNode)
		return nil
	})
}

// SaveDefaultContext sets default_context in the config file.
func SaveDefaultContext(configPath, contextID string) error {
	return updateConfig(configPath, func(root *yaml.Node) error {
		setMappingValue(root, "default_context", &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: contextID})
		return nil
	})
}

// updateConfig parses the config file, lets fn edit its root mapping and writes it back
// atomically. A missing file starts from an empty document.
func updateConfig(configPath string, fn func(root *yaml.Node) error) error {
	data, err := os.ReadFile(configPath) //nolint:gosec // G304: config path is user-controlled
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}

	// Parse into yaml.Node to preserve comments
	var doc yaml.Node
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}
	if doc.Kind == 0 {
		doc = yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}},
		}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return fmt.Errorf("parsing config: top level must be a mapping")
	}

	if err := fn(doc.Content[0]); err != nil {
		return err
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_ = encoder.Close()

	return writeAtomic(configPath, buf.Bytes())
}

// writeAtomic writes to a temp file in the same directory, then renames it into place.
func writeAtomic(configPath string, data []byte) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".doideposit.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, configPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}

// mappingValue returns the value node for key, or nil.
func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i < len(m.Content)-1; i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// setMappingValue replaces the value for key, or appends the pair.
func setMappingValue(m *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i < len(m.Content)-1; i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = value
			return
		}
	}
	m.Content = append(m.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		value,
	)
}
