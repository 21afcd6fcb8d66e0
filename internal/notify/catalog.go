package notify

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locale/en.yaml
var defaultCatalogYAML []byte

const paramPlaceholder = "{$param}"

// Catalog resolves message keys to text.
type Catalog struct {
	messages map[string]string
}

// DefaultCatalog returns the built-in English catalog.
func DefaultCatalog() *Catalog {
	c, err := LoadCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// LoadCatalog parses a flat YAML map of key to message.
func LoadCatalog(data []byte) (*Catalog, error) {
	messages := make(map[string]string)
	if err := yaml.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return &Catalog{messages: messages}, nil
}

// Merge overlays messages from other, replacing existing keys.
func (c *Catalog) Merge(other *Catalog) {
	for k, v := range other.messages {
		c.messages[k] = v
	}
}

// Text resolves key with param substituted for {$param}. A template without the
// placeholder gets a non-empty param appended. Unknown keys render as ##key##.
func (c *Catalog) Text(key, param string) string {
	tmpl, ok := c.messages[key]
	if !ok {
		return "##" + key + "##"
	}
	if strings.Contains(tmpl, paramPlaceholder) {
		return strings.ReplaceAll(tmpl, paramPlaceholder, param)
	}
	if param != "" {
		return tmpl + " " + param
	}
	return tmpl
}

// Render resolves a notification.
func (c *Catalog) Render(n Notification) string {
	return c.Text(n.Key, n.Param)
}

// Has reports whether key is defined.
func (c *Catalog) Has(key string) bool {
	_, ok := c.messages[key]
	return ok
}
