// Package templates embeds the files doideposit writes for new users.
package templates

import (
	_ "embed"
)

//go:embed config.yaml
var configYAML string

//go:embed objects.yaml
var objectsYAML string

// ConfigYAML returns the commented default configuration file.
func ConfigYAML() string {
	return configYAML
}

// ObjectsYAML returns an example objects:import file.
func ObjectsYAML() string {
	return objectsYAML
}
