// Package flags holds the feature switches read from the "flags" config section.
// Known flags have defaults; unknown flags are off.
package flags

import (
	"maps"
	"slices"

	"github.com/scholarly-tools/doideposit/internal/log"
)

const (
	// FlagStatusCache caches CrossRef submission results looked up for status messages.
	FlagStatusCache = "status-cache"

	// FlagDepositEvents logs every accepted deposit announced to subscribers.
	FlagDepositEvents = "deposit-events"
)

var defaults = map[string]bool{
	FlagStatusCache:   true,
	FlagDepositEvents: false,
}

// Registry holds feature flag state. It is read-only after New.
type Registry struct {
	flags map[string]bool
}

// New creates a Registry from configured values layered over the defaults.
func New(configured map[string]bool) *Registry {
	flags := maps.Clone(defaults)
	for name, value := range configured {
		if _, known := defaults[name]; !known {
			log.Warn(log.CatConfig, "Unknown feature flag in config", "flag", name)
		}
		flags[name] = value
	}
	r := &Registry{flags: flags}
	log.Debug(log.CatConfig, "Feature flags initialized", "flags", r.All())
	return r
}

// Enabled reports whether the named flag is on. Unknown flags and a nil registry report false.
func (r *Registry) Enabled(name string) bool {
	if r == nil {
		return false
	}
	return r.flags[name]
}

// All returns a copy of all flag values.
func (r *Registry) All() map[string]bool {
	if r == nil {
		return map[string]bool{}
	}
	return maps.Clone(r.flags)
}

// Known returns the names of the flags with defaults, sorted.
func Known() []string {
	return slices.Sorted(maps.Keys(defaults))
}
