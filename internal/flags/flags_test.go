package flags

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_Enabled(t *testing.T) {
	tests := []struct {
		name     string
		registry *Registry
		flag     string
		expected bool
	}{
		{
			name:     "default on",
			registry: New(nil),
			flag:     FlagStatusCache,
			expected: true,
		},
		{
			name:     "default off",
			registry: New(nil),
			flag:     FlagDepositEvents,
			expected: false,
		},
		{
			name:     "config overrides default",
			registry: New(map[string]bool{FlagStatusCache: false}),
			flag:     FlagStatusCache,
			expected: false,
		},
		{
			name:     "unknown flag from config is honoured",
			registry: New(map[string]bool{"experimental": true}),
			flag:     "experimental",
			expected: true,
		},
		{
			name:     "unknown flag returns false",
			registry: New(nil),
			flag:     "unknown-flag",
			expected: false,
		},
		{
			name:     "nil registry returns false",
			registry: nil,
			flag:     FlagStatusCache,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.registry.Enabled(tt.flag))
		})
	}
}

func TestRegistry_AllReturnsCopy(t *testing.T) {
	r := New(map[string]bool{FlagDepositEvents: true})

	all := r.All()
	all[FlagDepositEvents] = false

	require.True(t, r.Enabled(FlagDepositEvents))
	require.Empty(t, (*Registry)(nil).All())
}

func TestKnown(t *testing.T) {
	require.Equal(t, []string{FlagDepositEvents, FlagStatusCache}, Known())
}
