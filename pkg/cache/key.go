package cache

import (
	"fmt"
	"sort"
	"strings"
)

// Key identifies one cacheable origin resource.
type Key struct {
	// Endpoint is the datafile name (e.g., "players.txt")
	Endpoint string

	// Params are the caller-supplied parameters (e.g., {"world": "de42"})
	Params map[string]string
}

// String generates a deterministic cache key string.
// Parameters are lowercased and sorted by name so that two semantically
// equal requests always map to the same key, regardless of parameter
// ordering or casing, and two different resources never collide.
// Format: grepo:endpoint:param1=val1:param2=val2
//
// Example:
//
//	grepo:players.txt:world=de42
func (k Key) String() string {
	parts := []string{"grepo"}

	endpoint := strings.ToLower(strings.TrimSpace(k.Endpoint))
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.Params) > 0 {
		normalized := make(map[string]string, len(k.Params))
		names := make([]string, 0, len(k.Params))
		for name, val := range k.Params {
			name = strings.ToLower(strings.TrimSpace(name))
			names = append(names, name)
			normalized[name] = strings.ToLower(strings.TrimSpace(val))
		}
		sort.Strings(names)

		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%s", name, normalized[name]))
		}
	}

	return strings.Join(parts, ":")
}
