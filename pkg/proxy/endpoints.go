package proxy

import (
	"regexp"
	"time"
)

// Descriptor defines one supported origin datafile endpoint. The set of
// descriptors is fixed at startup for the process lifetime.
type Descriptor struct {
	// Datafile is the origin file name (e.g., "players.txt")
	Datafile string

	// TTL is how long a fetched body stays fresh in the cache
	TTL time.Duration
}

// worldPattern matches Grepolis world identifiers such as "de42" or
// "en134" (two letters, one to three digits), after lowercasing.
var worldPattern = regexp.MustCompile(`^[a-z]{2}\d{1,3}$`)

// ValidWorld reports whether a lowercased world identifier is acceptable.
func ValidWorld(world string) bool {
	return worldPattern.MatchString(world)
}

// Default TTLs per datafile. Player and town dumps change with the hourly
// snapshot cycle, alliance membership less so, and island layout is fixed
// for a world's lifetime.
var defaultTTLs = map[string]time.Duration{
	"players.txt":   15 * time.Minute,
	"towns.txt":     15 * time.Minute,
	"alliances.txt": 30 * time.Minute,
	"islands.txt":   time.Hour,
}

// Endpoints builds the fixed descriptor set, applying any per-datafile
// TTL overrides. Overrides for unknown datafiles are ignored: the
// supported surface never grows at runtime.
func Endpoints(ttlOverrides map[string]time.Duration) map[string]Descriptor {
	endpoints := make(map[string]Descriptor, len(defaultTTLs))
	for datafile, ttl := range defaultTTLs {
		if override, ok := ttlOverrides[datafile]; ok && override > 0 {
			ttl = override
		}
		endpoints[datafile] = Descriptor{Datafile: datafile, TTL: ttl}
	}
	return endpoints
}
