package cache

import "time"

// Entry represents one cached origin response.
type Entry struct {
	// Body is the response body as served by the origin
	Body []byte

	// Status is the HTTP status code of the cached response
	Status int

	// ContentType is the origin's Content-Type header value
	ContentType string

	// StoredAt is when the entry was written to the store
	StoredAt time.Time

	// Expires is when the entry becomes stale
	Expires time.Time
}

// Fresh reports whether the entry may still be served at the given instant.
func (e *Entry) Fresh(now time.Time) bool {
	return now.Before(e.Expires)
}

// TTL returns the remaining time until expiration at the given instant.
// Returns 0 if already expired.
func (e *Entry) TTL(now time.Time) time.Duration {
	ttl := e.Expires.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Clone returns a deep copy of the entry. The store never hands out its
// own body slice, so callers cannot mutate cached state.
func (e *Entry) Clone() Entry {
	out := *e
	out.Body = make([]byte, len(e.Body))
	copy(out.Body, e.Body)
	return out
}
