package availability

import "errors"

var (
	// ErrUnresolvedSchedule means the slot's schedule reference does not
	// name a loaded Schedule. The slot is dropped from the index.
	ErrUnresolvedSchedule = errors.New("unresolved schedule reference")

	// ErrMalformedTimestamp means a slot start or end is missing or is not
	// an RFC 3339 instant. The slot is dropped from the index.
	ErrMalformedTimestamp = errors.New("malformed timestamp")

	// ErrCacheKeyCollision means a cached index was stored for a different
	// (year, month) than the key it was found under.
	ErrCacheKeyCollision = errors.New("month cache key collision")
)
