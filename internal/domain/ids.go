package domain

import (
	"time"

	"github.com/google/uuid"
)

// IDGenerator mints opaque identifiers. Injected so tests can fix ids.
type IDGenerator interface {
	NewID() string
}

// Clock supplies the current time. Injected so tests can fix timestamps.
type Clock interface {
	Now() time.Time
}

// UUIDGenerator issues UUIDv7 ids, time-ordered for index locality.
type UUIDGenerator struct{}

// NewID returns a new UUIDv7, falling back to v4 on entropy failure.
func (UUIDGenerator) NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// UTCClock returns wall-clock time in UTC.
type UTCClock struct{}

// Now returns the current UTC time.
func (UTCClock) Now() time.Time {
	return time.Now().UTC()
}
