package devotion

import (
	"time"

	"github.com/google/uuid"
)

// ===== Clock =====

type systemClock struct{}

// NewSystemClock returns a Clock implementation backed by time.Now.
func NewSystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

// ===== ID Generator =====

type uuidGenerator struct{}

// NewUUIDGenerator returns an IDGenerator that produces v7 UUIDs where available, falling back to v4.
// v7 IDs sort by creation time, so collections listed by ID come back in write order.
func NewUUIDGenerator() IDGenerator {
	return uuidGenerator{}
}

func (uuidGenerator) NewID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// ===== Recorder =====

// Recorder observes the live recompute loop.
type Recorder interface {
	SnapshotReceived(collection string)
	SummaryComputed(earned int)
}

type nopRecorder struct{}

func (nopRecorder) SnapshotReceived(string) {}
func (nopRecorder) SummaryComputed(int)     {}
