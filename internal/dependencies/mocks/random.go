package mocks

import (
	"fmt"
	"sync"

	"github.com/mcoot/allfence/internal/dependencies/random"
)

// MockRandom is a mock implementation of Random for testing.
// Queued values are returned first; after that it falls back to
// deterministic sequential values so tests never see collisions.
type MockRandom struct {
	mu sync.Mutex

	strings []string
	uuids   []string

	stringCount int
	uuidCount   int
}

// Ensure MockRandom implements Random
var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// String returns the next queued string, or a sequential fallback
func (r *MockRandom) String(length int, alphabet string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.strings) > 0 {
		s := r.strings[0]
		r.strings = r.strings[1:]
		return s
	}
	r.stringCount++
	return fmt.Sprintf("%0*d", length, r.stringCount)
}

// UUID returns the next queued UUID, or a sequential fallback
func (r *MockRandom) UUID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.uuids) > 0 {
		id := r.uuids[0]
		r.uuids = r.uuids[1:]
		return id
	}
	r.uuidCount++
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", r.uuidCount)
}

// QueueString adds values to the String result queue
func (r *MockRandom) QueueString(values ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strings = append(r.strings, values...)
}

// QueueUUID adds values to the UUID result queue
func (r *MockRandom) QueueUUID(values ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uuids = append(r.uuids, values...)
}
