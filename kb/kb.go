package kb

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/signalsfoundry/gbm-background/model"
)

// ErrDuplicateResponse is returned when a (detector, index) slot is stored
// twice with different contents.
var ErrDuplicateResponse = errors.New("response already stored")

// EventType indicates what kind of change happened in the store.
type EventType int

const (
	// EventResponseStored fires for every newly stored matrix.
	EventResponseStored EventType = iota
	// EventDetectorComplete fires once all grid points of a detector are in.
	EventDetectorComplete
)

// Key addresses one response matrix: a detector and a direction index.
type Key struct {
	Detector string
	Index    int
}

// Event is emitted to subscribers after the store changes.
type Event struct {
	Type EventType
	Key  Key
}

// ResponseStore is an in-memory, thread-safe memo of response matrices for a
// single (incoming, detected) energy-grid pair and a fixed number of
// direction indices. Stored matrices are treated as immutable.
type ResponseStore struct {
	mu sync.RWMutex

	in, out model.EnergyGrid
	size    int

	matrices map[Key]*mat.Dense
	counts   map[string]int

	nextSub int
	subs    map[int]func(Event)
}

// NewResponseStore constructs an empty store bound to the energy grids and
// to direction indices [0, size).
func NewResponseStore(in, out model.EnergyGrid, size int) *ResponseStore {
	return &ResponseStore{
		in:       in,
		out:      out,
		size:     size,
		matrices: make(map[Key]*mat.Dense),
		counts:   make(map[string]int),
		subs:     make(map[int]func(Event)),
	}
}

// Size returns the number of direction indices per detector.
func (s *ResponseStore) Size() int { return s.size }

// Require fails with model.ErrInconsistentGrid unless the store was built
// for exactly these grids.
func (s *ResponseStore) Require(in, out model.EnergyGrid) error {
	if !s.in.Equal(in) || !s.out.Equal(out) {
		return fmt.Errorf("%w: response store holds %s -> %s, asked for %s -> %s",
			model.ErrInconsistentGrid, s.in, s.out, in, out)
	}
	return nil
}

// Get returns the stored matrix for (detector, index), if any.
func (s *ResponseStore) Get(detector string, index int) (*mat.Dense, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matrices[Key{Detector: detector, Index: index}]
	return m, ok
}

// Put stores a matrix. Rows must match the incoming bins and columns the
// detected bins. Storing the same slot again is a no-op when the contents
// are equal and fails otherwise.
func (s *ResponseStore) Put(detector string, index int, m *mat.Dense) error {
	if index < 0 || index >= s.size {
		return fmt.Errorf("%w: direction index %d outside [0, %d)", model.ErrOutOfRange, index, s.size)
	}
	r, c := m.Dims()
	if r != s.in.NumBins() || c != s.out.NumBins() {
		return fmt.Errorf("%w: matrix is %dx%d, store wants %dx%d",
			model.ErrInconsistentGrid, r, c, s.in.NumBins(), s.out.NumBins())
	}

	key := Key{Detector: detector, Index: index}
	s.mu.Lock()
	if prev, ok := s.matrices[key]; ok {
		s.mu.Unlock()
		if mat.Equal(prev, m) {
			return nil
		}
		return fmt.Errorf("%w: %s[%d]", ErrDuplicateResponse, detector, index)
	}
	s.matrices[key] = m
	s.counts[detector]++
	events := []Event{{Type: EventResponseStored, Key: key}}
	if s.counts[detector] == s.size {
		events = append(events, Event{Type: EventDetectorComplete, Key: Key{Detector: detector, Index: -1}})
	}
	subs := make([]func(Event), 0, len(s.subs))
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		subs = append(subs, s.subs[id])
	}
	s.mu.Unlock()

	// Notify outside the lock so subscribers may read the store.
	for _, ev := range events {
		for _, sub := range subs {
			sub(ev)
		}
	}
	return nil
}

// Complete reports whether every direction index is stored for detector.
func (s *ResponseStore) Complete(detector string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[detector] == s.size
}

// Missing lists the direction indices not yet stored for detector, in order.
func (s *ResponseStore) Missing(detector string) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []int
	for i := 0; i < s.size; i++ {
		if _, ok := s.matrices[Key{Detector: detector, Index: i}]; !ok {
			out = append(out, i)
		}
	}
	return out
}

// Detectors returns the detectors with at least one stored matrix, sorted.
func (s *ResponseStore) Detectors() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]string, 0, len(s.counts))
	for d := range s.counts {
		res = append(res, d)
	}
	sort.Strings(res)
	return res
}

// Len returns the total number of stored matrices.
func (s *ResponseStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matrices)
}

// Subscribe registers a callback for store events. It returns an
// unsubscribe function.
func (s *ResponseStore) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}
