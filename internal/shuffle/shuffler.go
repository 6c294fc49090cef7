// Package shuffle implements weighted random selection with bounded
// last-N anti-repetition. It has no rendering or I/O dependency so it
// can back both the Visual Director's media shuffler and the Session
// Runner's playback-pool selector, each tracking its own window.
package shuffle

import "math/rand/v2"

// DefaultCapacity is the default size of the anti-repetition window.
const DefaultCapacity = 8

// Shuffler draws indices into an item set, weighted by each item's
// current weight, with a bounded anti-repetition window.
type Shuffler struct {
	weights     []uint
	baseline    []uint
	totalWeight uint
	lastIndices []int
	capacity    int
	rng         *rand.Rand
}

// New builds a Shuffler over n items, each starting at weight w0, with
// an anti-repetition window of the given capacity (DefaultCapacity if
// capacity <= 0).
func New(n int, w0 uint, capacity int) *Shuffler {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	weights := make([]uint, n)
	baseline := make([]uint, n)
	var total uint
	for i := range weights {
		weights[i] = w0
		baseline[i] = w0
		total += w0
	}
	return &Shuffler{
		weights:     weights,
		baseline:    baseline,
		totalWeight: total,
		capacity:    capacity,
		rng:         rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// NewWithWeights builds a Shuffler from explicit per-item weights
// (used by the Session Runner, where each playback-pool entry carries
// its own weight rather than a shared W0).
func NewWithWeights(weights []uint, capacity int) *Shuffler {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	baseline := make([]uint, len(weights))
	var total uint
	for i, w := range weights {
		baseline[i] = w
		total += w
	}
	cp := make([]uint, len(weights))
	copy(cp, weights)
	return &Shuffler{
		weights:     cp,
		baseline:    baseline,
		totalWeight: total,
		capacity:    capacity,
		rng:         rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Next draws the next index: weighted draw, decrement the chosen
// item's weight, push it onto the
// anti-repetition window, and restore the weight of whatever falls out
// the back of that window.
func (s *Shuffler) Next() int {
	idx := s.draw()
	if s.weights[idx] > 0 {
		s.weights[idx]--
		s.totalWeight--
	}
	s.push(idx)
	return idx
}

func (s *Shuffler) draw() int {
	if s.totalWeight == 0 {
		return s.uniformExcludingRecent()
	}
	r := uint(s.rng.Int64N(int64(s.totalWeight)))
	var cumulative uint
	for i, w := range s.weights {
		cumulative += w
		if cumulative > r {
			return i
		}
	}
	// Floating/rounding safety net: fall back to the last item.
	return len(s.weights) - 1
}

// uniformExcludingRecent is the degenerate-safety fallback: if all
// weights have fallen to zero, pick uniformly
// among items not currently in the anti-repetition window.
func (s *Shuffler) uniformExcludingRecent() int {
	recent := make(map[int]bool, len(s.lastIndices))
	for _, i := range s.lastIndices {
		recent[i] = true
	}
	var candidates []int
	for i := range s.weights {
		if !recent[i] {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		// Every item is in the window (capacity >= item count): any
		// choice is equally degenerate, pick uniformly over all.
		return s.rng.IntN(len(s.weights))
	}
	return candidates[s.rng.IntN(len(candidates))]
}

func (s *Shuffler) push(idx int) {
	if len(s.lastIndices) >= s.capacity {
		evicted := s.lastIndices[0]
		s.lastIndices = s.lastIndices[1:]
		if s.weights[evicted] < s.baseline[evicted] {
			s.weights[evicted]++
			s.totalWeight++
		}
	}
	s.lastIndices = append(s.lastIndices, idx)
}

// Reset restores baseline weights and clears the anti-repetition
// window.
func (s *Shuffler) Reset() {
	copy(s.weights, s.baseline)
	var total uint
	for _, w := range s.baseline {
		total += w
	}
	s.totalWeight = total
	s.lastIndices = nil
}
