package checker

import bloom "github.com/bits-and-blooms/bloom/v3"

// seenSet flags URLs submitted more than once in a batch. It is a bloom
// filter sized for the batch: a repeat is never missed, but roughly one new
// URL in a thousand may be flagged as a repeat.
type seenSet struct {
	filter *bloom.BloomFilter
}

func newSeenSet(expected int) *seenSet {
	if expected < 1 {
		expected = 1
	}
	return &seenSet{filter: bloom.NewWithEstimates(uint(expected), 0.001)}
}

// addIfNew records url and reports whether it had not been recorded before.
func (s *seenSet) addIfNew(url string) bool {
	return !s.filter.TestOrAddString(url)
}
