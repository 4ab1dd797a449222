package resilience

// Suppressor limits duplicate failure reports. After threshold consecutive
// reports of the same fingerprint, further identical failures are muted
// until a different failure arrives or Reset is called.
type Suppressor struct {
	threshold int
	last      string
	repeats   int
}

// NewSuppressor creates a Suppressor. A threshold of zero never suppresses.
func NewSuppressor(threshold int) *Suppressor {
	return &Suppressor{threshold: max(0, threshold)}
}

// Allow records a failure fingerprint and reports whether it should be
// reported.
func (s *Suppressor) Allow(fingerprint string) bool {
	if fingerprint == s.last {
		s.repeats++
	} else {
		s.last = fingerprint
		s.repeats = 1
	}

	if s.threshold == 0 {
		return true
	}
	return s.repeats <= s.threshold
}

// Repeats returns how many times in a row the current fingerprint was seen.
func (s *Suppressor) Repeats() int {
	return s.repeats
}

// Reset clears the streak, typically after a clean iteration.
func (s *Suppressor) Reset() {
	s.last = ""
	s.repeats = 0
}
