package resilience

import "sync"

// Counter tracks the failure score across loop iterations. It is safe for
// concurrent use so the status API can read it while the loop writes.
type Counter struct {
	mu       sync.Mutex
	policy   Policy
	score    int
	failures int
}

// NewCounter creates a Counter at score zero.
func NewCounter(p Policy) *Counter {
	return &Counter{policy: p}
}

// Success records a clean iteration and returns the new score.
func (c *Counter) Success() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.score = c.policy.OnSuccess(c.score)
	c.failures = 0
	return c.score
}

// Failure records a failed iteration and returns the new score.
func (c *Counter) Failure() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.score = c.policy.OnFailure(c.score)
	c.failures++
	return c.score
}

// Score returns the current score.
func (c *Counter) Score() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.score
}

// Failures returns the number of failed iterations since the last clean one.
func (c *Counter) Failures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failures
}

// Fatal reports whether the score has crossed the policy ceiling.
func (c *Counter) Fatal() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policy.Fatal(c.score)
}

// Policy returns the policy the counter was built with.
func (c *Counter) Policy() Policy {
	return c.policy
}
