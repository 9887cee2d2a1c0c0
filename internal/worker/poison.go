package worker

import (
	"sync"
	"time"

	"github.com/radioforge/radioforge/internal/jobs"
)

// poisonTracker pauses claiming a job type after too many consecutive
// failures, so a payload that crashes its handler cannot monopolize the
// worker pool while it burns through its retry budget.
type poisonTracker struct {
	threshold int
	cooldown  time.Duration

	mu          sync.Mutex
	consecutive map[jobs.Type]int
	pausedUntil map[jobs.Type]time.Time
}

func newPoisonTracker(threshold int, cooldown time.Duration) *poisonTracker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 5 * time.Minute
	}
	return &poisonTracker{
		threshold:   threshold,
		cooldown:    cooldown,
		consecutive: make(map[jobs.Type]int),
		pausedUntil: make(map[jobs.Type]time.Time),
	}
}

// recordFailure bumps the consecutive failure count and returns true when
// this failure tripped the pause.
func (p *poisonTracker) recordFailure(t jobs.Type) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.consecutive[t]++
	if p.consecutive[t] >= p.threshold {
		p.pausedUntil[t] = time.Now().Add(p.cooldown)
		p.consecutive[t] = 0
		return true
	}
	return false
}

// reset clears the failure streak after a success.
func (p *poisonTracker) reset(t jobs.Type) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.consecutive, t)
}

// paused reports whether the type is inside a cooldown window. Expired
// windows are cleaned up on read.
func (p *poisonTracker) paused(t jobs.Type) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	until, ok := p.pausedUntil[t]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(p.pausedUntil, t)
		return false
	}
	return true
}
