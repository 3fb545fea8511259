package fetcher

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// ErrCircuitOpen is returned when a host has failed too often recently and
// downloads from it are rejected without a request.
var ErrCircuitOpen = eris.New("circuit breaker is open")

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerClosed:
		return "closed"
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// hostBreaker trips after threshold consecutive failed downloads from one
// host. After cooldown a single probe is let through; its outcome closes or
// reopens the breaker.
type hostBreaker struct {
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	state    breakerState
	failures int
	openedAt time.Time
}

func newHostBreaker(threshold int, cooldown time.Duration) *hostBreaker {
	return &hostBreaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

func (b *hostBreaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrCircuitOpen
		}
		b.state = breakerHalfOpen
		return nil
	case breakerHalfOpen:
		// One probe at a time.
		return ErrCircuitOpen
	default:
		return nil
	}
}

func (b *hostBreaker) record(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ok {
		b.state = breakerClosed
		b.failures = 0
		return
	}

	b.failures++
	if b.state == breakerHalfOpen || b.failures >= b.threshold {
		b.state = breakerOpen
		b.openedAt = b.now()
	}
}

func (b *hostBreaker) current() breakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// abort gives up a probe without an outcome, for example on cancellation.
func (b *hostBreaker) abort() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == breakerHalfOpen {
		b.state = breakerOpen
	}
}
