package resilience

import "sync"

// SingleFlight collapses concurrent calls sharing a key into a single
// execution. Late arrivals block until the leader finishes and receive
// its result; the third return value reports whether the result was
// shared.
type SingleFlight struct {
	mu     sync.Mutex
	flight map[string]*flightResult
}

type flightResult struct {
	done chan struct{}
	val  any
	err  error
}

func (g *SingleFlight) Do(key string, fn func() (any, error)) (any, error, bool) {
	g.mu.Lock()
	if g.flight == nil {
		g.flight = make(map[string]*flightResult)
	}
	if r, ok := g.flight[key]; ok {
		g.mu.Unlock()
		<-r.done
		return r.val, r.err, true
	}

	r := &flightResult{done: make(chan struct{})}
	g.flight[key] = r
	g.mu.Unlock()

	r.val, r.err = fn()

	g.mu.Lock()
	delete(g.flight, key)
	g.mu.Unlock()
	close(r.done)

	return r.val, r.err, false
}
