package directions

import (
	"context"
	"fmt"
	"sync"
)

// MockPair seeds one origin→destination leg in a MockProvider.
type MockPair struct {
	From, To LatLng
	Minutes  int
	Km       float64
}

// MockProvider is a map-backed Provider for tests. It counts calls so tests
// can assert scope minimality (which edits hit the provider and how often),
// and can be forced to fail to exercise rollback paths.
type MockProvider struct {
	mu    sync.Mutex
	m     map[string]Leg
	calls int

	// Err, when non-nil, is returned by every call.
	Err error
	// FailAfter, when > 0, fails every call past that count. Lets a test
	// break a full recomputation partway through.
	FailAfter int
}

func NewMockProvider(pairs []MockPair) *MockProvider {
	m := make(map[string]Leg, len(pairs))
	for _, p := range pairs {
		m[pairKey(p.From, p.To)] = Leg{MoveTimeMin: p.Minutes, MoveDistanceKm: p.Km}
	}
	return &MockProvider{m: m}
}

func pairKey(from, to LatLng) string {
	return fmt.Sprintf("%.6f,%.6f|%.6f,%.6f", from.Lat, from.Lng, to.Lat, to.Lng)
}

func (p *MockProvider) ComputeLeg(ctx context.Context, req Request) (Leg, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if p.Err != nil {
		return Leg{}, p.Err
	}
	if p.FailAfter > 0 && p.calls > p.FailAfter {
		return Leg{}, fmt.Errorf("mock provider: forced failure on call %d", p.calls)
	}

	leg, ok := p.m[pairKey(req.Origin, req.Destination)]
	if !ok {
		return Leg{}, fmt.Errorf("mock provider: missing pair %v -> %v", req.Origin, req.Destination)
	}
	return leg, nil
}

// Calls returns how many times ComputeLeg was invoked.
func (p *MockProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
