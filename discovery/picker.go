package discovery

import (
	"fmt"
	"math/rand"
	"sync/atomic"
)

// Picker chooses which discovered endpoint to dial. Implementations must
// be goroutine-safe.
type Picker interface {
	Pick(endpoints []Endpoint) (*Endpoint, error)
	Name() string
}

// RoundRobin cycles through endpoints in order with a lock-free atomic
// counter. Right default when every daemon instance is equivalent.
type RoundRobin struct {
	counter atomic.Int64
}

func (p *RoundRobin) Pick(endpoints []Endpoint) (*Endpoint, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("no endpoints available")
	}
	index := p.counter.Add(1) % int64(len(endpoints))
	return &endpoints[index], nil
}

func (p *RoundRobin) Name() string { return "RoundRobin" }

// WeightedRandom picks proportionally to Endpoint.Weight, for mixed
// fleets where some daemons should take more sessions. Endpoints with
// weight <= 0 are never picked unless all weights are unset, in which
// case selection is uniform.
type WeightedRandom struct{}

func (p *WeightedRandom) Pick(endpoints []Endpoint) (*Endpoint, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("no endpoints available")
	}

	totalWeight := 0
	for _, ep := range endpoints {
		if ep.Weight > 0 {
			totalWeight += ep.Weight
		}
	}
	if totalWeight == 0 {
		return &endpoints[rand.Intn(len(endpoints))], nil
	}

	r := rand.Intn(totalWeight)
	for i := range endpoints {
		if endpoints[i].Weight <= 0 {
			continue
		}
		r -= endpoints[i].Weight
		if r < 0 {
			return &endpoints[i], nil
		}
	}
	return nil, fmt.Errorf("weighted selection fell through")
}

func (p *WeightedRandom) Name() string { return "WeightedRandom" }
