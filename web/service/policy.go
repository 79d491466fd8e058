package service

import (
	"math/rand"
	"sync"
)

// Policy ranks a draw's eligible pool into a priority order. Winners
// are the first WinnerCount entries; replacements continue down the
// ranking. Rankings must be a permutation of the pool and depend only
// on (pool, rng), so a recorded seed replays the same outcome.
type Policy interface {
	Name() string
	Rank(rng *rand.Rand, pool []string) []string
}

var (
	policyMu sync.RWMutex
	policies = map[string]Policy{}
)

func RegisterPolicy(p Policy) {
	policyMu.Lock()
	defer policyMu.Unlock()
	policies[p.Name()] = p
}

// PolicyByName resolves a registered policy, falling back to uniform.
func PolicyByName(name string) Policy {
	policyMu.RLock()
	defer policyMu.RUnlock()
	if p, ok := policies[name]; ok {
		return p
	}
	return uniformPolicy{}
}

// uniformPolicy selects without replacement with equal probability:
// the ranking is a Fisher-Yates shuffle of the pool.
type uniformPolicy struct{}

func (uniformPolicy) Name() string { return "uniform" }

func (uniformPolicy) Rank(rng *rand.Rand, pool []string) []string {
	ranked := make([]string, len(pool))
	copy(ranked, pool)
	rng.Shuffle(len(ranked), func(i, j int) {
		ranked[i], ranked[j] = ranked[j], ranked[i]
	})
	return ranked
}

func init() {
	RegisterPolicy(uniformPolicy{})
}
