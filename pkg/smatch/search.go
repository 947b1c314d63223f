package smatch

import (
	"context"
	"math/rand"

	"github.com/gilchrisn/graph-matching-service/pkg/utils"
)

// InitStrategy selects how a restart builds its starting mapping
type InitStrategy int

const (
	// GreedyInit maps each node to the free candidate with the largest gain
	GreedyInit InitStrategy = iota
	// RandomInit maps each node to a uniformly random free candidate or to nothing
	RandomInit
)

func (s InitStrategy) String() string {
	if s == GreedyInit {
		return "greedy"
	}
	return "random"
}

// strategyFor alternates greedy and random starts, beginning with greedy
func strategyFor(restart int) InitStrategy {
	if restart%2 == 0 {
		return GreedyInit
	}
	return RandomInit
}

// ctxCheckInterval is how many node visits pass between deadline checks
const ctxCheckInterval = 64

// climber is the mutable state of one restart
type climber struct {
	ix      *matchIndex
	rng     *rand.Rand
	mapping []int // A node -> B node or unmapped
	owner   []int // B node -> A node or unmapped
	order   []int // node scan order
	match   int
	moves   int
	swaps   bool
	restart int
	pair    int
	tracker *utils.MoveTracker
}

func newClimber(ix *matchIndex, seed int64, restart, pair int, swaps bool, tracker *utils.MoveTracker) *climber {
	c := &climber{
		ix:      ix,
		rng:     rand.New(rand.NewSource(seed)),
		mapping: make([]int, ix.n1),
		owner:   make([]int, ix.n2),
		order:   make([]int, ix.n1),
		swaps:   swaps,
		restart: restart,
		pair:    pair,
		tracker: tracker,
	}
	for i := range c.mapping {
		c.mapping[i] = unmapped
		c.order[i] = i
	}
	for j := range c.owner {
		c.owner[j] = unmapped
	}
	c.rng.Shuffle(len(c.order), func(i, j int) { c.order[i], c.order[j] = c.order[j], c.order[i] })
	return c
}

func (c *climber) assign(i, j int) {
	if old := c.mapping[i]; old != unmapped && c.owner[old] == i {
		c.owner[old] = unmapped
	}
	c.mapping[i] = j
	if j != unmapped {
		c.owner[j] = i
	}
}

// initialize builds the starting mapping and its match count
func (c *climber) initialize(strategy InitStrategy) {
	switch strategy {
	case GreedyInit:
		for _, i := range c.order {
			best, bestGain := unmapped, 0
			for _, j := range c.ix.candidates[i] {
				if c.owner[j] != unmapped {
					continue
				}
				g := c.ix.contribution(c.mapping, i, j)
				if g > bestGain || (g == bestGain && best == unmapped) {
					best, bestGain = j, g
				}
			}
			c.assign(i, best)
		}
	case RandomInit:
		free := make([]int, 0)
		for _, i := range c.order {
			free = free[:0]
			for _, j := range c.ix.candidates[i] {
				if c.owner[j] == unmapped {
					free = append(free, j)
				}
			}
			pick := c.rng.Intn(len(free) + 1)
			if pick < len(free) {
				c.assign(i, free[pick])
			}
		}
	}
	c.match = c.ix.score(c.mapping)
}

// improve applies the first strictly improving move for node i, trying its
// candidates in order and then unmapping it. A candidate held by another node
// is tried as a swap.
func (c *climber) improve(i int) bool {
	current := c.mapping[i]
	for _, j := range c.ix.candidates[i] {
		if j == current {
			continue
		}
		k := c.owner[j]
		if k == unmapped {
			if g := c.ix.gain(c.mapping, i, j); g > 0 {
				c.apply(i, current, j, unmapped, g)
				c.assign(i, j)
				return true
			}
			continue
		}
		if !c.swaps {
			continue
		}
		if g := c.ix.swapGain(c.mapping, i, k); g > 0 {
			c.apply(i, current, j, k, g)
			c.mapping[i], c.mapping[k] = j, current
			c.owner[j] = i
			if current != unmapped {
				c.owner[current] = k
			}
			return true
		}
	}
	if current != unmapped {
		if g := c.ix.gain(c.mapping, i, unmapped); g > 0 {
			c.apply(i, current, unmapped, unmapped, g)
			c.assign(i, unmapped)
			return true
		}
	}
	return false
}

func (c *climber) apply(node, from, to, partner, gain int) {
	c.match += gain
	c.moves++
	c.tracker.LogMove(utils.MoveEvent{
		Pair:    c.pair,
		Restart: c.restart,
		Move:    c.moves,
		Node:    node,
		From:    from,
		To:      to,
		Partner: partner,
		Gain:    gain,
		Match:   c.match,
	})
}

// climb runs first-improvement hill climbing until a full scan over all
// nodes finds no improving move. It returns false if ctx expired first; the
// mapping is still valid in that case.
func (c *climber) climb(ctx context.Context) bool {
	n := len(c.order)
	if n == 0 {
		return true
	}
	idle, pos := 0, 0
	for visits := 0; idle < n; visits++ {
		if visits%ctxCheckInterval == 0 && ctx.Err() != nil {
			return false
		}
		i := c.order[pos]
		pos = (pos + 1) % n
		if c.improve(i) {
			idle = 0
		} else {
			idle++
		}
	}
	return true
}
