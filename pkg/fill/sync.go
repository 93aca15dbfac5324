package fill

import (
	"github.com/athuldev13/Loki/pkg/dataset"
	"github.com/athuldev13/Loki/pkg/expr"
)

// Synchronizer groups evaluators that must be jointly indexed. Evaluators
// co-occurring in any histogram's axis/selection/weight set land in one
// SyncGroup (union-find over co-occurrence), because their sub-values are
// visited with a single shared index at fill time. Groups are established
// once per shard, not per row.
type Synchronizer struct {
	parent map[expr.Evaluator]expr.Evaluator
	groups map[expr.Evaluator]*SyncGroup
	synced bool
}

// NewSynchronizer creates an empty synchronizer.
func NewSynchronizer() *Synchronizer {
	return &Synchronizer{
		parent: make(map[expr.Evaluator]expr.Evaluator),
		groups: make(map[expr.Evaluator]*SyncGroup),
	}
}

// Register unions all evaluators of one histogram into a single group.
// Nil handles (absent selection/weight) are ignored. Must not be called
// after Sync.
func (s *Synchronizer) Register(evaluators []expr.Evaluator) {
	if s.synced {
		panic("synchronizer already finalized")
	}
	var prev expr.Evaluator
	for _, ev := range evaluators {
		if ev == nil {
			continue
		}
		if _, ok := s.parent[ev]; !ok {
			s.parent[ev] = ev
		}
		if prev != nil {
			s.union(prev, ev)
		}
		prev = ev
	}
}

// Sync finalizes the groups. Called after all histograms registered and
// before processing starts.
func (s *Synchronizer) Sync() {
	for ev := range s.parent {
		root := s.find(ev)
		g, ok := s.groups[root]
		if !ok {
			g = &SyncGroup{}
			s.groups[root] = g
		}
		g.members = append(g.members, ev)
	}
	s.synced = true
}

// Group returns the finalized group containing the evaluator.
func (s *Synchronizer) Group(ev expr.Evaluator) *SyncGroup {
	if !s.synced {
		panic("synchronizer not finalized")
	}
	return s.groups[s.find(ev)]
}

func (s *Synchronizer) find(ev expr.Evaluator) expr.Evaluator {
	for s.parent[ev] != ev {
		s.parent[ev] = s.parent[s.parent[ev]]
		ev = s.parent[ev]
	}
	return ev
}

func (s *Synchronizer) union(a, b expr.Evaluator) {
	ra, rb := s.find(a), s.find(b)
	if ra != rb {
		s.parent[rb] = ra
	}
}

// SyncGroup is the set of evaluators jointly indexed for one or more
// histograms.
type SyncGroup struct {
	members []expr.Evaluator
}

// Size returns the number of distinct evaluators in the group.
func (g *SyncGroup) Size() int {
	return len(g.members)
}

// SharedCardinality returns the number of sub-values to visit for the row:
// the maximum cardinality over the group, provided every member reports
// either that maximum or 1 (a scalar, broadcast across the group). Two
// members with unequal cardinalities both greater than 1 cannot be paired
// index-for-index; the row is a synchronization conflict and ok is false.
func (g *SyncGroup) SharedCardinality(row dataset.Row) (int, bool) {
	max := 0
	for _, ev := range g.members {
		if n := ev.Cardinality(row); n > max {
			max = n
		}
	}
	for _, ev := range g.members {
		if n := ev.Cardinality(row); n != max && n != 1 {
			return 0, false
		}
	}
	return max, true
}
