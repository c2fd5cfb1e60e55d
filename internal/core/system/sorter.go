package system

import (
	"cmp"
	"slices"
	"strings"

	"go.uber.org/zap"
)

type bucket uint8

const (
	bucketFirst bucket = iota
	bucketMiddle
	bucketLast
	numBuckets
)

// Invalid-constraint reasons attached to sorter warnings.
const (
	reasonNotSystem  = "target is not a system type"
	reasonSelf       = "a system cannot be ordered relative to itself"
	reasonNotSibling = "target is not a member of the same group"
	reasonPrecedence = "OrderFirst/OrderLast has higher precedence"
)

type sortNode struct {
	sys    System
	typ    TypeID
	seq    uint64
	bucket bucket
	succ   []int
	npred  int
}

func bucketIn(b *Base, group TypeID) bucket {
	for _, p := range b.placements {
		if p.Group != group {
			continue
		}
		switch {
		case p.OrderFirst:
			return bucketFirst
		case p.OrderLast:
			return bucketLast
		}
		return bucketMiddle
	}
	return bucketMiddle
}

// sortSystems orders the members of one group. Members are split into
// first/middle/last buckets by their placement in the group; within a bucket
// they are topologically sorted by their before/after constraints, ties broken
// by full type name and then creation order. Invalid constraints are logged
// and ignored. A cycle yields *CycleError and no order.
func sortSystems(group TypeID, systems []System, log *zap.Logger) ([]System, error) {
	nodes := make([]sortNode, len(systems))
	byType := make(map[TypeID][]int, len(systems))
	for i, s := range systems {
		b := s.base()
		nodes[i] = sortNode{sys: s, typ: b.typ, seq: b.seq, bucket: bucketIn(b, group)}
		byType[b.typ] = append(byType[b.typ], i)
	}

	addEdge := func(from, to int) {
		if slices.Contains(nodes[from].succ, to) {
			return
		}
		nodes[from].succ = append(nodes[from].succ, to)
		nodes[to].npred++
	}
	warn := func(c constraint, n *sortNode, reason string) {
		log.Warn("ignoring invalid ["+c.kind()+"] constraint",
			zap.String("group", group.String()),
			zap.String("system", n.typ.String()),
			zap.String("target", c.target.String()),
			zap.String("reason", reason))
	}

	for i := range nodes {
		n := &nodes[i]
		for _, c := range n.sys.base().constraints {
			switch {
			case !c.target.IsSystem():
				warn(c, n, reasonNotSystem)
				continue
			case c.target == n.typ:
				warn(c, n, reasonSelf)
				continue
			}
			targets, ok := byType[c.target]
			if !ok {
				warn(c, n, reasonNotSibling)
				continue
			}
			for _, j := range targets {
				tb := nodes[j].bucket
				if c.before {
					if n.bucket > tb {
						warn(c, n, reasonPrecedence)
						break
					}
					if n.bucket == tb {
						addEdge(i, j)
					}
				} else {
					if n.bucket < tb {
						warn(c, n, reasonPrecedence)
						break
					}
					if n.bucket == tb {
						addEdge(j, i)
					}
				}
			}
		}
	}

	less := func(a, b int) int {
		if c := strings.Compare(nodes[a].typ.FullName(), nodes[b].typ.FullName()); c != 0 {
			return c
		}
		return cmp.Compare(nodes[a].seq, nodes[b].seq)
	}
	for i := range nodes {
		slices.SortFunc(nodes[i].succ, less)
	}

	out := make([]System, 0, len(systems))
	for bk := bucketFirst; bk < numBuckets; bk++ {
		var ready, members []int
		for i := range nodes {
			if nodes[i].bucket != bk {
				continue
			}
			members = append(members, i)
			if nodes[i].npred == 0 {
				ready = append(ready, i)
			}
		}
		slices.SortFunc(ready, less)

		placed := 0
		for len(ready) > 0 {
			i := ready[0]
			ready = ready[1:]
			out = append(out, nodes[i].sys)
			placed++
			for _, j := range nodes[i].succ {
				nodes[j].npred--
				if nodes[j].npred == 0 {
					at, _ := slices.BinarySearchFunc(ready, j, less)
					ready = slices.Insert(ready, at, j)
				}
			}
		}
		if placed < len(members) {
			return nil, &CycleError{Group: group, Chain: shortestCycle(nodes, members, less)}
		}
	}
	return out, nil
}

// shortestCycle finds the shortest loop among the nodes the topological pass
// could not place. Each candidate start is searched breadth-first; ties go to
// the start that sorts first.
func shortestCycle(nodes []sortNode, members []int, less func(a, b int) int) []TypeID {
	stuck := make(map[int]bool)
	for _, i := range members {
		if nodes[i].npred > 0 {
			stuck[i] = true
		}
	}
	starts := make([]int, 0, len(stuck))
	for i := range stuck {
		starts = append(starts, i)
	}
	slices.SortFunc(starts, less)

	var best []int
	for _, start := range starts {
		parent := map[int]int{start: -1}
		queue := []int{start}
		var path []int
	search:
		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			for _, v := range nodes[u].succ {
				if !stuck[v] {
					continue
				}
				if v == start {
					for x := u; x != -1; x = parent[x] {
						path = append(path, x)
					}
					slices.Reverse(path)
					break search
				}
				if _, seen := parent[v]; !seen {
					parent[v] = u
					queue = append(queue, v)
				}
			}
		}
		if path != nil && (best == nil || len(path) < len(best)) {
			best = path
		}
	}

	chain := make([]TypeID, len(best))
	for k, i := range best {
		chain[k] = nodes[i].typ
	}
	return chain
}
