package game

import (
	"container/heap"

	"github.com/mgelsinger/maze-wars/maze"
)

// BFSPath returns the shortest sequence of direction tokens from `from` to
// `to`, or nil when no path exists.
func BFSPath(m *maze.Maze, from, to maze.Position) []string {
	if !m.InBound(from) || !m.InBound(to) {
		return nil
	}
	if from == to {
		return []string{}
	}

	index := func(p maze.Position) int { return p.Y*m.Width + p.X }
	cameFrom := make([]int, m.Width*m.Height)
	cameDir := make([]string, m.Width*m.Height)
	for i := range cameFrom {
		cameFrom[i] = -1
	}
	cameFrom[index(from)] = index(from)

	queue := []maze.Position{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dir := range maze.Directions {
			if m.Blocked(cur, dir) {
				continue
			}
			next := cur.Step(dir)
			if cameFrom[index(next)] != -1 {
				continue
			}
			cameFrom[index(next)] = index(cur)
			cameDir[index(next)] = dir
			if next == to {
				return reconstruct(m, cameFrom, cameDir, from, to)
			}
			queue = append(queue, next)
		}
	}
	return nil
}

// AStarPath is BFSPath's weighted sibling: A* with the Manhattan-distance
// heuristic, admissible on a unit-cost grid so the result is optimal.
func AStarPath(m *maze.Maze, from, to maze.Position) []string {
	if !m.InBound(from) || !m.InBound(to) {
		return nil
	}
	if from == to {
		return []string{}
	}

	index := func(p maze.Position) int { return p.Y*m.Width + p.X }
	size := m.Width * m.Height

	gScore := make([]int, size)
	cameFrom := make([]int, size)
	cameDir := make([]string, size)
	for i := range gScore {
		gScore[i] = -1
		cameFrom[i] = -1
	}
	gScore[index(from)] = 0
	cameFrom[index(from)] = index(from)

	open := &nodeHeap{}
	heap.Init(open)
	heap.Push(open, &pathNode{pos: from, priority: from.Manhattan(to)})

	for open.Len() > 0 {
		cur := heap.Pop(open).(*pathNode)
		if cur.pos == to {
			return reconstruct(m, cameFrom, cameDir, from, to)
		}

		for _, dir := range maze.Directions {
			if m.Blocked(cur.pos, dir) {
				continue
			}
			next := cur.pos.Step(dir)
			tentative := gScore[index(cur.pos)] + 1
			if g := gScore[index(next)]; g != -1 && tentative >= g {
				continue
			}
			gScore[index(next)] = tentative
			cameFrom[index(next)] = index(cur.pos)
			cameDir[index(next)] = dir
			heap.Push(open, &pathNode{pos: next, priority: tentative + next.Manhattan(to)})
		}
	}
	return nil
}

func reconstruct(m *maze.Maze, cameFrom []int, cameDir []string, from, to maze.Position) []string {
	index := func(p maze.Position) int { return p.Y*m.Width + p.X }

	var path []string
	cur := index(to)
	for cur != index(from) {
		path = append(path, cameDir[cur])
		cur = cameFrom[cur]
	}
	// Reverse in place: the walk above runs exit-to-start.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

type pathNode struct {
	pos      maze.Position
	priority int
	index    int
}

type nodeHeap []*pathNode

func (h nodeHeap) Len() int { return len(h) }

func (h nodeHeap) Less(i, j int) bool { return h[i].priority < h[j].priority }

func (h nodeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *nodeHeap) Push(x any) {
	n := x.(*pathNode)
	n.index = len(*h)
	*h = append(*h, n)
}

func (h *nodeHeap) Pop() any {
	old := *h
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*h = old[:len(old)-1]
	return n
}
