/*
Package maze provides deterministic generation of rectangular grid mazes
with powerup layouts.

Generation is fully reproducible: the same width, height, seed and
extra-opening count always yield a bit-identical maze. Only those four
numbers cross the network; every participant regenerates the maze locally.
*/
package maze

import "fmt"

const (
	// Extra-opening placement retries are bounded at this multiple of the
	// requested count.
	openingRetryFactor = 20

	// Start/exit placement re-rolls if the reachability check fails.
	maxPlacementAttempts = 5

	// Powerup layout constraints.
	minDistFromEndpoints = 3
	minDistBetween       = 5
)

// Maze is an immutable generated maze; only each Powerup's Collected flag
// may change afterwards.
type Maze struct {
	Width         int
	Height        int
	Seed          uint32
	ExtraOpenings int
	Grid          [][]*Cell // indexed [y][x]
	Start         Position
	Exit          Position
	OptimalPath   int // BFS distance start to exit
	Powerups      []*Powerup
}

// powerupCounts maps a size class to required counts per type.
var powerupCounts = map[string]struct{ speed, freeze int }{
	"small":  {speed: 2, freeze: 1},
	"medium": {speed: 3, freeze: 1},
	"large":  {speed: 4, freeze: 2},
	"huge":   {speed: 5, freeze: 2},
}

// SizeClass buckets maze dimensions into the powerup-count classes.
func SizeClass(width, height int) string {
	switch d := max(width, height); {
	case d <= 15:
		return "small"
	case d <= 25:
		return "medium"
	case d <= 35:
		return "large"
	default:
		return "huge"
	}
}

// ParamsForLevel maps a difficulty level (1..4) to generation parameters.
func ParamsForLevel(level int) (width, height, extraOpenings int) {
	switch level {
	case 1:
		return 15, 15, 4
	case 2:
		return 21, 21, 8
	case 3:
		return 31, 31, 14
	default:
		return 41, 41, 22
	}
}

// Generate builds a maze from the given parameters. It always succeeds; the
// internal retries are defensive bounds, not failure paths.
func Generate(width, height int, seed uint32, extraOpenings int) *Maze {
	rng := newRand32(seed)

	grid := make([][]*Cell, height)
	for y := range grid {
		grid[y] = make([]*Cell, width)
		for x := range grid[y] {
			grid[y][x] = &Cell{
				X:         x,
				Y:         y,
				NorthWall: true,
				SouthWall: true,
				EastWall:  true,
				WestWall:  true,
			}
		}
	}

	m := &Maze{
		Width:         width,
		Height:        height,
		Seed:          seed,
		ExtraOpenings: extraOpenings,
		Grid:          grid,
	}

	m.carve(rng)
	m.addOpenings(rng, extraOpenings)
	m.placeEndpoints(rng)
	m.OptimalPath = m.BFSDistance(m.Start, m.Exit)
	m.placePowerups(rng)
	return m
}

// InBound reports whether the position lies inside the grid.
func (m *Maze) InBound(p Position) bool {
	return p.X >= 0 && p.X < m.Width && p.Y >= 0 && p.Y < m.Height
}

// At returns the cell at p. The caller must ensure p is in bounds.
func (m *Maze) At(p Position) *Cell {
	return m.Grid[p.Y][p.X]
}

// Blocked reports whether moving from p in the given direction is illegal,
// either because of a wall or because it would leave the grid.
func (m *Maze) Blocked(p Position, direction string) bool {
	if !m.InBound(p) || !m.InBound(p.Step(direction)) {
		return true
	}
	return m.At(p).HasWall(direction)
}

// PowerupAt returns the uncollected powerup at p, or nil.
func (m *Maze) PowerupAt(p Position) *Powerup {
	for _, pw := range m.Powerups {
		if !pw.Collected && pw.Pos == p {
			return pw
		}
	}
	return nil
}

// openWall removes the wall between p and its neighbor in the given
// direction, clearing both sides so wall state stays symmetric. Off-grid
// neighbors are ignored.
func (m *Maze) openWall(p Position, direction string) {
	next := p.Step(direction)
	if !m.InBound(p) || !m.InBound(next) {
		return
	}
	m.At(p).setWall(direction, false)
	m.At(next).setWall(opposite(direction), false)
}

// carve runs an iterative depth-first backtracker from a random cell in the
// top-left quadrant, producing a spanning tree over the full grid. Iterative
// on an explicit stack so huge grids never hit recursion limits.
func (m *Maze) carve(rng *rand32) {
	start := Position{X: rng.intn(max(m.Width/2, 1)), Y: rng.intn(max(m.Height/2, 1))}

	visited := make([]bool, m.Width*m.Height)
	index := func(p Position) int { return p.Y*m.Width + p.X }
	visited[index(start)] = true

	stack := []Position{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]

		var open []string
		for _, dir := range Directions {
			next := cur.Step(dir)
			if m.InBound(next) && !visited[index(next)] {
				open = append(open, dir)
			}
		}

		if len(open) == 0 {
			stack = stack[:len(stack)-1]
			continue
		}

		dir := open[rng.intn(len(open))]
		next := cur.Step(dir)
		m.openWall(cur, dir)
		visited[index(next)] = true
		stack = append(stack, next)
	}
}

// addOpenings removes count additional walls at random interior positions,
// introducing cycles. Adding edges to a connected graph cannot disconnect
// it, so no connectivity tracking is needed.
func (m *Maze) addOpenings(rng *rand32, count int) {
	if m.Width < 3 || m.Height < 3 {
		return
	}

	opened := 0
	for attempt := 0; attempt < count*openingRetryFactor && opened < count; attempt++ {
		p := Position{X: 1 + rng.intn(m.Width-2), Y: 1 + rng.intn(m.Height-2)}
		dir := Directions[rng.intn(len(Directions))]
		if !m.At(p).HasWall(dir) {
			continue
		}
		m.openWall(p, dir)
		opened++
	}
}

// placeEndpoints picks the start in the top-left quadrant and the exit in
// the bottom-right quadrant, re-rolling on a failed reachability check.
// Structurally the check cannot fail after a spanning-tree carve, but it is
// kept as a bound on generator regressions.
func (m *Maze) placeEndpoints(rng *rand32) {
	qw, qh := max(m.Width/4, 1), max(m.Height/4, 1)

	for attempt := 0; attempt < maxPlacementAttempts; attempt++ {
		start := Position{X: rng.intn(qw), Y: rng.intn(qh)}
		exit := Position{X: m.Width - 1 - rng.intn(qw), Y: m.Height - 1 - rng.intn(qh)}
		if m.BFSDistance(start, exit) > 0 {
			m.Start, m.Exit = start, exit
			return
		}
	}

	// Unreachable with the current carve; corners are always connected.
	m.Start = Position{X: 0, Y: 0}
	m.Exit = Position{X: m.Width - 1, Y: m.Height - 1}
}

// BFSDistance returns the shortest path length between two cells, or -1 if
// no path exists.
func (m *Maze) BFSDistance(from, to Position) int {
	if !m.InBound(from) || !m.InBound(to) {
		return -1
	}
	if from == to {
		return 0
	}

	dist := make([]int, m.Width*m.Height)
	for i := range dist {
		dist[i] = -1
	}
	index := func(p Position) int { return p.Y*m.Width + p.X }

	dist[index(from)] = 0
	queue := []Position{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dir := range Directions {
			if m.Blocked(cur, dir) {
				continue
			}
			next := cur.Step(dir)
			if dist[index(next)] != -1 {
				continue
			}
			dist[index(next)] = dist[index(cur)] + 1
			if next == to {
				return dist[index(next)]
			}
			queue = append(queue, next)
		}
	}
	return -1
}

// placePowerups assigns powerups to cells far enough from the endpoints and
// from each other, in seeded-random order.
func (m *Maze) placePowerups(rng *rand32) {
	counts := powerupCounts[SizeClass(m.Width, m.Height)]

	var candidates []Position
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			p := Position{X: x, Y: y}
			if p.Manhattan(m.Start) >= minDistFromEndpoints && p.Manhattan(m.Exit) >= minDistFromEndpoints {
				candidates = append(candidates, p)
			}
		}
	}

	rng.shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	remaining := []struct {
		ptype PowerupType
		count int
	}{
		{PowerupSpeedBoost, counts.speed},
		{PowerupFreeze, counts.freeze},
	}

	var placed []Position
	next := 0
	for _, want := range remaining {
		for n := 0; n < want.count && next < len(candidates); next++ {
			p := candidates[next]
			if tooClose(placed, p) {
				continue
			}
			m.Powerups = append(m.Powerups, &Powerup{
				ID:   powerupID(len(m.Powerups)),
				Type: want.ptype,
				Pos:  p,
			})
			placed = append(placed, p)
			n++
		}
	}
}

func tooClose(placed []Position, p Position) bool {
	for _, q := range placed {
		if p.Manhattan(q) < minDistBetween {
			return true
		}
	}
	return false
}

// powerupID is stable across regenerations: derived from placement order only.
func powerupID(n int) string {
	return fmt.Sprintf("pw-%d", n+1)
}
