package maze

// Direction tokens used on the wire and in wall checks.
const (
	North = "north"
	South = "south"
	East  = "east"
	West  = "west"
)

// Directions lists all four direction tokens in a fixed order. Generation
// iterates this slice, so the order is part of the deterministic contract.
var Directions = []string{North, South, East, West}

// Position is a cell coordinate. X grows eastward, Y grows southward.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Step returns the neighboring position in the given direction. Unknown
// directions return the position unchanged.
func (p Position) Step(direction string) Position {
	switch direction {
	case North:
		return Position{X: p.X, Y: p.Y - 1}
	case South:
		return Position{X: p.X, Y: p.Y + 1}
	case East:
		return Position{X: p.X + 1, Y: p.Y}
	case West:
		return Position{X: p.X - 1, Y: p.Y}
	}
	return p
}

// Manhattan returns the Manhattan distance to other.
func (p Position) Manhattan(other Position) int {
	return abs(p.X-other.X) + abs(p.Y-other.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// opposite returns the reversed direction token. Unknown directions map to
// themselves.
func opposite(direction string) string {
	switch direction {
	case North:
		return South
	case South:
		return North
	case East:
		return West
	case West:
		return East
	}
	return direction
}

// Cell represents a single cell in the maze grid. Walls are immutable after
// generation.
type Cell struct {
	X         int  `json:"x"`
	Y         int  `json:"y"`
	NorthWall bool `json:"northWall"`
	SouthWall bool `json:"southWall"`
	EastWall  bool `json:"eastWall"`
	WestWall  bool `json:"westWall"`
}

// HasWall reports whether the cell has a wall in the given direction.
// Unknown directions count as walled.
func (c *Cell) HasWall(direction string) bool {
	switch direction {
	case North:
		return c.NorthWall
	case South:
		return c.SouthWall
	case East:
		return c.EastWall
	case West:
		return c.WestWall
	}
	return true
}

// setWall sets or clears the wall in the given direction. Unknown
// directions are ignored.
func (c *Cell) setWall(direction string, walled bool) {
	switch direction {
	case North:
		c.NorthWall = walled
	case South:
		c.SouthWall = walled
	case East:
		c.EastWall = walled
	case West:
		c.WestWall = walled
	}
}

// PowerupType enumerates the collectible powerup kinds.
type PowerupType string

const (
	PowerupSpeedBoost PowerupType = "speed_boost"
	PowerupFreeze     PowerupType = "freeze"
)

// Powerup is a collectible placed by the generator. Collected is the only
// mutable field and flips false to true exactly once.
type Powerup struct {
	ID        string      `json:"id"`
	Type      PowerupType `json:"type"`
	Pos       Position    `json:"position"`
	Collected bool        `json:"collected"`
}
