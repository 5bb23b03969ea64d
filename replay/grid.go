package replay

import (
	"fmt"

	"fairplay/config"
)

// Slide directions for 2048.
const (
	Up    = "up"
	Down  = "down"
	Left  = "left"
	Right = "right"
)

// Tile is a numbered tile. IDs come from the grid's own counter so a replay
// assigns the same ids as the original game.
type Tile struct {
	ID    int `json:"id"`
	Value int `json:"value"`
}

// Grid is a 2048 board, row-major.
type Grid struct {
	Cells  [config.GridSize * config.GridSize]Tile
	Score  int64
	Moves  int
	nextID int
}

func (g *Grid) newTile(value int) Tile {
	g.nextID++
	return Tile{ID: g.nextID, Value: value}
}

// Empty lists the empty cell indices in ascending order.
func (g *Grid) Empty() []int {
	var out []int
	for i, t := range g.Cells {
		if t.Value == 0 {
			out = append(out, i)
		}
	}
	return out
}

// Values is the board as a matrix of tile values.
func (g *Grid) Values() [config.GridSize][config.GridSize]int {
	var out [config.GridSize][config.GridSize]int
	for i, t := range g.Cells {
		out[i/config.GridSize][i%config.GridSize] = t.Value
	}
	return out
}

// line returns the cell indices of line k, ordered from the edge tiles slide
// toward.
func line(dir string, k int) [config.GridSize]int {
	const n = config.GridSize
	var idx [n]int
	for i := 0; i < n; i++ {
		switch dir {
		case Left:
			idx[i] = k*n + i
		case Right:
			idx[i] = k*n + (n - 1 - i)
		case Up:
			idx[i] = i*n + k
		case Down:
			idx[i] = (n-1-i)*n + k
		}
	}
	return idx
}

// Slide moves every tile toward dir, merging equal neighbours once per move.
// It reports whether the board changed and the points scored.
func (g *Grid) Slide(dir string) (bool, int64) {
	changed := false
	var gained int64
	for k := 0; k < config.GridSize; k++ {
		idx := line(dir, k)
		var tiles []Tile
		for _, i := range idx {
			if g.Cells[i].Value != 0 {
				tiles = append(tiles, g.Cells[i])
			}
		}
		var out []Tile
		for j := 0; j < len(tiles); j++ {
			if j+1 < len(tiles) && tiles[j].Value == tiles[j+1].Value {
				merged := g.newTile(tiles[j].Value * 2)
				gained += int64(merged.Value)
				out = append(out, merged)
				j++
				continue
			}
			out = append(out, tiles[j])
		}
		for j, i := range idx {
			var t Tile
			if j < len(out) {
				t = out[j]
			}
			if t != g.Cells[i] {
				changed = true
			}
			g.Cells[i] = t
		}
	}
	return changed, gained
}

func (g *Grid) spawn(draws *DrawLog) error {
	s, err := draws.Spawn(g.Empty())
	if err != nil {
		return err
	}
	g.Cells[s.Cell] = g.newTile(s.Value)
	return nil
}

// Game2048Rules replays a 2048 game: two opening spawns, then one spawn after
// every move that changes the board. The score is the sum of merged values.
type Game2048Rules struct{}

func (Game2048Rules) Shape(sub *Submission[struct{}, string]) error {
	for i, dir := range sub.Actions {
		switch dir {
		case Up, Down, Left, Right:
		default:
			return fmt.Errorf("move %d: unknown direction %q", i, dir)
		}
	}
	if want := len(sub.Actions) + 2; len(sub.Draws) != want {
		return fmt.Errorf("%d moves need %d spawns, got %d", len(sub.Actions), want, len(sub.Draws))
	}
	return nil
}

func (Game2048Rules) Start(_ *struct{}, draws *DrawLog) (*Grid, error) {
	g := &Grid{}
	for i := 0; i < 2; i++ {
		if err := g.spawn(draws); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (Game2048Rules) Step(g *Grid, dir string, draws *DrawLog) (*Grid, error) {
	changed, gained := g.Slide(dir)
	if !changed {
		return g, illegal("move %s does not change the board", dir)
	}
	g.Score += gained
	g.Moves++
	if err := g.spawn(draws); err != nil {
		return g, err
	}
	return g, nil
}

func (Game2048Rules) Finish(*Grid) error { return nil }

func (Game2048Rules) Score(g *Grid) int64 { return g.Score }

func (Game2048Rules) Snapshot(g *Grid) any { return g.Values() }

func (Game2048Rules) Tolerance() float64 { return 0 }
