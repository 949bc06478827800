// Package atlas reads and edits the square texture atlas referenced by the
// block table's cell coordinates.
package atlas

import (
	"fmt"
	"image"

	"blockedit.ai/internal/blocks"
)

// Grid describes a square atlas of Size pixels split into Cells x Cells
// tiles.
type Grid struct {
	Size  int
	Cells int
}

func DefaultGrid() Grid { return Grid{Size: 1024, Cells: 16} }

func (g Grid) Validate() error {
	if g.Size <= 0 || g.Cells <= 0 {
		return fmt.Errorf("atlas grid %dpx/%d: size and cells must be positive", g.Size, g.Cells)
	}
	if g.Size%g.Cells != 0 {
		return fmt.Errorf("atlas grid %dpx/%d: size is not a multiple of cells", g.Size, g.Cells)
	}
	return nil
}

func (g Grid) TileSize() int { return g.Size / g.Cells }

func (g Grid) Contains(c blocks.Cell) bool {
	return c.Col() >= 0 && c.Row() >= 0 && c.Col() < g.Cells && c.Row() < g.Cells
}

// CellAt maps a pixel position to the cell under it.
func (g Grid) CellAt(x, y int) (blocks.Cell, bool) {
	if x < 0 || y < 0 || x >= g.Size || y >= g.Size {
		return blocks.Cell{}, false
	}
	ts := g.TileSize()
	return blocks.Cell{x / ts, y / ts}, true
}

// Rect is the pixel rectangle covered by c.
func (g Grid) Rect(c blocks.Cell) image.Rectangle {
	ts := g.TileSize()
	return image.Rect(c.Col()*ts, c.Row()*ts, (c.Col()+1)*ts, (c.Row()+1)*ts)
}
