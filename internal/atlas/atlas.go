package atlas

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"blockedit.ai/internal/blocks"
)

var ErrCellOutOfRange = errors.New("cell outside the atlas grid")

var (
	gridColor   = color.NRGBA{R: 0, G: 255, B: 255, A: 50}
	selectColor = color.NRGBA{R: 255, G: 50, B: 50, A: 255}
	dimColor    = color.NRGBA{R: 0, G: 0, B: 0, A: 100}
)

const selectWidth = 3

type Atlas struct {
	path   string
	grid   Grid
	img    *image.NRGBA
	exists bool
}

// Open loads the atlas PNG at path. A missing file yields a blank transparent
// atlas that is created on the first Save.
func Open(path string, g Grid) (*Atlas, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	a := &Atlas{path: path, grid: g}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			a.img = image.NewNRGBA(image.Rect(0, 0, g.Size, g.Size))
			return a, nil
		}
		return nil, err
	}
	defer f.Close()

	src, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("atlas %s: %w", filepath.Base(path), err)
	}
	b := src.Bounds()
	if b.Dx() != g.Size || b.Dy() != g.Size {
		return nil, fmt.Errorf("atlas %s is %dx%d, want %dx%d", filepath.Base(path), b.Dx(), b.Dy(), g.Size, g.Size)
	}
	a.img = toNRGBA(src)
	a.exists = true
	return a, nil
}

func toNRGBA(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

func (a *Atlas) Path() string { return a.path }
func (a *Atlas) Grid() Grid   { return a.grid }

// Exists reports whether the atlas was read from or written to disk.
func (a *Atlas) Exists() bool { return a.exists }

// Image returns a copy of the whole atlas.
func (a *Atlas) Image() *image.NRGBA { return toNRGBA(a.img) }

// Tile copies the pixels of one cell.
func (a *Atlas) Tile(c blocks.Cell) (*image.NRGBA, error) {
	if !a.grid.Contains(c) {
		return nil, fmt.Errorf("tile %s: %w", c, ErrCellOutOfRange)
	}
	return toNRGBA(a.img.SubImage(a.grid.Rect(c))), nil
}

// Paste replaces the pixels of cell c with src scaled to the tile size by
// nearest-neighbour sampling.
func (a *Atlas) Paste(c blocks.Cell, src image.Image) error {
	if !a.grid.Contains(c) {
		return fmt.Errorf("paste %s: %w", c, ErrCellOutOfRange)
	}
	a.paste(a.img, c, src)
	return nil
}

func (a *Atlas) paste(dst *image.NRGBA, c blocks.Cell, src image.Image) {
	draw.NearestNeighbor.Scale(dst, a.grid.Rect(c), src, src.Bounds(), draw.Src, nil)
}

// Upload pastes src into cell c of a copy of the atlas and writes the copy.
// The in-memory atlas changes only when the write succeeds.
func (a *Atlas) Upload(c blocks.Cell, src image.Image) error {
	if !a.grid.Contains(c) {
		return fmt.Errorf("paste %s: %w", c, ErrCellOutOfRange)
	}
	next := toNRGBA(a.img)
	a.paste(next, c, src)
	if err := a.write(next); err != nil {
		return err
	}
	a.img = next
	return nil
}

// Save writes the atlas as PNG to its path.
func (a *Atlas) Save() error { return a.write(a.img) }

func (a *Atlas) write(img *image.NRGBA) error {
	if dir := filepath.Dir(a.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(a.path)
	if err != nil {
		return err
	}
	if err := EncodePNG(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("atlas %s: %w", filepath.Base(a.path), err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	a.exists = true
	return nil
}

func EncodePNG(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	return enc.Encode(w, img)
}

// Overlay renders the atlas with grid lines and, when selected is non-nil, a
// box and coordinate label on that cell.
func (a *Atlas) Overlay(selected *blocks.Cell) *image.NRGBA {
	out := a.Image()
	lines := image.NewUniform(gridColor)
	ts := a.grid.TileSize()
	for i := 0; i <= a.grid.Cells; i++ {
		pos := i * ts
		draw.Draw(out, image.Rect(pos, 0, pos+1, a.grid.Size), lines, image.Point{}, draw.Over)
		draw.Draw(out, image.Rect(0, pos, a.grid.Size, pos+1), lines, image.Point{}, draw.Over)
	}
	if selected == nil || !a.grid.Contains(*selected) {
		return out
	}

	r := a.grid.Rect(*selected)
	box := image.NewUniform(selectColor)
	for _, edge := range []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+selectWidth),
		image.Rect(r.Min.X, r.Max.Y-selectWidth, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+selectWidth, r.Max.Y),
		image.Rect(r.Max.X-selectWidth, r.Min.Y, r.Max.X, r.Max.Y),
	} {
		draw.Draw(out, edge.Intersect(out.Bounds()), box, image.Point{}, draw.Src)
	}

	d := &font.Drawer{
		Dst:  out,
		Src:  box,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(r.Min.X+selectWidth+2, r.Min.Y+selectWidth+basicfont.Face7x13.Ascent+1),
	}
	d.DrawString(fmt.Sprintf("%d,%d", selected.Col(), selected.Row()))
	return out
}

// Dim darkens img the way inherited faces are previewed.
func Dim(img image.Image) *image.NRGBA {
	out := toNRGBA(img)
	draw.Draw(out, out.Bounds(), image.NewUniform(dimColor), image.Point{}, draw.Over)
	return out
}

// Preview returns the tile shown for one face of r. Faces that inherit the
// side texture are dimmed.
func (a *Atlas) Preview(r blocks.Record, f blocks.Face) (*image.NRGBA, bool, error) {
	cell, inherited := r.Texture(f)
	tile, err := a.Tile(cell)
	if err != nil {
		return nil, inherited, err
	}
	if inherited {
		tile = Dim(tile)
	}
	return tile, inherited, nil
}
