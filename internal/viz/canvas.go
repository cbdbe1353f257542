package viz

import (
	"math"
	"strings"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const brailleBlank = 0x2800

// Canvas is a Braille pixel grid. Its size in sub-pixels is
// (Width*2) x (Height*4).
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// Set lights the sub-pixel at (x, y). Out-of-range points are ignored.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = brailleBlank
		}
	}
}

func (c *Canvas) HLine(x0, x1, y int) {
	for x := x0; x <= x1; x++ {
		c.Set(x, y)
	}
}

func (c *Canvas) VLine(x, y0, y1 int) {
	for y := y0; y <= y1; y++ {
		c.Set(x, y)
	}
}

// railX maps a rail position onto the canvas' sub-pixel columns.
func (c *Canvas) railX(pos, lo, hi float64) int {
	span := float64(c.Width*2 - 1)
	frac := (pos - lo) / (hi - lo)
	return int(math.Round(math.Max(0, math.Min(1, frac)) * span))
}

// DrawRail draws the track, a dashed target marker and the cart body.
func (c *Canvas) DrawRail(position, target, lo, hi float64) {
	c.Clear()
	h := c.Height * 4
	ground := h - 2

	c.HLine(0, c.Width*2-1, ground)
	c.VLine(0, ground-6, ground)
	c.VLine(c.Width*2-1, ground-6, ground)

	tx := c.railX(target, lo, hi)
	for y := 0; y < ground; y += 2 {
		c.Set(tx, y)
	}

	cx := c.railX(position, lo, hi)
	for dy := 3; dy <= 8; dy++ {
		c.HLine(cx-4, cx+4, ground-dy)
	}
	c.Set(cx-3, ground-1)
	c.Set(cx+3, ground-1)
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}
