// Package dial draws an analog clock face on a terminal rune grid.
//
// Terminal cells are roughly twice as tall as they are wide, so the face
// spans 2*Radius+1 rows and 4*Radius+1 columns.
package dial

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/philtim/mechclock/clock"
)

const (
	MinRadius     = 3
	MaxRadius     = 20
	DefaultRadius = 7
)

// Hand lengths as a fraction of the radius.
const (
	hourLength   = 0.5
	minuteLength = 0.75
	secondLength = 0.85
)

// Kind tells what occupies a cell.
type Kind int

const (
	Empty Kind = iota
	MinorTick
	MajorTick
	Numeral
	HourHand
	MinuteHand
	SecondHand
	Centre
)

// Cell is one position of the grid.
type Cell struct {
	Rune rune
	Kind Kind
}

// Styles colours each kind of cell. The zero value renders plain text.
type Styles struct {
	Hand      lipgloss.Style
	Second    lipgloss.Style
	Centre    lipgloss.Style
	MajorTick lipgloss.Style
	MinorTick lipgloss.Style
	Numeral   lipgloss.Style
}

// DefaultStyles matches the card colours of the TUI.
func DefaultStyles() Styles {
	return Styles{
		Hand:      lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true),
		Second:    lipgloss.NewStyle().Foreground(lipgloss.Color("205")),
		Centre:    lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true),
		MajorTick: lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		MinorTick: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Numeral:   lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true),
	}
}

func (s Styles) forKind(k Kind) lipgloss.Style {
	switch k {
	case HourHand, MinuteHand:
		return s.Hand
	case SecondHand:
		return s.Second
	case Centre:
		return s.Centre
	case MajorTick:
		return s.MajorTick
	case MinorTick:
		return s.MinorTick
	case Numeral:
		return s.Numeral
	}
	return lipgloss.NewStyle()
}

// Options controls the face.
type Options struct {
	Radius  int
	Seconds bool
	Styles  Styles
}

// DefaultOptions returns a styled face of DefaultRadius with a second hand.
func DefaultOptions() Options {
	return Options{Radius: DefaultRadius, Seconds: true, Styles: DefaultStyles()}
}

func clampRadius(r int) int {
	switch {
	case r < MinRadius:
		return MinRadius
	case r > MaxRadius:
		return MaxRadius
	}
	return r
}

var numerals = map[int]string{0: "12", 3: "3", 6: "6", 9: "9"}

type face struct {
	radius int
	cx, cy int
	cells  [][]Cell
}

func newFace(radius int) *face {
	f := &face{radius: radius, cx: 2 * radius, cy: radius}
	f.cells = make([][]Cell, 2*radius+1)
	for y := range f.cells {
		f.cells[y] = make([]Cell, 4*radius+1)
		for x := range f.cells[y] {
			f.cells[y][x] = Cell{Rune: ' '}
		}
	}
	return f
}

// point returns the cell at angle deg (clockwise from 12) and distance
// length (in rows) from the centre.
func (f *face) point(deg, length float64) (int, int) {
	rad := deg * math.Pi / 180
	x := float64(f.cx) + 2*length*math.Sin(rad)
	y := float64(f.cy) - length*math.Cos(rad)
	return int(math.Round(x)), int(math.Round(y))
}

func (f *face) set(x, y int, r rune, k Kind) {
	if y < 0 || y >= len(f.cells) || x < 0 || x >= len(f.cells[y]) {
		return
	}
	f.cells[y][x] = Cell{Rune: r, Kind: k}
}

func (f *face) ticks() {
	r := float64(f.radius)
	for i := 0; i < 60; i++ {
		if i%5 == 0 {
			continue
		}
		x, y := f.point(float64(i*6), r)
		f.set(x, y, '·', MinorTick)
	}
	for i := 0; i < 12; i++ {
		x, y := f.point(float64(i*30), r)
		text, ok := numerals[i]
		if !ok {
			f.set(x, y, '•', MajorTick)
			continue
		}
		for j, c := range text {
			f.set(x+j, y, c, Numeral)
		}
	}
}

// hand rasterises a line from the centre to the tip with Bresenham's
// algorithm. The centre cell itself is left for the centre dot.
func (f *face) hand(deg, fraction float64, k Kind) {
	x1, y1 := f.point(deg, fraction*float64(f.radius))
	x0, y0 := f.cx, f.cy
	r := handRune(x1-x0, y1-y0, k == HourHand)

	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := sign(x1-x0), sign(y1-y0)
	e := dx + dy
	for {
		if x0 != f.cx || y0 != f.cy {
			f.set(x0, y0, r, k)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// handRune picks a line glyph for the direction (dx, dy) in cells.
func handRune(dx, dy int, heavy bool) rune {
	// one row is about two columns tall
	a := math.Atan2(-2*float64(dy), float64(dx)) * 180 / math.Pi
	if a < 0 {
		a += 180
	}
	var glyphs [4]rune
	if heavy {
		glyphs = [4]rune{'━', '╱', '┃', '╲'}
	} else {
		glyphs = [4]rune{'─', '╱', '│', '╲'}
	}
	switch {
	case a < 22.5 || a >= 157.5:
		return glyphs[0]
	case a < 67.5:
		return glyphs[1]
	case a < 112.5:
		return glyphs[2]
	default:
		return glyphs[3]
	}
}

// Grid returns the cells of the face for h.
func Grid(h clock.Hands, opts Options) [][]Cell {
	f := newFace(clampRadius(opts.Radius))
	f.ticks()
	f.hand(h.Hour, hourLength, HourHand)
	f.hand(h.Minute, minuteLength, MinuteHand)
	if opts.Seconds {
		f.hand(h.Second, secondLength, SecondHand)
	}
	f.set(f.cx, f.cy, '●', Centre)
	return f.cells
}

// Render draws the face for h, one line per grid row.
func Render(h clock.Hands, opts Options) string {
	grid := Grid(h, opts)
	lines := make([]string, len(grid))
	for y, row := range grid {
		var b strings.Builder
		start := 0
		for x := 1; x <= len(row); x++ {
			if x < len(row) && row[x].Kind == row[start].Kind {
				continue
			}
			b.WriteString(renderRun(row[start:x], opts.Styles))
			start = x
		}
		lines[y] = b.String()
	}
	return strings.Join(lines, "\n")
}

func renderRun(cells []Cell, s Styles) string {
	runes := make([]rune, len(cells))
	for i, c := range cells {
		runes[i] = c.Rune
	}
	if cells[0].Kind == Empty {
		return string(runes)
	}
	return s.forKind(cells[0].Kind).Render(string(runes))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
