package ui

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"focusdojo/internal/puzzle"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var errEmptyImage = errors.New("image is empty")

const asciiRamp = " .:-=+*#%@"

// picture is a decoded image and its last scaled raster.
type picture struct {
	src image.Image

	scaled     *image.RGBA
	cols, rows int
}

func decodePicture(img puzzle.Image) (*picture, error) {
	if img.Empty() {
		return nil, errEmptyImage
	}
	src, format, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", img.MIMEType, err)
	}
	if src.Bounds().Empty() {
		return nil, fmt.Errorf("decode %s: empty %s bounds", img.MIMEType, format)
	}
	return &picture{src: src}, nil
}

func (p *picture) Size() (int, int) {
	if p == nil {
		return 0, 0
	}
	b := p.src.Bounds()
	return b.Dx(), b.Dy()
}

// raster scales the source to cols x 2*rows pixels, caching the last size.
func (p *picture) raster(cols, rows int) *image.RGBA {
	if p.scaled != nil && p.cols == cols && p.rows == rows {
		return p.scaled
	}
	dst := image.NewRGBA(image.Rect(0, 0, cols, rows*2))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), p.src, p.src.Bounds(), draw.Src, nil)
	p.scaled, p.cols, p.rows = dst, cols, rows
	return dst
}

// cell is an overlay glyph drawn over the picture.
type cell struct {
	glyph string
	style lipgloss.Style
}

type cellPos struct {
	X, Y int
}

// markerCell maps percent coordinates onto a cols x rows grid.
func markerCell(x, y float64, cols, rows int) cellPos {
	cx := int(x / 100 * float64(cols))
	cy := int(y / 100 * float64(rows))
	return cellPos{X: clampInt(cx, 0, cols-1), Y: clampInt(cy, 0, rows-1)}
}

// renderPicture draws p as rows of half-block cells, one line per row.
// A nil picture renders as a blank area carrying placeholder.
func renderPicture(p *picture, cols, rows int, overlays map[cellPos]cell, ascii bool, placeholder string, muted lipgloss.Style) []string {
	lines := make([]string, rows)
	if cols <= 0 || rows <= 0 {
		return lines
	}
	var px *image.RGBA
	if p != nil {
		px = p.raster(cols, rows)
	}
	for y := 0; y < rows; y++ {
		var b strings.Builder
		for x := 0; x < cols; x++ {
			if c, ok := overlays[cellPos{X: x, Y: y}]; ok {
				b.WriteString(c.style.Render(c.glyph))
				continue
			}
			if px == nil {
				b.WriteByte(' ')
				continue
			}
			top := px.RGBAAt(x, 2*y)
			bottom := px.RGBAAt(x, 2*y+1)
			if ascii {
				b.WriteByte(asciiRamp[luminanceIndex(top, bottom)])
				continue
			}
			b.WriteString(lipgloss.NewStyle().
				Foreground(lipgloss.Color(hexColor(top))).
				Background(lipgloss.Color(hexColor(bottom))).
				Render("▀"))
		}
		lines[y] = b.String()
	}
	if px == nil && placeholder != "" {
		mid := rows / 2
		lines[mid] = muted.Render(centerText(placeholder, cols))
	}
	return lines
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func luminanceIndex(a, b color.RGBA) int {
	lum := func(c color.RGBA) float64 {
		return 0.2126*float64(c.R) + 0.7152*float64(c.G) + 0.0722*float64(c.B)
	}
	avg := (lum(a) + lum(b)) / 2
	idx := int(avg / 256 * float64(len(asciiRamp)))
	return clampInt(idx, 0, len(asciiRamp)-1)
}

func centerText(s string, width int) string {
	s = trimForWidth(s, width)
	pad := width - lipgloss.Width(s)
	if pad <= 0 {
		return s
	}
	left := pad / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", pad-left)
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
