package ui

const (
	minCols = 60
	minRows = 20

	headerRows = 2
	footerRows = 3
)

// DetermineLayoutMode picks side-by-side pictures when both fit, stacked
// pictures otherwise.
func DetermineLayoutMode(cols, rows int) LayoutMode {
	if cols < minCols || rows < minRows {
		return LayoutTooSmall
	}
	if cols >= 110 {
		return LayoutWide
	}
	return LayoutStacked
}

// rect is a cell rectangle on screen.
type rect struct {
	X, Y, W, H int
}

func (r rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

func (r rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// pictureLayout is where the reference and variant pictures go, in cells,
// excluding their panel borders.
type pictureLayout struct {
	Mode      LayoutMode
	Reference rect
	Variant   rect
}

// fitPicture returns the largest cell size inside maxW x maxH that keeps
// the image aspect ratio. Each cell shows two stacked pixels.
func fitPicture(imgW, imgH, maxW, maxH int) (int, int) {
	if maxW <= 0 || maxH <= 0 {
		return 0, 0
	}
	if imgW <= 0 || imgH <= 0 {
		return maxW, maxH
	}
	w := maxW
	h := (w*imgH + imgW) / (2 * imgW)
	if h > maxH {
		h = maxH
		w = 2 * h * imgW / imgH
	}
	return max(1, w), max(1, h)
}

// computePictureLayout places both picture panels below the header. Each
// panel has a one cell border and wide panels are separated by one column.
func computePictureLayout(cols, rows, imgW, imgH int) pictureLayout {
	mode := DetermineLayoutMode(cols, rows)
	out := pictureLayout{Mode: mode}
	if mode == LayoutTooSmall {
		return out
	}
	bodyH := rows - headerRows - footerRows
	top := headerRows
	switch mode {
	case LayoutWide:
		panelW := (cols - 1) / 2
		w, h := fitPicture(imgW, imgH, panelW-2, bodyH-2)
		out.Reference = rect{X: 1, Y: top + 1, W: w, H: h}
		out.Variant = rect{X: w + 4, Y: top + 1, W: w, H: h}
	default:
		panelH := bodyH / 2
		w, h := fitPicture(imgW, imgH, cols-2, panelH-2)
		out.Reference = rect{X: 1, Y: top + 1, W: w, H: h}
		out.Variant = rect{X: 1, Y: top + 1 + h + 2, W: w, H: h}
	}
	return out
}
