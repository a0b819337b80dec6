package puzzle

import (
	"math"
	"time"
)

// Image is an opaque encoded image as returned by a content provider.
type Image struct {
	Data     []byte
	MIMEType string
}

func (i Image) Empty() bool { return len(i.Data) == 0 }

// Assets holds everything generated for one puzzle.
type Assets struct {
	Reference   Image
	Variant     Image
	Differences []string
}

func (a Assets) Clone() Assets {
	return Assets{
		Reference:   a.Reference,
		Variant:     a.Variant,
		Differences: append([]string(nil), a.Differences...),
	}
}

// Marker is an accepted tap in percent coordinates of the variant image.
type Marker struct {
	ID string
	X  float64
	Y  float64
	At time.Time
}

// Accuracy returns round(found / max(attempts,1) * 100) clamped to [0,100].
func Accuracy(found, attempts int) int {
	if found <= 0 {
		return 0
	}
	if attempts < 1 {
		attempts = 1
	}
	pct := int(math.Round(float64(found) / float64(attempts) * 100))
	if pct > 100 {
		return 100
	}
	return pct
}
