package provider

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"image/color"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"focusdojo/internal/puzzle"

	"github.com/fogleman/gg"
)

const (
	sceneWidth  = 640
	sceneShapes = 14
	maxScenes   = 16
)

var countPattern = regexp.MustCompile(`exactly (\d+)`)

type namedColor struct {
	name string
	c    color.RGBA
}

var palette = []namedColor{
	{"red", color.RGBA{0xd9, 0x48, 0x3b, 0xff}},
	{"orange", color.RGBA{0xf0, 0x8a, 0x24, 0xff}},
	{"yellow", color.RGBA{0xf2, 0xd0, 0x3b, 0xff}},
	{"green", color.RGBA{0x4c, 0xa3, 0x5a, 0xff}},
	{"teal", color.RGBA{0x2a, 0x9d, 0x8f, 0xff}},
	{"blue", color.RGBA{0x3a, 0x6e, 0xc9, 0xff}},
	{"purple", color.RGBA{0x8e, 0x5a, 0xc8, 0xff}},
	{"pink", color.RGBA{0xe8, 0x7e, 0xb0, 0xff}},
	{"brown", color.RGBA{0x8b, 0x5e, 0x3c, 0xff}},
	{"white", color.RGBA{0xf4, 0xf1, 0xea, 0xff}},
}

type shapeKind int

const (
	kindCircle shapeKind = iota
	kindSquare
	kindTriangle
	kindDiamond
)

func (k shapeKind) String() string {
	switch k {
	case kindSquare:
		return "square"
	case kindTriangle:
		return "triangle"
	case kindDiamond:
		return "diamond"
	default:
		return "circle"
	}
}

type shape struct {
	kind   shapeKind
	x, y   float64
	size   float64
	color  int
	hollow bool
	hidden bool
}

type scene struct {
	seed   int64
	w, h   int
	sky    color.RGBA
	ground color.RGBA
	shapes []shape
}

type changeKind int

const (
	changeColor changeKind = iota
	changeRemove
	changeMove
	changeState
)

type alteration struct {
	index int
	kind  changeKind
	color int
	dx    float64
}

type ProceduralOption func(*Procedural)

// WithLatency delays every call, honouring cancellation, so demos show the
// generating screen.
func WithLatency(d time.Duration) ProceduralOption {
	return func(p *Procedural) { p.latency = d }
}

// Procedural draws deterministic abstract scenes offline. Variants are only
// available for images this provider produced.
type Procedural struct {
	latency time.Duration

	mu     sync.Mutex
	scenes map[string]*scene
	order  []string
	last   *scene
}

func NewProcedural(opts ...ProceduralOption) *Procedural {
	p := &Procedural{scenes: map[string]*scene{}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Procedural) Name() string { return "procedural" }

func (p *Procedural) GenerateImage(ctx context.Context, prompt string, aspectRatio string) (puzzle.Image, error) {
	if err := p.wait(ctx); err != nil {
		return puzzle.Image{}, err
	}
	sc := newScene(seedFor(prompt), aspectRatio)
	data, err := render(sc, nil)
	if err != nil {
		return puzzle.Image{}, err
	}
	p.remember(data, sc)
	return puzzle.Image{Data: data, MIMEType: "image/png"}, nil
}

func (p *Procedural) GenerateImageVariant(ctx context.Context, base puzzle.Image, instruction string) (puzzle.Image, error) {
	if err := p.wait(ctx); err != nil {
		return puzzle.Image{}, err
	}
	count, err := requestedCount(instruction)
	if err != nil {
		return puzzle.Image{}, err
	}
	p.mu.Lock()
	sc := p.scenes[imageKey(base.Data)]
	p.mu.Unlock()
	if sc == nil {
		return puzzle.Image{}, nil
	}
	data, err := render(sc, plan(sc, count))
	if err != nil {
		return puzzle.Image{}, err
	}
	return puzzle.Image{Data: data, MIMEType: "image/png"}, nil
}

// GenerateText lists the alterations for the most recent scene.
func (p *Procedural) GenerateText(ctx context.Context, prompt string) (string, error) {
	if err := p.wait(ctx); err != nil {
		return "", err
	}
	count, err := requestedCount(prompt)
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	sc := p.last
	p.mu.Unlock()
	if sc == nil {
		sc = newScene(seedFor(prompt), "")
	}
	var b strings.Builder
	for i, a := range plan(sc, count) {
		fmt.Fprintf(&b, "%d. %s\n", i+1, describe(sc, a))
	}
	return b.String(), nil
}

func (p *Procedural) wait(ctx context.Context) error {
	if p.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(p.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p *Procedural) remember(data []byte, sc *scene) {
	key := imageKey(data)
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.scenes[key]; !ok {
		p.order = append(p.order, key)
	}
	p.scenes[key] = sc
	p.last = sc
	for len(p.order) > maxScenes {
		delete(p.scenes, p.order[0])
		p.order = p.order[1:]
	}
}

func requestedCount(text string) (int, error) {
	m := countPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, fmt.Errorf("procedural provider: no difference count in prompt")
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("procedural provider: invalid difference count %q", m[1])
	}
	return n, nil
}

func seedFor(prompt string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(prompt))))
	return int64(h.Sum64() & 0x7fffffffffffffff)
}

func imageKey(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func sceneHeight(aspectRatio string) int {
	w, h := 16, 9
	if parts := strings.SplitN(aspectRatio, ":", 2); len(parts) == 2 {
		aw, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
		ah, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
		if errW == nil && errH == nil && aw > 0 && ah > 0 {
			w, h = aw, ah
		}
	}
	height := sceneWidth * h / w
	if height < 160 {
		height = 160
	}
	if height > 1280 {
		height = 1280
	}
	return height
}

func newScene(seed int64, aspectRatio string) *scene {
	r := rand.New(rand.NewSource(seed))
	sc := &scene{
		seed:   seed,
		w:      sceneWidth,
		h:      sceneHeight(aspectRatio),
		sky:    color.RGBA{uint8(150 + r.Intn(60)), uint8(190 + r.Intn(50)), uint8(215 + r.Intn(40)), 0xff},
		ground: color.RGBA{uint8(90 + r.Intn(60)), uint8(140 + r.Intn(60)), uint8(70 + r.Intn(40)), 0xff},
	}
	cols, rows := 5, 3
	cellW := float64(sc.w) / float64(cols)
	cellH := float64(sc.h) / float64(rows)
	cells := r.Perm(cols * rows)[:sceneShapes]
	for _, cell := range cells {
		cx := float64(cell%cols)*cellW + cellW/2
		cy := float64(cell/cols)*cellH + cellH/2
		size := (0.18 + r.Float64()*0.14) * minf(cellW, cellH)
		sc.shapes = append(sc.shapes, shape{
			kind:  shapeKind(r.Intn(4)),
			x:     cx + (r.Float64()-0.5)*cellW*0.3,
			y:     cy + (r.Float64()-0.5)*cellH*0.3,
			size:  size,
			color: r.Intn(len(palette)),
		})
	}
	return sc
}

// plan picks count distinct shapes and one change for each. It depends only
// on the scene and count.
func plan(sc *scene, count int) []alteration {
	if count > len(sc.shapes) {
		count = len(sc.shapes)
	}
	r := rand.New(rand.NewSource(sc.seed ^ int64(count)*7919))
	picks := r.Perm(len(sc.shapes))[:count]
	out := make([]alteration, 0, count)
	for i, idx := range picks {
		a := alteration{index: idx, kind: changeKind(i % 4)}
		switch a.kind {
		case changeColor:
			a.color = (sc.shapes[idx].color + 1 + r.Intn(len(palette)-1)) % len(palette)
		case changeMove:
			a.dx = sc.shapes[idx].size * 0.9
			if sc.shapes[idx].x > float64(sc.w)/2 {
				a.dx = -a.dx
			}
		}
		out = append(out, a)
	}
	return out
}

func apply(shapes []shape, alts []alteration) []shape {
	out := append([]shape(nil), shapes...)
	for _, a := range alts {
		s := &out[a.index]
		switch a.kind {
		case changeColor:
			s.color = a.color
		case changeRemove:
			s.hidden = true
		case changeMove:
			s.x += a.dx
		case changeState:
			s.hollow = !s.hollow
		}
	}
	return out
}

func describe(sc *scene, a alteration) string {
	s := sc.shapes[a.index]
	what := fmt.Sprintf("%s %s %s", palette[s.color].name, s.kind, where(sc, s))
	switch a.kind {
	case changeColor:
		return fmt.Sprintf("The %s is now %s", what, palette[a.color].name)
	case changeRemove:
		return fmt.Sprintf("The %s is missing", what)
	case changeMove:
		dir := "right"
		if a.dx < 0 {
			dir = "left"
		}
		return fmt.Sprintf("The %s moved to the %s", what, dir)
	default:
		return fmt.Sprintf("The %s is only an outline", what)
	}
}

func where(sc *scene, s shape) string {
	v := "in the middle"
	switch {
	case s.y < float64(sc.h)/3:
		v = "at the top"
	case s.y > float64(sc.h)*2/3:
		v = "at the bottom"
	}
	h := "centre"
	switch {
	case s.x < float64(sc.w)/3:
		h = "left"
	case s.x > float64(sc.w)*2/3:
		h = "right"
	}
	if h == "centre" {
		return v
	}
	return v + " " + h
}

func render(sc *scene, alts []alteration) ([]byte, error) {
	dc := gg.NewContext(sc.w, sc.h)
	dc.SetColor(sc.sky)
	dc.Clear()
	horizon := float64(sc.h) * 0.62
	dc.SetColor(sc.ground)
	dc.DrawRectangle(0, horizon, float64(sc.w), float64(sc.h)-horizon)
	dc.Fill()

	for _, s := range apply(sc.shapes, alts) {
		if s.hidden {
			continue
		}
		dc.SetColor(palette[s.color].c)
		switch s.kind {
		case kindSquare:
			dc.DrawRectangle(s.x-s.size, s.y-s.size, 2*s.size, 2*s.size)
		case kindTriangle:
			dc.DrawRegularPolygon(3, s.x, s.y, s.size*1.2, 0)
		case kindDiamond:
			dc.DrawRegularPolygon(4, s.x, s.y, s.size*1.2, 0)
		default:
			dc.DrawCircle(s.x, s.y, s.size)
		}
		if s.hollow {
			dc.SetLineWidth(4)
			dc.Stroke()
		} else {
			dc.Fill()
		}
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode scene: %w", err)
	}
	return buf.Bytes(), nil
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
