package provider

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"testing"
	"time"

	"focusdojo/internal/generation"
	"focusdojo/internal/puzzle"
)

func TestProceduralImageIsDeterministicPNG(t *testing.T) {
	p := NewProcedural()
	ctx := context.Background()
	a, err := p.GenerateImage(ctx, "a harbour at dawn", "16:9")
	if err != nil {
		t.Fatalf("generate image: %v", err)
	}
	b, err := NewProcedural().GenerateImage(ctx, "a harbour at dawn", "16:9")
	if err != nil {
		t.Fatalf("generate image again: %v", err)
	}
	if !bytes.Equal(a.Data, b.Data) {
		t.Fatalf("expected identical images for the same prompt")
	}
	if a.MIMEType != "image/png" {
		t.Fatalf("expected image/png, got %s", a.MIMEType)
	}
	img, err := png.Decode(bytes.NewReader(a.Data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if got := img.Bounds(); got.Dx() != 640 || got.Dy() != 360 {
		t.Fatalf("expected 640x360, got %v", got)
	}
}

func TestProceduralVariantDiffersFromBase(t *testing.T) {
	p := NewProcedural()
	ctx := context.Background()
	base, err := p.GenerateImage(ctx, "a toy workshop", "4:3")
	if err != nil {
		t.Fatalf("generate image: %v", err)
	}
	variant, err := p.GenerateImageVariant(ctx, base, "make exactly 5 subtle differences")
	if err != nil {
		t.Fatalf("generate variant: %v", err)
	}
	if variant.Empty() || bytes.Equal(base.Data, variant.Data) {
		t.Fatalf("expected a distinct variant image")
	}
	bi, _ := png.Decode(bytes.NewReader(base.Data))
	vi, _ := png.Decode(bytes.NewReader(variant.Data))
	if bi.Bounds() != vi.Bounds() {
		t.Fatalf("expected variant to keep dimensions, got %v vs %v", vi.Bounds(), bi.Bounds())
	}
	if changed := changedPixels(bi, vi); changed == 0 {
		t.Fatalf("expected changed pixels")
	}
}

func changedPixels(a, b image.Image) int {
	n := 0
	r := a.Bounds()
	for y := r.Min.Y; y < r.Max.Y; y += 2 {
		for x := r.Min.X; x < r.Max.X; x += 2 {
			ar, ag, ab, _ := a.At(x, y).RGBA()
			br, bg, bb, _ := b.At(x, y).RGBA()
			if ar != br || ag != bg || ab != bb {
				n++
			}
		}
	}
	return n
}

func TestProceduralUnknownBaseYieldsEmptyVariant(t *testing.T) {
	p := NewProcedural()
	v, err := p.GenerateImageVariant(context.Background(), puzzle.Image{Data: []byte("not ours")}, "exactly 3")
	if err != nil {
		t.Fatalf("generate variant: %v", err)
	}
	if !v.Empty() {
		t.Fatalf("expected empty variant for an unknown base image")
	}
}

func TestProceduralTextListsRequestedCount(t *testing.T) {
	p := NewProcedural()
	ctx := context.Background()
	if _, err := p.GenerateImage(ctx, "a coral reef", "16:9"); err != nil {
		t.Fatalf("generate image: %v", err)
	}
	text, err := p.GenerateText(ctx, "List exactly 8 subtle differences")
	if err != nil {
		t.Fatalf("generate text: %v", err)
	}
	lines := generation.ParseDifferences(text, 0)
	if len(lines) != 8 {
		t.Fatalf("expected 8 lines, got %d: %q", len(lines), text)
	}
	for _, l := range lines {
		if !strings.HasPrefix(l, "The ") {
			t.Fatalf("unexpected description %q", l)
		}
	}
	if _, err := p.GenerateText(ctx, "list some differences"); err == nil {
		t.Fatalf("expected error without a count")
	}
}

func TestProceduralLatencyHonoursCancel(t *testing.T) {
	p := NewProcedural(WithLatency(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.GenerateImage(ctx, "x", "1:1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestProceduralThroughPipeline(t *testing.T) {
	pipe := generation.NewPipeline(NewProcedural(), nil)
	assets, err := pipe.GeneratePuzzle(context.Background(), "a winter festival", puzzle.Hard)
	if err != nil {
		t.Fatalf("generate puzzle: %v", err)
	}
	if assets.Reference.Empty() || assets.Variant.Empty() {
		t.Fatalf("expected both images, got %+v", assets)
	}
	if len(assets.Differences) != 8 {
		t.Fatalf("expected 8 differences, got %d", len(assets.Differences))
	}
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	if _, err := New(context.Background(), Config{Name: "dall-e"}); err == nil {
		t.Fatalf("expected unknown provider error")
	}
	if _, err := New(context.Background(), Config{Name: "gemini"}); err == nil {
		t.Fatalf("expected missing API key error")
	}
}
