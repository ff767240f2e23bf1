package thicket

import (
	"image"
	"testing"

	"github.com/hajimehoshi/ebiten/v2"
)

func TestTargetPoolReusesBucket(t *testing.T) {
	var p targetPool
	defer p.dispose()

	a := p.acquire(10, 12)
	if a.Bounds() != image.Rect(0, 0, 16, 16) {
		t.Fatalf("bounds = %v, want 16x16", a.Bounds())
	}
	p.release(a)
	if b := p.acquire(15, 9); b != a {
		t.Errorf("resize within the bucket allocated a new image")
	}
}

func TestTargetPoolDropsOldBucketOnResize(t *testing.T) {
	var p targetPool
	defer p.dispose()

	small := []*ebiten.Image{p.acquire(10, 10), p.acquire(10, 10)}
	for _, img := range small {
		p.release(img)
	}
	if n := p.pooled(); n != 2 {
		t.Fatalf("pooled = %d, want 2", n)
	}

	big := p.acquire(100, 50)
	if big.Bounds() != image.Rect(0, 0, 128, 64) {
		t.Fatalf("bounds = %v, want 128x64", big.Bounds())
	}
	if n := p.pooled(); n != 0 {
		t.Errorf("pooled after growing = %d, want 0", n)
	}

	// A target from the old size released late is not kept either.
	p.release(ebiten.NewImage(16, 16))
	if n := p.pooled(); n != 0 {
		t.Errorf("pooled after stale release = %d, want 0", n)
	}
	p.release(big)
	if n := p.pooled(); n != 1 {
		t.Errorf("pooled = %d, want 1", n)
	}
}

func TestEbitenBlendModes(t *testing.T) {
	tests := []struct {
		mode BlendMode
		want ebiten.Blend
	}{
		{BlendNormal, ebiten.BlendSourceOver},
		{BlendAdd, ebiten.BlendLighter},
		{BlendNone, ebiten.BlendCopy},
		{BlendMode(200), ebiten.BlendSourceOver},
	}
	for _, tt := range tests {
		if got := tt.mode.EbitenBlend(); got != tt.want {
			t.Errorf("BlendMode(%d).EbitenBlend() = %+v, want %+v", tt.mode, got, tt.want)
		}
	}
	if m := BlendMultiply.EbitenBlend(); m.BlendFactorSourceRGB != ebiten.BlendFactorDestinationColor {
		t.Errorf("multiply source factor = %v", m.BlendFactorSourceRGB)
	}
	if s := BlendScreen.EbitenBlend(); s.BlendFactorDestinationRGB != ebiten.BlendFactorOneMinusSourceColor {
		t.Errorf("screen destination factor = %v", s.BlendFactorDestinationRGB)
	}
}
