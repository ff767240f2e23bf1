package thicket

import (
	"image"
	"math/bits"

	"github.com/hajimehoshi/ebiten/v2"
)

// targetPool recycles offscreen pick targets keyed by power-of-two
// dimensions, so canvas resizes within a bucket reuse the same images.
// Only the bucket of the latest acquire is kept: growing or shrinking past
// it deallocates the images pooled at the old size.
type targetPool struct {
	buckets map[uint64][]*ebiten.Image
	current uint64
}

func poolKey(w, h int) uint64 {
	return uint64(w)<<32 | uint64(h)
}

// acquire returns a cleared image of at least w x h pixels.
func (p *targetPool) acquire(w, h int) *ebiten.Image {
	pw, ph := nextPowerOfTwo(w), nextPowerOfTwo(h)
	key := poolKey(pw, ph)
	if key != p.current {
		p.dispose()
		p.current = key
	}
	if stack := p.buckets[key]; len(stack) > 0 {
		img := stack[len(stack)-1]
		p.buckets[key] = stack[:len(stack)-1]
		img.Clear()
		return img
	}
	return ebiten.NewImageWithOptions(
		image.Rect(0, 0, pw, ph),
		&ebiten.NewImageOptions{Unmanaged: true},
	)
}

// release returns img to the pool. It is cleared on the next acquire.
func (p *targetPool) release(img *ebiten.Image) {
	if img == nil {
		return
	}
	b := img.Bounds()
	key := poolKey(b.Dx(), b.Dy())
	if key != p.current {
		img.Deallocate()
		return
	}
	if p.buckets == nil {
		p.buckets = make(map[uint64][]*ebiten.Image)
	}
	p.buckets[key] = append(p.buckets[key], img)
}

// pooled returns the number of images waiting in the pool.
func (p *targetPool) pooled() int {
	n := 0
	for _, stack := range p.buckets {
		n += len(stack)
	}
	return n
}

// dispose deallocates every pooled image.
func (p *targetPool) dispose() {
	for k, stack := range p.buckets {
		for _, img := range stack {
			img.Deallocate()
		}
		delete(p.buckets, k)
	}
}

// nextPowerOfTwo returns the smallest power of two >= n (minimum 1).
func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
