package thicket

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
)

// ErrNoTargetImage is returned by DumpPickBuffer for GPU contexts that
// cannot expose their targets.
var ErrNoTargetImage = errors.New("thicket: gpu context cannot expose target images")

// DumpPickBuffer redraws the pick buffer of a scene if it is stale and
// writes it to path as a PNG. Each pick id is spread over the color range
// so neighbouring nodes are distinguishable.
func (r *Renderer) DumpPickBuffer(id SceneID, path string) error {
	s, ok := r.scenes[id]
	if !ok {
		return fmt.Errorf("dump pick buffer %q: %w", id, ErrUnknownScene)
	}
	ti, ok := r.gpu.(TargetImager)
	if !ok {
		return ErrNoTargetImage
	}
	var st FrameStats
	if err := s.prepare(s.tagPattern, &st); err != nil {
		return fmt.Errorf("dump pick buffer %q: %w", id, err)
	}
	if s.pickBufferDirty || s.callListDirty {
		s.renderPickBuffer()
	}
	img := falseColor(ti.TargetImage(TargetPick))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("dump pick buffer: mkdir: %w", err)
	}
	return writePNG(path, img)
}

// falseColor maps pick ids in src to distinct opaque colors. Empty pixels
// stay black.
func falseColor(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := src.At(x, y).RGBA()
			k := DecodePickColor([4]uint8{uint8(r >> 8), uint8(g >> 8), uint8(bl >> 8), 0xff})
			i := dst.PixOffset(x-b.Min.X, y-b.Min.Y)
			dst.Pix[i+3] = 0xff
			if k < 0 {
				continue
			}
			// Golden-ratio hue steps keep adjacent ids apart.
			h := float64(k) * 0.618033988749895
			h -= float64(int(h))
			dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2] = hueRGB(h)
		}
	}
	return dst
}

// hueRGB converts a hue in [0,1) at full saturation and value to RGB.
func hueRGB(h float64) (uint8, uint8, uint8) {
	h6 := h * 6
	f := h6 - float64(int(h6))
	q := uint8(255 * (1 - f))
	t := uint8(255 * f)
	switch int(h6) % 6 {
	case 0:
		return 255, t, 0
	case 1:
		return q, 255, 0
	case 2:
		return 0, 255, t
	case 3:
		return 0, q, 255
	case 4:
		return t, 0, 255
	default:
		return 255, 0, q
	}
}

// writePNG encodes an image to a PNG file at the given path.
func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
