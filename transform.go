package thicket

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Transform carries a matrix for the model, view or projection category.
// The same type serves all three; Kind decides which category it exports as.
type Transform struct {
	Kind   Category
	Matrix mgl32.Mat4
}

func (t *Transform) Category() Category {
	switch t.Kind {
	case CategoryViewTransform, CategoryProjTransform:
		return t.Kind
	}
	return CategoryModelTransform
}

func (*Transform) hashFragment() string { return "" }

// Model returns a model transform payload.
func Model(m mgl32.Mat4) *Transform {
	return &Transform{Kind: CategoryModelTransform, Matrix: m}
}

// Translate returns a model transform payload translating by (x, y, z).
func Translate(x, y, z float32) *Transform {
	return Model(mgl32.Translate3D(x, y, z))
}

// LookAt returns a view transform payload.
func LookAt(eye, center, up mgl32.Vec3) *Transform {
	return &Transform{Kind: CategoryViewTransform, Matrix: mgl32.LookAtV(eye, center, up)}
}

// Perspective returns a projection payload. fovy is in degrees.
func Perspective(fovy, aspect, near, far float32) *Transform {
	return &Transform{
		Kind:   CategoryProjTransform,
		Matrix: mgl32.Perspective(mgl32.DegToRad(fovy), aspect, near, far),
	}
}

// Ortho returns an orthographic projection payload.
func Ortho(left, right, bottom, top, near, far float32) *Transform {
	return &Transform{
		Kind:   CategoryProjTransform,
		Matrix: mgl32.Ortho(left, right, bottom, top, near, far),
	}
}

// --- Projection helpers shared by GPU backends and ray pick ---

// projectPoint maps a model-space point through mvp into canvas pixels.
// depth is the normalized device Z remapped to [0, 1]. ok is false for
// points behind the eye.
func projectPoint(mvp mgl32.Mat4, p mgl32.Vec3, w, h int) (sx, sy, depth float32, ok bool) {
	c := mvp.Mul4x1(p.Vec4(1))
	if c.W() <= 0 {
		return 0, 0, 0, false
	}
	inv := 1 / c.W()
	nx, ny, nz := c.X()*inv, c.Y()*inv, c.Z()*inv
	sx = (nx + 1) / 2 * float32(w)
	sy = (1 - ny) / 2 * float32(h)
	depth = (nz + 1) / 2
	return sx, sy, depth, true
}

// canvasToNDC converts a canvas pixel to normalized device x, y.
func canvasToNDC(x, y float32, w, h int) (float32, float32) {
	return 2*x/float32(w) - 1, 1 - 2*y/float32(h)
}

// unproject maps a normalized device coordinate back through an inverse
// projection*view matrix.
func unproject(invPV mgl32.Mat4, ndc mgl32.Vec3) mgl32.Vec3 {
	v := invPV.Mul4x1(ndc.Vec4(1))
	if v.W() == 0 {
		return v.Vec3()
	}
	return v.Vec3().Mul(1 / v.W())
}

// rayPoint reconstructs the world-space point under a canvas pixel. depth is
// the window depth in [0, 1]. The near and far plane points are unprojected
// and interpolated by the depth's fraction along the ray; the fraction equals
// depth for orthographic projections.
func rayPoint(view, proj mgl32.Mat4, x, y float32, w, h int, depth float32) mgl32.Vec3 {
	invPV := proj.Mul4(view).Inv()
	nx, ny := canvasToNDC(x, y, w, h)
	near := unproject(invPV, mgl32.Vec3{nx, ny, -1})
	far := unproject(invPV, mgl32.Vec3{nx, ny, 1})
	seg := far.Sub(near)
	if l2 := seg.Dot(seg); l2 > 0 {
		at := unproject(invPV, mgl32.Vec3{nx, ny, depth*2 - 1})
		return near.Add(seg.Mul(at.Sub(near).Dot(seg) / l2))
	}
	return near
}

// normalMatrix returns the rotation part of a model matrix for normals.
func normalMatrix(model mgl32.Mat4) mgl32.Mat3 {
	return model.Mat3().Inv().Transpose()
}
