package kinmath

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Transform is a rigid-body transform: a rotation (unit quaternion) followed
// by a translation. Composition order matches homogeneous matrices:
// a.Mul(b) applies b first in a's frame.
type Transform struct {
	Rot   quat.Number
	Trans Vec3
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{Rot: quat.Number{Real: 1}}
}

// FromTranslation returns a pure translation.
func FromTranslation(t Vec3) Transform {
	return Transform{Rot: quat.Number{Real: 1}, Trans: t}
}

// RotationAbout returns a rotation of angle radians about the given axis.
// The axis is normalized; a zero axis yields the identity rotation.
func RotationAbout(axis Vec3, angle float64) Transform {
	u := axis.Normalize()
	s, c := math.Sincos(angle / 2)
	return Transform{
		Rot: quat.Number{Real: c, Imag: u.X * s, Jmag: u.Y * s, Kmag: u.Z * s},
	}
}

// TranslationAlong returns a translation of d along the given axis.
func TranslationAlong(axis Vec3, d float64) Transform {
	return FromTranslation(axis.Normalize().Scale(d))
}

// FromRPY returns the rotation for roll, pitch, yaw (ZYX convention:
// yaw about Z, then pitch about Y, then roll about X).
func FromRPY(roll, pitch, yaw float64) Transform {
	rz := RotationAbout(Vec3{Z: 1}, yaw)
	ry := RotationAbout(Vec3{Y: 1}, pitch)
	rx := RotationAbout(Vec3{X: 1}, roll)
	return rz.Mul(ry).Mul(rx)
}

// Mul composes two transforms: the result applies o first within t's frame,
// then t, matching T_t * T_o for homogeneous matrices.
func (t Transform) Mul(o Transform) Transform {
	return Transform{
		Rot:   quat.Mul(t.Rot, o.Rot),
		Trans: t.Trans.Add(rotate(t.Rot, o.Trans)),
	}
}

// Apply transforms a point: rotate then translate.
func (t Transform) Apply(p Vec3) Vec3 {
	return rotate(t.Rot, p).Add(t.Trans)
}

// Rotate applies only the rotation part of t to a vector.
func (t Transform) Rotate(v Vec3) Vec3 {
	return rotate(t.Rot, v)
}

// Inverse returns the inverse transform. The rotation is assumed to be a
// unit quaternion, so conjugation suffices.
func (t Transform) Inverse() Transform {
	inv := quat.Conj(t.Rot)
	return Transform{
		Rot:   inv,
		Trans: rotate(inv, t.Trans).Scale(-1),
	}
}

// rotate applies the unit quaternion q to vector v as q * v * q'.
func rotate(q quat.Number, v Vec3) Vec3 {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return Vec3{r.Imag, r.Jmag, r.Kmag}
}
