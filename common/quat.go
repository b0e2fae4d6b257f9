package common

import "math"

// IdentityQuat returns the identity rotation (x, y, z, w).
func IdentityQuat() [4]float32 {
	return [4]float32{0, 0, 0, 1}
}

// QuatDot returns the dot product of two quaternions.
func QuatDot(a, b [4]float32) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] + a[3]*b[3]
}

// QuatLength returns the magnitude of q.
func QuatLength(q [4]float32) float32 {
	return float32(math.Sqrt(float64(QuatDot(q, q))))
}

// QuatNormalize returns q scaled to unit length. Returns the identity
// quaternion if q is near-zero length.
func QuatNormalize(q [4]float32) [4]float32 {
	l := QuatLength(q)
	if l < 1e-8 {
		return IdentityQuat()
	}
	inv := 1 / l
	return [4]float32{q[0] * inv, q[1] * inv, q[2] * inv, q[3] * inv}
}

// QuatConjugate returns the conjugate of q (negated vector part).
func QuatConjugate(q [4]float32) [4]float32 {
	return [4]float32{-q[0], -q[1], -q[2], q[3]}
}

// QuatInverse returns the inverse of q, which for a unit quaternion equals
// its conjugate. Non-unit input is normalized first.
func QuatInverse(q [4]float32) [4]float32 {
	return QuatConjugate(QuatNormalize(q))
}

// QuatMul returns the Hamilton product a * b — applying the rotation of b
// first, then a (right-to-left, matching transform composition).
func QuatMul(a, b [4]float32) [4]float32 {
	ax, ay, az, aw := a[0], a[1], a[2], a[3]
	bx, by, bz, bw := b[0], b[1], b[2], b[3]
	return [4]float32{
		aw*bx + ax*bw + ay*bz - az*by,
		aw*by - ax*bz + ay*bw + az*bx,
		aw*bz + ax*by - ay*bx + az*bw,
		aw*bw - ax*bx - ay*by - az*bz,
	}
}

// QuatRotateVec3 rotates v by the unit quaternion q.
func QuatRotateVec3(q [4]float32, v [3]float32) [3]float32 {
	qv := [3]float32{q[0], q[1], q[2]}
	uv := Vec3Cross(qv, v)
	uuv := Vec3Cross(qv, uv)
	uv = Vec3Scale(uv, 2*q[3])
	uuv = Vec3Scale(uuv, 2)
	return Vec3Add(v, Vec3Add(uv, uuv))
}

// QuatFromAxisAngle builds a unit quaternion representing a rotation of
// angle radians around axis (which must be unit length).
func QuatFromAxisAngle(axis [3]float32, angle float32) [4]float32 {
	half := angle * 0.5
	s := float32(math.Sin(float64(half)))
	c := float32(math.Cos(float64(half)))
	return [4]float32{axis[0] * s, axis[1] * s, axis[2] * s, c}
}

// QuatBetween returns the shortest-arc rotation that maps unit vector from
// onto unit vector to. Returns the identity quaternion if the vectors are
// nearly parallel.
func QuatBetween(from, to [3]float32) [4]float32 {
	from = Vec3Normalize(from)
	to = Vec3Normalize(to)
	d := Vec3Dot(from, to)
	if d > 0.999999 {
		return IdentityQuat()
	}
	if d < -0.999999 {
		// 180 degree rotation: pick any orthogonal axis.
		axis := Vec3Cross([3]float32{1, 0, 0}, from)
		if Vec3Length(axis) < 1e-6 {
			axis = Vec3Cross([3]float32{0, 1, 0}, from)
		}
		axis = Vec3Normalize(axis)
		return QuatFromAxisAngle(axis, math.Pi)
	}
	axis := Vec3Cross(from, to)
	w := float32(math.Sqrt(float64((1+d)*2))) * 0.5
	invScale := 1 / (2 * w)
	return QuatNormalize([4]float32{axis[0] * invScale, axis[1] * invScale, axis[2] * invScale, w})
}

// QuatNLerp performs a normalized linear interpolation between a and b by t
// in [0, 1]. Cheaper than Slerp and the default used for per-bone blends.
func QuatNLerp(a, b [4]float32, t float32) [4]float32 {
	if QuatDot(a, b) < 0 {
		b = [4]float32{-b[0], -b[1], -b[2], -b[3]}
	}
	out := [4]float32{
		a[0] + (b[0]-a[0])*t,
		a[1] + (b[1]-a[1])*t,
		a[2] + (b[2]-a[2])*t,
		a[3] + (b[3]-a[3])*t,
	}
	return QuatNormalize(out)
}

// QuatSlerp performs a spherical linear interpolation between a and b by t.
// Falls back to nlerp when the angle between quaternions is small enough
// that the two methods are numerically indistinguishable.
func QuatSlerp(a, b [4]float32, t float32) [4]float32 {
	cosHalfTheta := QuatDot(a, b)
	if cosHalfTheta < 0 {
		b = [4]float32{-b[0], -b[1], -b[2], -b[3]}
		cosHalfTheta = -cosHalfTheta
	}
	if cosHalfTheta > 0.9995 {
		return QuatNLerp(a, b, t)
	}

	halfTheta := float32(math.Acos(float64(Clamp(cosHalfTheta, -1, 1))))
	sinHalfTheta := float32(math.Sin(float64(halfTheta)))

	ratioA := float32(math.Sin(float64((1-t)*halfTheta))) / sinHalfTheta
	ratioB := float32(math.Sin(float64(t*halfTheta))) / sinHalfTheta

	return QuatNormalize([4]float32{
		a[0]*ratioA + b[0]*ratioB,
		a[1]*ratioA + b[1]*ratioB,
		a[2]*ratioA + b[2]*ratioB,
		a[3]*ratioA + b[3]*ratioB,
	})
}

// QuatSwingAngle returns the angle in radians between the directions that
// the identity-frame forward axis maps to under a and under b — i.e. the
// angular "swing" needed to rotate from a's orientation to b's along the
// shared forward axis. Used by AimIK cone-limit clamping.
func QuatSwingAngle(forward [3]float32, a, b [4]float32) float32 {
	fa := QuatRotateVec3(a, forward)
	fb := QuatRotateVec3(b, forward)
	d := Clamp(Vec3Dot(Vec3Normalize(fa), Vec3Normalize(fb)), -1, 1)
	return float32(math.Acos(float64(d)))
}

// LerpSmooth implements frame-rate-independent exponential smoothing: to +
// (from - to) * 2^(-dt/halfLife). halfLife <= 0 returns `to` immediately
// (infinitely fast decay).
func LerpSmooth(from, to, dt, halfLife float32) float32 {
	if halfLife <= 0 {
		return to
	}
	decay := float32(math.Exp2(float64(-dt / halfLife)))
	return to + (from-to)*decay
}
