package spotmicro

import "math"

// Variant selects the leg-geometry table and the Yertle-only post
// correction, per §9's "reproduce only when the variant tag matches".
type Variant int

const (
	VariantESP32 Variant = iota
	VariantESP32Mini
	VariantYertle
)

// legGeometry holds one variant's link lengths and body dimensions,
// ported verbatim from kinematics.h's #if defined(...) block.
type legGeometry struct {
	l1, l2, l3, l4 float64
	bodyLength     float64 // L
	bodyWidth      float64 // W
}

var legGeometries = map[Variant]legGeometry{
	VariantESP32: {
		l1: 60.5 / 100.0, l2: 10.0 / 100.0, l3: 111.2 / 100.0, l4: 118.5 / 100.0,
		bodyLength: 207.5 / 100.0, bodyWidth: 78.0 / 100.0,
	},
	VariantESP32Mini: {
		l1: 0, l2: 0, l3: 52.0 / 100.0, l4: 65.0 / 100.0,
		bodyLength: 120.0 / 100.0, bodyWidth: 78.5 / 100.0,
	},
	VariantYertle: {
		l1: 35.0 / 100.0, l2: 0, l3: 130.0 / 100.0, l4: 130.0 / 100.0,
		bodyLength: 240.0 / 100.0, bodyWidth: 78.0 / 100.0,
	},
}

// BodyState is the instantaneous pose commanded to the kinematics solver.
// Feet are in body-frame homogeneous coordinates (x, y, z, 1).
type BodyState struct {
	Omega, Phi, Psi float64 // roll, pitch, yaw, degrees
	Xm, Ym, Zm      float64
	Feet            [4][4]float64
}

const bodyStateEpsilon = 0.1

// almostEqual mirrors the source's body_state_t::operator==: component
// fields compared with IS_ALMOST_EQUAL, feet compared with arrayEqual at
// a coarser 0.1 tolerance.
func (b BodyState) almostEqual(o BodyState) bool {
	near := func(a, c float64) bool { return math.Abs(a-c) < 1e-4 }
	if !near(b.Omega, o.Omega) || !near(b.Phi, o.Phi) || !near(b.Psi, o.Psi) ||
		!near(b.Xm, o.Xm) || !near(b.Ym, o.Ym) || !near(b.Zm, o.Zm) {
		return false
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if math.Abs(b.Feet[i][j]-o.Feet[i][j]) >= bodyStateEpsilon {
				return false
			}
		}
	}
	return true
}

// Kinematics solves (body pose, four foot positions) -> twelve joint
// angles. It is pure and re-entrant except for its memoization cache,
// which is local to the instance (never global, per §9) and reset only
// when NewKinematics is called with a new Variant.
type Kinematics struct {
	variant  Variant
	geo      legGeometry
	mounts   [4][3]float64
	lastBody BodyState
	lastOK   bool
	lastAng  [12]float64
}

// invMountRot is the fixed 90-degree leg-frame rotation applied before
// solving each leg's 3R chain.
var invMountRot = [3][3]float64{{0, 0, -1}, {0, 1, 0}, {1, 0, 0}}

// NewKinematics builds a solver for the given robot variant and its
// per-variant shoulder mount offsets (L/2, 0, +-W/2).
func NewKinematics(variant Variant) *Kinematics {
	geo := legGeometries[variant]
	L, W := geo.bodyLength, geo.bodyWidth
	return &Kinematics{
		variant: variant,
		geo:     geo,
		mounts: [4][3]float64{
			{L / 2, 0, W / 2}, {L / 2, 0, -W / 2}, {-L / 2, 0, W / 2}, {-L / 2, 0, -W / 2},
		},
	}
}

// DefaultFeetPositions returns the variant's rest foot layout.
func (k *Kinematics) DefaultFeetPositions() [4][4]float64 {
	var feet [4][4]float64
	for i := range feet {
		sign := 1.0
		if i%2 == 1 {
			sign = -1.0
		}
		feet[i] = [4]float64{k.mounts[i][0], -1, k.mounts[i][2] + sign*k.geo.l1, 1}
	}
	return feet
}

// Solve computes the twelve joint angles for body. It memoizes on input
// equality, so repeated calls with an unchanged BodyState skip
// recomputation entirely.
func (k *Kinematics) Solve(body BodyState) [12]float64 {
	if k.lastOK && k.lastBody.almostEqual(body) {
		return k.lastAng
	}

	roll := body.Omega * math.Pi / 180
	pitch := body.Phi * math.Pi / 180
	yaw := body.Psi * math.Pi / 180
	rot := euler2R(roll, pitch, yaw)
	invRot := transpose3(rot)

	invTrans := [3]float64{
		-invRot[0][0]*body.Xm - invRot[0][1]*body.Ym - invRot[0][2]*body.Zm,
		-invRot[1][0]*body.Xm - invRot[1][1]*body.Ym - invRot[1][2]*body.Zm,
		-invRot[2][0]*body.Xm - invRot[2][1]*body.Ym - invRot[2][2]*body.Zm,
	}

	var angles [12]float64
	for i := 0; i < 4; i++ {
		wx, wy, wz := body.Feet[i][0], body.Feet[i][1], body.Feet[i][2]

		bx := invRot[0][0]*wx + invRot[0][1]*wy + invRot[0][2]*wz + invTrans[0]
		by := invRot[1][0]*wx + invRot[1][1]*wy + invRot[1][2]*wz + invTrans[1]
		bz := invRot[2][0]*wx + invRot[2][1]*wy + invRot[2][2]*wz + invTrans[2]

		px := bx - k.mounts[i][0]
		py := by - k.mounts[i][1]
		pz := bz - k.mounts[i][2]

		lx := invMountRot[0][0]*px + invMountRot[0][1]*py + invMountRot[0][2]*pz
		ly := invMountRot[1][0]*px + invMountRot[1][1]*py + invMountRot[1][2]*pz
		lz := invMountRot[2][0]*px + invMountRot[2][1]*py + invMountRot[2][2]*pz

		if i%2 == 1 {
			lx = -lx
		}
		t1, t2, t3 := k.legIK(lx, ly, lz)
		angles[i*3+0] = t1
		angles[i*3+1] = t2
		angles[i*3+2] = t3
	}

	k.lastBody = body
	k.lastOK = true
	k.lastAng = angles
	return angles
}

// legIK is the closed-form 3R solve for one leg (§4.4 algorithm step 5).
// F's radicand and D are clamped rather than erroring: an out-of-reach
// target degrades to the nearest reachable pose instead of failing.
func (k *Kinematics) legIK(x, y, z float64) (theta1, theta2, theta3 float64) {
	l1, l2, l3, l4 := k.geo.l1, k.geo.l2, k.geo.l3, k.geo.l4

	f := math.Sqrt(math.Max(0, x*x+y*y-l1*l1))
	g := f - l2
	h := math.Sqrt(g*g + z*z)

	theta1 = -math.Atan2(y, x) - math.Atan2(f, -l1)
	d := clamp((h*h-l3*l3-l4*l4)/(2*l3*l4), -1, 1)
	theta3 = math.Acos(d)
	theta2 = math.Atan2(z, g) - math.Atan2(l4*math.Sin(theta3), l3+l4*math.Cos(theta3))

	if k.variant == VariantYertle {
		theta3 += theta2
	}

	return radToDeg(theta1), radToDeg(theta2), radToDeg(theta3)
}

// euler2R builds the ZYX-composed rotation matrix the source enumerates
// in its GLOSSARY: yaw about Y, pitch about Z, roll about X.
func euler2R(roll, pitch, yaw float64) [3][3]float64 {
	sr, cr := math.Sin(roll), math.Cos(roll)
	sp, cp := math.Sin(pitch), math.Cos(pitch)
	sy, cy := math.Sin(yaw), math.Cos(yaw)

	return [3][3]float64{
		{cp * cy, -sy * cp, sp},
		{sr*sp*cy + sy*cr, -sr*sp*sy + cr*cy, -sr * cp},
		{sr*sy - sp*cr*cy, sr*cy + sp*sy*cr, cr * cp},
	}
}

func transpose3(m [3][3]float64) [3][3]float64 {
	var t [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t[i][j] = m[j][i]
		}
	}
	return t
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func radToDeg(r float64) float64 { return r * 180 / math.Pi }
