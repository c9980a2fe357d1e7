package spotmicro

import (
	"math"
	"time"
)

// bezierOrder is the Bezier swing curve's degree: 12 control points,
// degree 11, matching the source's COMBINATORIAL_VALUES/BEZIER_STEPS
// tables in gait/walk_state.h.
const bezierOrder = 11

// bezierSteps and bezierHeights are the control-point tables driving the
// swing trajectory: steps walks the foot from trailing to leading along
// the direction of travel while heights lifts it through a hump, per the
// GLOSSARY's BEZIER_STEPS/BEZIER_HEIGHTS tables (walk_state.h:36-40).
var bezierSteps = [bezierOrder + 1]float64{
	-1.0, -1.4, -1.5, -1.5, -1.5, 0, 0, 0, 1.5, 1.5, 1.4, 1.0,
}
var bezierHeights = [bezierOrder + 1]float64{
	0, 0, 0.9, 0.9, 0.9, 0.9, 0.9, 1.1, 1.1, 1.1, 0, 0,
}

var bezierBinomial [bezierOrder + 1]float64

func init() {
	for i := 0; i <= bezierOrder; i++ {
		bezierBinomial[i] = binomial(bezierOrder, i)
	}
}

func binomial(n, k int) float64 {
	if k < 0 || k > n {
		return 0
	}
	result := 1.0
	for i := 0; i < k; i++ {
		result *= float64(n-i) / float64(i+1)
	}
	return result
}

// bezierCurve is a footCurve: the Bernstein-weighted swing trajectory,
// evaluated in polar form so length/angle describe the horizontal travel
// and arg scales the lift height.
func bezierCurve(length, angle, height, phase float64) (dx, dy, dz float64) {
	xPolar, zPolar := math.Cos(angle), math.Sin(angle)
	t := clamp(phase, 1e-4, 1-1e-4)
	phasePower := 1.0
	invPhasePower := math.Pow(1-t, float64(bezierOrder))
	oneMinusPhase := 1 - t
	for i := 0; i <= bezierOrder; i++ {
		b := bezierBinomial[i] * phasePower * invPhasePower
		dx += b * bezierSteps[i] * length * xPolar
		dy += b * bezierHeights[i] * height
		dz += b * bezierSteps[i] * length * zPolar
		phasePower *= t
		invPhasePower /= oneMinusPhase
	}
	return dx, dy, dz
}

// stanceCurve is a footCurve: the linear drag-phase trajectory, plus a
// terrain-compliance dip on y proportional to arg (step depth) while the
// foot is mid-drag, per walk_state.h's stanceCurve.
func stanceCurve(length, angle, depth, phase float64) (dx, dy, dz float64) {
	step := length * (1 - 2*phase)
	dx = step * math.Cos(angle)
	dz = step * math.Sin(angle)
	if length != 0 {
		dy = -depth * math.Cos(math.Pi*(dx+dz)/(2*length))
	}
	return dx, dy, dz
}

// bezierWalker implements the continuous-phase trot gait (walk_state.h's
// WalkState in TROT mode): all four legs share one phase clock offset by
// legPhaseOffset, each cycling through a stance drag and a Bezier swing
// arc, with the commanded gait state smoothed toward the latest
// GaitParams every tick rather than snapping to it.
type bezierWalker struct {
	kin   *Kinematics
	phase float64 // shared phase in [0,1), legs read it through legPhaseOffset

	stepHeight, stepX, stepZ, stepAngle, stepVelocity, stepDepth float64
}

const (
	trotDutyFactor  = 0.6 // fraction of the cycle each leg spends in stance
	trotSpeedFactor = 2.0
)

// legPhaseOffset staggers FL/BR against FR/BL by half a cycle, the
// diagonal-support pattern the source calls a trot.
var legPhaseOffset = [4]float64{0, 0.5, 0.5, 0}

func newBezierWalker(kin *Kinematics) *bezierWalker {
	return &bezierWalker{kin: kin, stepDepth: defaultStepDepth}
}

func (w *bezierWalker) Reset() {
	w.phase = 0
	w.stepHeight, w.stepX, w.stepZ, w.stepAngle, w.stepVelocity = 0, 0, 0, 0, 0
	w.stepDepth = defaultStepDepth
}

func (w *bezierWalker) Step(dt time.Duration, p GaitParams, kin *Kinematics) BodyState {
	alpha := clamp(gaitSmoothRate*dt.Seconds(), 0, 1)
	w.stepHeight = p.StepHeight
	w.stepX += (p.StepX - w.stepX) * alpha
	w.stepZ += (p.StepZ - w.stepZ) * alpha
	w.stepVelocity = p.StepVelocity
	w.stepAngle += (p.StepAngle - w.stepAngle) * alpha
	w.stepDepth += (p.StepDepth - w.stepDepth) * alpha

	stepLength := signedStepLength(w.stepX, w.stepZ)

	if gaitStationary(w.stepX, w.stepZ, w.stepAngle) {
		w.phase = 0
	} else {
		w.phase = math.Mod(w.phase+dt.Seconds()*w.stepVelocity*trotSpeedFactor, 1.0)
		if w.phase < 0 {
			w.phase += 1
		}
	}

	defaultFeet := kin.DefaultFeetPositions()
	feet := defaultFeet
	for i := 0; i < 4; i++ {
		legPhase := math.Mod(w.phase+legPhaseOffset[i], 1.0)
		if legPhase < 0 {
			legPhase += 1
		}
		contact := legPhase <= trotDutyFactor

		var dx, dy, dz float64
		if contact {
			localPhase := legPhase / trotDutyFactor
			dx, dy, dz = footTrajectory(stanceCurve, localPhase, w.stepDepth, stepLength, w.stepZ, w.stepAngle, defaultFeet[i], feet[i])
		} else {
			localPhase := (legPhase - trotDutyFactor) / (1 - trotDutyFactor)
			dx, dy, dz = footTrajectory(bezierCurve, localPhase, w.stepHeight, stepLength, w.stepZ, w.stepAngle, defaultFeet[i], feet[i])
		}
		feet[i][0] = defaultFeet[i][0] + dx
		feet[i][1] = defaultFeet[i][1] + dy
		feet[i][2] = defaultFeet[i][2] + dz
	}

	return BodyState{Ym: p.BodyHeight, Phi: p.Pitch, Feet: feet}
}
