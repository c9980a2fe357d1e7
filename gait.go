package spotmicro

import (
	"math"
	"time"
)

// GaitMode is the state machine's mode selector, mirroring the source's
// State enum (kDeactivated/kIdle/kStand/kCrawl/kTrot) from
// utilities/gait_utilities.h and gait/walk_state.h.
type GaitMode int

const (
	GaitDeactivated GaitMode = iota
	GaitRest
	GaitStand
	GaitCrawl // discrete phase-table walk, gait_phase.go
	GaitTrot  // continuous-phase Bezier-swing walk, gait_bezier.go
)

func (m GaitMode) String() string {
	switch m {
	case GaitDeactivated:
		return "Deactivated"
	case GaitRest:
		return "Rest"
	case GaitStand:
		return "Stand"
	case GaitCrawl:
		return "Crawl"
	case GaitTrot:
		return "Trot"
	default:
		return "Unknown"
	}
}

// GaitParams is the per-tick steering input, derived from MotionInputMsg.
// Lx/Ly/Rx/Ry are the raw stick axes Stand reads directly; BodyHeight and
// the Step* fields are the target §4.5 GaitState Walk reads, smoothed
// toward internally by whichever Walker is active rather than applied
// instantaneously.
type GaitParams struct {
	Lx, Ly, Rx, Ry float64

	BodyHeight float64 // commanded body height offset
	Pitch      float64 // commanded forward/back lean, from Ry

	StepHeight   float64 // swing lift magnitude
	StepX        float64 // longitudinal step distance
	StepZ        float64 // lateral step distance
	StepAngle    float64 // yaw-in-place step magnitude
	StepVelocity float64 // phase advance rate
	StepDepth    float64 // stance-phase terrain-compliance dip
}

// Walker advances one gait's internal phase by dt and returns the body
// pose and four foot targets for that instant. Crawl and Trot each own a
// Walker; Rest and Stand need no phase state at all.
type Walker interface {
	Step(dt time.Duration, p GaitParams, k *Kinematics) BodyState
	Reset()
}

const (
	restHeight  = -1.0
	standHeight = -1.3
	smoothRate  = 6.0 // per-second LERP rate toward target mode pose, tuned like the source's linear speed ramps
)

// GaitController is the shared dispatcher behind §4.4's phase diagram: it
// owns one instance of each Walker and blends into/out of the active
// mode's output rather than snapping, the way RestState/StandState hold a
// constant pose in the source while WalkState free-runs its phase.
type GaitController struct {
	kin *Kinematics

	mode   GaitMode
	crawl  Walker
	trot   Walker
	params GaitParams

	current BodyState
	haveCur bool
}

// NewGaitController builds a dispatcher bound to kin's variant, so its
// Walkers and the default foot layout they recenter around agree.
func NewGaitController(kin *Kinematics) *GaitController {
	return &GaitController{
		kin:   kin,
		crawl: newPhaseTableWalker(kin),
		trot:  newBezierWalker(kin),
		mode:  GaitDeactivated,
	}
}

// SetMode transitions the dispatcher. Switching into Crawl or Trot resets
// that walker's phase so a resumed gait always starts from a clean swing,
// per the source's "re-entering Walk restarts cycle_time at zero" rule.
func (g *GaitController) SetMode(mode GaitMode) {
	if mode == g.mode {
		return
	}
	switch mode {
	case GaitCrawl:
		g.crawl.Reset()
	case GaitTrot:
		g.trot.Reset()
	}
	g.mode = mode
}

// SetParams updates the steering input consumed by the next Tick.
func (g *GaitController) SetParams(p GaitParams) { g.params = p }

// Tick advances the active mode by dt and returns the resulting body
// pose, LERP-smoothed toward the mode's instantaneous target at
// smoothRate so mode switches and steering changes never step-discontinuity
// the commanded pose (§4.4 edge case: "transitions must not jump").
func (g *GaitController) Tick(dt time.Duration) BodyState {
	var target BodyState
	switch g.mode {
	case GaitDeactivated:
		target = BodyState{Feet: g.kin.DefaultFeetPositions()}
	case GaitRest:
		target = g.restState()
	case GaitStand:
		target = g.standState()
	case GaitCrawl:
		target = g.crawl.Step(dt, g.params, g.kin)
	case GaitTrot:
		target = g.trot.Step(dt, g.params, g.kin)
	}

	if !g.haveCur {
		g.current = target
		g.haveCur = true
		return g.current
	}
	alpha := clamp(smoothRate*dt.Seconds(), 0, 1)
	g.current = lerpBodyState(g.current, target, alpha)
	return g.current
}

func (g *GaitController) restState() BodyState {
	feet := g.kin.DefaultFeetPositions()
	for i := range feet {
		feet[i][1] = restHeight
	}
	return BodyState{Ym: g.params.BodyHeight, Feet: feet}
}

func (g *GaitController) standState() BodyState {
	feet := g.kin.DefaultFeetPositions()
	for i := range feet {
		feet[i][1] = standHeight
	}
	return BodyState{
		Omega: clamp(g.params.Lx*15, -15, 15),
		Phi:   clamp(g.params.Ly*15, -15, 15),
		Psi:   clamp(g.params.Rx*15, -15, 15),
		Ym:    g.params.BodyHeight,
		Feet:  feet,
	}
}

func lerpBodyState(a, b BodyState, alpha float64) BodyState {
	lerp := func(x, y float64) float64 { return x + (y-x)*alpha }
	out := BodyState{
		Omega: lerp(a.Omega, b.Omega),
		Phi:   lerp(a.Phi, b.Phi),
		Psi:   lerp(a.Psi, b.Psi),
		Xm:    lerp(a.Xm, b.Xm),
		Ym:    lerp(a.Ym, b.Ym),
		Zm:    lerp(a.Zm, b.Zm),
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			out.Feet[i][j] = lerp(a.Feet[i][j], b.Feet[i][j])
		}
	}
	return out
}

// smoothstep01 eases t in [0,1] with a cubic Hermite blend, used by the
// crawl gait's dynamic stance-centroid shift.
func smoothstep01(t float64) float64 {
	t = clamp(t, 0, 1)
	return t * t * (3 - 2*t)
}

// yawArc returns the angle fed to the rotational pass of a foot's swing
// or stance curve: the default foot position's own polar direction, bent
// by how far the foot has already drifted from that default since the
// robot started turning. walk_state.h's controller() runs the same
// curve function twice per foot, once with the translation angle
// (atan2(step_z, step_length)) and once with this yaw angle, so a foot
// commanded to rotate in place (step_x = step_z = 0, step_angle != 0)
// still traces a real arc instead of standing still.
func yawArc(defaultFoot, currentFoot [4]float64) float64 {
	footMag := math.Hypot(defaultFoot[0], defaultFoot[2])
	footDir := math.Atan2(defaultFoot[2], defaultFoot[0])
	offX := currentFoot[0] - defaultFoot[0]
	offZ := currentFoot[2] - defaultFoot[2]
	offsetMag := math.Hypot(offX, offZ)
	offsetMod := math.Atan2(offsetMag, footMag)
	return math.Pi/2 + footDir + offsetMod
}

// footCurve evaluates one phase-indexed trajectory segment (the Bézier
// swing arc or the linear stance drag) given a polar length/angle and an
// auxiliary argument (lift height for swing, terrain-compliance depth
// for stance), returning a body-frame foot delta.
type footCurve func(length, angle, arg, phase float64) (dx, dy, dz float64)

// footTrajectory is walk_state.h's controller(): the same curve is
// evaluated twice, once for the commanded translation and once for the
// commanded rotation about the default foot position, and the two
// deltas are summed with the rotational pass weighted at 0.2 so neither
// motion starves the other when both are commanded at once.
func footTrajectory(curve footCurve, phase, arg, stepLength, stepZ, stepAngle float64, defaultFoot, currentFoot [4]float64) (dx, dy, dz float64) {
	length := stepLength * 0.5
	angle := math.Atan2(stepZ, stepLength)
	tdx, tdy, tdz := curve(length, angle, arg, phase)

	length = stepAngle * 2
	angle = yawArc(defaultFoot, currentFoot)
	rdx, rdy, rdz := curve(length, angle, arg, phase)

	dx = tdx + rdx*0.2
	dz = tdz + rdz*0.2
	if stepLength != 0 || stepAngle != 0 {
		dy = tdy + rdy*0.2
	}
	return dx, dy, dz
}

// signedStepLength is the foot trajectory's scalar step magnitude: the
// planar hypotenuse of the commanded step, negated when stepping
// backward so the translation curve's phase direction stays consistent.
func signedStepLength(stepX, stepZ float64) float64 {
	l := math.Hypot(stepX, stepZ)
	if stepX < 0 {
		l = -l
	}
	return l
}

// gaitStationary reports whether every swing-driving input is within the
// §4.5 "commanded stationary" deadband, in which case phase_time holds
// at zero instead of advancing (no shuffling in place while idle).
func gaitStationary(stepX, stepZ, stepAngle float64) bool {
	const deadband = 0.01
	return math.Abs(stepX) < deadband && math.Abs(stepZ) < deadband && math.Abs(stepAngle) < deadband
}

// gaitSmoothRate is the per-second LERP rate a Walker blends its
// internal gait state toward GaitParams' target Step* fields, mirroring
// walk_state.h's fixed-ratio-per-call gait_state/target_gait_state
// smoothing but scaled by dt since this engine's tick period isn't fixed.
const gaitSmoothRate = 8.0

// defaultStepDepth is the stance curve's terrain-compliance dip, applied
// whenever no steeper target has been commanded.
const defaultStepDepth = 0.05
