package spotmicro

import (
	"math"
	"time"
)

// crawlDutyFactor and crawlSpeedFactor tune the statically-stable crawl
// gait: a high duty factor keeps at least three feet grounded at all
// times, and the slower speed factor keeps the single swinging leg's
// lift brief relative to the long stance drag.
const (
	crawlDutyFactor  = 0.85
	crawlSpeedFactor = 0.5
)

// crawlPhaseOffset sequences the four legs' lift order one at a time
// (the source's set_mode_crawl(duty, order={3,0,2,1}) applied to the
// base {0, .25, .5, .75} offsets), so at most one foot is ever off the
// ground and the other three always form a stable support tripod.
var crawlPhaseOffset = [4]float64{0.25, 0.75, 0.5, 0}

// crawlShift tracks the body centroid's smoothstep ease from its
// position at the start of the current stance window toward the
// centroid of the feet that will remain grounded once the next leg
// lifts, the source's ShiftState/LegStates pairing in
// motion_states/walk_state.h.
type crawlShift struct {
	startX, startZ   float64
	targetX, targetZ float64
	startTimeToLift  float64
	activeLeg        int // -1 when no shift is in progress
}

// phaseTableWalker implements the statically-stable crawl gait: the same
// stance/swing foot-trajectory machinery as the trot gait (bezierWalker),
// tuned with a high duty factor and a leg-at-a-time lift order, plus a
// body-centroid shift unique to Crawl.
type phaseTableWalker struct {
	kin   *Kinematics
	phase float64

	stepHeight, stepX, stepZ, stepAngle, stepVelocity, stepDepth float64

	xm, zm float64
	shift  crawlShift
}

func newPhaseTableWalker(kin *Kinematics) *phaseTableWalker {
	return &phaseTableWalker{kin: kin, stepDepth: defaultStepDepth, shift: crawlShift{activeLeg: -1}}
}

func (w *phaseTableWalker) Reset() {
	w.phase = 0
	w.stepHeight, w.stepX, w.stepZ, w.stepAngle, w.stepVelocity = 0, 0, 0, 0, 0
	w.stepDepth = defaultStepDepth
	w.xm, w.zm = 0, 0
	w.shift = crawlShift{activeLeg: -1}
}

func (w *phaseTableWalker) Step(dt time.Duration, p GaitParams, kin *Kinematics) BodyState {
	alpha := clamp(gaitSmoothRate*dt.Seconds(), 0, 1)
	w.stepHeight = p.StepHeight
	w.stepX += (p.StepX - w.stepX) * alpha
	w.stepZ += (p.StepZ - w.stepZ) * alpha
	w.stepVelocity = p.StepVelocity
	w.stepAngle += (p.StepAngle - w.stepAngle) * alpha
	w.stepDepth += (p.StepDepth - w.stepDepth) * alpha

	stepLength := signedStepLength(w.stepX, w.stepZ)
	stationary := gaitStationary(w.stepX, w.stepZ, w.stepAngle)

	if stationary {
		w.phase = 0
	} else {
		w.phase = math.Mod(w.phase+dt.Seconds()*w.stepVelocity*crawlSpeedFactor, 1.0)
		if w.phase < 0 {
			w.phase += 1
		}
	}

	w.updateBodyShift(dt, stationary)

	defaultFeet := kin.DefaultFeetPositions()
	feet := defaultFeet
	for i := 0; i < 4; i++ {
		legPhase := math.Mod(w.phase+crawlPhaseOffset[i], 1.0)
		if legPhase < 0 {
			legPhase += 1
		}
		contact := legPhase <= crawlDutyFactor

		var dx, dy, dz float64
		if contact {
			localPhase := legPhase / crawlDutyFactor
			dx, dy, dz = footTrajectory(stanceCurve, localPhase, w.stepDepth, stepLength, w.stepZ, w.stepAngle, defaultFeet[i], feet[i])
		} else {
			localPhase := (legPhase - crawlDutyFactor) / (1 - crawlDutyFactor)
			dx, dy, dz = footTrajectory(bezierCurve, localPhase, w.stepHeight, stepLength, w.stepZ, w.stepAngle, defaultFeet[i], feet[i])
		}
		feet[i][0] = defaultFeet[i][0] + dx
		feet[i][1] = defaultFeet[i][1] + dy
		feet[i][2] = defaultFeet[i][2] + dz
	}

	return BodyState{Ym: p.BodyHeight, Phi: p.Pitch, Xm: w.xm, Zm: w.zm, Feet: feet}
}

// legStates partitions the four legs into stance/swing sets at the
// walker's current phase and names whichever stance leg is nearest its
// own lift-off, along with how much phase time remains until then.
type legStates struct {
	stance       []int
	nextSwing    int
	timeToLift   float64
}

func (w *phaseTableWalker) legStates() legStates {
	st := legStates{nextSwing: -1, timeToLift: math.Inf(1)}
	for i := 0; i < 4; i++ {
		phase := math.Mod(w.phase+crawlPhaseOffset[i], 1.0)
		if phase < 0 {
			phase += 1
		}
		if phase <= crawlDutyFactor {
			st.stance = append(st.stance, i)
			timeToSwing := crawlDutyFactor - phase
			if timeToSwing < st.timeToLift {
				st.timeToLift = timeToSwing
				st.nextSwing = i
			}
		}
	}
	return st
}

func (w *phaseTableWalker) stanceCentroid(st legStates, defaultFeet [4][4]float64) (x, z float64) {
	var sx, sz float64
	n := 0
	for _, leg := range st.stance {
		if leg == st.nextSwing {
			continue
		}
		sx += defaultFeet[leg][0]
		sz += defaultFeet[leg][2]
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return sx / float64(n), sz / float64(n)
}

// updateBodyShift eases the body centroid toward the support tripod
// that will remain once the next leg lifts, only while Crawl is
// actually walking and no leg is currently mid-swing (the source's
// updateBodyPosition, gated to num_phases()==8/CRAWL mode).
func (w *phaseTableWalker) updateBodyShift(dt time.Duration, stationary bool) {
	if stationary {
		w.shift = crawlShift{activeLeg: -1}
		return
	}
	st := w.legStates()
	if len(st.stance) < 4 || st.nextSwing == -1 {
		return
	}

	defaultFeet := w.kin.DefaultFeetPositions()
	if w.shift.activeLeg != st.nextSwing {
		targetX, targetZ := w.stanceCentroid(st, defaultFeet)
		w.shift = crawlShift{
			startX: w.xm, startZ: w.zm,
			targetX: targetX, targetZ: targetZ,
			startTimeToLift: st.timeToLift,
			activeLeg:       st.nextSwing,
		}
	}

	progress := 1.0
	if w.shift.startTimeToLift > 0 {
		progress = 1.0 - st.timeToLift/w.shift.startTimeToLift
	}
	eased := smoothstep01(progress)
	w.xm = w.shift.startX + (w.shift.targetX-w.shift.startX)*eased
	w.zm = w.shift.startZ + (w.shift.targetZ-w.shift.startZ)*eased
}
