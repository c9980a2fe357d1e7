package spotmicro

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// motionTickPeriod is the fixed control-loop period feeding gait,
// kinematics and the servo driver, grounded on timing.h's MOTION_HZ
// (60 Hz on the original firmware's FreeRTOS task).
const motionTickPeriod = time.Second / 60

// imuLevelGain is the fraction of the latest IMU roll/pitch sample
// subtracted from the commanded body orientation each tick. A small
// gain lets the body lean into a slope gradually rather than snapping
// level the instant the IMU reads anything but zero (§4.6 step 1).
const imuLevelGain = 0.2

// Body geometry and steering ranges the operator's normalized stick
// input is mapped into, per §4.5's GaitState target mapping. Not
// retrieved as named constants anywhere in the reference firmware (only
// their usages survived distillation), so these are this controller's
// own tuning choices, consistent with the existing BodyState/foot-layout
// scale (meters, not millimeters).
const (
	minBodyHeight   = -1.3
	bodyHeightRange = 0.4
	maxPitch        = 15.0 // degrees
	maxStepLength   = 0.5
	maxStepHeight   = 0.5
)

// jointSign flips the twelve solved joint angles into each physical
// servo's mounting direction; legs are mirrored left/right so all three
// joint signs of a leg flip together per side, matching servo_controller.h's
// per-servo direction field applied at calculatePWM time rather than
// baked into the kinematics solve.
var jointSign = [12]float64{
	1, 1, 1,
	-1, -1, -1,
	1, 1, 1,
	-1, -1, -1,
}

// MotionEngine is the real-time core: a fixed-rate tick that reads the
// latest operator input and IMU sample off the bus, advances the gait
// state machine, solves inverse kinematics, and publishes the resulting
// joint angles for the servo driver to smooth and write out. Grounded on
// the teslashibe-go-reachy movement Manager's tick loop and motion.h's
// run_motion()/update_imu_feedback() pairing.
type MotionEngine struct {
	bus    *EventBus
	kin    *Kinematics
	gait   *GaitController
	logger *zap.SugaredLogger

	inputSub Handle
	modeSub  Handle

	mu        sync.Mutex
	lastInput MotionInputMsg
}

// NewMotionEngine wires the engine to bus, using kin's variant for both
// the IK solve and the gait controller's default foot layout.
func NewMotionEngine(bus *EventBus, kin *Kinematics, logger *zap.SugaredLogger) *MotionEngine {
	m := &MotionEngine{
		bus:    bus,
		kin:    kin,
		gait:   NewGaitController(kin),
		logger: logger,
	}
	m.inputSub = Subscribe(bus, TopicMotionInput, 0, Latest, func(msgs []MotionInputMsg) {
		if len(msgs) == 0 {
			return
		}
		m.mu.Lock()
		m.lastInput = msgs[len(msgs)-1]
		m.mu.Unlock()
	})
	m.modeSub = Subscribe(bus, TopicMotionMode, 0, Latest, func(msgs []MotionModeMsg) {
		if len(msgs) == 0 {
			return
		}
		m.gait.SetMode(GaitMode(msgs[len(msgs)-1].Mode))
	})
	return m
}

// Close releases the engine's bus subscriptions.
func (m *MotionEngine) Close() {
	m.inputSub.Unsubscribe()
	m.modeSub.Unsubscribe()
}

// Run blocks, ticking at motionTickPeriod until ctx is cancelled. Each
// tick is read-modify-publish: the shared gait/kinematics state is only
// ever touched from this one goroutine, so it needs no lock of its own.
func (m *MotionEngine) Run(ctx context.Context) {
	ticker := NewTicker(motionTickPeriod, m.tick)
	ticker.Run(ctx)
}

func (m *MotionEngine) tick(dt time.Duration) {
	m.mu.Lock()
	input := m.lastInput
	m.mu.Unlock()

	params := GaitParams{
		Lx: input.Lx, Ly: input.Ly, Rx: input.Rx, Ry: input.Ry,

		BodyHeight: minBodyHeight + input.H*bodyHeightRange,
		Pitch:      input.Ry * maxPitch,

		StepHeight:   input.S1 * maxStepHeight,
		StepX:        input.Ly * maxStepLength,
		StepZ:        -input.Lx * maxStepLength,
		StepAngle:    input.Rx,
		StepVelocity: input.S,
		StepDepth:    defaultStepDepth,
	}
	m.gait.SetParams(params)

	body := m.gait.Tick(dt)

	// Peek the latest IMU sample every tick, rather than latching one
	// reading at startup, so the leveling term tracks the robot's actual
	// attitude as it walks onto a slope and back off it.
	if imu, ok := Peek[ImuMsg](m.bus, TopicImu); ok {
		body.Omega -= imu.Roll * imuLevelGain
		body.Phi -= imu.Pitch * imuLevelGain
	}

	angles := m.kin.Solve(body)
	for i := range angles {
		angles[i] *= jointSign[i]
	}

	if !m.bus.PublishAsync(TopicMotionAngles, MotionAnglesMsg{Angles: angles}, Handle{}) {
		m.logger.Debugw("motion angles dropped, bus queue full")
	}
}
