package spotmicro

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestMotionEngineLevelingTracksLatestIMUSample(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()
	logger := zaptest.NewLogger(t).Sugar()
	kin := NewKinematics(VariantESP32)
	m := NewMotionEngine(bus, kin, logger)
	defer m.Close()

	bus.Publish(TopicImu, ImuMsg{Roll: 1, Pitch: 2}, Handle{})
	m.tick(16 * time.Millisecond)

	bus.Publish(TopicImu, ImuMsg{Roll: 9, Pitch: 9}, Handle{})
	imu, ok := Peek[ImuMsg](bus, TopicImu)
	assert.True(t, ok)
	assert.Equal(t, 9.0, imu.Roll, "a later IMU sample must replace the earlier one, never latch the first")
	assert.Equal(t, 9.0, imu.Pitch)
}

func TestMotionEngineAppliesOnlyAFractionOfIMUBias(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()
	logger := zaptest.NewLogger(t).Sugar()
	kin := NewKinematics(VariantESP32)
	m := NewMotionEngine(bus, kin, logger)
	defer m.Close()

	bus.Publish(TopicImu, ImuMsg{Roll: 10, Pitch: 20}, Handle{})

	got := make(chan MotionAnglesMsg, 1)
	sub := Subscribe(bus, TopicMotionAngles, 0, Latest, func(msgs []MotionAnglesMsg) { got <- msgs[len(msgs)-1] })
	defer sub.Unsubscribe()

	m.tick(16 * time.Millisecond)

	select {
	case msg := <-got:
		// Deactivated mode commands zero lean, so the only source of
		// nonzero Omega/Phi is the leveling term; a full-magnitude
		// correction (gain 1.0) would solve a visibly different pose than
		// imuLevelGain's partial correction.
		wantPartial := BodyState{
			Omega: -10 * imuLevelGain,
			Phi:   -20 * imuLevelGain,
			Feet:  kin.DefaultFeetPositions(),
		}
		wantFull := BodyState{Omega: -10, Phi: -20, Feet: kin.DefaultFeetPositions()}

		partialAngles := kin.Solve(wantPartial)
		for i := range partialAngles {
			partialAngles[i] *= jointSign[i]
		}
		fullAngles := kin.Solve(wantFull)
		for i := range fullAngles {
			fullAngles[i] *= jointSign[i]
		}

		assert.Equal(t, partialAngles, msg.Angles)
		assert.NotEqual(t, fullAngles, msg.Angles, "a full-magnitude roll/pitch subtraction must not be applied")
	case <-time.After(time.Second):
		t.Fatal("expected motion angles to be published on first tick")
	}
}

func TestMotionEngineTracksLatestInput(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()
	logger := zaptest.NewLogger(t).Sugar()
	kin := NewKinematics(VariantESP32)
	m := NewMotionEngine(bus, kin, logger)
	defer m.Close()

	bus.Publish(TopicMotionInput, MotionInputMsg{Lx: 0.3, Ly: -0.2, Rx: 0.1, Ry: 0.4, H: 0.5, S: 0.6, S1: 0.4}, Handle{})
	assert.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.lastInput.Lx == 0.3
	}, time.Second, 5*time.Millisecond)

	m.mu.Lock()
	input := m.lastInput
	m.mu.Unlock()

	assert.Equal(t, 0.3, input.Lx)
	assert.Equal(t, -0.2, input.Ly)
	assert.Equal(t, 0.4, input.Ry)
	assert.Equal(t, 0.6, input.S)
}

func TestMotionEngineModeMessageDrivesGaitController(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()
	logger := zaptest.NewLogger(t).Sugar()
	kin := NewKinematics(VariantESP32)
	m := NewMotionEngine(bus, kin, logger)
	defer m.Close()

	bus.Publish(TopicMotionMode, MotionModeMsg{Mode: int(GaitCrawl)}, Handle{})

	assert.Eventually(t, func() bool {
		return m.gait.mode == GaitCrawl
	}, time.Second, 5*time.Millisecond)
}

func TestMotionEngineMapsRyToCommandedPitch(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()
	logger := zaptest.NewLogger(t).Sugar()
	kin := NewKinematics(VariantESP32)
	m := NewMotionEngine(bus, kin, logger)
	defer m.Close()

	bus.Publish(TopicMotionMode, MotionModeMsg{Mode: int(GaitStand)}, Handle{})
	bus.Publish(TopicMotionInput, MotionInputMsg{Ry: 1}, Handle{})
	assert.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.gait.mode == GaitStand && m.lastInput.Ry == 1
	}, time.Second, 5*time.Millisecond)

	for i := 0; i < 10; i++ {
		m.tick(16 * time.Millisecond)
	}

	assert.InDelta(t, maxPitch, m.gait.params.Pitch, 1e-9)
}

func TestMotionEngineTickAppliesJointSignToSolvedAngles(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()
	logger := zaptest.NewLogger(t).Sugar()
	kin := NewKinematics(VariantESP32)
	m := NewMotionEngine(bus, kin, logger)
	defer m.Close()

	got := make(chan MotionAnglesMsg, 1)
	sub := Subscribe(bus, TopicMotionAngles, 0, Latest, func(msgs []MotionAnglesMsg) { got <- msgs[len(msgs)-1] })
	defer sub.Unsubscribe()

	m.tick(16 * time.Millisecond)

	select {
	case msg := <-got:
		params := GaitParams{BodyHeight: minBodyHeight, StepHeight: 0}
		gait := NewGaitController(kin)
		gait.SetParams(params)
		body := gait.Tick(16 * time.Millisecond)
		want := kin.Solve(body)
		for i := range want {
			want[i] *= jointSign[i]
		}
		assert.Equal(t, want, msg.Angles)
	case <-time.After(time.Second):
		t.Fatal("expected motion angles to be published on first tick")
	}
}
