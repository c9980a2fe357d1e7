package spotmicro

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

// servoSmoothing is the LERP rate each tick blends the commanded angle
// toward its target, grounded on servo_controller.h's lerp(angle, target,
// 0.1) call; the source code allows tuning this anywhere from a crisp
// 0.3 down to a soft 0.05.
const servoSmoothing = 0.15

// ServoCalibration is the twelve joints' direction/offset/scale, snapshotted as
// a whole so a driver tick never observes a half-applied calibration
// update mid-batch.
type ServoCalibration struct {
	Direction   [12]float64
	CenterAngle [12]float64
	CenterPWM   [12]float64
	Conversion  [12]float64
}

// DefaultCalibration returns an identity calibration: no direction flip,
// zero offset, and a conversion mapping -90..+90 degrees onto
// pwmMin..pwmMax, centered at the PWM range's midpoint.
func DefaultCalibration() ServoCalibration {
	var c ServoCalibration
	for i := 0; i < 12; i++ {
		c.Direction[i] = 1
		c.CenterPWM[i] = (pwmMin + pwmMax) / 2.0
		c.Conversion[i] = (pwmMax - pwmMin) / 180.0
	}
	return c
}

// calculatePWM converts joint i's angle (degrees) to a PWM count using
// servo_controller.h's formula verbatim:
//
//	angle = round(direction*angle + center_angle)
//	pwm   = clamp(angle*conversion + center_pwm, pwmMin, pwmMax)
func (c *ServoCalibration) calculatePWM(i int, angle float64) uint16 {
	adjusted := math.Round(c.Direction[i]*angle + c.CenterAngle[i])
	return clampPWM(adjusted*c.Conversion[i] + c.CenterPWM[i])
}

// ServoDriver owns the serial link to the onboard PWM chip and the
// smoothing/calibration state between the solved joint target and the
// wire. Calibration updates are copy-on-write via atomic.Pointer so a
// tick in flight never locks against a concurrent recalibration request
// from the debug CLI.
type ServoDriver struct {
	port   serial.Port
	logger *zap.SugaredLogger

	calib atomic.Pointer[ServoCalibration]

	mu      sync.Mutex
	target  [12]float64
	current [12]float64
	active  bool

	rawMode bool
	rawPWM  [16]uint16
}

// ServoChannelAll addresses every channel at once in SetPWM, mirroring
// the onboard chip's broadcast instruction ID.
const ServoChannelAll = -1

// OpenServoDriver opens portName at baud and returns a driver with
// identity calibration. The caller should follow with SetCalibration once
// persisted calibration data is loaded.
func OpenServoDriver(portName string, baud int, logger *zap.SugaredLogger) (*ServoDriver, error) {
	mode := &serial.Mode{BaudRate: baud}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, newCodeError(KindIoError, errors.Wrapf(err, "open %s", portName), "servo port open failed")
	}
	d := &ServoDriver{port: port, logger: logger}
	def := DefaultCalibration()
	d.calib.Store(&def)
	return d, nil
}

// SetCalibration atomically swaps the calibration snapshot used by
// subsequent ticks.
func (d *ServoDriver) SetCalibration(c ServoCalibration) { d.calib.Store(&c) }

// SetAngles updates the commanded target; Tick smooths current toward it.
// Any outstanding SetPWM override is cleared, returning the driver to
// angle mode (§4.7: set_angles always wins back control from a raw PWM
// override).
func (d *ServoDriver) SetAngles(angles [12]float64) {
	d.mu.Lock()
	d.target = angles
	d.rawMode = false
	d.mu.Unlock()
}

// SetPWM writes a raw PWM count directly to channel (or every channel,
// if channel is ServoChannelAll), bypassing calibration and angle
// smoothing entirely. It puts the driver into PWM mode: Tick stops
// advancing the smoothed angle target and instead holds the last raw
// value written, until the next SetAngles call restores angle mode
// (§4.7's direct override contract).
func (d *ServoDriver) SetPWM(channel int, value uint16) error {
	value = clampRawPWM(value)

	d.mu.Lock()
	if !d.rawMode {
		calib := d.calib.Load()
		for i := 0; i < 12; i++ {
			d.rawPWM[i] = calib.calculatePWM(i, d.current[i])
		}
		for i := 12; i < 16; i++ {
			d.rawPWM[i] = pwmMin
		}
	}
	d.rawMode = true
	if channel == ServoChannelAll {
		for i := range d.rawPWM {
			d.rawPWM[i] = value
		}
	} else {
		d.rawPWM[channel] = value
	}
	pwm := d.rawPWM
	d.mu.Unlock()

	return d.writePacket(buildSetPWMPacket(pwm))
}

// Activate enables torque on all twelve joints.
func (d *ServoDriver) Activate() error {
	d.mu.Lock()
	d.active = true
	d.mu.Unlock()
	return d.writePacket(buildSetTorquePacket(true))
}

// Deactivate disables torque, letting the legs go slack.
func (d *ServoDriver) Deactivate() error {
	d.mu.Lock()
	d.active = false
	d.mu.Unlock()
	return d.writePacket(buildSetTorquePacket(false))
}

// Tick advances the smoothed joint state one step toward target and
// writes the resulting PWM frame, grounded on servo_controller.h's own
// per-tick lerp-then-write pairing. It is a no-op while deactivated.
func (d *ServoDriver) Tick(dt time.Duration) error {
	d.mu.Lock()
	if !d.active {
		d.mu.Unlock()
		return nil
	}
	if d.rawMode {
		pwm := d.rawPWM
		d.mu.Unlock()
		return d.writePacket(buildSetPWMPacket(pwm))
	}
	for i := 0; i < 12; i++ {
		d.current[i] += (d.target[i] - d.current[i]) * servoSmoothing
	}
	current := d.current
	d.mu.Unlock()

	calib := d.calib.Load()
	var pwm [16]uint16
	for i := 0; i < 12; i++ {
		pwm[i] = calib.calculatePWM(i, current[i])
	}
	for i := 12; i < 16; i++ {
		pwm[i] = pwmMin
	}
	return d.writePacket(buildSetPWMPacket(pwm))
}

// CurrentAngles returns the last smoothed angle vector actually sent to
// the servos, for ServoAnglesMsg telemetry.
func (d *ServoDriver) CurrentAngles() [12]float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

func (d *ServoDriver) writePacket(pkt []byte) error {
	_, err := d.port.Write(pkt)
	if err != nil {
		return newCodeError(KindIoError, err, "servo write failed")
	}
	return nil
}

// Close releases the serial port. A driver with no open port closes
// without error.
func (d *ServoDriver) Close() error {
	if d.port == nil {
		return nil
	}
	return d.port.Close()
}
