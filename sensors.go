package spotmicro

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// IMUSource, MagSource, BaroSource and SonarSource are the hardware
// boundaries for the four onboard sensors. No I2C/IMU driver appears
// anywhere in the retrieval corpus (see DESIGN.md), so each is expressed
// as a narrow injected interface in the same spirit as GattLink: the
// reader component owns polling and publishing, a concrete board-specific
// implementation satisfies the interface.
type IMUSource interface {
	ReadIMU(ctx context.Context) (ImuMsg, error)
}

type MagSource interface {
	ReadMag(ctx context.Context) (MagSample, error)
}

type BaroSource interface {
	ReadBaro(ctx context.Context) (BaroSample, error)
}

type SonarSource interface {
	ReadSonar(ctx context.Context) (SonarSample, error)
}

// SensorReaders polls each configured source on its own ticker and
// publishes samples onto the bus, mirroring imu.h's fixed per-sensor
// poll rates (IMU fastest, baro slowest).
type SensorReaders struct {
	bus    *EventBus
	logger *zap.SugaredLogger

	imu   IMUSource
	mag   MagSource
	baro  BaroSource
	sonar SonarSource
}

// NewSensorReaders builds a reader set; any source left nil is simply
// never polled, so a board missing a sensor degrades gracefully.
func NewSensorReaders(bus *EventBus, logger *zap.SugaredLogger, imu IMUSource, mag MagSource, baro BaroSource, sonar SonarSource) *SensorReaders {
	return &SensorReaders{bus: bus, logger: logger, imu: imu, mag: mag, baro: baro, sonar: sonar}
}

const (
	imuPollPeriod   = 20 * time.Millisecond // 50 Hz
	magPollPeriod   = 50 * time.Millisecond // 20 Hz
	baroPollPeriod  = 200 * time.Millisecond
	sonarPollPeriod = 100 * time.Millisecond
)

// Run starts one polling goroutine per configured source and blocks until
// ctx is cancelled.
func (s *SensorReaders) Run(ctx context.Context) {
	var tickers []*Ticker
	if s.imu != nil {
		tickers = append(tickers, NewTicker(imuPollPeriod, func(time.Duration) { s.pollIMU(ctx) }))
	}
	if s.mag != nil {
		tickers = append(tickers, NewTicker(magPollPeriod, func(time.Duration) { s.pollMag(ctx) }))
	}
	if s.baro != nil {
		tickers = append(tickers, NewTicker(baroPollPeriod, func(time.Duration) { s.pollBaro(ctx) }))
	}
	if s.sonar != nil {
		tickers = append(tickers, NewTicker(sonarPollPeriod, func(time.Duration) { s.pollSonar(ctx) }))
	}

	done := make(chan struct{})
	for _, t := range tickers {
		t := t
		go func() {
			t.Run(ctx)
			done <- struct{}{}
		}()
	}
	for range tickers {
		<-done
	}
}

func (s *SensorReaders) pollIMU(ctx context.Context) {
	sample, err := s.imu.ReadIMU(ctx)
	if err != nil {
		s.logger.Debugw("imu read failed", "error", err)
		return
	}
	s.bus.PublishAsync(TopicImu, sample, Handle{})
}

func (s *SensorReaders) pollMag(ctx context.Context) {
	sample, err := s.mag.ReadMag(ctx)
	if err != nil {
		s.logger.Debugw("magnetometer read failed", "error", err)
		return
	}
	s.bus.PublishAsync(TopicMag, sample, Handle{})
}

func (s *SensorReaders) pollBaro(ctx context.Context) {
	sample, err := s.baro.ReadBaro(ctx)
	if err != nil {
		s.logger.Debugw("barometer read failed", "error", err)
		return
	}
	s.bus.PublishAsync(TopicBaro, sample, Handle{})
}

func (s *SensorReaders) pollSonar(ctx context.Context) {
	sample, err := s.sonar.ReadSonar(ctx)
	if err != nil {
		s.logger.Debugw("sonar read failed", "error", err)
		return
	}
	s.bus.PublishAsync(TopicSonar, sample, Handle{})
}
