package spotmicro

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestControllerConfigValidate(t *testing.T) {
	t.Run("rejects missing servo port", func(t *testing.T) {
		cfg := &ControllerConfig{}
		err := cfg.Validate("test")
		assert.Error(t, err)
	})

	t.Run("fills in defaults", func(t *testing.T) {
		cfg := &ControllerConfig{ServoPort: "/dev/ttyUSB0"}
		err := cfg.Validate("test")
		assert.NoError(t, err)
		assert.Equal(t, 115200, cfg.ServoBaudrate)
		assert.Equal(t, ":8080", cfg.WSListenAddr)
		assert.Equal(t, "esp32", cfg.Variant)
	})

	t.Run("rejects unknown variant", func(t *testing.T) {
		cfg := &ControllerConfig{ServoPort: "/dev/ttyUSB0", Variant: "bogus"}
		err := cfg.Validate("test")
		assert.Error(t, err)
	})
}

func TestLoadCalibration(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()

	t.Run("returns fromFile=true when file exists", func(t *testing.T) {
		tmpDir := t.TempDir()
		calibFile := filepath.Join(tmpDir, "calibration.json")
		want := DefaultCalibration()
		want.Direction[3] = -1
		assert.NoError(t, SaveCalibration(calibFile, want))

		cfg := &ControllerConfig{CalibrationFile: calibFile, Logger: logger}
		got, fromFile := cfg.LoadCalibration()

		assert.True(t, fromFile)
		assert.Equal(t, want, got)
	})

	t.Run("returns fromFile=false when no file configured", func(t *testing.T) {
		cfg := &ControllerConfig{Logger: logger}
		got, fromFile := cfg.LoadCalibration()

		assert.False(t, fromFile)
		assert.Equal(t, DefaultCalibration(), got)
	})

	t.Run("returns fromFile=false when file doesn't exist", func(t *testing.T) {
		cfg := &ControllerConfig{CalibrationFile: "/nonexistent/path/calibration.json", Logger: logger}
		got, fromFile := cfg.LoadCalibration()

		assert.False(t, fromFile)
		assert.Equal(t, DefaultCalibration(), got)
	})
}
