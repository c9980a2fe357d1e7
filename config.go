package spotmicro

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ControllerConfig is the top-level JSON configuration for the
// controller binary: a flat struct plus a Validate step that fills in
// defaults and rejects bad values.
type ControllerConfig struct {
	Variant string `json:"variant,omitempty"` // "esp32", "esp32_mini", "yertle"

	ServoPort     string        `json:"servo_port,omitempty"`
	ServoBaudrate int           `json:"servo_baudrate,omitempty"`
	ServoTimeout  time.Duration `json:"servo_timeout,omitempty"`

	WSListenAddr string `json:"ws_listen_addr,omitempty"`

	CalibrationFile string `json:"calibration_file,omitempty"`

	// Not serialized.
	Logger *zap.SugaredLogger `json:"-"`
}

// Validate fills in defaults and rejects configurations the controller
// cannot start with.
func (cfg *ControllerConfig) Validate(path string) error {
	if cfg.ServoPort == "" {
		return errors.Errorf("%s: servo_port is required", path)
	}
	if cfg.ServoBaudrate == 0 {
		cfg.ServoBaudrate = 115200
	}
	if cfg.ServoTimeout == 0 {
		cfg.ServoTimeout = time.Second
	}
	if cfg.WSListenAddr == "" {
		cfg.WSListenAddr = ":8080"
	}
	if cfg.Variant == "" {
		cfg.Variant = "esp32"
	}
	if _, ok := variantByName[cfg.Variant]; !ok {
		return errors.Errorf("%s: unknown variant %q", path, cfg.Variant)
	}
	return nil
}

var variantByName = map[string]Variant{
	"esp32":      VariantESP32,
	"esp32_mini": VariantESP32Mini,
	"yertle":     VariantYertle,
}

// LoadControllerConfig reads and validates a JSON config file.
func LoadControllerConfig(path string) (*ControllerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newCodeError(KindConfigInvalid, err, "read config file")
	}
	var cfg ControllerConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, newCodeError(KindConfigInvalid, err, "parse config file")
	}
	if err := cfg.Validate(path); err != nil {
		return nil, newCodeError(KindConfigInvalid, err, "validate config file")
	}
	return &cfg, nil
}

// calibrationFileFormat is a stable on-disk shape independent of the
// in-memory ServoCalibration array layout, so field reordering in code
// never breaks old files.
type calibrationFileFormat struct {
	Direction   [12]float64 `json:"direction"`
	CenterAngle [12]float64 `json:"center_angle"`
	CenterPWM   [12]float64 `json:"center_pwm"`
	Conversion  [12]float64 `json:"conversion"`
}

// LoadCalibration loads ServoCalibration from file. It returns the
// identity default plus false if cfg names no file; if the named file
// cannot be read or parsed, it returns the identity default plus false
// and writes that default back to the file (a failed write is logged).
func (cfg *ControllerConfig) LoadCalibration() (ServoCalibration, bool) {
	if cfg.CalibrationFile == "" {
		if cfg.Logger != nil {
			cfg.Logger.Debug("no calibration file specified, using identity calibration")
		}
		return DefaultCalibration(), false
	}

	fallback := func(msg string, err error) (ServoCalibration, bool) {
		if cfg.Logger != nil {
			cfg.Logger.Warnw(msg, "path", cfg.CalibrationFile, "error", err)
		}
		def := DefaultCalibration()
		if werr := SaveCalibration(cfg.CalibrationFile, def); werr != nil && cfg.Logger != nil {
			cfg.Logger.Warnw("failed to write default calibration back",
				"path", cfg.CalibrationFile, "error", werr)
		}
		return def, false
	}

	data, err := os.ReadFile(cfg.CalibrationFile)
	if err != nil {
		return fallback("failed to read calibration file, using identity calibration", err)
	}

	var file calibrationFileFormat
	if err := json.Unmarshal(data, &file); err != nil {
		return fallback("failed to parse calibration file, using identity calibration", err)
	}

	return ServoCalibration{
		Direction:   file.Direction,
		CenterAngle: file.CenterAngle,
		CenterPWM:   file.CenterPWM,
		Conversion:  file.Conversion,
	}, true
}

// SaveCalibration writes c to path in calibrationFileFormat.
func SaveCalibration(path string, c ServoCalibration) error {
	file := calibrationFileFormat{
		Direction:   c.Direction,
		CenterAngle: c.CenterAngle,
		CenterPWM:   c.CenterPWM,
		Conversion:  c.Conversion,
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return newCodeError(KindConfigInvalid, err, "marshal calibration")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return newCodeError(KindIoError, err, "write calibration file")
	}
	return nil
}
