package spotmicro

import (
	"os"
	"path/filepath"
	"strings"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"
)

// DiscoverServoPort finds the most likely serial port for the onboard
// PWM driver chip, adapted from discovery.go's enumerate-then-filter
// scan: same platform-specific port-name patterns, but no servo-ping
// validation phase, since this driver's wire protocol (servo_protocol.go)
// is send-only and defines no read response to ping against.
func DiscoverServoPort(logger *zap.SugaredLogger) (string, error) {
	all := enumerateSerialPorts()
	logger.Debugw("enumerated serial ports", "count", len(all))

	candidates := filterCandidatePorts(all)
	logger.Debugw("filtered candidate ports", "count", len(candidates), "ports", candidates)

	switch len(candidates) {
	case 0:
		return "", newCodeError(KindIoError, nil, "no candidate serial ports found")
	case 1:
		return candidates[0], nil
	default:
		logger.Warnw("multiple candidate serial ports found, picking the first", "ports", candidates)
		return candidates[0], nil
	}
}

func filterCandidatePorts(ports []string) []string {
	var candidates []string
	for _, port := range ports {
		if isCandidatePort(port) {
			candidates = append(candidates, port)
		}
	}
	return candidates
}

// isCandidatePort matches the USB-serial naming patterns a servo link
// shows up under on Linux, macOS and Windows.
func isCandidatePort(port string) bool {
	if strings.HasPrefix(port, "/dev/ttyUSB") || strings.HasPrefix(port, "/dev/ttyACM") {
		return true
	}
	if strings.HasPrefix(port, "/dev/tty.usbmodem") || strings.HasPrefix(port, "/dev/tty.usbserial") ||
		strings.HasPrefix(port, "/dev/cu.usbmodem") || strings.HasPrefix(port, "/dev/cu.usbserial") {
		return true
	}
	if strings.HasPrefix(port, "COM") {
		return true
	}
	return false
}

// extractPortSuffix extracts a friendly suffix from a port path, used to
// name port-specific calibration files.
func extractPortSuffix(portPath string) string {
	base := filepath.Base(portPath)
	if strings.HasPrefix(base, "tty.usb") {
		return strings.TrimPrefix(base, "tty.")
	}
	if strings.HasPrefix(base, "cu.usb") {
		return strings.TrimPrefix(base, "cu.")
	}
	return base
}

// FindCalibrationFile searches dataDir for a calibration file, preferring
// one named for portPath's specific port over the shared default.
func FindCalibrationFile(dataDir, portPath string, logger *zap.SugaredLogger) string {
	suffix := extractPortSuffix(portPath)

	portSpecific := filepath.Join(dataDir, suffix+"_calibration.json")
	if _, err := os.Stat(portSpecific); err == nil {
		logger.Debugw("found port-specific calibration file", "file", portSpecific)
		return portSpecific
	}

	defaultFile := filepath.Join(dataDir, "spotmicro_calibration.json")
	if _, err := os.Stat(defaultFile); err == nil {
		logger.Debug("found default calibration file")
		return defaultFile
	}

	logger.Debug("no calibration file found")
	return ""
}

func enumerateSerialPorts() []string {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil
	}
	portPaths := make([]string, 0, len(ports))
	for _, port := range ports {
		portPaths = append(portPaths, port.Name)
	}
	return portPaths
}
