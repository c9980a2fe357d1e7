// Command spotmicroctl is a debug tool for exercising the servo link
// directly: a ping (one activate packet), torque toggling, a gentle
// move to the rest pose, explicit joint angles and raw PWM writes,
// consolidated into subcommands of one binary instead of a pile of
// disposable package-main files.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"spotmicro"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	zlog, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer zlog.Sync()
	logger := zlog.Sugar()

	var cmdErr error
	switch os.Args[1] {
	case "ping":
		cmdErr = runPing(logger, os.Args[2:])
	case "torque":
		cmdErr = runTorque(logger, os.Args[2:])
	case "rest":
		cmdErr = runRest(logger, os.Args[2:])
	case "angles":
		cmdErr = runAngles(logger, os.Args[2:])
	case "pwm":
		cmdErr = runPWM(logger, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if cmdErr != nil {
		fmt.Fprintln(os.Stderr, cmdErr)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: spotmicroctl <ping|torque|rest|angles|pwm> [flags]")
}

func commonFlags(fs *flag.FlagSet) (port *string, baud *int, calib *string) {
	port = fs.String("port", "", "serial port (auto-discovered if empty)")
	baud = fs.Int("baud", 115200, "serial baudrate")
	calib = fs.String("calibration", "", "calibration JSON file")
	return
}

func openDriver(logger *zap.SugaredLogger, portFlag string, baud int, calibFlag string) (*spotmicro.ServoDriver, error) {
	portName := portFlag
	if portName == "" {
		discovered, err := spotmicro.DiscoverServoPort(logger)
		if err != nil {
			return nil, err
		}
		portName = discovered
	}

	driver, err := spotmicro.OpenServoDriver(portName, baud, logger)
	if err != nil {
		return nil, err
	}

	cfg := &spotmicro.ControllerConfig{CalibrationFile: calibFlag, Logger: logger}
	calib, fromFile := cfg.LoadCalibration()
	driver.SetCalibration(calib)
	logger.Infow("opened servo link", "port", portName, "calibration_from_file", fromFile)
	return driver, nil
}

// runPing opens the link and writes a single keep-alive torque-enable
// packet, the closest thing this send-only protocol has to a ping.
func runPing(logger *zap.SugaredLogger, args []string) error {
	fs := flag.NewFlagSet("ping", flag.ExitOnError)
	port, baud, calib := commonFlags(fs)
	fs.Parse(args)

	driver, err := openDriver(logger, *port, *baud, *calib)
	if err != nil {
		return err
	}
	defer driver.Close()

	if err := driver.Activate(); err != nil {
		return err
	}
	logger.Info("activate packet written to servo link")
	return nil
}

func runTorque(logger *zap.SugaredLogger, args []string) error {
	fs := flag.NewFlagSet("torque", flag.ExitOnError)
	port, baud, calib := commonFlags(fs)
	enable := fs.Bool("enable", true, "enable or disable torque")
	fs.Parse(args)

	driver, err := openDriver(logger, *port, *baud, *calib)
	if err != nil {
		return err
	}
	defer driver.Close()

	if *enable {
		return driver.Activate()
	}
	return driver.Deactivate()
}

// runRest eases the legs toward the kinematics rest pose over a few
// seconds: move very slowly to a known-safe position, generalized from
// a single hardcoded pose to the twelve-joint rest stance.
func runRest(logger *zap.SugaredLogger, args []string) error {
	fs := flag.NewFlagSet("rest", flag.ExitOnError)
	port, baud, calib := commonFlags(fs)
	variantName := fs.String("variant", "esp32", "leg geometry variant")
	seconds := fs.Float64("seconds", 3, "seconds to ease into rest pose")
	fs.Parse(args)

	driver, err := openDriver(logger, *port, *baud, *calib)
	if err != nil {
		return err
	}
	defer driver.Close()

	variant := spotmicro.VariantESP32
	switch *variantName {
	case "esp32_mini":
		variant = spotmicro.VariantESP32Mini
	case "yertle":
		variant = spotmicro.VariantYertle
	}
	kin := spotmicro.NewKinematics(variant)
	gait := spotmicro.NewGaitController(kin)
	gait.SetMode(spotmicro.GaitRest)

	if err := driver.Activate(); err != nil {
		return err
	}

	const tick = 20 * time.Millisecond
	steps := int(*seconds / tick.Seconds())
	for i := 0; i < steps; i++ {
		body := gait.Tick(tick)
		driver.SetAngles(kin.Solve(body))
		if err := driver.Tick(tick); err != nil {
			return err
		}
		time.Sleep(tick)
	}
	logger.Info("eased into rest pose")
	return nil
}

// runAngles sends one explicit twelve-angle pose, read from the command
// line in degrees, useful for isolating a single joint by poking it
// directly.
func runAngles(logger *zap.SugaredLogger, args []string) error {
	fs := flag.NewFlagSet("angles", flag.ExitOnError)
	port, baud, calib := commonFlags(fs)
	var degrees [12]float64
	for i := range degrees {
		fs.Float64Var(&degrees[i], fmt.Sprintf("j%d", i), 0, fmt.Sprintf("joint %d angle in degrees", i))
	}
	fs.Parse(args)

	driver, err := openDriver(logger, *port, *baud, *calib)
	if err != nil {
		return err
	}
	defer driver.Close()

	if err := driver.Activate(); err != nil {
		return err
	}
	driver.SetAngles(degrees)
	for i := 0; i < 50; i++ {
		if err := driver.Tick(20 * time.Millisecond); err != nil {
			return err
		}
		time.Sleep(20 * time.Millisecond)
	}
	logger.Infow("angles applied", "degrees", degrees)
	return nil
}

// runPWM writes one raw PWM count directly to a channel (or every
// channel, with -channel=-1), bypassing calibration and angle smoothing
// entirely. Useful for finding a servo's real travel limits before
// trusting calculatePWM's calibration-derived output.
func runPWM(logger *zap.SugaredLogger, args []string) error {
	fs := flag.NewFlagSet("pwm", flag.ExitOnError)
	port, baud, calib := commonFlags(fs)
	channel := fs.Int("channel", spotmicro.ServoChannelAll, "channel index, or -1 for all channels")
	value := fs.Int("value", 0, "raw PWM count, 0-4096")
	fs.Parse(args)

	driver, err := openDriver(logger, *port, *baud, *calib)
	if err != nil {
		return err
	}
	defer driver.Close()

	if err := driver.Activate(); err != nil {
		return err
	}
	if err := driver.SetPWM(*channel, uint16(*value)); err != nil {
		return err
	}
	logger.Infow("raw pwm applied", "channel", *channel, "value", *value)
	return nil
}
