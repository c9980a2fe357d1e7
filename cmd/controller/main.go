// Command controller is the onboard composition root: it loads
// configuration, opens the servo link, wires the event bus to the gait
// and motion engine, and serves the WebSocket adapter over HTTP.
package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"spotmicro"
)

func main() {
	if err := realMain(); err != nil {
		panic(err)
	}
}

func realMain() error {
	configPath := flag.String("config", "controller.json", "path to controller config file")
	flag.Parse()

	zlog, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer zlog.Sync()
	logger := zlog.Sugar()

	cfg, err := spotmicro.LoadControllerConfig(*configPath)
	if err != nil {
		logger.Warnw("failed to load config file, attempting discovery", "path", *configPath, "error", err)
		cfg = &spotmicro.ControllerConfig{}
	}
	cfg.Logger = logger

	if cfg.ServoPort == "" {
		port, err := spotmicro.DiscoverServoPort(logger)
		if err != nil {
			return err
		}
		cfg.ServoPort = port
	}
	if err := cfg.Validate(*configPath); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := spotmicro.NewServoDriverRegistry()
	driver, err := registry.Acquire(cfg.ServoPort, cfg.ServoBaudrate, logger)
	if err != nil {
		return err
	}
	defer registry.Release(cfg.ServoPort)

	calib, fromFile := cfg.LoadCalibration()
	driver.SetCalibration(calib)
	logger.Infow("calibration loaded", "from_file", fromFile)
	if err := driver.Activate(); err != nil {
		return err
	}
	defer driver.Deactivate()

	var variant spotmicro.Variant
	switch cfg.Variant {
	case "esp32_mini":
		variant = spotmicro.VariantESP32Mini
	case "yertle":
		variant = spotmicro.VariantYertle
	default:
		variant = spotmicro.VariantESP32
	}

	bus := spotmicro.NewEventBus()
	defer bus.Close()

	kin := spotmicro.NewKinematics(variant)
	motion := spotmicro.NewMotionEngine(bus, kin, logger)
	defer motion.Close()

	anglesSub := spotmicro.Subscribe(bus, spotmicro.TopicMotionAngles, 0, spotmicro.Latest,
		func(msgs []spotmicro.MotionAnglesMsg) {
			if len(msgs) == 0 {
				return
			}
			driver.SetAngles(msgs[len(msgs)-1].Angles)
		})
	defer anglesSub.Unsubscribe()

	ws := spotmicro.NewWSAdapter(bus, logger)
	defer ws.Close()

	mux := http.NewServeMux()
	mux.Handle("/ws", ws)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	server := &http.Server{Addr: cfg.WSListenAddr, Handler: mux}

	const servoTickPeriod = time.Second / 50

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		motion.Run(gctx)
		return nil
	})
	g.Go(func() error {
		spotmicro.NewTicker(servoTickPeriod, func(dt time.Duration) {
			if err := driver.Tick(dt); err != nil {
				logger.Warnw("servo tick failed", "error", err)
			}
		}).Run(gctx)
		return nil
	})
	g.Go(func() error {
		errCh := make(chan error, 1)
		go func() { errCh <- server.ListenAndServe() }()
		select {
		case <-gctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case err := <-errCh:
			if err == http.ErrServerClosed {
				return nil
			}
			return err
		}
	})

	logger.Infow("controller started", "ws_addr", cfg.WSListenAddr, "servo_port", cfg.ServoPort, "variant", cfg.Variant)
	return g.Wait()
}
