// Command ccd_server runs the camera server daemon (C3): it owns the
// camera, filter wheel, and image archive, and drives exposures on behalf
// of wire-protocol clients.
package main

import (
	"flag"
	"log"
	"os"
	"strconv"
	"sync"

	"github.com/google/gousb"

	"github.com/munkacsymj/astrosystem/internal/camera"
	"github.com/munkacsymj/astrosystem/internal/ccdserver"
	"github.com/munkacsymj/astrosystem/internal/config"
	"github.com/munkacsymj/astrosystem/internal/cooler"
	"github.com/munkacsymj/astrosystem/internal/exposure"
	"github.com/munkacsymj/astrosystem/internal/filterwheel"
	"github.com/munkacsymj/astrosystem/internal/notify"
)

func main() {
	cfgPath := flag.String("config", "/usr/local/etc/ccd_server.yaml", "path to daemon config")
	mock := flag.Bool("mock", false, "use an in-memory mock camera instead of real hardware")
	flag.Parse()

	logger := log.New(os.Stderr, "ccd_server: ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatalf("loading config: %v", err)
	}
	table, err := config.LoadFilterTable(cfg.FilterTablePath)
	if err != nil {
		logger.Fatalf("loading filter table: %v", err)
	}

	var cam camera.Camera
	if *mock {
		cam = camera.NewMockCamera()
	} else {
		usb := camera.NewUSBCamera(gousb.ID(0x1234), gousb.ID(0x5678))
		if err := usb.Open(); err != nil {
			logger.Fatalf("opening camera: %v", err)
		}
		cam = usb
	}

	wheel := filterwheel.New(cfg.Filter.Addr, cfg.Filter.Baud)
	if err := wheel.Init(); err != nil {
		logger.Fatalf("initializing filter wheel: %v", err)
	}

	archive := &exposure.Archive{Root: cfg.RunDir, Prefix: "img"}
	archive.Resync()

	hwLock := &sync.Mutex{}
	coolerHW := cooler.NewMockHW(20.0)
	coolerWorker := cooler.NewWorker(coolerHW, coolerHW, hwLock, logger)
	if err := coolerWorker.SetTemperatureSetpoint(-10.0); err != nil {
		logger.Fatalf("setting cooler setpoint: %v", err)
	}

	optics := ccdserver.OpticalConfig{
		Telescope:        cfg.Optics.Telescope,
		Camera:           cfg.Optics.Camera,
		FocalLengthMM:    cfg.Optics.FocalLengthMM,
		ArcsecPerPixel:   cfg.Optics.ArcsecPerPixel,
		SensorWidthPx:    cfg.Optics.SensorWidthPx,
		OverscanPx:       cfg.Optics.OverscanPx,
		OpticBlackEdgePx: cfg.Optics.OpticBlackEdgePx,
	}
	if optics.SensorWidthPx == 0 {
		optics.SensorWidthPx = 6280
		optics.OverscanPx = 24
		optics.OpticBlackEdgePx = 4179
	}

	deps := ccdserver.Deps{
		Camera:      cam,
		Wheel:       wheel,
		FilterTable: table,
		Archive:     archive,
		Mailbox:     notify.Default(cfg.RunDir),
		HWLock:      hwLock,
		Optics:      optics,
		Cooler:      coolerWorker,
		Logger:      logger,
	}

	srv := ccdserver.New(deps)
	logger.Printf("listening: tcp=%s http=%s", localAddr(cfg.TCPPort), localAddr(cfg.HTTPPort))
	if err := srv.ListenAndServe(localAddr(cfg.TCPPort), localAddr(cfg.HTTPPort)); err != nil {
		logger.Fatalf("serve: %v", err)
	}
}

func localAddr(port int) string {
	return ":" + strconv.Itoa(port)
}
