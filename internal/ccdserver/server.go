// Package ccdserver implements the camera server daemon (C3): it accepts
// wire-protocol connections, runs each exposure through the exposure state
// machine to completion on the goroutine serving the requesting connection
// (blocking calls and sleeps take the place of the original interval-timer
// and signal-handler design), and exposes an HTTP introspection dashboard
// alongside the wire listener.
package ccdserver

import (
	"bufio"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/pkg/errors"

	"github.com/munkacsymj/astrosystem/generichttp"
	"github.com/munkacsymj/astrosystem/generichttp/thermal"
	"github.com/munkacsymj/astrosystem/internal/camera"
	"github.com/munkacsymj/astrosystem/internal/config"
	"github.com/munkacsymj/astrosystem/internal/cooler"
	"github.com/munkacsymj/astrosystem/internal/exposure"
	"github.com/munkacsymj/astrosystem/internal/filterwheel"
	"github.com/munkacsymj/astrosystem/internal/fitsenc"
	"github.com/munkacsymj/astrosystem/internal/message"
	"github.com/munkacsymj/astrosystem/internal/notify"
	"github.com/munkacsymj/astrosystem/server"
)

// ftoa formats a float for a wire-protocol reply keyword value.
func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// OpticalConfig describes static telescope/camera identity and sensor
// geometry the wire protocol itself never reports, needed to fill in FITS
// header cards and the default (zero-subframe) AOI.
type OpticalConfig struct {
	Telescope      string
	Camera         string
	FocalLengthMM  float64
	ArcsecPerPixel float64

	// SensorWidthPx/OverscanPx set the default AOI's right edge (sensor
	// width minus the overscan columns the camera always reads out).
	SensorWidthPx int
	OverscanPx    int
	// OpticBlackEdgePx sets the default AOI's bottom edge: rows beyond it
	// are outside the illuminated field and never requested by default.
	OpticBlackEdgePx int
}

// DefaultWidth and DefaultHeight give the full-frame AOI implied by a
// zero subframe request.
func (o OpticalConfig) DefaultWidth() int  { return o.SensorWidthPx - o.OverscanPx }
func (o OpticalConfig) DefaultHeight() int { return o.OpticBlackEdgePx }

// Deps bundles the hardware façades and shared state the server drives.
type Deps struct {
	Camera      camera.Camera
	Wheel       *filterwheel.Wheel
	FilterTable filterwheel.Table
	Archive     *exposure.Archive
	Mailbox     notify.Mailbox
	HWLock      *sync.Mutex
	Optics      OpticalConfig
	Cooler      *cooler.Worker
	Logger      *log.Logger
}

// Server drives the exposure machine and serves both the wire protocol and
// an HTTP status dashboard.
type Server struct {
	deps Deps

	mu      sync.Mutex
	machine *exposure.Machine

	mainframe    server.Mainframe
	coolerStop   chan struct{}
	listener     net.Listener
	shuttingDown bool
	shutdownOnce sync.Once
}

// New returns a Server ready to ListenAndServe.
func New(deps Deps) *Server {
	return &Server{deps: deps, machine: exposure.NewMachine(), coolerStop: make(chan struct{})}
}

// ListenAndServe accepts wire-protocol connections on tcpAddr until a
// SHUTDOWN command closes the listener, then returns nil. It also serves the
// HTTP dashboard on httpAddr using chi for routing.
func (s *Server) ListenAndServe(tcpAddr, httpAddr string) error {
	ln, err := net.Listen("tcp", tcpAddr)
	if err != nil {
		return errors.Wrap(err, "ccdserver: listen")
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	if s.deps.Cooler != nil {
		go s.deps.Cooler.Run(s.coolerStop)
	}
	go s.serveHTTP(httpAddr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			down := s.shuttingDown
			s.mu.Unlock()
			if down {
				return nil
			}
			return errors.Wrap(err, "ccdserver: accept")
		}
		go s.handleConn(conn)
	}
}

// shutdown closes the cooler loop and the wire listener, causing
// ListenAndServe's Accept loop to return cleanly.
func (s *Server) shutdown() {
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		s.shuttingDown = true
		ln := s.listener
		s.mu.Unlock()
		close(s.coolerStop)
		if ln != nil {
			ln.Close()
		}
	})
}

func (s *Server) serveHTTP(addr string) {
	r := chi.NewRouter()
	sv := &server.Server{URLStem: "/ccd", RouteTable: server.RouteTable{
		"state": func(w http.ResponseWriter, req *http.Request) {
			s.mu.Lock()
			st := s.machine.State().String()
			s.mu.Unlock()
			w.Write([]byte(st))
		},
	}}
	s.mainframe.Add(sv)
	s.mainframe.BindRoutes()
	r.Handle("/*", http.DefaultServeMux)
	if s.deps.Cooler != nil {
		table := generichttp.RouteTable2{}
		thermal.HTTPController(s.deps.Cooler, table)
		for mp, h := range table {
			r.Method(mp.Method, "/cooler"+mp.Path, h)
		}
	}
	if s.deps.Logger != nil {
		s.deps.Logger.Printf("ccdserver: http dashboard listening on %s", addr)
	}
	http.ListenAndServe(addr, r)
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		f, err := message.ReadFrame(r)
		if err != nil {
			if s.deps.Logger != nil {
				s.deps.Logger.Printf("ccdserver: connection closed: %v", err)
			}
			return
		}
		kv, err := message.Decode(f.Payload)
		if err != nil {
			if s.deps.Logger != nil {
				s.deps.Logger.Printf("ccdserver: bad payload: %v", err)
			}
			continue
		}
		reply := s.dispatch(kv)
		if err := message.WriteFrame(conn, message.Frame{ID: f.ID, Payload: message.Encode(reply)}); err != nil {
			return
		}
	}
}

// dispatch runs one command to completion synchronously: the exposure
// machine's integration/readout timing is handled internally by runExposure,
// so each client connection blocks for the duration of its own exposure,
// matching the original protocol's one-command-at-a-time contract.
func (s *Server) dispatch(kv message.KeywordSet) message.KeywordSet {
	cmd, _ := kv.Get("CMD")
	switch cmd {
	case "EXPOSE":
		return s.runExposure(kv)
	case "STATUS":
		return s.runStatus()
	case "COOLER":
		return s.runCooler(kv)
	case "FILTER_CONFIG":
		return s.runFilterConfig(kv)
	case "SHUTDOWN":
		s.shutdown()
		var out message.KeywordSet
		return out.Set("OK", "1")
	default:
		var out message.KeywordSet
		return out.Set("ERROR", "unknown command "+cmd)
	}
}

func (s *Server) runStatus() message.KeywordSet {
	s.mu.Lock()
	state := s.machine.State().String()
	s.mu.Unlock()
	var out message.KeywordSet
	out = out.Set("STATE", state)
	if s.deps.Cooler != nil {
		st := s.deps.Cooler.Status()
		out = out.Set("COOLER_MODE", st.Mode.String())
		out = out.Set("CCD_TEMP", ftoa(st.CCDTemp))
		out = out.Set("AMBIENT_TEMP", ftoa(st.Ambient))
		out = out.Set("SETPOINT", ftoa(st.Setpoint))
		out = out.Set("PWM", ftoa(st.PWM))
	}
	return out
}

// runCooler drives the cooler worker's mode from the wire protocol:
// COOLER_MODE of OFF, MANUAL (with POWER), or SETPOINT (with SETPOINT).
func (s *Server) runCooler(kv message.KeywordSet) message.KeywordSet {
	var out message.KeywordSet
	if s.deps.Cooler == nil {
		return out.Set("ERROR", "ccdserver: no cooler configured")
	}
	mode, _ := kv.Get("COOLER_MODE")
	switch mode {
	case "OFF":
		s.deps.Cooler.SetOff()
	case "MANUAL":
		p, _ := kv.Get("POWER")
		pwm, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return out.Set("ERROR", "ccdserver: bad POWER: "+err.Error())
		}
		s.deps.Cooler.SetManualPWM(pwm)
	case "SETPOINT":
		sp, _ := kv.Get("SETPOINT")
		c, err := strconv.ParseFloat(sp, 64)
		if err != nil {
			return out.Set("ERROR", "ccdserver: bad SETPOINT: "+err.Error())
		}
		s.deps.Cooler.SetTemperatureSetpoint(c)
	default:
		return out.Set("ERROR", "ccdserver: unknown COOLER_MODE "+mode)
	}
	return out.Set("OK", "1")
}

// runFilterConfig reloads the filter table from a config path supplied by
// the client, swapping it in for subsequent EXPOSE commands.
func (s *Server) runFilterConfig(kv message.KeywordSet) message.KeywordSet {
	var out message.KeywordSet
	path, ok := kv.Get("PATH")
	if !ok {
		return out.Set("ERROR", "ccdserver: FILTER_CONFIG missing PATH")
	}
	table, err := config.LoadFilterTable(path)
	if err != nil {
		return out.Set("ERROR", "ccdserver: load filter table: "+err.Error())
	}
	s.mu.Lock()
	s.deps.FilterTable = table
	s.mu.Unlock()
	return out.Set("OK", "1")
}

func (s *Server) runExposure(kv message.KeywordSet) message.KeywordSet {
	var out message.KeywordSet
	s.mu.Lock()
	table := s.deps.FilterTable
	optics := s.deps.Optics
	s.mu.Unlock()
	rec, err := recordFromKeywords(kv, table, optics)
	if err != nil {
		return out.Set("ERROR", err.Error())
	}
	if rec.NeedsFilterChange && s.deps.Wheel != nil {
		if slot, ok := table.SlotFor(rec.Filter); ok && slot == s.deps.Wheel.CurrentSlot() {
			rec.NeedsFilterChange = false
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, actions, err := s.machine.Step(exposure.EventExpose, rec)
	if err != nil {
		return out.Set("ERROR", err.Error())
	}
	if err := s.perform(actions, rec); err != nil {
		return out.Set("ERROR", err.Error())
	}

	for st != exposure.Idle {
		ev := s.nextEvent(st, rec)
		var err error
		st, actions, err = s.machine.Step(ev, rec)
		if err != nil {
			return out.Set("ERROR", err.Error())
		}
		if err := s.perform(actions, rec); err != nil {
			return out.Set("ERROR", err.Error())
		}
	}

	if rec.OutputPath != "" {
		out = out.Set("IMAGE", rec.OutputPath)
	}
	for k, v := range rec.StatusKeywords {
		out = out.Set(k, v)
	}
	return out
}

// nextEvent advances the exposure synchronously, blocking for real time as
// required (integration wait, postwindow settle) — the event-loop/timer
// design is collapsed to straight-line blocking calls here since one
// connection drives exactly one exposure to completion at a time.
func (s *Server) nextEvent(st exposure.State, rec *exposure.Record) exposure.Event {
	switch st {
	case exposure.Requested:
		return exposure.EventFilterStaged
	case exposure.FilterMoving:
		return exposure.EventFilterFinal
	case exposure.ReadyForExposure:
		return exposure.EventIntegrationStart
	case exposure.Exposing:
		time.Sleep(time.Duration(rec.DurationSeconds * float64(time.Second)))
		return exposure.EventRemainingZero
	case exposure.WaitingForEnd:
		return exposure.EventPostwindowExpired
	case exposure.ReadyForReadout:
		return exposure.EventReadoutDone
	default:
		return exposure.EventReadoutDone
	}
}

func (s *Server) perform(actions []exposure.Action, rec *exposure.Record) error {
	for _, a := range actions {
		switch a {
		case exposure.ActionStageFilter, exposure.ActionMoveFilterFinal:
			if s.deps.Wheel == nil {
				continue
			}
			slot, ok := s.deps.FilterTable.SlotFor(rec.Filter)
			if !ok {
				return errors.Errorf("ccdserver: unknown filter %q", rec.Filter)
			}
			if err := s.deps.Wheel.MoveTo(slot, 1); err != nil {
				return errors.Wrap(err, "ccdserver: filter move")
			}
		case exposure.ActionOpenShutter:
			s.deps.HWLock.Lock()
			err := s.deps.Camera.Configure(rec.AOI.Left, rec.AOI.Top, rec.AOI.Width, rec.AOI.Height, rec.Bin.H, rec.Bin.V, rec.GainState)
			if err == nil {
				err = s.deps.Camera.StartExposure(rec.DurationSeconds, true)
			}
			s.deps.HWLock.Unlock()
			if err != nil {
				return errors.Wrap(err, "ccdserver: configure/start exposure")
			}
			rec.IntegrationStarted = time.Now()
		case exposure.ActionStartIntegrationTimer:
			// timing handled by nextEvent's blocking sleep
		case exposure.ActionCloseShutter:
			rec.ShutterClosedAt = time.Now()
		case exposure.ActionStartReadout:
			s.deps.HWLock.Lock()
			raw, err := s.deps.Camera.ReadFrame()
			s.deps.HWLock.Unlock()
			if err != nil {
				return errors.Wrap(err, "ccdserver: read frame")
			}
			if err := s.writeImage(rec, raw); err != nil {
				return err
			}
		case exposure.ActionDeliverFrame:
			// image already written in ActionStartReadout
		}
	}
	return nil
}

func (s *Server) writeImage(rec *exposure.Record, raw []uint16) error {
	binned, w, h, numSaturated, err := fitsenc.BinFrame(raw, rec.AOI.Width, rec.AOI.Height, rec.Bin.H, rec.Bin.V, rec.Format)
	if err != nil {
		return errors.Wrap(err, "ccdserver: bin frame")
	}
	if rec.StatusKeywords == nil {
		rec.StatusKeywords = map[string]string{}
	}
	rec.StatusKeywords["SATURATED"] = itoa(numSaturated)
	frame := fitsenc.Frame{Width: w, Height: h, Format: rec.Format, Pixels: binned, Cards: headerCards(rec, s.deps.Optics)}

	if rec.OutputPath == "-" {
		buf, err := fitsenc.WriteBuffer([]fitsenc.Frame{frame})
		if err != nil {
			return errors.Wrap(err, "ccdserver: encode in-memory fits")
		}
		if rec.StatusKeywords == nil {
			rec.StatusKeywords = map[string]string{}
		}
		rec.StatusKeywords["BYTES"] = itoa(buf.Len())
		return nil
	}

	path, err := s.deps.Archive.NextPath()
	if err != nil {
		return err
	}
	if rec.OutputPath != "" {
		path = rec.OutputPath
	}
	f, err := createFile(path)
	if err != nil {
		return errors.Wrap(err, "ccdserver: create output file")
	}
	defer f.Close()
	if err := fitsenc.Write(f, []fitsenc.Frame{frame}); err != nil {
		return errors.Wrap(err, "ccdserver: write fits")
	}
	rec.OutputPath = path
	return s.deps.Mailbox.NotifyNewImage(path)
}
