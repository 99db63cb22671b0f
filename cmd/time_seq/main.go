// Command time_seq is the time-series photometry orchestrator (C6): it
// composes exposures against a running ccd_server, drift guiding and
// meridian-flip handling against a running scope_server, running-focus
// seeding, and notification-driven session termination.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/munkacsymj/astrosystem/internal/drift"
	"github.com/munkacsymj/astrosystem/internal/flatpanel"
	"github.com/munkacsymj/astrosystem/internal/message"
	"github.com/munkacsymj/astrosystem/internal/mountiface"
	"github.com/munkacsymj/astrosystem/internal/notify"
	"github.com/munkacsymj/astrosystem/internal/photometry"
)

func main() {
	ccdAddr := flag.String("ccd", "localhost:6600", "ccd_server address")
	scopeAddr := flag.String("scope", "http://localhost:8080", "scope_server base URL")
	duration := flag.Float64("t", 30.0, "exposure duration, seconds")
	name := flag.String("n", "", "target name, used only for logging")
	logPath := flag.String("l", "", "session log path")
	filter := flag.String("f", "", "filter name")
	profile := flag.String("P", "", "exposure profile name")
	solver := flag.String("solver", "", "external plate-solve binary (empty disables plate-solving)")
	quitAt := flag.String("q", "", "quit time, HH:MM local")
	flipGrace := flag.String("m", "", "meridian-flip grace time, HH:MM local")
	noDrift := flag.Bool("d", false, "disable drift guiding")
	noRunningFocus := flag.Bool("r", false, "disable running-focus seeding")
	autofocus := flag.Bool("a", false, "run one autofocus pass before the first exposure")
	focusOffset := flag.Int("o", 0, "fixed tick offset applied on top of every running-focus move")
	flag.Parse()

	logger := log.New(os.Stderr, "time_seq: ", log.LstdFlags)
	if *name != "" {
		logger.SetPrefix("time_seq[" + *name + "]: ")
	}

	sessionLogPath := *logPath
	if sessionLogPath == "" {
		sessionLogPath = "time_seq_session.jsonl"
	}

	guide := func(decSeconds, raSeconds float64) error {
		body, _ := json.Marshal(struct{ DecSeconds, RASeconds float64 }{decSeconds, raSeconds})
		resp, err := http.Post(*scopeAddr+"/mount/pulse-guide", "application/json", bytes.NewReader(body))
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		return nil
	}

	var guider *drift.Guider
	if !*noDrift {
		guider = drift.NewGuider(guide, logger)
	}

	focus := &photometry.FocusController{}

	var solve photometry.PlateSolve
	if *solver != "" {
		solve = photometry.ExecPlateSolve(*solver)
	}

	session := &photometry.Session{
		Mount:     remoteMount{base: *scopeAddr},
		Guider:    guider,
		Focus:     focus,
		FlatPanel: &flatpanel.MockPanel{},
		Sessions:  photometry.OpenSessionLog(sessionLogPath),
		Solve:     solve,
		Log:       logger,
	}
	if *quitAt != "" {
		session.QuitAt = todayAt(*quitAt, logger)
	}
	if *flipGrace != "" {
		session.FlipGraceAt = todayAt(*flipGrace, logger)
	}

	if *autofocus {
		if pos, err := focus.BestPosition(); err != nil {
			logger.Printf("autofocus pass skipped, no seed samples yet: %v", err)
		} else if err := setFocusPosition(*scopeAddr, pos+*focusOffset); err != nil {
			logger.Printf("autofocus pass move failed: %v", err)
		} else {
			logger.Printf("autofocus pass moved to %d", pos+*focusOffset)
		}
	}

	abort := make(chan struct{}, 1)
	mailbox := notify.Default(os.TempDir())
	if err := mailbox.RegisterAsConsumer(func(filename string) {
		if filename == "abort" {
			select {
			case abort <- struct{}{}:
			default:
			}
		}
	}); err != nil {
		logger.Printf("warning: could not register notification mailbox: %v", err)
	}

	for {
		select {
		case <-abort:
			logger.Print("abort requested via notification mailbox, exiting")
			return
		default:
		}
		if session.ShouldQuit(time.Now()) {
			logger.Print("quit time reached, exiting")
			return
		}
		if needsFlip, err := session.NeedsMeridianFlip(time.Now()); err != nil {
			logger.Printf("meridian flip check failed: %v", err)
		} else if needsFlip {
			logger.Print("performing meridian flip")
			if err := session.PerformMeridianFlip(); err != nil {
				logger.Fatalf("meridian flip failed: %v", err)
			}
		}

		if !*noRunningFocus {
			if pos, err := focus.BestPosition(); err == nil {
				if err := setFocusPosition(*scopeAddr, pos+*focusOffset); err != nil {
					logger.Printf("running focus move failed: %v", err)
				}
			}
		}

		exposureStart := time.Now()
		exposureEnd := exposureStart.Add(time.Duration(*duration * float64(time.Second)))
		if guider != nil {
			if err := guider.ExposureStart(exposureStart); err != nil {
				logger.Printf("guide start pulse failed: %v", err)
			}
			go func() {
				if err := guider.ExposureGuide(exposureEnd); err != nil {
					logger.Printf("in-exposure guiding stopped: %v", err)
				}
			}()
		}

		path, err := requestExposure(*ccdAddr, *duration, *filter, *profile)
		if err != nil {
			logger.Printf("exposure failed: %v", err)
			continue
		}
		logger.Printf("exposure complete: %s", path)
	}
}

func requestExposure(addr string, duration float64, filter, profile string) (string, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	c := message.NewConn(conn)
	var req message.KeywordSet
	req = req.Set("CMD", "EXPOSE")
	req = req.Set("DURATION", strconv.FormatFloat(duration, 'f', -1, 64))
	if filter != "" {
		req = req.Set("FILTER", filter)
	}
	if profile != "" {
		req = req.Set("PROFILE", profile)
	}
	reply, err := c.SendCommand(req)
	if err != nil {
		return "", err
	}
	if msg, ok := reply.Get("ERROR"); ok {
		return "", errors.New(msg)
	}
	path, _ := reply.Get("IMAGE")
	return path, nil
}

func setFocusPosition(scopeAddr string, position int) error {
	body, _ := json.Marshal(struct{ Position int }{position})
	resp, err := http.Post(scopeAddr+"/focuser/position", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

func todayAt(hhmm string, logger *log.Logger) time.Time {
	var h, m int
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &h, &m); err != nil {
		logger.Fatalf("bad HH:MM %q: %v", hhmm, err)
	}
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), h, m, 0, 0, now.Location())
}

// remoteMount adapts scope_server's HTTP surface to the mountiface.Mount
// interface for the subset of operations the orchestrator needs.
type remoteMount struct {
	base string
}

func (r remoteMount) GotoJ2000(p mountiface.Pointing) error {
	body, _ := json.Marshal(p)
	resp, err := http.Post(r.base+"/mount/goto", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

func (r remoteMount) WaitForStop(timeout time.Duration) error {
	return nil
}

func (r remoteMount) Sync(p mountiface.Pointing) error {
	return nil
}

func (r remoteMount) PulseGuide(decSeconds, raSeconds float64) error {
	body, _ := json.Marshal(struct{ DecSeconds, RASeconds float64 }{decSeconds, raSeconds})
	resp, err := http.Post(r.base+"/mount/pulse-guide", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

func (r remoteMount) Park() error   { return nil }
func (r remoteMount) Unpark() error { return nil }

func (r remoteMount) CurrentPointing() (mountiface.Pointing, error) {
	resp, err := http.Get(r.base + "/mount/pointing")
	if err != nil {
		return mountiface.Pointing{}, err
	}
	defer resp.Body.Close()
	var p mountiface.Pointing
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return mountiface.Pointing{}, err
	}
	return p, nil
}

func (r remoteMount) LocalSiderealTimeHours() (float64, error) { return 0, nil }
func (r remoteMount) ControlTracking(on bool) error            { return nil }
func (r remoteMount) MeridianFlip() error                      { return nil }
func (r remoteMount) OnWestSideOfPier() (bool, error)          { return true, nil }
