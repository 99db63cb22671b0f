// Command scope_server runs the mount/focuser/ambient/flat-panel daemon:
// it exposes the telescope's slow-moving devices over HTTP using goji,
// matching the router generation the original mount control code used.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"strconv"

	"goji.io"
	"goji.io/pat"

	"github.com/munkacsymj/astrosystem/internal/ambient"
	"github.com/munkacsymj/astrosystem/internal/config"
	"github.com/munkacsymj/astrosystem/internal/flatpanel"
	"github.com/munkacsymj/astrosystem/internal/focuser"
	"github.com/munkacsymj/astrosystem/internal/mountiface"
	"github.com/munkacsymj/astrosystem/server/middleware/locker"
)

func main() {
	cfgPath := flag.String("config", "/usr/local/etc/scope_server.yaml", "path to daemon config")
	mock := flag.Bool("mock", false, "use in-memory mock devices instead of real hardware")
	flag.Parse()

	logger := log.New(os.Stderr, "scope_server: ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatalf("loading config: %v", err)
	}

	var mount mountiface.Mount
	var focus focuser.Focuser
	var sensor ambient.Sensor
	var panel flatpanel.Panel

	if *mock {
		mount = mountiface.NewMockMount()
		focus = focuser.NewMockFocuser(5000)
		sensor = &ambient.MockSensor{}
		panel = &flatpanel.MockPanel{}
	} else {
		mount = mountiface.New(cfg.Mount.Addr)
		focus = focuser.NewJSONSerial(cfg.Focuser.Addr, cfg.Focuser.Baud)
		sensor = ambient.New(cfg.Ambient.Addr, cfg.Ambient.Serial)
		panel = flatpanel.New(cfg.FlatPanel.Addr)
	}

	root := goji.NewMux()
	mountLock := locker.New()
	mountLock.DoNotProtect = append(mountLock.DoNotProtect, "pointing", "pulse-guide")
	root.Use(mountLock.Check)

	root.HandleFunc(pat.Get("/lock"), mountLock.HTTPGet)
	root.HandleFunc(pat.Post("/lock"), mountLock.HTTPSet)

	root.HandleFunc(pat.Get("/mount/pointing"), func(w http.ResponseWriter, r *http.Request) {
		p, err := mount.CurrentPointing()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(p)
	})
	root.HandleFunc(pat.Post("/mount/goto"), func(w http.ResponseWriter, r *http.Request) {
		var target mountiface.Pointing
		if err := json.NewDecoder(r.Body).Decode(&target); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := mountLock.Guard(func() error {
			if err := mount.GotoJ2000(target); err != nil {
				return err
			}
			return mount.WaitForStop(0)
		}); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	root.HandleFunc(pat.Post("/mount/pulse-guide"), func(w http.ResponseWriter, r *http.Request) {
		var req struct{ DecSeconds, RASeconds float64 }
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := mount.PulseGuide(req.DecSeconds, req.RASeconds); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	root.HandleFunc(pat.Get("/focuser/position"), func(w http.ResponseWriter, r *http.Request) {
		pos, err := focus.Position()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]int{"position": pos})
	})
	root.HandleFunc(pat.Post("/focuser/position"), func(w http.ResponseWriter, r *http.Request) {
		var req struct{ Position int }
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := focus.MoveTo(req.Position); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	root.HandleFunc(pat.Get("/ambient"), func(w http.ResponseWriter, r *http.Request) {
		reading, err := sensor.Read()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(reading)
	})
	root.HandleFunc(pat.Post("/flatpanel/on"), func(w http.ResponseWriter, r *http.Request) {
		var req struct{ On bool }
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := panel.SetOn(req.On); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	logger.Printf("listening on :%d", cfg.HTTPPort)
	log.Fatal(http.ListenAndServe(localAddr(cfg.HTTPPort), root))
}

func localAddr(port int) string {
	if port == 0 {
		port = 8080
	}
	return ":" + strconv.Itoa(port)
}
