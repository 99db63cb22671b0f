// Command move nudges the mount by a small angular offset along the
// N/S and E/W axes, either as a direct slew offset or, with -g, as a
// guide-rate pulse.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/munkacsymj/astrosystem/internal/drift"
	"github.com/munkacsymj/astrosystem/internal/mountiface"
)

func main() {
	addr := flag.String("server", "http://localhost:8080", "scope_server base URL")
	guideRate := flag.Bool("g", false, "issue a guide-rate pulse instead of a direct slew offset")
	flag.Parse()

	args := flag.Args()
	if len(args) != 2 {
		log.Fatal("move: usage: move N°N/S E°E/W [-g]")
	}

	nsDeg, nsDir, err := parseOffset(args[0], "NS")
	if err != nil {
		log.Fatalf("move: %v", err)
	}
	ewDeg, ewDir, err := parseOffset(args[1], "EW")
	if err != nil {
		log.Fatalf("move: %v", err)
	}

	decDeg := nsDeg
	if nsDir == "S" {
		decDeg = -decDeg
	}
	raDeg := ewDeg
	if ewDir == "W" {
		raDeg = -raDeg
	}

	if *guideRate {
		decSeconds := decDeg * 3600 / drift.GuideRatePerSecond
		raSeconds := raDeg * 3600 / drift.GuideRatePerSecond
		if err := pulseGuide(*addr, decSeconds, raSeconds); err != nil {
			log.Fatalf("move: %v", err)
		}
		fmt.Printf("move: pulsed dec=%.2fs ra=%.2fs\n", decSeconds, raSeconds)
		return
	}

	if err := slewOffset(*addr, decDeg, raDeg); err != nil {
		log.Fatalf("move: %v", err)
	}
	fmt.Printf("move: slewed by dec=%.4f deg ra=%.4f deg\n", decDeg, raDeg)
}

// parseOffset parses a "<degrees><direction>" token, e.g. "30N" or "1.5W",
// where direction must be one of the two letters in axis ("NS" or "EW").
func parseOffset(tok, axis string) (degrees float64, direction string, err error) {
	tok = strings.Replace(tok, "°", "", -1)
	if len(tok) < 2 {
		return 0, "", errors.Errorf("bad offset %q", tok)
	}
	dir := strings.ToUpper(tok[len(tok)-1:])
	if !strings.Contains(axis, dir) {
		return 0, "", errors.Errorf("offset %q must end in one of %q", tok, axis)
	}
	val, err := strconv.ParseFloat(tok[:len(tok)-1], 64)
	if err != nil {
		return 0, "", errors.Wrapf(err, "bad offset %q", tok)
	}
	return val, dir, nil
}

func pulseGuide(server string, decSeconds, raSeconds float64) error {
	body, _ := json.Marshal(struct{ DecSeconds, RASeconds float64 }{decSeconds, raSeconds})
	resp, err := http.Post(server+"/mount/pulse-guide", "application/json", bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "pulse-guide request")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("server returned %s", resp.Status)
	}
	return nil
}

func slewOffset(server string, decDeg, raDeg float64) error {
	resp, err := http.Get(server + "/mount/pointing")
	if err != nil {
		return errors.Wrap(err, "read current pointing")
	}
	defer resp.Body.Close()
	var cur mountiface.Pointing
	if err := json.NewDecoder(resp.Body).Decode(&cur); err != nil {
		return errors.Wrap(err, "decode current pointing")
	}

	target := mountiface.Pointing{RAHours: cur.RAHours + raDeg/15, DecDeg: cur.DecDeg + decDeg}
	body, _ := json.Marshal(target)
	gotoResp, err := http.Post(server+"/mount/goto", "application/json", bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "goto request")
	}
	defer gotoResp.Body.Close()
	if gotoResp.StatusCode != http.StatusOK {
		return errors.Errorf("server returned %s", gotoResp.Status)
	}
	return nil
}
