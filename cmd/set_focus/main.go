// Command set_focus drives the focuser to an absolute or relative tick
// position via a running scope_server, or reports its current position.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/munkacsymj/astrosystem/temperature"
)

func main() {
	addr := flag.String("server", "http://localhost:8080", "scope_server base URL")
	toTick := flag.Int("t", 0, "move to absolute tick position")
	byTick := flag.Int("a", 0, "move by a relative tick offset")
	home := flag.Bool("h", false, "report current position without moving")
	unit := flag.String("F", "", "report ambient temperature in C or F alongside position")
	flag.Parse()

	if *home {
		pos, err := currentPosition(*addr)
		if err != nil {
			log.Fatalf("set_focus: %v", err)
		}
		fmt.Printf("set_focus: position=%d%s\n", pos, temperatureSuffix(*addr, *unit))
		return
	}

	target := *toTick
	if *byTick != 0 {
		cur, err := currentPosition(*addr)
		if err != nil {
			log.Fatalf("set_focus: %v", err)
		}
		target = cur + *byTick
	}

	if err := moveTo(*addr, target); err != nil {
		log.Fatalf("set_focus: %v", err)
	}
	fmt.Printf("set_focus: moved to %d%s\n", target, temperatureSuffix(*addr, *unit))
}

// temperatureSuffix fetches the ambient reading and formats it in the
// requested unit ("C" or "F", case-insensitive); empty unit reports nothing.
func temperatureSuffix(server, unit string) string {
	if unit == "" {
		return ""
	}
	resp, err := http.Get(server + "/ambient")
	if err != nil {
		return fmt.Sprintf(" (ambient unavailable: %v)", err)
	}
	defer resp.Body.Close()
	var reading struct{ TempC, HumidityPct, PressureHPa float64 }
	if err := json.NewDecoder(resp.Body).Decode(&reading); err != nil {
		return fmt.Sprintf(" (ambient unavailable: %v)", err)
	}
	switch strings.ToUpper(unit) {
	case "F":
		return fmt.Sprintf(" ambient=%.1fF", float64(temperature.C2F(temperature.Celsius(reading.TempC))))
	default:
		return fmt.Sprintf(" ambient=%.1fC", reading.TempC)
	}
}

func currentPosition(server string) (int, error) {
	resp, err := http.Get(server + "/focuser/position")
	if err != nil {
		return 0, errors.Wrap(err, "read position")
	}
	defer resp.Body.Close()
	var out struct{ Position int }
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, errors.Wrap(err, "decode position")
	}
	return out.Position, nil
}

func moveTo(server string, position int) error {
	body, _ := json.Marshal(struct{ Position int }{position})
	resp, err := http.Post(server+"/focuser/position", "application/json", bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "move request")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("server returned %s", resp.Status)
	}
	return nil
}
