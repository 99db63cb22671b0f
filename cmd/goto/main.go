// Command goto slews the mount to a J2000 RA/Dec via a running scope_server.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/pkg/errors"

	"github.com/munkacsymj/astrosystem/internal/mountiface"
)

func main() {
	addr := flag.String("server", "http://localhost:8080", "scope_server base URL")
	name := flag.String("n", "", "named target (looked up in the local catalog)")
	flag.Parse()

	var target mountiface.Pointing
	if *name != "" {
		p, err := lookupCatalog(*name)
		if err != nil {
			log.Fatalf("goto: %v", err)
		}
		target = p
	} else {
		args := flag.Args()
		if len(args) != 2 {
			log.Fatal("goto: usage: goto -n NAME | RA DEC")
		}
		ra, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			log.Fatalf("goto: bad RA %q: %v", args[0], err)
		}
		dec, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			log.Fatalf("goto: bad Dec %q: %v", args[1], err)
		}
		target = mountiface.Pointing{RAHours: ra, DecDeg: dec}
	}

	body, err := json.Marshal(target)
	if err != nil {
		log.Fatalf("goto: encode target: %v", err)
	}
	resp, err := http.Post(*addr+"/mount/goto", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("goto: request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("goto: server returned %s", resp.Status)
	}
	fmt.Printf("goto: slewing to RA=%.4fh Dec=%.4f deg\n", target.RAHours, target.DecDeg)
}

// lookupCatalog is a placeholder for the named-target catalog this repo
// does not implement; callers should pass explicit RA/Dec until one exists.
func lookupCatalog(name string) (mountiface.Pointing, error) {
	return mountiface.Pointing{}, errors.Errorf("goto: no catalog configured, pass RA DEC explicitly (got name %q)", name)
}
