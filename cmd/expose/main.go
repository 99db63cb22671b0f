// Command expose requests a single exposure from a running ccd_server.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/theckman/yacspin"

	"github.com/munkacsymj/astrosystem/internal/message"
)

func main() {
	addr := flag.String("server", "localhost:6600", "ccd_server address")
	seconds := flag.Float64("t", 1.0, "exposure duration, seconds")
	output := flag.String("o", "", "output FITS path, or \"-\" for in-memory delivery")
	filter := flag.String("f", "", "filter name")
	bin := flag.Int("B", 1, "binning factor")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		log.Fatalf("expose: connect to %s: %v", *addr, err)
	}
	defer conn.Close()

	c := message.NewConn(conn)
	var req message.KeywordSet
	req = req.Set("CMD", "EXPOSE")
	if *filter != "" {
		req = req.Set("FILTER", *filter)
	}
	req = req.Set("DURATION", strconv.FormatFloat(*seconds, 'f', -1, 64))
	req = req.Set("BIN", strconv.Itoa(*bin))
	if *output != "" {
		req = req.Set("IMAGE", *output)
	}

	spinner, spinErr := yacspin.New(yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[9],
		Suffix:          " exposing",
		SuffixAutoColon: true,
		Message:         fmt.Sprintf("%.1fs", *seconds),
	})
	if spinErr == nil {
		spinner.Start()
	}

	reply, err := c.SendCommand(req)

	if spinErr == nil {
		spinner.Stop()
	}
	if err != nil {
		color.Red("expose: command failed: %v", err)
		os.Exit(1)
	}
	if msg, ok := reply.Get("ERROR"); ok {
		color.Red("expose: server reported error: %s", msg)
		os.Exit(1)
	}
	color.Green("expose: complete")
	for _, kv := range reply {
		fmt.Printf("%s=%s\n", kv.Key, kv.Value)
	}
}
