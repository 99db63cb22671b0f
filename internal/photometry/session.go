// Package photometry implements the building blocks of the time-series
// orchestrator (C6): Finder convergence, the running-focus fit, and
// meridian-flip handling; the main photometry loop lives in its caller.
// Grounded on
// original_source/TOOLS/TIME_SEQ/time_seq.cc and finder.cc.
package photometry

import (
	"bufio"
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/munkacsymj/astrosystem/internal/mountiface"
)

// SessionLog persists sync points as JSON lines, a small supplemental
// feature this repo adds beyond the distilled spec: the original tracked
// alignment/sync points in a dedicated file, which spec.md only names in
// its data model without specifying a storage mechanism.
type SessionLog struct {
	path string
}

// OpenSessionLog returns a SessionLog for the JSON-lines file at path; the
// file is created by the first Append.
func OpenSessionLog(path string) *SessionLog {
	return &SessionLog{path: path}
}

// Append records a new sync point.
func (s *SessionLog) Append(sp mountiface.SyncPoint) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrap(err, "photometry: open session log")
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	return enc.Encode(sp)
}

// Load reads all recorded sync points in order.
func (s *SessionLog) Load() ([]mountiface.SyncPoint, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "photometry: open session log")
	}
	defer f.Close()

	var out []mountiface.SyncPoint
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var sp mountiface.SyncPoint
		if err := json.Unmarshal(sc.Bytes(), &sp); err != nil {
			return nil, errors.Wrap(err, "photometry: parse session log line")
		}
		out = append(out, sp)
	}
	return out, sc.Err()
}

// Latest returns the most recent sync point, if any.
func (s *SessionLog) Latest() (mountiface.SyncPoint, bool, error) {
	all, err := s.Load()
	if err != nil || len(all) == 0 {
		return mountiface.SyncPoint{}, false, err
	}
	return all[len(all)-1], true, nil
}
