package exposure

import (
	"fmt"
	"io/ioutil"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Archive auto-names exposure FITS files in date-stamped subfolders,
// incrementing a per-day counter; the caller writes the files. It is not safe for
// concurrent use from multiple goroutines without external locking,
// matching the single-threaded exposure dispatcher that owns it.
type Archive struct {
	Root   string
	Prefix string

	last     time.Time
	counter  int
	dateFldr string
}

func (a *Archive) updateFolder() {
	now := time.Now()
	y, m, d := now.Date()
	ly, lm, ld := a.last.Date()
	if d == ld && m == lm && y == ly {
		return
	}
	a.dateFldr = fmt.Sprintf("%04d-%02d-%02d", y, m, d)
	a.counter = 0
}

func (a *Archive) dir() (string, error) {
	fldr := path.Join(a.Root, a.dateFldr)
	return fldr, os.MkdirAll(fldr, 0777)
}

// NextPath returns the path the next exposure should be written to and
// advances the counter. The caller is responsible for actually writing
// the file.
func (a *Archive) NextPath() (string, error) {
	a.updateFolder()
	dir, err := a.dir()
	if err != nil {
		return "", errors.Wrap(err, "exposure: create archive dir")
	}
	a.last = time.Now()
	name := fmt.Sprintf("%s%06d.fits", a.Prefix, a.counter)
	a.counter++
	return path.Join(dir, name), nil
}

// Resync scans the current day's folder and resets the counter to one past
// the highest-numbered file present, recovering from a restart without
// overwriting existing files.
func (a *Archive) Resync() {
	a.updateFolder()
	a.last = time.Now()
	dir, err := a.dir()
	if err != nil {
		return
	}
	files, err := ioutil.ReadDir(dir)
	if err != nil {
		return
	}
	max := -1
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".fits") || !strings.HasPrefix(f.Name(), a.Prefix) {
			continue
		}
		bit := strings.TrimPrefix(f.Name(), a.Prefix)
		bit = strings.TrimSuffix(bit, ".fits")
		n, err := strconv.Atoi(bit)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	a.counter = max + 1
}
