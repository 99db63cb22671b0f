// Package notify implements the cross-process "new image available"
// mailbox: two fixed files (last image filename, consumer PID) guarded by
// an advisory flock, with delivery via SIGUSR1, grounded on
// image_notify.cc's design.
package notify

import (
	"fmt"
	"io/ioutil"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const notifySignal = syscall.SIGUSR1

// Mailbox holds the paths of the three files the protocol uses.
type Mailbox struct {
	PIDFile, FilenameFile, LockFile string
}

// Default returns a Mailbox using the conventional /var/run-style paths
// for this installation.
func Default(runDir string) Mailbox {
	return Mailbox{
		PIDFile:      runDir + "/astrosystem_image_monitor.pid",
		FilenameFile: runDir + "/astrosystem_last_image.filename",
		LockFile:     runDir + "/astrosystem_notification_lock",
	}
}

func (m Mailbox) withLock(exclusive bool, fn func() error) error {
	fd, err := unix.Open(m.LockFile, unix.O_WRONLY|unix.O_CREAT, 0666)
	if err != nil {
		return errors.Wrap(err, "notify: open lock file")
	}
	defer unix.Close(fd)

	how := unix.LOCK_SH
	if exclusive {
		how = unix.LOCK_EX
	}
	if err := unix.Flock(fd, how); err != nil {
		return errors.Wrap(err, "notify: flock")
	}
	defer unix.Flock(fd, unix.LOCK_UN)

	return fn()
}

// RegisterAsConsumer records the calling process's PID as the one to
// signal when a new image appears, and installs a SIGUSR1 handler that
// invokes callback with the current image filename.
func (m Mailbox) RegisterAsConsumer(callback func(filename string)) error {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, notifySignal)
	go func() {
		for range sigc {
			name, err := m.CurrentFilename()
			if err == nil && name != "" {
				callback(name)
			}
		}
	}()

	return m.withLock(true, func() error {
		return ioutil.WriteFile(m.PIDFile, []byte(strconv.Itoa(os.Getpid())+"\n"), 0666)
	})
}

// CurrentFilename reads the last-notified image filename under a shared lock.
func (m Mailbox) CurrentFilename() (string, error) {
	var out string
	err := m.withLock(false, func() error {
		b, err := ioutil.ReadFile(m.FilenameFile)
		if err != nil {
			return err
		}
		out = strings.TrimRight(string(b), "\n")
		return nil
	})
	return out, err
}

// NotifyNewImage writes filename under an exclusive lock and signals the
// registered consumer PID, if any.
func (m Mailbox) NotifyNewImage(filename string) error {
	err := m.withLock(true, func() error {
		return ioutil.WriteFile(m.FilenameFile, []byte(filename), 0666)
	})
	if err != nil {
		return errors.Wrap(err, "notify: write filename")
	}

	b, err := ioutil.ReadFile(m.PIDFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // no registered consumer yet
		}
		return errors.Wrap(err, "notify: read pid file")
	}
	var pid int
	if _, err := fmt.Sscanf(string(b), "%d", &pid); err != nil {
		return errors.Wrap(err, "notify: parse pid file")
	}
	if err := syscall.Kill(pid, notifySignal); err != nil {
		return errors.Wrap(err, "notify: signal consumer")
	}
	return nil
}
