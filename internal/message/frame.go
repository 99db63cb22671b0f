// Package message implements the camera-server wire protocol: a
// length-prefixed binary frame carrying a keyword/value command or reply
// body, correlated by a wrapping one-byte unique ID.
package message

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const magic byte = 0x43 // "C"

// ErrBadMagic is returned when a frame's leading magic number does not
// match, indicating the stream is desynchronized or not this protocol.
var ErrBadMagic = errors.New("message: bad frame magic")

// Frame is the length-prefixed envelope: a 1-byte magic, the size of
// everything after it (id+payload) as a 4-byte LE count, a 1-byte unique ID
// used to correlate replies to requests, then the raw payload.
type Frame struct {
	ID      byte
	Payload []byte
}

// WriteFrame serializes f to w as [magic byte][size uint32 LE][id byte][payload],
// where size counts the id byte plus len(payload).
func WriteFrame(w io.Writer, f Frame) error {
	var hdr [6]byte
	hdr[0] = magic
	binary.LittleEndian.PutUint32(hdr[1:5], uint32(len(f.Payload)+1))
	hdr[5] = f.ID
	if _, err := w.Write(hdr[:]); err != nil {
		return errors.Wrap(err, "message: write header")
	}
	if _, err := w.Write(f.Payload); err != nil {
		return errors.Wrap(err, "message: write payload")
	}
	return nil
}

// ReadFrame reads one Frame from r. A magic mismatch is treated as fatal
// for the connection: the protocol has no resync strategy, matching the
// original implementation's behavior of dropping the connection outright.
func ReadFrame(r *bufio.Reader) (Frame, error) {
	var hdr [6]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Frame{}, errors.Wrap(err, "message: read header")
	}
	if hdr[0] != magic {
		return Frame{}, ErrBadMagic
	}
	size := binary.LittleEndian.Uint32(hdr[1:5])
	if size == 0 {
		return Frame{}, errors.New("message: frame size must include the id byte")
	}
	id := hdr[5]
	payload := make([]byte, size-1)
	if len(payload) > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, errors.Wrap(err, "message: read payload")
		}
	}
	return Frame{ID: id, Payload: payload}, nil
}

// IDCounter hands out wrapping 1-byte unique IDs for outgoing commands,
// mirroring the original protocol's mod-256 request counter.
type IDCounter struct {
	next byte
}

// Next returns the next unique ID and advances the counter, wrapping at 256.
func (c *IDCounter) Next() byte {
	id := c.next
	c.next++
	return id
}
