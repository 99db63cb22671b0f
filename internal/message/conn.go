package message

import (
	"bufio"
	"io"
	"sync"

	"github.com/pkg/errors"
)

// Conn wraps a stream connection (TCP or otherwise) with the frame codec
// and request/reply correlation by unique ID, mirroring the teacher's
// comm.RemoteDevice send/receive idiom but operating on framed messages
// instead of terminator-delimited ASCII lines.
type Conn struct {
	mu      sync.Mutex
	rw      io.ReadWriter
	r       *bufio.Reader
	ids     IDCounter
}

// NewConn wraps rw for framed request/reply traffic.
func NewConn(rw io.ReadWriter) *Conn {
	return &Conn{rw: rw, r: bufio.NewReader(rw)}
}

// SendCommand encodes kv, sends it under a fresh unique ID, and waits for
// the matching reply, discarding any frames whose ID doesn't match (the
// protocol allows asynchronous status pushes to interleave with replies).
func (c *Conn) SendCommand(kv KeywordSet) (KeywordSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.ids.Next()
	if err := WriteFrame(c.rw, Frame{ID: id, Payload: Encode(kv)}); err != nil {
		return nil, errors.Wrap(err, "message: send command")
	}
	for {
		f, err := ReadFrame(c.r)
		if err != nil {
			return nil, errors.Wrap(err, "message: read reply")
		}
		if f.ID != id {
			continue
		}
		return Decode(f.Payload)
	}
}

// Close closes the underlying connection if it implements io.Closer.
func (c *Conn) Close() error {
	if cl, ok := c.rw.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}
