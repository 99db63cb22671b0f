package focuser

import (
	"sync"
	"time"

	"github.com/munkacsymj/astrosystem/comm"
	"github.com/pkg/errors"
	"github.com/tarm/serial"
)

// Nibble message types, packed into the high nibble of each frame byte.
const (
	msgMove  byte = 0x10
	msgQuery byte = 0x20
	msgAck   byte = 0x30
	msgEOM   byte = 0xF0
)

// NibbleSerial drives a focuser over a serial link using a nibble-prefixed
// frame: [MSGTYPE|SEQ nibble][4 bytes big-endian position][EOM]. Each
// request is a synchronous OpenSendRecvClose exchange on the caller's
// goroutine; there is no background reader goroutine, and replies are not
// queued between requests.
type NibbleSerial struct {
	dev comm.RemoteDevice

	mu  sync.Mutex
	seq byte
}

// NewNibbleSerial returns a focuser speaking the nibble-framed protocol.
func NewNibbleSerial(port string, baud int) *NibbleSerial {
	cfg := &serial.Config{Name: port, Baud: baud}
	return &NibbleSerial{dev: comm.NewRemoteDevice(port, true, nil, cfg)}
}

func (n *NibbleSerial) frame(msgType byte, value int32) []byte {
	n.mu.Lock()
	seq := n.seq
	n.seq = (n.seq + 1) & 0x0F
	n.mu.Unlock()

	buf := make([]byte, 6)
	buf[0] = msgType | seq
	buf[1] = byte(value >> 24)
	buf[2] = byte(value >> 16)
	buf[3] = byte(value >> 8)
	buf[4] = byte(value)
	buf[5] = msgEOM
	return buf
}

func parseFrame(resp []byte) (msgType byte, value int32, err error) {
	if len(resp) < 6 || resp[5] != msgEOM {
		return 0, 0, errors.New("focuser: malformed nibble frame")
	}
	msgType = resp[0] & 0xF0
	value = int32(resp[1])<<24 | int32(resp[2])<<16 | int32(resp[3])<<8 | int32(resp[4])
	return msgType, value, nil
}

// MoveTo commands an absolute move and polls until the focuser acks at the
// target position or idleTimeout elapses.
func (n *NibbleSerial) MoveTo(position int) error {
	req := n.frame(msgMove, int32(position))
	if _, err := n.dev.OpenSendRecvClose(req); err != nil {
		return errors.Wrap(err, "focuser: move command")
	}
	deadline := time.Now().Add(idleTimeout)
	for {
		pos, err := n.Position()
		if err == nil && pos == position {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.New("focuser: move timed out")
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// Position queries the current focuser position.
func (n *NibbleSerial) Position() (int, error) {
	req := n.frame(msgQuery, 0)
	resp, err := n.dev.OpenSendRecvClose(req)
	if err != nil {
		return 0, errors.Wrap(err, "focuser: position query")
	}
	_, value, err := parseFrame(resp)
	if err != nil {
		return 0, err
	}
	return int(value), nil
}
