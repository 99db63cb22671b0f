package focuser

import (
	"bufio"
	"bytes"
	"encoding/json"
	"time"

	"github.com/munkacsymj/astrosystem/comm"
	"github.com/pkg/errors"
	"github.com/tarm/serial"
)

type jsonRequest struct {
	Req struct {
		Cmd string `json:"cmd"`
		Pos int    `json:"pos,omitempty"`
	} `json:"req"`
}

type jsonResponse struct {
	Res struct {
		OK  bool `json:"ok"`
		Pos int  `json:"pos"`
	} `json:"res"`
}

// JSONSerial drives a newer-generation focuser that speaks
// {"req":{"cmd":...}}/{"res":{...}} JSON envelopes, newline-delimited,
// over a serial connection.
type JSONSerial struct {
	dev comm.RemoteDevice
}

// NewJSONSerial returns a focuser speaking the JSON envelope protocol.
func NewJSONSerial(port string, baud int) *JSONSerial {
	cfg := &serial.Config{Name: port, Baud: baud}
	return &JSONSerial{dev: comm.NewRemoteDevice(port, true, nil, cfg)}
}

func (j *JSONSerial) roundTrip(req jsonRequest) (jsonResponse, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(req); err != nil {
		return jsonResponse{}, errors.Wrap(err, "focuser: encode request")
	}
	raw, err := j.dev.OpenSendRecvClose(bytes.TrimRight(buf.Bytes(), "\n"))
	if err != nil {
		return jsonResponse{}, errors.Wrap(err, "focuser: round trip")
	}
	var resp jsonResponse
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	if scanner.Scan() {
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			return jsonResponse{}, errors.Wrap(err, "focuser: decode response")
		}
	}
	if !resp.Res.OK {
		return jsonResponse{}, errors.New("focuser: device reported not-ok")
	}
	return resp, nil
}

// MoveTo commands an absolute move and polls until the reported position
// matches or idleTimeout elapses.
func (j *JSONSerial) MoveTo(position int) error {
	var req jsonRequest
	req.Req.Cmd = "move"
	req.Req.Pos = position
	if _, err := j.roundTrip(req); err != nil {
		return err
	}
	deadline := time.Now().Add(idleTimeout)
	for {
		pos, err := j.Position()
		if err == nil && pos == position {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.New("focuser: move timed out")
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// Position queries the current position.
func (j *JSONSerial) Position() (int, error) {
	var req jsonRequest
	req.Req.Cmd = "pos"
	resp, err := j.roundTrip(req)
	if err != nil {
		return 0, err
	}
	return resp.Res.Pos, nil
}
