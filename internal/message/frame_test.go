package message

import (
	"bufio"
	"bytes"
	"testing"
)

func TestWriteFrameLayout(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, Frame{ID: 7, Payload: []byte("AB")}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	got := buf.Bytes()
	want := []byte{magic, 3, 0, 0, 0, 7, 'A', 'B'}
	if !bytes.Equal(got, want) {
		t.Errorf("want %v, got %v", want, got)
	}
}

func TestRoundTripFrame(t *testing.T) {
	var buf bytes.Buffer
	f := Frame{ID: 42, Payload: []byte("hello")}
	if err := WriteFrame(&buf, f); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	got, err := ReadFrame(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got.ID != f.ID || !bytes.Equal(got.Payload, f.Payload) {
		t.Errorf("want %+v, got %+v", f, got)
	}
}

func TestRoundTripEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	f := Frame{ID: 1}
	if err := WriteFrame(&buf, f); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	got, err := ReadFrame(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got.ID != 1 || len(got.Payload) != 0 {
		t.Errorf("want empty payload id 1, got %+v", got)
	}
}

func TestReadFrameBadMagic(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0xFF, 1, 0, 0, 0, 1})
	if _, err := ReadFrame(bufio.NewReader(buf)); err != ErrBadMagic {
		t.Errorf("want ErrBadMagic, got %v", err)
	}
}
