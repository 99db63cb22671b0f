package message

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// KeyValue is one keyword/value pair in command or reply order.
type KeyValue struct {
	Key, Value string
}

// KeywordSet is an ordered list of keyword/value pairs, the payload body
// for both camera commands and status replies. Order is preserved on
// encode/decode so logs and wire captures read the same as the original
// protocol.
type KeywordSet []KeyValue

// Get returns the value for the first matching key, and whether it was found.
func (k KeywordSet) Get(key string) (string, bool) {
	for _, kv := range k {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Set appends or replaces the value for key, preserving first-occurrence order.
func (k KeywordSet) Set(key, value string) KeywordSet {
	for i, kv := range k {
		if kv.Key == key {
			k[i].Value = value
			return k
		}
	}
	return append(k, KeyValue{Key: key, Value: value})
}

// Encode renders the set as "\n*K/KEY/NLENV/VALUE/" pairs terminated by "\n*Q",
// the textual keyword/value body carried inside a Frame's Payload.
func Encode(k KeywordSet) []byte {
	var b strings.Builder
	for _, kv := range k {
		fmt.Fprintf(&b, "\n*K/%s/%dV/%s/", kv.Key, len(kv.Value), kv.Value)
	}
	b.WriteString("\n*Q")
	return []byte(b.String())
}

// Decode parses the "\n*K/.../NLENV/.../" ... "\n*Q" textual body produced by Encode.
func Decode(payload []byte) (KeywordSet, error) {
	s := string(payload)
	var out KeywordSet
	for {
		s = strings.TrimPrefix(s, "\n")
		if strings.HasPrefix(s, "*Q") {
			return out, nil
		}
		if !strings.HasPrefix(s, "*K/") {
			return nil, errors.Errorf("message: expected *K/ or *Q, got %q", truncate(s, 16))
		}
		s = s[len("*K/"):]

		keyEnd := strings.IndexByte(s, '/')
		if keyEnd < 0 {
			return nil, errors.New("message: truncated keyword field")
		}
		key := s[:keyEnd]
		s = s[keyEnd+1:]

		lenEnd := strings.IndexByte(s, 'V')
		if lenEnd < 0 {
			return nil, errors.New("message: missing length/V marker")
		}
		n, err := strconv.Atoi(s[:lenEnd])
		if err != nil {
			return nil, errors.Wrap(err, "message: bad value length")
		}
		s = s[lenEnd+1:]
		if !strings.HasPrefix(s, "/") {
			return nil, errors.New("message: missing / before value")
		}
		s = s[1:]
		if len(s) < n+1 || s[n] != '/' {
			return nil, errors.New("message: value length mismatch")
		}
		value := s[:n]
		s = s[n+1:]

		out = append(out, KeyValue{Key: key, Value: value})
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
