package verification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// MaxEncodedSize bounds an encoded session. Signing and two rounds of
// base64 roughly double it, and browsers drop cookies over 4KB.
const MaxEncodedSize = 1800

// maxDecodedSize caps how far a cookie value may inflate.
const maxDecodedSize = 64 << 10

// Encode serializes the session for the signed flow cookie as deflated
// JSON. When the result is over MaxEncodedSize, matches are dropped from
// the end of the list until it fits, and s keeps only the matches that were
// stored.
func (s *Session) Encode() ([]byte, error) {
	for {
		b, err := deflateJSON(s)
		if err != nil {
			return nil, fmt.Errorf("encode verification session: %w", err)
		}
		if len(b) <= MaxEncodedSize {
			return b, nil
		}
		if len(s.Matches) == 0 {
			return nil, fmt.Errorf("encode verification session: %d bytes exceeds %d", len(b), MaxEncodedSize)
		}
		s.Matches = s.Matches[:len(s.Matches)-1]
	}
}

func deflateJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, err
	}
	if err := json.NewEncoder(zw).Encode(v); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode restores a session written by Encode. An empty value yields a
// fresh session in the initial state.
func Decode(raw []byte) (*Session, error) {
	if len(raw) == 0 {
		return NewSession(), nil
	}
	zr := flate.NewReader(bytes.NewReader(raw))
	defer zr.Close()

	var s Session
	if err := json.NewDecoder(io.LimitReader(zr, maxDecodedSize)).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode verification session: %w", err)
	}
	switch s.State {
	case StateInitial, StateSelection, StateRefineSearch, StateVerified, StateNotFound:
	default:
		return nil, fmt.Errorf("decode verification session: unknown state %q", s.State)
	}
	if s.Matches == nil {
		s.Matches = []Match{}
	}
	return &s, nil
}
