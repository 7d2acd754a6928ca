package verification_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"reflect"
	"testing"

	"github.com/dalemusser/civichub/internal/app/system/verification"
)

// voterFileMatches looks like a real multi-record answer: similar names at
// nearby addresses, each with a precinct description.
func voterFileMatches(n int) []verification.Match {
	out := make([]verification.Match, n)
	for i := range out {
		out[i] = verification.Match{
			ID:                     fmt.Sprintf("IL-%09d", 400120+i*37),
			FullName:               fmt.Sprintf("ADA %c LOVELACE", 'A'+i),
			Address:                fmt.Sprintf("%d N ANALYTICAL WAY APT %d", 1200+i*4, i+1),
			City:                   "SPRINGFIELD",
			State:                  "IL",
			ZipCode:                fmt.Sprintf("627%02d", i),
			ConstituentDescription: fmt.Sprintf("Active registered voter, Sangamon County precinct %d, ward %d, since %d", 10+i, i%5+1, 2004+i),
			CongressionalDistrict:  "IL-13",
		}
	}
	return out
}

func TestCodecRoundTrip(t *testing.T) {
	m := verification.New(&stubVerifier{results: [][]verification.Match{oneMatch()}}, true)
	s := verification.NewSession()
	_ = m.Submit(context.Background(), s, validEntry())

	raw, err := s.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	got, err := verification.Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !reflect.DeepEqual(got, s) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, s)
	}

	fresh, err := verification.Decode(nil)
	if err != nil || fresh.State != verification.StateInitial {
		t.Errorf("empty cookie should decode to initial session, got %+v, %v", fresh, err)
	}
	if _, err := verification.Decode([]byte("not deflate")); err == nil {
		t.Error("expected error for corrupt value")
	}

	bogus := verification.NewSession()
	bogus.State = "bogus"
	raw, err = bogus.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if _, err := verification.Decode(raw); err == nil {
		t.Error("expected error for unknown state")
	}
}

func TestEncode_FullMatchListFits(t *testing.T) {
	matches := voterFileMatches(verification.MaxMatches)
	m := verification.New(&stubVerifier{results: [][]verification.Match{matches}}, true)
	s := verification.NewSession()
	if err := m.Submit(context.Background(), s, validEntry()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	raw, err := s.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(raw) > verification.MaxEncodedSize {
		t.Errorf("encoded size = %d, limit %d", len(raw), verification.MaxEncodedSize)
	}
	if len(s.Matches) != verification.MaxMatches {
		t.Errorf("kept %d matches, want %d", len(s.Matches), verification.MaxMatches)
	}
}

func TestEncode_DropsTrailingMatchesToFit(t *testing.T) {
	// Hex noise barely compresses, so ten of these cannot all fit.
	matches := voterFileMatches(verification.MaxMatches)
	for i := range matches {
		var desc string
		sum := sha256.Sum256([]byte(matches[i].ID))
		for len(desc) < 512 {
			desc += hex.EncodeToString(sum[:])
			sum = sha256.Sum256(sum[:])
		}
		matches[i].ConstituentDescription = desc
	}
	s := verification.NewSession()
	s.State = verification.StateSelection
	s.Matches = matches

	raw, err := s.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(raw) > verification.MaxEncodedSize {
		t.Errorf("encoded size = %d, limit %d", len(raw), verification.MaxEncodedSize)
	}
	if n := len(s.Matches); n == 0 || n == verification.MaxMatches {
		t.Fatalf("kept %d matches, want a trimmed non-empty list", n)
	}
	if s.Matches[0].ID != matches[0].ID {
		t.Errorf("first match = %s, want %s", s.Matches[0].ID, matches[0].ID)
	}

	got, err := verification.Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(got.Matches) != len(s.Matches) {
		t.Errorf("decoded %d matches, session holds %d", len(got.Matches), len(s.Matches))
	}
}
