package verification_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/dalemusser/civichub/internal/app/system/verification"
)

// stubVerifier returns canned results in order, one per call.
type stubVerifier struct {
	results [][]verification.Match
	errs    []error
	queries []verification.Query
}

func (s *stubVerifier) Verify(_ context.Context, q verification.Query) ([]verification.Match, error) {
	i := len(s.queries)
	s.queries = append(s.queries, q)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return nil, err
	}
	if i < len(s.results) {
		return s.results[i], nil
	}
	return nil, nil
}

func validEntry() verification.Entry {
	return verification.Entry{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Address:   "12 Analytical Way",
		City:      "Springfield",
		State:     "il",
		ZipCode:   "62704",
	}
}

func oneMatch() []verification.Match {
	return []verification.Match{{
		ID:                     "IL-000123",
		FullName:               "ADA B LOVELACE",
		Address:                "12 ANALYTICAL WAY",
		City:                   "SPRINGFIELD",
		State:                  "IL",
		ZipCode:                "62704",
		ConstituentDescription: "Registered Democrat",
		CongressionalDistrict:  "IL-13",
	}}
}

func TestSubmit_ValidationNamesFields(t *testing.T) {
	m := verification.New(&stubVerifier{}, true)
	s := verification.NewSession()

	err := m.Submit(context.Background(), s, verification.Entry{
		FirstName: "A",
		LastName:  "Lovelace",
		Address:   "short",
		State:     "Illinois",
		ZipCode:   "6270",
	})
	var ve *verification.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := []string{"firstName", "address", "state", "zipCode"}
	if !reflect.DeepEqual(ve.Fields, want) {
		t.Errorf("fields = %v, want %v", ve.Fields, want)
	}
	if s.State != verification.StateInitial {
		t.Errorf("state changed to %q on validation failure", s.State)
	}
}

func TestSubmit_FeatureDisabledVerifiesDirectly(t *testing.T) {
	m := verification.New(nil, false)
	s := verification.NewSession()

	if err := m.Submit(context.Background(), s, validEntry()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if s.State != verification.StateVerified {
		t.Fatalf("state = %q, want verified", s.State)
	}
	if s.Identity == nil || !s.Identity.IsVerified || s.Identity.State != "IL" || s.Identity.Address != "12 Analytical Way" {
		t.Errorf("unexpected identity %+v", s.Identity)
	}
}

func TestFlow_ZeroMatchesThenRefineToVerified(t *testing.T) {
	v := &stubVerifier{results: [][]verification.Match{nil, oneMatch()}}
	m := verification.New(v, true)
	s := verification.NewSession()
	ctx := context.Background()

	if err := m.Submit(ctx, s, validEntry()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if s.State != verification.StateSelection {
		t.Fatalf("state = %q, want selection", s.State)
	}
	if s.Matches == nil || len(s.Matches) != 0 {
		t.Fatalf("expected empty (non-nil) match list, got %v", s.Matches)
	}

	if err := m.NotListed(s); err != nil {
		t.Fatalf("NotListed failed: %v", err)
	}
	if s.State != verification.StateRefineSearch {
		t.Fatalf("state = %q, want refine_search", s.State)
	}

	ref := verification.Refinement{Phone: "(217) 555-0100", DobMonth: "12", DobDay: "10", DobYear: "1985"}
	if err := m.Refine(ctx, s, ref, false); !errors.Is(err, verification.ErrTermsNotAccepted) {
		t.Fatalf("expected ErrTermsNotAccepted, got %v", err)
	}
	if s.State != verification.StateRefineSearch || len(v.queries) != 1 {
		t.Fatal("refine without terms must not call the verifier or change state")
	}

	if err := m.Refine(ctx, s, ref, true); err != nil {
		t.Fatalf("Refine failed: %v", err)
	}
	if s.State != verification.StateVerified {
		t.Fatalf("state = %q, want verified", s.State)
	}
	id := s.Identity
	if id == nil || id.VoterID != "IL-000123" || id.City != "SPRINGFIELD" || id.FirstName != "Ada" || !id.IsVerified {
		t.Errorf("unexpected identity %+v", id)
	}
	if id.CongressionalDistrict != "IL-13" || id.ConstituentDescription != "Registered Democrat" {
		t.Errorf("expected district and description carried, got %+v", id)
	}

	q := v.queries[1]
	if q.Refinement == nil || q.Refinement.Phone != "2175550100" || q.Entry.State != "IL" {
		t.Errorf("refined query = %+v", q)
	}
}

func TestFlow_RefineZeroMatchesIsNotFoundThenReset(t *testing.T) {
	v := &stubVerifier{results: [][]verification.Match{oneMatch(), nil}}
	m := verification.New(v, true)
	s := verification.NewSession()
	ctx := context.Background()

	if err := m.Submit(ctx, s, validEntry()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := m.NotListed(s); err != nil {
		t.Fatalf("NotListed failed: %v", err)
	}
	if err := m.Refine(ctx, s, verification.Refinement{VoterID: "X1"}, true); err != nil {
		t.Fatalf("Refine failed: %v", err)
	}
	if s.State != verification.StateNotFound {
		t.Fatalf("state = %q, want not_found", s.State)
	}
	if s.Identity != nil {
		t.Error("not_found must not carry an identity")
	}

	// not_found is terminal apart from reset.
	if err := m.Refine(ctx, s, verification.Refinement{}, true); err == nil {
		t.Error("expected transition error from not_found")
	}

	m.Reset(s)
	if !reflect.DeepEqual(s, verification.NewSession()) {
		t.Errorf("reset session = %+v, want fresh initial session", s)
	}
}

func TestSelect(t *testing.T) {
	v := &stubVerifier{results: [][]verification.Match{oneMatch()}}
	m := verification.New(v, true)
	s := verification.NewSession()

	if err := m.Submit(context.Background(), s, validEntry()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := m.Select(s, "nope"); !errors.Is(err, verification.ErrUnknownMatch) {
		t.Fatalf("expected ErrUnknownMatch, got %v", err)
	}
	if s.State != verification.StateSelection {
		t.Fatal("unknown match must not change state")
	}
	if err := m.Select(s, "IL-000123"); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if s.State != verification.StateVerified || s.SelectedMatchID != "IL-000123" {
		t.Errorf("unexpected session %+v", s)
	}
}

func TestSubmit_VerifierErrorLeavesStateUnchanged(t *testing.T) {
	v := &stubVerifier{errs: []error{fmt.Errorf("connection refused")}}
	m := verification.New(v, true)
	s := verification.NewSession()
	before := *s

	err := m.Submit(context.Background(), s, validEntry())
	if !errors.Is(err, verification.ErrLookupFailed) {
		t.Fatalf("expected ErrLookupFailed, got %v", err)
	}
	if !reflect.DeepEqual(*s, before) {
		t.Errorf("session changed on verifier error: %+v", s)
	}
}

func TestRefine_VerifierErrorLeavesStateUnchanged(t *testing.T) {
	v := &stubVerifier{
		results: [][]verification.Match{oneMatch()},
		errs:    []error{nil, fmt.Errorf("timeout")},
	}
	m := verification.New(v, true)
	s := verification.NewSession()
	ctx := context.Background()

	_ = m.Submit(ctx, s, validEntry())
	_ = m.NotListed(s)
	before := *s
	if err := m.Refine(ctx, s, verification.Refinement{}, true); !errors.Is(err, verification.ErrLookupFailed) {
		t.Fatalf("expected ErrLookupFailed, got %v", err)
	}
	if !reflect.DeepEqual(*s, before) {
		t.Errorf("session changed on verifier error: %+v", s)
	}
}

func TestSubmit_CapsMatches(t *testing.T) {
	many := make([]verification.Match, 25)
	for i := range many {
		many[i] = verification.Match{ID: fmt.Sprintf("m%d", i)}
	}
	m := verification.New(&stubVerifier{results: [][]verification.Match{many}}, true)
	s := verification.NewSession()

	if err := m.Submit(context.Background(), s, validEntry()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if len(s.Matches) != verification.MaxMatches {
		t.Errorf("kept %d matches, want %d", len(s.Matches), verification.MaxMatches)
	}
}

func TestWrongStateTransitions(t *testing.T) {
	m := verification.New(&stubVerifier{}, true)
	s := verification.NewSession()
	var te *verification.TransitionError

	if err := m.Select(s, "x"); !errors.As(err, &te) {
		t.Errorf("Select from initial: expected TransitionError, got %v", err)
	}
	if err := m.NotListed(s); !errors.As(err, &te) {
		t.Errorf("NotListed from initial: expected TransitionError, got %v", err)
	}
	if err := m.Refine(context.Background(), s, verification.Refinement{}, true); !errors.As(err, &te) {
		t.Errorf("Refine from initial: expected TransitionError, got %v", err)
	}
}

func TestValidateRefinement(t *testing.T) {
	err := verification.ValidateRefinement(verification.Refinement{DobMonth: "13", DobDay: "0", DobYear: "85"})
	var ve *verification.ValidationError
	if !errors.As(err, &ve) || len(ve.Fields) != 3 {
		t.Errorf("expected three invalid fields, got %v", err)
	}
	if err := verification.ValidateRefinement(verification.Refinement{}); err != nil {
		t.Errorf("empty refinement should be valid, got %v", err)
	}
}

func TestOutcome(t *testing.T) {
	ctx := context.Background()

	s := verification.NewSession()
	if _, ok := s.Outcome(); ok {
		t.Error("initial session should have no outcome")
	}

	v := &stubVerifier{results: [][]verification.Match{nil, nil}}
	m := verification.New(v, true)
	if err := m.Submit(ctx, s, validEntry()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, ok := s.Outcome(); ok {
		t.Error("selection should have no outcome")
	}
	if err := m.NotListed(s); err != nil {
		t.Fatalf("NotListed: %v", err)
	}
	if err := m.Refine(ctx, s, verification.Refinement{}, true); err != nil {
		t.Fatalf("Refine: %v", err)
	}
	id, ok := s.Outcome()
	if !ok || id.IsVerified || id.FirstName != "Ada" || id.State != "IL" {
		t.Errorf("not_found outcome = %+v, %v", id, ok)
	}

	off := verification.New(nil, false)
	s2 := verification.NewSession()
	if err := off.Submit(ctx, s2, validEntry()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	id, ok = s2.Outcome()
	if !ok || !id.IsVerified {
		t.Errorf("verified outcome = %+v, %v", id, ok)
	}
}
