// Package verification drives the voter-verification flow used by signup
// and poll responses.
//
// The flow moves through these states:
//
//	initial ──Submit──▶ selection ──Select──▶ verified
//	                        │
//	                    NotListed
//	                        ▼
//	                  refine_search ──Refine──▶ verified | not_found
//
// Reset returns any state to initial. A verifier error leaves the session
// exactly as it was so the same step can be retried.
package verification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// State is a step of the flow.
type State string

const (
	StateInitial      State = "initial"
	StateSelection    State = "selection"
	StateRefineSearch State = "refine_search"
	StateVerified     State = "verified"
	StateNotFound     State = "not_found"
)

// MaxMatches caps how many candidate records are kept and shown.
const MaxMatches = 10

// Entry is what the person types on the first screen.
type Entry struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zipCode"`
}

// Refinement carries the optional disambiguating fields of the refine step.
type Refinement struct {
	Phone    string `json:"phone,omitempty"`
	DobMonth string `json:"dobMonth,omitempty"`
	DobDay   string `json:"dobDay,omitempty"`
	DobYear  string `json:"dobYear,omitempty"`
	VoterID  string `json:"voterId,omitempty"`
}

// Match is one candidate voter-file record.
type Match struct {
	ID                     string `json:"id"`
	FullName               string `json:"fullName"`
	Address                string `json:"address"`
	City                   string `json:"city"`
	State                  string `json:"state"`
	ZipCode                string `json:"zipCode"`
	ConstituentDescription string `json:"constituentDescription,omitempty"`
	CongressionalDistrict  string `json:"congressionalDistrict,omitempty"`
}

// Identity is the outcome of a successful verification. It is copied onto
// the user or poll-response record by the caller.
type Identity struct {
	FirstName              string `json:"firstName"`
	LastName               string `json:"lastName"`
	Address                string `json:"address"`
	City                   string `json:"city"`
	State                  string `json:"state"`
	ZipCode                string `json:"zipCode"`
	ConstituentDescription string `json:"constituentDescription,omitempty"`
	CongressionalDistrict  string `json:"congressionalDistrict,omitempty"`
	VoterID                string `json:"voterId,omitempty"`
	IsVerified             bool   `json:"isVerified"`
}

// Query is one voter-file lookup. Refinement is nil on the first search.
type Query struct {
	Entry      Entry
	Refinement *Refinement
}

// Verifier resolves a query against the voter file.
type Verifier interface {
	Verify(ctx context.Context, q Query) ([]Match, error)
}

// Session is the whole client-held state of one flow.
type Session struct {
	State           State       `json:"state"`
	Entry           Entry       `json:"entry"`
	Matches         []Match     `json:"matches"`
	SelectedMatchID string      `json:"selectedMatchId,omitempty"`
	Refinement      *Refinement `json:"refinement,omitempty"`
	TermsAccepted   bool        `json:"termsAccepted"`
	Identity        *Identity   `json:"identity,omitempty"`
}

// NewSession returns a session in the initial state.
func NewSession() *Session {
	return &Session{State: StateInitial, Matches: []Match{}}
}

var (
	// ErrTermsNotAccepted blocks the refine step until terms are accepted.
	ErrTermsNotAccepted = errors.New("terms of service must be accepted")
	// ErrUnknownMatch is returned when Select names a match not on offer.
	ErrUnknownMatch = errors.New("selected match is not in the match list")
	// ErrLookupFailed wraps verifier failures.
	ErrLookupFailed = errors.New("voter lookup failed")
)

// TransitionError reports an operation attempted from the wrong state.
type TransitionError struct {
	Op   string
	From State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s from state %q", e.Op, e.From)
}

// ValidationError names the fields that failed validation.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid fields: " + strings.Join(e.Fields, ", ")
}

// Machine applies transitions. With the feature disabled Submit verifies
// the entry as typed without calling the verifier.
type Machine struct {
	verifier Verifier
	enabled  bool
}

// New returns a Machine. v may be nil when enabled is false.
func New(v Verifier, enabled bool) *Machine {
	return &Machine{verifier: v, enabled: enabled && v != nil}
}

// Enabled reports whether lookups go to the voter file.
func (m *Machine) Enabled() bool { return m.enabled }

// Submit validates the entry and runs the first lookup.
func (m *Machine) Submit(ctx context.Context, s *Session, e Entry) error {
	if s.State != StateInitial {
		return &TransitionError{Op: "submit", From: s.State}
	}
	e = NormalizeEntry(e)
	if err := ValidateEntry(e); err != nil {
		return err
	}

	if !m.enabled {
		*s = Session{
			State:   StateVerified,
			Entry:   e,
			Matches: []Match{},
			Identity: &Identity{
				FirstName:  e.FirstName,
				LastName:   e.LastName,
				Address:    e.Address,
				City:       e.City,
				State:      e.State,
				ZipCode:    e.ZipCode,
				IsVerified: true,
			},
		}
		return nil
	}

	matches, err := m.lookup(ctx, Query{Entry: e})
	if err != nil {
		return err
	}
	*s = Session{State: StateSelection, Entry: e, Matches: matches}
	return nil
}

// Select verifies the session with one of the offered matches.
func (m *Machine) Select(s *Session, matchID string) error {
	if s.State != StateSelection {
		return &TransitionError{Op: "select", From: s.State}
	}
	for _, mt := range s.Matches {
		if mt.ID == matchID {
			s.SelectedMatchID = matchID
			s.Identity = identityFrom(s.Entry, mt)
			s.State = StateVerified
			return nil
		}
	}
	return ErrUnknownMatch
}

// NotListed moves from the match list to the refine step.
func (m *Machine) NotListed(s *Session) error {
	if s.State != StateSelection {
		return &TransitionError{Op: "refine", From: s.State}
	}
	s.SelectedMatchID = ""
	s.State = StateRefineSearch
	return nil
}

// Refine runs the second lookup with the extra fields. The first returned
// match becomes the verified identity; no match ends in not_found.
func (m *Machine) Refine(ctx context.Context, s *Session, ref Refinement, termsAccepted bool) error {
	if s.State != StateRefineSearch {
		return &TransitionError{Op: "refine search", From: s.State}
	}
	if !termsAccepted {
		return ErrTermsNotAccepted
	}
	ref = normalizeRefinement(ref)
	if err := ValidateRefinement(ref); err != nil {
		return err
	}

	var matches []Match
	if m.enabled {
		var err error
		matches, err = m.lookup(ctx, Query{Entry: s.Entry, Refinement: &ref})
		if err != nil {
			return err
		}
	}

	s.Refinement = &ref
	s.TermsAccepted = true
	s.Matches = matches
	if len(matches) == 0 {
		s.Identity = nil
		s.State = StateNotFound
		return nil
	}
	s.SelectedMatchID = matches[0].ID
	s.Identity = identityFrom(s.Entry, matches[0])
	s.State = StateVerified
	return nil
}

// Outcome returns the identity a finished flow resolved. A verified session
// yields its verified identity; not_found yields the typed entry marked
// unverified. Any other state is unfinished and ok is false.
func (s *Session) Outcome() (id Identity, ok bool) {
	switch s.State {
	case StateVerified:
		if s.Identity == nil {
			return Identity{}, false
		}
		return *s.Identity, true
	case StateNotFound:
		return Identity{
			FirstName: s.Entry.FirstName,
			LastName:  s.Entry.LastName,
			Address:   s.Entry.Address,
			City:      s.Entry.City,
			State:     s.Entry.State,
			ZipCode:   s.Entry.ZipCode,
		}, true
	}
	return Identity{}, false
}

// Reset clears every field and returns to initial.
func (m *Machine) Reset(s *Session) {
	*s = *NewSession()
}

func (m *Machine) lookup(ctx context.Context, q Query) ([]Match, error) {
	matches, err := m.verifier.Verify(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	if len(matches) > MaxMatches {
		matches = matches[:MaxMatches]
	}
	if matches == nil {
		matches = []Match{}
	}
	return matches, nil
}

// identityFrom keeps the typed name and takes the rest from the voter file.
func identityFrom(e Entry, mt Match) *Identity {
	return &Identity{
		FirstName:              e.FirstName,
		LastName:               e.LastName,
		Address:                mt.Address,
		City:                   mt.City,
		State:                  mt.State,
		ZipCode:                mt.ZipCode,
		ConstituentDescription: mt.ConstituentDescription,
		CongressionalDistrict:  mt.CongressionalDistrict,
		VoterID:                mt.ID,
		IsVerified:             true,
	}
}

// NormalizeEntry trims every field and upper-cases the state code.
func NormalizeEntry(e Entry) Entry {
	return Entry{
		FirstName: strings.TrimSpace(e.FirstName),
		LastName:  strings.TrimSpace(e.LastName),
		Address:   strings.TrimSpace(e.Address),
		City:      strings.TrimSpace(e.City),
		State:     strings.ToUpper(strings.TrimSpace(e.State)),
		ZipCode:   strings.TrimSpace(e.ZipCode),
	}
}

// ValidateEntry checks the first-screen rules: names of at least two
// characters, an address of at least ten, a two-letter state and a
// five-digit zip.
func ValidateEntry(e Entry) error {
	var bad []string
	if utf8.RuneCountInString(e.FirstName) < 2 {
		bad = append(bad, "firstName")
	}
	if utf8.RuneCountInString(e.LastName) < 2 {
		bad = append(bad, "lastName")
	}
	if utf8.RuneCountInString(e.Address) < 10 {
		bad = append(bad, "address")
	}
	if len(e.State) != 2 || !allOf(e.State, isASCIILetter) {
		bad = append(bad, "state")
	}
	if len(e.ZipCode) != 5 || !allOf(e.ZipCode, isDigit) {
		bad = append(bad, "zipCode")
	}
	if len(bad) > 0 {
		return &ValidationError{Fields: bad}
	}
	return nil
}

func normalizeRefinement(r Refinement) Refinement {
	return Refinement{
		Phone:    digitsOnly(r.Phone),
		DobMonth: strings.TrimSpace(r.DobMonth),
		DobDay:   strings.TrimSpace(r.DobDay),
		DobYear:  strings.TrimSpace(r.DobYear),
		VoterID:  strings.TrimSpace(r.VoterID),
	}
}

// ValidateRefinement checks the optional fields that were supplied.
func ValidateRefinement(r Refinement) error {
	var bad []string
	if r.Phone != "" && len(r.Phone) != 10 {
		bad = append(bad, "phone")
	}
	if r.DobMonth != "" && !inRange(r.DobMonth, 1, 12) {
		bad = append(bad, "dobMonth")
	}
	if r.DobDay != "" && !inRange(r.DobDay, 1, 31) {
		bad = append(bad, "dobDay")
	}
	if r.DobYear != "" && (len(r.DobYear) != 4 || !allOf(r.DobYear, isDigit)) {
		bad = append(bad, "dobYear")
	}
	if len(bad) > 0 {
		return &ValidationError{Fields: bad}
	}
	return nil
}

func inRange(s string, lo, hi int) bool {
	if s == "" || len(s) > 2 || !allOf(s, isDigit) {
		return false
	}
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n >= lo && n <= hi
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, c := range s {
		if isDigit(c) {
			b.WriteRune(c)
		}
	}
	return b.String()
}

func allOf(s string, pred func(rune) bool) bool {
	for _, c := range s {
		if !pred(c) {
			return false
		}
	}
	return true
}

func isDigit(c rune) bool       { return c >= '0' && c <= '9' }
func isASCIILetter(c rune) bool { return c < unicode.MaxASCII && unicode.IsLetter(c) }
