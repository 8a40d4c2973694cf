package matcher

import "fmt"

// Status is a match state. CONFIRMED is the only state a consumer may treat
// as authoritative without reading Reason.
type Status string

const (
	StatusUnmatched      Status = "UNMATCHED"
	StatusCandidateFound Status = "CANDIDATE_FOUND"
	StatusValidated      Status = "VALIDATED"
	StatusConfirmed      Status = "CONFIRMED"
	StatusAmbiguous      Status = "AMBIGUOUS"
	StatusRejected       Status = "REJECTED"
)

var transitions = map[Status][]Status{
	StatusUnmatched:      {StatusCandidateFound},
	StatusCandidateFound: {StatusValidated},
	StatusValidated:      {StatusConfirmed, StatusRejected, StatusAmbiguous},
}

// Terminal reports whether a result may be returned in this state.
func (s Status) Terminal() bool {
	switch s {
	case StatusUnmatched, StatusConfirmed, StatusAmbiguous, StatusRejected:
		return true
	}
	return false
}

// machine walks one match through the transition table.
type machine struct {
	state Status
}

func newMachine() *machine { return &machine{state: StatusUnmatched} }

func (m *machine) to(next Status) error {
	for _, allowed := range transitions[m.state] {
		if allowed == next {
			m.state = next
			return nil
		}
	}
	return fmt.Errorf("matcher: illegal transition %s -> %s", m.state, next)
}

// Reason explains a non-confirmed result.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonDateWindow          Reason = "date_window"
	ReasonPriceMismatch       Reason = "price_mismatch"
	ReasonLowConfidence       Reason = "low_confidence"
	ReasonNoCandidate         Reason = "no_candidate"
	ReasonResourceUnavailable Reason = "resource_unavailable"
	ReasonUnsupportedSport    Reason = "unsupported_sport"
	ReasonMultipleCandidates  Reason = "multiple_candidates"
	ReasonOrientationUnknown  Reason = "orientation_unknown"
)
