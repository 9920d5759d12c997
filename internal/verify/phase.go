package verify

// Phase is where a Page stands in idle → loading → (verified | not-found |
// failed). Any settled phase may be re-entered by a new submission.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseVerified
	PhaseNotFound
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseVerified:
		return "verified"
	case PhaseNotFound:
		return "not-found"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func phaseOf(s State) Phase {
	switch {
	case s.Loading:
		return PhaseLoading
	case s.Error != "":
		return PhaseFailed
	case s.Result != nil && s.Result.Product != nil:
		return PhaseVerified
	case s.Result != nil:
		return PhaseNotFound
	default:
		return PhaseIdle
	}
}
