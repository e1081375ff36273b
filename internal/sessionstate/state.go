// Package sessionstate implements the session lifecycle state machine:
// the set of legal states a media session can occupy and the matrix of
// legal transitions between them.
package sessionstate

// Kind identifies a session lifecycle state, independent of any
// per-state payload (duration, metadata, seek target, error detail).
type Kind int

const (
	Idle Kind = iota
	Loading
	Ready
	Playing
	Paused
	Seeking
	Ended
	Error
)

func (k Kind) String() string {
	switch k {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Seeking:
		return "seeking"
	case Ended:
		return "ended"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// MediaMetadata carries the descriptive information known once a
// session reaches Ready. All fields are optional; a zero value means
// the source did not supply that field.
type MediaMetadata struct {
	Title       string
	Artist      string
	Album       string
	TrackCount  int
	TrackNumber int
}

// State is a session state together with its per-state payload. Only
// the fields relevant to Kind are meaningful; callers should switch on
// Kind before reading payload fields.
type State struct {
	Kind Kind

	// Ready, Playing, Paused, Seeking
	Duration float64 // seconds; 0 if unknown (e.g. live)
	Metadata MediaMetadata

	// Seeking
	SeekTarget float64
	PriorKind  Kind // state to resume after the seek completes

	// Error
	ErrorMessage string
}

// Idle is the zero state of a freshly created session.
func NewIdle() State { return State{Kind: Idle} }

// transitions enumerates, for each state Kind, the set of Kinds it may
// legally move to. Error is reachable from every state and is omitted
// from each entry for brevity; CanTransitionTo adds it implicitly.
var transitions = map[Kind]map[Kind]bool{
	Idle:    {Loading: true},
	Loading: {Ready: true},
	Ready:   {Playing: true, Paused: true, Seeking: true},
	Playing: {Paused: true, Seeking: true, Ended: true},
	Paused:  {Playing: true, Seeking: true},
	Seeking: {Playing: true, Paused: true, Ready: true, Seeking: true},
	Ended:   {},
	Error:   {},
}

// CanTransitionTo reports whether moving from 'from' to 'to' is a
// legal transition. Any state may transition to Error (a session can
// fault at any point), and Ended/Error are terminal: no transition out
// of them is legal, including to Error itself.
func CanTransitionTo(from, to Kind) bool {
	if from == Ended || from == Error {
		return false
	}
	if to == Error {
		return true
	}
	return transitions[from][to]
}

// Name returns the lifecycle state name, matching String().
func (s State) Name() string { return s.Kind.String() }
