package submit

import (
	"fmt"
	"net/url"
	"time"
)

// State is the visible status of one registered form.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateSuccess
	StateError
)

// String returns the lowercase state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name
func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{StateIdle, StateLoading, StateSuccess, StateError} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// Snapshot is a registration's state at one instant.
type Snapshot struct {
	FormID     string    `json:"form"`
	State      State     `json:"state"`
	Message    string    `json:"message,omitempty"`
	Generation uint64    `json:"generation"`
	At         time.Time `json:"at"`
}

// Attempt is one submission. Generation increases with every attempt on the
// same registration; only the newest attempt may touch the UI.
type Attempt struct {
	FormID     string
	Generation uint64
	Action     string
	Values     url.Values
	StartedAt  time.Time
}

// Outcome is how an attempt ended.
type Outcome struct {
	Attempt    Attempt
	State      State // StateSuccess or StateError
	Message    string
	StatusCode int
	Duration   time.Duration

	// Stale is set when a newer attempt started before this one resolved.
	// Stale outcomes leave the UI alone.
	Stale bool

	Err error
}
