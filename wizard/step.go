package wizard

import "fmt"

// Step is the wizard's position. Done and Cancelled are terminal.
type Step int

const (
	Collecting Step = iota
	Editing
	Reviewing
	Done
	Cancelled
)

func (s Step) String() string {
	switch s {
	case Collecting:
		return "collecting"
	case Editing:
		return "editing"
	case Reviewing:
		return "reviewing"
	case Done:
		return "done"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

func (s Step) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Step) UnmarshalText(text []byte) error {
	for _, step := range []Step{Collecting, Editing, Reviewing, Done, Cancelled} {
		if step.String() == string(text) {
			*s = step
			return nil
		}
	}
	return fmt.Errorf("unknown step %q", text)
}

// Terminal reports whether no further transition is possible.
func (s Step) Terminal() bool {
	switch s {
	case Done, Cancelled:
		return true
	case Collecting, Editing, Reviewing:
		return false
	default:
		return true
	}
}

// Affordances tells a front end which controls to enable.
type Affordances struct {
	Next    bool `json:"next"`
	Back    bool `json:"back"`
	Publish bool `json:"publish"`
	Cancel  bool `json:"cancel"`
}
