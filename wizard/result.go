package wizard

import "fmt"

// Status of a remote operation as seen by the user.
type Status int

const (
	Idle Status = iota
	Pending
	OK
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case OK:
		return "ok"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(text []byte) error {
	for _, status := range []Status{Idle, Pending, OK, Failed} {
		if status.String() == string(text) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", text)
}

// Result is the last outcome of one kind of remote operation. Message is
// set only when Status is Failed and is safe to show as is.
type Result[T any] struct {
	Status  Status `json:"status"`
	Value   T      `json:"value"`
	Message string `json:"message,omitempty"`
}

func pending[T any]() Result[T] { return Result[T]{Status: Pending} }

func succeeded[T any](v T) Result[T] { return Result[T]{Status: OK, Value: v} }

func failed[T any](msg string) Result[T] { return Result[T]{Status: Failed, Message: msg} }
