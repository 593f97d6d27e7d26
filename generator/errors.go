package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// FetchFailedMessage is shown when the service could not be reached or
// answered with something that isn't a completion.
const FetchFailedMessage = "Error: fetch completion."

var (
	// ErrBusy is returned while another request of the same collector is in flight.
	ErrBusy = errors.New("a completion request is already in progress")
	// ErrMissingAPIKey means neither settings nor config carry a key.
	ErrMissingAPIKey = errors.New("completion api key missing; set it in settings")
	// ErrEmptyPrompt rejects blank prompts before any network call.
	ErrEmptyPrompt = errors.New("prompt is required")
	// ErrPromptTooLong means the estimated prompt size consumes the whole budget.
	ErrPromptTooLong = errors.New("prompt is too long for the selected max tokens")
)

// CompletionError is an error reported by the completion service itself.
// Message is the service's text, unmodified.
type CompletionError struct {
	Message    string `json:"message"`
	Type       string `json:"type"`
	Param      string `json:"param"`
	Code       string `json:"code"`
	StatusCode int    `json:"-"`
}

func (e *CompletionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("completion api error (HTTP %d): %s (type: %s)", e.StatusCode, e.Message, e.Type)
	}
	return fmt.Sprintf("completion api error: %s (type: %s)", e.Message, e.Type)
}

// errorEnvelope is the {error:{message,type,param,code}} body.
type errorEnvelope struct {
	Error *struct {
		Message string  `json:"message"`
		Type    string  `json:"type"`
		Param   *string `json:"param"`
		Code    *string `json:"code"`
	} `json:"error"`
}

// errorFromBody returns the CompletionError carried by body, or nil when body
// isn't an error envelope.
func errorFromBody(body []byte, status int) *CompletionError {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Error == nil {
		return nil
	}
	out := &CompletionError{
		Message:    env.Error.Message,
		Type:       env.Error.Type,
		StatusCode: status,
	}
	if env.Error.Param != nil {
		out.Param = *env.Error.Param
	}
	if env.Error.Code != nil {
		out.Code = *env.Error.Code
	}
	return out
}

// errorFromResponse reads an error envelope back out of resp, whose body the
// SDK leaves readable after a failed call.
func errorFromResponse(resp *http.Response) *CompletionError {
	if resp == nil || resp.Body == nil {
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}
	return errorFromBody(body, resp.StatusCode)
}

// UserMessage maps any collector error to the text shown to the user.
func UserMessage(err error) string {
	var cerr *CompletionError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &cerr):
		return cerr.Message
	case errors.Is(err, ErrBusy), errors.Is(err, ErrMissingAPIKey),
		errors.Is(err, ErrEmptyPrompt), errors.Is(err, ErrPromptTooLong),
		errors.Is(err, ErrInvalidTemperature):
		return err.Error()
	default:
		return FetchFailedMessage
	}
}
