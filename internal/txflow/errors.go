package txflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSimulationFailed means the pre-flight for an action could not be satisfied.
	ErrSimulationFailed = errors.New("simulation failed")
	// ErrSubmissionRejected means the wallet or provider rejected the write.
	ErrSubmissionRejected = errors.New("submission rejected")
	// ErrConfirmationPollFailed means the confirmation query errored or gave up.
	ErrConfirmationPollFailed = errors.New("confirmation poll failed")

	// ErrNotIdle is returned by Trigger when the step already ran.
	ErrNotIdle = errors.New("step is not idle")
	// ErrNotOpen is returned by Wait before the first Open.
	ErrNotOpen = errors.New("orchestrator not open")
	// ErrClosed is returned by Wait when Close ended the sequence early.
	ErrClosed = errors.New("orchestrator closed")
)

const fallbackMessage = "Transaction Error"

// StepError ties a failure cause to one of the step error kinds.
type StepError struct {
	Kind error
	Err  error
}

func (e *StepError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *StepError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// shortMessage keeps the first line of the cause, or the fallback text.
func shortMessage(err error) string {
	if err == nil {
		return fallbackMessage
	}
	msg := strings.TrimSpace(err.Error())
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = strings.TrimSpace(msg[:i])
	}
	if msg == "" {
		return fallbackMessage
	}
	return msg
}
