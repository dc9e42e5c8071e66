package jobs

import (
	"errors"
	"fmt"

	qi "github.com/quantum-inspire/qi-go"
)

// ErrResultNotReady indicates the job has not reached COMPLETE, so no
// result artifact exists yet.
var ErrResultNotReady = errors.New("job has not completed, result not ready")

// ValidationError reports bad caller input before anything is sent to
// the service.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// JobFailedError reports a job that reached FAILED or CANCELLED.
type JobFailedError struct {
	Status     qi.JobStatus
	Diagnostic string
}

func (e *JobFailedError) Error() string {
	if e.Diagnostic == "" {
		return fmt.Sprintf("job ended in state %s", e.Status)
	}
	return fmt.Sprintf("job ended in state %s: %s", e.Status, e.Diagnostic)
}

// PollTimeoutError reports that the poll deadline elapsed before the
// job reached a terminal state. The job itself is left running
// server-side.
type PollTimeoutError struct {
	LastStatus qi.JobStatus
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for job to finish (last status %s)", e.LastStatus)
}

// StateRegressionError reports that the service claimed a job moved
// backwards in its state machine, which the client treats as an error
// rather than a revert.
type StateRegressionError struct {
	From qi.JobStatus
	To   qi.JobStatus
}

func (e *StateRegressionError) Error() string {
	return fmt.Sprintf("job state regressed from %s to %s", e.From, e.To)
}
