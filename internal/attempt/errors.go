package attempt

import (
	"errors"
	"fmt"
)

// ===== LOAD ERRORS =====

var (
	// ErrEvaluationNotFound - evaluation absent or not accessible to the
	// student. Fatal for the load; no retry path offered.
	ErrEvaluationNotFound = errors.New("evaluation not found")

	// ErrAttemptStartFailed - definition was fetched but the attempt record
	// could not be opened. The host must retry Load from scratch; no
	// partial state is retained.
	ErrAttemptStartFailed = errors.New("attempt could not be started")

	// ErrNoIdentity - the session collaborator has no current user.
	ErrNoIdentity = errors.New("no authenticated user")

	// ErrAttemptNotFound - no live controller for the requested attempt.
	ErrAttemptNotFound = errors.New("attempt not found")

	// ErrQuestionNotFound - answer or flag targeted a question outside the
	// loaded definition.
	ErrQuestionNotFound = errors.New("question not in evaluation")

	// ErrAttemptNotActive - operation requires the attempt to be accepting
	// answers.
	ErrAttemptNotActive = errors.New("attempt is not active")
)

// NetworkError wraps a transport failure talking to a collaborator. The
// whole operation that produced it is safe to retry.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ===== SUBMISSION ERRORS =====

// PartialUploadError - one or more answer uploads failed. Answers that
// succeeded remain persisted; grading was not requested. Submit may be
// invoked again and will retry only the missing uploads.
type PartialUploadError struct {
	FailedQuestionIDs []uint
}

func (e *PartialUploadError) Error() string {
	return fmt.Sprintf("failed to upload answers for %d question(s)", len(e.FailedQuestionIDs))
}

// GradingError - all answers are persisted but the grading request failed.
// A retried Submit only re-requests grading.
type GradingError struct {
	Err error
}

func (e *GradingError) Error() string {
	return fmt.Sprintf("grading failed: %v", e.Err)
}

func (e *GradingError) Unwrap() error { return e.Err }

// ===== HELPERS =====

func IsNotFound(err error) bool {
	return errors.Is(err, ErrEvaluationNotFound) ||
		errors.Is(err, ErrAttemptNotFound) ||
		errors.Is(err, ErrQuestionNotFound)
}

// IsRetryable reports whether re-invoking the failed operation can succeed
// without losing state.
func IsRetryable(err error) bool {
	var ne *NetworkError
	var pe *PartialUploadError
	var ge *GradingError
	return errors.As(err, &ne) || errors.As(err, &pe) || errors.As(err, &ge)
}
