// Package verdict holds the fairness error taxonomy and the tagged result
// returned by every verifier.
package verdict

import (
	"errors"
	"fmt"
)

// Kind classifies why a fairness check failed.
type Kind string

const (
	KindNone                     Kind = ""
	KindEntropySourceUnavailable Kind = "ENTROPY_SOURCE_UNAVAILABLE"
	KindCommitmentMismatch       Kind = "COMMITMENT_MISMATCH"
	KindIllegalAction            Kind = "ILLEGAL_ACTION"
	KindSeedMismatch             Kind = "SEED_MISMATCH"
	KindStructuralError          Kind = "STRUCTURAL_ERROR"
	KindDuplicateLabel           Kind = "DUPLICATE_LABEL"
	KindSessionNotFound          Kind = "SESSION_NOT_FOUND"
	KindSessionClosed            Kind = "SESSION_CLOSED"
	KindScoreMismatch            Kind = "SCORE_MISMATCH"
	KindStateMismatch            Kind = "STATE_MISMATCH"
)

// Fatal reports whether the kind is evidence of tampering rather than a
// caller-recoverable condition.
func (k Kind) Fatal() bool {
	switch k {
	case KindCommitmentMismatch, KindSeedMismatch:
		return true
	}
	return false
}

// Error is a classified fairness failure. Step is the zero-based replay step
// the failure was detected at, or -1 when it is not tied to a step.
type Error struct {
	Kind   Kind
	Detail string
	Step   int
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Step >= 0 {
		msg = fmt.Sprintf("%s at step %d", msg, e.Step)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so sentinel comparisons work with
// errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Detail == "" && t.Err == nil
}

// Sentinels for errors.Is.
var (
	ErrEntropySourceUnavailable = &Error{Kind: KindEntropySourceUnavailable, Step: -1}
	ErrCommitmentMismatch       = &Error{Kind: KindCommitmentMismatch, Step: -1}
	ErrIllegalAction            = &Error{Kind: KindIllegalAction, Step: -1}
	ErrSeedMismatch             = &Error{Kind: KindSeedMismatch, Step: -1}
	ErrStructural               = &Error{Kind: KindStructuralError, Step: -1}
	ErrDuplicateLabel           = &Error{Kind: KindDuplicateLabel, Step: -1}
	ErrSessionNotFound          = &Error{Kind: KindSessionNotFound, Step: -1}
	ErrSessionClosed            = &Error{Kind: KindSessionClosed, Step: -1}
	ErrScoreMismatch            = &Error{Kind: KindScoreMismatch, Step: -1}
	ErrStateMismatch            = &Error{Kind: KindStateMismatch, Step: -1}
)

// New returns an error of the given kind not tied to a replay step.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), Step: -1}
}

// AtStep returns an error of the given kind raised while replaying step.
func AtStep(kind Kind, step int, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), Step: step}
}

// Wrap classifies err under kind.
func Wrap(kind Kind, err error, detail string) *Error {
	return &Error{Kind: kind, Detail: detail, Step: -1, Err: err}
}

// KindOf extracts the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStructuralError
}

// Verdict is the transport shape of a validation outcome: either Ok with a
// calculated score or a failure carrying its kind and reason. A failed
// verdict never carries a score.
type Verdict struct {
	Valid           bool   `json:"valid"`
	Kind            Kind   `json:"kind,omitempty"`
	Reason          string `json:"reason,omitempty"`
	Step            *int   `json:"step,omitempty"`
	CalculatedScore *int64 `json:"calculatedScore,omitempty"`
}

// Ok builds a passing verdict.
func Ok(score int64) Verdict {
	return Verdict{Valid: true, CalculatedScore: &score}
}

// Fail builds a failing verdict from err.
func Fail(err error) Verdict {
	v := Verdict{Valid: false, Kind: KindOf(err), Reason: err.Error()}
	var e *Error
	if errors.As(err, &e) && e.Step >= 0 {
		step := e.Step
		v.Step = &step
	}
	return v
}

// From folds a (score, err) pair into a verdict.
func From(score int64, err error) Verdict {
	if err != nil {
		return Fail(err)
	}
	return Ok(score)
}
