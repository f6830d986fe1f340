package errors

import (
	"fmt"
	"time"
)

// CommandErrorKind tags the failure classes the router knows how to report.
type CommandErrorKind string

const (
	KindNotFound           CommandErrorKind = "NOT_FOUND"
	KindPermissionDenied   CommandErrorKind = "PERMISSION_DENIED"
	KindMissingArgument    CommandErrorKind = "MISSING_ARGUMENT"
	KindOnCooldown         CommandErrorKind = "ON_COOLDOWN"
	KindCorpusFetchFailure CommandErrorKind = "CORPUS_FETCH_FAILURE"
	KindModelBuildFailure  CommandErrorKind = "MODEL_BUILD_FAILURE"
	KindGenerationFailure  CommandErrorKind = "GENERATION_FAILURE"
	KindUnknown            CommandErrorKind = "UNKNOWN"
)

func (k CommandErrorKind) String() string {
	return string(k)
}

// CommandError is the classified outcome of a failed dispatch. Only the fields
// relevant to Kind are populated.
type CommandError struct {
	*BotError
	Kind    CommandErrorKind
	Command string

	// MissingArgument
	ExpectedShape string

	// OnCooldown
	RetryAfter time.Duration
	Window     time.Duration

	// CorpusFetchFailure
	Reason   string
	NotFound bool
}

func newCommandError(kind CommandErrorKind, command, message string, statusCode int) *CommandError {
	return &CommandError{
		BotError: &BotError{
			Message:    message,
			Code:       CodeCommand,
			StatusCode: statusCode,
			Context: map[string]any{
				"kind":    string(kind),
				"command": command,
			},
		},
		Kind:    kind,
		Command: command,
	}
}

func (e *CommandError) Error() string {
	if e.BotError == nil {
		return "command error: " + string(e.Kind)
	}
	return e.BotError.Error()
}

func (e *CommandError) Unwrap() error {
	if e.BotError == nil {
		return nil
	}
	return e.Cause
}

// WithCause keeps the CommandError type when attaching a cause.
func (e *CommandError) WithCause(cause error) *CommandError {
	e.Cause = cause
	return e
}

// Is matches another CommandError by kind so callers can compare against the
// Err* sentinels below with errors.Is.
func (e *CommandError) Is(target error) bool {
	t, ok := target.(*CommandError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Command == ""
}

// FromKind builds a bare error of the given kind, used when only a sentinel
// is available.
func FromKind(kind CommandErrorKind, command string) *CommandError {
	return newCommandError(kind, command, "command failed: "+kind.String(), 500)
}

func NewNotFoundError(command string) *CommandError {
	return newCommandError(KindNotFound, command, fmt.Sprintf("command not found: %s", command), 404)
}

func NewPermissionDeniedError(command string) *CommandError {
	return newCommandError(KindPermissionDenied, command, "permission denied", 403)
}

func NewMissingArgumentError(command, expectedShape string) *CommandError {
	err := newCommandError(KindMissingArgument, command, "missing required arguments", 400)
	err.ExpectedShape = expectedShape
	err.Context["expected"] = expectedShape
	return err
}

func NewOnCooldownError(command string, retryAfter, window time.Duration) *CommandError {
	err := newCommandError(KindOnCooldown, command,
		fmt.Sprintf("command on cooldown, retry after %s", retryAfter), 429)
	err.RetryAfter = retryAfter
	err.Window = window
	err.Context["retry_after"] = retryAfter.String()
	return err
}

func NewCorpusFetchError(command, reason string, cause error) *CommandError {
	err := newCommandError(KindCorpusFetchFailure, command, "corpus fetch failed: "+reason, 502)
	err.Reason = reason
	err.Context["reason"] = reason
	return err.WithCause(cause)
}

// NewCorpusNotFoundError reports a corpus owner the source does not know.
func NewCorpusNotFoundError(command, owner string) *CommandError {
	err := NewCorpusFetchError(command, "not found", nil)
	err.NotFound = true
	err.Context["owner"] = owner
	return err
}

func NewModelBuildError(command string, cause error) *CommandError {
	return newCommandError(KindModelBuildFailure, command, "model build failed", 422).WithCause(cause)
}

func NewGenerationError(command string, cause error) *CommandError {
	return newCommandError(KindGenerationFailure, command, "sentence generation failed", 422).WithCause(cause)
}

func NewUnknownError(command string, cause error) *CommandError {
	return newCommandError(KindUnknown, command, "unexpected command failure", 500).WithCause(cause)
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound           = &CommandError{Kind: KindNotFound}
	ErrPermissionDenied   = &CommandError{Kind: KindPermissionDenied}
	ErrMissingArgument    = &CommandError{Kind: KindMissingArgument}
	ErrOnCooldown         = &CommandError{Kind: KindOnCooldown}
	ErrCorpusFetchFailure = &CommandError{Kind: KindCorpusFetchFailure}
	ErrModelBuildFailure  = &CommandError{Kind: KindModelBuildFailure}
	ErrGenerationFailure  = &CommandError{Kind: KindGenerationFailure}
	ErrUnknown            = &CommandError{Kind: KindUnknown}
)
