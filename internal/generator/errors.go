package generator

import "errors"

// Stage error kinds. Their messages are what users see; causes stay in logs.
var (
	ErrBlueprintFailed  = errors.New("Failed to generate the creative blueprint. The AI might be having an off day.")
	ErrBlueprintInvalid = errors.New("The creative blueprint came back incomplete. Please try again.")
	ErrImagesFailed     = errors.New("Failed to generate images. Please check your prompt and try again.")
)

// StageError carries a kind for the user and a cause for diagnostics.
// errors.Is matches either of them.
type StageError struct {
	Kind  error
	Cause error
}

func (e *StageError) Error() string {
	return e.Kind.Error()
}

func (e *StageError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func stageError(kind, cause error) error {
	return &StageError{Kind: kind, Cause: cause}
}
