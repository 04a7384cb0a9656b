package pose

import "errors"

var (
	ErrModelNotFound      = errors.New("model not found")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrInvalidConfig      = errors.New("invalid config")

	ErrNotReady         = errors.New("session not ready")
	ErrDecodeFailure    = errors.New("image decode failed")
	ErrInferenceFailure = errors.New("inference failed")

	// ErrLandmarkMismatch means the detector broke its 2D/3D parity
	// guarantee. It is a programming error, not a recoverable condition.
	ErrLandmarkMismatch = errors.New("landmark count mismatch")
)

// InitError is returned by Session.Initialize. Kind is one of
// ErrModelNotFound, ErrBackendUnavailable or ErrInvalidConfig.
type InitError struct {
	Kind error
	Err  error
}

func NewInitError(kind, err error) *InitError {
	return &InitError{Kind: kind, Err: err}
}

func (e *InitError) Error() string {
	return joinMessage(e.Kind, e.Err)
}

func (e *InitError) Unwrap() []error {
	return unwrapPair(e.Kind, e.Err)
}

// ProcessError is returned by Session.SubmitFrame. Kind is one of
// ErrNotReady, ErrDecodeFailure or ErrInferenceFailure.
type ProcessError struct {
	Kind error
	Err  error
}

func NewProcessError(kind, err error) *ProcessError {
	return &ProcessError{Kind: kind, Err: err}
}

func (e *ProcessError) Error() string {
	return joinMessage(e.Kind, e.Err)
}

func (e *ProcessError) Unwrap() []error {
	return unwrapPair(e.Kind, e.Err)
}

func joinMessage(kind, err error) string {
	if err == nil {
		return kind.Error()
	}
	if errors.Is(err, kind) {
		return err.Error()
	}
	return kind.Error() + ": " + err.Error()
}

func unwrapPair(kind, err error) []error {
	if err == nil {
		return []error{kind}
	}
	return []error{kind, err}
}
