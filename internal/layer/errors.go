package layer

import "github.com/pkg/errors"

// Every failure a layer can report wraps one of these sentinels, so callers
// match with errors.Is and still see the full context in the message.
var (
	// ErrInvalidArgument reports malformed construction parameters:
	// non-positive kernel, pool or stride sizes, out-of-range probabilities.
	// Raised at construction time, never deferred.
	ErrInvalidArgument = errors.New("layer: invalid argument")

	// ErrInvalidPaddingMode reports an unsupported padding mode reaching the
	// padding calculator.
	ErrInvalidPaddingMode = errors.New("layer: invalid padding mode")

	// ErrState reports Backward invoked without a valid preceding Forward, or
	// with a gradient whose shape disagrees with the cached output shape.
	ErrState = errors.New("layer: invalid state")
)
