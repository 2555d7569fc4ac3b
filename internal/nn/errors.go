package nn

import "errors"

// Common errors.
var (
	// ErrInvalidConv is returned when convolution hyperparameters or weights
	// violate the layer invariants (square kernel, channels divisible by groups).
	ErrInvalidConv = errors.New("invalid convolution configuration")

	// ErrDegenerateVariance is returned when running_variance + eps is not
	// strictly positive for some channel. Normalizing with such statistics
	// would produce NaN or Inf.
	ErrDegenerateVariance = errors.New("degenerate batch norm variance")
)
