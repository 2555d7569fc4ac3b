package repvgg

import (
	"errors"

	"github.com/born-ml/repvgg/internal/nn"
)

// Common errors.
var (
	// ErrUnsupportedBranch is returned when fusion is asked to combine a branch
	// set outside the recognized shapes (3x3 conv+BN, 1x1 conv+BN, optional
	// identity BN).
	ErrUnsupportedBranch = errors.New("unsupported branch configuration")

	// ErrInvalidConfiguration is returned at construction time for block or
	// network settings that cannot be built, such as a required identity
	// branch on a block whose channels or stride do not allow one.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrDegenerateVariance is returned when a batch norm has
	// running_variance + eps <= 0.
	ErrDegenerateVariance = nn.ErrDegenerateVariance

	// ErrNotTraining is returned by operations that need the multi-branch form.
	ErrNotTraining = errors.New("block is not in training mode")

	// ErrUnknownPreset is returned for an unrecognized architecture name.
	ErrUnknownPreset = errors.New("unknown preset")

	// ErrStateDict is returned when a state dict does not match the network.
	ErrStateDict = errors.New("state dict mismatch")
)
