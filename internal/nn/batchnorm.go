package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/repvgg/internal/tensor"
)

// DefaultBatchNormEps is the epsilon added to the running variance.
const DefaultBatchNormEps = 1e-5

// BatchNorm2D normalizes each channel of [N, C, H, W] with its running
// statistics:
//
//	y = gamma * (x - running_mean) / sqrt(running_variance + eps) + beta
//
// Gamma starts at one, beta and the running mean at zero, the running
// variance at one.
type BatchNorm2D struct {
	numFeatures int
	eps         float64

	gamma       *Parameter // [C]
	beta        *Parameter // [C]
	runningMean *Parameter // [C]
	runningVar  *Parameter // [C]

	backend tensor.Backend
}

// NewBatchNorm2D creates a batch normalization layer over numFeatures channels.
func NewBatchNorm2D(numFeatures int, eps float64, backend tensor.Backend) (*BatchNorm2D, error) {
	if numFeatures <= 0 {
		return nil, fmt.Errorf("batchnorm2d: invalid number of features %d", numFeatures)
	}
	shape := tensor.Shape{numFeatures}
	return &BatchNorm2D{
		numFeatures: numFeatures,
		eps:         eps,
		gamma:       NewParameter("gamma", Ones(shape)),
		beta:        NewParameter("beta", Zeros(shape)),
		runningMean: NewParameter("moving_mean", Zeros(shape)),
		runningVar:  NewParameter("moving_variance", Ones(shape)),
		backend:     backend,
	}, nil
}

// ScaleShift derives the per-channel affine form of the layer:
//
//	scale = gamma / sqrt(running_variance + eps)
//	shift = beta - running_mean * scale
//
// It returns ErrDegenerateVariance if running_variance + eps <= 0 (or NaN)
// for any channel.
func (bn *BatchNorm2D) ScaleShift() (scale, shift *tensor.Tensor, err error) {
	scale = tensor.Zeros(tensor.Shape{bn.numFeatures})
	shift = tensor.Zeros(tensor.Shape{bn.numFeatures})

	gamma := bn.gamma.Tensor().Data()
	beta := bn.beta.Tensor().Data()
	mean := bn.runningMean.Tensor().Data()
	variance := bn.runningVar.Tensor().Data()

	for c := 0; c < bn.numFeatures; c++ {
		denom := float64(variance[c]) + bn.eps
		if !(denom > 0) || math.IsInf(denom, 0) {
			return nil, nil, fmt.Errorf("%w: channel %d has running_variance + eps = %g", ErrDegenerateVariance, c, denom)
		}
		s := float64(gamma[c]) / math.Sqrt(denom)
		scale.Data()[c] = float32(s)
		shift.Data()[c] = float32(float64(beta[c]) - float64(mean[c])*s)
	}
	return scale, shift, nil
}

// Forward normalizes x [N, C, H, W].
func (bn *BatchNorm2D) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := tensor.CheckNCHW("batchnorm2d", x.Shape(), bn.numFeatures); err != nil {
		return nil, err
	}
	scale, shift, err := bn.ScaleShift()
	if err != nil {
		return nil, err
	}
	return bn.backend.ScaleShift(x, scale, shift)
}

// Parameters returns gamma, beta and the running statistics.
//
// The running statistics are not trained by gradient descent but are part of
// the persisted state, so they are enumerated alongside the affine terms.
func (bn *BatchNorm2D) Parameters() []*Parameter {
	return []*Parameter{bn.gamma, bn.beta, bn.runningMean, bn.runningVar}
}

// Clone returns a deep copy sharing only the backend.
func (bn *BatchNorm2D) Clone() *BatchNorm2D {
	return &BatchNorm2D{
		numFeatures: bn.numFeatures,
		eps:         bn.eps,
		gamma:       bn.gamma.Clone(),
		beta:        bn.beta.Clone(),
		runningMean: bn.runningMean.Clone(),
		runningVar:  bn.runningVar.Clone(),
		backend:     bn.backend,
	}
}

// NumFeatures returns the channel count.
func (bn *BatchNorm2D) NumFeatures() int {
	return bn.numFeatures
}

// Eps returns the variance epsilon.
func (bn *BatchNorm2D) Eps() float64 {
	return bn.eps
}

// Gamma returns the scale tensor.
func (bn *BatchNorm2D) Gamma() *tensor.Tensor { return bn.gamma.Tensor() }

// Beta returns the shift tensor.
func (bn *BatchNorm2D) Beta() *tensor.Tensor { return bn.beta.Tensor() }

// RunningMean returns the running mean tensor.
func (bn *BatchNorm2D) RunningMean() *tensor.Tensor { return bn.runningMean.Tensor() }

// RunningVar returns the running variance tensor.
func (bn *BatchNorm2D) RunningVar() *tensor.Tensor { return bn.runningVar.Tensor() }

// String returns a string representation of the layer.
func (bn *BatchNorm2D) String() string {
	return fmt.Sprintf("BatchNorm2D(num_features=%d, eps=%g)", bn.numFeatures, bn.eps)
}
