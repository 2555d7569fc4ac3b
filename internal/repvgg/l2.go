package repvgg

import (
	"fmt"
	"math"

	"github.com/born-ml/repvgg/internal/nn"
)

// CustomL2 returns the RepVGG structural weight penalty of a training block:
//
//	sum(K3²) - sum(K3[:,:,1,1]²) + sum((K3[:,:,1,1]*t3 + K1*t1)² / (t3² + t1²))
//
// where t = gamma / sqrt(running_variance + eps) per output channel of the
// 3x3 and 1x1 branches. The identity branch does not contribute.
func (b *Block) CustomL2() (float64, error) {
	ts, ok := b.state.(*trainingState)
	if !ok {
		return 0, ErrNotTraining
	}
	dense, pw := ts.branches.Dense.(*ConvBN), ts.branches.Pointwise.(*ConvBN)

	t3, err := bnScale(dense.bn)
	if err != nil {
		return 0, err
	}
	t1, err := bnScale(pw.bn)
	if err != nil {
		return 0, err
	}

	k3 := dense.conv.Weight()
	k1 := pw.conv.Weight()
	s := k3.Shape()
	out, in := s[0], s[1]

	var circle, eq float64
	for o := 0; o < out; o++ {
		denom := t3[o]*t3[o] + t1[o]*t1[o]
		for i := 0; i < in; i++ {
			for y := 0; y < 3; y++ {
				for x := 0; x < 3; x++ {
					if y == 1 && x == 1 {
						continue
					}
					v := float64(k3.At(o, i, y, x))
					circle += v * v
				}
			}
			e := float64(k3.At(o, i, 1, 1))*t3[o] + float64(k1.At(o, i, 0, 0))*t1[o]
			eq += e * e / denom
		}
	}
	return circle + eq, nil
}

func bnScale(bn *nn.BatchNorm2D) ([]float64, error) {
	gamma := bn.Gamma().Data()
	variance := bn.RunningVar().Data()
	t := make([]float64, len(gamma))
	for c := range gamma {
		denom := float64(variance[c]) + bn.Eps()
		if !(denom > 0) || math.IsInf(denom, 0) {
			return nil, fmt.Errorf("%w: channel %d has running_variance + eps = %g", ErrDegenerateVariance, c, denom)
		}
		t[c] = float64(gamma[c]) / math.Sqrt(denom)
	}
	return t, nil
}
