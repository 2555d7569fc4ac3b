package repvgg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/repvgg/internal/nn"
	"github.com/born-ml/repvgg/internal/tensor"
)

func TestIdentityKernelGrouped(t *testing.T) {
	id, err := NewIdentityBN(6, 3, nn.DefaultBatchNormEps, testBackend())
	require.NoError(t, err)

	k := id.IdentityKernel()
	require.Equal(t, tensor.Shape{6, 2, 3, 3}, k.Shape())
	assert.Same(t, k, id.IdentityKernel(), "kernel should be memoized")

	for o := 0; o < 6; o++ {
		for i := 0; i < 2; i++ {
			for y := 0; y < 3; y++ {
				for x := 0; x < 3; x++ {
					want := float32(0)
					if i == o%2 && y == 1 && x == 1 {
						want = 1
					}
					assert.Equal(t, want, k.At(o, i, y, x), "[%d,%d,%d,%d]", o, i, y, x)
				}
			}
		}
	}
}

func TestNewIdentityBNIndivisible(t *testing.T) {
	_, err := NewIdentityBN(5, 2, nn.DefaultBatchNormEps, testBackend())
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestFuseIdentityIsKroneckerDelta(t *testing.T) {
	const eps = 1e-5
	id, err := NewIdentityBN(4, 1, eps, testBackend())
	require.NoError(t, err)
	setBN(id.BN(), 1, 0, 0, 1-eps)

	kernel, bias, err := FuseBranch(id)
	require.NoError(t, err)

	for o := 0; o < 4; o++ {
		for i := 0; i < 4; i++ {
			for y := 0; y < 3; y++ {
				for x := 0; x < 3; x++ {
					want := 0.0
					if o == i && y == 1 && x == 1 {
						want = 1
					}
					assert.InDelta(t, want, kernel.At(o, i, y, x), 1e-6)
				}
			}
		}
		assert.InDelta(t, 0, bias.At(o), 1e-7)
	}
}

func TestFuseConvBN(t *testing.T) {
	br, err := NewConvBN(nn.Conv2DConfig{InChannels: 1, OutChannels: 2, KernelSize: 3, Padding: 1}, 0, testBackend())
	require.NoError(t, err)
	for i := range br.Conv().Weight().Data() {
		br.Conv().Weight().Data()[i] = 1
	}
	// scale = gamma / sqrt(4) = gamma/2
	copy(br.BN().Gamma().Data(), []float32{2, 4})
	copy(br.BN().Beta().Data(), []float32{0.5, -1})
	copy(br.BN().RunningMean().Data(), []float32{1, 3})
	copy(br.BN().RunningVar().Data(), []float32{4, 4})

	kernel, bias, err := FuseBranch(br)
	require.NoError(t, err)

	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			assert.InDelta(t, 1, kernel.At(0, 0, y, x), 1e-6)
			assert.InDelta(t, 2, kernel.At(1, 0, y, x), 1e-6)
		}
	}
	assert.InDelta(t, -0.5, bias.At(0), 1e-6)
	assert.InDelta(t, -7, bias.At(1), 1e-6)

	// Inputs are untouched.
	assert.Equal(t, float32(1), br.Conv().Weight().At(1, 0, 1, 1))
}

func TestFuseAbsent(t *testing.T) {
	for _, b := range []Branch{Absent{}, nil} {
		k, bias, err := FuseBranch(b)
		require.NoError(t, err)
		assert.Nil(t, k)
		assert.Nil(t, bias)
	}
}

func TestFuseDegenerateVariance(t *testing.T) {
	tests := []struct {
		name     string
		variance float32
	}{
		{"negative", -1},
		{"nan", float32(math.NaN())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := NewIdentityBN(2, 1, nn.DefaultBatchNormEps, testBackend())
			require.NoError(t, err)
			id.BN().RunningVar().Data()[1] = tt.variance

			_, _, err = FuseBranch(id)
			assert.ErrorIs(t, err, ErrDegenerateVariance)
		})
	}
}

func TestPadTo3x3(t *testing.T) {
	k1, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{3, 2, 1, 1})
	require.NoError(t, err)

	k3, err := PadTo3x3(k1)
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{3, 2, 3, 3}, k3.Shape())

	for o := 0; o < 3; o++ {
		for i := 0; i < 2; i++ {
			assert.Equal(t, k1.At(o, i, 0, 0), k3.At(o, i, 1, 1))
			var ring float32
			for y := 0; y < 3; y++ {
				for x := 0; x < 3; x++ {
					if y != 1 || x != 1 {
						ring += k3.At(o, i, y, x)
					}
				}
			}
			assert.Zero(t, ring)
		}
	}

	nilK, err := PadTo3x3(nil)
	assert.NoError(t, err)
	assert.Nil(t, nilK)

	_, err = PadTo3x3(tensor.Zeros(tensor.Shape{1, 1, 3, 3}))
	assert.ErrorIs(t, err, ErrUnsupportedBranch)
}

// fakeBranch is a Branch the fusion engine does not know.
type fakeBranch struct{}

func (fakeBranch) Kind() BranchKind                               { return BranchKind(99) }
func (fakeBranch) Apply(x *tensor.Tensor) (*tensor.Tensor, error) { return x, nil }
func (fakeBranch) NamedParameters(string) []NamedParameter        { return nil }
func (fakeBranch) cloneBranch() Branch                            { return fakeBranch{} }

func TestBranchSetValidate(t *testing.T) {
	backend := testBackend()
	conv := func(in, out, k, stride, pad, groups int) *ConvBN {
		b, err := NewConvBN(nn.Conv2DConfig{
			InChannels: in, OutChannels: out, KernelSize: k, Stride: stride, Padding: pad, Groups: groups,
		}, nn.DefaultBatchNormEps, backend)
		require.NoError(t, err)
		return b
	}
	identity := func(c, groups int) *IdentityBN {
		b, err := NewIdentityBN(c, groups, nn.DefaultBatchNormEps, backend)
		require.NoError(t, err)
		return b
	}

	tests := []struct {
		name string
		set  BranchSet
		ok   bool
	}{
		{"full", BranchSet{conv(4, 4, 3, 1, 1, 1), conv(4, 4, 1, 1, 0, 1), identity(4, 1)}, true},
		{"no identity", BranchSet{conv(4, 8, 3, 2, 1, 1), conv(4, 8, 1, 2, 0, 1), Absent{}}, true},
		{"nil identity", BranchSet{conv(4, 8, 3, 2, 1, 1), conv(4, 8, 1, 2, 0, 1), nil}, true},
		{"grouped", BranchSet{conv(4, 4, 3, 1, 1, 2), conv(4, 4, 1, 1, 0, 2), identity(4, 2)}, true},
		{"dense is 1x1", BranchSet{conv(4, 4, 1, 1, 0, 1), conv(4, 4, 1, 1, 0, 1), Absent{}}, false},
		{"pointwise is 3x3", BranchSet{conv(4, 4, 3, 1, 1, 1), conv(4, 4, 3, 1, 1, 1), Absent{}}, false},
		{"dense unpadded", BranchSet{conv(4, 4, 3, 1, 0, 1), conv(4, 4, 1, 1, 0, 1), Absent{}}, false},
		{"stride mismatch", BranchSet{conv(4, 4, 3, 2, 1, 1), conv(4, 4, 1, 1, 0, 1), Absent{}}, false},
		{"identity on stride 2", BranchSet{conv(4, 4, 3, 2, 1, 1), conv(4, 4, 1, 2, 0, 1), identity(4, 1)}, false},
		{"identity groups mismatch", BranchSet{conv(4, 4, 3, 1, 1, 1), conv(4, 4, 1, 1, 0, 1), identity(4, 2)}, false},
		{"identity as dense", BranchSet{identity(4, 1), conv(4, 4, 1, 1, 0, 1), Absent{}}, false},
		{"missing pointwise", BranchSet{conv(4, 4, 3, 1, 1, 1), Absent{}, Absent{}}, false},
		{"unknown identity", BranchSet{conv(4, 4, 3, 1, 1, 1), conv(4, 4, 1, 1, 0, 1), fakeBranch{}}, false},
		{"typed nil identity", BranchSet{conv(4, 4, 3, 1, 1, 1), conv(4, 4, 1, 1, 0, 1), (*IdentityBN)(nil)}, false},
		{"typed nil dense", BranchSet{(*ConvBN)(nil), conv(4, 4, 1, 1, 0, 1), Absent{}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.set.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrUnsupportedBranch)
			_, _, err = FuseBranchSet(tt.set)
			assert.ErrorIs(t, err, ErrUnsupportedBranch)
		})
	}

	_, _, err := FuseBranch(fakeBranch{})
	assert.ErrorIs(t, err, ErrUnsupportedBranch)
}

func TestFuseBranchSetDoesNotAlias(t *testing.T) {
	b := newTestBlock(t, BlockConfig{InChannels: 4, OutChannels: 4})
	set, err := b.Branches()
	require.NoError(t, err)

	dense := set.Dense.(*ConvBN).Conv().Weight().Clone()
	kernel, bias, err := EquivalentKernelBias(set.Dense, set.Pointwise, set.Identity)
	require.NoError(t, err)

	kernel.Data()[0] += 100
	bias.Data()[0] += 100
	assert.Equal(t, dense.Data(), set.Dense.(*ConvBN).Conv().Weight().Data())

	again, _, err := FuseBranchSet(set)
	require.NoError(t, err)
	assert.NotEqual(t, kernel.At(0, 0, 0, 0), again.At(0, 0, 0, 0))
}

func TestFusedSumMatchesParts(t *testing.T) {
	b := newTestBlock(t, BlockConfig{InChannels: 4, OutChannels: 4})
	set, err := b.Branches()
	require.NoError(t, err)

	k3, b3, err := FuseBranch(set.Dense)
	require.NoError(t, err)
	k1, b1, err := FuseBranch(set.Pointwise)
	require.NoError(t, err)
	kid, bid, err := FuseBranch(set.Identity)
	require.NoError(t, err)
	k1, err = PadTo3x3(k1)
	require.NoError(t, err)

	kernel, bias, err := FuseBranchSet(set)
	require.NoError(t, err)

	for i, v := range kernel.Data() {
		assert.InDelta(t, k3.Data()[i]+k1.Data()[i]+kid.Data()[i], v, 1e-6)
	}
	for i, v := range bias.Data() {
		assert.InDelta(t, b3.Data()[i]+b1.Data()[i]+bid.Data()[i], v, 1e-6)
	}
}
