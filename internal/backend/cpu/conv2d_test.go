package cpu

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/born-ml/repvgg/internal/parallel"
	"github.com/born-ml/repvgg/internal/tensor"
)

func seq(n int, start float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = start + float32(i)
	}
	return out
}

func randomTensor(rng *rand.Rand, shape tensor.Shape) *tensor.Tensor {
	t := tensor.Zeros(shape)
	for i := range t.Data() {
		t.Data()[i] = float32(rng.NormFloat64())
	}
	return t
}

// referenceConv is a direct seven-loop convolution used to check im2col.
func referenceConv(input, kernel *tensor.Tensor, o tensor.ConvOptions) *tensor.Tensor {
	o = o.Normalize()
	is, ks := input.Shape(), kernel.Shape()
	n, cin, h, w := is[0], is[1], is[2], is[3]
	cout, cinG, kh, kw := ks[0], ks[1], ks[2], ks[3]
	coutG := cout / o.Groups
	hOut := (h+2*o.Padding-o.Dilation*(kh-1)-1)/o.Stride + 1
	wOut := (w+2*o.Padding-o.Dilation*(kw-1)-1)/o.Stride + 1
	out := tensor.Zeros(tensor.Shape{n, cout, hOut, wOut})
	for b := 0; b < n; b++ {
		for oc := 0; oc < cout; oc++ {
			g := oc / coutG
			for y := 0; y < hOut; y++ {
				for x := 0; x < wOut; x++ {
					var sum float32
					for c := 0; c < cinG; c++ {
						ic := g*cinG + c
						for i := 0; i < kh; i++ {
							for j := 0; j < kw; j++ {
								yy := y*o.Stride - o.Padding + i*o.Dilation
								xx := x*o.Stride - o.Padding + j*o.Dilation
								if yy < 0 || yy >= h || xx < 0 || xx >= w {
									continue
								}
								sum += input.At(b, ic, yy, xx) * kernel.At(oc, c, i, j)
							}
						}
					}
					out.Set(sum, b, oc, y, x)
				}
			}
		}
	}
	_ = cin
	return out
}

// TestConv2D_BasicForward tests basic Conv2D forward pass.
func TestConv2D_BasicForward(t *testing.T) {
	backend := New()

	// 1 2 3
	// 4 5 6
	// 7 8 9
	input, _ := tensor.FromSlice(seq(9, 1), tensor.Shape{1, 1, 3, 3})
	// 1 0
	// 0 1
	kernel, _ := tensor.FromSlice([]float32{1, 0, 0, 1}, tensor.Shape{1, 1, 2, 2})

	output, err := backend.Conv2D(input, kernel, tensor.ConvOptions{})
	if err != nil {
		t.Fatalf("Conv2D failed: %v", err)
	}

	expectedShape := tensor.Shape{1, 1, 2, 2}
	if !output.Shape().Equal(expectedShape) {
		t.Fatalf("Expected shape %v, got %v", expectedShape, output.Shape())
	}

	// Diagonal sums of each 2x2 patch.
	expected := []float32{6, 8, 12, 14}
	for i, exp := range expected {
		if output.Data()[i] != exp {
			t.Errorf("Output[%d]: expected %.1f, got %.1f", i, exp, output.Data()[i])
		}
	}
}

// TestConv2D_WithPadding tests Conv2D with zero padding.
func TestConv2D_WithPadding(t *testing.T) {
	backend := New()

	input := tensor.Full(tensor.Shape{1, 1, 3, 3}, 1)
	kernel := tensor.Full(tensor.Shape{1, 1, 3, 3}, 1)

	output, err := backend.Conv2D(input, kernel, tensor.ConvOptions{Stride: 1, Padding: 1})
	if err != nil {
		t.Fatalf("Conv2D failed: %v", err)
	}

	// Corners see 4 ones, edges 6, center 9.
	expected := []float32{4, 6, 4, 6, 9, 6, 4, 6, 4}
	for i, exp := range expected {
		if output.Data()[i] != exp {
			t.Errorf("Output[%d]: expected %.1f, got %.1f", i, exp, output.Data()[i])
		}
	}
}

// TestConv2D_MatchesReference compares im2col against a direct loop over
// strides, dilations and groups.
func TestConv2D_MatchesReference(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	backend := New()

	tests := []struct {
		name   string
		input  tensor.Shape
		kernel tensor.Shape
		opts   tensor.ConvOptions
	}{
		{"dense3x3", tensor.Shape{2, 3, 7, 7}, tensor.Shape{4, 3, 3, 3}, tensor.ConvOptions{Padding: 1}},
		{"stride2", tensor.Shape{1, 4, 8, 8}, tensor.Shape{6, 4, 3, 3}, tensor.ConvOptions{Stride: 2, Padding: 1}},
		{"pointwise", tensor.Shape{2, 4, 5, 5}, tensor.Shape{8, 4, 1, 1}, tensor.ConvOptions{}},
		{"groups2", tensor.Shape{1, 4, 6, 6}, tensor.Shape{6, 2, 3, 3}, tensor.ConvOptions{Padding: 1, Groups: 2}},
		{"depthwise", tensor.Shape{2, 4, 5, 5}, tensor.Shape{4, 1, 3, 3}, tensor.ConvOptions{Padding: 1, Groups: 4}},
		{"dilation2", tensor.Shape{1, 2, 9, 9}, tensor.Shape{3, 2, 3, 3}, tensor.ConvOptions{Padding: 2, Dilation: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := randomTensor(rng, tt.input)
			kernel := randomTensor(rng, tt.kernel)

			got, err := backend.Conv2D(input, kernel, tt.opts)
			if err != nil {
				t.Fatalf("Conv2D failed: %v", err)
			}
			want := referenceConv(input, kernel, tt.opts)
			if !got.AllClose(want, 1e-5, 1e-5) {
				d, _ := got.MaxAbsDiff(want)
				t.Errorf("im2col differs from reference, max abs diff %g", d)
			}
		})
	}
}

// TestConv2D_ParallelMatchesSequential checks results do not depend on scheduling.
func TestConv2D_ParallelMatchesSequential(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	input := randomTensor(rng, tensor.Shape{4, 8, 6, 6})
	kernel := randomTensor(rng, tensor.Shape{8, 2, 3, 3})
	opts := tensor.ConvOptions{Padding: 1, Groups: 4}

	par := NewWithConfig(parallel.Config{Enabled: true, NumWorkers: 8, MinChunkSize: 1})
	sq := NewWithConfig(parallel.Sequential())

	a, err := par.Conv2D(input, kernel, opts)
	if err != nil {
		t.Fatal(err)
	}
	b, err := sq.Conv2D(input, kernel, opts)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a.Data() {
		if a.Data()[i] != b.Data()[i] {
			t.Fatalf("element %d: parallel %v != sequential %v", i, a.Data()[i], b.Data()[i])
		}
	}
}

func TestConv2D_ShapeErrors(t *testing.T) {
	backend := New()

	tests := []struct {
		name   string
		input  tensor.Shape
		kernel tensor.Shape
		opts   tensor.ConvOptions
	}{
		{"rank3 input", tensor.Shape{4, 8, 8}, tensor.Shape{4, 4, 3, 3}, tensor.ConvOptions{}},
		{"channel mismatch", tensor.Shape{1, 3, 8, 8}, tensor.Shape{4, 4, 3, 3}, tensor.ConvOptions{}},
		{"groups mismatch", tensor.Shape{1, 4, 8, 8}, tensor.Shape{4, 4, 3, 3}, tensor.ConvOptions{Groups: 2}},
		{"indivisible groups", tensor.Shape{1, 4, 8, 8}, tensor.Shape{3, 4, 3, 3}, tensor.ConvOptions{Groups: 3}},
		{"output too small", tensor.Shape{1, 4, 2, 2}, tensor.Shape{4, 4, 3, 3}, tensor.ConvOptions{}},
		{"negative padding", tensor.Shape{1, 4, 8, 8}, tensor.Shape{4, 4, 3, 3}, tensor.ConvOptions{Padding: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := backend.Conv2D(tensor.Zeros(tt.input), tensor.Zeros(tt.kernel), tt.opts)
			var shapeErr *tensor.ShapeError
			if !errors.As(err, &shapeErr) {
				t.Fatalf("expected *tensor.ShapeError, got %v", err)
			}
		})
	}
}
