package api

import (
	"fmt"
	"math"
	"slices"

	"github.com/born-ml/repvgg/internal/tensor"
)

// DefaultTopK is the ranking length when a request does not set top_k.
const DefaultTopK = 5

// MaxInputElements bounds the size of one classify request.
const MaxInputElements = 1 << 24

// MaxRequestBytes bounds the size of a request body. It leaves room for
// MaxInputElements values in decimal JSON.
const MaxRequestBytes = 16 * MaxInputElements

// inputTensor checks a request against the network's input channels and
// builds the NCHW tensor.
func inputTensor(req ClassifyRequest, inChannels int) (*tensor.Tensor, error) {
	if len(req.Shape) != 4 {
		return nil, newInvalidRequest("shape", fmt.Sprintf("shape must be [N, C, H, W], got %v", req.Shape))
	}
	n := 1
	for i, d := range req.Shape {
		if d <= 0 {
			return nil, newInvalidRequest("shape", fmt.Sprintf("shape[%d] must be positive, got %d", i, d))
		}
		if n > MaxInputElements/d {
			return nil, newInvalidRequest("shape", fmt.Sprintf("input exceeds %d elements", MaxInputElements))
		}
		n *= d
	}
	if req.Shape[1] != inChannels {
		return nil, newInvalidRequest("shape", fmt.Sprintf("expected %d input channels, got %d", inChannels, req.Shape[1]))
	}
	if len(req.Data) != n {
		return nil, newInvalidRequest("data", fmt.Sprintf("data has %d values, shape %v needs %d", len(req.Data), req.Shape, n))
	}
	for i, v := range req.Data {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, newInvalidRequest("data", fmt.Sprintf("data[%d] is not finite", i))
		}
	}
	return tensor.FromSlice(slices.Clone(req.Data), tensor.Shape(req.Shape))
}

// resolveTopK applies the default and clamps to the class count.
func resolveTopK(topK *int, numClasses int) (int, error) {
	if topK == nil {
		return min(DefaultTopK, numClasses), nil
	}
	if *topK <= 0 {
		return 0, newInvalidRequest("top_k", fmt.Sprintf("top_k must be positive, got %d", *topK))
	}
	return min(*topK, numClasses), nil
}

// softmax returns the probabilities of one row of logits.
func softmax(logits []float32) []float64 {
	out := make([]float64, len(logits))
	peak := math.Inf(-1)
	for _, v := range logits {
		peak = max(peak, float64(v))
	}
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(float64(v) - peak)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// rank returns the k most probable classes, highest first. Ties keep the
// lower class index first.
func rank(logits []float32, k int) []Prediction {
	probs := softmax(logits)
	preds := make([]Prediction, len(probs))
	for i, p := range probs {
		preds[i] = Prediction{Class: i, Score: p}
	}
	slices.SortStableFunc(preds, func(a, b Prediction) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	return preds[:k]
}

// splitRows turns [N, classes] logits into per-image rows.
func splitRows(logits *tensor.Tensor) [][]float32 {
	shape := logits.Shape()
	rows := make([][]float32, shape[0])
	data := logits.Data()
	for i := range rows {
		rows[i] = slices.Clone(data[i*shape[1] : (i+1)*shape[1]])
	}
	return rows
}
