// Package api serves a RepVGG network over HTTP.
package api

// ClassifyRequest is the body of POST /v1/classify. Data holds the NCHW
// input in row-major order.
type ClassifyRequest struct {
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
	TopK  *int      `json:"top_k,omitempty"`
}

// Prediction is one ranked class with its softmax probability.
type Prediction struct {
	Class int     `json:"class"`
	Score float64 `json:"score"`
}

// ClassifyResponse holds one row of logits and one ranking per input image.
type ClassifyResponse struct {
	ID     string         `json:"id"`
	Object string         `json:"object"`
	Mode   string         `json:"mode"`
	Logits [][]float32    `json:"logits"`
	Top    [][]Prediction `json:"top"`
}

// ModelInfo describes the served network.
type ModelInfo struct {
	Object        string `json:"object"`
	Name          string `json:"name,omitempty"`
	Mode          string `json:"mode"`
	NumParameters int    `json:"num_parameters"`
	NumBlocks     int    `json:"num_blocks"`
	NumClasses    int    `json:"num_classes"`
	InChannels    int    `json:"in_channels"`
	Backend       string `json:"backend"`
}

// ResponseError is the payload of every error response.
type ResponseError struct {
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}
