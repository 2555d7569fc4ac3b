// Package onnx exports deployed RepVGG networks to ONNX.
//
// ONNX (Open Neural Network Exchange) is an open format for representing deep
// learning models. Only the message subset needed by a plain convolutional
// classifier is modelled; messages are encoded and decoded with the protobuf
// wire primitives of google.golang.org/protobuf/encoding/protowire.
//
// Key components:
//   - ModelProto: Top-level ONNX model structure with metadata and graph
//   - GraphProto: Computation graph with nodes, inputs, outputs, and initializers
//   - NodeProto: Single operation in the graph (e.g., Conv, Relu, Gemm)
//   - TensorProto: Weight/initializer tensor with data and shape
//   - ValueInfoProto: Input/output tensor type information
//
// Example usage:
//
//	deployed, err := repvgg.ConvertNetwork(net, repvgg.ConvertOptions{Copy: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := onnx.ExportFile("repvgg_a0.onnx", deployed, onnx.ExportOptions{}); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Inspect an exported model
//	model, err := onnx.ParseFile("repvgg_a0.onnx")
//	for _, node := range model.Graph.Nodes {
//	    fmt.Printf("Op: %s (type: %s)\n", node.Name, node.OpType)
//	}
package onnx
