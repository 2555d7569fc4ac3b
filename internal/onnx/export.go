package onnx

import (
	"errors"
	"fmt"
	"os"

	"github.com/born-ml/repvgg/internal/repvgg"
)

// Export defaults.
const (
	IRVersion       = 8
	OpsetVersion    = 13
	ProducerName    = "repvgg"
	ProducerVersion = "0.3.0"
)

// ErrNotDeployed is returned when exporting a network that still has
// training-mode blocks.
var ErrNotDeployed = errors.New("network is not fully deployed")

// ExportOptions configures Export.
type ExportOptions struct {
	// Height and Width fix the spatial input size. Zero leaves the
	// dimension symbolic.
	Height int
	Width  int

	// GraphName defaults to the network config name or "repvgg".
	GraphName string
}

// Export builds the ONNX model of a deployed network. Every block becomes
// Conv (+ SE gate) + Relu; the head is GlobalAveragePool, Flatten and Gemm.
func Export(net *repvgg.Network, opts ExportOptions) (*ModelProto, error) {
	if mode := net.Mode(); mode != repvgg.Deployed {
		return nil, fmt.Errorf("%w: mode is %s", ErrNotDeployed, mode)
	}
	cfg := net.Config()

	g := &graphBuilder{}
	cur := "input"
	names := net.BlockNames()
	for i, b := range net.Blocks() {
		p := names[i]
		conv := b.Convs()[0]
		co := conv.Options()
		k := int64(conv.KernelSize())
		cur = g.node("Conv", p+"/conv", []string{cur, p + ".rbr_reparam.weight", p + ".rbr_reparam.bias"},
			ints("kernel_shape", k, k),
			ints("strides", int64(co.Stride), int64(co.Stride)),
			ints("pads", int64(co.Padding), int64(co.Padding), int64(co.Padding), int64(co.Padding)),
			ints("dilations", int64(co.Dilation), int64(co.Dilation)),
			integer("group", int64(co.Groups)),
		)
		if b.SE() != nil {
			cur = g.squeezeExcite(p, cur)
		}
		cur = g.node("Relu", p+"/relu", []string{cur})
	}

	cur = g.node("GlobalAveragePool", "pool", []string{cur})
	cur = g.node("Flatten", "flatten", []string{cur}, integer("axis", 1))
	g.node("Gemm", "logits", []string{cur, "linear.weight", "linear.bias"},
		float("alpha", 1), float("beta", 1), integer("transB", 1))

	graphName := opts.GraphName
	if graphName == "" {
		graphName = cfg.Name
	}
	if graphName == "" {
		graphName = "repvgg"
	}

	graph := &GraphProto{
		Name:  graphName,
		Nodes: g.nodes,
		Inputs: []ValueInfoProto{{
			Name: "input",
			Type: TensorTypeProto{ElemType: TensorProtoFloat, Shape: []DimensionProto{
				{DimParam: "batch"},
				{DimValue: int64(cfg.InChannels)},
				spatial(opts.Height, "height"),
				spatial(opts.Width, "width"),
			}},
		}},
		Outputs: []ValueInfoProto{{
			Name: "logits",
			Type: TensorTypeProto{ElemType: TensorProtoFloat, Shape: []DimensionProto{
				{DimParam: "batch"},
				{DimValue: int64(cfg.NumClasses)},
			}},
		}},
	}

	for _, np := range net.NamedParameters() {
		t := np.Param.Tensor()
		dims := make([]int64, len(t.Shape()))
		for i, d := range t.Shape() {
			dims[i] = int64(d)
		}
		graph.Initializers = append(graph.Initializers, TensorProto{
			Name:     np.Name,
			DataType: TensorProtoFloat,
			Dims:     dims,
			RawData:  t.Bytes(),
		})
	}

	return &ModelProto{
		IRVersion:       IRVersion,
		OpsetImport:     []OperatorSetID{{Version: OpsetVersion}},
		ProducerName:    ProducerName,
		ProducerVersion: ProducerVersion,
		Graph:           graph,
		MetadataProps: []StringStringEntry{
			{Key: "architecture", Value: graphName},
			{Key: "num_classes", Value: fmt.Sprint(cfg.NumClasses)},
		},
	}, nil
}

// ExportFile writes the ONNX encoding of a deployed network to path.
func ExportFile(path string, net *repvgg.Network, opts ExportOptions) error {
	m, err := Export(net, opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, Marshal(m), 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

type graphBuilder struct {
	nodes []NodeProto
}

// node appends a single-output node named name and returns its output.
func (g *graphBuilder) node(op, name string, inputs []string, attrs ...AttributeProto) string {
	g.nodes = append(g.nodes, NodeProto{
		Name:       name,
		OpType:     op,
		Inputs:     inputs,
		Outputs:    []string{name},
		Attributes: attrs,
	})
	return name
}

func (g *graphBuilder) squeezeExcite(prefix, x string) string {
	s := g.node("GlobalAveragePool", prefix+"/se/pool", []string{x})
	s = g.node("Conv", prefix+"/se/down", []string{s, prefix + ".se.down.weight", prefix + ".se.down.bias"},
		ints("kernel_shape", 1, 1))
	s = g.node("Relu", prefix+"/se/relu", []string{s})
	s = g.node("Conv", prefix+"/se/up", []string{s, prefix + ".se.up.weight", prefix + ".se.up.bias"},
		ints("kernel_shape", 1, 1))
	s = g.node("Sigmoid", prefix+"/se/gate", []string{s})
	return g.node("Mul", prefix+"/se/out", []string{x, s})
}

func spatial(v int, param string) DimensionProto {
	if v > 0 {
		return DimensionProto{DimValue: int64(v)}
	}
	return DimensionProto{DimParam: param}
}

func ints(name string, v ...int64) AttributeProto {
	return AttributeProto{Name: name, Type: AttributeProtoInts, Ints: v}
}

func integer(name string, v int64) AttributeProto {
	return AttributeProto{Name: name, Type: AttributeProtoInt, I: v}
}

func float(name string, v float32) AttributeProto {
	return AttributeProto{Name: name, Type: AttributeProtoFloat, F: v}
}
