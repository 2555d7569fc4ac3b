package onnx

// ONNX protobuf data structures (subset).

// ModelProto represents an ONNX model.
type ModelProto struct {
	IRVersion       int64               // IR version (e.g., 7, 8, 9)
	OpsetImport     []OperatorSetID     // Opset version(s)
	ProducerName    string              // Framework name
	ProducerVersion string              // Framework version
	Domain          string              // Model domain
	ModelVersion    int64               // Model version number
	DocString       string              // Model description
	Graph           *GraphProto         // Computation graph
	MetadataProps   []StringStringEntry // Key-value metadata
}

// GraphProto represents the computation graph.
type GraphProto struct {
	Name         string           // Graph name
	Nodes        []NodeProto      // Operation nodes
	Inputs       []ValueInfoProto // Graph inputs
	Outputs      []ValueInfoProto // Graph outputs
	Initializers []TensorProto    // Weight tensors
	DocString    string           // Graph description
}

// NodeProto represents a single operation.
type NodeProto struct {
	Name       string           // Node name (optional)
	OpType     string           // Operation type (e.g., "Conv", "Relu")
	Inputs     []string         // Input tensor names
	Outputs    []string         // Output tensor names
	Attributes []AttributeProto // Operation attributes
	Domain     string           // Custom domain (empty for default)
}

// TensorProto represents a tensor (weights/initializers).
type TensorProto struct {
	Name     string  // Tensor name
	DataType int32   // Element data type
	Dims     []int64 // Tensor shape
	RawData  []byte  // Raw little-endian data
}

// ValueInfoProto describes input/output tensor specifications.
type ValueInfoProto struct {
	Name string          // Tensor name
	Type TensorTypeProto // Tensor type information
}

// TensorTypeProto describes tensor shape and element type.
type TensorTypeProto struct {
	ElemType int32            // Element data type
	Shape    []DimensionProto // Dimensions
}

// DimensionProto describes a single dimension.
type DimensionProto struct {
	DimValue int64  // Static dimension value (e.g., 224 for image size)
	DimParam string // Dynamic dimension name (e.g., "batch_size")
}

// AttributeProto represents node attributes.
type AttributeProto struct {
	Name string  // Attribute name
	Type int32   // Attribute type
	F    float32 // FLOAT value
	I    int64   // INT value
	S    []byte  // STRING value
	Ints []int64 // INTS array
}

// OperatorSetID identifies opset version.
type OperatorSetID struct {
	Domain  string // Operator domain (empty for default)
	Version int64  // Opset version number
}

// StringStringEntry represents key-value metadata.
type StringStringEntry struct {
	Key   string
	Value string
}

// Attribute returns the named attribute of a node.
func (n *NodeProto) Attribute(name string) (AttributeProto, bool) {
	for _, a := range n.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return AttributeProto{}, false
}

// Initializer returns the named initializer of a graph.
func (g *GraphProto) Initializer(name string) (*TensorProto, bool) {
	for i := range g.Initializers {
		if g.Initializers[i].Name == name {
			return &g.Initializers[i], true
		}
	}
	return nil, false
}

// ONNX data types (TensorProto.DataType).
const (
	TensorProtoUndefined = 0
	TensorProtoFloat     = 1 // float32
)

// ONNX attribute types (AttributeProto.Type).
const (
	AttributeProtoUndefined = 0
	AttributeProtoFloat     = 1 // FLOAT
	AttributeProtoInt       = 2 // INT
	AttributeProtoString    = 3 // STRING
	AttributeProtoInts      = 7 // INTS
)

// Field numbers from onnx.proto.
const (
	fieldModelIRVersion       = 1
	fieldModelProducerName    = 2
	fieldModelProducerVersion = 3
	fieldModelDomain          = 4
	fieldModelVersion         = 5
	fieldModelDocString       = 6
	fieldModelGraph           = 7
	fieldModelOpsetImport     = 8
	fieldModelMetadataProps   = 14

	fieldOpsetDomain  = 1
	fieldOpsetVersion = 2

	fieldGraphNode        = 1
	fieldGraphName        = 2
	fieldGraphInitializer = 5
	fieldGraphDocString   = 10
	fieldGraphInput       = 11
	fieldGraphOutput      = 12

	fieldNodeInput     = 1
	fieldNodeOutput    = 2
	fieldNodeName      = 3
	fieldNodeOpType    = 4
	fieldNodeAttribute = 5
	fieldNodeDomain    = 7

	fieldAttrName = 1
	fieldAttrF    = 2
	fieldAttrI    = 3
	fieldAttrS    = 4
	fieldAttrInts = 8
	fieldAttrType = 20

	fieldTensorDims     = 1
	fieldTensorDataType = 2
	fieldTensorName     = 8
	fieldTensorRawData  = 9

	fieldValueInfoName = 1
	fieldValueInfoType = 2

	fieldTypeTensorType = 1

	fieldTensorTypeElemType = 1
	fieldTensorTypeShape    = 2

	fieldShapeDim = 1

	fieldDimValue = 1
	fieldDimParam = 2

	fieldEntryKey   = 1
	fieldEntryValue = 2
)
