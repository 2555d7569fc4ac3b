package onnx

import (
	"fmt"
	"math"
	"os"

	"google.golang.org/protobuf/encoding/protowire"
)

// ParseFile parses an ONNX model from file.
func ParseFile(path string) (*ModelProto, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data)
}

// Parse parses an ONNX model from bytes. Fields outside the modelled subset
// are skipped.
func Parse(data []byte) (*ModelProto, error) {
	m := &ModelProto{}
	if err := parseModel(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}
	return m, nil
}

// field is one decoded wire field. Varint and fixed values land in v,
// length-delimited values in b.
type field struct {
	num protowire.Number
	typ protowire.Type
	v   uint64
	b   []byte
}

func (f field) str() string { return string(f.b) }

// varints returns the field as a repeated varint, packed or not.
func (f field) varints() ([]uint64, error) {
	if f.typ == protowire.VarintType {
		return []uint64{f.v}, nil
	}
	var out []uint64
	b := f.b
	for len(b) > 0 {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		out = append(out, v)
		b = b[n:]
	}
	return out, nil
}

func walk(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.v, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f.v = uint64(v)
		case protowire.Fixed64Type:
			f.v, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.b, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func parseModel(data []byte, m *ModelProto) error {
	return walk(data, func(f field) error {
		switch f.num {
		case fieldModelIRVersion:
			m.IRVersion = int64(f.v)
		case fieldModelProducerName:
			m.ProducerName = f.str()
		case fieldModelProducerVersion:
			m.ProducerVersion = f.str()
		case fieldModelDomain:
			m.Domain = f.str()
		case fieldModelVersion:
			m.ModelVersion = int64(f.v)
		case fieldModelDocString:
			m.DocString = f.str()
		case fieldModelGraph:
			m.Graph = &GraphProto{}
			return parseGraph(f.b, m.Graph)
		case fieldModelOpsetImport:
			var op OperatorSetID
			err := walk(f.b, func(f field) error {
				switch f.num {
				case fieldOpsetDomain:
					op.Domain = f.str()
				case fieldOpsetVersion:
					op.Version = int64(f.v)
				}
				return nil
			})
			m.OpsetImport = append(m.OpsetImport, op)
			return err
		case fieldModelMetadataProps:
			var e StringStringEntry
			err := walk(f.b, func(f field) error {
				switch f.num {
				case fieldEntryKey:
					e.Key = f.str()
				case fieldEntryValue:
					e.Value = f.str()
				}
				return nil
			})
			m.MetadataProps = append(m.MetadataProps, e)
			return err
		}
		return nil
	})
}

func parseGraph(data []byte, g *GraphProto) error {
	return walk(data, func(f field) error {
		switch f.num {
		case fieldGraphNode:
			var n NodeProto
			if err := parseNode(f.b, &n); err != nil {
				return err
			}
			g.Nodes = append(g.Nodes, n)
		case fieldGraphName:
			g.Name = f.str()
		case fieldGraphInitializer:
			var t TensorProto
			if err := parseTensor(f.b, &t); err != nil {
				return err
			}
			g.Initializers = append(g.Initializers, t)
		case fieldGraphDocString:
			g.DocString = f.str()
		case fieldGraphInput, fieldGraphOutput:
			var v ValueInfoProto
			if err := parseValueInfo(f.b, &v); err != nil {
				return err
			}
			if f.num == fieldGraphInput {
				g.Inputs = append(g.Inputs, v)
			} else {
				g.Outputs = append(g.Outputs, v)
			}
		}
		return nil
	})
}

func parseNode(data []byte, n *NodeProto) error {
	return walk(data, func(f field) error {
		switch f.num {
		case fieldNodeInput:
			n.Inputs = append(n.Inputs, f.str())
		case fieldNodeOutput:
			n.Outputs = append(n.Outputs, f.str())
		case fieldNodeName:
			n.Name = f.str()
		case fieldNodeOpType:
			n.OpType = f.str()
		case fieldNodeDomain:
			n.Domain = f.str()
		case fieldNodeAttribute:
			var a AttributeProto
			if err := parseAttribute(f.b, &a); err != nil {
				return err
			}
			n.Attributes = append(n.Attributes, a)
		}
		return nil
	})
}

func parseAttribute(data []byte, a *AttributeProto) error {
	return walk(data, func(f field) error {
		switch f.num {
		case fieldAttrName:
			a.Name = f.str()
		case fieldAttrF:
			a.F = math.Float32frombits(uint32(f.v))
		case fieldAttrI:
			a.I = int64(f.v)
		case fieldAttrS:
			a.S = append([]byte(nil), f.b...)
		case fieldAttrInts:
			vs, err := f.varints()
			if err != nil {
				return err
			}
			for _, v := range vs {
				a.Ints = append(a.Ints, int64(v))
			}
		case fieldAttrType:
			a.Type = int32(f.v)
		}
		return nil
	})
}

func parseTensor(data []byte, t *TensorProto) error {
	return walk(data, func(f field) error {
		switch f.num {
		case fieldTensorDims:
			vs, err := f.varints()
			if err != nil {
				return err
			}
			for _, v := range vs {
				t.Dims = append(t.Dims, int64(v))
			}
		case fieldTensorDataType:
			t.DataType = int32(f.v)
		case fieldTensorName:
			t.Name = f.str()
		case fieldTensorRawData:
			t.RawData = append([]byte(nil), f.b...)
		}
		return nil
	})
}

func parseValueInfo(data []byte, v *ValueInfoProto) error {
	return walk(data, func(f field) error {
		switch f.num {
		case fieldValueInfoName:
			v.Name = f.str()
		case fieldValueInfoType:
			return walk(f.b, func(f field) error {
				if f.num != fieldTypeTensorType {
					return nil
				}
				return parseTensorType(f.b, &v.Type)
			})
		}
		return nil
	})
}

func parseTensorType(data []byte, tt *TensorTypeProto) error {
	return walk(data, func(f field) error {
		switch f.num {
		case fieldTensorTypeElemType:
			tt.ElemType = int32(f.v)
		case fieldTensorTypeShape:
			return walk(f.b, func(f field) error {
				if f.num != fieldShapeDim {
					return nil
				}
				var d DimensionProto
				err := walk(f.b, func(f field) error {
					switch f.num {
					case fieldDimValue:
						d.DimValue = int64(f.v)
					case fieldDimParam:
						d.DimParam = f.str()
					}
					return nil
				})
				tt.Shape = append(tt.Shape, d)
				return err
			})
		}
		return nil
	})
}
