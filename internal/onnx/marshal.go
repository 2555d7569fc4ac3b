package onnx

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Marshal encodes a model in protobuf wire format.
func Marshal(m *ModelProto) []byte {
	var b []byte
	b = appendVarint(b, fieldModelIRVersion, uint64(m.IRVersion))
	b = appendString(b, fieldModelProducerName, m.ProducerName)
	b = appendString(b, fieldModelProducerVersion, m.ProducerVersion)
	b = appendString(b, fieldModelDomain, m.Domain)
	if m.ModelVersion != 0 {
		b = appendVarint(b, fieldModelVersion, uint64(m.ModelVersion))
	}
	b = appendString(b, fieldModelDocString, m.DocString)
	if m.Graph != nil {
		b = appendMessage(b, fieldModelGraph, marshalGraph(m.Graph))
	}
	for _, op := range m.OpsetImport {
		var ob []byte
		ob = appendString(ob, fieldOpsetDomain, op.Domain)
		ob = appendVarint(ob, fieldOpsetVersion, uint64(op.Version))
		b = appendMessage(b, fieldModelOpsetImport, ob)
	}
	for _, e := range m.MetadataProps {
		b = appendMessage(b, fieldModelMetadataProps, marshalEntry(e))
	}
	return b
}

func marshalGraph(g *GraphProto) []byte {
	var b []byte
	for i := range g.Nodes {
		b = appendMessage(b, fieldGraphNode, marshalNode(&g.Nodes[i]))
	}
	b = appendString(b, fieldGraphName, g.Name)
	for i := range g.Initializers {
		b = appendMessage(b, fieldGraphInitializer, marshalTensor(&g.Initializers[i]))
	}
	b = appendString(b, fieldGraphDocString, g.DocString)
	for i := range g.Inputs {
		b = appendMessage(b, fieldGraphInput, marshalValueInfo(&g.Inputs[i]))
	}
	for i := range g.Outputs {
		b = appendMessage(b, fieldGraphOutput, marshalValueInfo(&g.Outputs[i]))
	}
	return b
}

func marshalNode(n *NodeProto) []byte {
	var b []byte
	for _, in := range n.Inputs {
		b = protowire.AppendTag(b, fieldNodeInput, protowire.BytesType)
		b = protowire.AppendString(b, in)
	}
	for _, out := range n.Outputs {
		b = protowire.AppendTag(b, fieldNodeOutput, protowire.BytesType)
		b = protowire.AppendString(b, out)
	}
	b = appendString(b, fieldNodeName, n.Name)
	b = appendString(b, fieldNodeOpType, n.OpType)
	for i := range n.Attributes {
		b = appendMessage(b, fieldNodeAttribute, marshalAttribute(&n.Attributes[i]))
	}
	b = appendString(b, fieldNodeDomain, n.Domain)
	return b
}

func marshalAttribute(a *AttributeProto) []byte {
	var b []byte
	b = appendString(b, fieldAttrName, a.Name)
	switch a.Type {
	case AttributeProtoFloat:
		b = protowire.AppendTag(b, fieldAttrF, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(a.F))
	case AttributeProtoInt:
		b = appendVarint(b, fieldAttrI, uint64(a.I))
	case AttributeProtoString:
		b = protowire.AppendTag(b, fieldAttrS, protowire.BytesType)
		b = protowire.AppendBytes(b, a.S)
	case AttributeProtoInts:
		for _, v := range a.Ints {
			b = appendVarint(b, fieldAttrInts, uint64(v))
		}
	}
	return appendVarint(b, fieldAttrType, uint64(a.Type))
}

func marshalTensor(t *TensorProto) []byte {
	var b []byte
	for _, d := range t.Dims {
		b = appendVarint(b, fieldTensorDims, uint64(d))
	}
	b = appendVarint(b, fieldTensorDataType, uint64(t.DataType))
	b = appendString(b, fieldTensorName, t.Name)
	b = protowire.AppendTag(b, fieldTensorRawData, protowire.BytesType)
	return protowire.AppendBytes(b, t.RawData)
}

func marshalValueInfo(v *ValueInfoProto) []byte {
	var shape []byte
	for _, d := range v.Type.Shape {
		var db []byte
		if d.DimParam != "" {
			db = appendString(db, fieldDimParam, d.DimParam)
		} else {
			db = appendVarint(db, fieldDimValue, uint64(d.DimValue))
		}
		shape = appendMessage(shape, fieldShapeDim, db)
	}

	var tt []byte
	tt = appendVarint(tt, fieldTensorTypeElemType, uint64(v.Type.ElemType))
	tt = appendMessage(tt, fieldTensorTypeShape, shape)

	var b []byte
	b = appendString(b, fieldValueInfoName, v.Name)
	return appendMessage(b, fieldValueInfoType, appendMessage(nil, fieldTypeTensorType, tt))
}

func marshalEntry(e StringStringEntry) []byte {
	var b []byte
	b = appendString(b, fieldEntryKey, e.Key)
	return appendString(b, fieldEntryValue, e.Value)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// appendString omits empty strings, matching proto3 default elision.
func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}
