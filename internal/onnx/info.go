package onnx

import "slices"

// ModelInfo summarizes an ONNX model without touching its weights.
type ModelInfo struct {
	ProducerName    string
	ProducerVersion string
	IRVersion       int64
	OpsetVersion    int64
	GraphName       string
	InputNames      []string
	OutputNames     []string
	Operators       []string // Distinct op types, sorted
	NumNodes        int
	NumInitializers int
	Metadata        map[string]string
}

// Info extracts the model summary.
func (m *ModelProto) Info() *ModelInfo {
	info := &ModelInfo{
		ProducerName:    m.ProducerName,
		ProducerVersion: m.ProducerVersion,
		IRVersion:       m.IRVersion,
		Metadata:        make(map[string]string, len(m.MetadataProps)),
	}
	for _, op := range m.OpsetImport {
		if op.Domain == "" || op.Domain == "ai.onnx" {
			info.OpsetVersion = op.Version
		}
	}
	for _, p := range m.MetadataProps {
		info.Metadata[p.Key] = p.Value
	}

	g := m.Graph
	if g == nil {
		return info
	}
	info.GraphName = g.Name
	info.NumNodes = len(g.Nodes)
	info.NumInitializers = len(g.Initializers)
	for _, in := range g.Inputs {
		info.InputNames = append(info.InputNames, in.Name)
	}
	for _, out := range g.Outputs {
		info.OutputNames = append(info.OutputNames, out.Name)
	}
	for _, n := range g.Nodes {
		if !slices.Contains(info.Operators, n.OpType) {
			info.Operators = append(info.Operators, n.OpType)
		}
	}
	slices.Sort(info.Operators)
	return info
}

// GetModelInfo parses the file at path and returns its summary.
func GetModelInfo(path string) (*ModelInfo, error) {
	m, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return m.Info(), nil
}
