package spec

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is a parsed API description: service metadata, operations, and the
// shape table. Member and operation order follow the source document.
type Document struct {
	Metadata   Metadata      `yaml:"metadata"`
	Operations OperationList `yaml:"operations"`
	Shapes     ShapeTable    `yaml:"shapes"`
}

// Metadata describes the service as a whole.
type Metadata struct {
	APIVersion          string `yaml:"apiVersion"`
	EndpointPrefix      string `yaml:"endpointPrefix"`
	JSONVersion         string `yaml:"jsonVersion"`
	Protocol            string `yaml:"protocol"`
	ServiceAbbreviation string `yaml:"serviceAbbreviation"`
	ServiceFullName     string `yaml:"serviceFullName"`
	ServiceID           string `yaml:"serviceId"`
	SignatureVersion    string `yaml:"signatureVersion"`
	TargetPrefix        string `yaml:"targetPrefix"`
	UID                 string `yaml:"uid"`
}

// Operation is one API call as written in the document.
type Operation struct {
	Name   string      `yaml:"name"`
	HTTP   HTTPBinding `yaml:"http"`
	Input  *ShapeRef   `yaml:"input"`
	Output *ShapeRef   `yaml:"output"`
	Errors []ShapeRef  `yaml:"errors"`
}

// HTTPBinding is the transport binding of an operation.
type HTTPBinding struct {
	Method       string `yaml:"method"`
	RequestURI   string `yaml:"requestUri"`
	ResponseCode int    `yaml:"responseCode"`
}

// ShapeRef points at a shape by name and carries wire metadata for the
// position it appears in.
type ShapeRef struct {
	Shape        string `yaml:"shape"`
	Location     string `yaml:"location"`
	LocationName string `yaml:"locationName"`
	Streaming    bool   `yaml:"streaming"`
	Flattened    bool   `yaml:"flattened"`
}

// ShapeDef is a single entry in the shape table.
type ShapeDef struct {
	Name      string     `yaml:"-"`
	Type      string     `yaml:"type"`
	Members   MemberList `yaml:"members"`
	Required  []string   `yaml:"required"`
	Payload   string     `yaml:"payload"`
	Member    *ShapeRef  `yaml:"member"`
	Key       *ShapeRef  `yaml:"key"`
	Value     *ShapeRef  `yaml:"value"`
	Enum      []string   `yaml:"enum"`
	Flattened bool       `yaml:"flattened"`
	Exception bool       `yaml:"exception"`
	Fault     bool       `yaml:"fault"`
	Streaming bool       `yaml:"streaming"`

	// Malformed is set when the entry could not be decoded; such shapes are
	// kept so a single bad entry does not fail the whole document.
	Malformed error `yaml:"-"`
}

// MemberDef is one named member of a structure shape.
type MemberDef struct {
	Name string
	ShapeRef
}

// MemberList preserves the document order of structure members.
type MemberList []MemberDef

// UnmarshalYAML decodes a members mapping in document order.
func (m *MemberList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("members: expected mapping, got %s", kindName(value.Kind))
	}
	out := make(MemberList, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		name := value.Content[i].Value
		var ref ShapeRef
		if err := value.Content[i+1].Decode(&ref); err != nil {
			return fmt.Errorf("member %q: %w", name, err)
		}
		out = append(out, MemberDef{Name: name, ShapeRef: ref})
	}
	*m = out
	return nil
}

// OperationList preserves the document order of operations.
type OperationList []Operation

// UnmarshalYAML decodes the operations mapping in document order. The
// mapping key is used when an operation omits its name.
func (l *OperationList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("operations: expected mapping, got %s", kindName(value.Kind))
	}
	out := make(OperationList, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		key := value.Content[i].Value
		var op Operation
		if err := value.Content[i+1].Decode(&op); err != nil {
			return fmt.Errorf("operation %q: %w", key, err)
		}
		if strings.TrimSpace(op.Name) == "" {
			op.Name = key
		}
		out = append(out, op)
	}
	*l = out
	return nil
}

// ShapeTable is the name-indexed shape table. Names keeps document order.
type ShapeTable struct {
	Names []string
	Defs  map[string]*ShapeDef
}

// UnmarshalYAML decodes each shape independently. An entry that fails to
// decode is recorded with Malformed set instead of failing the document.
func (t *ShapeTable) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("shapes: expected mapping, got %s", kindName(value.Kind))
	}
	t.Names = make([]string, 0, len(value.Content)/2)
	t.Defs = make(map[string]*ShapeDef, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		name := value.Content[i].Value
		def := &ShapeDef{}
		if err := value.Content[i+1].Decode(def); err != nil {
			def = &ShapeDef{Malformed: err}
		}
		def.Name = name
		if _, dup := t.Defs[name]; !dup {
			t.Names = append(t.Names, name)
		}
		t.Defs[name] = def
	}
	return nil
}

// Add registers def under its name, appending to the table order.
func (t *ShapeTable) Add(def *ShapeDef) {
	if t.Defs == nil {
		t.Defs = make(map[string]*ShapeDef)
	}
	if _, dup := t.Defs[def.Name]; !dup {
		t.Names = append(t.Names, def.Name)
	}
	t.Defs[def.Name] = def
}

// Lookup returns the shape named name.
func (t *ShapeTable) Lookup(name string) (*ShapeDef, bool) {
	def, ok := t.Defs[name]
	return def, ok
}

// ParseDocument decodes an API description. JSON input is accepted as-is
// since it is a subset of YAML.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse api document: %w", err)
	}
	if len(doc.Shapes.Defs) == 0 && len(doc.Operations) == 0 {
		return nil, fmt.Errorf("parse api document: no operations or shapes")
	}
	return &doc, nil
}

// ServiceName picks the display name of the service, preferring the
// service id over the abbreviation and full name, and dropping the vendor
// prefix.
func (m Metadata) ServiceName() string {
	name := m.ServiceID
	if name == "" {
		name = m.ServiceAbbreviation
	}
	if name == "" {
		name = m.ServiceFullName
	}
	if name == "" {
		name = m.EndpointPrefix
	}
	for _, prefix := range []string{"Amazon", "AWS"} {
		if trimmed := strings.TrimSpace(strings.TrimPrefix(name, prefix)); trimmed != name && trimmed != "" {
			name = trimmed
			break
		}
	}
	return strings.TrimSpace(name)
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}
