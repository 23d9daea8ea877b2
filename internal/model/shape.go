// Package model holds the resolved, immutable view of one service: shapes
// with their references resolved, operations, and service metadata.
package model

import "sort"

// Kind is the type tag of a shape.
type Kind int

const (
	KindUnhandled Kind = iota
	KindString
	KindInteger
	KindLong
	KindFloat
	KindDouble
	KindBoolean
	KindBlob
	KindTimestamp
	KindList
	KindMap
	KindStructure
	KindEnum
)

var kindNames = [...]string{
	KindUnhandled: "unhandled",
	KindString:    "string",
	KindInteger:   "integer",
	KindLong:      "long",
	KindFloat:     "float",
	KindDouble:    "double",
	KindBoolean:   "boolean",
	KindBlob:      "blob",
	KindTimestamp: "timestamp",
	KindList:      "list",
	KindMap:       "map",
	KindStructure: "structure",
	KindEnum:      "enum",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unhandled"
}

// Numeric reports whether the kind is one of the number kinds.
func (k Kind) Numeric() bool {
	switch k {
	case KindInteger, KindLong, KindFloat, KindDouble:
		return true
	}
	return false
}

// Shape is a named schema type. Which fields are set depends on Kind:
// Element for lists, Key and Value for maps, Structure for structures and
// Enum for enums. Nested shapes are shared pointers into the service's
// shape arena, so a structure may refer to itself.
type Shape struct {
	Name string
	Kind Kind

	Element   *Shape
	Key       *Shape
	Value     *Shape
	Structure *StructureBody
	Enum      []string

	// Collection wire names, used to derive member encodings.
	Flattened  bool
	ListMember string
	MapKey     string
	MapValue   string

	Exception bool
	Streaming bool
	// RawType is the type tag as written in the document.
	RawType string
}

// StructureBody is the ordered member list of a structure.
type StructureBody struct {
	Members []*Member
	// Payload names the member carrying the raw body, if any.
	Payload string
}

// Member returns the member named name.
func (b *StructureBody) Member(name string) (*Member, bool) {
	for _, m := range b.Members {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// LocationKind says where a member travels on the wire.
type LocationKind int

const (
	LocationBody LocationKind = iota
	LocationURI
	LocationQueryString
	LocationHeader
)

func (k LocationKind) String() string {
	switch k {
	case LocationURI:
		return "uri"
	case LocationQueryString:
		return "querystring"
	case LocationHeader:
		return "header"
	default:
		return "body"
	}
}

// Location is a member's wire position and the name it travels under.
type Location struct {
	Kind LocationKind
	Name string
}

// EncodingKind is the serialization style of a collection member.
type EncodingKind int

const (
	EncodingDefault EncodingKind = iota
	EncodingFlatList
	EncodingList
	EncodingMap
	EncodingFlatMap
)

func (k EncodingKind) String() string {
	switch k {
	case EncodingFlatList:
		return "flatList"
	case EncodingList:
		return "list"
	case EncodingMap:
		return "map"
	case EncodingFlatMap:
		return "flatMap"
	default:
		return "default"
	}
}

// Encoding describes how a list or map member is serialized. Member is set
// for EncodingList; Entry for EncodingMap; Key and Value for both map kinds.
type Encoding struct {
	Kind   EncodingKind
	Member string
	Entry  string
	Key    string
	Value  string
}

// Member is one field of a structure.
type Member struct {
	Name     string
	Required bool
	Shape    *Shape
	// Location is nil when the schema gives no location name.
	Location  *Location
	Encoding  *Encoding
	Streaming bool
	Doc       []string
}

// WireLocation returns the member's location, defaulting to the body under
// the member's own name.
func (m *Member) WireLocation() Location {
	if m.Location != nil {
		return *m.Location
	}
	return Location{Kind: LocationBody, Name: m.Name}
}

// WireName is the key the member is serialized under.
func (m *Member) WireName() string {
	if m.Location != nil && m.Location.Name != "" {
		return m.Location.Name
	}
	return m.Name
}

// Operation is one API call.
type Operation struct {
	Name         string
	HTTPMethod   string
	Path         string
	ResponseCode int
	Input        *Shape
	Output       *Shape
	Errors       []*Shape
	Doc          []string
}

// ProtocolVersion is the major/minor pair of a versioned protocol.
type ProtocolVersion struct {
	Major int
	Minor int
}

// Protocol is the wire protocol of a service.
type Protocol struct {
	Kind    string
	Version *ProtocolVersion
}

// Endpoint is a region-specific hostname override.
type Endpoint struct {
	Region   string
	Hostname string
}

// ServiceModel is the root of a resolved service.
type ServiceModel struct {
	Name              string
	Description       []string
	EndpointPrefix    string
	APIVersion        string
	TargetPrefix      string
	SignatureVersion  string
	Protocol          Protocol
	ServiceEndpoints  map[string]string
	PartitionEndpoint string
	// ErrorShapeNames is sorted.
	ErrorShapeNames []string
	Operations      []*Operation
	// Shapes holds every shape reachable from the operations, sorted by name.
	Shapes []*Shape

	arena     map[string]*Shape
	errorSet  map[string]bool
	reference map[string]bool
}

// IsErrorShape reports whether name is one of the service's error shapes.
func (s *ServiceModel) IsErrorShape(name string) bool { return s.errorSet[name] }

// IsReferenceType reports whether the structure named name refers to itself
// and so must be handled through a pointer.
func (s *ServiceModel) IsReferenceType(name string) bool { return s.reference[name] }

// SortedEndpoints returns the endpoint overrides ordered by region.
func (s *ServiceModel) SortedEndpoints() []Endpoint {
	out := make([]Endpoint, 0, len(s.ServiceEndpoints))
	for region, host := range s.ServiceEndpoints {
		out = append(out, Endpoint{Region: region, Hostname: host})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Region < out[j].Region })
	return out
}

// ErrorShapes returns the error shapes in name order.
func (s *ServiceModel) ErrorShapes() []*Shape {
	out := make([]*Shape, 0, len(s.ErrorShapeNames))
	for _, name := range s.ErrorShapeNames {
		if sh, ok := s.arena[name]; ok {
			out = append(out, sh)
		}
	}
	return out
}

// Lookup returns the shape named name, reachable or not.
func (s *ServiceModel) Lookup(name string) (*Shape, bool) {
	sh, ok := s.arena[name]
	return sh, ok
}
