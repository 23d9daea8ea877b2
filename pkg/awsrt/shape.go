package awsrt

// MemberType is the type discriminator of a structure member.
type MemberType string

const (
	TypeString    MemberType = "string"
	TypeInteger   MemberType = "integer"
	TypeLong      MemberType = "long"
	TypeFloat     MemberType = "float"
	TypeDouble    MemberType = "double"
	TypeBoolean   MemberType = "boolean"
	TypeBlob      MemberType = "blob"
	TypeTimestamp MemberType = "timestamp"
	TypeList      MemberType = "list"
	TypeMap       MemberType = "map"
	TypeStructure MemberType = "structure"
	TypeEnum      MemberType = "enum"
	TypeUnhandled MemberType = "unhandled"
)

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

// Location is a member's wire position and the name it travels under. The
// zero value means the body, under the member's label.
type Location struct {
	Kind LocationKind
	Name string
}

func URI(name string) Location         { return Location{Kind: LocationURI, Name: name} }
func QueryString(name string) Location { return Location{Kind: LocationQueryString, Name: name} }
func Header(name string) Location      { return Location{Kind: LocationHeader, Name: name} }
func Body(name string) Location        { return Location{Kind: LocationBody, Name: name} }

// EncodingKind is the serialization style of a collection.
type EncodingKind int

const (
	EncodingDefault EncodingKind = iota
	EncodingFlatList
	EncodingList
	EncodingMap
	EncodingFlatMap
)

// Encoding describes how a list or map member is serialized.
type Encoding struct {
	Kind   EncodingKind
	Member string
	Entry  string
	Key    string
	Value  string
}

func DefaultEncoding() Encoding           { return Encoding{} }
func FlatList() Encoding                  { return Encoding{Kind: EncodingFlatList} }
func ListEncoding(member string) Encoding { return Encoding{Kind: EncodingList, Member: member} }
func FlatMap(key, value string) Encoding  { return Encoding{Kind: EncodingFlatMap, Key: key, Value: value} }

func MapEncoding(entry, key, value string) Encoding {
	return Encoding{Kind: EncodingMap, Entry: entry, Key: key, Value: value}
}

// ShapeMember is the wire contract of one structure member.
type ShapeMember struct {
	Label     string
	Location  Location
	Required  bool
	Type      MemberType
	Encoding  Encoding
	Streaming bool
}

// WireName is the name the member is serialized under.
func (m ShapeMember) WireName() string {
	if m.Location.Name != "" {
		return m.Location.Name
	}
	return m.Label
}

// Shape is implemented by every generated structure.
type Shape interface {
	ShapeMembers() []ShapeMember
}

// PayloadShape is implemented by structures that send one member as the
// raw body.
type PayloadShape interface {
	Shape
	PayloadPath() string
}

// MembersAt returns the members of s with the given location kind, in
// declaration order.
func MembersAt(s Shape, kind LocationKind) []ShapeMember {
	var out []ShapeMember
	for _, m := range s.ShapeMembers() {
		if m.Location.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}
