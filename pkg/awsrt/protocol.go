package awsrt

import "fmt"

// ProtocolType names a service wire protocol.
type ProtocolType string

const (
	ProtocolJSON     ProtocolType = "json"
	ProtocolRESTJSON ProtocolType = "rest-json"
	ProtocolRESTXML  ProtocolType = "rest-xml"
	ProtocolQuery    ProtocolType = "query"
	ProtocolEC2      ProtocolType = "ec2"
)

// ProtocolVersion is the major/minor pair of a versioned protocol.
type ProtocolVersion struct {
	Major int
	Minor int
}

func (v ProtocolVersion) String() string { return fmt.Sprintf("%d.%d", v.Major, v.Minor) }

// ServiceProtocol is a protocol with its optional version.
type ServiceProtocol struct {
	Type    ProtocolType
	Version *ProtocolVersion
}

func (p ServiceProtocol) String() string {
	if p.Version == nil {
		return string(p.Type)
	}
	return string(p.Type) + "/" + p.Version.String()
}

// ContentType is the request content type the protocol uses.
func (p ServiceProtocol) ContentType() string {
	switch p.Type {
	case ProtocolJSON:
		if p.Version != nil {
			return "application/x-amz-json-" + p.Version.String()
		}
		return "application/x-amz-json-1.0"
	case ProtocolRESTJSON:
		return "application/json"
	case ProtocolRESTXML:
		return "application/xml"
	default:
		return "application/x-www-form-urlencoded; charset=utf-8"
	}
}
