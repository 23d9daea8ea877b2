package model

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/awsgen/internal/spec"
)

const fixture = `{
  "metadata": {
    "apiVersion": "2012-11-05",
    "endpointPrefix": "queue",
    "jsonVersion": "1.0",
    "protocol": "json",
    "serviceId": "Queue",
    "targetPrefix": "Queue_20121105"
  },
  "operations": {
    "SendMessage": {
      "http": {"method": "post", "requestUri": "/"},
      "input": {"shape": "SendMessageRequest"},
      "output": {"shape": "SendMessageResult"},
      "errors": [{"shape": "QueueDoesNotExist"}, {"shape": "InvalidInput"}]
    },
    "Ping": {"http": {"method": "GET", "requestUri": "/ping"}}
  },
  "shapes": {
    "SendMessageRequest": {
      "type": "structure",
      "required": ["QueueUrl", "Body"],
      "payload": "Body",
      "members": {
        "QueueUrl": {"shape": "String", "location": "uri", "locationName": "queue"},
        "Body": {"shape": "Blob", "streaming": true},
        "Trace": {"shape": "String", "locationName": "X-Trace"},
        "Token": {"shape": "String", "location": "headers", "locationName": "x-token"},
        "Region": {"shape": "String", "location": "somewhere", "locationName": "r"},
        "Attributes": {"shape": "AttributeMap"},
        "Flat": {"shape": "FlatAttributeMap"},
        "Tags": {"shape": "TagList"},
        "FlatTags": {"shape": "FlatTagList"},
        "Names": {"shape": "NameList"},
        "Priority": {"shape": "Priority"},
        "Node": {"shape": "Node"}
      }
    },
    "SendMessageResult": {
      "type": "structure",
      "members": {"MessageId": {"shape": "String"}}
    },
    "AttributeMap": {
      "type": "map",
      "key": {"shape": "String", "locationName": "Name"},
      "value": {"shape": "String", "locationName": "Value"}
    },
    "FlatAttributeMap": {
      "type": "map",
      "flattened": true,
      "key": {"shape": "String"},
      "value": {"shape": "String"}
    },
    "TagList": {"type": "list", "member": {"shape": "String", "locationName": "Tag"}},
    "FlatTagList": {"type": "list", "flattened": true, "member": {"shape": "String"}},
    "NameList": {"type": "list", "member": {"shape": "String"}},
    "Priority": {"type": "string", "enum": ["HIGH", "low", "2", "HIGH"]},
    "Node": {
      "type": "structure",
      "members": {"Next": {"shape": "Node"}, "Value": {"shape": "String"}}
    },
    "Tree": {
      "type": "structure",
      "members": {"Children": {"shape": "TreeList"}}
    },
    "TreeList": {"type": "list", "member": {"shape": "Tree"}},
    "Ping": {"type": "structure", "members": {"Pong": {"shape": "Pong"}}},
    "Pong": {"type": "structure", "members": {"Ping": {"shape": "Ping"}}},
    "QueueDoesNotExist": {"type": "structure", "members": {"message": {"shape": "String"}}},
    "InvalidInput": {"type": "structure", "members": {}},
    "Throttled": {"type": "structure", "exception": true, "members": {}},
    "Weird": {"type": "document"},
    "Broken": "nope",
    "Blob": {"type": "blob"},
    "String": {"type": "string"}
  }
}`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func buildFixture(t *testing.T, opts ...Option) *ServiceModel {
	t.Helper()
	doc, err := spec.ParseDocument([]byte(fixture))
	require.NoError(t, err)
	svc, err := Build(doc, append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)
	return svc
}

func member(t *testing.T, svc *ServiceModel, shape, name string) *Member {
	t.Helper()
	sh, ok := svc.Lookup(shape)
	require.True(t, ok, "shape %s", shape)
	require.NotNil(t, sh.Structure, "shape %s is not a structure", shape)
	m, ok := sh.Structure.Member(name)
	require.True(t, ok, "member %s.%s", shape, name)
	return m
}

func TestBuild_Metadata(t *testing.T) {
	t.Parallel()
	svc := buildFixture(t)

	assert.Equal(t, "Queue", svc.Name)
	assert.Equal(t, "queue", svc.EndpointPrefix)
	assert.Equal(t, "2012-11-05", svc.APIVersion)
	assert.Equal(t, "Queue_20121105", svc.TargetPrefix)
	assert.Equal(t, Protocol{Kind: "json", Version: &ProtocolVersion{Major: 1, Minor: 0}}, svc.Protocol)
}

func TestBuild_Operations(t *testing.T) {
	t.Parallel()
	svc := buildFixture(t)

	require.Len(t, svc.Operations, 2)
	send, ping := svc.Operations[0], svc.Operations[1]
	assert.Equal(t, "SendMessage", send.Name)
	assert.Equal(t, "POST", send.HTTPMethod)
	assert.Equal(t, "SendMessageRequest", send.Input.Name)
	assert.Equal(t, "SendMessageResult", send.Output.Name)
	require.Len(t, send.Errors, 2)

	assert.Equal(t, "Ping", ping.Name)
	assert.Nil(t, ping.Input)
	assert.Nil(t, ping.Output)
	assert.Equal(t, "/ping", ping.Path)
}

func TestBuild_Locations(t *testing.T) {
	t.Parallel()
	svc := buildFixture(t)

	uri := member(t, svc, "SendMessageRequest", "QueueUrl")
	assert.Equal(t, &Location{Kind: LocationURI, Name: "queue"}, uri.Location)
	assert.Equal(t, "queue", uri.WireName())

	noLocation := member(t, svc, "SendMessageRequest", "Attributes")
	assert.Nil(t, noLocation.Location)
	assert.Equal(t, Location{Kind: LocationBody, Name: "Attributes"}, noLocation.WireLocation())

	nameOnly := member(t, svc, "SendMessageRequest", "Trace")
	assert.Equal(t, &Location{Kind: LocationBody, Name: "X-Trace"}, nameOnly.Location)

	header := member(t, svc, "SendMessageRequest", "Token")
	assert.Equal(t, LocationHeader, header.Location.Kind)

	unknown := member(t, svc, "SendMessageRequest", "Region")
	assert.Equal(t, LocationBody, unknown.Location.Kind)
}

func TestBuild_Encodings(t *testing.T) {
	t.Parallel()
	svc := buildFixture(t)

	assert.Equal(t, &Encoding{Kind: EncodingList, Member: "Tag"}, member(t, svc, "SendMessageRequest", "Tags").Encoding)
	assert.Equal(t, &Encoding{Kind: EncodingList, Member: "member"}, member(t, svc, "SendMessageRequest", "Names").Encoding)
	assert.Equal(t, &Encoding{Kind: EncodingFlatList}, member(t, svc, "SendMessageRequest", "FlatTags").Encoding)
	assert.Equal(t, &Encoding{Kind: EncodingMap, Entry: "entry", Key: "Name", Value: "Value"},
		member(t, svc, "SendMessageRequest", "Attributes").Encoding)
	assert.Equal(t, &Encoding{Kind: EncodingFlatMap, Key: "key", Value: "value"},
		member(t, svc, "SendMessageRequest", "Flat").Encoding)
	assert.Nil(t, member(t, svc, "SendMessageRequest", "QueueUrl").Encoding)
}

func TestBuild_StructureDetails(t *testing.T) {
	t.Parallel()
	svc := buildFixture(t)

	req, _ := svc.Lookup("SendMessageRequest")
	assert.Equal(t, "Body", req.Structure.Payload)
	var names []string
	for _, m := range req.Structure.Members {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"QueueUrl", "Body", "Trace", "Token", "Region", "Attributes", "Flat", "Tags", "FlatTags", "Names", "Priority", "Node"}, names)

	assert.True(t, member(t, svc, "SendMessageRequest", "QueueUrl").Required)
	assert.True(t, member(t, svc, "SendMessageRequest", "Body").Required)
	assert.False(t, member(t, svc, "SendMessageRequest", "Trace").Required)
	assert.True(t, member(t, svc, "SendMessageRequest", "Body").Streaming)
}

func TestBuild_EnumOrderPreserved(t *testing.T) {
	t.Parallel()
	svc := buildFixture(t)

	prio, ok := svc.Lookup("Priority")
	require.True(t, ok)
	assert.Equal(t, KindEnum, prio.Kind)
	assert.Equal(t, []string{"HIGH", "low", "2", "HIGH"}, prio.Enum)
}

func TestBuild_UnhandledShapes(t *testing.T) {
	t.Parallel()
	svc := buildFixture(t)

	weird, _ := svc.Lookup("Weird")
	assert.Equal(t, KindUnhandled, weird.Kind)
	assert.Equal(t, "document", weird.RawType)
	broken, _ := svc.Lookup("Broken")
	assert.Equal(t, KindUnhandled, broken.Kind)
}

func TestBuild_ErrorShapes(t *testing.T) {
	t.Parallel()
	svc := buildFixture(t)

	assert.Equal(t, []string{"InvalidInput", "QueueDoesNotExist", "Throttled"}, svc.ErrorShapeNames)
	assert.True(t, svc.IsErrorShape("Throttled"))
	assert.False(t, svc.IsErrorShape("SendMessageRequest"))
	require.Len(t, svc.ErrorShapes(), 3)
	assert.Equal(t, "InvalidInput", svc.ErrorShapes()[0].Name)
}

func TestBuild_ReachableShapesSorted(t *testing.T) {
	t.Parallel()
	svc := buildFixture(t)

	var names []string
	for _, sh := range svc.Shapes {
		names = append(names, sh.Name)
	}
	assert.Equal(t, []string{
		"AttributeMap", "Blob", "FlatAttributeMap", "FlatTagList", "InvalidInput",
		"NameList", "Node", "Priority", "QueueDoesNotExist", "SendMessageRequest",
		"SendMessageResult", "String", "TagList",
	}, names)
}

func TestBuild_Recursion(t *testing.T) {
	t.Parallel()
	svc := buildFixture(t)

	assert.True(t, svc.IsReferenceType("Node"), "direct self member")
	assert.True(t, svc.IsReferenceType("Tree"), "list of self")
	assert.False(t, svc.IsReferenceType("SendMessageRequest"))
	// Two-hop cycles are outside the single-level check.
	assert.False(t, svc.IsReferenceType("Ping"))
	assert.False(t, svc.IsReferenceType("Pong"))

	node, _ := svc.Lookup("Node")
	assert.Same(t, node, member(t, svc, "Node", "Next").Shape)
}

func TestBuild_UnresolvedReference(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"member": `{"metadata": {"serviceId": "X"}, "operations": {}, "shapes": {
			"S": {"type": "structure", "members": {"M": {"shape": "Missing"}}}}}`,
		"operation": `{"metadata": {"serviceId": "X"}, "operations": {"Op": {"input": {"shape": "Missing"}}},
			"shapes": {"S": {"type": "string"}}}`,
		"list": `{"metadata": {"serviceId": "X"}, "operations": {}, "shapes": {
			"L": {"type": "list", "member": {"shape": "Missing"}}}}`,
	}
	for name, src := range cases {
		doc, err := spec.ParseDocument([]byte(src))
		require.NoError(t, err, name)
		_, err = Build(doc, WithLogger(quietLogger()))
		var re *ResolveError
		require.True(t, errors.As(err, &re), "%s: expected ResolveError, got %v", name, err)
		assert.Equal(t, "Missing", re.Ref, name)
		assert.Equal(t, "X", re.Service, name)
		assert.Contains(t, re.Error(), `"Missing"`, name)
	}
}

func TestBuild_UnknownProtocolFallsBack(t *testing.T) {
	t.Parallel()
	doc, err := spec.ParseDocument([]byte(`{"metadata": {"protocol": "smoke-signals"}, "operations": {"Op": {}}, "shapes": {}}`))
	require.NoError(t, err)
	svc, err := Build(doc, WithLogger(quietLogger()))
	require.NoError(t, err)
	assert.Equal(t, DefaultProtocol, svc.Protocol.Kind)
	assert.Nil(t, svc.Protocol.Version)
	assert.Equal(t, "POST", svc.Operations[0].HTTPMethod)
	assert.Equal(t, "/", svc.Operations[0].Path)
}

func TestBuild_DocsAndEndpoints(t *testing.T) {
	t.Parallel()
	docs := spec.NewDocs("<p>A queue.</p>",
		map[string]string{"SendMessage": "<p>Sends.</p><p>Twice.</p>"},
		map[string]string{"SendMessageRequest$QueueUrl": "<p>The <b>URL</b>.</p>"})
	eps, err := spec.ParseEndpoints([]byte(`{"partitions": [{"partition": "aws", "services": {"queue": {
		"partitionEndpoint": "aws-global",
		"endpoints": {"us-west-2": {"hostname": "queue.west"}, "eu-west-1": {"hostname": "queue.eu"}}}}}]}`))
	require.NoError(t, err)

	svc := buildFixture(t, WithDocs(docs), WithEndpoints(eps))
	assert.Equal(t, []string{"A queue."}, svc.Description)
	assert.Equal(t, []string{"Sends.", "Twice."}, svc.Operations[0].Doc)
	assert.Equal(t, []string{"The URL."}, member(t, svc, "SendMessageRequest", "QueueUrl").Doc)
	assert.Equal(t, "aws-global", svc.PartitionEndpoint)
	assert.Equal(t, []Endpoint{
		{Region: "eu-west-1", Hostname: "queue.eu"},
		{Region: "us-west-2", Hostname: "queue.west"},
	}, svc.SortedEndpoints())
}

func TestIsRecursive_NonStructures(t *testing.T) {
	t.Parallel()
	assert.False(t, IsRecursive(nil))
	assert.False(t, IsRecursive(&Shape{Kind: KindString}))
	assert.False(t, IsRecursive(&Shape{Kind: KindStructure}))
}

func TestKindString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "structure", KindStructure.String())
	assert.Equal(t, "unhandled", Kind(99).String())
	assert.True(t, KindLong.Numeric())
	assert.False(t, KindBoolean.Numeric())
}
