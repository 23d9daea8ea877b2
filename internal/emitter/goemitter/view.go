package goemitter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mark3labs/awsgen/internal/model"
	"github.com/mark3labs/awsgen/internal/naming"
)

// header starts every generated file.
const header = "// Code generated by awsgen. DO NOT EDIT."

type fileView struct {
	Header        string
	Package       string
	RuntimeImport string
}

type shapesView struct {
	fileView
	Enums   []enumView
	Structs []structView
}

type enumView struct {
	Name       string
	ValuesFunc string
	Values     []enumValueView
}

type enumValueView struct {
	Const string
	Raw   string // quoted
}

type structView struct {
	Name        string
	Fields      []fieldView
	MembersVar  string
	Members     []string
	Payload     string // quoted, empty when none
	Constructor string
	Params      []paramView
	DefaultFunc string
	Defaults    []defaultView
}

type fieldView struct {
	Name string
	Type string
	Tag  string
	Doc  []string
}

type paramView struct {
	Name  string
	Type  string
	Field string
}

type defaultView struct {
	Field string
	Expr  string
}

type errorsView struct {
	fileView
	Errors []errorView
}

type errorView struct {
	Name string
	Code string // quoted
}

type apiView struct {
	fileView
	Title       string
	ServiceName string // quoted
	ServiceID   string // quoted
	APIVersion  string // quoted
	TypeName    string
	Doc         []string
	Config      []string
	Operations  []operationView
}

type operationView struct {
	Method     string
	Name       string // quoted
	HTTPMethod string // quoted
	Path       string // quoted
	Doc        []string
	InputType  string
	OutputType string
}

// scope hands out package-level identifiers, suffixing "_2", "_3", ... on
// collision.
type scope map[string]bool

func (s scope) claim(name string) string {
	if !s[name] {
		s[name] = true
		return name
	}
	for i := 2; ; i++ {
		candidate := name + "_" + strconv.Itoa(i)
		if !s[candidate] {
			s[candidate] = true
			return candidate
		}
	}
}

// fieldMethods are methods on generated structures; fields must not share
// their names.
var fieldMethods = map[string]bool{"ShapeMembers": true, "PayloadPath": true}

var protocolConsts = map[string]string{
	"json":      "awsrt.ProtocolJSON",
	"rest-json": "awsrt.ProtocolRESTJSON",
	"rest-xml":  "awsrt.ProtocolRESTXML",
	"query":     "awsrt.ProtocolQuery",
	"ec2":       "awsrt.ProtocolEC2",
}

// viewBuilder derives template data for one service. Type names are
// assigned once so every artifact agrees on them.
type viewBuilder struct {
	svc       *model.ServiceModel
	file      fileView
	pkg       scope
	typeNames map[string]string
	service   string
}

func newViewBuilder(svc *model.ServiceModel, pkgName, runtimeImport string) *viewBuilder {
	b := &viewBuilder{
		svc:       svc,
		file:      fileView{Header: header, Package: pkgName, RuntimeImport: runtimeImport},
		pkg:       scope{},
		typeNames: make(map[string]string),
	}
	for _, ident := range []string{"APIVersion", "ClassifyError", "Error", "New", "ServiceID", "ServiceName"} {
		b.pkg.claim(ident)
	}

	declared := make(map[string]*model.Shape)
	for _, sh := range svc.Shapes {
		if sh.Kind == model.KindStructure || sh.Kind == model.KindEnum {
			declared[sh.Name] = sh
		}
	}
	for _, sh := range svc.ErrorShapes() {
		declared[sh.Name] = sh
	}
	names := make([]string, 0, len(declared))
	for name := range declared {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.typeNames[name] = b.pkg.claim(naming.TypeName(name))
	}

	service := "Client"
	if strings.TrimSpace(svc.Name) != "" {
		service = naming.TypeName(svc.Name)
	}
	if b.pkg[service] {
		service += "Client"
	}
	b.service = b.pkg.claim(service)
	return b
}

// typeOf is the Go type of a shape where a value is required or the shape is
// a collection element. Reference structures are always pointers.
func (b *viewBuilder) typeOf(sh *model.Shape) string {
	switch sh.Kind {
	case model.KindString:
		return "string"
	case model.KindInteger:
		return "int32"
	case model.KindLong:
		return "int64"
	case model.KindFloat:
		return "float32"
	case model.KindDouble:
		return "float64"
	case model.KindBoolean:
		return "bool"
	case model.KindBlob:
		return "[]byte"
	case model.KindTimestamp:
		return "time.Time"
	case model.KindEnum:
		return b.typeNames[sh.Name]
	case model.KindList:
		return "[]" + b.typeOf(sh.Element)
	case model.KindMap:
		return "map[" + b.keyType(sh.Key) + "]" + b.typeOf(sh.Value)
	case model.KindStructure:
		if b.svc.IsReferenceType(sh.Name) {
			return "*" + b.typeNames[sh.Name]
		}
		return b.typeNames[sh.Name]
	}
	return "any"
}

func (b *viewBuilder) keyType(sh *model.Shape) string {
	switch {
	case sh.Kind == model.KindString, sh.Kind == model.KindEnum, sh.Kind == model.KindBoolean, sh.Kind.Numeric():
		return b.typeOf(sh)
	}
	return "string"
}

// fieldType is typeOf for required members; optional members become
// pointers unless already nil-able.
func (b *viewBuilder) fieldType(m *model.Member) string {
	t := b.typeOf(m.Shape)
	if m.Required || strings.HasPrefix(t, "*") {
		return t
	}
	switch m.Shape.Kind {
	case model.KindBlob, model.KindList, model.KindMap, model.KindUnhandled:
		return t
	}
	return "*" + t
}

// defaultExpr is the zero/empty value of a required member, or "" when the
// Go zero value already is that.
func (b *viewBuilder) defaultExpr(m *model.Member) string {
	switch k := m.Shape.Kind; {
	case k.Numeric():
		return "0"
	case k == model.KindBoolean:
		return "false"
	case k == model.KindBlob:
		return "[]byte{}"
	case k == model.KindTimestamp:
		return "time.Now()"
	case k == model.KindString, k == model.KindEnum:
		return `""`
	case k == model.KindList, k == model.KindMap:
		return b.fieldType(m) + "{}"
	case k == model.KindStructure:
		t := b.fieldType(m)
		if strings.HasPrefix(t, "*") {
			return "&" + t[1:] + "{}"
		}
		return t + "{}"
	}
	return ""
}

func (b *viewBuilder) shapes() shapesView {
	v := shapesView{fileView: b.file}
	for _, sh := range b.svc.Shapes {
		if b.svc.IsErrorShape(sh.Name) {
			continue
		}
		switch sh.Kind {
		case model.KindEnum:
			v.Enums = append(v.Enums, b.enum(sh))
		case model.KindStructure:
			v.Structs = append(v.Structs, b.structure(sh))
		}
	}
	return v
}

func (b *viewBuilder) enum(sh *model.Shape) enumView {
	name := b.typeNames[sh.Name]
	ev := enumView{Name: name}
	for _, raw := range sh.Enum {
		ev.Values = append(ev.Values, enumValueView{
			Const: b.pkg.claim(name + naming.EnumConstSuffix(sh.Name, raw)),
			Raw:   strconv.Quote(raw),
		})
	}
	ev.ValuesFunc = b.pkg.claim(name + "Values")
	return ev
}

func (b *viewBuilder) structure(sh *model.Shape) structView {
	name := b.typeNames[sh.Name]
	sv := structView{
		Name:        name,
		MembersVar:  b.pkg.claim("_" + name + "Members"),
		Constructor: b.pkg.claim("New" + name),
		DefaultFunc: b.pkg.claim("Default" + name),
	}
	if sh.Structure.Payload != "" {
		sv.Payload = strconv.Quote(sh.Structure.Payload)
	}

	fields := scope{}
	params := scope{}
	wireKeys := make(map[string]string)
	type labelled struct {
		label string
		param paramView
	}
	var ordered []labelled
	for _, m := range sh.Structure.Members {
		fieldName := naming.ClassCase(m.Name)
		if strings.HasPrefix(fieldName, "_") {
			// leading digit; keep the field exported
			fieldName = "X" + fieldName
		}
		if fieldMethods[fieldName] {
			fieldName += "_"
		}
		fieldName = fields.claim(fieldName)
		typ := b.fieldType(m)

		key := m.WireName()
		doc := m.Doc
		if first, dup := wireKeys[key]; dup {
			doc = append(append([]string(nil), doc...),
				fmt.Sprintf("Wire key %q is also used by %s; this member is serialized as %q.", key, first, "_"+key))
			key = "_" + key
		} else {
			wireKeys[key] = fieldName
		}
		tag := key
		if !m.Required {
			tag += ",omitempty"
		}
		sv.Fields = append(sv.Fields, fieldView{
			Name: fieldName,
			Type: typ,
			Tag:  "`json:" + strconv.Quote(tag) + "`",
			Doc:  doc,
		})
		sv.Members = append(sv.Members, memberLiteral(m))

		if m.Required {
			if expr := b.defaultExpr(m); expr != "" {
				sv.Defaults = append(sv.Defaults, defaultView{Field: fieldName, Expr: expr})
			}
		}
		ordered = append(ordered, labelled{
			label: naming.LabelCase(m.Name),
			param: paramView{Name: naming.VariableCase(m.Name), Type: typ, Field: fieldName},
		})
	}

	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].label < ordered[j].label })
	for _, o := range ordered {
		p := o.param
		p.Name = params.claim(p.Name)
		sv.Params = append(sv.Params, p)
	}
	return sv
}

// memberLiteral renders one awsrt.ShapeMember composite literal.
func memberLiteral(m *model.Member) string {
	parts := []string{"Label: " + strconv.Quote(m.Name)}
	if m.Location != nil {
		var ctor string
		switch m.Location.Kind {
		case model.LocationURI:
			ctor = "awsrt.URI"
		case model.LocationQueryString:
			ctor = "awsrt.QueryString"
		case model.LocationHeader:
			ctor = "awsrt.Header"
		default:
			ctor = "awsrt.Body"
		}
		parts = append(parts, fmt.Sprintf("Location: %s(%q)", ctor, m.Location.Name))
	}
	if m.Required {
		parts = append(parts, "Required: true")
	}
	parts = append(parts, "Type: awsrt.Type"+naming.ClassCase(m.Shape.Kind.String()))
	if m.Encoding != nil {
		var enc string
		switch m.Encoding.Kind {
		case model.EncodingFlatList:
			enc = "awsrt.FlatList()"
		case model.EncodingList:
			enc = fmt.Sprintf("awsrt.ListEncoding(%q)", m.Encoding.Member)
		case model.EncodingMap:
			enc = fmt.Sprintf("awsrt.MapEncoding(%q, %q, %q)", m.Encoding.Entry, m.Encoding.Key, m.Encoding.Value)
		case model.EncodingFlatMap:
			enc = fmt.Sprintf("awsrt.FlatMap(%q, %q)", m.Encoding.Key, m.Encoding.Value)
		}
		if enc != "" {
			parts = append(parts, "Encoding: "+enc)
		}
	}
	if m.Streaming || m.Shape.Streaming {
		parts = append(parts, "Streaming: true")
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (b *viewBuilder) errors() errorsView {
	v := errorsView{fileView: b.file}
	for _, sh := range b.svc.ErrorShapes() {
		v.Errors = append(v.Errors, errorView{Name: b.typeNames[sh.Name], Code: strconv.Quote(sh.Name)})
	}
	return v
}

func (b *viewBuilder) api() apiView {
	svc := b.svc
	v := apiView{
		fileView:    b.file,
		Title:       svc.Name,
		ServiceName: strconv.Quote(svc.Name),
		ServiceID:   strconv.Quote(svc.EndpointPrefix),
		APIVersion:  strconv.Quote(svc.APIVersion),
		TypeName:    b.service,
		Doc:         svc.Description,
		Config:      b.config(),
	}
	if strings.TrimSpace(v.Title) == "" {
		v.Title = b.service
	}
	methods := scope{}
	for _, op := range svc.Operations {
		ov := operationView{
			Method:     methods.claim(naming.ClassCase(op.Name)),
			Name:       strconv.Quote(op.Name),
			HTTPMethod: strconv.Quote(op.HTTPMethod),
			Path:       strconv.Quote(op.Path),
			Doc:        op.Doc,
		}
		if op.Input != nil {
			ov.InputType = strings.TrimPrefix(b.typeOf(op.Input), "*")
		}
		if op.Output != nil {
			ov.OutputType = strings.TrimPrefix(b.typeOf(op.Output), "*")
		}
		v.Operations = append(v.Operations, ov)
	}
	return v
}

// config renders the awsrt.Config fields the constructor forwards.
func (b *viewBuilder) config() []string {
	svc := b.svc
	var lines []string
	if svc.TargetPrefix != "" {
		lines = append(lines, fmt.Sprintf("AmzTarget: %q,", svc.TargetPrefix))
	}
	lines = append(lines, fmt.Sprintf("Service: %q,", svc.EndpointPrefix))

	proto, ok := protocolConsts[svc.Protocol.Kind]
	if !ok {
		proto = protocolConsts[model.DefaultProtocol]
	}
	if v := svc.Protocol.Version; v != nil {
		lines = append(lines, fmt.Sprintf("Protocol: awsrt.ServiceProtocol{Type: %s, Version: &awsrt.ProtocolVersion{Major: %d, Minor: %d}},", proto, v.Major, v.Minor))
	} else {
		lines = append(lines, fmt.Sprintf("Protocol: awsrt.ServiceProtocol{Type: %s},", proto))
	}
	lines = append(lines, "APIVersion: APIVersion,")

	if eps := svc.SortedEndpoints(); len(eps) > 0 {
		var sb strings.Builder
		sb.WriteString("ServiceEndpoints: map[string]string{\n")
		for _, ep := range eps {
			fmt.Fprintf(&sb, "%q: %q,\n", ep.Region, ep.Hostname)
		}
		sb.WriteString("},")
		lines = append(lines, sb.String())
	}
	if svc.PartitionEndpoint != "" {
		lines = append(lines, fmt.Sprintf("PartitionEndpoint: %q,", svc.PartitionEndpoint))
	}
	if mws := middlewaresFor(svc); len(mws) > 0 {
		lines = append(lines, "Middlewares: []awsrt.Middleware{"+strings.Join(mws, ", ")+"},")
	}
	if len(svc.ErrorShapeNames) > 0 {
		lines = append(lines, "ErrorClassifiers: []awsrt.ErrorClassifier{ClassifyError},")
	}
	return lines
}
