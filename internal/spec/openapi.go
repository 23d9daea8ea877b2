package spec

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"golang.org/x/net/html"

	"github.com/mark3labs/awsgen/internal/naming"
)

// ImportOpenAPI converts an OpenAPI v3 document into an API Document and its
// documentation table.
//
// Component schemas become named shapes; inline schemas that need a name
// (objects, arrays, enums) are named after their parent. Each operation gets
// a synthesized "<Op>Request" input carrying its parameters with their wire
// locations and the request body as the payload member. The first 2xx
// response becomes the output and 4xx/5xx responses referencing a schema
// become errors.
func ImportOpenAPI(oa *openapi3.T) (*Document, *Docs, error) {
	if oa == nil {
		return nil, nil, fmt.Errorf("nil document")
	}
	im := &importer{
		doc:        &Document{},
		reserved:   make(map[string]bool),
		prims:      make(map[string]string),
		opNames:    make(map[string]bool),
		operations: make(map[string]string),
		members:    make(map[string]string),
	}

	var title, version, description string
	if oa.Info != nil {
		title = safeStr(oa.Info.Title)
		version = safeStr(oa.Info.Version)
		description = oa.Info.Description
	}
	im.doc.Metadata = Metadata{
		APIVersion:      version,
		EndpointPrefix:  endpointPrefix(oa.Servers, title),
		Protocol:        "rest-json",
		ServiceFullName: title,
		ServiceID:       title,
	}

	if oa.Components != nil {
		names := make([]string, 0, len(oa.Components.Schemas))
		for name := range oa.Components.Schemas {
			names = append(names, name)
			im.reserved[name] = true
		}
		sort.Strings(names)
		for _, name := range names {
			ref := oa.Components.Schemas[name]
			if ref == nil || ref.Value == nil {
				continue
			}
			if _, done := im.doc.Shapes.Lookup(name); done {
				continue
			}
			im.define(name, ref.Value)
		}
	}

	pathKeys := make([]string, 0, len(oa.Paths))
	for p := range oa.Paths {
		pathKeys = append(pathKeys, p)
	}
	sort.Strings(pathKeys)
	for _, p := range pathKeys {
		item := oa.Paths[p]
		if item == nil {
			continue
		}
		ops := []struct {
			method string
			op     *openapi3.Operation
		}{
			{"GET", item.Get},
			{"POST", item.Post},
			{"PUT", item.Put},
			{"DELETE", item.Delete},
			{"PATCH", item.Patch},
			{"HEAD", item.Head},
			{"OPTIONS", item.Options},
			{"TRACE", item.Trace},
		}
		for _, pair := range ops {
			if pair.op == nil {
				continue
			}
			im.operation(p, pair.method, item.Parameters, pair.op)
		}
	}

	if len(im.doc.Operations) == 0 {
		return nil, nil, fmt.Errorf("openapi document declares no operations")
	}
	docs := NewDocs(paragraphs(description), im.operations, im.members)
	return im.doc, docs, nil
}

type importer struct {
	doc *Document
	// reserved holds component names so inline shapes never take them.
	reserved map[string]bool
	// prims maps a primitive kind to its shared shape name.
	prims      map[string]string
	opNames    map[string]bool
	operations map[string]string
	members    map[string]string
}

func (im *importer) operation(path, method string, shared openapi3.Parameters, op *openapi3.Operation) {
	name := im.operationName(op.OperationID, method, path)
	out := Operation{Name: name, HTTP: HTTPBinding{Method: method, RequestURI: path}}

	// Path-level parameters first, overridden by operation-level ones.
	merged := make(map[string]*openapi3.Parameter)
	for _, list := range []openapi3.Parameters{shared, op.Parameters} {
		for _, pref := range list {
			if pref == nil || pref.Value == nil {
				continue
			}
			merged[paramKey(pref.Value.In, pref.Value.Name)] = pref.Value
		}
	}
	params := make([]*openapi3.Parameter, 0, len(merged))
	for _, p := range merged {
		if location(p.In) == "" {
			continue
		}
		params = append(params, p)
	}
	sort.Slice(params, func(i, j int) bool {
		if params[i].In == params[j].In {
			return params[i].Name < params[j].Name
		}
		return params[i].In < params[j].In
	})

	var body *openapi3.RequestBody
	if op.RequestBody != nil && op.RequestBody.Value != nil && pickSchema(op.RequestBody.Value.Content) != nil {
		body = op.RequestBody.Value
	}

	if len(params) > 0 || body != nil {
		inName := im.unique(name + "Request")
		def := &ShapeDef{Name: inName, Type: "structure"}
		im.doc.Shapes.Add(def)
		for _, p := range params {
			member := naming.ClassCase(p.Name)
			def.Members = append(def.Members, MemberDef{
				Name: member,
				ShapeRef: ShapeRef{
					Shape:        im.shapeFor(inName+"_"+member, p.Schema),
					Location:     location(p.In),
					LocationName: p.Name,
				},
			})
			if p.Required || p.In == openapi3.ParameterInPath {
				def.Required = append(def.Required, member)
			}
			if text := paragraphs(p.Description); text != "" {
				im.members[inName+"$"+member] = text
			}
		}
		if body != nil {
			def.Members = append(def.Members, MemberDef{
				Name:     "Body",
				ShapeRef: ShapeRef{Shape: im.shapeFor(inName+"_Body", pickSchema(body.Content))},
			})
			def.Payload = "Body"
			if body.Required {
				def.Required = append(def.Required, "Body")
			}
		}
		out.Input = &ShapeRef{Shape: inName}
	}

	// In kin-openapi v0.116, Responses is a map[string]*ResponseRef
	codes := make([]string, 0, len(op.Responses))
	for code := range op.Responses {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	seenErr := make(map[string]bool)
	for _, code := range codes {
		rref := op.Responses[code]
		if rref == nil || rref.Value == nil {
			continue
		}
		schema := pickSchema(rref.Value.Content)
		switch {
		case strings.HasPrefix(code, "2"):
			if out.HTTP.ResponseCode != 0 {
				continue
			}
			if n, err := strconv.Atoi(code); err == nil {
				out.HTTP.ResponseCode = n
			}
			if schema != nil {
				out.Output = &ShapeRef{Shape: im.outputShape(name, schema)}
			}
		case strings.HasPrefix(code, "4"), strings.HasPrefix(code, "5"), code == "default":
			if schema == nil || schema.Ref == "" {
				continue
			}
			shape := im.shapeFor(name+"Error", schema)
			if seenErr[shape] {
				continue
			}
			seenErr[shape] = true
			out.Errors = append(out.Errors, ShapeRef{Shape: shape})
		}
	}

	if text := paragraphs(op.Summary, op.Description); text != "" {
		im.operations[name] = text
	}
	im.doc.Operations = append(im.doc.Operations, out)
}

// outputShape returns the output shape of an operation: a referenced
// structure is used directly, anything else is wrapped.
func (im *importer) outputShape(opName string, schema *openapi3.SchemaRef) string {
	shape := im.shapeFor(opName+"Response_Body", schema)
	if def, ok := im.doc.Shapes.Lookup(shape); ok && def.Type == "structure" && schema.Ref != "" {
		return shape
	}
	wrapper := im.unique(opName + "Response")
	im.doc.Shapes.Add(&ShapeDef{
		Name:    wrapper,
		Type:    "structure",
		Payload: "Body",
		Members: MemberList{{Name: "Body", ShapeRef: ShapeRef{Shape: shape}}},
	})
	return wrapper
}

func (im *importer) operationName(operationID, method, path string) string {
	base := naming.ClassCase(operationID)
	if strings.TrimSpace(operationID) == "" {
		base = naming.ClassCase(strings.ToLower(method) + "_" + strings.NewReplacer("{", "", "}", "").Replace(path))
	}
	name := base
	for i := 2; im.opNames[name]; i++ {
		name = base + strconv.Itoa(i)
	}
	im.opNames[name] = true
	return name
}

// shapeFor returns the shape name a schema reference resolves to, defining
// the shape when needed. hint names inline shapes.
func (im *importer) shapeFor(hint string, ref *openapi3.SchemaRef) string {
	if ref == nil || (ref.Ref == "" && ref.Value == nil) {
		return im.primitive("string", "")
	}
	if ref.Ref != "" {
		name := refName(ref.Ref)
		if _, ok := im.doc.Shapes.Lookup(name); !ok && ref.Value != nil {
			im.define(name, ref.Value)
		}
		return name
	}
	s := ref.Value
	if needsName(s) {
		name := im.unique(hint)
		im.define(name, s)
		return name
	}
	return im.primitive(s.Type, s.Format)
}

// define registers name before descending so self references resolve.
func (im *importer) define(name string, s *openapi3.Schema) {
	def := &ShapeDef{Name: name}
	im.doc.Shapes.Add(def)
	switch {
	case s.Type == "object" || len(s.Properties) > 0 || len(s.AllOf) > 0:
		def.Type = "structure"
		props, required := flatten(s)
		keys := make([]string, 0, len(props))
		for k := range props {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			ref := props[k]
			def.Members = append(def.Members, MemberDef{
				Name:     k,
				ShapeRef: ShapeRef{Shape: im.shapeFor(name+"_"+k, ref)},
			})
			if ref != nil && ref.Value != nil {
				if text := paragraphs(ref.Value.Description); text != "" {
					im.members[name+"$"+k] = text
				}
			}
			if required[k] {
				def.Required = append(def.Required, k)
			}
		}
	case s.Type == "array":
		def.Type = "list"
		def.Member = &ShapeRef{Shape: im.shapeFor(name+"_member", s.Items)}
	case len(s.Enum) > 0 && (s.Type == "string" || s.Type == ""):
		def.Type = "string"
		for _, v := range s.Enum {
			def.Enum = append(def.Enum, fmt.Sprint(v))
		}
	default:
		def.Type = primitiveKind(s.Type, s.Format)
	}
}

func (im *importer) primitive(typ, format string) string {
	kind := primitiveKind(typ, format)
	if name, ok := im.prims[kind]; ok {
		return name
	}
	name := im.unique(kind)
	im.doc.Shapes.Add(&ShapeDef{Name: name, Type: kind})
	im.prims[kind] = name
	return name
}

func (im *importer) unique(hint string) string {
	base := naming.ClassCase(hint)
	name := base
	for i := 2; ; i++ {
		if _, taken := im.doc.Shapes.Lookup(name); !taken && !im.reserved[name] {
			return name
		}
		name = base + strconv.Itoa(i)
	}
}

// flatten merges allOf members into the schema's own properties.
func flatten(s *openapi3.Schema) (map[string]*openapi3.SchemaRef, map[string]bool) {
	props := make(map[string]*openapi3.SchemaRef)
	required := make(map[string]bool)
	var walk func(*openapi3.Schema, int)
	walk = func(s *openapi3.Schema, depth int) {
		if s == nil || depth > 8 {
			return
		}
		for _, part := range s.AllOf {
			if part != nil {
				walk(part.Value, depth+1)
			}
		}
		for k, v := range s.Properties {
			props[k] = v
		}
		for _, r := range s.Required {
			required[r] = true
		}
	}
	walk(s, 0)
	return props, required
}

func needsName(s *openapi3.Schema) bool {
	return s.Type == "object" || s.Type == "array" || len(s.Properties) > 0 || len(s.AllOf) > 0 || len(s.Enum) > 0
}

func primitiveKind(typ, format string) string {
	switch typ {
	case "integer":
		if format == "int64" {
			return "long"
		}
		return "integer"
	case "number":
		if format == "float" {
			return "float"
		}
		return "double"
	case "boolean":
		return "boolean"
	case "string":
		switch format {
		case "date-time", "date":
			return "timestamp"
		case "byte", "binary":
			return "blob"
		}
		return "string"
	case "":
		return "document"
	}
	return typ
}

// location maps a parameter location to its wire location; cookies are not
// bound.
func location(in string) string {
	switch in {
	case openapi3.ParameterInPath:
		return "uri"
	case openapi3.ParameterInQuery:
		return "querystring"
	case openapi3.ParameterInHeader:
		return "header"
	}
	return ""
}

// pickSchema prefers JSON content, then the first media type by name.
func pickSchema(content openapi3.Content) *openapi3.SchemaRef {
	if len(content) == 0 {
		return nil
	}
	if mt := content.Get("application/json"); mt != nil && mt.Schema != nil {
		return mt.Schema
	}
	keys := make([]string, 0, len(content))
	for k := range content {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if mt := content[k]; mt != nil && mt.Schema != nil {
			return mt.Schema
		}
	}
	return nil
}

func refName(ref string) string {
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

func endpointPrefix(servers openapi3.Servers, title string) string {
	for _, s := range servers {
		if s == nil {
			continue
		}
		u, err := url.Parse(s.URL)
		if err != nil || u.Hostname() == "" {
			continue
		}
		host := u.Hostname()
		if i := strings.Index(host, "."); i > 0 {
			host = host[:i]
		}
		return host
	}
	return naming.PackageName(title)
}

// paragraphs renders plain-text fragments as an HTML documentation entry.
func paragraphs(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		if p = strings.TrimSpace(p); p == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(p))
		b.WriteString("</p>")
	}
	return b.String()
}

func paramKey(in, name string) string { return in + ":" + name }

func safeStr(s string) string { return strings.TrimSpace(s) }
