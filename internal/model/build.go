package model

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/mark3labs/awsgen/internal/spec"
)

// ResolveError reports a shape reference that names no shape in the table.
// It is fatal for the service being built.
type ResolveError struct {
	Service   string
	Shape     string
	Member    string
	Operation string
	Ref       string
}

func (e *ResolveError) Error() string {
	switch {
	case e.Operation != "":
		return fmt.Sprintf("%s: operation %s references undefined shape %q", e.Service, e.Operation, e.Ref)
	case e.Member != "":
		return fmt.Sprintf("%s: member %s.%s references undefined shape %q", e.Service, e.Shape, e.Member, e.Ref)
	default:
		return fmt.Sprintf("%s: shape %s references undefined shape %q", e.Service, e.Shape, e.Ref)
	}
}

// DefaultProtocol is used when the document names no protocol or one that is
// not recognized.
const DefaultProtocol = "json"

var knownProtocols = map[string]bool{
	"json":      true,
	"rest-json": true,
	"rest-xml":  true,
	"query":     true,
	"ec2":       true,
}

// Option configures Build.
type Option func(*buildConfig)

type buildConfig struct {
	docs      *spec.Docs
	endpoints *spec.Endpoints
	logger    *slog.Logger
}

// WithDocs attaches a documentation table.
func WithDocs(d *spec.Docs) Option { return func(c *buildConfig) { c.docs = d } }

// WithEndpoints attaches the shared endpoint table.
func WithEndpoints(e *spec.Endpoints) Option { return func(c *buildConfig) { c.endpoints = e } }

// WithLogger sets the logger used for degraded shapes and fallbacks.
func WithLogger(l *slog.Logger) Option { return func(c *buildConfig) { c.logger = l } }

// Build resolves a parsed document into a ServiceModel.
//
// Every shape name is registered first, then references are resolved by
// lookup, so forward and self references are fine. Shapes with unknown or
// malformed definitions become KindUnhandled instead of failing the build.
func Build(doc *spec.Document, opts ...Option) (*ServiceModel, error) {
	if doc == nil {
		return nil, fmt.Errorf("nil document")
	}
	cfg := &buildConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	meta := doc.Metadata
	svc := &ServiceModel{
		Name:             meta.ServiceName(),
		Description:      cfg.docs.ServiceDoc(),
		EndpointPrefix:   meta.EndpointPrefix,
		APIVersion:       meta.APIVersion,
		TargetPrefix:     meta.TargetPrefix,
		SignatureVersion: meta.SignatureVersion,
		Protocol:         protocolOf(meta, cfg.logger),
		arena:            make(map[string]*Shape, len(doc.Shapes.Names)),
		errorSet:         make(map[string]bool),
		reference:        make(map[string]bool),
	}
	svc.ServiceEndpoints, svc.PartitionEndpoint = cfg.endpoints.ForService(meta.EndpointPrefix)
	log := cfg.logger.With("service", svc.Name)

	// Phase one: placeholders for every name.
	for _, name := range doc.Shapes.Names {
		svc.arena[name] = &Shape{Name: name}
	}
	// Phase two: fill each placeholder, resolving references by name.
	b := &builder{svc: svc, docs: cfg.docs, log: log}
	for _, name := range doc.Shapes.Names {
		def, _ := doc.Shapes.Lookup(name)
		if err := b.fill(svc.arena[name], def); err != nil {
			return nil, err
		}
	}

	for _, raw := range doc.Operations {
		op, err := b.operation(raw)
		if err != nil {
			return nil, err
		}
		svc.Operations = append(svc.Operations, op)
	}

	b.collectErrors(doc)
	svc.Shapes = reachable(svc.Operations)
	for _, sh := range svc.arena {
		if IsRecursive(sh) {
			svc.reference[sh.Name] = true
		}
	}

	log.Debug("service model built",
		"shapes", len(svc.Shapes),
		"operations", len(svc.Operations),
		"errors", len(svc.ErrorShapeNames))
	return svc, nil
}

type builder struct {
	svc  *ServiceModel
	docs *spec.Docs
	log  *slog.Logger
}

func (b *builder) resolve(ref string) (*Shape, bool) {
	sh, ok := b.svc.arena[ref]
	return sh, ok
}

func (b *builder) fill(sh *Shape, def *spec.ShapeDef) error {
	sh.RawType = def.Type
	sh.Exception = def.Exception || def.Fault
	sh.Streaming = def.Streaming
	sh.Flattened = def.Flattened
	if def.Malformed != nil {
		b.log.Warn("malformed shape, treating as unhandled", "shape", sh.Name, "err", def.Malformed)
		sh.Kind = KindUnhandled
		return nil
	}

	switch def.Type {
	case "string":
		if len(def.Enum) > 0 {
			sh.Kind = KindEnum
			sh.Enum = append([]string(nil), def.Enum...)
		} else {
			sh.Kind = KindString
		}
	case "integer":
		sh.Kind = KindInteger
	case "long":
		sh.Kind = KindLong
	case "float":
		sh.Kind = KindFloat
	case "double":
		sh.Kind = KindDouble
	case "boolean":
		sh.Kind = KindBoolean
	case "blob":
		sh.Kind = KindBlob
	case "timestamp":
		sh.Kind = KindTimestamp
	case "list":
		if def.Member == nil {
			b.log.Warn("list without member, treating as unhandled", "shape", sh.Name)
			sh.Kind = KindUnhandled
			return nil
		}
		elem, ok := b.resolve(def.Member.Shape)
		if !ok {
			return &ResolveError{Service: b.svc.Name, Shape: sh.Name, Ref: def.Member.Shape}
		}
		sh.Kind = KindList
		sh.Element = elem
		sh.ListMember = def.Member.LocationName
		if sh.ListMember == "" {
			sh.ListMember = "member"
		}
	case "map":
		if def.Key == nil || def.Value == nil {
			b.log.Warn("map without key or value, treating as unhandled", "shape", sh.Name)
			sh.Kind = KindUnhandled
			return nil
		}
		key, ok := b.resolve(def.Key.Shape)
		if !ok {
			return &ResolveError{Service: b.svc.Name, Shape: sh.Name, Ref: def.Key.Shape}
		}
		value, ok := b.resolve(def.Value.Shape)
		if !ok {
			return &ResolveError{Service: b.svc.Name, Shape: sh.Name, Ref: def.Value.Shape}
		}
		sh.Kind = KindMap
		sh.Key, sh.Value = key, value
		sh.MapKey = orDefault(def.Key.LocationName, "key")
		sh.MapValue = orDefault(def.Value.LocationName, "value")
	case "structure":
		body, err := b.structure(sh, def)
		if err != nil {
			return err
		}
		sh.Kind = KindStructure
		sh.Structure = body
	default:
		b.log.Warn("unsupported shape type, treating as unhandled", "shape", sh.Name, "type", def.Type)
		sh.Kind = KindUnhandled
	}
	return nil
}

func (b *builder) structure(sh *Shape, def *spec.ShapeDef) (*StructureBody, error) {
	required := make(map[string]bool, len(def.Required))
	for _, name := range def.Required {
		required[name] = true
	}
	body := &StructureBody{Payload: def.Payload}
	for _, md := range def.Members {
		target, ok := b.resolve(md.Shape)
		if !ok {
			return nil, &ResolveError{Service: b.svc.Name, Shape: sh.Name, Member: md.Name, Ref: md.Shape}
		}
		body.Members = append(body.Members, &Member{
			Name:      md.Name,
			Required:  required[md.Name],
			Shape:     target,
			Location:  locationOf(md.ShapeRef),
			Encoding:  encodingOf(target, md.Flattened),
			Streaming: md.Streaming,
			Doc:       b.docs.MemberDoc(sh.Name, md.Name),
		})
	}
	return body, nil
}

func (b *builder) operation(raw spec.Operation) (*Operation, error) {
	op := &Operation{
		Name:         raw.Name,
		HTTPMethod:   strings.ToUpper(orDefault(raw.HTTP.Method, "POST")),
		Path:         orDefault(raw.HTTP.RequestURI, "/"),
		ResponseCode: raw.HTTP.ResponseCode,
		Doc:          b.docs.OperationDoc(raw.Name),
	}
	var ok bool
	if raw.Input != nil && raw.Input.Shape != "" {
		if op.Input, ok = b.resolve(raw.Input.Shape); !ok {
			return nil, &ResolveError{Service: b.svc.Name, Operation: raw.Name, Ref: raw.Input.Shape}
		}
	}
	if raw.Output != nil && raw.Output.Shape != "" {
		if op.Output, ok = b.resolve(raw.Output.Shape); !ok {
			return nil, &ResolveError{Service: b.svc.Name, Operation: raw.Name, Ref: raw.Output.Shape}
		}
	}
	for _, ref := range raw.Errors {
		sh, ok := b.resolve(ref.Shape)
		if !ok {
			return nil, &ResolveError{Service: b.svc.Name, Operation: raw.Name, Ref: ref.Shape}
		}
		op.Errors = append(op.Errors, sh)
	}
	return op, nil
}

// collectErrors records the union of exception-flagged structures and every
// operation's declared errors.
func (b *builder) collectErrors(doc *spec.Document) {
	add := func(sh *Shape) {
		if sh.Kind != KindStructure || b.svc.errorSet[sh.Name] {
			return
		}
		b.svc.errorSet[sh.Name] = true
		b.svc.ErrorShapeNames = append(b.svc.ErrorShapeNames, sh.Name)
	}
	for _, name := range doc.Shapes.Names {
		if sh := b.svc.arena[name]; sh.Exception {
			add(sh)
		}
	}
	for _, op := range b.svc.Operations {
		for _, sh := range op.Errors {
			add(sh)
		}
	}
	sort.Strings(b.svc.ErrorShapeNames)
}

// reachable walks the shape graph from the operations and returns the
// visited shapes sorted by name.
func reachable(ops []*Operation) []*Shape {
	seen := make(map[*Shape]bool)
	var out []*Shape
	var visit func(*Shape)
	visit = func(sh *Shape) {
		if sh == nil || seen[sh] {
			return
		}
		seen[sh] = true
		out = append(out, sh)
		visit(sh.Element)
		visit(sh.Key)
		visit(sh.Value)
		if sh.Structure != nil {
			for _, m := range sh.Structure.Members {
				visit(m.Shape)
			}
		}
	}
	for _, op := range ops {
		visit(op.Input)
		visit(op.Output)
		for _, e := range op.Errors {
			visit(e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func locationOf(ref spec.ShapeRef) *Location {
	if ref.LocationName == "" {
		return nil
	}
	loc := &Location{Name: ref.LocationName}
	switch ref.Location {
	case "uri":
		loc.Kind = LocationURI
	case "querystring":
		loc.Kind = LocationQueryString
	case "header", "headers":
		loc.Kind = LocationHeader
	default:
		loc.Kind = LocationBody
	}
	return loc
}

// encodingOf derives the collection encoding of a member from its target
// shape. Non-collection members have none.
func encodingOf(target *Shape, memberFlattened bool) *Encoding {
	flat := target.Flattened || memberFlattened
	switch target.Kind {
	case KindList:
		if flat {
			return &Encoding{Kind: EncodingFlatList}
		}
		return &Encoding{Kind: EncodingList, Member: target.ListMember}
	case KindMap:
		if flat {
			return &Encoding{Kind: EncodingFlatMap, Key: target.MapKey, Value: target.MapValue}
		}
		return &Encoding{Kind: EncodingMap, Entry: "entry", Key: target.MapKey, Value: target.MapValue}
	}
	return nil
}

func protocolOf(meta spec.Metadata, log *slog.Logger) Protocol {
	kind := meta.Protocol
	if !knownProtocols[kind] {
		log.Warn("unknown protocol, using default", "protocol", kind, "default", DefaultProtocol)
		kind = DefaultProtocol
	}
	return Protocol{Kind: kind, Version: parseVersion(meta.JSONVersion)}
}

func parseVersion(v string) *ProtocolVersion {
	major, minor, ok := strings.Cut(strings.TrimSpace(v), ".")
	if !ok {
		return nil
	}
	ma, err1 := strconv.Atoi(major)
	mi, err2 := strconv.Atoi(minor)
	if err1 != nil || err2 != nil {
		return nil
	}
	return &ProtocolVersion{Major: ma, Minor: mi}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
