package spec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	openapi2 "github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/hashicorp/go-retryablehttp"
	"gopkg.in/yaml.v3"
)

// ErrorCode categorizes loader errors for clearer handling and messaging.
type ErrorCode string

const (
	InputError      ErrorCode = "InputError"
	NetworkError    ErrorCode = "NetworkError"
	ParseError      ErrorCode = "ParseError"
	ValidationError ErrorCode = "ValidationError"
	ConversionError ErrorCode = "ConversionError"
)

// SpecError is a structured error with optional location and JSON Pointer.
type SpecError struct {
	Code        ErrorCode
	Message     string
	Location    string // file path or URL
	JSONPointer string // e.g. "#/paths/~1pets/get"
	Cause       error
}

func (e *SpecError) Error() string { return e.Message }
func (e *SpecError) Unwrap() error { return e.Cause }

// DocsFileName is the conventional name of the documentation table that sits
// next to an API document.
const DocsFileName = "docs-2.json"

// Settings configures loader behavior.
type Settings struct {
	// HTTPTimeout bounds each HTTP request.
	HTTPTimeout time.Duration
	// MaxRetries for transient HTTP failures (>=500, 429, or network errors).
	MaxRetries int
	// BackoffBase is the base delay for exponential backoff.
	BackoffBase time.Duration
	// AllowFileRefs controls whether file:// refs are allowed for external
	// references in OpenAPI documents. Always allowed when the root input is
	// a local file.
	AllowFileRefs bool
	// DocsPath overrides the documentation table location. When empty, a
	// DocsFileName next to a local API document is used if present.
	DocsPath string
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
	return Settings{
		HTTPTimeout: 10 * time.Second,
		MaxRetries:  3,
		BackoffBase: 200 * time.Millisecond,
	}
}

// Option mutates Settings.
type Option func(*Settings)

func WithHTTPTimeout(d time.Duration) Option  { return func(s *Settings) { s.HTTPTimeout = d } }
func WithMaxRetries(n int) Option             { return func(s *Settings) { s.MaxRetries = n } }
func WithBackoffBase(d time.Duration) Option  { return func(s *Settings) { s.BackoffBase = d } }
func WithAllowFileRefs(allow bool) Option     { return func(s *Settings) { s.AllowFileRefs = allow } }
func WithDocsPath(path string) Option         { return func(s *Settings) { s.DocsPath = path } }

// Format identifies the kind of description a source holds.
type Format int

const (
	FormatUnknown Format = iota
	FormatAPI
	FormatOpenAPI3
	FormatSwagger2
)

func (f Format) String() string {
	switch f {
	case FormatAPI:
		return "api"
	case FormatOpenAPI3:
		return "openapi3"
	case FormatSwagger2:
		return "swagger2"
	default:
		return "unknown"
	}
}

// Source is one loaded service description with its documentation table.
type Source struct {
	Location string
	Format   Format
	Document *Document
	Docs     *Docs
}

// Load reads one service description. input may be a filesystem path or an
// http/https URL; file:// URLs are rejected.
//
// Native API documents are decoded directly. OpenAPI v3 and Swagger v2
// documents are validated with kin-openapi and imported into the same
// Document model.
func Load(ctx context.Context, input string, opts ...Option) (*Source, error) {
	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}

	raw, location, isFile, err := readInput(ctx, input, settings)
	if err != nil {
		return nil, err
	}
	format, derr := detectFormat(raw)
	if derr != nil {
		return nil, &SpecError{Code: ParseError, Message: derr.Error(), Location: location, Cause: derr}
	}

	src := &Source{Location: location, Format: format}
	switch format {
	case FormatAPI:
		doc, err := ParseDocument(raw)
		if err != nil {
			return nil, &SpecError{Code: ParseError, Message: err.Error(), Location: location, Cause: err}
		}
		src.Document = doc
		docs, err := loadDocsFor(ctx, location, isFile, settings)
		if err != nil {
			return nil, err
		}
		src.Docs = docs
	case FormatOpenAPI3, FormatSwagger2:
		oa, err := loadOpenAPI(ctx, raw, format, location, isFile, settings)
		if err != nil {
			return nil, err
		}
		doc, docs, err := ImportOpenAPI(oa)
		if err != nil {
			return nil, &SpecError{Code: ConversionError, Message: fmt.Sprintf("import openapi: %v", err), Location: location, Cause: err}
		}
		src.Document = doc
		src.Docs = docs
	}
	return src, nil
}

// LoadDocs reads a documentation table from a path or URL.
func LoadDocs(ctx context.Context, input string, opts ...Option) (*Docs, error) {
	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}
	raw, location, _, err := readInput(ctx, input, settings)
	if err != nil {
		return nil, err
	}
	docs, err := ParseDocs(raw)
	if err != nil {
		return nil, &SpecError{Code: ParseError, Message: err.Error(), Location: location, Cause: err}
	}
	return docs, nil
}

// LoadEndpoints reads an endpoint table from a path or URL.
func LoadEndpoints(ctx context.Context, input string, opts ...Option) (*Endpoints, error) {
	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}
	raw, location, _, err := readInput(ctx, input, settings)
	if err != nil {
		return nil, err
	}
	eps, err := ParseEndpoints(raw)
	if err != nil {
		return nil, &SpecError{Code: ParseError, Message: err.Error(), Location: location, Cause: err}
	}
	return eps, nil
}

func loadDocsFor(ctx context.Context, location string, isFile bool, settings Settings) (*Docs, error) {
	if settings.DocsPath != "" {
		return LoadDocs(ctx, settings.DocsPath, withSettings(settings))
	}
	if !isFile {
		return nil, nil
	}
	sibling := filepath.Join(filepath.Dir(location), DocsFileName)
	if _, err := os.Stat(sibling); err != nil {
		return nil, nil
	}
	return LoadDocs(ctx, sibling, withSettings(settings))
}

func withSettings(s Settings) Option {
	return func(dst *Settings) { *dst = s }
}

// readInput classifies input as URL or file path and returns its bytes.
func readInput(ctx context.Context, input string, settings Settings) ([]byte, string, bool, error) {
	if strings.TrimSpace(input) == "" {
		return nil, "", false, &SpecError{Code: InputError, Message: "spec: input is empty"}
	}

	u, uerr := url.Parse(input)
	isURL := uerr == nil && u.Scheme != "" && u.Host != ""
	if isURL {
		scheme := strings.ToLower(u.Scheme)
		if scheme == "file" {
			return nil, input, false, &SpecError{Code: InputError, Message: "spec: file:// URLs are blocked by default", Location: input}
		}
		if scheme != "http" && scheme != "https" {
			return nil, input, false, &SpecError{Code: InputError, Message: fmt.Sprintf("spec: unsupported URL scheme %q (only http/https allowed)", scheme), Location: input}
		}
		raw, err := fetch(ctx, newHTTPClient(settings), input)
		if err != nil {
			return nil, input, false, &SpecError{Code: NetworkError, Message: fmt.Sprintf("fetch %s: %v", input, err), Location: input, Cause: err}
		}
		return raw, input, false, nil
	}

	abs, err := filepath.Abs(input)
	if err != nil {
		return nil, input, true, &SpecError{Code: InputError, Message: fmt.Sprintf("resolve path: %v", err), Location: input, Cause: err}
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, abs, true, &SpecError{Code: InputError, Message: fmt.Sprintf("read file %s: %v", abs, err), Location: abs, Cause: err}
	}
	return raw, abs, true, nil
}

// detectFormat inspects the top-level keys of a document.
func detectFormat(data []byte) (Format, error) {
	var root map[string]any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return FormatUnknown, fmt.Errorf("parse spec: %w", err)
	}
	if v, ok := root["openapi"]; ok {
		if s, _ := v.(string); strings.HasPrefix(strings.TrimSpace(s), "3.") {
			return FormatOpenAPI3, nil
		}
	}
	if v, ok := root["swagger"]; ok {
		if s, _ := v.(string); strings.HasPrefix(strings.TrimSpace(s), "2.") {
			return FormatSwagger2, nil
		}
	}
	_, hasShapes := root["shapes"]
	_, hasOps := root["operations"]
	if hasShapes || hasOps {
		return FormatAPI, nil
	}
	return FormatUnknown, fmt.Errorf("spec: unrecognized document (expected an API description with 'operations'/'shapes', 'openapi: 3.x' or 'swagger: 2.0')")
}

func loadOpenAPI(ctx context.Context, raw []byte, format Format, location string, isFile bool, settings Settings) (*openapi3.T, error) {
	var (
		doc *openapi3.T
		err error
	)
	switch format {
	case FormatOpenAPI3:
		loader := newLoader(ctx, settings, isFile)
		if isFile {
			doc, err = loader.LoadFromFile(location)
		} else {
			var u *url.URL
			if u, err = url.Parse(location); err == nil {
				doc, err = loader.LoadFromURI(u)
			}
		}
		if err != nil {
			return nil, mapValidateOrParseErr(err, location)
		}
	case FormatSwagger2:
		doc, err = convertV2ToV3(raw)
		if err != nil {
			return nil, &SpecError{Code: ConversionError, Message: fmt.Sprintf("convert v2→v3: %v", err), Location: location, Cause: err}
		}
		if err := newLoader(ctx, settings, isFile).ResolveRefsIn(doc, nil); err != nil {
			return nil, mapValidateOrParseErr(err, location)
		}
	}
	if err := doc.Validate(ctx); err != nil {
		if !canProceedDespiteValidation(err) {
			return nil, mapValidateOrParseErr(err, location)
		}
	}
	return doc, nil
}

func newLoader(ctx context.Context, settings Settings, rootIsFile bool) *openapi3.Loader {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true
	loader.Context = ctx
	client := newHTTPClient(settings)

	allowFile := settings.AllowFileRefs || rootIsFile
	loader.ReadFromURIFunc = func(l *openapi3.Loader, uri *url.URL) ([]byte, error) {
		switch strings.ToLower(uri.Scheme) {
		case "", "file":
			if !allowFile {
				return nil, fmt.Errorf("blocked file ref: %s", uri.String())
			}
			path := uri.Path
			if path == "" {
				path = uri.Opaque
			}
			return os.ReadFile(path)
		case "http", "https":
			refCtx := l.Context
			if refCtx == nil {
				refCtx = context.Background()
			}
			return fetch(refCtx, client, uri.String())
		default:
			return nil, fmt.Errorf("unsupported ref scheme: %s", uri.Scheme)
		}
	}
	return loader
}

func convertV2ToV3(data []byte) (*openapi3.T, error) {
	// kin-openapi v0.116 converts by unmarshalling to v2 then calling ToV3.
	var v2 openapi2.T
	if err := yaml.Unmarshal(data, &v2); err != nil {
		return nil, err
	}
	return openapi2conv.ToV3(&v2)
}

// newHTTPClient retries connection errors, 429 and 5xx responses with
// exponential backoff starting at BackoffBase. MaxRetries counts attempts.
func newHTTPClient(settings Settings) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient.Timeout = settings.HTTPTimeout
	rc.RetryMax = max(settings.MaxRetries-1, 0)
	rc.RetryWaitMin = settings.BackoffBase
	if rc.RetryWaitMin <= 0 {
		rc.RetryWaitMin = 200 * time.Millisecond
	}
	rc.RetryWaitMax = rc.RetryWaitMin << max(settings.MaxRetries, 1)
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = nil
	return rc
}

func fetch(ctx context.Context, client *retryablehttp.Client, rawURL string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 300 {
		return io.ReadAll(resp.Body)
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return nil, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
}

func mapValidateOrParseErr(err error, location string) error {
	pointer := extractJSONPointer(err)
	code := ValidationError
	// Heuristics: some loader errors are parse errors.
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "parse") || strings.Contains(lower, "invalid character") {
		code = ParseError
	}
	return &SpecError{Code: code, Message: err.Error(), Location: location, JSONPointer: pointer, Cause: err}
}

var jsonPtrRe = regexp.MustCompile(`#/[^\s'\"]+`)

func extractJSONPointer(err error) string {
	if err == nil {
		return ""
	}
	if me, ok := err.(openapi3.MultiError); ok {
		if len(me) > 0 {
			return extractJSONPointer(me[0])
		}
	}
	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		if parts := se.JSONPointer(); len(parts) > 0 {
			return "#/" + strings.Join(parts, "/")
		}
		if se.SchemaField != "" {
			return se.SchemaField
		}
	}
	if m := jsonPtrRe.FindString(err.Error()); m != "" {
		return m
	}
	return ""
}

// canProceedDespiteValidation returns true for validation errors where a
// best-effort import can still proceed (e.g. unresolved $ref entries).
func canProceedDespiteValidation(err error) bool {
	if err == nil {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unresolved ref")
}
