package goemitter

import (
	"bytes"
	"embed"
	"fmt"
	"path"
	"strings"
	"text/template"

	"golang.org/x/tools/imports"

	"github.com/mark3labs/awsgen/internal/model"
	"github.com/mark3labs/awsgen/internal/naming"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("").ParseFS(templateFS, "templates/*.tmpl"))

// DefaultRuntimeImport is the import path generated code uses for its
// transport runtime.
const DefaultRuntimeImport = "github.com/mark3labs/awsgen/pkg/awsrt"

// Artifact file names inside a service package.
const (
	ShapesFile = "shapes.go"
	ErrorsFile = "errors.go"
	APIFile    = "api.go"
)

// RenderError reports a failure to render or format one artifact.
type RenderError struct {
	Service  string
	Artifact string
	Cause    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("goemitter: render %s for %s: %v", e.Artifact, e.Service, e.Cause)
}

func (e *RenderError) Unwrap() error { return e.Cause }

// Artifacts are the formatted Go files of one service package.
type Artifacts struct {
	Service string
	Package string
	Shapes  []byte
	// Errors is nil when the service declares no error shapes.
	Errors []byte
	API    []byte
}

// Files maps package-relative paths to content.
func (a *Artifacts) Files() map[string][]byte {
	files := map[string][]byte{
		path.Join(a.Package, ShapesFile): a.Shapes,
		path.Join(a.Package, APIFile):    a.API,
	}
	if a.Errors != nil {
		files[path.Join(a.Package, ErrorsFile)] = a.Errors
	}
	return files
}

// PackageFor returns the Go package name used for a service.
func PackageFor(svc *model.ServiceModel) string {
	if name := strings.TrimSpace(svc.Name); name != "" {
		return naming.PackageName(name)
	}
	return naming.PackageName(svc.EndpointPrefix)
}

// Render produces the Go source of one service. Output is deterministic for
// a given model and options.
func Render(svc *model.ServiceModel, opts Options) (*Artifacts, error) {
	if svc == nil {
		return nil, fmt.Errorf("goemitter: nil ServiceModel")
	}
	runtime := strings.TrimSpace(opts.RuntimeImport)
	if runtime == "" {
		runtime = DefaultRuntimeImport
	}
	pkg := PackageFor(svc)
	b := newViewBuilder(svc, pkg, runtime)

	art := &Artifacts{Service: svc.Name, Package: pkg}
	var err error
	if art.Shapes, err = execute(svc.Name, ShapesFile, b.shapes()); err != nil {
		return nil, err
	}
	if len(svc.ErrorShapeNames) > 0 {
		if art.Errors, err = execute(svc.Name, ErrorsFile, b.errors()); err != nil {
			return nil, err
		}
	}
	if art.API, err = execute(svc.Name, APIFile, b.api()); err != nil {
		return nil, err
	}
	return art, nil
}

func execute(service, file string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, file+".tmpl", data); err != nil {
		return nil, &RenderError{Service: service, Artifact: file, Cause: err}
	}
	formatted, err := imports.Process(file, buf.Bytes(), nil)
	if err != nil {
		return nil, &RenderError{Service: service, Artifact: file, Cause: fmt.Errorf("goimports: %w", err)}
	}
	return formatted, nil
}
